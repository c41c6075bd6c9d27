// Package appointment is the appointment lifecycle engine. Every mutation is
// validated against the lifecycle graphs, written together with its history
// entry in one transaction, and guarded by an optimistic version check.
package appointment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/healthoffice-api/internal/clock"
	"github.com/jwalitptl/healthoffice-api/internal/lifecycle"
	"github.com/jwalitptl/healthoffice-api/internal/model"
	"github.com/jwalitptl/healthoffice-api/internal/policy"
	"github.com/jwalitptl/healthoffice-api/internal/repository"
	"github.com/jwalitptl/healthoffice-api/internal/service/catalog"
	"github.com/jwalitptl/healthoffice-api/internal/service/history"
	"github.com/jwalitptl/healthoffice-api/internal/service/notification"
	"github.com/jwalitptl/healthoffice-api/internal/service/queue"
	apperrors "github.com/jwalitptl/healthoffice-api/pkg/errors"
	"github.com/jwalitptl/healthoffice-api/pkg/logger"
	"github.com/jwalitptl/healthoffice-api/pkg/metrics"
)

const DefaultConflictRetries = 1

type Dependencies struct {
	Appointments   repository.AppointmentRepository
	MedicalRecords repository.MedicalRecordRepository
	Recorder       *history.Recorder
	Allocator      *queue.Allocator
	Catalog        *catalog.Service
	Cancellation   *policy.CancellationPolicy
	Clock          clock.Clock
	Notifier       notification.Notifier
	Logger         *logger.Logger
	Metrics        *metrics.Metrics
	// ConflictRetries is how many times a version conflict is retried with a
	// fresh read. Negative means the default.
	ConflictRetries int
}

type Service struct {
	repo            repository.AppointmentRepository
	records         repository.MedicalRecordRepository
	recorder        *history.Recorder
	allocator       *queue.Allocator
	catalog         *catalog.Service
	cancellation    *policy.CancellationPolicy
	clock           clock.Clock
	notifier        notification.Notifier
	logger          *logger.Logger
	metrics         *metrics.Metrics
	conflictRetries int

	notifications sync.WaitGroup
}

func NewService(deps Dependencies) *Service {
	retries := deps.ConflictRetries
	if retries < 0 {
		retries = DefaultConflictRetries
	}
	return &Service{
		repo:            deps.Appointments,
		records:         deps.MedicalRecords,
		recorder:        deps.Recorder,
		allocator:       deps.Allocator,
		catalog:         deps.Catalog,
		cancellation:    deps.Cancellation,
		clock:           deps.Clock,
		notifier:        deps.Notifier,
		logger:          deps.Logger,
		metrics:         deps.Metrics,
		conflictRetries: retries,
	}
}

// Close waits for in-flight notifications to be handed off.
func (s *Service) Close() {
	s.notifications.Wait()
}

// change is what a mutation produces besides the mutated appointment.
type change struct {
	entry  *model.AppointmentStatusHistory
	event  model.LifecycleEventType
	reason string
}

// mutation edits apt in place. at is the timestamp to stamp on any field it
// sets. Returning an error aborts without writing anything.
type mutation func(apt *model.Appointment, at time.Time) (*change, error)

// snapshot is the part of an appointment a caller's decision depends on.
type snapshot struct {
	status model.AppointmentStatus
	stage  string
	doctor uuid.UUID
}

func snapshotOf(apt *model.Appointment) snapshot {
	s := snapshot{status: apt.Status, stage: model.StageString(apt.Stage)}
	if apt.DoctorID != nil {
		s.doctor = *apt.DoctorID
	}
	return s
}

// mutate runs load, validate, apply and persist as one optimistic unit. A
// version conflict is retried with a fresh read only while the fresh state
// is the one the caller first observed; otherwise the caller gets
// ConcurrentModification and must reload.
func (s *Service) mutate(ctx context.Context, op string, id uuid.UUID, actor model.Actor, fn mutation) (*model.Appointment, error) {
	timer := prometheus.NewTimer(s.metrics.OperationLatency.WithLabelValues(op))
	defer timer.ObserveDuration()

	var observed snapshot
	for attempt := 0; ; attempt++ {
		current, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if attempt == 0 {
			observed = snapshotOf(current)
		} else if snapshotOf(current) != observed {
			s.logger.Warn(nil, "appointment changed underneath request",
				"appointment_id", id.String(), "operation", op, "actor_id", actor.ID.String())
			return nil, apperrors.ConcurrentModification(id)
		}

		next := current.Clone()
		ch, err := fn(next, s.stampTime(current))
		if err != nil {
			s.logger.Warn(err, "appointment change rejected",
				"appointment_id", id.String(),
				"operation", op,
				"from", string(current.Status),
				"actor_id", actor.ID.String(),
				"actor_role", string(actor.Role))
			return nil, err
		}

		err = s.repo.UpdateWithHistory(ctx, next, current.Version, ch.entry)
		if errors.Is(err, repository.ErrVersionConflict) {
			if attempt < s.conflictRetries {
				s.metrics.ConflictRetries.Inc()
				continue
			}
			s.record(ch.entry, "conflict")
			return nil, apperrors.ConcurrentModification(id)
		}
		if err != nil {
			s.record(ch.entry, "error")
			s.logger.Error(err, "failed to persist appointment change",
				"appointment_id", id.String(), "operation", op)
			return nil, apperrors.Persistence(err)
		}

		s.record(ch.entry, "success")
		s.logger.Info("appointment changed",
			"appointment_id", id.String(),
			"operation", op,
			"domain", string(ch.entry.Domain),
			"from", ch.entry.From(),
			"to", ch.entry.ToStatus,
			"actor_id", actor.ID.String(),
			"version", next.Version)

		if ch.event != "" {
			s.dispatch(ctx, model.NewLifecycleEvent(ch.event, next, actor, ch.reason, s.clock.Now()))
		}
		return next, nil
	}
}

func (s *Service) record(entry *model.AppointmentStatusHistory, result string) {
	s.metrics.Transitions.WithLabelValues(string(entry.Domain), entry.From(), entry.ToStatus, result).Inc()
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("appointment", err)
		}
		return nil, apperrors.Internal(err)
	}
	return apt, nil
}

// stampTime is now, but never earlier than any timestamp already on the
// appointment.
func (s *Service) stampTime(apt *model.Appointment) time.Time {
	at := s.clock.Now()
	floor := apt.CreatedAt
	for _, ts := range []*time.Time{apt.CheckedInAt, apt.StartedAt, apt.CompletedAt, apt.CancelledAt} {
		if ts != nil && ts.After(floor) {
			floor = *ts
		}
	}
	if at.Before(floor) {
		return floor
	}
	return at
}

// dispatch hands evt to the notifier without waiting and without tying it
// to the request's cancellation.
func (s *Service) dispatch(ctx context.Context, evt model.LifecycleEvent) {
	if s.notifier == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()
		s.notifier.Notify(detached, evt)
	}()
}

func checkOwnership(apt *model.Appointment, actor model.Actor) error {
	if actor.Role == model.RolePatient && apt.PatientID != actor.ID {
		return apperrors.PolicyDenied("ownership", "patients may only act on their own appointments")
	}
	return nil
}

// Get returns the authoritative appointment state.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.AppointmentView, error) {
	apt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(apt, actor); err != nil {
		return nil, err
	}

	view := &model.AppointmentView{
		Appointment:        apt,
		AllowedTransitions: lifecycle.AllowedTargets(apt.Status),
	}
	if s.records != nil {
		has, err := s.records.ExistsForAppointment(ctx, id)
		if err != nil {
			s.logger.Warn(err, "failed to check medical record", "appointment_id", id.String())
		}
		view.HasMedicalRecord = has
	}
	return view, nil
}

// History returns the appointment's audit trail in recorded order.
func (s *Service) History(ctx context.Context, id uuid.UUID, actor model.Actor) ([]*model.AppointmentStatusHistory, error) {
	apt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(apt, actor); err != nil {
		return nil, err
	}

	entries, err := s.recorder.Timeline(ctx, id)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return entries, nil
}

// ReplayStatus rebuilds the status from the audit trail. A result that
// differs from the stored status means the trail is not authoritative.
func (s *Service) ReplayStatus(ctx context.Context, id uuid.UUID, actor model.Actor) (model.AppointmentStatus, error) {
	entries, err := s.History(ctx, id, actor)
	if err != nil {
		return "", err
	}
	status, err := history.ReplayStatus(entries)
	if err != nil {
		s.logger.Error(err, "history replay failed", "appointment_id", id.String())
		return "", apperrors.Internal(err)
	}
	return status, nil
}

// List returns appointments matching filters. Patients only see their own.
func (s *Service) List(ctx context.Context, filters model.AppointmentFilters, actor model.Actor) ([]*model.Appointment, error) {
	if actor.Role == model.RolePatient {
		filters.PatientID = actor.ID
	}
	apts, err := s.repo.List(ctx, &filters)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return apts, nil
}
