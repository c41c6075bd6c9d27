package appointment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/healthoffice-api/internal/lifecycle"
	"github.com/jwalitptl/healthoffice-api/internal/model"
	"github.com/jwalitptl/healthoffice-api/internal/repository"
	"github.com/jwalitptl/healthoffice-api/internal/service/history"
	apperrors "github.com/jwalitptl/healthoffice-api/pkg/errors"
)

// Transition moves the appointment's status along one forward edge.
// Patients may only cancel their own appointments, and only outside the
// cancellation window; staff bypass the window.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to model.AppointmentStatus, actor model.Actor, reason string) (*model.Appointment, error) {
	return s.mutate(ctx, "transition", id, actor, func(apt *model.Appointment, at time.Time) (*change, error) {
		from := apt.Status
		effects, err := lifecycle.ValidateStatus(from, to, actor.Role)
		if err != nil {
			return nil, err
		}

		if actor.Role == model.RolePatient {
			if err := checkOwnership(apt, actor); err != nil {
				return nil, err
			}
			if err := s.cancellation.Check(apt, s.clock.Now()); err != nil {
				return nil, err
			}
		}

		if err := effects.Apply(apt, to, actor, reason, at); err != nil {
			return nil, err
		}

		ch := &change{
			entry:  history.StatusChange(from, to, actor, reason),
			reason: strings.TrimSpace(reason),
		}
		if evt, ok := model.EventForStatus(to); ok {
			ch.event = evt
		}
		return ch, nil
	})
}

// Revert undoes the latest forward move in domain. The undone entry is kept
// and linked; timestamps set by it are preserved and echoed into the
// reversion's metadata.
func (s *Service) Revert(ctx context.Context, id uuid.UUID, domain model.HistoryDomain, actor model.Actor, reason string) (*model.Appointment, error) {
	if err := lifecycle.RequireStaff(actor.Role, "reversion"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, apperrors.BadRequest("a reason is required to revert", nil)
	}

	switch domain {
	case model.HistoryDomainStatus:
		return s.mutate(ctx, "revert_status", id, actor, func(apt *model.Appointment, _ time.Time) (*change, error) {
			from := apt.Status
			target, err := lifecycle.StatusReversionTarget(from, actor.Role)
			if err != nil {
				return nil, err
			}
			src, err := s.reversionSource(ctx, id, domain, string(from))
			if err != nil {
				return nil, err
			}

			meta := preservedTimestamps(apt)
			meta["reverted_status"] = string(from)
			apt.Status = target

			entry := history.MarkReversion(history.StatusChange(from, target, actor, reason), src.ID, meta)
			return &change{entry: entry}, nil
		})

	case model.HistoryDomainStage:
		return s.mutate(ctx, "revert_stage", id, actor, func(apt *model.Appointment, _ time.Time) (*change, error) {
			if !lifecycle.StagePipelineOpen(apt.Status) {
				return nil, apperrors.PolicyDenied("stage_pipeline", "stage pipeline is closed for status "+string(apt.Status))
			}
			from := apt.Stage
			target, err := lifecycle.StageReversionTarget(from, actor.Role)
			if err != nil {
				return nil, err
			}
			src, err := s.reversionSource(ctx, id, domain, string(*from))
			if err != nil {
				return nil, err
			}

			meta := preservedTimestamps(apt)
			meta["reverted_stage"] = string(*from)
			apt.Stage = target

			entry := history.MarkReversion(history.StageChange(from, target, actor, reason), src.ID, meta)
			return &change{entry: entry}, nil
		})
	}

	return nil, apperrors.BadRequest("domain must be status or stage", nil)
}

func (s *Service) reversionSource(ctx context.Context, id uuid.UUID, domain model.HistoryDomain, current string) (*model.AppointmentStatusHistory, error) {
	src, err := s.recorder.ReversionSource(ctx, id, domain, current)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.InvalidTransition(string(domain), current, "previous "+string(domain))
		}
		return nil, apperrors.Internal(err)
	}
	return src, nil
}

func preservedTimestamps(apt *model.Appointment) model.JSONMap {
	meta := model.JSONMap{}
	for key, ts := range map[string]*time.Time{
		"preserved_checked_in_at": apt.CheckedInAt,
		"preserved_started_at":    apt.StartedAt,
	} {
		if ts != nil {
			meta[key] = ts.UTC().Format(time.RFC3339Nano)
		}
	}
	return meta
}

// AssignDoctor sets, changes or clears the attending doctor.
func (s *Service) AssignDoctor(ctx context.Context, id uuid.UUID, doctorID *uuid.UUID, actor model.Actor) (*model.Appointment, error) {
	if err := lifecycle.RequireStaff(actor.Role, "doctor assignment"); err != nil {
		return nil, err
	}
	if doctorID != nil && *doctorID == uuid.Nil {
		doctorID = nil
	}

	return s.mutate(ctx, "assign_doctor", id, actor, func(apt *model.Appointment, _ time.Time) (*change, error) {
		if apt.Status.IsTerminal() {
			return nil, apperrors.PolicyDenied("terminal_status", "appointment is "+string(apt.Status))
		}
		if sameDoctor(apt.DoctorID, doctorID) {
			return nil, apperrors.BadRequest("doctor assignment is unchanged", nil)
		}

		entry := history.DoctorChange(apt.Status, apt.DoctorID, doctorID, actor, "")
		apt.DoctorID = doctorID
		return &change{entry: entry}, nil
	})
}

func sameDoctor(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
