// Package history builds and reads the append-only appointment audit trail.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/healthoffice-api/internal/model"
	"github.com/jwalitptl/healthoffice-api/internal/repository"
)

// ErrBrokenTimeline is returned by replay when an entry's from value does not
// match the value produced by the entries before it.
var ErrBrokenTimeline = errors.New("history timeline is not contiguous")

// ClearedStage is the to_status recorded when a reversion clears the stage.
const ClearedStage = ""

type Recorder struct {
	repo repository.HistoryRepository
}

func NewRecorder(repo repository.HistoryRepository) *Recorder {
	return &Recorder{repo: repo}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func newEntry(domain model.HistoryDomain, from *string, to string, actor model.Actor, reason string) *model.AppointmentStatusHistory {
	return &model.AppointmentStatusHistory{
		ID:            uuid.New(),
		Domain:        domain,
		FromStatus:    from,
		ToStatus:      to,
		ChangeType:    model.ChangeTypeStatus,
		ChangedBy:     actor.ID,
		ChangedByRole: actor.Role,
		Reason:        optional(reason),
	}
}

// Created builds the entry written alongside a new appointment.
func Created(status model.AppointmentStatus, actor model.Actor) *model.AppointmentStatusHistory {
	return newEntry(model.HistoryDomainStatus, nil, string(status), actor, "")
}

func StatusChange(from, to model.AppointmentStatus, actor model.Actor, reason string) *model.AppointmentStatusHistory {
	f := string(from)
	return newEntry(model.HistoryDomainStatus, &f, string(to), actor, reason)
}

// StageChange records a stage move. A nil from is the pipeline start; a nil
// to is a cleared stage.
func StageChange(from, to *model.Stage, actor model.Actor, reason string) *model.AppointmentStatusHistory {
	var f *string
	if from != nil {
		s := string(*from)
		f = &s
	}
	t := ClearedStage
	if to != nil {
		t = string(*to)
	}
	return newEntry(model.HistoryDomainStage, f, t, actor, reason)
}

// DoctorChange records a doctor assignment change. Status is unchanged, so
// from and to both carry the current status.
func DoctorChange(status model.AppointmentStatus, oldDoctor, newDoctor *uuid.UUID, actor model.Actor, reason string) *model.AppointmentStatusHistory {
	entry := StatusChange(status, status, actor, reason)
	switch {
	case oldDoctor == nil:
		entry.ChangeType = model.ChangeTypeDoctorAssigned
	case newDoctor == nil:
		entry.ChangeType = model.ChangeTypeDoctorUnassigned
	default:
		entry.ChangeType = model.ChangeTypeDoctorChanged
	}
	entry.OldDoctorID = oldDoctor
	entry.NewDoctorID = newDoctor
	return entry
}

// MarkReversion links entry to the forward entry it undoes.
func MarkReversion(entry *model.AppointmentStatusHistory, revertedFrom uuid.UUID, metadata model.JSONMap) *model.AppointmentStatusHistory {
	entry.IsReversion = true
	entry.RevertedFromHistoryID = &revertedFrom
	entry.Metadata = metadata
	return entry
}

// Timeline returns every entry of the appointment in recorded order.
func (r *Recorder) Timeline(ctx context.Context, appointmentID uuid.UUID) ([]*model.AppointmentStatusHistory, error) {
	entries, err := r.repo.ListByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load timeline: %w", err)
	}
	return entries, nil
}

// ReversionSource finds the most recent forward entry in domain that moved
// the appointment into current. That is the entry a reversion undoes.
func (r *Recorder) ReversionSource(ctx context.Context, appointmentID uuid.UUID, domain model.HistoryDomain, current string) (*model.AppointmentStatusHistory, error) {
	entries, err := r.Timeline(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if src := FindReversionSource(entries, domain, current); src != nil {
		return src, nil
	}
	return nil, fmt.Errorf("no %s entry into %q to revert: %w", domain, current, repository.ErrNotFound)
}

func FindReversionSource(entries []*model.AppointmentStatusHistory, domain model.HistoryDomain, current string) *model.AppointmentStatusHistory {
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Domain != domain || e.ChangeType != model.ChangeTypeStatus || e.IsReversion {
			continue
		}
		if e.ToStatus == current {
			return e
		}
	}
	return nil
}

// ReplayStatus reproduces the current status by applying each status-domain
// entry's to_status in order. Doctor assignment entries do not move status.
func ReplayStatus(entries []*model.AppointmentStatusHistory) (model.AppointmentStatus, error) {
	var (
		current string
		started bool
	)
	for _, e := range entries {
		if e.Domain != model.HistoryDomainStatus || e.ChangeType != model.ChangeTypeStatus {
			continue
		}
		if started && e.From() != current {
			return "", fmt.Errorf("%w: entry %s moves from %s but status was %s", ErrBrokenTimeline, e.ID, e.From(), current)
		}
		current = e.ToStatus
		started = true
	}
	if !started {
		return "", fmt.Errorf("%w: no status entries", ErrBrokenTimeline)
	}
	return model.ParseAppointmentStatus(current)
}

// ReplayStage reproduces the current stage from the stage-domain entries.
func ReplayStage(entries []*model.AppointmentStatusHistory) (*model.Stage, error) {
	var current *model.Stage
	for _, e := range entries {
		if e.Domain != model.HistoryDomainStage {
			continue
		}
		if e.FromStatus == nil && current != nil || e.FromStatus != nil && (current == nil || *e.FromStatus != string(*current)) {
			return nil, fmt.Errorf("%w: stage entry %s moves from %s but stage was %s",
				ErrBrokenTimeline, e.ID, e.From(), model.StageString(current))
		}
		if e.ToStatus == ClearedStage {
			current = nil
			continue
		}
		s, err := model.ParseStage(e.ToStatus)
		if err != nil {
			return nil, err
		}
		current = &s
	}
	return current, nil
}
