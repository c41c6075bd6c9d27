// Package lifecycle holds the appointment status and stage graphs. Every
// function here is pure; persistence and locking live in the engine.
package lifecycle

import (
	"strings"
	"time"

	"github.com/jwalitptl/healthoffice-api/internal/model"
	"github.com/jwalitptl/healthoffice-api/pkg/errors"
)

// Effects are the field mutations an allowed status edge requires.
type Effects struct {
	SetCheckedInAt bool
	SetStartedAt   bool
	SetCompletedAt bool
	SetCancelledAt bool
	RequireReason  bool
}

var (
	checkIn  = Effects{SetCheckedInAt: true}
	start    = Effects{SetStartedAt: true}
	complete = Effects{SetCompletedAt: true}
	cancel   = Effects{SetCancelledAt: true, RequireReason: true}
	noEffect = Effects{}
)

// statusGraph is the complete set of forward edges. Terminal statuses have no
// entry.
var statusGraph = map[model.AppointmentStatus]map[model.AppointmentStatus]Effects{
	model.AppointmentStatusPending: {
		model.AppointmentStatusScheduled: noEffect,
		model.AppointmentStatusCancelled: cancel,
	},
	model.AppointmentStatusScheduled: {
		model.AppointmentStatusCheckedIn: checkIn,
		model.AppointmentStatusCancelled: cancel,
		model.AppointmentStatusNoShow:    noEffect,
	},
	model.AppointmentStatusCheckedIn: {
		model.AppointmentStatusInProgress: start,
		model.AppointmentStatusCancelled:  cancel,
	},
	model.AppointmentStatusInProgress: {
		model.AppointmentStatusCompleted:   complete,
		model.AppointmentStatusRescheduled: cancel,
	},
}

// statusReversions maps a status to the one a staff reversion returns it to.
var statusReversions = map[model.AppointmentStatus]model.AppointmentStatus{
	model.AppointmentStatusCheckedIn:  model.AppointmentStatusScheduled,
	model.AppointmentStatusInProgress: model.AppointmentStatusCheckedIn,
}

// ValidateStatus checks a forward status edge for the given role and returns
// the effects the engine must apply.
func ValidateStatus(from, to model.AppointmentStatus, role model.Role) (Effects, error) {
	effects, ok := statusGraph[from][to]
	if !ok {
		return Effects{}, errors.InvalidTransition(string(model.HistoryDomainStatus), string(from), string(to))
	}
	if role == model.RolePatient && to != model.AppointmentStatusCancelled {
		return Effects{}, errors.PolicyDenied("actor_role", "patients may only cancel their own appointments")
	}
	if !role.Valid() {
		return Effects{}, errors.PolicyDenied("actor_role", "unknown role "+string(role))
	}
	return effects, nil
}

// AllowedTargets lists the statuses reachable from s in one forward step.
func AllowedTargets(s model.AppointmentStatus) []model.AppointmentStatus {
	var out []model.AppointmentStatus
	for _, to := range model.AppointmentStatuses {
		if _, ok := statusGraph[s][to]; ok {
			out = append(out, to)
		}
	}
	return out
}

// Apply mutates apt in place. Timestamps already set by an earlier pass
// through the same status are left untouched.
func (e Effects) Apply(apt *model.Appointment, to model.AppointmentStatus, actor model.Actor, reason string, at time.Time) error {
	reason = strings.TrimSpace(reason)
	if e.RequireReason && reason == "" {
		return errors.BadRequest("a reason is required when moving to "+string(to), nil)
	}

	if e.SetCheckedInAt && apt.CheckedInAt == nil {
		apt.CheckedInAt = &at
	}
	if e.SetStartedAt && apt.StartedAt == nil {
		apt.StartedAt = &at
	}
	if e.SetCompletedAt {
		if apt.CompletedAt == nil {
			apt.CompletedAt = &at
		}
		if apt.CompletedByID == nil {
			id := actor.ID
			apt.CompletedByID = &id
		}
	}
	if e.SetCancelledAt {
		if apt.CancelledAt == nil {
			apt.CancelledAt = &at
		}
		apt.CancellationReason = &reason
	}

	apt.Status = to
	return nil
}

// StatusReversionTarget returns the status a staff reversion from current
// lands on.
func StatusReversionTarget(current model.AppointmentStatus, role model.Role) (model.AppointmentStatus, error) {
	if err := RequireStaff(role, "reversion"); err != nil {
		return "", err
	}
	target, ok := statusReversions[current]
	if !ok {
		return "", errors.InvalidTransition(string(model.HistoryDomainStatus), string(current), "previous status")
	}
	return target, nil
}

// RequireStaff denies privileged operations to patients and unknown roles.
func RequireStaff(role model.Role, operation string) error {
	if !role.IsStaff() {
		return errors.PolicyDenied("actor_role", operation+" requires a staff role")
	}
	return nil
}

// RequireDoctor restricts clinical decisions to doctors and admins.
func RequireDoctor(role model.Role) error {
	if role != model.RoleDoctor && role != model.RoleAdmin {
		return errors.PolicyDenied("actor_role", "doctor decision requires a doctor role")
	}
	return nil
}
