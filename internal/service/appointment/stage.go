package appointment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/healthoffice-api/internal/lifecycle"
	"github.com/jwalitptl/healthoffice-api/internal/model"
	"github.com/jwalitptl/healthoffice-api/internal/service/history"
	apperrors "github.com/jwalitptl/healthoffice-api/pkg/errors"
)

// AdvanceStage moves a health-card appointment one step along its pipeline.
// Leaving checkup is only possible through DoctorDecision.
func (s *Service) AdvanceStage(ctx context.Context, id uuid.UUID, stage model.Stage, actor model.Actor) (*model.Appointment, error) {
	if err := lifecycle.RequireStaff(actor.Role, "stage change"); err != nil {
		return nil, err
	}

	return s.mutate(ctx, "advance_stage", id, actor, func(apt *model.Appointment, _ time.Time) (*change, error) {
		if err := s.moveStage(ctx, apt, stage, false); err != nil {
			return nil, err
		}
		from := apt.Stage
		apt.Stage = &stage
		return &change{entry: history.StageChange(from, &stage, actor, "")}, nil
	})
}

// DoctorDecision records the checkup outcome. Approve releases the patient;
// retest reschedules the appointment and halts the pipeline at checkup.
func (s *Service) DoctorDecision(ctx context.Context, id uuid.UUID, decision model.DoctorDecision, actor model.Actor, note string) (*model.Appointment, error) {
	if err := lifecycle.RequireDoctor(actor.Role); err != nil {
		return nil, err
	}

	switch decision {
	case model.DecisionApprove:
		return s.mutate(ctx, "decision_approve", id, actor, func(apt *model.Appointment, _ time.Time) (*change, error) {
			releasing := model.StageReleasing
			if err := s.moveStage(ctx, apt, releasing, true); err != nil {
				return nil, err
			}
			from := apt.Stage
			apt.Stage = &releasing

			entry := history.StageChange(from, &releasing, actor, note)
			entry.Metadata = model.JSONMap{"decision": string(model.DecisionApprove)}
			return &change{entry: entry}, nil
		})

	case model.DecisionRetest:
		return s.mutate(ctx, "decision_retest", id, actor, func(apt *model.Appointment, at time.Time) (*change, error) {
			if apt.Stage == nil || *apt.Stage != model.StageCheckup {
				return nil, apperrors.InvalidTransition(string(model.HistoryDomainStage), model.StageString(apt.Stage), "retest")
			}
			from := apt.Status
			effects, err := lifecycle.ValidateStatus(from, model.AppointmentStatusRescheduled, actor.Role)
			if err != nil {
				return nil, err
			}
			if err := effects.Apply(apt, model.AppointmentStatusRescheduled, actor, note, at); err != nil {
				return nil, err
			}

			entry := history.StatusChange(from, model.AppointmentStatusRescheduled, actor, note)
			entry.Metadata = model.JSONMap{
				"decision": string(model.DecisionRetest),
				"stage":    string(model.StageCheckup),
			}
			return &change{
				entry:  entry,
				event:  model.EventAppointmentRescheduled,
				reason: strings.TrimSpace(note),
			}, nil
		})
	}

	return nil, apperrors.BadRequest("decision must be approve or retest", nil)
}

// moveStage checks that apt may move to stage: the service must be a health
// card service, the status must keep the pipeline open, and stage must be the
// immediate successor.
func (s *Service) moveStage(ctx context.Context, apt *model.Appointment, stage model.Stage, viaDecision bool) error {
	if !lifecycle.StagePipelineOpen(apt.Status) {
		return apperrors.PolicyDenied("stage_pipeline", "stage pipeline is closed for status "+string(apt.Status))
	}
	category, err := s.catalog.Category(ctx, apt.ServiceID)
	if err != nil {
		return err
	}
	return lifecycle.ValidateStage(apt.Stage, stage, category, viaDecision)
}
