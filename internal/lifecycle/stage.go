package lifecycle

import (
	"github.com/jwalitptl/healthoffice-api/internal/model"
	"github.com/jwalitptl/healthoffice-api/pkg/errors"
)

type stageEdge struct {
	next model.Stage
	// requiresDecision marks an edge only a doctor approval may take.
	requiresDecision bool
}

var stageGraph = map[model.Stage]stageEdge{
	model.StageCheckIn:    {next: model.StageLaboratory},
	model.StageLaboratory: {next: model.StageResults},
	model.StageResults:    {next: model.StageCheckup},
	model.StageCheckup:    {next: model.StageReleasing, requiresDecision: true},
}

var stagePredecessor = map[model.Stage]model.Stage{
	model.StageLaboratory: model.StageCheckIn,
	model.StageResults:    model.StageLaboratory,
	model.StageCheckup:    model.StageResults,
	model.StageReleasing:  model.StageCheckup,
}

func stageError(current *model.Stage, requested string) error {
	return errors.InvalidTransition(string(model.HistoryDomainStage), model.StageString(current), requested)
}

// ValidateStage checks a single forward step of the health-card pipeline.
// viaDecision is true only when the step is taken by an approve decision.
func ValidateStage(current *model.Stage, requested model.Stage, category model.ServiceCategory, viaDecision bool) error {
	if category != model.ServiceCategoryHealthCard {
		return stageError(current, string(requested))
	}
	if !requested.Valid() {
		return stageError(current, string(requested))
	}
	if current == nil {
		if requested != model.StageCheckIn {
			return stageError(current, string(requested))
		}
		return nil
	}

	edge, ok := stageGraph[*current]
	if !ok || edge.next != requested {
		return stageError(current, string(requested))
	}
	if edge.requiresDecision && !viaDecision {
		return errors.PolicyDenied("doctor_decision", "leaving checkup requires an approve decision")
	}
	return nil
}

// StageReversionTarget returns the stage a reversion from current lands on.
// Reverting check_in clears the stage.
func StageReversionTarget(current *model.Stage, role model.Role) (*model.Stage, error) {
	if err := RequireStaff(role, "reversion"); err != nil {
		return nil, err
	}
	if current == nil {
		return nil, stageError(current, "previous stage")
	}
	if *current == model.StageCheckIn {
		return nil, nil
	}
	prev, ok := stagePredecessor[*current]
	if !ok {
		return nil, stageError(current, "previous stage")
	}
	return &prev, nil
}

// StagePipelineOpen reports whether an appointment in status s may still move
// through stages.
func StagePipelineOpen(s model.AppointmentStatus) bool {
	switch s {
	case model.AppointmentStatusCheckedIn, model.AppointmentStatusInProgress, model.AppointmentStatusCompleted:
		return true
	}
	return false
}
