package lifecycle

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/healthoffice-api/internal/model"
	"github.com/jwalitptl/healthoffice-api/pkg/errors"
)

var allowedEdges = map[[2]model.AppointmentStatus]bool{
	{model.AppointmentStatusPending, model.AppointmentStatusScheduled}:      true,
	{model.AppointmentStatusPending, model.AppointmentStatusCancelled}:      true,
	{model.AppointmentStatusScheduled, model.AppointmentStatusCheckedIn}:    true,
	{model.AppointmentStatusScheduled, model.AppointmentStatusCancelled}:    true,
	{model.AppointmentStatusScheduled, model.AppointmentStatusNoShow}:       true,
	{model.AppointmentStatusCheckedIn, model.AppointmentStatusInProgress}:   true,
	{model.AppointmentStatusCheckedIn, model.AppointmentStatusCancelled}:    true,
	{model.AppointmentStatusInProgress, model.AppointmentStatusCompleted}:   true,
	{model.AppointmentStatusInProgress, model.AppointmentStatusRescheduled}: true,
}

func TestValidateStatusFullGraph(t *testing.T) {
	for _, from := range model.AppointmentStatuses {
		for _, to := range model.AppointmentStatuses {
			_, err := ValidateStatus(from, to, model.RoleStaff)
			if allowedEdges[[2]model.AppointmentStatus{from, to}] {
				assert.NoError(t, err, "%s -> %s", from, to)
				continue
			}
			require.Error(t, err, "%s -> %s", from, to)
			assert.True(t, errors.Is(err, errors.ErrInvalidTransition), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatusesHaveNoTargets(t *testing.T) {
	for _, s := range model.AppointmentStatuses {
		if s.IsTerminal() {
			assert.Empty(t, AllowedTargets(s), s)
		} else {
			assert.NotEmpty(t, AllowedTargets(s), s)
		}
	}
}

func TestValidateStatusPatientRole(t *testing.T) {
	_, err := ValidateStatus(model.AppointmentStatusScheduled, model.AppointmentStatusCancelled, model.RolePatient)
	assert.NoError(t, err)

	_, err = ValidateStatus(model.AppointmentStatusScheduled, model.AppointmentStatusCheckedIn, model.RolePatient)
	assert.True(t, errors.Is(err, errors.ErrPolicyDenied))

	// an edge outside the graph is reported as such regardless of role
	_, err = ValidateStatus(model.AppointmentStatusCompleted, model.AppointmentStatusCancelled, model.RolePatient)
	assert.True(t, errors.Is(err, errors.ErrInvalidTransition))
}

func TestNoShowNotReachableFromCheckedIn(t *testing.T) {
	_, err := ValidateStatus(model.AppointmentStatusCheckedIn, model.AppointmentStatusNoShow, model.RoleAdmin)
	assert.True(t, errors.Is(err, errors.ErrInvalidTransition))
}

func TestEffectsApply(t *testing.T) {
	at := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	actor := model.Actor{ID: uuid.New(), Role: model.RoleDoctor}

	tests := []struct {
		name   string
		from   model.AppointmentStatus
		to     model.AppointmentStatus
		reason string
		check  func(t *testing.T, apt *model.Appointment)
	}{
		{
			name: "check in stamps checked_in_at",
			from: model.AppointmentStatusScheduled,
			to:   model.AppointmentStatusCheckedIn,
			check: func(t *testing.T, apt *model.Appointment) {
				require.NotNil(t, apt.CheckedInAt)
				assert.Equal(t, at, *apt.CheckedInAt)
				assert.Nil(t, apt.StartedAt)
			},
		},
		{
			name: "complete stamps completer",
			from: model.AppointmentStatusInProgress,
			to:   model.AppointmentStatusCompleted,
			check: func(t *testing.T, apt *model.Appointment) {
				require.NotNil(t, apt.CompletedAt)
				require.NotNil(t, apt.CompletedByID)
				assert.Equal(t, actor.ID, *apt.CompletedByID)
				assert.Nil(t, apt.CancellationReason)
			},
		},
		{
			name:   "reschedule stamps reason",
			from:   model.AppointmentStatusInProgress,
			to:     model.AppointmentStatusRescheduled,
			reason: "  lab retest  ",
			check: func(t *testing.T, apt *model.Appointment) {
				require.NotNil(t, apt.CancelledAt)
				require.NotNil(t, apt.CancellationReason)
				assert.Equal(t, "lab retest", *apt.CancellationReason)
			},
		},
		{
			name: "no show sets nothing",
			from: model.AppointmentStatusScheduled,
			to:   model.AppointmentStatusNoShow,
			check: func(t *testing.T, apt *model.Appointment) {
				assert.Nil(t, apt.CheckedInAt)
				assert.Nil(t, apt.CancelledAt)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apt := &model.Appointment{Status: tt.from}
			effects, err := ValidateStatus(tt.from, tt.to, actor.Role)
			require.NoError(t, err)
			require.NoError(t, effects.Apply(apt, tt.to, actor, tt.reason, at))
			assert.Equal(t, tt.to, apt.Status)
			tt.check(t, apt)
		})
	}
}

func TestEffectsApplyRequiresReason(t *testing.T) {
	apt := &model.Appointment{Status: model.AppointmentStatusScheduled}
	effects, err := ValidateStatus(apt.Status, model.AppointmentStatusCancelled, model.RoleStaff)
	require.NoError(t, err)

	err = effects.Apply(apt, model.AppointmentStatusCancelled, model.Actor{}, "   ", time.Now())
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
	assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)
	assert.Nil(t, apt.CancelledAt)
}

func TestEffectsApplyKeepsExistingTimestamp(t *testing.T) {
	first := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	apt := &model.Appointment{Status: model.AppointmentStatusScheduled, CheckedInAt: &first}

	require.NoError(t, checkIn.Apply(apt, model.AppointmentStatusCheckedIn, model.Actor{}, "", first.Add(time.Hour)))
	assert.Equal(t, first, *apt.CheckedInAt)
}

func TestStatusReversionTarget(t *testing.T) {
	target, err := StatusReversionTarget(model.AppointmentStatusCheckedIn, model.RoleStaff)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusScheduled, target)

	target, err = StatusReversionTarget(model.AppointmentStatusInProgress, model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCheckedIn, target)

	_, err = StatusReversionTarget(model.AppointmentStatusCompleted, model.RoleStaff)
	assert.True(t, errors.Is(err, errors.ErrInvalidTransition))

	_, err = StatusReversionTarget(model.AppointmentStatusCheckedIn, model.RolePatient)
	assert.True(t, errors.Is(err, errors.ErrPolicyDenied))
}
