package history

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/healthoffice-api/internal/model"
	"github.com/jwalitptl/healthoffice-api/internal/repository"
)

type staticHistory struct {
	entries []*model.AppointmentStatusHistory
}

func (s *staticHistory) ListByAppointment(_ context.Context, _ uuid.UUID) ([]*model.AppointmentStatusHistory, error) {
	return s.entries, nil
}

func (s *staticHistory) Get(_ context.Context, id uuid.UUID) (*model.AppointmentStatusHistory, error) {
	for _, e := range s.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, repository.ErrNotFound
}

var staff = model.Actor{ID: uuid.New(), Role: model.RoleStaff}

func stage(s model.Stage) *model.Stage { return &s }

func TestReplayStatusFollowsReversion(t *testing.T) {
	checkedIn := StatusChange(model.AppointmentStatusScheduled, model.AppointmentStatusCheckedIn, staff, "")
	entries := []*model.AppointmentStatusHistory{
		Created(model.AppointmentStatusScheduled, staff),
		checkedIn,
		MarkReversion(StatusChange(model.AppointmentStatusCheckedIn, model.AppointmentStatusScheduled, staff, "wrong patient"), checkedIn.ID, nil),
		DoctorChange(model.AppointmentStatusScheduled, nil, &staff.ID, staff, ""),
		StatusChange(model.AppointmentStatusScheduled, model.AppointmentStatusCheckedIn, staff, ""),
		StageChange(nil, stage(model.StageCheckIn), staff, ""),
		StatusChange(model.AppointmentStatusCheckedIn, model.AppointmentStatusInProgress, staff, ""),
	}

	status, err := ReplayStatus(entries)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusInProgress, status)
}

func TestReplayStatusDetectsGap(t *testing.T) {
	entries := []*model.AppointmentStatusHistory{
		Created(model.AppointmentStatusPending, staff),
		StatusChange(model.AppointmentStatusScheduled, model.AppointmentStatusCheckedIn, staff, ""),
	}

	_, err := ReplayStatus(entries)
	assert.ErrorIs(t, err, ErrBrokenTimeline)

	_, err = ReplayStatus(nil)
	assert.ErrorIs(t, err, ErrBrokenTimeline)
}

func TestReplayStage(t *testing.T) {
	entries := []*model.AppointmentStatusHistory{
		Created(model.AppointmentStatusScheduled, staff),
		StageChange(nil, stage(model.StageCheckIn), staff, ""),
		StageChange(stage(model.StageCheckIn), stage(model.StageLaboratory), staff, ""),
		StageChange(stage(model.StageLaboratory), stage(model.StageCheckIn), staff, "sample lost"),
		StageChange(stage(model.StageCheckIn), nil, staff, "wrong queue"),
	}

	got, err := ReplayStage(entries)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ReplayStage(entries[:3])
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.StageLaboratory, *got)
}

func TestDoctorChangeTypes(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	assigned := DoctorChange(model.AppointmentStatusScheduled, nil, &a, staff, "")
	assert.Equal(t, model.ChangeTypeDoctorAssigned, assigned.ChangeType)
	assert.Equal(t, "scheduled", *assigned.FromStatus)
	assert.Equal(t, "scheduled", assigned.ToStatus)

	changed := DoctorChange(model.AppointmentStatusScheduled, &a, &b, staff, "")
	assert.Equal(t, model.ChangeTypeDoctorChanged, changed.ChangeType)
	assert.Equal(t, a, *changed.OldDoctorID)
	assert.Equal(t, b, *changed.NewDoctorID)

	unassigned := DoctorChange(model.AppointmentStatusScheduled, &b, nil, staff, "")
	assert.Equal(t, model.ChangeTypeDoctorUnassigned, unassigned.ChangeType)
	assert.Nil(t, unassigned.NewDoctorID)
}

func TestReversionSourceSkipsReversionsAndOtherDomains(t *testing.T) {
	first := StatusChange(model.AppointmentStatusScheduled, model.AppointmentStatusCheckedIn, staff, "")
	undo := MarkReversion(StatusChange(model.AppointmentStatusCheckedIn, model.AppointmentStatusScheduled, staff, "x"), first.ID, nil)
	second := StatusChange(model.AppointmentStatusScheduled, model.AppointmentStatusCheckedIn, staff, "")
	stageEntry := StageChange(nil, stage(model.StageCheckIn), staff, "")

	r := NewRecorder(&staticHistory{entries: []*model.AppointmentStatusHistory{
		Created(model.AppointmentStatusScheduled, staff), first, undo, second, stageEntry,
	}})

	src, err := r.ReversionSource(context.Background(), uuid.New(), model.HistoryDomainStatus, "checked_in")
	require.NoError(t, err)
	assert.Equal(t, second.ID, src.ID)

	src, err = r.ReversionSource(context.Background(), uuid.New(), model.HistoryDomainStage, "check_in")
	require.NoError(t, err)
	assert.Equal(t, stageEntry.ID, src.ID)

	_, err = r.ReversionSource(context.Background(), uuid.New(), model.HistoryDomainStatus, "in_progress")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestReasonIsTrimmed(t *testing.T) {
	e := StatusChange(model.AppointmentStatusScheduled, model.AppointmentStatusCancelled, staff, "  ")
	assert.Nil(t, e.Reason)

	e = StatusChange(model.AppointmentStatusScheduled, model.AppointmentStatusCancelled, staff, " sick ")
	require.NotNil(t, e.Reason)
	assert.Equal(t, "sick", *e.Reason)
}
