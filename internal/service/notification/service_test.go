package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/healthoffice-api/internal/model"
	"github.com/jwalitptl/healthoffice-api/internal/repository"
	"github.com/jwalitptl/healthoffice-api/pkg/logger"
	"github.com/jwalitptl/healthoffice-api/pkg/metrics"
)

type recordingOutbox struct {
	repository.OutboxRepository
	events []*model.OutboxEvent
	err    error
}

func (o *recordingOutbox) Create(_ context.Context, event *model.OutboxEvent) error {
	if o.err != nil {
		return o.err
	}
	o.events = append(o.events, event)
	return nil
}

func sampleEvent() model.LifecycleEvent {
	apt := &model.Appointment{
		PatientID:         uuid.New(),
		ServiceID:         uuid.New(),
		AppointmentDate:   time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		AppointmentNumber: 12,
		Status:            model.AppointmentStatusCancelled,
	}
	apt.ID = uuid.New()
	return model.NewLifecycleEvent(model.EventAppointmentCancelled, apt, model.Actor{ID: uuid.New(), Role: model.RolePatient}, "travel", time.Now())
}

func TestNotifyStagesOutboxEvent(t *testing.T) {
	outbox := &recordingOutbox{}
	m := metrics.NewNop()
	n := NewService(outbox, logger.Nop(), m)

	evt := sampleEvent()
	n.Notify(context.Background(), evt)

	require.Len(t, outbox.events, 1)
	assert.Equal(t, "appointment.cancelled", outbox.events[0].EventType)

	var decoded model.LifecycleEvent
	require.NoError(t, json.Unmarshal(outbox.events[0].Payload, &decoded))
	assert.Equal(t, evt.AppointmentID, decoded.AppointmentID)
	assert.Equal(t, "2025-06-10", decoded.AppointmentDate)
	assert.Equal(t, "travel", decoded.Reason)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("appointment.cancelled", "success")))
}

func TestNotifySwallowsFailure(t *testing.T) {
	m := metrics.NewNop()
	n := NewService(&recordingOutbox{err: errors.New("db down")}, logger.Nop(), m)

	assert.NotPanics(t, func() { n.Notify(context.Background(), sampleEvent()) })
	assert.Equal(t, float64(1), testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("appointment.cancelled", "error")))
}
