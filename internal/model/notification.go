package model

import (
	"time"

	"github.com/google/uuid"
)

type LifecycleEventType string

const (
	EventAppointmentBooked      LifecycleEventType = "appointment.booked"
	EventAppointmentCheckedIn   LifecycleEventType = "appointment.checked_in"
	EventAppointmentStarted     LifecycleEventType = "appointment.started"
	EventAppointmentCompleted   LifecycleEventType = "appointment.completed"
	EventAppointmentCancelled   LifecycleEventType = "appointment.cancelled"
	EventAppointmentNoShow      LifecycleEventType = "appointment.no_show"
	EventAppointmentRescheduled LifecycleEventType = "appointment.rescheduled"
)

// EventForStatus maps a committed status to the event fired for it.
// Statuses without patient-facing meaning return false.
func EventForStatus(s AppointmentStatus) (LifecycleEventType, bool) {
	switch s {
	case AppointmentStatusCheckedIn:
		return EventAppointmentCheckedIn, true
	case AppointmentStatusInProgress:
		return EventAppointmentStarted, true
	case AppointmentStatusCompleted:
		return EventAppointmentCompleted, true
	case AppointmentStatusCancelled:
		return EventAppointmentCancelled, true
	case AppointmentStatusNoShow:
		return EventAppointmentNoShow, true
	case AppointmentStatusRescheduled:
		return EventAppointmentRescheduled, true
	}
	return "", false
}

// LifecycleEvent is the payload published after a committed change.
type LifecycleEvent struct {
	Type              LifecycleEventType `json:"type"`
	AppointmentID     uuid.UUID          `json:"appointment_id"`
	PatientID         uuid.UUID          `json:"patient_id"`
	ServiceID         uuid.UUID          `json:"service_id"`
	AppointmentDate   string             `json:"appointment_date"`
	AppointmentNumber int                `json:"appointment_number"`
	Status            AppointmentStatus  `json:"status"`
	Reason            string             `json:"reason,omitempty"`
	ActorID           uuid.UUID          `json:"actor_id"`
	OccurredAt        time.Time          `json:"occurred_at"`
}

func NewLifecycleEvent(t LifecycleEventType, apt *Appointment, actor Actor, reason string, at time.Time) LifecycleEvent {
	return LifecycleEvent{
		Type:              t,
		AppointmentID:     apt.ID,
		PatientID:         apt.PatientID,
		ServiceID:         apt.ServiceID,
		AppointmentDate:   apt.AppointmentDate.Format(AppointmentDateLayout),
		AppointmentNumber: apt.AppointmentNumber,
		Status:            apt.Status,
		Reason:            reason,
		ActorID:           actor.ID,
		OccurredAt:        at,
	}
}
