package appointment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/healthoffice-api/internal/clock"
	"github.com/jwalitptl/healthoffice-api/internal/model"
	"github.com/jwalitptl/healthoffice-api/internal/service/history"
	apperrors "github.com/jwalitptl/healthoffice-api/pkg/errors"
)

// Book allocates a queue number and creates the appointment together with its
// creation history entry. An allocator failure fails the booking.
func (s *Service) Book(ctx context.Context, req model.BookAppointmentRequest, actor model.Actor) (*model.Appointment, error) {
	apt, err := s.newAppointment(ctx, req, actor)
	if err != nil {
		s.logger.Warn(err, "booking rejected",
			"patient_id", req.PatientID.String(),
			"service_id", req.ServiceID.String(),
			"actor_id", actor.ID.String())
		return nil, err
	}

	number, err := s.allocator.Next(ctx, apt.AppointmentDate, apt.ServiceID)
	if err != nil {
		s.logger.Error(err, "queue allocation failed", "service_id", apt.ServiceID.String())
		return nil, apperrors.Persistence(err)
	}
	apt.AppointmentNumber = number

	entry := history.Created(apt.Status, actor)
	if err := s.repo.CreateWithHistory(ctx, apt, entry); err != nil {
		s.record(entry, "error")
		s.logger.Error(err, "failed to create appointment",
			"service_id", apt.ServiceID.String(), "appointment_number", number)
		return nil, apperrors.Persistence(err)
	}

	s.record(entry, "success")
	s.logger.Info("appointment booked",
		"appointment_id", apt.ID.String(),
		"appointment_date", apt.AppointmentDate.Format(model.AppointmentDateLayout),
		"appointment_number", number,
		"status", string(apt.Status))
	s.dispatch(ctx, model.NewLifecycleEvent(model.EventAppointmentBooked, apt, actor, "", s.clock.Now()))
	return apt, nil
}

func (s *Service) newAppointment(ctx context.Context, req model.BookAppointmentRequest, actor model.Actor) (*model.Appointment, error) {
	if req.PatientID == uuid.Nil || req.ServiceID == uuid.Nil {
		return nil, apperrors.BadRequest("patient_id and service_id are required", nil)
	}
	if actor.Role == model.RolePatient && req.PatientID != actor.ID {
		return nil, apperrors.PolicyDenied("ownership", "patients may only book for themselves")
	}

	status := req.InitialStatus
	if status == "" {
		status = model.AppointmentStatusScheduled
	}
	if status != model.AppointmentStatusPending && status != model.AppointmentStatusScheduled {
		return nil, apperrors.BadRequest("initial status must be pending or scheduled", nil)
	}

	if !req.TimeBlock.Valid() {
		return nil, apperrors.BadRequest("time_block must be AM or PM", nil)
	}
	slot := strings.TrimSpace(req.Time)
	if slot != "" {
		if _, err := time.Parse(model.AppointmentTimeLayout, slot); err != nil {
			return nil, apperrors.BadRequest("appointment_time must be HH:MM", err)
		}
	}

	date, err := clock.ParseDate(req.Date, s.clock.Location())
	if err != nil {
		return nil, apperrors.BadRequest("appointment_date must be YYYY-MM-DD", err)
	}
	if date.Before(clock.Today(s.clock)) {
		return nil, apperrors.BadRequest("appointment_date is in the past", nil)
	}

	svc, err := s.catalog.Get(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if !svc.Active {
		return nil, apperrors.PolicyDenied("service", "service is not accepting bookings")
	}
	if req.CardType != nil && svc.Category != model.ServiceCategoryHealthCard {
		return nil, apperrors.BadRequest("card_type only applies to health card services", nil)
	}

	apt := &model.Appointment{
		PatientID:       req.PatientID,
		ServiceID:       req.ServiceID,
		AppointmentDate: date,
		AppointmentTime: slot,
		TimeBlock:       req.TimeBlock,
		CardType:        req.CardType,
		LabLocation:     req.LabLocation,
		Status:          status,
	}
	apt.ID = uuid.New()
	return apt, nil
}
