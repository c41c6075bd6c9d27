package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/healthoffice-api/internal/model"
)

var (
	// ErrNotFound is returned when a lookup by id matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when a compare-and-swap update finds the
	// row at a different version than the caller read.
	ErrVersionConflict = errors.New("version conflict")
	// ErrDuplicate is returned on a unique constraint violation.
	ErrDuplicate = errors.New("duplicate record")
)

// All repository interfaces in one file
type (
	AppointmentRepository interface {
		// CreateWithHistory inserts the appointment and its creation entry in
		// one transaction.
		CreateWithHistory(ctx context.Context, appointment *model.Appointment, entry *model.AppointmentStatusHistory) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		// UpdateWithHistory writes the appointment only if its stored version
		// still equals expectedVersion, and appends entry in the same
		// transaction. On success appointment.Version and UpdatedAt hold the
		// stored values.
		UpdateWithHistory(ctx context.Context, appointment *model.Appointment, expectedVersion int, entry *model.AppointmentStatusHistory) error
	}

	HistoryRepository interface {
		// ListByAppointment returns entries ordered by changed_at, then seq.
		ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*model.AppointmentStatusHistory, error)
		Get(ctx context.Context, id uuid.UUID) (*model.AppointmentStatusHistory, error)
	}

	QueueRepository interface {
		// NextNumber atomically increments and returns the counter for the key.
		NextNumber(ctx context.Context, date time.Time, serviceID uuid.UUID) (int, error)
	}

	ServiceRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Service, error)
	}

	MedicalRecordRepository interface {
		ExistsForAppointment(ctx context.Context, appointmentID uuid.UUID) (bool, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ProcessPending locks up to opts.Limit due events, hands each to fn
		// and records the outcome before releasing the lock.
		ProcessPending(ctx context.Context, opts OutboxProcessOptions, fn func(context.Context, *model.OutboxEvent) error) (OutboxProcessResult, error)
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)

type OutboxProcessOptions struct {
	Limit int
	// MaxAttempts is the number of failed deliveries after which an event is
	// marked FAILED instead of rescheduled.
	MaxAttempts int
	RetryDelay  time.Duration
}

type OutboxProcessResult struct {
	Processed int
	Retried   int
	Failed    int
}
