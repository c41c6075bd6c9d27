package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/healthoffice-api/internal/model"
	"github.com/jwalitptl/healthoffice-api/internal/repository"
)

const appointmentColumns = `
	id, patient_id, service_id, doctor_id, appointment_date, appointment_time,
	time_block, appointment_number, card_type, lab_location, status, stage,
	checked_in_at, started_at, completed_at, cancelled_at, cancellation_reason,
	completed_by_id, version, created_at, updated_at`

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

func (r *appointmentRepository) CreateWithHistory(ctx context.Context, appointment *model.Appointment, entry *model.AppointmentStatusHistory) error {
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO appointments (
				id, patient_id, service_id, doctor_id, appointment_date, appointment_time,
				time_block, appointment_number, card_type, lab_location, status, stage,
				version, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1, NOW(), NOW())
			RETURNING version, created_at, updated_at
		`
		err := tx.QueryRowxContext(ctx, query,
			appointment.ID,
			appointment.PatientID,
			appointment.ServiceID,
			appointment.DoctorID,
			appointment.AppointmentDate.Format(model.AppointmentDateLayout),
			appointment.AppointmentTime,
			appointment.TimeBlock,
			appointment.AppointmentNumber,
			appointment.CardType,
			appointment.LabLocation,
			appointment.Status,
			appointment.Stage,
		).Scan(&appointment.Version, &appointment.CreatedAt, &appointment.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create appointment: %w", translate(err))
		}

		entry.AppointmentID = appointment.ID
		return insertHistory(ctx, tx, entry)
	})
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var appointment model.Appointment
	if err := r.db.GetContext(ctx, &appointment, query, id); err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", translate(err))
	}
	return &appointment, nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if filters != nil {
		if filters.ServiceID != uuid.Nil {
			add("service_id = $%d", filters.ServiceID)
		}
		if filters.PatientID != uuid.Nil {
			add("patient_id = $%d", filters.PatientID)
		}
		if filters.Status != "" {
			add("status = $%d", filters.Status)
		}
		if !filters.Date.IsZero() {
			add("appointment_date = $%d", filters.Date.Format(model.AppointmentDateLayout))
		}
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY appointment_date, service_id, appointment_number"

	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) UpdateWithHistory(ctx context.Context, appointment *model.Appointment, expectedVersion int, entry *model.AppointmentStatusHistory) error {
	var (
		version   int
		updatedAt time.Time
	)

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE appointments SET
				doctor_id = $1,
				status = $2,
				stage = $3,
				checked_in_at = $4,
				started_at = $5,
				completed_at = $6,
				cancelled_at = $7,
				cancellation_reason = $8,
				completed_by_id = $9,
				version = version + 1,
				updated_at = NOW()
			WHERE id = $10 AND version = $11
			RETURNING version, updated_at
		`
		err := tx.QueryRowxContext(ctx, query,
			appointment.DoctorID,
			appointment.Status,
			appointment.Stage,
			appointment.CheckedInAt,
			appointment.StartedAt,
			appointment.CompletedAt,
			appointment.CancelledAt,
			appointment.CancellationReason,
			appointment.CompletedByID,
			appointment.ID,
			expectedVersion,
		).Scan(&version, &updatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrVersionConflict
		}
		if err != nil {
			return fmt.Errorf("failed to update appointment: %w", err)
		}

		entry.AppointmentID = appointment.ID
		return insertHistory(ctx, tx, entry)
	})
	if err != nil {
		return err
	}

	appointment.Version = version
	appointment.UpdatedAt = updatedAt
	return nil
}
