package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/healthoffice-api/internal/model"
	"github.com/jwalitptl/healthoffice-api/internal/repository"
)

const historyColumns = `
	id, seq, appointment_id, domain, from_status, to_status, change_type,
	changed_by, changed_by_role, changed_at, is_reversion, reverted_from_history_id,
	old_doctor_id, new_doctor_id, reason, metadata`

type historyRepository struct {
	BaseRepository
}

func NewHistoryRepository(base BaseRepository) repository.HistoryRepository {
	return &historyRepository{base}
}

// insertHistory appends an entry inside the caller's transaction. seq and
// changed_at are assigned by the database.
func insertHistory(ctx context.Context, tx *sqlx.Tx, entry *model.AppointmentStatusHistory) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	query := `
		INSERT INTO appointment_status_history (
			id, appointment_id, domain, from_status, to_status, change_type,
			changed_by, changed_by_role, is_reversion, reverted_from_history_id,
			old_doctor_id, new_doctor_id, reason, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING seq, changed_at
	`
	err := tx.QueryRowxContext(ctx, query,
		entry.ID,
		entry.AppointmentID,
		entry.Domain,
		entry.FromStatus,
		entry.ToStatus,
		entry.ChangeType,
		entry.ChangedBy,
		entry.ChangedByRole,
		entry.IsReversion,
		entry.RevertedFromHistoryID,
		entry.OldDoctorID,
		entry.NewDoctorID,
		entry.Reason,
		entry.Metadata,
	).Scan(&entry.Seq, &entry.ChangedAt)
	if err != nil {
		return fmt.Errorf("failed to append history entry: %w", translate(err))
	}
	return nil
}

func (r *historyRepository) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*model.AppointmentStatusHistory, error) {
	query := `SELECT ` + historyColumns + `
		FROM appointment_status_history
		WHERE appointment_id = $1
		ORDER BY changed_at ASC, seq ASC`

	var entries []*model.AppointmentStatusHistory
	if err := r.db.SelectContext(ctx, &entries, query, appointmentID); err != nil {
		return nil, fmt.Errorf("failed to list appointment history: %w", err)
	}
	return entries, nil
}

func (r *historyRepository) Get(ctx context.Context, id uuid.UUID) (*model.AppointmentStatusHistory, error) {
	query := `SELECT ` + historyColumns + ` FROM appointment_status_history WHERE id = $1`

	var entry model.AppointmentStatusHistory
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, fmt.Errorf("failed to get history entry: %w", translate(err))
	}
	return &entry, nil
}
