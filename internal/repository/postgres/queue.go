package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/healthoffice-api/internal/model"
	"github.com/jwalitptl/healthoffice-api/internal/repository"
)

type queueRepository struct {
	BaseRepository
}

func NewQueueRepository(base BaseRepository) repository.QueueRepository {
	return &queueRepository{base}
}

// NextNumber increments the (date, service) counter in a single upsert. The
// row lock taken by ON CONFLICT DO UPDATE serialises concurrent callers on
// the same key only.
func (r *queueRepository) NextNumber(ctx context.Context, date time.Time, serviceID uuid.UUID) (int, error) {
	query := `
		INSERT INTO queue_counters (queue_date, service_id, last_number, updated_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (queue_date, service_id)
		DO UPDATE SET last_number = queue_counters.last_number + 1, updated_at = NOW()
		RETURNING last_number
	`

	var number int
	if err := r.db.QueryRowxContext(ctx, query, date.Format(model.AppointmentDateLayout), serviceID).Scan(&number); err != nil {
		return 0, fmt.Errorf("failed to allocate queue number: %w", err)
	}
	return number, nil
}
