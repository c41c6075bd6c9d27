package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/healthoffice-api/internal/model"
	"github.com/jwalitptl/healthoffice-api/internal/repository"
	"github.com/jwalitptl/healthoffice-api/pkg/logger"
	"github.com/jwalitptl/healthoffice-api/pkg/metrics"
)

// Notifier receives lifecycle events after a change has committed. It never
// reports failure to the caller.
type Notifier interface {
	Notify(ctx context.Context, evt model.LifecycleEvent)
}

type service struct {
	outbox  repository.OutboxRepository
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewService returns a Notifier that stages events in the outbox for the
// relay worker.
func NewService(outbox repository.OutboxRepository, log *logger.Logger, m *metrics.Metrics) Notifier {
	return &service{outbox: outbox, logger: log, metrics: m}
}

func (s *service) Notify(ctx context.Context, evt model.LifecycleEvent) {
	if err := s.enqueue(ctx, evt); err != nil {
		s.metrics.NotificationsTotal.WithLabelValues(string(evt.Type), "error").Inc()
		s.logger.Warn(err, "failed to dispatch lifecycle notification",
			"appointment_id", evt.AppointmentID.String(),
			"event_type", string(evt.Type))
		return
	}
	s.metrics.NotificationsTotal.WithLabelValues(string(evt.Type), "success").Inc()
}

func (s *service) enqueue(ctx context.Context, evt model.LifecycleEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := s.outbox.Create(ctx, &model.OutboxEvent{
		EventType: string(evt.Type),
		Payload:   payload,
	}); err != nil {
		return fmt.Errorf("failed to stage event: %w", err)
	}
	return nil
}
