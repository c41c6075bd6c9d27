package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/healthoffice-api/internal/model"
	"github.com/jwalitptl/healthoffice-api/internal/repository"
	"github.com/jwalitptl/healthoffice-api/pkg/circuitbreaker"
	"github.com/jwalitptl/healthoffice-api/pkg/logger"
	"github.com/jwalitptl/healthoffice-api/pkg/messaging"
	"github.com/jwalitptl/healthoffice-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// RetryAttempts and RetryDelay bound the in-process publish retry of a
	// single delivery.
	RetryAttempts int
	RetryDelay    time.Duration
	// MaxAttempts is the number of failed deliveries after which an event is
	// parked as FAILED.
	MaxAttempts int
	Channel     string
}

type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be greater than 0")
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		return nil, fmt.Errorf("retry attempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		return nil, fmt.Errorf("retry delay must be greater than 0")
	}
	if config.MaxAttempts <= 0 {
		return nil, fmt.Errorf("max attempts must be greater than 0")
	}
	if config.Channel == "" {
		return nil, fmt.Errorf("channel is required")
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}, nil
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor", "channel", p.config.Channel, "batch_size", p.config.BatchSize)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// ProcessBatch relays one batch of due events and records each outcome.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (repository.OutboxProcessResult, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	result, err := p.repo.ProcessPending(ctx, repository.OutboxProcessOptions{
		Limit:       p.config.BatchSize,
		MaxAttempts: p.config.MaxAttempts,
		RetryDelay:  p.config.PollInterval,
	}, p.deliver)
	if err != nil {
		return result, fmt.Errorf("failed to process pending events: %w", err)
	}

	p.metrics.OutboxEventsProcessed.Add(float64(result.Processed))
	p.metrics.OutboxEventsRetried.Add(float64(result.Retried))
	p.metrics.OutboxEventsFailed.Add(float64(result.Failed))
	if result.Failed > 0 {
		p.logger.Warn(nil, "outbox events exhausted their attempts", "failed", result.Failed)
	}
	return result, nil
}

func (p *OutboxProcessor) deliver(ctx context.Context, event *model.OutboxEvent) error {
	msg, err := messaging.Encode(event.ID, event.EventType, event.Payload, p.now())
	if err != nil {
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.config.RetryDelay
	policy.MaxElapsedTime = 0
	bo := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(p.config.RetryAttempts-1)), ctx)

	err = backoff.Retry(func() error {
		publishErr := p.broker.Publish(ctx, p.config.Channel, msg)
		// An open breaker ends this delivery; the event is retried on a later poll.
		if errors.Is(publishErr, circuitbreaker.ErrOpen) {
			return backoff.Permanent(publishErr)
		}
		return publishErr
	}, bo)
	if err != nil {
		p.logger.Warn(err, "Failed to publish event",
			"event_id", event.ID.String(),
			"event_type", event.EventType,
			"retry_count", event.RetryCount)
		return err
	}
	return nil
}
