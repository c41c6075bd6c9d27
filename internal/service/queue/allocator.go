package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/healthoffice-api/internal/repository"
	"github.com/jwalitptl/healthoffice-api/pkg/metrics"
)

// Allocator hands out per-(date, service) queue numbers. Atomicity is owned
// by the repository; there is no in-process counter and no fallback path.
type Allocator struct {
	repo    repository.QueueRepository
	metrics *metrics.Metrics
}

func NewAllocator(repo repository.QueueRepository, m *metrics.Metrics) *Allocator {
	return &Allocator{repo: repo, metrics: m}
}

// Next returns a number unique within (date, serviceID). Numbers are
// monotonic; a booking that fails after allocation leaves a gap.
func (a *Allocator) Next(ctx context.Context, date time.Time, serviceID uuid.UUID) (int, error) {
	timer := prometheus.NewTimer(a.metrics.QueueLatency)
	defer timer.ObserveDuration()

	n, err := a.repo.NextNumber(ctx, date, serviceID)
	if err != nil {
		a.metrics.QueueAllocations.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("failed to allocate queue number for %s/%s: %w",
			date.Format("2006-01-02"), serviceID, err)
	}
	if n <= 0 {
		a.metrics.QueueAllocations.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("queue counter returned invalid number %d", n)
	}

	a.metrics.QueueAllocations.WithLabelValues("success").Inc()
	return n, nil
}
