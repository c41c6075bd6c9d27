package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/healthoffice-api/internal/repository"
	"github.com/jwalitptl/healthoffice-api/pkg/logger"
	"github.com/jwalitptl/healthoffice-api/pkg/metrics"
)

type cleanupOutbox struct {
	repository.OutboxRepository
	before time.Time
	rows   int64
	err    error
}

func (o *cleanupOutbox) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	o.before = before
	return o.rows, o.err
}

func TestCleanupUsesRetentionCutoff(t *testing.T) {
	repo := &cleanupOutbox{rows: 7}
	m := metrics.NewNop()
	w := NewOutboxCleanupWorker(repo, 72*time.Hour, time.Hour, logger.Nop(), m)
	now := time.Date(2025, 6, 9, 2, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	rows, err := w.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), rows)
	assert.Equal(t, now.Add(-72*time.Hour), repo.before)
	assert.Equal(t, float64(7), testutil.ToFloat64(m.OutboxEventsCleaned))
}

func TestCleanupWrapsError(t *testing.T) {
	repo := &cleanupOutbox{err: errors.New("relation does not exist")}
	w := NewOutboxCleanupWorker(repo, time.Hour, time.Hour, logger.Nop(), metrics.NewNop())

	_, err := w.Cleanup(context.Background())
	assert.ErrorContains(t, err, "failed to cleanup outbox events")
}
