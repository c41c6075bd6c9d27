package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jwalitptl/healthoffice-api/pkg/metrics"
)

type counterKey struct {
	date    string
	service uuid.UUID
}

// lockedCounters stands in for the single-statement upsert.
type lockedCounters struct {
	mu   sync.Mutex
	last map[counterKey]int
	err  error
}

func (c *lockedCounters) NextNumber(_ context.Context, date time.Time, serviceID uuid.UUID) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	k := counterKey{date.Format("2006-01-02"), serviceID}
	c.last[k]++
	return c.last[k], nil
}

func TestNextConcurrentUnique(t *testing.T) {
	m := metrics.NewNop()
	a := NewAllocator(&lockedCounters{last: map[counterKey]int{}}, m)
	date := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	service := uuid.New()

	const n = 200
	numbers := make([]int, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			num, err := a.Next(context.Background(), date, service)
			numbers[i] = num
			return err
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[int]bool, n)
	for _, num := range numbers {
		assert.False(t, seen[num], "duplicate number %d", num)
		seen[num] = true
	}
	for i := 1; i <= n; i++ {
		assert.True(t, seen[i], "missing number %d", i)
	}
	assert.Equal(t, float64(n), testutil.ToFloat64(m.QueueAllocations.WithLabelValues("success")))
}

func TestNextKeysDoNotShareCounters(t *testing.T) {
	a := NewAllocator(&lockedCounters{last: map[counterKey]int{}}, metrics.NewNop())
	date := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	s1, s2 := uuid.New(), uuid.New()

	n, err := a.Next(context.Background(), date, s1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = a.Next(context.Background(), date, s2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = a.Next(context.Background(), date.AddDate(0, 0, 1), s1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNextPropagatesStorageError(t *testing.T) {
	cause := errors.New("connection refused")
	m := metrics.NewNop()
	a := NewAllocator(&lockedCounters{err: cause}, m)

	_, err := a.Next(context.Background(), time.Now(), uuid.New())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.QueueAllocations.WithLabelValues("error")))
}
