package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/healthoffice-api/pkg/circuitbreaker"
	"github.com/jwalitptl/healthoffice-api/pkg/logger"
	"github.com/jwalitptl/healthoffice-api/pkg/metrics"
)

// fakeServer answers commands in a hook so no connection is ever dialled.
type fakeServer struct {
	mu        sync.Mutex
	published map[string][]string
	calls     int
	err       error
}

func (f *fakeServer) DialHook(next redis.DialHook) redis.DialHook { return next }

func (f *fakeServer) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (f *fakeServer) ProcessHook(_ redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls++
		if f.err != nil {
			return f.err
		}
		args := cmd.Args()
		channel := args[1].(string)
		f.published[channel] = append(f.published[channel], string(args[2].([]byte)))
		return nil
	}
}

func newTestBroker(t *testing.T, srv *fakeServer) (*RedisBroker, *metrics.Metrics) {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(srv)
	t.Cleanup(func() { _ = client.Close() })

	m := metrics.NewNop()
	return NewBroker(client, Config{BreakerFailures: 2, BreakerTimeout: time.Hour}, logger.Nop(), m), m
}

func TestPublish(t *testing.T) {
	srv := &fakeServer{published: map[string][]string{}}
	b, m := newTestBroker(t, srv)

	require.NoError(t, b.Publish(context.Background(), "appointments.lifecycle", []byte(`{"type":"appointment.booked"}`)))

	assert.Equal(t, []string{`{"type":"appointment.booked"}`}, srv.published["appointments.lifecycle"])
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RedisOperations.WithLabelValues("publish", "success")))
}

func TestPublishOpensBreaker(t *testing.T) {
	srv := &fakeServer{published: map[string][]string{}, err: errors.New("connection refused")}
	b, m := newTestBroker(t, srv)

	for i := 0; i < 2; i++ {
		assert.Error(t, b.Publish(context.Background(), "appointments.lifecycle", []byte(`{}`)))
	}

	err := b.Publish(context.Background(), "appointments.lifecycle", []byte(`{}`))
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, 2, srv.calls)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.BreakerState.WithLabelValues("redis-broker")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.RedisOperations.WithLabelValues("publish", "error")))
}
