package messaging

import (
	"context"
)

// Broker publishes already-encoded messages to a named channel.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Close() error
}
