package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message is the envelope every relayed event travels in. Subscribers switch
// on Type and decode Payload themselves.
type Message struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	PublishedAt time.Time       `json:"published_at"`
}

// Encode wraps payload in a Message. payload must already be valid JSON.
func Encode(id uuid.UUID, eventType string, payload json.RawMessage, at time.Time) ([]byte, error) {
	if !json.Valid(payload) {
		return nil, fmt.Errorf("payload of %s event %s is not valid JSON", eventType, id)
	}
	data, err := json.Marshal(Message{
		ID:          id,
		Type:        eventType,
		Payload:     payload,
		PublishedAt: at.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return data, nil
}

func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	return &msg, nil
}
