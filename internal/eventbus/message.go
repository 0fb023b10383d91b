package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// Message is an immutable event delivered to subscribers. Messages are
// ephemeral: at-most-once, in-memory, never persisted.
type Message struct {
	EventType     string         `json:"event_type"`
	Payload       map[string]any `json:"payload,omitempty"`
	Source        string         `json:"source,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

// NewMessage builds a message with a fresh correlation id and timestamp.
// The payload map is copied so later mutation by the publisher cannot be
// observed by subscribers.
func NewMessage(eventType string, payload map[string]any, source string) Message {
	copied := make(map[string]any, len(payload))
	for k, v := range payload {
		copied[k] = v
	}
	return Message{
		EventType:     eventType,
		Payload:       copied,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: uuid.NewString(),
	}
}
