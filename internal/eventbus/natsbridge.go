package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// NATSBridge mirrors bus messages to a NATS subject so other services in the
// deployment can observe plugin events. The in-process bus semantics are
// unchanged: the bridge is fire-and-forget and its failures are isolated by
// the bus.
type NATSBridge struct {
	conn    *nats.Conn
	subject string
}

// NewNATSBridge connects to NATS and returns a bridge publishing to subject.
func NewNATSBridge(url, subject string) (*NATSBridge, error) {
	if subject == "" {
		return nil, fmt.Errorf("nats bridge subject is required")
	}

	conn, err := nats.Connect(url, nats.Name("mmf-plugin-core"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	slog.Info("NATS event bridge connected", "url", url, "subject", subject)
	return &NATSBridge{conn: conn, subject: subject}, nil
}

// Forward publishes the message to the configured subject, suffixed with the
// event type (e.g. mmf.plugins.events.plugin.started).
func (b *NATSBridge) Forward(_ context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal event message: %w", err)
	}

	subject := b.subject
	if msg.EventType != "" {
		subject = subject + "." + msg.EventType
	}
	if err := b.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Close drains and closes the NATS connection.
func (b *NATSBridge) Close() {
	if b.conn != nil {
		_ = b.conn.Drain()
	}
}
