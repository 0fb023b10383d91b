// Package eventbus provides the in-process publish/subscribe bus used by the
// plugin orchestration core. Delivery is at-most-once and non-durable; a
// subscriber failure is logged and isolated, never propagated to the
// publisher. Publish waits for every subscriber to settle before returning
// (barrier semantics), with no ordering guarantee among siblings.
package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/burdettadam/marty-microservices-framework-sub004/internal/metrics"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/observability"
)

// HandlerFunc processes a single delivered message.
type HandlerFunc func(ctx context.Context, msg Message) error

// Bridge mirrors published messages to an external transport. Bridge
// failures follow the same isolation contract as local subscribers.
type Bridge interface {
	Forward(ctx context.Context, msg Message) error
}

type subscription struct {
	id      uint64
	name    string
	handler HandlerFunc
}

// Bus is the in-memory event bus. The zero value is not usable; call NewBus.
type Bus struct {
	mu       sync.RWMutex
	subs     map[string][]subscription // insertion order per event type
	nextID   uint64
	recorder metrics.Recorder
	bridge   Bridge
}

// NewBus creates an empty bus recording dispatch metrics through recorder.
func NewBus(recorder metrics.Recorder) *Bus {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Bus{
		subs:     make(map[string][]subscription),
		recorder: recorder,
	}
}

// AttachBridge mirrors every published message to the given bridge.
// Passing nil detaches the current bridge.
func (b *Bus) AttachBridge(bridge Bridge) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bridge = bridge
}

// Subscribe registers a handler for an event type and returns the
// subscription id used for Unsubscribe. Handlers for one event type are kept
// in insertion order.
func (b *Bus) Subscribe(eventType, name string, handler HandlerFunc) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.subs[eventType] = append(b.subs[eventType], subscription{
		id:      b.nextID,
		name:    name,
		handler: handler,
	})
	return b.nextID
}

// Unsubscribe removes a subscription. Unknown ids are a no-op.
func (b *Bus) Unsubscribe(eventType string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[eventType]
	for i, s := range subs {
		if s.id == id {
			b.subs[eventType] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[eventType]) == 0 {
		delete(b.subs, eventType)
	}
}

// SubscriberCount returns the number of subscribers for an event type.
// Primarily intended for tests and diagnostics.
func (b *Bus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[eventType])
}

// Publish builds an immutable message and delivers it to all subscribers of
// the event type concurrently, waiting for the full set to settle. With zero
// subscribers it completes immediately. The returned message carries the
// generated correlation id.
func (b *Bus) Publish(ctx context.Context, eventType string, payload map[string]any, source string) Message {
	msg := NewMessage(eventType, payload, source)

	b.mu.RLock()
	targets := make([]subscription, len(b.subs[eventType]))
	copy(targets, b.subs[eventType])
	bridge := b.bridge
	b.mu.RUnlock()

	b.recorder.IncDispatch(eventType, metrics.DispatchEvent)

	ctx = observability.WithCorrelationID(ctx, msg.CorrelationID)

	var wg sync.WaitGroup
	for _, sub := range targets {
		wg.Add(1)
		go func(sub subscription) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.recorder.IncHandlerFailure("eventbus", sub.name)
					observability.ErrorContext(ctx, "event subscriber panicked",
						slog.String("event_type", eventType),
						slog.String("subscriber", sub.name),
						slog.Any("panic", r))
				}
			}()
			if err := sub.handler(ctx, msg); err != nil {
				b.recorder.IncHandlerFailure("eventbus", sub.name)
				observability.WarnContext(ctx, "event subscriber failed",
					slog.String("event_type", eventType),
					slog.String("subscriber", sub.name),
					slog.Any("error", err))
			}
		}(sub)
	}
	wg.Wait()

	if bridge != nil {
		if err := bridge.Forward(ctx, msg); err != nil {
			b.recorder.IncHandlerFailure("eventbus", "bridge")
			observability.WarnContext(ctx, "event bridge forward failed",
				slog.String("event_type", eventType),
				slog.Any("error", err))
		}
	}

	return msg
}
