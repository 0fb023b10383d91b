// Package extension implements typed, named hooks with pluggable dispatch
// semantics. Handlers register against a point with a priority; dispatch
// behavior (pipeline, fan-out, notification, aggregation) is determined by
// the point's type. Handler failures are isolated: logged, excluded from
// aggregates, siblings unaffected.
package extension

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/burdettadam/marty-microservices-framework-sub004/internal/metrics"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/observability"
)

// Handler processes one dispatch of an extension point. For Filter points
// the return value becomes the running value; for Action/Provider points it
// is collected; for Hook points it is ignored.
type Handler func(ctx context.Context, data any) (any, error)

type registration struct {
	name     string
	priority int
	seq      int // registration sequence, keeps sorts stable on priority ties
	handler  Handler
}

type point struct {
	decl     Point
	handlers []registration
	nextSeq  int
}

// Manager owns extension point declarations and their handler lists.
type Manager struct {
	mu       sync.RWMutex
	points   map[string]*point
	recorder metrics.Recorder
}

// NewManager creates an empty extension point manager.
func NewManager(recorder metrics.Recorder) *Manager {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Manager{
		points:   make(map[string]*point),
		recorder: recorder,
	}
}

// RegisterPoint declares a new extension point. Names must be unique; the
// point's type is fixed for its whole lifetime.
func (m *Manager) RegisterPoint(decl Point) error {
	if decl.Name == "" {
		return fmt.Errorf("extension point name is required")
	}
	if !decl.Type.IsValid() {
		return fmt.Errorf("invalid extension point type: %s", decl.Type)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.points[decl.Name]; exists {
		return fmt.Errorf("extension point %s already registered", decl.Name)
	}
	m.points[decl.Name] = &point{decl: decl}
	return nil
}

// RegisterHandler attaches a handler to a point with the given priority.
// Handlers are kept sorted ascending by priority, stable on ties. Extension
// points are optional: registering against an unknown point name is a
// lenient no-op (logged at debug).
func (m *Manager) RegisterHandler(pointName, handlerName string, handler Handler, priority int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, exists := m.points[pointName]
	if !exists {
		slog.Debug("handler registered against unknown extension point, ignoring",
			"point", pointName, "handler", handlerName)
		return
	}

	p.nextSeq++
	p.handlers = append(p.handlers, registration{
		name:     handlerName,
		priority: priority,
		seq:      p.nextSeq,
		handler:  handler,
	})
	sort.SliceStable(p.handlers, func(i, j int) bool {
		if p.handlers[i].priority != p.handlers[j].priority {
			return p.handlers[i].priority < p.handlers[j].priority
		}
		return p.handlers[i].seq < p.handlers[j].seq
	})
}

// UnregisterHandlers removes every handler registered under handlerName,
// across all points. Used when a plugin is stopped.
func (m *Manager) UnregisterHandlers(handlerName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.points {
		kept := p.handlers[:0]
		for _, reg := range p.handlers {
			if reg.name != handlerName {
				kept = append(kept, reg)
			}
		}
		p.handlers = kept
	}
}

// Call dispatches an extension point by its declared type. Calling an
// unregistered point name degrades gracefully: the input is returned
// unchanged. Filter returns the transformed value; Action and Provider
// return []any; Hook returns nil.
func (m *Manager) Call(ctx context.Context, name string, data any) any {
	m.mu.RLock()
	p, exists := m.points[name]
	var decl Point
	var handlers []registration
	if exists {
		decl = p.decl
		handlers = make([]registration, len(p.handlers))
		copy(handlers, p.handlers)
	}
	m.mu.RUnlock()

	if !exists {
		return data
	}

	switch decl.Type {
	case TypeFilter:
		m.recorder.IncDispatch(name, metrics.DispatchFilter)
		return m.callFilter(ctx, name, handlers, data)
	case TypeAction:
		m.recorder.IncDispatch(name, metrics.DispatchAction)
		return m.callFanOut(ctx, name, handlers, data, false)
	case TypeHook:
		m.recorder.IncDispatch(name, metrics.DispatchHook)
		m.callFanOut(ctx, name, handlers, data, false)
		return nil
	case TypeProvider:
		m.recorder.IncDispatch(name, metrics.DispatchProvider)
		return m.callFanOut(ctx, name, handlers, data, true)
	default:
		return data
	}
}

// callFilter runs a strictly sequential pipeline in ascending priority
// order. A failed handler leaves the running value untouched and the
// pipeline continues.
func (m *Manager) callFilter(ctx context.Context, name string, handlers []registration, data any) any {
	value := data
	for _, reg := range handlers {
		result, err := m.invoke(ctx, reg, value)
		if err != nil {
			m.recorder.IncHandlerFailure("extension", reg.name)
			observability.WarnContext(ctx, "filter handler failed, continuing with previous value",
				slog.String("point", name),
				slog.String("handler", reg.name),
				slog.Any("error", err))
			continue
		}
		value = result
	}
	return value
}

// callFanOut runs handlers concurrently with barrier semantics, collecting
// results index-preserving in registration order. Failed handlers are
// excluded from the aggregate; when dropNil is set, nil results are dropped
// as well (Provider semantics).
func (m *Manager) callFanOut(ctx context.Context, name string, handlers []registration, data any, dropNil bool) []any {
	results := make([]any, len(handlers))
	failed := make([]bool, len(handlers))

	var wg sync.WaitGroup
	for i, reg := range handlers {
		wg.Add(1)
		go func(i int, reg registration) {
			defer wg.Done()
			result, err := m.invoke(ctx, reg, data)
			if err != nil {
				failed[i] = true
				m.recorder.IncHandlerFailure("extension", reg.name)
				observability.WarnContext(ctx, "extension handler failed, excluding result",
					slog.String("point", name),
					slog.String("handler", reg.name),
					slog.Any("error", err))
				return
			}
			results[i] = result
		}(i, reg)
	}
	wg.Wait()

	// Collection order is the handler registration order, never the
	// goroutine completion order.
	out := make([]any, 0, len(handlers))
	for i := range handlers {
		if failed[i] {
			continue
		}
		if dropNil && results[i] == nil {
			continue
		}
		out = append(out, results[i])
	}
	return out
}

// invoke runs a single handler, converting panics into errors.
func (m *Manager) invoke(ctx context.Context, reg registration, data any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler %s panicked: %v", reg.name, r)
		}
	}()
	return reg.handler(ctx, data)
}

// Describe returns the introspection view of one point.
func (m *Manager) Describe(name string) (Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, exists := m.points[name]
	if !exists {
		return Info{}, false
	}
	return infoFor(p), true
}

// List returns introspection views for all points, sorted by name.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Info, 0, len(m.points))
	for _, p := range m.points {
		out = append(out, infoFor(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func infoFor(p *point) Info {
	return Info{
		Name:         p.decl.Name,
		Type:         p.decl.Type,
		Description:  p.decl.Description,
		Contract:     p.decl.Contract,
		Required:     p.decl.Required,
		HandlerCount: len(p.handlers),
	}
}
