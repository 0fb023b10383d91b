package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/burdettadam/marty-microservices-framework-sub004/internal/config"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/eventbus"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/extension"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/isolation"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/metrics"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/observability"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/registry"
)

// eventSource identifies the manager as the publisher of lifecycle events.
const eventSource = "plugin-manager"

// collectConcurrency bounds health/metrics collection fan-out.
const collectConcurrency = 8

// ConfigValidator is an optional contract letting a plugin reject its scoped
// configuration before initialize.
type ConfigValidator interface {
	ValidateConfig(cfg map[string]any) error
}

// Options wires the manager's collaborators. Zero-value fields fall back to
// no-op or freshly constructed defaults.
type Options struct {
	Config     *config.Config
	Logger     *slog.Logger
	Recorder   metrics.Recorder
	Bus        *eventbus.Bus
	Services   *registry.Registry
	Extensions *extension.Manager
	Isolation  *isolation.Manager
	Discoverer Discoverer
	Journal    TransitionJournal
}

type entry struct {
	plugin   Plugin
	desc     Descriptor
	state    State
	lastErr  error
	context  *Context
	subIDs   map[string][]uint64
	mw       Middleware
	health   HealthProvider
	provider MetricsProvider
}

// Manager is the top-level plugin orchestrator. It owns the plugin set and
// drives every lifecycle transition; plugins reach collaborators only
// through the Context handed to them at initialize.
type Manager struct {
	mu sync.RWMutex

	cfg        *config.Config
	logger     *slog.Logger
	recorder   metrics.Recorder
	bus        *eventbus.Bus
	services   *registry.Registry
	extensions *extension.Manager
	isolation  *isolation.Manager
	discoverer Discoverer
	journal    TransitionJournal

	plugins   map[string]*entry
	loadOrder []string
	resolved  []string
}

// NewManager constructs a manager from its collaborators.
func NewManager(opts Options) *Manager {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Bus == nil {
		opts.Bus = eventbus.NewBus(opts.Recorder)
	}
	if opts.Services == nil {
		opts.Services = registry.New()
	}
	if opts.Extensions == nil {
		opts.Extensions = extension.NewManager(opts.Recorder)
	}
	if opts.Isolation == nil {
		opts.Isolation = isolation.NewManager(isolation.DefaultLimits(), !opts.Config.Isolation.Enabled)
	}

	m := &Manager{
		cfg:        opts.Config,
		logger:     opts.Logger,
		recorder:   opts.Recorder,
		bus:        opts.Bus,
		services:   opts.Services,
		extensions: opts.Extensions,
		isolation:  opts.Isolation,
		discoverer: opts.Discoverer,
		journal:    opts.Journal,
		plugins:    make(map[string]*entry),
	}

	// A failing isolated call forces the plugin into its error state.
	m.isolation.SetViolationCallback(func(plugin string, err error) {
		m.mu.Lock()
		var notify func()
		if e, ok := m.plugins[plugin]; ok && e.state != StateError {
			notify = m.transitionLocked(context.Background(), plugin, e, StateError, err)
		}
		m.mu.Unlock()
		if notify != nil {
			notify()
		}
	})

	return m
}

// Bus returns the event bus shared with plugins.
func (m *Manager) Bus() *eventbus.Bus { return m.bus }

// Services returns the service registry shared with plugins.
func (m *Manager) Services() *registry.Registry { return m.services }

// Extensions returns the extension point manager shared with plugins.
func (m *Manager) Extensions() *extension.Manager { return m.extensions }

// DiscoverPlugins delegates to the configured Discoverer.
func (m *Manager) DiscoverPlugins(ctx context.Context, paths []string) ([]Descriptor, error) {
	if m.discoverer == nil {
		return nil, DiscoveryError("no discoverer configured", nil)
	}
	descriptors, err := m.discoverer.Discover(ctx, paths)
	if err != nil {
		return nil, DiscoveryError("plugin discovery failed", err)
	}
	return descriptors, nil
}

// LoadPlugin instantiates a descriptor's plugin and drives it to Loaded.
func (m *Manager) LoadPlugin(ctx context.Context, desc Descriptor) error {
	name := desc.Metadata.Name
	ctx = observability.WithPluginName(ctx, name)

	if err := desc.Metadata.Validate(); err != nil {
		return LoadError(name, "invalid plugin metadata", err)
	}
	if desc.Factory == nil {
		return LoadError(name, fmt.Sprintf("no plugin factory registered for %s.%s", desc.ModuleID, desc.ClassID), nil)
	}

	m.mu.Lock()
	if _, exists := m.plugins[name]; exists {
		m.mu.Unlock()
		return LoadError(name, "plugin name already loaded", nil)
	}
	m.mu.Unlock()

	p, err := instantiate(desc.Factory)
	if err != nil {
		return LoadError(name, "plugin factory failed", err)
	}

	started := time.Now()
	if err := m.isolation.Execute(ctx, name, p.Load); err != nil {
		m.recorder.IncLifecycleResult(name, "load", false)
		return LoadError(name, "plugin load failed", err)
	}
	m.recorder.ObserveLifecycleDuration(name, "load", time.Since(started))
	m.recorder.IncLifecycleResult(name, "load", true)

	m.mu.Lock()
	if _, exists := m.plugins[name]; exists {
		m.mu.Unlock()
		return LoadError(name, "plugin name already loaded", nil)
	}
	e := &entry{plugin: p, desc: desc, state: StateUnloaded, subIDs: map[string][]uint64{}}
	m.plugins[name] = e
	m.loadOrder = append(m.loadOrder, name)
	m.resolved = nil
	notify := m.transitionLocked(ctx, name, e, StateLoaded, nil)
	m.mu.Unlock()
	notify()

	observability.InfoContext(ctx, "plugin loaded",
		slog.String("version", desc.Metadata.Version),
		slog.String("kind", string(desc.Kind)))
	return nil
}

// ResolveDependencies topologically sorts the dependency graph of the
// currently loaded plugins. On failure (cycle or missing dependency) the
// manager state is left unmutated.
func (m *Manager) ResolveDependencies() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolveLocked()
}

func (m *Manager) resolveLocked() ([]string, error) {
	deps := make(map[string][]string, len(m.plugins))
	for name, e := range m.plugins {
		deps[name] = e.desc.Metadata.Dependencies
	}

	order, err := resolveOrder(m.loadOrder, deps)
	if err != nil {
		return nil, err
	}
	m.resolved = order
	return append([]string(nil), order...), nil
}

// InitializePlugin builds the plugin's context and drives Loaded ->
// Initialized. On failure the plugin moves to Error and the cause is
// returned wrapped.
func (m *Manager) InitializePlugin(ctx context.Context, name string) error {
	ctx = observability.WithPluginName(ctx, name)

	m.mu.Lock()
	e, ok := m.plugins[name]
	if !ok {
		m.mu.Unlock()
		return InvalidStateError(name, StateUnloaded, "initialize")
	}
	if e.state != StateLoaded {
		state := e.state
		m.mu.Unlock()
		return InvalidStateError(name, state, "initialize")
	}
	m.mu.Unlock()

	scoped := m.cfg.PluginConfig(name)
	if v, ok := e.plugin.(ConfigValidator); ok {
		if err := v.ValidateConfig(scoped); err != nil {
			m.failPlugin(ctx, name, e, err)
			return ConfigurationError(name, "plugin rejected its configuration", err)
		}
	}

	var sandbox *isolation.Sandbox
	if !m.isolation.Disabled() {
		sandbox = m.isolation.Sandbox(name)
	}
	pctx := NewContext(
		m.logger.With(slog.String("plugin.name", name)),
		m.cfg,
		m.recorder,
		m.bus,
		m.services,
		m.extensions,
		sandbox,
		scoped,
	)

	started := time.Now()
	err := m.isolation.Execute(ctx, name, func(ctx context.Context) error {
		return e.plugin.Initialize(ctx, pctx)
	})
	m.recorder.ObserveLifecycleDuration(name, "initialize", time.Since(started))
	m.recorder.IncLifecycleResult(name, "initialize", err == nil)
	if err != nil {
		m.failPlugin(ctx, name, e, err)
		return LifecycleError(name, "initialize", err)
	}

	m.mu.Lock()
	e.context = pctx
	notify := m.transitionLocked(ctx, name, e, StateInitialized, nil)
	m.mu.Unlock()
	notify()

	observability.InfoContext(ctx, "plugin initialized")
	return nil
}

// StartPlugin drives Initialized -> Started and registers the plugin into
// every capability registry its type satisfies.
func (m *Manager) StartPlugin(ctx context.Context, name string) error {
	ctx = observability.WithPluginName(ctx, name)

	m.mu.Lock()
	e, ok := m.plugins[name]
	if !ok {
		m.mu.Unlock()
		return InvalidStateError(name, StateUnloaded, "start")
	}
	if e.state != StateInitialized {
		state := e.state
		m.mu.Unlock()
		return InvalidStateError(name, state, "start")
	}
	m.mu.Unlock()

	started := time.Now()
	err := m.isolation.Execute(ctx, name, e.plugin.Start)
	m.recorder.ObserveLifecycleDuration(name, "start", time.Since(started))
	m.recorder.IncLifecycleResult(name, "start", err == nil)
	if err != nil {
		m.failPlugin(ctx, name, e, err)
		return LifecycleError(name, "start", err)
	}

	m.registerCapabilities(name, e)

	m.mu.Lock()
	notify := m.transitionLocked(ctx, name, e, StateStarted, nil)
	m.mu.Unlock()
	notify()

	observability.InfoContext(ctx, "plugin started")
	return nil
}

// StopPlugin calls the plugin's stop unconditionally, unregisters it from
// capability registries and transitions to Stopped. Failures are logged,
// never raised.
func (m *Manager) StopPlugin(ctx context.Context, name string) {
	ctx = observability.WithPluginName(ctx, name)

	m.mu.Lock()
	e, ok := m.plugins[name]
	m.mu.Unlock()
	if !ok {
		observability.WarnContext(ctx, "stop requested for unknown plugin")
		return
	}

	started := time.Now()
	err := m.isolation.Execute(ctx, name, e.plugin.Stop)
	m.recorder.ObserveLifecycleDuration(name, "stop", time.Since(started))
	m.recorder.IncLifecycleResult(name, "stop", err == nil)
	if err != nil {
		observability.WarnContext(ctx, "plugin stop failed, continuing teardown", slog.Any("error", err))
	}

	m.unregisterCapabilities(name, e)

	m.mu.Lock()
	notify := m.transitionLocked(ctx, name, e, StateStopped, err)
	m.mu.Unlock()
	notify()

	observability.InfoContext(ctx, "plugin stopped")
}

// UnloadPlugin stops the plugin if needed, calls its unload and removes it
// from the manager entirely.
func (m *Manager) UnloadPlugin(ctx context.Context, name string) error {
	ctx = observability.WithPluginName(ctx, name)

	m.mu.Lock()
	e, ok := m.plugins[name]
	if !ok {
		m.mu.Unlock()
		return InvalidStateError(name, StateUnloaded, "unload")
	}
	state := e.state
	m.mu.Unlock()

	if state == StateStarted || state == StateInitialized || state == StateError {
		m.StopPlugin(ctx, name)
	}

	if err := m.isolation.Execute(ctx, name, e.plugin.Unload); err != nil {
		observability.WarnContext(ctx, "plugin unload failed, removing anyway", slog.Any("error", err))
	}

	m.mu.Lock()
	// Re-read after the stop so the journal shows stopped -> unloaded,
	// not a second transition out of the pre-stop state.
	from := e.state
	delete(m.plugins, name)
	for i, n := range m.loadOrder {
		if n == name {
			m.loadOrder = append(m.loadOrder[:i], m.loadOrder[i+1:]...)
			break
		}
	}
	m.resolved = nil
	m.mu.Unlock()

	m.isolation.Remove(name)
	m.recordJournal(ctx, name, from.String(), StateUnloaded.String(), nil)
	m.bus.Publish(ctx, "plugin.unloaded", map[string]any{"plugin": name}, eventSource)
	observability.InfoContext(ctx, "plugin unloaded")
	return nil
}

// LoadAllPlugins discovers, loads, resolves and brings up all plugins:
// individual load failures are logged and skipped, but an initialize or
// start failure aborts the remaining sequence and propagates, because a
// half-started dependency chain is unsafe.
func (m *Manager) LoadAllPlugins(ctx context.Context, paths []string) error {
	descriptors, err := m.DiscoverPlugins(ctx, paths)
	if err != nil {
		return err
	}

	for _, desc := range descriptors {
		if err := m.LoadPlugin(ctx, desc); err != nil {
			observability.WarnContext(ctx, "skipping plugin that failed to load",
				slog.String("plugin", desc.Metadata.Name),
				slog.Any("error", err))
		}
	}

	order, err := m.ResolveDependencies()
	if err != nil {
		return err
	}

	for _, name := range order {
		if err := m.InitializePlugin(ctx, name); err != nil {
			return err
		}
	}
	for _, name := range order {
		if err := m.StartPlugin(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// StopAllPlugins stops every plugin in reverse dependency order,
// continuing past individual failures (best-effort teardown).
func (m *Manager) StopAllPlugins(ctx context.Context) {
	order, err := m.ResolveDependencies()
	if err != nil {
		// Fall back to reverse load order; teardown must still visit
		// every remaining plugin.
		m.mu.RLock()
		order = append([]string(nil), m.loadOrder...)
		m.mu.RUnlock()
		observability.WarnContext(ctx, "dependency resolution failed during shutdown, using load order",
			slog.Any("error", err))
	}

	for _, name := range reverse(order) {
		m.StopPlugin(ctx, name)
	}
}

// HandleEvent fans an event out to every started plugin subscribed to the
// event type, concurrently, isolating per-handler failures.
func (m *Manager) HandleEvent(ctx context.Context, eventType string, data map[string]any) {
	m.mu.RLock()
	var targets []*entry
	var names []string
	for _, name := range m.loadOrder {
		e := m.plugins[name]
		if e.state != StateStarted {
			continue
		}
		h, ok := e.plugin.(EventHandler)
		if !ok {
			continue
		}
		if _, subscribed := h.Subscriptions()[eventType]; !subscribed {
			continue
		}
		targets = append(targets, e)
		names = append(names, name)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for i, e := range targets {
		wg.Add(1)
		go func(name string, h EventHandler) {
			defer wg.Done()
			err := m.isolation.Execute(ctx, name, func(ctx context.Context) error {
				return h.HandleEvent(ctx, eventType, data)
			})
			if err != nil {
				m.recorder.IncHandlerFailure("manager", name)
				observability.WarnContext(ctx, "plugin event handler failed",
					slog.String("plugin", name),
					slog.String("event_type", eventType),
					slog.Any("error", err))
			}
		}(names[i], e.plugin.(EventHandler))
	}
	wg.Wait()
}

// CollectHealthStatus sweeps every started HealthProvider concurrently and
// aggregates the results by plugin name. Failing providers are logged and
// excluded.
func (m *Manager) CollectHealthStatus(ctx context.Context) map[string]HealthStatus {
	providers := m.HealthProviders()

	var mu sync.Mutex
	out := make(map[string]HealthStatus, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(collectConcurrency)
	for name, hp := range providers {
		name, hp := name, hp
		g.Go(func() error {
			var status HealthStatus
			started := time.Now()
			err := m.isolation.Execute(gctx, name, func(ctx context.Context) error {
				status = hp.CheckHealth(ctx)
				return nil
			})
			if err != nil {
				m.recorder.IncHandlerFailure("health", name)
				observability.WarnContext(gctx, "health check failed, excluding plugin from report",
					slog.String("plugin", name),
					slog.Any("error", err))
				return nil
			}
			m.recorder.ObserveHealthCheck(name, time.Since(started), status.Status == HealthHealthy)
			mu.Lock()
			out[name] = status
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// CollectMetrics sweeps every started MetricsProvider concurrently.
// Failing providers are logged and excluded.
func (m *Manager) CollectMetrics(ctx context.Context) map[string]map[string]any {
	m.mu.RLock()
	providers := make(map[string]MetricsProvider)
	for name, e := range m.plugins {
		if e.state == StateStarted && e.provider != nil {
			providers[name] = e.provider
		}
	}
	m.mu.RUnlock()

	var mu sync.Mutex
	out := make(map[string]map[string]any, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(collectConcurrency)
	for name, mp := range providers {
		name, mp := name, mp
		g.Go(func() error {
			var snapshot map[string]any
			err := m.isolation.Execute(gctx, name, func(ctx context.Context) error {
				snapshot = mp.CollectMetrics(ctx)
				return nil
			})
			if err != nil {
				m.recorder.IncHandlerFailure("metrics", name)
				observability.WarnContext(gctx, "metrics collection failed, excluding plugin",
					slog.String("plugin", name),
					slog.Any("error", err))
				return nil
			}
			mu.Lock()
			out[name] = snapshot
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// ProcessRequest runs a request through the middleware chain of started
// plugins, ordered ascending by priority. The terminal handler returns the
// request unchanged.
func (m *Manager) ProcessRequest(ctx context.Context, req any) (any, error) {
	m.mu.RLock()
	type mwEntry struct {
		name string
		mw   Middleware
	}
	var chain []mwEntry
	for _, name := range m.loadOrder {
		e := m.plugins[name]
		if e.state == StateStarted && e.mw != nil {
			chain = append(chain, mwEntry{name, e.mw})
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(chain, func(i, j int) bool {
		return chain[i].mw.Priority() < chain[j].mw.Priority()
	})

	next := func(ctx context.Context, req any) (any, error) {
		return req, nil
	}
	for i := len(chain) - 1; i >= 0; i-- {
		mw := chain[i].mw
		inner := next
		next = func(ctx context.Context, req any) (any, error) {
			return mw.Process(ctx, req, inner)
		}
	}
	return next(ctx, req)
}

// HealthProviders returns the started plugins implementing HealthProvider.
func (m *Manager) HealthProviders() map[string]HealthProvider {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]HealthProvider)
	for name, e := range m.plugins {
		if e.state == StateStarted && e.health != nil {
			out[name] = e.health
		}
	}
	return out
}

// PluginInfo returns the introspection view of one plugin.
func (m *Manager) PluginInfo(name string) (Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.plugins[name]
	if !ok {
		return Info{}, false
	}
	return infoFor(name, e), true
}

// Plugins returns introspection views for all plugins in load order.
func (m *Manager) Plugins() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Info, 0, len(m.loadOrder))
	for _, name := range m.loadOrder {
		out = append(out, infoFor(name, m.plugins[name]))
	}
	return out
}

// StateOf returns a plugin's current lifecycle state.
func (m *Manager) StateOf(name string) (State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.plugins[name]
	if !ok {
		return StateUnloaded, false
	}
	return e.state, true
}

// registerCapabilities wires a starting plugin into every capability
// registry its type structurally satisfies.
func (m *Manager) registerCapabilities(name string, e *entry) {
	if h, ok := e.plugin.(EventHandler); ok {
		for eventType, handlerName := range h.Subscriptions() {
			eventType := eventType
			id := m.bus.Subscribe(eventType, name+"."+handlerName, func(ctx context.Context, msg eventbus.Message) error {
				return m.isolation.Execute(ctx, name, func(ctx context.Context) error {
					return h.HandleEvent(ctx, msg.EventType, msg.Payload)
				})
			})
			m.mu.Lock()
			e.subIDs[eventType] = append(e.subIDs[eventType], id)
			m.mu.Unlock()
		}
	}

	if h, ok := e.plugin.(registry.Hook); ok {
		m.services.AddHook(name, h)
	}

	m.mu.Lock()
	if mw, ok := e.plugin.(Middleware); ok {
		e.mw = mw
	}
	if hp, ok := e.plugin.(HealthProvider); ok {
		e.health = hp
	}
	if mp, ok := e.plugin.(MetricsProvider); ok {
		e.provider = mp
	}
	m.mu.Unlock()
}

// unregisterCapabilities reverses registerCapabilities.
func (m *Manager) unregisterCapabilities(name string, e *entry) {
	m.mu.Lock()
	subIDs := e.subIDs
	e.subIDs = map[string][]uint64{}
	e.mw = nil
	e.health = nil
	e.provider = nil
	m.mu.Unlock()

	for eventType, ids := range subIDs {
		for _, id := range ids {
			m.bus.Unsubscribe(eventType, id)
		}
	}
	m.services.RemoveHook(name)
	m.extensions.UnregisterHandlers(name)
}

// failPlugin forces a plugin into the error state with its cause recorded.
// A plugin already in the error state (the violation callback may have beaten
// us there) keeps its first recorded cause.
func (m *Manager) failPlugin(ctx context.Context, name string, e *entry, cause error) {
	m.mu.Lock()
	if e.state == StateError {
		m.mu.Unlock()
		return
	}
	notify := m.transitionLocked(ctx, name, e, StateError, cause)
	m.mu.Unlock()
	notify()
}

// transitionLocked applies a state change and returns the notification to
// run once mu is released: journal recording and lifecycle event
// publication must not happen under the lock, since bus subscribers may
// call back into the manager.
func (m *Manager) transitionLocked(ctx context.Context, name string, e *entry, to State, cause error) func() {
	from := e.state
	e.state = to
	if cause != nil {
		e.lastErr = cause
	}

	m.recorder.SetPluginState(name, to.String())
	counts := make(map[string]int)
	for _, other := range m.plugins {
		counts[other.state.String()]++
	}
	for state, n := range counts {
		m.recorder.SetPluginCount(state, n)
	}

	return func() {
		m.recordJournal(ctx, name, from.String(), to.String(), cause)
		payload := map[string]any{"plugin": name, "from": from.String(), "to": to.String()}
		if cause != nil {
			payload["error"] = cause.Error()
		}
		m.bus.Publish(ctx, "plugin."+to.String(), payload, eventSource)
	}
}

func (m *Manager) recordJournal(ctx context.Context, name, from, to string, cause error) {
	if m.journal == nil {
		return
	}
	if err := m.journal.Record(ctx, name, from, to, cause); err != nil {
		observability.WarnContext(ctx, "failed to record lifecycle transition",
			slog.String("plugin", name),
			slog.Any("error", err))
	}
}

func infoFor(name string, e *entry) Info {
	info := Info{
		Name:         name,
		Version:      e.desc.Metadata.Version,
		Description:  e.desc.Metadata.Description,
		Dependencies: append([]string(nil), e.desc.Metadata.Dependencies...),
		Provides:     append([]string(nil), e.desc.Metadata.Provides...),
		State:        e.state.String(),
	}
	if e.lastErr != nil {
		info.LastError = e.lastErr.Error()
	}
	return info
}

// instantiate runs a factory, converting panics into errors.
func instantiate(factory Factory) (p Plugin, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin factory panicked: %v", r)
		}
	}()
	p = factory()
	if p == nil {
		return nil, fmt.Errorf("plugin factory returned nil")
	}
	return p, nil
}
