// Package registry provides in-process service bookkeeping for the plugin
// orchestration core. Entries live for the process lifetime only; there is
// no persistence and no remote registration.
package registry

import (
	"log/slog"
	"sync"
	"time"
)

// ServiceInfo describes a registered service.
type ServiceInfo struct {
	Name         string         `json:"name"`
	Info         map[string]any `json:"info,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	RegisteredAt time.Time      `json:"registered_at"`
}

// Hook observes registry mutations. Hooks are invoked synchronously after
// the registry state has been updated; a panicking hook is recovered and
// logged so registry operations never fail because of an observer.
type Hook interface {
	OnServiceRegister(info ServiceInfo)
	OnServiceUnregister(info ServiceInfo)
}

// DiscoveryHook optionally contributes extra results to discovery queries.
type DiscoveryHook interface {
	OnServiceDiscovery(query string) []ServiceInfo
}

// Registry is the name/tag based service registry. Last write wins on
// duplicate names.
type Registry struct {
	mu       sync.RWMutex
	services map[string]ServiceInfo
	order    []string // registration order, for deterministic listing
	hooks    map[string]Hook
}

// New creates an empty service registry.
func New() *Registry {
	return &Registry{
		services: make(map[string]ServiceInfo),
		hooks:    make(map[string]Hook),
	}
}

// Register upserts a service entry by name. Registering an existing name
// replaces its entry (last write wins).
func (r *Registry) Register(name string, info map[string]any, tags []string) ServiceInfo {
	entry := ServiceInfo{
		Name:         name,
		Info:         info,
		Tags:         append([]string(nil), tags...),
		RegisteredAt: time.Now().UTC(),
	}

	r.mu.Lock()
	if _, exists := r.services[name]; !exists {
		r.order = append(r.order, name)
	}
	r.services[name] = entry
	hooks := r.snapshotHooks()
	r.mu.Unlock()

	for _, h := range hooks {
		notifyHook(func() { h.OnServiceRegister(entry) })
	}
	return entry
}

// Unregister removes a service entry. Unknown names are a no-op and return false.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	entry, exists := r.services[name]
	if exists {
		delete(r.services, name)
		for i, n := range r.order {
			if n == name {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	hooks := r.snapshotHooks()
	r.mu.Unlock()

	if !exists {
		return false
	}
	for _, h := range hooks {
		notifyHook(func() { h.OnServiceUnregister(entry) })
	}
	return true
}

// Discover returns the entry registered under name.
func (r *Registry) Discover(name string) (ServiceInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.services[name]
	return info, ok
}

// DiscoverByTag returns all entries whose tags include tag, in registration
// order, plus any contributions from discovery hooks.
func (r *Registry) DiscoverByTag(tag string) []ServiceInfo {
	r.mu.RLock()
	var out []ServiceInfo
	for _, name := range r.order {
		entry := r.services[name]
		for _, t := range entry.Tags {
			if t == tag {
				out = append(out, entry)
				break
			}
		}
	}
	hooks := r.snapshotHooks()
	r.mu.RUnlock()

	for _, h := range hooks {
		dh, ok := h.(DiscoveryHook)
		if !ok {
			continue
		}
		var extra []ServiceInfo
		notifyHook(func() { extra = dh.OnServiceDiscovery(tag) })
		out = append(out, extra...)
	}
	return out
}

// List returns all entries in registration order.
func (r *Registry) List() []ServiceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ServiceInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.services[name])
	}
	return out
}

// Count returns the number of registered services.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.services)
}

// AddHook registers a mutation observer under a unique name, replacing any
// previous hook with the same name.
func (r *Registry) AddHook(name string, h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[name] = h
}

// RemoveHook removes a mutation observer.
func (r *Registry) RemoveHook(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.hooks, name)
}

// snapshotHooks must be called with mu held.
func (r *Registry) snapshotHooks() []Hook {
	out := make([]Hook, 0, len(r.hooks))
	for _, h := range r.hooks {
		out = append(out, h)
	}
	return out
}

func notifyHook(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("service registry hook panicked", "panic", rec)
		}
	}()
	fn()
}
