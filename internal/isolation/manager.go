// Package isolation provides best-effort per-plugin execution containment:
// resource ceilings, a module namespace guard, and conversion of failures
// inside guarded calls into violations the plugin manager can act on. A
// global switch disables containment entirely for trusted deployments.
package isolation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Manager owns per-plugin sandboxes and runs guarded calls through them.
type Manager struct {
	mu        sync.RWMutex
	sandboxes map[string]*Sandbox
	defaults  ResourceLimits
	disabled  bool

	// onViolation is invoked when a guarded call fails, letting the plugin
	// manager force the plugin into its error state.
	onViolation func(plugin string, err error)
}

// NewManager creates an isolation manager with default limits applied to
// sandboxes created on demand.
func NewManager(defaults ResourceLimits, disabled bool) *Manager {
	return &Manager{
		sandboxes: make(map[string]*Sandbox),
		defaults:  defaults,
		disabled:  disabled,
	}
}

// SetViolationCallback installs the callback invoked with the plugin name
// and cause whenever a guarded call fails.
func (m *Manager) SetViolationCallback(fn func(plugin string, err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onViolation = fn
}

// Disabled reports whether containment is globally switched off.
func (m *Manager) Disabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.disabled
}

// Sandbox returns the sandbox for a plugin, creating one with the default
// limits if needed.
func (m *Manager) Sandbox(plugin string) *Sandbox {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sb, ok := m.sandboxes[plugin]; ok {
		return sb
	}
	sb := NewSandbox(plugin, m.defaults)
	m.sandboxes[plugin] = sb
	return sb
}

// Configure installs plugin-specific limits, replacing any existing sandbox.
func (m *Manager) Configure(plugin string, limits ResourceLimits) *Sandbox {
	m.mu.Lock()
	defer m.mu.Unlock()

	sb := NewSandbox(plugin, limits)
	m.sandboxes[plugin] = sb
	return sb
}

// Remove drops a plugin's sandbox (on unload).
func (m *Manager) Remove(plugin string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sandboxes, plugin)
}

// Execute wraps a single plugin call in isolation: a thread slot is
// acquired (ceiling violations fail immediately), the namespace guard is
// installed for the duration of the call, and any failure inside the
// guarded call (error or panic) surfaces as a violation reported through
// the violation callback. When containment is disabled the call runs bare.
func (m *Manager) Execute(ctx context.Context, plugin string, fn func(ctx context.Context) error) error {
	if m.Disabled() {
		return fn(ctx)
	}

	sb := m.Sandbox(plugin)

	if err := sb.AcquireThread(); err != nil {
		m.reportViolation(plugin, err)
		return err
	}
	defer sb.ReleaseThread()

	sb.enterGuard()
	defer sb.exitGuard()

	err := m.runGuarded(ctx, plugin, fn)
	if err != nil {
		m.reportViolation(plugin, err)
		return err
	}
	return nil
}

// runGuarded runs the call, converting errors and panics into violations.
func (m *Manager) runGuarded(ctx context.Context, plugin string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ViolationError{
				Plugin: plugin,
				Limit:  "panic",
				Reason: fmt.Sprintf("%v", r),
			}
		}
	}()

	if callErr := fn(ctx); callErr != nil {
		var v *ViolationError
		if errors.As(callErr, &v) {
			return callErr
		}
		return &ViolationError{
			Plugin: plugin,
			Limit:  "guarded_call",
			Reason: callErr.Error(),
		}
	}
	return nil
}

func (m *Manager) reportViolation(plugin string, err error) {
	m.mu.RLock()
	cb := m.onViolation
	m.mu.RUnlock()

	slog.Warn("isolated plugin call failed", "plugin", plugin, "error", err)
	if cb != nil {
		cb(plugin, err)
	}
}
