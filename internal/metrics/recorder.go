// Package metrics defines the observability hooks recorded by the plugin
// orchestration core. Implementations may forward to Prometheus or discard
// everything (NoopRecorder) when metrics are not configured.
package metrics

import "time"

// DispatchKind labels extension point and event bus dispatch counters.
type DispatchKind string

const (
	DispatchFilter   DispatchKind = "filter"
	DispatchAction   DispatchKind = "action"
	DispatchHook     DispatchKind = "hook"
	DispatchProvider DispatchKind = "provider"
	DispatchEvent    DispatchKind = "event"
)

// Recorder defines observability hooks for plugin lifecycle and dispatch.
// All methods must be safe on nil receivers when using NoopRecorder
// (allowing optional injection).
type Recorder interface {
	ObserveLifecycleDuration(plugin, phase string, d time.Duration)
	IncLifecycleResult(plugin, phase string, success bool)
	SetPluginState(plugin, state string)
	IncDispatch(target string, kind DispatchKind)
	IncHandlerFailure(component, handler string)
	ObserveHealthCheck(plugin string, d time.Duration, healthy bool)
	SetPluginCount(state string, n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveLifecycleDuration(string, string, time.Duration) {}
func (NoopRecorder) IncLifecycleResult(string, string, bool)                {}
func (NoopRecorder) SetPluginState(string, string)                          {}
func (NoopRecorder) IncDispatch(string, DispatchKind)                       {}
func (NoopRecorder) IncHandlerFailure(string, string)                       {}
func (NoopRecorder) ObserveHealthCheck(string, time.Duration, bool)         {}
func (NoopRecorder) SetPluginCount(string, int)                             {}
