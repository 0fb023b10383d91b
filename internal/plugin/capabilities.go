package plugin

import (
	"context"
	"time"

	"github.com/burdettadam/marty-microservices-framework-sub004/internal/registry"
)

// Capability interfaces are optional behavioral contracts a plugin may
// implement to participate in a cross-cutting concern. The manager detects
// them with interface assertions when a plugin starts and registers the
// plugin into the matching capability registries; stopping reverses the
// registrations.

// ServiceHook observes service registry mutations. It matches
// registry.Hook, so a plugin implementing it is wired straight into the
// registry; implementing registry.DiscoveryHook as well lets the plugin
// contribute discovery results.
type ServiceHook interface {
	OnServiceRegister(info registry.ServiceInfo)
	OnServiceUnregister(info registry.ServiceInfo)
}

// Middleware participates in the request processing chain. Chains are
// ordered ascending by Priority.
type Middleware interface {
	// Process handles a request and calls next to continue the chain.
	Process(ctx context.Context, req any, next func(context.Context, any) (any, error)) (any, error)

	// Priority orders this middleware within the chain (lower runs first).
	Priority() int
}

// EventHandler subscribes a plugin to event bus traffic.
type EventHandler interface {
	// Subscriptions maps event types to a handler name used for logging
	// and unregistration.
	Subscriptions() map[string]string

	// HandleEvent processes one delivered event.
	HandleEvent(ctx context.Context, eventType string, data map[string]any) error
}

// HealthProvider contributes periodic health checks.
type HealthProvider interface {
	// CheckHealth reports the plugin's current health.
	CheckHealth(ctx context.Context) HealthStatus

	// HealthInterval is the desired interval between checks; zero means
	// the monitor's default interval.
	HealthInterval() time.Duration
}

// MetricsProvider contributes metric snapshots to collection sweeps.
type MetricsProvider interface {
	// CollectMetrics returns the current metric values.
	CollectMetrics(ctx context.Context) map[string]any

	// MetricDefinitions documents the collected metric names.
	MetricDefinitions() map[string]string
}

// HealthStatus reports the outcome of one health check.
type HealthStatus struct {
	Status    string    `json:"status"` // healthy, degraded, unhealthy
	Message   string    `json:"message,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// Healthy returns a healthy status stamped now.
func Healthy() HealthStatus {
	return HealthStatus{Status: HealthHealthy, CheckedAt: time.Now().UTC()}
}

// Unhealthy returns an unhealthy status with a reason.
func Unhealthy(message string) HealthStatus {
	return HealthStatus{Status: HealthUnhealthy, Message: message, CheckedAt: time.Now().UTC()}
}

// Degraded returns a degraded status with a reason.
func Degraded(message string) HealthStatus {
	return HealthStatus{Status: HealthDegraded, Message: message, CheckedAt: time.Now().UTC()}
}
