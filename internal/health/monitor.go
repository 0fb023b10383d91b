// Package health runs periodic health checks against plugins that expose
// one, aggregates the results and publishes status change events.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/burdettadam/marty-microservices-framework-sub004/internal/eventbus"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/metrics"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/plugin"
)

const eventSource = "health-monitor"

// Checker exposes the health providers the monitor sweeps. The plugin
// manager satisfies this.
type Checker interface {
	HealthProviders() map[string]plugin.HealthProvider
}

// Monitor schedules per-plugin health checks. Each provider runs on its own
// interval (HealthInterval, falling back to the monitor default) and status
// transitions are published as "plugin.health_changed" events.
type Monitor struct {
	checker         Checker
	bus             *eventbus.Bus
	recorder        metrics.Recorder
	defaultInterval time.Duration

	scheduler gocron.Scheduler

	mu      sync.RWMutex
	jobs    map[string]gocron.Job
	results map[string]plugin.HealthStatus
}

// NewMonitor creates a health monitor sweeping providers from checker.
func NewMonitor(checker Checker, bus *eventbus.Bus, recorder metrics.Recorder, defaultInterval time.Duration) (*Monitor, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create health scheduler: %w", err)
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if defaultInterval <= 0 {
		defaultInterval = 30 * time.Second
	}

	return &Monitor{
		checker:         checker,
		bus:             bus,
		recorder:        recorder,
		defaultInterval: defaultInterval,
		scheduler:       scheduler,
		jobs:            make(map[string]gocron.Job),
		results:         make(map[string]plugin.HealthStatus),
	}, nil
}

// Start schedules checks for the current provider set and begins running.
// Call Refresh after the plugin set changes.
func (m *Monitor) Start(ctx context.Context) error {
	if err := m.Refresh(ctx); err != nil {
		return err
	}
	m.scheduler.Start()
	slog.Info("health monitor started", "default_interval", m.defaultInterval)
	return nil
}

// Stop shuts the scheduler down, waiting for running checks.
func (m *Monitor) Stop() error {
	return m.scheduler.Shutdown()
}

// Refresh reconciles scheduled jobs with the current provider set: new
// providers get jobs, providers that disappeared get theirs removed.
func (m *Monitor) Refresh(ctx context.Context) error {
	providers := m.checker.HealthProviders()

	m.mu.Lock()
	defer m.mu.Unlock()

	for name, job := range m.jobs {
		if _, ok := providers[name]; ok {
			continue
		}
		if err := m.scheduler.RemoveJob(job.ID()); err != nil {
			slog.Warn("failed to remove health job", "plugin", name, "error", err)
		}
		delete(m.jobs, name)
		delete(m.results, name)
	}

	for name, provider := range providers {
		if _, ok := m.jobs[name]; ok {
			continue
		}
		interval := provider.HealthInterval()
		if interval <= 0 {
			interval = m.defaultInterval
		}

		name, provider := name, provider
		job, err := m.scheduler.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(func() { m.check(ctx, name, provider) }),
			gocron.WithName(fmt.Sprintf("health-%s", name)),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule health check for %s: %w", name, err)
		}
		m.jobs[name] = job
	}
	return nil
}

// Status returns the last observed status per plugin.
func (m *Monitor) Status() map[string]plugin.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]plugin.HealthStatus, len(m.results))
	for name, status := range m.results {
		out[name] = status
	}
	return out
}

// check runs one provider and records the outcome. A panicking provider is
// reported unhealthy rather than crashing the scheduler.
func (m *Monitor) check(ctx context.Context, name string, provider plugin.HealthProvider) {
	started := time.Now()

	status := func() (status plugin.HealthStatus) {
		defer func() {
			if r := recover(); r != nil {
				status = plugin.Unhealthy(fmt.Sprintf("health check panicked: %v", r))
			}
		}()
		return provider.CheckHealth(ctx)
	}()

	m.recorder.ObserveHealthCheck(name, time.Since(started), status.Status == plugin.HealthHealthy)

	m.mu.Lock()
	previous, seen := m.results[name]
	m.results[name] = status
	m.mu.Unlock()

	if seen && previous.Status == status.Status {
		return
	}

	slog.Info("plugin health changed",
		"plugin", name,
		"from", previous.Status,
		"to", status.Status,
		"message", status.Message)
	if m.bus != nil {
		m.bus.Publish(ctx, "plugin.health_changed", map[string]any{
			"plugin":  name,
			"from":    previous.Status,
			"to":      status.Status,
			"message": status.Message,
		}, eventSource)
	}
}
