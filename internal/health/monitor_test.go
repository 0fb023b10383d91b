package health

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burdettadam/marty-microservices-framework-sub004/internal/eventbus"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/plugin"
)

type staticProvider struct {
	mu       sync.Mutex
	status   plugin.HealthStatus
	interval time.Duration
	panics   bool
}

func (p *staticProvider) CheckHealth(context.Context) plugin.HealthStatus {
	if p.panics {
		panic("check exploded")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *staticProvider) HealthInterval() time.Duration { return p.interval }

func (p *staticProvider) set(status plugin.HealthStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
}

type staticChecker struct {
	mu        sync.Mutex
	providers map[string]plugin.HealthProvider
}

func (c *staticChecker) HealthProviders() map[string]plugin.HealthProvider {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]plugin.HealthProvider, len(c.providers))
	for name, p := range c.providers {
		out[name] = p
	}
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestMonitorSweepsProviders(t *testing.T) {
	ctx := context.Background()
	checker := &staticChecker{providers: map[string]plugin.HealthProvider{
		"cache": &staticProvider{status: plugin.Healthy(), interval: 20 * time.Millisecond},
	}}

	m, err := NewMonitor(checker, nil, nil, 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	waitFor(t, 2*time.Second, func() bool {
		status, ok := m.Status()["cache"]
		return ok && status.Status == plugin.HealthHealthy
	})
}

func TestMonitorPublishesStatusChanges(t *testing.T) {
	ctx := context.Background()
	provider := &staticProvider{status: plugin.Healthy(), interval: 20 * time.Millisecond}
	checker := &staticChecker{providers: map[string]plugin.HealthProvider{"db": provider}}

	bus := eventbus.NewBus(nil)
	var mu sync.Mutex
	var changes []string
	bus.Subscribe("plugin.health_changed", "test", func(_ context.Context, msg eventbus.Message) error {
		mu.Lock()
		changes = append(changes, msg.Payload["to"].(string))
		mu.Unlock()
		return nil
	})

	m, err := NewMonitor(checker, bus, nil, 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) >= 1
	})

	provider.set(plugin.Unhealthy("connection refused"))

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) >= 2
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, plugin.HealthHealthy, changes[0])
	assert.Equal(t, plugin.HealthUnhealthy, changes[1])
}

func TestMonitorSurvivesPanickingProvider(t *testing.T) {
	ctx := context.Background()
	checker := &staticChecker{providers: map[string]plugin.HealthProvider{
		"broken": &staticProvider{panics: true, interval: 20 * time.Millisecond},
	}}

	m, err := NewMonitor(checker, nil, nil, 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	waitFor(t, 2*time.Second, func() bool {
		status, ok := m.Status()["broken"]
		return ok && status.Status == plugin.HealthUnhealthy
	})
}

func TestRefreshRemovesDepartedProviders(t *testing.T) {
	ctx := context.Background()
	checker := &staticChecker{providers: map[string]plugin.HealthProvider{
		"cache": &staticProvider{status: plugin.Healthy(), interval: 20 * time.Millisecond},
	}}

	m, err := NewMonitor(checker, nil, nil, 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	waitFor(t, 2*time.Second, func() bool {
		_, ok := m.Status()["cache"]
		return ok
	})

	checker.mu.Lock()
	checker.providers = map[string]plugin.HealthProvider{}
	checker.mu.Unlock()

	require.NoError(t, m.Refresh(ctx))
	assert.Empty(t, m.Status())
}
