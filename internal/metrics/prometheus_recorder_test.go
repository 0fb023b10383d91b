package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorderRegistersAndRecords(t *testing.T) {
	reg := prom.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ObserveLifecycleDuration("cache", "start", 50*time.Millisecond)
	rec.IncLifecycleResult("cache", "start", true)
	rec.SetPluginState("cache", "started")
	rec.IncDispatch("request.filter", DispatchFilter)
	rec.IncHandlerFailure("eventbus", "audit-handler")
	rec.ObserveHealthCheck("cache", 5*time.Millisecond, true)
	rec.SetPluginCount("started", 3)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}

	assert.True(t, names["mmf_plugin_lifecycle_duration_seconds"])
	assert.True(t, names["mmf_plugin_lifecycle_results_total"])
	assert.True(t, names["mmf_plugin_state"])
	assert.True(t, names["mmf_dispatches_total"])
	assert.True(t, names["mmf_handler_failures_total"])
	assert.True(t, names["mmf_health_check_results_total"])
	assert.True(t, names["mmf_plugins"])
}

func TestPluginStateGaugeIsExclusive(t *testing.T) {
	reg := prom.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.SetPluginState("cache", "initialized")
	rec.SetPluginState("cache", "started")

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, f := range families {
		if f.GetName() != "mmf_plugin_state" {
			continue
		}
		for _, m := range f.GetMetric() {
			var state string
			for _, l := range m.GetLabel() {
				if l.GetName() == "state" {
					state = l.GetValue()
				}
			}
			if state == "started" {
				assert.Equal(t, 1.0, m.GetGauge().GetValue())
			} else {
				assert.Equal(t, 0.0, m.GetGauge().GetValue(), "state %s should be cleared", state)
			}
		}
	}
}

func TestEachRecorderRegistersOnItsOwnRegistry(t *testing.T) {
	regA := prom.NewRegistry()
	regB := prom.NewRegistry()
	recA := NewPrometheusRecorder(regA)
	recB := NewPrometheusRecorder(regB)

	recA.SetPluginCount("started", 2)
	recB.SetPluginCount("started", 7)

	for _, tc := range []struct {
		reg  *prom.Registry
		want float64
	}{
		{regA, 2},
		{regB, 7},
	} {
		families, err := tc.reg.Gather()
		require.NoError(t, err)

		var got float64
		for _, f := range families {
			if f.GetName() != "mmf_plugins" {
				continue
			}
			for _, m := range f.GetMetric() {
				got = m.GetGauge().GetValue()
			}
		}
		assert.Equal(t, tc.want, got)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *PrometheusRecorder
	rec.ObserveLifecycleDuration("x", "load", time.Second)
	rec.IncLifecycleResult("x", "load", false)
	rec.SetPluginState("x", "error")
	rec.IncDispatch("p", DispatchAction)
	rec.IncHandlerFailure("c", "h")
	rec.ObserveHealthCheck("x", time.Second, false)
	rec.SetPluginCount("error", 1)
}
