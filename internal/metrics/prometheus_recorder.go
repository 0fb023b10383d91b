package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	lifecycleDuration *prom.HistogramVec
	lifecycleResults  *prom.CounterVec
	pluginState       *prom.GaugeVec
	pluginCount       *prom.GaugeVec
	dispatches        *prom.CounterVec
	handlerFailures   *prom.CounterVec
	healthDuration    *prom.HistogramVec
	healthResults     *prom.CounterVec
}

// NewPrometheusRecorder constructs the metric vectors and registers them on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		lifecycleDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "mmf",
			Name:      "plugin_lifecycle_duration_seconds",
			Help:      "Duration of plugin lifecycle phases (load, initialize, start, stop, unload)",
			Buckets:   prom.DefBuckets,
		}, []string{"plugin", "phase"}),
		lifecycleResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "mmf",
			Name:      "plugin_lifecycle_results_total",
			Help:      "Lifecycle phase outcomes by plugin",
		}, []string{"plugin", "phase", "result"}),
		pluginState: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "mmf",
			Name:      "plugin_state",
			Help:      "Current lifecycle state per plugin (1 for the active state, 0 otherwise)",
		}, []string{"plugin", "state"}),
		pluginCount: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "mmf",
			Name:      "plugins",
			Help:      "Number of managed plugins by state",
		}, []string{"state"}),
		dispatches: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "mmf",
			Name:      "dispatches_total",
			Help:      "Extension point and event bus dispatches by target and kind",
		}, []string{"target", "kind"}),
		handlerFailures: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "mmf",
			Name:      "handler_failures_total",
			Help:      "Isolated handler failures by component",
		}, []string{"component", "handler"}),
		healthDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "mmf",
			Name:      "health_check_duration_seconds",
			Help:      "Duration of plugin health checks",
			Buckets:   prom.DefBuckets,
		}, []string{"plugin"}),
		healthResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "mmf",
			Name:      "health_check_results_total",
			Help:      "Health check outcomes by plugin",
		}, []string{"plugin", "result"}),
	}
	reg.MustRegister(pr.lifecycleDuration, pr.lifecycleResults, pr.pluginState,
		pr.pluginCount, pr.dispatches, pr.handlerFailures, pr.healthDuration, pr.healthResults)
	return pr
}

func (p *PrometheusRecorder) ObserveLifecycleDuration(plugin, phase string, d time.Duration) {
	if p == nil || p.lifecycleDuration == nil {
		return
	}
	p.lifecycleDuration.WithLabelValues(plugin, phase).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncLifecycleResult(plugin, phase string, success bool) {
	if p == nil || p.lifecycleResults == nil {
		return
	}
	p.lifecycleResults.WithLabelValues(plugin, phase, resultLabel(success)).Inc()
}

func (p *PrometheusRecorder) SetPluginState(plugin, state string) {
	if p == nil || p.pluginState == nil {
		return
	}
	for _, s := range []string{"unloaded", "loaded", "initialized", "started", "stopped", "error"} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		p.pluginState.WithLabelValues(plugin, s).Set(v)
	}
}

func (p *PrometheusRecorder) IncDispatch(target string, kind DispatchKind) {
	if p == nil || p.dispatches == nil {
		return
	}
	p.dispatches.WithLabelValues(target, string(kind)).Inc()
}

func (p *PrometheusRecorder) IncHandlerFailure(component, handler string) {
	if p == nil || p.handlerFailures == nil {
		return
	}
	p.handlerFailures.WithLabelValues(component, handler).Inc()
}

func (p *PrometheusRecorder) ObserveHealthCheck(plugin string, d time.Duration, healthy bool) {
	if p == nil || p.healthDuration == nil {
		return
	}
	p.healthDuration.WithLabelValues(plugin).Observe(d.Seconds())
	p.healthResults.WithLabelValues(plugin, resultLabel(healthy)).Inc()
}

func (p *PrometheusRecorder) SetPluginCount(state string, n int) {
	if p == nil || p.pluginCount == nil {
		return
	}
	p.pluginCount.WithLabelValues(state).Set(float64(n))
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
