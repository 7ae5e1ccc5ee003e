package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the monitor exports. Each instance owns its
// registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	// --- measurement ---
	Ticks   *prometheus.CounterVec   // target, status
	Latency *prometheus.HistogramVec // target

	// --- engine ---
	LiveTargets  prometheus.Gauge
	Reconciles   *prometheus.CounterVec // action: added, removed, changed
	ConfigErrors prometheus.Counter

	// --- alerting ---
	Alerts         *prometheus.CounterVec // kind
	NotifyDropped  prometheus.Counter
	NotifyFailures *prometheus.CounterVec // channel

	// --- persistence ---
	SinkOutcomes   *prometheus.CounterVec // outcome
	BackendErrors  *prometheus.CounterVec // backend
	SinkDropped    prometheus.Counter
	RetentionPurge prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		Ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pingmonitor_ticks_total",
			Help: "Completed measurement ticks by classification",
		}, []string{"target", "status"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pingmonitor_latency_ms",
			Help:    "Measured round trip in milliseconds for reachable targets",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"target"}),

		LiveTargets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pingmonitor_live_targets",
			Help: "Targets with a running measurement loop",
		}),
		Reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pingmonitor_reconcile_changes_total",
			Help: "Targets added, removed or changed by reconciliation",
		}, []string{"action"}),
		ConfigErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pingmonitor_config_errors_total",
			Help: "Target set reads rejected as unreadable or invalid",
		}),

		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pingmonitor_alert_events_total",
			Help: "Alert events raised by kind (fire, clear)",
		}, []string{"kind"}),
		NotifyDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pingmonitor_notify_dropped_total",
			Help: "Alert events dropped because the dispatch queue was full",
		}),
		NotifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pingmonitor_notify_failures_total",
			Help: "Failed notification attempts per channel",
		}, []string{"channel"}),

		SinkOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pingmonitor_sink_outcomes_total",
			Help: "Result sink outcomes (ok, partial, failed)",
		}, []string{"outcome"}),
		BackendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pingmonitor_sink_backend_errors_total",
			Help: "Failed writes per sink backend",
		}, []string{"backend"}),
		SinkDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pingmonitor_sink_queue_dropped_total",
			Help: "Results a backend missed because its per-target queue was full",
		}),
		RetentionPurge: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pingmonitor_retention_deleted_rows_total",
			Help: "Rows deleted by the retention job",
		}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Ticks, m.Latency,
		m.LiveTargets, m.Reconciles, m.ConfigErrors,
		m.Alerts, m.NotifyDropped, m.NotifyFailures,
		m.SinkOutcomes, m.BackendErrors, m.SinkDropped, m.RetentionPurge,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Forget drops the per-target series of a removed target.
func (m *Metrics) Forget(target string) {
	m.Ticks.DeletePartialMatch(prometheus.Labels{"target": target})
	m.Latency.DeleteLabelValues(target)
}
