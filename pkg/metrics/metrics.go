// Package metrics exposes Prometheus instruments for the queue and the
// external API channels.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the registry and the instruments the core updates.
type Metrics struct {
	Registry *prometheus.Registry

	RunsProcessed  *prometheus.CounterVec
	RunsActive     prometheus.Gauge
	QueueDepth     prometheus.Gauge
	APICalls       *prometheus.CounterVec
	APIErrors      *prometheus.CounterVec
	RateLimitHits  prometheus.Counter
	PhaseDurations *prometheus.HistogramVec
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		RunsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adscout_runs_processed_total",
			Help: "Terminal runs by status.",
		}, []string{"status"}),
		RunsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adscout_runs_active",
			Help: "Runs currently being processed by this pod.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adscout_queue_depth",
			Help: "Pending runs in the queue.",
		}),
		APICalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adscout_api_calls_total",
			Help: "External API calls by channel.",
		}, []string{"channel"}),
		APIErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adscout_api_errors_total",
			Help: "External API errors by channel.",
		}, []string{"channel"}),
		RateLimitHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adscout_rate_limit_hits_total",
			Help: "Archive rate-limit responses.",
		}),
		PhaseDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adscout_phase_duration_seconds",
			Help:    "Orchestrator phase durations.",
			Buckets: prometheus.ExponentialBuckets(0.1, 3, 10),
		}, []string{"phase"}),
	}

	reg.MustRegister(
		m.RunsProcessed,
		m.RunsActive,
		m.QueueDepth,
		m.APICalls,
		m.APIErrors,
		m.RateLimitHits,
		m.PhaseDurations,
	)
	return m
}
