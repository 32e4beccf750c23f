package poller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// MetricsNamespace is the namespace for all poller metrics.
	MetricsNamespace = "llmredi"

	// MetricsSubsystem is the subsystem for poller metrics.
	MetricsSubsystem = "poller"
)

// Poller names used as the "poller" label.
const (
	pollerJobs     = "jobs"
	pollerOptimize = "optimize"
	pollerActive   = "active"
)

// Metrics holds the Prometheus metrics for all pollers.
type Metrics struct {
	TicksTotal          *prometheus.CounterVec
	FetchesTotal        *prometheus.CounterVec
	TickDurationSeconds *prometheus.HistogramVec
	TrackedJobs         *prometheus.GaugeVec
	StalledJobsTotal    prometheus.Counter
}

// NewMetrics creates and registers the poller metrics on reg. A nil reg
// gets a private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		TicksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "ticks_total",
				Help:      "Total number of poll ticks",
			},
			[]string{"poller"},
		),
		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "fetches_total",
				Help:      "Total number of job detail fetches",
			},
			[]string{"poller", "result"},
		),
		TickDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "tick_duration_seconds",
				Help:      "Duration of a poll tick in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"poller"},
		),
		TrackedJobs: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "tracked_jobs",
				Help:      "Number of jobs fetched by the last tick",
			},
			[]string{"poller"},
		),
		StalledJobsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "stalled_jobs_total",
				Help:      "Total number of jobs that exceeded the polling budget",
			},
		),
	}
}

func (m *Metrics) fetched(poller string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.FetchesTotal.WithLabelValues(poller, result).Inc()
}
