// Package metrics provides Prometheus metrics for the detection orchestrator.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vein-detect/internal/domain/port"
)

// Manager owns the orchestrator metrics and the registry they live in.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	endpointAttempts   *prometheus.CounterVec
	submissions        *prometheus.CounterVec
	submissionDuration prometheus.Histogram
	liveArtifacts      prometheus.Gauge
	historyLength      prometheus.Gauge
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets custom buckets for the submission latency.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithRegistry sets a custom Prometheus registry.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// NewManager creates a metrics manager on its own registry so Go runtime
// collectors stay out of the output.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "vein",
		subsystem:        "detect",
		histogramBuckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.endpointAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "endpoint_attempts_total",
		Help:      "Prediction attempts per endpoint and outcome.",
	}, []string{"endpoint", "outcome"})
	m.submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "submissions_total",
		Help:      "Submissions by final outcome.",
	}, []string{"outcome"})
	m.submissionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "submission_duration_seconds",
		Help:      "Time from submit to result across all endpoint attempts.",
		Buckets:   m.histogramBuckets,
	})
	m.liveArtifacts = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "live_artifacts",
		Help:      "Result artifacts currently referenced.",
	})
	m.historyLength = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "history_length",
		Help:      "Entries in the session history.",
	})

	m.registry.MustRegister(
		m.endpointAttempts,
		m.submissions,
		m.submissionDuration,
		m.liveArtifacts,
		m.historyLength,
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Manager) ObserveAttempt(endpoint, outcome string) {
	m.endpointAttempts.WithLabelValues(endpoint, outcome).Inc()
}

func (m *Manager) ObserveSubmission(outcome string, elapsed time.Duration) {
	m.submissions.WithLabelValues(outcome).Inc()
	m.submissionDuration.Observe(elapsed.Seconds())
}

func (m *Manager) SetLiveArtifacts(n int) {
	m.liveArtifacts.Set(float64(n))
}

func (m *Manager) SetHistoryLength(n int) {
	m.historyLength.Set(float64(n))
}

var _ port.Recorder = (*Manager)(nil)
