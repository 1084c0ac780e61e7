package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the collaboration engine
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsStarted  prometheus.Counter
	SessionsActive   prometheus.Gauge
	SessionsFinished *prometheus.CounterVec
	SessionDuration  prometheus.Histogram

	// Round metrics
	RoundsTotal   *prometheus.CounterVec
	RoundDuration *prometheus.HistogramVec

	// Contribution metrics
	ContributionsTotal prometheus.Counter
	TokensTotal        prometheus.Counter
	ParticipantErrors  *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		SessionsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "collab_sessions_started_total",
				Help: "Total number of collaboration sessions started",
			},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "collab_sessions_active",
				Help: "Number of collaboration sessions currently running",
			},
		),
		SessionsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collab_sessions_finished_total",
				Help: "Total number of finished sessions by outcome",
			},
			[]string{"outcome"},
		),
		SessionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "collab_session_duration_seconds",
				Help:    "Wall-clock duration of finished sessions in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		RoundsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collab_rounds_total",
				Help: "Total number of rounds by type and terminal status",
			},
			[]string{"type", "status"},
		),
		RoundDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "collab_round_duration_seconds",
				Help:    "Wall-clock duration of rounds in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),

		ContributionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "collab_contributions_total",
				Help: "Total number of accepted contributions",
			},
		),
		TokensTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "collab_tokens_total",
				Help: "Total tokens consumed across all contributions",
			},
		),
		ParticipantErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collab_participant_errors_total",
				Help: "Total participant query failures and timeouts",
			},
			[]string{"participant_id"},
		),
	}

	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.SessionsStarted)
	m.registry.MustRegister(m.SessionsActive)
	m.registry.MustRegister(m.SessionsFinished)
	m.registry.MustRegister(m.SessionDuration)

	m.registry.MustRegister(m.RoundsTotal)
	m.registry.MustRegister(m.RoundDuration)

	m.registry.MustRegister(m.ContributionsTotal)
	m.registry.MustRegister(m.TokensTotal)
	m.registry.MustRegister(m.ParticipantErrors)
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
