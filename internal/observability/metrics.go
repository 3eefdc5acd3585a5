package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the assistant's Prometheus collectors on their own registry.
type Metrics struct {
	registry *prometheus.Registry

	turnsTotal          *prometheus.CounterVec
	transitionsTotal    *prometheus.CounterVec
	validationErrors    *prometheus.CounterVec
	bookingsTotal       *prometheus.CounterVec
	generationTotal     *prometheus.CounterVec
	generationDuration  prometheus.Histogram
	submissionDuration  prometheus.Histogram
	activeSessions      prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers every collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		turnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sanatorium_dialog_turns_total",
				Help: "Total number of processed dialog turns by the stage that handled them",
			},
			[]string{"stage"},
		),
		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sanatorium_dialog_transitions_total",
				Help: "Stage transitions",
			},
			[]string{"from", "to"},
		),
		validationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sanatorium_dialog_validation_errors_total",
				Help: "Rejected field values by error kind",
			},
			[]string{"kind"},
		),
		bookingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sanatorium_bookings_total",
				Help: "Booking attempts by outcome",
			},
			[]string{"outcome"},
		),
		generationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sanatorium_generation_total",
				Help: "Text generation calls by prompt and status",
			},
			[]string{"prompt", "status"},
		),
		generationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sanatorium_generation_duration_seconds",
				Help:    "Text generation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		submissionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sanatorium_booking_submission_duration_seconds",
				Help:    "Booking submission latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sanatorium_sessions",
				Help: "Number of sessions held in memory",
			},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sanatorium_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sanatorium_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.turnsTotal,
		m.transitionsTotal,
		m.validationErrors,
		m.bookingsTotal,
		m.generationTotal,
		m.generationDuration,
		m.submissionDuration,
		m.activeSessions,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)
	return m
}

// Registry exposes the underlying registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// The recorders below are nil-safe so callers can run without metrics.

func (m *Metrics) RecordTurn(stage string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(stage).Inc()
}

func (m *Metrics) RecordTransition(from, to string) {
	if m == nil || from == to {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *Metrics) RecordValidationError(kind string) {
	if m == nil {
		return
	}
	m.validationErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordBooking(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
	m.submissionDuration.Observe(seconds)
}

func (m *Metrics) RecordGeneration(prompt, status string, seconds float64) {
	if m == nil {
		return
	}
	m.generationTotal.WithLabelValues(prompt, status).Inc()
	m.generationDuration.Observe(seconds)
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func (m *Metrics) RecordHTTPRequest(method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, http.StatusText(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(seconds)
}
