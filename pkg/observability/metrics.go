package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the request pipeline
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Rate limiter metrics
	RateLimitDecisions *prometheus.CounterVec
	RateLimitStoreErrors *prometheus.CounterVec

	// Security inspector metrics
	SecurityRejections *prometheus.CounterVec
	CSRFFailuresTotal  prometheus.Counter

	// Validation metrics
	ValidationFailuresTotal *prometheus.CounterVec

	// Error translator metrics
	ErrorsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gatehouse_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		RateLimitDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_ratelimit_decisions_total",
				Help: "Rate limiter allow/deny decisions by preset",
			},
			[]string{"preset", "outcome"},
		),
		RateLimitStoreErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_ratelimit_store_errors_total",
				Help: "Rate limit store failures (requests fail open)",
			},
			[]string{"backend"},
		),
		SecurityRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_security_rejections_total",
				Help: "Requests rejected by the security inspector, by check",
			},
			[]string{"check"},
		),
		CSRFFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gatehouse_csrf_failures_total",
				Help: "CSRF token verification failures",
			},
		),
		ValidationFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_validation_failures_total",
				Help: "Schema validation failures by request surface",
			},
			[]string{"surface"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_errors_total",
				Help: "Translated API errors by code",
			},
			[]string{"code"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.RateLimitDecisions,
		m.RateLimitStoreErrors,
		m.SecurityRejections,
		m.CSRFFailuresTotal,
		m.ValidationFailuresTotal,
		m.ErrorsTotal,
	)

	return m
}

// Handler returns an HTTP handler exposing the metrics registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
