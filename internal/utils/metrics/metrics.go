package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/genrelay/server/internal/port/outbound"
)

var _ outbound.MetricsPort = (*Metrics)(nil)

// Metrics holds all application metrics.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Generation metrics
	ProviderAttemptsTotal   *prometheus.CounterVec
	ProviderDuration        *prometheus.HistogramVec
	ChainExhaustedTotal     *prometheus.CounterVec
	QuotaDenialsTotal       *prometheus.CounterVec
	QuotaConsumedTotal      *prometheus.CounterVec
	BlobObjectsDeletedTotal prometheus.Counter
}

// New creates a new Metrics instance registered against reg.
// A nil reg uses the default Prometheus registerer.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "genrelay"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		ProviderAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "provider_attempts_total",
				Help:      "Total number of provider invocations",
			},
			[]string{"kind", "provider", "status"}, // status: success, failure
		),
		ProviderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "provider_duration_seconds",
				Help:      "Provider invocation duration in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"kind", "provider"},
		),
		ChainExhaustedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "chain_exhausted_total",
				Help:      "Total number of fallback chains where every provider failed",
			},
			[]string{"kind"},
		),
		QuotaDenialsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "quota",
				Name:      "denials_total",
				Help:      "Total number of requests denied by the daily quota",
			},
			[]string{"tier"},
		),
		QuotaConsumedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "quota",
				Name:      "consumed_total",
				Help:      "Total number of committed quota units",
			},
			[]string{"tier"},
		),
		BlobObjectsDeletedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "blob",
				Name:      "objects_deleted_total",
				Help:      "Total number of stored images removed by retention",
			},
		),
	}
}

// --- Convenience methods ---

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCodeToString(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordProviderAttempt records one provider invocation.
func (m *Metrics) RecordProviderAttempt(kind, provider, status string, duration time.Duration) {
	m.ProviderAttemptsTotal.WithLabelValues(kind, provider, status).Inc()
	m.ProviderDuration.WithLabelValues(kind, provider).Observe(duration.Seconds())
}

// RecordChainExhausted records a chain where every provider failed.
func (m *Metrics) RecordChainExhausted(kind string) {
	m.ChainExhaustedTotal.WithLabelValues(kind).Inc()
}

// RecordQuotaDenied records a quota denial.
func (m *Metrics) RecordQuotaDenied(tier string) {
	m.QuotaDenialsTotal.WithLabelValues(tier).Inc()
}

// RecordQuotaConsumed records a committed quota unit.
func (m *Metrics) RecordQuotaConsumed(tier string) {
	m.QuotaConsumedTotal.WithLabelValues(tier).Inc()
}

// RecordBlobsDeleted records objects removed by retention.
func (m *Metrics) RecordBlobsDeleted(count int) {
	if count > 0 {
		m.BlobObjectsDeletedTotal.Add(float64(count))
	}
}

// statusCodeToString converts an HTTP status code to a string category.
func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
