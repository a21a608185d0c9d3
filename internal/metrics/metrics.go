package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors exported on /metrics.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	RateLimitHits    *prometheus.CounterVec
	LoginAttempts    *prometheus.CounterVec
	Extractions      *prometheus.CounterVec
	ExtractionTime   prometheus.Histogram
	PurchaseOrders   *prometheus.CounterVec
	ItemsValidated   prometheus.Counter
	ProjectsImported prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, route and status code",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method", "path"},
		),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limit_hits_total",
				Help: "Requests rejected by the rate limiter, by endpoint",
			},
			[]string{"endpoint"},
		),
		LoginAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_login_attempts_total",
				Help: "Login attempts by outcome (success, failure)",
			},
			[]string{"status"},
		),
		Extractions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdf_extractions_total",
				Help: "AI extractions by outcome (success or the parsing error code)",
			},
			[]string{"outcome"},
		),
		ExtractionTime: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pdf_extraction_duration_seconds",
				Help:    "Duration of the AI extraction call",
				Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
			},
		),
		PurchaseOrders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "purchase_orders_generated_total",
				Help: "Purchase-order documents generated, by output format",
			},
			[]string{"format"},
		),
		ItemsValidated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "menuiseries_validated_total",
				Help: "Number of menuiseries marked as validated",
			},
		),
		ProjectsImported: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "projects_imported_total",
				Help: "Projects created from an imported PDF",
			},
		),
	}
}

// Noop returns collectors registered on a throwaway registry.
func Noop() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.RateLimitHits.WithLabelValues(endpoint).Inc()
}

func (m *Metrics) RecordLoginAttempt(status string) {
	m.LoginAttempts.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordExtraction(outcome string, duration time.Duration) {
	m.Extractions.WithLabelValues(outcome).Inc()
	m.ExtractionTime.Observe(duration.Seconds())
}

func (m *Metrics) RecordPurchaseOrders(format string, count int) {
	m.PurchaseOrders.WithLabelValues(format).Add(float64(count))
}

func (m *Metrics) RecordValidation() {
	m.ItemsValidated.Inc()
}

func (m *Metrics) RecordImport() {
	m.ProjectsImported.Inc()
}
