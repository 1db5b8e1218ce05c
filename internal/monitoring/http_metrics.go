package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dwarvesf/escrow-backend/internal/model"
)

const unmatchedRoute = "unmatched"

// Business operation categories, one per API surface.
const (
	CategoryOrder   = "otc_order"
	CategorySwap    = "swap"
	CategoryDispute = "dispute"
	CategoryEscrow  = "escrow"
	CategoryMaker   = "maker"
)

// Outcome labels. A rejected operation failed one of the domain rules and
// says nothing about service health.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

var domainErrors = []error{
	model.ErrValidation,
	model.ErrInsufficientBalance,
	model.ErrInvalidTransition,
	model.ErrAlreadyTerminal,
	model.ErrNotFound,
	model.ErrAlreadyDisputed,
}

// Outcome maps an operation error onto its outcome label.
func Outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return OutcomeRejected
		}
	}
	return OutcomeError
}

type HTTPMetrics struct {
	requestDuration  *prometheus.HistogramVec
	requestsTotal    *prometheus.CounterVec
	responseSize     *prometheus.HistogramVec
	inFlightRequests *prometheus.GaugeVec

	businessOperations *prometheus.CounterVec
	businessDuration   *prometheus.HistogramVec
}

func NewHTTPMetrics() *HTTPMetrics {
	routeLabels := []string{"method", "route", "status"}
	businessLabels := []string{"category", "operation", "outcome"}

	return &HTTPMetrics{
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "escrow_backend_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, routeLabels),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_backend_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, routeLabels),
		responseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "escrow_backend_http_response_size_bytes",
			Help:    "HTTP response body size",
			Buckets: prometheus.ExponentialBuckets(64, 4, 7),
		}, routeLabels),
		inFlightRequests: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "escrow_backend_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		}, []string{"method", "route"}),

		businessOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_backend_business_operations_total",
			Help: "Escrow API operations by category and outcome",
		}, businessLabels),
		businessDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "escrow_backend_business_operation_duration_seconds",
			Help:    "Escrow API operation latency, including the database transaction",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}, businessLabels),
	}
}

func (m *HTTPMetrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(
		m.requestDuration,
		m.requestsTotal,
		m.responseSize,
		m.inFlightRequests,
		m.businessOperations,
		m.businessDuration,
	)
}

// HTTPMetricsMiddleware labels requests by route template. Unmatched paths
// share one label so arbitrary URLs cannot grow the series count.
func HTTPMetricsMiddleware(metrics *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		method := c.Request.Method

		inFlight := metrics.inFlightRequests.WithLabelValues(method, route)
		inFlight.Inc()
		defer inFlight.Dec()

		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		metrics.requestDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
		metrics.requestsTotal.WithLabelValues(method, route, status).Inc()
		if size := c.Writer.Size(); size > 0 {
			metrics.responseSize.WithLabelValues(method, route, status).Observe(float64(size))
		}
	}
}

// BusinessMetricsRecorder is handed to the API handlers. A nil recorder
// records nothing.
type BusinessMetricsRecorder struct {
	metrics *HTTPMetrics
}

func NewBusinessMetricsRecorder(metrics *HTTPMetrics) *BusinessMetricsRecorder {
	return &BusinessMetricsRecorder{metrics: metrics}
}

// Record observes one operation that started at start and ended with err.
func (r *BusinessMetricsRecorder) Record(category, operation string, start time.Time, err error) {
	if r == nil || r.metrics == nil {
		return
	}
	outcome := Outcome(err)
	r.metrics.businessOperations.WithLabelValues(category, operation, outcome).Inc()
	r.metrics.businessDuration.WithLabelValues(category, operation, outcome).Observe(time.Since(start).Seconds())
}
