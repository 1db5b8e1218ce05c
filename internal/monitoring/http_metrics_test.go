package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/dwarvesf/escrow-backend/internal/model"
)

func newMetricsRouter(metrics *HTTPMetrics) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(HTTPMetricsMiddleware(metrics))
	router.GET("/api/v1/orders/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})
	router.POST("/api/v1/orders/:id/cancel", func(c *gin.Context) {
		c.JSON(http.StatusConflict, gin.H{"error": "invalid transition"})
	})
	return router
}

func TestHTTPMetricsMiddleware_GroupsByRoute(t *testing.T) {
	// Arrange
	metrics := NewHTTPMetrics()
	registry := prometheus.NewRegistry()
	metrics.MustRegister(registry)
	router := newMetricsRouter(metrics)

	// Act
	for _, path := range []string{"/api/v1/orders/1", "/api/v1/orders/2", "/api/v1/orders/3"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	// Assert
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.requestsTotal.WithLabelValues("GET", "/api/v1/orders/:id", "200")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.inFlightRequests.WithLabelValues("GET", "/api/v1/orders/:id")))
}

func TestHTTPMetricsMiddleware_ErrorResponse(t *testing.T) {
	metrics := NewHTTPMetrics()
	router := newMetricsRouter(metrics)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/orders/9/cancel", nil))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.requestsTotal.WithLabelValues("POST", "/api/v1/orders/:id/cancel", "409")))
}

func TestHTTPMetricsMiddleware_UnknownRoute(t *testing.T) {
	metrics := NewHTTPMetrics()
	router := newMetricsRouter(metrics)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.requestsTotal.WithLabelValues("GET", unmatchedRoute, "404")))
}

func TestBusinessMetricsRecorder(t *testing.T) {
	metrics := NewHTTPMetrics()
	metrics.MustRegister(prometheus.NewRegistry())
	recorder := NewBusinessMetricsRecorder(metrics)
	start := time.Now()

	recorder.Record(CategoryOrder, "create", start, nil)
	recorder.Record(CategorySwap, "submit_tx_hash", start, model.Validationf("tx hash is empty"))
	recorder.Record(CategoryDispute, "open", start, errors.Wrap(model.ErrAlreadyDisputed, "otc/7"))
	recorder.Record(CategoryEscrow, "withdraw", start, model.ErrInsufficientBalance)
	recorder.Record(CategoryMaker, "register", start, errors.New("connection reset"))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.businessOperations.WithLabelValues("otc_order", "create", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.businessOperations.WithLabelValues("swap", "submit_tx_hash", "rejected")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.businessOperations.WithLabelValues("dispute", "open", "rejected")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.businessOperations.WithLabelValues("escrow", "withdraw", "rejected")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.businessOperations.WithLabelValues("maker", "register", "error")))
	assert.Equal(t, 5, testutil.CollectAndCount(metrics.businessOperations))

	var nilRecorder *BusinessMetricsRecorder
	assert.NotPanics(t, func() {
		nilRecorder.Record(CategoryOrder, "create", start, nil)
	})
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, Outcome(nil))
	assert.Equal(t, OutcomeRejected, Outcome(model.InvalidTransitionf("order %d is released", 3)))
	assert.Equal(t, OutcomeRejected, Outcome(errors.Wrap(model.ErrNotFound, "swap 9")))
	// verification failures come from the oracle, not the caller
	assert.Equal(t, OutcomeError, Outcome(model.ErrExternalVerification))
	assert.Equal(t, OutcomeError, Outcome(errors.New("database is locked")))
}
