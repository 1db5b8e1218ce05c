package metrics

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
)

// MetricsHandler serves the escrow backend's Prometheus registry
type MetricsHandler struct {
	registry *prometheus.Registry
	logger   *logger.Logger
}

func NewMetricsHandler(registry *prometheus.Registry, logger *logger.Logger) *MetricsHandler {
	return &MetricsHandler{
		registry: registry,
		logger:   logger,
	}
}

// Handler returns the /metrics endpoint. Scrapes of the endpoint itself are
// counted in promhttp_metric_handler_requests_total on the same registry.
func (h *MetricsHandler) Handler() gin.HandlerFunc {
	opts := promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}
	if h.logger != nil {
		opts.ErrorLog = scrapeErrorLog{h.logger}
	}

	return gin.WrapH(promhttp.InstrumentMetricHandler(h.registry, promhttp.HandlerFor(h.registry, opts)))
}

type scrapeErrorLog struct {
	logger *logger.Logger
}

func (l scrapeErrorLog) Println(v ...interface{}) {
	l.logger.Error("[MetricsHandler][Gather]", map[string]string{
		"error": fmt.Sprint(v...),
	})
}
