package health

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/dwarvesf/escrow-backend/internal/ledger"
	"github.com/dwarvesf/escrow-backend/internal/monitoring"
	"github.com/dwarvesf/escrow-backend/internal/oracle"
	"github.com/dwarvesf/escrow-backend/internal/utils/config"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"

	databasePingTimeout  = 5 * time.Second
	externalCheckTimeout = 3 * time.Second
	externalTotalTimeout = 10 * time.Second
)

// checkFunc probes one dependency. A nil error with metadata marks it healthy.
type checkFunc func(ctx context.Context, metadata map[string]interface{}) error

type HealthHandler struct {
	config           *config.AppConfig
	logger           *logger.Logger
	db               *gorm.DB
	oracle           oracle.IOracle
	ledger           ledger.IClient
	jobStatusManager *monitoring.JobStatusManager
}

func New(
	config *config.AppConfig,
	logger *logger.Logger,
	db *gorm.DB,
	oracle oracle.IOracle,
	ledger ledger.IClient,
	jobStatusManager *monitoring.JobStatusManager,
) IHealthHandler {
	return &HealthHandler{
		config:           config,
		logger:           logger,
		db:               db,
		oracle:           oracle,
		ledger:           ledger,
		jobStatusManager: jobStatusManager,
	}
}

// Basic handles the liveness probe
// @Summary Basic health check
// @Description Returns basic system availability status
// @Tags health
// @Produce json
// @Success 200 {object} BasicHealthResponse
// @Router /healthz [get]
func (h *HealthHandler) Basic(c *gin.Context) {
	c.JSON(http.StatusOK, BasicHealthResponse{Message: "ok"})
}

// Database handles the database readiness probe
// @Summary Database health check
// @Description Validates database connectivity and pool usage
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /api/v1/health/db [get]
func (h *HealthHandler) Database(c *gin.Context) {
	h.serveChecks(c, c.Request.Context(), map[string]checkFunc{
		"database": h.checkDatabase,
	}, databasePingTimeout)
}

// External handles the dependency probe for the payment oracle and ledger node
// @Summary External dependencies health check
// @Description Validates the payment oracle and ledger node
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /api/v1/health/external [get]
func (h *HealthHandler) External(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), externalTotalTimeout)
	defer cancel()

	h.serveChecks(c, ctx, map[string]checkFunc{
		"payment_oracle": h.checkOracle,
		"ledger":         h.checkLedger,
	}, externalCheckTimeout)
}

// serveChecks runs every check concurrently, each under its own timeout,
// and answers 503 if any of them failed.
func (h *HealthHandler) serveChecks(c *gin.Context, ctx context.Context, checks map[string]checkFunc, timeout time.Duration) {
	start := time.Now()
	response := HealthResponse{
		Status:    statusHealthy,
		Timestamp: start,
		Checks:    make(map[string]HealthCheck, len(checks)),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for name, fn := range checks {
		g.Go(func() error {
			result := runCheck(gctx, fn, timeout)
			mu.Lock()
			response.Checks[name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	code := http.StatusOK
	for name, check := range response.Checks {
		if check.Status == statusHealthy {
			continue
		}
		response.Status = statusUnhealthy
		code = http.StatusServiceUnavailable
		h.logger.Warn("[HealthHandler][serveChecks] dependency unhealthy", map[string]string{
			"check": name,
			"error": check.Error,
		})
	}
	response.DurationMs = time.Since(start).Milliseconds()
	c.JSON(code, response)
}

func runCheck(ctx context.Context, fn checkFunc, timeout time.Duration) HealthCheck {
	start := time.Now()
	metadata := make(map[string]interface{})

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(checkCtx, metadata)
	}()

	var err error
	select {
	case err = <-done:
	case <-checkCtx.Done():
		err = checkCtx.Err()
	}

	check := HealthCheck{Status: statusHealthy, Latency: time.Since(start).Milliseconds()}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		check.Status, check.Error = statusUnhealthy, "timeout"
	case err != nil:
		check.Status, check.Error = statusUnhealthy, err.Error()
	default:
		check.Metadata = metadata
	}
	return check
}

func (h *HealthHandler) checkDatabase(ctx context.Context, metadata map[string]interface{}) error {
	if h.db == nil {
		return errors.New("database connection not available")
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get underlying database")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}

	stats := sqlDB.Stats()
	metadata["driver"] = h.db.Dialector.Name()
	metadata["connection_pool"] = map[string]interface{}{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"max_open":         stats.MaxOpenConnections,
	}
	return nil
}

func (h *HealthHandler) checkOracle(ctx context.Context, metadata map[string]interface{}) error {
	if h.oracle == nil {
		return errors.New("payment oracle not available")
	}
	if err := h.oracle.Ping(ctx); err != nil {
		return err
	}
	stats := h.oracle.GetCacheStatistics()
	metadata["cached_txs"] = stats.CachedTxs
	metadata["transfer_hits"] = stats.TransferHits
	return nil
}

func (h *HealthHandler) checkLedger(ctx context.Context, metadata map[string]interface{}) error {
	if h.ledger == nil {
		return errors.New("ledger client not available")
	}
	height, err := h.ledger.BlockHeight(ctx)
	if err != nil {
		return err
	}
	metadata["block_height"] = strconv.FormatUint(height, 10)
	return nil
}
