package monitoring

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/dwarvesf/escrow-backend/internal/ledger"
	"github.com/dwarvesf/escrow-backend/internal/model"
	"github.com/dwarvesf/escrow-backend/internal/oracle"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
)

const operationHealthCheck = "health_check"

// breaker runs external calls through a gobreaker circuit breaker with a
// per-call timeout and records the outcome.
type breaker struct {
	name           string
	circuitBreaker *gobreaker.CircuitBreaker
	metrics        *ExternalAPIMetrics
	logger         *logger.Logger
	timeoutConfig  TimeoutConfig
}

func newBreaker(name string, config CircuitBreakerConfig, timeoutConfig TimeoutConfig, metrics *ExternalAPIMetrics, logger *logger.Logger) *breaker {
	if err := validateCircuitBreakerConfig(config); err != nil {
		logger.Error("[newBreaker][validateCircuitBreakerConfig] falling back to defaults", map[string]string{
			"service": name,
			"error":   err.Error(),
		})
		config = CircuitBreakerConfigs[ServiceTronAPI]
	}

	b := &breaker{
		name:          name,
		metrics:       metrics,
		logger:        logger,
		timeoutConfig: timeoutConfig,
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.ConsecutiveFailureThreshold)
		},
		// rejected input says nothing about the health of the remote service
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, model.ErrValidation)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state change", map[string]string{
				"service": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			metrics.UpdateCircuitBreakerState(name, to)
		},
	}

	b.circuitBreaker = gobreaker.NewCircuitBreaker(settings)
	metrics.UpdateCircuitBreakerState(name, gobreaker.StateClosed)
	return b
}

func (b *breaker) State() gobreaker.State {
	return b.circuitBreaker.State()
}

func (b *breaker) execute(ctx context.Context, operation string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	return b.circuitBreaker.Execute(func() (interface{}, error) {
		timeout := b.timeoutConfig.RequestTimeout
		if operation == operationHealthCheck {
			timeout = b.timeoutConfig.HealthCheckTimeout
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		start := time.Now()
		result, err := fn(callCtx)
		duration := time.Since(start).Seconds()

		if err != nil && callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			b.metrics.RecordTimeout(b.name, operation)
			b.logError(operation, duration, err)
			return nil, fmt.Errorf("timeout: %v", err)
		}

		status := "success"
		if err != nil {
			status = "error"
			b.logError(operation, duration, err)
		}
		b.metrics.RecordAPICall(b.name, operation, status, duration)
		return result, err
	})
}

func (b *breaker) logError(operation string, duration float64, err error) {
	b.logger.Error("External API call failed", map[string]string{
		"service":    b.name,
		"operation":  operation,
		"duration":   strconv.FormatFloat(duration, 'f', 3, 64),
		"error":      err.Error(),
		"error_type": string(classifyError(err)),
		"cb_state":   b.circuitBreaker.State().String(),
	})
}

// CircuitBreakerOracle wraps oracle.IOracle with circuit breaker functionality
type CircuitBreakerOracle struct {
	*breaker
	wrapped oracle.IOracle
}

func NewCircuitBreakerOracle(wrapped oracle.IOracle, config CircuitBreakerConfig, metrics *ExternalAPIMetrics, logger *logger.Logger) *CircuitBreakerOracle {
	return NewCircuitBreakerOracleWithTimeout(wrapped, config, DefaultTimeoutConfig, metrics, logger)
}

func NewCircuitBreakerOracleWithTimeout(wrapped oracle.IOracle, config CircuitBreakerConfig, timeoutConfig TimeoutConfig, metrics *ExternalAPIMetrics, logger *logger.Logger) *CircuitBreakerOracle {
	return &CircuitBreakerOracle{
		breaker: newBreaker(ServiceTronAPI, config, timeoutConfig, metrics, logger),
		wrapped: wrapped,
	}
}

func (cb *CircuitBreakerOracle) Verify(ctx context.Context, txHash, expectedAddress string, expectedAmount decimal.Decimal) (*oracle.VerificationResult, error) {
	result, err := cb.execute(ctx, "verify", func(ctx context.Context) (interface{}, error) {
		return cb.wrapped.Verify(ctx, txHash, expectedAddress, expectedAmount)
	})
	if err != nil {
		return nil, err
	}
	return result.(*oracle.VerificationResult), nil
}

func (cb *CircuitBreakerOracle) Ping(ctx context.Context) error {
	_, err := cb.execute(ctx, operationHealthCheck, func(ctx context.Context) (interface{}, error) {
		return nil, cb.wrapped.Ping(ctx)
	})
	return err
}

func (cb *CircuitBreakerOracle) ClearCache() {
	cb.wrapped.ClearCache()
}

func (cb *CircuitBreakerOracle) GetCacheStatistics() *oracle.CacheStatistics {
	return cb.wrapped.GetCacheStatistics()
}

// CircuitBreakerLedger wraps ledger.IClient with circuit breaker functionality
type CircuitBreakerLedger struct {
	*breaker
	wrapped ledger.IClient
}

func NewCircuitBreakerLedger(wrapped ledger.IClient, config CircuitBreakerConfig, metrics *ExternalAPIMetrics, logger *logger.Logger) *CircuitBreakerLedger {
	return &CircuitBreakerLedger{
		breaker: newBreaker(ServiceLedgerRPC, config, DefaultTimeoutConfig, metrics, logger),
		wrapped: wrapped,
	}
}

func (cb *CircuitBreakerLedger) SubmitTransition(ctx context.Context, transition ledger.Transition) (*ledger.BlockRef, error) {
	result, err := cb.execute(ctx, "submit_transition", func(ctx context.Context) (interface{}, error) {
		return cb.wrapped.SubmitTransition(ctx, transition)
	})
	if err != nil {
		return nil, err
	}
	return result.(*ledger.BlockRef), nil
}

func (cb *CircuitBreakerLedger) BlockHeight(ctx context.Context) (uint64, error) {
	result, err := cb.execute(ctx, operationHealthCheck, func(ctx context.Context) (interface{}, error) {
		return cb.wrapped.BlockHeight(ctx)
	})
	if err != nil {
		return 0, err
	}
	return result.(uint64), nil
}

func (cb *CircuitBreakerLedger) Balance(ctx context.Context, account string) (*big.Int, error) {
	result, err := cb.execute(ctx, "balance", func(ctx context.Context) (interface{}, error) {
		return cb.wrapped.Balance(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	return result.(*big.Int), nil
}

// SubscribeFinalized is long-lived and bypasses the breaker.
func (cb *CircuitBreakerLedger) SubscribeFinalized(ctx context.Context, ch chan<- ledger.BlockRef) (ethereum.Subscription, error) {
	return cb.wrapped.SubscribeFinalized(ctx, ch)
}

// classifyError classifies errors into different types for metrics and logging
func classifyError(err error) APIErrorType {
	if err == nil {
		return ""
	}

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "timeout") ||
		strings.Contains(errMsg, "deadline exceeded") ||
		strings.Contains(errMsg, "context canceled") {
		return ErrorTypeTimeout
	}

	if strings.Contains(errMsg, "network") ||
		strings.Contains(errMsg, "connection") ||
		strings.Contains(errMsg, "unreachable") ||
		strings.Contains(errMsg, "dns") {
		return ErrorTypeNetworkError
	}

	if strings.Contains(errMsg, "500") ||
		strings.Contains(errMsg, "502") ||
		strings.Contains(errMsg, "503") ||
		strings.Contains(errMsg, "504") ||
		strings.Contains(errMsg, "internal server error") ||
		strings.Contains(errMsg, "bad gateway") ||
		strings.Contains(errMsg, "service unavailable") ||
		strings.Contains(errMsg, "gateway timeout") {
		return ErrorTypeServerError
	}

	if strings.Contains(errMsg, "400") ||
		strings.Contains(errMsg, "401") ||
		strings.Contains(errMsg, "403") ||
		strings.Contains(errMsg, "404") ||
		strings.Contains(errMsg, "429") ||
		strings.Contains(errMsg, "bad request") ||
		strings.Contains(errMsg, "unauthorized") ||
		strings.Contains(errMsg, "forbidden") ||
		strings.Contains(errMsg, "not found") ||
		strings.Contains(errMsg, "rate limit") {
		return ErrorTypeClientError
	}

	return ErrorTypeUnknown
}

// validateCircuitBreakerConfig validates circuit breaker configuration
func validateCircuitBreakerConfig(config CircuitBreakerConfig) error {
	if config.MaxRequests == 0 {
		return fmt.Errorf("max_requests must be greater than 0")
	}

	if config.ConsecutiveFailureThreshold <= 0 {
		return fmt.Errorf("consecutive_failure_threshold must be greater than 0")
	}

	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}

	if config.Interval < 0 {
		return fmt.Errorf("interval must be non-negative")
	}

	return nil
}
