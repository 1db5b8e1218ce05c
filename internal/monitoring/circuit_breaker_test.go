package monitoring

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dwarvesf/escrow-backend/internal/ledger"
	"github.com/dwarvesf/escrow-backend/internal/model"
	"github.com/dwarvesf/escrow-backend/internal/oracle"
	"github.com/dwarvesf/escrow-backend/internal/types/environments"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
)

type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) Verify(ctx context.Context, txHash, expectedAddress string, expectedAmount decimal.Decimal) (*oracle.VerificationResult, error) {
	args := m.Called(ctx, txHash, expectedAddress, expectedAmount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oracle.VerificationResult), args.Error(1)
}

func (m *MockOracle) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockOracle) ClearCache() {
	m.Called()
}

func (m *MockOracle) GetCacheStatistics() *oracle.CacheStatistics {
	return m.Called().Get(0).(*oracle.CacheStatistics)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) SubmitTransition(ctx context.Context, transition ledger.Transition) (*ledger.BlockRef, error) {
	args := m.Called(ctx, transition)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.BlockRef), args.Error(1)
}

func (m *MockLedger) BlockHeight(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockLedger) Balance(ctx context.Context, account string) (*big.Int, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *MockLedger) SubscribeFinalized(ctx context.Context, ch chan<- ledger.BlockRef) (ethereum.Subscription, error) {
	args := m.Called(ctx, ch)
	return nil, args.Error(1)
}

func setupTestLogger() *logger.Logger {
	return logger.New(environments.Test)
}

func testBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests:                 5,
		Interval:                    30 * time.Second,
		Timeout:                     60 * time.Second,
		ConsecutiveFailureThreshold: 3,
	}
}

func TestCircuitBreaker_InitialState(t *testing.T) {
	// Arrange
	metrics := NewExternalAPIMetrics()
	registry := prometheus.NewRegistry()
	metrics.MustRegister(registry)

	// Act
	cb := NewCircuitBreakerOracle(&MockOracle{}, testBreakerConfig(), metrics, setupTestLogger())

	// Assert
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.Equal(t, float64(gobreaker.StateClosed), testutil.ToFloat64(metrics.circuitBreakerState.WithLabelValues(ServiceTronAPI)))
}

func TestCircuitBreakerOracle_Verify(t *testing.T) {
	// Arrange
	metrics := NewExternalAPIMetrics()
	want := &oracle.VerificationResult{Status: oracle.VerificationConfirmed, TxHash: "0xabc"}

	mockOracle := &MockOracle{}
	mockOracle.On("Verify", mock.Anything, "0xabc", "T-dest", decimal.NewFromInt(10)).Return(want, nil)
	cb := NewCircuitBreakerOracle(mockOracle, testBreakerConfig(), metrics, setupTestLogger())

	// Act
	got, err := cb.Verify(context.Background(), "0xabc", "T-dest", decimal.NewFromInt(10))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.apiCalls.WithLabelValues(ServiceTronAPI, "success")))
}

func TestCircuitBreaker_ClosedToOpen(t *testing.T) {
	// Arrange
	metrics := NewExternalAPIMetrics()
	mockOracle := &MockOracle{}
	mockOracle.On("Verify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))
	cb := NewCircuitBreakerOracle(mockOracle, testBreakerConfig(), metrics, setupTestLogger())

	// Act
	for i := 0; i < 3; i++ {
		_, err := cb.Verify(context.Background(), "abc", "T-dest", decimal.NewFromInt(1))
		assert.Error(t, err)
	}
	_, err := cb.Verify(context.Background(), "abc", "T-dest", decimal.NewFromInt(1))

	// Assert
	assert.Equal(t, gobreaker.StateOpen, cb.State())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	mockOracle.AssertNumberOfCalls(t, "Verify", 3)
	assert.Equal(t, float64(gobreaker.StateOpen), testutil.ToFloat64(metrics.circuitBreakerState.WithLabelValues(ServiceTronAPI)))
}

func TestCircuitBreaker_ValidationErrorsDoNotTrip(t *testing.T) {
	// Arrange
	metrics := NewExternalAPIMetrics()
	mockOracle := &MockOracle{}
	mockOracle.On("Verify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, model.Validationf("invalid tx hash"))
	cb := NewCircuitBreakerOracle(mockOracle, testBreakerConfig(), metrics, setupTestLogger())

	// Act
	for i := 0; i < 5; i++ {
		_, err := cb.Verify(context.Background(), "zz", "T-dest", decimal.NewFromInt(1))
		assert.ErrorIs(t, err, model.ErrValidation)
	}

	// Assert
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_Timeout(t *testing.T) {
	// Arrange
	metrics := NewExternalAPIMetrics()
	mockOracle := &MockOracle{}
	mockOracle.On("Ping", mock.Anything).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(context.DeadlineExceeded)

	timeouts := DefaultTimeoutConfig
	timeouts.HealthCheckTimeout = 20 * time.Millisecond
	cb := NewCircuitBreakerOracleWithTimeout(mockOracle, testBreakerConfig(), timeouts, metrics, setupTestLogger())

	// Act
	err := cb.Ping(context.Background())

	// Assert
	assert.ErrorContains(t, err, "timeout")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.timeouts.WithLabelValues(ServiceTronAPI, operationHealthCheck)))
}

func TestCircuitBreakerLedger_SubmitTransition(t *testing.T) {
	// Arrange
	metrics := NewExternalAPIMetrics()
	mockLedger := &MockLedger{}
	transition := ledger.Transition{Kind: ledger.TransitionLock, LockRef: "otc:1"}
	mockLedger.On("SubmitTransition", mock.Anything, transition).Return(&ledger.BlockRef{Number: 7}, nil)
	cb := NewCircuitBreakerLedger(mockLedger, CircuitBreakerConfigs[ServiceLedgerRPC], metrics, setupTestLogger())

	// Act
	ref, err := cb.SubmitTransition(context.Background(), transition)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, uint64(7), ref.Number)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.apiCalls.WithLabelValues(ServiceLedgerRPC, "success")))
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		err  error
		want APIErrorType
	}{
		{err: errors.New("context deadline exceeded"), want: ErrorTypeTimeout},
		{err: errors.New("dial tcp: connection refused"), want: ErrorTypeNetworkError},
		{err: errors.New("status code: 503, body: "), want: ErrorTypeServerError},
		{err: errors.New("status code: 429, body: rate limit"), want: ErrorTypeClientError},
		{err: errors.New("something odd"), want: ErrorTypeUnknown},
		{err: nil, want: ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyError(tt.err))
	}
}

func TestCircuitBreakerConfig_Validation(t *testing.T) {
	assert.NoError(t, validateCircuitBreakerConfig(testBreakerConfig()))

	invalid := []CircuitBreakerConfig{
		{MaxRequests: 0, ConsecutiveFailureThreshold: 3},
		{MaxRequests: 1, ConsecutiveFailureThreshold: 0},
		{MaxRequests: 1, ConsecutiveFailureThreshold: 1, Timeout: -time.Second},
		{MaxRequests: 1, ConsecutiveFailureThreshold: 1, Interval: -time.Second},
	}
	for _, cfg := range invalid {
		assert.Error(t, validateCircuitBreakerConfig(cfg))
	}
}

func TestCircuitBreakerConfig_DefaultValues(t *testing.T) {
	for name, cfg := range CircuitBreakerConfigs {
		assert.NoError(t, validateCircuitBreakerConfig(cfg), name)
	}
	assert.Contains(t, CircuitBreakerConfigs, ServiceTronAPI)
	assert.Contains(t, CircuitBreakerConfigs, ServiceLedgerRPC)
}
