package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dwarvesf/escrow-backend/internal/types/environments"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
)

type MockTronGrid struct {
	mock.Mock
}

func (m *MockTronGrid) GetTransferEvents(ctx context.Context, txHash string) ([]TransferEvent, error) {
	args := m.Called(ctx, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]TransferEvent), args.Error(1)
}

func (m *MockTronGrid) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

const testContract = "USDT"

func newTestOracle(client ITronGrid) *TronOracle {
	clk := clock.NewTestClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	return NewWithClient(client, testContract, logger.New(environments.Test), clk)
}

func transfer(to string, value int64) TransferEvent {
	return TransferEvent{
		ContractAddress: testContract,
		From:            testTronAddress(9),
		To:              to,
		Value:           decimal.NewFromInt(value),
	}
}

func TestTronOracle_Verify(t *testing.T) {
	dest := testTronAddress(1)
	other := testTronAddress(2)
	expected := decimal.NewFromInt(10_000_000)

	tests := []struct {
		name      string
		transfers []TransferEvent
		want      VerificationStatus
	}{
		{name: "exact amount", transfers: []TransferEvent{transfer(dest, 10_000_000)}, want: VerificationConfirmed},
		{name: "overpaid", transfers: []TransferEvent{transfer(dest, 12_000_000)}, want: VerificationConfirmed},
		{name: "underpaid", transfers: []TransferEvent{transfer(dest, 9_999_999)}, want: VerificationAmountMismatch},
		{name: "wrong destination", transfers: []TransferEvent{transfer(other, 10_000_000)}, want: VerificationAddressMismatch},
		{name: "no transfers", transfers: []TransferEvent{}, want: VerificationNotFound},
		{
			name: "other token ignored",
			transfers: []TransferEvent{{
				ContractAddress: "OTHER",
				To:              dest,
				Value:           decimal.NewFromInt(10_000_000),
			}},
			want: VerificationNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(MockTronGrid)
			client.On("GetTransferEvents", mock.Anything, "abc").Return(tt.transfers, nil)

			o := newTestOracle(client)
			result, err := o.Verify(context.Background(), "0xabc", dest, expected)

			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Status)
			assert.Equal(t, "0xabc", result.TxHash)
		})
	}
}

func TestTronOracle_Verify_TransportError(t *testing.T) {
	client := new(MockTronGrid)
	client.On("GetTransferEvents", mock.Anything, "abc").Return(nil, errors.New("connection refused"))

	o := newTestOracle(client)
	result, err := o.Verify(context.Background(), "abc", testTronAddress(1), decimal.NewFromInt(1))

	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestTronOracle_Verify_InvalidHash(t *testing.T) {
	client := new(MockTronGrid)
	o := newTestOracle(client)

	_, err := o.Verify(context.Background(), "not-a-hash", testTronAddress(1), decimal.NewFromInt(1))

	assert.Error(t, err)
	client.AssertNotCalled(t, "GetTransferEvents", mock.Anything, mock.Anything)
}

func TestTronOracle_CachesObservedTransfers(t *testing.T) {
	dest := testTronAddress(1)
	client := new(MockTronGrid)
	client.On("GetTransferEvents", mock.Anything, "abc").
		Return([]TransferEvent{transfer(dest, 10)}, nil).Once()

	o := newTestOracle(client)
	for i := 0; i < 3; i++ {
		result, err := o.Verify(context.Background(), "abc", dest, decimal.NewFromInt(10))
		require.NoError(t, err)
		assert.Equal(t, VerificationConfirmed, result.Status)
	}

	client.AssertNumberOfCalls(t, "GetTransferEvents", 1)
	stats := o.GetCacheStatistics()
	assert.Equal(t, int64(2), stats.TransferHits)
	assert.Equal(t, int64(1), stats.TransferMisses)
	assert.Equal(t, 1, stats.CachedTxs)

	o.ClearCache()
	assert.Equal(t, 0, o.GetCacheStatistics().CachedTxs)
}

func TestTronOracle_DoesNotCacheNotFound(t *testing.T) {
	dest := testTronAddress(1)
	client := new(MockTronGrid)
	client.On("GetTransferEvents", mock.Anything, "abc").Return([]TransferEvent{}, nil).Once()
	client.On("GetTransferEvents", mock.Anything, "abc").Return([]TransferEvent{transfer(dest, 10)}, nil).Once()

	o := newTestOracle(client)

	first, err := o.Verify(context.Background(), "abc", dest, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, VerificationNotFound, first.Status)

	second, err := o.Verify(context.Background(), "abc", dest, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, VerificationConfirmed, second.Status)
}
