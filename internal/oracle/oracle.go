package oracle

import (
	"context"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/dwarvesf/escrow-backend/internal/utils/config"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
)

// TronOracle verifies TRC20 USDT transfers. Transfers of a transaction that
// has been observed on chain do not change, so they are cached per hash.
type TronOracle struct {
	mux   *sync.Mutex
	group singleflight.Group

	cachedTransfers map[string][]TransferEvent
	hits            int64
	misses          int64
	lastRefresh     time.Time

	client       ITronGrid
	usdtContract string
	clock        clock.Clock
	logger       *logger.Logger
}

func New(appConfig *config.AppConfig, logger *logger.Logger, clk clock.Clock) IOracle {
	return NewWithClient(NewTronGrid(appConfig, logger), appConfig.Tron.USDTContract, logger, clk)
}

func NewWithClient(client ITronGrid, usdtContract string, logger *logger.Logger, clk clock.Clock) *TronOracle {
	return &TronOracle{
		mux:             &sync.Mutex{},
		cachedTransfers: make(map[string][]TransferEvent),
		client:          client,
		usdtContract:    usdtContract,
		clock:           clk,
		logger:          logger,
	}
}

func (o *TronOracle) Verify(ctx context.Context, txHash, expectedAddress string, expectedAmount decimal.Decimal) (*VerificationResult, error) {
	hash, err := NormalizeTxHash(txHash)
	if err != nil {
		return nil, err
	}

	transfers, err := o.getTransfers(ctx, hash)
	if err != nil {
		o.logger.Error("[Verify][getTransfers]", map[string]string{
			"tx_hash": txHash,
			"error":   err.Error(),
		})
		return nil, err
	}

	result := evaluate(o.usdtTransfers(transfers), expectedAddress, expectedAmount)
	result.TxHash = txHash
	result.CheckedAt = o.clock.Now()

	o.logger.Info("[Verify] verification finished", map[string]string{
		"tx_hash": txHash,
		"status":  string(result.Status),
	})

	return result, nil
}

func (o *TronOracle) Ping(ctx context.Context) error {
	return o.client.Ping(ctx)
}

func (o *TronOracle) ClearCache() {
	o.mux.Lock()
	defer o.mux.Unlock()
	o.cachedTransfers = make(map[string][]TransferEvent)
}

func (o *TronOracle) GetCacheStatistics() *CacheStatistics {
	o.mux.Lock()
	defer o.mux.Unlock()
	return &CacheStatistics{
		TransferHits:   o.hits,
		TransferMisses: o.misses,
		CachedTxs:      len(o.cachedTransfers),
		LastRefresh:    o.lastRefresh,
	}
}

func (o *TronOracle) getTransfers(ctx context.Context, hash string) ([]TransferEvent, error) {
	if transfers, ok := o.getCachedTransfers(hash); ok {
		return transfers, nil
	}

	v, err, _ := o.group.Do(hash, func() (interface{}, error) {
		transfers, err := o.client.GetTransferEvents(ctx, hash)
		if err != nil {
			return nil, err
		}
		// not-found is not cached; the transaction may still land
		if len(transfers) > 0 {
			o.updateCachedTransfers(hash, transfers)
		}
		return transfers, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]TransferEvent), nil
}

func (o *TronOracle) getCachedTransfers(hash string) ([]TransferEvent, bool) {
	o.mux.Lock()
	defer o.mux.Unlock()

	transfers, ok := o.cachedTransfers[hash]
	if ok {
		o.hits++
	} else {
		o.misses++
	}
	return transfers, ok
}

func (o *TronOracle) updateCachedTransfers(hash string, transfers []TransferEvent) {
	o.mux.Lock()
	defer o.mux.Unlock()
	o.cachedTransfers[hash] = transfers
	o.lastRefresh = o.clock.Now()
}

func (o *TronOracle) usdtTransfers(transfers []TransferEvent) []TransferEvent {
	out := make([]TransferEvent, 0, len(transfers))
	for _, t := range transfers {
		if o.usdtContract == "" || t.ContractAddress == o.usdtContract {
			out = append(out, t)
		}
	}
	return out
}

// evaluate confirms when a transfer to the expected address carries at least
// the expected amount.
func evaluate(transfers []TransferEvent, expectedAddress string, expectedAmount decimal.Decimal) *VerificationResult {
	if len(transfers) == 0 {
		return &VerificationResult{Status: VerificationNotFound, ObservedAmount: decimal.Zero}
	}

	var best *TransferEvent
	for i := range transfers {
		t := transfers[i]
		if t.To != expectedAddress {
			continue
		}
		if t.Value.GreaterThanOrEqual(expectedAmount) {
			return &VerificationResult{
				Status:          VerificationConfirmed,
				ObservedAddress: t.To,
				ObservedAmount:  t.Value,
			}
		}
		if best == nil || t.Value.GreaterThan(best.Value) {
			best = &t
		}
	}

	if best != nil {
		return &VerificationResult{
			Status:          VerificationAmountMismatch,
			ObservedAddress: best.To,
			ObservedAmount:  best.Value,
		}
	}

	return &VerificationResult{
		Status:          VerificationAddressMismatch,
		ObservedAddress: transfers[0].To,
		ObservedAmount:  transfers[0].Value,
	}
}
