package oracle

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type CacheStatistics struct {
	TransferHits   int64     `json:"transfer_hits"`
	TransferMisses int64     `json:"transfer_misses"`
	CachedTxs      int       `json:"cached_txs"`
	LastRefresh    time.Time `json:"last_refresh"`
}

type IOracle interface {
	// Verify checks an external transfer against the destination and the amount a
	// swap expects. A transport failure is returned as an error, never as a result.
	Verify(ctx context.Context, txHash, expectedAddress string, expectedAmount decimal.Decimal) (*VerificationResult, error)

	// Ping checks that the external chain API is reachable
	Ping(ctx context.Context) error

	ClearCache()
	GetCacheStatistics() *CacheStatistics
}

type ITronGrid interface {
	GetTransferEvents(ctx context.Context, txHash string) ([]TransferEvent, error)
	Ping(ctx context.Context) error
}
