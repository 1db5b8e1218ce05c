package swaprecord

import (
	"time"

	"gorm.io/gorm"

	"github.com/dwarvesf/escrow-backend/internal/model"
)

type IStore interface {
	Create(tx *gorm.DB, swap *model.SwapRecord) (*model.SwapRecord, error)
	Get(tx *gorm.DB, id uint64) (*model.SwapRecord, error)
	GetForUpdate(tx *gorm.DB, id uint64) (*model.SwapRecord, error)
	// GetByTxHash returns the swap that currently holds the TRC20 hash.
	GetByTxHash(tx *gorm.DB, txHash string) (*model.SwapRecord, error)
	Save(tx *gorm.DB, swap *model.SwapRecord) error
	Find(tx *gorm.DB, filter ListFilter) ([]*model.SwapRecord, int64, error)
	FindAwaitingVerification(tx *gorm.DB, limit int) ([]*model.SwapRecord, error)
	// FindTimedOut lists swaps still waiting on the maker after timeoutAt.
	FindTimedOut(tx *gorm.DB, now time.Time, limit int) ([]*model.SwapRecord, error)
}

type ListFilter struct {
	Account string
	MakerID string
	Status  model.SwapStatus
	Limit   int
	Offset  int
}
