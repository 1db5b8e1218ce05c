package otcorder

import (
	"time"

	"gorm.io/gorm"

	"github.com/dwarvesf/escrow-backend/internal/model"
)

type IStore interface {
	Create(tx *gorm.DB, order *model.OtcOrder) (*model.OtcOrder, error)
	Get(tx *gorm.DB, id uint64) (*model.OtcOrder, error)
	// GetForUpdate reads the order under a row lock; use it inside a transaction.
	GetForUpdate(tx *gorm.DB, id uint64) (*model.OtcOrder, error)
	Save(tx *gorm.DB, order *model.OtcOrder) error
	Find(tx *gorm.DB, filter ListFilter) ([]*model.OtcOrder, int64, error)
	// HasReleasedForBuyer reports whether the buyer already completed an order.
	HasReleasedForBuyer(tx *gorm.DB, buyer string) (bool, error)
	// FindExpired lists open orders past their deadline and not confirmed by the seller.
	FindExpired(tx *gorm.DB, now time.Time, limit int) ([]*model.OtcOrder, error)
	// FindConfirmedBefore lists orders whose seller confirmation is older than cutoff.
	FindConfirmedBefore(tx *gorm.DB, cutoff time.Time, limit int) ([]*model.OtcOrder, error)
}

type ListFilter struct {
	Account string
	State   model.OtcOrderState
	Limit   int
	Offset  int
}
