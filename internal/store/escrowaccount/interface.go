package escrowaccount

import (
	"gorm.io/gorm"

	"github.com/dwarvesf/escrow-backend/internal/model"
)

type IStore interface {
	// Get returns a zero-balance account when none is stored yet.
	Get(tx *gorm.DB, account string) (*model.EscrowAccount, error)
	// GetForUpdate creates the account row if missing, then reads it under a row lock.
	GetForUpdate(tx *gorm.DB, account string) (*model.EscrowAccount, error)
	Save(tx *gorm.DB, account *model.EscrowAccount) error
}
