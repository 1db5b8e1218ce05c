package escrowlock

import (
	"gorm.io/gorm"

	"github.com/dwarvesf/escrow-backend/internal/model"
)

type IStore interface {
	Create(tx *gorm.DB, lock *model.EscrowLock) (*model.EscrowLock, error)
	Get(tx *gorm.DB, lockRef string) (*model.EscrowLock, error)
	GetForUpdate(tx *gorm.DB, lockRef string) (*model.EscrowLock, error)
	Save(tx *gorm.DB, lock *model.EscrowLock) error
	ListByOwner(tx *gorm.DB, owner string, status model.EscrowLockStatus) ([]*model.EscrowLock, error)
}
