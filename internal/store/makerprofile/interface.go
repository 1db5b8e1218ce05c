package makerprofile

import (
	"gorm.io/gorm"

	"github.com/dwarvesf/escrow-backend/internal/model"
)

type IStore interface {
	Create(tx *gorm.DB, maker *model.MakerProfile) (*model.MakerProfile, error)
	Get(tx *gorm.DB, id string) (*model.MakerProfile, error)
	GetForUpdate(tx *gorm.DB, id string) (*model.MakerProfile, error)
	Save(tx *gorm.DB, maker *model.MakerProfile) error
	IncrementUsersServed(tx *gorm.DB, id string) error
	Find(tx *gorm.DB, filter ListFilter) ([]*model.MakerProfile, int64, error)
}

type ListFilter struct {
	ActiveOnly bool
	Limit      int
	Offset     int
}
