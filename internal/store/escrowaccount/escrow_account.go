package escrowaccount

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dwarvesf/escrow-backend/internal/model"
)

type store struct {
}

func New() IStore {
	return &store{}
}

func (s *store) Get(tx *gorm.DB, account string) (*model.EscrowAccount, error) {
	var acc model.EscrowAccount
	err := tx.Where("account = ?", account).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.EscrowAccount{Account: account, Available: decimal.Zero, Locked: decimal.Zero}, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *store) GetForUpdate(tx *gorm.DB, account string) (*model.EscrowAccount, error) {
	empty := &model.EscrowAccount{Account: account, Available: decimal.Zero, Locked: decimal.Zero}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(empty).Error; err != nil {
		return nil, err
	}

	var acc model.EscrowAccount
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("account = ?", account).First(&acc).Error
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *store) Save(tx *gorm.DB, account *model.EscrowAccount) error {
	return tx.Save(account).Error
}
