package otcorder

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dwarvesf/escrow-backend/internal/model"
)

type store struct {
}

func New() IStore {
	return &store{}
}

func (s *store) Create(tx *gorm.DB, order *model.OtcOrder) (*model.OtcOrder, error) {
	return order, tx.Create(order).Error
}

func (s *store) Get(tx *gorm.DB, id uint64) (*model.OtcOrder, error) {
	return s.get(tx, id)
}

func (s *store) GetForUpdate(tx *gorm.DB, id uint64) (*model.OtcOrder, error) {
	return s.get(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (s *store) get(tx *gorm.DB, id uint64) (*model.OtcOrder, error) {
	var order model.OtcOrder
	err := tx.Where("id = ?", id).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(model.ErrNotFound, "otc order %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *store) Save(tx *gorm.DB, order *model.OtcOrder) error {
	return tx.Save(order).Error
}

func (s *store) Find(tx *gorm.DB, filter ListFilter) ([]*model.OtcOrder, int64, error) {
	var orders []*model.OtcOrder
	var total int64

	query := tx.Model(&model.OtcOrder{})
	if filter.Account != "" {
		query = query.Where("buyer = ? OR seller = ?", filter.Account, filter.Account)
	}
	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	err := query.Order("id DESC").Find(&orders).Error
	return orders, total, err
}

func (s *store) HasReleasedForBuyer(tx *gorm.DB, buyer string) (bool, error) {
	var count int64
	err := tx.Model(&model.OtcOrder{}).
		Where("buyer = ? AND state = ?", buyer, model.OtcOrderStateReleased).
		Count(&count).Error
	return count > 0, err
}

func (s *store) FindExpired(tx *gorm.DB, now time.Time, limit int) ([]*model.OtcOrder, error) {
	var orders []*model.OtcOrder
	err := tx.Where("state IN ? AND expire_at < ? AND seller_confirmed_at IS NULL",
		[]model.OtcOrderState{model.OtcOrderStateCreated, model.OtcOrderStatePaidOrCommitted}, now).
		Order("expire_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (s *store) FindConfirmedBefore(tx *gorm.DB, cutoff time.Time, limit int) ([]*model.OtcOrder, error) {
	var orders []*model.OtcOrder
	err := tx.Where("state = ? AND seller_confirmed_at IS NOT NULL AND seller_confirmed_at <= ?",
		model.OtcOrderStatePaidOrCommitted, cutoff).
		Order("seller_confirmed_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
