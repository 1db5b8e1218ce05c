package swaprecord

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

func (s *store) Create(tx *gorm.DB, swap *model.SwapRecord) (*model.SwapRecord, error) {
	return swap, tx.Create(swap).Error
}

func (s *store) Get(tx *gorm.DB, id uint64) (*model.SwapRecord, error) {
	return s.get(tx, id)
}

func (s *store) GetForUpdate(tx *gorm.DB, id uint64) (*model.SwapRecord, error) {
	return s.get(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (s *store) get(tx *gorm.DB, id uint64) (*model.SwapRecord, error) {
	var swap model.SwapRecord
	err := tx.Where("id = ?", id).First(&swap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(model.ErrNotFound, "swap %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &swap, nil
}

func (s *store) GetByTxHash(tx *gorm.DB, txHash string) (*model.SwapRecord, error) {
	var swap model.SwapRecord
	err := tx.Where("trc20_tx_hash = ?", txHash).First(&swap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(model.ErrNotFound, "swap with tx %s", txHash)
	}
	if err != nil {
		return nil, err
	}
	return &swap, nil
}

func (s *store) Save(tx *gorm.DB, swap *model.SwapRecord) error {
	return tx.Save(swap).Error
}

func (s *store) Find(tx *gorm.DB, filter ListFilter) ([]*model.SwapRecord, int64, error) {
	var swaps []*model.SwapRecord
	var total int64

	query := tx.Model(&model.SwapRecord{})
	if filter.Account != "" {
		query = query.Where("user_account = ? OR maker_id = ?", filter.Account, filter.Account)
	}
	if filter.MakerID != "" {
		query = query.Where("maker_id = ?", filter.MakerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
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

	err := query.Order("id DESC").Find(&swaps).Error
	return swaps, total, err
}

func (s *store) FindAwaitingVerification(tx *gorm.DB, limit int) ([]*model.SwapRecord, error) {
	var swaps []*model.SwapRecord
	err := tx.Where("status = ?", model.SwapStatusAwaitingVerification).
		Order("tx_submitted_at ASC").
		Limit(limit).
		Find(&swaps).Error
	return swaps, err
}

func (s *store) FindTimedOut(tx *gorm.DB, now time.Time, limit int) ([]*model.SwapRecord, error) {
	var swaps []*model.SwapRecord
	err := tx.Where("status IN ? AND timeout_at < ?", []model.SwapStatus{
		model.SwapStatusPending,
		model.SwapStatusAwaitingVerification,
		model.SwapStatusVerificationFailed,
	}, now).
		Order("timeout_at ASC").
		Limit(limit).
		Find(&swaps).Error
	return swaps, err
}
