package makerprofile

import (
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

func (s *store) Create(tx *gorm.DB, maker *model.MakerProfile) (*model.MakerProfile, error) {
	return maker, tx.Create(maker).Error
}

func (s *store) Get(tx *gorm.DB, id string) (*model.MakerProfile, error) {
	return s.get(tx, id)
}

func (s *store) GetForUpdate(tx *gorm.DB, id string) (*model.MakerProfile, error) {
	return s.get(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (s *store) get(tx *gorm.DB, id string) (*model.MakerProfile, error) {
	var maker model.MakerProfile
	err := tx.Where("id = ?", id).First(&maker).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(model.ErrNotFound, "maker %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &maker, nil
}

func (s *store) Save(tx *gorm.DB, maker *model.MakerProfile) error {
	return tx.Save(maker).Error
}

func (s *store) IncrementUsersServed(tx *gorm.DB, id string) error {
	return tx.Model(&model.MakerProfile{}).
		Where("id = ?", id).
		UpdateColumn("users_served", gorm.Expr("users_served + ?", 1)).Error
}

func (s *store) Find(tx *gorm.DB, filter ListFilter) ([]*model.MakerProfile, int64, error) {
	var makers []*model.MakerProfile
	var total int64

	query := tx.Model(&model.MakerProfile{})
	if filter.ActiveOnly {
		query = query.Where("service_paused = ? AND suspended = ?", false, false)
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

	err := query.Order("users_served DESC, id ASC").Find(&makers).Error
	return makers, total, err
}
