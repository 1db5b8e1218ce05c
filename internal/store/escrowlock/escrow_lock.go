package escrowlock

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

func (s *store) Create(tx *gorm.DB, lock *model.EscrowLock) (*model.EscrowLock, error) {
	return lock, tx.Create(lock).Error
}

func (s *store) Get(tx *gorm.DB, lockRef string) (*model.EscrowLock, error) {
	return s.get(tx, lockRef)
}

func (s *store) GetForUpdate(tx *gorm.DB, lockRef string) (*model.EscrowLock, error) {
	return s.get(tx.Clauses(clause.Locking{Strength: "UPDATE"}), lockRef)
}

func (s *store) get(tx *gorm.DB, lockRef string) (*model.EscrowLock, error) {
	var lock model.EscrowLock
	err := tx.Where("lock_ref = ?", lockRef).First(&lock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(model.ErrNotFound, "lock %s", lockRef)
	}
	if err != nil {
		return nil, err
	}
	return &lock, nil
}

func (s *store) Save(tx *gorm.DB, lock *model.EscrowLock) error {
	return tx.Save(lock).Error
}

func (s *store) ListByOwner(tx *gorm.DB, owner string, status model.EscrowLockStatus) ([]*model.EscrowLock, error) {
	var locks []*model.EscrowLock
	query := tx.Where("owner = ?", owner)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("id DESC").Find(&locks).Error
	return locks, err
}
