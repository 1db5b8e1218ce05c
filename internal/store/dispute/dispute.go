package dispute

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

func (s *store) Create(tx *gorm.DB, dispute *model.Dispute) (*model.Dispute, error) {
	return dispute, tx.Create(dispute).Error
}

func (s *store) Get(tx *gorm.DB, id uint64) (*model.Dispute, error) {
	return s.get(tx, id)
}

func (s *store) GetForUpdate(tx *gorm.DB, id uint64) (*model.Dispute, error) {
	return s.get(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (s *store) get(tx *gorm.DB, id uint64) (*model.Dispute, error) {
	var dispute model.Dispute
	err := tx.Where("id = ?", id).First(&dispute).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(model.ErrNotFound, "dispute %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (s *store) GetActiveByBiz(tx *gorm.DB, domain model.DisputeDomain, bizID string) (*model.Dispute, error) {
	var dispute model.Dispute
	err := tx.Where("active_key = ?", model.DisputeActiveKey(domain, bizID)).First(&dispute).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(model.ErrNotFound, "active dispute on %s/%s", domain, bizID)
	}
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (s *store) GetLatestByBiz(tx *gorm.DB, domain model.DisputeDomain, bizID string) (*model.Dispute, error) {
	var dispute model.Dispute
	err := tx.Where("domain = ? AND biz_id = ?", domain, bizID).Order("id DESC").First(&dispute).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(model.ErrNotFound, "dispute on %s/%s", domain, bizID)
	}
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (s *store) Save(tx *gorm.DB, dispute *model.Dispute) error {
	return tx.Save(dispute).Error
}

func (s *store) Find(tx *gorm.DB, filter ListFilter) ([]*model.Dispute, int64, error) {
	var disputes []*model.Dispute
	var total int64

	query := tx.Model(&model.Dispute{})
	if filter.Account != "" {
		query = query.Where("complainant = ? OR respondent = ?", filter.Account, filter.Account)
	}
	if filter.Domain != "" {
		query = query.Where("domain = ?", filter.Domain)
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

	err := query.Order("id DESC").Find(&disputes).Error
	return disputes, total, err
}

func (s *store) FindDue(tx *gorm.DB, statuses []model.DisputeStatus, now time.Time, limit int) ([]*model.Dispute, error) {
	var disputes []*model.Dispute
	err := tx.Where("status IN ? AND deadline_at < ?", statuses, now).
		Order("deadline_at ASC").
		Limit(limit).
		Find(&disputes).Error
	return disputes, err
}

func (s *store) AddEvidence(tx *gorm.DB, evidences []*model.DisputeEvidence) error {
	if len(evidences) == 0 {
		return nil
	}
	return tx.Create(&evidences).Error
}

func (s *store) ListEvidence(tx *gorm.DB, disputeID uint64) ([]*model.DisputeEvidence, error) {
	var evidences []*model.DisputeEvidence
	err := tx.Where("dispute_id = ?", disputeID).Order("id ASC").Find(&evidences).Error
	return evidences, err
}

func (s *store) AddVote(tx *gorm.DB, vote *model.DisputeVote) error {
	return tx.Create(vote).Error
}

func (s *store) ListVotes(tx *gorm.DB, disputeID uint64, round int) ([]*model.DisputeVote, error) {
	var votes []*model.DisputeVote
	err := tx.Where("dispute_id = ? AND round = ?", disputeID, round).Order("id ASC").Find(&votes).Error
	return votes, err
}
