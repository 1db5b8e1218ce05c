package dispute

import (
	"time"

	"gorm.io/gorm"

	"github.com/dwarvesf/escrow-backend/internal/model"
)

type IStore interface {
	Create(tx *gorm.DB, dispute *model.Dispute) (*model.Dispute, error)
	Get(tx *gorm.DB, id uint64) (*model.Dispute, error)
	GetForUpdate(tx *gorm.DB, id uint64) (*model.Dispute, error)
	// GetActiveByBiz returns the non-terminal dispute referencing (domain, bizID).
	GetActiveByBiz(tx *gorm.DB, domain model.DisputeDomain, bizID string) (*model.Dispute, error)
	// GetLatestByBiz returns the most recent dispute on (domain, bizID), terminal or not.
	GetLatestByBiz(tx *gorm.DB, domain model.DisputeDomain, bizID string) (*model.Dispute, error)
	Save(tx *gorm.DB, dispute *model.Dispute) error
	Find(tx *gorm.DB, filter ListFilter) ([]*model.Dispute, int64, error)
	// FindDue lists disputes in the given statuses whose phase deadline has passed.
	FindDue(tx *gorm.DB, statuses []model.DisputeStatus, now time.Time, limit int) ([]*model.Dispute, error)

	AddEvidence(tx *gorm.DB, evidences []*model.DisputeEvidence) error
	ListEvidence(tx *gorm.DB, disputeID uint64) ([]*model.DisputeEvidence, error)
	AddVote(tx *gorm.DB, vote *model.DisputeVote) error
	ListVotes(tx *gorm.DB, disputeID uint64, round int) ([]*model.DisputeVote, error)
}

type ListFilter struct {
	Account string
	Domain  model.DisputeDomain
	Status  model.DisputeStatus
	Limit   int
	Offset  int
}
