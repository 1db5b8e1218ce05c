package dispute

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dwarvesf/escrow-backend/internal/events"
	"github.com/dwarvesf/escrow-backend/internal/model"
	disputestore "github.com/dwarvesf/escrow-backend/internal/store/dispute"
)

// Subject is the state machine owning a disputed entity. Every hook runs inside
// the dispute's transaction so the entity and the dispute change together.
type Subject interface {
	// OpenDisputeTx checks the complainant, marks the entity disputed and
	// returns the respondent.
	OpenDisputeTx(ctx context.Context, tx *gorm.DB, outbox *events.Outbox, opening model.DisputeOpening) (string, error)
	EscalateDisputeTx(ctx context.Context, tx *gorm.DB, outbox *events.Outbox, bizID string) error
	WithdrawDisputeTx(ctx context.Context, tx *gorm.DB, outbox *events.Outbox, bizID string) error
	// ResolveDisputeTx routes the entity's escrowed funds per the outcome.
	ResolveDisputeTx(ctx context.Context, tx *gorm.DB, outbox *events.Outbox, bizID string, outcome model.DisputeOutcome) error
}

type IDispute interface {
	Open(ctx context.Context, req OpenRequest) (*model.Dispute, error)
	Respond(ctx context.Context, req RespondRequest) (*model.Dispute, error)
	StartMediation(ctx context.Context, disputeID uint64) (*model.Dispute, error)
	SubmitEvidence(ctx context.Context, disputeID uint64, party string, cids []string) ([]*model.DisputeEvidence, error)
	Escalate(ctx context.Context, disputeID uint64) (*model.Dispute, error)
	Vote(ctx context.Context, req VoteRequest) (*model.Dispute, error)
	Withdraw(ctx context.Context, disputeID uint64, complainant string) (*model.Dispute, error)

	// ResolveDefault rules for the complainant when the respondent missed the response window.
	ResolveDefault(ctx context.Context, disputeID uint64) (*model.Dispute, error)
	// ReassignPanel draws a new panel when the current one let the arbitration window elapse.
	ReassignPanel(ctx context.Context, disputeID uint64) (*model.Dispute, error)
	// Advance applies whichever deadline transition is due for the dispute's status.
	Advance(ctx context.Context, disputeID uint64) (*model.Dispute, error)

	Get(ctx context.Context, disputeID uint64) (*model.Dispute, error)
	GetByBiz(ctx context.Context, domain model.DisputeDomain, bizID string) (*model.Dispute, error)
	ListByAccount(ctx context.Context, filter disputestore.ListFilter) ([]*model.Dispute, int64, error)
	ListEvidence(ctx context.Context, disputeID uint64) ([]*model.DisputeEvidence, error)
	ListVotes(ctx context.Context, disputeID uint64) ([]*model.DisputeVote, error)
}

type OpenRequest struct {
	Domain       model.DisputeDomain `json:"domain" validate:"required"`
	BizID        string              `json:"biz_id" validate:"required,max=128"`
	Complainant  string              `json:"complainant" validate:"required,max=128"`
	Respondent   string              `json:"respondent,omitempty" validate:"max=128"`
	Deposit      decimal.Decimal     `json:"deposit"`
	EvidenceCIDs []string            `json:"evidence_cids,omitempty"`
	Reason       string              `json:"reason" validate:"max=4096"`
}

type RespondRequest struct {
	DisputeID    uint64          `json:"-"`
	Respondent   string          `json:"respondent" validate:"required,max=128"`
	Deposit      decimal.Decimal `json:"deposit"`
	EvidenceCIDs []string        `json:"evidence_cids,omitempty"`
}

type VoteRequest struct {
	DisputeID           uint64        `json:"-"`
	Arbitrator          string        `json:"arbitrator" validate:"required,max=128"`
	Verdict             model.Verdict `json:"verdict" validate:"required"`
	ComplainantShareBps int           `json:"complainant_share_bps" validate:"gte=0,lte=10000"`
	Reason              string        `json:"reason" validate:"max=4096"`
}
