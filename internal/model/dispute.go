package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type DisputeDomain string

const (
	DisputeDomainOtc         DisputeDomain = "otc"
	DisputeDomainSwap        DisputeDomain = "swap"
	DisputeDomainDivination  DisputeDomain = "divination"
	DisputeDomainMatchmaking DisputeDomain = "matchmaking"
)

func (d DisputeDomain) Valid() bool {
	switch d {
	case DisputeDomainOtc, DisputeDomainSwap, DisputeDomainDivination, DisputeDomainMatchmaking:
		return true
	}
	return false
}

type DisputeStatus string

const (
	DisputeStatusSubmitted              DisputeStatus = "submitted"
	DisputeStatusResponded              DisputeStatus = "responded"
	DisputeStatusMediating              DisputeStatus = "mediating"
	DisputeStatusArbitrating            DisputeStatus = "arbitrating"
	DisputeStatusResolvedComplainantWin DisputeStatus = "resolved_complainant_win"
	DisputeStatusResolvedRespondentWin  DisputeStatus = "resolved_respondent_win"
	DisputeStatusResolvedSettlement     DisputeStatus = "resolved_settlement"
	DisputeStatusWithdrawn              DisputeStatus = "withdrawn"
)

var disputeTransitions = map[DisputeStatus][]DisputeStatus{
	DisputeStatusSubmitted: {
		DisputeStatusResponded, DisputeStatusWithdrawn, DisputeStatusResolvedComplainantWin,
	},
	DisputeStatusResponded: {
		DisputeStatusMediating,
	},
	DisputeStatusMediating: {
		DisputeStatusArbitrating,
	},
	DisputeStatusArbitrating: {
		DisputeStatusArbitrating, DisputeStatusResolvedComplainantWin, DisputeStatusResolvedRespondentWin,
		DisputeStatusResolvedSettlement,
	},
}

func (s DisputeStatus) IsTerminal() bool {
	switch s {
	case DisputeStatusResolvedComplainantWin, DisputeStatusResolvedRespondentWin,
		DisputeStatusResolvedSettlement, DisputeStatusWithdrawn:
		return true
	}
	return false
}

func (s DisputeStatus) CanTransitionTo(next DisputeStatus) bool {
	for _, allowed := range disputeTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OpenDisputeStatuses lists every non-terminal status.
var OpenDisputeStatuses = []DisputeStatus{
	DisputeStatusSubmitted, DisputeStatusResponded, DisputeStatusMediating, DisputeStatusArbitrating,
}

type Verdict string

const (
	VerdictComplainantWin Verdict = "complainant_win"
	VerdictRespondentWin  Verdict = "respondent_win"
	VerdictSettlement     Verdict = "settlement"
)

func (v Verdict) Valid() bool {
	switch v {
	case VerdictComplainantWin, VerdictRespondentWin, VerdictSettlement:
		return true
	}
	return false
}

func (v Verdict) Status() DisputeStatus {
	switch v {
	case VerdictComplainantWin:
		return DisputeStatusResolvedComplainantWin
	case VerdictRespondentWin:
		return DisputeStatusResolvedRespondentWin
	default:
		return DisputeStatusResolvedSettlement
	}
}

type DisputeParty string

const (
	DisputePartyComplainant DisputeParty = "complainant"
	DisputePartyRespondent  DisputeParty = "respondent"
)

// Reason codes recorded on resolved disputes.
const (
	DisputeReasonDefaultJudgment = "default_judgment"
	DisputeReasonArbitration     = "arbitration"
	DisputeReasonWithdrawn       = "withdrawn"
)

type Dispute struct {
	ID                  uint64          `gorm:"column:id;primaryKey;autoIncrement" json:"dispute_id"`
	Domain              DisputeDomain   `gorm:"column:domain;type:varchar(32);not null;index:idx_disputes_biz" json:"domain"`
	BizID               string          `gorm:"column:biz_id;type:varchar(128);not null;index:idx_disputes_biz" json:"biz_id"`
	Complainant         string          `gorm:"column:complainant;type:varchar(128);not null;index" json:"complainant"`
	Respondent          string          `gorm:"column:respondent;type:varchar(128);not null;index" json:"respondent"`
	DepositComplainant  decimal.Decimal `gorm:"column:deposit_complainant;type:numeric(78,0);not null" json:"deposit_complainant"`
	DepositRespondent   decimal.Decimal `gorm:"column:deposit_respondent;type:numeric(78,0);not null;default:0" json:"deposit_respondent"`
	Reason              string          `gorm:"column:reason;type:text" json:"reason"`
	Status              DisputeStatus   `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	DeadlineAt          time.Time       `gorm:"column:deadline_at;not null;index" json:"deadline_at"`
	Round               int             `gorm:"column:round;not null;default:0" json:"round"`
	Arbitrators         string          `gorm:"column:arbitrators;type:text" json:"-"`
	ComplainantShareBps int             `gorm:"column:complainant_share_bps;not null;default:0" json:"complainant_share_bps"`
	ResolutionReason    string          `gorm:"column:resolution_reason;type:varchar(64)" json:"resolution_reason,omitempty"`
	ResolvedAt          *time.Time      `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
	ActiveKey           *string         `gorm:"column:active_key;type:varchar(192);uniqueIndex" json:"-"`
	CreatedAt           time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Dispute) TableName() string {
	return "disputes"
}

// DisputeActiveKey is unique across non-terminal disputes.
func DisputeActiveKey(domain DisputeDomain, bizID string) string {
	return string(domain) + ":" + bizID
}

func (d *Dispute) ArbitratorList() []string {
	if d.Arbitrators == "" {
		return nil
	}
	return strings.Split(d.Arbitrators, ",")
}

func (d *Dispute) SetArbitrators(arbitrators []string) {
	d.Arbitrators = strings.Join(arbitrators, ",")
}

func (d *Dispute) HasArbitrator(account string) bool {
	for _, a := range d.ArbitratorList() {
		if a == account {
			return true
		}
	}
	return false
}

func (d *Dispute) PartyOf(account string) (DisputeParty, bool) {
	switch account {
	case d.Complainant:
		return DisputePartyComplainant, true
	case d.Respondent:
		return DisputePartyRespondent, true
	}
	return "", false
}

type DisputeEvidence struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	DisputeID uint64    `gorm:"column:dispute_id;not null;index" json:"dispute_id"`
	Submitter string    `gorm:"column:submitter;type:varchar(128);not null" json:"submitter"`
	CID       string    `gorm:"column:cid;type:varchar(128);not null" json:"cid"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (DisputeEvidence) TableName() string {
	return "dispute_evidences"
}

type DisputeVote struct {
	ID                  uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	DisputeID           uint64    `gorm:"column:dispute_id;not null;uniqueIndex:idx_dispute_votes_unique" json:"dispute_id"`
	Round               int       `gorm:"column:round;not null;uniqueIndex:idx_dispute_votes_unique" json:"round"`
	Arbitrator          string    `gorm:"column:arbitrator;type:varchar(128);not null;uniqueIndex:idx_dispute_votes_unique" json:"arbitrator"`
	Verdict             Verdict   `gorm:"column:verdict;type:varchar(32);not null" json:"verdict"`
	ComplainantShareBps int       `gorm:"column:complainant_share_bps;not null;default:0" json:"complainant_share_bps"`
	Reason              string    `gorm:"column:reason;type:text" json:"reason"`
	CreatedAt           time.Time `gorm:"column:created_at" json:"created_at"`
}

func (DisputeVote) TableName() string {
	return "dispute_votes"
}

// DisputeOutcome is handed to the disputed entity so it can route its escrowed funds.
type DisputeOutcome struct {
	DisputeID           uint64
	Verdict             Verdict
	Complainant         string
	Respondent          string
	ComplainantShareBps int
}

// Winner is empty for a settlement.
func (o DisputeOutcome) Winner() string {
	switch o.Verdict {
	case VerdictComplainantWin:
		return o.Complainant
	case VerdictRespondentWin:
		return o.Respondent
	}
	return ""
}

// DisputeOpening is handed to the disputed entity when a dispute is opened on it.
type DisputeOpening struct {
	BizID        string
	Complainant  string
	Respondent   string
	EvidenceCIDs []string
}
