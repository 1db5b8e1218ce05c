package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type SwapStatus string

const (
	SwapStatusPending              SwapStatus = "pending"
	SwapStatusAwaitingVerification SwapStatus = "awaiting_verification"
	SwapStatusCompleted            SwapStatus = "completed"
	SwapStatusVerificationFailed   SwapStatus = "verification_failed"
	SwapStatusUserReported         SwapStatus = "user_reported"
	SwapStatusArbitrating          SwapStatus = "arbitrating"
	SwapStatusArbitrationApproved  SwapStatus = "arbitration_approved"
	SwapStatusArbitrationRejected  SwapStatus = "arbitration_rejected"
	SwapStatusRefunded             SwapStatus = "refunded"
)

var swapTransitions = map[SwapStatus][]SwapStatus{
	SwapStatusPending: {
		SwapStatusAwaitingVerification, SwapStatusUserReported, SwapStatusRefunded,
	},
	SwapStatusAwaitingVerification: {
		SwapStatusAwaitingVerification, SwapStatusCompleted, SwapStatusVerificationFailed,
		SwapStatusUserReported, SwapStatusRefunded,
	},
	SwapStatusVerificationFailed: {
		SwapStatusAwaitingVerification, SwapStatusUserReported, SwapStatusRefunded,
	},
	SwapStatusUserReported: {
		SwapStatusArbitrating, SwapStatusArbitrationApproved, SwapStatusArbitrationRejected,
		SwapStatusPending, SwapStatusAwaitingVerification, SwapStatusVerificationFailed,
	},
	SwapStatusArbitrating: {
		SwapStatusArbitrationApproved, SwapStatusArbitrationRejected,
	},
}

func (s SwapStatus) Valid() bool {
	_, ok := swapTransitions[s]
	return ok || s.IsTerminal()
}

func (s SwapStatus) IsTerminal() bool {
	switch s {
	case SwapStatusCompleted, SwapStatusArbitrationApproved, SwapStatusArbitrationRejected, SwapStatusRefunded:
		return true
	}
	return false
}

func (s SwapStatus) CanTransitionTo(next SwapStatus) bool {
	for _, allowed := range swapTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Reportable statuses are the ones a user can still dispute.
func (s SwapStatus) Reportable() bool {
	switch s {
	case SwapStatusPending, SwapStatusAwaitingVerification, SwapStatusVerificationFailed:
		return true
	}
	return false
}

// Reason codes recorded on failed or refunded swaps.
const (
	SwapReasonAmountMismatch  = "amount_mismatch"
	SwapReasonAddressMismatch = "address_mismatch"
	SwapReasonTxNotFound      = "tx_not_found"
	SwapReasonTimeout         = "timeout"
	SwapReasonUserWin         = "arbitration_user_win"
	SwapReasonMakerWin        = "arbitration_maker_win"
)

type SwapRecord struct {
	ID                 uint64          `gorm:"column:id;primaryKey;autoIncrement" json:"swap_id"`
	MakerID            string          `gorm:"column:maker_id;type:varchar(128);not null;index" json:"maker_id"`
	User               string          `gorm:"column:user_account;type:varchar(128);not null;index" json:"user"`
	CosAmount          decimal.Decimal `gorm:"column:cos_amount;type:numeric(78,0);not null" json:"cos_amount"`
	UsdtAmount         decimal.Decimal `gorm:"column:usdt_amount;type:numeric(78,0);not null" json:"usdt_amount"`
	UsdtAddress        string          `gorm:"column:usdt_address;type:varchar(64);not null" json:"usdt_address"`
	Status             SwapStatus      `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	TxHash             string          `gorm:"column:trc20_tx_hash;type:varchar(128);index" json:"trc20_tx_hash,omitempty"`
	TxSubmittedAt      *time.Time      `gorm:"column:tx_submitted_at" json:"tx_submitted_at,omitempty"`
	VerifyDeadlineAt   *time.Time      `gorm:"column:verify_deadline_at" json:"verify_deadline_at,omitempty"`
	CompletedAt        *time.Time      `gorm:"column:completed_at" json:"completed_at,omitempty"`
	EvidenceCID        string          `gorm:"column:evidence_cid;type:varchar(128)" json:"evidence_cid,omitempty"`
	StatusBeforeReport SwapStatus      `gorm:"column:status_before_report;type:varchar(32)" json:"-"`
	FailureReason      string          `gorm:"column:failure_reason;type:varchar(64)" json:"failure_reason,omitempty"`
	TimeoutAt          time.Time       `gorm:"column:timeout_at;not null;index" json:"timeout_at"`
	CreatedAt          time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (SwapRecord) TableName() string {
	return "swap_records"
}

func (s *SwapRecord) LockRef() string {
	return SwapLockRef(s.ID)
}
