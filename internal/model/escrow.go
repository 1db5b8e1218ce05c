package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type EscrowLockStatus string

const (
	EscrowLockStatusLocked   EscrowLockStatus = "locked"
	EscrowLockStatusReleased EscrowLockStatus = "released"
	EscrowLockStatusRefunded EscrowLockStatus = "refunded"
	EscrowLockStatusSettled  EscrowLockStatus = "settled"
)

func (s EscrowLockStatus) IsTerminal() bool {
	return s != EscrowLockStatusLocked
}

// EscrowLock is the balance held under a single lock reference.
// Amount always equals Remaining + Released + Refunded + Slashed.
type EscrowLock struct {
	ID           uint64           `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	LockRef      string           `gorm:"column:lock_ref;type:varchar(192);not null;uniqueIndex" json:"lock_ref"`
	Owner        string           `gorm:"column:owner;type:varchar(128);not null;index" json:"owner"`
	Amount       decimal.Decimal  `gorm:"column:amount;type:numeric(78,0);not null" json:"amount"`
	Remaining    decimal.Decimal  `gorm:"column:remaining;type:numeric(78,0);not null" json:"remaining"`
	Released     decimal.Decimal  `gorm:"column:released;type:numeric(78,0);not null;default:0" json:"released"`
	Refunded     decimal.Decimal  `gorm:"column:refunded;type:numeric(78,0);not null;default:0" json:"refunded"`
	Slashed      decimal.Decimal  `gorm:"column:slashed;type:numeric(78,0);not null;default:0" json:"slashed"`
	SlashedTo    string           `gorm:"column:slashed_to;type:varchar(128)" json:"slashed_to,omitempty"`
	Status       EscrowLockStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	ReleasedTo   string           `gorm:"column:released_to;type:varchar(128)" json:"released_to,omitempty"`
	LastBlockRef string           `gorm:"column:last_block_ref;type:varchar(128)" json:"last_block_ref,omitempty"`
	CreatedAt    time.Time        `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time        `gorm:"column:updated_at" json:"updated_at"`
}

func (EscrowLock) TableName() string {
	return "escrow_locks"
}

func (l *EscrowLock) Conserved() bool {
	return l.Remaining.Add(l.Released).Add(l.Refunded).Add(l.Slashed).Equal(l.Amount)
}

type EscrowAccount struct {
	Account   string          `gorm:"column:account;primaryKey;type:varchar(128)" json:"account"`
	Available decimal.Decimal `gorm:"column:available;type:numeric(78,0);not null;default:0" json:"available"`
	Locked    decimal.Decimal `gorm:"column:locked;type:numeric(78,0);not null;default:0" json:"locked"`
	UpdatedAt time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (EscrowAccount) TableName() string {
	return "escrow_accounts"
}

// All lists every persisted entity, in migration order.
func All() []interface{} {
	return []interface{}{
		&MakerProfile{},
		&EscrowAccount{},
		&EscrowLock{},
		&OtcOrder{},
		&SwapRecord{},
		&Dispute{},
		&DisputeEvidence{},
		&DisputeVote{},
	}
}
