package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OtcOrderState string

const (
	OtcOrderStateCreated         OtcOrderState = "created"
	OtcOrderStatePaidOrCommitted OtcOrderState = "paid_or_committed"
	OtcOrderStateDisputed        OtcOrderState = "disputed"
	OtcOrderStateReleased        OtcOrderState = "released"
	OtcOrderStateCanceled        OtcOrderState = "canceled"
	OtcOrderStateRefunded        OtcOrderState = "refunded"
	OtcOrderStateExpired         OtcOrderState = "expired"
)

// Disputed orders return to their previous state when the dispute is withdrawn.
var otcOrderTransitions = map[OtcOrderState][]OtcOrderState{
	OtcOrderStateCreated: {
		OtcOrderStatePaidOrCommitted, OtcOrderStateDisputed, OtcOrderStateCanceled, OtcOrderStateExpired,
	},
	OtcOrderStatePaidOrCommitted: {
		OtcOrderStateReleased, OtcOrderStateDisputed, OtcOrderStateCanceled, OtcOrderStateExpired,
	},
	OtcOrderStateDisputed: {
		OtcOrderStateReleased, OtcOrderStateRefunded, OtcOrderStateCreated, OtcOrderStatePaidOrCommitted,
	},
}

func (s OtcOrderState) Valid() bool {
	switch s {
	case OtcOrderStateCreated, OtcOrderStatePaidOrCommitted, OtcOrderStateDisputed,
		OtcOrderStateReleased, OtcOrderStateCanceled, OtcOrderStateRefunded, OtcOrderStateExpired:
		return true
	}
	return false
}

func (s OtcOrderState) IsTerminal() bool {
	switch s {
	case OtcOrderStateReleased, OtcOrderStateCanceled, OtcOrderStateRefunded, OtcOrderStateExpired:
		return true
	}
	return false
}

func (s OtcOrderState) CanTransitionTo(next OtcOrderState) bool {
	for _, allowed := range otcOrderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Reason codes recorded on terminal orders.
const (
	OtcCloseReasonConfirmed         = "confirmed"
	OtcCloseReasonCanceledByBuyer   = "canceled_by_buyer"
	OtcCloseReasonCanceledBySeller  = "canceled_by_seller"
	OtcCloseReasonExpired           = "expired"
	OtcCloseReasonDisputeBuyerWin   = "dispute_buyer_win"
	OtcCloseReasonDisputeSellerWin  = "dispute_seller_win"
	OtcCloseReasonDisputeSettlement = "dispute_settlement"
)

type OtcOrder struct {
	ID                 uint64          `gorm:"column:id;primaryKey;autoIncrement" json:"order_id"`
	Buyer              string          `gorm:"column:buyer;type:varchar(128);not null;index" json:"buyer"`
	Seller             string          `gorm:"column:seller;type:varchar(128);not null;index" json:"seller"`
	Qty                decimal.Decimal `gorm:"column:qty;type:numeric(78,0);not null" json:"qty"`
	Amount             decimal.Decimal `gorm:"column:amount;type:numeric(78,0);not null" json:"amount"`
	State              OtcOrderState   `gorm:"column:state;type:varchar(32);not null;index" json:"state"`
	IsFirstPurchase    bool            `gorm:"column:is_first_purchase;not null;default:false" json:"is_first_purchase"`
	PaymentRef         string          `gorm:"column:payment_ref;type:varchar(255)" json:"payment_ref,omitempty"`
	PaidAt             *time.Time      `gorm:"column:paid_at" json:"paid_at,omitempty"`
	SellerConfirmedAt  *time.Time      `gorm:"column:seller_confirmed_at" json:"seller_confirmed_at,omitempty"`
	StateBeforeDispute OtcOrderState   `gorm:"column:state_before_dispute;type:varchar(32)" json:"-"`
	CloseReason        string          `gorm:"column:close_reason;type:varchar(64)" json:"close_reason,omitempty"`
	ClosedAt           *time.Time      `gorm:"column:closed_at" json:"closed_at,omitempty"`
	ExpireAt           time.Time       `gorm:"column:expire_at;not null;index" json:"expire_at"`
	CreatedAt          time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (OtcOrder) TableName() string {
	return "otc_orders"
}

func (o *OtcOrder) LockRef() string {
	return OtcLockRef(o.ID)
}

// IsParty reports whether account is the buyer or the seller.
func (o *OtcOrder) IsParty(account string) bool {
	return account == o.Buyer || account == o.Seller
}

// Counterparty returns the other side of the order.
func (o *OtcOrder) Counterparty(account string) string {
	if account == o.Buyer {
		return o.Seller
	}
	return o.Buyer
}
