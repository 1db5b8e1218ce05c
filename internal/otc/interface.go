package otc

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dwarvesf/escrow-backend/internal/events"
	"github.com/dwarvesf/escrow-backend/internal/model"
	"github.com/dwarvesf/escrow-backend/internal/store/otcorder"
)

type IOtc interface {
	// CreateOrder locks the seller's qty under the order's lock reference.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*model.OtcOrder, error)

	// MarkPaid records the buyer's off-ledger payment.
	MarkPaid(ctx context.Context, orderID uint64, buyer, paymentRef string) (*model.OtcOrder, error)

	// ConfirmReceipt records the seller's confirmation and releases the
	// order once the confirmation grace has elapsed.
	ConfirmReceipt(ctx context.Context, orderID uint64, seller string) (*model.OtcOrder, error)

	// FinalizeConfirmed releases an order whose confirmation grace elapsed.
	FinalizeConfirmed(ctx context.Context, orderID uint64) (*model.OtcOrder, error)

	Cancel(ctx context.Context, orderID uint64, caller string) (*model.OtcOrder, error)

	// Expire refunds an unconfirmed order past its deadline.
	Expire(ctx context.Context, orderID uint64) (*model.OtcOrder, error)

	Get(ctx context.Context, orderID uint64) (*model.OtcOrder, error)
	ListByAccount(ctx context.Context, filter otcorder.ListFilter) ([]*model.OtcOrder, int64, error)

	// Dispute subject hooks, called inside the dispute engine's transaction.
	OpenDisputeTx(ctx context.Context, tx *gorm.DB, outbox *events.Outbox, opening model.DisputeOpening) (string, error)
	EscalateDisputeTx(ctx context.Context, tx *gorm.DB, outbox *events.Outbox, bizID string) error
	WithdrawDisputeTx(ctx context.Context, tx *gorm.DB, outbox *events.Outbox, bizID string) error
	ResolveDisputeTx(ctx context.Context, tx *gorm.DB, outbox *events.Outbox, bizID string, outcome model.DisputeOutcome) error
}

type CreateOrderRequest struct {
	Buyer  string          `json:"buyer" validate:"required,max=128"`
	Seller string          `json:"seller" validate:"required,max=128"`
	Qty    decimal.Decimal `json:"qty"`
	Amount decimal.Decimal `json:"amount"`
	// TTL overrides the configured order lifetime when positive.
	TTL time.Duration `json:"ttl,omitempty"`
}
