package swap

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dwarvesf/escrow-backend/internal/events"
	"github.com/dwarvesf/escrow-backend/internal/model"
	"github.com/dwarvesf/escrow-backend/internal/oracle"
	"github.com/dwarvesf/escrow-backend/internal/store/swaprecord"
)

type ISwap interface {
	// CreateSwap locks the user's COS until the maker's USDT transfer is verified.
	CreateSwap(ctx context.Context, req CreateSwapRequest) (*model.SwapRecord, error)

	// SubmitTxHash records the maker's TRC20 transfer and restarts the
	// verification window without extending the swap timeout.
	SubmitTxHash(ctx context.Context, swapID uint64, makerID, txHash string) (*model.SwapRecord, error)

	// Verify asks the oracle about the current transfer and applies the result.
	Verify(ctx context.Context, swapID uint64) (*oracle.VerificationResult, error)

	// ApplyVerification applies a result pushed by a relayer for txHash.
	ApplyVerification(ctx context.Context, swapID uint64, txHash string, status oracle.VerificationStatus) (*model.SwapRecord, error)

	// Timeout refunds the user once the maker missed timeoutAt.
	Timeout(ctx context.Context, swapID uint64) (*model.SwapRecord, error)

	Get(ctx context.Context, swapID uint64) (*model.SwapRecord, error)
	ListByAccount(ctx context.Context, filter swaprecord.ListFilter) ([]*model.SwapRecord, int64, error)

	OpenDisputeTx(ctx context.Context, tx *gorm.DB, outbox *events.Outbox, opening model.DisputeOpening) (string, error)
	EscalateDisputeTx(ctx context.Context, tx *gorm.DB, outbox *events.Outbox, bizID string) error
	WithdrawDisputeTx(ctx context.Context, tx *gorm.DB, outbox *events.Outbox, bizID string) error
	ResolveDisputeTx(ctx context.Context, tx *gorm.DB, outbox *events.Outbox, bizID string, outcome model.DisputeOutcome) error
}

type CreateSwapRequest struct {
	User        string          `json:"user" validate:"required,max=128"`
	MakerID     string          `json:"maker_id" validate:"required,max=128"`
	CosAmount   decimal.Decimal `json:"cos_amount"`
	UsdtAmount  decimal.Decimal `json:"usdt_amount"`
	UsdtAddress string          `json:"usdt_address" validate:"required"`
}
