package maker

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dwarvesf/escrow-backend/internal/model"
	"github.com/dwarvesf/escrow-backend/internal/store/makerprofile"
)

type IMaker interface {
	Register(ctx context.Context, req RegisterRequest) (*model.MakerProfile, error)
	UpdateProfile(ctx context.Context, id string, req UpdateRequest) (*model.MakerProfile, error)
	Pause(ctx context.Context, id string) (*model.MakerProfile, error)
	Resume(ctx context.Context, id string) (*model.MakerProfile, error)
	Suspend(ctx context.Context, id, reason string) (*model.MakerProfile, error)
	Unsuspend(ctx context.Context, id string) (*model.MakerProfile, error)
	Get(ctx context.Context, id string) (*model.MakerProfile, error)
	List(ctx context.Context, filter makerprofile.ListFilter) ([]*model.MakerProfile, int64, error)
	Quote(ctx context.Context, id string, side Side, baseAmount decimal.Decimal) (*Quote, error)

	// GetActiveTx returns the maker under a row lock, failing with
	// model.ErrValidation when it is paused or suspended.
	GetActiveTx(tx *gorm.DB, id string) (*model.MakerProfile, error)
	// IsMakerTx reports whether the account is a registered maker.
	IsMakerTx(tx *gorm.DB, id string) (bool, error)
	IncrementUsersServedTx(tx *gorm.DB, id string) error
}
