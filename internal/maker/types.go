package maker

import (
	"github.com/shopspring/decimal"
)

type Side string

const (
	// SideSell is the maker selling COS to a user
	SideSell Side = "sell"
	// SideBuy is the maker buying COS from a user
	SideBuy Side = "buy"
)

type RegisterRequest struct {
	ID             string          `json:"id" validate:"required,max=128"`
	Name           string          `json:"name" validate:"required,max=255"`
	SellPremiumBps int             `json:"sell_premium_bps" validate:"gt=-10000,lt=10000"`
	BuyPremiumBps  int             `json:"buy_premium_bps" validate:"gt=-10000,lt=10000"`
	PaymentChannel string          `json:"payment_channel" validate:"required,max=255"`
	TronAddress    string          `json:"tron_address,omitempty"`
	MinSwapAmount  decimal.Decimal `json:"min_swap_amount"`
	MaxSwapAmount  decimal.Decimal `json:"max_swap_amount"`
}

// UpdateRequest changes only the fields that are set.
type UpdateRequest struct {
	Name           *string          `json:"name,omitempty"`
	SellPremiumBps *int             `json:"sell_premium_bps,omitempty"`
	BuyPremiumBps  *int             `json:"buy_premium_bps,omitempty"`
	PaymentChannel *string          `json:"payment_channel,omitempty"`
	TronAddress    *string          `json:"tron_address,omitempty"`
	MinSwapAmount  *decimal.Decimal `json:"min_swap_amount,omitempty"`
	MaxSwapAmount  *decimal.Decimal `json:"max_swap_amount,omitempty"`
}

type Quote struct {
	MakerID     string          `json:"maker_id"`
	Side        Side            `json:"side"`
	BaseAmount  decimal.Decimal `json:"base_amount"`
	PremiumBps  int             `json:"premium_bps"`
	QuotedPrice decimal.Decimal `json:"quoted_price"`
}
