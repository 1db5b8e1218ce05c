package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type MakerProfile struct {
	ID             string          `gorm:"column:id;primaryKey;type:varchar(128)" json:"id"`
	Name           string          `gorm:"column:name;type:varchar(255);not null" json:"name"`
	SellPremiumBps int             `gorm:"column:sell_premium_bps;not null;default:0" json:"sell_premium_bps"`
	BuyPremiumBps  int             `gorm:"column:buy_premium_bps;not null;default:0" json:"buy_premium_bps"`
	UsersServed    uint64          `gorm:"column:users_served;not null;default:0" json:"users_served"`
	ServicePaused  bool            `gorm:"column:service_paused;not null;default:false" json:"service_paused"`
	Suspended      bool            `gorm:"column:suspended;not null;default:false" json:"suspended"`
	SuspendReason  string          `gorm:"column:suspend_reason;type:varchar(255)" json:"suspend_reason,omitempty"`
	PaymentChannel string          `gorm:"column:payment_channel;type:varchar(255);not null" json:"payment_channel"`
	TronAddress    string          `gorm:"column:tron_address;type:varchar(64)" json:"tron_address,omitempty"`
	MinSwapAmount  decimal.Decimal `gorm:"column:min_swap_amount;type:numeric(78,0);not null;default:0" json:"min_swap_amount"`
	MaxSwapAmount  decimal.Decimal `gorm:"column:max_swap_amount;type:numeric(78,0);not null;default:0" json:"max_swap_amount"`
	CreatedAt      time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (MakerProfile) TableName() string {
	return "maker_profiles"
}

// Active reports whether the maker currently accepts new orders and swaps.
func (m *MakerProfile) Active() bool {
	return !m.ServicePaused && !m.Suspended
}

// WithinCapacity checks a swap amount against the maker's bounds. Zero bounds are unbounded.
func (m *MakerProfile) WithinCapacity(amount decimal.Decimal) bool {
	if m.MinSwapAmount.IsPositive() && amount.LessThan(m.MinSwapAmount) {
		return false
	}
	if m.MaxSwapAmount.IsPositive() && amount.GreaterThan(m.MaxSwapAmount) {
		return false
	}
	return true
}
