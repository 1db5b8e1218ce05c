package model

import (
	"github.com/shopspring/decimal"

	"github.com/dwarvesf/escrow-backend/internal/consts"
)

var bpsDenominator = decimal.NewFromInt(consts.BPS_DENOMINATOR)

// ParseAmount parses a fixed-point integer amount in the token's smallest unit.
func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, Validationf("invalid amount %q", raw)
	}
	if amount.IsNegative() {
		return decimal.Zero, Validationf("negative amount %q", raw)
	}
	if !amount.Equal(amount.Truncate(0)) {
		return decimal.Zero, Validationf("fractional amount %q", raw)
	}
	return amount, nil
}

// MulBps returns floor(amount * bps / 10000).
func MulBps(amount decimal.Decimal, bps int64) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(bps)).Div(bpsDenominator).Floor()
}

// IsPositiveAmount reports whether amount is a whole number of smallest units above zero.
func IsPositiveAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Truncate(0))
}
