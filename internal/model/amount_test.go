package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount("100000000000000")
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.NewFromInt(100_000_000_000_000)))

	amount, err = ParseAmount("0")
	require.NoError(t, err)
	assert.True(t, amount.IsZero())

	for _, raw := range []string{"", "abc", "-1", "1.5"} {
		_, err := ParseAmount(raw)
		assert.ErrorIs(t, err, ErrValidation, raw)
	}
}

func TestMulBps(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		bps    int64
		want   int64
	}{
		{"half", 100, 5000, 50},
		{"rounds down", 101, 5000, 50},
		{"full", 7, 10000, 7},
		{"zero bps", 7, 0, 0},
		{"premium", 1000, 10250, 1025},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MulBps(decimal.NewFromInt(tt.amount), tt.bps)
			assert.True(t, got.Equal(decimal.NewFromInt(tt.want)), got.String())
		})
	}
}

func TestIsPositiveAmount(t *testing.T) {
	assert.True(t, IsPositiveAmount(decimal.NewFromInt(1)))
	assert.False(t, IsPositiveAmount(decimal.Zero))
	assert.False(t, IsPositiveAmount(decimal.NewFromInt(-3)))
	assert.False(t, IsPositiveAmount(decimal.RequireFromString("0.5")))
}
