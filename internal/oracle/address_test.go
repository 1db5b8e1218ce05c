package oracle

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwarvesf/escrow-backend/internal/model"
)

func testTronAddress(seed byte) string {
	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = seed + byte(i)
	}
	return base58.CheckEncode(payload, tronAddressVersion)
}

func TestValidateTronAddress(t *testing.T) {
	valid := testTronAddress(1)
	tampered := valid[:len(valid)-1] + "2"
	if valid[len(valid)-1] == '2' {
		tampered = valid[:len(valid)-1] + "3"
	}

	tests := []struct {
		name    string
		address string
		wantErr bool
	}{
		{name: "valid address", address: valid, wantErr: false},
		{name: "empty", address: "", wantErr: true},
		{name: "broken checksum", address: tampered, wantErr: true},
		{name: "bitcoin version byte", address: base58.CheckEncode(make([]byte, 20), 0x00), wantErr: true},
		{name: "short payload", address: base58.CheckEncode(make([]byte, 10), tronAddressVersion), wantErr: true},
		{name: "hex address", address: "0x0000000000000000000000000000000000000001", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTronAddress(tt.address)
			if tt.wantErr {
				assert.True(t, errors.Is(err, model.ErrValidation))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNormalizeTxHash(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "short prefixed", in: "0xabc", want: "abc"},
		{name: "upper case", in: "0xABCDEF", want: "abcdef"},
		{name: "no prefix", in: "deadbeef", want: "deadbeef"},
		{name: "empty", in: "", wantErr: true},
		{name: "prefix only", in: "0x", wantErr: true},
		{name: "not hex", in: "0xzz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeTxHash(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, model.ErrValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToBase58Address(t *testing.T) {
	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(0xa0 + i)
	}
	want := base58.CheckEncode(payload, tronAddressVersion)

	got, err := toBase58Address("0xa0a1a2a3a4a5a6a7a8a9aaabacadaeafb0b1b2b3")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = toBase58Address("41a0a1a2a3a4a5a6a7a8a9aaabacadaeafb0b1b2b3")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = toBase58Address(want)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = toBase58Address("garbage")
	assert.Error(t, err)
}
