package oracle

import (
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/dwarvesf/escrow-backend/internal/model"
)

const tronAddressVersion byte = 0x41

// ValidateTronAddress accepts base58check TRON account addresses only.
func ValidateTronAddress(address string) error {
	payload, version, err := base58.CheckDecode(address)
	if err != nil {
		return model.Validationf("invalid tron address %q: %v", address, err)
	}
	if version != tronAddressVersion || len(payload) != common.AddressLength {
		return model.Validationf("invalid tron address %q", address)
	}
	return nil
}

// NormalizeTxHash strips an optional 0x prefix and lowercases the hash.
func NormalizeTxHash(txHash string) (string, error) {
	h := strings.ToLower(strings.TrimSpace(txHash))
	h = strings.TrimPrefix(h, "0x")
	if h == "" || len(h) > 64 {
		return "", model.Validationf("invalid tx hash %q", txHash)
	}
	for _, c := range h {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", model.Validationf("invalid tx hash %q", txHash)
		}
	}
	return h, nil
}

// toBase58Address converts the hex forms TronGrid returns in event results
// (0x-prefixed 20 bytes or 41-prefixed 21 bytes) into a base58check address.
func toBase58Address(raw string) (string, error) {
	if err := ValidateTronAddress(raw); err == nil {
		return raw, nil
	}

	h := strings.TrimPrefix(strings.ToLower(raw), "0x")
	if len(h) == 42 && strings.HasPrefix(h, "41") {
		h = h[2:]
	}
	if !common.IsHexAddress(h) {
		return "", errors.Errorf("unrecognized address %q", raw)
	}

	payload, err := hex.DecodeString(h)
	if err != nil {
		return "", errors.Wrapf(err, "decode address %q", raw)
	}
	return base58.CheckEncode(payload, tronAddressVersion), nil
}
