package oracle

import (
	"time"

	"github.com/shopspring/decimal"
)

type VerificationStatus string

const (
	VerificationConfirmed       VerificationStatus = "confirmed"
	VerificationNotFound        VerificationStatus = "not_found"
	VerificationAmountMismatch  VerificationStatus = "amount_mismatch"
	VerificationAddressMismatch VerificationStatus = "address_mismatch"
)

func (s VerificationStatus) Valid() bool {
	switch s {
	case VerificationConfirmed, VerificationNotFound, VerificationAmountMismatch, VerificationAddressMismatch:
		return true
	}
	return false
}

type VerificationResult struct {
	Status          VerificationStatus `json:"status"`
	TxHash          string             `json:"txHash"`
	ObservedAddress string             `json:"observedAddress,omitempty"`
	ObservedAmount  decimal.Decimal    `json:"observedAmount"`
	CheckedAt       time.Time          `json:"checkedAt"`
}

// TransferEvent is a TRC20 Transfer log with addresses in base58check form.
type TransferEvent struct {
	TxHash          string
	ContractAddress string
	From            string
	To              string
	Value           decimal.Decimal
	BlockNumber     uint64
}

type tronGridEventsResponse struct {
	Data    []tronGridEvent `json:"data"`
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
}

type tronGridEvent struct {
	BlockNumber     uint64            `json:"block_number"`
	BlockTimestamp  int64             `json:"block_timestamp"`
	ContractAddress string            `json:"contract_address"`
	EventName       string            `json:"event_name"`
	Result          map[string]string `json:"result"`
	TransactionID   string            `json:"transaction_id"`
}
