package model

import (
	"fmt"

	"github.com/dwarvesf/escrow-backend/internal/consts"
)

func OtcLockRef(orderID uint64) string {
	return fmt.Sprintf("%s:%d", consts.OTC_LOCK_PREFIX, orderID)
}

func SwapLockRef(swapID uint64) string {
	return fmt.Sprintf("%s:%d", consts.SWAP_LOCK_PREFIX, swapID)
}

func DisputeDepositLockRef(disputeID uint64, party DisputeParty) string {
	return fmt.Sprintf("%s:%d:%s", consts.DISPUTE_LOCK_PREFIX, disputeID, party)
}

// BizLockRef is the lock reference of domains that escrow directly through the adapter.
func BizLockRef(domain DisputeDomain, bizID string) string {
	return fmt.Sprintf("%s:%s", domain, bizID)
}
