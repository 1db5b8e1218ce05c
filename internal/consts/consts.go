package consts

const (
	// BPS_DENOMINATOR is the basis point scale used by premiums, slash fractions and settlement ratios.
	BPS_DENOMINATOR = 10000

	OTC_LOCK_PREFIX     = "otc"
	SWAP_LOCK_PREFIX    = "swap"
	DISPUTE_LOCK_PREFIX = "dispute"

	EVENT_STREAM_ORDERS   = "escrow.orders"
	EVENT_STREAM_SWAPS    = "escrow.swaps"
	EVENT_STREAM_DISPUTES = "escrow.disputes"
)
