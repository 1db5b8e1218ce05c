package sweeper

import (
	"context"

	"github.com/dwarvesf/escrow-backend/internal/ledger"
)

type ISweeper interface {
	// Sweep runs one pass over every due entity. Per-entity failures are
	// counted in the report; the error is set only when a step could not list
	// its candidates.
	Sweep(ctx context.Context) (*Report, error)

	// WatchFinalized sweeps after every finalized block until ctx is done or
	// the subscription fails.
	WatchFinalized(ctx context.Context, client ledger.IClient) error
}

type StepReport struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

type Report struct {
	FinalizedOrders  StepReport `json:"finalized_orders"`
	VerifiedSwaps    StepReport `json:"verified_swaps"`
	ExpiredOrders    StepReport `json:"expired_orders"`
	TimedOutSwaps    StepReport `json:"timed_out_swaps"`
	AdvancedDisputes StepReport `json:"advanced_disputes"`
}

func (r *Report) Failed() int {
	return r.FinalizedOrders.Failed + r.VerifiedSwaps.Failed + r.ExpiredOrders.Failed +
		r.TimedOutSwaps.Failed + r.AdvancedDisputes.Failed
}
