package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/shopspring/decimal"
)

type TransitionKind string

const (
	TransitionLock     TransitionKind = "lock"
	TransitionRelease  TransitionKind = "release"
	TransitionRefund   TransitionKind = "refund"
	TransitionSlash    TransitionKind = "slash"
	TransitionSplit    TransitionKind = "split"
	TransitionCredit   TransitionKind = "credit"
	TransitionWithdraw TransitionKind = "withdraw"
)

// Transition is a balance movement the engine asks the ledger to record.
type Transition struct {
	Kind           TransitionKind  `json:"kind"`
	LockRef        string          `json:"lockRef,omitempty"`
	From           string          `json:"from,omitempty"`
	To             string          `json:"to,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

type BlockRef struct {
	Number uint64 `json:"number"`
	Hash   string `json:"hash"`
}

func (b BlockRef) String() string {
	if b.Hash == "" {
		return fmt.Sprintf("%d", b.Number)
	}
	return fmt.Sprintf("%d:%s", b.Number, b.Hash)
}

type IClient interface {
	// SubmitTransition records a transition and returns the block that includes it.
	SubmitTransition(ctx context.Context, transition Transition) (*BlockRef, error)
	BlockHeight(ctx context.Context) (uint64, error)
	Balance(ctx context.Context, account string) (*big.Int, error)
	// SubscribeFinalized streams finalized block references until ctx ends or the subscription is closed.
	SubscribeFinalized(ctx context.Context, ch chan<- BlockRef) (ethereum.Subscription, error)
}
