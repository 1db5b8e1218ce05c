package ledger

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum"
)

// NopClient acknowledges transitions locally with a monotonically increasing height.
type NopClient struct {
	height atomic.Uint64
}

func NewNopClient() *NopClient {
	return &NopClient{}
}

func (c *NopClient) SubmitTransition(_ context.Context, _ Transition) (*BlockRef, error) {
	return &BlockRef{Number: c.height.Add(1)}, nil
}

func (c *NopClient) BlockHeight(_ context.Context) (uint64, error) {
	return c.height.Load(), nil
}

func (c *NopClient) Balance(_ context.Context, _ string) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (c *NopClient) SubscribeFinalized(ctx context.Context, _ chan<- BlockRef) (ethereum.Subscription, error) {
	sub := &idleSubscription{errCh: make(chan error)}
	go func() {
		<-ctx.Done()
		sub.Unsubscribe()
	}()
	return sub, nil
}

type idleSubscription struct {
	once  sync.Once
	errCh chan error
}

func (s *idleSubscription) Unsubscribe() {
	s.once.Do(func() { close(s.errCh) })
}

func (s *idleSubscription) Err() <-chan error {
	return s.errCh
}
