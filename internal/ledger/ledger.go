package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"

	"github.com/dwarvesf/escrow-backend/internal/utils/config"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
)

const submitTransitionMethod = "escrow_submitTransition"

type submitResult struct {
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
	BlockHash   common.Hash    `json:"blockHash"`
}

type Client struct {
	rpcClient *rpc.Client
	eth       *ethclient.Client
	logger    *logger.Logger
}

// New dials the ledger node. Without an endpoint it falls back to a local
// client that acknowledges every transition.
func New(ctx context.Context, appConfig *config.AppConfig, logger *logger.Logger) (IClient, error) {
	if appConfig.Ledger.RPCEndpoint == "" {
		logger.Info("[ledger.New] no rpc endpoint configured, using local ledger client")
		return NewNopClient(), nil
	}

	rpcClient, err := rpc.DialContext(ctx, appConfig.Ledger.RPCEndpoint)
	if err != nil {
		return nil, errors.Wrap(err, "dial ledger rpc")
	}

	return NewWithRPC(rpcClient, logger), nil
}

func NewWithRPC(rpcClient *rpc.Client, logger *logger.Logger) *Client {
	return &Client{
		rpcClient: rpcClient,
		eth:       ethclient.NewClient(rpcClient),
		logger:    logger,
	}
}

func (c *Client) SubmitTransition(ctx context.Context, transition Transition) (*BlockRef, error) {
	var result submitResult
	if err := c.rpcClient.CallContext(ctx, &result, submitTransitionMethod, transition); err != nil {
		c.logger.Error("[SubmitTransition][CallContext]", map[string]string{
			"kind":     string(transition.Kind),
			"lock_ref": transition.LockRef,
			"error":    err.Error(),
		})
		return nil, errors.Wrap(err, "submit transition")
	}

	return &BlockRef{
		Number: uint64(result.BlockNumber),
		Hash:   result.BlockHash.Hex(),
	}, nil
}

func (c *Client) BlockHeight(ctx context.Context) (uint64, error) {
	return c.eth.BlockNumber(ctx)
}

func (c *Client) Balance(ctx context.Context, account string) (*big.Int, error) {
	if !common.IsHexAddress(account) {
		return nil, errors.Errorf("account %s is not a ledger address", account)
	}
	return c.eth.BalanceAt(ctx, common.HexToAddress(account), nil)
}

func (c *Client) SubscribeFinalized(ctx context.Context, ch chan<- BlockRef) (ethereum.Subscription, error) {
	headers := make(chan *types.Header, 16)
	sub, err := c.eth.SubscribeNewHead(ctx, headers)
	if err != nil {
		return nil, errors.Wrap(err, "subscribe new head")
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				sub.Unsubscribe()
				return
			case err, ok := <-sub.Err():
				if ok && err != nil {
					c.logger.Error("[SubscribeFinalized][subscription]", map[string]string{
						"error": err.Error(),
					})
				}
				return
			case header := <-headers:
				select {
				case ch <- BlockRef{Number: header.Number.Uint64(), Hash: header.Hash().Hex()}:
				case <-ctx.Done():
					sub.Unsubscribe()
					return
				}
			}
		}
	}()

	return sub, nil
}

func (c *Client) Close() {
	c.rpcClient.Close()
}
