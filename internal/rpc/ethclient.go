package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/dmagro/eth-block-locator/internal/chain"
)

// EthClient implements chain.Client on top of go-ethereum's ethclient.
type EthClient struct {
	ec     *ethclient.Client
	policy *policy
}

// DialEthClient connects to cfg.URL. Over HTTP no request is made until the
// first call.
func DialEthClient(ctx context.Context, cfg ClientConfig) (*EthClient, error) {
	rc, err := gethrpc.DialOptions(ctx, cfg.URL, gethrpc.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Name, err)
	}
	return &EthClient{ec: ethclient.NewClient(rc), policy: newPolicy(cfg)}, nil
}

func (c *EthClient) Name() string { return c.policy.name }

// Close releases the underlying connection.
func (c *EthClient) Close() { c.ec.Close() }

func (c *EthClient) BlockByRef(ctx context.Context, ref chain.BlockRef) (chain.Block, error) {
	var h *types.Header
	err := c.policy.do(ctx, "eth_getBlockByNumber", func(ctx context.Context) (err error) {
		h, err = c.ec.HeaderByNumber(ctx, toBlockNumber(ref))
		if errors.Is(err, ethereum.NotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return chain.Block{}, fmt.Errorf("%s eth_getBlockByNumber: %w", c.Name(), err)
	}
	if h == nil {
		return chain.Block{}, fmt.Errorf("%s block %s: %w", c.Name(), ref, chain.ErrBlockNotFound)
	}
	return chain.Block{Number: h.Number.Uint64(), Timestamp: h.Time}, nil
}

func (c *EthClient) HeadNumber(ctx context.Context) (uint64, error) {
	var n uint64
	err := c.policy.do(ctx, "eth_blockNumber", func(ctx context.Context) (err error) {
		n, err = c.ec.BlockNumber(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%s eth_blockNumber: %w", c.Name(), err)
	}
	return n, nil
}

func (c *EthClient) Call(ctx context.Context, data []byte, at chain.BlockRef) ([]byte, error) {
	var out []byte
	err := c.policy.do(ctx, "eth_call", func(ctx context.Context) (err error) {
		out, err = c.ec.CallContract(ctx, ethereum.CallMsg{Data: data}, toBlockNumber(at))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s eth_call: %w", c.Name(), err)
	}
	return out, nil
}

// toBlockNumber maps a ref to ethclient's convention: nil is latest and the
// other tags are go-ethereum's negative sentinels.
func toBlockNumber(ref chain.BlockRef) *big.Int {
	if n, ok := ref.BlockNumber(); ok {
		return new(big.Int).SetUint64(n)
	}
	switch ref.Tag() {
	case chain.TagEarliest:
		return big.NewInt(gethrpc.EarliestBlockNumber.Int64())
	case chain.TagPending:
		return big.NewInt(gethrpc.PendingBlockNumber.Int64())
	case chain.TagSafe:
		return big.NewInt(gethrpc.SafeBlockNumber.Int64())
	case chain.TagFinalized:
		return big.NewInt(gethrpc.FinalizedBlockNumber.Int64())
	default:
		return nil
	}
}
