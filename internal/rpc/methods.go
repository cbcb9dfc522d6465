package rpc

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/dmagro/eth-block-locator/internal/chain"
)

// BlockByRef calls eth_getBlockByNumber without transaction bodies.
func (c *Client) BlockByRef(ctx context.Context, ref chain.BlockRef) (chain.Block, error) {
	var h *header
	if err := c.CallContext(ctx, &h, "eth_getBlockByNumber", ref.String(), false); err != nil {
		return chain.Block{}, err
	}
	if h == nil {
		return chain.Block{}, fmt.Errorf("%s block %s: %w", c.Name(), ref, chain.ErrBlockNotFound)
	}
	if h.Number == nil {
		return chain.Block{}, fmt.Errorf("%s block %s has no number: %w", c.Name(), ref, chain.ErrNoData)
	}
	return chain.Block{Number: uint64(*h.Number), Timestamp: uint64(h.Timestamp)}, nil
}

// HeadNumber calls eth_blockNumber.
func (c *Client) HeadNumber(ctx context.Context) (uint64, error) {
	var n hexutil.Uint64
	if err := c.CallContext(ctx, &n, "eth_blockNumber"); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// Call runs eth_call with data and no recipient at block at.
func (c *Client) Call(ctx context.Context, data []byte, at chain.BlockRef) ([]byte, error) {
	var out hexutil.Bytes
	if err := c.CallContext(ctx, &out, "eth_call", callArgs{Data: data}, at.String()); err != nil {
		return nil, err
	}
	return out, nil
}
