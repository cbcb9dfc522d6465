package probe

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm/runtime"

	"github.com/dmagro/eth-block-locator/internal/chain"
)

// stubCode is the runtime code given to simulated contracts: RETURN(0, 0).
var stubCode = []byte{0x60, 0x00, 0x60, 0x00, 0xf3}

// evmNode is a simulated node. Blocks 0..head are 12 seconds apart and each
// call runs its data as creation code in go-ethereum's EVM, against a fresh
// state holding every contract deployed at or before the call's block.
type evmNode struct {
	head       uint64
	deployedAt map[common.Address]uint64

	calls atomic.Int64
}

func newEVMNode(head uint64) *evmNode {
	return &evmNode{
		head:       head,
		deployedAt: make(map[common.Address]uint64),
	}
}

func (n *evmNode) deploy(addr common.Address, at uint64) *evmNode {
	n.deployedAt[addr] = at
	return n
}

func (n *evmNode) resolve(ref chain.BlockRef) (uint64, error) {
	if num, ok := ref.BlockNumber(); ok {
		if num > n.head {
			return 0, fmt.Errorf("block %d: %w", num, chain.ErrBlockNotFound)
		}
		return num, nil
	}
	if ref.Tag() == chain.TagEarliest {
		return 0, nil
	}
	return n.head, nil
}

func (n *evmNode) BlockByRef(_ context.Context, ref chain.BlockRef) (chain.Block, error) {
	num, err := n.resolve(ref)
	if err != nil {
		return chain.Block{}, err
	}
	return chain.Block{Number: num, Timestamp: 1_600_000_000 + num*12}, nil
}

func (n *evmNode) HeadNumber(context.Context) (uint64, error) { return n.head, nil }

func (n *evmNode) Call(_ context.Context, data []byte, at chain.BlockRef) ([]byte, error) {
	n.calls.Add(1)
	height, err := n.resolve(at)
	if err != nil {
		return nil, err
	}

	cfg := &runtime.Config{
		BlockNumber: new(big.Int).SetUint64(height),
		Time:        1_600_000_000 + height*12,
		Random:      &common.Hash{},
	}
	// Running a bare STOP seeds cfg.State with an empty in-memory state.
	if _, _, err := runtime.Execute([]byte{0x00}, nil, cfg); err != nil {
		return nil, err
	}
	for addr, deployed := range n.deployedAt {
		if deployed <= height {
			cfg.State.SetCode(addr, stubCode)
		}
	}

	out, _, _, err := runtime.Create(data, cfg)
	if err != nil {
		return nil, err
	}
	return out, nil
}
