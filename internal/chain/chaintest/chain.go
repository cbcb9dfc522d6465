// Package chaintest provides an in-memory chain.Client for tests.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dmagro/eth-block-locator/internal/chain"
)

// Chain is a fixed list of blocks numbered from First. It counts every
// request so tests can assert on round-trips.
type Chain struct {
	First  uint64
	Times  []uint64
	CallFn func(ctx context.Context, data []byte, at chain.BlockRef) ([]byte, error)

	blockCalls atomic.Int64
	headCalls  atomic.Int64
	callCalls  atomic.Int64

	mu      sync.Mutex
	fetched map[uint64]int
	failAt  map[uint64]error
}

// Constant builds n blocks starting at first with the given timestamp of the
// first block and a fixed spacing in seconds.
func Constant(first uint64, n int, t0, spacing uint64) *Chain {
	times := make([]uint64, n)
	for i := range times {
		times[i] = t0 + uint64(i)*spacing
	}
	return FromTimestamps(first, times)
}

// FromTimestamps builds a chain whose block first+i has timestamp times[i].
func FromTimestamps(first uint64, times []uint64) *Chain {
	return &Chain{
		First:   first,
		Times:   times,
		fetched: make(map[uint64]int),
		failAt:  make(map[uint64]error),
	}
}

// Head returns the last block number.
func (c *Chain) Head() uint64 { return c.First + uint64(len(c.Times)) - 1 }

// Block returns the block with the given number; it panics when out of range.
func (c *Chain) Block(n uint64) chain.Block {
	return chain.Block{Number: n, Timestamp: c.Times[n-c.First]}
}

// FailAt makes fetching block n return err.
func (c *Chain) FailAt(n uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failAt[n] = err
}

// BlockRequests returns the number of BlockByRef calls served.
func (c *Chain) BlockRequests() int { return int(c.blockCalls.Load()) }

// HeadRequests returns the number of HeadNumber calls served.
func (c *Chain) HeadRequests() int { return int(c.headCalls.Load()) }

// CallRequests returns the number of Call calls served.
func (c *Chain) CallRequests() int { return int(c.callCalls.Load()) }

// Fetched returns how many times block n was requested.
func (c *Chain) Fetched(n uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetched[n]
}

func (c *Chain) BlockByRef(ctx context.Context, ref chain.BlockRef) (chain.Block, error) {
	c.blockCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return chain.Block{}, err
	}

	var n uint64
	switch ref.Tag() {
	case chain.TagEarliest:
		n = c.First
	case chain.TagLatest, chain.TagSafe, chain.TagFinalized, chain.TagPending:
		n = c.Head()
	default:
		n, _ = ref.BlockNumber()
	}

	c.mu.Lock()
	c.fetched[n]++
	failure := c.failAt[n]
	c.mu.Unlock()

	if failure != nil {
		return chain.Block{}, failure
	}
	if n < c.First || n > c.Head() {
		return chain.Block{}, fmt.Errorf("block %d: %w", n, chain.ErrBlockNotFound)
	}
	return c.Block(n), nil
}

func (c *Chain) HeadNumber(ctx context.Context) (uint64, error) {
	c.headCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return c.Head(), nil
}

func (c *Chain) Call(ctx context.Context, data []byte, at chain.BlockRef) ([]byte, error) {
	c.callCalls.Add(1)
	if c.CallFn == nil {
		return nil, errors.New("chaintest: Call not configured")
	}
	return c.CallFn(ctx, data, at)
}
