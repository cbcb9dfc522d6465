package chain

import (
	"context"
	"errors"
)

var (
	// ErrOutOfRange is returned when a requested time lies outside the
	// timestamps of the resolvable bounds.
	ErrOutOfRange = errors.New("timestamp is out of range")

	// ErrNoData is returned when a probe call comes back empty.
	ErrNoData = errors.New("call returned no data")

	// ErrBlockNotFound is returned when a number or tag does not resolve to a block.
	ErrBlockNotFound = errors.New("block not found")
)

// Client is the remote node capability the searches run against.
// Implementations must be safe for concurrent use.
type Client interface {
	// BlockByRef fetches a block by number or tag. It returns an error
	// wrapping ErrBlockNotFound when the node has no such block.
	BlockByRef(ctx context.Context, ref BlockRef) (Block, error)

	// HeadNumber fetches the number of the node's most recent block.
	HeadNumber(ctx context.Context) (uint64, error)

	// Call executes a read-only call whose data is run as creation code
	// against the state at the given block, returning the raw result.
	Call(ctx context.Context, data []byte, at BlockRef) ([]byte, error)
}
