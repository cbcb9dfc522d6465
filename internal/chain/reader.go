package chain

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Reader binds a Client to its own BlockCache. Create one Reader per client
// handle and share it between operations that should reuse fetched blocks;
// dropping the Reader drops the cache.
type Reader struct {
	client Client
	cache  *BlockCache
}

// NewReader wraps client with a fresh cache.
func NewReader(client Client) *Reader {
	return &Reader{
		client: client,
		cache:  NewBlockCache(),
	}
}

// Cache exposes the reader's cache.
func (r *Reader) Cache() *BlockCache { return r.cache }

// Block returns the referenced block, from cache when it was fetched before.
func (r *Reader) Block(ctx context.Context, ref BlockRef) (Block, error) {
	if n, ok := ref.BlockNumber(); ok {
		if b, hit := r.cache.Get(n); hit {
			zerolog.Ctx(ctx).Trace().Uint64("block", n).Msg("block cache hit")
			return b, nil
		}
	}

	b, err := r.client.BlockByRef(ctx, ref)
	if err != nil {
		return Block{}, fmt.Errorf("fetch block %s: %w", ref, err)
	}
	if ref.Tag() != TagPending {
		r.cache.Put(b)
	}
	return b, nil
}

// Blocks fetches all references concurrently and returns them in input order.
// The first failure cancels the remaining fetches.
func (r *Reader) Blocks(ctx context.Context, refs ...BlockRef) ([]Block, error) {
	blocks := make([]Block, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		g.Go(func() error {
			b, err := r.Block(gctx, ref)
			if err != nil {
				return err
			}
			blocks[i] = b
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return blocks, nil
}

// BlocksByNumber is Blocks for a list of concrete numbers.
func (r *Reader) BlocksByNumber(ctx context.Context, numbers ...uint64) ([]Block, error) {
	refs := make([]BlockRef, len(numbers))
	for i, n := range numbers {
		refs[i] = Number(n)
	}
	return r.Blocks(ctx, refs...)
}

// HeadNumber returns the client's current head number. It is never cached.
func (r *Reader) HeadNumber(ctx context.Context) (uint64, error) {
	n, err := r.client.HeadNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch head number: %w", err)
	}
	return n, nil
}

// Call forwards a read-only call to the client.
func (r *Reader) Call(ctx context.Context, data []byte, at BlockRef) ([]byte, error) {
	out, err := r.client.Call(ctx, data, at)
	if err != nil {
		return nil, fmt.Errorf("call at %s: %w", at, err)
	}
	return out, nil
}
