// Package provider fans operations out across configured providers and picks
// the one to use when several are configured.
package provider

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dmagro/eth-block-locator/internal/config"
)

// Result wraps a provider response with metadata.
type Result[T any] struct {
	Provider config.Provider
	Index    int
	Value    T
	Err      error
}

// ExecuteAll runs fn concurrently for each provider and returns results in
// provider order. It never fails fast: every provider is attempted and its
// error recorded in its Result. Cancelling ctx still reaches fn.
func ExecuteAll[T any](
	ctx context.Context,
	providers []config.Provider,
	fn func(ctx context.Context, p config.Provider) (T, error),
) []Result[T] {
	results := make([]Result[T], len(providers))

	var g errgroup.Group
	for i, p := range providers {
		g.Go(func() error {
			val, err := fn(ctx, p)
			// Each goroutine owns its own slot.
			results[i] = Result[T]{Provider: p, Index: i, Value: val, Err: err}
			return nil
		})
	}

	_ = g.Wait()
	return results
}
