// Package locate finds points in the block list with as few node
// round-trips as possible.
package locate

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Predicate is an expensive monotonic test over block numbers: false up to
// some boundary, true from the boundary on.
type Predicate func(ctx context.Context, n uint64) (bool, error)

// Search returns the smallest n in [lo, hi] for which pred holds. pred must be
// monotonic and is assumed to hold at hi, which is never evaluated unless the
// search narrows onto it. Each step costs one pred call, so a search costs at
// most ceil(log2(hi-lo+1)) calls. A pred error aborts the search.
func Search(ctx context.Context, lo, hi uint64, pred Predicate) (uint64, error) {
	if lo > hi {
		return 0, fmt.Errorf("invalid search range [%d, %d]", lo, hi)
	}

	log := zerolog.Ctx(ctx)
	for lo < hi {
		mid := lo + (hi-lo)/2
		ok, err := pred(ctx, mid)
		if err != nil {
			return 0, err
		}
		log.Debug().Uint64("lo", lo).Uint64("hi", hi).Uint64("mid", mid).Bool("holds", ok).Msg("bisect")
		if ok {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo, nil
}
