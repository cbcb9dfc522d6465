package locate

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/dmagro/eth-block-locator/internal/chain"
)

// scanWindow is the block count below which every block of the window is
// fetched in one concurrent round instead of interpolating.
const scanWindow = 5

// BlockByTime returns the latest block in [from, to] whose timestamp is not
// after timestampMillis (unix milliseconds, floored to seconds). It fails with
// chain.ErrOutOfRange when the time precedes from or follows to.
//
// Each round fetches its blocks concurrently. Rounds interpolate on the
// average block time of the current window and probe three points around the
// estimate, so on chains with steady block times the window collapses in a
// handful of rounds.
func BlockByTime(ctx context.Context, r *chain.Reader, timestampMillis int64, from, to chain.BlockRef) (uint64, error) {
	if timestampMillis < 0 {
		return 0, fmt.Errorf("%w: negative timestamp %d", chain.ErrOutOfRange, timestampMillis)
	}

	bounds, err := r.Blocks(ctx, from, to)
	if err != nil {
		return 0, err
	}
	before, after := bounds[0], bounds[1]
	if before.Number > after.Number {
		before, after = after, before
	}

	target := uint64(timestampMillis / 1000)
	if target < before.Timestamp || target > after.Timestamp {
		return 0, fmt.Errorf("%w: %s is outside blocks %d..%d (%s..%s)",
			chain.ErrOutOfRange, formatUnix(target),
			before.Number, after.Number, formatUnix(before.Timestamp), formatUnix(after.Timestamp))
	}
	if target >= after.Timestamp {
		return after.Number, nil
	}
	if target == before.Timestamp {
		return before.Number, nil
	}

	// Genesis blocks of several chains carry timestamp 0, which would skew
	// the first interpolation towards the start of the chain.
	if before.Timestamp == 0 && before.Number+1 < after.Number {
		next, err := r.Block(ctx, chain.Number(before.Number+1))
		if err != nil {
			return 0, err
		}
		if target < next.Timestamp {
			return before.Number, nil
		}
		before = next
	}

	return narrow(ctx, r, target, before, after)
}

// narrow shrinks the window until it pins the answer. Every round keeps
// before.Timestamp <= target < after.Timestamp and strictly reduces the
// block count between them, so blocks sharing a timestamp are resolved to
// the last one.
func narrow(ctx context.Context, r *chain.Reader, target uint64, before, after chain.Block) (uint64, error) {
	log := zerolog.Ctx(ctx)
	stepped := false

	for round := 1; ; round++ {
		count := after.Number - before.Number
		if count == 1 {
			return before.Number, nil
		}

		// An exact hit is usually settled by the next block alone.
		if before.Timestamp == target && !stepped {
			stepped = true
			next, err := r.Block(ctx, chain.Number(before.Number+1))
			if err != nil {
				return 0, err
			}
			if next.Timestamp > target {
				return before.Number, nil
			}
			before = next
			continue
		}

		if count < scanWindow {
			return scan(ctx, r, target, before, after)
		}

		probes := interpolate(target, before, after)
		blocks, err := r.BlocksByNumber(ctx, probes[:]...)
		if err != nil {
			return 0, err
		}

		crossing := -1
		for i, b := range blocks {
			if b.Timestamp > target {
				crossing = i
				break
			}
		}

		switch crossing {
		case -1:
			before = blocks[len(blocks)-1]
		case 0:
			after = blocks[0]
		default:
			before, after = blocks[crossing-1], blocks[crossing]
		}

		log.Debug().
			Int("round", round).
			Uints64("probes", probes[:]).
			Uint64("lo", before.Number).
			Uint64("hi", after.Number).
			Msg("narrowed time window")
	}
}

// interpolate estimates the block at target from the window's mean block time
// and returns the estimate flanked by one probe on each side, spread a tenth
// of the window apart and clamped to the window.
func interpolate(target uint64, before, after chain.Block) [3]uint64 {
	count := after.Number - before.Number
	blockTime := float64(after.Timestamp-before.Timestamp) / float64(count)
	offset := uint64(math.Floor(float64(target-before.Timestamp) / blockTime))

	estimate := min(max(before.Number+offset, before.Number+1), after.Number-1)
	spread := max(count/10, 1)

	left := before.Number
	if estimate-before.Number > spread {
		left = estimate - spread
	}
	right := min(estimate+spread, after.Number)

	return [3]uint64{left, estimate, right}
}

// scan fetches every block strictly inside the window and returns the last
// one not after target.
func scan(ctx context.Context, r *chain.Reader, target uint64, before, after chain.Block) (uint64, error) {
	numbers := make([]uint64, 0, after.Number-before.Number-1)
	for n := before.Number + 1; n < after.Number; n++ {
		numbers = append(numbers, n)
	}

	blocks, err := r.BlocksByNumber(ctx, numbers...)
	if err != nil {
		return 0, err
	}

	for i, b := range blocks {
		if b.Timestamp > target {
			if i == 0 {
				return before.Number, nil
			}
			return blocks[i-1].Number, nil
		}
	}
	return after.Number - 1, nil
}

func formatUnix(sec uint64) string {
	return time.Unix(int64(sec), 0).UTC().Format(time.RFC3339)
}
