package probe

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dmagro/eth-block-locator/internal/chain"
	"github.com/dmagro/eth-block-locator/internal/locate"
)

// ErrUnexpectedResult is returned when a probe reply does not have the shape
// the probe program produces.
var ErrUnexpectedResult = errors.New("unexpected probe result")

// HasCode reports whether addr has code in the state at block at.
func HasCode(ctx context.Context, r *chain.Reader, addr common.Address, at chain.BlockRef) (bool, error) {
	data, err := r.Call(ctx, encodeCodeProbe(addr), at)
	if err != nil {
		return false, err
	}
	has, err := decodeCodeProbe(data)
	if err != nil {
		return false, fmt.Errorf("probe %s at %s: %w", addr.Hex(), at, err)
	}
	return has, nil
}

// decodeCodeProbe reads the ISZERO(EXTCODESIZE) flag: zero means code.
func decodeCodeProbe(data []byte) (bool, error) {
	if len(data) == 0 {
		return false, chain.ErrNoData
	}
	for _, b := range data[:len(data)-1] {
		if b != 0 {
			return false, fmt.Errorf("%w: %s", ErrUnexpectedResult, hexutil.Encode(data))
		}
	}
	switch data[len(data)-1] {
	case 0:
		return true, nil
	case 1:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnexpectedResult, hexutil.Encode(data))
	}
}

// HasCodeMany reports code presence for every address at block at, in input
// order. Up to MaxBatchSize addresses cost one call; larger inputs are split
// into chunks that run concurrently. Empty input makes no call.
func HasCodeMany(ctx context.Context, r *chain.Reader, addrs []common.Address, at chain.BlockRef) ([]bool, error) {
	flags := make([]bool, len(addrs))
	if len(addrs) == 0 {
		return flags, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(addrs); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(addrs))
		g.Go(func() error {
			chunk, err := hasCodeBatch(gctx, r, addrs[start:end], at)
			if err != nil {
				return err
			}
			copy(flags[start:end], chunk)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return flags, nil
}

func hasCodeBatch(ctx context.Context, r *chain.Reader, addrs []common.Address, at chain.BlockRef) ([]bool, error) {
	data, err := r.Call(ctx, encodeBatchCodeProbe(addrs), at)
	if err != nil {
		return nil, err
	}
	flags, err := decodeBitmap(data, len(addrs)+1)
	if err != nil {
		return nil, fmt.Errorf("batch probe of %d addresses at %s: %w", len(addrs), at, err)
	}
	if flags[0] {
		return nil, fmt.Errorf("%w: lead address reported code at %s", ErrUnexpectedResult, at)
	}
	return flags[1:], nil
}

// decodeBitmap unpacks n flags, most significant bit of each byte first.
func decodeBitmap(data []byte, n int) ([]bool, error) {
	if len(data) == 0 {
		return nil, chain.ErrNoData
	}
	if len(data)*8 < n {
		return nil, fmt.Errorf("%w: %d bytes cannot hold %d flags", ErrUnexpectedResult, len(data), n)
	}

	flags := make([]bool, n)
	for i := range flags {
		flags[i] = data[i/8]&(0x80>>(i%8)) != 0
	}
	return flags, nil
}

// DeploymentBlock returns the first block at which addr has code. found is
// false when the address has no code at the latest block; a contract that
// self-destructed is reported the same way.
func DeploymentBlock(ctx context.Context, r *chain.Reader, addr common.Address) (block uint64, found bool, err error) {
	var (
		deployed bool
		head     uint64
		earliest chain.Block
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		deployed, err = HasCode(gctx, r, addr, chain.Latest)
		return err
	})
	g.Go(func() (err error) {
		head, err = r.HeadNumber(gctx)
		return err
	})
	g.Go(func() (err error) {
		earliest, err = r.Block(gctx, chain.Earliest)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, false, err
	}

	log := zerolog.Ctx(ctx).With().Str("address", addr.Hex()).Logger()
	if !deployed {
		log.Debug().Msg("no code at latest block")
		return 0, false, nil
	}
	if head <= earliest.Number {
		return head, true, nil
	}

	log.Debug().Uint64("from", earliest.Number).Uint64("to", head).Msg("bisecting deployment block")
	block, err = locate.Search(ctx, earliest.Number+1, head, func(ctx context.Context, n uint64) (bool, error) {
		return HasCode(ctx, r, addr, chain.Number(n))
	})
	if err != nil {
		return 0, false, err
	}
	return block, true, nil
}
