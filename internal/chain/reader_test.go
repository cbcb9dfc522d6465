package chain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmagro/eth-block-locator/internal/chain"
	"github.com/dmagro/eth-block-locator/internal/chain/chaintest"
)

func TestReaderCachesByNumber(t *testing.T) {
	ctx := context.Background()
	c := chaintest.Constant(0, 100, 1000, 12)
	r := chain.NewReader(c)

	b, err := r.Block(ctx, chain.Number(42))
	require.NoError(t, err)
	require.Equal(t, chain.Block{Number: 42, Timestamp: 1000 + 42*12}, b)

	_, err = r.Block(ctx, chain.Number(42))
	require.NoError(t, err)
	require.Equal(t, 1, c.BlockRequests())
}

func TestReaderCachesTaggedFetchUnderNumber(t *testing.T) {
	ctx := context.Background()
	c := chaintest.Constant(5, 10, 0, 1)
	r := chain.NewReader(c)

	latest, err := r.Block(ctx, chain.Latest)
	require.NoError(t, err)
	require.Equal(t, uint64(14), latest.Number)

	_, err = r.Block(ctx, chain.Number(14))
	require.NoError(t, err)
	require.Equal(t, 1, c.BlockRequests())

	// Tags always go to the node: "latest" moves.
	_, err = r.Block(ctx, chain.Latest)
	require.NoError(t, err)
	require.Equal(t, 2, c.BlockRequests())
}

func TestReaderBlocksKeepsOrder(t *testing.T) {
	ctx := context.Background()
	c := chaintest.Constant(0, 50, 0, 2)
	r := chain.NewReader(c)

	blocks, err := r.BlocksByNumber(ctx, 30, 1, 49, 1)
	require.NoError(t, err)
	require.Len(t, blocks, 4)
	require.Equal(t, []uint64{30, 1, 49, 1}, []uint64{blocks[0].Number, blocks[1].Number, blocks[2].Number, blocks[3].Number})
	require.Equal(t, uint64(60), blocks[0].Timestamp)
}

func TestReaderPropagatesFailure(t *testing.T) {
	ctx := context.Background()
	c := chaintest.Constant(0, 50, 0, 2)
	boom := errors.New("boom")
	c.FailAt(7, boom)
	r := chain.NewReader(c)

	_, err := r.BlocksByNumber(ctx, 3, 7, 9)
	require.ErrorIs(t, err, boom)

	_, err = r.Block(ctx, chain.Number(500))
	require.ErrorIs(t, err, chain.ErrBlockNotFound)
}

func TestReadersDoNotShareCaches(t *testing.T) {
	ctx := context.Background()
	c := chaintest.Constant(0, 10, 0, 1)
	a, b := chain.NewReader(c), chain.NewReader(c)

	_, err := a.Block(ctx, chain.Number(3))
	require.NoError(t, err)
	_, err = b.Block(ctx, chain.Number(3))
	require.NoError(t, err)

	require.Equal(t, 2, c.Fetched(3))
	require.Equal(t, 1, a.Cache().Len())
	require.Equal(t, 1, b.Cache().Len())
}
