package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmagro/eth-block-locator/internal/chain"
	"github.com/dmagro/eth-block-locator/internal/chain/chaintest"
	"github.com/dmagro/eth-block-locator/internal/config"
)

func testContext(t *testing.T) context.Context {
	return zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
}

func providers(names ...string) []config.Provider {
	out := make([]config.Provider, len(names))
	for i, n := range names {
		out[i] = config.Provider{Name: n, URL: "http://" + n + ".localhost"}
	}
	return out
}

func TestExecuteAllKeepsProviderOrder(t *testing.T) {
	boom := errors.New("boom")
	results := ExecuteAll(context.Background(), providers("a", "b", "c"), func(_ context.Context, p config.Provider) (string, error) {
		if p.Name == "b" {
			time.Sleep(5 * time.Millisecond)
			return "", boom
		}
		return p.Name + "!", nil
	})

	require.Len(t, results, 3)
	for i, want := range []string{"a", "b", "c"} {
		assert.Equal(t, want, results[i].Provider.Name)
		assert.Equal(t, i, results[i].Index)
	}
	assert.Equal(t, "a!", results[0].Value)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.Equal(t, "c!", results[2].Value)
}

func TestRace(t *testing.T) {
	chains := map[string]*chaintest.Chain{
		"fresh": chaintest.Constant(0, 101, 0, 12),
		"stale": chaintest.Constant(0, 90, 0, 12),
	}
	dial := func(_ context.Context, p config.Provider) (chain.Client, error) {
		c, ok := chains[p.Name]
		if !ok {
			return nil, errors.New("connection refused")
		}
		return c, nil
	}

	candidates, err := Race(testContext(t), providers("fresh", "down", "stale"), dial)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "fresh", candidates[0].Provider.Name)
	assert.Equal(t, uint64(100), candidates[0].Head)
	assert.Equal(t, "stale", candidates[1].Provider.Name)
	assert.Equal(t, uint64(89), candidates[1].Head)

	best, err := Select(testContext(t), providers("fresh", "down", "stale"), dial, DefaultMaxLag)
	require.NoError(t, err)
	assert.Equal(t, "fresh", best.Provider.Name)
	assert.Same(t, chains["fresh"], best.Client)
}

func TestRaceAllFail(t *testing.T) {
	dial := func(context.Context, config.Provider) (chain.Client, error) {
		return nil, errors.New("connection refused")
	}
	_, err := Race(testContext(t), providers("a", "b"), dial)
	assert.ErrorIs(t, err, ErrNoProvider)
	assert.ErrorContains(t, err, "a: connection refused")
	assert.ErrorContains(t, err, "b: connection refused")
}

func TestBest(t *testing.T) {
	cand := func(name string, head uint64, latency time.Duration) Candidate {
		return Candidate{Provider: config.Provider{Name: name}, Head: head, Latency: latency}
	}

	tests := []struct {
		name       string
		candidates []Candidate
		maxLag     uint64
		want       string
	}{
		{"fastest at head", []Candidate{cand("a", 100, 50*time.Millisecond), cand("b", 100, 20*time.Millisecond)}, 0, "b"},
		{"lagging excluded", []Candidate{cand("a", 100, 50*time.Millisecond), cand("b", 97, 5*time.Millisecond)}, 2, "a"},
		{"lag within tolerance", []Candidate{cand("a", 100, 50*time.Millisecond), cand("b", 98, 5*time.Millisecond)}, 2, "b"},
		{"tie keeps order", []Candidate{cand("a", 100, 10*time.Millisecond), cand("b", 100, 10*time.Millisecond)}, 0, "a"},
		{"single", []Candidate{cand("only", 1, time.Second)}, 0, "only"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Best(tt.candidates, tt.maxLag)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Provider.Name)
		})
	}

	_, err := Best(nil, 0)
	assert.ErrorIs(t, err, ErrNoProvider)
}
