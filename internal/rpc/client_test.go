package rpc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmagro/eth-block-locator/internal/chain"
)

const testURL = "http://rpc1.localhost:8545/"

type observation struct {
	provider string
	method   string
	err      error
}

type recorder struct {
	mu  sync.Mutex
	obs []observation
}

func (r *recorder) ObserveCall(provider, method string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, observation{provider, method, err})
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.obs)
}

func newTestClient(obs Observer) *Client {
	return NewClient(ClientConfig{
		Name:           "local",
		URL:            testURL,
		Timeout:        2 * time.Second,
		MaxRetries:     2,
		BackoffInitial: time.Millisecond,
		BackoffMax:     5 * time.Millisecond,
		Observer:       obs,
	})
}

func result(v any) map[string]any {
	return map[string]any{"jsonrpc": "2.0", "id": 1, "result": v}
}

func TestHeadNumber(t *testing.T) {
	defer gock.Off()

	gock.New(testURL).
		Post("/").
		BodyString(`"method":"eth_blockNumber"`).
		Reply(200).
		JSON(result("0x10"))

	n, err := newTestClient(nil).HeadNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(16), n)
	assert.True(t, gock.IsDone())
}

func TestBlockByRef(t *testing.T) {
	t.Run("Number", func(t *testing.T) {
		defer gock.Off()

		gock.New(testURL).
			Post("/").
			BodyString(`"params":\["0x64",false\]`).
			Reply(200).
			JSON(result(map[string]any{"number": "0x64", "timestamp": "0x5f5e1000", "hash": "0xabc"}))

		b, err := newTestClient(nil).BlockByRef(context.Background(), chain.Number(100))
		require.NoError(t, err)
		assert.Equal(t, chain.Block{Number: 100, Timestamp: 1_600_000_000}, b)
	})

	t.Run("Tag", func(t *testing.T) {
		defer gock.Off()

		gock.New(testURL).
			Post("/").
			BodyString(`"params":\["earliest",false\]`).
			Reply(200).
			JSON(result(map[string]any{"number": "0x0", "timestamp": "0x0"}))

		b, err := newTestClient(nil).BlockByRef(context.Background(), chain.Earliest)
		require.NoError(t, err)
		assert.Equal(t, chain.Block{}, b)
	})

	t.Run("NullResult", func(t *testing.T) {
		defer gock.Off()

		gock.New(testURL).Post("/").Reply(200).JSON(result(nil))

		_, err := newTestClient(nil).BlockByRef(context.Background(), chain.Number(1 << 40))
		assert.ErrorIs(t, err, chain.ErrBlockNotFound)
	})

	t.Run("PendingWithoutNumber", func(t *testing.T) {
		defer gock.Off()

		gock.New(testURL).Post("/").Reply(200).JSON(result(map[string]any{"number": nil, "timestamp": "0x1"}))

		ref, err := chain.ParseBlockRef("pending")
		require.NoError(t, err)
		_, err = newTestClient(nil).BlockByRef(context.Background(), ref)
		assert.ErrorIs(t, err, chain.ErrNoData)
	})
}

func TestCall(t *testing.T) {
	defer gock.Off()

	gock.New(testURL).
		Post("/").
		BodyString(`"method":"eth_call","params":\[\{"data":"0x6020"\},"latest"\]`).
		Reply(200).
		JSON(result("0x01"))

	out, err := newTestClient(nil).Call(context.Background(), []byte{0x60, 0x20}, chain.Latest)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, out)
}

func TestCallContextRetries(t *testing.T) {
	t.Run("ServerErrorThenSuccess", func(t *testing.T) {
		defer gock.Off()

		gock.New(testURL).Post("/").Reply(503).BodyString("upstream unavailable")
		gock.New(testURL).Post("/").Reply(200).JSON(result("0x2a"))

		obs := &recorder{}
		n, err := newTestClient(obs).HeadNumber(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(42), n)
		assert.True(t, gock.IsDone())

		require.Equal(t, 2, obs.count())
		var httpErr *HTTPError
		require.ErrorAs(t, obs.obs[0].err, &httpErr)
		assert.Equal(t, 503, httpErr.StatusCode)
		assert.NoError(t, obs.obs[1].err)
		assert.Equal(t, "eth_blockNumber", obs.obs[1].method)
		assert.Equal(t, "local", obs.obs[1].provider)
	})

	t.Run("LimitExceededIsRetried", func(t *testing.T) {
		defer gock.Off()

		gock.New(testURL).Post("/").Reply(200).
			JSON(map[string]any{"jsonrpc": "2.0", "id": 1, "error": map[string]any{"code": -32005, "message": "limit exceeded"}})
		gock.New(testURL).Post("/").Reply(200).JSON(result("0x1"))

		n, err := newTestClient(nil).HeadNumber(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(1), n)
	})

	t.Run("RPCErrorIsPermanent", func(t *testing.T) {
		defer gock.Off()

		gock.New(testURL).Post("/").Reply(200).
			JSON(map[string]any{"jsonrpc": "2.0", "id": 1, "error": map[string]any{"code": -32000, "message": "execution reverted"}})

		obs := &recorder{}
		_, err := newTestClient(obs).Call(context.Background(), []byte{0xfe}, chain.Latest)
		var rpcErr *RPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, -32000, rpcErr.Code)
		assert.Contains(t, err.Error(), "execution reverted")
		assert.Equal(t, 1, obs.count())
		assert.True(t, gock.IsDone())
	})

	t.Run("ClientErrorIsPermanent", func(t *testing.T) {
		defer gock.Off()

		gock.New(testURL).Post("/").Reply(401).BodyString("invalid api key")

		obs := &recorder{}
		_, err := newTestClient(obs).HeadNumber(context.Background())
		var httpErr *HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, 401, httpErr.StatusCode)
		assert.Equal(t, "invalid api key", httpErr.Body)
		assert.Equal(t, 1, obs.count())
	})

	t.Run("GivesUpAfterMaxRetries", func(t *testing.T) {
		defer gock.Off()

		gock.New(testURL).Post("/").Times(3).Reply(502)

		obs := &recorder{}
		_, err := newTestClient(obs).HeadNumber(context.Background())
		var httpErr *HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, 502, httpErr.StatusCode)
		assert.Equal(t, 3, obs.count())
		assert.True(t, gock.IsDone())
	})

	t.Run("IncompleteResponse", func(t *testing.T) {
		defer gock.Off()

		gock.New(testURL).Post("/").Times(3).Reply(200).BodyString(`{"jsonrpc":"2.0","id":1,"result":`)

		_, err := newTestClient(nil).HeadNumber(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid JSON response")
	})
}

func TestCallContextStopsOnCancel(t *testing.T) {
	defer gock.Off()

	gock.New(testURL).Post("/").Reply(200).JSON(result("0x1"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(nil).HeadNumber(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"reverted", &RPCError{Code: -32000, Message: "execution reverted"}, false},
		{"limit exceeded", &RPCError{Code: limitExceeded, Message: "limit exceeded"}, true},
		{"too many requests", &HTTPError{StatusCode: 429}, true},
		{"bad gateway", &HTTPError{StatusCode: 502}, true},
		{"not found", &HTTPError{StatusCode: 404}, false},
		{"geth too many requests", gethrpc.HTTPError{StatusCode: 429}, true},
		{"geth forbidden", gethrpc.HTTPError{StatusCode: 403}, false},
		{"network", errors.New("connection reset by peer"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryable(tt.err))
		})
	}
}
