// Package rpc talks to Ethereum JSON-RPC endpoints. Two transports satisfy
// chain.Client: Client, a small JSON-RPC over HTTP client, and EthClient,
// which goes through go-ethereum's ethclient. Both share retry, rate limit and
// observation behavior.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// maxErrorBody bounds how much of a failed response is kept in HTTPError.
const maxErrorBody = 512

// ClientConfig configures either transport.
type ClientConfig struct {
	Name           string
	URL            string
	Transport      string
	Timeout        time.Duration
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// RateLimit is the request budget per second; zero means unlimited.
	RateLimit float64
	Observer  Observer
}

type Client struct {
	url        string
	httpClient *http.Client
	policy     *policy
	nextID     atomic.Uint64
}

func NewClient(cfg ClientConfig) *Client {
	return &Client{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		policy:     newPolicy(cfg),
	}
}

func (c *Client) Name() string { return c.policy.name }

// CallContext executes method with retries and decodes the result into out.
// A nil out discards the result.
func (c *Client) CallContext(ctx context.Context, out any, method string, params ...any) error {
	if params == nil {
		params = []any{}
	}

	var result json.RawMessage
	err := c.policy.do(ctx, method, func(ctx context.Context) error {
		body, err := json.Marshal(request{
			JSONRPC: "2.0",
			Method:  method,
			Params:  params,
			ID:      c.nextID.Add(1),
		})
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		result, err = c.doRequest(ctx, body)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s %s: %w", c.Name(), method, err)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("%s %s: decode result: %w", c.Name(), method, err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, body []byte) (json.RawMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode != http.StatusOK {
		if len(respBody) > maxErrorBody {
			respBody = respBody[:maxErrorBody]
		}
		return nil, &HTTPError{StatusCode: httpResp.StatusCode, Body: string(bytes.TrimSpace(respBody))}
	}

	var resp response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}
