package rpc

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Observer receives one observation per attempt, retries included.
type Observer interface {
	ObserveCall(provider, method string, latency time.Duration, err error)
}

// policy carries what both transports share: the rate limiter, the retry
// schedule and the observer.
type policy struct {
	name           string
	maxRetries     int
	backoffInitial time.Duration
	backoffMax     time.Duration
	limiter        *rate.Limiter
	observer       Observer
}

func newPolicy(cfg ClientConfig) *policy {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit)))
	}
	return &policy{
		name:           cfg.Name,
		maxRetries:     max(0, cfg.MaxRetries),
		backoffInitial: cfg.BackoffInitial,
		backoffMax:     cfg.BackoffMax,
		limiter:        limiter,
		observer:       cfg.Observer,
	}
}

func (p *policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.backoffInitial > 0 {
		b.InitialInterval = p.backoffInitial
	}
	if p.backoffMax > 0 {
		b.MaxInterval = p.backoffMax
	}
	// Attempts are bounded by count, not by elapsed time.
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.maxRetries)), ctx)
}

// do runs op until it succeeds, fails permanently or runs out of retries.
func (p *policy) do(ctx context.Context, method string, op func(ctx context.Context) error) error {
	attempt := func() error {
		if err := p.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		start := time.Now()
		err := op(ctx)
		if p.observer != nil {
			p.observer.ObserveCall(p.name, method, time.Since(start), err)
		}
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		zerolog.Ctx(ctx).Warn().
			Err(err).
			Str("provider", p.name).
			Str("method", method).
			Dur("retry_in", wait).
			Msg("rpc call failed, retrying")
	}

	return backoff.RetryNotify(attempt, p.backOff(ctx), notify)
}

// retryable separates transport trouble from answers the node meant.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if code, ok := ErrorCode(err); ok {
		return code == limitExceeded
	}
	if status, ok := StatusCode(err); ok {
		return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
	}
	return true
}

// StatusCode extracts the HTTP status from either transport's error.
func StatusCode(err error) (int, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, true
	}
	var gethErr gethrpc.HTTPError
	if errors.As(err, &gethErr) {
		return gethErr.StatusCode, true
	}
	return 0, false
}

// ErrorCode extracts the JSON-RPC error code from either transport's error.
func ErrorCode(err error) (int, bool) {
	var rpcErr gethrpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode(), true
	}
	return 0, false
}

// IsRateLimited reports whether the provider refused the call for exceeding
// its request budget.
func IsRateLimited(err error) bool {
	if code, ok := ErrorCode(err); ok && code == limitExceeded {
		return true
	}
	status, ok := StatusCode(err)
	return ok && status == http.StatusTooManyRequests
}
