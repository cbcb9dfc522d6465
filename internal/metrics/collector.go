// Package metrics records every RPC attempt in a Prometheus registry and keeps
// raw latencies for the per-method summary printed with --stats.
package metrics

import (
	"cmp"
	"context"
	"errors"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmagro/eth-block-locator/internal/rpc"
)

const namespace = "blockfinder"

// Outcome labels.
const (
	OutcomeOK          = "ok"
	OutcomeTimeout     = "timeout"
	OutcomeCanceled    = "canceled"
	OutcomeRateLimited = "rate_limited"
	OutcomeServerError = "server_error"
	OutcomeClientError = "client_error"
	OutcomeRPCError    = "rpc_error"
	OutcomeOther       = "error"
)

// Collector implements rpc.Observer.
type Collector struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec

	mu     sync.Mutex
	series map[seriesKey]*series
}

type seriesKey struct {
	provider, method string
}

type series struct {
	calls     int
	failures  int
	latencies []time.Duration
}

var _ rpc.Observer = (*Collector)(nil)

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "Total number of RPC attempts, retries included.",
		}, []string{"provider", "method", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_request_duration_seconds",
			Help:      "Latency of RPC attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"provider", "method"}),
		series: make(map[seriesKey]*series),
	}
	c.registry.MustRegister(c.requests, c.latency)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) ObserveCall(provider, method string, latency time.Duration, err error) {
	c.requests.WithLabelValues(provider, method, Outcome(err)).Inc()
	c.latency.WithLabelValues(provider, method).Observe(latency.Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()
	k := seriesKey{provider, method}
	s, ok := c.series[k]
	if !ok {
		s = &series{}
		c.series[k] = s
	}
	s.calls++
	if err != nil {
		s.failures++
		return
	}
	s.latencies = append(s.latencies, latency)
}

// MethodStats summarizes one provider and method pair. Latency covers
// successful attempts only.
type MethodStats struct {
	Provider string
	Method   string
	Calls    int
	Failures int
	Latency  TailLatency
}

// Summary returns stats ordered by provider, then method.
func (c *Collector) Summary() []MethodStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]MethodStats, 0, len(c.series))
	for k, s := range c.series {
		out = append(out, MethodStats{
			Provider: k.provider,
			Method:   k.method,
			Calls:    s.calls,
			Failures: s.failures,
			Latency:  CalculateTailLatency(s.latencies),
		})
	}
	slices.SortFunc(out, func(a, b MethodStats) int {
		return cmp.Or(cmp.Compare(a.Provider, b.Provider), cmp.Compare(a.Method, b.Method))
	})
	return out
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

// Outcome classifies an attempt's error for the outcome label.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if errors.Is(err, context.Canceled) {
		return OutcomeCanceled
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return OutcomeTimeout
	}
	if rpc.IsRateLimited(err) {
		return OutcomeRateLimited
	}
	if status, ok := rpc.StatusCode(err); ok {
		if status >= http.StatusInternalServerError {
			return OutcomeServerError
		}
		return OutcomeClientError
	}
	if _, ok := rpc.ErrorCode(err); ok {
		return OutcomeRPCError
	}
	return OutcomeOther
}
