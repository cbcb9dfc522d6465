package output

import (
	"time"

	"github.com/dmagro/eth-block-locator/internal/metrics"
)

type JSONBlockNumber struct {
	Block      uint64 `json:"block"`
	Target     *int64 `json:"target,omitempty"`
	TargetISO  string `json:"targetISO,omitempty"`
	Provider   string `json:"provider"`
	DurationMs int64  `json:"durationMs"`
}

type JSONDeployment struct {
	Address    string  `json:"address"`
	Deployed   bool    `json:"deployed"`
	Block      *uint64 `json:"block"`
	Provider   string  `json:"provider"`
	DurationMs int64   `json:"durationMs"`
}

type JSONCodeReport struct {
	Block    string          `json:"block"`
	Provider string          `json:"provider"`
	Results  []JSONCodeCheck `json:"results"`
}

type JSONCodeCheck struct {
	Address string `json:"address"`
	HasCode bool   `json:"hasCode"`
}

type JSONBlock struct {
	Ref          string `json:"ref"`
	Number       uint64 `json:"number"`
	Timestamp    uint64 `json:"timestamp"`
	TimestampISO string `json:"timestampISO"`
	Provider     string `json:"provider"`
}

type JSONMethodStats struct {
	Provider string      `json:"provider"`
	Method   string      `json:"method"`
	Calls    int         `json:"calls"`
	Failures int         `json:"failures"`
	Latency  JSONLatency `json:"latency_ms"`
}

type JSONLatency struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

func toJSONBlockNumber(r BlockNumber) JSONBlockNumber {
	out := JSONBlockNumber{
		Block:      r.Number,
		Provider:   r.Provider,
		DurationMs: r.Elapsed.Milliseconds(),
	}
	if r.Target != nil {
		unix := r.Target.Unix()
		out.Target = &unix
		out.TargetISO = r.Target.UTC().Format(time.RFC3339)
	}
	return out
}

func toJSONDeployment(r Deployment) JSONDeployment {
	out := JSONDeployment{
		Address:    r.Address.Hex(),
		Deployed:   r.Found,
		Provider:   r.Provider,
		DurationMs: r.Elapsed.Milliseconds(),
	}
	if r.Found {
		block := r.Block
		out.Block = &block
	}
	return out
}

func toJSONCodeReport(r CodeReport) JSONCodeReport {
	out := JSONCodeReport{
		Block:    r.At.String(),
		Provider: r.Provider,
		Results:  make([]JSONCodeCheck, len(r.Checks)),
	}
	for i, c := range r.Checks {
		out.Results[i] = JSONCodeCheck{Address: c.Address.Hex(), HasCode: c.HasCode}
	}
	return out
}

func toJSONBlock(r BlockInfo) JSONBlock {
	return JSONBlock{
		Ref:          r.Ref.String(),
		Number:       r.Block.Number,
		Timestamp:    r.Block.Timestamp,
		TimestampISO: time.Unix(int64(r.Block.Timestamp), 0).UTC().Format(time.RFC3339),
		Provider:     r.Provider,
	}
}

func toJSONStats(stats []metrics.MethodStats) []JSONMethodStats {
	out := make([]JSONMethodStats, len(stats))
	for i, s := range stats {
		out[i] = JSONMethodStats{
			Provider: s.Provider,
			Method:   s.Method,
			Calls:    s.Calls,
			Failures: s.Failures,
			Latency: JSONLatency{
				P50: ms(s.Latency.P50),
				P95: ms(s.Latency.P95),
				P99: ms(s.Latency.P99),
				Max: ms(s.Latency.Max),
			},
		}
	}
	return out
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
