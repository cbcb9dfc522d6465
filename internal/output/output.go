// Package output renders command results for a terminal or as JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dmagro/eth-block-locator/internal/chain"
	"github.com/dmagro/eth-block-locator/internal/metrics"
)

// Printer writes results to w, as indented JSON when asJSON is set.
type Printer struct {
	w      io.Writer
	asJSON bool
	now    func() time.Time

	reportDir string
	status    io.Writer
}

func New(w io.Writer, asJSON bool) *Printer {
	return &Printer{w: w, asJSON: asJSON, now: time.Now}
}

// SaveReports makes every result also land in a timestamped JSON file under
// dir. The written path is announced on status.
func (p *Printer) SaveReports(dir string, status io.Writer) {
	p.reportDir = dir
	p.status = status
}

// BlockNumber is the answer to a head or time query. Target is nil for a
// head query.
type BlockNumber struct {
	Number   uint64
	Target   *time.Time
	Provider string
	Elapsed  time.Duration
}

// Deployment is the answer to a deployment-block query.
type Deployment struct {
	Address  common.Address
	Block    uint64
	Found    bool
	Provider string
	Elapsed  time.Duration
}

// CodeCheck is one row of a code-presence report.
type CodeCheck struct {
	Address common.Address
	HasCode bool
}

// CodeReport lists code presence for addresses at one block.
type CodeReport struct {
	At       chain.BlockRef
	Checks   []CodeCheck
	Provider string
}

// BlockInfo describes a single fetched block.
type BlockInfo struct {
	Ref      chain.BlockRef
	Block    chain.Block
	Provider string
}

func (p *Printer) BlockNumber(r BlockNumber) error {
	j := toJSONBlockNumber(r)
	if err := p.save("block-number", j); err != nil {
		return err
	}
	if p.asJSON {
		return p.encode(j)
	}
	renderBlockNumber(p.w, r)
	return nil
}

func (p *Printer) Deployment(r Deployment) error {
	j := toJSONDeployment(r)
	if err := p.save("deployment", j); err != nil {
		return err
	}
	if p.asJSON {
		return p.encode(j)
	}
	renderDeployment(p.w, r)
	return nil
}

func (p *Printer) Code(r CodeReport) error {
	j := toJSONCodeReport(r)
	if err := p.save("code", j); err != nil {
		return err
	}
	if p.asJSON {
		return p.encode(j)
	}
	renderCodeReport(p.w, r)
	return nil
}

func (p *Printer) Block(r BlockInfo) error {
	j := toJSONBlock(r)
	if err := p.save("block", j); err != nil {
		return err
	}
	if p.asJSON {
		return p.encode(j)
	}
	renderBlock(p.w, r, p.now())
	return nil
}

func (p *Printer) Stats(stats []metrics.MethodStats) error {
	if p.asJSON {
		return p.encode(toJSONStats(stats))
	}
	renderStats(p.w, stats)
	return nil
}

func (p *Printer) save(kind string, v any) error {
	if p.reportDir == "" {
		return nil
	}
	path, err := WriteReport(p.reportDir, kind, p.now(), v)
	if err != nil {
		return err
	}
	if p.status != nil {
		fmt.Fprintf(p.status, "JSON report written to: %s\n", path)
	}
	return nil
}

func (p *Printer) encode(v any) error {
	encoder := json.NewEncoder(p.w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
