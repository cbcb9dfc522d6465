package output

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/rodaine/table"

	"github.com/dmagro/eth-block-locator/internal/metrics"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	dim    = color.New(color.Faint).SprintFunc()
)

func renderBlockNumber(w io.Writer, r BlockNumber) {
	fmt.Fprintln(w, bold(r.Number))
	if r.Target != nil {
		fmt.Fprintf(w, "  %s %s\n", cyan("Target:"), r.Target.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	fmt.Fprintf(w, "  %s %s (%s)\n", cyan("Via:"), r.Provider, formatDuration(r.Elapsed))
}

func renderDeployment(w io.Writer, r Deployment) {
	if !r.Found {
		fmt.Fprintf(w, "%s %s has no code at the latest block\n", yellow("✗"), r.Address.Hex())
		return
	}
	fmt.Fprintf(w, "%s %s deployed at block %s\n", green("✓"), r.Address.Hex(), bold(r.Block))
	fmt.Fprintf(w, "  %s %s (%s)\n", cyan("Via:"), r.Provider, formatDuration(r.Elapsed))
}

func renderCodeReport(w io.Writer, r CodeReport) {
	headerFmt := color.New(color.FgCyan, color.Underline).SprintfFunc()
	tbl := table.New("Address", "Code").WithWriter(w).WithHeaderFormatter(headerFmt)
	for _, c := range r.Checks {
		tbl.AddRow(c.Address.Hex(), formatHasCode(c.HasCode))
	}
	tbl.Print()
	fmt.Fprintf(w, "%s block %s via %s\n", dim("at"), r.At, r.Provider)
}

func renderBlock(w io.Writer, r BlockInfo, now time.Time) {
	fmt.Fprintln(w, bold(fmt.Sprintf("Block #%d", r.Block.Number)))
	fmt.Fprintf(w, "  %s %s\n", cyan("Timestamp:"), formatBlockTime(r.Block.Timestamp, now))
	fmt.Fprintf(w, "  %s %s\n", cyan("Via:"), r.Provider)
}

func renderStats(w io.Writer, stats []metrics.MethodStats) {
	if len(stats) == 0 {
		fmt.Fprintln(w, dim("No RPC calls recorded."))
		return
	}
	fmt.Fprintln(w, bold("RPC Calls"))
	headerFmt := color.New(color.FgCyan, color.Underline).SprintfFunc()
	tbl := table.New("Provider", "Method", "Calls", "Failures", "p50", "p95", "p99", "Max").
		WithWriter(w).
		WithHeaderFormatter(headerFmt)
	for _, s := range stats {
		tbl.AddRow(
			s.Provider,
			s.Method,
			s.Calls,
			formatErrorCount(s.Failures),
			formatDuration(s.Latency.P50),
			formatDuration(s.Latency.P95),
			formatDuration(s.Latency.P99),
			formatDuration(s.Latency.Max),
		)
	}
	tbl.Print()
}

func formatHasCode(has bool) string {
	if has {
		return green("yes")
	}
	return dim("no")
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "—"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatErrorCount(count int) string {
	if count == 0 {
		return green("0")
	}
	return red(fmt.Sprintf("%d", count))
}

func formatBlockTime(ts uint64, now time.Time) string {
	t := time.Unix(int64(ts), 0).UTC()
	ago := now.Sub(t)

	var agoStr string
	switch {
	case ago < 0:
		agoStr = "in the future"
	case ago < time.Minute:
		agoStr = fmt.Sprintf("%d seconds ago", int(ago.Seconds()))
	case ago < time.Hour:
		agoStr = fmt.Sprintf("%d minutes ago", int(ago.Minutes()))
	case ago < 24*time.Hour:
		agoStr = fmt.Sprintf("%d hours ago", int(ago.Hours()))
	default:
		agoStr = fmt.Sprintf("%d days ago", int(ago.Hours()/24))
	}

	return fmt.Sprintf("%s (%s)", t.Format("2006-01-02 15:04:05 UTC"), agoStr)
}

// DisableColors turns off color output for non-TTY or JSON mode.
func DisableColors() {
	color.NoColor = true
}
