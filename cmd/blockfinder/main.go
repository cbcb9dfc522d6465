// Command blockfinder locates Ethereum blocks by timestamp and contracts by
// the block they were deployed in.
//
// Usage examples:
//
//	blockfinder block-number                          head block number
//	blockfinder block-number --time 2024-01-01        last block at or before midnight UTC
//	blockfinder block-number --time 1704067200 --from 18000000
//	blockfinder deployed-at 0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48
//	blockfinder has-code 0xA0b8...eB48 0xd8dA...6045 --block 6082465
//	blockfinder block finalized --provider llamarpc --json
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "config/providers.yaml"

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath   string
	providerName string
	rpcURL       string
	jsonOut      bool
	verbose      bool
	stats        bool
	metricsOut   string
	reportDir    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "blockfinder",
		Short:         "Locate Ethereum blocks by time and contracts by deployment block",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", defaultConfigPath, "Path to the providers config file")
	pf.StringVar(&g.providerName, "provider", "", "Use the named provider from the config")
	pf.StringVar(&g.rpcURL, "rpc-url", "", "Use this JSON-RPC endpoint instead of the configured providers")
	pf.BoolVar(&g.jsonOut, "json", false, "Write results as JSON")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "Log search steps and provider selection")
	pf.BoolVar(&g.stats, "stats", false, "Print per-method RPC statistics to stderr when done")
	pf.StringVar(&g.metricsOut, "metrics-out", "", "Write Prometheus metrics to this textfile when done")
	pf.StringVar(&g.reportDir, "save-report", "", "Also save each result as a timestamped JSON file in this directory")

	root.AddCommand(
		blockNumberCmd(g),
		deployedAtCmd(g),
		hasCodeCmd(g),
		blockCmd(g),
	)
	return root
}
