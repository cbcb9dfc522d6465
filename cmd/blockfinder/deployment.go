package main

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/dmagro/eth-block-locator/internal/chain"
	"github.com/dmagro/eth-block-locator/internal/output"
	"github.com/dmagro/eth-block-locator/internal/probe"
)

func deployedAtCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "deployed-at ADDRESS",
		Short: "Find the block a contract was deployed in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, g, func(ctx context.Context, s *session) error {
				start := time.Now()
				block, found, err := probe.DeploymentBlock(ctx, s.reader, addr)
				if err != nil {
					return err
				}
				return s.out.Deployment(output.Deployment{
					Address:  addr,
					Block:    block,
					Found:    found,
					Provider: s.provider,
					Elapsed:  time.Since(start),
				})
			})
		},
	}
}

func hasCodeCmd(g *globalFlags) *cobra.Command {
	var block string

	cmd := &cobra.Command{
		Use:   "has-code ADDRESS...",
		Short: "Report which addresses hold contract code",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addrs, err := parseAddresses(args)
			if err != nil {
				return err
			}
			at, err := chain.ParseBlockRef(block)
			if err != nil {
				return err
			}
			return withSession(cmd, g, func(ctx context.Context, s *session) error {
				return runHasCode(ctx, s, addrs, at)
			})
		},
	}

	cmd.Flags().StringVar(&block, "block", "latest", "Block to check at (number or tag)")
	return cmd
}

func runHasCode(ctx context.Context, s *session, addrs []common.Address, at chain.BlockRef) error {
	var results []bool
	if len(addrs) == 1 {
		has, err := probe.HasCode(ctx, s.reader, addrs[0], at)
		if err != nil {
			return err
		}
		results = []bool{has}
	} else {
		var err error
		if results, err = probe.HasCodeMany(ctx, s.reader, addrs, at); err != nil {
			return err
		}
	}

	checks := make([]output.CodeCheck, len(addrs))
	for i, addr := range addrs {
		checks[i] = output.CodeCheck{Address: addr, HasCode: results[i]}
	}
	return s.out.Code(output.CodeReport{At: at, Checks: checks, Provider: s.provider})
}
