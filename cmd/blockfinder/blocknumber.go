package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmagro/eth-block-locator/internal/chain"
	"github.com/dmagro/eth-block-locator/internal/locate"
	"github.com/dmagro/eth-block-locator/internal/output"
)

func blockNumberCmd(g *globalFlags) *cobra.Command {
	var at, from, to string

	cmd := &cobra.Command{
		Use:   "block-number",
		Short: "Print the head block number, or the last block at or before --time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, g, func(ctx context.Context, s *session) error {
				return runBlockNumber(ctx, s, at, from, to)
			})
		},
	}

	cmd.Flags().StringVar(&at, "time", "", "Target time (unix seconds, RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&from, "from", "earliest", "Lower search bound (number or tag)")
	cmd.Flags().StringVar(&to, "to", "latest", "Upper search bound (number or tag)")
	return cmd
}

func runBlockNumber(ctx context.Context, s *session, at, from, to string) error {
	start := time.Now()

	if at == "" {
		head, err := s.reader.HeadNumber(ctx)
		if err != nil {
			return err
		}
		return s.out.BlockNumber(output.BlockNumber{Number: head, Provider: s.provider, Elapsed: time.Since(start)})
	}

	target, err := parseTime(at)
	if err != nil {
		return err
	}
	fromRef, err := chain.ParseBlockRef(from)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	toRef, err := chain.ParseBlockRef(to)
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}

	n, err := locate.BlockByTime(ctx, s.reader, target.UnixMilli(), fromRef, toRef)
	if err != nil {
		return err
	}
	return s.out.BlockNumber(output.BlockNumber{
		Number:   n,
		Target:   &target,
		Provider: s.provider,
		Elapsed:  time.Since(start),
	})
}
