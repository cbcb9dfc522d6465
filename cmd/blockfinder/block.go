package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dmagro/eth-block-locator/internal/chain"
	"github.com/dmagro/eth-block-locator/internal/output"
)

func blockCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "block [REF]",
		Short: "Show a block's number and timestamp (default: latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var arg string
			if len(args) > 0 {
				arg = args[0]
			}
			ref, err := chain.ParseBlockRef(arg)
			if err != nil {
				return err
			}
			return withSession(cmd, g, func(ctx context.Context, s *session) error {
				b, err := s.reader.Block(ctx, ref)
				if err != nil {
					return err
				}
				return s.out.Block(output.BlockInfo{Ref: ref, Block: b, Provider: s.provider})
			})
		},
	}
}
