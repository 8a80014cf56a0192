package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/grit/pkg/porcelain"
)

func newRmCmd(a *app) *cobra.Command {
	var cached bool

	cmd := &cobra.Command{
		Use:   "rm <paths...>",
		Short: "Remove files from the index and the working tree",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.session(cmd, func(s *porcelain.Session) error {
				if err := s.Repo().Remove(args, cached); err != nil {
					return porcelain.Wrap("rm", err)
				}
				for _, p := range args {
					fmt.Fprintf(cmd.OutOrStdout(), "rm '%s'\n", p)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&cached, "cached", false, "only remove from the index")

	return cmd
}
