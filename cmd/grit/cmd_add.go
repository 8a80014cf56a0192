package main

import (
	"github.com/spf13/cobra"

	"github.com/odvcencio/grit/pkg/porcelain"
)

func newAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <paths...>",
		Short: "Stage files for the next commit",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.session(cmd, func(s *porcelain.Session) error {
				return porcelain.Wrap("add", s.Repo().Add(args))
			})
		},
	}
}
