package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/grit/pkg/porcelain"
)

func newMvCmd(a *app) *cobra.Command {
	var (
		force   bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "mv <source>... <destination>",
		Short: "Move or rename a file or a directory",
		Args:  usageArgs(cobra.MinimumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, dst := args[:len(args)-1], args[len(args)-1]
			return a.session(cmd, func(s *porcelain.Session) error {
				moved, err := s.Move(cmd.Context(), sources, dst, force)
				if verbose {
					for i, to := range moved {
						fmt.Fprintf(cmd.OutOrStdout(), "Renaming %s to %s\n", sources[i], to)
					}
				}
				return err
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing destination file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "report the names of moved files")

	return cmd
}
