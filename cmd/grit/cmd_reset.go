package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/grit/pkg/porcelain"
	"github.com/odvcencio/grit/pkg/repo"
)

func newResetCmd(a *app) *cobra.Command {
	mode := repo.ResetMixed

	cmd := &cobra.Command{
		Use:   "reset [--soft | --mixed | --hard] [<commit>] [-- <paths>...]",
		Short: "Reset current HEAD to the specified state",
		RunE: func(cmd *cobra.Command, args []string) error {
			var rev string
			var paths []string
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				if dash > 1 {
					return usageError(fmt.Errorf("reset takes at most one commit before --"))
				}
				if dash == 1 {
					rev = args[0]
				}
				paths = args[dash:]
			} else if len(args) > 1 {
				return usageError(fmt.Errorf("reset takes at most one commit; use -- to name paths"))
			} else if len(args) == 1 {
				rev = args[0]
			}

			ctx := cmd.Context()
			w := cmd.OutOrStdout()
			return a.session(cmd, func(s *porcelain.Session) error {
				if len(paths) > 0 {
					if rev != "" && rev != "HEAD" {
						return usageError(fmt.Errorf("reset with paths only restores entries from HEAD"))
					}
					if cmd.Flags().Changed("soft") || cmd.Flags().Changed("hard") {
						return usageError(fmt.Errorf("cannot do a %s reset with paths", mode))
					}
					return s.ResetPaths(ctx, paths)
				}

				out, err := s.Reset(ctx, rev, mode)
				if err != nil {
					return err
				}
				if out.Mode == repo.ResetHard {
					fmt.Fprintf(w, "HEAD is now at %s %s\n", out.Commit.Short(), out.Summary)
				}
				return nil
			})
		},
	}

	resetModeFlags(cmd.Flags(), &mode)
	cmd.MarkFlagsMutuallyExclusive("soft", "mixed", "hard")

	return cmd
}
