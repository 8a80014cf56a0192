package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odvcencio/grit/pkg/porcelain"
)

func newCheckoutCmd(a *app) *cobra.Command {
	var (
		createBranch string
		resetBranch  string
		force        bool
	)

	cmd := &cobra.Command{
		Use:   "checkout [-b|-B <new-branch>] <branch|commit> [start-point]",
		Short: "Switch branches or detach HEAD at a commit",
		Args:  usageArgs(cobra.RangeArgs(0, 2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := porcelain.CheckoutOptions{Force: force, CreateBranch: createBranch}
			if resetBranch != "" {
				opts.CreateBranch, opts.ResetBranch = resetBranch, true
			}

			var target string
			switch {
			case opts.CreateBranch != "":
				if len(args) > 1 {
					return usageError(fmt.Errorf("checkout -b takes at most one start point"))
				}
				if len(args) == 1 {
					opts.StartPoint = args[0]
				}
			case len(args) == 1:
				target = args[0]
			default:
				return usageError(fmt.Errorf("checkout needs exactly one branch or commit"))
			}

			return a.session(cmd, func(s *porcelain.Session) error {
				out, err := s.Checkout.Checkout(cmd.Context(), target, opts)
				if err != nil {
					return err
				}
				printCheckout(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&createBranch, "branch", "b", "", "create and switch to a new branch")
	cmd.Flags().StringVarP(&resetBranch, "force-branch", "B", "", "create or reset a branch and switch to it")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "discard local changes that would be overwritten")
	cmd.MarkFlagsMutuallyExclusive("branch", "force-branch")

	return cmd
}

func printCheckout(w io.Writer, out *porcelain.CheckoutOutcome) {
	switch {
	case out.Detached:
		fmt.Fprintf(w, "HEAD is now at %s %s\n", out.Commit.Short(), out.Summary)
	case out.AlreadyOn:
		fmt.Fprintf(w, "Already on '%s'\n", out.Branch)
	case out.Reset:
		fmt.Fprintf(w, "Switched to and reset branch '%s'\n", out.Branch)
	case out.Created:
		if out.Upstream != "" {
			fmt.Fprintf(w, "branch '%s' set up to track '%s'.\n", out.Branch, out.Upstream)
		}
		fmt.Fprintf(w, "Switched to a new branch '%s'\n", out.Branch)
	default:
		fmt.Fprintf(w, "Switched to branch '%s'\n", out.Branch)
	}
}
