package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odvcencio/grit/pkg/porcelain"
)

func newRebaseCmd(a *app) *cobra.Command {
	var (
		onto  string
		abort bool
		cont  bool
		skip  bool
		quit  bool
	)

	cmd := &cobra.Command{
		Use:   "rebase [--onto <newbase>] <upstream> [<branch>] | --continue | --skip | --abort | --quit",
		Short: "Reapply commits on top of another base tip",
		RunE: func(cmd *cobra.Command, args []string) error {
			resume := abort || cont || skip || quit
			switch {
			case resume && (len(args) > 0 || onto != ""):
				return usageError(fmt.Errorf("rebase --continue, --skip, --abort and --quit take no arguments"))
			case !resume && (len(args) == 0 || len(args) > 2):
				return usageError(fmt.Errorf("rebase needs an upstream and at most one branch"))
			}

			ctx := cmd.Context()
			w := cmd.OutOrStdout()
			return a.session(cmd, func(s *porcelain.Session) error {
				var (
					out *porcelain.RebaseOutcome
					err error
				)
				switch {
				case abort:
					if err := s.Rebase.Abort(ctx); err != nil {
						return err
					}
					fmt.Fprintln(w, "Rebase aborted.")
					return nil
				case quit:
					return s.Rebase.Quit(ctx)
				case cont:
					out, err = s.Rebase.Continue(ctx)
				case skip:
					out, err = s.Rebase.Skip(ctx)
				default:
					var branch string
					if len(args) == 2 {
						branch = args[1]
					}
					out, err = s.Rebase.Start(ctx, args[0], branch, onto)
				}
				if out != nil {
					if perr := printRebase(w, out, !resume); perr != nil && err == nil {
						err = perr
					}
				}
				return err
			})
		},
	}

	cmd.Flags().StringVar(&onto, "onto", "", "replay onto this commit instead of upstream")
	cmd.Flags().BoolVar(&abort, "abort", false, "abort the rebase and restore the original branch")
	cmd.Flags().BoolVar(&cont, "continue", false, "continue after resolving conflicts")
	cmd.Flags().BoolVar(&skip, "skip", false, "skip the current commit and continue")
	cmd.Flags().BoolVar(&quit, "quit", false, "forget the rebase in progress, keeping HEAD where it is")
	cmd.MarkFlagsMutuallyExclusive("abort", "continue", "skip", "quit")

	return cmd
}

// printRebase reports a run of the rebase loop. A run stopped on conflicts
// returns errStopped.
func printRebase(w io.Writer, out *porcelain.RebaseOutcome, started bool) error {
	if out.UpToDate {
		fmt.Fprintln(w, "Current branch is up to date.")
		return nil
	}
	if started {
		noun := "commits"
		if out.Total == 1 {
			noun = "commit"
		}
		fmt.Fprintf(w, "Rebasing %d %s\n", out.Total, noun)
	}
	for _, st := range out.Steps {
		switch st.Result {
		case porcelain.StepAlreadyApplied:
			fmt.Fprintln(w, "Skipping commit (already applied)")
		case porcelain.StepSkipped:
			fmt.Fprintf(w, "Skipped: %s (%d/%d)\n", st.Summary, st.Index+1, st.Total)
		default:
			fmt.Fprintf(w, "Applying: %s (%d/%d)\n", st.Summary, st.Index+1, st.Total)
		}
	}

	if c := out.Conflict; c != nil {
		fmt.Fprintf(w, "Applying: %s (%d/%d)\n", c.Summary, c.Index+1, c.Total)
		for _, p := range c.Paths {
			fmt.Fprintf(w, "CONFLICT (content): Merge conflict in %s\n", p)
		}
		fmt.Fprintf(w, "error: could not apply %s... %s\n", c.Commit.Short(), c.Summary)
		fmt.Fprintln(w, "hint: Resolve all conflicts manually, mark them as resolved with")
		fmt.Fprintln(w, "hint: \"grit add <paths>\", then run \"grit rebase --continue\".")
		fmt.Fprintln(w, "hint: To skip this commit run \"grit rebase --skip\"; to go back, \"grit rebase --abort\".")
		return errStopped
	}

	if out.Finished {
		name := out.HeadName
		if name == "" {
			name = "detached HEAD"
		}
		fmt.Fprintf(w, "Successfully rebased and updated %s.\n", name)
	}
	return nil
}
