package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/grit/pkg/porcelain"
	"github.com/odvcencio/grit/pkg/repo"
)

func newMergeCmd(a *app) *cobra.Command {
	var (
		noCommit bool
		pref     repo.MergePreference
		abort    bool
		cont     bool
		quit     bool
		yes      bool
	)

	cmd := &cobra.Command{
		Use:   "merge <commit>... | --abort | --continue | --quit",
		Short: "Join two or more development histories together",
		RunE: func(cmd *cobra.Command, args []string) error {
			resume := abort || cont || quit
			if resume && len(args) > 0 {
				return usageError(fmt.Errorf("merge --abort, --continue and --quit take no arguments"))
			}
			if !resume && len(args) == 0 {
				return usageError(fmt.Errorf("merge needs at least one commit"))
			}

			ctx := cmd.Context()
			w := cmd.OutOrStdout()
			return a.session(cmd, func(s *porcelain.Session) error {
				switch {
				case abort:
					var ask func() (bool, error)
					if !yes && isTerminal(os.Stdin) {
						ask = func() (bool, error) { return confirm("Discard the merge in progress and reset to HEAD") }
					}
					done, err := s.Merge.Abort(ctx, ask)
					if err != nil {
						return err
					}
					if !done {
						fmt.Fprintln(w, "Merge abort cancelled.")
					}
					return nil
				case quit:
					return s.Merge.Quit(ctx)
				case cont:
					out, err := s.Merge.Continue(ctx)
					if err != nil {
						return err
					}
					return printMerge(w, s, out)
				}

				targets := make([]*porcelain.AnnotatedCommit, len(args))
				for i, spec := range args {
					ac, err := s.Resolver.MustResolve("merge", spec)
					if err != nil {
						return err
					}
					targets[i] = ac
				}
				head, err := s.Repo().Head()
				if err != nil {
					return porcelain.Wrap("merge", err)
				}
				out, err := s.Merge.Merge(ctx, targets, porcelain.MergeOptions{
					NoCommit: noCommit,
					NoFF:     pref == repo.PreferenceNoFastForward,
					FFOnly:   pref == repo.PreferenceFastForwardOnly,
				})
				if err != nil {
					return err
				}
				if out.FastForward {
					from := "0000000"
					if head.Hash != "" {
						from = head.Hash.Short()
					}
					fmt.Fprintf(w, "Updating %s..%s\n", from, out.Commit.Short())
				}
				return printMerge(w, s, out)
			})
		},
	}

	cmd.Flags().BoolVar(&noCommit, "no-commit", false, "stop before creating the merge commit")
	fastForwardFlags(cmd.Flags(), &pref)
	cmd.Flags().BoolVar(&abort, "abort", false, "abort the merge in progress")
	cmd.Flags().BoolVar(&cont, "continue", false, "conclude the merge once conflicts are resolved")
	cmd.Flags().BoolVar(&quit, "quit", false, "forget the merge in progress, keeping the index and working tree")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	cmd.MarkFlagsMutuallyExclusive("no-ff", "ff-only")
	cmd.MarkFlagsMutuallyExclusive("abort", "continue", "quit")

	return cmd
}

func printMerge(w io.Writer, s *porcelain.Session, out *porcelain.MergeOutcome) error {
	switch {
	case out.UpToDate:
		fmt.Fprintln(w, "Already up to date.")
		return nil
	case out.FastForward:
		fmt.Fprintln(w, "Fast-forward")
		return nil
	}

	for _, f := range out.Files {
		switch f.Status {
		case "conflict":
			fmt.Fprintf(w, "Auto-merging %s\n", f.Path)
			fmt.Fprintf(w, "CONFLICT (content): Merge conflict in %s\n", f.Path)
		case "clean":
			fmt.Fprintf(w, "Auto-merging %s\n", f.Path)
		}
	}
	if len(out.Conflicts) > 0 {
		fmt.Fprintln(w, "Automatic merge failed; fix conflicts and then commit the result.")
		return errStopped
	}
	if out.Commit == "" {
		fmt.Fprintln(w, "Automatic merge went well; stopped before committing as requested")
		return nil
	}
	branch, err := s.Repo().CurrentBranch()
	if err != nil {
		return porcelain.Wrap("merge", err)
	}
	if branch == "" {
		branch = "detached HEAD"
	}
	fmt.Fprintf(w, "[%s %s] %s\n", branch, out.Commit.Short(), firstLine(out.Message))
	return nil
}
