package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/grit/pkg/object"
	"github.com/odvcencio/grit/pkg/porcelain"
	"github.com/odvcencio/grit/pkg/repo"
)

func newBranchCmd(a *app) *cobra.Command {
	var (
		deleteBranch string
		forceDelete  string
		rename       bool
		all          bool
		remotes      bool
		force        bool
	)

	cmd := &cobra.Command{
		Use:   "branch [name [start-point]]",
		Short: "List, create, rename or delete branches",
		Args:  usageArgs(cobra.MaximumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return a.session(cmd, func(s *porcelain.Session) error {
				r := s.Repo()

				switch {
				case deleteBranch != "" || forceDelete != "":
					name, checked := deleteBranch, true
					if forceDelete != "" {
						name, checked = forceDelete, false
					}
					tip, err := r.ResolveRef("refs/heads/" + name)
					if err != nil {
						return &porcelain.Error{Kind: porcelain.KindNotFound, Op: "branch", Msg: fmt.Sprintf("branch '%s' not found", name)}
					}
					if checked {
						if err := requireMerged(r, name, tip); err != nil {
							return err
						}
					}
					if err := r.DeleteBranch(name); err != nil {
						return porcelain.Wrap("branch", err)
					}
					fmt.Fprintf(out, "Deleted branch %s (was %s).\n", name, tip.Short())
					return nil

				case rename:
					if len(args) == 0 {
						return usageError(fmt.Errorf("branch -m needs a new name"))
					}
					oldName, newName := "", args[0]
					if len(args) == 2 {
						oldName, newName = args[0], args[1]
					} else {
						current, err := r.CurrentBranch()
						if err != nil {
							return porcelain.Wrap("branch", err)
						}
						if current == "" {
							return &porcelain.Error{Kind: porcelain.KindIllegalState, Op: "branch", Msg: "cannot rename the current branch while not on any"}
						}
						oldName = current
					}
					return s.RefUpdated("branch", r.RenameBranch(oldName, newName, force))

				case len(args) > 0:
					name := args[0]
					if err := repo.ValidateRefName(name); err != nil {
						return usageError(fmt.Errorf("'%s' is not a valid branch name", name))
					}
					start := "HEAD"
					if len(args) == 2 {
						start = args[1]
					}
					ac, err := s.Resolver.MustResolve("branch", start)
					if err != nil {
						return err
					}
					if err := r.CreateBranch(name, ac.ID, force); err != nil {
						return porcelain.Wrap("branch", err)
					}
					return nil
				}

				kind := repo.BranchLocal
				switch {
				case all:
					kind = repo.BranchAll
				case remotes:
					kind = repo.BranchRemote
				}
				branches, err := r.ListBranches(kind)
				if err != nil {
					return porcelain.Wrap("branch", err)
				}
				current, err := r.CurrentBranch()
				if err != nil {
					return porcelain.Wrap("branch", err)
				}
				for _, b := range branches {
					name := b.Name
					if b.Remote && all {
						name = "remotes/" + name
					}
					marker := "  "
					if !b.Remote && b.Name == current {
						marker = "* "
					}
					fmt.Fprintf(out, "%s%s\n", marker, name)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&deleteBranch, "delete", "d", "", "delete a fully merged branch")
	cmd.Flags().StringVarP(&forceDelete, "force-delete", "D", "", "delete a branch even if it is not merged")
	cmd.Flags().BoolVarP(&rename, "move", "m", false, "rename a branch")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "list local and remote-tracking branches")
	cmd.Flags().BoolVarP(&remotes, "remotes", "r", false, "list remote-tracking branches")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "reset an existing branch, or overwrite on rename")
	cmd.MarkFlagsMutuallyExclusive("delete", "force-delete", "move")

	return cmd
}

// requireMerged refuses to delete a branch whose tip HEAD does not
// contain.
func requireMerged(r *repo.Repo, name string, tip object.Hash) error {
	head, err := r.Head()
	if err != nil {
		return porcelain.Wrap("branch", err)
	}
	if head.Hash == "" {
		return nil
	}
	merged, err := r.IsAncestor(tip, head.Hash)
	if err != nil {
		return porcelain.Wrap("branch", err)
	}
	if !merged {
		return &porcelain.Error{Kind: porcelain.KindIllegalState, Op: "branch",
			Msg: fmt.Sprintf("the branch '%s' is not fully merged; use -D to delete it anyway", name)}
	}
	return nil
}
