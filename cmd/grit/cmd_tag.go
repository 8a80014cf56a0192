package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/grit/pkg/porcelain"
	"github.com/odvcencio/grit/pkg/repo"
)

func newTagCmd(a *app) *cobra.Command {
	var (
		deleteTag bool
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "tag [-f] <name> [<commit>] | -d <name>...",
		Short: "Create, list or delete lightweight tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !deleteTag && len(args) > 2 {
				return usageError(fmt.Errorf("tag takes a name and at most one commit"))
			}
			if deleteTag && len(args) == 0 {
				return usageError(fmt.Errorf("tag -d needs at least one name"))
			}

			w := cmd.OutOrStdout()
			return a.session(cmd, func(s *porcelain.Session) error {
				r := s.Repo()
				switch {
				case deleteTag:
					for _, name := range args {
						tip, err := r.ResolveTag(name)
						if err != nil {
							return &porcelain.Error{Kind: porcelain.KindNotFound, Op: "tag", Msg: fmt.Sprintf("tag '%s' not found", name), Err: err}
						}
						if err := r.DeleteTag(name); err != nil {
							return porcelain.Wrap("tag", err)
						}
						fmt.Fprintf(w, "Deleted tag '%s' (was %s)\n", name, tip.Short())
					}
					return nil

				case len(args) > 0:
					name := args[0]
					if err := repo.ValidateRefName(name); err != nil {
						return usageError(fmt.Errorf("'%s' is not a valid tag name", name))
					}
					target := "HEAD"
					if len(args) == 2 {
						target = args[1]
					}
					ac, err := s.Resolver.MustResolve("tag", target)
					if err != nil {
						return err
					}
					if err := r.CreateTag(name, ac.ID, force); err != nil {
						if errors.Is(err, repo.ErrExists) {
							return &porcelain.Error{Kind: porcelain.KindIllegalState, Op: "tag", Msg: fmt.Sprintf("tag '%s' already exists", name), Err: err}
						}
						return porcelain.Wrap("tag", err)
					}
					return nil
				}

				names, err := r.ListTags()
				if err != nil {
					return porcelain.Wrap("tag", err)
				}
				for _, name := range names {
					fmt.Fprintln(w, name)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&deleteTag, "delete", "d", false, "delete tags")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "replace an existing tag")

	return cmd
}
