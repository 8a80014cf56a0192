package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/grit/pkg/object"
	"github.com/odvcencio/grit/pkg/porcelain"
)

func newRevListCmd(a *app) *cobra.Command {
	var (
		count    bool
		reverse  bool
		maxCount int
	)

	cmd := &cobra.Command{
		Use:   "rev-list <revision>... [^<revision>...]",
		Short: "List commits reachable from some revisions but not others",
		Long: "List commits reachable from the given revisions, newest first.\n" +
			"A revision prefixed with ^ excludes everything reachable from it;\n" +
			"A..B is shorthand for ^A B.",
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			return a.session(cmd, func(s *porcelain.Session) error {
				var include, exclude []object.Hash
				resolve := func(spec string, into *[]object.Hash) error {
					ac, err := s.Resolver.MustResolve("rev-list", spec)
					if err != nil {
						return err
					}
					*into = append(*into, ac.ID)
					return nil
				}
				for _, arg := range args {
					var err error
					switch {
					case strings.HasPrefix(arg, "^"):
						err = resolve(arg[1:], &exclude)
					case strings.Contains(arg, ".."):
						from, to, _ := strings.Cut(arg, "..")
						if from == "" {
							from = "HEAD"
						}
						if to == "" {
							to = "HEAD"
						}
						if err = resolve(from, &exclude); err == nil {
							err = resolve(to, &include)
						}
					default:
						err = resolve(arg, &include)
					}
					if err != nil {
						return err
					}
				}

				commits, err := s.Repo().RevList(include, exclude)
				if err != nil {
					return porcelain.Wrap("rev-list", err)
				}
				slices.Reverse(commits)
				if maxCount > 0 && len(commits) > maxCount {
					commits = commits[:maxCount]
				}
				if count {
					fmt.Fprintln(w, len(commits))
					return nil
				}
				if reverse {
					slices.Reverse(commits)
				}
				for _, h := range commits {
					fmt.Fprintln(w, h)
				}
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.BoolVar(&count, "count", false, "print only the number of commits")
	f.BoolVar(&reverse, "reverse", false, "list oldest commits first")
	f.IntVarP(&maxCount, "max-count", "n", 0, "stop after this many commits")

	return cmd
}
