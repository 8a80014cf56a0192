package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/grit/pkg/porcelain"
)

func newRevParseCmd(a *app) *cobra.Command {
	var abbrevRef bool

	cmd := &cobra.Command{
		Use:   "rev-parse <revision>...",
		Short: "Print the commit each revision names",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			return a.session(cmd, func(s *porcelain.Session) error {
				for _, spec := range args {
					ac, err := s.Resolver.MustResolve("rev-parse", spec)
					if err != nil {
						return err
					}
					if abbrevRef {
						name := ac.ShortName()
						if spec == "HEAD" {
							head, err := s.Repo().Head()
							if err != nil {
								return porcelain.Wrap("rev-parse", err)
							}
							if name = head.Branch(); name == "" {
								name = "HEAD"
							}
						}
						fmt.Fprintln(w, name)
						continue
					}
					fmt.Fprintln(w, ac.ID)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&abbrevRef, "abbrev-ref", false, "print the short ref name instead of the commit id")

	return cmd
}
