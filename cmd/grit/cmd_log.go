package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/grit/pkg/porcelain"
	"github.com/odvcencio/grit/pkg/repo"
)

func newLogCmd(a *app) *cobra.Command {
	var (
		oneline bool
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "log [<revision>]",
		Short: "Show commit logs",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			return a.session(cmd, func(s *porcelain.Session) error {
				rev := "HEAD"
				if len(args) == 1 {
					rev = args[0]
				}
				if rev == "HEAD" {
					head, err := s.Repo().Head()
					if err != nil {
						return porcelain.Wrap("log", err)
					}
					if head.Unborn {
						return &porcelain.Error{Kind: porcelain.KindNotFound, Op: "log",
							Msg: fmt.Sprintf("your current branch '%s' does not have any commits yet", head.Branch()),
							Err: repo.ErrUnbornBranch}
					}
				}
				ac, err := s.Resolver.MustResolve("log", rev)
				if err != nil {
					return err
				}
				entries, err := s.Repo().Log(ac.ID, limit)
				if err != nil {
					return porcelain.Wrap("log", err)
				}
				for i, e := range entries {
					if oneline {
						fmt.Fprintf(w, "%s %s\n", e.Hash.Short(), e.Commit.Summary())
						continue
					}
					if i > 0 {
						fmt.Fprintln(w)
					}
					fmt.Fprintf(w, "commit %s\n", e.Hash)
					if len(e.Commit.Parents) > 1 {
						short := make([]string, len(e.Commit.Parents))
						for j, p := range e.Commit.Parents {
							short[j] = p.Short()
						}
						fmt.Fprintf(w, "Merge: %s\n", strings.Join(short, " "))
					}
					fmt.Fprintf(w, "Author: %s <%s>\n", e.Commit.Author.Name, e.Commit.Author.Email)
					fmt.Fprintf(w, "Date:   %s\n\n", e.Commit.Author.When.Format("Mon Jan 2 15:04:05 2006 -0700"))
					for _, line := range strings.Split(strings.TrimRight(e.Commit.Message, "\n"), "\n") {
						fmt.Fprintf(w, "    %s\n", line)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "show each commit on one line")
	cmd.Flags().IntVarP(&limit, "max-count", "n", 0, "limit the number of commits shown")

	return cmd
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}
