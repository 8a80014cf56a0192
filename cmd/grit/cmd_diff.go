package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/grit/pkg/diff"
	"github.com/odvcencio/grit/pkg/porcelain"
)

func newDiffCmd(a *app) *cobra.Command {
	var (
		opts       porcelain.DiffOptions
		nameOnly   bool
		nameStatus bool
		noColor    bool
	)

	cmd := &cobra.Command{
		Use:   "diff [--cached] [-- <paths>...]",
		Short: "Show changes between HEAD, the index and the working tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			if nameOnly && nameStatus {
				return usageError(fmt.Errorf("--name-only and --name-status are mutually exclusive"))
			}
			opts.Paths = args
			return a.session(cmd, func(s *porcelain.Session) error {
				res, err := s.Diff(cmd.Context(), opts)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, p := range res.Unmerged {
					fmt.Fprintf(out, "* Unmerged path %s\n", p)
				}
				switch {
				case nameOnly:
					return diff.PrintNameOnly(out, res.Files)
				case nameStatus:
					return diff.PrintNameStatus(out, res.Files)
				}
				printer := diff.NewPrinter(out, !noColor && isTerminal(out))
				for _, fd := range res.Files {
					if err := printer.Print(fd); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.Cached, "cached", false, "compare the index with HEAD")
	f.BoolVar(&opts.Cached, "staged", false, "synonym for --cached")
	f.IntVarP(&opts.Context, "unified", "U", diff.DefaultContext, "lines of context around each change")
	f.BoolVar(&nameOnly, "name-only", false, "show only the names of changed files")
	f.BoolVar(&nameStatus, "name-status", false, "show names and status letters of changed files")
	f.BoolVar(&noColor, "no-color", false, "disable colored output")

	return cmd
}
