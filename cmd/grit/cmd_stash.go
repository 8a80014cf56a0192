package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/grit/pkg/porcelain"
)

func newStashCmd(a *app) *cobra.Command {
	var message string

	push := func(cmd *cobra.Command, args []string) error {
		return a.session(cmd, func(s *porcelain.Session) error {
			entry, err := s.StashPush(cmd.Context(), message)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved working directory and index state %s\n", entry.Message)
			return nil
		})
	}

	cmd := &cobra.Command{
		Use:   "stash [push [-m <message>] | list | apply | pop | drop]",
		Short: "Set local changes to tracked files aside",
		Args:  usageArgs(cobra.NoArgs),
		RunE:  push,
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "describe the stash")

	pushCmd := &cobra.Command{
		Use:   "push [-m <message>]",
		Short: "Save local changes and reset to HEAD",
		Args:  usageArgs(cobra.NoArgs),
		RunE:  push,
	}
	pushCmd.Flags().StringVarP(&message, "message", "m", "", "describe the stash")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved stashes",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.session(cmd, func(s *porcelain.Session) error {
				list, err := s.StashList(cmd.Context())
				if err != nil {
					return err
				}
				for _, e := range list {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", e.Name(), e.Message)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(pushCmd, listCmd, newStashApplyCmd(a, false), newStashApplyCmd(a, true), newStashDropCmd(a))
	return cmd
}

func newStashApplyCmd(a *app, pop bool) *cobra.Command {
	use, short := "apply [<stash>]", "Restore a stash and keep it"
	if pop {
		use, short = "pop [<stash>]", "Restore a stash and drop it"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := porcelain.ParseStashRef("stash "+cmd.Name(), firstArg(args))
			if err != nil {
				return err
			}
			return a.session(cmd, func(s *porcelain.Session) error {
				out, err := s.StashApply(cmd.Context(), n, pop)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if len(out.Conflicts) > 0 {
					for _, p := range out.Conflicts {
						fmt.Fprintf(w, "CONFLICT (content): Merge conflict in %s\n", p)
					}
					if pop {
						fmt.Fprintln(w, "The stash entry is kept in case you need it again.")
					}
					return errStopped
				}
				if out.Dropped {
					fmt.Fprintf(w, "Dropped refs/%s (%s)\n", out.Entry.Name(), out.Entry.Hash.Short())
				}
				return nil
			})
		},
	}
}

func newStashDropCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "drop [<stash>]",
		Short: "Remove a stash",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := porcelain.ParseStashRef("stash drop", firstArg(args))
			if err != nil {
				return err
			}
			return a.session(cmd, func(s *porcelain.Session) error {
				entry, err := s.StashDrop(cmd.Context(), n)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Dropped refs/%s (%s)\n", entry.Name(), entry.Hash.Short())
				return nil
			})
		},
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
