package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/odvcencio/grit/pkg/porcelain"
	"github.com/odvcencio/grit/pkg/repo"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init [path]",
		Short: "Create an empty grit repository",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			if err := os.MkdirAll(abs, 0o755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}

			return a.handle(cmd, func(h *porcelain.Handle) error {
				s, err := h.Init(abs)
				if err != nil {
					return err
				}
				defer s.Close()
				fmt.Fprintf(cmd.OutOrStdout(), "Initialized empty grit repository in %s\n", filepath.Join(s.Repo().RootDir, repo.DirName)+string(filepath.Separator))
				return nil
			})
		},
	}
}
