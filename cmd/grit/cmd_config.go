package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/grit/pkg/porcelain"
	"github.com/odvcencio/grit/pkg/repo"
)

func newConfigCmd(a *app) *cobra.Command {
	var (
		list  bool
		unset bool
	)

	cmd := &cobra.Command{
		Use:   "config [--list | --unset <key> | <key> [<value>]]",
		Short: "Get and set repository options in .grit/config.toml",
		Args:  usageArgs(cobra.MaximumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case list && (unset || len(args) > 0):
				return usageError(fmt.Errorf("--list takes no other arguments"))
			case unset && len(args) != 1:
				return usageError(fmt.Errorf("--unset takes exactly one key"))
			case !list && len(args) == 0:
				return usageError(fmt.Errorf("a key is required"))
			}
			w := cmd.OutOrStdout()
			return a.session(cmd, func(s *porcelain.Session) error {
				r := s.Repo()
				if list || len(args) == 1 && !unset {
					cfg, err := r.ReadConfig()
					if err != nil {
						return porcelain.Wrap("config", err)
					}
					if list {
						for _, kv := range cfg.List() {
							fmt.Fprintln(w, kv)
						}
						return nil
					}
					v, ok, err := cfg.Get(args[0])
					if err != nil {
						return usageError(err)
					}
					if !ok {
						return &porcelain.Error{Kind: porcelain.KindNotFound, Op: "config", Msg: fmt.Sprintf("key '%s' is not set", args[0])}
					}
					fmt.Fprintln(w, v)
					return nil
				}
				value := ""
				if !unset {
					value = args[1]
				}
				var setErr error
				err := r.UpdateConfig(func(cfg *repo.Config) error {
					setErr = cfg.Set(args[0], value)
					return setErr
				})
				if setErr != nil {
					return usageError(setErr)
				}
				return porcelain.Wrap("config", err)
			})
		},
	}

	cmd.Flags().BoolVarP(&list, "list", "l", false, "list every key that is set")
	cmd.Flags().BoolVar(&unset, "unset", false, "remove the key")

	return cmd
}
