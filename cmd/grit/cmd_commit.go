package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/grit/pkg/logging"
	"github.com/odvcencio/grit/pkg/porcelain"
)

func newCommitCmd(a *app) *cobra.Command {
	var (
		message string
		author  string
		sign    bool
		keyPath string
	)

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Record changes to the repository",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := porcelain.CommitOptions{Message: message, Author: author}
			if sign || keyPath != "" {
				signer, path, err := newSSHCommitSigner(keyPath)
				if err != nil {
					return usageError(err)
				}
				logging.FromContext(cmd.Context()).WithField("key", path).Debug("signing commit")
				opts.Signer = signer
			}

			return a.session(cmd, func(s *porcelain.Session) error {
				out, err := s.Commit(cmd.Context(), opts)
				if err != nil {
					return err
				}
				printCommit(cmd, out)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringVar(&author, "author", "", `override the author, "Name <email>"`)
	cmd.Flags().BoolVarP(&sign, "gpg-sign", "S", false, "sign the commit with an SSH key")
	cmd.Flags().StringVar(&keyPath, "key", "", "SSH private key used by -S (default: ~/.ssh/id_ed25519, id_ecdsa, id_rsa)")

	return cmd
}

func printCommit(cmd *cobra.Command, out *porcelain.CommitOutcome) {
	branch := out.Branch
	if branch == "" {
		branch = "detached HEAD"
	}
	if out.Root {
		branch += " (root-commit)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", branch, out.Hash.Short(), out.Summary)
}
