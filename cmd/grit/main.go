package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/odvcencio/grit/pkg/porcelain"
)

const version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command line and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return porcelain.ExitOK
	}
	if err != errStopped {
		fmt.Fprintf(stderr, "%s: %v\n", errorPrefix(err), err)
	}
	return porcelain.ExitCode(err)
}

func errorPrefix(err error) string {
	switch porcelain.KindOf(err) {
	case porcelain.KindInvalidArgument:
		return "usage"
	case porcelain.KindConflict, porcelain.KindIllegalState:
		return "error"
	}
	return "fatal"
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "grit",
		Short:         "Version control porcelain: status, merge, rebase and checkout",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default is $HOME/.gritconfig.toml)")
	pf.StringVar(&a.logLevel, "log-level", "", "logging level: trace, debug, info, warn, error or none")
	pf.StringVar(&a.logFormat, "log-format", "", "logging format: text or json")
	pf.StringVarP(&a.chdir, "chdir", "C", "", "run as if grit was started in this directory")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newAddCmd(a))
	root.AddCommand(newRmCmd(a))
	root.AddCommand(newCommitCmd(a))
	root.AddCommand(newStatusCmd(a))
	root.AddCommand(newBranchCmd(a))
	root.AddCommand(newCheckoutCmd(a))
	root.AddCommand(newMergeCmd(a))
	root.AddCommand(newRebaseCmd(a))
	root.AddCommand(newResetCmd(a))
	root.AddCommand(newLogCmd(a))
	root.AddCommand(newRevParseCmd(a))
	root.AddCommand(newTagCmd(a))
	root.AddCommand(newDiffCmd(a))
	root.AddCommand(newMvCmd(a))
	root.AddCommand(newConfigCmd(a))
	root.AddCommand(newRevListCmd(a))
	root.AddCommand(newStashCmd(a))
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  usageArgs(cobra.NoArgs),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "grit "+version)
		},
	}
}
