package main

import (
	"strconv"

	"github.com/spf13/pflag"

	"github.com/odvcencio/grit/pkg/repo"
)

// choiceFlag is a boolean flag that stores a fixed choice into a shared
// target when given, so --soft/--mixed/--hard or --no-ff/--ff-only fill one
// variable.
type choiceFlag[T comparable] struct {
	target *T
	choice T
}

func (f *choiceFlag[T]) String() string {
	if f.target == nil {
		return "false"
	}
	return strconv.FormatBool(*f.target == f.choice)
}

func (f *choiceFlag[T]) Set(v string) error {
	on, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	if on {
		*f.target = f.choice
	}
	return nil
}

func (f *choiceFlag[T]) Type() string { return "bool" }

// IsBoolFlag lets pflag accept the flag without a value.
func (f *choiceFlag[T]) IsBoolFlag() bool { return true }

func addChoiceFlag[T comparable](fs *pflag.FlagSet, target *T, choice T, name, usage string) {
	fl := fs.VarPF(&choiceFlag[T]{target: target, choice: choice}, name, "", usage)
	fl.NoOptDefVal = "true"
}

// resetModeFlags registers --soft, --mixed and --hard on fs.
func resetModeFlags(fs *pflag.FlagSet, mode *repo.ResetMode) {
	addChoiceFlag(fs, mode, repo.ResetSoft, "soft", "move HEAD only")
	addChoiceFlag(fs, mode, repo.ResetMixed, "mixed", "move HEAD and reset the index (default)")
	addChoiceFlag(fs, mode, repo.ResetHard, "hard", "move HEAD and reset the index and working tree")
}

// fastForwardFlags registers --no-ff and --ff-only on fs.
func fastForwardFlags(fs *pflag.FlagSet, pref *repo.MergePreference) {
	addChoiceFlag(fs, pref, repo.PreferenceNoFastForward, "no-ff", "always create a merge commit")
	addChoiceFlag(fs, pref, repo.PreferenceFastForwardOnly, "ff-only", "refuse to merge unless fast-forward is possible")
}
