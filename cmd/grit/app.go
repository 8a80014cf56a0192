package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/odvcencio/grit/pkg/config"
	"github.com/odvcencio/grit/pkg/logging"
	"github.com/odvcencio/grit/pkg/porcelain"
)

// errStopped ends a command that paused on conflicts after it printed
// what to do next. It maps to exit status 1 and is not printed again.
var errStopped = &porcelain.Error{Kind: porcelain.KindConflict, Msg: "stopped on conflicts"}

// app holds the global flags and the settings loaded from them.
type app struct {
	configFile string
	logLevel   string
	logFormat  string
	chdir      string

	settings *config.Settings
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.chdir != "" {
		if err := os.Chdir(a.chdir); err != nil {
			return fmt.Errorf("cannot change to '%s': %w", a.chdir, err)
		}
	}
	settings, err := config.Load(a.configFile)
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			return usageError(err)
		}
		return err
	}
	if a.logLevel != "" {
		settings.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		settings.Log.Format = a.logFormat
	}
	if err := logging.SetLevel(settings.Log.Level); err != nil {
		return usageError(err)
	}
	if err := logging.SetOutputFormat(settings.Log.Format); err != nil {
		return usageError(err)
	}
	if err := logging.SetOutputs(settings.Log.Output, logging.DefaultFileMaxSizeMB, logging.DefaultFilesKeep); err != nil {
		return err
	}
	a.settings = settings

	log := logging.Default().WithField("command", cmd.CommandPath())
	if f := settings.File(); f != "" {
		log = log.WithField("file", f)
	}
	log.Debug("configuration loaded")
	return nil
}

// handle runs fn with a Handle whose progress events are drawn on the
// command's stderr.
func (a *app) handle(cmd *cobra.Command, fn func(h *porcelain.Handle) error) error {
	h := porcelain.New(porcelain.Options{Settings: a.settings, Logger: logging.Default()})
	done := drawProgress(cmd.ErrOrStderr(), h.Progress())
	defer func() {
		h.Close()
		<-done
	}()
	return fn(h)
}

// session runs fn with a Session on the repository containing the working
// directory. Failures deferred by the session are reported as warnings.
func (a *app) session(cmd *cobra.Command, fn func(s *porcelain.Session) error) error {
	return a.handle(cmd, func(h *porcelain.Handle) error {
		s, err := h.Open(".")
		if err != nil {
			return err
		}
		err = fn(s)
		if cerr := s.Close(); cerr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", cerr)
		}
		return err
	})
}

// drawProgress renders events as a progress bar on w when w is a terminal
// and discards them otherwise. The returned channel is closed once events
// is closed and drained.
func drawProgress(w io.Writer, events <-chan porcelain.Progress) <-chan struct{} {
	done := make(chan struct{})
	if events == nil {
		close(done)
		return done
	}
	interactive := isTerminal(w)
	go func() {
		defer close(done)
		var (
			bar  *progressbar.ProgressBar
			op   string
			last int
		)
		for ev := range events {
			if !interactive || ev.Total <= 0 {
				continue
			}
			if bar == nil || ev.Op != op || ev.Done < last {
				if bar != nil {
					_ = bar.Finish()
				}
				op = ev.Op
				bar = progressbar.NewOptions(ev.Total,
					progressbar.OptionSetWriter(w),
					progressbar.OptionSetDescription(ev.Op),
					progressbar.OptionSetPredictTime(false),
					progressbar.OptionClearOnFinish(),
					progressbar.OptionFullWidth())
			}
			if bar.GetMax() != ev.Total {
				bar.ChangeMax(ev.Total)
			}
			last = ev.Done
			_ = bar.Set(ev.Done)
		}
		if bar != nil {
			_ = bar.Finish()
		}
	}()
	return done
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func confirm(question string) (bool, error) {
	prm := promptui.Prompt{
		Label:     question,
		IsConfirm: true,
	}
	_, err := prm.Run()
	if errors.Is(err, promptui.ErrAbort) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func usageError(err error) error {
	return &porcelain.Error{Kind: porcelain.KindInvalidArgument, Err: err}
}

// usageArgs marks positional argument errors as usage errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}
