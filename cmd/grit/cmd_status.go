package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/odvcencio/grit/pkg/porcelain"
	"github.com/odvcencio/grit/pkg/repo"
)

type statusOptions struct {
	short   bool
	long    bool
	branch  bool
	ignored bool
	noColor bool
}

func newStatusCmd(a *app) *cobra.Command {
	var opts statusOptions

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the working tree status",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.session(cmd, func(s *porcelain.Session) error {
				st, err := s.Status.Classify(cmd.Context(), porcelain.StatusOptions{Ignored: opts.ignored})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				p := newStatusPalette(opts.noColor || !isTerminal(out))
				if opts.short && !opts.long {
					printShortStatus(out, st, opts.branch, p)
					return nil
				}
				printLongStatus(out, st, p)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&opts.short, "short", "s", false, "give the output in the short format")
	cmd.Flags().BoolVar(&opts.long, "long", false, "give the output in the long format (default)")
	cmd.Flags().BoolVarP(&opts.branch, "branch", "b", false, "show the branch in the short format")
	cmd.Flags().BoolVar(&opts.ignored, "ignored", false, "show ignored files")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	return cmd
}

type statusPalette struct {
	staged   *color.Color
	changed  *color.Color
	branch   *color.Color
	detached *color.Color
}

func newStatusPalette(plain bool) statusPalette {
	p := statusPalette{
		staged:   color.New(color.FgGreen),
		changed:  color.New(color.FgRed),
		branch:   color.New(color.FgGreen),
		detached: color.New(color.FgRed),
	}
	if plain {
		for _, c := range []*color.Color{p.staged, p.changed, p.branch, p.detached} {
			c.DisableColor()
		}
	}
	return p
}

func printShortStatus(out io.Writer, st *porcelain.Status, withBranch bool, p statusPalette) {
	if withBranch {
		switch {
		case st.Unborn:
			fmt.Fprintf(out, "## No commits yet on %s\n", p.branch.Sprint(st.Branch))
		case st.Detached:
			fmt.Fprintf(out, "## %s\n", p.detached.Sprint("HEAD (no branch)"))
		default:
			fmt.Fprintf(out, "## %s\n", p.branch.Sprint(st.Branch))
		}
	}
	for _, e := range st.Entries {
		code := e.ShortCode()
		switch e.Bucket {
		case porcelain.BucketToBeCommitted:
			code = p.staged.Sprint(code[:1]) + p.changed.Sprint(code[1:])
		default:
			code = p.changed.Sprint(code)
		}
		path := e.Path()
		if e.Kind == porcelain.ChangeRenamed {
			path = e.OldPath + " -> " + e.NewPath
		}
		fmt.Fprintf(out, "%s %s\n", code, path)
	}
}

func printLongStatus(out io.Writer, st *porcelain.Status, p statusPalette) {
	switch {
	case st.Detached:
		fmt.Fprintf(out, "HEAD detached at %s\n", p.detached.Sprint(st.Head.Short()))
	default:
		fmt.Fprintf(out, "On branch %s\n", st.Branch)
	}
	switch st.State {
	case repo.StateNone:
	case repo.StateMerge:
		if len(st.In(porcelain.BucketUnmerged)) > 0 {
			fmt.Fprintln(out, "You have unmerged paths.")
			fmt.Fprintln(out, `  (fix conflicts and run "grit commit")`)
			fmt.Fprintln(out, `  (use "grit merge --abort" to abort the merge)`)
		} else {
			fmt.Fprintln(out, "All conflicts fixed but you are still merging.")
			fmt.Fprintln(out, `  (use "grit commit" to conclude merge)`)
		}
	default:
		fmt.Fprintf(out, "%s in progress.\n", st.State)
		if st.State.IsRebase() {
			fmt.Fprintln(out, `  (use "grit rebase --continue" once conflicts are resolved)`)
			fmt.Fprintln(out, `  (use "grit rebase --abort" to check out the original branch)`)
		}
	}
	if st.Unborn {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "No commits yet")
	}

	staged := st.In(porcelain.BucketToBeCommitted)
	section(out, porcelain.BucketToBeCommitted, len(staged), func() {
		for _, e := range staged {
			printLongEntry(out, e.Kind.String(), e.OldPath, e.NewPath, e.Kind == porcelain.ChangeRenamed, p.staged)
		}
	})

	unmerged := st.In(porcelain.BucketUnmerged)
	section(out, porcelain.BucketUnmerged, len(unmerged), func() {
		for _, e := range unmerged {
			printLongEntry(out, e.Label(), "", e.Path(), false, p.changed)
		}
	})

	unstaged := worktreeEntries(st)
	section(out, porcelain.BucketNotStaged, len(unstaged), func() {
		for _, e := range unstaged {
			printLongEntry(out, e.Kind.String(), e.OldPath, e.NewPath, e.Kind == porcelain.ChangeRenamed, p.changed)
		}
	})

	for _, b := range []porcelain.Bucket{porcelain.BucketUntracked, porcelain.BucketIgnored} {
		entries := st.In(b)
		section(out, b, len(entries), func() {
			for _, e := range entries {
				fmt.Fprintf(out, "\t%s\n", p.changed.Sprint(e.Path()))
			}
		})
	}

	fmt.Fprintln(out)
	switch {
	case !st.Clean() && len(staged) == 0 && len(unmerged) == 0:
		fmt.Fprintln(out, `no changes added to commit (use "grit add")`)
	case !st.Clean():
	case len(st.In(porcelain.BucketUntracked)) > 0:
		fmt.Fprintln(out, `nothing added to commit but untracked files present (use "grit add" to track)`)
	case st.Unborn:
		fmt.Fprintln(out, `nothing to commit (create/copy files and use "grit add" to track)`)
	default:
		fmt.Fprintln(out, "nothing to commit, working tree clean")
	}
}

func section(out io.Writer, b porcelain.Bucket, n int, body func()) {
	if n == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, b.String())
	body()
}

func printLongEntry(out io.Writer, label, oldPath, newPath string, renamed bool, c *color.Color) {
	path := newPath
	if path == "" {
		path = oldPath
	}
	if renamed {
		path = oldPath + " -> " + newPath
	}
	fmt.Fprintf(out, "\t%s\n", c.Sprintf("%-12s%s", label+":", path))
}

// worktreeEntries lists what the "not staged" section shows: the
// not-staged bucket plus the worktree half of paths that are also staged.
func worktreeEntries(st *porcelain.Status) []porcelain.StatusEntry {
	entries := st.In(porcelain.BucketNotStaged)
	for _, e := range st.In(porcelain.BucketToBeCommitted) {
		if e.Worktree == porcelain.ChangeNone {
			continue
		}
		w := porcelain.StatusEntry{Bucket: porcelain.BucketNotStaged, Kind: e.Worktree, OldPath: e.Path(), NewPath: e.Path()}
		if e.WorktreeNewPath != "" {
			w.NewPath = e.WorktreeNewPath
		}
		entries = append(entries, w)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Path() < entries[j].Path() })
	return entries
}
