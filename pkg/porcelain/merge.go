package porcelain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/grit/pkg/logging"
	"github.com/odvcencio/grit/pkg/object"
	"github.com/odvcencio/grit/pkg/repo"
)

// MergeOptions configures MergeEngine.Merge. NoFF and FFOnly override the
// merge.ff setting.
type MergeOptions struct {
	NoCommit bool
	NoFF     bool
	FFOnly   bool
}

// MergeOutcome reports what a merge did. Conflicts is a normal outcome:
// the error is nil and the merge state stays in place.
type MergeOutcome struct {
	Analysis    repo.MergeAnalysis
	UpToDate    bool
	FastForward bool
	// Commit is the merge commit, or the new HEAD after a fast-forward.
	Commit    object.Hash
	Message   string
	Files     []repo.FileMergeReport
	Conflicts []string
}

// Committed reports whether a merge commit was created.
func (o *MergeOutcome) Committed() bool {
	return o.Commit != "" && !o.FastForward
}

// MergeEngine merges commits into HEAD.
type MergeEngine struct {
	s *Session
}

// Merge analyzes targets against HEAD and runs the matching strategy:
// nothing when up to date, a fast-forward when HEAD is unborn or an
// ancestor of the single target, a tree merge otherwise.
func (m *MergeEngine) Merge(ctx context.Context, targets []*AnnotatedCommit, opts MergeOptions) (*MergeOutcome, error) {
	const op = "merge"
	if opts.NoFF && opts.FFOnly {
		return nil, invalidArgument(op, "--no-ff and --ff-only are mutually exclusive")
	}
	if len(targets) == 0 {
		return nil, invalidArgument(op, "no commit to merge")
	}
	if _, err := m.s.Guard.Require(OpMerge); err != nil {
		return nil, err
	}
	r := m.s.repo
	log := m.s.logger(ctx, op).WithField(logging.TargetFieldKey, describeTargets(targets))

	heads := make([]object.Hash, len(targets))
	for i, t := range targets {
		heads[i] = t.ID
	}
	analysis, _, err := r.MergeAnalysis(heads)
	if err != nil {
		return nil, Wrap(op, err)
	}
	if !opts.NoFF && !opts.FFOnly {
		switch m.s.Settings().MergePreference() {
		case repo.PreferenceNoFastForward:
			opts.NoFF = true
		case repo.PreferenceFastForwardOnly:
			opts.FFOnly = true
		}
	}
	log = log.WithField("analysis", analysis.String())
	out := &MergeOutcome{Analysis: analysis}

	switch {
	case analysis.Has(repo.AnalysisUpToDate):
		log.Debug("already up to date")
		out.UpToDate = true
		return out, nil
	case analysis.Has(repo.AnalysisUnborn):
		if len(targets) != 1 {
			return nil, invalidArgument(op, "can merge only exactly one commit into an empty head")
		}
		return m.fastForward(ctx, targets, out)
	case analysis.Has(repo.AnalysisFastForward) && !opts.NoFF:
		return m.fastForward(ctx, targets, out)
	case opts.FFOnly:
		return nil, invalidArgument(op, "Not possible to fast-forward, aborting.")
	}

	if err := m.s.Guard.RequireClean(OpMerge, false); err != nil {
		return nil, err
	}
	out.Message = mergeMessage(targets)
	labels := make([]string, len(targets))
	for i, t := range targets {
		labels[i] = t.ShortName()
	}
	log.Debug("running tree merge")
	res, err := r.Merge(heads, repo.MergeOptions{Labels: labels, Message: out.Message, NoFF: opts.NoFF})
	if err != nil {
		return nil, Wrap(op, err)
	}
	out.Files = res.Files
	if len(res.Conflicts) > 0 {
		out.Conflicts = res.Conflicts
		log.WithField(logging.StateFieldKey, repo.StateMerge).
			Debugf("merge stopped with %d conflicted path(s)", len(res.Conflicts))
		return out, nil
	}
	if opts.NoCommit {
		log.Debug("merge staged without commit")
		return out, nil
	}

	h, err := m.commit(op, out.Message)
	if err != nil {
		return nil, err
	}
	out.Commit = h
	log.WithField("commit", h.Short()).Debug("merge commit created")
	return out, nil
}

// fastForward checks out the single target and moves the branch, or HEAD
// when detached or unborn, onto it.
func (m *MergeEngine) fastForward(ctx context.Context, targets []*AnnotatedCommit, out *MergeOutcome) (*MergeOutcome, error) {
	const op = "merge"
	if len(targets) != 1 {
		panic(fmt.Sprintf("merge: fast-forward needs exactly one target, got %d", len(targets)))
	}
	t := targets[0]
	r := m.s.repo

	tree, err := r.CommitTree(t.ID)
	if err != nil {
		return nil, Wrap(op, err)
	}
	err = r.CheckoutTree(ctx, tree, repo.CheckoutOptions{
		Strategy: repo.CheckoutSafe,
		Progress: m.s.progressFunc(op),
	})
	if err != nil {
		return nil, Wrap(op, err)
	}
	reason := "merge " + t.ShortName() + ": Fast-forward"
	if err := m.s.refUpdated(op, r.UpdateHead(t.ID, reason)); err != nil {
		return nil, err
	}
	m.s.logger(ctx, op).WithField(logging.TargetFieldKey, t.ShortName()).Debug("fast-forwarded")
	out.FastForward = true
	out.Commit = t.ID
	return out, nil
}

func (m *MergeEngine) commit(op, message string) (object.Hash, error) {
	author, committer, err := m.s.signatures(op)
	if err != nil {
		return "", err
	}
	h, err := m.s.repo.CommitIndex(message, author, committer, nil)
	if err := m.s.refUpdated(op, err); err != nil {
		return "", err
	}
	return h, nil
}

// Continue concludes a merge whose conflicts have been resolved and staged.
func (m *MergeEngine) Continue(ctx context.Context) (*MergeOutcome, error) {
	const op = "merge --continue"
	if _, err := m.s.Guard.Require(OpMergeContinue); err != nil {
		return nil, err
	}
	r := m.s.repo
	stg, err := r.ReadStaging()
	if err != nil {
		return nil, Wrap(op, err)
	}
	if paths := stg.Conflicts(); len(paths) > 0 {
		return nil, conflict(op, paths, "you have not concluded your merge: %d unmerged path(s)", len(paths))
	}

	heads, err := r.MergeHeads()
	if err != nil {
		return nil, Wrap(op, err)
	}
	targets := make([]*AnnotatedCommit, len(heads))
	for i, h := range heads {
		targets[i] = &AnnotatedCommit{ID: h}
		names, err := r.RefsPointingAt(h, "refs/heads/")
		if err != nil {
			return nil, Wrap(op, err)
		}
		if len(names) > 0 {
			targets[i].Ref = names[0]
		}
	}

	out := &MergeOutcome{Analysis: repo.AnalysisNormal, Message: mergeMessage(targets)}
	h, err := m.commit(op, out.Message)
	if err != nil {
		return nil, err
	}
	out.Commit = h
	m.s.logger(ctx, op).WithField("commit", h.Short()).Debug("merge concluded")
	return out, nil
}

// Abort asks confirm, then resets the index and working tree hard to HEAD
// and clears the merge state. It reports whether the merge was aborted; a
// nil confirm aborts unconditionally.
func (m *MergeEngine) Abort(ctx context.Context, confirm func() (bool, error)) (bool, error) {
	const op = "merge --abort"
	if _, err := m.s.Guard.Require(OpMergeAbort); err != nil {
		return false, err
	}
	if confirm != nil {
		ok, err := confirm()
		if err != nil {
			return false, invalidArgument(op, "confirmation failed: %v", err)
		}
		if !ok {
			return false, nil
		}
	}
	r := m.s.repo
	head, err := r.HeadHash()
	if err != nil {
		return false, Wrap(op, err)
	}
	if err := m.s.refUpdated(op, r.Reset(ctx, head, repo.ResetHard)); err != nil {
		return false, err
	}
	if err := r.StateCleanup(); err != nil {
		return false, Wrap(op, err)
	}
	m.s.logger(ctx, op).WithField(logging.TargetFieldKey, head.Short()).Debug("merge aborted")
	return true, nil
}

// Quit forgets the merge in progress and leaves index and working tree as
// they are.
func (m *MergeEngine) Quit(ctx context.Context) error {
	const op = "merge --quit"
	if _, err := m.s.Guard.Require(OpMergeQuit); err != nil {
		return err
	}
	if err := m.s.repo.StateCleanup(); err != nil {
		return Wrap(op, err)
	}
	m.s.logger(ctx, op).Debug("merge state dropped")
	return nil
}

// mergeMessage names each target as "branch '<short>'" when it came from
// a ref and "commit '<oid>'" otherwise.
func mergeMessage(targets []*AnnotatedCommit) string {
	parts := make([]string, len(targets))
	for i, t := range targets {
		if t.Ref != "" {
			parts[i] = "branch '" + repo.ShortRefName(t.Ref) + "'"
		} else {
			parts[i] = "commit '" + string(t.ID) + "'"
		}
	}
	return "Merge " + strings.Join(parts, ", ")
}

func describeTargets(targets []*AnnotatedCommit) string {
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.ShortName()
	}
	return strings.Join(names, ",")
}

// RefUpdated treats a ref update whose reflog append failed as success and
// defers the failure to Close. Any other error is wrapped for op.
func (s *Session) RefUpdated(op string, err error) error { return s.refUpdated(op, err) }

func (s *Session) refUpdated(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrRefUpdatedButReflogAppendFailed) {
		s.keep(op, err)
		return nil
	}
	return Wrap(op, err)
}
