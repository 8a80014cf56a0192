package porcelain

import (
	"context"
	"errors"
	"fmt"

	"github.com/odvcencio/grit/pkg/logging"
	"github.com/odvcencio/grit/pkg/object"
	"github.com/odvcencio/grit/pkg/repo"
)

// StepResult says what happened to one replayed commit.
type StepResult int

const (
	StepApplied StepResult = iota
	StepAlreadyApplied
	StepSkipped
)

func (r StepResult) String() string {
	switch r {
	case StepAlreadyApplied:
		return "already applied"
	case StepSkipped:
		return "skipped"
	}
	return "applied"
}

// RebaseStep is one finished operation of the plan.
type RebaseStep struct {
	Index   int // zero-based
	Total   int
	Commit  object.Hash
	Summary string
	Result  StepResult
	// NewCommit is set for StepApplied.
	NewCommit object.Hash
}

// RebaseConflict describes where a rebase stopped.
type RebaseConflict struct {
	Commit    object.Hash
	Summary   string
	Index     int // zero-based
	Total     int
	Remaining int
	Paths     []string
}

// RebaseOutcome reports a run of the rebase loop.
type RebaseOutcome struct {
	// UpToDate is set when there was nothing to replay.
	UpToDate bool
	Total    int
	Steps    []RebaseStep
	Conflict *RebaseConflict
	Finished bool
	// HeadName is the rebased branch, "" for a detached HEAD.
	HeadName string
	Head     object.Hash
}

// Created counts the commits written by this run.
func (o *RebaseOutcome) Created() int {
	n := 0
	for _, s := range o.Steps {
		if s.Result == StepApplied {
			n++
		}
	}
	return n
}

// RebaseEngine replays commits onto a new base one at a time.
type RebaseEngine struct {
	s *Session
}

// Start replays the commits of branch that upstream lacks onto onto. An
// empty branch means HEAD and an empty onto means upstream. It returns
// when the plan is done or a step stops on conflicts.
func (e *RebaseEngine) Start(ctx context.Context, upstream, branch, onto string) (*RebaseOutcome, error) {
	const op = "rebase"
	if _, err := e.s.Guard.Require(OpRebase); err != nil {
		return nil, err
	}
	r := e.s.repo
	res := e.s.Resolver

	up, err := res.MustResolve(op, upstream)
	if err != nil {
		return nil, err
	}
	opts := repo.RebaseOptions{Upstream: up.ID, Onto: up.ID, OntoName: up.ShortName()}
	if onto != "" {
		o, err := res.MustResolve(op, onto)
		if err != nil {
			return nil, err
		}
		opts.Onto, opts.OntoName = o.ID, o.ShortName()
	}
	if branch == "" {
		head, err := r.Head()
		if err != nil {
			return nil, Wrap(op, err)
		}
		if head.Unborn {
			return nil, invalidArgument(op, "cannot rebase an unborn branch")
		}
		opts.Branch = head.Hash
		if head.Symbolic {
			opts.BranchRef = head.Target
		}
	} else {
		b, err := res.MustResolve(op, branch)
		if err != nil {
			return nil, err
		}
		opts.Branch = b.ID
		if b.IsBranch() {
			opts.BranchRef = b.Ref
		}
	}

	log := e.s.logger(ctx, op).WithFields(logging.Fields{
		logging.TargetFieldKey: opts.OntoName,
		"branch":               opts.BranchRef,
	})

	if err := e.s.Guard.RequireClean(OpRebase, true); err != nil {
		return nil, err
	}
	if opts.Onto == opts.Upstream {
		contained, err := r.IsAncestor(opts.Upstream, opts.Branch)
		if err != nil {
			return nil, Wrap(op, err)
		}
		if contained {
			log.Debug("branch already contains upstream")
			return &RebaseOutcome{UpToDate: true, HeadName: opts.BranchRef, Head: opts.Branch}, nil
		}
	}

	rb, err := r.InitRebase(ctx, opts)
	if err := e.s.refUpdated(op, err); err != nil {
		return nil, err
	}
	log.WithFields(logging.Fields{logging.SessionFieldKey: rb.ID(), "operations": rb.OperationCount()}).Debug("rebase started")
	out := &RebaseOutcome{Total: rb.OperationCount(), HeadName: rb.HeadName()}
	return e.loop(ctx, rb, out)
}

// Continue commits the resolved current step and resumes the loop.
func (e *RebaseEngine) Continue(ctx context.Context) (*RebaseOutcome, error) {
	const op = "rebase --continue"
	rb, out, err := e.resume(OpRebaseContinue)
	if err != nil {
		return nil, err
	}
	stg, err := e.s.repo.ReadStaging()
	if err != nil {
		return nil, Wrap(op, err)
	}
	if paths := stg.Conflicts(); len(paths) > 0 {
		return nil, conflict(op, paths, "you must edit all merge conflicts and then mark them as resolved using grit add")
	}
	if rb.Current() != nil && !rb.Pending() {
		if err := e.commitStep(ctx, rb, out); err != nil {
			return out, err
		}
	}
	return e.loop(ctx, rb, out)
}

// Skip drops the current step's changes and resumes the loop without
// committing it.
func (e *RebaseEngine) Skip(ctx context.Context) (*RebaseOutcome, error) {
	const op = "rebase --skip"
	rb, out, err := e.resume(OpRebaseSkip)
	if err != nil {
		return nil, err
	}
	r := e.s.repo
	head, err := r.HeadHash()
	if err != nil {
		return nil, Wrap(op, err)
	}
	if err := e.s.refUpdated(op, r.Reset(ctx, head, repo.ResetHard)); err != nil {
		return nil, err
	}
	if cur := rb.Current(); cur != nil {
		if err := rb.DropPending(); err != nil {
			return nil, Wrap(op, err)
		}
		step, err := e.step(rb, cur, StepSkipped)
		if err != nil {
			return nil, Wrap(op, err)
		}
		out.Steps = append(out.Steps, step)
		e.s.logger(ctx, op).WithFields(logging.Fields{logging.SessionFieldKey: rb.ID(), logging.StepFieldKey: cur.Index + 1}).
			Warn("rebase step skipped")
	}
	return e.loop(ctx, rb, out)
}

// Abort restores the branch and working tree as they were before the
// rebase started.
func (e *RebaseEngine) Abort(ctx context.Context) error {
	const op = "rebase --abort"
	rb, _, err := e.resume(OpRebaseAbort)
	if err != nil {
		return err
	}
	if err := e.s.refUpdated(op, rb.Abort(ctx)); err != nil {
		return err
	}
	e.s.logger(ctx, op).WithFields(logging.Fields{logging.SessionFieldKey: rb.ID(), logging.TargetFieldKey: rb.OrigHead().Short()}).
		Debug("rebase aborted")
	return nil
}

// Quit drops the rebase bookkeeping and leaves HEAD, index and working
// tree alone.
func (e *RebaseEngine) Quit(ctx context.Context) error {
	const op = "rebase --quit"
	rb, _, err := e.resume(OpRebaseQuit)
	if err != nil {
		return err
	}
	if err := rb.Quit(); err != nil {
		return Wrap(op, err)
	}
	e.s.logger(ctx, op).WithField(logging.SessionFieldKey, rb.ID()).Debug("rebase state dropped")
	return nil
}

func (e *RebaseEngine) resume(op Op) (*repo.Rebase, *RebaseOutcome, error) {
	if _, err := e.s.Guard.Require(op); err != nil {
		return nil, nil, err
	}
	rb, err := e.s.repo.OpenRebase()
	if err != nil {
		return nil, nil, Wrap(op.String(), err)
	}
	return rb, &RebaseOutcome{Total: rb.OperationCount(), HeadName: rb.HeadName()}, nil
}

// loop applies operations until the plan is exhausted or a step leaves
// conflicts. The context is checked between steps.
func (e *RebaseEngine) loop(ctx context.Context, rb *repo.Rebase, out *RebaseOutcome) (*RebaseOutcome, error) {
	const op = "rebase"
	r := e.s.repo
	log := e.s.logger(ctx, op).WithField(logging.SessionFieldKey, rb.ID())
	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		cur, err := rb.Next(ctx)
		if errors.Is(err, repo.ErrIterOver) {
			break
		}
		if err != nil {
			return out, Wrap(op, err)
		}
		e.s.h.publish(Progress{Op: op, Done: cur.Index, Total: rb.OperationCount(), Path: string(cur.Commit)})
		log.WithFields(logging.Fields{logging.StepFieldKey: cur.Index + 1, "commit": cur.Commit.Short()}).
			Debug("operation applied to index")

		stg, err := r.ReadStaging()
		if err != nil {
			return out, Wrap(op, err)
		}
		if paths := stg.Conflicts(); len(paths) > 0 {
			step, err := e.step(rb, cur, StepApplied)
			if err != nil {
				return out, Wrap(op, err)
			}
			out.Conflict = &RebaseConflict{
				Commit:    cur.Commit,
				Summary:   step.Summary,
				Index:     cur.Index,
				Total:     rb.OperationCount(),
				Remaining: rb.OperationCount() - cur.Index - 1,
				Paths:     paths,
			}
			log.WithFields(logging.Fields{logging.StepFieldKey: cur.Index + 1, logging.StateFieldKey: r.State()}).
				Debug("rebase stopped on conflicts")
			return out, nil
		}
		if err := e.commitStep(ctx, rb, out); err != nil {
			return out, err
		}
	}

	if err := e.s.refUpdated(op, rb.Finish()); err != nil {
		return out, err
	}
	head, err := r.HeadHash()
	if err != nil {
		return out, Wrap(op, err)
	}
	out.Finished = true
	out.Head = head
	e.s.h.publish(Progress{Op: op, Done: rb.OperationCount(), Total: rb.OperationCount(), Message: "finished"})
	log.WithField(logging.TargetFieldKey, head.Short()).Debug("rebase finished")
	return out, nil
}

// commitStep commits the current operation. A step whose changes are
// already in HEAD is recorded as already applied, which is not an error.
func (e *RebaseEngine) commitStep(ctx context.Context, rb *repo.Rebase, out *RebaseOutcome) error {
	const op = "rebase"
	cur := rb.Current()
	if cur == nil {
		return newError(KindGeneric, op, "no rebase operation in progress")
	}
	_, committer, err := e.s.signatures(op)
	if err != nil {
		return err
	}
	h, err := rb.Commit(committer, nil)
	result := StepApplied
	switch {
	case errors.Is(err, repo.ErrApplied):
		result = StepAlreadyApplied
		e.s.logger(ctx, op).WithFields(logging.Fields{
			logging.SessionFieldKey: rb.ID(),
			logging.StepFieldKey:    cur.Index + 1,
			"commit":                cur.Commit.Short(),
		}).Warn("commit already applied upstream")
	case err != nil:
		if err := e.s.refUpdated(op, err); err != nil {
			return err
		}
	}
	step, err := e.step(rb, cur, result)
	if err != nil {
		return Wrap(op, err)
	}
	step.NewCommit = h
	out.Steps = append(out.Steps, step)
	return nil
}

func (e *RebaseEngine) step(rb *repo.Rebase, cur *repo.RebaseOperation, result StepResult) (RebaseStep, error) {
	c, err := e.s.repo.Store.ReadCommit(cur.Commit)
	if err != nil {
		return RebaseStep{}, fmt.Errorf("read commit %s: %w", cur.Commit, err)
	}
	return RebaseStep{
		Index:   cur.Index,
		Total:   rb.OperationCount(),
		Commit:  cur.Commit,
		Summary: c.Summary(),
		Result:  result,
	}, nil
}
