package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/odvcencio/grit/pkg/diff3"
	"github.com/odvcencio/grit/pkg/object"
)

const rebaseSessionFile = "session.json"

// RebaseOperation is one commit to replay and its position in the plan.
type RebaseOperation struct {
	Index  int
	Commit object.Hash
}

// RebaseOptions describes a rebase to start.
type RebaseOptions struct {
	// BranchRef is the full ref being rebased, or "" for a detached HEAD.
	BranchRef string
	Branch    object.Hash
	Upstream  object.Hash
	// Onto defaults to Upstream.
	Onto     object.Hash
	OntoName string
}

type rebaseSession struct {
	ID         string        `json:"id"`
	HeadName   string        `json:"head_name"`
	OrigHead   object.Hash   `json:"orig_head"`
	Onto       object.Hash   `json:"onto"`
	OntoName   string        `json:"onto_name"`
	Operations []object.Hash `json:"operations"`
	Current    int           `json:"current"`
	Pending    bool          `json:"pending,omitempty"`
	LastCommit object.Hash   `json:"last_commit,omitempty"`
}

// Rebase is an on-disk rebase session under .grit/rebase-merge/. A Rebase
// is owned by one caller; every state change is persisted before the call
// returns so another process can resume it with OpenRebase.
type Rebase struct {
	repo *Repo
	s    rebaseSession
}

// InitRebase plans and starts a rebase: the non-merge commits reachable
// from Branch and not from Upstream, oldest first, are recorded, Onto is
// checked out safely and HEAD is detached there. An existing session fails
// with ErrExists.
func (r *Repo) InitRebase(ctx context.Context, opts RebaseOptions) (*Rebase, error) {
	if isDir(r.gritPath(rebaseMergeDir)) {
		return nil, fmt.Errorf("init rebase: %w", ErrExists)
	}
	if opts.Branch == "" || opts.Upstream == "" {
		return nil, fmt.Errorf("init rebase: branch and upstream are required")
	}
	if opts.Onto == "" {
		opts.Onto = opts.Upstream
	}

	commits, err := r.RevList([]object.Hash{opts.Branch}, []object.Hash{opts.Upstream})
	if err != nil {
		return nil, fmt.Errorf("init rebase: %w", err)
	}
	var ops []object.Hash
	for _, h := range commits {
		c, err := r.Store.ReadCommit(h)
		if err != nil {
			return nil, fmt.Errorf("init rebase: %w", err)
		}
		if len(c.Parents) <= 1 {
			ops = append(ops, h)
		}
	}

	ontoTree, err := r.CommitTree(opts.Onto)
	if err != nil {
		return nil, fmt.Errorf("init rebase: %w", err)
	}

	rb := &Rebase{repo: r, s: rebaseSession{
		ID:         uuid.NewString(),
		HeadName:   opts.BranchRef,
		OrigHead:   opts.Branch,
		Onto:       opts.Onto,
		OntoName:   opts.OntoName,
		Operations: ops,
		Current:    -1,
	}}
	if err := rb.save(); err != nil {
		return nil, fmt.Errorf("init rebase: %w", err)
	}

	if err := r.CheckoutTree(ctx, ontoTree, CheckoutOptions{Strategy: CheckoutSafe}); err != nil {
		_ = os.RemoveAll(r.gritPath(rebaseMergeDir))
		return nil, fmt.Errorf("init rebase: %w", err)
	}
	if err := r.writeOrigHead(opts.Branch); err != nil {
		return nil, fmt.Errorf("init rebase: %w", err)
	}
	if err := r.SetHeadDetached(opts.Onto); err != nil {
		if errors.Is(err, ErrRefUpdatedButReflogAppendFailed) {
			return rb, err
		}
		return nil, fmt.Errorf("init rebase: %w", err)
	}
	return rb, nil
}

// OpenRebase loads the session in progress. It returns ErrNotFound when no
// rebase is in progress.
func (r *Repo) OpenRebase() (*Rebase, error) {
	data, err := os.ReadFile(r.gritPath(rebaseMergeDir, rebaseSessionFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("open rebase: %w", ErrNotFound)
		}
		return nil, fsError("open rebase", rebaseSessionFile, err)
	}
	rb := &Rebase{repo: r}
	if err := json.Unmarshal(data, &rb.s); err != nil {
		return nil, fmt.Errorf("open rebase: decode session: %w", err)
	}
	return rb, nil
}

func (rb *Rebase) save() error {
	data, err := json.MarshalIndent(rb.s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode rebase session: %w", err)
	}
	return writeFileAtomic(rb.repo.gritPath(rebaseMergeDir, rebaseSessionFile), data)
}

// ID returns the session identifier.
func (rb *Rebase) ID() string { return rb.s.ID }

// HeadName returns the ref being rebased, "" for a detached HEAD.
func (rb *Rebase) HeadName() string { return rb.s.HeadName }

// OrigHead returns the branch tip before the rebase started.
func (rb *Rebase) OrigHead() object.Hash { return rb.s.OrigHead }

// Onto returns the commit the operations are replayed on.
func (rb *Rebase) Onto() object.Hash { return rb.s.Onto }

// OntoName returns the user-facing name of Onto.
func (rb *Rebase) OntoName() string { return rb.s.OntoName }

// OperationCount returns the number of planned operations.
func (rb *Rebase) OperationCount() int { return len(rb.s.Operations) }

// CurrentOperation returns the index of the operation being applied, or -1
// before the first Next.
func (rb *Rebase) CurrentOperation() int { return rb.s.Current }

// Current returns the operation being applied, or nil.
func (rb *Rebase) Current() *RebaseOperation {
	if rb.s.Current < 0 || rb.s.Current >= len(rb.s.Operations) {
		return nil
	}
	return &RebaseOperation{Index: rb.s.Current, Commit: rb.s.Operations[rb.s.Current]}
}

// Pending reports whether the current operation still has to be applied,
// which is the case after Next failed part way.
func (rb *Rebase) Pending() bool { return rb.s.Pending }

// DropPending marks a pending current operation as handled without
// applying it, so the next Next moves past it.
func (rb *Rebase) DropPending() error {
	if !rb.s.Pending {
		return nil
	}
	rb.s.Pending = false
	if err := rb.save(); err != nil {
		return fmt.Errorf("rebase skip: %w", err)
	}
	return nil
}

// LastCommit returns the most recent commit created by the session.
func (rb *Rebase) LastCommit() object.Hash { return rb.s.LastCommit }

// Next advances to the following operation and applies it to the working
// tree and index as a three-way merge: base is the commit's parent, ours is
// HEAD and theirs is the commit. Conflicts are left staged for the caller.
// An operation whose application failed stays pending and is retried by
// the next call instead of advancing. It returns ErrIterOver when every
// operation has been applied.
func (rb *Rebase) Next(ctx context.Context) (*RebaseOperation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !rb.s.Pending {
		if rb.s.Current+1 >= len(rb.s.Operations) {
			rb.s.Current = len(rb.s.Operations)
			if err := rb.save(); err != nil {
				return nil, fmt.Errorf("rebase next: %w", err)
			}
			return nil, ErrIterOver
		}
		rb.s.Current++
		rb.s.Pending = true
		if err := rb.save(); err != nil {
			return nil, fmt.Errorf("rebase next: %w", err)
		}
	}
	op := rb.Current()

	r := rb.repo
	c, err := r.Store.ReadCommit(op.Commit)
	if err != nil {
		return nil, fmt.Errorf("rebase next: %w", err)
	}
	var parent object.Hash
	if len(c.Parents) > 0 {
		parent = c.Parents[0]
	}
	baseTree, err := r.CommitTree(parent)
	if err != nil {
		return nil, fmt.Errorf("rebase next: %w", err)
	}
	head, err := r.HeadHash()
	if err != nil {
		return nil, fmt.Errorf("rebase next: %w", err)
	}
	oursTree, err := r.CommitTree(head)
	if err != nil {
		return nil, fmt.Errorf("rebase next: %w", err)
	}

	labels := diff3.Labels{Ours: "HEAD", Theirs: op.Commit.Short() + " (" + c.Summary() + ")"}
	res, err := r.MergeTrees(baseTree, oursTree, c.TreeHash, labels)
	if err != nil {
		return nil, fmt.Errorf("rebase next: %w", err)
	}
	if err := r.applyMergeResult(oursTree, res); err != nil {
		return nil, fmt.Errorf("rebase next: %w", err)
	}
	rb.s.Pending = false
	if err := rb.save(); err != nil {
		return nil, fmt.Errorf("rebase next: %w", err)
	}
	return op, nil
}

// Commit records the current operation on top of HEAD, keeping the
// original author and message. It returns ErrUnmerged while conflicts
// remain and ErrApplied when the index tree equals HEAD's tree, meaning the
// change is already upstream.
func (rb *Rebase) Commit(committer object.Signature, signer CommitSigner) (object.Hash, error) {
	op := rb.Current()
	if op == nil {
		return "", fmt.Errorf("rebase commit: no operation in progress")
	}
	if rb.s.Pending {
		return "", fmt.Errorf("rebase commit: operation %d has not been applied", op.Index+1)
	}
	r := rb.repo
	tree, err := r.WriteTree()
	if err != nil {
		return "", fmt.Errorf("rebase commit: %w", err)
	}
	head, err := r.HeadHash()
	if err != nil {
		return "", fmt.Errorf("rebase commit: %w", err)
	}
	headTree, err := r.CommitTree(head)
	if err != nil {
		return "", fmt.Errorf("rebase commit: %w", err)
	}
	if tree == headTree {
		return "", ErrApplied
	}

	orig, err := r.Store.ReadCommit(op.Commit)
	if err != nil {
		return "", fmt.Errorf("rebase commit: %w", err)
	}
	h, err := r.CreateCommit(CommitRequest{
		Tree:      tree,
		Parents:   []object.Hash{head},
		Author:    orig.Author,
		Committer: committer,
		Message:   orig.Message,
		Signer:    signer,
		UpdateRef: "HEAD",
	})
	if err != nil && !errors.Is(err, ErrRefUpdatedButReflogAppendFailed) {
		return "", fmt.Errorf("rebase commit: %w", err)
	}
	refErr := err
	rb.s.LastCommit = h
	if err := rb.save(); err != nil {
		return h, fmt.Errorf("rebase commit: %w", err)
	}
	return h, refErr
}

// Finish points the rebased branch at the new tip, re-attaches HEAD to it
// and removes the session. A detached rebase leaves HEAD where it is.
func (rb *Rebase) Finish() error {
	r := rb.repo
	tip, err := r.HeadHash()
	if err != nil {
		return fmt.Errorf("rebase finish: %w", err)
	}
	var refErr error
	if rb.s.HeadName != "" {
		reason := fmt.Sprintf("rebase (finish): %s onto %s", rb.s.HeadName, rb.s.Onto)
		refErr = r.UpdateRefCAS(rb.s.HeadName, tip, reason, rb.s.OrigHead)
		if refErr != nil && !errors.Is(refErr, ErrRefUpdatedButReflogAppendFailed) {
			return fmt.Errorf("rebase finish: %w", refErr)
		}
		if err := r.SetHead(rb.s.HeadName); err != nil {
			if !errors.Is(err, ErrRefUpdatedButReflogAppendFailed) {
				return fmt.Errorf("rebase finish: %w", err)
			}
			refErr = err
		}
	}
	if err := rb.remove(); err != nil {
		return err
	}
	return refErr
}

// Abort restores the original branch tip and HEAD, forcing the working
// tree back, and removes the session. Every step is attempted; failures
// are aggregated. A failed HEAD reflog append alone is returned unwrapped
// once everything else succeeded.
func (rb *Rebase) Abort(ctx context.Context) error {
	r := rb.repo
	var result *multierror.Error

	var headErr error
	if rb.s.HeadName != "" {
		headErr = r.SetHead(rb.s.HeadName)
	} else {
		headErr = r.SetHeadDetached(rb.s.OrigHead)
	}
	var refErr error
	if errors.Is(headErr, ErrRefUpdatedButReflogAppendFailed) {
		refErr = headErr
	} else if headErr != nil {
		result = multierror.Append(result, headErr)
	}
	tree, err := r.CommitTree(rb.s.OrigHead)
	if err != nil {
		result = multierror.Append(result, err)
	} else if err := r.CheckoutTree(ctx, tree, CheckoutOptions{Strategy: CheckoutForce}); err != nil {
		result = multierror.Append(result, err)
	}
	if err := rb.remove(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("rebase abort: %w", err)
	}
	return refErr
}

// Quit drops the session bookkeeping and leaves HEAD, index and working
// tree as they are.
func (rb *Rebase) Quit() error {
	return rb.remove()
}

func (rb *Rebase) remove() error {
	if err := os.RemoveAll(rb.repo.gritPath(rebaseMergeDir)); err != nil {
		return fsError("remove rebase session", rebaseMergeDir, err)
	}
	return nil
}
