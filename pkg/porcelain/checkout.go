package porcelain

import (
	"context"
	"strings"

	"github.com/odvcencio/grit/pkg/logging"
	"github.com/odvcencio/grit/pkg/object"
	"github.com/odvcencio/grit/pkg/repo"
)

// CheckoutOptions configures CheckoutEngine.Checkout.
type CheckoutOptions struct {
	// Force overwrites local changes and removes tracked files absent
	// from the target.
	Force bool
	// CreateBranch names a branch to create at StartPoint (-b).
	CreateBranch string
	// ResetBranch lets CreateBranch move an existing branch (-B).
	ResetBranch bool
	// StartPoint defaults to the checkout target, then HEAD.
	StartPoint string
}

// CheckoutOutcome reports where HEAD ended up.
type CheckoutOutcome struct {
	Branch    string
	Created   bool
	Reset     bool
	AlreadyOn bool
	// Upstream is the remote-tracking branch a new local branch tracks.
	Upstream string
	Detached bool
	Commit   object.Hash
	Summary  string
}

// CheckoutEngine switches HEAD, index and working tree.
type CheckoutEngine struct {
	s *Session
}

// Checkout switches to target. Branches attach HEAD; a remote-tracking
// branch with no local counterpart creates and tracks one; anything else
// detaches HEAD. Safe mode refuses before writing when local changes
// would be lost.
func (c *CheckoutEngine) Checkout(ctx context.Context, target string, opts CheckoutOptions) (*CheckoutOutcome, error) {
	const op = "checkout"
	if _, err := c.s.Guard.Require(OpCheckout); err != nil {
		return nil, err
	}
	if opts.CreateBranch != "" {
		return c.createAndSwitch(ctx, target, opts)
	}
	if strings.TrimSpace(target) == "" {
		return nil, invalidArgument(op, "no branch or commit given")
	}

	r := c.s.repo
	ac, err := c.s.Resolver.Resolve(target)
	if err != nil {
		return nil, err
	}
	if ac == nil {
		return nil, notFound(op, "pathspec '%s' did not match any branch or commit", target)
	}
	log := c.s.logger(ctx, op).WithField(logging.TargetFieldKey, target)

	out := &CheckoutOutcome{Commit: ac.ID}
	var attach string
	switch {
	case ac.IsBranch():
		attach = ac.Ref
	case strings.HasPrefix(ac.Ref, "refs/remotes/"):
		remote, name, ok := strings.Cut(strings.TrimPrefix(ac.Ref, "refs/remotes/"), "/")
		if ok && name != "" && !r.RefExists("refs/heads/"+name) {
			attach = "refs/heads/" + name
			out.Created = true
			out.Upstream = remote + "/" + name
			if err := c.switchTree(ctx, ac.ID, opts.Force); err != nil {
				return nil, err
			}
			if err := r.CreateBranch(name, ac.ID, false); err != nil {
				return nil, Wrap(op, err)
			}
			if err := r.SetBranchUpstream(name, remote, "refs/heads/"+name); err != nil {
				return nil, Wrap(op, err)
			}
			return c.finish(ctx, out, attach)
		}
	}

	head, err := r.Head()
	if err != nil {
		return nil, Wrap(op, err)
	}
	if attach != "" && head.Symbolic && head.Target == attach {
		out.AlreadyOn = true
	}
	if err := c.switchTree(ctx, ac.ID, opts.Force); err != nil {
		return nil, err
	}
	log.WithField("attach", attach).Debug("tree switched")
	return c.finish(ctx, out, attach)
}

func (c *CheckoutEngine) createAndSwitch(ctx context.Context, target string, opts CheckoutOptions) (*CheckoutOutcome, error) {
	const op = "checkout"
	r := c.s.repo
	name := strings.TrimSpace(opts.CreateBranch)
	if err := repo.ValidateRefName(name); err != nil {
		return nil, invalidArgument(op, "'%s' is not a valid branch name", name)
	}
	ref := "refs/heads/" + name
	exists := r.RefExists(ref)
	if exists && !opts.ResetBranch {
		return nil, invalidArgument(op, "a branch named '%s' already exists", name)
	}

	start := opts.StartPoint
	if start == "" {
		start = target
	}
	if start == "" {
		head, err := r.Head()
		if err != nil {
			return nil, Wrap(op, err)
		}
		if head.Unborn {
			// Nothing to check out: HEAD just moves to the new name.
			if err := c.s.refUpdated(op, r.SetHead(ref)); err != nil {
				return nil, err
			}
			return &CheckoutOutcome{Branch: name, Created: true}, nil
		}
		start = "HEAD"
	}
	ac, err := c.s.Resolver.MustResolve(op, start)
	if err != nil {
		return nil, err
	}

	if err := c.switchTree(ctx, ac.ID, opts.Force); err != nil {
		return nil, err
	}
	if err := r.CreateBranch(name, ac.ID, opts.ResetBranch); err != nil {
		return nil, Wrap(op, err)
	}
	out := &CheckoutOutcome{Commit: ac.ID, Created: !exists, Reset: exists}
	return c.finish(ctx, out, ref)
}

func (c *CheckoutEngine) switchTree(ctx context.Context, commit object.Hash, force bool) error {
	const op = "checkout"
	r := c.s.repo
	tree, err := r.CommitTree(commit)
	if err != nil {
		return Wrap(op, err)
	}
	strategy := repo.CheckoutSafe
	if force {
		strategy = repo.CheckoutForce
	}
	err = r.CheckoutTree(ctx, tree, repo.CheckoutOptions{
		Strategy:       strategy,
		AllowConflicts: force,
		Progress:       c.s.progressFunc(op),
	})
	return Wrap(op, err)
}

// finish points HEAD at attach, or detaches it at out.Commit when attach
// is empty.
func (c *CheckoutEngine) finish(ctx context.Context, out *CheckoutOutcome, attach string) (*CheckoutOutcome, error) {
	const op = "checkout"
	r := c.s.repo
	if attach != "" {
		if err := c.s.refUpdated(op, r.SetHead(attach)); err != nil {
			return nil, err
		}
		out.Branch = repo.ShortRefName(attach)
	} else {
		if err := c.s.refUpdated(op, r.SetHeadDetached(out.Commit)); err != nil {
			return nil, err
		}
		out.Detached = true
	}
	if out.Commit != "" {
		commit, err := r.Store.ReadCommit(out.Commit)
		if err != nil {
			return nil, Wrap(op, err)
		}
		out.Summary = commit.Summary()
	}
	c.s.logger(ctx, op).WithFields(logging.Fields{
		logging.TargetFieldKey: out.Commit.Short(),
		"branch":               out.Branch,
		"detached":             out.Detached,
	}).Debug("HEAD updated")
	return out, nil
}
