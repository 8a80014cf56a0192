package porcelain

import (
	"context"
	"errors"

	"github.com/odvcencio/grit/pkg/logging"
	"github.com/odvcencio/grit/pkg/object"
	"github.com/odvcencio/grit/pkg/repo"
)

// ResetOutcome reports the commit HEAD was reset to.
type ResetOutcome struct {
	Commit  object.Hash
	Summary string
	Mode    repo.ResetMode
}

// Reset moves HEAD to rev ("HEAD" when empty). It runs in any state and
// clears it, except that a soft reset is refused during a merge.
func (s *Session) Reset(ctx context.Context, rev string, mode repo.ResetMode) (*ResetOutcome, error) {
	const op = "reset"
	st, err := s.Guard.Require(OpReset)
	if err != nil {
		return nil, err
	}
	if st == repo.StateMerge && mode == repo.ResetSoft {
		return nil, illegalState(op, "cannot do a soft reset in the middle of a merge")
	}
	if rev == "" {
		rev = "HEAD"
	}
	ac, err := s.Resolver.MustResolve(op, rev)
	if err != nil {
		return nil, err
	}
	if err := s.refUpdated(op, s.repo.Reset(ctx, ac.ID, mode)); err != nil {
		return nil, err
	}
	if st != repo.StateNone {
		if err := s.repo.StateCleanup(); err != nil {
			return nil, Wrap(op, err)
		}
	}
	c, err := s.repo.Store.ReadCommit(ac.ID)
	if err != nil {
		return nil, Wrap(op, err)
	}
	s.logger(ctx, op).WithFields(logging.Fields{
		logging.TargetFieldKey: ac.ID.Short(),
		logging.StateFieldKey:  st,
		"mode":                 mode.String(),
	}).Debug("reset")
	return &ResetOutcome{Commit: ac.ID, Summary: c.Summary(), Mode: mode}, nil
}

// ResetPaths unstages paths, restoring their index entries from HEAD.
func (s *Session) ResetPaths(ctx context.Context, paths []string) error {
	const op = "reset"
	err := s.repo.ResetPaths(paths)
	if errors.Is(err, repo.ErrNotFound) {
		return &Error{Kind: KindNotFound, Op: op, Err: err}
	}
	if err != nil {
		return Wrap(op, err)
	}
	s.logger(ctx, op).WithField("paths", len(paths)).Debug("paths unstaged")
	return nil
}
