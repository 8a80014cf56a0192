package porcelain

import (
	"context"
	"errors"
	"regexp"
	"strconv"

	"github.com/odvcencio/grit/pkg/logging"
	"github.com/odvcencio/grit/pkg/repo"
)

var stashSpec = regexp.MustCompile(`^(?:stash@\{(\d+)\}|(\d+))$`)

// ParseStashRef maps "", "stash@{n}" or "n" to a stash index.
func ParseStashRef(op, spec string) (int, error) {
	if spec == "" {
		return 0, nil
	}
	m := stashSpec.FindStringSubmatch(spec)
	if m == nil {
		return 0, invalidArgument(op, "'%s' is not a stash reference", spec)
	}
	digits := m[1] + m[2]
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, invalidArgument(op, "'%s' is not a stash reference", spec)
	}
	return n, nil
}

// StashPush saves local changes to tracked files and resets the index and
// working tree to HEAD.
func (s *Session) StashPush(ctx context.Context, message string) (*repo.StashEntry, error) {
	const op = "stash"
	if _, err := s.Guard.Require(OpStash); err != nil {
		return nil, err
	}
	author, _, err := s.signatures(op)
	if err != nil {
		return nil, err
	}
	h, err := s.repo.StashSave(ctx, message, author)
	switch {
	case errors.Is(err, repo.ErrNoLocalChanges):
		return nil, illegalState(op, "No local changes to save")
	case errors.Is(err, repo.ErrUnbornBranch):
		return nil, illegalState(op, "You do not have the initial commit yet")
	case errors.Is(err, repo.ErrUnmerged):
		return nil, conflict(op, nil, "cannot stash with unmerged paths; resolve them first")
	}
	if err := s.refUpdated(op, err); err != nil {
		return nil, err
	}
	entry, err := s.repo.StashGet(0)
	if err != nil || entry.Hash != h {
		entry = repo.StashEntry{Hash: h}
	}
	s.logger(ctx, op).WithField(logging.TargetFieldKey, entry.Hash.Short()).Info("stash saved")
	return &entry, nil
}

// StashList returns the saved stashes, newest first.
func (s *Session) StashList(ctx context.Context) ([]repo.StashEntry, error) {
	list, err := s.repo.StashList()
	if err != nil {
		return nil, Wrap("stash list", err)
	}
	return list, nil
}

// StashOutcome is the result of StashApply.
type StashOutcome struct {
	Entry     repo.StashEntry
	Conflicts []string
	// Dropped is set when pop removed the stash.
	Dropped bool
}

// StashApply restores stash n. With pop the stash is dropped afterwards,
// unless the apply left conflicts.
func (s *Session) StashApply(ctx context.Context, n int, pop bool) (*StashOutcome, error) {
	op := "stash apply"
	if pop {
		op = "stash pop"
	}
	if _, err := s.Guard.Require(OpStashApply); err != nil {
		return nil, err
	}
	if err := s.Guard.RequireClean(OpStashApply, false); err != nil {
		return nil, err
	}
	res, err := s.repo.StashApply(n)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, notFound(op, "stash@{%d} does not exist", n)
		}
		return nil, Wrap(op, err)
	}
	out := &StashOutcome{Entry: res.Entry, Conflicts: res.Conflicts}
	log := s.logger(ctx, op).WithField(logging.TargetFieldKey, res.Entry.Name())
	if len(res.Conflicts) > 0 {
		log.WithField("conflicts", len(res.Conflicts)).Info("stash applied with conflicts")
		return out, nil
	}
	if pop {
		if _, err := s.repo.StashDrop(n); err != nil {
			return out, s.refUpdated(op, err)
		}
		out.Dropped = true
	}
	log.Info("stash applied")
	return out, nil
}

// StashDrop removes stash n.
func (s *Session) StashDrop(ctx context.Context, n int) (repo.StashEntry, error) {
	const op = "stash drop"
	entry, err := s.repo.StashDrop(n)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return repo.StashEntry{}, notFound(op, "stash@{%d} does not exist", n)
		}
		return repo.StashEntry{}, Wrap(op, err)
	}
	s.logger(ctx, op).WithField(logging.TargetFieldKey, entry.Hash.Short()).Debug("stash dropped")
	return entry, nil
}
