package porcelain

import (
	"github.com/odvcencio/grit/pkg/repo"
)

// Op names a mutating operation checked by the Guard.
type Op int

const (
	OpMerge Op = iota
	OpRebase
	OpCheckout
	OpCommit
	OpReset
	OpMergeContinue
	OpMergeAbort
	OpMergeQuit
	OpRebaseContinue
	OpRebaseSkip
	OpRebaseAbort
	OpRebaseQuit
	OpStash
	OpStashApply
)

func (o Op) String() string {
	switch o {
	case OpMerge:
		return "merge"
	case OpRebase:
		return "rebase"
	case OpCheckout:
		return "checkout"
	case OpCommit:
		return "commit"
	case OpReset:
		return "reset"
	case OpMergeContinue:
		return "merge --continue"
	case OpMergeAbort:
		return "merge --abort"
	case OpMergeQuit:
		return "merge --quit"
	case OpRebaseContinue:
		return "rebase --continue"
	case OpRebaseSkip:
		return "rebase --skip"
	case OpRebaseAbort:
		return "rebase --abort"
	case OpRebaseQuit:
		return "rebase --quit"
	case OpStash:
		return "stash"
	case OpStashApply:
		return "stash apply"
	}
	return "unknown"
}

// verb is the resume verb of a continue/abort/quit/skip op.
func (o Op) verb() string {
	switch o {
	case OpMergeContinue, OpRebaseContinue:
		return "continue"
	case OpMergeAbort, OpRebaseAbort:
		return "abort"
	case OpMergeQuit, OpRebaseQuit:
		return "quit"
	case OpRebaseSkip:
		return "skip"
	}
	return ""
}

// Guard is the single place that decides whether an operation may start
// given the persisted repository state.
type Guard struct {
	repo *repo.Repo
}

// State returns the current repository state.
func (g *Guard) State() repo.State { return g.repo.State() }

// Require checks that op may run now and returns the state it observed.
// Nothing is written.
func (g *Guard) Require(op Op) (repo.State, error) {
	st := g.repo.State()
	switch op {
	case OpReset:
		return st, nil
	case OpCommit:
		if st == repo.StateNone || st == repo.StateMerge {
			return st, nil
		}
		return st, inProgress(op, st)
	case OpMerge, OpRebase, OpCheckout, OpStash, OpStashApply:
		if st == repo.StateNone {
			return st, nil
		}
		return st, inProgress(op, st)
	case OpMergeContinue, OpMergeAbort, OpMergeQuit:
		if st == repo.StateMerge {
			return st, nil
		}
		return st, illegalState(op.String(), "There is no merge to %s (MERGE_HEAD missing)", op.verb())
	case OpRebaseContinue, OpRebaseSkip, OpRebaseAbort, OpRebaseQuit:
		if st.IsRebase() {
			return st, nil
		}
		return st, illegalState(op.String(), "There is no rebase to %s (rebase-merge missing)", op.verb())
	}
	return st, invalidArgument(op.String(), "unknown operation")
}

func inProgress(op Op, st repo.State) *Error {
	return &Error{Kind: KindIllegalState, Msg: op.String() + ": a " + st.String() + " is already in progress"}
}

// RequireClean refuses op when the index differs from HEAD. With worktree
// set, tracked files that differ from the index are refused as well;
// untracked files never are.
func (g *Guard) RequireClean(op Op, worktree bool) error {
	r := g.repo
	head, err := r.Head()
	if err != nil {
		return Wrap(op.String(), err)
	}
	headTree, err := r.CommitTree(head.Hash)
	if err != nil {
		return Wrap(op.String(), err)
	}
	stg, err := r.ReadStaging()
	if err != nil {
		return Wrap(op.String(), err)
	}
	noRenames := repo.DiffOptions{RenameThreshold: -1}
	staged, err := r.DiffTreeToIndex(headTree, stg, noRenames)
	if err != nil {
		return Wrap(op.String(), err)
	}
	if paths := deltaPaths(staged); len(paths) > 0 {
		return conflict(op.String(), paths, "your index contains uncommitted changes; commit or stash them")
	}
	if !worktree {
		return nil
	}
	unstaged, err := r.DiffIndexToWorkdir(stg, noRenames)
	if err != nil {
		return Wrap(op.String(), err)
	}
	if paths := deltaPaths(unstaged); len(paths) > 0 {
		return conflict(op.String(), paths, "you have unstaged changes; commit or stash them")
	}
	return nil
}

func deltaPaths(deltas []repo.Delta) []string {
	var paths []string
	for _, d := range deltas {
		switch d.Status {
		case repo.DeltaUnmodified, repo.DeltaUntracked, repo.DeltaIgnored:
			continue
		}
		paths = append(paths, d.Path())
	}
	return paths
}
