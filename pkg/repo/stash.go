package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/odvcencio/grit/pkg/diff3"
	"github.com/odvcencio/grit/pkg/object"
)

// StashRef holds the newest stash. Older stashes live in its reflog.
const StashRef = "refs/stash"

// StashEntry is one saved stash, newest at index 0.
type StashEntry struct {
	Index   int
	Hash    object.Hash
	Message string
}

// Name returns the stash@{n} form of the entry.
func (e StashEntry) Name() string { return fmt.Sprintf("stash@{%d}", e.Index) }

// StashList returns the saved stashes, newest first.
func (r *Repo) StashList() ([]StashEntry, error) {
	log, err := r.ReadReflog(StashRef, 0)
	if err != nil {
		return nil, err
	}
	out := make([]StashEntry, len(log))
	for i, e := range log {
		out[i] = StashEntry{Index: i, Hash: e.NewHash, Message: e.Reason}
	}
	return out, nil
}

// StashGet returns stash n.
func (r *Repo) StashGet(n int) (StashEntry, error) {
	list, err := r.StashList()
	if err != nil {
		return StashEntry{}, err
	}
	if n < 0 || n >= len(list) {
		return StashEntry{}, fmt.Errorf("stash@{%d}: %w", n, ErrNotFound)
	}
	return list[n], nil
}

// StashSave records the index and the tracked files of the working tree
// as a stash commit, then resets both to HEAD. Untracked files are left
// alone. The stash commit has HEAD and a commit of the index as parents.
// When only the reflog append failed, the stash hash is returned together
// with a RefUpdateReflogError.
func (r *Repo) StashSave(ctx context.Context, message string, sig object.Signature) (object.Hash, error) {
	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("stash: %w", err)
	}
	if head.Unborn {
		return "", fmt.Errorf("stash: %w", ErrUnbornBranch)
	}
	stg, err := r.ReadStaging()
	if err != nil {
		return "", fmt.Errorf("stash: %w", err)
	}
	if stg.HasConflicts() {
		return "", fmt.Errorf("stash: %w: %s", ErrUnmerged, strings.Join(stg.Conflicts(), ", "))
	}
	headCommit, err := r.Store.ReadCommit(head.Hash)
	if err != nil {
		return "", fmt.Errorf("stash: read commit %s: %w", head.Hash, err)
	}
	indexTree, err := r.BuildTree(stg)
	if err != nil {
		return "", fmt.Errorf("stash: %w", err)
	}
	workTree, err := r.worktreeSnapshot(stg)
	if err != nil {
		return "", fmt.Errorf("stash: %w", err)
	}
	if indexTree == headCommit.TreeHash && workTree == headCommit.TreeHash {
		return "", ErrNoLocalChanges
	}

	branch := head.Branch()
	if branch == "" {
		branch = "(no branch)"
	}
	onto := fmt.Sprintf("%s: %s %s", branch, head.Hash.Short(), headCommit.Summary())
	if message == "" {
		message = "WIP on " + onto
	} else {
		message = "On " + branch + ": " + message
	}

	indexCommit, err := r.CreateCommit(CommitRequest{
		Tree:    indexTree,
		Parents: []object.Hash{head.Hash},
		Author:  sig,
		Message: "index on " + onto,
	})
	if err != nil {
		return "", fmt.Errorf("stash: %w", err)
	}
	c := &object.CommitObj{
		TreeHash:  workTree,
		Parents:   []object.Hash{head.Hash, indexCommit},
		Author:    sig,
		Committer: sig,
		Message:   normalizeMessage(message),
	}
	h, err := r.Store.WriteCommit(c)
	if err != nil {
		return "", fmt.Errorf("stash: write: %w", err)
	}

	old, err := r.ResolveRef(StashRef)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("stash: %w", err)
	}
	refErr := r.UpdateRefCAS(StashRef, h, message, old)
	if refErr != nil && !errors.Is(refErr, ErrRefUpdatedButReflogAppendFailed) {
		return "", fmt.Errorf("stash: %w", refErr)
	}
	if err := r.CheckoutTree(ctx, headCommit.TreeHash, CheckoutOptions{Strategy: CheckoutForce}); err != nil {
		return "", fmt.Errorf("stash: %w", err)
	}
	return h, refErr
}

// worktreeSnapshot writes a tree of every indexed path as it exists on
// disk. Tracked files missing from disk are left out.
func (r *Repo) worktreeSnapshot(stg *Staging) (object.Hash, error) {
	snap := NewStaging()
	for p, e := range stg.Entries {
		data, mode, err := r.ReadWorktreeFile(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		h := object.HashObject(object.TypeBlob, data)
		if h != e.BlobHash || !r.Store.Has(h) {
			if h, err = r.Store.WriteBlob(&object.Blob{Data: data}); err != nil {
				return "", fmt.Errorf("write blob %s: %w", p, err)
			}
		}
		snap.Entries[p] = &StagingEntry{Path: p, BlobHash: h, Mode: mode}
	}
	return r.BuildTree(snap)
}

// StashApplyResult reports what StashApply did.
type StashApplyResult struct {
	Entry StashEntry
	// Conflicts lists paths left with conflict markers. The stash is kept
	// whenever this is non-empty.
	Conflicts []string
}

// StashApply merges stash n into the working tree. The changes it brings
// are left unstaged, except for files the stash added, which stay added.
// On conflicts the index keeps the conflict stages instead. Paths with
// local modifications that the stash touches refuse the apply with a
// *CheckoutConflictError before anything is written.
func (r *Repo) StashApply(n int) (*StashApplyResult, error) {
	entry, err := r.StashGet(n)
	if err != nil {
		return nil, fmt.Errorf("stash apply: %w", err)
	}
	c, err := r.Store.ReadCommit(entry.Hash)
	if err != nil {
		return nil, fmt.Errorf("stash apply: read commit %s: %w", entry.Hash, err)
	}
	if len(c.Parents) == 0 {
		return nil, fmt.Errorf("stash apply: %s is not a stash commit", entry.Hash.Short())
	}
	baseTree, err := r.CommitTree(c.Parents[0])
	if err != nil {
		return nil, fmt.Errorf("stash apply: %w", err)
	}
	oursTree, err := r.headTree()
	if err != nil {
		return nil, fmt.Errorf("stash apply: %w", err)
	}

	merged, err := r.MergeTrees(baseTree, oursTree, c.TreeHash, diff3.Labels{Ours: "Updated upstream", Theirs: "Stashed changes"})
	if err != nil {
		return nil, fmt.Errorf("stash apply: %w", err)
	}
	if err := r.applyMergeResult(oursTree, merged); err != nil {
		return nil, fmt.Errorf("stash apply: %w", err)
	}
	res := &StashApplyResult{Entry: entry, Conflicts: merged.Conflicts()}
	if len(res.Conflicts) > 0 {
		return res, nil
	}

	oursFiles, err := r.TreeFiles(oursTree)
	if err != nil {
		return nil, fmt.Errorf("stash apply: %w", err)
	}
	err = r.UpdateStaging(func(stg *Staging) error {
		for p, e := range stg.Entries {
			f, ok := oursFiles[p]
			if ok && (f.BlobHash != e.BlobHash || normalizeFileMode(f.Mode) != normalizeFileMode(e.Mode)) {
				stg.Entries[p] = &StagingEntry{Path: p, BlobHash: f.BlobHash, Mode: normalizeFileMode(f.Mode), Size: -1}
			}
		}
		for p, f := range oursFiles {
			if _, ok := stg.Entries[p]; !ok {
				stg.Entries[p] = &StagingEntry{Path: p, BlobHash: f.BlobHash, Mode: normalizeFileMode(f.Mode), Size: -1}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("stash apply: %w", err)
	}
	return res, nil
}

// StashDrop removes stash n and returns it. Dropping the last stash
// deletes StashRef.
func (r *Repo) StashDrop(n int) (StashEntry, error) {
	log, err := r.ReadReflog(StashRef, 0)
	if err != nil {
		return StashEntry{}, fmt.Errorf("stash drop: %w", err)
	}
	if n < 0 || n >= len(log) {
		return StashEntry{}, fmt.Errorf("stash drop: stash@{%d}: %w", n, ErrNotFound)
	}
	dropped := StashEntry{Index: n, Hash: log[n].NewHash, Message: log[n].Reason}
	rest := append(log[:n:n], log[n+1:]...)
	if len(rest) == 0 {
		if err := r.DeleteRef(StashRef); err != nil {
			return StashEntry{}, fmt.Errorf("stash drop: %w", err)
		}
		return dropped, nil
	}
	if n == 0 {
		err := r.UpdateRefCAS(StashRef, rest[0].NewHash, "drop", dropped.Hash)
		if err != nil && !errors.Is(err, ErrRefUpdatedButReflogAppendFailed) {
			return StashEntry{}, fmt.Errorf("stash drop: %w", err)
		}
	}
	if err := r.writeReflog(StashRef, rest); err != nil {
		return StashEntry{}, fmt.Errorf("stash drop: %w", err)
	}
	return dropped, nil
}
