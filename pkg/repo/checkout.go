package repo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/odvcencio/grit/pkg/object"
)

// CheckoutStrategy selects how CheckoutTree treats local changes.
type CheckoutStrategy int

const (
	// CheckoutSafe refuses to touch paths with local changes that the
	// target would overwrite.
	CheckoutSafe CheckoutStrategy = iota
	// CheckoutForce overwrites local changes and removes tracked files
	// absent from the target.
	CheckoutForce
)

func (s CheckoutStrategy) String() string {
	if s == CheckoutForce {
		return "force"
	}
	return "safe"
}

// CheckoutOptions tunes CheckoutTree.
type CheckoutOptions struct {
	Strategy CheckoutStrategy
	// AllowConflicts lets a safe checkout proceed over an index that has
	// unresolved entries, as long as none of them block.
	AllowConflicts bool
	// Progress is called after each path is written or removed.
	Progress func(done, total int, path string)
}

// CheckoutTree makes the index and working tree match tree. HEAD is not
// touched. In safe mode every blocking path is collected before the first
// write and returned as a *CheckoutConflictError. Locally modified paths
// whose target content equals HEAD are carried over untouched.
func (r *Repo) CheckoutTree(ctx context.Context, tree object.Hash, opts CheckoutOptions) error {
	headTree, err := r.headTree()
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	headFiles, err := r.TreeFiles(headTree)
	if err != nil {
		return fmt.Errorf("checkout: read HEAD tree: %w", err)
	}
	targetFiles, err := r.TreeFiles(tree)
	if err != nil {
		return fmt.Errorf("checkout: read target tree: %w", err)
	}
	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	force := opts.Strategy == CheckoutForce
	if !force && stg.HasConflicts() && !opts.AllowConflicts {
		return fmt.Errorf("checkout: %w", ErrUnmerged)
	}

	var dirty map[string]bool
	if !force {
		blocking, d, err := r.blockingPaths(stg, headFiles, targetFiles)
		if err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
		if len(blocking) > 0 {
			return &CheckoutConflictError{Paths: blocking}
		}
		dirty = d
	}

	plan := planCheckout(stg, headFiles, targetFiles, dirty, force)
	next := NewStaging()
	for p, e := range stg.Entries {
		if plan.keep[p] {
			next.Entries[p] = e
		}
	}

	total := len(plan.writes) + len(plan.removes)
	done := 0
	report := func(p string) {
		done++
		if opts.Progress != nil {
			opts.Progress(done, total, p)
		}
	}

	for _, p := range plan.removes {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
		abs := r.worktreePath(p)
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			return fsError("checkout: remove", p, err)
		}
		r.removeEmptyParents(filepath.Dir(abs))
		report(p)
	}
	for _, p := range plan.writes {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
		f := targetFiles[p]
		entry, err := r.materialize(p, f.BlobHash, f.Mode)
		if err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
		next.Entries[p] = entry
		report(p)
	}

	return r.UpdateStaging(func(s *Staging) error {
		s.Entries = next.Entries
		return nil
	})
}

type checkoutPlan struct {
	writes  []string
	removes []string
	keep    map[string]bool // index entries carried over unchanged
}

func planCheckout(stg *Staging, headFiles, targetFiles map[string]TreeFileEntry, dirty map[string]bool, force bool) checkoutPlan {
	plan := checkoutPlan{keep: make(map[string]bool)}
	for p, f := range targetFiles {
		h, inHead := headFiles[p]
		e, inIndex := stg.Entries[p]
		switch {
		case force:
			plan.writes = append(plan.writes, p)
		case dirty[p]:
			// Only reached when the target equals HEAD for p.
			plan.keep[p] = true
		case inHead && sameFile(h, f) && inIndex && e.Conflict == nil:
			plan.keep[p] = true
		default:
			plan.writes = append(plan.writes, p)
		}
	}

	tracked := make(map[string]bool, len(headFiles)+len(stg.Entries))
	for p := range headFiles {
		tracked[p] = true
	}
	for p := range stg.Entries {
		tracked[p] = true
	}
	for p := range tracked {
		if _, ok := targetFiles[p]; ok {
			continue
		}
		if !force && dirty[p] {
			plan.keep[p] = plan.keep[p] || stg.Entries[p] != nil
			continue
		}
		plan.removes = append(plan.removes, p)
	}
	sort.Strings(plan.writes)
	sort.Strings(plan.removes)
	return plan
}

func sameFile(a, b TreeFileEntry) bool {
	return a.BlobHash == b.BlobHash && normalizeFileMode(a.Mode) == normalizeFileMode(b.Mode)
}

// blockingPaths returns the sorted paths a switch from headFiles to
// targetFiles would clobber, plus the set of locally modified paths. A
// path blocks when it has local modifications and the target differs from
// HEAD for it, or when it is untracked and the target carries it with
// different content.
func (r *Repo) blockingPaths(stg *Staging, headFiles, targetFiles map[string]TreeFileEntry) ([]string, map[string]bool, error) {
	dirty := make(map[string]bool)

	for p, e := range stg.Entries {
		h, inHead := headFiles[p]
		if e.Conflict != nil || !inHead || e.BlobHash != h.BlobHash || normalizeFileMode(e.Mode) != normalizeFileMode(h.Mode) {
			dirty[p] = true
			continue
		}
		abs := r.worktreePath(p)
		if _, err := os.Lstat(abs); err != nil {
			if os.IsNotExist(err) {
				dirty[p] = true
				continue
			}
			return nil, nil, fsError("stat", p, err)
		}
		work, err := r.worktreeState(e)
		if err != nil {
			return nil, nil, err
		}
		if work.hash != e.BlobHash || work.mode != normalizeFileMode(e.Mode) {
			dirty[p] = true
		}
	}
	for p := range headFiles {
		if _, ok := stg.Entries[p]; !ok {
			dirty[p] = true // staged deletion
		}
	}

	var blocking []string
	for p := range dirty {
		h, inHead := headFiles[p]
		t, inTarget := targetFiles[p]
		if inHead != inTarget || (inHead && !sameFile(h, t)) {
			blocking = append(blocking, p)
		}
	}

	scan, err := r.scanWorktree(stg, false)
	if err != nil {
		return nil, nil, err
	}
	for _, p := range scan.untracked {
		t, ok := targetFiles[p]
		if !ok {
			continue
		}
		data, mode, _, err := readWorktreeFile(r.worktreePath(p))
		if err != nil {
			return nil, nil, fsError("read", p, err)
		}
		if object.HashObject(object.TypeBlob, data) != t.BlobHash || mode != normalizeFileMode(t.Mode) {
			blocking = append(blocking, p)
		}
	}

	sort.Strings(blocking)
	return blocking, dirty, nil
}

// materialize writes a blob to the working tree and returns the matching
// index entry with fresh stat data.
func (r *Repo) materialize(p string, blob object.Hash, mode string) (*StagingEntry, error) {
	b, err := r.Store.ReadBlob(blob)
	if err != nil {
		return nil, fmt.Errorf("read blob for %q: %w", p, err)
	}
	return r.writeEntry(p, b.Data, blob, mode)
}

func (r *Repo) writeEntry(p string, data []byte, blob object.Hash, mode string) (*StagingEntry, error) {
	abs := r.worktreePath(p)
	if err := writeWorktreeFile(abs, data, mode); err != nil {
		return nil, fsError("write", p, err)
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return nil, fsError("stat", p, err)
	}
	return &StagingEntry{
		Path:     p,
		BlobHash: blob,
		Mode:     normalizeFileMode(mode),
		ModTime:  info.ModTime().UnixNano(),
		Size:     info.Size(),
	}, nil
}
