package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/odvcencio/grit/pkg/object"
)

// ResetMode selects how much of the repository Reset rewrites.
type ResetMode int

const (
	// ResetSoft moves HEAD only.
	ResetSoft ResetMode = iota
	// ResetMixed moves HEAD and rebuilds the index.
	ResetMixed
	// ResetHard moves HEAD and rewrites the index and working tree.
	ResetHard
)

func (m ResetMode) String() string {
	switch m {
	case ResetSoft:
		return "soft"
	case ResetHard:
		return "hard"
	default:
		return "mixed"
	}
}

// ParseResetMode maps "soft", "mixed" or "hard" to a ResetMode.
func ParseResetMode(s string) (ResetMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "soft":
		return ResetSoft, nil
	case "", "mixed":
		return ResetMixed, nil
	case "hard":
		return ResetHard, nil
	}
	return ResetMixed, fmt.Errorf("invalid reset mode %q", s)
}

// Reset moves the current branch (or detached HEAD) to target. Mixed also
// rebuilds the index from the target tree; hard additionally forces the
// working tree to match, which drops every conflict. The previous HEAD is
// saved as ORIG_HEAD.
func (r *Repo) Reset(ctx context.Context, target object.Hash, mode ResetMode) error {
	tree, err := r.CommitTree(target)
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	head, err := r.Head()
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	if mode == ResetHard {
		// Move HEAD first so the checkout compares against the target.
		if err := r.moveHead(head, target, "reset: moving to "+string(target)); err != nil {
			return err
		}
		if err := r.CheckoutTree(ctx, tree, CheckoutOptions{Strategy: CheckoutForce}); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		return nil
	}

	if err := r.moveHead(head, target, "reset: moving to "+string(target)); err != nil {
		return err
	}
	if mode == ResetMixed {
		if err := r.ReadTreeIntoIndex(tree); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	return nil
}

func (r *Repo) moveHead(head HeadInfo, target object.Hash, reason string) error {
	if head.Hash == target {
		return nil
	}
	if err := r.writeOrigHead(head.Hash); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if err := r.UpdateHead(target, reason); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

// ResetPaths unstages paths by restoring their index entries to HEAD. A
// path absent from HEAD is removed from the index. No paths means the whole
// index. The working tree is not modified.
func (r *Repo) ResetPaths(paths []string) error {
	headTree, err := r.headTree()
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	headEntries, err := r.TreeFiles(headTree)
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	return r.UpdateStaging(func(stg *Staging) error {
		targets, err := r.resolveResetTargets(paths, stg, headEntries)
		if err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		for _, p := range targets {
			if h, ok := headEntries[p]; ok {
				// Size -1 forces a content hash on the next status.
				stg.Entries[p] = &StagingEntry{
					Path:     p,
					BlobHash: h.BlobHash,
					Mode:     normalizeFileMode(h.Mode),
					Size:     -1,
				}
				continue
			}
			delete(stg.Entries, p)
		}
		return nil
	})
}

func (r *Repo) resolveResetTargets(paths []string, stg *Staging, head map[string]TreeFileEntry) ([]string, error) {
	all := make(map[string]struct{}, len(stg.Entries)+len(head))
	for p := range stg.Entries {
		all[p] = struct{}{}
	}
	for p := range head {
		all[p] = struct{}{}
	}
	if len(paths) == 0 {
		return sortedPathSet(all), nil
	}

	targets := make(map[string]struct{})
	for _, raw := range paths {
		rel, err := r.repoRelPath(raw)
		if err != nil {
			return nil, err
		}
		rel = filepath.ToSlash(filepath.Clean(strings.TrimSpace(rel)))
		if rel == "" || rel == "." {
			for p := range all {
				targets[p] = struct{}{}
			}
			continue
		}

		matched := false
		for p := range all {
			if p == rel || strings.HasPrefix(p, rel+"/") {
				targets[p] = struct{}{}
				matched = true
			}
		}
		if !matched {
			return nil, fmt.Errorf("path %q did not match staged or HEAD entries: %w", raw, ErrNotFound)
		}
	}
	return sortedPathSet(targets), nil
}

func sortedPathSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
