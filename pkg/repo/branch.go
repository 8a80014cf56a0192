package repo

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/odvcencio/grit/pkg/object"
)

// BranchKind selects which branches ListBranches returns.
type BranchKind int

const (
	BranchLocal BranchKind = 1 << iota
	BranchRemote
	BranchAll = BranchLocal | BranchRemote
)

// Branch is one local or remote-tracking branch.
type Branch struct {
	Name   string // short name: "main", "origin/main"
	Ref    string // full name
	Hash   object.Hash
	Remote bool
}

// CreateBranch points refs/heads/<name> at target. Without force an
// existing branch fails with ErrExists.
func (r *Repo) CreateBranch(name string, target object.Hash, force bool) error {
	if err := ValidateRefName(name); err != nil {
		return fmt.Errorf("create branch: %w", err)
	}
	if target == "" {
		return fmt.Errorf("create branch %q: target is required", name)
	}
	refName := "refs/heads/" + name
	reason := "branch: Created from " + string(target)
	var err error
	if force {
		err = r.UpdateRefCAS(refName, target, reason)
	} else {
		err = r.UpdateRefCAS(refName, target, reason, "")
	}
	switch {
	case errors.Is(err, ErrRefCASMismatch):
		return fmt.Errorf("create branch: branch %q: %w", name, ErrExists)
	case err != nil && !errors.Is(err, ErrRefUpdatedButReflogAppendFailed):
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	return nil
}

// DeleteBranch removes refs/heads/<name>. The branch HEAD points at cannot
// be deleted.
func (r *Repo) DeleteBranch(name string) error {
	current, err := r.CurrentBranch()
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if current == name {
		return fmt.Errorf("delete branch: cannot delete the branch %q which you are currently on", name)
	}
	if err := r.DeleteRef("refs/heads/" + name); err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	return nil
}

// RenameBranch moves a branch and its upstream configuration. Renaming the
// current branch repoints HEAD.
func (r *Repo) RenameBranch(oldName, newName string, force bool) error {
	if err := ValidateRefName(newName); err != nil {
		return fmt.Errorf("rename branch: %w", err)
	}
	oldRef, newRef := "refs/heads/"+oldName, "refs/heads/"+newName
	h, err := r.ResolveRef(oldRef)
	if err != nil {
		return fmt.Errorf("rename branch: %w", err)
	}
	if oldName == newName {
		return nil
	}
	if !force && r.RefExists(newRef) {
		return fmt.Errorf("rename branch: branch %q: %w", newName, ErrExists)
	}
	current, err := r.CurrentBranch()
	if err != nil {
		return fmt.Errorf("rename branch: %w", err)
	}

	reason := fmt.Sprintf("branch: renamed %s to %s", oldRef, newRef)
	if err := r.UpdateRefCAS(newRef, h, reason); err != nil && !errors.Is(err, ErrRefUpdatedButReflogAppendFailed) {
		return fmt.Errorf("rename branch: %w", err)
	}
	var refErr error
	if current == oldName {
		if err := r.SetHead(newRef); err != nil {
			if !errors.Is(err, ErrRefUpdatedButReflogAppendFailed) {
				return fmt.Errorf("rename branch: %w", err)
			}
			refErr = err
		}
	}
	if err := r.DeleteRef(oldRef); err != nil {
		return fmt.Errorf("rename branch: %w", err)
	}

	err = r.UpdateConfig(func(cfg *Config) error {
		if up, ok := cfg.Branch[oldName]; ok {
			delete(cfg.Branch, oldName)
			cfg.Branch[newName] = up
		}
		return nil
	})
	if err != nil {
		return err
	}
	return refErr
}

// ListBranches returns branches of the given kind sorted by ref name.
func (r *Repo) ListBranches(kind BranchKind) ([]Branch, error) {
	var out []Branch
	collect := func(prefix string, remote bool) error {
		refs, err := r.ListRefs(prefix)
		if err != nil {
			return err
		}
		for name, h := range refs {
			out = append(out, Branch{Name: strings.TrimPrefix(name, prefix), Ref: name, Hash: h, Remote: remote})
		}
		return nil
	}
	if kind&BranchLocal != 0 {
		if err := collect("refs/heads/", false); err != nil {
			return nil, fmt.Errorf("list branches: %w", err)
		}
	}
	if kind&BranchRemote != 0 {
		if err := collect("refs/remotes/", true); err != nil {
			return nil, fmt.Errorf("list branches: %w", err)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref < out[j].Ref })
	return out, nil
}

// CurrentBranch returns the short name of the branch HEAD points at, or ""
// when HEAD is detached.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}
	return head.Branch(), nil
}
