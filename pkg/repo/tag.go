package repo

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/odvcencio/grit/pkg/object"
)

// CreateTag creates or, with force, moves a lightweight tag under
// refs/tags/.
func (r *Repo) CreateTag(name string, target object.Hash, force bool) error {
	name = strings.TrimSpace(name)
	if err := ValidateRefName(name); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	if target == "" {
		return fmt.Errorf("create tag: target hash is required")
	}
	if !r.Store.Has(target) {
		return fmt.Errorf("create tag: target %s: %w", target, ErrNotFound)
	}

	refName := "refs/tags/" + name
	var err error
	if force {
		err = r.UpdateRefCAS(refName, target, "tag: "+name)
	} else {
		err = r.UpdateRefCAS(refName, target, "tag: "+name, "")
	}
	switch {
	case errors.Is(err, ErrRefCASMismatch):
		return fmt.Errorf("create tag: tag %q: %w", name, ErrExists)
	case err != nil && !errors.Is(err, ErrRefUpdatedButReflogAppendFailed):
		return fmt.Errorf("create tag: %w", err)
	}
	return nil
}

// DeleteTag removes refs/tags/<name>.
func (r *Repo) DeleteTag(name string) error {
	if err := r.DeleteRef("refs/tags/" + strings.TrimSpace(name)); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return nil
}

// ListTags returns tag names sorted alphabetically.
func (r *Repo) ListTags() ([]string, error) {
	refs, err := r.ListRefs("refs/tags/")
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	names := make([]string, 0, len(refs))
	for ref := range refs {
		names = append(names, strings.TrimPrefix(ref, "refs/tags/"))
	}
	sort.Strings(names)
	return names, nil
}

// ResolveTag returns the commit a tag points at.
func (r *Repo) ResolveTag(name string) (object.Hash, error) {
	return r.ResolveRef("refs/tags/" + strings.TrimSpace(name))
}
