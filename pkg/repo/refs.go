package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/odvcencio/grit/pkg/object"
)

// ListRefs lists references under .grit/refs whose full name starts with
// prefix (e.g. "refs/heads/"). Names are returned in full form.
func (r *Repo) ListRefs(prefix string) (map[string]object.Hash, error) {
	root := r.gritPath("refs")
	refs := make(map[string]object.Hash)

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasSuffix(d.Name(), ".lock") {
			return nil
		}
		rel, err := filepath.Rel(r.GritDir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		h, err := readRefHash(path)
		if err != nil {
			return err
		}
		if h != "" {
			refs[name] = h
		}
		return nil
	})
	if os.IsNotExist(err) {
		return refs, nil
	}
	if err != nil {
		return nil, fsError("list refs", root, err)
	}
	return refs, nil
}

// RefsPointingAt returns the sorted full names of refs under prefix that
// point at h.
func (r *Repo) RefsPointingAt(h object.Hash, prefix string) ([]string, error) {
	refs, err := r.ListRefs(prefix)
	if err != nil {
		return nil, err
	}
	var names []string
	for name, target := range refs {
		if target == h {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// DWIMCandidates lists, in priority order, the full ref names a short name
// may refer to.
func DWIMCandidates(name string) []string {
	if name == "HEAD" || strings.HasPrefix(name, "refs/") {
		return []string{name}
	}
	return []string{
		"refs/heads/" + name,
		"refs/remotes/" + name,
		"refs/remotes/origin/" + name,
		"refs/tags/" + name,
	}
}

// DWIM resolves a short name to the first existing ref among its
// candidates. It returns the full ref name and its target.
func (r *Repo) DWIM(name string) (string, object.Hash, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", fmt.Errorf("dwim: empty name: %w", ErrNotFound)
	}
	for _, candidate := range DWIMCandidates(name) {
		h, err := r.ResolveRef(candidate)
		if err == nil {
			return candidate, h, nil
		}
		if CodeOf(err) == CodeFilesystem {
			return "", "", err
		}
	}
	return "", "", fmt.Errorf("dwim %q: %w", name, ErrNotFound)
}

// ShortRefName strips the well-known ref namespace from a full name.
func ShortRefName(full string) string {
	for _, prefix := range []string{"refs/heads/", "refs/remotes/", "refs/tags/"} {
		if short, ok := strings.CutPrefix(full, prefix); ok {
			return short
		}
	}
	return full
}

// ValidateRefName rejects names that cannot be stored as a ref path.
func ValidateRefName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("ref name is required")
	case name == "HEAD" || name == "@":
		return fmt.Errorf("invalid ref name %q", name)
	case strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/"),
		strings.HasPrefix(name, "-"), strings.HasPrefix(name, "."),
		strings.Contains(name, ".."), strings.Contains(name, "//"),
		strings.Contains(name, "@{"), strings.HasSuffix(name, ".lock"),
		strings.ContainsAny(name, " \t\n\r~^:?*[\\"):
		return fmt.Errorf("invalid ref name %q", name)
	}
	return nil
}
