package repo

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/odvcencio/grit/pkg/object"
)

// TreeFileEntry represents a single file in a flattened tree.
type TreeFileEntry struct {
	Path     string
	BlobHash object.Hash
	Mode     string
}

// BuildTree converts the flat staging entries into a hierarchical tree
// structure, writing TreeObj objects to the store and returning the root hash.
func (r *Repo) BuildTree(s *Staging) (object.Hash, error) {
	files := make([]TreeFileEntry, 0, len(s.Entries))
	for p, e := range s.Entries {
		files = append(files, TreeFileEntry{Path: p, BlobHash: e.BlobHash, Mode: e.Mode})
	}
	return r.BuildTreeFromFiles(files)
}

// BuildTreeFromFiles writes the tree objects for a flat file list and
// returns the root hash.
func (r *Repo) BuildTreeFromFiles(files []TreeFileEntry) (object.Hash, error) {
	byPath := make(map[string]TreeFileEntry, len(files))
	for _, f := range files {
		byPath[f.Path] = f
	}
	return r.buildTreeDir(byPath, "")
}

func (r *Repo) buildTreeDir(files map[string]TreeFileEntry, prefix string) (object.Hash, error) {
	direct := make(map[string]TreeFileEntry)
	subdirs := make(map[string]struct{})

	for p, f := range files {
		rel := p
		if prefix != "" {
			var ok bool
			if rel, ok = strings.CutPrefix(p, prefix+"/"); !ok {
				continue
			}
		}
		if dir, _, nested := strings.Cut(rel, "/"); nested {
			subdirs[dir] = struct{}{}
		} else {
			direct[rel] = f
		}
	}

	names := make([]string, 0, len(direct)+len(subdirs))
	for name := range direct {
		names = append(names, name)
	}
	for name := range subdirs {
		if _, isFile := direct[name]; !isFile {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	entries := make([]object.TreeEntry, 0, len(names))
	for _, name := range names {
		if f, isFile := direct[name]; isFile {
			entries = append(entries, object.TreeEntry{Name: name, Mode: normalizeFileMode(f.Mode), Hash: f.BlobHash})
			continue
		}
		childPrefix := path.Join(prefix, name)
		subHash, err := r.buildTreeDir(files, childPrefix)
		if err != nil {
			return "", fmt.Errorf("build tree %q: %w", childPrefix, err)
		}
		entries = append(entries, object.TreeEntry{Name: name, Mode: object.TreeModeDir, Hash: subHash})
	}

	h, err := r.Store.WriteTree(&object.TreeObj{Entries: entries})
	if err != nil {
		return "", fmt.Errorf("write tree (prefix=%q): %w", prefix, err)
	}
	return h, nil
}

// FlattenTree walks a tree object recursively, returning all file entries
// with their full paths (using forward slashes). An empty hash is the empty
// tree.
func (r *Repo) FlattenTree(h object.Hash) ([]TreeFileEntry, error) {
	if h == "" {
		return nil, nil
	}
	return r.flattenTreeRec(h, "")
}

func (r *Repo) flattenTreeRec(h object.Hash, prefix string) ([]TreeFileEntry, error) {
	treeObj, err := r.Store.ReadTree(h)
	if err != nil {
		return nil, fmt.Errorf("flatten tree: read %s: %w", h, err)
	}

	var result []TreeFileEntry
	for _, entry := range treeObj.Entries {
		fullPath := path.Join(prefix, entry.Name)
		if entry.IsDir() {
			sub, err := r.flattenTreeRec(entry.Hash, fullPath)
			if err != nil {
				return nil, err
			}
			result = append(result, sub...)
			continue
		}
		result = append(result, TreeFileEntry{Path: fullPath, BlobHash: entry.Hash, Mode: normalizeFileMode(entry.Mode)})
	}
	return result, nil
}

// TreeFiles flattens a tree into a path-keyed map.
func (r *Repo) TreeFiles(h object.Hash) (map[string]TreeFileEntry, error) {
	files, err := r.FlattenTree(h)
	if err != nil {
		return nil, err
	}
	m := make(map[string]TreeFileEntry, len(files))
	for _, f := range files {
		m[f.Path] = f
	}
	return m, nil
}

// CommitTree returns the tree of a commit, or "" for an empty commit hash.
func (r *Repo) CommitTree(commit object.Hash) (object.Hash, error) {
	if commit == "" {
		return "", nil
	}
	c, err := r.Store.ReadCommit(commit)
	if err != nil {
		return "", fmt.Errorf("read commit %s: %w", commit, err)
	}
	return c.TreeHash, nil
}

// headTree returns the tree of HEAD, or "" on an unborn branch.
func (r *Repo) headTree() (object.Hash, error) {
	head, err := r.Head()
	if err != nil {
		return "", err
	}
	if head.Hash == "" {
		return "", nil
	}
	return r.CommitTree(head.Hash)
}
