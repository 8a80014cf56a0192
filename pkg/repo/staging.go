package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/odvcencio/grit/pkg/object"
)

// Conflict records the three sides of an unresolved merge for one path. An
// empty hash means the side did not have the file.
type Conflict struct {
	Base   object.Hash `json:"base,omitempty"`
	Ours   object.Hash `json:"ours,omitempty"`
	Theirs object.Hash `json:"theirs,omitempty"`
}

// StagingEntry records the staged state of a single file.
type StagingEntry struct {
	Path     string      `json:"path"`
	BlobHash object.Hash `json:"blob_hash"`
	Mode     string      `json:"mode,omitempty"`
	ModTime  int64       `json:"mod_time"`
	Size     int64       `json:"size"`
	Conflict *Conflict   `json:"conflict,omitempty"`
}

// Staging holds the full staging area (index) for a repository.
type Staging struct {
	Entries map[string]*StagingEntry `json:"entries"`
}

// NewStaging returns an empty index.
func NewStaging() *Staging {
	return &Staging{Entries: make(map[string]*StagingEntry)}
}

// Conflicts returns the sorted paths that carry unresolved conflicts.
func (s *Staging) Conflicts() []string {
	var paths []string
	for p, e := range s.Entries {
		if e.Conflict != nil {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

// HasConflicts reports whether any entry is unresolved.
func (s *Staging) HasConflicts() bool {
	for _, e := range s.Entries {
		if e.Conflict != nil {
			return true
		}
	}
	return false
}

func (r *Repo) indexPath() string {
	return r.gritPath("index")
}

// ReadStaging loads the staging area from .grit/index. If the file does not
// exist, an empty Staging is returned (no error).
func (r *Repo) ReadStaging() (*Staging, error) {
	data, err := os.ReadFile(r.indexPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewStaging(), nil
		}
		return nil, fsError("read staging", r.indexPath(), err)
	}

	var stg Staging
	if err := json.Unmarshal(data, &stg); err != nil {
		return nil, fmt.Errorf("read staging: unmarshal: %w", err)
	}
	if stg.Entries == nil {
		stg.Entries = make(map[string]*StagingEntry)
	}
	return &stg, nil
}

// WriteStaging atomically writes the staging area to .grit/index.
func (r *Repo) WriteStaging(s *Staging) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("write staging: marshal: %w", err)
	}
	if err := writeFileAtomic(r.indexPath(), data); err != nil {
		return fmt.Errorf("write staging: %w", err)
	}
	return nil
}

// UpdateStaging performs a locked read-modify-write of the index. The index
// is written only when fn succeeds.
func (r *Repo) UpdateStaging(fn func(*Staging) error) error {
	lockPath := r.indexPath() + ".lock"
	lock, err := acquireLock(lockPath)
	if err != nil {
		return &Error{Code: CodeLocked, Op: "lock index", Path: lockPath, Err: err}
	}
	lock.Close()
	defer os.Remove(lockPath)

	stg, err := r.ReadStaging()
	if err != nil {
		return err
	}
	if err := fn(stg); err != nil {
		return err
	}
	return r.WriteStaging(stg)
}

// Add stages the given paths. Directories are added recursively, honoring
// ignore rules. A path that is in the index but missing from disk is
// removed from the index. Adding a conflicted path marks it resolved.
func (r *Repo) Add(paths []string) error {
	ic := NewIgnoreChecker(r.RootDir)
	return r.UpdateStaging(func(stg *Staging) error {
		for _, p := range paths {
			rel, err := r.repoRelPath(p)
			if err != nil {
				return fmt.Errorf("add: resolve path %q: %w", p, err)
			}
			if err := r.addPath(stg, ic, rel); err != nil {
				return fmt.Errorf("add: %w", err)
			}
		}
		return nil
	})
}

func (r *Repo) addPath(stg *Staging, ic *IgnoreChecker, rel string) error {
	abs := r.worktreePath(rel)
	info, err := os.Lstat(abs)
	if err != nil {
		if !os.IsNotExist(err) {
			return fsError("stat", rel, err)
		}
		removed := removeEntriesUnder(stg, rel)
		if removed == 0 {
			return fmt.Errorf("pathspec %q did not match any files: %w", rel, ErrNotFound)
		}
		return nil
	}

	if !info.IsDir() {
		return r.stageFile(stg, rel)
	}

	// Tracked files under the directory that vanished are removed too.
	for p := range stg.Entries {
		if rel == "." || strings.HasPrefix(p, rel+"/") {
			if !exists(r.worktreePath(p)) {
				delete(stg.Entries, p)
			}
		}
	}
	return filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		sub, err := filepath.Rel(r.RootDir, path)
		if err != nil {
			return err
		}
		sub = filepath.ToSlash(sub)
		if sub == "." {
			return nil
		}
		_, tracked := stg.Entries[sub]
		if !tracked && ic.IsIgnored(sub, d.IsDir()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		return r.stageFile(stg, sub)
	})
}

func (r *Repo) stageFile(stg *Staging, rel string) error {
	data, mode, info, err := readWorktreeFile(r.worktreePath(rel))
	if err != nil {
		return fsError("read", rel, err)
	}
	blobHash, err := r.Store.WriteBlob(&object.Blob{Data: data})
	if err != nil {
		return fmt.Errorf("write blob %q: %w", rel, err)
	}
	stg.Entries[rel] = &StagingEntry{
		Path:     rel,
		BlobHash: blobHash,
		Mode:     mode,
		ModTime:  info.ModTime().UnixNano(),
		Size:     info.Size(),
	}
	return nil
}

func removeEntriesUnder(stg *Staging, rel string) int {
	n := 0
	for p := range stg.Entries {
		if p == rel || strings.HasPrefix(p, rel+"/") {
			delete(stg.Entries, p)
			n++
		}
	}
	return n
}

// Remove unstages the given paths. Unless cached is set, the files are also
// deleted from the working tree.
func (r *Repo) Remove(paths []string, cached bool) error {
	return r.UpdateStaging(func(stg *Staging) error {
		for _, p := range paths {
			rel, err := r.repoRelPath(p)
			if err != nil {
				return fmt.Errorf("rm: resolve path %q: %w", p, err)
			}
			var matched []string
			for path := range stg.Entries {
				if path == rel || strings.HasPrefix(path, rel+"/") {
					matched = append(matched, path)
				}
			}
			if len(matched) == 0 {
				return fmt.Errorf("rm: pathspec %q did not match any tracked files: %w", rel, ErrNotFound)
			}
			for _, path := range matched {
				delete(stg.Entries, path)
				if cached {
					continue
				}
				abs := r.worktreePath(path)
				if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
					return fsError("rm", path, err)
				}
				r.removeEmptyParents(filepath.Dir(abs))
			}
		}
		return nil
	})
}

// Move renames a tracked file or directory in both the working tree and
// the index and returns the destination path. A destination that is an
// existing directory receives src under its base name. An existing
// destination fails with ErrExists unless force is set; an untracked or
// conflicted source fails with ErrNotFound or ErrUnmerged.
func (r *Repo) Move(src, dst string, force bool) (string, error) {
	from, err := r.repoRelPath(src)
	if err != nil {
		return "", fmt.Errorf("mv: resolve path %q: %w", src, err)
	}
	to, err := r.repoRelPath(dst)
	if err != nil {
		return "", fmt.Errorf("mv: resolve path %q: %w", dst, err)
	}
	err = r.UpdateStaging(func(stg *Staging) error {
		var matched []string
		for p, e := range stg.Entries {
			if p != from && !strings.HasPrefix(p, from+"/") {
				continue
			}
			if e.Conflict != nil {
				return fmt.Errorf("mv: %q: %w", p, ErrUnmerged)
			}
			matched = append(matched, p)
		}
		if len(matched) == 0 {
			return fmt.Errorf("mv: %q is not under version control: %w", from, ErrNotFound)
		}
		if info, err := os.Stat(r.worktreePath(to)); err == nil && info.IsDir() {
			to = path.Join(to, path.Base(from))
		}
		if to == from || strings.HasPrefix(to, from+"/") {
			return fmt.Errorf("mv: cannot move %q into itself", from)
		}

		toAbs := r.worktreePath(to)
		if info, err := os.Lstat(toAbs); err == nil {
			if !force || info.IsDir() {
				return fmt.Errorf("mv: destination %q: %w", to, ErrExists)
			}
			if err := os.Remove(toAbs); err != nil {
				return fsError("mv", to, err)
			}
		}
		if err := os.MkdirAll(filepath.Dir(toAbs), 0o755); err != nil {
			return fsError("mv", to, err)
		}
		fromAbs := r.worktreePath(from)
		if err := os.Rename(fromAbs, toAbs); err != nil {
			return fsError("mv", from, err)
		}
		r.removeEmptyParents(filepath.Dir(fromAbs))

		removeEntriesUnder(stg, to)
		for _, p := range matched {
			e := stg.Entries[p]
			delete(stg.Entries, p)
			e.Path = to + strings.TrimPrefix(p, from)
			stg.Entries[e.Path] = e
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return to, nil
}

// WriteTree writes the index as tree objects and returns the root hash. It
// fails with ErrUnmerged while conflicts remain.
func (r *Repo) WriteTree() (object.Hash, error) {
	stg, err := r.ReadStaging()
	if err != nil {
		return "", err
	}
	if stg.HasConflicts() {
		return "", fmt.Errorf("write tree: %w: %s", ErrUnmerged, strings.Join(stg.Conflicts(), ", "))
	}
	return r.BuildTree(stg)
}

// ReadTreeIntoIndex replaces the index with the contents of tree, keeping
// stat data for entries whose blob is unchanged. The working tree is not
// touched.
func (r *Repo) ReadTreeIntoIndex(tree object.Hash) error {
	files, err := r.FlattenTree(tree)
	if err != nil {
		return fmt.Errorf("read tree: %w", err)
	}
	return r.UpdateStaging(func(stg *Staging) error {
		next := make(map[string]*StagingEntry, len(files))
		for _, f := range files {
			entry := &StagingEntry{Path: f.Path, BlobHash: f.BlobHash, Mode: normalizeFileMode(f.Mode), Size: -1}
			if old, ok := stg.Entries[f.Path]; ok && old.Conflict == nil && old.BlobHash == f.BlobHash && old.Mode == entry.Mode {
				entry.ModTime, entry.Size = old.ModTime, old.Size
			}
			next[f.Path] = entry
		}
		stg.Entries = next
		return nil
	})
}

// RepoPath converts a path given on the command line, absolute or relative
// to the current directory, into a slash-separated repository path.
func (r *Repo) RepoPath(p string) (string, error) { return r.repoRelPath(p) }

// repoRelPath converts a path (absolute, or relative to CWD) into a path
// relative to the repository root. If the path is already relative and does
// not start with the repo root, it is assumed to already be repo-relative.
func (r *Repo) repoRelPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(r.RootDir, p)
		if err != nil {
			return "", fmt.Errorf("cannot make %q relative to %q: %w", p, r.RootDir, err)
		}
		if strings.HasPrefix(rel, "..") {
			return "", fmt.Errorf("%q is outside repository at %q", p, r.RootDir)
		}
		return filepath.ToSlash(rel), nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}
	rel, err := filepath.Rel(r.RootDir, filepath.Join(cwd, p))
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}
	return filepath.ToSlash(rel), nil
}

// removeEmptyParents removes empty directories up to (but not including)
// the repository root.
func (r *Repo) removeEmptyParents(dir string) {
	r.removeEmptyDirsUpTo(dir, r.RootDir)
}
