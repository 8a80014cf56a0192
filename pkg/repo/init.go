package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/odvcencio/grit/pkg/object"
)

const (
	lockRetryDelay = 5 * time.Millisecond
	lockWaitLimit  = 2 * time.Second
)

// DefaultBranch is the branch HEAD points at in a fresh repository.
const DefaultBranch = "main"

// Init creates a new repository at path. It creates the .grit/ directory
// structure: HEAD, objects/, refs/{heads,tags,remotes} and logs/. Returns
// ErrExists if a .grit/ directory already exists.
func Init(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("init: abs path: %w", err)
	}
	r := newRepo(abs)

	if _, err := os.Stat(r.GritDir); err == nil {
		return nil, fmt.Errorf("init: %s: %w", r.GritDir, ErrExists)
	}

	dirs := []string{
		r.gritPath("objects"),
		r.gritPath("refs", "heads"),
		r.gritPath("refs", "tags"),
		r.gritPath("refs", "remotes"),
		r.gritPath("logs", "refs", "heads"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fsError("init: mkdir", d, err)
		}
	}

	if err := writeFileAtomic(r.gritPath("HEAD"), []byte("ref: refs/heads/"+DefaultBranch+"\n")); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}
	return r, nil
}

// Open searches upward from path for a .grit/ directory and opens the
// repository.
func Open(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		info, err := os.Stat(filepath.Join(cur, DirName))
		if err == nil && info.IsDir() {
			return newRepo(cur), nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open %s: %w", abs, ErrNotRepository)
		}
		cur = parent
	}
}

// HeadInfo describes where HEAD points.
type HeadInfo struct {
	Symbolic bool        // HEAD names a ref ("ref: refs/heads/main")
	Target   string      // full ref name when Symbolic
	Hash     object.Hash // resolved commit; empty when Unborn
	Unborn   bool        // symbolic HEAD whose target ref does not exist yet
}

// Detached reports whether HEAD points directly at a commit.
func (h HeadInfo) Detached() bool { return !h.Symbolic }

// Branch returns the short branch name for a symbolic HEAD under
// refs/heads/, or "".
func (h HeadInfo) Branch() string {
	if !h.Symbolic {
		return ""
	}
	return strings.TrimPrefix(h.Target, "refs/heads/")
}

// Head reads .grit/HEAD and resolves it.
func (r *Repo) Head() (HeadInfo, error) {
	data, err := os.ReadFile(r.gritPath("HEAD"))
	if err != nil {
		return HeadInfo{}, fsError("read HEAD", r.gritPath("HEAD"), err)
	}
	content := strings.TrimSpace(string(data))

	if target, ok := strings.CutPrefix(content, "ref: "); ok {
		info := HeadInfo{Symbolic: true, Target: strings.TrimSpace(target)}
		h, err := readRefHash(r.gritPath(filepath.FromSlash(info.Target)))
		if err != nil {
			return HeadInfo{}, fsError("read HEAD target", info.Target, err)
		}
		info.Hash = h
		info.Unborn = h == ""
		return info, nil
	}
	return HeadInfo{Hash: object.Hash(content)}, nil
}

// HeadHash returns the commit HEAD resolves to. An unborn branch yields an
// error matching both ErrUnbornBranch and ErrNotFound.
func (r *Repo) HeadHash() (object.Hash, error) {
	head, err := r.Head()
	if err != nil {
		return "", err
	}
	if head.Unborn || head.Hash == "" {
		return "", fmt.Errorf("resolve HEAD: %w: %w", ErrUnbornBranch, ErrNotFound)
	}
	return head.Hash, nil
}

// SetHead points HEAD at a ref symbolically. The ref need not exist yet.
// When only the HEAD reflog append fails, HEAD has moved and a
// RefUpdateReflogError is returned.
func (r *Repo) SetHead(ref string) error {
	ref = strings.TrimSpace(ref)
	if !strings.HasPrefix(ref, "refs/") {
		return fmt.Errorf("set HEAD: %q is not a full ref name", ref)
	}
	old, _ := r.Head()
	if err := writeFileAtomic(r.gritPath("HEAD"), []byte("ref: "+ref+"\n")); err != nil {
		return fmt.Errorf("set HEAD: %w", err)
	}
	newHash, _ := readRefHash(r.gritPath(filepath.FromSlash(ref)))
	if err := r.appendReflog("HEAD", old.Hash, newHash, "checkout: moving to "+ref); err != nil {
		return &RefUpdateReflogError{Ref: "HEAD", OldHash: old.Hash, NewHash: newHash, Err: err}
	}
	return nil
}

// SetHeadDetached points HEAD directly at a commit. Reflog failures are
// reported as in SetHead.
func (r *Repo) SetHeadDetached(h object.Hash) error {
	if h == "" {
		return fmt.Errorf("set HEAD: empty hash")
	}
	old, _ := r.Head()
	if err := writeFileAtomic(r.gritPath("HEAD"), []byte(string(h)+"\n")); err != nil {
		return fmt.Errorf("set HEAD: %w", err)
	}
	if err := r.appendReflog("HEAD", old.Hash, h, "checkout: moving to "+string(h)); err != nil {
		return &RefUpdateReflogError{Ref: "HEAD", OldHash: old.Hash, NewHash: h, Err: err}
	}
	return nil
}

// ResolveRef resolves a full ref name ("HEAD" or "refs/...") to an object
// hash. Missing refs return an error matching ErrNotFound.
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	if name == "HEAD" {
		return r.HeadHash()
	}
	if !strings.HasPrefix(name, "refs/") {
		return "", fmt.Errorf("resolve ref %q: not a full ref name: %w", name, ErrNotFound)
	}
	h, err := readRefHash(r.gritPath(filepath.FromSlash(name)))
	if err != nil {
		return "", fsError("resolve ref", name, err)
	}
	if h == "" {
		return "", fmt.Errorf("resolve ref %q: %w", name, ErrNotFound)
	}
	return h, nil
}

// RefExists reports whether the full ref name exists.
func (r *Repo) RefExists(name string) bool {
	_, err := r.ResolveRef(name)
	return err == nil
}

// UpdateRefCAS writes a hash to the named ref under .grit/ using lockfile +
// rename atomic semantics. If expectedOld is provided, the update only
// succeeds when the current ref hash matches it; an empty expected hash
// requires the ref to be absent.
//
// Reflog append happens after the ref rename; if reflog append fails, the ref
// update remains committed and a RefUpdateReflogError is returned.
func (r *Repo) UpdateRefCAS(name string, h object.Hash, reason string, expectedOld ...object.Hash) error {
	if len(expectedOld) > 1 {
		return fmt.Errorf("update ref %q: expected at most one old hash", name)
	}
	if name != "HEAD" && !strings.HasPrefix(name, "refs/") {
		return fmt.Errorf("update ref %q: not a full ref name", name)
	}

	refPath := r.gritPath(filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return fsError("update ref: mkdir", name, err)
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireLock(lockPath)
	if err != nil {
		return &Error{Code: CodeLocked, Op: "update ref", Path: name, Err: err}
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	oldHash, err := readRefHash(refPath)
	if err != nil {
		return fsError("update ref: read old hash", name, err)
	}
	if len(expectedOld) == 1 && oldHash != expectedOld[0] {
		return fmt.Errorf("update ref %q: %w (expected %q, found %q)", name, ErrRefCASMismatch, expectedOld[0], oldHash)
	}

	if _, err := lockFile.WriteString(string(h) + "\n"); err != nil {
		return fsError("update ref: write", name, err)
	}
	if err := lockFile.Sync(); err != nil {
		return fsError("update ref: sync", name, err)
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return fsError("update ref: close", name, err)
	}
	lockFile = nil

	if err := os.Rename(lockPath, refPath); err != nil {
		return fsError("update ref: rename", name, err)
	}
	cleanupLock = false

	if err := r.appendReflog(name, oldHash, h, reason); err != nil {
		return &RefUpdateReflogError{Ref: name, OldHash: oldHash, NewHash: h, Err: err}
	}
	return nil
}

// UpdateHead moves whatever HEAD points at: the branch when HEAD is symbolic,
// HEAD itself when detached.
func (r *Repo) UpdateHead(h object.Hash, reason string) error {
	head, err := r.Head()
	if err != nil {
		return err
	}
	if head.Symbolic {
		return r.UpdateRefCAS(head.Target, h, reason, head.Hash)
	}
	return r.UpdateRefCAS("HEAD", h, reason, head.Hash)
}

// DeleteRef removes a ref and its reflog.
func (r *Repo) DeleteRef(name string) error {
	if !strings.HasPrefix(name, "refs/") {
		return fmt.Errorf("delete ref %q: not a full ref name", name)
	}
	refPath := r.gritPath(filepath.FromSlash(name))
	if err := os.Remove(refPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("delete ref %q: %w", name, ErrNotFound)
		}
		return fsError("delete ref", name, err)
	}
	_ = os.Remove(r.gritPath("logs", filepath.FromSlash(name)))
	r.removeEmptyDirsUpTo(filepath.Dir(refPath), r.gritPath("refs"))
	return nil
}

func acquireLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(lockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
			}
			time.Sleep(lockRetryDelay)
			continue
		}
		return nil, err
	}
}

func readRefHash(refPath string) (object.Hash, error) {
	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) || isDir(refPath) {
			return "", nil
		}
		return "", err
	}
	return object.Hash(strings.TrimSpace(string(data))), nil
}

// writeFileAtomic writes data to a temp file next to path and renames it
// into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fsError("mkdir", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fsError("tmpfile", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fsError("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fsError("close", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fsError("rename", path, err)
	}
	return nil
}

// removeEmptyDirsUpTo removes empty directories from dir upward, stopping at
// (and never removing) stop.
func (r *Repo) removeEmptyDirsUpTo(dir, stop string) {
	for dir != stop && strings.HasPrefix(dir, stop+string(filepath.Separator)) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if os.Remove(dir) != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
