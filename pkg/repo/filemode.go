package repo

import (
	"os"
	"path/filepath"

	"github.com/odvcencio/grit/pkg/object"
)

func modeFromFileInfo(info os.FileInfo) string {
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		return object.TreeModeSymlink
	case info.Mode()&0o111 != 0:
		return object.TreeModeExecutable
	}
	return object.TreeModeFile
}

func normalizeFileMode(mode string) string {
	switch mode {
	case object.TreeModeExecutable, object.TreeModeSymlink:
		return mode
	}
	return object.TreeModeFile
}

func filePermFromMode(mode string) os.FileMode {
	if normalizeFileMode(mode) == object.TreeModeExecutable {
		return 0o755
	}
	return 0o644
}

// isTypeChange reports whether two modes differ in kind (regular file
// versus symlink), not just in the executable bit.
func isTypeChange(a, b string) bool {
	return (normalizeFileMode(a) == object.TreeModeSymlink) != (normalizeFileMode(b) == object.TreeModeSymlink)
}

// readWorktreeFile returns the blob content and mode of a worktree path.
// Symlinks are stored as their target string.
func readWorktreeFile(abs string) ([]byte, string, os.FileInfo, error) {
	info, err := os.Lstat(abs)
	if err != nil {
		return nil, "", nil, err
	}
	mode := modeFromFileInfo(info)
	if mode == object.TreeModeSymlink {
		target, err := os.Readlink(abs)
		if err != nil {
			return nil, "", nil, err
		}
		return []byte(filepath.ToSlash(target)), mode, info, nil
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, "", nil, err
	}
	return data, mode, info, nil
}

// ReadWorktreeFile returns the content and mode of a working tree path
// the way it would be staged. Missing files match os.ErrNotExist.
func (r *Repo) ReadWorktreeFile(rel string) ([]byte, string, error) {
	data, mode, _, err := readWorktreeFile(r.worktreePath(rel))
	if err != nil {
		return nil, "", fsError("read", rel, err)
	}
	return data, mode, nil
}

// writeWorktreeFile materializes blob content at abs, replacing whatever is
// there.
func writeWorktreeFile(abs string, data []byte, mode string) error {
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	if info, err := os.Lstat(abs); err == nil {
		if info.IsDir() {
			if err := os.RemoveAll(abs); err != nil {
				return err
			}
		} else if info.Mode()&os.ModeSymlink != 0 || normalizeFileMode(mode) == object.TreeModeSymlink {
			if err := os.Remove(abs); err != nil {
				return err
			}
		}
	}
	if normalizeFileMode(mode) == object.TreeModeSymlink {
		return os.Symlink(filepath.FromSlash(string(data)), abs)
	}
	if err := os.WriteFile(abs, data, filePermFromMode(mode)); err != nil {
		return err
	}
	// WriteFile keeps the permissions of an existing file.
	return os.Chmod(abs, filePermFromMode(mode))
}
