package repo

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/odvcencio/grit/pkg/object"
)

// State is the in-progress operation recorded on disk.
type State int

const (
	StateNone State = iota
	StateMerge
	StateRebaseMerge
	StateRebaseInteractive
	StateCherryPick
	StateRevert
	StateBisect
)

func (s State) String() string {
	switch s {
	case StateMerge:
		return "merge"
	case StateRebaseMerge:
		return "rebase"
	case StateRebaseInteractive:
		return "interactive rebase"
	case StateCherryPick:
		return "cherry-pick"
	case StateRevert:
		return "revert"
	case StateBisect:
		return "bisect"
	default:
		return "none"
	}
}

// IsRebase reports whether s is one of the rebase states.
func (s State) IsRebase() bool {
	return s == StateRebaseMerge || s == StateRebaseInteractive
}

const (
	mergeHeadFile      = "MERGE_HEAD"
	mergeMsgFile       = "MERGE_MSG"
	mergeModeFile      = "MERGE_MODE"
	origHeadFile       = "ORIG_HEAD"
	cherryPickHeadFile = "CHERRY_PICK_HEAD"
	revertHeadFile     = "REVERT_HEAD"
	bisectLogFile      = "BISECT_LOG"
	rebaseMergeDir     = "rebase-merge"
	rebaseApplyDir     = "rebase-apply"
)

// State derives the current repository state from the marker files under
// .grit/.
func (r *Repo) State() State {
	if isDir(r.gritPath(rebaseMergeDir)) {
		if exists(r.gritPath(rebaseMergeDir, "interactive")) {
			return StateRebaseInteractive
		}
		return StateRebaseMerge
	}
	switch {
	case exists(r.gritPath(mergeHeadFile)):
		return StateMerge
	case exists(r.gritPath(cherryPickHeadFile)):
		return StateCherryPick
	case exists(r.gritPath(revertHeadFile)):
		return StateRevert
	case exists(r.gritPath(bisectLogFile)):
		return StateBisect
	}
	return StateNone
}

// StateCleanup removes every in-progress marker. Failures are aggregated so
// that one stubborn file does not leave the others behind.
func (r *Repo) StateCleanup() error {
	var result *multierror.Error
	for _, name := range []string{mergeHeadFile, mergeMsgFile, mergeModeFile, cherryPickHeadFile, revertHeadFile, bisectLogFile} {
		if err := os.Remove(r.gritPath(name)); err != nil && !os.IsNotExist(err) {
			result = multierror.Append(result, fsError("state cleanup", name, err))
		}
	}
	for _, dir := range []string{rebaseMergeDir, rebaseApplyDir} {
		if err := os.RemoveAll(r.gritPath(dir)); err != nil {
			result = multierror.Append(result, fsError("state cleanup", dir, err))
		}
	}
	return result.ErrorOrNil()
}

// WriteMergeState records an in-progress merge of heads: MERGE_HEAD lists
// the heads one per line, MERGE_MSG holds the prepared message and
// MERGE_MODE records "no-ff" when a fast-forward was refused.
func (r *Repo) WriteMergeState(heads []object.Hash, message string, noFF bool) error {
	if len(heads) == 0 {
		return fmt.Errorf("write merge state: no heads")
	}
	var b strings.Builder
	for _, h := range heads {
		b.WriteString(string(h))
		b.WriteByte('\n')
	}
	if err := writeFileAtomic(r.gritPath(mergeHeadFile), []byte(b.String())); err != nil {
		return fmt.Errorf("write merge state: %w", err)
	}
	if err := writeFileAtomic(r.gritPath(mergeMsgFile), []byte(message)); err != nil {
		return fmt.Errorf("write merge state: %w", err)
	}
	mode := ""
	if noFF {
		mode = "no-ff"
	}
	if err := writeFileAtomic(r.gritPath(mergeModeFile), []byte(mode)); err != nil {
		return fmt.Errorf("write merge state: %w", err)
	}
	return nil
}

// MergeHeads reads MERGE_HEAD. It returns ErrNotFound when no merge is in
// progress.
func (r *Repo) MergeHeads() ([]object.Hash, error) {
	f, err := os.Open(r.gritPath(mergeHeadFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("read %s: %w", mergeHeadFile, ErrNotFound)
		}
		return nil, fsError("read", mergeHeadFile, err)
	}
	defer f.Close()

	var heads []object.Hash
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			heads = append(heads, object.Hash(line))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fsError("read", mergeHeadFile, err)
	}
	return heads, nil
}

// MergeMessage reads MERGE_MSG, or "" when absent.
func (r *Repo) MergeMessage() (string, error) {
	data, err := os.ReadFile(r.gritPath(mergeMsgFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fsError("read", mergeMsgFile, err)
	}
	return string(data), nil
}

// OrigHead reads ORIG_HEAD, the HEAD recorded before the last merge or
// reset.
func (r *Repo) OrigHead() (object.Hash, error) {
	h, err := readRefHash(r.gritPath(origHeadFile))
	if err != nil {
		return "", fsError("read", origHeadFile, err)
	}
	if h == "" {
		return "", fmt.Errorf("read %s: %w", origHeadFile, ErrNotFound)
	}
	return h, nil
}

func (r *Repo) writeOrigHead(h object.Hash) error {
	if h == "" {
		return nil
	}
	return writeFileAtomic(r.gritPath(origHeadFile), []byte(string(h)+"\n"))
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
