package repo

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/odvcencio/grit/pkg/diff3"
	"github.com/odvcencio/grit/pkg/object"
)

// DeltaStatus classifies one path-level difference.
type DeltaStatus int

const (
	DeltaUnmodified DeltaStatus = iota
	DeltaAdded
	DeltaDeleted
	DeltaModified
	DeltaRenamed
	DeltaTypeChange
	DeltaUntracked
	DeltaIgnored
	DeltaConflicted
)

func (s DeltaStatus) String() string {
	switch s {
	case DeltaAdded:
		return "added"
	case DeltaDeleted:
		return "deleted"
	case DeltaModified:
		return "modified"
	case DeltaRenamed:
		return "renamed"
	case DeltaTypeChange:
		return "typechange"
	case DeltaUntracked:
		return "untracked"
	case DeltaIgnored:
		return "ignored"
	case DeltaConflicted:
		return "conflicted"
	default:
		return "unmodified"
	}
}

// Delta is one difference between two sides of a comparison. Added,
// untracked and ignored deltas only carry the new side; deleted deltas only
// the old side. Ignored directories are reported with a trailing slash.
type Delta struct {
	Status     DeltaStatus
	OldPath    string
	NewPath    string
	OldHash    object.Hash
	NewHash    object.Hash
	OldMode    string
	NewMode    string
	Similarity int
}

// Path returns the path the delta is reported under.
func (d Delta) Path() string {
	if d.NewPath != "" {
		return d.NewPath
	}
	return d.OldPath
}

// DefaultRenameThreshold is the minimum similarity for a rename pairing.
const DefaultRenameThreshold = 50

// maxRenameCandidates bounds the added x deleted matrix scored for
// similarity; beyond it only exact renames are detected.
const maxRenameCandidates = 10_000

// DiffOptions tunes a comparison.
type DiffOptions struct {
	// RenameThreshold is the minimum similarity (1-100) for two paths to be
	// paired as a rename. Zero selects DefaultRenameThreshold; a negative
	// value disables rename detection.
	RenameThreshold  int
	IncludeUntracked bool
	IncludeIgnored   bool
}

func (o DiffOptions) threshold() int {
	switch {
	case o.RenameThreshold == 0:
		return DefaultRenameThreshold
	case o.RenameThreshold > 100:
		return 100
	}
	return o.RenameThreshold
}

type fileState struct {
	hash object.Hash
	mode string
}

type contentFunc func(path string, st fileState) ([]byte, error)

// DiffTrees compares two trees. Either hash may be empty (the empty tree).
func (r *Repo) DiffTrees(oldTree, newTree object.Hash, opts DiffOptions) ([]Delta, error) {
	oldFiles, err := r.treeStates(oldTree)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}
	newFiles, err := r.treeStates(newTree)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}
	return r.diffStates(oldFiles, newFiles, r.blobContent, r.blobContent, opts.threshold())
}

// DiffTreeToIndex compares a tree with the index. Conflicted index entries
// are left out; DiffIndexToWorkdir reports them.
func (r *Repo) DiffTreeToIndex(tree object.Hash, stg *Staging, opts DiffOptions) ([]Delta, error) {
	oldFiles, err := r.treeStates(tree)
	if err != nil {
		return nil, fmt.Errorf("diff tree to index: %w", err)
	}
	newFiles := make(map[string]fileState, len(stg.Entries))
	for p, e := range stg.Entries {
		if e.Conflict != nil {
			if old, ok := oldFiles[p]; ok {
				newFiles[p] = old
			}
			continue
		}
		newFiles[p] = fileState{hash: e.BlobHash, mode: normalizeFileMode(e.Mode)}
	}
	return r.diffStates(oldFiles, newFiles, r.blobContent, r.blobContent, opts.threshold())
}

// DiffIndexToWorkdir compares the index with the working tree. Index paths
// missing on disk are deleted; with rename detection they may pair with an
// untracked file. Conflicted entries are reported as DeltaConflicted.
func (r *Repo) DiffIndexToWorkdir(stg *Staging, opts DiffOptions) ([]Delta, error) {
	scan, err := r.scanWorktree(stg, opts.IncludeIgnored)
	if err != nil {
		return nil, fmt.Errorf("diff index to workdir: %w", err)
	}

	var deltas []Delta
	deleted := make(map[string]fileState)
	for p, e := range stg.Entries {
		if e.Conflict != nil {
			deltas = append(deltas, Delta{Status: DeltaConflicted, OldPath: p, NewPath: p, OldHash: e.BlobHash, OldMode: e.Mode})
			continue
		}
		idx := fileState{hash: e.BlobHash, mode: normalizeFileMode(e.Mode)}
		if _, onDisk := scan.tracked[p]; !onDisk {
			deleted[p] = idx
			continue
		}
		work, err := r.worktreeState(e)
		if err != nil {
			return nil, fmt.Errorf("diff index to workdir: %w", err)
		}
		if d, changed := compareStates(p, idx, work); changed {
			deltas = append(deltas, d)
		}
	}

	untracked := make(map[string]fileState, len(scan.untracked))
	threshold := opts.threshold()
	if threshold > 0 && len(deleted) > 0 {
		for _, p := range scan.untracked {
			data, mode, _, err := readWorktreeFile(r.worktreePath(p))
			if err != nil {
				return nil, fsError("read", p, err)
			}
			untracked[p] = fileState{hash: object.HashObject(object.TypeBlob, data), mode: mode}
		}
	}
	pairs, err := r.detectRenames(deleted, untracked, r.blobContent, r.worktreeContent, threshold)
	if err != nil {
		return nil, fmt.Errorf("diff index to workdir: %w", err)
	}
	consumed := make(map[string]bool, len(pairs))
	for _, pr := range pairs {
		old, cur := deleted[pr.oldPath], untracked[pr.newPath]
		deltas = append(deltas, Delta{
			Status: DeltaRenamed, OldPath: pr.oldPath, NewPath: pr.newPath,
			OldHash: old.hash, NewHash: cur.hash, OldMode: old.mode, NewMode: cur.mode,
			Similarity: pr.similarity,
		})
		delete(deleted, pr.oldPath)
		consumed[pr.newPath] = true
	}
	for p, st := range deleted {
		deltas = append(deltas, Delta{Status: DeltaDeleted, OldPath: p, OldHash: st.hash, OldMode: st.mode})
	}
	if opts.IncludeUntracked {
		for _, p := range scan.untracked {
			if !consumed[p] {
				deltas = append(deltas, Delta{Status: DeltaUntracked, NewPath: p})
			}
		}
	}
	if opts.IncludeIgnored {
		for _, p := range scan.ignored {
			deltas = append(deltas, Delta{Status: DeltaIgnored, NewPath: p})
		}
	}

	sortDeltas(deltas)
	return deltas, nil
}

func (r *Repo) diffStates(oldFiles, newFiles map[string]fileState, oldContent, newContent contentFunc, threshold int) ([]Delta, error) {
	var deltas []Delta
	added := make(map[string]fileState)
	deleted := make(map[string]fileState)

	for p, cur := range newFiles {
		old, ok := oldFiles[p]
		if !ok {
			added[p] = cur
			continue
		}
		if d, changed := compareStates(p, old, cur); changed {
			deltas = append(deltas, d)
		}
	}
	for p, old := range oldFiles {
		if _, ok := newFiles[p]; !ok {
			deleted[p] = old
		}
	}

	pairs, err := r.detectRenames(deleted, added, oldContent, newContent, threshold)
	if err != nil {
		return nil, err
	}
	for _, pr := range pairs {
		old, cur := deleted[pr.oldPath], added[pr.newPath]
		deltas = append(deltas, Delta{
			Status: DeltaRenamed, OldPath: pr.oldPath, NewPath: pr.newPath,
			OldHash: old.hash, NewHash: cur.hash, OldMode: old.mode, NewMode: cur.mode,
			Similarity: pr.similarity,
		})
		delete(deleted, pr.oldPath)
		delete(added, pr.newPath)
	}
	for p, st := range added {
		deltas = append(deltas, Delta{Status: DeltaAdded, NewPath: p, NewHash: st.hash, NewMode: st.mode})
	}
	for p, st := range deleted {
		deltas = append(deltas, Delta{Status: DeltaDeleted, OldPath: p, OldHash: st.hash, OldMode: st.mode})
	}

	sortDeltas(deltas)
	return deltas, nil
}

func compareStates(p string, old, cur fileState) (Delta, bool) {
	if old.hash == cur.hash && old.mode == cur.mode {
		return Delta{}, false
	}
	status := DeltaModified
	if isTypeChange(old.mode, cur.mode) {
		status = DeltaTypeChange
	}
	return Delta{
		Status: status, OldPath: p, NewPath: p,
		OldHash: old.hash, NewHash: cur.hash, OldMode: old.mode, NewMode: cur.mode,
	}, true
}

func sortDeltas(deltas []Delta) {
	sort.Slice(deltas, func(i, j int) bool {
		if deltas[i].Path() != deltas[j].Path() {
			return deltas[i].Path() < deltas[j].Path()
		}
		return deltas[i].Status < deltas[j].Status
	})
}

type renamePair struct {
	oldPath, newPath string
	similarity       int
}

// detectRenames pairs deleted and added paths. Identical content pairs
// first; the remainder is scored by line similarity and paired greedily,
// best score first.
func (r *Repo) detectRenames(deleted, added map[string]fileState, oldContent, newContent contentFunc, threshold int) ([]renamePair, error) {
	if threshold < 0 || len(deleted) == 0 || len(added) == 0 {
		return nil, nil
	}

	newByKey := make(map[string][]string)
	oldByKey := make(map[string][]string)
	for p, st := range added {
		key := renameMatchKey(st.hash, st.mode)
		newByKey[key] = append(newByKey[key], p)
	}
	for p, st := range deleted {
		key := renameMatchKey(st.hash, st.mode)
		oldByKey[key] = append(oldByKey[key], p)
	}
	newToOld, _ := pairRenameCandidates(newByKey, oldByKey)

	var pairs []renamePair
	usedOld := make(map[string]bool)
	usedNew := make(map[string]bool)
	for newPath, oldPath := range newToOld {
		pairs = append(pairs, renamePair{oldPath: oldPath, newPath: newPath, similarity: 100})
		usedOld[oldPath] = true
		usedNew[newPath] = true
	}

	var olds, news []string
	for p := range deleted {
		if !usedOld[p] {
			olds = append(olds, p)
		}
	}
	for p := range added {
		if !usedNew[p] {
			news = append(news, p)
		}
	}
	if len(olds) == 0 || len(news) == 0 || len(olds)*len(news) > maxRenameCandidates {
		return sortPairs(pairs), nil
	}

	oldData := make(map[string][]byte, len(olds))
	for _, p := range olds {
		data, err := oldContent(p, deleted[p])
		if err != nil {
			return nil, err
		}
		oldData[p] = data
	}

	var scored []renamePair
	for _, np := range news {
		data, err := newContent(np, added[np])
		if err != nil {
			return nil, err
		}
		for _, op := range olds {
			if isTypeChange(deleted[op].mode, added[np].mode) {
				continue
			}
			if score := diff3.Similarity(oldData[op], data); score >= threshold {
				scored = append(scored, renamePair{oldPath: op, newPath: np, similarity: score})
			}
		}
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].similarity != scored[j].similarity {
			return scored[i].similarity > scored[j].similarity
		}
		if scored[i].newPath != scored[j].newPath {
			return scored[i].newPath < scored[j].newPath
		}
		return scored[i].oldPath < scored[j].oldPath
	})
	for _, pr := range scored {
		if usedOld[pr.oldPath] || usedNew[pr.newPath] {
			continue
		}
		usedOld[pr.oldPath] = true
		usedNew[pr.newPath] = true
		pairs = append(pairs, pr)
	}
	return sortPairs(pairs), nil
}

func sortPairs(pairs []renamePair) []renamePair {
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].newPath < pairs[j].newPath })
	return pairs
}

func pairRenameCandidates(newByKey, oldByKey map[string][]string) (map[string]string, map[string]string) {
	newToOld := make(map[string]string)
	oldToNew := make(map[string]string)

	for key, newPaths := range newByKey {
		oldPaths := oldByKey[key]
		if len(oldPaths) == 0 {
			continue
		}
		sort.Strings(newPaths)
		sort.Strings(oldPaths)
		for i := 0; i < min(len(newPaths), len(oldPaths)); i++ {
			newToOld[newPaths[i]] = oldPaths[i]
			oldToNew[oldPaths[i]] = newPaths[i]
		}
	}
	return newToOld, oldToNew
}

func renameMatchKey(blobHash object.Hash, mode string) string {
	return string(blobHash) + "|" + normalizeFileMode(mode)
}

func (r *Repo) treeStates(tree object.Hash) (map[string]fileState, error) {
	files, err := r.FlattenTree(tree)
	if err != nil {
		return nil, err
	}
	m := make(map[string]fileState, len(files))
	for _, f := range files {
		m[f.Path] = fileState{hash: f.BlobHash, mode: normalizeFileMode(f.Mode)}
	}
	return m, nil
}

func (r *Repo) blobContent(_ string, st fileState) ([]byte, error) {
	b, err := r.Store.ReadBlob(st.hash)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", st.hash, err)
	}
	return b.Data, nil
}

func (r *Repo) worktreeContent(p string, _ fileState) ([]byte, error) {
	data, _, _, err := readWorktreeFile(r.worktreePath(p))
	if err != nil {
		return nil, fsError("read", p, err)
	}
	return data, nil
}

// worktreeState hashes the worktree copy of an index entry, trusting stat
// data when it is safe to.
func (r *Repo) worktreeState(e *StagingEntry) (fileState, error) {
	abs := r.worktreePath(e.Path)
	info, err := os.Lstat(abs)
	if err != nil {
		return fileState{}, fsError("stat", e.Path, err)
	}
	mode := modeFromFileInfo(info)
	if stagingStatMatchesWorktree(e, info, mode) {
		return fileState{hash: e.BlobHash, mode: mode}, nil
	}
	data, mode, _, err := readWorktreeFile(abs)
	if err != nil {
		return fileState{}, fsError("read", e.Path, err)
	}
	return fileState{hash: object.HashObject(object.TypeBlob, data), mode: mode}, nil
}

const statusRacyCleanWindow = 2 * time.Second

func stagingStatMatchesWorktree(se *StagingEntry, info os.FileInfo, workMode string) bool {
	if se == nil || se.Size < 0 {
		return false
	}
	if normalizeFileMode(se.Mode) != normalizeFileMode(workMode) || se.Size != info.Size() {
		return false
	}
	if isRacyCleanModTime(info.ModTime()) {
		return false
	}
	// Coarse (second-level) mtimes cannot tell same-size edits apart.
	if info.ModTime().Nanosecond() == 0 {
		return false
	}
	return se.ModTime == info.ModTime().UnixNano()
}

func isRacyCleanModTime(modTime time.Time) bool {
	now := time.Now()
	if modTime.After(now) {
		return true
	}
	return now.Sub(modTime) < statusRacyCleanWindow
}

type worktreeScan struct {
	tracked   map[string]struct{} // index paths present on disk
	untracked []string
	ignored   []string
}

// scanWorktree walks the working tree. Ignored directories that hold no
// tracked file are skipped and, when requested, reported once as "dir/".
func (r *Repo) scanWorktree(stg *Staging, includeIgnored bool) (*worktreeScan, error) {
	ic := NewIgnoreChecker(r.RootDir)
	trackedDirs := make(map[string]bool)
	for p := range stg.Entries {
		for dir := filepath.ToSlash(filepath.Dir(p)); dir != "."; dir = filepath.ToSlash(filepath.Dir(dir)) {
			trackedDirs[dir] = true
		}
	}

	scan := &worktreeScan{tracked: make(map[string]struct{})}
	err := filepath.WalkDir(r.RootDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(r.RootDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if rel == DirName {
			return fs.SkipDir
		}

		if d.IsDir() {
			if ic.IsIgnored(rel, true) && !trackedDirs[rel] {
				if includeIgnored {
					scan.ignored = append(scan.ignored, rel+"/")
				}
				return fs.SkipDir
			}
			return nil
		}

		if _, ok := stg.Entries[rel]; ok {
			scan.tracked[rel] = struct{}{}
			return nil
		}
		if ic.IsIgnored(rel, false) {
			if includeIgnored {
				scan.ignored = append(scan.ignored, rel)
			}
			return nil
		}
		scan.untracked = append(scan.untracked, rel)
		return nil
	})
	if err != nil {
		return nil, fsError("walk worktree", r.RootDir, err)
	}
	sort.Strings(scan.untracked)
	sort.Strings(scan.ignored)
	return scan, nil
}
