package repo

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/odvcencio/grit/pkg/diff3"
	"github.com/odvcencio/grit/pkg/object"
)

// FileMergeReport records the merge outcome for a single file.
type FileMergeReport struct {
	Path      string
	Status    string // "clean", "conflict", "added", "deleted"
	Conflicts int
}

// MergedFile is one path of a tree merge result. Conflicted files carry
// the marker-annotated content as BlobHash and the three sides in Conflict.
type MergedFile struct {
	Path     string
	BlobHash object.Hash
	Mode     string
	Conflict *Conflict
}

// TreeMergeResult is the outcome of MergeTrees.
type TreeMergeResult struct {
	Files   map[string]MergedFile
	Reports []FileMergeReport
}

// Conflicts returns the sorted conflicted paths.
func (t *TreeMergeResult) Conflicts() []string {
	var paths []string
	for p, f := range t.Files {
		if f.Conflict != nil {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

// entries returns the clean files as tree entries. It is only meaningful
// when the result has no conflicts.
func (t *TreeMergeResult) entries() []TreeFileEntry {
	out := make([]TreeFileEntry, 0, len(t.Files))
	for _, f := range t.Files {
		out = append(out, TreeFileEntry{Path: f.Path, BlobHash: f.BlobHash, Mode: f.Mode})
	}
	return out
}

// MergeTrees merges three trees path by path. Paths changed on one side
// only take that side; add/add with different content, modify/delete and
// delete/modify are conflicts; files changed on both sides are merged line
// by line with diff3. Merged and marker blobs are written to the store.
func (r *Repo) MergeTrees(base, ours, theirs object.Hash, labels diff3.Labels) (*TreeMergeResult, error) {
	baseMap, err := r.TreeFiles(base)
	if err != nil {
		return nil, fmt.Errorf("merge trees: base: %w", err)
	}
	oursMap, err := r.TreeFiles(ours)
	if err != nil {
		return nil, fmt.Errorf("merge trees: ours: %w", err)
	}
	theirsMap, err := r.TreeFiles(theirs)
	if err != nil {
		return nil, fmt.Errorf("merge trees: theirs: %w", err)
	}

	res := &TreeMergeResult{Files: make(map[string]MergedFile)}
	take := func(p string, f TreeFileEntry, status string) {
		res.Files[p] = MergedFile{Path: p, BlobHash: f.BlobHash, Mode: normalizeFileMode(f.Mode)}
		res.Reports = append(res.Reports, FileMergeReport{Path: p, Status: status})
	}

	for _, p := range collectAllPaths(baseMap, oursMap, theirsMap) {
		b, inBase := baseMap[p]
		o, inOurs := oursMap[p]
		t, inTheirs := theirsMap[p]

		switch {
		case inOurs && inTheirs && sameFile(o, t):
			take(p, o, "clean")

		case inBase && inOurs && inTheirs:
			switch {
			case sameFile(o, b):
				take(p, t, "clean")
			case sameFile(t, b):
				take(p, o, "clean")
			default:
				if err := r.mergeContents(res, p, b.BlobHash, o, t, labels); err != nil {
					return nil, err
				}
			}

		case !inBase && inOurs && inTheirs:
			if err := r.mergeContents(res, p, "", o, t, labels); err != nil {
				return nil, err
			}

		case inBase && inOurs && !inTheirs:
			if sameFile(o, b) {
				res.Reports = append(res.Reports, FileMergeReport{Path: p, Status: "deleted"})
				continue
			}
			if err := r.recordDeleteConflict(res, p, b.BlobHash, o, TreeFileEntry{}, labels); err != nil {
				return nil, err
			}

		case inBase && !inOurs && inTheirs:
			if sameFile(t, b) {
				res.Reports = append(res.Reports, FileMergeReport{Path: p, Status: "deleted"})
				continue
			}
			if err := r.recordDeleteConflict(res, p, b.BlobHash, TreeFileEntry{}, t, labels); err != nil {
				return nil, err
			}

		case inOurs:
			take(p, o, "added")
		case inTheirs:
			take(p, t, "added")
		default:
			res.Reports = append(res.Reports, FileMergeReport{Path: p, Status: "deleted"})
		}
	}
	return res, nil
}

// mergeContents runs a line merge of two versions of p. A missing base
// (add/add) merges against empty content.
func (r *Repo) mergeContents(res *TreeMergeResult, p string, base object.Hash, ours, theirs TreeFileEntry, labels diff3.Labels) error {
	var baseData []byte
	if base != "" {
		var err error
		if baseData, err = r.readBlobData(base); err != nil {
			return fmt.Errorf("merge %q: %w", p, err)
		}
	}
	oursData, err := r.readBlobData(ours.BlobHash)
	if err != nil {
		return fmt.Errorf("merge %q: %w", p, err)
	}
	theirsData, err := r.readBlobData(theirs.BlobHash)
	if err != nil {
		return fmt.Errorf("merge %q: %w", p, err)
	}

	mode := mergeMode(base, ours.Mode, theirs.Mode)
	merged := diff3.MergeWithLabels(baseData, oursData, theirsData, labels)
	blob, err := r.Store.WriteBlob(&object.Blob{Data: merged.Merged})
	if err != nil {
		return fmt.Errorf("merge %q: write blob: %w", p, err)
	}

	f := MergedFile{Path: p, BlobHash: blob, Mode: mode}
	report := FileMergeReport{Path: p, Status: "clean"}
	if merged.HasConflicts {
		f.Conflict = &Conflict{Base: base, Ours: ours.BlobHash, Theirs: theirs.BlobHash}
		report.Status = "conflict"
		report.Conflicts = merged.Conflicts
	}
	res.Files[p] = f
	res.Reports = append(res.Reports, report)
	return nil
}

// mergeMode picks the executable bit: a side that changed it wins.
func mergeMode(base object.Hash, ours, theirs string) string {
	ours, theirs = normalizeFileMode(ours), normalizeFileMode(theirs)
	if ours == theirs || base == "" {
		return ours
	}
	if ours == object.TreeModeFile {
		return theirs
	}
	return ours
}

// recordDeleteConflict handles modify/delete: the surviving side is
// written between conflict markers so no change is lost silently.
func (r *Repo) recordDeleteConflict(res *TreeMergeResult, p string, base object.Hash, ours, theirs TreeFileEntry, labels diff3.Labels) error {
	var oursData, theirsData []byte
	var err error
	mode := normalizeFileMode(ours.Mode)
	if ours.BlobHash != "" {
		if oursData, err = r.readBlobData(ours.BlobHash); err != nil {
			return fmt.Errorf("merge %q: %w", p, err)
		}
	}
	if theirs.BlobHash != "" {
		if theirsData, err = r.readBlobData(theirs.BlobHash); err != nil {
			return fmt.Errorf("merge %q: %w", p, err)
		}
		mode = normalizeFileMode(theirs.Mode)
	}
	blob, err := r.Store.WriteBlob(&object.Blob{Data: renderFileConflict(oursData, theirsData, labels)})
	if err != nil {
		return fmt.Errorf("merge %q: write blob: %w", p, err)
	}
	res.Files[p] = MergedFile{
		Path: p, BlobHash: blob, Mode: mode,
		Conflict: &Conflict{Base: base, Ours: ours.BlobHash, Theirs: theirs.BlobHash},
	}
	res.Reports = append(res.Reports, FileMergeReport{Path: p, Status: "conflict", Conflicts: 1})
	return nil
}

func renderFileConflict(ours, theirs []byte, labels diff3.Labels) []byte {
	if labels.Ours == "" {
		labels.Ours = "ours"
	}
	if labels.Theirs == "" {
		labels.Theirs = "theirs"
	}
	var buf bytes.Buffer
	buf.WriteString("<<<<<<< " + labels.Ours + "\n")
	buf.Write(ours)
	if len(ours) > 0 && ours[len(ours)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.WriteString("=======\n")
	buf.Write(theirs)
	if len(theirs) > 0 && theirs[len(theirs)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.WriteString(">>>>>>> " + labels.Theirs + "\n")
	return buf.Bytes()
}

// MergeOptions tunes Merge.
type MergeOptions struct {
	// Labels name each head in conflict markers; a missing label falls
	// back to the abbreviated hash.
	Labels  []string
	Message string
	// NoFF is recorded in MERGE_MODE.
	NoFF bool
}

// MergeResult is the outcome of Merge.
type MergeResult struct {
	Files     []FileMergeReport
	Conflicts []string
	// Tree is the merged tree; empty when conflicts remain.
	Tree object.Hash
}

// Merge merges heads into HEAD. Several heads are merged one after
// another (octopus); only the last step may leave conflicts, an earlier
// conflicting step fails with ErrOctopusConflict before anything is
// written. The result is written to the working tree and index, with
// conflicted paths staged as unmerged, and MERGE_HEAD, MERGE_MSG and
// ORIG_HEAD record the merge. Local changes the merge would overwrite fail
// with a *CheckoutConflictError, also before any write.
func (r *Repo) Merge(heads []object.Hash, opts MergeOptions) (*MergeResult, error) {
	if len(heads) == 0 {
		return nil, fmt.Errorf("merge: no heads")
	}
	headHash, err := r.HeadHash()
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	oursTree, err := r.CommitTree(headHash)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	var (
		result  *TreeMergeResult
		reports []FileMergeReport
		tree    = oursTree
	)
	for i, h := range heads {
		base, err := r.FindMergeBase(headHash, h)
		if err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		baseTree, err := r.CommitTree(base)
		if err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		theirsTree, err := r.CommitTree(h)
		if err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}

		label := h.Short()
		if i < len(opts.Labels) && opts.Labels[i] != "" {
			label = opts.Labels[i]
		}
		result, err = r.MergeTrees(baseTree, tree, theirsTree, diff3.Labels{Ours: "HEAD", Theirs: label})
		if err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		reports = result.Reports

		conflicts := result.Conflicts()
		if len(conflicts) > 0 && i < len(heads)-1 {
			return nil, fmt.Errorf("merge %s: %w: %v", h.Short(), ErrOctopusConflict, conflicts)
		}
		if len(conflicts) == 0 {
			if tree, err = r.BuildTreeFromFiles(result.entries()); err != nil {
				return nil, fmt.Errorf("merge: %w", err)
			}
		}
	}

	if err := r.applyMergeResult(oursTree, result); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := r.writeOrigHead(headHash); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := r.WriteMergeState(heads, opts.Message, opts.NoFF); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	out := &MergeResult{Files: reports, Conflicts: result.Conflicts()}
	if len(out.Conflicts) == 0 {
		out.Tree = tree
	}
	return out, nil
}

// applyMergeResult writes every path whose merged state differs from the
// ours tree and updates the index to match. It refuses, before writing,
// when a touched path has local modifications.
func (r *Repo) applyMergeResult(oursTree object.Hash, result *TreeMergeResult) error {
	oursFiles, err := r.TreeFiles(oursTree)
	if err != nil {
		return err
	}
	stg, err := r.ReadStaging()
	if err != nil {
		return err
	}
	if stg.HasConflicts() {
		return ErrUnmerged
	}

	// Conflicted paths always differ from ours; present them to the safety
	// check as a placeholder so a dirty copy blocks.
	target := make(map[string]TreeFileEntry, len(result.Files))
	for p, f := range result.Files {
		target[p] = TreeFileEntry{Path: p, BlobHash: f.BlobHash, Mode: f.Mode}
	}
	blocking, _, err := r.blockingPaths(stg, oursFiles, target)
	if err != nil {
		return err
	}
	if len(blocking) > 0 {
		return &CheckoutConflictError{Paths: blocking}
	}

	var removes []string
	for p := range oursFiles {
		if _, ok := result.Files[p]; !ok {
			removes = append(removes, p)
		}
	}
	sort.Strings(removes)

	return r.UpdateStaging(func(s *Staging) error {
		for _, p := range removes {
			abs := r.worktreePath(p)
			if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
				return fsError("remove", p, err)
			}
			r.removeEmptyParents(filepath.Dir(abs))
			delete(s.Entries, p)
		}
		for _, p := range sortedKeys(result.Files) {
			f := result.Files[p]
			if o, ok := oursFiles[p]; ok && f.Conflict == nil && sameFile(o, TreeFileEntry{BlobHash: f.BlobHash, Mode: f.Mode}) {
				continue
			}
			entry, err := r.materialize(p, f.BlobHash, f.Mode)
			if err != nil {
				return err
			}
			entry.Conflict = f.Conflict
			s.Entries[p] = entry
		}
		return nil
	})
}

func (r *Repo) readBlobData(h object.Hash) ([]byte, error) {
	blob, err := r.Store.ReadBlob(h)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", h, err)
	}
	return blob.Data, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// collectAllPaths returns the sorted union of paths across three trees.
func collectAllPaths(base, ours, theirs map[string]TreeFileEntry) []string {
	seen := make(map[string]bool, len(ours))
	for _, m := range []map[string]TreeFileEntry{base, ours, theirs} {
		for p := range m {
			seen[p] = true
		}
	}
	return sortedKeys(seen)
}
