package porcelain

import (
	"context"
	"path"
	"sort"
	"strings"

	"github.com/odvcencio/grit/pkg/logging"
	"github.com/odvcencio/grit/pkg/object"
	"github.com/odvcencio/grit/pkg/repo"
)

// Bucket is the status section a path is reported in. Every changed path
// lands in exactly one bucket.
type Bucket int

const (
	BucketToBeCommitted Bucket = iota
	BucketNotStaged
	BucketUnmerged
	BucketUntracked
	BucketIgnored
)

func (b Bucket) String() string {
	switch b {
	case BucketToBeCommitted:
		return "Changes to be committed:"
	case BucketNotStaged:
		return "Changes not staged for commit:"
	case BucketUnmerged:
		return "Unmerged paths:"
	case BucketUntracked:
		return "Untracked files:"
	case BucketIgnored:
		return "Ignored files:"
	}
	return "unknown"
}

// Buckets lists the buckets in display order.
var Buckets = []Bucket{BucketToBeCommitted, BucketUnmerged, BucketNotStaged, BucketUntracked, BucketIgnored}

// ChangeKind describes how a path changed on one side.
type ChangeKind int

const (
	ChangeNone ChangeKind = iota
	ChangeNew
	ChangeModified
	ChangeDeleted
	ChangeRenamed
	ChangeTypeChange
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeNew:
		return "new file"
	case ChangeModified:
		return "modified"
	case ChangeDeleted:
		return "deleted"
	case ChangeRenamed:
		return "renamed"
	case ChangeTypeChange:
		return "typechange"
	}
	return ""
}

// Code is the one-letter short status code.
func (k ChangeKind) Code() byte {
	switch k {
	case ChangeNew:
		return 'A'
	case ChangeModified:
		return 'M'
	case ChangeDeleted:
		return 'D'
	case ChangeRenamed:
		return 'R'
	case ChangeTypeChange:
		return 'T'
	}
	return ' '
}

func changeKindOf(s repo.DeltaStatus) ChangeKind {
	switch s {
	case repo.DeltaAdded:
		return ChangeNew
	case repo.DeltaModified:
		return ChangeModified
	case repo.DeltaDeleted:
		return ChangeDeleted
	case repo.DeltaRenamed:
		return ChangeRenamed
	case repo.DeltaTypeChange:
		return ChangeTypeChange
	}
	return ChangeNone
}

// StatusEntry is one reported path.
type StatusEntry struct {
	Bucket  Bucket
	Kind    ChangeKind
	OldPath string
	NewPath string
	// Worktree is the unstaged change of a path that also has staged
	// changes; ChangeNone otherwise.
	Worktree        ChangeKind
	WorktreeNewPath string
	// Conflict holds the stages of an unmerged path.
	Conflict *repo.Conflict
}

// Path returns the path the entry is listed under. Collapsed untracked and
// ignored directories end in "/".
func (e StatusEntry) Path() string {
	if e.NewPath != "" {
		return e.NewPath
	}
	return e.OldPath
}

// ShortCode returns the two-column short status code.
func (e StatusEntry) ShortCode() string {
	switch e.Bucket {
	case BucketToBeCommitted:
		return string([]byte{e.Kind.Code(), e.Worktree.Code()})
	case BucketNotStaged:
		return string([]byte{' ', e.Kind.Code()})
	case BucketUnmerged:
		return unmergedCode(e.Conflict)
	case BucketUntracked:
		return "??"
	case BucketIgnored:
		return "!!"
	}
	return "  "
}

// Label describes an unmerged entry the way the long format shows it.
func (e StatusEntry) Label() string {
	if e.Bucket != BucketUnmerged {
		return e.Kind.String()
	}
	switch unmergedCode(e.Conflict) {
	case "AA":
		return "both added"
	case "UD":
		return "deleted by them"
	case "DU":
		return "deleted by us"
	}
	return "both modified"
}

func unmergedCode(c *repo.Conflict) string {
	switch {
	case c == nil:
		return "UU"
	case c.Base == "" && c.Ours != "" && c.Theirs != "":
		return "AA"
	case c.Theirs == "":
		return "UD"
	case c.Ours == "":
		return "DU"
	}
	return "UU"
}

// Status is a classified snapshot of the repository.
type Status struct {
	Branch   string
	Head     object.Hash
	Detached bool
	Unborn   bool
	State    repo.State
	Entries  []StatusEntry
}

// In returns the entries of bucket b in path order.
func (st *Status) In(b Bucket) []StatusEntry {
	var out []StatusEntry
	for _, e := range st.Entries {
		if e.Bucket == b {
			out = append(out, e)
		}
	}
	return out
}

// Clean reports whether nothing is staged, unstaged or unmerged.
func (st *Status) Clean() bool {
	for _, e := range st.Entries {
		if e.Bucket == BucketToBeCommitted || e.Bucket == BucketNotStaged || e.Bucket == BucketUnmerged {
			return false
		}
	}
	return true
}

// StatusOptions selects optional buckets.
type StatusOptions struct {
	Ignored     bool
	NoUntracked bool
}

// StatusClassifier partitions the differences between HEAD, index and
// working tree.
type StatusClassifier struct {
	s *Session
}

// Classify computes the status. Renames are paired with the effective
// status.rename_threshold on both sides.
func (c *StatusClassifier) Classify(ctx context.Context, opts StatusOptions) (*Status, error) {
	const op = "status"
	r := c.s.repo
	log := c.s.logger(ctx, op)

	head, err := r.Head()
	if err != nil {
		return nil, Wrap(op, err)
	}
	st := &Status{
		Branch:   head.Branch(),
		Head:     head.Hash,
		Detached: head.Detached(),
		Unborn:   head.Unborn,
		State:    r.State(),
	}
	headTree, err := r.CommitTree(head.Hash)
	if err != nil {
		return nil, Wrap(op, err)
	}
	headFiles, err := r.TreeFiles(headTree)
	if err != nil {
		return nil, Wrap(op, err)
	}
	stg, err := r.ReadStaging()
	if err != nil {
		return nil, Wrap(op, err)
	}

	diffOpts := repo.DiffOptions{
		RenameThreshold:  c.s.Settings().Status.RenameThreshold,
		IncludeUntracked: !opts.NoUntracked,
		IncludeIgnored:   opts.Ignored,
	}
	staged, err := r.DiffTreeToIndex(headTree, stg, diffOpts)
	if err != nil {
		return nil, Wrap(op, err)
	}
	work, err := r.DiffIndexToWorkdir(stg, diffOpts)
	if err != nil {
		return nil, Wrap(op, err)
	}

	st.Entries = classify(staged, work, stg, headFiles)
	log.WithFields(logging.Fields{"staged": len(staged), "worktree": len(work), "entries": len(st.Entries)}).
		Debug("status classified")
	return st, nil
}

// classify builds the partition from the two diffs. A path with staged
// and unstaged changes is reported once, staged, carrying its worktree
// kind. Untracked files collapse to their shallowest untracked directory.
func classify(staged, work []repo.Delta, stg *repo.Staging, headFiles map[string]repo.TreeFileEntry) []StatusEntry {
	var entries []StatusEntry
	stagedAt := make(map[string]int)
	for _, d := range staged {
		stagedAt[d.Path()] = len(entries)
		entries = append(entries, StatusEntry{
			Bucket:  BucketToBeCommitted,
			Kind:    changeKindOf(d.Status),
			OldPath: d.OldPath,
			NewPath: d.NewPath,
		})
	}

	var untracked, ignored []string
	for _, d := range work {
		switch d.Status {
		case repo.DeltaConflicted:
			e := StatusEntry{Bucket: BucketUnmerged, OldPath: d.OldPath, NewPath: d.NewPath}
			if se := stg.Entries[d.OldPath]; se != nil {
				e.Conflict = se.Conflict
			}
			entries = append(entries, e)
		case repo.DeltaUntracked:
			untracked = append(untracked, d.NewPath)
		case repo.DeltaIgnored:
			ignored = append(ignored, d.NewPath)
		default:
			kind := changeKindOf(d.Status)
			if kind == ChangeNone {
				continue
			}
			// The index side of a worktree delta is its old path.
			if i, ok := stagedAt[d.OldPath]; ok {
				entries[i].Worktree = kind
				if kind == ChangeRenamed {
					entries[i].WorktreeNewPath = d.NewPath
				}
				continue
			}
			entries = append(entries, StatusEntry{
				Bucket:  BucketNotStaged,
				Kind:    kind,
				OldPath: d.OldPath,
				NewPath: d.NewPath,
			})
		}
	}

	tracked := make(map[string]bool)
	addAncestors := func(p string) {
		for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
			tracked[dir] = true
		}
	}
	for p := range headFiles {
		addAncestors(p)
	}
	for p := range stg.Entries {
		addAncestors(p)
	}
	for _, e := range entries {
		addAncestors(e.OldPath)
		addAncestors(e.NewPath)
	}

	seen := make(map[string]bool)
	for _, p := range untracked {
		reported := collapseUntracked(p, tracked)
		if seen[reported] {
			continue
		}
		seen[reported] = true
		entries = append(entries, StatusEntry{Bucket: BucketUntracked, NewPath: reported})
	}
	for _, p := range ignored {
		entries = append(entries, StatusEntry{Bucket: BucketIgnored, NewPath: p})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Bucket != entries[j].Bucket {
			return entries[i].Bucket < entries[j].Bucket
		}
		return entries[i].Path() < entries[j].Path()
	})
	return entries
}

// collapseUntracked returns the shallowest ancestor directory of p that is
// not tracked, as "dir/", or p itself when every ancestor is tracked.
func collapseUntracked(p string, tracked map[string]bool) string {
	parts := strings.Split(p, "/")
	for i := 1; i < len(parts); i++ {
		dir := strings.Join(parts[:i], "/")
		if !tracked[dir] {
			return dir + "/"
		}
	}
	return p
}
