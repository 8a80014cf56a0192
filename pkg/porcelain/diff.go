package porcelain

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/odvcencio/grit/pkg/diff"
	"github.com/odvcencio/grit/pkg/logging"
	"github.com/odvcencio/grit/pkg/object"
	"github.com/odvcencio/grit/pkg/repo"
)

// DiffOptions selects the two sides Diff compares.
type DiffOptions struct {
	// Cached compares HEAD with the index. Otherwise the index is compared
	// with the working tree.
	Cached bool
	// Paths limits the output to these files or directories.
	Paths []string
	// Context is the number of unchanged lines around a change. Negative
	// selects diff.DefaultContext.
	Context int
}

// DiffOutcome is the result of Diff.
type DiffOutcome struct {
	Files []*diff.FileDiff
	// Unmerged lists conflicted paths, which have no single index side.
	Unmerged []string
}

// Diff reports line-level changes between HEAD and the index, or between
// the index and the working tree. Untracked files are never shown.
func (s *Session) Diff(ctx context.Context, opts DiffOptions) (*DiffOutcome, error) {
	const op = "diff"
	r := s.repo
	stg, err := r.ReadStaging()
	if err != nil {
		return nil, Wrap(op, err)
	}
	filter, err := s.pathFilter(op, opts.Paths)
	if err != nil {
		return nil, err
	}
	contextLines := opts.Context
	if contextLines < 0 {
		contextLines = diff.DefaultContext
	}

	var deltas []repo.Delta
	if opts.Cached {
		head, err := r.Head()
		if err != nil {
			return nil, Wrap(op, err)
		}
		headTree, err := r.CommitTree(head.Hash)
		if err != nil {
			return nil, Wrap(op, err)
		}
		threshold := s.Settings().Status.RenameThreshold
		deltas, err = r.DiffTreeToIndex(headTree, stg, repo.DiffOptions{RenameThreshold: threshold})
		if err != nil {
			return nil, Wrap(op, err)
		}
	} else {
		deltas, err = r.DiffIndexToWorkdir(stg, repo.DiffOptions{RenameThreshold: -1})
		if err != nil {
			return nil, Wrap(op, err)
		}
	}

	out := &DiffOutcome{}
	for _, d := range deltas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !filter(d.OldPath) && !filter(d.NewPath) {
			continue
		}
		switch d.Status {
		case repo.DeltaUnmodified, repo.DeltaUntracked, repo.DeltaIgnored:
			continue
		case repo.DeltaConflicted:
			out.Unmerged = append(out.Unmerged, d.Path())
			continue
		}
		fd, err := s.fileDiff(d, !opts.Cached, contextLines)
		if err != nil {
			return nil, Wrap(op, err)
		}
		out.Files = append(out.Files, fd)
	}
	s.logger(ctx, op).WithFields(logging.Fields{"cached": opts.Cached, "files": len(out.Files)}).Debug("diff computed")
	return out, nil
}

// fileDiff loads both sides of d. With worktree set the new side is read
// from disk rather than from the object store.
func (s *Session) fileDiff(d repo.Delta, worktree bool, contextLines int) (*diff.FileDiff, error) {
	fd := &diff.FileDiff{
		OldPath:    d.OldPath,
		NewPath:    d.NewPath,
		OldMode:    d.OldMode,
		NewMode:    d.NewMode,
		OldHash:    d.OldHash,
		NewHash:    d.NewHash,
		Similarity: d.Similarity,
	}
	switch d.Status {
	case repo.DeltaAdded:
		fd.Kind = diff.Added
	case repo.DeltaDeleted:
		fd.Kind = diff.Deleted
	case repo.DeltaRenamed:
		fd.Kind = diff.Renamed
	case repo.DeltaTypeChange:
		fd.Kind = diff.TypeChanged
	}

	var before, after []byte
	if d.Status != repo.DeltaAdded {
		data, err := s.blobData(d.OldHash)
		if err != nil {
			return nil, err
		}
		before = data
	}
	if d.Status != repo.DeltaDeleted {
		if worktree {
			data, mode, err := s.repo.ReadWorktreeFile(d.NewPath)
			switch {
			case errors.Is(err, os.ErrNotExist):
				fd.Kind, fd.NewPath, fd.NewMode, fd.NewHash = diff.Deleted, "", "", ""
			case err != nil:
				return nil, err
			default:
				after = data
				fd.NewMode = mode
				fd.NewHash = object.HashObject(object.TypeBlob, data)
			}
		} else {
			data, err := s.blobData(d.NewHash)
			if err != nil {
				return nil, err
			}
			after = data
		}
	}
	fd.Compute(before, after, contextLines)
	return fd, nil
}

func (s *Session) blobData(h object.Hash) ([]byte, error) {
	if h == "" {
		return nil, nil
	}
	b, err := s.repo.Store.ReadBlob(h)
	if err != nil {
		return nil, err
	}
	return b.Data, nil
}

// pathFilter returns a predicate matching repository paths equal to or
// under one of paths. No paths matches everything.
func (s *Session) pathFilter(op string, paths []string) (func(string) bool, error) {
	if len(paths) == 0 {
		return func(string) bool { return true }, nil
	}
	prefixes := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := s.repo.RepoPath(p)
		if err != nil {
			return nil, invalidArgument(op, "%v", err)
		}
		if rel == "." || rel == "" {
			return func(string) bool { return true }, nil
		}
		prefixes = append(prefixes, strings.TrimSuffix(rel, "/"))
	}
	return func(p string) bool {
		if p == "" {
			return false
		}
		for _, pre := range prefixes {
			if p == pre || strings.HasPrefix(p, pre+"/") {
				return true
			}
		}
		return false
	}, nil
}
