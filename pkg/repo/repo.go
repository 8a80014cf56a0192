package repo

import (
	"path/filepath"
	"sync"

	"github.com/odvcencio/grit/pkg/object"
)

// DirName is the name of the repository metadata directory.
const DirName = ".grit"

// Repo represents an opened grit repository. A Repo is owned by one caller
// at a time; on-disk locking guards refs and the index against other
// processes.
type Repo struct {
	RootDir string        // working directory root
	GritDir string        // .grit/ directory
	Store   *object.Store // content-addressed object store

	mergeBaseOnce  sync.Once
	mergeBaseState *mergeBaseTraversalState
}

func newRepo(root string) *Repo {
	gritDir := filepath.Join(root, DirName)
	return &Repo{
		RootDir: root,
		GritDir: gritDir,
		Store:   object.NewStore(gritDir),
	}
}

func (r *Repo) gritPath(parts ...string) string {
	return filepath.Join(append([]string{r.GritDir}, parts...)...)
}

func (r *Repo) worktreePath(rel string) string {
	return filepath.Join(r.RootDir, filepath.FromSlash(rel))
}

func (r *Repo) getMergeTraversalState() *mergeBaseTraversalState {
	r.mergeBaseOnce.Do(func() {
		r.mergeBaseState = newMergeBaseTraversalState()
	})
	return r.mergeBaseState
}
