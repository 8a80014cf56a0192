package repo

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/odvcencio/grit/pkg/object"
)

var mtimeSeq atomic.Int64

var testSig = object.Signature{
	Name:  "Test Author",
	Email: "test@example.com",
	When:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
}

func initTestRepo(t *testing.T) *Repo {
	t.Helper()
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return r
}

func writeFile(t *testing.T, r *Repo, rel, content string) {
	t.Helper()
	abs := filepath.Join(r.RootDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", rel, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
	// Push mtimes out of the racy-clean window so stat data is trusted.
	old := time.Now().Add(-time.Minute).Add(time.Duration(mtimeSeq.Add(1)) * time.Millisecond)
	if err := os.Chtimes(abs, old, old); err != nil {
		t.Fatalf("chtimes %s: %v", rel, err)
	}
}

func readFile(t *testing.T, r *Repo, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(r.RootDir, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}

func fileExists(r *Repo, rel string) bool {
	_, err := os.Lstat(filepath.Join(r.RootDir, filepath.FromSlash(rel)))
	return err == nil
}

// commitFiles writes and stages files, then commits on HEAD.
func commitFiles(t *testing.T, r *Repo, msg string, files map[string]string) object.Hash {
	t.Helper()
	var paths []string
	for p, content := range files {
		writeFile(t, r, p, content)
		paths = append(paths, p)
	}
	if len(paths) > 0 {
		if err := r.Add(paths); err != nil {
			t.Fatalf("Add(%v): %v", paths, err)
		}
	}
	h, err := r.CommitIndex(msg, testSig, testSig, nil)
	if err != nil {
		t.Fatalf("CommitIndex(%q): %v", msg, err)
	}
	return h
}

func mustRevParse(t *testing.T, r *Repo, spec string) object.Hash {
	t.Helper()
	h, err := r.RevParse(spec)
	if err != nil {
		t.Fatalf("RevParse(%q): %v", spec, err)
	}
	return h
}

// switchBranch checks out a branch the way porcelain does: tree first,
// then HEAD.
func switchBranch(t *testing.T, r *Repo, name string) {
	t.Helper()
	h, err := r.ResolveRef("refs/heads/" + name)
	if err != nil {
		t.Fatalf("ResolveRef(%s): %v", name, err)
	}
	tree, err := r.CommitTree(h)
	if err != nil {
		t.Fatalf("CommitTree: %v", err)
	}
	if err := r.CheckoutTree(context.Background(), tree, CheckoutOptions{}); err != nil {
		t.Fatalf("CheckoutTree(%s): %v", name, err)
	}
	if err := r.SetHead("refs/heads/" + name); err != nil {
		t.Fatalf("SetHead(%s): %v", name, err)
	}
}
