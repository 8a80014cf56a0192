package porcelain

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/grit/pkg/config"
	"github.com/odvcencio/grit/pkg/object"
	"github.com/odvcencio/grit/pkg/repo"
)

type fixture struct {
	t   *testing.T
	ctx context.Context
	dir string
	h   *Handle
	s   *Session
	r   *repo.Repo
}

func testSettings() *config.Settings {
	s := config.Default()
	s.User = config.UserSettings{Name: "Fixture", Email: "fixture@example.com"}
	return s
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	for _, v := range []string{repo.EnvAuthorName, repo.EnvAuthorEmail, repo.EnvCommitterName, repo.EnvCommitterEmail} {
		t.Setenv(v, "")
	}
	dir := t.TempDir()
	h := New(Options{Settings: testSettings(), ProgressBuffer: -1})
	s, err := h.Init(dir)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
		h.Close()
	})
	return &fixture{t: t, ctx: context.Background(), dir: dir, h: h, s: s, r: s.Repo()}
}

func (f *fixture) write(rel, content string) {
	f.t.Helper()
	abs := filepath.Join(f.dir, filepath.FromSlash(rel))
	require.NoError(f.t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(f.t, os.WriteFile(abs, []byte(content), 0o644))
}

func (f *fixture) read(rel string) string {
	f.t.Helper()
	data, err := os.ReadFile(filepath.Join(f.dir, filepath.FromSlash(rel)))
	require.NoError(f.t, err)
	return string(data)
}

func (f *fixture) exists(rel string) bool {
	_, err := os.Lstat(filepath.Join(f.dir, filepath.FromSlash(rel)))
	return err == nil
}

func (f *fixture) remove(rel string) {
	f.t.Helper()
	require.NoError(f.t, os.Remove(filepath.Join(f.dir, filepath.FromSlash(rel))))
}

func (f *fixture) add(paths ...string) {
	f.t.Helper()
	require.NoError(f.t, f.r.Add(paths))
}

// commitFile writes, stages and commits one file.
func (f *fixture) commitFile(rel, content, msg string) object.Hash {
	f.t.Helper()
	return f.commitFiles(msg, map[string]string{rel: content})
}

func (f *fixture) commitFiles(msg string, files map[string]string) object.Hash {
	f.t.Helper()
	paths := make([]string, 0, len(files))
	for rel, content := range files {
		f.write(rel, content)
		paths = append(paths, rel)
	}
	f.add(paths...)
	out, err := f.s.Commit(f.ctx, CommitOptions{Message: msg})
	require.NoError(f.t, err)
	return out.Hash
}

func (f *fixture) head() repo.HeadInfo {
	f.t.Helper()
	head, err := f.r.Head()
	require.NoError(f.t, err)
	return head
}

func (f *fixture) branch(name string, at object.Hash) {
	f.t.Helper()
	require.NoError(f.t, f.r.CreateBranch(name, at, false))
}

func (f *fixture) checkout(target string) {
	f.t.Helper()
	_, err := f.s.Checkout.Checkout(f.ctx, target, CheckoutOptions{})
	require.NoError(f.t, err)
}

func (f *fixture) resolve(spec string) *AnnotatedCommit {
	f.t.Helper()
	ac, err := f.s.Resolver.MustResolve("test", spec)
	require.NoError(f.t, err)
	return ac
}

func (f *fixture) parents(h object.Hash) []object.Hash {
	f.t.Helper()
	c, err := f.r.Store.ReadCommit(h)
	require.NoError(f.t, err)
	return c.Parents
}

func (f *fixture) message(h object.Hash) string {
	f.t.Helper()
	c, err := f.r.Store.ReadCommit(h)
	require.NoError(f.t, err)
	return c.Summary()
}

// diverged builds main and other on top of a shared base, each with one
// commit touching its own file.
func (f *fixture) diverged() (base, mainTip, otherTip object.Hash) {
	f.t.Helper()
	base = f.commitFile("shared.txt", "one\ntwo\nthree\n", "base")
	f.branch("other", base)
	mainTip = f.commitFile("main.txt", "main\n", "main work")
	f.checkout("other")
	otherTip = f.commitFile("other.txt", "other\n", "other work")
	f.checkout("main")
	return base, mainTip, otherTip
}

// conflicting builds main and other that both rewrite the second line of
// shared.txt.
func (f *fixture) conflicting() (mainTip, otherTip object.Hash) {
	f.t.Helper()
	base := f.commitFile("shared.txt", "one\ntwo\nthree\n", "base")
	f.branch("other", base)
	mainTip = f.commitFile("shared.txt", "one\nMAIN\nthree\n", "main edit")
	f.checkout("other")
	otherTip = f.commitFile("shared.txt", "one\nOTHER\nthree\n", "other edit")
	f.checkout("main")
	return mainTip, otherTip
}
