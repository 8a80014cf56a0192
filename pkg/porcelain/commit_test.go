package porcelain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/grit/pkg/object"
	"github.com/odvcencio/grit/pkg/repo"
)

func TestCommitRootAndNext(t *testing.T) {
	f := newFixture(t)
	f.write("a.txt", "a\n")
	f.add("a.txt")
	out, err := f.s.Commit(f.ctx, CommitOptions{Message: "first\n\nbody"})
	require.NoError(t, err)
	assert.True(t, out.Root)
	assert.Equal(t, "main", out.Branch)
	assert.Equal(t, "first", out.Summary)

	f.write("a.txt", "b\n")
	f.add("a.txt")
	out, err = f.s.Commit(f.ctx, CommitOptions{Message: "second"})
	require.NoError(t, err)
	assert.False(t, out.Root)
	assert.False(t, out.Merge)

	c, err := f.r.Store.ReadCommit(out.Hash)
	require.NoError(t, err)
	assert.Equal(t, "Fixture", c.Author.Name)
	assert.Equal(t, "fixture@example.com", c.Committer.Email)
}

func TestCommitRefusals(t *testing.T) {
	f := newFixture(t)
	f.commitFile("a.txt", "a\n", "base")

	_, err := f.s.Commit(f.ctx, CommitOptions{Message: "  "})
	require.ErrorIs(t, err, KindInvalidArgument)

	_, err = f.s.Commit(f.ctx, CommitOptions{Message: "again"})
	require.ErrorIs(t, err, KindIllegalState)
	assert.EqualError(t, err, "commit: nothing to commit, working tree clean")
}

func TestCommitAuthorOverride(t *testing.T) {
	f := newFixture(t)
	f.write("a.txt", "a\n")
	f.add("a.txt")

	_, err := f.s.Commit(f.ctx, CommitOptions{Message: "x", Author: "no-brackets"})
	require.ErrorIs(t, err, KindInvalidArgument)

	out, err := f.s.Commit(f.ctx, CommitOptions{Message: "x", Author: "Ada Lovelace <ada@example.com>"})
	require.NoError(t, err)
	c, err := f.r.Store.ReadCommit(out.Hash)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", c.Author.Name)
	assert.Equal(t, "ada@example.com", c.Author.Email)
	assert.Equal(t, "Fixture", c.Committer.Name)
}

func TestCommitIdentityPrecedence(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.r.UpdateConfig(func(cfg *repo.Config) error {
		cfg.User = repo.UserConfig{Name: "Repo User", Email: "repo@example.com"}
		return nil
	}))
	t.Setenv(repo.EnvAuthorName, "Env Author")

	f.write("a.txt", "a\n")
	f.add("a.txt")
	out, err := f.s.Commit(f.ctx, CommitOptions{Message: "x"})
	require.NoError(t, err)
	c, err := f.r.Store.ReadCommit(out.Hash)
	require.NoError(t, err)
	assert.Equal(t, "Env Author", c.Author.Name)
	assert.Equal(t, "repo@example.com", c.Author.Email)
	assert.Equal(t, "Repo User", c.Committer.Name)
}

func TestCommitIdentityUnknown(t *testing.T) {
	for _, v := range []string{repo.EnvAuthorName, repo.EnvAuthorEmail, repo.EnvCommitterName, repo.EnvCommitterEmail} {
		t.Setenv(v, "")
	}
	h := New(Options{ProgressBuffer: -1})
	defer h.Close()
	s, err := h.Init(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	f := &fixture{t: t, ctx: context.Background(), dir: s.Repo().RootDir, h: h, s: s, r: s.Repo()}
	f.write("a.txt", "a\n")
	f.add("a.txt")
	_, err = s.Commit(f.ctx, CommitOptions{Message: "x"})
	require.ErrorIs(t, err, KindInvalidArgument)
	assert.ErrorIs(t, err, repo.ErrIdentityUnknown)
}

func TestCommitConcludesMerge(t *testing.T) {
	f := newFixture(t)
	mainTip, otherTip := f.conflicting()
	_, err := f.merge(MergeOptions{}, "other")
	require.NoError(t, err)

	_, err = f.s.Commit(f.ctx, CommitOptions{})
	require.ErrorIs(t, err, KindConflict)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{"shared.txt"}, pe.Paths)

	f.write("shared.txt", "one\nBOTH\nthree\n")
	f.add("shared.txt")
	out, err := f.s.Commit(f.ctx, CommitOptions{})
	require.NoError(t, err)
	assert.True(t, out.Merge)
	assert.Equal(t, "Merge branch 'other'", out.Summary)
	assert.Equal(t, []object.Hash{mainTip, otherTip}, f.parents(out.Hash))
	assert.Equal(t, repo.StateNone, f.r.State())
}
