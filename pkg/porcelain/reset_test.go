package porcelain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/grit/pkg/repo"
)

func TestResetModes(t *testing.T) {
	f := newFixture(t)
	first := f.commitFile("a.txt", "1\n", "one")
	second := f.commitFile("a.txt", "2\n", "two")

	out, err := f.s.Reset(f.ctx, "HEAD~1", repo.ResetSoft)
	require.NoError(t, err)
	assert.Equal(t, first, out.Commit)
	assert.Equal(t, "one", out.Summary)
	st := f.status(StatusOptions{})
	require.Len(t, st.In(BucketToBeCommitted), 1)
	assert.Equal(t, "2\n", f.read("a.txt"))

	_, err = f.s.Reset(f.ctx, string(second), repo.ResetMixed)
	require.NoError(t, err)
	_, err = f.s.Reset(f.ctx, "HEAD~1", repo.ResetMixed)
	require.NoError(t, err)
	st = f.status(StatusOptions{})
	assert.Empty(t, st.In(BucketToBeCommitted))
	require.Len(t, st.In(BucketNotStaged), 1)

	_, err = f.s.Reset(f.ctx, "", repo.ResetHard)
	require.NoError(t, err)
	assert.Equal(t, "1\n", f.read("a.txt"))
	assert.True(t, f.status(StatusOptions{}).Clean())
	assert.Equal(t, "main", f.head().Branch())

	_, err = f.s.Reset(f.ctx, "nope", repo.ResetHard)
	require.ErrorIs(t, err, KindNotFound)
}

func TestResetDuringMerge(t *testing.T) {
	f := newFixture(t)
	mainTip, _ := f.conflicting()
	_, err := f.merge(MergeOptions{}, "other")
	require.NoError(t, err)

	_, err = f.s.Reset(f.ctx, "", repo.ResetSoft)
	require.ErrorIs(t, err, KindIllegalState)
	assert.Equal(t, repo.StateMerge, f.r.State())

	_, err = f.s.Reset(f.ctx, "", repo.ResetHard)
	require.NoError(t, err)
	assert.Equal(t, repo.StateNone, f.r.State())
	assert.Equal(t, mainTip, f.head().Hash)
	assert.Equal(t, "one\nMAIN\nthree\n", f.read("shared.txt"))
	assert.Empty(t, f.conflicts())
}

func TestResetPaths(t *testing.T) {
	f := newFixture(t)
	f.commitFile("a.txt", "1\n", "one")
	f.write("a.txt", "2\n")
	f.write("b.txt", "b\n")
	f.add("a.txt", "b.txt")

	require.NoError(t, f.s.ResetPaths(f.ctx, []string{"a.txt"}))
	st := f.status(StatusOptions{})
	assert.Equal(t, []string{"b.txt"}, paths(st.In(BucketToBeCommitted)))
	assert.Equal(t, []string{"a.txt"}, paths(st.In(BucketNotStaged)))

	err := f.s.ResetPaths(f.ctx, []string{"missing.txt"})
	require.ErrorIs(t, err, KindNotFound)

	require.NoError(t, f.s.ResetPaths(f.ctx, nil))
	st = f.status(StatusOptions{})
	assert.Empty(t, st.In(BucketToBeCommitted))
	assert.Equal(t, []string{"b.txt"}, paths(st.In(BucketUntracked)))
}
