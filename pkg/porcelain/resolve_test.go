package porcelain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	f := newFixture(t)
	first := f.commitFile("a.txt", "1\n", "one")
	second := f.commitFile("a.txt", "2\n", "two")
	f.branch("topic", first)
	require.NoError(t, f.r.CreateTag("v1", first, false))
	require.NoError(t, f.r.UpdateRefCAS("refs/remotes/origin/remote-only", second, "fetch"))

	tests := []struct {
		spec string
		id   string
		ref  string
	}{
		{"main", string(second), "refs/heads/main"},
		{"topic", string(first), "refs/heads/topic"},
		{"v1", string(first), "refs/tags/v1"},
		{"origin/remote-only", string(second), "refs/remotes/origin/remote-only"},
		{"remote-only", string(second), "refs/remotes/origin/remote-only"},
		{"refs/heads/topic", string(first), "refs/heads/topic"},
		{"HEAD", string(second), ""},
		{"HEAD~1", string(first), ""},
		{string(first), string(first), ""},
		{string(second[:8]), string(second), ""},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			ac, err := f.s.Resolver.Resolve(tt.spec)
			require.NoError(t, err)
			require.NotNil(t, ac)
			assert.Equal(t, tt.id, string(ac.ID))
			assert.Equal(t, tt.ref, ac.Ref)
			assert.Equal(t, tt.spec, ac.Spec)
		})
	}
}

func TestResolvePrefersLocalBranch(t *testing.T) {
	f := newFixture(t)
	first := f.commitFile("a.txt", "1\n", "one")
	second := f.commitFile("a.txt", "2\n", "two")
	f.branch("dup", first)
	require.NoError(t, f.r.CreateTag("dup", second, false))

	ac := f.resolve("dup")
	assert.Equal(t, first, ac.ID)
	assert.True(t, ac.IsBranch())
	assert.Equal(t, "dup", ac.ShortName())
}

func TestResolveMisses(t *testing.T) {
	f := newFixture(t)
	head := f.commitFile("a.txt", "1\n", "one")

	ac, err := f.s.Resolver.Resolve("nope")
	require.NoError(t, err)
	assert.Nil(t, ac)

	ac, err = f.s.Resolver.Resolve("HEAD~5")
	require.NoError(t, err)
	assert.Nil(t, ac)

	_, err = f.s.Resolver.MustResolve("merge", "nope")
	require.ErrorIs(t, err, KindNotFound)
	assert.EqualError(t, err, "merge: 'nope' does not name a commit")

	tree, err := f.r.CommitTree(head)
	require.NoError(t, err)
	_, err = f.s.Resolver.Resolve(string(tree))
	require.ErrorIs(t, err, KindInvalidArgument)
}

func TestAnnotatedCommitShortName(t *testing.T) {
	ac := &AnnotatedCommit{ID: "0123456789abcdef0123456789abcdef01234567"}
	assert.Equal(t, ac.ID.Short(), ac.ShortName())
	assert.False(t, ac.IsBranch())

	ac.Ref = "refs/remotes/origin/x"
	assert.Equal(t, "origin/x", ac.ShortName())
	assert.False(t, ac.IsBranch())
}
