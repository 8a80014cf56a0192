package porcelain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/grit/pkg/repo"
)

func (f *fixture) status(opts StatusOptions) *Status {
	f.t.Helper()
	st, err := f.s.Status.Classify(f.ctx, opts)
	require.NoError(f.t, err)
	return st
}

func paths(entries []StatusEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Path())
	}
	return out
}

func TestStatusCollapsesUntrackedDirectory(t *testing.T) {
	f := newFixture(t)
	f.commitFiles("base", map[string]string{
		"src/main.txt": "main\n",
		"readme.txt":   "readme\n",
	})
	f.write("src/new.txt", "new\n")
	f.add("src/new.txt")
	f.write("readme.txt", "changed\n")
	f.write("build/a.o", "a\n")
	f.write("build/b.o", "b\n")

	st := f.status(StatusOptions{})
	staged := st.In(BucketToBeCommitted)
	require.Len(t, staged, 1)
	assert.Equal(t, "src/new.txt", staged[0].Path())
	assert.Equal(t, ChangeNew, staged[0].Kind)

	unstaged := st.In(BucketNotStaged)
	require.Len(t, unstaged, 1)
	assert.Equal(t, "readme.txt", unstaged[0].Path())
	assert.Equal(t, " M", unstaged[0].ShortCode())

	assert.Equal(t, []string{"build/"}, paths(st.In(BucketUntracked)))
	assert.Empty(t, st.In(BucketIgnored))
	assert.False(t, st.Clean())
	assert.Equal(t, "main", st.Branch)
}

func TestStatusUntrackedInsideTrackedDirectory(t *testing.T) {
	f := newFixture(t)
	f.commitFile("src/main.txt", "main\n", "base")
	f.write("src/extra.txt", "x\n")
	f.write("src/gen/out.txt", "x\n")

	st := f.status(StatusOptions{})
	assert.Equal(t, []string{"src/extra.txt", "src/gen/"}, paths(st.In(BucketUntracked)))
	assert.True(t, st.Clean())

	st = f.status(StatusOptions{NoUntracked: true})
	assert.Empty(t, st.Entries)
}

func TestStatusEveryPathInOneBucket(t *testing.T) {
	f := newFixture(t)
	f.commitFiles("base", map[string]string{
		"both.txt":    "1\n",
		"gone.txt":    "gone\n",
		"staged.txt":  "s\n",
		"touched.txt": "t\n",
	})
	f.write("both.txt", "2\n")
	f.add("both.txt")
	f.write("both.txt", "3\n")
	f.remove("gone.txt")
	f.write("staged.txt", "s2\n")
	f.add("staged.txt")
	f.write("touched.txt", "t2\n")
	f.write("loose.txt", "loose\n")

	st := f.status(StatusOptions{})
	seen := make(map[string]Bucket)
	for _, e := range st.Entries {
		prev, dup := seen[e.Path()]
		require.False(t, dup, "%s reported in %s and %s", e.Path(), prev, e.Bucket)
		seen[e.Path()] = e.Bucket
	}
	assert.Equal(t, map[string]Bucket{
		"both.txt":    BucketToBeCommitted,
		"gone.txt":    BucketNotStaged,
		"staged.txt":  BucketToBeCommitted,
		"touched.txt": BucketNotStaged,
		"loose.txt":   BucketUntracked,
	}, seen)

	codes := make(map[string]string)
	for _, e := range st.Entries {
		codes[e.Path()] = e.ShortCode()
	}
	assert.Equal(t, "MM", codes["both.txt"])
	assert.Equal(t, " D", codes["gone.txt"])
	assert.Equal(t, "M ", codes["staged.txt"])
	assert.Equal(t, "??", codes["loose.txt"])
}

// A path removed with rm --cached leaves the index but stays on disk, so it
// is both a staged deletion and an untracked file.
func TestStatusCachedRemovalIsDeletedAndUntracked(t *testing.T) {
	f := newFixture(t)
	f.commitFiles("base", map[string]string{"kept.txt": "k\n", "a.txt": "a\n"})
	require.NoError(t, f.r.Remove([]string{"a.txt"}, true))
	require.True(t, f.exists("a.txt"))

	st := f.status(StatusOptions{})
	var codes []string
	for _, e := range st.Entries {
		if e.Path() == "a.txt" {
			codes = append(codes, e.ShortCode())
		}
	}
	assert.ElementsMatch(t, []string{"D ", "??"}, codes)
	assert.Equal(t, []string{"a.txt"}, paths(st.In(BucketToBeCommitted)))
	assert.Equal(t, []string{"a.txt"}, paths(st.In(BucketUntracked)))
	assert.Empty(t, st.In(BucketNotStaged))

	staged := st.In(BucketToBeCommitted)
	assert.Equal(t, ChangeDeleted, staged[0].Kind)
}

func TestStatusStagedRename(t *testing.T) {
	f := newFixture(t)
	content := "alpha\nbeta\ngamma\ndelta\nepsilon\n"
	f.commitFile("old.txt", content, "base")
	require.NoError(t, f.r.Remove([]string{"old.txt"}, false))
	f.write("new.txt", content)
	f.add("new.txt")

	st := f.status(StatusOptions{})
	staged := st.In(BucketToBeCommitted)
	require.Len(t, staged, 1)
	assert.Equal(t, ChangeRenamed, staged[0].Kind)
	assert.Equal(t, "old.txt", staged[0].OldPath)
	assert.Equal(t, "new.txt", staged[0].NewPath)
	assert.Equal(t, "R ", staged[0].ShortCode())
	assert.Empty(t, st.In(BucketUntracked))
}

func TestStatusIgnored(t *testing.T) {
	f := newFixture(t)
	f.commitFile(repo.IgnoreFile, "*.log\nout/\n", "ignore rules")
	f.write("debug.log", "log\n")
	f.write("out/a.bin", "a\n")
	f.write("keep.txt", "k\n")

	st := f.status(StatusOptions{})
	assert.Equal(t, []string{"keep.txt"}, paths(st.In(BucketUntracked)))
	assert.Empty(t, st.In(BucketIgnored))

	st = f.status(StatusOptions{Ignored: true})
	ignored := paths(st.In(BucketIgnored))
	assert.Contains(t, ignored, "debug.log")
	assert.Contains(t, ignored, "out/")
	for _, e := range st.In(BucketIgnored) {
		assert.Equal(t, "!!", e.ShortCode())
	}
}

func TestStatusUnmerged(t *testing.T) {
	f := newFixture(t)
	f.conflicting()
	out, err := f.merge(MergeOptions{}, "other")
	require.NoError(t, err)
	require.Equal(t, []string{"shared.txt"}, out.Conflicts)

	st := f.status(StatusOptions{})
	assert.Equal(t, repo.StateMerge, st.State)
	unmerged := st.In(BucketUnmerged)
	require.Len(t, unmerged, 1)
	assert.Equal(t, "shared.txt", unmerged[0].Path())
	assert.Equal(t, "UU", unmerged[0].ShortCode())
	assert.Equal(t, "both modified", unmerged[0].Label())
	assert.Empty(t, st.In(BucketNotStaged))
	assert.False(t, st.Clean())
}

func TestStatusUnbornAndDetached(t *testing.T) {
	f := newFixture(t)
	st := f.status(StatusOptions{})
	assert.True(t, st.Unborn)
	assert.Equal(t, "main", st.Branch)

	first := f.commitFile("a.txt", "a\n", "one")
	f.commitFile("a.txt", "b\n", "two")
	f.checkout("HEAD~1")
	st = f.status(StatusOptions{})
	assert.True(t, st.Detached)
	assert.Equal(t, first, st.Head)
	assert.Empty(t, st.Branch)
}

func TestUnmergedCodes(t *testing.T) {
	tests := []struct {
		name     string
		conflict *repo.Conflict
		code     string
		label    string
	}{
		{"both modified", &repo.Conflict{Base: "b", Ours: "o", Theirs: "t"}, "UU", "both modified"},
		{"both added", &repo.Conflict{Ours: "o", Theirs: "t"}, "AA", "both added"},
		{"deleted by them", &repo.Conflict{Base: "b", Ours: "o"}, "UD", "deleted by them"},
		{"deleted by us", &repo.Conflict{Base: "b", Theirs: "t"}, "DU", "deleted by us"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := StatusEntry{Bucket: BucketUnmerged, NewPath: "p", Conflict: tt.conflict}
			assert.Equal(t, tt.code, e.ShortCode())
			assert.Equal(t, tt.label, e.Label())
		})
	}
}

func TestCollapseUntracked(t *testing.T) {
	tracked := map[string]bool{"src": true, "src/pkg": true}
	tests := []struct {
		path string
		want string
	}{
		{"top.txt", "top.txt"},
		{"build/a.o", "build/"},
		{"build/deep/a.o", "build/"},
		{"src/new.txt", "src/new.txt"},
		{"src/gen/x.go", "src/gen/"},
		{"src/pkg/gen/x.go", "src/pkg/gen/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, collapseUntracked(tt.path, tracked), tt.path)
	}
}
