package repo

import (
	"strings"
	"testing"

	"github.com/odvcencio/grit/pkg/object"
)

// graphCommit writes a commit with a distinct single-file tree and no ref
// update.
func graphCommit(t *testing.T, r *Repo, name string, parents ...object.Hash) object.Hash {
	t.Helper()
	h, err := r.CreateCommit(CommitRequest{
		Tree:    treeOf(t, r, map[string]string{"f": name + "\n"}),
		Parents: parents,
		Author:  testSig,
		Message: name,
	})
	if err != nil {
		t.Fatalf("CreateCommit(%s): %v", name, err)
	}
	return h
}

func TestFindMergeBaseLinearAndForked(t *testing.T) {
	r := initTestRepo(t)
	root := graphCommit(t, r, "root")
	a1 := graphCommit(t, r, "a1", root)
	a2 := graphCommit(t, r, "a2", a1)
	b1 := graphCommit(t, r, "b1", a1)
	b2 := graphCommit(t, r, "b2", b1)

	tests := []struct {
		name string
		a, b object.Hash
		want object.Hash
	}{
		{"same", a2, a2, a2},
		{"ancestor", root, a2, root},
		{"descendant", a2, a1, a1},
		{"fork", a2, b2, a1},
		{"fork reversed", b2, a2, a1},
		{"empty", "", a2, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.FindMergeBase(tt.a, tt.b)
			if err != nil {
				t.Fatalf("FindMergeBase: %v", err)
			}
			if got != tt.want {
				t.Errorf("FindMergeBase = %s, want %s", got.Short(), tt.want.Short())
			}
		})
	}

	// A second lookup is served from the cache and agrees.
	got, err := r.FindMergeBase(a2, b2)
	if err != nil || got != a1 {
		t.Fatalf("cached FindMergeBase = %s, %v", got, err)
	}
}

func TestFindMergeBaseUnrelated(t *testing.T) {
	r := initTestRepo(t)
	x := graphCommit(t, r, "x")
	y := graphCommit(t, r, "y")
	got, err := r.FindMergeBase(x, y)
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Errorf("unrelated histories have base %s", got)
	}
}

func TestFindMergeBaseAfterMerge(t *testing.T) {
	r := initTestRepo(t)
	root := graphCommit(t, r, "root")
	left := graphCommit(t, r, "left", root)
	right := graphCommit(t, r, "right", root)
	merged := graphCommit(t, r, "merge", left, right)
	rightNext := graphCommit(t, r, "right2", right)
	leftNext := graphCommit(t, r, "left2", merged)

	// right was merged into left's line, so it is the best base.
	got, err := r.FindMergeBase(leftNext, rightNext)
	if err != nil {
		t.Fatal(err)
	}
	if got != right {
		t.Errorf("FindMergeBase = %s, want %s", got.Short(), right.Short())
	}
}

func TestFindMergeBaseCrissCross(t *testing.T) {
	r := initTestRepo(t)
	root := graphCommit(t, r, "root")
	a := graphCommit(t, r, "a", root)
	b := graphCommit(t, r, "b", root)
	x := graphCommit(t, r, "x", a, b)
	y := graphCommit(t, r, "y", b, a)

	got, err := r.FindMergeBase(x, y)
	if err != nil {
		t.Fatal(err)
	}
	if got != a && got != b {
		t.Errorf("FindMergeBase = %s, want one of the criss-cross bases", got.Short())
	}
}

func TestIsAncestor(t *testing.T) {
	r := initTestRepo(t)
	root := graphCommit(t, r, "root")
	a := graphCommit(t, r, "a", root)
	b := graphCommit(t, r, "b", root)
	m := graphCommit(t, r, "m", a, b)

	tests := []struct {
		anc, desc object.Hash
		want      bool
	}{
		{root, m, true},
		{b, m, true},
		{m, m, true},
		{m, root, false},
		{a, b, false},
		{"", m, false},
	}
	for _, tt := range tests {
		got, err := r.IsAncestor(tt.anc, tt.desc)
		if err != nil {
			t.Fatalf("IsAncestor: %v", err)
		}
		if got != tt.want {
			t.Errorf("IsAncestor(%s, %s) = %v, want %v", tt.anc.Short(), tt.desc.Short(), got, tt.want)
		}
	}
}

func TestFindMergeBaseStepsLimit(t *testing.T) {
	r := initTestRepo(t)
	root := graphCommit(t, r, "root")
	left, right := root, root
	for i := 0; i < 5; i++ {
		left = graphCommit(t, r, "l"+string(rune('0'+i)), left)
		right = graphCommit(t, r, "r"+string(rune('0'+i)), right)
	}

	old := mergeBaseStepsLimit
	mergeBaseStepsLimit = 3
	t.Cleanup(func() { mergeBaseStepsLimit = old })

	_, err := r.FindMergeBase(left, right)
	if err == nil || !strings.Contains(err.Error(), "maximum steps") {
		t.Fatalf("FindMergeBase = %v, want steps limit error", err)
	}
}
