package diff3

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestMyersDiffReplacement(t *testing.T) {
	ops := MyersDiff([]string{"a", "b", "c"}, []string{"a", "x", "c"})

	wantTypes := []DiffType{Equal, Delete, Insert, Equal}
	wantLines := []string{"a", "b", "x", "c"}
	if len(ops) != len(wantTypes) {
		t.Fatalf("got %d ops, want %d: %v", len(ops), len(wantTypes), ops)
	}
	for i, op := range ops {
		if op.Type != wantTypes[i] || op.Line != wantLines[i] {
			t.Errorf("op[%d] = {%v, %q}, want {%v, %q}", i, op.Type, op.Line, wantTypes[i], wantLines[i])
		}
	}
}

func TestMyersDiffDegenerateInputs(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want DiffType
		n    int
	}{
		{"empty to lines", nil, []string{"a", "b"}, Insert, 2},
		{"lines to empty", []string{"a", "b"}, nil, Delete, 2},
		{"identical", []string{"a", "b", "c"}, []string{"a", "b", "c"}, Equal, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := MyersDiff(tt.a, tt.b)
			if len(ops) != tt.n {
				t.Fatalf("got %d ops, want %d", len(ops), tt.n)
			}
			for _, op := range ops {
				if op.Type != tt.want {
					t.Errorf("unexpected op %v", op)
				}
			}
		})
	}
}

func TestMergeClean(t *testing.T) {
	tests := []struct {
		name               string
		base, ours, theirs string
		want               string
	}{
		{
			name:   "top and bottom additions",
			base:   "line1\nline2\nline3\n",
			ours:   "new-top\nline1\nline2\nline3\n",
			theirs: "line1\nline2\nline3\nnew-bottom\n",
			want:   "new-top\nline1\nline2\nline3\nnew-bottom\n",
		},
		{
			name:   "ours only",
			base:   "aaa\nbbb\nccc\n",
			ours:   "aaa\nBBB\nccc\n",
			theirs: "aaa\nbbb\nccc\n",
			want:   "aaa\nBBB\nccc\n",
		},
		{
			name:   "theirs only",
			base:   "aaa\nbbb\nccc\n",
			ours:   "aaa\nbbb\nccc\n",
			theirs: "aaa\nBBB\nccc\n",
			want:   "aaa\nBBB\nccc\n",
		},
		{
			name:   "identical change",
			base:   "aaa\nbbb\nccc\n",
			ours:   "aaa\nSAME\nccc\n",
			theirs: "aaa\nSAME\nccc\n",
			want:   "aaa\nSAME\nccc\n",
		},
		{
			name:   "non-overlapping inserts",
			base:   "aaa\nbbb\nccc\nddd\neee\n",
			ours:   "aaa\nOUR-INSERT\nbbb\nccc\nddd\neee\n",
			theirs: "aaa\nbbb\nccc\nddd\nTHEIR-INSERT\neee\n",
			want:   "aaa\nOUR-INSERT\nbbb\nccc\nddd\nTHEIR-INSERT\neee\n",
		},
		{
			name:   "ours empties file",
			base:   "aaa\nbbb\n",
			ours:   "",
			theirs: "aaa\nbbb\n",
			want:   "",
		},
		{
			name:   "theirs empties file",
			base:   "aaa\nbbb\n",
			ours:   "aaa\nbbb\n",
			theirs: "",
			want:   "",
		},
		{
			name: "all empty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Merge([]byte(tt.base), []byte(tt.ours), []byte(tt.theirs))
			if r.HasConflicts {
				t.Fatalf("expected clean merge, got:\n%s", r.Merged)
			}
			if string(r.Merged) != tt.want {
				t.Errorf("merged =\n%s\nwant =\n%s", r.Merged, tt.want)
			}
		})
	}
}

func TestMergeConflicts(t *testing.T) {
	tests := []struct {
		name               string
		base, ours, theirs string
	}{
		{"same line changed", "aaa\nbbb\nccc\n", "aaa\nOURS\nccc\n", "aaa\nTHEIRS\nccc\n"},
		{"delete vs modify", "aaa\nbbb\nccc\n", "aaa\nccc\n", "aaa\nBBB-MOD\nccc\n"},
		{"both add to empty base", "", "hello\n", "world\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Merge([]byte(tt.base), []byte(tt.ours), []byte(tt.theirs))
			if !r.HasConflicts || r.Conflicts != 1 {
				t.Fatalf("expected one conflict, got %d:\n%s", r.Conflicts, r.Merged)
			}
			for _, marker := range []string{"<<<<<<< ours\n", "=======\n", ">>>>>>> theirs\n"} {
				if !bytes.Contains(r.Merged, []byte(marker)) {
					t.Errorf("merged output missing %q", marker)
				}
			}
			found := false
			for _, h := range r.Hunks {
				if h.Type == HunkConflict {
					found = true
				}
			}
			if !found {
				t.Error("expected a HunkConflict in Hunks")
			}
		})
	}
}

func TestMergeWithLabels(t *testing.T) {
	r := MergeWithLabels(
		[]byte("aaa\nbbb\nccc\n"),
		[]byte("aaa\nOURS\nccc\n"),
		[]byte("aaa\nTHEIRS\nccc\n"),
		Labels{Ours: "HEAD", Theirs: "feature"},
	)
	want := "aaa\n<<<<<<< HEAD\nOURS\n=======\nTHEIRS\n>>>>>>> feature\nccc\n"
	if string(r.Merged) != want {
		t.Errorf("merged =\n%s\nwant =\n%s", r.Merged, want)
	}
}

func TestMergeOverlappingRegionsDoNotDuplicateBase(t *testing.T) {
	base := "1\n2\n3\n4\n5\n"
	ours := "1\nA\n4\n5\n"   // replaces 2-3
	theirs := "1\n2\nB\n5\n" // replaces 3-4

	r := Merge([]byte(base), []byte(ours), []byte(theirs))
	want := "1\n<<<<<<< ours\nA\n4\n=======\n2\nB\n>>>>>>> theirs\n5\n"
	if string(r.Merged) != want {
		t.Errorf("merged =\n%s\nwant =\n%s", r.Merged, want)
	}
}

func TestMergeLargeFile(t *testing.T) {
	const n = 2000
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "line-%04d\n", i)
	}
	lines := strings.Split(sb.String(), "\n")

	oursLines := append([]string(nil), lines...)
	oursLines[100] = "OURS-CHANGED"
	theirsLines := append([]string(nil), lines...)
	theirsLines[1900] = "THEIRS-CHANGED"

	start := time.Now()
	r := Merge([]byte(sb.String()), []byte(strings.Join(oursLines, "\n")), []byte(strings.Join(theirsLines, "\n")))
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("merge took %v for %d lines", elapsed, n)
	}
	if r.HasConflicts {
		t.Fatal("expected clean merge for non-overlapping changes")
	}
	if !bytes.Contains(r.Merged, []byte("OURS-CHANGED")) || !bytes.Contains(r.Merged, []byte("THEIRS-CHANGED")) {
		t.Error("merged output lost one side's change")
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"both empty", "", "", 100},
		{"identical", "a\nb\n", "a\nb\n", 100},
		{"disjoint", "a\nb\n", "c\nd\n", 0},
		{"half shared", "a\nb\n", "a\nc\n", 50},
		{"one line appended", "a\nb\nc\n", "a\nb\nc\nd\n", 85},
		{"empty vs content", "", "a\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Similarity([]byte(tt.a), []byte(tt.b)); got != tt.want {
				t.Errorf("Similarity = %d, want %d", got, tt.want)
			}
		})
	}
}
