package repo

import (
	"os"
	"path/filepath"
	"testing"
)

func writeIgnoreFile(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, IgnoreFile), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", IgnoreFile, err)
	}
}

func TestIgnoreBuiltinDirs(t *testing.T) {
	ic := NewIgnoreChecker(t.TempDir())
	for _, p := range []string{".grit", ".grit/HEAD", ".grit/objects/ab/cd", ".git/config"} {
		if !ic.IsIgnored(p, p == ".grit") {
			t.Errorf("expected %s to be ignored", p)
		}
	}
	if ic.IsIgnored("src/main.go", false) {
		t.Error("src/main.go should not be ignored without rules")
	}
}

func TestIgnorePatterns(t *testing.T) {
	dir := t.TempDir()
	writeIgnoreFile(t, dir, `# build output
*.log
!important.log
build/
/root-only.txt
docs/**/*.tmp
**/cache
file?.bak
[ab].dat
`)
	ic := NewIgnoreChecker(dir)

	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{"debug.log", false, true},
		{"nested/deep/trace.log", false, true},
		{"important.log", false, false},
		{"build", true, true},
		{"build/out.o", false, true},
		{"build", false, false},
		{"root-only.txt", false, true},
		{"sub/root-only.txt", false, false},
		{"docs/a/b/x.tmp", false, true},
		{"docs/x.tmp", false, false},
		{"cache", true, true},
		{"pkg/cache", true, true},
		{"pkg/cache/entry", false, true},
		{"file1.bak", false, true},
		{"file12.bak", false, false},
		{"a.dat", false, true},
		{"c.dat", false, false},
		{"notes.txt", false, false},
	}
	for _, tt := range tests {
		if got := ic.IsIgnored(tt.path, tt.isDir); got != tt.want {
			t.Errorf("IsIgnored(%q, dir=%v) = %v, want %v", tt.path, tt.isDir, got, tt.want)
		}
	}
}

func TestIgnoreNegationCannotReincludeInsideIgnoredDir(t *testing.T) {
	dir := t.TempDir()
	writeIgnoreFile(t, dir, "logs/\n!logs/keep.txt\n")
	ic := NewIgnoreChecker(dir)
	if !ic.IsIgnored("logs/keep.txt", false) {
		t.Error("files under an ignored directory stay ignored")
	}
}
