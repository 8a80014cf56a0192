package repo

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// IgnoreFile is the per-repository ignore rule file at the worktree root.
const IgnoreFile = ".gritignore"

// IgnoreChecker determines if a path should be ignored.
type IgnoreChecker struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	pattern  string
	negated  bool
	dirOnly  bool
	hasSlash bool // pattern contains a slash, so match against full path
	globs    []glob.Glob
}

// NewIgnoreChecker creates an IgnoreChecker for the given repository root.
// It always ignores .grit/ and .git/. If a .gritignore file exists in
// repoRoot, its patterns are parsed and applied.
func NewIgnoreChecker(repoRoot string) *IgnoreChecker {
	ic := &IgnoreChecker{}
	for _, builtin := range []string{DirName + "/", ".git/"} {
		if p := parseLine(builtin); p != nil {
			ic.patterns = append(ic.patterns, *p)
		}
	}

	f, err := os.Open(filepath.Join(repoRoot, IgnoreFile))
	if err != nil {
		return ic
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if p := parseLine(scanner.Text()); p != nil {
			ic.patterns = append(ic.patterns, *p)
		}
	}
	return ic
}

// parseLine parses a single line from an ignore file. Returns nil if the
// line is empty, a comment or an invalid glob.
func parseLine(line string) *ignorePattern {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	p := &ignorePattern{}
	if strings.HasPrefix(line, "!") {
		p.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.hasSlash = true
		line = strings.TrimLeft(line, "/")
	}
	if line == "" {
		return nil
	}
	p.hasSlash = p.hasSlash || strings.Contains(line, "/")
	p.pattern = line

	sources := []string{line}
	// "**/x" also matches "x" at the root.
	if rest, ok := strings.CutPrefix(line, "**/"); ok {
		sources = append(sources, rest)
	}
	for _, src := range sources {
		g, err := glob.Compile(src, '/')
		if err != nil {
			return nil
		}
		p.globs = append(p.globs, g)
	}
	return p
}

// IsIgnored checks whether a repo-relative, forward-slash path should be
// ignored. A path inside an ignored directory is ignored regardless of
// later negations. Within one level the last matching pattern wins.
func (ic *IgnoreChecker) IsIgnored(rel string, isDir bool) bool {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." {
		return false
	}

	segments := strings.Split(rel, "/")
	for i := 1; i < len(segments); i++ {
		if ic.matchLevel(strings.Join(segments[:i], "/"), true) {
			return true
		}
	}
	return ic.matchLevel(rel, isDir)
}

func (ic *IgnoreChecker) matchLevel(rel string, isDir bool) bool {
	ignored := false
	base := path.Base(rel)
	for i := range ic.patterns {
		p := &ic.patterns[i]
		if p.dirOnly && !isDir {
			continue
		}
		target := base
		if p.hasSlash {
			target = rel
		}
		if p.match(target) {
			ignored = !p.negated
		}
	}
	return ignored
}

func (p *ignorePattern) match(target string) bool {
	for _, g := range p.globs {
		if g.Match(target) {
			return true
		}
	}
	return false
}
