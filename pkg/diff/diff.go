// Package diff computes and renders line-level differences between two
// revisions of a file.
package diff

import (
	"bytes"
	"strings"

	"github.com/odvcencio/grit/pkg/diff3"
	"github.com/odvcencio/grit/pkg/object"
)

// DefaultContext is the number of unchanged lines shown around a change.
const DefaultContext = 3

// binarySniffLen bounds how much of a file is scanned for NUL bytes.
const binarySniffLen = 8000

// Kind classifies what happened to a file.
type Kind int

const (
	Modified Kind = iota
	Added
	Deleted
	Renamed
	TypeChanged
)

// Letter is the one-letter code used by name-status listings.
func (k Kind) Letter() string {
	switch k {
	case Added:
		return "A"
	case Deleted:
		return "D"
	case Renamed:
		return "R"
	case TypeChanged:
		return "T"
	}
	return "M"
}

// Hunk is a run of changes with its surrounding context. Starts are
// 1-based; a zero count moves the start back by one, as unified diffs do.
type Hunk struct {
	OldStart, OldCount int
	NewStart, NewCount int
	Lines              []diff3.DiffOp
}

// FileDiff is the difference for one path. Lines in Hunks keep their
// trailing newline; a line without one is the last line of a file that
// does not end in a newline.
type FileDiff struct {
	Kind       Kind
	OldPath    string
	NewPath    string
	OldMode    string
	NewMode    string
	OldHash    object.Hash
	NewHash    object.Hash
	Similarity int
	Binary     bool
	Hunks      []Hunk
}

// Path is the path the change is reported under.
func (d *FileDiff) Path() string {
	if d.NewPath != "" {
		return d.NewPath
	}
	return d.OldPath
}

// Compute fills Binary or Hunks from the two revisions. before is nil for
// an added file and after is nil for a deleted one.
func (d *FileDiff) Compute(before, after []byte, contextLines int) {
	if IsBinary(before) || IsBinary(after) {
		d.Binary = !bytes.Equal(before, after)
		return
	}
	d.Hunks = Hunks(before, after, contextLines)
}

// IsBinary reports whether data looks binary: a NUL byte in its head.
func IsBinary(data []byte) bool {
	if len(data) > binarySniffLen {
		data = data[:binarySniffLen]
	}
	return bytes.IndexByte(data, 0) >= 0
}

// Hunks diffs two revisions line by line and groups the edits into hunks
// with contextLines of unchanged lines on each side.
func Hunks(before, after []byte, contextLines int) []Hunk {
	if contextLines < 0 {
		contextLines = 0
	}
	ops := diff3.MyersDiff(splitLines(before), splitLines(after))

	type span struct{ start, end int }
	var spans []span
	for i, op := range ops {
		if op.Type == diff3.Equal {
			continue
		}
		start := max(i-contextLines, 0)
		end := min(i+contextLines+1, len(ops))
		if len(spans) == 0 || start > spans[len(spans)-1].end {
			spans = append(spans, span{start, end})
			continue
		}
		if end > spans[len(spans)-1].end {
			spans[len(spans)-1].end = end
		}
	}

	hunks := make([]Hunk, 0, len(spans))
	oldLine, newLine, pos := 1, 1, 0
	for _, sp := range spans {
		for ; pos < sp.start; pos++ {
			oldLine, newLine = advance(ops[pos].Type, oldLine, newLine)
		}
		h := Hunk{OldStart: oldLine, NewStart: newLine, Lines: ops[sp.start:sp.end]}
		for ; pos < sp.end; pos++ {
			switch ops[pos].Type {
			case diff3.Equal:
				h.OldCount++
				h.NewCount++
			case diff3.Delete:
				h.OldCount++
			case diff3.Insert:
				h.NewCount++
			}
			oldLine, newLine = advance(ops[pos].Type, oldLine, newLine)
		}
		if h.OldCount == 0 {
			h.OldStart--
		}
		if h.NewCount == 0 {
			h.NewStart--
		}
		hunks = append(hunks, h)
	}
	return hunks
}

func advance(t diff3.DiffType, oldLine, newLine int) (int, int) {
	switch t {
	case diff3.Equal:
		return oldLine + 1, newLine + 1
	case diff3.Delete:
		return oldLine + 1, newLine
	}
	return oldLine, newLine + 1
}

// splitLines splits data after every newline, keeping the terminators so a
// missing final newline is a change of its own.
func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	lines := strings.SplitAfter(string(data), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
