package diff3

import (
	"bytes"
	"strings"
)

// HunkType classifies a hunk in a three-way merge result.
type HunkType int

const (
	HunkClean    HunkType = iota // Hunk was merged cleanly.
	HunkConflict                 // Hunk has a conflict that requires manual resolution.
)

// Hunk represents a contiguous section of the merge output.
type Hunk struct {
	Type                       HunkType
	Base, Ours, Theirs, Merged []byte
}

// Result holds the outcome of a three-way merge.
type Result struct {
	Merged       []byte // Full merged content (with conflict markers if conflicts exist).
	HasConflicts bool
	Conflicts    int // number of conflicting hunks
	Hunks        []Hunk
}

// Labels name the two sides in conflict markers.
type Labels struct {
	Ours   string
	Theirs string
}

func (l Labels) withDefaults() Labels {
	if l.Ours == "" {
		l.Ours = "ours"
	}
	if l.Theirs == "" {
		l.Theirs = "theirs"
	}
	return l
}

// Merge performs a three-way merge of base, ours, and theirs with the
// default "ours"/"theirs" marker labels.
func Merge(base, ours, theirs []byte) Result {
	return MergeWithLabels(base, ours, theirs, Labels{})
}

// MergeWithLabels performs a line-based three-way merge. Both sides are
// diffed against base; regions changed on one side only are taken from
// that side, identical changes are taken once, and differing changes to
// the same base region become a conflict hunk.
func MergeWithLabels(base, ours, theirs []byte, labels Labels) Result {
	baseLines := splitLines(string(base))
	m := &merger{base: baseLines, labels: labels.withDefaults()}
	m.run(buildChunks(baseLines, splitLines(string(ours))), buildChunks(baseLines, splitLines(string(theirs))))
	return Result{
		Merged:       m.out.Bytes(),
		HasConflicts: m.conflicts > 0,
		Conflicts:    m.conflicts,
		Hunks:        m.hunks,
	}
}

// splitLines splits s into lines. A trailing newline does not produce
// an extra empty element.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// chunk is a contiguous region [baseStart, baseEnd) of base together with
// the lines one side replaced it with.
type chunk struct {
	baseStart, baseEnd int
	lines              []string
	changed            bool
}

// buildChunks converts a two-way diff (base → side) into chunks covering
// every base line in order.
func buildChunks(base, side []string) []chunk {
	ops := MyersDiff(base, side)

	var chunks []chunk
	baseIdx := 0
	for i := 0; i < len(ops); {
		if ops[i].Type == Equal {
			chunks = append(chunks, chunk{baseStart: baseIdx, baseEnd: baseIdx + 1, lines: []string{ops[i].Line}})
			baseIdx++
			i++
			continue
		}

		start := baseIdx
		var replacement []string
		for ; i < len(ops) && ops[i].Type != Equal; i++ {
			if ops[i].Type == Delete {
				baseIdx++
			} else {
				replacement = append(replacement, ops[i].Line)
			}
		}
		chunks = append(chunks, chunk{baseStart: start, baseEnd: baseIdx, lines: replacement, changed: true})
	}
	return chunks
}

type merger struct {
	base      []string
	labels    Labels
	out       bytes.Buffer
	hunks     []Hunk
	conflicts int
}

// run walks both chunk sequences in base order. Chunks that cover the same
// base range are resolved pairwise; otherwise all chunks overlapping the
// widened region are gathered from both sides until the region is stable.
func (m *merger) run(ours, theirs []chunk) {
	oi, ti := 0, 0
	for oi < len(ours) || ti < len(theirs) {
		switch {
		case oi >= len(ours):
			m.resolve(theirs[ti].baseStart, theirs[ti].baseEnd, nil, false, theirs[ti].lines, theirs[ti].changed)
			ti++
			continue
		case ti >= len(theirs):
			m.resolve(ours[oi].baseStart, ours[oi].baseEnd, ours[oi].lines, ours[oi].changed, nil, false)
			oi++
			continue
		}

		oc, tc := ours[oi], theirs[ti]
		if oc.baseStart == tc.baseStart && oc.baseEnd == tc.baseEnd {
			m.resolve(oc.baseStart, oc.baseEnd, oc.lines, oc.changed, tc.lines, tc.changed)
			oi++
			ti++
			continue
		}

		start := min(oc.baseStart, tc.baseStart)
		end := max(oc.baseEnd, tc.baseEnd)
		var oursRegion, theirsRegion []chunk
		for grew := true; grew; {
			grew = false
			for oi < len(ours) && ours[oi].baseStart < end {
				oursRegion = append(oursRegion, ours[oi])
				end = max(end, ours[oi].baseEnd)
				oi++
				grew = true
			}
			for ti < len(theirs) && theirs[ti].baseStart < end {
				theirsRegion = append(theirsRegion, theirs[ti])
				end = max(end, theirs[ti].baseEnd)
				ti++
				grew = true
			}
		}
		m.resolve(start, end,
			assembleRegion(oursRegion), anyChanged(oursRegion),
			assembleRegion(theirsRegion), anyChanged(theirsRegion))
	}
}

// resolve emits one region. When a side did not change the region its
// lines equal the base lines, so the "other" side wins.
func (m *merger) resolve(start, end int, oursLines []string, oursChanged bool, theirsLines []string, theirsChanged bool) {
	baseRegion := m.base[start:end]
	switch {
	case !oursChanged && !theirsChanged:
		m.emitClean(baseRegion, baseRegion, nil, nil)
	case oursChanged && !theirsChanged:
		m.emitClean(baseRegion, oursLines, oursLines, nil)
	case !oursChanged && theirsChanged:
		m.emitClean(baseRegion, theirsLines, nil, theirsLines)
	case linesEqual(oursLines, theirsLines):
		m.emitClean(baseRegion, oursLines, oursLines, theirsLines)
	default:
		m.conflicts++
		m.out.WriteString("<<<<<<< " + m.labels.Ours + "\n")
		writeLines(&m.out, oursLines)
		m.out.WriteString("=======\n")
		writeLines(&m.out, theirsLines)
		m.out.WriteString(">>>>>>> " + m.labels.Theirs + "\n")
		m.hunks = append(m.hunks, Hunk{
			Type:   HunkConflict,
			Base:   joinLines(baseRegion),
			Ours:   joinLines(oursLines),
			Theirs: joinLines(theirsLines),
		})
	}
}

func (m *merger) emitClean(base, merged, ours, theirs []string) {
	writeLines(&m.out, merged)
	m.hunks = append(m.hunks, Hunk{
		Type:   HunkClean,
		Base:   joinLines(base),
		Ours:   joinLines(ours),
		Theirs: joinLines(theirs),
		Merged: joinLines(merged),
	})
}

func writeLines(buf *bytes.Buffer, lines []string) {
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
}

func joinLines(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}
	var buf bytes.Buffer
	writeLines(&buf, lines)
	return buf.Bytes()
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func assembleRegion(chunks []chunk) []string {
	var lines []string
	for _, c := range chunks {
		lines = append(lines, c.lines...)
	}
	return lines
}

func anyChanged(chunks []chunk) bool {
	for _, c := range chunks {
		if c.changed {
			return true
		}
	}
	return false
}
