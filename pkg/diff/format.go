package diff

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/odvcencio/grit/pkg/diff3"
	"github.com/odvcencio/grit/pkg/object"
)

const devNull = "/dev/null"

// Printer writes file diffs in unified format.
type Printer struct {
	w    io.Writer
	meta *color.Color
	frag *color.Color
	del  *color.Color
	add  *color.Color
}

// NewPrinter returns a Printer writing to w, coloring headers, hunk
// markers and changed lines when colored is set.
func NewPrinter(w io.Writer, colored bool) *Printer {
	p := &Printer{
		w:    w,
		meta: color.New(color.Bold),
		frag: color.New(color.FgCyan),
		del:  color.New(color.FgRed),
		add:  color.New(color.FgGreen),
	}
	for _, c := range []*color.Color{p.meta, p.frag, p.del, p.add} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Print writes one file diff:
//
//	diff --grit a/path b/path
//	index 1a2b3c4d..5e6f7a8b 100644
//	--- a/path
//	+++ b/path
//	@@ -1,3 +1,3 @@
func (p *Printer) Print(d *FileDiff) error {
	var b strings.Builder
	oldPath, newPath := d.OldPath, d.NewPath
	if oldPath == "" {
		oldPath = newPath
	}
	if newPath == "" {
		newPath = oldPath
	}

	meta := func(format string, args ...interface{}) {
		b.WriteString(p.meta.Sprintf(format, args...))
		b.WriteByte('\n')
	}
	meta("diff --grit a/%s b/%s", oldPath, newPath)
	switch d.Kind {
	case Added:
		meta("new file mode %s", d.NewMode)
	case Deleted:
		meta("deleted file mode %s", d.OldMode)
	case Renamed:
		meta("similarity index %d%%", d.Similarity)
		meta("rename from %s", oldPath)
		meta("rename to %s", newPath)
	}
	if d.OldMode != "" && d.NewMode != "" && d.OldMode != d.NewMode {
		meta("old mode %s", d.OldMode)
		meta("new mode %s", d.NewMode)
	}
	if d.OldHash != d.NewHash {
		index := "index " + shortOrZero(d.OldHash) + ".." + shortOrZero(d.NewHash)
		if d.OldMode == d.NewMode && d.OldMode != "" {
			index += " " + d.OldMode
		}
		meta("%s", index)
	}

	from, to := "a/"+oldPath, "b/"+newPath
	if d.Kind == Added {
		from = devNull
	}
	if d.Kind == Deleted {
		to = devNull
	}
	if d.Binary {
		fmt.Fprintf(&b, "Binary files %s and %s differ\n", from, to)
	} else if len(d.Hunks) > 0 {
		meta("--- %s", from)
		meta("+++ %s", to)
		for _, h := range d.Hunks {
			p.hunk(&b, h)
		}
	}
	_, err := io.WriteString(p.w, b.String())
	return err
}

func (p *Printer) hunk(b *strings.Builder, h Hunk) {
	b.WriteString(p.frag.Sprintf("@@ -%s +%s @@", hunkRange(h.OldStart, h.OldCount), hunkRange(h.NewStart, h.NewCount)))
	b.WriteByte('\n')
	for _, op := range h.Lines {
		line := strings.TrimSuffix(op.Line, "\n")
		switch op.Type {
		case diff3.Equal:
			b.WriteString(" " + line)
		case diff3.Delete:
			b.WriteString(p.del.Sprint("-" + line))
		case diff3.Insert:
			b.WriteString(p.add.Sprint("+" + line))
		}
		b.WriteByte('\n')
		if !strings.HasSuffix(op.Line, "\n") {
			b.WriteString("\\ No newline at end of file\n")
		}
	}
}

// hunkRange renders "start,count", dropping a count of one.
func hunkRange(start, count int) string {
	if count == 1 {
		return fmt.Sprint(start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}

func shortOrZero(h object.Hash) string {
	if h == "" {
		return "00000000"
	}
	return h.Short()
}

// PrintNameStatus writes one "<letter>\t<path>" line per diff; renames
// carry their score and both paths.
func PrintNameStatus(w io.Writer, diffs []*FileDiff) error {
	for _, d := range diffs {
		var err error
		if d.Kind == Renamed {
			_, err = fmt.Fprintf(w, "R%03d\t%s\t%s\n", d.Similarity, d.OldPath, d.NewPath)
		} else {
			_, err = fmt.Fprintf(w, "%s\t%s\n", d.Kind.Letter(), d.Path())
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// PrintNameOnly writes the path of every diff, one per line.
func PrintNameOnly(w io.Writer, diffs []*FileDiff) error {
	for _, d := range diffs {
		if _, err := fmt.Fprintln(w, d.Path()); err != nil {
			return err
		}
	}
	return nil
}
