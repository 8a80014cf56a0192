package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// MarshalBlob serializes a Blob to raw bytes (identity).
func MarshalBlob(b *Blob) []byte {
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out
}

// UnmarshalBlob deserializes raw bytes into a Blob.
func UnmarshalBlob(data []byte) (*Blob, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}, nil
}

// ---------------------------------------------------------------------------
// TreeObj
// ---------------------------------------------------------------------------

// MarshalTree serializes a TreeObj. Entries are sorted by Name for
// deterministic output. Each entry is one line:
//
//	mode hash name
//
// The name comes last so it may contain spaces.
func MarshalTree(tr *TreeObj) []byte {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	var buf bytes.Buffer
	for _, e := range sorted {
		mode := e.Mode
		if strings.TrimSpace(mode) == "" {
			mode = TreeModeFile
		}
		fmt.Fprintf(&buf, "%s %s %s\n", mode, e.Hash, e.Name)
	}
	return buf.Bytes()
}

// UnmarshalTree parses a TreeObj from its serialized form.
func UnmarshalTree(data []byte) (*TreeObj, error) {
	tr := &TreeObj{}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return tr, nil
	}
	for _, line := range strings.Split(text, "\n") {
		parts := strings.SplitN(line, " ", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("unmarshal tree: malformed entry %q", line)
		}
		if !validTreeMode(parts[0]) {
			return nil, fmt.Errorf("unmarshal tree: unknown mode %q", parts[0])
		}
		tr.Entries = append(tr.Entries, TreeEntry{
			Mode: parts[0],
			Hash: Hash(parts[1]),
			Name: parts[2],
		})
	}
	return tr, nil
}

func validTreeMode(mode string) bool {
	switch mode {
	case TreeModeDir, TreeModeFile, TreeModeExecutable, TreeModeSymlink:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// CommitObj
// ---------------------------------------------------------------------------

// MarshalCommit serializes a CommitObj:
//
//	tree H
//	parent H     (zero or more)
//	author Name <email> unix tz
//	committer Name <email> unix tz
//	signature S  (optional)
//
//	message
func MarshalCommit(c *CommitObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.TreeHash)
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	fmt.Fprintf(&buf, "author %s\n", formatSignature(c.Author))
	fmt.Fprintf(&buf, "committer %s\n", formatSignature(c.Committer))
	if strings.TrimSpace(c.Signature) != "" {
		fmt.Fprintf(&buf, "signature %s\n", c.Signature)
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// UnmarshalCommit parses a CommitObj from its serialized form.
func UnmarshalCommit(data []byte) (*CommitObj, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("unmarshal commit: missing header/message separator")
	}
	header := string(data[:idx])
	message := string(data[idx+2:])

	c := &CommitObj{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal commit: malformed header line %q", line)
		}
		switch key {
		case "tree":
			c.TreeHash = Hash(val)
		case "parent":
			c.Parents = append(c.Parents, Hash(val))
		case "author":
			sig, err := parseSignature(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: author: %w", err)
			}
			c.Author = sig
		case "committer":
			sig, err := parseSignature(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: committer: %w", err)
			}
			c.Committer = sig
		case "signature":
			c.Signature = val
		default:
			return nil, fmt.Errorf("unmarshal commit: unknown header key %q", key)
		}
	}
	if c.TreeHash == "" {
		return nil, fmt.Errorf("unmarshal commit: missing tree header")
	}
	return c, nil
}

func formatSignature(s Signature) string {
	when := s.When
	if when.IsZero() {
		when = time.Unix(0, 0).UTC()
	}
	return fmt.Sprintf("%s <%s> %d %s", s.Name, s.Email, when.Unix(), when.Format("-0700"))
}

func parseSignature(raw string) (Signature, error) {
	closeIdx := strings.LastIndexByte(raw, '>')
	open := strings.LastIndexByte(raw, '<')
	if open < 0 || closeIdx < open {
		return Signature{}, fmt.Errorf("malformed signature %q", raw)
	}
	sig := Signature{
		Name:  strings.TrimSpace(raw[:open]),
		Email: raw[open+1 : closeIdx],
	}

	fields := strings.Fields(raw[closeIdx+1:])
	if len(fields) != 2 {
		return Signature{}, fmt.Errorf("malformed signature time %q", raw)
	}
	unix, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Signature{}, fmt.Errorf("bad timestamp %q: %w", fields[0], err)
	}
	tz, err := time.Parse("-0700", fields[1])
	if err != nil {
		return Signature{}, fmt.Errorf("bad timezone %q: %w", fields[1], err)
	}
	sig.When = time.Unix(unix, 0).In(tz.Location())
	return sig, nil
}
