package object

import (
	"fmt"
	"strings"
	"time"
)

// Hash is a 64-character hex-encoded SHA-256 digest.
type Hash string

// Short returns the abbreviated form used in human-facing output.
func (h Hash) Short() string {
	if len(h) > 8 {
		return string(h[:8])
	}
	return string(h)
}

// IsZero reports whether h is the empty hash.
func (h Hash) IsZero() bool {
	return h == ""
}

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
)

const (
	// Tree mode constants compatible with Git's canonical mode strings.
	TreeModeDir        = "40000"
	TreeModeFile       = "100644"
	TreeModeExecutable = "100755"
	TreeModeSymlink    = "120000"
)

// Blob holds raw file data.
type Blob struct {
	Data []byte
}

// TreeEntry is one entry in a tree object. Hash names a blob for files and
// symlinks, and a subtree for directories.
type TreeEntry struct {
	Name string
	Mode string
	Hash Hash
}

// IsDir reports whether the entry refers to a subtree.
func (e TreeEntry) IsDir() bool {
	return e.Mode == TreeModeDir
}

// TreeObj holds a sorted list of tree entries.
type TreeObj struct {
	Entries []TreeEntry // sorted by Name
}

// Signature identifies who made a commit and when.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// NewSignature returns a signature stamped with the current time.
func NewSignature(name, email string) Signature {
	return Signature{Name: name, Email: email, When: time.Now()}
}

// String renders the identity part only, "Name <email>".
func (s Signature) String() string {
	return fmt.Sprintf("%s <%s>", s.Name, s.Email)
}

// ParseIdentity parses "Name <email>" into a signature stamped now.
func ParseIdentity(raw string) (Signature, error) {
	raw = strings.TrimSpace(raw)
	open := strings.LastIndexByte(raw, '<')
	closeIdx := strings.LastIndexByte(raw, '>')
	if open < 0 || closeIdx < open {
		return Signature{}, fmt.Errorf("parse identity %q: expected \"Name <email>\"", raw)
	}
	name := strings.TrimSpace(raw[:open])
	email := strings.TrimSpace(raw[open+1 : closeIdx])
	if name == "" {
		return Signature{}, fmt.Errorf("parse identity %q: empty name", raw)
	}
	return NewSignature(name, email), nil
}

// CommitObj represents a commit pointing to a tree with metadata.
type CommitObj struct {
	TreeHash  Hash
	Parents   []Hash
	Author    Signature
	Committer Signature
	Signature string
	Message   string
}

// Summary returns the first line of the commit message.
func (c *CommitObj) Summary() string {
	msg := strings.TrimLeft(c.Message, "\n")
	if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
		return msg[:idx]
	}
	return msg
}
