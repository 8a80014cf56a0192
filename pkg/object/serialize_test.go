package object

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestMarshalUnmarshalBlob(t *testing.T) {
	orig := &Blob{Data: []byte("hello world\nline two")}
	got, err := UnmarshalBlob(MarshalBlob(orig))
	if err != nil {
		t.Fatalf("UnmarshalBlob: %v", err)
	}
	if !bytes.Equal(got.Data, orig.Data) {
		t.Errorf("Blob round-trip mismatch: got %q, want %q", got.Data, orig.Data)
	}
}

func TestMarshalTreeSortsAndKeepsSpaces(t *testing.T) {
	tr := &TreeObj{Entries: []TreeEntry{
		{Name: "z dir", Mode: TreeModeDir, Hash: "2222"},
		{Name: "a file.txt", Mode: TreeModeFile, Hash: "1111"},
		{Name: "link", Mode: TreeModeSymlink, Hash: "3333"},
		{Name: "run.sh", Mode: TreeModeExecutable, Hash: "4444"},
	}}
	data := MarshalTree(tr)
	if !strings.HasPrefix(string(data), "100644 1111 a file.txt\n") {
		t.Fatalf("unexpected tree encoding:\n%s", data)
	}

	got, err := UnmarshalTree(data)
	if err != nil {
		t.Fatalf("UnmarshalTree: %v", err)
	}
	if len(got.Entries) != 4 {
		t.Fatalf("entries: got %d, want 4", len(got.Entries))
	}
	if got.Entries[3].Name != "z dir" || !got.Entries[3].IsDir() {
		t.Errorf("last entry: %+v", got.Entries[3])
	}
	if got.Entries[1].Mode != TreeModeSymlink {
		t.Errorf("symlink mode lost: %+v", got.Entries[1])
	}
}

func TestUnmarshalTreeRejectsUnknownMode(t *testing.T) {
	if _, err := UnmarshalTree([]byte("100600 abcd x\n")); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestMarshalUnmarshalCommit(t *testing.T) {
	when := time.Date(2024, 3, 1, 12, 30, 0, 0, time.FixedZone("", 2*3600))
	orig := &CommitObj{
		TreeHash:  "aaaa",
		Parents:   []Hash{"bbbb", "cccc"},
		Author:    Signature{Name: "Ada Lovelace", Email: "ada@example.com", When: when},
		Committer: Signature{Name: "Grace Hopper", Email: "grace@example.com", When: when.Add(time.Hour)},
		Signature: "sshsig-v1:ssh-ed25519:AAA:BBB",
		Message:   "subject line\n\nbody\n",
	}
	data := MarshalCommit(orig)
	if !bytes.Contains(data, []byte("author Ada Lovelace <ada@example.com> 1709289000 +0200\n")) {
		t.Fatalf("author header not encoded as expected:\n%s", data)
	}

	got, err := UnmarshalCommit(data)
	if err != nil {
		t.Fatalf("UnmarshalCommit: %v", err)
	}
	if got.TreeHash != orig.TreeHash || len(got.Parents) != 2 || got.Parents[1] != "cccc" {
		t.Errorf("tree/parents mismatch: %+v", got)
	}
	if got.Author.Name != "Ada Lovelace" || got.Author.Email != "ada@example.com" {
		t.Errorf("author: %+v", got.Author)
	}
	if !got.Author.When.Equal(when) {
		t.Errorf("author time: got %v, want %v", got.Author.When, when)
	}
	if _, off := got.Author.When.Zone(); off != 2*3600 {
		t.Errorf("author zone offset: got %d", off)
	}
	if got.Committer.Name != "Grace Hopper" {
		t.Errorf("committer: %+v", got.Committer)
	}
	if got.Signature != orig.Signature {
		t.Errorf("signature: %q", got.Signature)
	}
	if got.Message != orig.Message {
		t.Errorf("message: %q", got.Message)
	}
	if got.Summary() != "subject line" {
		t.Errorf("summary: %q", got.Summary())
	}
}

func TestCommitSigningPayloadExcludesSignature(t *testing.T) {
	c := &CommitObj{TreeHash: "aaaa", Signature: "sig", Message: "m"}
	payload := CommitSigningPayload(c)
	if bytes.Contains(payload, []byte("signature")) {
		t.Fatalf("payload contains signature header:\n%s", payload)
	}
	if c.Signature != "sig" {
		t.Error("CommitSigningPayload mutated its argument")
	}
}

func TestParseIdentity(t *testing.T) {
	sig, err := ParseIdentity("Jane Doe <jane@example.com>")
	if err != nil {
		t.Fatalf("ParseIdentity: %v", err)
	}
	if sig.Name != "Jane Doe" || sig.Email != "jane@example.com" {
		t.Errorf("got %+v", sig)
	}
	if _, err := ParseIdentity("no email here"); err == nil {
		t.Error("expected error for identity without email")
	}
}
