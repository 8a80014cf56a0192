package object

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const missingHash = Hash("0000000000000000000000000000000000000000000000000000000000000000")

func TestHashObjectEnvelope(t *testing.T) {
	data := []byte("hello")
	h1 := HashObject(TypeBlob, data)
	if h1 == HashBytes(data) {
		t.Error("HashObject should differ from HashBytes due to envelope")
	}
	if h1 != HashObject(TypeBlob, data) {
		t.Error("HashObject not deterministic")
	}
	if h1 == HashObject(TypeCommit, data) {
		t.Error("Different types should produce different hashes")
	}
	if len(h1) != HashHexLen {
		t.Errorf("Hash length: got %d, want %d", len(h1), HashHexLen)
	}
}

func tempStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir())
}

func TestStoreWriteRead(t *testing.T) {
	s := tempStore(t)
	data := []byte("hello world")
	h, err := s.Write(TypeBlob, data)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	gotType, gotData, err := s.Read(h)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if gotType != TypeBlob {
		t.Errorf("Type: got %q, want %q", gotType, TypeBlob)
	}
	if !bytes.Equal(gotData, data) {
		t.Errorf("Data: got %q, want %q", gotData, data)
	}
}

func TestStoreObjectsAreCompressed(t *testing.T) {
	s := tempStore(t)
	data := bytes.Repeat([]byte("compress me please\n"), 200)
	h, err := s.Write(TypeBlob, data)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(s.root, "objects", string(h[:2]), string(h[2:])))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(raw) >= len(data) {
		t.Errorf("on-disk size %d not smaller than content size %d", len(raw), len(data))
	}
	if bytes.HasPrefix(raw, []byte("blob ")) {
		t.Error("object stored without compression")
	}
}

func TestStoreHas(t *testing.T) {
	s := tempStore(t)
	h, err := s.Write(TypeBlob, []byte("exists"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !s.Has(h) {
		t.Error("Has returned false for existing object")
	}
	if s.Has(missingHash) {
		t.Error("Has returned true for non-existing object")
	}
}

func TestStoreReadMissing(t *testing.T) {
	s := tempStore(t)
	_, _, err := s.Read(missingHash)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read missing: got %v, want ErrNotFound", err)
	}
}

func TestStoreDuplicateWrite(t *testing.T) {
	s := tempStore(t)
	h1, err := s.Write(TypeBlob, []byte("duplicate"))
	if err != nil {
		t.Fatalf("Write 1: %v", err)
	}
	h2, err := s.Write(TypeBlob, []byte("duplicate"))
	if err != nil {
		t.Fatalf("Write 2: %v", err)
	}
	if h1 != h2 {
		t.Errorf("Same content produced different hashes: %q vs %q", h1, h2)
	}
}

func TestStoreTypedRoundTrip(t *testing.T) {
	s := tempStore(t)

	blobHash, err := s.WriteBlob(&Blob{Data: []byte("blob content\n")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	treeHash, err := s.WriteTree(&TreeObj{Entries: []TreeEntry{
		{Name: "a.txt", Mode: TreeModeFile, Hash: blobHash},
	}})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	commitHash, err := s.WriteCommit(&CommitObj{
		TreeHash:  treeHash,
		Author:    NewSignature("Ada", "ada@example.com"),
		Committer: NewSignature("Ada", "ada@example.com"),
		Message:   "initial\n",
	})
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}

	c, err := s.ReadCommit(commitHash)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if c.TreeHash != treeHash {
		t.Errorf("TreeHash: got %s, want %s", c.TreeHash, treeHash)
	}
	tr, err := s.ReadTree(c.TreeHash)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(tr.Entries) != 1 || tr.Entries[0].Hash != blobHash {
		t.Fatalf("tree entries: %+v", tr.Entries)
	}
	b, err := s.ReadBlob(blobHash)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if string(b.Data) != "blob content\n" {
		t.Errorf("blob data: %q", b.Data)
	}
}

func TestStoreTypeMismatch(t *testing.T) {
	s := tempStore(t)
	h, err := s.WriteBlob(&Blob{Data: []byte("not a commit")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	if _, err := s.ReadCommit(h); !errors.Is(err, ErrWrongType) {
		t.Fatalf("ReadCommit on blob: got %v, want ErrWrongType", err)
	}

	obj, err := s.ReadObject(h)
	if err != nil {
		t.Fatalf("ReadObject: %v", err)
	}
	if obj.Type != TypeBlob {
		t.Errorf("Type: got %q", obj.Type)
	}
	if _, err := obj.AsTree(); !errors.Is(err, ErrWrongType) {
		t.Errorf("AsTree on blob: got %v", err)
	}
	if _, err := obj.AsBlob(); err != nil {
		t.Errorf("AsBlob: %v", err)
	}
}

func TestStoreFindByPrefix(t *testing.T) {
	s := tempStore(t)
	h, err := s.WriteBlob(&Blob{Data: []byte("find me")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}

	got, err := s.FindByPrefix(string(h[:7]))
	if err != nil {
		t.Fatalf("FindByPrefix: %v", err)
	}
	if got != h {
		t.Errorf("FindByPrefix: got %s, want %s", got, h)
	}

	if _, err := s.FindByPrefix("abc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("short prefix: got %v, want ErrNotFound", err)
	}
	if _, err := s.FindByPrefix("zzzz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("non-hex prefix: got %v, want ErrNotFound", err)
	}
}

func TestStoreFindByPrefixAmbiguous(t *testing.T) {
	s := tempStore(t)

	// Write blobs until two share a 4-character prefix.
	seen := make(map[string]Hash)
	var prefix string
	for i := 0; prefix == "" && i < 200000; i++ {
		h, err := s.WriteBlob(&Blob{Data: []byte{byte(i), byte(i >> 8), byte(i >> 16)}})
		if err != nil {
			t.Fatalf("WriteBlob: %v", err)
		}
		p := string(h[:4])
		if prev, ok := seen[p]; ok && prev != h {
			prefix = p
		}
		seen[p] = h
	}
	if prefix == "" {
		t.Skip("no colliding prefix found")
	}
	if _, err := s.FindByPrefix(prefix); !errors.Is(err, ErrAmbiguousPrefix) {
		t.Fatalf("FindByPrefix(%s): got %v, want ErrAmbiguousPrefix", prefix, err)
	}
}
