package object

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hnlq715/golang-lru"
	"github.com/klauspost/compress/zstd"
)

var (
	// ErrNotFound is returned when no object exists for a hash.
	ErrNotFound = errors.New("object not found")
	// ErrAmbiguousPrefix is returned when an abbreviated hash matches more
	// than one object.
	ErrAmbiguousPrefix = errors.New("ambiguous object prefix")
)

// DefaultCacheSize bounds the number of decoded trees and commits kept in
// memory per store.
const DefaultCacheSize = 1024

// Store is a content-addressed object store with a 2-character fan-out
// directory layout: objects/ab/cdef0123... Each file holds the
// zstd-compressed envelope "type len\0content".
type Store struct {
	root string

	codecOnce sync.Once
	codecErr  error
	enc       *zstd.Encoder
	dec       *zstd.Decoder

	cache *lru.Cache
}

// NewStore creates a Store rooted at the given directory. The objects/
// subdirectory is created lazily on first write.
func NewStore(root string) *Store {
	s := &Store{root: root}
	if c, err := lru.New(DefaultCacheSize); err == nil {
		s.cache = c
	}
	return s
}

func (s *Store) codec() error {
	s.codecOnce.Do(func() {
		s.enc, s.codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if s.codecErr != nil {
			return
		}
		s.dec, s.codecErr = zstd.NewReader(nil)
	})
	return s.codecErr
}

// objectPath returns the filesystem path for a given hash.
func (s *Store) objectPath(h Hash) string {
	return filepath.Join(s.root, "objects", string(h[:2]), string(h[2:]))
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	if len(h) < 3 {
		return false
	}
	_, err := os.Stat(s.objectPath(h))
	return err == nil
}

// Write stores an object and returns its content hash. The hash covers the
// uncompressed envelope. Writes are atomic: data is written to a temp file
// and then renamed into place.
func (s *Store) Write(objType ObjectType, data []byte) (Hash, error) {
	h := HashObject(objType, data)
	if s.Has(h) {
		return h, nil
	}
	if err := s.codec(); err != nil {
		return "", fmt.Errorf("object write: zstd: %w", err)
	}

	envelope := fmt.Sprintf("%s %d\x00", objType, len(data))
	raw := append([]byte(envelope), data...)
	compressed := s.enc.EncodeAll(raw, make([]byte, 0, len(raw)/2))

	dir := filepath.Join(s.root, "objects", string(h[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("object write mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("object write tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("object write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write close: %w", err)
	}
	if err := os.Rename(tmpName, s.objectPath(h)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write rename: %w", err)
	}
	return h, nil
}

// Read retrieves an object by hash, returning its type and raw content.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	if len(h) < 3 {
		return "", nil, fmt.Errorf("object read %q: %w", h, ErrNotFound)
	}
	compressed, err := os.ReadFile(s.objectPath(h))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, fmt.Errorf("object read %s: %w", h, ErrNotFound)
		}
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}
	if err := s.codec(); err != nil {
		return "", nil, fmt.Errorf("object read %s: zstd: %w", h, err)
	}
	raw, err := s.dec.DecodeAll(compressed, nil)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: decompress: %w", h, err)
	}

	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", nil, fmt.Errorf("object read %s: invalid format (no NUL)", h)
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	kind, lenStr, ok := strings.Cut(header, " ")
	if !ok {
		return "", nil, fmt.Errorf("object read %s: invalid header %q", h, header)
	}
	length, err := strconv.Atoi(lenStr)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: invalid length %q: %w", h, lenStr, err)
	}
	if len(content) != length {
		return "", nil, fmt.Errorf("object read %s: length mismatch (header=%d, actual=%d)", h, length, len(content))
	}
	return ObjectType(kind), content, nil
}

// ReadObject reads and decodes any object into its tagged form. Trees and
// commits are served from the in-memory cache when possible.
func (s *Store) ReadObject(h Hash) (*Object, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(h); ok {
			return v.(*Object), nil
		}
	}
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	obj, err := decodeObject(h, objType, data)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && objType != TypeBlob {
		s.cache.Add(h, obj)
	}
	return obj, nil
}

// FindByPrefix resolves an abbreviated hex hash to the single object it
// names.
func (s *Store) FindByPrefix(prefix string) (Hash, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if len(prefix) < MinPrefixLen || !IsHex(prefix) {
		return "", fmt.Errorf("find object %q: %w", prefix, ErrNotFound)
	}
	if IsFullHash(prefix) {
		if s.Has(Hash(prefix)) {
			return Hash(prefix), nil
		}
		return "", fmt.Errorf("find object %s: %w", prefix, ErrNotFound)
	}

	dir := filepath.Join(s.root, "objects", prefix[:2])
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("find object %s: %w", prefix, ErrNotFound)
		}
		return "", fmt.Errorf("find object %s: %w", prefix, err)
	}

	var match Hash
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.HasPrefix(name, prefix[2:]) {
			continue
		}
		if match != "" {
			return "", fmt.Errorf("find object %s: %w", prefix, ErrAmbiguousPrefix)
		}
		match = Hash(prefix[:2] + name)
	}
	if match == "" {
		return "", fmt.Errorf("find object %s: %w", prefix, ErrNotFound)
	}
	return match, nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// WriteBlob serializes and stores a Blob.
func (s *Store) WriteBlob(b *Blob) (Hash, error) {
	return s.Write(TypeBlob, MarshalBlob(b))
}

// ReadBlob reads and deserializes a Blob.
func (s *Store) ReadBlob(h Hash) (*Blob, error) {
	obj, err := s.ReadObject(h)
	if err != nil {
		return nil, err
	}
	return obj.AsBlob()
}

// WriteTree serializes and stores a TreeObj.
func (s *Store) WriteTree(tr *TreeObj) (Hash, error) {
	return s.Write(TypeTree, MarshalTree(tr))
}

// ReadTree reads and deserializes a TreeObj.
func (s *Store) ReadTree(h Hash) (*TreeObj, error) {
	obj, err := s.ReadObject(h)
	if err != nil {
		return nil, err
	}
	return obj.AsTree()
}

// WriteCommit serializes and stores a CommitObj.
func (s *Store) WriteCommit(c *CommitObj) (Hash, error) {
	return s.Write(TypeCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a CommitObj.
func (s *Store) ReadCommit(h Hash) (*CommitObj, error) {
	obj, err := s.ReadObject(h)
	if err != nil {
		return nil, err
	}
	return obj.AsCommit()
}
