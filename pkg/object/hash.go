package object

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashHexLen is the length of a full hex-encoded object hash.
const HashHexLen = sha256.Size * 2

// MinPrefixLen is the shortest abbreviation accepted by FindByPrefix.
const MinPrefixLen = 4

// HashBytes computes the raw SHA-256 hash of data and returns it as a
// lowercase hex-encoded Hash.
func HashBytes(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// HashObject computes the SHA-256 of the envelope "type len\0content".
func HashObject(objType ObjectType, data []byte) Hash {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	h := sha256.New()
	h.Write([]byte(header))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// IsHex reports whether s is non-empty lowercase or uppercase hex.
func IsHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// IsFullHash reports whether s has the shape of a complete object hash.
func IsFullHash(s string) bool {
	return len(s) == HashHexLen && IsHex(s)
}
