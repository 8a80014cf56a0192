package object

import (
	"errors"
	"fmt"
)

// ErrWrongType is returned when an Object is down-cast to a kind it does
// not hold.
var ErrWrongType = errors.New("object type mismatch")

// Object is a decoded object of any kind. Use the As* methods to reach the
// typed payload.
type Object struct {
	Type ObjectType
	Hash Hash

	blob   *Blob
	tree   *TreeObj
	commit *CommitObj
}

// decodeObject parses raw envelope content into a tagged Object.
func decodeObject(h Hash, objType ObjectType, data []byte) (*Object, error) {
	obj := &Object{Type: objType, Hash: h}
	var err error
	switch objType {
	case TypeBlob:
		obj.blob, err = UnmarshalBlob(data)
	case TypeTree:
		obj.tree, err = UnmarshalTree(data)
	case TypeCommit:
		obj.commit, err = UnmarshalCommit(data)
	default:
		return nil, fmt.Errorf("object %s: unknown type %q", h, objType)
	}
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", h, err)
	}
	return obj, nil
}

// AsBlob returns the blob payload or ErrWrongType.
func (o *Object) AsBlob() (*Blob, error) {
	if o == nil || o.blob == nil {
		return nil, o.mismatch(TypeBlob)
	}
	return o.blob, nil
}

// AsTree returns the tree payload or ErrWrongType.
func (o *Object) AsTree() (*TreeObj, error) {
	if o == nil || o.tree == nil {
		return nil, o.mismatch(TypeTree)
	}
	return o.tree, nil
}

// AsCommit returns the commit payload or ErrWrongType.
func (o *Object) AsCommit() (*CommitObj, error) {
	if o == nil || o.commit == nil {
		return nil, o.mismatch(TypeCommit)
	}
	return o.commit, nil
}

func (o *Object) mismatch(want ObjectType) error {
	if o == nil {
		return fmt.Errorf("nil object: %w", ErrWrongType)
	}
	return fmt.Errorf("object %s: got %q, want %q: %w", o.Hash.Short(), o.Type, want, ErrWrongType)
}

// CommitSigningPayload returns the canonical bytes that are signed for a
// commit. The signature header is left out.
func CommitSigningPayload(c *CommitObj) []byte {
	if c == nil {
		return nil
	}
	unsigned := *c
	unsigned.Signature = ""
	return MarshalCommit(&unsigned)
}
