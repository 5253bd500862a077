// Package plumbing implements the core types shared by the object engine:
// hashes, object types and the streamed object returned to callers.
package plumbing

import (
	"io"
)

// ObjectType internal object type
// Integer values from 0 to 7 map to those exposed by git.
type ObjectType int8

const (
	// InvalidObject represents an invalid object type.
	InvalidObject ObjectType = 0
	// CommitObject is a git commit object.
	CommitObject ObjectType = 1
	// TreeObject is a git tree object.
	TreeObject ObjectType = 2
	// BlobObject is a git blob object.
	BlobObject ObjectType = 3
	// TagObject is a git tag object.
	TagObject ObjectType = 4
	// OFSDeltaObject is an offset delta object type (5 reserved for future expansion).
	OFSDeltaObject ObjectType = 6
	// REFDeltaObject is a reference delta object type.
	REFDeltaObject ObjectType = 7
)

func (t ObjectType) String() string {
	switch t {
	case CommitObject:
		return "commit"
	case TreeObject:
		return "tree"
	case BlobObject:
		return "blob"
	case TagObject:
		return "tag"
	case OFSDeltaObject:
		return "ofs-delta"
	case REFDeltaObject:
		return "ref-delta"
	default:
		return "unknown"
	}
}

// Bytes returns the byte representation of the ObjectType.
func (t ObjectType) Bytes() []byte {
	return []byte(t.String())
}

// Valid returns true if t is a type that can be returned to a caller, this
// is, a commit, tree, blob or tag.
func (t ObjectType) Valid() bool {
	return t >= CommitObject && t <= TagObject
}

// IsDelta returns true for any ObjectType that represents a delta (i.e.
// REFDeltaObject or OFSDeltaObject).
func (t ObjectType) IsDelta() bool {
	return t == REFDeltaObject || t == OFSDeltaObject
}

// ParseObjectType parses the type token found in a loose object header. Only
// the four storable types are accepted.
func ParseObjectType(value string) (typ ObjectType, err error) {
	switch value {
	case "commit":
		typ = CommitObject
	case "tree":
		typ = TreeObject
	case "blob":
		typ = BlobObject
	case "tag":
		typ = TagObject
	default:
		err = ErrInvalidType
	}
	return typ, err
}

// Object is an object resolved from storage. Its content is not loaded in
// memory, Data streams exactly Size bytes.
//
// The caller owns the object and must Close it to release the file and
// decompression handles behind Data.
type Object struct {
	Hash Hash
	Type ObjectType
	Size uint64
	Data io.ReadCloser
}

// Read reads from the object content.
func (o *Object) Read(p []byte) (int, error) {
	return o.Data.Read(p)
}

// Close releases the resources held by the object content. Closing a nil
// object is a no-op.
func (o *Object) Close() error {
	if o == nil || o.Data == nil {
		return nil
	}

	return o.Data.Close()
}

var _ io.ReadCloser = (*Object)(nil)
