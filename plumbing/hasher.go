package plumbing

import (
	"hash"
	"strconv"

	"github.com/pjbgf/sha1cd"
)

// Hasher computes the hash of an object: the "<type> <size>\0" header
// followed by the content. SHA-1 collision detection is always on.
type Hasher struct {
	hash.Hash
}

// NewHasher returns a Hasher primed with the header for an object of the
// given type and size.
func NewHasher(t ObjectType, size int64) Hasher {
	h := Hasher{sha1cd.New()}
	h.Reset(t, size)
	return h
}

// Reset clears the hasher and writes a new object header.
func (h Hasher) Reset(t ObjectType, size int64) {
	h.Hash.Reset()
	h.Write(t.Bytes())
	h.Write([]byte(" "))
	h.Write([]byte(strconv.FormatInt(size, 10)))
	h.Write([]byte{0})
}

// Sum returns the resulting Hash.
func (h Hasher) Sum() (sum Hash) {
	copy(sum[:], h.Hash.Sum(nil))
	return
}

// ComputeHash compute the hash for a given ObjectType and content
func ComputeHash(t ObjectType, content []byte) Hash {
	h := NewHasher(t, int64(len(content)))
	h.Write(content)
	return h.Sum()
}
