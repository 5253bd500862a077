package plumbing

import (
	"bytes"
	"encoding/hex"
	"sort"
)

const (
	// HashSize is the number of bytes of an object hash.
	HashSize = 20
	// HexSize is the length of the hexadecimal representation of a Hash.
	HexSize = HashSize * 2
)

// Hash is the SHA-1 content hash identifying an object.
type Hash [HashSize]byte

// ZeroHash is Hash with value zero
var ZeroHash Hash

// FromHex parses a 40 character hexadecimal string, in any case, and returns
// the Hash and whether the input was valid.
func FromHex(s string) (Hash, bool) {
	var h Hash
	if len(s) != HexSize {
		return h, false
	}

	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return ZeroHash, false
	}

	return h, true
}

// NewHash return a new Hash from a hexadecimal hash representation. Invalid
// input yields ZeroHash.
func NewHash(s string) Hash {
	h, _ := FromHex(s)
	return h
}

// FromBytes creates a Hash from its raw representation.
func FromBytes(b []byte) (Hash, bool) {
	var h Hash
	if len(b) != HashSize {
		return h, false
	}

	copy(h[:], b)
	return h, true
}

// IsZero returns true if the hash is zero.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// Bytes returns the raw bytes of the hash.
func (h Hash) Bytes() []byte {
	return h[:]
}

// Compare compares the hash with a slice of raw bytes.
func (h Hash) Compare(b []byte) int {
	return bytes.Compare(h[:], b)
}

// String returns the lowercase hexadecimal representation of the Hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// HashesSort sorts a slice of Hashes in increasing order.
func HashesSort(a []Hash) {
	sort.Sort(HashSlice(a))
}

// HashSlice attaches the methods of sort.Interface to []Hash, sorting in
// increasing order.
type HashSlice []Hash

func (p HashSlice) Len() int           { return len(p) }
func (p HashSlice) Less(i, j int) bool { return p[i].Compare(p[j][:]) < 0 }
func (p HashSlice) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
