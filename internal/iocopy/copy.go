// Package iocopy copies object contents through pooled buffers, optionally
// checking them against their hash.
package iocopy

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/go-git/go-odb/plumbing"
)

// ErrHashMismatch is returned by CopyObject when the content read does not
// match the object hash or size.
var ErrHashMismatch = errors.New("object hash mismatch")

// Copy is a variant of io.Copy that uses an internal buffer pool.
func Copy(w io.Writer, r io.Reader) (int64, error) {
	buf := bufPool.Get().(*[]byte)
	defer bufPool.Put(buf)

	return io.CopyBuffer(w, r, *buf)
}

// CopyObject copies the content of obj to w. If verify is set, the content is
// hashed while copied and ErrHashMismatch is returned unless it has the
// declared size and hashes to obj.Hash.
func CopyObject(w io.Writer, obj *plumbing.Object, verify bool) (int64, error) {
	if !verify {
		return Copy(w, obj)
	}

	h := plumbing.NewHasher(obj.Type, int64(obj.Size))
	n, err := Copy(io.MultiWriter(w, h), obj)
	if err != nil {
		return n, err
	}

	if uint64(n) != obj.Size {
		return n, fmt.Errorf("%w: %s: read %d bytes, want %d", ErrHashMismatch, obj.Hash, n, obj.Size)
	}

	if sum := h.Sum(); sum != obj.Hash {
		return n, fmt.Errorf("%w: %s: content hashes to %s", ErrHashMismatch, obj.Hash, sum)
	}

	return n, nil
}

// pointers to slices, so Put does not allocate
var bufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, 32*1024)
		return &buf
	},
}
