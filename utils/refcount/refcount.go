// Package refcount implements reference counted ownership of closable
// resources, such as open packfiles shared by a cache and the object streams
// read from them.
//
// A Counter starts with one reference, owned by whoever created it. Every
// user that needs the resource to stay open calls Acquire and, when done,
// Release. The resource is closed exactly once, when the last reference is
// released. Once that happened, Acquire fails.
package refcount

import (
	"errors"
	"io"

	"go.uber.org/atomic"
)

// ErrReleased is returned by Release when called more times than the
// references taken.
var ErrReleased = errors.New("reference already released")

// Counter is a reference count guarding an io.Closer.
type Counter struct {
	refs   atomic.Int32
	closer io.Closer
}

// New returns a Counter holding one reference to c.
func New(c io.Closer) *Counter {
	r := &Counter{closer: c}
	r.refs.Store(1)
	return r
}

// Acquire takes a new reference. It returns false if the resource has already
// been closed, in which case no reference is taken.
func (r *Counter) Acquire() bool {
	for {
		n := r.refs.Load()
		if n <= 0 {
			return false
		}

		if r.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops a reference, closing the resource if it was the last one.
func (r *Counter) Release() error {
	n := r.refs.Dec()
	switch {
	case n == 0:
		return r.closer.Close()
	case n < 0:
		return ErrReleased
	}

	return nil
}

// Refs returns the number of live references.
func (r *Counter) Refs() int {
	n := r.refs.Load()
	if n < 0 {
		return 0
	}

	return int(n)
}
