// Package ioutil implements some I/O utility functions.
package ioutil

import (
	"io"
	"sync"
)

// CloserFunc adapts a function to io.Closer.
type CloserFunc func() error

func (f CloserFunc) Close() error { return f() }

var _ io.Closer = CloserFunc(nil)

type readCloser struct {
	io.Reader
	closer io.Closer
}

func (r *readCloser) Close() error {
	return r.closer.Close()
}

// NewReadCloser creates an `io.ReadCloser` with the given `io.Reader` and
// `io.Closer`.
func NewReadCloser(r io.Reader, c io.Closer) io.ReadCloser {
	return &readCloser{Reader: r, closer: c}
}

type onceCloser struct {
	once   sync.Once
	closer io.Closer
	err    error
}

func (c *onceCloser) Close() error {
	c.once.Do(func() {
		c.err = c.closer.Close()
	})

	return c.err
}

// OnceCloser returns a closer that calls c.Close only the first time it is
// closed. Later calls return the result of the first one.
func OnceCloser(c io.Closer) io.Closer {
	return &onceCloser{closer: c}
}

// CheckClose calls Close on the given io.Closer. If the given *error points to
// nil, it will be assigned the error returned by Close. Otherwise, any error
// returned by Close will be ignored. CheckClose is usually called with defer.
func CheckClose(c io.Closer, err *error) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}
