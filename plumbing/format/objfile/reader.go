// Package objfile implements encoding and decoding of loose object files: a
// zlib stream holding a "<type> <size>\x00" header followed by the content.
package objfile

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-git/go-odb/plumbing"
	"github.com/go-git/go-odb/utils/sync"
)

// MaxHeaderSize is the number of bytes in which the header terminator of a
// loose object must be found.
const MaxHeaderSize = 128

var (
	// ErrClosed is returned when using a closed Reader or Writer.
	ErrClosed = errors.New("objfile: already closed")
	// ErrHeaderTooShort is returned when the stream ends before the header
	// terminator.
	ErrHeaderTooShort = fmt.Errorf("%w: loose object too small for header", plumbing.ErrMalformedObject)
	// ErrHeaderTooLong is returned when no header terminator is found in the
	// first MaxHeaderSize bytes.
	ErrHeaderTooLong = fmt.Errorf("%w: end of loose object header not found", plumbing.ErrMalformedObject)
)

// Reader reads and decodes compressed objfile data from a provided io.Reader.
// Reader implements io.ReadCloser. Close should be called when finished with
// the Reader. Close will not close the underlying io.Reader.
type Reader struct {
	zlib *sync.ZLibReader

	header    bool
	typ       plumbing.ObjectType
	size      uint64
	remaining uint64
	hasher    plumbing.Hasher
	err       error
}

// NewReader returns a new Reader reading from r. The zlib stream header is
// validated before returning.
func NewReader(r io.Reader) (*Reader, error) {
	zr, err := sync.GetZlibReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", plumbing.ErrMalformedObject, err)
	}

	return &Reader{zlib: zr}, nil
}

// Header reads the type and the size of the object, and prepares the reader
// for the content. Calling Header again returns the values read the first
// time.
//
// The header is consumed one byte at a time, so no payload byte is read
// ahead. The size is the token after the last space before the terminator.
func (r *Reader) Header() (t plumbing.ObjectType, size uint64, err error) {
	if r.header || r.err != nil {
		return r.typ, r.size, r.err
	}

	r.typ, r.size, r.err = r.readHeader()
	if r.err != nil {
		return r.typ, r.size, r.err
	}

	r.header = true
	r.remaining = r.size
	r.hasher = plumbing.NewHasher(r.typ, int64(r.size))
	return r.typ, r.size, nil
}

func (r *Reader) readHeader() (plumbing.ObjectType, uint64, error) {
	var buf [MaxHeaderSize]byte
	space, end := -1, -1

	for i := 0; i < MaxHeaderSize; i++ {
		if _, err := io.ReadFull(r.zlib, buf[i:i+1]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return plumbing.InvalidObject, 0, ErrHeaderTooShort
			}

			return plumbing.InvalidObject, 0, fmt.Errorf("%w: %w", plumbing.ErrMalformedObject, err)
		}

		if buf[i] == ' ' {
			space = i
		}

		if buf[i] == 0 {
			end = i
			break
		}
	}

	if end < 0 {
		return plumbing.InvalidObject, 0, ErrHeaderTooLong
	}

	if space < 0 {
		return plumbing.InvalidObject, 0, fmt.Errorf("%w: loose object header without size", plumbing.ErrMalformedObject)
	}

	typ, err := plumbing.ParseObjectType(string(buf[:space]))
	if err != nil {
		return plumbing.InvalidObject, 0, fmt.Errorf("%w: %q", plumbing.ErrUnsupportedObject, buf[:space])
	}

	size, err := strconv.ParseUint(string(buf[space+1:end]), 10, 64)
	if err != nil {
		return plumbing.InvalidObject, 0, fmt.Errorf("%w: invalid size %q", plumbing.ErrMalformedObject, buf[space+1:end])
	}

	return typ, size, nil
}

// Read reads up to len(p) bytes of the object content. It reads exactly the
// size announced by the header; a stream ending before that yields
// io.ErrUnexpectedEOF.
func (r *Reader) Read(p []byte) (n int, err error) {
	if r.zlib == nil {
		return 0, ErrClosed
	}

	if !r.header {
		if _, _, err := r.Header(); err != nil {
			return 0, err
		}
	}

	if r.remaining == 0 {
		return 0, io.EOF
	}

	if uint64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}

	n, err = r.zlib.Read(p)
	r.remaining -= uint64(n)
	r.hasher.Write(p[:n])

	switch {
	case err == io.EOF && r.remaining > 0:
		err = io.ErrUnexpectedEOF
	case err == io.EOF:
		err = nil
	}

	return n, err
}

// Size returns the content size read from the header.
func (r *Reader) Size() uint64 {
	return r.size
}

// Type returns the object type read from the header.
func (r *Reader) Type() plumbing.ObjectType {
	return r.typ
}

// Hash returns the hash of the object data read so far.
func (r *Reader) Hash() plumbing.Hash {
	if !r.header {
		return plumbing.ZeroHash
	}

	return r.hasher.Sum()
}

// Close releases any resources consumed by the Reader. It does not close the
// underlying source.
func (r *Reader) Close() error {
	if r.zlib == nil {
		return nil
	}

	sync.PutZlibReader(r.zlib)
	r.zlib = nil
	return nil
}
