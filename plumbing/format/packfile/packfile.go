// Package packfile implements a reader for version 2 packfiles.
//
// Objects are located through a pack index and read with io.ReaderAt, so a
// single open Packfile serves concurrent lookups. Full objects are streamed
// from the pack; deltified objects are resolved in memory against their base
// chain.
package packfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-odb/plumbing"
	"github.com/go-git/go-odb/utils/ioutil"
	"github.com/go-git/go-odb/utils/refcount"
	"github.com/go-git/go-odb/utils/sync"
)

const (
	// VersionSupported is the packfile version supported by this package.
	VersionSupported uint32 = 2

	// DefaultMaxDeltaDepth is the default limit of bases resolved for a
	// single object.
	DefaultMaxDeltaDepth = 1000

	headerSize = 12
	// type and size varint, plus an offset varint or a base hash
	maxEntryHeaderSize = 10 + 10 + plumbing.HashSize
)

var signature = []byte{'P', 'A', 'C', 'K'}

// Index locates objects in a packfile.
type Index interface {
	FindOffset(h plumbing.Hash) (uint64, error)
}

// ReaderAtCloser is the random access file a Packfile reads from.
type ReaderAtCloser interface {
	io.ReaderAt
	io.Closer
}

// Packfile is an open packfile. It is reference counted: the creator owns one
// reference, released by Close, and every object streamed from the pack
// holds another one until closed.
type Packfile struct {
	// MaxDeltaDepth is the limit of bases resolved for a single object.
	MaxDeltaDepth int

	r     io.ReaderAt
	size  int64
	path  string
	count uint32
	refs  *refcount.Counter
}

// Open opens and validates the packfile at path.
func Open(fs billy.Filesystem, path string) (*Packfile, error) {
	fi, err := fs.Stat(path)
	if err != nil {
		return nil, err
	}

	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}

	p, err := NewPackfile(f, fi.Size())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	p.path = path
	return p, nil
}

// NewPackfile decodes the header of the packfile held in r, of the given
// size. The returned Packfile takes ownership of r and closes it once
// released.
func NewPackfile(r ReaderAtCloser, size int64) (*Packfile, error) {
	if size < headerSize+plumbing.HashSize {
		return nil, fmt.Errorf("%w: file too small", ErrMalformedPackfile)
	}

	var header [headerSize]byte
	if _, err := r.ReadAt(header[:], 0); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPackfile, err)
	}

	if !bytes.Equal(header[:4], signature) {
		return nil, fmt.Errorf("%w: bad signature", ErrMalformedPackfile)
	}

	if v := binary.BigEndian.Uint32(header[4:8]); v != VersionSupported {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	return &Packfile{
		MaxDeltaDepth: DefaultMaxDeltaDepth,
		r:             r,
		size:          size,
		count:         binary.BigEndian.Uint32(header[8:]),
		refs:          refcount.New(r),
	}, nil
}

// Count returns the number of objects declared by the pack header.
func (p *Packfile) Count() uint32 {
	return p.count
}

// Path returns the path the packfile was opened from, if any.
func (p *Packfile) Path() string {
	return p.path
}

// Acquire takes a reference on the packfile, keeping its file open until the
// matching Release. It returns false once the packfile has been closed.
func (p *Packfile) Acquire() bool {
	return p.refs.Acquire()
}

// Release drops a reference taken with Acquire.
func (p *Packfile) Release() error {
	return p.refs.Release()
}

// Close drops the owner reference. The file is closed once every reference
// is released.
func (p *Packfile) Close() error {
	return p.refs.Release()
}

// Lookup returns the object h, located through idx, or
// plumbing.ErrObjectNotFound if idx does not know it. The returned object
// must be closed.
func (p *Packfile) Lookup(idx Index, h plumbing.Hash) (*plumbing.Object, error) {
	if !p.Acquire() {
		return nil, ErrClosed
	}
	defer func() { _ = p.Release() }()

	off, err := idx.FindOffset(h)
	if err != nil {
		return nil, err
	}

	e, err := p.entryAt(off)
	if err != nil {
		return nil, err
	}

	if e.typ.IsDelta() {
		typ, content, err := p.resolve(idx, e, 0)
		if err != nil {
			return nil, fmt.Errorf("object %s: %w", h, err)
		}

		return &plumbing.Object{
			Hash: h,
			Type: typ,
			Size: uint64(len(content)),
			Data: io.NopCloser(bytes.NewReader(content)),
		}, nil
	}

	if !p.Acquire() {
		return nil, ErrClosed
	}

	zr, err := sync.GetZlibReader(io.NewSectionReader(p.r, e.dataOffset, p.size-e.dataOffset))
	if err != nil {
		_ = p.Release()
		return nil, fmt.Errorf("%w: object %s: %w", ErrMalformedPackfile, h, err)
	}

	stream := &objectReader{zr: zr, remaining: e.size}
	stream.closer = ioutil.OnceCloser(ioutil.CloserFunc(func() error {
		sync.PutZlibReader(zr)
		return p.Release()
	}))

	return &plumbing.Object{Hash: h, Type: e.typ, Size: e.size, Data: stream}, nil
}

type entry struct {
	typ        plumbing.ObjectType
	size       uint64
	offset     uint64
	dataOffset int64
	baseOffset uint64
	baseHash   plumbing.Hash
}

func (p *Packfile) entryAt(off uint64) (*entry, error) {
	if off < headerSize || int64(off) >= p.size-plumbing.HashSize {
		return nil, fmt.Errorf("%w: offset %d out of bounds", ErrMalformedPackfile, off)
	}

	var buf [maxEntryHeaderSize]byte
	n, err := p.r.ReadAt(buf[:], int64(off))
	if n == 0 && err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPackfile, err)
	}

	data := buf[:n]
	e := &entry{offset: off}

	c := data[0]
	e.typ = plumbing.ObjectType((c >> 4) & 7)
	e.size = uint64(c & 0x0f)
	i := 1
	for shift := uint(4); c&maskContinue != 0; shift += 7 {
		if i >= len(data) || shift > 57 {
			return nil, fmt.Errorf("%w: invalid entry size at offset %d", ErrMalformedPackfile, off)
		}

		c = data[i]
		i++
		e.size |= uint64(c&0x7f) << shift
	}

	switch {
	case e.typ == plumbing.OFSDeltaObject:
		distance, n, err := decodeOffsetDistance(data[i:])
		if err != nil || distance == 0 || distance > off {
			return nil, fmt.Errorf("%w: invalid delta base offset at offset %d", ErrMalformedPackfile, off)
		}

		e.baseOffset = off - distance
		i += n
	case e.typ == plumbing.REFDeltaObject:
		if len(data)-i < plumbing.HashSize {
			return nil, fmt.Errorf("%w: truncated delta base at offset %d", ErrMalformedPackfile, off)
		}

		copy(e.baseHash[:], data[i:])
		i += plumbing.HashSize
	case !e.typ.Valid():
		return nil, fmt.Errorf("%w: invalid object type %d at offset %d", ErrMalformedPackfile, e.typ, off)
	}

	e.dataOffset = int64(off) + int64(i)
	return e, nil
}

// decodeOffsetDistance decodes the negative offset of an OFS delta base. Each
// continuation byte adds one before shifting, so encodings are unique.
func decodeOffsetDistance(data []byte) (uint64, int, error) {
	if len(data) == 0 {
		return 0, 0, ErrMalformedPackfile
	}

	c := data[0]
	distance := uint64(c & 0x7f)
	i := 1
	for c&maskContinue != 0 {
		if i >= len(data) || i > 9 {
			return 0, 0, ErrMalformedPackfile
		}

		c = data[i]
		i++
		distance = ((distance + 1) << 7) | uint64(c&0x7f)
	}

	return distance, i, nil
}

func (p *Packfile) resolve(idx Index, e *entry, depth int) (plumbing.ObjectType, []byte, error) {
	if !e.typ.IsDelta() {
		content, err := p.inflate(e)
		return e.typ, content, err
	}

	if depth >= p.MaxDeltaDepth {
		return plumbing.InvalidObject, nil, ErrDeltaChainTooDeep
	}

	baseOffset := e.baseOffset
	if e.typ == plumbing.REFDeltaObject {
		var err error
		baseOffset, err = idx.FindOffset(e.baseHash)
		if err != nil {
			return plumbing.InvalidObject, nil, fmt.Errorf("%w: delta base %s: %w", ErrMalformedPackfile, e.baseHash, err)
		}
	}

	base, err := p.entryAt(baseOffset)
	if err != nil {
		return plumbing.InvalidObject, nil, err
	}

	typ, src, err := p.resolve(idx, base, depth+1)
	if err != nil {
		return plumbing.InvalidObject, nil, err
	}

	delta, err := p.inflate(e)
	if err != nil {
		return plumbing.InvalidObject, nil, err
	}

	content, err := PatchDelta(src, delta)
	return typ, content, err
}

// inflate reads the whole data of an entry.
func (p *Packfile) inflate(e *entry) ([]byte, error) {
	zr, err := sync.GetZlibReader(io.NewSectionReader(p.r, e.dataOffset, p.size-e.dataOffset))
	if err != nil {
		return nil, fmt.Errorf("%w: entry at offset %d: %w", ErrMalformedPackfile, e.offset, err)
	}
	defer sync.PutZlibReader(zr)

	buf := sync.GetBytesBuffer()
	defer sync.PutBytesBuffer(buf)

	n, err := io.Copy(buf, io.LimitReader(zr, int64(e.size)))
	if err != nil {
		return nil, fmt.Errorf("%w: entry at offset %d: %w", ErrMalformedPackfile, e.offset, err)
	}

	if uint64(n) != e.size {
		return nil, fmt.Errorf("%w: entry at offset %d: %w", ErrMalformedPackfile, e.offset, io.ErrUnexpectedEOF)
	}

	return bytes.Clone(buf.Bytes()), nil
}

// objectReader streams the data of a full object. It yields exactly the size
// declared in the entry header.
type objectReader struct {
	zr        *sync.ZLibReader
	remaining uint64
	closer    io.Closer
	closed    bool
}

func (r *objectReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, ErrClosed
	}

	if r.remaining == 0 {
		return 0, io.EOF
	}

	if uint64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}

	n, err := r.zr.Read(p)
	r.remaining -= uint64(n)

	switch {
	case err == io.EOF && r.remaining > 0:
		err = io.ErrUnexpectedEOF
	case err == io.EOF:
		err = nil
	}

	return n, err
}

func (r *objectReader) Close() error {
	r.closed = true
	return r.closer.Close()
}
