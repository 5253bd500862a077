// Package idxfile implements a reader for version 2 pack index files.
//
// The index is not loaded in memory. Besides the fanout table, every lookup
// reads the names and offsets tables through io.ReaderAt, so a single open
// Index can serve concurrent lookups.
package idxfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-odb/plumbing"
	"github.com/go-git/go-odb/utils/refcount"
)

const (
	// VersionSupported is the only idx version supported.
	VersionSupported = 2

	headerSize = 8
	fanoutSize = 256 * 4
	crcSize    = 4
	off32Size  = 4
	off64Size  = 8

	// pack checksum followed by the idx checksum
	trailerSize = 2 * plumbing.HashSize

	is64bitsMask = uint64(1) << 31
)

var (
	// ErrMalformedIdxFile is returned when the index header, fanout table or
	// layout is invalid.
	ErrMalformedIdxFile = errors.New("malformed IDX file")
	// ErrUnsupportedVersion is returned by Open when the idx file version is
	// not supported.
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported version", ErrMalformedIdxFile)

	idxHeader = []byte{255, 't', 'O', 'c'}
)

// ReaderAtCloser is the random access file an Index reads from.
type ReaderAtCloser interface {
	io.ReaderAt
	io.Closer
}

// Index is an open version 2 pack index. It is reference counted: the
// creator owns one reference, released by Close.
type Index struct {
	r    io.ReaderAt
	path string
	refs *refcount.Counter

	fanout     [256]uint32
	count      int
	namesStart int64
	off32Start int64
	off64Start int64
	off64Count int64
}

// Open opens and validates the index file at path.
func Open(fs billy.Filesystem, path string) (*Index, error) {
	fi, err := fs.Stat(path)
	if err != nil {
		return nil, err
	}

	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}

	idx, err := NewIndex(f, fi.Size())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	idx.path = path
	return idx, nil
}

// NewIndex decodes the index held in r, of the given size. The returned
// Index takes ownership of r and closes it once released.
func NewIndex(r ReaderAtCloser, size int64) (*Index, error) {
	idx := &Index{r: r}
	if err := idx.decode(size); err != nil {
		return nil, err
	}

	idx.refs = refcount.New(r)
	return idx, nil
}

func (idx *Index) decode(size int64) error {
	if size < headerSize+fanoutSize+trailerSize {
		return fmt.Errorf("%w: file too small", ErrMalformedIdxFile)
	}

	var header [headerSize]byte
	if _, err := idx.r.ReadAt(header[:], 0); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedIdxFile, err)
	}

	if !bytes.Equal(header[:4], idxHeader) {
		return fmt.Errorf("%w: bad signature", ErrMalformedIdxFile)
	}

	if v := binary.BigEndian.Uint32(header[4:]); v != VersionSupported {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	fanout := make([]byte, fanoutSize)
	if _, err := idx.r.ReadAt(fanout, headerSize); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedIdxFile, err)
	}

	var prev uint32
	for i := range idx.fanout {
		n := binary.BigEndian.Uint32(fanout[i*4:])
		if n < prev {
			return fmt.Errorf("%w: fanout table not sorted", ErrMalformedIdxFile)
		}

		idx.fanout[i] = n
		prev = n
	}

	idx.count = int(idx.fanout[255])
	count := int64(idx.count)
	idx.namesStart = headerSize + fanoutSize
	idx.off32Start = idx.namesStart + count*(plumbing.HashSize+crcSize)
	idx.off64Start = idx.off32Start + count*off32Size

	rest := size - idx.off64Start - trailerSize
	if rest < 0 || rest%off64Size != 0 {
		return fmt.Errorf("%w: unexpected file size %d for %d objects", ErrMalformedIdxFile, size, count)
	}

	idx.off64Count = rest / off64Size
	return nil
}

// Count returns the number of objects in the index.
func (idx *Index) Count() int {
	return idx.count
}

// Path returns the path the index was opened from, if any.
func (idx *Index) Path() string {
	return idx.path
}

// Contains checks whether the given hash is in the index.
func (idx *Index) Contains(h plumbing.Hash) (bool, error) {
	_, err := idx.FindOffset(h)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return false, nil
	}

	return err == nil, err
}

// FindOffset returns the offset in the packfile of the object with the given
// hash, or plumbing.ErrObjectNotFound.
func (idx *Index) FindOffset(h plumbing.Hash) (uint64, error) {
	first := int(h[0])
	var lo int
	if first > 0 {
		lo = int(idx.fanout[first-1])
	}
	hi := int(idx.fanout[first])

	pos, err := idx.search(lo, hi, h)
	if err != nil {
		return 0, err
	}

	return idx.offset(pos)
}

// search does a binary search of h in the names table, between positions lo
// (inclusive) and hi (exclusive).
func (idx *Index) search(lo, hi int, h plumbing.Hash) (int, error) {
	var (
		buf     [plumbing.HashSize]byte
		readErr error
	)

	pos := lo + sort.Search(hi-lo, func(i int) bool {
		if readErr != nil {
			return true
		}

		if readErr = idx.name(lo+i, buf[:]); readErr != nil {
			return true
		}

		return bytes.Compare(buf[:], h[:]) >= 0
	})

	if readErr != nil {
		return 0, readErr
	}

	if pos >= hi {
		return 0, plumbing.ErrObjectNotFound
	}

	if err := idx.name(pos, buf[:]); err != nil {
		return 0, err
	}

	if !bytes.Equal(buf[:], h[:]) {
		return 0, plumbing.ErrObjectNotFound
	}

	return pos, nil
}

func (idx *Index) name(pos int, buf []byte) error {
	off := idx.namesStart + int64(pos)*plumbing.HashSize
	if _, err := idx.r.ReadAt(buf, off); err != nil {
		return fmt.Errorf("%w: reading object name: %w", ErrMalformedIdxFile, err)
	}

	return nil
}

func (idx *Index) offset(pos int) (uint64, error) {
	var buf [off64Size]byte
	off := idx.off32Start + int64(pos)*off32Size
	if _, err := idx.r.ReadAt(buf[:off32Size], off); err != nil {
		return 0, fmt.Errorf("%w: reading offset: %w", ErrMalformedIdxFile, err)
	}

	off32 := uint64(binary.BigEndian.Uint32(buf[:off32Size]))
	if off32&is64bitsMask == 0 {
		return off32, nil
	}

	i := int64(off32 &^ is64bitsMask)
	if i >= idx.off64Count {
		return 0, fmt.Errorf("%w: 64-bit offset %d out of range", ErrMalformedIdxFile, i)
	}

	if _, err := idx.r.ReadAt(buf[:], idx.off64Start+i*off64Size); err != nil {
		return 0, fmt.Errorf("%w: reading 64-bit offset: %w", ErrMalformedIdxFile, err)
	}

	return binary.BigEndian.Uint64(buf[:]), nil
}

// Acquire takes a reference on the index, keeping its file open until the
// matching Release. It returns false once the index has been closed.
func (idx *Index) Acquire() bool {
	return idx.refs.Acquire()
}

// Release drops a reference taken with Acquire.
func (idx *Index) Release() error {
	return idx.refs.Release()
}

// Close drops the owner reference. The file is closed once every reference
// is released.
func (idx *Index) Close() error {
	return idx.refs.Release()
}
