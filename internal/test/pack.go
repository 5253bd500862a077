package test

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"sort"

	"github.com/go-git/go-odb/plumbing"
	"github.com/klauspost/compress/zlib"
	"github.com/pjbgf/sha1cd"
)

const maxCopySize = 0xffff

// Pack builds version 2 packfiles and their indexes. Entries are written in
// the order they are added.
type Pack struct {
	// Large forces every offset into the 64-bit offsets table of the index.
	Large bool

	entries []*packEntry
	byHash  map[plumbing.Hash]*packEntry
}

type packEntry struct {
	hash    plumbing.Hash
	typ     plumbing.ObjectType
	kind    plumbing.ObjectType
	content []byte
	base    *packEntry
}

// EncodedPack is the result of Pack.Encode.
type EncodedPack struct {
	Pack     []byte
	Index    []byte
	Checksum plumbing.Hash
	Offsets  map[plumbing.Hash]uint64
}

// NewPack returns an empty Pack.
func NewPack() *Pack {
	return &Pack{byHash: make(map[plumbing.Hash]*packEntry)}
}

// Add stores a full object.
func (p *Pack) Add(t plumbing.ObjectType, content []byte) plumbing.Hash {
	return p.add(&packEntry{typ: t, kind: t, content: content})
}

// AddOFSDelta stores content as an offset delta against base, which must
// have been added before.
func (p *Pack) AddOFSDelta(base plumbing.Hash, content []byte) plumbing.Hash {
	b := p.entry(base)
	return p.add(&packEntry{typ: b.typ, kind: plumbing.OFSDeltaObject, content: content, base: b})
}

// AddREFDelta stores content as a reference delta against base.
func (p *Pack) AddREFDelta(base plumbing.Hash, content []byte) plumbing.Hash {
	b := p.entry(base)
	return p.add(&packEntry{typ: b.typ, kind: plumbing.REFDeltaObject, content: content, base: b})
}

func (p *Pack) entry(h plumbing.Hash) *packEntry {
	e, ok := p.byHash[h]
	if !ok {
		panic(fmt.Sprintf("test: delta base %s not in pack", h))
	}

	return e
}

func (p *Pack) add(e *packEntry) plumbing.Hash {
	e.hash = plumbing.ComputeHash(e.typ, e.content)
	p.entries = append(p.entries, e)
	p.byHash[e.hash] = e
	return e.hash
}

// Encode returns the packfile and its index.
func (p *Pack) Encode() *EncodedPack {
	var buf bytes.Buffer
	buf.WriteString("PACK")
	writeUint32(&buf, 2)
	writeUint32(&buf, uint32(len(p.entries)))

	offsets := make(map[plumbing.Hash]uint64, len(p.entries))
	crcs := make(map[plumbing.Hash]uint32, len(p.entries))

	for _, e := range p.entries {
		start := buf.Len()
		offset := uint64(start)
		offsets[e.hash] = offset

		switch e.kind {
		case plumbing.OFSDeltaObject:
			delta := Delta(e.base.content, e.content)
			buf.Write(entryHeader(e.kind, uint64(len(delta))))
			buf.Write(ofsDistance(offset - offsets[e.base.hash]))
			buf.Write(Deflate(delta))
		case plumbing.REFDeltaObject:
			delta := Delta(e.base.content, e.content)
			buf.Write(entryHeader(e.kind, uint64(len(delta))))
			buf.Write(e.base.hash[:])
			buf.Write(Deflate(delta))
		default:
			buf.Write(entryHeader(e.kind, uint64(len(e.content))))
			buf.Write(Deflate(e.content))
		}

		crcs[e.hash] = crc32.ChecksumIEEE(buf.Bytes()[start:])
	}

	checksum := sum(buf.Bytes())
	buf.Write(checksum[:])

	return &EncodedPack{
		Pack:     buf.Bytes(),
		Index:    p.encodeIndex(offsets, crcs, checksum),
		Checksum: checksum,
		Offsets:  offsets,
	}
}

func (p *Pack) encodeIndex(offsets map[plumbing.Hash]uint64, crcs map[plumbing.Hash]uint32, checksum plumbing.Hash) []byte {
	hashes := make([]plumbing.Hash, 0, len(offsets))
	for h := range offsets {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool {
		return bytes.Compare(hashes[i][:], hashes[j][:]) < 0
	})

	var buf bytes.Buffer
	buf.Write([]byte{255, 't', 'O', 'c'})
	writeUint32(&buf, 2)

	var fanout [256]uint32
	for _, h := range hashes {
		fanout[h[0]]++
	}
	var total uint32
	for i := range fanout {
		total += fanout[i]
		writeUint32(&buf, total)
	}

	for _, h := range hashes {
		buf.Write(h[:])
	}

	for _, h := range hashes {
		writeUint32(&buf, crcs[h])
	}

	var large []uint64
	for _, h := range hashes {
		off := offsets[h]
		if p.Large || off > 0x7fffffff {
			writeUint32(&buf, 0x80000000|uint32(len(large)))
			large = append(large, off)
			continue
		}

		writeUint32(&buf, uint32(off))
	}

	for _, off := range large {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], off)
		buf.Write(b[:])
	}

	buf.Write(checksum[:])
	idxsum := sum(buf.Bytes())
	buf.Write(idxsum[:])
	return buf.Bytes()
}

// Delta returns a delta turning src into dst. It copies the common prefix
// and suffix from src and inserts the rest.
func Delta(src, dst []byte) []byte {
	var out []byte
	out = appendDeltaSize(out, uint64(len(src)))
	out = appendDeltaSize(out, uint64(len(dst)))

	limit := min(len(src), len(dst))
	prefix := 0
	for prefix < limit && prefix < maxCopySize && src[prefix] == dst[prefix] {
		prefix++
	}

	suffix := 0
	for suffix < limit-prefix && suffix < maxCopySize &&
		src[len(src)-1-suffix] == dst[len(dst)-1-suffix] {
		suffix++
	}

	if prefix > 0 {
		out = appendCopy(out, 0, prefix)
	}

	for rest := dst[prefix : len(dst)-suffix]; len(rest) > 0; {
		n := min(len(rest), 0x7f)
		out = append(out, byte(n))
		out = append(out, rest[:n]...)
		rest = rest[n:]
	}

	if suffix > 0 {
		out = appendCopy(out, uint32(len(src)-suffix), suffix)
	}

	return out
}

func appendCopy(out []byte, offset uint32, size int) []byte {
	out = append(out, 0x80|0x0f|0x30)
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], offset)
	out = append(out, b[:]...)
	return append(out, byte(size), byte(size>>8))
}

func appendDeltaSize(out []byte, n uint64) []byte {
	for n >= 0x80 {
		out = append(out, byte(n)|0x80)
		n >>= 7
	}

	return append(out, byte(n))
}

func entryHeader(t plumbing.ObjectType, size uint64) []byte {
	b := byte(t&0x7)<<4 | byte(size&0x0f)
	size >>= 4

	out := make([]byte, 0, 10)
	if size > 0 {
		b |= 0x80
	}
	out = append(out, b)

	for size > 0 {
		next := byte(size & 0x7f)
		size >>= 7
		if size > 0 {
			next |= 0x80
		}
		out = append(out, next)
	}

	return out
}

func ofsDistance(distance uint64) []byte {
	b := []byte{byte(distance & 0x7f)}
	for distance >>= 7; distance > 0; distance >>= 7 {
		distance--
		b = append([]byte{byte(distance&0x7f) | 0x80}, b...)
	}

	return b
}

// Deflate returns data compressed with zlib.
func Deflate(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, _ = w.Write(data)
	_ = w.Close()
	return buf.Bytes()
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func sum(data []byte) (h plumbing.Hash) {
	s := sha1cd.New()
	s.Write(data)
	copy(h[:], s.Sum(nil))
	return h
}
