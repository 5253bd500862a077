package packfile

import (
	"bytes"
	"fmt"
)

// See https://github.com/git/git/blob/49fa3dc76179e04b0833542fa52d0f287a4955ac/delta.h
// and https://github.com/git/git/blob/c2c5f6b1e479f2c38e0e01345350620944e3527f/patch-delta.c
// for details about the delta format.

const (
	// maxPatchPreemptionSize defines what is the max size of bytes to be
	// preemptively made available for a patch operation.
	maxPatchPreemptionSize uint64 = 65536

	maskContinue = 0x80
	maxCopySize  = 0x10000
)

type offset struct {
	mask  byte
	shift uint
}

var offsets = []offset{
	{mask: 0x01, shift: 0},
	{mask: 0x02, shift: 8},
	{mask: 0x04, shift: 16},
	{mask: 0x08, shift: 24},
}

var sizes = []offset{
	{mask: 0x10, shift: 0},
	{mask: 0x20, shift: 8},
	{mask: 0x40, shift: 16},
}

// PatchDelta returns the result of applying the modification deltas in delta
// to src. An error will be returned if delta is corrupted (ErrInvalidDelta)
// or an action command is not copy from source or copy from delta
// (ErrDeltaCmd).
func PatchDelta(src, delta []byte) ([]byte, error) {
	srcSz, delta, err := decodeLEB128(delta)
	if err != nil {
		return nil, err
	}

	if srcSz != uint64(len(src)) {
		return nil, fmt.Errorf("%w: base size %d, expected %d", ErrInvalidDelta, len(src), srcSz)
	}

	targetSz, delta, err := decodeLEB128(delta)
	if err != nil {
		return nil, err
	}

	dst := &bytes.Buffer{}
	dst.Grow(int(min(targetSz, maxPatchPreemptionSize)))

	for len(delta) > 0 {
		cmd := delta[0]
		delta = delta[1:]

		switch {
		case isCopyFromSrc(cmd):
			var off, sz uint64
			off, delta, err = decodeOffset(cmd, delta)
			if err != nil {
				return nil, err
			}

			sz, delta, err = decodeSize(cmd, delta)
			if err != nil {
				return nil, err
			}

			if invalidSize(uint64(dst.Len()), sz, targetSz) ||
				invalidOffsetSize(off, sz, srcSz) {
				return nil, ErrInvalidDelta
			}

			dst.Write(src[off : off+sz])

		case isCopyFromDelta(cmd):
			sz := uint64(cmd) // cmd is the size itself
			if invalidSize(uint64(dst.Len()), sz, targetSz) ||
				uint64(len(delta)) < sz {
				return nil, ErrInvalidDelta
			}

			dst.Write(delta[:sz])
			delta = delta[sz:]

		default:
			return nil, ErrDeltaCmd
		}
	}

	if uint64(dst.Len()) != targetSz {
		return nil, fmt.Errorf("%w: produced %d bytes, expected %d", ErrInvalidDelta, dst.Len(), targetSz)
	}

	return dst.Bytes(), nil
}

func decodeLEB128(in []byte) (uint64, []byte, error) {
	var num uint64
	var shift uint
	for i, b := range in {
		if shift >= 64 {
			break
		}

		num |= uint64(b&^maskContinue) << shift
		if b&maskContinue == 0 {
			return num, in[i+1:], nil
		}

		shift += 7
	}

	return 0, nil, ErrInvalidDelta
}

func isCopyFromSrc(cmd byte) bool {
	return (cmd & maskContinue) != 0
}

func isCopyFromDelta(cmd byte) bool {
	return (cmd&maskContinue) == 0 && cmd != 0
}

func decodeOffset(cmd byte, delta []byte) (uint64, []byte, error) {
	var off uint64
	for _, o := range offsets {
		if (cmd & o.mask) != 0 {
			if len(delta) == 0 {
				return 0, nil, ErrInvalidDelta
			}
			off |= uint64(delta[0]) << o.shift
			delta = delta[1:]
		}
	}

	return off, delta, nil
}

func decodeSize(cmd byte, delta []byte) (uint64, []byte, error) {
	var sz uint64
	for _, s := range sizes {
		if (cmd & s.mask) != 0 {
			if len(delta) == 0 {
				return 0, nil, ErrInvalidDelta
			}
			sz |= uint64(delta[0]) << s.shift
			delta = delta[1:]
		}
	}

	if sz == 0 {
		sz = maxCopySize
	}

	return sz, delta, nil
}

func invalidSize(written, sz, targetSz uint64) bool {
	return written+sz > targetSz
}

func invalidOffsetSize(off, sz, srcSz uint64) bool {
	return off+sz < off || off+sz > srcSz
}
