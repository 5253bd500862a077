package packfile

import (
	"errors"
	"fmt"

	"github.com/go-git/go-odb/plumbing"
)

var (
	// ErrMalformedPackfile is returned when the packfile header or an entry
	// cannot be decoded.
	ErrMalformedPackfile = fmt.Errorf("%w: malformed pack file", plumbing.ErrMalformedObject)
	// ErrUnsupportedVersion is returned by Open when the pack version is not
	// supported.
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported pack version", ErrMalformedPackfile)
	// ErrInvalidDelta is returned when a delta cannot be applied to its base.
	ErrInvalidDelta = fmt.Errorf("%w: invalid delta", ErrMalformedPackfile)
	// ErrDeltaCmd is returned for a delta instruction that is neither a copy
	// nor an insert.
	ErrDeltaCmd = fmt.Errorf("%w: wrong delta command", ErrInvalidDelta)
	// ErrDeltaChainTooDeep is returned when resolving a delta requires more
	// than MaxDeltaDepth bases.
	ErrDeltaChainTooDeep = fmt.Errorf("%w: delta chain too deep", ErrMalformedPackfile)
	// ErrClosed is returned when reading from a released packfile.
	ErrClosed = errors.New("packfile: already closed")
)
