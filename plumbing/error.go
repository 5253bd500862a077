package plumbing

import "errors"

var (
	// ErrObjectNotFound is returned when an object is not found.
	ErrObjectNotFound = errors.New("object not found")
	// ErrInvalidType is returned when an invalid object type is provided.
	ErrInvalidType = errors.New("invalid object type")
	// ErrMalformedObject is returned when a stored object cannot be decoded,
	// e.g. a loose object header without terminator.
	ErrMalformedObject = errors.New("malformed object")
	// ErrUnsupportedObject is returned when a loose object header names a
	// type other than commit, tree, blob or tag.
	ErrUnsupportedObject = errors.New("unsupported object")
)
