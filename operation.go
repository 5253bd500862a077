package odb

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-git/go-odb/plumbing"
)

// ResultFunc receives the outcome of an operation. It is called exactly once
// per operation, from a worker goroutine, and must not block. On success the
// receiver owns the object and must close it.
type ResultFunc func(*plumbing.Object, error)

// Operation is a unit of work processed by an Engine. The set of operations
// is closed: GetObject, GetObjectFromPackfile, GetLooseObject and
// CheckoutCommit.
type Operation interface {
	fmt.Stringer

	// complete delivers the outcome to the result sink, only the first time
	// it is called.
	complete(*plumbing.Object, error)
	context() context.Context
}

// sink guards a ResultFunc so it is called once. A nil ResultFunc discards
// the outcome; discarded objects are closed.
type sink struct {
	once sync.Once
}

func (s *sink) deliver(fn ResultFunc, obj *plumbing.Object, err error) {
	delivered := false
	s.once.Do(func() {
		delivered = true
		if fn != nil {
			fn(obj, err)
			return
		}

		_ = obj.Close()
	})

	if !delivered {
		_ = obj.Close()
	}
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}

	return ctx
}

// GetObject resolves the object Hash in the repository at RepoRoot, racing
// every packfile of the repository against the loose object.
type GetObject struct {
	// Context cancels the lookup. Optional.
	Context  context.Context
	RepoRoot string
	Hash     plumbing.Hash
	Result   ResultFunc

	sink sink
}

func (op *GetObject) String() string {
	return fmt.Sprintf("get-object %s in %s", op.Hash, op.RepoRoot)
}

func (op *GetObject) complete(obj *plumbing.Object, err error) {
	op.sink.deliver(op.Result, obj, err)
}

func (op *GetObject) context() context.Context {
	return contextOrBackground(op.Context)
}

// GetObjectFromPackfile looks up the object Hash in a single packfile, using
// the index next to it.
type GetObjectFromPackfile struct {
	// Context cancels the lookup. Optional.
	Context  context.Context
	Packfile string
	Hash     plumbing.Hash
	Result   ResultFunc

	sink sink
}

func (op *GetObjectFromPackfile) String() string {
	return fmt.Sprintf("get-object %s from %s", op.Hash, op.Packfile)
}

func (op *GetObjectFromPackfile) complete(obj *plumbing.Object, err error) {
	op.sink.deliver(op.Result, obj, err)
}

func (op *GetObjectFromPackfile) context() context.Context {
	return contextOrBackground(op.Context)
}

// GetLooseObject reads the loose object Hash of the repository at RepoRoot.
type GetLooseObject struct {
	// Context cancels the lookup. Optional.
	Context  context.Context
	RepoRoot string
	Hash     plumbing.Hash
	Result   ResultFunc

	sink sink
}

func (op *GetLooseObject) String() string {
	return fmt.Sprintf("get-loose-object %s in %s", op.Hash, op.RepoRoot)
}

func (op *GetLooseObject) complete(obj *plumbing.Object, err error) {
	op.sink.deliver(op.Result, obj, err)
}

func (op *GetLooseObject) context() context.Context {
	return contextOrBackground(op.Context)
}

// CheckoutCommit checks out Commit in the repository at RepoRoot. It is
// reserved and always fails with ErrNotImplemented.
type CheckoutCommit struct {
	Context  context.Context
	RepoRoot string
	Commit   plumbing.Hash
	Result   func(error)

	once sync.Once
}

func (op *CheckoutCommit) String() string {
	return fmt.Sprintf("checkout %s in %s", op.Commit, op.RepoRoot)
}

func (op *CheckoutCommit) complete(obj *plumbing.Object, err error) {
	_ = obj.Close()
	op.once.Do(func() {
		if op.Result != nil {
			op.Result(err)
		}
	})
}

func (op *CheckoutCommit) context() context.Context {
	return contextOrBackground(op.Context)
}
