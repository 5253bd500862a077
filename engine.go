package odb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-odb/internal/queue"
	"github.com/go-git/go-odb/plumbing"
	"github.com/go-git/go-odb/plumbing/cache"
	"github.com/go-git/go-odb/plumbing/format/idxfile"
	"github.com/go-git/go-odb/plumbing/format/packfile"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrClosed is reported to operations enqueued after, or still queued
	// at, Engine.Close.
	ErrClosed = errors.New("engine closed")
	// ErrNotImplemented is reported by CheckoutCommit.
	ErrNotImplemented = errors.New("not implemented")
	// ErrPanic is reported to an operation whose processing panicked.
	ErrPanic = errors.New("operation panicked")
)

// Engine resolves git objects. Operations are processed concurrently by a
// fixed pool of workers; use Enqueue to submit them, or GetObject to resolve
// a single object synchronously.
//
// An Engine must be closed to stop its workers and release its open files.
type Engine struct {
	fs   billy.Filesystem
	opts Options
	log  *zap.Logger

	queue *queue.Queue[Operation]

	packs    *cache.Cache[*packfile.Packfile]
	indexes  *cache.Cache[*idxfile.Index]
	listings *cache.Cache[[]string]
	loose    *cache.Cache[bool]

	cancel  context.CancelFunc
	workers errgroup.Group

	mu     sync.RWMutex
	closed bool

	closeOnce sync.Once
	closeErr  error

	errMu      sync.Mutex
	releaseErr error
}

// NewEngine returns a running Engine reading repositories from fs. Repository
// roots given to operations are paths in fs.
func NewEngine(fs billy.Filesystem, o Options) (*Engine, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		fs:    fs,
		opts:  o,
		log:   o.Logger,
		queue: queue.New[Operation](),
	}

	e.packs = cache.New(cache.Options[*packfile.Packfile]{
		Capacity: o.PackCacheSize,
		TTL:      o.CacheTTL,
		Now:      o.Now,
		OnEvict: func(path string, p *packfile.Packfile) {
			e.closeHandle("packfile", path, p)
		},
	})

	e.indexes = cache.New(cache.Options[*idxfile.Index]{
		Capacity: o.IndexCacheSize,
		TTL:      o.CacheTTL,
		Now:      o.Now,
		OnEvict: func(path string, idx *idxfile.Index) {
			e.closeHandle("index", path, idx)
		},
	})

	e.listings = cache.New(cache.Options[[]string]{
		Capacity: o.ListingCacheSize,
		TTL:      o.CacheTTL,
		Now:      o.Now,
		OnEvict: func(root string, _ []string) {
			e.log.Debug("pack listing evicted", zap.String("repository", root))
		},
	})

	e.loose = cache.New(cache.Options[bool]{
		Capacity: o.LooseCacheSize,
		TTL:      o.CacheTTL,
		Now:      o.Now,
	})

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	for i := 0; i < o.Workers; i++ {
		id := i
		e.workers.Go(func() error {
			return e.work(ctx, id)
		})
	}

	return e, nil
}

// Enqueue submits op for processing. It never blocks and may be called from
// any goroutine, including from a ResultFunc. Once the engine is closed, op
// completes immediately with ErrClosed.
func (e *Engine) Enqueue(op Operation) {
	e.mu.RLock()
	closed := e.closed
	if !closed {
		e.queue.Enqueue(op)
	}
	e.mu.RUnlock()

	if closed {
		op.complete(nil, ErrClosed)
	}
}

// GetObject resolves the object h in the repository at repoRoot. It returns
// plumbing.ErrObjectNotFound if neither a packfile nor the loose object
// store holds it. The returned object must be closed.
//
// Cancelling ctx stops the outstanding lookups; an object resolved after
// GetObject returned is closed.
func (e *Engine) GetObject(ctx context.Context, repoRoot string, h plumbing.Hash) (*plumbing.Object, error) {
	type result struct {
		obj *plumbing.Object
		err error
	}

	done := make(chan result, 1)
	e.Enqueue(&GetObject{
		Context:  ctx,
		RepoRoot: repoRoot,
		Hash:     h,
		Result: func(obj *plumbing.Object, err error) {
			done <- result{obj, err}
		},
	})

	select {
	case r := <-done:
		return r.obj, r.err
	case <-ctx.Done():
		go func() {
			r := <-done
			_ = r.obj.Close()
		}()

		return nil, ctx.Err()
	}
}

// Close stops the workers once they finish their current operation. Queued
// operations complete with ErrClosed without being processed. Cached files
// are released; files still referenced by open objects are closed with the
// last object. Close must not be called from a ResultFunc.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()

		e.cancel()
		err := e.workers.Wait()

		ops := e.queue.Drain()
		for _, op := range ops {
			op.complete(nil, ErrClosed)
		}

		e.packs.Purge()
		e.indexes.Purge()
		e.listings.Purge()
		e.loose.Purge()

		e.errMu.Lock()
		e.closeErr = multierr.Append(err, e.releaseErr)
		e.errMu.Unlock()

		e.log.Debug("engine closed", zap.Int("discarded", len(ops)))
	})

	return e.closeErr
}

func (e *Engine) work(ctx context.Context, id int) error {
	e.log.Debug("worker started", zap.Int("worker", id))
	defer e.log.Debug("worker stopped", zap.Int("worker", id))

	for {
		op, err := e.queue.Dequeue(ctx)
		if err != nil {
			return nil
		}

		e.process(op)
	}
}

func (e *Engine) process(op Operation) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %s: %v", ErrPanic, op, r)
			e.log.Error("operation panicked",
				zap.String("operation", op.String()),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)

			e.internalError(err)
			e.completePanicked(op, err)
		}
	}()

	switch op := op.(type) {
	case *GetObject:
		e.getObject(op)
	case *GetObjectFromPackfile:
		obj, err := e.getObjectFromPackfile(op.context(), op)
		e.finish(op, obj, err)
	case *GetLooseObject:
		obj, err := e.getLooseObject(op.context(), op)
		e.finish(op, obj, err)
	case *CheckoutCommit:
		e.finish(op, nil, ErrNotImplemented)
	}
}

// finish logs a failed operation and delivers its outcome.
func (e *Engine) finish(op Operation, obj *plumbing.Object, err error) {
	if err != nil {
		e.logFailure(op, err)
	}

	op.complete(obj, err)
}

func (e *Engine) logFailure(op Operation, err error) {
	switch {
	case errors.Is(err, plumbing.ErrObjectNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, ErrClosed),
		errors.Is(err, ErrNotImplemented):
		return
	case errors.Is(err, plumbing.ErrMalformedObject),
		errors.Is(err, plumbing.ErrUnsupportedObject):
		e.log.Warn("malformed object",
			zap.String("operation", op.String()),
			zap.Error(err),
		)
	default:
		e.log.Error("operation failed",
			zap.String("operation", op.String()),
			zap.Error(err),
		)

		e.internalError(err)
	}
}

// internalError reports err to OnInternalError. A panicking callback is
// logged and otherwise ignored.
func (e *Engine) internalError(err error) {
	if e.opts.OnInternalError == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("internal error callback panicked", zap.Any("panic", r))
		}
	}()

	e.opts.OnInternalError(err)
}

// completePanicked delivers the outcome of an operation whose handler
// panicked. The result callback may itself be the one panicking.
func (e *Engine) completePanicked(op Operation, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("result callback panicked",
				zap.String("operation", op.String()),
				zap.Any("panic", r),
			)
		}
	}()

	op.complete(nil, err)
}

// closeHandle drops the reference held by a cache on an evicted handle.
func (e *Engine) closeHandle(kind, path string, c io.Closer) {
	e.log.Debug("handle evicted", zap.String("kind", kind), zap.String("path", path))

	if err := c.Close(); err != nil {
		e.log.Warn("closing evicted handle",
			zap.String("kind", kind),
			zap.String("path", path),
			zap.Error(err),
		)

		e.errMu.Lock()
		e.releaseErr = multierr.Append(e.releaseErr, err)
		e.errMu.Unlock()
	}
}
