package odb

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-odb/internal/race"
	"github.com/go-git/go-odb/plumbing"
	"github.com/go-git/go-odb/plumbing/cache"
	"github.com/go-git/go-odb/plumbing/format/idxfile"
	"github.com/go-git/go-odb/plumbing/format/objfile"
	"github.com/go-git/go-odb/plumbing/format/packfile"
	"github.com/go-git/go-odb/storage/filesystem/dotgit"
	"github.com/go-git/go-odb/utils/ioutil"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// maxAcquireAttempts bounds the retries when a cached handle is evicted
// between being returned by its cache and being acquired.
const maxAcquireAttempts = 3

var errEvicted = errors.New("handle evicted")

// getObject starts one racer per packfile of the repository plus one for
// the loose object. The first racer finding the object completes op and
// cancels the others.
func (e *Engine) getObject(op *GetObject) {
	parent := op.context()
	if err := parent.Err(); err != nil {
		e.finish(op, nil, err)
		return
	}

	packs, err := e.listPacks(op.RepoRoot)
	if err != nil {
		e.finish(op, nil, fmt.Errorf("listing packfiles: %w", err))
		return
	}

	ctx, cancel := context.WithCancel(parent)
	g := race.New[*plumbing.Object](len(packs)+1, cancel, op.complete)
	report := func(obj *plumbing.Object, err error) {
		switch {
		case err == nil:
			if !g.ReportResult(obj) {
				_ = obj.Close()
			}
		case errors.Is(err, plumbing.ErrObjectNotFound):
			g.ReportNoResult()
		default:
			g.ReportError(err)
		}
	}

	for _, path := range packs {
		e.Enqueue(&GetObjectFromPackfile{
			Context:  ctx,
			Packfile: path,
			Hash:     op.Hash,
			Result:   report,
		})
	}

	e.Enqueue(&GetLooseObject{
		Context:  ctx,
		RepoRoot: op.RepoRoot,
		Hash:     op.Hash,
		Result:   report,
	})
}

func (e *Engine) listPacks(root string) ([]string, error) {
	return e.listings.GetOrCompute(root, func(string) ([]string, error) {
		packs, err := dotgit.New(e.fs, root).ObjectPacks()
		if err != nil {
			return nil, err
		}

		e.log.Debug("packfiles listed", zap.String("repository", root), zap.Int("count", len(packs)))
		return packs, nil
	})
}

func (e *Engine) getObjectFromPackfile(ctx context.Context, op *GetObjectFromPackfile) (*plumbing.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := acquire(e.packs, op.Packfile, e.openPackfile)
	if err != nil {
		return nil, missingAsNotFound(err)
	}
	defer e.release(p)

	idx, err := acquire(e.indexes, dotgit.IndexPath(op.Packfile), e.openIndex)
	if err != nil {
		return nil, missingAsNotFound(err)
	}
	defer e.release(idx)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return p.Lookup(idx, op.Hash)
}

func (e *Engine) openPackfile(path string) (*packfile.Packfile, error) {
	p, err := packfile.Open(e.fs, path)
	if err != nil {
		return nil, err
	}

	p.MaxDeltaDepth = e.opts.MaxDeltaDepth
	e.log.Debug("packfile opened", zap.String("path", path), zap.Uint32("objects", p.Count()))
	return p, nil
}

func (e *Engine) openIndex(path string) (*idxfile.Index, error) {
	idx, err := idxfile.Open(e.fs, path)
	if err != nil {
		return nil, err
	}

	e.log.Debug("index opened", zap.String("path", path), zap.Int("objects", idx.Count()))
	return idx, nil
}

func (e *Engine) getLooseObject(ctx context.Context, op *GetLooseObject) (*plumbing.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := dotgit.New(e.fs, op.RepoRoot)
	path := dir.ObjectPath(op.Hash)

	exists, err := e.loose.GetOrCompute(path, func(string) (bool, error) {
		return dir.ObjectExists(op.Hash)
	})
	if err != nil {
		return nil, err
	}

	if !exists {
		return nil, plumbing.ErrObjectNotFound
	}

	f, err := e.fs.Open(path)
	if err != nil {
		return nil, missingAsNotFound(err)
	}

	r, err := objfile.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("loose object %s: %w", op.Hash, err)
	}

	closer := ioutil.OnceCloser(ioutil.CloserFunc(func() error {
		return multierr.Combine(r.Close(), f.Close())
	}))

	typ, size, err := r.Header()
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("loose object %s: %w", op.Hash, err)
	}

	return &plumbing.Object{
		Hash: op.Hash,
		Type: typ,
		Size: size,
		Data: ioutil.NewReadCloser(r, closer),
	}, nil
}

type handle interface {
	Acquire() bool
	Release() error
}

// acquire returns the handle cached under key, opening it if needed, with a
// reference taken on it. The reference must be dropped with Release.
func acquire[H handle](c *cache.Cache[H], key string, open func(string) (H, error)) (H, error) {
	for i := 0; i < maxAcquireAttempts; i++ {
		h, err := c.GetOrCompute(key, open)
		if err != nil {
			return h, err
		}

		if h.Acquire() {
			return h, nil
		}
	}

	var zero H
	return zero, fmt.Errorf("%s: %w", key, errEvicted)
}

func (e *Engine) release(h handle) {
	if err := h.Release(); err != nil {
		e.log.Warn("releasing handle", zap.Error(err))
	}
}

// missingAsNotFound maps a file vanished since it was listed to an absent
// object.
func missingAsNotFound(err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %w", plumbing.ErrObjectNotFound, err)
	}

	return err
}
