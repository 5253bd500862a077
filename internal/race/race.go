// Package race implements a first-past-the-post group: several racers look
// for the same answer and the first positive response wins.
package race

import (
	"context"
	"sync"

	"github.com/go-git/go-odb/plumbing"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
)

// Group collects the responses of a fixed number of racers and completes
// exactly once: with the first result reported, or with an error once every
// racer reported a negative response.
type Group[T any] struct {
	expected int32
	cancel   context.CancelFunc
	done     func(T, error)

	settled   atomic.Bool
	negatives atomic.Int32

	mu   sync.Mutex
	errs error
}

// New returns a Group expecting the given number of responses. done is
// called exactly once, when the group settles, and cancel is called right
// after it so that outstanding racers can stop early. cancel may be nil.
//
// A group expecting no responses settles immediately as not found.
func New[T any](expected int, cancel context.CancelFunc, done func(T, error)) *Group[T] {
	g := &Group[T]{
		expected: int32(expected),
		cancel:   cancel,
		done:     done,
	}

	if expected <= 0 {
		g.settle(*new(T), plumbing.ErrObjectNotFound)
	}

	return g
}

// ReportResult reports a positive response. It returns true if v won the
// race. A false return means the group already settled and the caller keeps
// ownership of v.
func (g *Group[T]) ReportResult(v T) bool {
	if !g.settled.CompareAndSwap(false, true) {
		return false
	}

	g.finish(v, nil)
	return true
}

// ReportNoResult reports that a racer did not find an answer.
func (g *Group[T]) ReportNoResult() {
	g.negative(nil)
}

// ReportError reports that a racer failed. Once every racer answered
// negatively, the group settles with the combined errors.
func (g *Group[T]) ReportError(err error) {
	g.negative(err)
}

// Settled returns whether the group completed.
func (g *Group[T]) Settled() bool {
	return g.settled.Load()
}

func (g *Group[T]) negative(err error) {
	if err != nil {
		g.mu.Lock()
		g.errs = multierr.Append(g.errs, err)
		g.mu.Unlock()
	}

	if g.negatives.Inc() != g.expected {
		return
	}

	g.mu.Lock()
	err = g.errs
	g.mu.Unlock()

	if err == nil {
		err = plumbing.ErrObjectNotFound
	}

	g.settle(*new(T), err)
}

func (g *Group[T]) settle(v T, err error) {
	if g.settled.CompareAndSwap(false, true) {
		g.finish(v, err)
	}
}

func (g *Group[T]) finish(v T, err error) {
	g.done(v, err)
	if g.cancel != nil {
		g.cancel()
	}
}
