// Package queue implements an unbounded multi-producer multi-consumer FIFO
// queue whose consumers block until an element is available.
package queue

import (
	"context"
	"sync"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
)

// Queue is an unbounded FIFO queue safe for concurrent use. Enqueue never
// blocks; Dequeue blocks while the queue is empty.
type Queue[T any] struct {
	mu    sync.Mutex
	items *linkedlistqueue.Queue
	// ready holds a token while the queue may be non-empty.
	ready chan struct{}
}

// New returns an empty Queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		items: linkedlistqueue.New(),
		ready: make(chan struct{}, 1),
	}
}

// Enqueue appends v to the queue.
func (q *Queue[T]) Enqueue(v T) {
	q.mu.Lock()
	q.items.Enqueue(v)
	q.mu.Unlock()

	q.signal()
}

// TryDequeue removes and returns the head of the queue, if any.
func (q *Queue[T]) TryDequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	v, ok := q.items.Dequeue()
	if !ok {
		var zero T
		return zero, false
	}

	if !q.items.Empty() {
		q.signal()
	}

	t, _ := v.(T)
	return t, true
}

// Dequeue removes and returns the head of the queue, waiting for an element
// to be enqueued if the queue is empty. Once ctx is done it returns ctx.Err()
// without taking any element.
func (q *Queue[T]) Dequeue(ctx context.Context) (T, error) {
	for {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}

		if v, ok := q.TryDequeue(); ok {
			return v, nil
		}

		select {
		case <-q.ready:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Drain removes and returns every queued element.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]T, 0, q.items.Size())
	for _, v := range q.items.Values() {
		t, _ := v.(T)
		out = append(out, t)
	}

	q.items.Clear()
	return out
}

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Size()
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
