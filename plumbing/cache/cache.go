// Package cache implements a bounded, expiring, compute-once cache used to
// memoize open packfiles, pack indexes, pack listings and loose object
// existence checks.
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/golang/groupcache/singleflight"
)

// DefaultTTL is the time an entry lives after being written.
const DefaultTTL = time.Minute

// Options configures a Cache.
type Options[V any] struct {
	// Capacity is the maximum number of entries. When exceeded, the least
	// recently used entry is evicted. Zero means no limit.
	Capacity int
	// TTL is the time an entry lives after being written. Defaults to
	// DefaultTTL. Expired entries are evicted lazily, on access.
	TTL time.Duration
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
	// OnEvict is called, outside of any cache lock, for every entry leaving
	// the cache: capacity eviction, expiry or Purge.
	OnEvict func(key string, value V)
}

type entry[V any] struct {
	value   V
	written time.Time
}

type evicted[V any] struct {
	key   string
	value V
}

// Cache is a concurrency-safe LRU cache with expire-after-write semantics.
// GetOrCompute guarantees that at most one computation per key is in flight;
// concurrent callers for the same key wait for and share its result.
type Cache[V any] struct {
	ttl     time.Duration
	now     func() time.Time
	onEvict func(string, V)

	group singleflight.Group

	mu      sync.Mutex
	lru     *lru.Cache
	pending []evicted[V]
}

// New returns a new Cache configured with o.
func New[V any](o Options[V]) *Cache[V] {
	c := &Cache[V]{
		ttl:     o.TTL,
		now:     o.Now,
		onEvict: o.OnEvict,
		lru:     lru.New(o.Capacity),
	}

	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}

	if c.now == nil {
		c.now = time.Now
	}

	c.lru.OnEvicted = func(k lru.Key, v interface{}) {
		c.pending = append(c.pending, evicted[V]{k.(string), v.(*entry[V]).value})
	}

	return c
}

// Get returns the live value stored under key, if any.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	v, ok := c.get(key)
	gone := c.takePending()
	c.mu.Unlock()

	c.notify(gone)
	return v, ok
}

func (c *Cache[V]) get(key string) (V, bool) {
	var zero V
	v, ok := c.lru.Get(key)
	if !ok {
		return zero, false
	}

	e := v.(*entry[V])
	if c.now().Sub(e.written) >= c.ttl {
		c.lru.Remove(key)
		return zero, false
	}

	return e.value, true
}

// GetOrCompute returns the value stored under key. On a miss, fn is called to
// produce it and the result is stored. Errors returned by fn are handed to
// every waiting caller and are not cached. A panic in fn is raised again in
// every waiting caller.
func (c *Cache[V]) GetOrCompute(key string, fn func(key string) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	r, err := c.group.Do(key, func() (interface{}, error) {
		if v, ok := c.Get(key); ok {
			return &entry[V]{value: v}, nil
		}

		v, err := compute(key, fn)
		if err != nil {
			return nil, err
		}

		c.add(key, v)
		return &entry[V]{value: v}, nil
	})
	if p, ok := err.(*panicError); ok {
		panic(p.value)
	}

	if err != nil {
		var zero V
		return zero, err
	}

	return r.(*entry[V]).value, nil
}

// panicError carries a panic out of the single-flight group, which would
// otherwise keep the key in flight forever.
type panicError struct {
	value interface{}
}

func (p *panicError) Error() string {
	return fmt.Sprintf("cache: compute panicked: %v", p.value)
}

func compute[V any](key string, fn func(string) (V, error)) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()

	return fn(key)
}

func (c *Cache[V]) add(key string, v V) {
	c.mu.Lock()
	c.lru.Remove(key)
	c.lru.Add(key, &entry[V]{value: v, written: c.now()})
	gone := c.takePending()
	c.mu.Unlock()

	c.notify(gone)
}

// Len returns the number of stored entries, including expired entries not
// yet evicted.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Purge evicts every entry.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	c.lru.Clear()
	gone := c.takePending()
	c.mu.Unlock()

	c.notify(gone)
}

func (c *Cache[V]) takePending() []evicted[V] {
	gone := c.pending
	c.pending = nil
	return gone
}

func (c *Cache[V]) notify(gone []evicted[V]) {
	if c.onEvict == nil {
		return
	}

	for _, e := range gone {
		c.onEvict(e.key, e.value)
	}
}
