package cache

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

type CacheSuite struct {
	suite.Suite

	mu      sync.Mutex
	now     time.Time
	evicted []string
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupTest() {
	s.now = time.Unix(1700000000, 0)
	s.evicted = nil
}

func (s *CacheSuite) clock() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *CacheSuite) advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

func (s *CacheSuite) newCache(capacity int) *Cache[int] {
	return New(Options[int]{
		Capacity: capacity,
		TTL:      time.Minute,
		Now:      s.clock,
		OnEvict: func(key string, _ int) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.evicted = append(s.evicted, key)
		},
	})
}

func (s *CacheSuite) TestGetOrComputeOnce() {
	c := s.newCache(10)

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(string) (int, error) {
		calls.Inc()
		<-release
		return 42, nil
	}

	var g errgroup.Group
	for i := 0; i < 100; i++ {
		g.Go(func() error {
			v, err := c.GetOrCompute("key", compute)
			if err != nil {
				return err
			}
			if v != 42 {
				return errors.New("unexpected value")
			}
			return nil
		})
	}

	time.Sleep(10 * time.Millisecond)
	close(release)

	s.NoError(g.Wait())
	s.Equal(int32(1), calls.Load())

	v, ok := c.Get("key")
	s.True(ok)
	s.Equal(42, v)
}

func (s *CacheSuite) TestErrorsAreNotCached() {
	c := s.newCache(10)
	errBoom := errors.New("boom")

	_, err := c.GetOrCompute("key", func(string) (int, error) {
		return 0, errBoom
	})
	s.ErrorIs(err, errBoom)
	s.Equal(0, c.Len())

	v, err := c.GetOrCompute("key", func(string) (int, error) {
		return 7, nil
	})
	s.NoError(err)
	s.Equal(7, v)
}

func (s *CacheSuite) TestPanicDoesNotBlockKey() {
	c := s.newCache(10)

	s.PanicsWithValue("boom", func() {
		_, _ = c.GetOrCompute("a", func(string) (int, error) {
			panic("boom")
		})
	})

	v, err := c.GetOrCompute("a", func(string) (int, error) { return 1, nil })
	s.NoError(err)
	s.Equal(1, v)
}

func (s *CacheSuite) TestExpiry() {
	c := s.newCache(10)

	var calls int
	compute := func(string) (int, error) {
		calls++
		return calls, nil
	}

	v, err := c.GetOrCompute("key", compute)
	s.NoError(err)
	s.Equal(1, v)

	s.advance(59 * time.Second)
	v, err = c.GetOrCompute("key", compute)
	s.NoError(err)
	s.Equal(1, v)

	s.advance(time.Second)
	v, err = c.GetOrCompute("key", compute)
	s.NoError(err)
	s.Equal(2, v)
	s.Equal([]string{"key"}, s.evicted)
}

func (s *CacheSuite) TestCapacityEviction() {
	c := s.newCache(2)

	for _, k := range []string{"a", "b"} {
		_, err := c.GetOrCompute(k, func(string) (int, error) { return 1, nil })
		s.NoError(err)
	}

	_, ok := c.Get("a")
	s.True(ok)

	_, err := c.GetOrCompute("c", func(string) (int, error) { return 1, nil })
	s.NoError(err)

	s.Equal([]string{"b"}, s.evicted)
	s.Equal(2, c.Len())
}

func (s *CacheSuite) TestPurge() {
	c := s.newCache(10)

	for _, k := range []string{"a", "b", "c"} {
		_, err := c.GetOrCompute(k, func(string) (int, error) { return 1, nil })
		s.NoError(err)
	}

	c.Purge()
	s.ElementsMatch([]string{"a", "b", "c"}, s.evicted)
	s.Equal(0, c.Len())

	_, ok := c.Get("a")
	s.False(ok)
}

func (s *CacheSuite) TestDefaults() {
	c := New(Options[string]{})
	s.Equal(DefaultTTL, c.ttl)
	s.NotNil(c.now)

	v, err := c.GetOrCompute("k", func(k string) (string, error) { return k + "!", nil })
	s.NoError(err)
	s.Equal("k!", v)
}
