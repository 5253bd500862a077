package race

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-git/go-odb/plumbing"
	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"
)

type RaceSuite struct {
	suite.Suite
}

func TestRaceSuite(t *testing.T) {
	suite.Run(t, new(RaceSuite))
}

type outcome struct {
	calls atomic.Int32
	mu    sync.Mutex
	v     string
	err   error
}

func (o *outcome) done(v string, err error) {
	o.calls.Inc()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.v, o.err = v, err
}

func (s *RaceSuite) TestFirstResultWins() {
	ctx, cancel := context.WithCancel(context.Background())
	o := &outcome{}
	g := New[string](3, cancel, o.done)

	g.ReportNoResult()
	s.False(g.Settled())
	s.NoError(ctx.Err())

	s.True(g.ReportResult("first"))
	s.False(g.ReportResult("second"))
	g.ReportNoResult()

	s.True(g.Settled())
	s.ErrorIs(ctx.Err(), context.Canceled)
	s.Equal(int32(1), o.calls.Load())
	s.Equal("first", o.v)
	s.NoError(o.err)
}

func (s *RaceSuite) TestAllNegative() {
	o := &outcome{}
	g := New[string](3, nil, o.done)

	g.ReportNoResult()
	g.ReportNoResult()
	s.Equal(int32(0), o.calls.Load())

	g.ReportNoResult()
	s.Equal(int32(1), o.calls.Load())
	s.ErrorIs(o.err, plumbing.ErrObjectNotFound)
	s.Empty(o.v)
}

func (s *RaceSuite) TestErrorsAreReported() {
	errBoom := errors.New("boom")
	o := &outcome{}
	g := New[string](3, nil, o.done)

	g.ReportNoResult()
	g.ReportError(plumbing.ErrMalformedObject)
	g.ReportError(errBoom)

	s.Equal(int32(1), o.calls.Load())
	s.ErrorIs(o.err, plumbing.ErrMalformedObject)
	s.ErrorIs(o.err, errBoom)
	s.NotErrorIs(o.err, plumbing.ErrObjectNotFound)
}

func (s *RaceSuite) TestResultAfterErrors() {
	o := &outcome{}
	g := New[string](2, nil, o.done)

	g.ReportError(plumbing.ErrMalformedObject)
	s.True(g.ReportResult("found"))

	s.Equal("found", o.v)
	s.NoError(o.err)
}

func (s *RaceSuite) TestNoRacers() {
	o := &outcome{}
	g := New[string](0, nil, o.done)

	s.True(g.Settled())
	s.ErrorIs(o.err, plumbing.ErrObjectNotFound)
	s.False(g.ReportResult("late"))
}

func (s *RaceSuite) TestConcurrentRacers() {
	for i := 0; i < 50; i++ {
		o := &outcome{}
		g := New[string](16, nil, o.done)

		var wg sync.WaitGroup
		var winners atomic.Int32
		for r := 0; r < 16; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if r%4 == 0 && g.ReportResult("hit") {
					winners.Inc()
					return
				}

				if r%4 != 0 {
					g.ReportNoResult()
				}
			}()
		}
		wg.Wait()

		s.Equal(int32(1), winners.Load())
		s.Equal(int32(1), o.calls.Load())
		s.Equal("hit", o.v)
	}
}
