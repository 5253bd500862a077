package ioutil

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

type CommonSuite struct {
	suite.Suite
}

func TestCommonSuite(t *testing.T) {
	suite.Run(t, new(CommonSuite))
}

type closer struct {
	called int
	err    error
}

func (c *closer) Close() error {
	c.called++
	return c.err
}

func (s *CommonSuite) TestNewReadCloser() {
	buf := bytes.NewBuffer([]byte("1"))
	closer := &closer{}
	r := NewReadCloser(buf, closer)

	read, err := io.ReadAll(r)
	s.NoError(err)
	s.Equal("1", string(read))

	s.NoError(r.Close())
	s.Equal(1, closer.called)
}

func (s *CommonSuite) TestOnceCloser() {
	errBoom := errors.New("boom")
	c := &closer{err: errBoom}
	once := OnceCloser(c)

	s.ErrorIs(once.Close(), errBoom)
	s.ErrorIs(once.Close(), errBoom)
	s.Equal(1, c.called)
}

func (s *CommonSuite) TestCheckClose() {
	errBoom := errors.New("boom")

	var err error
	CheckClose(&closer{err: errBoom}, &err)
	s.ErrorIs(err, errBoom)

	errFirst := errors.New("first")
	err = errFirst
	CheckClose(&closer{err: errBoom}, &err)
	s.ErrorIs(err, errFirst)

	err = nil
	CheckClose(CloserFunc(func() error { return nil }), &err)
	s.NoError(err)
}

func ExampleCheckClose() {
	// CheckClose is commonly used with named return values
	f := func() (err error) {
		// Get a io.ReadCloser
		r := io.NopCloser(strings.NewReader("foo"))

		// defer CheckClose call with an io.Closer and pointer to error
		defer CheckClose(r, &err)

		// ... work with r ...

		// if err is not nil, CheckClose will assign any close errors to it
		return err
	}

	err := f()
	if err != nil {
		panic(err)
	}
}
