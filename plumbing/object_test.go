package plumbing

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ObjectSuite struct {
	suite.Suite
}

func TestObjectSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(ObjectSuite))
}

func (s *ObjectSuite) TestObjectTypeString() {
	s.Equal("commit", CommitObject.String())
	s.Equal("tree", TreeObject.String())
	s.Equal("blob", BlobObject.String())
	s.Equal("tag", TagObject.String())
	s.Equal("ref-delta", REFDeltaObject.String())
	s.Equal("ofs-delta", OFSDeltaObject.String())
	s.Equal("unknown", ObjectType(42).String())
}

func (s *ObjectSuite) TestObjectTypeBytes() {
	s.Equal([]byte("commit"), CommitObject.Bytes())
}

func (s *ObjectSuite) TestObjectTypeValid() {
	s.True(CommitObject.Valid())
	s.True(TagObject.Valid())
	s.False(OFSDeltaObject.Valid())
	s.False(ObjectType(42).Valid())
}

func (s *ObjectSuite) TestObjectTypeIsDelta() {
	s.True(OFSDeltaObject.IsDelta())
	s.True(REFDeltaObject.IsDelta())
	s.False(BlobObject.IsDelta())
}

func (s *ObjectSuite) TestParseObjectType() {
	for st, e := range map[string]ObjectType{
		"commit": CommitObject,
		"tree":   TreeObject,
		"blob":   BlobObject,
		"tag":    TagObject,
	} {
		t, err := ParseObjectType(st)
		s.NoError(err)
		s.Equal(e, t)
	}

	for _, st := range []string{"foo", "ofs-delta", "Blob", ""} {
		t, err := ParseObjectType(st)
		s.ErrorIs(err, ErrInvalidType)
		s.Equal(InvalidObject, t)
	}
}

func (s *ObjectSuite) TestObjectReadClose() {
	o := &Object{
		Type: BlobObject,
		Size: 3,
		Data: io.NopCloser(strings.NewReader("foo")),
	}

	b, err := io.ReadAll(o)
	s.NoError(err)
	s.Equal("foo", string(b))
	s.NoError(o.Close())

	s.NoError((&Object{}).Close())

	var nilObject *Object
	s.NoError(nilObject.Close())
}
