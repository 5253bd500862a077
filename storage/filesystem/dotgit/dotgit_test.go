package dotgit

import (
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-odb/plumbing"
	"github.com/stretchr/testify/suite"
)

type SuiteDotGit struct {
	suite.Suite
}

func TestSuiteDotGit(t *testing.T) {
	suite.Run(t, new(SuiteDotGit))
}

func (s *SuiteDotGit) TestObjectPath() {
	dir := New(memfs.New(), "/repo/.git")
	h := plumbing.NewHash("e69de29bb2d1d6434b8b29ae775ad8c2e48c5391")

	s.Equal(
		filepath.Join("/repo/.git", "objects", "e6", "9de29bb2d1d6434b8b29ae775ad8c2e48c5391"),
		dir.ObjectPath(h),
	)
	s.Equal("/repo/.git", dir.Root())
}

func (s *SuiteDotGit) TestObjectExists() {
	fs := memfs.New()
	dir := New(fs, ".git")
	h := plumbing.NewHash("e69de29bb2d1d6434b8b29ae775ad8c2e48c5391")

	ok, err := dir.ObjectExists(h)
	s.NoError(err)
	s.False(ok)

	s.Require().NoError(util.WriteFile(fs, dir.ObjectPath(h), []byte("x"), 0o644))

	ok, err = dir.ObjectExists(h)
	s.NoError(err)
	s.True(ok)
}

func (s *SuiteDotGit) TestObjectPacks() {
	fs := memfs.New()
	dir := New(fs, ".git")

	packs, err := dir.ObjectPacks()
	s.NoError(err)
	s.Empty(packs)

	for _, name := range []string{
		"pack-b.pack", "pack-b.idx", "pack-a.pack", "pack-a.idx",
		"pack-c.keep", "tmp_pack_123",
	} {
		s.Require().NoError(util.WriteFile(fs, fs.Join(dir.PackDir(), name), nil, 0o644))
	}
	s.Require().NoError(fs.MkdirAll(fs.Join(dir.PackDir(), "dir.pack"), 0o755))

	packs, err = dir.ObjectPacks()
	s.NoError(err)
	s.Equal([]string{
		fs.Join(dir.PackDir(), "pack-a.pack"),
		fs.Join(dir.PackDir(), "pack-b.pack"),
	}, packs)
}

func (s *SuiteDotGit) TestIndexPath() {
	s.Equal(".git/objects/pack/pack-a.idx", IndexPath(".git/objects/pack/pack-a.pack"))
	s.Equal("/x/y.pack.idx", IndexPath("/x/y.pack.pack"))
}
