package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-odb/internal/test"
	"github.com/go-git/go-odb/plumbing"
	"github.com/stretchr/testify/suite"
)

type CommandSuite struct {
	suite.Suite

	fs   billy.Filesystem
	repo *test.Repository
}

func TestCommandSuite(t *testing.T) {
	suite.Run(t, new(CommandSuite))
}

func (s *CommandSuite) SetupTest() {
	s.fs = memfs.New()

	r, err := test.NewRepository(s.fs, "/repo/.git")
	s.Require().NoError(err)
	s.repo = r
}

func (s *CommandSuite) run(args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCommand(s.fs)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--git-dir", s.repo.Root}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func (s *CommandSuite) TestCatFileLoose() {
	h, err := s.repo.WriteLoose(plumbing.BlobObject, []byte("test content\n"))
	s.Require().NoError(err)

	out, err := s.run("cat-file", "-p", h.String())
	s.NoError(err)
	s.Equal("test content\n", out)

	out, err = s.run("cat-file", "-t", h.String())
	s.NoError(err)
	s.Equal("blob\n", out)

	out, err = s.run("cat-file", "-s", "--verify", h.String())
	s.NoError(err)
	s.Equal("13\n", out)
}

func (s *CommandSuite) TestCatFilePacked() {
	p := test.NewPack()
	base := p.Add(plumbing.CommitObject, []byte(strings.Repeat("parent line\n", 20)))
	h := p.AddOFSDelta(base, []byte(strings.Repeat("parent line\n", 21)))
	_, _, err := s.repo.WritePack("a", p)
	s.Require().NoError(err)

	out, err := s.run("cat-file", "-p", "--verify", strings.ToUpper(h.String()))
	s.NoError(err)
	s.Equal(strings.Repeat("parent line\n", 21), out)

	out, err = s.run("cat-file", "-t", h.String())
	s.NoError(err)
	s.Equal("commit\n", out)
}

func (s *CommandSuite) TestCatFileVerifyMismatch() {
	h := plumbing.NewHash("d670460b4b4aece5915caf5c68d12f560a9fe3e4")
	s.Require().NoError(s.repo.WriteRawLoose(h, []byte("blob 13\x00tampered!!!!\n")))

	_, err := s.run("cat-file", "-t", h.String())
	s.NoError(err)

	_, err = s.run("cat-file", "-t", "--verify", h.String())
	s.ErrorContains(err, "object hash mismatch")
}

func (s *CommandSuite) TestCatFileErrors() {
	_, err := s.run("cat-file", "-p", "not-a-hash")
	s.ErrorContains(err, "not a valid object name not-a-hash")

	_, err = s.run("cat-file", "-p", "0123456789012345678901234567890123456789")
	s.ErrorContains(err, "not a valid object name 0123456789012345678901234567890123456789")

	_, err = s.run("cat-file", "0123456789012345678901234567890123456789")
	s.Error(err)

	_, err = s.run("cat-file", "-t", "-s", "0123456789012345678901234567890123456789")
	s.Error(err)
}

func (s *CommandSuite) TestCatFileConfig() {
	h, err := s.repo.WriteLoose(plumbing.TagObject, []byte("object x\n"))
	s.Require().NoError(err)

	s.Require().NoError(util.WriteFile(s.fs, "/repo/.git/config", []byte("[core]\n\tbare = true\n[odb]\n\tworkers = 1\n"), 0o644))
	out, err := s.run("cat-file", "-t", h.String())
	s.NoError(err)
	s.Equal("tag\n", out)

	s.Require().NoError(util.WriteFile(s.fs, "/odb.conf", []byte("[odb]\n\tworkers = -1\n"), 0o644))
	_, err = s.run("--config", "/odb.conf", "cat-file", "-t", h.String())
	s.ErrorContains(err, "negative workers")

	_, err = s.run("--config", "/missing.conf", "cat-file", "-t", h.String())
	s.Error(err)
}

func (s *CommandSuite) TestVersion() {
	out, err := s.run("version")
	s.NoError(err)
	s.True(strings.HasPrefix(out, "odb dev "))
}
