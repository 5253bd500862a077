// Package test provides fixtures for tests: repositories built on a billy
// filesystem, a pack and index encoder, an instrumented filesystem and a
// manual clock.
package test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-odb/plumbing"
	"github.com/go-git/go-odb/plumbing/format/objfile"
)

// Repository writes objects in the layout of a git directory.
type Repository struct {
	FS   billy.Filesystem
	Root string
}

// NewRepository creates the objects directories of a repository rooted at
// root.
func NewRepository(fs billy.Filesystem, root string) (*Repository, error) {
	r := &Repository{FS: fs, Root: root}
	if err := fs.MkdirAll(r.PackDir(), 0o755); err != nil {
		return nil, err
	}

	return r, nil
}

// PackDir returns the directory holding packfiles.
func (r *Repository) PackDir() string {
	return r.FS.Join(r.Root, "objects", "pack")
}

// LoosePath returns the path of the loose object h.
func (r *Repository) LoosePath(h plumbing.Hash) string {
	hex := h.String()
	return r.FS.Join(r.Root, "objects", hex[:2], hex[2:])
}

// PackPath returns the path of the packfile named name.
func (r *Repository) PackPath(name string) string {
	return r.FS.Join(r.PackDir(), fmt.Sprintf("pack-%s.pack", name))
}

// IndexPath returns the path of the index of the packfile named name.
func (r *Repository) IndexPath(name string) string {
	return r.FS.Join(r.PackDir(), fmt.Sprintf("pack-%s.idx", name))
}

// WriteLoose stores content as a loose object and returns its hash.
func (r *Repository) WriteLoose(t plumbing.ObjectType, content []byte) (plumbing.Hash, error) {
	var buf bytes.Buffer
	w := objfile.NewWriter(&buf)
	if err := w.WriteHeader(t, int64(len(content))); err != nil {
		return plumbing.ZeroHash, err
	}

	if _, err := w.Write(content); err != nil {
		return plumbing.ZeroHash, err
	}

	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, err
	}

	h := w.Hash()
	return h, r.write(r.LoosePath(h), buf.Bytes())
}

// WriteRawLoose compresses raw, header included, and stores it as the loose
// object h without any validation.
func (r *Repository) WriteRawLoose(h plumbing.Hash, raw []byte) error {
	return r.write(r.LoosePath(h), Deflate(raw))
}

// WritePack encodes p and stores it, with its index, under name. It returns
// the path of the packfile.
func (r *Repository) WritePack(name string, p *Pack) (string, *EncodedPack, error) {
	enc := p.Encode()
	if err := r.write(r.PackPath(name), enc.Pack); err != nil {
		return "", nil, err
	}

	if err := r.write(r.IndexPath(name), enc.Index); err != nil {
		return "", nil, err
	}

	return r.PackPath(name), enc, nil
}

func (r *Repository) write(path string, data []byte) error {
	if err := r.FS.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return util.WriteFile(r.FS, path, data, os.FileMode(0o644))
}
