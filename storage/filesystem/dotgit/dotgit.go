// Package dotgit resolves the location of objects inside a git directory.
package dotgit

import (
	"errors"
	"os"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-odb/plumbing"
)

const (
	objectsPath = "objects"
	packPath    = "pack"

	packExt = ".pack"
	idxExt  = ".idx"
)

// The DotGit type represents a git directory. This type is not
// zero-value-safe, use the New function to initialize it.
type DotGit struct {
	fs   billy.Filesystem
	root string
}

// New returns a DotGit for the git directory at root (e.g. "/foo/bar/.git")
// in fs.
func New(fs billy.Filesystem, root string) *DotGit {
	return &DotGit{fs: fs, root: root}
}

// Root returns the path of the git directory.
func (d *DotGit) Root() string {
	return d.root
}

// ObjectPath returns the path of the loose object h:
// objects/<first two hex digits>/<remaining 38>.
func (d *DotGit) ObjectPath(h plumbing.Hash) string {
	hex := h.String()
	return d.fs.Join(d.root, objectsPath, hex[0:2], hex[2:])
}

// ObjectExists reports whether the loose object h is present.
func (d *DotGit) ObjectExists(h plumbing.Hash) (bool, error) {
	fi, err := d.fs.Stat(d.ObjectPath(h))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return !fi.IsDir(), nil
}

// PackDir returns the directory holding the packfiles.
func (d *DotGit) PackDir() string {
	return d.fs.Join(d.root, objectsPath, packPath)
}

// ObjectPacks returns the sorted paths of every packfile in the pack
// directory. A missing directory yields no packs.
func (d *DotGit) ObjectPacks() ([]string, error) {
	dir := d.PackDir()
	files, err := d.fs.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, err
	}

	var packs []string
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), packExt) {
			continue
		}

		packs = append(packs, d.fs.Join(dir, f.Name()))
	}

	sort.Strings(packs)
	return packs, nil
}

// IndexPath returns the path of the index of the packfile at packPath,
// replacing its extension.
func IndexPath(packPath string) string {
	return strings.TrimSuffix(packPath, packExt) + idxExt
}
