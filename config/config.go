// Package config reads the engine configuration from files in git-config
// syntax. The settings live in the [odb] section, so they can be kept in the
// config file of a repository:
//
//	[odb]
//		workers = 8
//		cacheTTL = 2m
//		packCacheSize = 64
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-git/gcfg"
	"github.com/go-git/go-billy/v5"
	odb "github.com/go-git/go-odb"
	"github.com/go-git/go-odb/utils/ioutil"
)

// Config is the engine configuration.
type Config struct {
	ODB Section `gcfg:"odb"`
}

// Section holds the variables of the [odb] section. Unset variables keep the
// engine defaults.
type Section struct {
	Workers          int
	CacheTTL         Duration `gcfg:"cacheTTL"`
	PackCacheSize    int
	IndexCacheSize   int
	ListingCacheSize int
	LooseCacheSize   int
	MaxDeltaDepth    int
}

// Duration is a time.Duration read with time.ParseDuration, e.g. "90s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	*d = Duration(v)
	return nil
}

// Read decodes a configuration. Sections and variables other than the ones
// of the [odb] section are ignored.
func Read(r io.Reader) (*Config, error) {
	c := &Config{}
	if err := gcfg.FatalOnly(gcfg.ReadInto(c, r)); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	return c, nil
}

// ReadFile decodes the configuration file at path in fs.
func ReadFile(fs billy.Filesystem, path string) (c *Config, err error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer ioutil.CheckClose(f, &err)

	return Read(f)
}

// ReadRepository decodes the config file of the git directory root. A
// repository without config file yields an empty configuration.
func ReadRepository(fs billy.Filesystem, root string) (*Config, error) {
	c, err := ReadFile(fs, fs.Join(root, "config"))
	if errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}

	return c, err
}

// Options returns the engine options described by c.
func (c *Config) Options() odb.Options {
	return odb.Options{
		Workers:          c.ODB.Workers,
		CacheTTL:         time.Duration(c.ODB.CacheTTL),
		PackCacheSize:    c.ODB.PackCacheSize,
		IndexCacheSize:   c.ODB.IndexCacheSize,
		ListingCacheSize: c.ODB.ListingCacheSize,
		LooseCacheSize:   c.ODB.LooseCacheSize,
		MaxDeltaDepth:    c.ODB.MaxDeltaDepth,
	}
}
