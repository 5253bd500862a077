package odb

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/go-git/go-odb/plumbing/cache"
	"github.com/go-git/go-odb/plumbing/format/packfile"
	"go.uber.org/zap"
)

const (
	// MinWorkers is the minimum number of workers started by default.
	MinWorkers = 4
	// DefaultPackCacheSize is the default number of open packfiles.
	DefaultPackCacheSize = 20
	// DefaultIndexCacheSize is the default number of open pack indexes.
	DefaultIndexCacheSize = 20
	// DefaultListingCacheSize is the default number of repositories whose
	// pack listing is remembered.
	DefaultListingCacheSize = 20
	// DefaultLooseCacheSize is the default number of remembered loose object
	// existence checks.
	DefaultLooseCacheSize = 16384
)

// ErrInvalidOptions is returned by Options.Validate for negative sizes or
// durations.
var ErrInvalidOptions = errors.New("invalid options")

// Options configures an Engine. The zero value is valid: every field has a
// default.
type Options struct {
	// Workers is the number of goroutines processing operations. By
	// default max(MinWorkers, runtime.GOMAXPROCS(0)).
	Workers int
	// CacheTTL is the time cache entries live after being written. By
	// default cache.DefaultTTL.
	CacheTTL time.Duration
	// PackCacheSize is the maximum number of packfiles kept open.
	PackCacheSize int
	// IndexCacheSize is the maximum number of pack indexes kept open.
	IndexCacheSize int
	// ListingCacheSize is the maximum number of repositories whose pack
	// listing is remembered.
	ListingCacheSize int
	// LooseCacheSize is the maximum number of remembered loose object
	// existence checks.
	LooseCacheSize int
	// MaxDeltaDepth limits the delta chain resolved for a packed object. By
	// default packfile.DefaultMaxDeltaDepth.
	MaxDeltaDepth int
	// Logger receives the engine logs. By default nothing is logged.
	Logger *zap.Logger
	// OnInternalError is called with every unexpected failure caught while
	// processing an operation, panics included. Absent objects and
	// cancellations are not internal errors.
	OnInternalError func(error)
	// Now returns the current time, used for cache expiry. By default
	// time.Now.
	Now func() time.Time
}

// Validate validates the fields and sets the default values.
func (o *Options) Validate() error {
	for _, f := range []struct {
		name  string
		value int64
	}{
		{"workers", int64(o.Workers)},
		{"cache ttl", int64(o.CacheTTL)},
		{"pack cache size", int64(o.PackCacheSize)},
		{"index cache size", int64(o.IndexCacheSize)},
		{"listing cache", int64(o.ListingCacheSize)},
		{"loose cache size", int64(o.LooseCacheSize)},
		{"max delta depth", int64(o.MaxDeltaDepth)},
	} {
		if f.value < 0 {
			return fmt.Errorf("%w: negative %s", ErrInvalidOptions, f.name)
		}
	}

	if o.Workers == 0 {
		o.Workers = max(MinWorkers, runtime.GOMAXPROCS(0))
	}

	if o.CacheTTL == 0 {
		o.CacheTTL = cache.DefaultTTL
	}

	if o.PackCacheSize == 0 {
		o.PackCacheSize = DefaultPackCacheSize
	}

	if o.IndexCacheSize == 0 {
		o.IndexCacheSize = DefaultIndexCacheSize
	}

	if o.ListingCacheSize == 0 {
		o.ListingCacheSize = DefaultListingCacheSize
	}

	if o.LooseCacheSize == 0 {
		o.LooseCacheSize = DefaultLooseCacheSize
	}

	if o.MaxDeltaDepth == 0 {
		o.MaxDeltaDepth = packfile.DefaultMaxDeltaDepth
	}

	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}

	if o.Now == nil {
		o.Now = time.Now
	}

	return nil
}
