package odb

import (
	"runtime"
	"testing"
	"time"

	"github.com/go-git/go-odb/plumbing/cache"
	"github.com/go-git/go-odb/plumbing/format/packfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsDefaults(t *testing.T) {
	o := Options{}
	require.NoError(t, o.Validate())

	assert.Equal(t, max(MinWorkers, runtime.GOMAXPROCS(0)), o.Workers)
	assert.Equal(t, cache.DefaultTTL, o.CacheTTL)
	assert.Equal(t, DefaultPackCacheSize, o.PackCacheSize)
	assert.Equal(t, DefaultIndexCacheSize, o.IndexCacheSize)
	assert.Equal(t, DefaultListingCacheSize, o.ListingCacheSize)
	assert.Equal(t, DefaultLooseCacheSize, o.LooseCacheSize)
	assert.Equal(t, packfile.DefaultMaxDeltaDepth, o.MaxDeltaDepth)
	assert.NotNil(t, o.Logger)
	assert.NotNil(t, o.Now)
}

func TestOptionsKeepValues(t *testing.T) {
	o := Options{Workers: 1, CacheTTL: time.Second, LooseCacheSize: 10}
	require.NoError(t, o.Validate())

	assert.Equal(t, 1, o.Workers)
	assert.Equal(t, time.Second, o.CacheTTL)
	assert.Equal(t, 10, o.LooseCacheSize)
}

func TestOptionsNegative(t *testing.T) {
	for _, o := range []Options{
		{Workers: -1},
		{CacheTTL: -time.Second},
		{PackCacheSize: -1},
		{IndexCacheSize: -1},
		{ListingCacheSize: -1},
		{LooseCacheSize: -1},
		{MaxDeltaDepth: -1},
	} {
		err := o.Validate()
		assert.ErrorIs(t, err, ErrInvalidOptions)
	}
}

func TestOptionsNegativeNamesFirstField(t *testing.T) {
	o := Options{Workers: -1, CacheTTL: -time.Second, MaxDeltaDepth: -1}
	for i := 0; i < 10; i++ {
		assert.EqualError(t, o.Validate(), "invalid options: negative workers")
	}

	o = Options{LooseCacheSize: -1, MaxDeltaDepth: -1}
	assert.EqualError(t, o.Validate(), "invalid options: negative loose cache size")
}
