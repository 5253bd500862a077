package test

import (
	"os"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"go.uber.org/atomic"
)

// Filesystem wraps a billy.Filesystem, counting the files opened for reading
// per path and the files currently open.
type Filesystem struct {
	billy.Filesystem

	mu    sync.Mutex
	opens map[string]int
	open  atomic.Int64
}

// NewFilesystem returns a Filesystem wrapping fs.
func NewFilesystem(fs billy.Filesystem) *Filesystem {
	return &Filesystem{
		Filesystem: fs,
		opens:      make(map[string]int),
	}
}

// Open opens the named file for reading.
func (fs *Filesystem) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

// OpenFile opens the named file, counting it if opened for reading only.
func (fs *Filesystem) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	f, err := fs.Filesystem.OpenFile(filename, flag, perm)
	if err != nil || flag != os.O_RDONLY {
		return f, err
	}

	fs.mu.Lock()
	fs.opens[filename]++
	fs.mu.Unlock()

	fs.open.Inc()
	return &file{File: f, fs: fs}, nil
}

// Opens returns the number of times filename was opened for reading.
func (fs *Filesystem) Opens(filename string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.opens[filename]
}

// TotalOpens returns the number of files opened for reading.
func (fs *Filesystem) TotalOpens() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var n int
	for _, c := range fs.opens {
		n += c
	}

	return n
}

// OpenFiles returns the number of files opened for reading and not yet
// closed.
func (fs *Filesystem) OpenFiles() int {
	return int(fs.open.Load())
}

type file struct {
	billy.File
	fs     *Filesystem
	closed atomic.Bool
}

func (f *file) Close() error {
	if f.closed.CompareAndSwap(false, true) {
		f.fs.open.Dec()
	}

	return f.File.Close()
}

// Clock is a manually advanced clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock set to a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the current time of the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
