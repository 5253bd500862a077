package iocopy

import (
	"bytes"
	"crypto/rand"
	"io"
	"strings"
	"testing"

	"github.com/go-git/go-odb/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func object(content string, h plumbing.Hash) *plumbing.Object {
	return &plumbing.Object{
		Hash: h,
		Type: plumbing.BlobObject,
		Size: uint64(len(content)),
		Data: io.NopCloser(strings.NewReader(content)),
	}
}

func TestCopy(t *testing.T) {
	data := make([]byte, 100*1024)
	_, err := rand.Read(data)
	require.NoError(t, err)

	var out bytes.Buffer
	n, err := Copy(&out, bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)
	assert.Equal(t, data, out.Bytes())
}

func TestCopyObjectVerified(t *testing.T) {
	h := plumbing.ComputeHash(plumbing.BlobObject, []byte("test content\n"))
	assert.Equal(t, "d670460b4b4aece5915caf5c68d12f560a9fe3e4", h.String())

	var out bytes.Buffer
	n, err := CopyObject(&out, object("test content\n", h), true)
	require.NoError(t, err)
	assert.Equal(t, int64(13), n)
	assert.Equal(t, "test content\n", out.String())
}

func TestCopyObjectMismatch(t *testing.T) {
	h := plumbing.ComputeHash(plumbing.BlobObject, []byte("test content\n"))

	_, err := CopyObject(io.Discard, object("tampered!!!!\n", h), true)
	assert.ErrorIs(t, err, ErrHashMismatch)

	_, err = CopyObject(io.Discard, object("tampered!!!!\n", h), false)
	assert.NoError(t, err)

	short := object("test content\n", h)
	short.Size = 20
	_, err = CopyObject(io.Discard, short, true)
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func BenchmarkCopy(b *testing.B) {
	data := make([]byte, 1024*1024)
	_, _ = rand.Read(data)

	b.ResetTimer()

	var src bytes.Reader
	for i := 0; i < b.N; i++ {
		src.Reset(data)
		_, _ = Copy(io.Discard, &src)
	}
}
