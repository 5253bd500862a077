package sync

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAndPutZlibReader(t *testing.T) {
	_, err := GetZlibReader(bytes.NewReader(zlibInitBytes))
	require.NoError(t, err)

	var buf bytes.Buffer
	w := GetZlibWriter(&buf)
	_, err = w.Write([]byte("foo bar"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	PutZlibWriter(w)

	z, err := GetZlibReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	b, err := io.ReadAll(z)
	require.NoError(t, err)
	assert.Equal(t, "foo bar", string(b))
	PutZlibReader(z)
}

func TestGetZlibReaderGarbage(t *testing.T) {
	z, err := GetZlibReader(bytes.NewReader([]byte("not zlib at all")))
	assert.Error(t, err)
	assert.Nil(t, z)
}

func TestGetAndPutZlibWriter(t *testing.T) {
	w := GetZlibWriter(nil)
	assert.NotNil(t, w)
	PutZlibWriter(w)
}

func TestGetAndPutBytesBuffer(t *testing.T) {
	buf := GetBytesBuffer()
	buf.WriteString("dirty")
	PutBytesBuffer(buf)

	buf = GetBytesBuffer()
	assert.Zero(t, buf.Len())
	PutBytesBuffer(buf)
}
