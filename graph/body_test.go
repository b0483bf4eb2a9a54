package graph

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readBody(t *testing.T, b *Body) string {
	t.Helper()
	rc, err := b.open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestJSONBody(t *testing.T) {
	b, err := JSONBody(map[string]string{"name": "report.pdf"})
	require.NoError(t, err)

	assert.Equal(t, contentTypeJSON, b.contentType)
	assert.True(t, b.replayable)
	assert.JSONEq(t, `{"name":"report.pdf"}`, readBody(t, b))
	// Replayable: a second open yields the same payload.
	assert.JSONEq(t, `{"name":"report.pdf"}`, readBody(t, b))
}

func TestJSONBody_MarshalFailure(t *testing.T) {
	_, err := JSONBody(map[string]any{"bad": func() {}})
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestBytesBody(t *testing.T) {
	b := BytesBody("", []byte{0x01, 0x02})
	assert.Equal(t, contentTypeBinary, b.contentType)
	assert.EqualValues(t, 2, b.length)
	assert.True(t, b.canReplay())

	typed := BytesBody("text/plain", []byte("hi"))
	assert.Equal(t, "text/plain", typed.contentType)
}

func TestFileBody(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	b, err := FileBody(path)
	require.NoError(t, err)
	assert.EqualValues(t, 5, b.length)
	assert.True(t, b.replayable)
	assert.Contains(t, b.contentType, "text/plain")
	assert.Equal(t, "hello", readBody(t, b))
	assert.Equal(t, "hello", readBody(t, b))
}

func TestFileBody_Missing(t *testing.T) {
	_, err := FileBody(filepath.Join(t.TempDir(), "absent.bin"))
	assert.Error(t, err)
}

func TestReaderBody_SingleUse(t *testing.T) {
	b := ReaderBody("text/plain", strings.NewReader("stream"), 6)

	assert.False(t, b.canReplay())
	assert.Equal(t, "stream", readBody(t, b))

	_, err := b.open()
	assert.Error(t, err)
}

func TestNilBody_CanReplay(t *testing.T) {
	var b *Body
	assert.True(t, b.canReplay())
}
