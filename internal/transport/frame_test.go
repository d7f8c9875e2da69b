package transport

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// chunkReader yields its payload a few bytes at a time, simulating TCP-style
// partial reads.
type chunkReader struct {
	payload []byte
	chunk   int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.payload) == 0 {
		return 0, io.EOF
	}
	n := r.chunk
	if n > len(r.payload) {
		n = len(r.payload)
	}
	copied := copy(p, r.payload[:n])
	r.payload = r.payload[copied:]
	return copied, nil
}

func TestFrameReader_ChunkSafe(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"id":"a","ok":true,"result":{"n":1}}` + "\n" +
		`{"kind":"prompt","text":"api token?"}` + "\n" +
		`{"id":"b","target":"","method":"health"}` + "\n")
	reader := newFrameReader(&chunkReader{payload: payload, chunk: 3})

	first, err := reader.next()
	require.NoError(t, err)
	require.True(t, first.isResponse())
	require.Equal(t, "a", first.ID)

	second, err := reader.next()
	require.NoError(t, err)
	require.Equal(t, frameKindPrompt, second.Kind)
	require.Equal(t, "api token?", second.Text)

	third, err := reader.next()
	require.NoError(t, err)
	require.True(t, third.isRequest())
	require.Equal(t, "health", third.Method)

	_, err = reader.next()
	require.Equal(t, io.EOF, err)
}

func TestFrameReader_SkipsBlankLines(t *testing.T) {
	t.Parallel()

	reader := newFrameReader(&chunkReader{payload: []byte("\n\n{\"id\":\"a\",\"ok\":true}\n"), chunk: 64})
	f, err := reader.next()
	require.NoError(t, err)
	require.Equal(t, "a", f.ID)
}

func TestFrameReader_MalformedLine(t *testing.T) {
	t.Parallel()

	reader := newFrameReader(&chunkReader{payload: []byte("not json\n"), chunk: 64})
	_, err := reader.next()
	require.Error(t, err)
}
