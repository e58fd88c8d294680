package chunk

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/memo/internal/blobtype"
	"github.com/meigma/memo/internal/testutil"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	const ceiling = 8
	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "empty", payload: []byte{}},
		{name: "one byte", payload: []byte{0x2a}},
		{name: "exactly ceiling", payload: bytes.Repeat([]byte("x"), ceiling)},
		{name: "above ceiling", payload: bytes.Repeat([]byte("abc"), 11)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			require.NoError(t, Write(&buf, tt.payload, ceiling))
			assert.Equal(t, HeaderSize+len(tt.payload), buf.Len())

			got, err := Read(&buf, ceiling, 0)
			require.NoError(t, err)
			assert.Equal(t, len(tt.payload), len(got))
			assert.True(t, bytes.Equal(tt.payload, got))
		})
	}
}

func TestWriteRespectsCeiling(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("z"), 25)
	rec := testutil.NewOpRecorder(nil)
	require.NoError(t, Write(rec, payload, 10))

	// header, then 10 + 10 + 5
	assert.Equal(t, []int{HeaderSize, 10, 10, 5}, rec.Ops())
}

func TestReadRespectsCeiling(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("q"), 23)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, payload, 0))

	rec := testutil.NewOpRecorder(buf.Bytes())
	got, err := Read(rec, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, []int{HeaderSize, 10, 10, 3}, rec.Ops())
}

func TestWriteDefaultCeilingSinglePiece(t *testing.T) {
	t.Parallel()

	rec := testutil.NewOpRecorder(nil)
	require.NoError(t, Write(rec, []byte("small value"), 0))
	assert.Equal(t, []int{HeaderSize, len("small value")}, rec.Ops())
}

func TestReadTruncated(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []byte("hello world"), 4))
	truncated := buf.Bytes()[:buf.Len()-2]

	_, err := Read(bytes.NewReader(truncated), 4, 0)
	require.ErrorIs(t, err, blobtype.ErrCorruptData)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadEmptyStream(t *testing.T) {
	t.Parallel()

	_, err := Read(bytes.NewReader(nil), 0, 0)
	require.ErrorIs(t, err, blobtype.ErrCorruptData)
}

func TestReadBadMagic(t *testing.T) {
	t.Parallel()

	data := make([]byte, HeaderSize)
	copy(data, "NOPE")
	_, err := Read(bytes.NewReader(data), 0, 0)
	require.ErrorIs(t, err, blobtype.ErrCorruptData)
}

func TestReadLimit(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, bytes.Repeat([]byte("a"), 100), 0))

	_, err := Read(bytes.NewReader(buf.Bytes()), 0, 99)
	require.ErrorIs(t, err, blobtype.ErrSizeOverflow)

	got, err := Read(bytes.NewReader(buf.Bytes()), 0, 100)
	require.NoError(t, err)
	assert.Len(t, got, 100)
}

func TestReadHugeDeclaredSizeDoesNotPreallocate(t *testing.T) {
	t.Parallel()

	header := make([]byte, HeaderSize)
	copy(header, Magic[:])
	binary.BigEndian.PutUint64(header[4:], 1<<40)

	_, err := Read(bytes.NewReader(header), 0, 0)
	require.ErrorIs(t, err, blobtype.ErrCorruptData)
}
