package blobstore

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/memo/internal/blobtype"
	"github.com/meigma/memo/internal/chunk"
	"github.com/meigma/memo/internal/testutil"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New(opts...)
	require.NoError(t, err)
	return s
}

func TestStoreLoadRoundTrip(t *testing.T) {
	t.Parallel()

	compressions := []blobtype.Compression{
		blobtype.CompressionZstd,
		blobtype.CompressionGzip,
		blobtype.CompressionNone,
	}
	payloads := map[string][]byte{
		"empty":  {},
		"byte":   {0x7f},
		"larger": bytes.Repeat([]byte("memoized result "), 4096),
		"random": testutil.Payload(64<<10, 1),
	}

	for _, c := range compressions {
		for name, payload := range payloads {
			t.Run(c.String()+"/"+name, func(t *testing.T) {
				t.Parallel()

				s := newTestStore(t, WithCompression(c), WithMaxChunkSize(1000))
				path := filepath.Join(t.TempDir(), "nested", "dir", "0.blob")

				n, err := s.Store(path, payload)
				require.NoError(t, err)
				info, err := os.Stat(path)
				require.NoError(t, err)
				assert.Equal(t, info.Size(), n)

				got, err := s.Load(path)
				require.NoError(t, err)
				assert.True(t, bytes.Equal(payload, got), "payload mismatch")
			})
		}
	}
}

func TestStoreExistingDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := newTestStore(t)

	_, err := s.Store(filepath.Join(dir, "0.blob"), []byte("a"))
	require.NoError(t, err)
	_, err = s.Store(filepath.Join(dir, "1.blob"), []byte("b"))
	require.NoError(t, err)
}

func TestLoadNotFound(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, err := s.Load(filepath.Join(t.TempDir(), "missing.blob"))
	require.ErrorIs(t, err, blobtype.ErrNotFound)

	_, err = s.Size(filepath.Join(t.TempDir(), "missing.blob"))
	require.ErrorIs(t, err, blobtype.ErrNotFound)
}

func TestLoadSniffsCompression(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "0.blob")
	writer := newTestStore(t, WithCompression(blobtype.CompressionGzip))
	_, err := writer.Store(path, []byte("written as gzip"))
	require.NoError(t, err)

	reader := newTestStore(t, WithCompression(blobtype.CompressionZstd))
	got, err := reader.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("written as gzip"), got)
}

func TestLoadTruncated(t *testing.T) {
	t.Parallel()

	for _, c := range []blobtype.Compression{blobtype.CompressionZstd, blobtype.CompressionGzip, blobtype.CompressionNone} {
		t.Run(c.String(), func(t *testing.T) {
			t.Parallel()

			s := newTestStore(t, WithCompression(c))
			path := filepath.Join(t.TempDir(), "0.blob")
			_, err := s.Store(path, bytes.Repeat([]byte("truncate me "), 512))
			require.NoError(t, err)

			testutil.TruncateHalf(t, path)

			_, err = s.Load(path)
			require.ErrorIs(t, err, blobtype.ErrCorruptData)
		})
	}
}

func TestLoadGarbage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "0.blob")
	testutil.Overwrite(t, path, []byte("definitely not a blob"))

	_, err := newTestStore(t).Load(path)
	require.ErrorIs(t, err, blobtype.ErrCorruptData)
}

func TestLoadEmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "0.blob")
	testutil.Overwrite(t, path, nil)

	_, err := newTestStore(t).Load(path)
	require.ErrorIs(t, err, blobtype.ErrCorruptData)
}

func TestLoadTrailingData(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, chunk.Write(&buf, []byte("payload"), 0))
	buf.WriteString("extra")

	path := filepath.Join(t.TempDir(), "0.blob")
	testutil.Overwrite(t, path, buf.Bytes())

	_, err := newTestStore(t).Load(path)
	require.ErrorIs(t, err, blobtype.ErrCorruptData)
}

func TestLoadMaxBlobSize(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "0.blob")
	_, err := newTestStore(t).Store(path, bytes.Repeat([]byte("x"), 64))
	require.NoError(t, err)

	_, err = newTestStore(t, WithMaxBlobSize(63)).Load(path)
	require.ErrorIs(t, err, blobtype.ErrSizeOverflow)
}

func TestStoreUnwritableDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := newTestStore(t).Store(filepath.Join(blocker, "0.blob"), []byte("a"))
	require.ErrorIs(t, err, blobtype.ErrIO)
}

func TestNewRejectsUnknownCompression(t *testing.T) {
	t.Parallel()

	_, err := New(WithCompression(blobtype.Compression(99)))
	require.Error(t, err)
}
