// Package blobstore reads and writes single compressed blob files.
//
// A blob file holds exactly one framed payload (see package chunk) passed
// through the configured compressor. Loads sniff the compression from the
// file's leading bytes, so blobs written under a different setting stay
// readable.
package blobstore

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/natefinch/atomic"

	"github.com/meigma/memo/internal/blobtype"
	"github.com/meigma/memo/internal/chunk"
	"github.com/meigma/memo/internal/sizing"
)

const defaultDirPerm = 0o750

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	gzipMagic = []byte{0x1f, 0x8b}
)

// Store reads and writes compressed blob files.
// A Store is safe for concurrent use on distinct paths.
type Store struct {
	compression blobtype.Compression
	maxChunk    int
	maxBlobSize uint64
	dirPerm     os.FileMode
	decoders    *decompressPool
}

// Option configures a Store.
type Option func(*config)

type config struct {
	compression      blobtype.Compression
	maxChunk         int
	maxBlobSize      uint64
	maxDecoderMemory uint64
	dirPerm          os.FileMode
}

// WithCompression sets the compression used for new blobs. Defaults to zstd.
func WithCompression(c blobtype.Compression) Option {
	return func(cfg *config) {
		cfg.compression = c
	}
}

// WithMaxChunkSize caps the bytes moved by a single read or write of the
// framed payload. Values <= 0 select chunk.MaxChunkSize.
func WithMaxChunkSize(n int) Option {
	return func(cfg *config) {
		cfg.maxChunk = n
	}
}

// WithMaxBlobSize rejects blobs whose declared payload exceeds limit bytes.
// Set limit to 0 to disable the limit.
func WithMaxBlobSize(limit uint64) Option {
	return func(cfg *config) {
		cfg.maxBlobSize = limit
	}
}

// WithMaxDecoderMemory limits the maximum memory used by the zstd decoder.
// Set limit to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(cfg *config) {
		cfg.maxDecoderMemory = limit
	}
}

// WithDirPerm sets the permissions used when creating parent directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(cfg *config) {
		cfg.dirPerm = mode
	}
}

// New creates a Store.
func New(opts ...Option) (*Store, error) {
	cfg := config{
		compression: blobtype.CompressionZstd,
		dirPerm:     defaultDirPerm,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.compression.Valid() {
		return nil, fmt.Errorf("unknown compression %d", cfg.compression)
	}
	return &Store{
		compression: cfg.compression,
		maxChunk:    cfg.maxChunk,
		maxBlobSize: cfg.maxBlobSize,
		dirPerm:     cfg.dirPerm,
		decoders:    newDecompressPool(cfg.maxDecoderMemory),
	}, nil
}

// Compression returns the compression used for new blobs.
func (s *Store) Compression() blobtype.Compression {
	return s.compression
}

// Store compresses payload and writes it to path, creating parent
// directories as needed. The file is replaced atomically (temp file plus
// rename in the same directory). Returns the number of bytes written to disk.
//
// Failures wrap ErrIO.
func (s *Store) Store(path string, payload []byte) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), s.dirPerm); err != nil {
		return 0, fmt.Errorf("%w: create blob directory: %w", blobtype.ErrIO, err)
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(s.encode(pw, payload))
	}()

	counter := &countingReader{r: pr}
	err := atomic.WriteFile(path, counter)
	// Unblocks the encoder if the write gave up early.
	_ = pr.Close()
	if err != nil {
		return 0, fmt.Errorf("%w: write blob %s: %w", blobtype.ErrIO, path, err)
	}
	return counter.n, nil
}

// encode writes the compressed frame for payload to w.
func (s *Store) encode(w io.Writer, payload []byte) error {
	switch s.compression {
	case blobtype.CompressionZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(1), zstd.WithLowerEncoderMem(true))
		if err != nil {
			return fmt.Errorf("create zstd encoder: %w", err)
		}
		if err := chunk.Write(enc, payload, s.maxChunk); err != nil {
			_ = enc.Close()
			return err
		}
		return enc.Close()
	case blobtype.CompressionGzip:
		gw := gzip.NewWriter(w)
		if err := chunk.Write(gw, payload, s.maxChunk); err != nil {
			_ = gw.Close()
			return err
		}
		return gw.Close()
	default:
		bw := bufio.NewWriter(w)
		if err := chunk.Write(bw, payload, s.maxChunk); err != nil {
			return err
		}
		return bw.Flush()
	}
}

// Load reads the blob at path and returns its payload.
//
// Returns ErrNotFound if path does not exist and ErrCorruptData if the file
// cannot be decompressed or deframed.
func (s *Store) Load(path string) ([]byte, error) {
	f, err := os.Open(path) //nolint:gosec // path is built by the cache from its own index
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", blobtype.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: open blob: %w", blobtype.ErrIO, err)
	}
	defer f.Close()

	payload, err := s.decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, asCorrupt(err))
	}
	return payload, nil
}

// Size returns the on-disk size of the blob at path.
func (s *Store) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", blobtype.ErrNotFound, path)
		}
		return 0, fmt.Errorf("%w: stat blob: %w", blobtype.ErrIO, err)
	}
	return info.Size(), nil
}

// decode sniffs the compression of br and returns the deframed payload.
func (s *Store) decode(br *bufio.Reader) ([]byte, error) {
	head, err := br.Peek(len(zstdMagic))
	if err != nil {
		return nil, fmt.Errorf("%w: read blob signature: %w", blobtype.ErrCorruptData, err)
	}

	var r io.Reader
	switch {
	case bytes.Equal(head, zstdMagic):
		dec, release, err := s.decoders.get(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", blobtype.ErrCorruptData, err)
		}
		defer release()
		r = dec
	case bytes.HasPrefix(head, gzipMagic):
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", blobtype.ErrCorruptData, err)
		}
		defer gr.Close()
		r = gr
	case bytes.Equal(head, chunk.Magic[:]):
		r = br
	default:
		return nil, fmt.Errorf("%w: unknown blob signature %x", blobtype.ErrCorruptData, head)
	}

	payload, err := chunk.Read(r, s.maxChunk, s.maxBlobSize)
	if err != nil {
		return nil, err
	}
	// Draining to EOF makes the decompressor verify its trailing checksum.
	if _, err := sizing.ReadAllWithLimit(r, 0, errTrailingData); err != nil {
		return nil, err
	}
	return payload, nil
}

var errTrailingData = fmt.Errorf("%w: trailing data after frame", blobtype.ErrCorruptData)

// asCorrupt classifies any failure while reading a blob's contents as
// ErrCorruptData, keeping ErrSizeOverflow distinct.
func asCorrupt(err error) error {
	if errors.Is(err, blobtype.ErrCorruptData) || errors.Is(err, blobtype.ErrSizeOverflow) {
		return err
	}
	return fmt.Errorf("%w: %w", blobtype.ErrCorruptData, err)
}

// countingReader counts bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
