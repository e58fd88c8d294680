package memo

import (
	"log/slog"
	"os"

	"github.com/meigma/memo/codec"
	"github.com/meigma/memo/internal/blobtype"
)

// Compression identifies the compression algorithm used for blob files.
type Compression = blobtype.Compression

// Compression algorithms. Blobs record their compression, so a directory
// stays readable when the setting changes between runs.
const (
	CompressionNone = blobtype.CompressionNone
	CompressionZstd = blobtype.CompressionZstd
	CompressionGzip = blobtype.CompressionGzip
)

const defaultDirPerm = 0o750

// Option configures a Cache.
type Option func(*config)

type config struct {
	logger           *slog.Logger
	progress         ProgressFunc
	compression      Compression
	maxChunkSize     int
	maxBlobSize      uint64
	maxDecoderMemory uint64
	dirPerm          os.FileMode
}

// WithLogger sets the logger for cache activity. Defaults to discarding logs.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithProgress registers a callback for load, compute, and save events.
// See PrintEvents for a ready-made text reporter.
func WithProgress(fn ProgressFunc) Option {
	return func(c *config) {
		c.progress = fn
	}
}

// WithCompression sets the compression for newly written blobs (default: zstd).
func WithCompression(compression Compression) Option {
	return func(c *config) {
		c.compression = compression
	}
}

// WithMaxChunkSize caps the bytes moved by a single read or write of a blob
// payload. Values <= 0 use the 2^31-1 byte default.
func WithMaxChunkSize(n int) Option {
	return func(c *config) {
		c.maxChunkSize = n
	}
}

// WithMaxBlobSize rejects blobs whose payload exceeds limit bytes when loading.
// Set limit to 0 to disable the limit.
func WithMaxBlobSize(limit uint64) Option {
	return func(c *config) {
		c.maxBlobSize = limit
	}
}

// WithMaxDecoderMemory limits the maximum memory used by the zstd decoder.
// Set limit to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(c *config) {
		c.maxDecoderMemory = limit
	}
}

// WithDirPerm sets the permissions used when creating the cache directory.
func WithDirPerm(mode os.FileMode) Option {
	return func(c *config) {
		c.dirPerm = mode
	}
}

// CallOption configures a single memoized call.
type CallOption[R any] func(*callConfig[R])

type callConfig[R any] struct {
	codec codec.Codec[R]
}

// WithCodec sets how results are encoded (default: codec.Gob).
// Every call for a given directory must use the same codec.
func WithCodec[R any](c codec.Codec[R]) CallOption[R] {
	return func(cfg *callConfig[R]) {
		cfg.codec = c
	}
}
