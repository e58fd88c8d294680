package blobtype

// Compression identifies the compression algorithm applied to a blob file.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionGzip
)

// String returns the human-readable name of the compression algorithm.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionGzip:
		return "gzip"
	default:
		return "unknown"
	}
}

// Valid reports whether c is a known compression algorithm.
func (c Compression) Valid() bool {
	return c <= CompressionGzip
}
