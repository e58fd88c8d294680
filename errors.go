package memo

import "github.com/meigma/memo/internal/blobtype"

// Errors re-exported from the storage layers.
var (
	// ErrNotFound is returned when an index or blob file does not exist.
	// Call treats it as a cache miss.
	ErrNotFound = blobtype.ErrNotFound

	// ErrCorruptData is returned when a stored blob cannot be decompressed or
	// decoded. Corrupt entries are never recomputed automatically.
	ErrCorruptData = blobtype.ErrCorruptData

	// ErrIO is returned when a directory or file cannot be created or written.
	ErrIO = blobtype.ErrIO

	// ErrSizeOverflow is returned when a blob declares more bytes than allowed.
	ErrSizeOverflow = blobtype.ErrSizeOverflow

	// ErrInvalidKey is returned when call arguments cannot be canonicalized.
	ErrInvalidKey = blobtype.ErrInvalidKey
)
