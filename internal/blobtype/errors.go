// Package blobtype holds the types shared by the memo storage layers.
package blobtype

import "errors"

// Sentinel errors.
var (
	// ErrNotFound is returned when an index or blob file does not exist.
	ErrNotFound = errors.New("memo: not found")

	// ErrCorruptData is returned when a blob cannot be decompressed or decoded.
	ErrCorruptData = errors.New("memo: corrupt data")

	// ErrIO is returned when a directory or file cannot be created or written.
	ErrIO = errors.New("memo: io failure")

	// ErrSizeOverflow is returned when a declared size exceeds supported limits.
	ErrSizeOverflow = errors.New("memo: size overflow")

	// ErrInvalidKey is returned when call arguments cannot form a cache key.
	ErrInvalidKey = errors.New("memo: invalid cache key")
)
