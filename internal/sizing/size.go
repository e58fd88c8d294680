// Package sizing provides safe size arithmetic for blob frames.
package sizing

import (
	"io"
	"math"
)

// ToInt converts a uint64 to int, returning overflowErr if it doesn't fit.
func ToInt(size uint64, overflowErr error) (int, error) {
	if size > uint64(math.MaxInt) {
		return 0, overflowErr
	}
	return int(size), nil
}

// Chunks returns the number of pieces needed to move total bytes when no
// single piece may exceed maxChunk bytes. A zero total needs zero pieces.
func Chunks(total, maxChunk uint64) uint64 {
	if total == 0 || maxChunk == 0 {
		return 0
	}
	n := total / maxChunk
	if total%maxChunk != 0 {
		n++
	}
	return n
}

// ReadAllWithLimit reads up to maxSize bytes from r.
// Returns overflowErr if more than maxSize bytes are available.
func ReadAllWithLimit(r io.Reader, maxSize uint64, overflowErr error) ([]byte, error) {
	if maxSize > uint64(math.MaxInt-1) {
		return nil, overflowErr
	}
	limit := int64(maxSize) + 1 //nolint:gosec // checked above
	lr := &io.LimitedReader{R: r, N: limit}
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) > maxSize { //nolint:gosec // len is always non-negative
		return nil, overflowErr
	}
	return data, nil
}
