// Package chunk frames a serialized payload so that no single read or write
// moves more than a fixed number of bytes.
//
// A frame is a 12-byte header followed by the payload:
//
//	magic "MCF1" | uint64 big-endian payload size | payload
//
// Some I/O and serialization primitives reject single operations larger than
// 2^31-1 bytes. Write splits the payload into pieces of at most the ceiling
// and Read reassembles the declared size in ceiling-sized increments. Small
// payloads move in one piece; an empty payload is a bare header.
package chunk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/meigma/memo/internal/blobtype"
	"github.com/meigma/memo/internal/sizing"
)

// MaxChunkSize is the largest number of bytes moved by a single Read or Write
// call on the underlying stream.
const MaxChunkSize = 1<<31 - 1

// HeaderSize is the size in bytes of the frame header.
const HeaderSize = 12

// maxPrealloc caps the buffer reserved up front from a declared size, so a
// corrupt header cannot force a huge allocation before any payload is read.
const maxPrealloc = 4 << 20

// minGrow is the smallest buffer extension made while reading a payload.
const minGrow = 64 << 10

// Magic identifies a frame. It doubles as the on-disk signature of an
// uncompressed blob.
var Magic = [4]byte{'M', 'C', 'F', '1'}

// Write frames payload onto w, issuing writes of at most maxChunk bytes.
// maxChunk <= 0 selects MaxChunkSize.
func Write(w io.Writer, payload []byte, maxChunk int) error {
	if maxChunk <= 0 || maxChunk > MaxChunkSize {
		maxChunk = MaxChunkSize
	}

	var header [HeaderSize]byte
	copy(header[:4], Magic[:])
	binary.BigEndian.PutUint64(header[4:], uint64(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}

	off := 0
	for range sizing.Chunks(uint64(len(payload)), uint64(maxChunk)) {
		end := len(payload)
		if end-off > maxChunk {
			end = off + maxChunk
		}
		if _, err := w.Write(payload[off:end]); err != nil {
			return err
		}
		off = end
	}
	return nil
}

// Read reads one frame from r and returns its payload, issuing reads of at
// most maxChunk bytes. maxChunk <= 0 selects MaxChunkSize. When limit is
// non-zero, a declared size above limit fails with ErrSizeOverflow.
//
// A missing or foreign header, or a payload shorter than declared, fails
// with ErrCorruptData.
func Read(r io.Reader, maxChunk int, limit uint64) ([]byte, error) {
	if maxChunk <= 0 || maxChunk > MaxChunkSize {
		maxChunk = MaxChunkSize
	}

	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, corrupt("read frame header", err)
	}
	if [4]byte(header[:4]) != Magic {
		return nil, fmt.Errorf("%w: bad frame magic %q", blobtype.ErrCorruptData, header[:4])
	}

	declared := binary.BigEndian.Uint64(header[4:])
	if limit > 0 && declared > limit {
		return nil, fmt.Errorf("%w: frame declares %d bytes, limit %d", blobtype.ErrSizeOverflow, declared, limit)
	}
	total, err := sizing.ToInt(declared, blobtype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}

	// Capacity follows the bytes actually received, not the declared size.
	payload := make([]byte, 0, min(total, maxPrealloc))
	for remaining := total; remaining > 0; {
		if len(payload) == cap(payload) {
			payload = slices.Grow(payload, min(remaining, max(cap(payload), minGrow)))
		}
		n := min(remaining, maxChunk, cap(payload)-len(payload))
		start := len(payload)
		payload = payload[:start+n]
		if _, err := io.ReadFull(r, payload[start:]); err != nil {
			return nil, corrupt("read frame payload", err)
		}
		remaining -= n
	}
	return payload, nil
}

// corrupt maps short reads to ErrCorruptData and passes other errors through.
func corrupt(op string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s: %w", blobtype.ErrCorruptData, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
