// Package testutil holds helpers shared by the cache's tests.
package testutil

import (
	"bytes"
	"math/rand/v2"
	"os"
	"testing"
)

// OpRecorder is an in-memory reader and writer that records the size of
// every Read or Write issued against it.
type OpRecorder struct {
	buf bytes.Buffer
	ops []int
}

// NewOpRecorder returns a recorder whose reads are served from data.
func NewOpRecorder(data []byte) *OpRecorder {
	r := &OpRecorder{}
	r.buf.Write(data)
	return r
}

// Write implements io.Writer.
func (r *OpRecorder) Write(p []byte) (int, error) {
	r.ops = append(r.ops, len(p))
	return r.buf.Write(p)
}

// Read implements io.Reader.
func (r *OpRecorder) Read(p []byte) (int, error) {
	r.ops = append(r.ops, len(p))
	return r.buf.Read(p)
}

// Ops returns the recorded operation sizes and clears them.
func (r *OpRecorder) Ops() []int {
	ops := r.ops
	r.ops = nil
	return ops
}

// Bytes returns the unread contents.
func (r *OpRecorder) Bytes() []byte {
	return r.buf.Bytes()
}

// Payload returns n deterministic pseudo-random bytes for seed.
func Payload(n int, seed uint64) []byte {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // reproducible test data
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(rng.Uint32())
	}
	return out
}

// TruncateHalf cuts the file at path to half its size.
func TruncateHalf(tb testing.TB, path string) {
	tb.Helper()
	info, err := os.Stat(path)
	if err != nil {
		tb.Fatalf("stat %s: %v", path, err)
	}
	if err := os.Truncate(path, info.Size()/2); err != nil {
		tb.Fatalf("truncate %s: %v", path, err)
	}
}

// Overwrite replaces the contents of path with data.
func Overwrite(tb testing.TB, path string, data []byte) {
	tb.Helper()
	if err := os.WriteFile(path, data, 0o600); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
}
