// Package codec converts memoized results to and from bytes.
//
// A Codec only has to produce an opaque byte sequence for a value and read it
// back; framing, compression, and storage are handled by the cache.
package codec

// Codec encodes and decodes values of type V.
// Implementations must be safe for concurrent use.
type Codec[V any] interface {
	Encode(v V) ([]byte, error)
	Decode(data []byte) (V, error)
}
