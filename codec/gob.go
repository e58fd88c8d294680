package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Gob encodes values with encoding/gob. It handles any exported Go type,
// including nested structs, maps, and slices, and is the default codec.
//
// Interface-typed fields require gob.Register for their concrete types.
type Gob[V any] struct{}

// Encode implements Codec.
func (Gob[V]) Encode(v V) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode implements Codec.
func (Gob[V]) Decode(data []byte) (V, error) {
	var v V
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		return v, fmt.Errorf("gob decode: %w", err)
	}
	return v, nil
}
