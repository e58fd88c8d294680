package codec

import (
	"encoding/json"
	"fmt"
)

// JSON encodes values with encoding/json. Blobs stay human-inspectable after
// decompression, at the cost of JSON's type fidelity (e.g. numbers in
// interface values decode as float64).
type JSON[V any] struct{}

// Encode implements Codec.
func (JSON[V]) Encode(v V) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	return data, nil
}

// Decode implements Codec.
func (JSON[V]) Decode(data []byte) (V, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("json decode: %w", err)
	}
	return v, nil
}
