package codec

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
)

// Proto encodes protobuf messages in wire format. New must return an empty
// message to decode into.
type Proto[V proto.Message] struct {
	New func() V
}

// Encode implements Codec.
func (Proto[V]) Encode(v V) ([]byte, error) {
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("proto encode: %w", err)
	}
	return data, nil
}

// Decode implements Codec.
func (p Proto[V]) Decode(data []byte) (V, error) {
	var zero V
	if p.New == nil {
		return zero, errors.New("proto decode: New is nil")
	}
	v := p.New()
	if err := proto.Unmarshal(data, v); err != nil {
		return zero, fmt.Errorf("proto decode: %w", err)
	}
	return v, nil
}
