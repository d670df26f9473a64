package queue

import "encoding/json"

// Codec converts payloads to and from the bytes the store persists.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// JSONCodec is the default Codec.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(v T) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec[T]) Decode(data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

// CodecFuncs adapts an encode/decode function pair to a Codec.
type CodecFuncs[T any] struct {
	EncodeFunc func(T) ([]byte, error)
	DecodeFunc func([]byte) (T, error)
}

func (c CodecFuncs[T]) Encode(v T) ([]byte, error) { return c.EncodeFunc(v) }

func (c CodecFuncs[T]) Decode(data []byte) (T, error) { return c.DecodeFunc(data) }

// RawCodec passes payload bytes through untouched. It lets tooling operate on
// a queue without knowing its payload type.
type RawCodec struct{}

func (RawCodec) Encode(v []byte) ([]byte, error) { return v, nil }

func (RawCodec) Decode(data []byte) ([]byte, error) { return data, nil }
