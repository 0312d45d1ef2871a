// Package codec turns cached values into bytes and back.
//
// Sorted-set members are compared by their encoded bytes, so a codec used
// with ScoreSet or ScoreList must encode equal values identically (JSON and
// msgpack on structs do; use NewCBOR(true) for CBOR).
package codec

import "fmt"

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// ByName returns the general-purpose codec registered under name:
// "json" (or ""), "msgpack", "cbor" (deterministic).
func ByName[V any](name string) (Codec[V], error) {
	switch name {
	case "", "json":
		return JSONCodec[V]{}, nil
	case "msgpack":
		return Msgpack[V]{}, nil
	case "cbor":
		return NewCBOR[V](true)
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}
