package codec

import "encoding/json"

// JSONCodec is the default codec. Struct fields encode in declaration order,
// so equal values produce equal bytes.
type JSONCodec[V any] struct{}

func (JSONCodec[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSONCodec[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
