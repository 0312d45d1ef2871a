package codec

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack serializes values with vmihailenco/msgpack/v5. The zero value is
// ready to use.
//
// Field names follow `json` tags so a strategy can switch between JSON and
// msgpack without retagging, and map keys are sorted so equal values encode
// to equal sorted-set members.
type Msgpack[V any] struct{}

const msgpackTag = "json"

func (Msgpack[V]) Encode(v V) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)

	enc.Reset(&buf)
	enc.SetCustomStructTag(msgpackTag)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (Msgpack[V]) Decode(b []byte) (V, error) {
	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)

	dec.Reset(bytes.NewReader(b))
	dec.SetCustomStructTag(msgpackTag)
	var v V
	err := dec.Decode(&v)
	return v, err
}
