package codec

import "google.golang.org/protobuf/proto"

// Protobuf encodes generated messages. Marshaling is deterministic so
// messages can be sorted-set members.
type Protobuf[T proto.Message] struct {
	new func() T // constructor for a concrete message (e.g., func() *mypb.User { return &mypb.User{} })
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

var marshal = proto.MarshalOptions{Deterministic: true}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return marshal.Marshal(v)
}
func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, err
}
