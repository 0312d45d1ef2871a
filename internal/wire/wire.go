package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version    byte = 1
	kindEntry  byte = 1
	headerSize      = 4 + 1 + 1 + 8 + 4
)

var (
	ErrCorrupt = errors.New("depcache: corrupt local entry")
	magic4     = [...]byte{'D', 'E', 'P', 'C'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode frames a local-tier entry:
//
//	magic(4) | ver(1) | kind(1) | gen(u64 be) | vlen(u32 be) | payload(vlen)
func Encode(gen uint64, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(headerSize + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], gen)
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// Decode returns the generation and a payload slice aliasing b.
func Decode(b []byte) (gen uint64, payload []byte, err error) {
	if len(b) < headerSize || !hasMagic(b) || b[4] != version || b[5] != kindEntry {
		return 0, nil, ErrCorrupt
	}

	off := 6
	gen = binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // exact length; trailing bytes are corruption
		return 0, nil, ErrCorrupt
	}

	return gen, b[off : off+vlen], nil
}
