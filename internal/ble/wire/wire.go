// Package wire implements the vega family's protobuf-style binary
// protocol: varint primitives, the fragmented BLE packet wrapper and its
// reassembler, command/response envelopes, and the flash-page parser used
// in batch storage mode.
//
// The framing is only protobuf-shaped. Payloads carry raw codec bytes and
// arrive through a lossy radio, so decoding must tolerate truncated and
// malformed fields instead of rejecting whole messages the way a
// generated unmarshaler would. Every length field is bounds-checked
// before it is consumed; running out of bytes stops the current
// sub-message and never panics.
package wire

import (
	"encoding/binary"
	"errors"
)

// Protobuf wire types used by the protocol.
const (
	wireVarint   = 0
	wireFixed64  = 1
	wireLenDelim = 2
	wireFixed32  = 5
)

var errInvalidVarint = errors.New("wire: invalid varint")

// AppendVarint appends v to buf as a base-128 varint.
func AppendVarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// AppendField appends a length-delimited field with the given number.
func AppendField(buf []byte, fieldNum int, payload []byte) []byte {
	buf = AppendVarint(buf, uint64(fieldNum)<<3|wireLenDelim)
	buf = AppendVarint(buf, uint64(len(payload)))
	return append(buf, payload...)
}

// AppendVarintField appends a varint field with the given number.
func AppendVarintField(buf []byte, fieldNum int, v uint64) []byte {
	buf = AppendVarint(buf, uint64(fieldNum)<<3|wireVarint)
	return AppendVarint(buf, v)
}

// readVarint reads a varint from data, returning value and bytes consumed.
func readVarint(data []byte) (uint64, int, error) {
	val, n := binary.Uvarint(data)
	if n <= 0 {
		return 0, 0, errInvalidVarint
	}
	return val, n, nil
}

// field is one decoded field of a message. Exactly one of val (wire type
// 0) and payload (wire type 2) is meaningful; payload aliases the input
// buffer and must be copied if retained.
type field struct {
	num     int
	wt      int
	val     uint64
	payload []byte
}

// scanFields walks data field by field, invoking fn for each one. Fields
// with unknown wire types are skipped. Scanning stops without error at
// the first malformed or truncated field: everything decoded up to that
// point is still delivered, which is the behavior the lossy radio path
// needs.
func scanFields(data []byte, fn func(f field) bool) {
	for len(data) > 0 {
		tag, n, err := readVarint(data)
		if err != nil {
			return
		}
		data = data[n:]
		f := field{num: int(tag >> 3), wt: int(tag & 0x07)}

		switch f.wt {
		case wireVarint:
			val, n, err := readVarint(data)
			if err != nil {
				return
			}
			data = data[n:]
			f.val = val
		case wireLenDelim:
			length, n, err := readVarint(data)
			if err != nil {
				return
			}
			data = data[n:]
			if uint64(len(data)) < length {
				return
			}
			f.payload = data[:length]
			data = data[length:]
		case wireFixed64:
			if len(data) < 8 {
				return
			}
			f.val = binary.LittleEndian.Uint64(data)
			data = data[8:]
		case wireFixed32:
			if len(data) < 4 {
				return
			}
			f.val = uint64(binary.LittleEndian.Uint32(data))
			data = data[4:]
		default:
			// Unknown wire type; nothing after it can be framed.
			return
		}

		if !fn(f) {
			return
		}
	}
}
