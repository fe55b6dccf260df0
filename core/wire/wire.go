// Package wire implements the binary envelope shared by every protocol
// message: a big-endian type tag followed by a message-specific body,
// plus the length-prefixed string forms used inside those bodies.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// TypeTagSize is the width of the message type tag in bytes.
const TypeTagSize = 4

var (
	// ErrShortData reports a payload too small to carry a type tag.
	ErrShortData = errors.New("wire: data shorter than type tag")
	// ErrVarInt reports a malformed compact-size length prefix.
	ErrVarInt = errors.New("wire: invalid varint")
)

// SplitTypeTag separates the big-endian type tag from the message body.
func SplitTypeTag(data []byte) (uint32, []byte, error) {
	if len(data) < TypeTagSize {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrShortData, len(data))
	}
	return binary.BigEndian.Uint32(data[:TypeTagSize]), data[TypeTagSize:], nil
}

// PackTypeTag prepends the big-endian type tag to a message body.
func PackTypeTag(tag uint32, body []byte) []byte {
	out := make([]byte, TypeTagSize+len(body))
	binary.BigEndian.PutUint32(out[:TypeTagSize], tag)
	copy(out[TypeTagSize:], body)
	return out
}

// PutVarInt appends n in Bitcoin compact-size encoding.
func PutVarInt(buf *bytes.Buffer, n uint64) {
	switch {
	case n < 0xfd:
		buf.WriteByte(byte(n))
	case n <= 0xffff:
		buf.WriteByte(0xfd)
		var tmp [2]byte
		binary.LittleEndian.PutUint16(tmp[:], uint16(n))
		buf.Write(tmp[:])
	case n <= 0xffffffff:
		buf.WriteByte(0xfe)
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(n))
		buf.Write(tmp[:])
	default:
		buf.WriteByte(0xff)
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], n)
		buf.Write(tmp[:])
	}
}

// VarInt decodes a compact-size integer from the front of data and
// returns the value together with the number of bytes consumed.
func VarInt(data []byte) (uint64, int, error) {
	if len(data) == 0 {
		return 0, 0, ErrVarInt
	}
	switch prefix := data[0]; prefix {
	case 0xfd:
		if len(data) < 3 {
			return 0, 0, ErrVarInt
		}
		return uint64(binary.LittleEndian.Uint16(data[1:3])), 3, nil
	case 0xfe:
		if len(data) < 5 {
			return 0, 0, ErrVarInt
		}
		return uint64(binary.LittleEndian.Uint32(data[1:5])), 5, nil
	case 0xff:
		if len(data) < 9 {
			return 0, 0, ErrVarInt
		}
		return binary.LittleEndian.Uint64(data[1:9]), 9, nil
	default:
		return uint64(prefix), 1, nil
	}
}

// VarString appends text with a compact-size length prefix.
func VarString(buf *bytes.Buffer, text string) {
	PutVarInt(buf, uint64(len(text)))
	buf.WriteString(text)
}

// PascalString appends text as a single length byte followed by at most
// 255 bytes of content. Longer text is truncated.
func PascalString(buf *bytes.Buffer, text string) {
	b := []byte(text)
	if len(b) > 0xff {
		b = b[:0xff]
	}
	buf.WriteByte(byte(len(b)))
	buf.Write(b)
}
