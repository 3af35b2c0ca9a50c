// Package frame implements the recorder wire framing: a fixed little-endian
// header (magic, command, sequence, body length), the body, and a trailing
// checksum word. Encoding and decoding are pure; transport I/O lives elsewhere.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// Magic is the constant leading every frame on the wire.
	Magic uint16 = 0x5347

	// HeaderSize is magic + command + sequence + body length.
	HeaderSize = 2 + 2 + 4 + 4

	// TrailerSize is the checksum word following the body.
	TrailerSize = 4

	// MaxBodySize bounds a single frame body. The transfer engine chunks
	// anything larger; a decoded length above this is treated as stream
	// desync rather than a real frame.
	MaxBodySize = 1 << 20
)

var (
	ErrBadMagic     = errors.New("frame: bad magic")
	ErrTruncated    = errors.New("frame: truncated stream")
	ErrOversizeBody = errors.New("frame: oversize body")
)

// Frame is one decoded protocol message. Immutable once decoded.
type Frame struct {
	Command  uint16
	Sequence uint32
	Body     []byte
}

// Encode builds the wire bytes for one frame. The checksum word is always
// populated; devices that do not validate it ignore it.
func Encode(command uint16, sequence uint32, body []byte) ([]byte, error) {
	if len(body) > MaxBodySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrOversizeBody, len(body))
	}

	out := make([]byte, HeaderSize+len(body)+TrailerSize)
	binary.LittleEndian.PutUint16(out[0:2], Magic)
	binary.LittleEndian.PutUint16(out[2:4], command)
	binary.LittleEndian.PutUint32(out[4:8], sequence)
	binary.LittleEndian.PutUint32(out[8:12], uint32(len(body)))
	copy(out[HeaderSize:], body)
	binary.LittleEndian.PutUint32(out[HeaderSize+len(body):], Checksum(out[2:HeaderSize+len(body)]))
	return out, nil
}

// Checksum XOR-folds the given bytes into a 32-bit word, byte position
// rotating through the four lanes. Covers the header after the magic plus the
// body. Readers accept an all-zero field for firmware that ships it blank.
func Checksum(b []byte) uint32 {
	var sum uint32
	for i, c := range b {
		sum ^= uint32(c) << (8 * (i % 4))
	}
	return sum
}
