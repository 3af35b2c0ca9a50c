package frame

import (
	"encoding/binary"
	"fmt"
)

// Cursor is a resumable frame decoder. Partial transport reads are appended
// with Feed; Next yields complete frames as they become available. A single
// frame may arrive across any number of reads, and a single read may carry
// any number of frames.
type Cursor struct {
	buf []byte
}

func NewCursor() *Cursor {
	return &Cursor{}
}

// Feed appends raw transport bytes to the cursor.
func (c *Cursor) Feed(b []byte) {
	c.buf = append(c.buf, b...)
}

// Buffered reports how many undecoded bytes the cursor holds.
func (c *Cursor) Buffered() int {
	return len(c.buf)
}

// Reset discards all buffered bytes. Used after desync recovery: whatever the
// cursor holds is unaligned garbage once a bad magic has been seen.
func (c *Cursor) Reset() {
	c.buf = c.buf[:0]
}

// Next decodes the next complete frame. It returns (frame, true, nil) on
// success, (zero, false, nil) when the buffer holds only a partial frame and
// more bytes are needed, ErrBadMagic when the leading bytes do not start a
// frame (stream desync), and ErrOversizeBody when the declared length is
// implausible (also desync: a misaligned read of the length field).
func (c *Cursor) Next() (Frame, bool, error) {
	if len(c.buf) < HeaderSize {
		return Frame{}, false, nil
	}
	if m := binary.LittleEndian.Uint16(c.buf[0:2]); m != Magic {
		return Frame{}, false, fmt.Errorf("%w: 0x%04x", ErrBadMagic, m)
	}

	bodyLen := binary.LittleEndian.Uint32(c.buf[8:12])
	if bodyLen > MaxBodySize {
		return Frame{}, false, fmt.Errorf("%w: declared %d bytes", ErrOversizeBody, bodyLen)
	}

	total := HeaderSize + int(bodyLen) + TrailerSize
	if len(c.buf) < total {
		return Frame{}, false, nil
	}

	declared := binary.LittleEndian.Uint32(c.buf[HeaderSize+int(bodyLen):])
	if declared != 0 && declared != Checksum(c.buf[2:HeaderSize+int(bodyLen)]) {
		// Treat a checksum mismatch like desync: the length field we
		// trusted may itself be corrupt.
		return Frame{}, false, fmt.Errorf("%w: checksum mismatch", ErrBadMagic)
	}

	f := Frame{
		Command:  binary.LittleEndian.Uint16(c.buf[2:4]),
		Sequence: binary.LittleEndian.Uint32(c.buf[4:8]),
		Body:     append([]byte(nil), c.buf[HeaderSize:HeaderSize+int(bodyLen)]...),
	}
	c.buf = c.buf[total:]
	return f, true, nil
}
