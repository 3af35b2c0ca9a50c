package frame

// Decode parses exactly one frame from a complete buffer. Unlike the Cursor
// it has no more bytes to wait for, so a partial frame is ErrTruncated.
// Trailing bytes after the frame are ignored.
func Decode(b []byte) (Frame, error) {
	c := Cursor{buf: b}
	f, ok, err := c.Next()
	if err != nil {
		return Frame{}, err
	}
	if !ok {
		return Frame{}, ErrTruncated
	}
	return f, nil
}
