package cube

// cursor is a forward-only binary reader over a fixed blob, adapted from
// the teacher's consensus.cursor (clients/go/consensus/wire.go): the same
// readExact-based shape, with CompactSize reads replaced by this format's
// fixed 2-byte TLV header.
type cursor struct {
	b   []byte
	pos int
}

func newCursor(b []byte) *cursor {
	return &cursor{b: b, pos: 0}
}

func (c *cursor) remaining() int {
	if c.pos >= len(c.b) {
		return 0
	}
	return len(c.b) - c.pos
}

func (c *cursor) readExact(n int) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, newErr(CodeBinaryLength, "truncated read: want %d, have %d", n, c.remaining())
	}
	start := c.pos
	c.pos += n
	return c.b[start:c.pos], nil
}

func (c *cursor) readU8() (byte, error) {
	b, err := c.readExact(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// readTLVHeader reads one TLV header byte and, if the type is
// variable-length under def, a second length byte, returning the
// decoded field type and its value length — the fixed length from def
// for a fixed-length type, the decoded 10-bit length otherwise.
func (c *cursor) readTLVHeader(def FieldDef) (FieldType, int, error) {
	header0, err := c.readU8()
	if err != nil {
		return 0, 0, err
	}
	ftype := FieldType(header0 & tlvTypeMask)
	if n, ok := def.isFixed(ftype); ok {
		return ftype, n, nil
	}
	header1, err := c.readU8()
	if err != nil {
		return 0, 0, err
	}
	length := int(header0&tlvLengthHighMask)<<8 | int(header1)
	return ftype, length, nil
}
