package cube

// Compile encodes a field list into a CubeSize-byte blob per spec §4.1.
// fields must begin with def's leading positionals and end with def's
// trailing positionals, in order; everything between them is the payload.
func Compile(fields []Field, def FieldDef) ([]byte, error) {
	front, back := def.PositionalFront, def.PositionalBack
	if len(fields) < len(front)+len(back) {
		return nil, newErr(CodeFieldStructure, "%s: field list shorter than positional layout", def.Name)
	}

	for i, pf := range front {
		f := fields[i]
		if f.Type != pf.Type {
			return nil, newErr(CodeFieldStructure, "%s: expected leading positional %d at index %d, got %d", def.Name, pf.Type, i, f.Type)
		}
		if len(f.Value) != pf.Length {
			return nil, newErr(CodeFieldSize, "%s: positional %d wants %d bytes, got %d", def.Name, pf.Type, pf.Length, len(f.Value))
		}
	}
	backStart := len(fields) - len(back)
	for i, pf := range back {
		f := fields[backStart+i]
		if f.Type != pf.Type {
			return nil, newErr(CodeFieldStructure, "%s: expected trailing positional %d at index %d, got %d", def.Name, pf.Type, backStart+i, f.Type)
		}
		if len(f.Value) != pf.Length {
			return nil, newErr(CodeFieldSize, "%s: positional %d wants %d bytes, got %d", def.Name, pf.Type, pf.Length, len(f.Value))
		}
	}
	middle := fields[len(front):backStart]

	blob := make([]byte, CubeSize)
	offset := 0
	for i, pf := range front {
		copy(blob[offset:offset+pf.Length], fields[i].Value)
		offset += pf.Length
	}
	F := offset
	T := CubeSize - def.backLen()
	if T < F {
		return nil, newErr(CodeFieldSize, "%s: positional layout does not fit in %d bytes", def.Name, CubeSize)
	}

	payload, err := encodePayload(middle, def, T-F)
	if err != nil {
		return nil, err
	}
	copy(blob[F:T], payload)

	trailingOffset := T
	for i, pf := range back {
		f := fields[backStart+i]
		copy(blob[trailingOffset:trailingOffset+pf.Length], f.Value)
		trailingOffset += pf.Length
	}

	return blob, nil
}

// encodePayload writes middle (TLV or raw-content, per def) into a slice
// no longer than budget bytes, appending a Stop marker when room permits.
func encodePayload(middle []Field, def FieldDef, budget int) ([]byte, error) {
	if !def.TLVEnabled {
		if len(middle) != 1 || middle[0].Type != def.RawContentType {
			return nil, newErr(CodeFieldStructure, "%s: raw-content payload must be exactly one %d field", def.Name, def.RawContentType)
		}
		if len(middle[0].Value) > budget {
			return nil, newErr(CodeFieldSize, "%s: raw content %d bytes exceeds budget %d", def.Name, len(middle[0].Value), budget)
		}
		out := make([]byte, budget)
		copy(out, middle[0].Value)
		return out, nil
	}

	out := make([]byte, 0, budget)
	for _, f := range middle {
		if f.Type == def.Remainder {
			continue // virtual; never re-written (spec §3 invariants)
		}
		enc, err := encodeField(f, def)
		if err != nil {
			return nil, err
		}
		if len(out)+len(enc) > budget {
			return nil, newErr(CodeFieldSize, "%s: payload overflows available space (%d > %d)", def.Name, len(out)+len(enc), budget)
		}
		out = append(out, enc...)
	}
	if len(out) < budget {
		out = append(out, byte(def.Stop))
	}
	if len(out) > budget {
		return nil, newErr(CodeFieldSize, "%s: payload overflows available space", def.Name)
	}
	padded := make([]byte, budget)
	copy(padded, out)
	return padded, nil
}

// encodeField writes one TLV field's header+value per spec §4.1 step 4.
func encodeField(f Field, def FieldDef) ([]byte, error) {
	if n, ok := def.isFixed(f.Type); ok {
		if len(f.Value) != n {
			return nil, newErr(CodeFieldSize, "field %d wants %d bytes, got %d", f.Type, n, len(f.Value))
		}
		out := make([]byte, 0, 1+n)
		out = append(out, byte(f.Type))
		out = append(out, f.Value...)
		return out, nil
	}
	if len(f.Value) > MaxTLVLength {
		return nil, newErr(CodeFieldSize, "field %d value %d bytes exceeds max TLV length %d", f.Type, len(f.Value), MaxTLVLength)
	}
	length := len(f.Value)
	header0 := byte(f.Type) | byte(length>>8)
	header1 := byte(length & 0xFF)
	out := make([]byte, 0, 2+length)
	out = append(out, header0, header1)
	out = append(out, f.Value...)
	return out, nil
}

// Decompile parses a CubeSize-byte blob into a field list per spec §4.1.
func Decompile(blob []byte, def FieldDef) ([]Field, error) {
	if len(blob) != CubeSize {
		return nil, newErr(CodeBinaryLength, "blob is %d bytes, want %d", len(blob), CubeSize)
	}
	cur := newCursor(blob)

	fields := make([]Field, 0, len(def.PositionalFront)+len(def.PositionalBack)+8)
	for _, pf := range def.PositionalFront {
		v, err := cur.readExact(pf.Length)
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Type: pf.Type, Value: append([]byte(nil), v...)})
	}

	T := CubeSize - def.backLen()
	if T < cur.pos {
		return nil, newErr(CodeFieldSize, "%s: positional layout does not fit in %d bytes", def.Name, CubeSize)
	}

	payload, err := decodePayload(cur, def, T)
	if err != nil {
		return nil, err
	}
	fields = append(fields, payload...)

	cur.pos = T
	for _, pf := range def.PositionalBack {
		v, err := cur.readExact(pf.Length)
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Type: pf.Type, Value: append([]byte(nil), v...)})
	}

	return mergeAdjacentVariable(fields, def), nil
}

// decodePayload reads the payload region [cur.pos, T) per spec §4.1 step 2.
func decodePayload(cur *cursor, def FieldDef, T int) ([]Field, error) {
	if !def.TLVEnabled {
		v, err := cur.readExact(T - cur.pos)
		if err != nil {
			return nil, err
		}
		return []Field{{Type: def.RawContentType, Value: append([]byte(nil), v...)}}, nil
	}

	var fields []Field
	for cur.pos < T {
		ftype, length, err := cur.readTLVHeader(def)
		if err != nil {
			return nil, err
		}
		if ftype == def.Stop {
			break
		}
		v, err := cur.readExact(length)
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Type: ftype, Value: append([]byte(nil), v...)})
	}

	if cur.pos < T {
		remainder := append([]byte(nil), cur.b[cur.pos:T]...)
		fields = append(fields, Field{Type: def.Remainder, Value: remainder})
		cur.pos = T
	}
	return fields, nil
}

// EncodeFields TLV-encodes fields with no positionals, no Stop marker,
// and no trailing padding — the plain byte form a chunk-crypto pipeline
// encrypts into a single ENCRYPTED field's value and later decrypts back
// with DecodeFields. It applies the same per-field encoder
// (encodeField) that `encodePayload` uses, for content bound for
// encryption rather than directly into a Cube blob.
func EncodeFields(fields []Field, def FieldDef) ([]byte, error) {
	var out []byte
	for _, f := range fields {
		if f.Type == def.Remainder {
			continue
		}
		enc, err := encodeField(f, def)
		if err != nil {
			return nil, err
		}
		out = append(out, enc...)
	}
	return out, nil
}

// DecodeFields parses raw bytes produced by EncodeFields back into a
// field list, merging adjacent same-type variable-length fields as
// Decompile does.
func DecodeFields(raw []byte, def FieldDef) ([]Field, error) {
	cur := newCursor(raw)
	var fields []Field
	for cur.pos < len(raw) {
		ftype, length, err := cur.readTLVHeader(def)
		if err != nil {
			return nil, err
		}
		v, err := cur.readExact(length)
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Type: ftype, Value: append([]byte(nil), v...)})
	}
	return mergeAdjacentVariable(fields, def), nil
}

// mergeAdjacentVariable merges every run of adjacent same-type
// variable-length fields into one (spec §4.1 step 5). A field of a
// different type interposed between two same-type fields — most notably
// an explicit PADDING field — inhibits the merge simply by breaking
// adjacency; no special case is required.
func mergeAdjacentVariable(fields []Field, def FieldDef) []Field {
	merged := make([]Field, 0, len(fields))
	for _, f := range fields {
		if n := len(merged); n > 0 {
			last := &merged[n-1]
			if last.Type == f.Type {
				if _, fixed := def.isFixed(f.Type); !fixed && f.Type != def.Remainder {
					last.Value = append(last.Value, f.Value...)
					continue
				}
			}
		}
		merged = append(merged, f.Copy())
	}
	return merged
}
