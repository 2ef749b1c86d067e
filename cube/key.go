package cube

// positionalSpan locates the offset and length of a positional field
// within a compiled blob, given its FieldDef.
type positionalSpan struct {
	Offset int
	Length int
}

// positionalOffsets computes byte offsets for every positional field in
// def against a CubeSize-byte blob.
func positionalOffsets(def FieldDef) map[FieldType]positionalSpan {
	out := make(map[FieldType]positionalSpan, len(def.PositionalFront)+len(def.PositionalBack))
	offset := 0
	for _, pf := range def.PositionalFront {
		out[pf.Type] = positionalSpan{Offset: offset, Length: pf.Length}
		offset += pf.Length
	}
	offset = CubeSize - def.backLen()
	for _, pf := range def.PositionalBack {
		out[pf.Type] = positionalSpan{Offset: offset, Length: pf.Length}
		offset += pf.Length
	}
	return out
}

// DeriveKey computes a Cube's 32-byte key from its compiled blob per the
// type-dependent rule of spec §3/§6:
//
//   - FROZEN*: SHA3-256 of the whole blob.
//   - PIC*: SHA3-256 of the blob excluding the trailing DATE+NONCE suffix
//     (key stable across re-sculpting); NOTIFY bytes, when present, stay
//     inside the hashed prefix (spec §9 open question, "safe
//     interpretation" adopted).
//   - MUC*/PMUC*: the embedded PUBLIC_KEY field, verbatim.
func DeriveKey(t Type, blob []byte) ([HashSize]byte, error) {
	if len(blob) != CubeSize {
		return [HashSize]byte{}, newErr(CodeBinaryLength, "blob is %d bytes, want %d", len(blob), CubeSize)
	}
	def := DefForType(t)
	switch {
	case t.IsSigned():
		span, ok := positionalOffsets(def)[FieldPUBLIC_KEY]
		if !ok {
			return [HashSize]byte{}, newErr(CodeType, "%s: no PUBLIC_KEY positional", t)
		}
		var key [HashSize]byte
		copy(key[:], blob[span.Offset:span.Offset+span.Length])
		return key, nil
	case t.IsPIC():
		dateSpan := positionalOffsets(def)[FieldDATE]
		return Hash(blob[:dateSpan.Offset]), nil
	default: // FROZEN*
		return Hash(blob), nil
	}
}
