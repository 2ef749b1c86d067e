package cube

// Field is one entry in a field list: either a positional field or a TLV
// field. REMAINDER fields (synthesized on decode only) carry their raw
// trailing bytes in Value and are dropped on re-compile.
type Field struct {
	Type  FieldType
	Value []byte
}

// Copy returns a deep copy of f. The continuation splitter always copies
// fields it places into a macro list rather than aliasing caller slices
// (spec §9: "Port must copy").
func (f Field) Copy() Field {
	return Field{Type: f.Type, Value: append([]byte(nil), f.Value...)}
}

// NewRelatesTo builds a RELATES_TO field wiring relType to remoteKey.
func NewRelatesTo(relType RelationshipType, remoteKey [HashSize]byte) Field {
	v := make([]byte, RelationshipPayloadSize)
	v[0] = byte(relType)
	copy(v[1:], remoteKey[:])
	return Field{Type: FieldRELATES_TO, Value: v}
}

// ContinuedInKey extracts the remote key from a RELATES_TO field whose
// relationship type is CONTINUED_IN. ok is false for any other field.
func ContinuedInKey(f Field) (key [HashSize]byte, ok bool) {
	if f.Type != FieldRELATES_TO || len(f.Value) != RelationshipPayloadSize {
		return key, false
	}
	if RelationshipType(f.Value[0]) != RelationshipContinuedIn {
		return key, false
	}
	copy(key[:], f.Value[1:])
	return key, true
}

// PositionalField is one entry of a FieldDef's fixed leading or trailing
// positional layout: a field type at a fixed offset with a fixed length.
type PositionalField struct {
	Type   FieldType
	Length int
}

// FieldDef enumerates the positional/TLV grammar for one Cube type,
// per spec §4.1 "Field definition". It is threaded through every codec
// call rather than dispatched through inheritance (spec §9 "Polymorphism").
type FieldDef struct {
	Name            string
	PositionalFront []PositionalField
	PositionalBack  []PositionalField
	// FixedLength maps a TLV field type to its fixed encoded length.
	// A type absent from this map is variable-length.
	FixedLength map[FieldType]int
	// Stop is the sentinel TLV type that ends meaningful payload (CCI_END).
	Stop FieldType
	// Remainder is the virtual type synthesized for unparsed trailing bytes.
	Remainder FieldType
	// TLVEnabled selects TLV payload parsing; when false the payload
	// region is a single opaque raw-content field (the "core parsers"
	// mode spec §3 mentions alongside "CCI parsers").
	TLVEnabled bool
	// RawContentType is the field type used for the payload when
	// TLVEnabled is false.
	RawContentType FieldType
}

// frontLen returns the total byte length of the leading positionals.
func (d FieldDef) frontLen() int {
	n := 0
	for _, p := range d.PositionalFront {
		n += p.Length
	}
	return n
}

// backLen returns the total byte length of the trailing positionals.
func (d FieldDef) backLen() int {
	n := 0
	for _, p := range d.PositionalBack {
		n += p.Length
	}
	return n
}

// isFixed reports whether t has a fixed encoded length under d, and what
// that length is. Positional types are always fixed; REMAINDER never is.
func (d FieldDef) isFixed(t FieldType) (int, bool) {
	for _, p := range d.PositionalFront {
		if p.Type == t {
			return p.Length, true
		}
	}
	for _, p := range d.PositionalBack {
		if p.Type == t {
			return p.Length, true
		}
	}
	if n, ok := d.FixedLength[t]; ok {
		return n, true
	}
	return 0, false
}

// defaultTLVFixedLengths is the standard CCI fixed-length TLV table shared
// by every CCI-enabled FieldDef (spec §6 "TLV header").
func defaultTLVFixedLengths() map[FieldType]int {
	return map[FieldType]int{
		FieldPADDING_SINGLEBYTE: 1,
		FieldCCI_END:            0,
		FieldRELATES_TO:         RelationshipPayloadSize,
	}
}

// DefForType returns the FieldDef for one of the eight Cube type variants
// (spec §6 "Positional layouts").
func DefForType(t Type) FieldDef {
	notify := t.IsNotify()
	signed := t.IsSigned()
	pmuc := t.IsPMUC()

	front := []PositionalField{{Type: FieldTYPE, Length: 1}}
	if notify {
		front = append(front, PositionalField{Type: FieldNOTIFY, Length: NotifyKeySize})
	}

	var back []PositionalField
	if signed {
		back = []PositionalField{
			{Type: FieldPUBLIC_KEY, Length: PublicKeySize},
			{Type: FieldDATE, Length: TimestampSize},
		}
		if pmuc {
			back = append(back, PositionalField{Type: FieldPMUC_UPDATE_COUNT, Length: UpdateCountSize})
		}
		back = append(back,
			PositionalField{Type: FieldSIGNATURE, Length: SignatureSize},
			PositionalField{Type: FieldNONCE, Length: NonceSize},
		)
	} else {
		back = []PositionalField{
			{Type: FieldDATE, Length: TimestampSize},
			{Type: FieldNONCE, Length: NonceSize},
		}
	}

	return FieldDef{
		Name:            t.String(),
		PositionalFront: front,
		PositionalBack:  back,
		FixedLength:     defaultTLVFixedLengths(),
		Stop:            FieldCCI_END,
		Remainder:       FieldREMAINDER,
		TLVEnabled:      true,
	}
}

// DefForTypeRaw returns the "core parser" variant of t's FieldDef: the
// payload region is a single opaque raw-content field rather than a TLV
// sequence (spec §3: "parsed either as an opaque raw-content field (core
// parsers) or as a sequence of TLV fields (CCI parsers)").
func DefForTypeRaw(t Type) FieldDef {
	def := DefForType(t)
	def.TLVEnabled = false
	def.RawContentType = FieldPAYLOAD
	return def
}
