package cube

// FieldType identifies one field kind in a field list. Positional-only
// types (TYPE, PUBLIC_KEY, DATE, SIGNATURE, NONCE, NOTIFY,
// PMUC_UPDATE_COUNT) live outside the TLV 6-bit code space and are never
// written with a TLV header. TLV field types are stored pre-shifted left
// by 2 (i.e. as multiples of 4): that is the exact byte value a
// fixed-length TLV field writes as its single header byte, and for
// variable-length fields the low 2 bits of that same byte carry the top
// 2 bits of the 10-bit length (spec §6: "type:6 || length:10").
type FieldType uint16

// Positional-only field types (§6 table, §3 Key).
const (
	FieldTYPE             FieldType = 1001
	FieldPUBLIC_KEY        FieldType = 2003
	FieldDATE              FieldType = 2004
	FieldSIGNATURE         FieldType = 2005
	FieldNONCE             FieldType = 2006
	FieldNOTIFY            FieldType = 2007
	FieldPMUC_UPDATE_COUNT FieldType = 2008
)

// TLV field types. Values are pre-shifted (multiples of 4); see FieldType
// doc comment. Where spec.md §6 names an explicit numeric value
// (PADDING_SINGLEBYTE=0, APPLICATION=4, PAYLOAD=64, RELATES_TO=76,
// PADDING=124) it is reproduced verbatim; the remaining codes
// (CCI_END, ENCRYPTED) are this port's own assignment of unused slots
// in the same 6-bit space.
const (
	FieldPADDING_SINGLEBYTE FieldType = 0   // fixed, 1-byte value
	FieldAPPLICATION        FieldType = 4   // variable
	FieldCCI_END            FieldType = 8   // fixed, 0-byte value (sentinel)
	FieldENCRYPTED          FieldType = 12  // variable
	FieldPAYLOAD            FieldType = 64  // variable; raw application payload
	FieldRELATES_TO         FieldType = 76  // fixed, 33-byte value
	FieldPADDING            FieldType = 124 // variable; multi-byte filler
)

// FieldREMAINDER is the virtual terminator synthesized on decode for any
// trailing bytes before the trailing positional suffix. It is never
// written back on re-compile (spec §3 invariants, §4.1 step 3).
const FieldREMAINDER FieldType = 0xFFFF

// Relationship types carried in the 1-byte subtype of a RELATES_TO value.
type RelationshipType uint8

const (
	// RelationshipContinuedIn is the reserved relationship wiring chunks
	// of a split Veritum together (spec §3 "Relationship").
	RelationshipContinuedIn RelationshipType = 1
	// RelationshipGeneric is a placeholder for any application-level
	// relationship that isn't CONTINUED_IN; the codec treats it opaquely.
	RelationshipGeneric RelationshipType = 0
)

// tlvHeaderShift is the number of bits a TLV type code is shifted left to
// form the byte written to the wire (see FieldType doc comment).
const tlvHeaderShift = 2

// tlvLengthHighMask isolates the top 2 bits of a 10-bit TLV length once
// they've been shifted into the low 2 bits of the header's first byte.
const tlvLengthHighMask = 0x03

// tlvTypeMask isolates the 6-bit type code from a TLV header's first byte.
const tlvTypeMask = 0xFC

// MaxTLVLength is the largest value a 10-bit TLV length field can hold.
const MaxTLVLength = 1<<10 - 1
