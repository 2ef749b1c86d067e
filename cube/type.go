package cube

// Type is the Cube type byte (spec §3 "A 1024-byte record with: type
// (1 byte)"). The eight variants are the full cross product of
// {FROZEN, PIC, MUC, PMUC} x {plain, _NOTIFY}.
type Type uint8

const (
	TypeFrozen Type = iota
	TypeFrozenNotify
	TypePic
	TypePicNotify
	TypeMuc
	TypeMucNotify
	TypePmuc
	TypePmucNotify
)

func (t Type) String() string {
	switch t {
	case TypeFrozen:
		return "FROZEN"
	case TypeFrozenNotify:
		return "FROZEN_NOTIFY"
	case TypePic:
		return "PIC"
	case TypePicNotify:
		return "PIC_NOTIFY"
	case TypeMuc:
		return "MUC"
	case TypeMucNotify:
		return "MUC_NOTIFY"
	case TypePmuc:
		return "PMUC"
	case TypePmucNotify:
		return "PMUC_NOTIFY"
	default:
		return "UNKNOWN"
	}
}

// IsNotify reports whether t carries the 32-byte NOTIFY positional prefix.
func (t Type) IsNotify() bool {
	switch t {
	case TypeFrozenNotify, TypePicNotify, TypeMucNotify, TypePmucNotify:
		return true
	default:
		return false
	}
}

// IsSigned reports whether t is a MUC/PMUC variant carrying a public key
// and signature (mutable, key = embedded public key).
func (t Type) IsSigned() bool {
	switch t {
	case TypeMuc, TypeMucNotify, TypePmuc, TypePmucNotify:
		return true
	default:
		return false
	}
}

// IsPMUC reports whether t carries the PMUC_UPDATE_COUNT positional.
func (t Type) IsPMUC() bool {
	return t == TypePmuc || t == TypePmucNotify
}

// IsPIC reports whether t is a PIC/PIC_NOTIFY variant (key excludes the
// trailing DATE+NONCE suffix but is otherwise hash-derived).
func (t Type) IsPIC() bool {
	return t == TypePic || t == TypePicNotify
}

// IsFrozen reports whether t is a FROZEN/FROZEN_NOTIFY variant (key is the
// hash of the whole blob).
func (t Type) IsFrozen() bool {
	return t == TypeFrozen || t == TypeFrozenNotify
}

// Valid reports whether t is one of the eight known variants.
func (t Type) Valid() bool {
	return t <= TypePmucNotify
}
