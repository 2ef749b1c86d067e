package cryptochunk

// Variant is the ciphertext framing selected per chunk, lifted from the
// source's scattered `pubkeyHeader`/`nonceHeader`/`keyslotHeader` boolean
// flags into an explicit enum (spec §9 "A port should lift these to an
// explicit variant enum").
type Variant uint8

const (
	// VariantContinuation frames a bare `ciphertext‖tag`; the nonce is
	// supplied externally via the BLAKE2b nonce chain established by
	// an earlier chunk in the same session.
	VariantContinuation Variant = iota
	// VariantPreShared frames `nonce(24) ‖ ciphertext‖tag` for a
	// symmetric key both parties already hold.
	VariantPreShared
	// VariantSingleRecipient frames
	// `sender_eph_pk(32) ‖ nonce(24) ‖ ciphertext‖tag`.
	VariantSingleRecipient
	// VariantMultiRecipient frames
	// `sender_eph_pk(32) ‖ nonce(24) ‖ slot_0(32)…slot_{m-1}(32) ‖ ciphertext‖tag`.
	VariantMultiRecipient
)

func (v Variant) String() string {
	switch v {
	case VariantContinuation:
		return "Continuation"
	case VariantPreShared:
		return "PreShared"
	case VariantSingleRecipient:
		return "SingleRecipient"
	case VariantMultiRecipient:
		return "MultiRecipient"
	default:
		return "Unknown"
	}
}

// Wire sizes for the framing table in spec §4.5.
const (
	EphemeralPubKeySize = 32
	NonceSize           = 24
	SlotSize            = 32
	AuthTagSize         = 16 // secretbox/box Poly1305 tag (nacl Overhead)
)
