package cryptochunk

import "github.com/veritum-project/cube/cube"

// frameOverhead returns the non-plaintext bytes a Variant frame adds
// around the sealed payload (spec §4.5 framing table), for a given
// number of multi-recipient key slots.
func frameOverhead(variant Variant, slotCount int) int {
	switch variant {
	case VariantContinuation:
		return AuthTagSize
	case VariantPreShared:
		return NonceSize + AuthTagSize
	case VariantSingleRecipient:
		return EphemeralPubKeySize + NonceSize + AuthTagSize
	case VariantMultiRecipient:
		return EphemeralPubKeySize + NonceSize + slotCount*SlotSize + AuthTagSize
	default:
		return 0
	}
}

// positionalOverhead returns the bytes def reserves outside the
// variable payload region: its fixed leading/trailing positional
// fields plus one TLV header (type+length) for the ENCRYPTED field
// itself, since the encrypted blob still travels as a TLV field
// within the chunk's payload region.
func positionalOverhead(def cube.FieldDef) int {
	front, back := 0, 0
	for _, p := range def.PositionalFront {
		front += p.Length
	}
	for _, p := range def.PositionalBack {
		back += p.Length
	}
	const tlvHeader = 2
	return front + back + tlvHeader
}

// MaxChunkSize returns the largest plaintext payload that fits in one
// Cube of type def once variant's framing overhead is accounted for.
// Intended to be wired into continuation.Config.MaxChunkSize for an
// encrypted Veritum (spec §5 "the continuation layer's chunk budget
// must shrink to make room for crypto framing").
func MaxChunkSize(def cube.FieldDef, variant Variant, slotCount int) int {
	budget := cube.CubeSize - positionalOverhead(def) - frameOverhead(variant, slotCount)
	if budget < 0 {
		return 0
	}
	return budget
}

// SlotCapacity returns the maximum number of VariantMultiRecipient key
// slots that fit in a single chunk of type def alongside a minimal
// (zero-length) sealed payload and the one CONTINUED_IN link (a
// fixed-length RELATES_TO field) a key-distribution chunk carries to
// its content chain, i.e. the most recipients one key-distribution
// chunk can address directly (spec §4.6 "a Veritum addressed to more
// recipients than fit in one chunk's slot table spans multiple
// key-distribution chunks").
func SlotCapacity(def cube.FieldDef) int {
	const linkLen = 1 + cube.RelationshipPayloadSize
	budget := cube.CubeSize - positionalOverhead(def) - linkLen - EphemeralPubKeySize - NonceSize - AuthTagSize
	if budget <= 0 {
		return 0
	}
	return budget / SlotSize
}

// DistributeRecipients splits pubs into groups of at most capacity,
// preserving order, so each group can be sealed into its own
// key-distribution chunk.
func DistributeRecipients(pubs [][32]byte, capacity int) [][][32]byte {
	if capacity <= 0 || len(pubs) == 0 {
		return nil
	}
	groups := make([][][32]byte, 0, (len(pubs)+capacity-1)/capacity)
	for start := 0; start < len(pubs); start += capacity {
		end := start + capacity
		if end > len(pubs) {
			end = len(pubs)
		}
		groups = append(groups, pubs[start:end])
	}
	return groups
}
