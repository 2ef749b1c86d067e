package cube

import "crypto/ed25519"

// Sign computes the Ed25519 signature over blob's signed-data region —
// every byte preceding the SIGNATURE positional (spec §4.2 "Signing
// order": "Signature is over all bytes preceding the signature field",
// excluding the trailing SIGNATURE+NONCE 68 bytes) — and writes it into
// blob's SIGNATURE positional in place. t must be a signed (MUC/PMUC)
// type.
func Sign(t Type, blob []byte, priv ed25519.PrivateKey) error {
	if !t.IsSigned() {
		return newErr(CodeType, "%s: cannot sign an unsigned cube type", t)
	}
	if len(blob) != CubeSize {
		return newErr(CodeBinaryLength, "blob is %d bytes, want %d", len(blob), CubeSize)
	}
	def := DefForType(t)
	sigSpan := positionalOffsets(def)[FieldSIGNATURE]
	sig := ed25519.Sign(priv, blob[:sigSpan.Offset])
	copy(blob[sigSpan.Offset:sigSpan.Offset+sigSpan.Length], sig)
	return nil
}

// VerifySignature recomputes the signed-data region of blob and validates
// it against the embedded PUBLIC_KEY positional (spec §4.2
// "verifySignature"). t must be a signed (MUC/PMUC) type.
func VerifySignature(t Type, blob []byte) error {
	if !t.IsSigned() {
		return newErr(CodeType, "%s: not a signed cube type", t)
	}
	if len(blob) != CubeSize {
		return newErr(CodeBinaryLength, "blob is %d bytes, want %d", len(blob), CubeSize)
	}
	def := DefForType(t)
	offsets := positionalOffsets(def)
	pubSpan := offsets[FieldPUBLIC_KEY]
	sigSpan := offsets[FieldSIGNATURE]

	pub := ed25519.PublicKey(blob[pubSpan.Offset : pubSpan.Offset+pubSpan.Length])
	sig := blob[sigSpan.Offset : sigSpan.Offset+sigSpan.Length]
	if !ed25519.Verify(pub, blob[:sigSpan.Offset], sig) {
		return newErr(CodeSignature, "%s: signature verification failed", t)
	}
	return nil
}
