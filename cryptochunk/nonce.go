package cryptochunk

import "golang.org/x/crypto/blake2b"

// Key is a 32-byte XSalsa20-Poly1305/XChaCha20 symmetric key.
type Key [32]byte

// Nonce is a 24-byte XSalsa20/XChaCha20 nonce.
type Nonce [24]byte

// NextNonce derives the nonce for the next chunk in a session from the
// current one: nonce_{i+1} = BLAKE2b(nonce_i) truncated to 24 bytes
// (spec §4.5 "Nonce chain"). This provides unique, deterministic
// per-chunk nonces for any receiver who has decrypted chunk 0, without
// correlating nonces across chunks by any simpler relation (e.g. a
// counter) an observer could exploit.
func NextNonce(n Nonce) Nonce {
	sum := blake2b.Sum256(n[:])
	var next Nonce
	copy(next[:], sum[:len(next)])
	return next
}
