package cryptochunk

import (
	"crypto/rand"
	"io"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/nacl/secretbox"
)

// EncryptContinuation seals plaintext with key/nonce and returns a bare
// `ciphertext‖tag` (VariantContinuation: the nonce travels via the
// session's BLAKE2b chain, not inline).
func EncryptContinuation(key Key, nonce Nonce, plaintext []byte) []byte {
	k := [32]byte(key)
	n := [24]byte(nonce)
	return secretbox.Seal(nil, plaintext, &n, &k)
}

// DecryptContinuation opens a VariantContinuation frame.
func DecryptContinuation(key Key, nonce Nonce, sealed []byte) ([]byte, bool) {
	k := [32]byte(key)
	n := [24]byte(nonce)
	return secretbox.Open(nil, sealed, &n, &k)
}

// EncryptPreSharedWithNonce frames plaintext as a VariantPreShared start
// chunk under a caller-supplied nonce, returning `nonce(24) ‖
// ciphertext‖tag`. See SealSingleRecipientStart for why a caller needs
// to choose the nonce itself rather than let this package generate one.
func EncryptPreSharedWithNonce(key Key, nonce Nonce, plaintext []byte) []byte {
	sealed := EncryptContinuation(key, nonce, plaintext)
	out := make([]byte, 0, len(nonce)+len(sealed))
	out = append(out, nonce[:]...)
	out = append(out, sealed...)
	return out
}

// EncryptPreShared seals plaintext under key with a fresh random nonce,
// returning `nonce(24) ‖ ciphertext‖tag` and the nonce used (so the
// caller can start a continuation chain from it).
func EncryptPreShared(key Key, plaintext []byte) ([]byte, Nonce, error) {
	nonce, err := NewSessionNonce()
	if err != nil {
		return nil, Nonce{}, err
	}
	return EncryptPreSharedWithNonce(key, nonce, plaintext), nonce, nil
}

// DecryptPreShared opens a VariantPreShared frame.
func DecryptPreShared(key Key, framed []byte) ([]byte, Nonce, bool) {
	if len(framed) < NonceSize {
		return nil, Nonce{}, false
	}
	var nonce Nonce
	copy(nonce[:], framed[:NonceSize])
	pt, ok := DecryptContinuation(key, nonce, framed[NonceSize:])
	return pt, nonce, ok
}

// NewSessionNonce generates a fresh random nonce to start a
// pre-shared, single-recipient, or multi-recipient session.
func NewSessionNonce() (Nonce, error) {
	var nonce Nonce
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return Nonce{}, newErr(CodeRandom, "nonce: %v", err)
	}
	return nonce, nil
}

// NewEphemeralKeypair generates a fresh X25519 keypair for starting a
// single- or multi-recipient session.
func NewEphemeralKeypair() (pub, priv [32]byte, err error) {
	p, s, kerr := box.GenerateKey(rand.Reader)
	if kerr != nil {
		return pub, priv, newErr(CodeRandom, "ephemeral keypair: %v", kerr)
	}
	return *p, *s, nil
}

// SharedKey computes the ECDH shared secret between a peer's public
// key and a local private key (spec §4.5 "crypto_box_beforenm").
func SharedKey(peerPub, localPriv [32]byte) Key {
	var shared [32]byte
	box.Precompute(&shared, &peerPub, &localPriv)
	return Key(shared)
}

// SealSingleRecipientStart frames plaintext as a VariantSingleRecipient
// start chunk under a caller-supplied ephemeral keypair and nonce,
// returning `sender_eph_pk(32) ‖ nonce(24) ‖ ciphertext‖tag`. Splitting
// ephemeral-keypair/nonce generation out of the sealing step lets a
// caller learn the session's shared key (via SharedKey) before this
// chunk — typically the last one compiled in a Veritum — is sealed, so
// every earlier VariantContinuation chunk can derive its forward-chained
// nonce from the same base nonce independent of compile order.
func SealSingleRecipientStart(ephPub, ephPriv, recipientPub [32]byte, nonce Nonce, plaintext []byte) []byte {
	n := [24]byte(nonce)
	sealed := box.Seal(nil, plaintext, &n, &recipientPub, &ephPriv)

	out := make([]byte, 0, EphemeralPubKeySize+NonceSize+len(sealed))
	out = append(out, ephPub[:]...)
	out = append(out, nonce[:]...)
	out = append(out, sealed...)
	return out
}

// EncryptSingleRecipient seals plaintext for one recipient under a
// freshly generated sender ephemeral keypair and nonce, returning
// `sender_eph_pk(32) ‖ nonce(24) ‖ ciphertext‖tag`. It also returns the
// ECDH shared key and the nonce used, so the caller can carry both
// forward as the Session for the chunks that follow this one.
func EncryptSingleRecipient(recipientPub [32]byte, plaintext []byte) ([]byte, Key, Nonce, error) {
	ephPub, ephPriv, err := NewEphemeralKeypair()
	if err != nil {
		return nil, Key{}, Nonce{}, err
	}
	nonce, err := NewSessionNonce()
	if err != nil {
		return nil, Key{}, Nonce{}, err
	}
	out := SealSingleRecipientStart(ephPub, ephPriv, recipientPub, nonce, plaintext)
	return out, SharedKey(recipientPub, ephPriv), nonce, nil
}

// DecryptSingleRecipient opens a VariantSingleRecipient frame using the
// recipient's static private key. It also returns the ECDH shared key
// between the sender's ephemeral key and the recipient — the caller
// may carry this forward as a Session.Key for subsequent
// VariantContinuation chunks in the same Veritum.
func DecryptSingleRecipient(recipientPriv [32]byte, framed []byte) ([]byte, Key, Nonce, bool) {
	if len(framed) < EphemeralPubKeySize+NonceSize {
		return nil, Key{}, Nonce{}, false
	}
	var ephPub [32]byte
	copy(ephPub[:], framed[:EphemeralPubKeySize])
	var nonce Nonce
	copy(nonce[:], framed[EphemeralPubKeySize:EphemeralPubKeySize+NonceSize])
	n := [24]byte(nonce)
	pt, ok := box.Open(nil, framed[EphemeralPubKeySize+NonceSize:], &n, &ephPub, &recipientPriv)
	if !ok {
		return nil, Key{}, Nonce{}, false
	}
	var shared [32]byte
	box.Precompute(&shared, &ephPub, &recipientPriv)
	return pt, Key(shared), nonce, true
}

// slotKeystream derives the per-recipient keystream used to XOR-wrap
// the payload symmetric key into a key slot: a raw XChaCha20 keystream
// under the ECDH shared key between the sender's ephemeral key and one
// recipient's public key, and the chunk's nonce (spec §4.5
// "crypto_stream_xchacha20_xor").
func slotKeystream(shared [32]byte, nonce Nonce, data []byte) ([]byte, error) {
	c, err := chacha20.NewUnauthenticatedCipher(shared[:], nonce[:])
	if err != nil {
		return nil, newErr(CodeRandom, "keystream cipher: %v", err)
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}

// EncryptMultiRecipient seals plaintext once under a fresh random
// payload key, then wraps that key once per recipient into a key slot,
// returning
// `sender_eph_pk(32) ‖ nonce(24) ‖ slot_0(32)…slot_{m-1}(32) ‖ ciphertext‖tag`
// (spec §4.5 "Multi-recipient start").
func EncryptMultiRecipient(recipientPubs [][32]byte, plaintext []byte) ([]byte, error) {
	var payloadKey Key
	if _, err := io.ReadFull(rand.Reader, payloadKey[:]); err != nil {
		return nil, newErr(CodeRandom, "payload key: %v", err)
	}
	var nonce Nonce
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, newErr(CodeRandom, "nonce: %v", err)
	}
	return EncryptMultiRecipientWithKey(payloadKey, nonce, recipientPubs, plaintext)
}

// EncryptMultiRecipientWithKey is EncryptMultiRecipient with the
// payload key and nonce supplied by the caller rather than generated,
// so multiple key-distribution chunks addressing different recipient
// groups of the same Veritum can wrap the same payload key (every
// recipient, regardless of which chunk carries their slot, recovers
// the identical session start).
func EncryptMultiRecipientWithKey(payloadKey Key, nonce Nonce, recipientPubs [][32]byte, plaintext []byte) ([]byte, error) {
	if len(recipientPubs) == 0 {
		return nil, newErr(CodeNoRecipients, "at least one recipient is required")
	}
	ephPub, ephPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, newErr(CodeRandom, "ephemeral keypair: %v", err)
	}

	slots := make([]byte, 0, len(recipientPubs)*SlotSize)
	for _, pub := range recipientPubs {
		var shared [32]byte
		box.Precompute(&shared, &pub, ephPriv)
		slot, err := slotKeystream(shared, nonce, payloadKey[:])
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot...)
	}

	k := [32]byte(payloadKey)
	n := [24]byte(nonce)
	sealed := secretbox.Seal(nil, plaintext, &n, &k)

	out := make([]byte, 0, EphemeralPubKeySize+NonceSize+len(slots)+len(sealed))
	out = append(out, ephPub[:]...)
	out = append(out, nonce[:]...)
	out = append(out, slots...)
	out = append(out, sealed...)
	return out, nil
}

// DecryptMultiRecipient opens a VariantMultiRecipient frame. slotCount
// must equal the number of recipients the sender addressed in this
// frame — a key-distribution chunk's metadata conveys this out of
// band, since it cannot be recovered from the frame's length alone
// (spec §4.5 "iterate slots until one produces a symmetric key whose
// ...open... succeeds"). The recovered payload key is also returned so
// the caller can carry it forward as a Session.Key for subsequent
// VariantContinuation chunks.
func DecryptMultiRecipient(recipientPriv [32]byte, framed []byte, slotCount int) ([]byte, Key, Nonce, bool) {
	header := EphemeralPubKeySize + NonceSize
	slotsLen := slotCount * SlotSize
	if slotCount <= 0 || len(framed) < header+slotsLen {
		return nil, Key{}, Nonce{}, false
	}
	var ephPub [32]byte
	copy(ephPub[:], framed[:EphemeralPubKeySize])
	var nonce Nonce
	copy(nonce[:], framed[EphemeralPubKeySize:header])
	slotsRegion := framed[header : header+slotsLen]
	ciphertext := framed[header+slotsLen:]

	var shared [32]byte
	box.Precompute(&shared, &ephPub, &recipientPriv)

	for i := 0; i < slotCount; i++ {
		slot := slotsRegion[i*SlotSize : (i+1)*SlotSize]
		candidate, err := slotKeystream(shared, nonce, slot)
		if err != nil {
			continue
		}
		var key [32]byte
		copy(key[:], candidate)
		n := [24]byte(nonce)
		if pt, ok := secretbox.Open(nil, ciphertext, &n, &key); ok {
			return pt, Key(key), nonce, true
		}
	}
	return nil, Key{}, Nonce{}, false
}
