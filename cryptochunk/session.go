package cryptochunk

// Session is the linear decrypt state carried from one chunk to the
// next within a single Veritum (spec §4.5 "On success, store
// (session_key, next_nonce = H(nonce)) for subsequent chunks").
type Session struct {
	Key         Key
	Nonce       Nonce
	Established bool
}

// Recipient identifies the key material a decrypting party can try
// against a chunk: their X25519 private key, and (for multi-recipient
// frames) the number of recipients the sender addressed.
type Recipient struct {
	PrivateKey [32]byte
	SlotCount  int
}

// DecryptChunk runs the receive-side pipeline for one chunk's raw
// ENCRYPTED field value (spec §4.5 "Decrypt pipeline"): continue an
// established session, else try the pre-shared-key framing, else
// single-recipient, else multi-recipient, in that order. ok is false
// — never an error — if every attempt fails, since ciphertext
// corruption from an untrusted network source is an expected,
// recoverable condition (spec §7).
func DecryptChunk(sess Session, presharedKey *Key, recipient *Recipient, raw []byte) (plaintext []byte, next Session, ok bool) {
	if sess.Established {
		if pt, ok := DecryptContinuation(sess.Key, sess.Nonce, raw); ok {
			return pt, Session{Key: sess.Key, Nonce: NextNonce(sess.Nonce), Established: true}, true
		}
		return nil, Session{}, false
	}

	if presharedKey != nil {
		if pt, nonce, ok := DecryptPreShared(*presharedKey, raw); ok {
			return pt, Session{Key: *presharedKey, Nonce: NextNonce(nonce), Established: true}, true
		}
	}

	if recipient != nil {
		if pt, key, nonce, ok := DecryptSingleRecipient(recipient.PrivateKey, raw); ok {
			return pt, Session{Key: key, Nonce: NextNonce(nonce), Established: true}, true
		}
		if recipient.SlotCount > 0 {
			if pt, key, nonce, ok := DecryptMultiRecipient(recipient.PrivateKey, raw, recipient.SlotCount); ok {
				return pt, Session{Key: key, Nonce: NextNonce(nonce), Established: true}, true
			}
		}
	}

	return nil, Session{}, false
}
