// Package cube implements the fixed-size, content-addressed binary record
// ("Cube") at the core of the store: a 1024-byte blob whose key is derived
// from its bytes, encoded with a hybrid positional + TLV field grammar.
package cube

// Wire-format sizes, per spec §6 "Cryptographic constants".
const (
	CubeSize               = 1024
	HashSize                = 32
	PublicKeySize           = 32
	SignatureSize           = 64
	NonceSize               = 4  // proof-of-work nonce
	CryptoNonceSize         = 24 // XSalsa20/XChaCha20 nonce used by cryptochunk
	CryptoSymmetricKeySize  = 32
	TimestampSize           = 5 // seconds since epoch, big-endian
	NotifyKeySize           = 32
	UpdateCountSize         = 8 // PMUC_UPDATE_COUNT; see DESIGN.md open-question decision
	RelationshipPayloadSize = 1 + HashSize // relationship type byte + remote key
)

// EpochSeconds is the unit of Cube lifetime used by the PIC expiry ramp (§4.3).
const EpochSeconds = 5400

// Default slope/intercept constants for the PIC lifetime(difficulty) ramp (§4.3).
const (
	DefaultLifetimeE1 = 0
	DefaultLifetimeE2 = 960
	DefaultLifetimeC1 = 10
	DefaultLifetimeC2 = 80
)
