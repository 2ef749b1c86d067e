package cube

import (
	"context"
	"encoding/binary"
	"math/bits"

	"golang.org/x/crypto/sha3"
)

// Hash returns the SHA3-256 digest of b (spec §3 "Key", §4.2 "getHash").
func Hash(b []byte) [HashSize]byte {
	return sha3.Sum256(b)
}

// trailingZeroBits counts the trailing zero bits of h, scanning from the
// last byte backward the way the teacher's block_basic.go uses
// math/bits.TrailingZeros8 to count per-byte zero runs.
func trailingZeroBits(h [HashSize]byte) int {
	count := 0
	for i := len(h) - 1; i >= 0; i-- {
		if h[i] == 0 {
			count += 8
			continue
		}
		count += bits.TrailingZeros8(h[i])
		break
	}
	return count
}

// MeetsDifficulty reports whether hash has at least difficulty trailing
// zero bits (spec §3 "Hashcash").
func MeetsDifficulty(h [HashSize]byte, difficulty int) bool {
	return trailingZeroBits(h) >= difficulty
}

// SolveNonce finds a 4-byte big-endian nonce value such that writing it
// into blob[nonceOffset:nonceOffset+NonceSize] makes SHA3-256(blob) meet
// difficulty trailing zero bits, mutating blob in place and returning the
// winning nonce. It is the direct analog of node/miner.go's MineOne
// solve loop (try nonce, nonce++, check ctx.Done() between trials).
//
// difficulty 0 (as used in tests) is solved on the first trial.
func SolveNonce(ctx context.Context, blob []byte, nonceOffset int, difficulty int) (uint32, error) {
	if nonceOffset < 0 || nonceOffset+NonceSize > len(blob) {
		return 0, newErr(CodeBinaryLength, "nonce offset %d out of range for %d-byte blob", nonceOffset, len(blob))
	}
	for nonce := uint32(0); ; nonce++ {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			default:
			}
		}
		binary.BigEndian.PutUint32(blob[nonceOffset:nonceOffset+NonceSize], nonce)
		if MeetsDifficulty(Hash(blob), difficulty) {
			return nonce, nil
		}
		if nonce == ^uint32(0) {
			return 0, newErr(CodeHashcash, "nonce space exhausted at difficulty %d", difficulty)
		}
	}
}

// CheckDifficulty returns a HashcashError if blob's hash does not meet
// difficulty trailing zero bits (spec §3 Invariants, §7 Policy).
func CheckDifficulty(blob []byte, difficulty int) error {
	if !MeetsDifficulty(Hash(blob), difficulty) {
		return newErr(CodeHashcash, "hash does not meet difficulty %d", difficulty)
	}
	return nil
}

// ActualDifficulty returns the number of trailing zero bits blob's hash
// actually achieves, i.e. the highest difficulty it satisfies. The
// store's PIC expiry ramp (spec §4.3 "expiry = date + lifetime(difficulty)")
// is keyed on this value, not on a caller-supplied policy threshold: a
// Cube that burned more PoW effort than the minimum earns a longer
// lifetime.
func ActualDifficulty(blob []byte) int {
	return trailingZeroBits(Hash(blob))
}

// Lifetime computes lifetime_epochs = floor(slope*difficulty + intercept)
// for the PIC expiry ramp (spec §4.3), using the given ramp parameters.
func Lifetime(difficulty int, e1, e2, c1, c2 int) int {
	if c2 == c1 {
		return e1
	}
	slope := float64(e2-e1) / float64(c2-c1)
	v := slope*float64(difficulty-c1) + float64(e1)
	if v < 0 {
		return 0
	}
	return int(v)
}

// DefaultLifetime applies the default ramp constants (spec §4.3).
func DefaultLifetime(difficulty int) int {
	return Lifetime(difficulty, DefaultLifetimeE1, DefaultLifetimeE2, DefaultLifetimeC1, DefaultLifetimeC2)
}
