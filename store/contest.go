package store

import "github.com/veritum-project/cube/cube"

// LifetimeFunc maps a Cube's achieved PoW difficulty to a PIC/PMUC
// expiry lifetime in epochs, matching cube.DefaultLifetime's signature.
type LifetimeFunc func(difficulty int) int

// expirySeconds returns the absolute expiry time (seconds since epoch)
// for a Cube with the given DATE and achieved difficulty, under
// lifetime (spec §4.3 "expiry = date + lifetime(difficulty)").
func expirySeconds(date uint64, difficulty int, lifetime LifetimeFunc) uint64 {
	epochs := lifetime(difficulty)
	if epochs < 0 {
		epochs = 0
	}
	return date + uint64(epochs)*cube.EpochSeconds
}

// winner reports whether candidate should replace existing in the
// store, given both share the same key (spec §4.3 "Contest rule").
// Both blobs have already passed FromBlob validation when this is
// called.
func winner(t cube.Type, existing, candidate *cube.CompiledCube, lifetime LifetimeFunc) bool {
	switch {
	case t.IsFrozen():
		// Collision-resistant hash: a genuine tie is not expected to
		// occur. Keep the incumbent.
		return false

	case t.IsPIC():
		existingExpiry := expirySeconds(cube.DateOf(t, existing.Blob), cube.ActualDifficulty(existing.Blob), lifetime)
		candidateExpiry := expirySeconds(cube.DateOf(t, candidate.Blob), cube.ActualDifficulty(candidate.Blob), lifetime)
		return candidateExpiry > existingExpiry

	case t.IsPMUC():
		existingCount := cube.UpdateCountOf(t, existing.Blob)
		candidateCount := cube.UpdateCountOf(t, candidate.Blob)
		if candidateCount != existingCount {
			return candidateCount > existingCount
		}
		existingExpiry := expirySeconds(cube.DateOf(t, existing.Blob), cube.ActualDifficulty(existing.Blob), lifetime)
		candidateExpiry := expirySeconds(cube.DateOf(t, candidate.Blob), cube.ActualDifficulty(candidate.Blob), lifetime)
		return candidateExpiry > existingExpiry

	case t.IsSigned(): // MUC, non-PMUC
		return cube.DateOf(t, candidate.Blob) > cube.DateOf(t, existing.Blob)

	default:
		return false
	}
}
