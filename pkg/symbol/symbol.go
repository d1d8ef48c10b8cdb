// Package symbol computes, from a session id and symbol id alone, the set
// of intermediate-block indices a coded symbol's payload is the XOR of.
// Both encoder and decoder call Neighbors independently and must agree
// byte-for-byte, which is why the degree distribution below is a fixed
// protocol constant rather than configuration.
package symbol

import "github.com/cyberian-hacksy/beammeup/pkg/prng"

const (
	// degreeOneProbability is the fraction of fountain symbols that carry
	// a single random neighbour instead of the high-degree mix. Changing
	// this breaks deterministic reconstruction across implementations.
	degreeOneProbability = 0.15

	// maxFountainDegree bounds the neighbour count of a high-degree
	// fountain symbol, clamped to K'-1 when K' is small.
	maxFountainDegree = 3
)

// Neighbors returns the ordered intermediate-block indices composing the
// payload of symbol id within session sessionID, given kPrime
// intermediate blocks. id == 0 is the reserved metadata symbol and has no
// XOR neighbours.
func Neighbors(sessionID, id, kPrime uint32) []uint32 {
	if id == 0 {
		return nil
	}

	rng := prng.New(sessionID ^ id)

	if id <= kPrime {
		return []uint32{(id - 1) % kPrime}
	}

	r := rng.Next()
	p := float64(r) / 4294967296.0
	if p < degreeOneProbability {
		return []uint32{rng.NextBounded(kPrime)}
	}

	degree := maxFountainDegree
	if uint32(degree) > kPrime-1 {
		degree = int(kPrime - 1)
	}
	if degree < 1 {
		// K'-1 == 0: fall back to degree 1 rather than an empty,
		// useless constraint.
		degree = 1
	}
	return rng.PickUnique(degree, int(kPrime))
}

// IsSystematic reports whether id addresses a systematic symbol (a
// verbatim intermediate block) for the given kPrime.
func IsSystematic(id, kPrime uint32) bool {
	return id >= 1 && id <= kPrime
}

// IsMetadata reports whether id is the reserved metadata symbol id.
func IsMetadata(id uint32) bool {
	return id == 0
}
