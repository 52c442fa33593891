// Package hash implements the keyed modular hash used to derive permutations
// and per-step choices from an epoch seed.
package hash

// Mix scrambles n with the salt s. For a fixed salt it is a bijection on uint32.
func Mix(n uint32, s uint32) uint32 {
	// mixing stage, mix input with salt using subtraction
	var m = n - s

	// hashing stage, use xor shift with prime coefficients
	m ^= m << 2
	m ^= m << 3
	m ^= m >> 5
	m ^= m >> 7
	m ^= m << 11
	m ^= m << 13
	m ^= m >> 17
	m ^= m << 19

	// mixing stage 2, mix input with salt using addition
	return m + s
}

// Hash maps n keyed by s into the range 0 to max-1. Hash(n, s, 0) is 0.
func Hash(n uint32, s uint32, max uint32) uint32 {
	// the multiply shift trick by Daniel Lemire instead of a modulo
	// https://lemire.me/blog/2016/06/27/a-fast-alternative-to-the-modulo-reduction/
	return uint32((uint64(Mix(n, s)) * uint64(max)) >> 32)
}

// Key derives a 32 bit salt for the given lane from a 64 bit seed.
// Distinct lanes of one seed give unrelated salts.
func Key(seed uint64, lane uint32) uint32 {
	var lo, hi = uint32(seed), uint32(seed >> 32)
	var k = Mix(lo^(lane*0x9e3779b9), hi+lane)
	return Mix(k, hi^0x85ebca6b)
}

// Float maps n keyed by s into [0, 1).
func Float(n uint32, s uint32) float64 {
	return float64(Mix(n, s)) / (1 << 32)
}
