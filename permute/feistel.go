package permute

import "github.com/neurlang/varbatch/hash"

const feistelRounds = 6

type feistel struct {
	n    uint64
	half uint
	mask uint32
	keys [feistelRounds]uint32
}

// NewFeistel returns a Feistel permutation of [0, n) keyed by seed.
func NewFeistel(n int, seed uint64) Permutation {
	var bits uint = 2
	for uint64(1)<<bits < uint64(n) {
		bits += 2
	}
	f := &feistel{n: uint64(n), half: bits / 2}
	f.mask = uint32(1)<<f.half - 1
	for r := range f.keys {
		f.keys[r] = hash.Key(seed, uint32(r))
	}
	return f
}

func (f *feistel) Len() int { return int(f.n) }

func (f *feistel) encrypt(x uint64) uint64 {
	var l, r = uint32(x>>f.half) & f.mask, uint32(x) & f.mask
	for _, k := range f.keys {
		l, r = r, l^hash.Hash(r, k, f.mask+1)
	}
	return uint64(l)<<f.half | uint64(r)
}

// At walks the cycle of i until it lands back inside [0, n).
func (f *feistel) At(i int) int {
	var x = f.encrypt(uint64(i))
	for x >= f.n {
		x = f.encrypt(x)
	}
	return int(x)
}

// fill evaluates the rounds lane-wise, then finishes the cycle walk of the
// few lanes that left the range one by one.
func (f *feistel) fill(dst []int) {
	var lanes = hash.HashVectorizedParallelism()
	var l, r, out = make([]uint32, lanes), make([]uint32, lanes), make([]uint32, lanes)
	for base := 0; base < len(dst); base += lanes {
		var width = lanes
		if base+width > len(dst) {
			width = len(dst) - base
		}
		for j := 0; j < width; j++ {
			x := uint64(base + j)
			l[j], r[j] = uint32(x>>f.half)&f.mask, uint32(x)&f.mask
		}
		for _, k := range f.keys {
			hash.HashVectorized(out[:width], r[:width], k, f.mask+1)
			for j := 0; j < width; j++ {
				l[j], r[j] = r[j], l[j]^out[j]
			}
		}
		for j := 0; j < width; j++ {
			x := uint64(l[j])<<f.half | uint64(r[j])
			for x >= f.n {
				x = f.encrypt(x)
			}
			dst[base+j] = int(x)
		}
	}
}
