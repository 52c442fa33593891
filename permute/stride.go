package permute

import (
	"github.com/jbarham/primegen"

	"github.com/neurlang/varbatch/hash"
)

type stride struct {
	n, a, b uint64
}

// strideSearch bounds the starting point of the prime search.
const strideSearch = 1 << 16

// NewStride returns the permutation i -> (a*i + b) mod n where a is the first
// prime at or above a seed derived starting point that does not divide n.
func NewStride(n int, seed uint64) Permutation {
	if n <= 1 {
		return &stride{n: uint64(n), a: 1}
	}
	var span = uint32(strideSearch)
	if n < strideSearch {
		span = uint32(n)
	}
	var start = uint64(hash.Hash(uint32(n), hash.Key(seed, 0), span)) + 2
	var a uint64
	pg := primegen.New()
	for p := pg.Next(); ; p = pg.Next() {
		if p >= start && uint64(n)%p != 0 {
			a = p
			break
		}
	}
	return &stride{
		n: uint64(n),
		a: a % uint64(n),
		b: uint64(hash.Hash(uint32(n), hash.Key(seed, 1), uint32(n))),
	}
}

func (s *stride) Len() int { return int(s.n) }

func (s *stride) At(i int) int {
	if s.n <= 1 {
		return i
	}
	return int((s.a*uint64(i)%s.n + s.b) % s.n)
}
