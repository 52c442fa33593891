package parallel

import (
	"crypto/sha256"
	"hash"
	"sync"
)

const (
	hasherBlock = 30        // uint16 values per block
	hasherFull  = 1<<30 - 1 // every value of a block written
)

// Hasher digests n uint16 values written concurrently and in any order. The
// digest equals that of writing them sequentially, so two runs that produce
// the same values at the same positions agree. Blocks are fed to sha256 as
// soon as they and every block before them are complete.
type Hasher struct {
	mut   sync.Mutex
	sha   hash.Hash
	n     int
	ate   int
	data  [][64]byte
	marks []uint32
}

// NewUint16Hasher expects exactly n values.
func NewUint16Hasher(n int) *Hasher {
	blocks := (hasherBlock - 1 + n) / hasherBlock
	return &Hasher{
		sha:   sha256.New(),
		n:     n,
		data:  make([][64]byte, blocks),
		marks: make([]uint32, blocks),
	}
}

func (h *Hasher) complete(block int) bool {
	want := uint32(hasherFull)
	if block == len(h.data)-1 && h.n%hasherBlock != 0 {
		want = 1<<uint(h.n%hasherBlock) - 1
	}
	return h.marks[block] == want
}

// MustPutUint16 stores value at position n. Writing a position twice or
// outside [0, n) panics.
func (h *Hasher) MustPutUint16(n int, value uint16) {
	if n < 0 || n >= h.n {
		panic("hasher: position out of range")
	}
	block, pos := n/hasherBlock, uint(n%hasherBlock)

	h.mut.Lock()
	defer h.mut.Unlock()

	if h.marks[block]&(1<<pos) != 0 {
		panic("hasher: duplicate write")
	}
	h.marks[block] |= 1 << pos
	h.data[block][2*pos] = byte(value)
	h.data[block][2*pos+1] = byte(value >> 8)

	for h.ate < len(h.data) && h.complete(h.ate) {
		h.sha.Write(h.data[h.ate][:])
		h.data[h.ate] = [64]byte{}
		h.ate++
	}
}

// Sum returns the digest. Positions never written hash as zero.
func (h *Hasher) Sum() (ret [32]byte) {
	h.mut.Lock()
	defer h.mut.Unlock()
	for ; h.ate < len(h.data); h.ate++ {
		h.sha.Write(h.data[h.ate][:])
	}
	copy(ret[:], h.sha.Sum(nil))
	return
}
