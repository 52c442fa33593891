package parallel

import (
	"math/rand"
	"testing"
)

func TestHasherOrderIndependent(t *testing.T) {
	const n = 100
	seq := NewUint16Hasher(n)
	for i := 0; i < n; i++ {
		seq.MustPutUint16(i, uint16(i*7))
	}

	order := rand.New(rand.NewSource(1)).Perm(n)
	par := NewUint16Hasher(n)
	if err := ForEach(n, 8, func(i int) error {
		par.MustPutUint16(order[i], uint16(order[i]*7))
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if seq.Sum() != par.Sum() {
		t.Errorf("digest depends on write order")
	}

	other := NewUint16Hasher(n)
	for i := 0; i < n; i++ {
		other.MustPutUint16(i, uint16(i*7)+uint16(i/99))
	}
	if other.Sum() == seq.Sum() {
		t.Errorf("different values hash the same")
	}
}

func TestHasherDuplicatePanics(t *testing.T) {
	h := NewUint16Hasher(3)
	h.MustPutUint16(1, 5)
	defer func() {
		if recover() == nil {
			t.Errorf("expected a panic")
		}
	}()
	h.MustPutUint16(1, 5)
}

func TestHasherEmpty(t *testing.T) {
	if NewUint16Hasher(0).Sum() != NewUint16Hasher(0).Sum() {
		t.Errorf("empty digests differ")
	}
}
