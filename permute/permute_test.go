package permute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertBijection(t *testing.T, p Permutation) {
	t.Helper()
	seen := make([]bool, p.Len())
	for i := 0; i < p.Len(); i++ {
		v := p.At(i)
		require.True(t, v >= 0 && v < p.Len(), "At(%d) = %d out of range [0, %d)", i, v, p.Len())
		require.False(t, seen[v], "At(%d) = %d repeats", i, v)
		seen[v] = true
	}
}

func TestBijection(t *testing.T) {
	for _, kind := range []Kind{Feistel, Stride, Identity} {
		for _, n := range []int{1, 2, 3, 4, 5, 7, 10, 16, 17, 64, 100, 255, 256, 257, 1000, 4099} {
			p, err := New(kind, n, 42)
			require.NoError(t, err)
			require.Equal(t, n, p.Len())
			assertBijection(t, p)
		}
	}
}

func TestDeterministic(t *testing.T) {
	for _, kind := range []Kind{Feistel, Stride} {
		a, err := New(kind, 1000, 7)
		require.NoError(t, err)
		b, err := New(kind, 1000, 7)
		require.NoError(t, err)
		assert.Equal(t, Slice(a), Slice(b), kind.String())
	}
}

func TestSeedsDiffer(t *testing.T) {
	for _, kind := range []Kind{Feistel, Stride} {
		a, err := New(kind, 1000, 1)
		require.NoError(t, err)
		b, err := New(kind, 1000, 2)
		require.NoError(t, err)
		assert.NotEqual(t, Slice(a), Slice(b), kind.String())
	}
}

func TestFeistelShuffles(t *testing.T) {
	p := NewFeistel(1000, 0)
	var fixed int
	for i := 0; i < p.Len(); i++ {
		if p.At(i) == i {
			fixed++
		}
	}
	assert.Less(t, fixed, 50, "too many fixed points")
}

func TestFillMatchesAt(t *testing.T) {
	for _, n := range []int{1, 3, 31, 33, 500} {
		p := NewFeistel(n, 99)
		got := Slice(p)
		for i, v := range got {
			assert.Equal(t, p.At(i), v, "n=%d i=%d", n, i)
		}
	}
}

func TestIdentity(t *testing.T) {
	p, err := New(Identity, 5, 123)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, Slice(p))
}

func TestEmpty(t *testing.T) {
	for _, kind := range []Kind{Feistel, Stride, Identity} {
		p, err := New(kind, 0, 1)
		require.NoError(t, err)
		assert.Empty(t, Slice(p))
	}
}

func TestNewErrors(t *testing.T) {
	_, err := New(Feistel, -1, 0)
	assert.Error(t, err)
	_, err = New(Kind(42), 10, 0)
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	for _, kind := range []Kind{Feistel, Stride, Identity} {
		got, err := ParseKind(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, got)
	}
	got, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, Feistel, got)
	_, err = ParseKind("random")
	assert.Error(t, err)
}

func BenchmarkFeistelFill(b *testing.B) {
	p := NewFeistel(1<<20, 1)
	dst := make([]int, p.Len())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Fill(p, dst)
	}
}
