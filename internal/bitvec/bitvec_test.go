package bitvec

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankSelect(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	n := 2000
	want := make([]bool, n)
	b := New(n)
	for i := 0; i < n; i++ {
		v := rng.Intn(4) == 0
		want[i] = v
		b.Append(v)
	}
	b.Freeze()

	ones, zeros := 0, 0
	for i := 0; i <= n; i++ {
		r1 := b.Rank1(i)
		r0 := b.Rank0(i)
		assert.Equal(t, r1+r0, i)
		wantR1 := 0
		for j := 0; j < i; j++ {
			if want[j] {
				wantR1++
			}
		}
		assert.Equalf(t, wantR1, r1, "rank1(%d)", i)
	}
	for i, v := range want {
		if v {
			assert.Equal(t, i, b.Select1(ones))
			ones++
		} else {
			assert.Equal(t, i, b.Select0(zeros))
			zeros++
		}
	}
	assert.Equal(t, -1, b.Select1(ones))
	assert.Equal(t, -1, b.Select0(zeros))
	assert.Equal(t, ones, b.Popcount())
}

func TestRoundTrip(t *testing.T) {
	b := New(130)
	for i := 0; i < 130; i++ {
		b.Append(i%7 == 0)
	}
	b.Freeze()
	var buf bytes.Buffer
	_, err := b.WriteTo(&buf)
	require.NoError(t, err)

	b2, err := ReadFrom(&buf)
	require.NoError(t, err)
	assert.Equal(t, b.Len(), b2.Len())
	for i := 0; i < b.Len(); i++ {
		assert.Equal(t, b.Get(i), b2.Get(i))
	}
	assert.Equal(t, b.Popcount(), b2.Popcount())
}

func TestEmpty(t *testing.T) {
	b := New(0)
	b.Freeze()
	assert.Equal(t, 0, b.Rank1(0))
	assert.Equal(t, -1, b.Select1(0))
}
