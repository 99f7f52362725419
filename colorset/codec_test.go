package colorset

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]uint64{
		nil,
		{0},
		{5},
		{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, // dense -> bitmap
		{1, 1000000},                  // sparse -> delta
		{3, 7, 19, 1000},
	}
	for _, colors := range cases {
		form, payload := Encode(colors)
		got := Decode(form, payload)
		assert.Equal(t, colors, got, "colors=%v form=%v", colors, form)
	}
}

func TestEncodePicksDenseForm(t *testing.T) {
	colors := make([]uint64, 0, 20)
	for i := uint64(0); i < 20; i++ {
		colors = append(colors, i)
	}
	form, _ := Encode(colors)
	assert.Equal(t, Bitmap, form)
}

func TestEncodePicksSparseForm(t *testing.T) {
	colors := []uint64{1, 1000000}
	form, _ := Encode(colors)
	assert.Equal(t, Delta, form)
}

func TestIntersectAllPairings(t *testing.T) {
	dense := []uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	sparse := []uint64{2, 5, 9, 50}
	want := []uint64{2, 5, 9}

	bForm, bPayload := Encode(dense)
	sForm, sPayload := Encode(sparse)
	require.Equal(t, Bitmap, bForm)
	require.Equal(t, Delta, sForm)

	bb := View{Form: bForm, Payload: bPayload}
	ss := View{Form: sForm, Payload: sPayload}

	f1, p1 := Intersect(bb, bb)
	assert.Equal(t, dense, Decode(f1, p1))

	f2, p2 := Intersect(ss, bb)
	assert.Equal(t, want, Decode(f2, p2))

	f3, p3 := Intersect(bb, ss)
	assert.Equal(t, want, Decode(f3, p3))

	f4, p4 := Intersect(ss, ss)
	assert.Equal(t, sparse, Decode(f4, p4))
}

func TestUnion(t *testing.T) {
	a := []uint64{1, 3, 5}
	b := []uint64{2, 3, 4}
	want := []uint64{1, 2, 3, 4, 5}

	af, ap := Encode(a)
	bf, bp := Encode(b)
	form, payload := Union(View{af, ap}, View{bf, bp})
	assert.Equal(t, want, Decode(form, payload))
}

func TestStoreRoundTrip(t *testing.T) {
	bld := NewBuilder()
	id0 := bld.Add([]uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
	id1 := bld.Add([]uint64{2, 1000})
	id2 := bld.Add([]uint64{42})
	store := bld.Finalize()

	assert.Equal(t, []uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, store.Get(id0).ToVec())
	assert.Equal(t, []uint64{2, 1000}, store.Get(id1).ToVec())
	assert.Equal(t, []uint64{42}, store.Get(id2).ToVec())

	var buf bytes.Buffer
	_, err := store.WriteTo(&buf)
	require.NoError(t, err)

	loaded, err := ReadFrom(&buf)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, loaded.Get(id0).ToVec())
	assert.Equal(t, []uint64{2, 1000}, loaded.Get(id1).ToVec())
	assert.Equal(t, []uint64{42}, loaded.Get(id2).ToVec())
}
