package intvec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGet(t *testing.T) {
	vals := []uint64{0, 1, 2, 5, 17, 255, 256, 1 << 20}
	iv := Build(vals)
	for i, v := range vals {
		assert.Equal(t, v, iv.Get(i))
	}
	assert.Equal(t, len(vals), iv.Len())
	assert.True(t, iv.Width() >= 21)
}

func TestWidthMinimal(t *testing.T) {
	iv := Build([]uint64{0, 1, 3})
	assert.Equal(t, 2, iv.Width())
}

func TestEmpty(t *testing.T) {
	iv := Build(nil)
	assert.Equal(t, 0, iv.Len())
	assert.Empty(t, iv.ToSlice())
}

func TestRoundTrip(t *testing.T) {
	vals := []uint64{9, 8, 7, 6, 1000000, 3, 0}
	iv := Build(vals)
	var buf bytes.Buffer
	_, err := iv.WriteTo(&buf)
	require.NoError(t, err)

	iv2, err := ReadFrom(&buf)
	require.NoError(t, err)
	assert.Equal(t, vals, iv2.ToSlice())
	assert.Equal(t, iv.Width(), iv2.Width())
}
