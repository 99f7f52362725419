package align

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/testutil"
)

func TestAlignerIntersectionModeWritesOneLinePerRead(t *testing.T) {
	k := 3
	seq := "ACGTACGTTGCA"
	g, m, _ := buildIndex(t, seq, k, func(int) int { return 0 })

	dir := testutil.GetTmpDir()
	path := filepath.Join(dir, "out.txt")
	ctx := vcontext.Background()
	w, err := NewWriter(ctx, path, false)
	require.NoError(t, err)

	a := NewAligner(g, m, w, nil, Options{Threshold: 1, SortHits: true})
	a.Process(0, []byte(seq), [8]byte{})
	a.Process(1, []byte("TT"), [8]byte{}) // shorter than k: no colors
	a.Finish()
	require.NoError(t, w.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0 0\n1\n", string(got))
}

func TestAlignerThresholdModeHonorsRelevantFraction(t *testing.T) {
	k := 3
	seq := "ACGTACGTTGCA"
	// Color the first half 0, the second half 1 so no single color covers
	// every k-mer of the whole read.
	half := (len(seq) - k + 1) / 2
	g, m, _ := buildIndex(t, seq, k, func(i int) int {
		if i < half {
			return 0
		}
		return 1
	})

	dir := testutil.GetTmpDir()
	path := filepath.Join(dir, "out.txt")
	ctx := vcontext.Background()
	w, err := NewWriter(ctx, path, false)
	require.NoError(t, err)

	// A low fraction requirement and low threshold should report both colors.
	a := NewAligner(g, m, w, nil, Options{
		Threshold:             0.1,
		RelevantKmersFraction: 0.1,
		SortHits:              true,
	})
	a.Process(0, []byte(seq), [8]byte{})
	a.Finish()
	require.NoError(t, w.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(got), "0 0 1\n")
}

func TestAlignerWritesAuxiliaryInfoLinePerRead(t *testing.T) {
	k := 3
	seq := "ACGTACGTTGCA"
	g, m, _ := buildIndex(t, seq, k, func(int) int { return 0 })

	dir := testutil.GetTmpDir()
	ctx := vcontext.Background()
	w, err := NewWriter(ctx, filepath.Join(dir, "out.txt"), false)
	require.NoError(t, err)
	auxPath := filepath.Join(dir, "aux.txt")
	aux, err := NewWriter(ctx, auxPath, false)
	require.NoError(t, err)

	a := NewAligner(g, m, w, aux, Options{Threshold: 1, SortHits: true})
	a.Process(0, []byte(seq), [8]byte{})
	a.Finish()
	require.NoError(t, w.Close())
	require.NoError(t, aux.Close())

	got, err := os.ReadFile(auxPath)
	require.NoError(t, err)
	assert.Equal(t, "0 10 10\n", string(got))
}
