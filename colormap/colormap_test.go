package colormap

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themistobio/themisto/boss"
	"github.com/themistobio/themisto/kmer"
)

type dirTempProvider struct {
	dir string
	n   int
}

func (p *dirTempProvider) New() (string, error) {
	p.n++
	return filepath.Join(p.dir, fmt.Sprintf("colormap-run-%04d", p.n)), nil
}

type sliceKmerSource struct {
	kmers []kmer.Kmer
	i     int
}

func (s *sliceKmerSource) Next() (kmer.Kmer, bool) {
	if s.i >= len(s.kmers) {
		return kmer.Kmer{}, false
	}
	k := s.kmers[s.i]
	s.i++
	return k, true
}

func kplus1mers(seq string, k int) []kmer.Kmer {
	var out []kmer.Kmer
	for i := 0; i+k+1 <= len(seq); i++ {
		out = append(out, kmer.FromString(seq[i:i+k+1], k+1))
	}
	return out
}

func buildGraph(t *testing.T, seq string, k int) *boss.BOSS {
	dir := testutil.GetTmpDir()
	src := &sliceKmerSource{kmers: kplus1mers(seq, k)}
	g, err := boss.Build(k, src, boss.BuildOptions{
		RAMBudget:  4 << 20,
		Threads:    2,
		MergeFanIn: 4,
		Temp:       &dirTempProvider{dir: dir},
	})
	require.NoError(t, err)
	return g
}

type sliceColorSource struct {
	obs []NodeColor
	i   int
}

func (s *sliceColorSource) Next() (NodeColor, bool) {
	if s.i >= len(s.obs) {
		return NodeColor{}, false
	}
	nc := s.obs[s.i]
	s.i++
	return nc, true
}

// walkNodeIDs returns the node visited for each k-mer window of seq, in
// order, by following FindKmer on the first window and Walk thereafter.
func walkNodeIDs(t *testing.T, g *boss.BOSS, seq string, k int) []int {
	var ids []int
	v, ok := g.FindKmer(seq[:k])
	require.True(t, ok)
	ids = append(ids, v)
	for i := k; i < len(seq); i++ {
		w, ok := g.Walk(v, kmer.EncodeBase(seq[i]))
		require.True(t, ok)
		ids = append(ids, w)
		v = w
	}
	return ids
}

func TestBuildLinearChainSingleColor(t *testing.T) {
	k := 3
	seq := "ACGTACGT"
	g := buildGraph(t, seq, k)
	nodeIDs := walkNodeIDs(t, g, seq, k)

	var obs []NodeColor
	for i, id := range nodeIDs {
		obs = append(obs, NodeColor{NodeID: id, Color: 0, Last: i == len(nodeIDs)-1})
	}

	dir := testutil.GetTmpDir()
	m, err := Build(g, &sliceColorSource{obs: obs}, BuildOptions{
		Temp: &dirTempProvider{dir: dir},
	})
	require.NoError(t, err)

	for _, id := range nodeIDs {
		cs, ok := m.ColorSet(g, id)
		require.True(t, ok)
		assert.Equal(t, []uint64{0}, cs.ToVec())
	}
}

func TestBuildMarksColorBoundaryCore(t *testing.T) {
	k := 3
	seq := "ACGTACGTTGCA"
	g := buildGraph(t, seq, k)
	nodeIDs := walkNodeIDs(t, g, seq, k)

	// Color the first half 0, the second half 1: the node where the color
	// changes, and its predecessor, must end up with distinct color sets.
	// The node at the change (CGT) also occurs earlier under color 0, so its
	// set is {0, 1}.
	half := len(nodeIDs) / 2
	var obs []NodeColor
	for i, id := range nodeIDs {
		color := 0
		if i >= half {
			color = 1
		}
		obs = append(obs, NodeColor{NodeID: id, Color: color, Last: i == len(nodeIDs)-1})
	}

	dir := testutil.GetTmpDir()
	m, err := Build(g, &sliceColorSource{obs: obs}, BuildOptions{
		Temp: &dirTempProvider{dir: dir},
	})
	require.NoError(t, err)

	csBefore, ok := m.ColorSet(g, nodeIDs[half-1])
	require.True(t, ok)
	csAfter, ok := m.ColorSet(g, nodeIDs[half])
	require.True(t, ok)
	assert.NotEqual(t, csBefore.ToVec(), csAfter.ToVec())
	assert.Equal(t, []uint64{0}, csBefore.ToVec())
	assert.Equal(t, []uint64{0, 1}, csAfter.ToVec())
}

func TestSamplingDistanceBoundsChainLength(t *testing.T) {
	k := 3
	seq := "ACGTACGTACGTACGTACGTACGT" // long single-color linear run
	g := buildGraph(t, seq, k)
	nodeIDs := walkNodeIDs(t, g, seq, k)

	var obs []NodeColor
	for i, id := range nodeIDs {
		obs = append(obs, NodeColor{NodeID: id, Color: 0, Last: i == len(nodeIDs)-1})
	}

	dir := testutil.GetTmpDir()
	m, err := Build(g, &sliceColorSource{obs: obs}, BuildOptions{
		Temp:             &dirTempProvider{dir: dir},
		SamplingDistance: 3,
	})
	require.NoError(t, err)

	// Every node must still resolve to the same color set, regardless of
	// sampling: ColorSetID is required to succeed everywhere along the
	// chain, and chains between core nodes must never exceed D.
	var sinceCore int
	for _, id := range nodeIDs {
		cs, ok := m.ColorSet(g, id)
		require.True(t, ok)
		assert.Equal(t, []uint64{0}, cs.ToVec())
		if m.core.Get(id) {
			sinceCore = 0
		} else {
			sinceCore++
			assert.LessOrEqual(t, sinceCore, 3)
		}
	}
}

func TestWriteToReadFromRoundTrip(t *testing.T) {
	k := 3
	seq := "ACGTACGTTGCA"
	g := buildGraph(t, seq, k)
	nodeIDs := walkNodeIDs(t, g, seq, k)

	var obs []NodeColor
	for i, id := range nodeIDs {
		obs = append(obs, NodeColor{NodeID: id, Color: i % 2, Last: i == len(nodeIDs)-1})
	}

	dir := testutil.GetTmpDir()
	m, err := Build(g, &sliceColorSource{obs: obs}, BuildOptions{
		Temp: &dirTempProvider{dir: dir},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)

	loaded, err := ReadFrom(&buf)
	require.NoError(t, err)
	assert.Equal(t, m.LargestColor(), loaded.LargestColor())
	assert.Equal(t, m.TotalColorSetLength(), loaded.TotalColorSetLength())

	for _, id := range nodeIDs {
		want, ok := m.ColorSet(g, id)
		require.True(t, ok)
		got, ok := loaded.ColorSet(g, id)
		require.True(t, ok)
		assert.Equal(t, want.ToVec(), got.ToVec())
	}
}
