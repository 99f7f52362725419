package align

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themistobio/themisto/boss"
	"github.com/themistobio/themisto/colormap"
	"github.com/themistobio/themisto/kmer"
)

type dirTempProvider struct {
	dir string
	n   int
}

func (p *dirTempProvider) New() (string, error) {
	p.n++
	return filepath.Join(p.dir, fmt.Sprintf("align-run-%04d", p.n)), nil
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

type sliceColorSource struct {
	obs []colormap.NodeColor
	i   int
}

func (s *sliceColorSource) Next() (colormap.NodeColor, bool) {
	if s.i >= len(s.obs) {
		return colormap.NodeColor{}, false
	}
	nc := s.obs[s.i]
	s.i++
	return nc, true
}

// buildIndex constructs a BOSS graph from seq and a colormap where every
// node visited by seq is colored per colorOf.
func buildIndex(t *testing.T, seq string, k int, colorOf func(pos int) int) (*boss.BOSS, *colormap.Map, []int) {
	g := buildGraph(t, seq, k)
	nodeIDs := walkNodeIDs(t, g, seq, k)

	var obs []colormap.NodeColor
	for i, id := range nodeIDs {
		obs = append(obs, colormap.NodeColor{NodeID: id, Color: colorOf(i), Last: i == len(nodeIDs)-1})
	}
	dir := testutil.GetTmpDir()
	m, err := colormap.Build(g, &sliceColorSource{obs: obs}, colormap.BuildOptions{
		Temp: &dirTempProvider{dir: dir},
	})
	require.NoError(t, err)
	return g, m, nodeIDs
}

func TestResolveColorSetIDsSingleColorEverywhere(t *testing.T) {
	k := 3
	seq := "ACGTACGTTGCA"
	g, m, _ := buildIndex(t, seq, k, func(int) int { return 0 })

	ids := make([]int64, len(seq)-k+1)
	ResolveColorSetIDs(g, m, []byte(seq), ids)

	for i, id := range ids {
		require.NotEqual(t, int64(noColorSet), id, "position %d should have resolved", i)
		cs := m.Store().Get(int(id))
		assert.Equal(t, []uint64{0}, cs.ToVec())
	}
}

func TestResolveColorSetIDsReusesPreviousIDOnNonCoreWalk(t *testing.T) {
	k := 3
	seq := "ACGTACGTACGTACGTACGT"
	g, m, nodeIDs := buildIndex(t, seq, k, func(int) int { return 0 })

	ids := make([]int64, len(seq)-k+1)
	ResolveColorSetIDs(g, m, []byte(seq), ids)

	for i, id := range nodeIDs {
		if !m.IsCore(g, id) && i > 0 {
			assert.Equal(t, ids[i-1], ids[i], "non-core node at position %d should reuse the previous id", i)
		}
	}
}

func TestResolveColorSetIDsMarksUnmatchedWindowsAsNone(t *testing.T) {
	k := 3
	seq := "ACGTACGTTGCA"
	g, m, _ := buildIndex(t, seq, k, func(int) int { return 0 })

	// Splice in bases that can never appear in the trained graph so the
	// corresponding k-mer windows fail to resolve, then resume on a
	// genuine suffix of seq.
	query := []byte("ACGTAC" + "TTTTTTTTTTTT" + "TGCA")
	ids := make([]int64, len(query)-k+1)
	ResolveColorSetIDs(g, m, query, ids)

	var sawNone, sawResolved bool
	for _, id := range ids {
		if id == noColorSet {
			sawNone = true
		} else {
			sawResolved = true
		}
	}
	assert.True(t, sawNone, "query contains windows absent from the graph")
	assert.True(t, sawResolved, "query also contains windows present in the graph")
}

func TestResolveColorSetIDsShortQueryYieldsNoWindows(t *testing.T) {
	k := 5
	seq := "ACGTACGTTGCA"
	g, m, _ := buildIndex(t, seq, k, func(int) int { return 0 })

	ids := make([]int64, 4)
	for i := range ids {
		ids[i] = 999 // poison to ensure it's left untouched beyond n
	}
	ResolveColorSetIDs(g, m, []byte("ACG"), ids) // shorter than k
	for _, id := range ids {
		assert.Equal(t, int64(999), id, "no window exists, so ids must be untouched")
	}
}
