// Package boss implements the succinct Wheeler-graph representation of the
// colored de Bruijn graph (the SBWT): a compressed edge list L plus two
// unary bitvectors In/Out marking node boundaries, together with the
// C-array that lets a single rank on L locate an edge's destination node.
//
// The rank/select machinery is internal/bitvec; the "wavelet tree over L"
// is realized as four per-character bitvectors (one per base) rather than
// a binary wavelet tree, since the alphabet is fixed at {A,C,G,T} — a real
// wavelet tree buys nothing at alphabet size 4 over one rank/select
// structure per symbol, and the result is the same O(1)-ish rank(pos, c).
package boss

import (
	"encoding/binary"
	"io"

	"github.com/grailbio/base/errors"

	"github.com/themistobio/themisto/internal/bitvec"
	"github.com/themistobio/themisto/kmer"
)

const alphabetSize = 4

// BOSS is an immutable succinct de Bruijn graph over k-mers of length k
// (including dummy, shorter-than-k source nodes used to root branches with
// no other predecessor).
type BOSS struct {
	k int

	in  *bitvec.BitVector // one 1-bit then indegree 0-bits per node
	out *bitvec.BitVector // one 1-bit then outdegree 0-bits per node
	l   []byte            // 2-bit edge labels, out-edge (colex source) order

	// charL[c] marks, over the same index space as l, positions where
	// l[i] == c; it is the per-character rank/select structure C5 needs for
	// backward traversal (predecessor lookup), and also backs forward
	// rank(pos, c) queries used by walk/contractRange.
	charL [alphabetSize]*bitvec.BitVector

	// c[ch] = number of edges whose label is < ch (a length alphabetSize+1
	// prefix-sum array; c[alphabetSize] == len(l)).
	c [alphabetSize + 1]int

	// nodeLen[v] is the length, in bases, of node v's label: k for regular
	// nodes, < k for dummy source-side padding nodes.
	nodeLen []uint8
}

// K returns the de Bruijn graph order.
func (g *BOSS) K() int { return g.k }

// NNodes returns the number of nodes, rank1(In, |In|).
func (g *BOSS) NNodes() int { return g.in.Popcount() }

// NEdges returns the number of edges (len(L)).
func (g *BOSS) NEdges() int { return len(g.l) }

// NodeLength returns the label length, in bases, of node v.
func (g *BOSS) NodeLength(v int) int { return int(g.nodeLen[v]) }

// edgeStart returns the position in L of node v's first outgoing edge, or,
// for v == NNodes(), len(L) (the sentinel end position). This is the
// "p - v" trick: Out.Select1(v) is the position of node v's marker 1-bit,
// and exactly v ones precede it, so the zeros (edges) preceding it number
// p - v.
func (g *BOSS) edgeStart(v int) int {
	if v >= g.NNodes() {
		return len(g.l)
	}
	p := g.out.Select1(v)
	return p - v
}

// OutEdgeRange returns the [lo, hi] (inclusive) positions in L of v's
// outgoing edges, and false if v has no outgoing edges.
func (g *BOSS) OutEdgeRange(v int) (lo, hi int, ok bool) {
	lo = g.edgeStart(v)
	hi = g.edgeStart(v+1) - 1
	if hi < lo {
		return 0, 0, false
	}
	return lo, hi, true
}

func (g *BOSS) rankL(pos int, c byte) int { return g.charL[c].Rank1(pos) }

// destNode maps a Wheeler (destination-sorted) edge rank to its node id:
// the marker 1-bits before In's rank-th zero include the owning node's own
// marker, so their count is the node id plus one.
func (g *BOSS) destNode(rank int) int {
	p := g.in.Select0(rank)
	return g.in.Rank1(p) - 1
}

// contractRange generalizes Walk to a node range [lo,hi]: it returns the
// range of destination nodes reachable by a single c-edge from some node in
// [lo,hi]. Because Wheeler graphs sort edges so that same-label edges
// preserve source colex order in their destinations, the result is itself
// a contiguous node range.
func (g *BOSS) contractRange(lo, hi int, c byte) (int, int, bool) {
	elo := g.edgeStart(lo)
	ehi := g.edgeStart(hi+1) - 1
	if ehi < elo {
		return 0, 0, false
	}
	before := g.rankL(elo, c)
	after := g.rankL(ehi+1, c)
	if after == before {
		return 0, 0, false
	}
	rankLo := g.c[c] + before
	rankHi := g.c[c] + after - 1
	return g.destNode(rankLo), g.destNode(rankHi), true
}

// Walk follows the outgoing edge labeled c from node v, returning the
// destination node, or false if v has no such edge.
func (g *BOSS) Walk(v int, c byte) (int, bool) {
	lo, hi, ok := g.contractRange(v, v, c)
	if !ok {
		return 0, false
	}
	return lo, hi == lo
}

// FindKmer locates the node labeled exactly s, coercing non-ACGT bases to
// 'A' the way kmer.EncodeBase does. Matching proceeds left to right: each
// character c of s contracts the range to the destinations of its c-edges,
// so after i characters the range holds the nodes whose labels end with
// s[:i].
func (g *BOSS) FindKmer(s string) (int, bool) {
	lo, hi := 0, g.NNodes()-1
	if lo > hi {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		c := kmer.EncodeBase(s[i])
		nlo, nhi, ok := g.contractRange(lo, hi, c)
		if !ok {
			return 0, false
		}
		lo, hi = nlo, nhi
	}
	if lo != hi {
		return 0, false
	}
	return lo, true
}

// NodeLabel reconstructs node v's label by walking backward edges
// NodeLength(v) times, prepending the recovered character each step.
// Source-side dummy nodes (length < k) stop the walk early with whatever
// suffix has been recovered so far.
func (g *BOSS) NodeLabel(v int) string {
	n := g.NodeLength(v)
	buf := make([]byte, n)
	cur := v
	for i := n - 1; i >= 0; i-- {
		u, c, ok := g.predecessor(cur)
		if !ok {
			return string(buf[i+1:])
		}
		buf[i] = kmer.DecodeBase(c)
		cur = u
	}
	return string(buf)
}

// WriteTo persists the BOSS structure: k, nodeLen, in/out bitvectors and
// L bytes. The per-character rank structures are not serialized; ReadFrom
// rebuilds them from L, since they are pure functions of L.
func (g *BOSS) WriteTo(w io.Writer) (int64, error) {
	var hdr [9]byte
	binary.LittleEndian.PutUint32(hdr[:4], uint32(g.k))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(g.nodeLen)))
	n, err := w.Write(hdr[:])
	total := int64(n)
	if err != nil {
		return total, errors.E(err, "boss: write header")
	}
	if _, err := w.Write(g.nodeLen); err != nil {
		return total, errors.E(err, "boss: write nodeLen")
	}
	total += int64(len(g.nodeLen))
	n2, err := g.in.WriteTo(w)
	total += n2
	if err != nil {
		return total, errors.E(err, "boss: write in")
	}
	n3, err := g.out.WriteTo(w)
	total += n3
	if err != nil {
		return total, errors.E(err, "boss: write out")
	}
	var lhdr [8]byte
	binary.LittleEndian.PutUint64(lhdr[:], uint64(len(g.l)))
	n4, err := w.Write(lhdr[:])
	total += int64(n4)
	if err != nil {
		return total, errors.E(err, "boss: write L header")
	}
	n5, err := w.Write(g.l)
	total += int64(n5)
	if err != nil {
		return total, errors.E(err, "boss: write L")
	}
	return total, nil
}

// ReadFrom rebuilds a BOSS graph, including the derived per-character rank
// structures and C array.
func ReadFrom(r io.Reader) (*BOSS, error) {
	var hdr [9]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, errors.E(err, "boss: read header")
	}
	k := int(binary.LittleEndian.Uint32(hdr[:4]))
	nNodes := int(binary.LittleEndian.Uint32(hdr[4:8]))
	nodeLen := make([]byte, nNodes)
	if nNodes > 0 {
		if _, err := io.ReadFull(r, nodeLen); err != nil {
			return nil, errors.E(err, "boss: read nodeLen")
		}
	}
	in, err := bitvec.ReadFrom(r)
	if err != nil {
		return nil, errors.E(err, "boss: read in")
	}
	out, err := bitvec.ReadFrom(r)
	if err != nil {
		return nil, errors.E(err, "boss: read out")
	}
	var lhdr [8]byte
	if _, err := io.ReadFull(r, lhdr[:]); err != nil {
		return nil, errors.E(err, "boss: read L header")
	}
	nl := int(binary.LittleEndian.Uint64(lhdr[:]))
	l := make([]byte, nl)
	if nl > 0 {
		if _, err := io.ReadFull(r, l); err != nil {
			return nil, errors.E(err, "boss: read L")
		}
	}
	g := &BOSS{k: k, in: in, out: out, l: l, nodeLen: nodeLen}
	g.buildAuxiliary()
	return g, nil
}

// SizeBits reports the bit size of each top-level structure the "stats"
// command prints: L packed at 2 bits/edge (alphabet size 4), In and Out at
// their logical bitvector lengths, and C as its fixed array of
// alphabetSize+1 64-bit counters.
func (g *BOSS) SizeBits() (l, in, out, c int64) {
	l = int64(len(g.l)) * 2
	in = int64(g.in.Len())
	out = int64(g.out.Len())
	c = int64(len(g.c)) * 64
	return
}

func (g *BOSS) buildAuxiliary() {
	var counts [alphabetSize]int
	for i := range g.charL {
		g.charL[i] = bitvec.New(len(g.l))
	}
	for _, c := range g.l {
		for sym := 0; sym < alphabetSize; sym++ {
			g.charL[sym].Append(byte(sym) == c)
		}
		counts[c]++
	}
	for _, bv := range g.charL {
		bv.Freeze()
	}
	sum := 0
	for c := 0; c < alphabetSize; c++ {
		g.c[c] = sum
		sum += counts[c]
	}
	g.c[alphabetSize] = sum
}
