package boss

// OutEdge is one edge leaving a node, identified by its destination node and
// the character labeling the edge.
type OutEdge struct {
	Dest  int
	Label byte
}

// Outdegree returns the number of distinct outgoing edges from v.
func (g *BOSS) Outdegree(v int) int {
	lo, hi, ok := g.OutEdgeRange(v)
	if !ok {
		return 0
	}
	return hi - lo + 1
}

// OutNeighbors enumerates v's outgoing (destination, label) pairs in
// ascending character order (the order L already stores them in), used by
// colormap's core-k-mer chain walking.
func (g *BOSS) OutNeighbors(v int) []OutEdge {
	lo, hi, ok := g.OutEdgeRange(v)
	if !ok {
		return nil
	}
	out := make([]OutEdge, 0, hi-lo+1)
	for p := lo; p <= hi; p++ {
		c := g.l[p]
		rank := g.c[c] + g.rankL(p, c)
		out = append(out, OutEdge{Dest: g.destNode(rank), Label: c})
	}
	return out
}

// SoleOutNeighbor returns v's single outgoing neighbor when Outdegree(v) ==
// 1, and false otherwise (dead end or branching).
func (g *BOSS) SoleOutNeighbor(v int) (int, bool) {
	lo, hi, ok := g.OutEdgeRange(v)
	if !ok || hi != lo {
		return 0, false
	}
	c := g.l[lo]
	rank := g.c[c] + g.rankL(lo, c)
	return g.destNode(rank), true
}
