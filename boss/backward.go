package boss

// predecessor returns one valid predecessor of node v and the edge label
// used to reach v, or false if v has no incoming edge (v is a root dummy).
//
// The returned character is forced regardless of which in-edge is chosen:
// all in-edges into v share the same label (v's own last character), so
// callers doing backward label reconstruction (NodeLabel) get the correct
// answer no matter which predecessor among several is picked.
func (g *BOSS) predecessor(v int) (src int, label byte, ok bool) {
	lo, _, ok := g.inEdgeRange(v)
	if !ok {
		return 0, 0, false
	}
	return g.edgeSource(lo)
}

// InNeighbors enumerates up to len(Sigma) predececessor (source node, edge
// label) pairs for v, used by unitig extraction to walk all branches into a
// node.
func (g *BOSS) InNeighbors(v int) []InEdge {
	lo, hi, ok := g.inEdgeRange(v)
	if !ok {
		return nil
	}
	out := make([]InEdge, 0, hi-lo+1)
	for r := lo; r <= hi; r++ {
		src, c, ok := g.edgeSource(r)
		if ok {
			out = append(out, InEdge{Source: src, Label: c})
		}
	}
	return out
}

// InEdge is one edge entering a node, identified by its source node and
// the character labeling the edge.
type InEdge struct {
	Source int
	Label  byte
}

// Indegree returns the number of distinct incoming edges to v.
func (g *BOSS) Indegree(v int) int {
	lo, hi, ok := g.inEdgeRange(v)
	if !ok {
		return 0
	}
	return hi - lo + 1
}

// inEdgeRange returns the [lo,hi] Wheeler-rank range of v's incoming edges:
// the same "select1(v) - v" trick as edgeStart, applied to In instead of
// Out, since In marks node boundaries over the identical rank-sorted edge
// index space that destNode/contractRange operate in.
func (g *BOSS) inEdgeRange(v int) (lo, hi int, ok bool) {
	lo = g.in.Select1(v) - v
	var nextMarker int
	if v+1 >= g.NNodes() {
		nextMarker = g.NEdges()
	} else {
		nextMarker = g.in.Select1(v+1) - (v + 1)
	}
	hi = nextMarker - 1
	if hi < lo {
		return 0, 0, false
	}
	return lo, hi, true
}

// edgeSource maps a Wheeler rank r (the same space contractRange/destNode
// use) back to the (source node, label) of the edge at that rank: find
// which character block r falls in via the C array, then use that
// character's rank structure over L to locate r's position in L-order
// (out-edge/source-colex order), and finally Out.rank1 to get the source
// node owning that L position.
func (g *BOSS) edgeSource(r int) (src int, label byte, ok bool) {
	var c byte
	found := false
	for sym := 0; sym < alphabetSize; sym++ {
		if r >= g.c[sym] && r < g.c[sym+1] {
			c = byte(sym)
			found = true
			break
		}
	}
	if !found {
		return 0, 0, false
	}
	j := r - g.c[c] // 0-indexed occurrence of c within L
	p := g.charL[c].Select1(j)
	if p < 0 {
		return 0, 0, false
	}
	// p is an L-index (out-edge order); map it to its owning node the same
	// way destNode maps a Wheeler rank through In: rank1 of the position of
	// the p-th zero bit in Out, less one for the owning node's own marker.
	src = g.out.Rank1(g.out.Select0(p)) - 1
	return src, c, true
}
