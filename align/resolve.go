// Package align implements the pseudoalignment worker (C10) and ordered
// output writer (C11): per-query streaming k-mer resolution against a
// built index, intersection/threshold combination of the resulting color
// sets, and mutex-guarded output with an optional final sort pass.
//
// Grounded on original_source/include/Themisto.hh's AlignerThread (the
// per-thread buffers, get_nonempty_colorset_ids' streaming walk-with-
// rewalk-on-failure, do_intersections' accumulate-then-intersect loop) and
// the threshold-mode semantics of
// integration_tests/reference_implementation/KmerIndex.hh's
// threshold_pseudoalign (per-color running counts compared against a
// relevant-k-mer-count fraction).
package align

import (
	"github.com/themistobio/themisto/boss"
	"github.com/themistobio/themisto/colormap"
	"github.com/themistobio/themisto/kmer"
)

// noColorSet marks a query k-mer window with no matching node.
const noColorSet = -1

// ResolveColorSetIDs fills ids[0:len(seq)-k+1] with the color-set id of
// each k-mer window of seq, or noColorSet where the window doesn't exist
// in g. Only the first mismatched window after a walk failure triggers a
// fresh FindKmer search; consecutive successful walks reuse the previous
// id whenever the walked-to node is non-core, the way
// Themisto.hh's get_nonempty_colorset_ids does.
func ResolveColorSetIDs(g *boss.BOSS, m *colormap.Map, seq []byte, ids []int64) {
	k := g.K()
	n := len(seq) - k + 1
	for i := 0; i < n && i < len(ids); i++ {
		ids[i] = noColorSet
	}
	if n <= 0 {
		return
	}

	idx, node, ok := findFirstMatchingKmer(g, seq, 0, len(seq)-1, k)
	if !ok {
		return
	}
	ids[idx] = colorSetIDOrNone(g, m, node)

	for idx+k-1 < len(seq) {
		if idx+k >= len(seq) {
			break // at the last k-mer of the query
		}
		next, walked := g.Walk(node, kmer.EncodeBase(seq[idx+k]))
		if walked {
			idx++
			node = next
			if !m.IsCore(g, node) && ids[idx-1] != noColorSet {
				ids[idx] = ids[idx-1]
			} else {
				ids[idx] = colorSetIDOrNone(g, m, node)
			}
		} else {
			nextIdx, nextNode, found := findFirstMatchingKmer(g, seq, idx+1, len(seq)-1, k)
			if !found {
				break
			}
			idx, node = nextIdx, nextNode
			ids[idx] = colorSetIDOrNone(g, m, node)
		}
	}
}

func colorSetIDOrNone(g *boss.BOSS, m *colormap.Map, v int) int64 {
	id, ok := m.ColorSetID(g, v)
	if !ok {
		return noColorSet
	}
	return int64(id)
}

// findFirstMatchingKmer scans seq[from..to] (inclusive start positions) for
// the first window of length k that exists in g.
func findFirstMatchingKmer(g *boss.BOSS, seq []byte, from, to, k int) (idx, node int, ok bool) {
	for i := from; i <= to; i++ {
		if i+k-1 > to {
			break
		}
		v, found := g.FindKmer(string(seq[i : i+k]))
		if found {
			return i, v, true
		}
	}
	return 0, 0, false
}
