// Package colormap implements the node-to-color-set map (C8): it assigns
// each non-dummy SBWT node a color-set id, sharing ids along colex runs via
// a core-k-mer sampling scheme so only a fraction of nodes need an explicit
// id stored.
//
// There is no close teacher analog for core-k-mer sampling (grailbio-bio
// has no de Bruijn graph code at all); this package is grounded directly on
// spec.md §4.8's own algorithmic text, the same way boss's C3/C4/C5 are.
// The storage shape below — ids addressable through a rank-supported
// bitvector plus a width-minimal integer vector — mirrors
// original_source/include/new_new_coloring.hh's New_Color_Set_Storage
// (bitmap_starts/deltas_starts addressed via a form bitvector and rank),
// generalized one layer up from color-set bytes to color-set ids.
package colormap

import (
	"encoding/binary"
	"io"

	"github.com/grailbio/base/errors"

	"github.com/themistobio/themisto/boss"
	"github.com/themistobio/themisto/colorset"
	"github.com/themistobio/themisto/emsort"
	"github.com/themistobio/themisto/internal/bitvec"
	"github.com/themistobio/themisto/internal/intvec"
)

// DefaultSamplingDistance is D, the color-set sampling distance (spec.md
// §4.8's "default 10"): the maximum length of an unambiguous non-core
// chain.
const DefaultSamplingDistance = 10

// NodeColor is one (node, color) observation: node-id is a real (non-dummy)
// BOSS node, reached while scanning one input sequence's k-mers; Last marks
// the final k-mer of that sequence (condition 1 of the core-k-mer
// definition).
type NodeColor struct {
	NodeID int
	Color  int
	Last   bool
}

// Source streams (node, color) observations for Build, one per matched
// k-mer position of every colored input sequence (including repeats: the
// same node may be observed under several colors, or the same color
// several times for the same node).
type Source interface {
	Next() (NodeColor, bool)
}

// BuildOptions configures Build's external sort pass and core sampling.
type BuildOptions struct {
	// SamplingDistance is D; zero selects DefaultSamplingDistance.
	SamplingDistance int
	RAMBudget        int64
	Threads          int
	MergeFanIn       int
	Temp             emsort.TempProvider
}

func (o *BuildOptions) samplingDistance() int {
	if o.SamplingDistance <= 0 {
		return DefaultSamplingDistance
	}
	return o.SamplingDistance
}

// Map is the immutable, serializable node-to-color-set map: a Core
// bitvector (with rank support), an Ids integer vector indexed by rank, and
// the underlying color-set Store the ids address into.
type Map struct {
	core          *bitvec.BitVector
	ids           *intvec.IntVec
	store         *colorset.Store
	largestColor  int
	totalColorLen int
}

// Store returns the underlying color-set store (C7).
func (m *Map) Store() *colorset.Store { return m.store }

// LargestColor returns the largest color observed during Build.
func (m *Map) LargestColor() int { return m.largestColor }

// TotalColorSetLength returns the sum, over every distinct stored color
// set, of its element count. It is stored in the serialized header; the
// `stats` command does not print it.
func (m *Map) TotalColorSetLength() int { return m.totalColorLen }

// SizeBits reports the bit size of Core and Ids: the "stats" command's
// per-structure breakdown of the node-to-color-set map.
func (m *Map) SizeBits() (core, ids int64) {
	return int64(m.core.Len()), int64(m.ids.Len()) * int64(m.ids.Width())
}

// colorNodeRecord: nodeID (uint64 LE), color (uint64 LE) — sorted
// primarily by nodeID, secondarily by color, so a single forward scan both
// groups by node and de-duplicates colors within a node.
const colorRecordSize = 16

func encodeColorRecord(nodeID, color uint64) []byte {
	buf := make([]byte, colorRecordSize)
	binary.LittleEndian.PutUint64(buf[0:8], nodeID)
	binary.LittleEndian.PutUint64(buf[8:16], color)
	return buf
}

func decodeColorRecord(buf []byte) (nodeID, color uint64) {
	return binary.LittleEndian.Uint64(buf[0:8]), binary.LittleEndian.Uint64(buf[8:16])
}

func colorRecordCompare(a, b []byte) int {
	an, ac := decodeColorRecord(a)
	bn, bc := decodeColorRecord(b)
	switch {
	case an != bn:
		if an < bn {
			return -1
		}
		return 1
	case ac != bc:
		if ac < bc {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// Build runs the C8 algorithm: sort (node, color) observations by node id,
// collapse into per-node sorted-distinct color lists, determine core nodes,
// deduplicate color sets across core nodes into a colorset.Store, and
// assemble the Core/Ids structures.
func Build(g *boss.BOSS, src Source, opts BuildOptions) (*Map, error) {
	if opts.Temp == nil {
		return nil, errors.E("colormap: BuildOptions.Temp is required")
	}
	n := g.NNodes()
	d := opts.samplingDistance()

	colorLists, last, largestColor, err := collectColorLists(n, src, opts)
	if err != nil {
		return nil, err
	}

	core := make([]bool, n)
	soleSucc := make([]int, n) // -1 if none
	for v := 0; v < n; v++ {
		if g.NodeLength(v) != g.K() {
			continue // dummy node: never core, never addressed by lookup
		}
		s, ok := g.SoleOutNeighbor(v)
		if ok {
			soleSucc[v] = s
		} else {
			soleSucc[v] = -1
		}
		switch {
		case last[v], g.Indegree(v) >= 2, g.Outdegree(v) >= 2, soleSucc[v] < 0:
			core[v] = true
		default:
			core[v] = !sameColors(colorLists[v], colorLists[soleSucc[v]])
		}
	}

	capPeriodicAnchors(g, core, soleSucc, d)

	store := colorset.NewBuilder()
	seen := make(map[string]int)
	ids := make([]uint64, 0)
	corebv := bitvec.New(n)
	totalLen := 0
	for v := 0; v < n; v++ {
		isReal := g.NodeLength(v) == g.K()
		corebv.Append(isReal && core[v])
		if !isReal || !core[v] {
			continue
		}
		colors := colorLists[v]
		key := colorKey(colors)
		id, ok := seen[key]
		if !ok {
			id = store.Add(colors)
			seen[key] = id
			totalLen += len(colors)
		}
		ids = append(ids, uint64(id))
	}
	corebv.Freeze()

	return &Map{
		core:          corebv,
		ids:           intvec.Build(ids),
		store:         store.Finalize(),
		largestColor:  largestColor,
		totalColorLen: totalLen,
	}, nil
}

func sameColors(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func colorKey(colors []uint64) string {
	buf := make([]byte, 8*len(colors))
	for i, c := range colors {
		binary.LittleEndian.PutUint64(buf[8*i:], c)
	}
	return string(buf)
}

// collectColorLists sorts all (node, color) observations externally, then
// collapses them into one sorted-distinct color list per node.
func collectColorLists(n int, src Source, opts BuildOptions) (colorLists [][]uint64, last []bool, largestColor int, err error) {
	sorter := emsort.New(emsort.Options{
		Kind:       emsort.Fixed,
		RecordSize: colorRecordSize,
		Comparator: colorRecordCompare,
		RAMBudget:  opts.RAMBudget,
		Threads:    opts.Threads,
		MergeFanIn: opts.MergeFanIn,
		Temp:       opts.Temp,
	})
	last = make([]bool, n)
	any := false
	for {
		nc, ok := src.Next()
		if !ok {
			break
		}
		any = true
		if nc.NodeID < 0 || nc.NodeID >= n {
			return nil, nil, 0, errors.E("colormap: node id out of range", nc.NodeID)
		}
		if nc.Color > largestColor {
			largestColor = nc.Color
		}
		if nc.Last {
			last[nc.NodeID] = true
		}
		sorter.Add(encodeColorRecord(uint64(nc.NodeID), uint64(nc.Color)))
	}
	colorLists = make([][]uint64, n)
	if !any {
		return colorLists, last, largestColor, nil
	}
	path, err := sorter.Finish()
	if err != nil {
		return nil, nil, 0, err
	}
	rd, err := emsort.OpenReader(path, emsort.Fixed, colorRecordSize)
	if err != nil {
		return nil, nil, 0, err
	}
	defer rd.Close() // nolint: errcheck

	curNode := -1
	var curColors []uint64
	flush := func() {
		if curNode >= 0 {
			colorLists[curNode] = curColors
		}
	}
	for {
		buf, ok := rd.Next()
		if !ok {
			break
		}
		nodeID, color := decodeColorRecord(buf)
		if int(nodeID) != curNode {
			flush()
			curNode = int(nodeID)
			curColors = nil
		}
		if len(curColors) == 0 || curColors[len(curColors)-1] != color {
			curColors = append(curColors, color)
		}
	}
	flush()
	return colorLists, last, largestColor, nil
}

// capPeriodicAnchors bounds every remaining non-core chain to length ≤ D by
// marking every D-th node along it core too, even where the color set
// doesn't change — spec.md §4.8 condition 3's sampling-distance rule,
// layered on top of the "color differs from successor" rule that already
// handles branch points, sequence ends and genuine color transitions. The
// distance computed here is to the nearest node that was already core
// before this pass (memoized with cycle-breaking for the degenerate
// all-identical-color cycle case, e.g. a circular input with no distinct
// colors and no branch).
func capPeriodicAnchors(g *boss.BOSS, core []bool, soleSucc []int, d int) {
	n := len(core)
	const (
		unvisited = 0
		inProg    = 1
		done      = 2
	)
	state := make([]byte, n)
	dist := make([]int, n)

	var resolve func(v int) int
	resolve = func(v int) int {
		if core[v] {
			state[v] = done
			dist[v] = 0
			return 0
		}
		if state[v] == done {
			return dist[v]
		}
		if state[v] == inProg {
			// Cycle with no core node anywhere on it: break it here.
			core[v] = true
			state[v] = done
			dist[v] = 0
			return 0
		}
		state[v] = inProg
		s := soleSucc[v]
		var sd int
		if s < 0 {
			sd = 0 // unreachable: dead ends are always core already
		} else {
			sd = resolve(s)
		}
		dist[v] = sd + 1
		state[v] = done
		return dist[v]
	}

	for v := 0; v < n; v++ {
		if g.NodeLength(v) != g.K() || core[v] {
			continue
		}
		resolve(v)
	}
	for v := 0; v < n; v++ {
		if g.NodeLength(v) != g.K() || core[v] {
			continue
		}
		if dist[v]%d == 0 {
			core[v] = true
		}
	}
}

// IsCore reports whether v is itself a core node (as opposed to needing a
// forward walk to resolve its color set).
func (m *Map) IsCore(g *boss.BOSS, v int) bool {
	return g.NodeLength(v) == g.K() && m.core.Get(v)
}

// ColorSetID resolves v's color-set id by walking forward via sole
// successors until a core node is reached (bounded by n+1 steps as a
// corruption guard; genuine chains are always ≤ D).
func (m *Map) ColorSetID(g *boss.BOSS, v int) (int, bool) {
	n := g.NNodes()
	for step := 0; step <= n; step++ {
		if v < 0 || v >= n {
			return 0, false
		}
		if g.NodeLength(v) == g.K() && m.core.Get(v) {
			idx := m.core.Rank1(v)
			return int(m.ids.Get(idx)), true
		}
		s, ok := g.SoleOutNeighbor(v)
		if !ok {
			return 0, false
		}
		v = s
	}
	return 0, false
}

// ColorSet returns the decoded color-set view for node v.
func (m *Map) ColorSet(g *boss.BOSS, v int) (colorset.View, bool) {
	id, ok := m.ColorSetID(g, v)
	if !ok {
		return colorset.View{}, false
	}
	return m.store.Get(id), true
}

// WriteTo serializes the map: a 16-byte header (largestColor, totalColorLen
// as two int64 LE fields), then Core, Ids and the color-set Store.
func (m *Map) WriteTo(w io.Writer) (int64, error) {
	var hdr [16]byte
	binary.LittleEndian.PutUint64(hdr[0:8], uint64(m.largestColor))
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(m.totalColorLen))
	n, err := w.Write(hdr[:])
	total := int64(n)
	if err != nil {
		return total, errors.E(err, "colormap: write header")
	}
	n2, err := m.core.WriteTo(w)
	total += n2
	if err != nil {
		return total, errors.E(err, "colormap: write core")
	}
	n3, err := m.ids.WriteTo(w)
	total += n3
	if err != nil {
		return total, errors.E(err, "colormap: write ids")
	}
	n4, err := m.store.WriteTo(w)
	total += n4
	if err != nil {
		return total, errors.E(err, "colormap: write store")
	}
	return total, nil
}

// ReadFrom deserializes a Map written by WriteTo.
func ReadFrom(r io.Reader) (*Map, error) {
	var hdr [16]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, errors.E(err, "colormap: read header")
	}
	largestColor := int(binary.LittleEndian.Uint64(hdr[0:8]))
	totalColorLen := int(binary.LittleEndian.Uint64(hdr[8:16]))
	core, err := bitvec.ReadFrom(r)
	if err != nil {
		return nil, errors.E(err, "colormap: read core")
	}
	ids, err := intvec.ReadFrom(r)
	if err != nil {
		return nil, errors.E(err, "colormap: read ids")
	}
	store, err := colorset.ReadFrom(r)
	if err != nil {
		return nil, errors.E(err, "colormap: read store")
	}
	return &Map{core: core, ids: ids, store: store, largestColor: largestColor, totalColorLen: totalColorLen}, nil
}
