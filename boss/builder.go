package boss

import (
	"github.com/grailbio/base/errors"

	"github.com/themistobio/themisto/emsort"
	"github.com/themistobio/themisto/internal/bitvec"
	"github.com/themistobio/themisto/kmer"
)

// Edgeset is the accumulated set of outgoing and incoming edge
// characters observed for one node during construction: bit i (0..3) of
// Out/In means an edge labeled kmer.DecodeBase(i) is present.
//
// For dummy (shorter-than-k) nodes other than the empty root, In's bit 0 is
// repurposed to mark the single synthetic "$" incoming edge padding
// supplies; the root gets no in-bit and keeps indegree 0. Dummy nodes are
// distinguishable from real nodes purely by their length, so there is no
// ambiguity with a genuine incoming 'A' edge.
type Edgeset struct {
	Out, In uint8
}

func (e Edgeset) outdegree() int { return popcount4(e.Out) }
func (e Edgeset) indegree() int  { return popcount4(e.In) }

func popcount4(b uint8) int {
	n := 0
	for i := 0; i < alphabetSize; i++ {
		if b&(1<<uint(i)) != 0 {
			n++
		}
	}
	return n
}

func setBit(b *uint8, c byte) { *b |= 1 << uint(c&3) }

// KmerSource yields the (k+1)-mer stream feeding the edge-set builder.
// Every Kmer it yields must have capacity exactly k+1: capacity fixes the
// bit layout colex comparison relies on (see package kmer's doc comment),
// so prefix/suffix/dummy records derived from one input must all keep the
// same capacity for their Marshal'd byte length, and hence record size in
// the external sorter, to stay consistent.
//
// Callers that want reverse complements included supply them as additional
// Next() values; the builder does not generate them itself.
type KmerSource interface {
	// Next returns the next (k+1)-mer, or ok=false at end of stream.
	Next() (kmer.Kmer, bool)
}

// BuildOptions configures Build's external-memory sort passes.
type BuildOptions struct {
	RAMBudget  int64
	Threads    int
	MergeFanIn int
	Temp       emsort.TempProvider
}

// record layout for the sort passes: a fixed-width marshaled kmer.Kmer of
// capacity k+1 (the capacity every Kmer flowing through this package
// shares, per KmerSource's doc comment), followed by one byte packing Out
// (high nibble) / In (low nibble).
func recordSize(k int) int {
	capWords := (k + 1 + 31) / 32
	if capWords == 0 {
		capWords = 1
	}
	return 3 + 8*capWords + 1
}

func encodeRecord(km kmer.Kmer, es Edgeset) []byte {
	buf := km.Marshal()
	return append(buf, es.Out<<4|es.In&0xF)
}

func decodeRecord(buf []byte) (kmer.Kmer, Edgeset, error) {
	km, err := kmer.Unmarshal(buf[:len(buf)-1])
	if err != nil {
		return kmer.Kmer{}, Edgeset{}, err
	}
	b := buf[len(buf)-1]
	return km, Edgeset{Out: b >> 4, In: b & 0xF}, nil
}

func kmerRecordCompare(a, b []byte) int {
	ka, errA := decodeRecordKmer(a)
	kb, errB := decodeRecordKmer(b)
	if errA != nil || errB != nil {
		panic(errors.E("boss: corrupt sort record"))
	}
	if ka.Equal(kb) {
		return 0
	}
	if ka.Less(kb) {
		return -1
	}
	return 1
}

func decodeRecordKmer(buf []byte) (kmer.Kmer, error) {
	return kmer.Unmarshal(buf[:len(buf)-1])
}

// nodeRec is one collapsed (node, edgeset) pair, materialized in memory
// after a sort+collapse pass. Graphs built by this package are expected to
// fit the collapsed node table in RAM even when the (k+1)-mer stream
// itself does not; only the upstream sort runs externally.
type nodeRec struct {
	km kmer.Kmer
	es Edgeset
}

// Build runs the C3 algorithm: emit prefix/suffix records for every
// (k+1)-mer, sort and collapse them, synthesize dummy padding for nodes
// with no incoming edge, re-sort and collapse again, then emit the BOSS
// bitvectors and edge-label string in a single final scan.
func Build(k int, src KmerSource, opts BuildOptions) (*BOSS, error) {
	if opts.Temp == nil {
		return nil, errors.E("boss: BuildOptions.Temp is required")
	}
	recSize := recordSize(k)

	first, err := emitPass(k, recSize, src, opts)
	if err != nil {
		return nil, err
	}
	if len(first) == 0 {
		return emptyBOSS(k), nil
	}

	padded := addDummyPadding(k, first)

	second, err := resortAndCollapse(recSize, padded, opts)
	if err != nil {
		return nil, err
	}

	hasDummy := false
	for _, nr := range second {
		if nr.km.Len() < k {
			hasDummy = true
			break
		}
	}
	if !hasDummy {
		second = append([]nodeRec{{km: kmer.New(k + 1)}}, second...)
	}

	return emitBOSS(k, second), nil
}

func emptyBOSS(k int) *BOSS {
	g := &BOSS{
		k:       k,
		in:      bitvec.New(1),
		out:     bitvec.New(1),
		l:       nil,
		nodeLen: []uint8{0},
	}
	g.in.Append(true)
	g.in.Freeze()
	g.out.Append(true)
	g.out.Freeze()
	g.buildAuxiliary()
	return g
}

// emitPass streams (k+1)-mers from src through the external sorter, sorts
// the prefix/suffix records, and collapses runs of colex-equal k-mers by
// OR-ing their edgesets into one in-memory table.
func emitPass(k, recSize int, src KmerSource, opts BuildOptions) ([]nodeRec, error) {
	sorter := emsort.New(emsort.Options{
		Kind:       emsort.Fixed,
		RecordSize: recSize,
		Comparator: kmerRecordCompare,
		RAMBudget:  opts.RAMBudget,
		Threads:    opts.Threads,
		MergeFanIn: opts.MergeFanIn,
		Temp:       opts.Temp,
	})

	any := false
	for {
		x, ok := src.Next()
		if !ok {
			break
		}
		any = true
		prefix := x.Clone()
		prefix.DropRight()
		suffix := x.Clone()
		last := x.Last()
		first := x.First()
		suffix.DropLeft()

		var outEs Edgeset
		setBit(&outEs.Out, last)
		sorter.Add(encodeRecord(prefix, outEs))

		var inEs Edgeset
		setBit(&inEs.In, first)
		sorter.Add(encodeRecord(suffix, inEs))
	}
	if !any {
		return nil, nil
	}
	path, err := sorter.Finish()
	if err != nil {
		return nil, err
	}
	return collapseSortedRuns(recSize, path)
}

func collapseSortedRuns(recSize int, path string) ([]nodeRec, error) {
	recs, err := readAllRecords(recSize, path)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	var out []nodeRec
	cur := recs[0]
	for _, nr := range recs[1:] {
		if cur.km.Equal(nr.km) {
			cur.es.Out |= nr.es.Out
			cur.es.In |= nr.es.In
			continue
		}
		out = append(out, cur)
		cur = nr
	}
	out = append(out, cur)
	return out, nil
}

func readAllRecords(recSize int, path string) ([]nodeRec, error) {
	rd, err := emsort.OpenReader(path, emsort.Fixed, recSize)
	if err != nil {
		return nil, err
	}
	defer rd.Close()
	var out []nodeRec
	for {
		buf, ok := rd.Next()
		if !ok {
			break
		}
		km, es, err := decodeRecord(buf)
		if err != nil {
			return nil, err
		}
		out = append(out, nodeRec{km: km, es: es})
	}
	return out, nil
}

// addDummyPadding synthesizes dummy-node padding: every node with no
// incoming edge gets a chain of shorter dummy predecessors, one per dropped
// trailing character, down to the empty k-mer.
func addDummyPadding(k int, nodes []nodeRec) []nodeRec {
	out := make([]nodeRec, 0, len(nodes)*2)
	out = append(out, nodes...)
	for _, nr := range nodes {
		if nr.es.indegree() > 0 {
			continue
		}
		// v itself gains a genuine incoming edge from its own (k-1)-prefix
		// dummy: the backward character is v's own first base, same formula
		// the real prefix/suffix pairing above uses (in-bit = source's first
		// character). Without this, total indegree across the graph would
		// fall one short of total outdegree once the dummy chain's out-edge
		// is counted, breaking the rank/select destination mapping.
		var vIn Edgeset
		setBit(&vIn.In, nr.km.Get(0))
		out = append(out, nodeRec{km: nr.km.Clone(), es: vIn})

		cur := nr.km.Clone()
		for j := k - 1; j >= 0; j-- {
			appended := nr.km.Get(j)
			cur.DropRight()
			var es Edgeset
			if j > 0 {
				es.In = 1 // synthetic "$" mark, reusing the A-in slot; the empty root gets none
			}
			setBit(&es.Out, appended)
			out = append(out, nodeRec{km: cur.Clone(), es: es})
		}
	}
	return out
}

func resortAndCollapse(recSize int, nodes []nodeRec, opts BuildOptions) ([]nodeRec, error) {
	sorter := emsort.New(emsort.Options{
		Kind:       emsort.Fixed,
		RecordSize: recSize,
		Comparator: kmerRecordCompare,
		RAMBudget:  opts.RAMBudget,
		Threads:    opts.Threads,
		MergeFanIn: opts.MergeFanIn,
		Temp:       opts.Temp,
	})
	for _, nr := range nodes {
		sorter.Add(encodeRecord(nr.km, nr.es))
	}
	path, err := sorter.Finish()
	if err != nil {
		return nil, err
	}
	return collapseSortedRuns(recSize, path)
}

// emitBOSS is the final scan: one distinct node at a time, in ascending
// colex order, appended to In/Out/L.
func emitBOSS(k int, nodes []nodeRec) *BOSS {
	in := bitvec.New(len(nodes) * 2)
	out := bitvec.New(len(nodes) * 2)
	var l []byte
	nodeLen := make([]uint8, len(nodes))

	for i, nr := range nodes {
		nodeLen[i] = uint8(nr.km.Len())

		in.Append(true)
		for b := 0; b < nr.es.indegree(); b++ {
			in.Append(false)
		}

		out.Append(true)
		for c := byte(0); c < alphabetSize; c++ {
			if nr.es.Out&(1<<c) != 0 {
				l = append(l, c)
			}
		}
		outdeg := nr.es.outdegree()
		for b := 0; b < outdeg; b++ {
			out.Append(false)
		}
	}
	in.Freeze()
	out.Freeze()

	g := &BOSS{k: k, in: in, out: out, l: l, nodeLen: nodeLen}
	g.buildAuxiliary()
	return g
}
