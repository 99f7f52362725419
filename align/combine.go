package align

import (
	"sort"

	"github.com/themistobio/themisto/colorset"
)

// Options configures how one read's per-k-mer color-set ids combine into
// its reported colors.
type Options struct {
	// Threshold selects the combination rule: 1 means intersection mode
	// (every reported color must be present at every relevant k-mer);
	// anything less than 1 means threshold mode (a color is reported once
	// its fraction of relevant k-mers reaches Threshold).
	Threshold float64
	// ReverseComplement, when set, also resolves the reverse-complemented
	// query and combines forward/reverse color sets by union before
	// intersecting across query positions (intersection mode only).
	ReverseComplement bool
	// IgnoreUnknownKmers excludes k-mers absent from the index from the
	// relevant-k-mer denominator in threshold mode.
	IgnoreUnknownKmers bool
	// RelevantKmersFraction is the minimum fraction of the query's k-mers
	// that must be relevant for the read to be reported at all, in
	// threshold mode.
	RelevantKmersFraction float64
	// SortHits sorts each read's reported color ids ascending.
	SortHits bool
}

// CombineIntersection implements the intersection-mode rule of
// AlignerThread::do_intersections_with_legacy_behaviour: walk the distinct,
// consecutive color-set ids in ids, intersecting their decoded sets one at
// a time via colorset.Intersect and stopping as soon as the running
// intersection is empty. Returns nil if no k-mer resolved to a color set.
func CombineIntersection(store *colorset.Store, ids []int64) []uint64 {
	var form colorset.Form
	var payload []byte
	have := false
	for i, id := range ids {
		if id == noColorSet {
			continue
		}
		if i > 0 && ids[i-1] == id {
			continue
		}
		v := store.Get(int(id))
		if !have {
			form, payload = v.Form, v.Payload
			have = true
			continue
		}
		form, payload = colorset.Intersect(colorset.View{Form: form, Payload: payload}, v)
		if len(colorset.Decode(form, payload)) == 0 {
			return nil
		}
	}
	if !have {
		return nil
	}
	return colorset.Decode(form, payload)
}

// CombineIntersectionRC implements do_intersections' reverse-complement
// variant: for each forward query position i, union the forward color set
// at i with the reverse color set at the mirrored position qlen-k-i, then
// intersect these per-position unions across the whole query. fwd and rc
// must both be sized qlen-k+1, as produced by ResolveColorSetIDs against
// the forward and reverse-complemented query respectively.
func CombineIntersectionRC(store *colorset.Store, fwd, rc []int64, qlen, k int) []uint64 {
	n := qlen - k + 1
	rcAt := func(i int) int64 {
		j := qlen - k - i
		if j < 0 || j >= len(rc) {
			return noColorSet
		}
		return rc[j]
	}

	var form colorset.Form
	var payload []byte
	have := false
	var prevF, prevR int64 = noColorSet, noColorSet
	for i := 0; i < n && i < len(fwd); i++ {
		f, r := fwd[i], rcAt(i)
		if f == noColorSet && r == noColorSet {
			prevF, prevR = f, r
			continue
		}
		if i > 0 && f == prevF && r == prevR {
			continue
		}
		prevF, prevR = f, r

		var uForm colorset.Form
		var uPayload []byte
		switch {
		case f == noColorSet:
			v := store.Get(int(r))
			uForm, uPayload = v.Form, v.Payload
		case r == noColorSet:
			v := store.Get(int(f))
			uForm, uPayload = v.Form, v.Payload
		default:
			uForm, uPayload = colorset.Union(store.Get(int(f)), store.Get(int(r)))
		}

		if !have {
			form, payload = uForm, uPayload
			have = true
			continue
		}
		form, payload = colorset.Intersect(colorset.View{Form: form, Payload: payload}, colorset.View{Form: uForm, Payload: uPayload})
		if len(colorset.Decode(form, payload)) == 0 {
			return nil
		}
	}
	if !have {
		return nil
	}
	return colorset.Decode(form, payload)
}

// RelevantTotal reports the "relevant" and "total" k-mer counts spec.md §6's
// auxiliary info file records for one read's resolved ids: total is always
// len(ids); relevant is the count of resolved (non-noColorSet) ids when
// ignoreUnknown is set, else every k-mer counts as relevant.
func RelevantTotal(ids []int64, ignoreUnknown bool) (relevant, total int) {
	total = len(ids)
	if !ignoreUnknown {
		return total, total
	}
	for _, id := range ids {
		if id != noColorSet {
			relevant++
		}
	}
	return relevant, total
}

// ThresholdResult is the outcome of CombineThreshold.
type ThresholdResult struct {
	Colors     []uint64
	LongestRun map[uint64]int
	Relevant   int
	Total      int
}

// CombineThreshold implements KmerIndex.hh's threshold_pseudoalign: ids is
// scanned in runs of equal value; a run of length l contributes l to every
// color in that run's decoded set (and, unless IgnoreUnknownKmers, l to the
// relevant-k-mer count even when the run is noColorSet). A color is
// reported once its running count divided by the relevant-k-mer count
// reaches opts.Threshold.
func CombineThreshold(store *colorset.Store, ids []int64, opts Options) ThresholdResult {
	n := len(ids)
	counts := map[uint64]int{}
	longest := map[uint64]int{}

	i := 0
	for i < n {
		j := i
		for j < n && ids[j] == ids[i] {
			j++
		}
		runLen := j - i
		if id := ids[i]; id != noColorSet {
			for _, c := range store.Get(int(id)).ToVec() {
				counts[c] += runLen
				if runLen > longest[c] {
					longest[c] = runLen
				}
			}
		}
		i = j
	}
	relevant, _ := RelevantTotal(ids, opts.IgnoreUnknownKmers)

	res := ThresholdResult{LongestRun: longest, Relevant: relevant, Total: n}
	if relevant == 0 {
		return res
	}
	for c, cnt := range counts {
		if float64(cnt)/float64(relevant) >= opts.Threshold {
			res.Colors = append(res.Colors, c)
		}
	}
	if opts.SortHits {
		sort.Slice(res.Colors, func(a, b int) bool { return res.Colors[a] < res.Colors[b] })
	}
	return res
}
