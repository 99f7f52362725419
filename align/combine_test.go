package align

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/themistobio/themisto/colorset"
)

func buildStore(sets [][]uint64) *colorset.Store {
	b := colorset.NewBuilder()
	for _, s := range sets {
		b.Add(s)
	}
	return b.Finalize()
}

func TestCombineIntersectionNarrowsAcrossDistinctRuns(t *testing.T) {
	store := buildStore([][]uint64{
		{1, 2, 3}, // id 0
		{2, 3, 4}, // id 1
		{2, 5},    // id 2
	})
	// Consecutive repeats of the same id must not be re-intersected, and
	// noColorSet windows must be skipped entirely.
	ids := []int64{0, 0, noColorSet, 1, 2}
	got := CombineIntersection(store, ids)
	assert.Equal(t, []uint64{2}, got)
}

func TestCombineIntersectionStopsEarlyOnEmptyResult(t *testing.T) {
	store := buildStore([][]uint64{
		{1, 2}, // id 0
		{3, 4}, // id 1
	})
	got := CombineIntersection(store, []int64{0, 1})
	assert.Nil(t, got)
}

func TestCombineIntersectionAllNoneYieldsNil(t *testing.T) {
	store := buildStore([][]uint64{{1, 2, 3}})
	got := CombineIntersection(store, []int64{noColorSet, noColorSet})
	assert.Nil(t, got)
}

func TestCombineIntersectionRCUnionsBeforeIntersecting(t *testing.T) {
	store := buildStore([][]uint64{
		{1, 2}, // id 0: forward hit at position 0
		{3},    // id 1: reverse hit at the mirrored position
		{1, 3}, // id 2: forward hit at position 1, already contains both
	})
	// qlen=4, k=3 => n=2 query positions. Position 0 mirrors rc index 1;
	// position 1 mirrors rc index 0.
	fwd := []int64{0, 2}
	rc := []int64{1, noColorSet}
	// position 0: union({1,2}, rc[1]=none) = {1,2}
	// position 1: union({1,3}, rc[0]=id1={3}) = {1,3}
	// intersect {1,2} & {1,3} = {1}
	got := CombineIntersectionRC(store, fwd, rc, 4, 3)
	assert.Equal(t, []uint64{1}, got)
}

func TestCombineIntersectionRCAllNoneYieldsNil(t *testing.T) {
	store := buildStore([][]uint64{{1}})
	fwd := []int64{noColorSet, noColorSet}
	rc := []int64{noColorSet, noColorSet}
	got := CombineIntersectionRC(store, fwd, rc, 4, 3)
	assert.Nil(t, got)
}

func TestCombineThresholdReportsColorsAboveFraction(t *testing.T) {
	store := buildStore([][]uint64{
		{1, 2}, // id 0, run length 3
		{2, 3}, // id 1, run length 1
	})
	// 4 k-mers total: 3 resolve to id0, 1 to id1. relevant = 4.
	// counts: 1 -> 3, 2 -> 3+1=4, 3 -> 1.
	ids := []int64{0, 0, 0, 1}
	res := CombineThreshold(store, ids, Options{Threshold: 0.75, SortHits: true})
	assert.Equal(t, []uint64{1, 2}, res.Colors) // 3/4 and 4/4 both reach >= 0.75
	assert.Equal(t, 4, res.Relevant)
	assert.Equal(t, 4, res.Total)
}

func TestCombineThresholdIgnoresUnknownKmersWhenConfigured(t *testing.T) {
	store := buildStore([][]uint64{{1}})
	ids := []int64{0, 0, noColorSet, noColorSet}

	withUnknown := CombineThreshold(store, ids, Options{Threshold: 1, IgnoreUnknownKmers: false})
	assert.Equal(t, 4, withUnknown.Relevant)
	assert.Nil(t, withUnknown.Colors) // 2/4 < 1.0

	ignoringUnknown := CombineThreshold(store, ids, Options{Threshold: 1, IgnoreUnknownKmers: true})
	assert.Equal(t, 2, ignoringUnknown.Relevant)
	assert.Equal(t, []uint64{1}, ignoringUnknown.Colors) // 2/2 >= 1.0
}

func TestCombineThresholdNoKmersResolvedYieldsEmpty(t *testing.T) {
	store := buildStore([][]uint64{{1}})
	res := CombineThreshold(store, []int64{noColorSet, noColorSet}, Options{Threshold: 0.5, IgnoreUnknownKmers: true})
	assert.Equal(t, 0, res.Relevant)
	assert.Nil(t, res.Colors)
}
