package kmer

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendDropRoundTrip(t *testing.T) {
	k := New(8)
	for _, c := range "ACGTACGT" {
		k.AppendRight(EncodeBase(byte(c)))
	}
	assert.Equal(t, "ACGTACGT", k.String())
	k.DropLeft()
	assert.Equal(t, "CGTACGT", k.String())
	k.AppendLeft(EncodeBase('A'))
	assert.Equal(t, "ACGTACGT", k.String())
	k.DropRight()
	assert.Equal(t, "ACGTACG", k.String())
}

func TestColexOrder(t *testing.T) {
	strs := []string{"AAAA", "AAAC", "ACAA", "CAAA", "A", "AA", "AAA", ""}
	kmers := make([]Kmer, len(strs))
	for i, s := range strs {
		kmers[i] = FromString(s, 8)
	}
	sort.Slice(kmers, func(i, j int) bool { return kmers[i].Less(kmers[j]) })
	got := make([]string, len(kmers))
	for i, k := range kmers {
		got[i] = k.String()
	}
	// Colex: compare from the right; shorter wins ties (implicit A-padding).
	want := []string{"", "A", "AA", "AAA", "AAAA", "CAAA", "ACAA", "AAAC"}
	assert.Equal(t, want, got)
}

func TestEqual(t *testing.T) {
	a := FromString("ACGT", 8)
	b := FromString("ACGT", 8)
	c := FromString("ACGG", 8)
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestMarshalRoundTrip(t *testing.T) {
	k := FromString("ACGTACGTAC", 32)
	buf := k.Marshal()
	k2, err := Unmarshal(buf)
	require.NoError(t, err)
	assert.True(t, k.Equal(k2))
	assert.Equal(t, k.String(), k2.String())
}

func TestReverseComplement(t *testing.T) {
	k := FromString("ACGT", 8)
	rc := k.ReverseComplement()
	assert.Equal(t, "ACGT", rc.String())
	k2 := FromString("AACCGGTTA", 16)
	assert.Equal(t, "TAACCGGTT", k2.ReverseComplement().String())
}

func TestCoercion(t *testing.T) {
	k := FromString("ACgtN", 8)
	assert.Equal(t, "ACGTA", k.String())
}
