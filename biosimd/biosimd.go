// Package biosimd provides whole-sequence byte-array operations shared by
// seqio (sequence reading) and align (pseudoalignment): cleaning a raw
// ASCII sequence to upper-case {A,C,G,T} and computing a reverse
// complement. It is adapted from grailbio-bio/biosimd, trimmed to the
// portable, pure-Go operations this index actually exercises — the
// asm-backed variants in grailbio-bio/biosimd optimize .bam nibble-packed
// formats this index has no analog of.
package biosimd

// complementTable maps each ASCII byte to its complement, leaving
// non-base bytes unchanged (CleanASCIISeqInplace is expected to run first
// if canonicalization is required).
var complementTable [256]byte

func init() {
	for i := range complementTable {
		complementTable[i] = byte(i)
	}
	pairs := [][2]byte{{'A', 'T'}, {'C', 'G'}, {'a', 't'}, {'c', 'g'}}
	for _, p := range pairs {
		complementTable[p[0]] = p[1]
		complementTable[p[1]] = p[0]
	}
}

// cleanTable maps every ASCII byte to its canonical upper-case base,
// coercing anything that isn't {A,C,G,T} (case-insensitively) to 'A' —
// non-ACGT bases are coerced to A during indexing.
var cleanTable [256]byte

func init() {
	for i := range cleanTable {
		cleanTable[i] = 'A'
	}
	cleanTable['A'], cleanTable['a'] = 'A', 'A'
	cleanTable['C'], cleanTable['c'] = 'C', 'C'
	cleanTable['G'], cleanTable['g'] = 'G', 'G'
	cleanTable['T'], cleanTable['t'] = 'T', 'T'
}

// CleanASCIISeqInplace upper-cases and coerces seq to strictly {A,C,G,T}
// in place.
func CleanASCIISeqInplace(seq []byte) {
	for i, b := range seq {
		seq[i] = cleanTable[b]
	}
}

// ReverseComp8 writes the reverse complement of src into dst. dst and src
// must have the same length and must not overlap. Unlike
// CleanASCIISeqInplace this does not validate/coerce: callers that need a
// canonical reverse complement should Clean first.
func ReverseComp8(dst, src []byte) {
	n := len(src)
	for i := 0; i < n; i++ {
		dst[i] = complementTable[src[n-1-i]]
	}
}

// IsACGT reports whether b is one of A,C,G,T,a,c,g,t.
func IsACGT(b byte) bool {
	switch b {
	case 'A', 'C', 'G', 'T', 'a', 'c', 'g', 't':
		return true
	}
	return false
}
