// Package kmer implements the fixed-capacity, colexicographically
// comparable k-mer value.
//
// Each base is packed into 2 bits, the way fusion/kmer.go packs a forward
// k-mer into a uint64; the difference here is that Themisto k-mers can
// exceed 32 bases (K_MAX up to 255), so the packed representation is a
// slice of 64-bit words rather than a single uint64, and the type carries
// its own length so colex order and A-padding semantics fall out of plain
// big-integer comparison.
//
// Bit layout. A character's distance from the RIGHT end of the string
// (d = 0 for the last character, increasing leftward) maps to a FIXED bit
// position within the capacity-sized word array: d = 0 always occupies
// bit-pair position capacity - 1, the highest one the capacity covers,
// regardless of the string's current length. Concretely, the character at start-index idx of a length-k
// string sits at bit-pair position (capacity - k + idx). This is what
// makes a single big-integer comparison of the word arrays implement colex
// order directly: two k-mers that agree on their overlapping suffix compare
// equal in every bit they both occupy, and the unused low bit-pairs of the
// shorter one (positions further left than it has characters for) are
// zero, i.e. implicit 'A', exactly the left-padding semantics colex order
// calls for. One consequence: appending/dropping a character on the RIGHT
// shifts every other character's fixed position, so those operations cost
// O(capacity); appending/dropping on the LEFT only touches the
// newly-freed or newly-claimed low slot and is O(1).
package kmer

import (
	"encoding/binary"

	"github.com/grailbio/base/errors"
)

// MaxCapacity is the largest K_MAX this package supports (K_MAX is typically
// {32, 128, 255}).
const MaxCapacity = 255

const basesPerWord = 32 // 2 bits/base, 64 bits/word

// asciiToCode maps an input byte to its 2-bit code. Lowercase is accepted
// (upper-cased implicitly by the mapping); anything else maps to 'A' (code
// 0); non-ACGT bases are coerced to A during indexing.
var asciiToCode [256]byte

// codeToASCII is the inverse mapping, used by String/node-label
// reconstruction.
var codeToASCII = [4]byte{'A', 'C', 'G', 'T'}

func init() {
	asciiToCode['A'], asciiToCode['a'] = 0, 0
	asciiToCode['C'], asciiToCode['c'] = 1, 1
	asciiToCode['G'], asciiToCode['g'] = 2, 2
	asciiToCode['T'], asciiToCode['t'] = 3, 3
}

// EncodeBase maps an ASCII base character to its 2-bit code, coercing
// anything outside {A,C,G,T,a,c,g,t} to 'A'.
func EncodeBase(ch byte) byte { return asciiToCode[ch] }

// DecodeBase maps a 2-bit code back to its ASCII base character.
func DecodeBase(code byte) byte { return codeToASCII[code&3] }

// Kmer is a fixed-capacity packed sequence over {A,C,G,T}; see the package
// doc for the bit layout that makes colex comparison a plain integer
// compare.
type Kmer struct {
	words    []uint64
	capacity int // in bases
	length   uint8
}

// New creates a zero-length Kmer with the given capacity, in bases.
func New(capacity int) Kmer {
	if capacity < 0 || capacity > MaxCapacity {
		panic(errors.E("kmer: capacity out of range", capacity))
	}
	nWords := (capacity + basesPerWord - 1) / basesPerWord
	if nWords == 0 {
		nWords = 1
	}
	return Kmer{words: make([]uint64, nWords), capacity: capacity}
}

// FromString builds a Kmer of the given string, coercing non-ACGT
// characters to 'A'. capacity must be >= len(s).
func FromString(s string, capacity int) Kmer {
	k := New(capacity)
	for i := 0; i < len(s); i++ {
		k.AppendRight(EncodeBase(s[i]))
	}
	return k
}

// Len returns the number of bases currently stored.
func (k Kmer) Len() int { return int(k.length) }

// Capacity returns the maximum number of bases this Kmer can hold.
func (k Kmer) Capacity() int { return k.capacity }

// slot returns the fixed bit-pair position (word, bit offset) for the slot
// d positions from the right end (d=0 is the last character).
func (k Kmer) slotForDistance(d int) (word, off int) {
	pos := k.capacity - 1 - d
	return pos / basesPerWord, (pos % basesPerWord) * 2
}

// slotForIndex returns the bit-pair position for the character at
// start-index idx within the current (length k.length) string.
func (k Kmer) slotForIndex(idx int) (word, off int) {
	d := int(k.length) - 1 - idx
	return k.slotForDistance(d)
}

// Get returns the 2-bit code at start-index i (0-indexed from the left).
func (k Kmer) Get(i int) byte {
	w, off := k.slotForIndex(i)
	return byte((k.words[w] >> uint(off)) & 3)
}

// Set overwrites the code at start-index i, which must be < Len().
func (k *Kmer) Set(i int, c byte) {
	w, off := k.slotForIndex(i)
	k.words[w] &^= uint64(3) << uint(off)
	k.words[w] |= uint64(c&3) << uint(off)
}

// First returns the leftmost (start-index 0) base code. Panics if empty.
func (k Kmer) First() byte { return k.Get(0) }

// Last returns the rightmost base code. Panics if empty.
func (k Kmer) Last() byte { return k.Get(int(k.length) - 1) }

// shiftDownOne moves every occupied bit-pair down by one slot (towards bit
// position 0), discarding whatever was in the single lowest slot and
// zero-filling the newly vacated single highest slot. Used by AppendRight
// to make room for a new top character.
func (k *Kmer) shiftDownOne() {
	for i := 0; i < len(k.words); i++ {
		lo := k.words[i] >> 2
		var carry uint64
		if i+1 < len(k.words) {
			carry = k.words[i+1] << 62
		}
		k.words[i] = lo | carry
	}
}

// shiftUpOne moves every occupied bit-pair up by one slot (towards the top),
// discarding whatever was in the single highest slot and zero-filling the
// newly vacated lowest slot. Used by DropRight.
func (k *Kmer) shiftUpOne() {
	for i := len(k.words) - 1; i >= 0; i-- {
		hi := k.words[i] << 2
		var carry uint64
		if i > 0 {
			carry = k.words[i-1] >> 62
		}
		k.words[i] = hi | carry
	}
}

// AppendRight appends c as the new rightmost (last, distance-0) character.
// O(capacity): every existing character moves one slot further from the
// (fixed) top.
func (k *Kmer) AppendRight(c byte) {
	if int(k.length) >= k.capacity {
		panic(errors.E("kmer: capacity exceeded"))
	}
	k.shiftDownOne()
	k.length++
	k.Set(int(k.length)-1, c)
}

// AppendLeft inserts c as the new leftmost character. O(1): it only claims
// the single newly-available low slot.
func (k *Kmer) AppendLeft(c byte) {
	if int(k.length) >= k.capacity {
		panic(errors.E("kmer: capacity exceeded"))
	}
	k.length++
	k.Set(0, c)
}

// DropLeft removes the leftmost character. O(1): it only frees the single
// lowest occupied slot.
func (k *Kmer) DropLeft() {
	if k.length == 0 {
		panic(errors.E("kmer: DropLeft on empty Kmer"))
	}
	w, off := k.slotForIndex(0)
	k.words[w] &^= uint64(3) << uint(off)
	k.length--
}

// DropRight removes the rightmost character. O(capacity): its slot is
// cleared, then every remaining character moves one slot closer to the
// (fixed) top to refill it.
func (k *Kmer) DropRight() {
	if k.length == 0 {
		panic(errors.E("kmer: DropRight on empty Kmer"))
	}
	w, off := k.slotForIndex(int(k.length) - 1)
	k.words[w] &^= uint64(3) << uint(off)
	k.length--
	k.shiftUpOne()
}

// Clone returns an independent copy.
func (k Kmer) Clone() Kmer {
	words := make([]uint64, len(k.words))
	copy(words, k.words)
	return Kmer{words: words, capacity: k.capacity, length: k.length}
}

// Equal reports whether k and o are identical k-mers (same length, same
// content). Requires matching capacity, as Less does.
func (k Kmer) Equal(o Kmer) bool {
	if k.length != o.length {
		return false
	}
	for i := range k.words {
		if k.words[i] != o.words[i] {
			return false
		}
	}
	return true
}

// Less implements colex order: "<" iff k sorts before o. Shorter k-mers
// that otherwise agree on the overlapping suffix sort smaller.
// REQUIRES k and o share the same capacity, which always holds in
// practice: one index uses a single, globally fixed K_MAX. Because both
// operands are top-anchored (distance-0 always at bit-pair position
// capacity - 1) a mismatching word decides the order immediately,
// with no alignment/shifting step: the word arrays are already
// right-aligned at the top by construction, and
// unused low bit-pairs of the shorter operand are zero, giving the desired
// implicit-left-A-padding tie semantics for free.
func (k Kmer) Less(o Kmer) bool {
	for i := len(k.words) - 1; i >= 0; i-- {
		if k.words[i] != o.words[i] {
			return k.words[i] < o.words[i]
		}
	}
	return k.length < o.length
}

// String decodes the Kmer back to its ASCII representation.
func (k Kmer) String() string {
	buf := make([]byte, k.length)
	for i := 0; i < int(k.length); i++ {
		buf[i] = DecodeBase(k.Get(i))
	}
	return string(buf)
}

// Marshal serializes the Kmer as: length (1 byte), capacity (2 bytes LE),
// then the packed words (8 bytes LE each).
func (k Kmer) Marshal() []byte {
	buf := make([]byte, 3+8*len(k.words))
	buf[0] = k.length
	binary.LittleEndian.PutUint16(buf[1:], uint16(k.capacity))
	for i, w := range k.words {
		binary.LittleEndian.PutUint64(buf[3+8*i:], w)
	}
	return buf
}

// Unmarshal parses bytes produced by Marshal.
func Unmarshal(buf []byte) (Kmer, error) {
	if len(buf) < 3 {
		return Kmer{}, errors.E("kmer: truncated buffer")
	}
	length := buf[0]
	capacity := int(binary.LittleEndian.Uint16(buf[1:]))
	k := New(capacity)
	if len(buf) < 3+8*len(k.words) {
		return Kmer{}, errors.E("kmer: truncated buffer")
	}
	k.length = length
	for i := range k.words {
		k.words[i] = binary.LittleEndian.Uint64(buf[3+8*i:])
	}
	return k, nil
}

// ReverseComplement returns the reverse complement of k, with the same
// capacity.
func (k Kmer) ReverseComplement() Kmer {
	out := New(k.capacity)
	n := int(k.length)
	for i := 0; i < n; i++ {
		c := k.Get(n - 1 - i)
		out.AppendRight(3 - c)
	}
	return out
}
