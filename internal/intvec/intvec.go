// Package intvec implements width-minimal integer vectors: a packed array
// of fixed-width unsigned integers, the width chosen to fit the largest
// stored value. It backs the color-set store's Bs/Ds/F-adjacent arrays and
// the node-to-color-set map's Ids array.
package intvec

import (
	"encoding/binary"
	"io"
	"math/bits"

	"github.com/grailbio/base/errors"
)

// IntVec is an immutable, width-minimal packed array of uint64 values.
type IntVec struct {
	width int // bits per element, 0 < width <= 64
	n     int
	words []uint64
}

// widthFor returns the minimum bit width needed to represent max (0 stays
// width 1 so a zero-length or all-zero vector still has a valid layout).
func widthFor(max uint64) int {
	if max == 0 {
		return 1
	}
	return bits.Len64(max)
}

// Build packs vals into a width-minimal IntVec.
func Build(vals []uint64) *IntVec {
	var max uint64
	for _, v := range vals {
		if v > max {
			max = v
		}
	}
	width := widthFor(max)
	iv := &IntVec{width: width, n: len(vals), words: make([]uint64, (len(vals)*width+63)/64)}
	for i, v := range vals {
		iv.set(i, v)
	}
	return iv
}

func (iv *IntVec) set(i int, v uint64) {
	bitPos := i * iv.width
	wordIdx := bitPos / 64
	bitOff := uint(bitPos % 64)
	mask := uint64(1)<<uint(iv.width) - 1
	if iv.width == 64 {
		mask = ^uint64(0)
	}
	v &= mask
	iv.words[wordIdx] |= v << bitOff
	if bitOff+uint(iv.width) > 64 {
		iv.words[wordIdx+1] |= v >> (64 - bitOff)
	}
}

// Get returns the i-th element.
func (iv *IntVec) Get(i int) uint64 {
	bitPos := i * iv.width
	wordIdx := bitPos / 64
	bitOff := uint(bitPos % 64)
	mask := uint64(1)<<uint(iv.width) - 1
	if iv.width == 64 {
		mask = ^uint64(0)
	}
	v := iv.words[wordIdx] >> bitOff
	if bitOff+uint(iv.width) > 64 {
		v |= iv.words[wordIdx+1] << (64 - bitOff)
	}
	return v & mask
}

// Len returns the number of elements.
func (iv *IntVec) Len() int { return iv.n }

// Width returns the bit width per element.
func (iv *IntVec) Width() int { return iv.width }

// ToSlice materializes all elements.
func (iv *IntVec) ToSlice() []uint64 {
	out := make([]uint64, iv.n)
	for i := range out {
		out[i] = iv.Get(i)
	}
	return out
}

// WriteTo serializes as: width (uint8), n (int64 LE), words (uint64 LE...).
func (iv *IntVec) WriteTo(w io.Writer) (int64, error) {
	var hdr [9]byte
	hdr[0] = byte(iv.width)
	binary.LittleEndian.PutUint64(hdr[1:], uint64(iv.n))
	n, err := w.Write(hdr[:])
	if err != nil {
		return int64(n), errors.E(err, "intvec: write header")
	}
	total := int64(n)
	buf := make([]byte, 8*len(iv.words))
	for i, word := range iv.words {
		binary.LittleEndian.PutUint64(buf[i*8:], word)
	}
	n2, err := w.Write(buf)
	total += int64(n2)
	if err != nil {
		return total, errors.E(err, "intvec: write words")
	}
	return total, nil
}

// ReadFrom deserializes an IntVec written by WriteTo.
func ReadFrom(r io.Reader) (*IntVec, error) {
	var hdr [9]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, errors.E(err, "intvec: read header")
	}
	width := int(hdr[0])
	n := int(binary.LittleEndian.Uint64(hdr[1:]))
	nwords := (n*width + 63) / 64
	buf := make([]byte, 8*nwords)
	if nwords > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errors.E(err, "intvec: read words")
		}
	}
	words := make([]uint64, nwords)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(buf[i*8:])
	}
	return &IntVec{width: width, n: n, words: words}, nil
}
