// Package colorset implements the per-node color-set encoding (adaptive
// bitmap vs. delta-gap) and the concatenated multi-set store addressable by
// color-set id.
//
// The two representations mirror circular.Bitmap's packed-word approach for
// the dense case and intvec's width-minimal packing for the sparse case.
// Intersections read a bitmap operand in place from its encoded bytes and
// decode only the delta operand; unions decode both operands into color
// lists before building the result.
package colorset

import (
	"bytes"
	"encoding/binary"
	"math/bits"

	"github.com/themistobio/themisto/internal/intvec"
)

// Form selects which of the two encodings a color set uses.
type Form byte

const (
	Bitmap Form = 0
	Delta  Form = 1
)

// Encode picks a representation for colors (sorted, distinct, non-negative)
// per the density rule: bitmap if m+1 <= s*ceil(log2(m+1)), else delta gaps.
func Encode(colors []uint64) (Form, []byte) {
	if len(colors) == 0 {
		return Bitmap, encodeBitmap(nil, 0)
	}
	m := colors[len(colors)-1]
	s := uint64(len(colors))
	if (m+1) <= s*uint64(ceilLog2(m+1)) {
		return Bitmap, encodeBitmap(colors, m+1)
	}
	return Delta, encodeDelta(colors)
}

// Decode reconstructs the sorted, distinct color slice from an encoded
// payload.
func Decode(form Form, payload []byte) []uint64 {
	if form == Bitmap {
		return decodeBitmap(payload)
	}
	return decodeDelta(payload)
}

func ceilLog2(x uint64) int {
	if x <= 1 {
		return 0
	}
	return bits.Len64(x - 1)
}

// Bitmap payload: 8-byte LE bit count, then ceil(nbits/8) packed bytes (bit i
// of color i, little-endian within each byte).
func encodeBitmap(colors []uint64, nbits uint64) []byte {
	nbytes := (nbits + 7) / 8
	out := make([]byte, 8+nbytes)
	binary.LittleEndian.PutUint64(out[:8], nbits)
	for _, c := range colors {
		out[8+c/8] |= 1 << (c % 8)
	}
	return out
}

func decodeBitmap(payload []byte) []uint64 {
	if len(payload) < 8 {
		return nil
	}
	nbits := binary.LittleEndian.Uint64(payload[:8])
	body := payload[8:]
	var out []uint64
	for i := uint64(0); i < nbits; i++ {
		if body[i/8]&(1<<(i%8)) != 0 {
			out = append(out, i)
		}
	}
	return out
}

func bitmapLen(payload []byte) uint64 {
	if len(payload) < 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(payload[:8])
}

func bitmapGet(payload []byte, i uint64) bool {
	if i >= bitmapLen(payload) {
		return false
	}
	return payload[8+i/8]&(1<<(i%8)) != 0
}

// Delta payload: the first element absolute, the rest successive gaps,
// packed width-minimal via intvec and length-prefixed by intvec.WriteTo
// itself (intvec is self-delimiting).
func encodeDelta(colors []uint64) []byte {
	vals := make([]uint64, len(colors))
	prev := uint64(0)
	for i, c := range colors {
		if i == 0 {
			vals[i] = c
		} else {
			vals[i] = c - prev
		}
		prev = c
	}
	iv := intvec.Build(vals)
	var buf bytes.Buffer
	_, _ = iv.WriteTo(&buf)
	return buf.Bytes()
}

func decodeDelta(payload []byte) []uint64 {
	if len(payload) == 0 {
		return nil
	}
	iv, err := intvec.ReadFrom(bytes.NewReader(payload))
	if err != nil || iv.Len() == 0 {
		return nil
	}
	out := make([]uint64, iv.Len())
	var sum uint64
	for i := 0; i < iv.Len(); i++ {
		if i == 0 {
			sum = iv.Get(0)
		} else {
			sum += iv.Get(i)
		}
		out[i] = sum
	}
	return out
}
