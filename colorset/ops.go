package colorset

import "encoding/binary"

// View is a borrowed reference to one encoded color set, as stored in a
// Store's B or D buffer: a form tag plus the payload bytes for that form.
type View struct {
	Form    Form
	Payload []byte
}

// Size returns the number of colors in the set.
func (v View) Size() int {
	if v.Form == Bitmap {
		return popcountBytes(v.Payload[minHeader(v.Payload):])
	}
	return len(Decode(v.Form, v.Payload))
}

func minHeader(payload []byte) int {
	if len(payload) < 8 {
		return len(payload)
	}
	return 8
}

func popcountBytes(b []byte) int {
	n := 0
	for _, x := range b {
		for x != 0 {
			n++
			x &= x - 1
		}
	}
	return n
}

// Contains reports whether c is in the set.
func (v View) Contains(c uint64) bool {
	if v.Form == Bitmap {
		return bitmapGet(v.Payload, c)
	}
	for _, x := range decodeDelta(v.Payload) {
		if x == c {
			return true
		}
		if x > c {
			break
		}
	}
	return false
}

// ToVec materializes the sorted, distinct color slice.
func (v View) ToVec() []uint64 { return Decode(v.Form, v.Payload) }

// Intersect implements the four form pairings directly on encoded bytes.
func Intersect(a, b View) (Form, []byte) {
	switch {
	case a.Form == Bitmap && b.Form == Bitmap:
		return Bitmap, intersectBitmapBitmap(a.Payload, b.Payload)
	case a.Form == Delta && b.Form == Bitmap:
		return Delta, intersectDeltaBitmap(a.Payload, b.Payload)
	case a.Form == Bitmap && b.Form == Delta:
		return Bitmap, intersectBitmapDelta(a.Payload, b.Payload)
	default:
		return Delta, intersectDeltaDelta(a.Payload, b.Payload)
	}
}

// Union implements the analogous rule: sparse-sparse merges into a new
// delta array; any pairing touching a bitmap produces a bitmap sized to the
// larger of the two operand lengths.
func Union(a, b View) (Form, []byte) {
	if a.Form == Delta && b.Form == Delta {
		return Delta, unionDeltaDelta(a.Payload, b.Payload)
	}
	return Bitmap, unionAsBitmap(a, b)
}

func intersectBitmapBitmap(a, b []byte) []byte {
	na, nb := bitmapLen(a), bitmapLen(b)
	n := na
	if nb < n {
		n = nb
	}
	abody, bbody := a[8:], b[8:]
	nbytes := (n + 7) / 8
	out := make([]byte, 8+nbytes)
	for i := uint64(0); i < nbytes; i++ {
		out[8+i] = abody[i] & bbody[i]
	}
	if rem := n % 8; rem != 0 && nbytes > 0 {
		out[8+nbytes-1] &= (1 << rem) - 1
	}
	storeLen(out, n)
	return out
}

func intersectDeltaBitmap(delta, bitmap []byte) []byte {
	vals := decodeDelta(delta)
	nb := bitmapLen(bitmap)
	var kept []uint64
	for _, x := range vals {
		if x < nb && bitmapGet(bitmap, x) {
			kept = append(kept, x)
		}
	}
	return encodeDelta(kept)
}

func intersectBitmapDelta(bitmap, delta []byte) []byte {
	nb := bitmapLen(bitmap)
	set := make(map[uint64]bool)
	for _, x := range decodeDelta(delta) {
		set[x] = true
	}
	out := make([]byte, len(bitmap))
	storeLen(out, nb)
	for i := uint64(0); i < nb; i++ {
		if bitmapGet(bitmap, i) && set[i] {
			out[8+i/8] |= 1 << (i % 8)
		}
	}
	return out
}

func intersectDeltaDelta(a, b []byte) []byte {
	av, bv := decodeDelta(a), decodeDelta(b)
	var out []uint64
	i, j := 0, 0
	for i < len(av) && j < len(bv) {
		switch {
		case av[i] < bv[j]:
			i++
		case av[i] > bv[j]:
			j++
		default:
			out = append(out, av[i])
			i++
			j++
		}
	}
	return encodeDelta(out)
}

func unionDeltaDelta(a, b []byte) []byte {
	av, bv := decodeDelta(a), decodeDelta(b)
	out := make([]uint64, 0, len(av)+len(bv))
	i, j := 0, 0
	for i < len(av) && j < len(bv) {
		switch {
		case av[i] < bv[j]:
			out = append(out, av[i])
			i++
		case av[i] > bv[j]:
			out = append(out, bv[j])
			j++
		default:
			out = append(out, av[i])
			i++
			j++
		}
	}
	out = append(out, av[i:]...)
	out = append(out, bv[j:]...)
	return encodeDelta(out)
}

func unionAsBitmap(a, b View) []byte {
	av, bv := a.ToVec(), b.ToVec()
	var m uint64
	for _, x := range av {
		if x+1 > m {
			m = x + 1
		}
	}
	for _, x := range bv {
		if x+1 > m {
			m = x + 1
		}
	}
	if a.Form == Bitmap && bitmapLen(a.Payload) > m {
		m = bitmapLen(a.Payload)
	}
	if b.Form == Bitmap && bitmapLen(b.Payload) > m {
		m = bitmapLen(b.Payload)
	}
	out := encodeBitmap(nil, m)
	for _, x := range av {
		out[8+x/8] |= 1 << (x % 8)
	}
	for _, x := range bv {
		out[8+x/8] |= 1 << (x % 8)
	}
	return out
}

func storeLen(payload []byte, n uint64) { binary.LittleEndian.PutUint64(payload[:8], n) }
