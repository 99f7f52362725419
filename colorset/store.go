package colorset

import (
	"encoding/binary"
	"io"

	"github.com/grailbio/base/errors"

	"github.com/themistobio/themisto/internal/bitvec"
	"github.com/themistobio/themisto/internal/intvec"
)

// Builder accumulates color sets in the order they are assigned ids, then
// Finalize packs them into an immutable Store.
type Builder struct {
	b []byte // concatenated bitmap payloads
	d []byte // concatenated delta payloads
	bs []uint64
	ds []uint64
	form []bool // form[i] true iff set i is a bitmap
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// Add assigns the next color-set id to colors (sorted, distinct,
// non-negative) and returns that id.
func (bld *Builder) Add(colors []uint64) int {
	form, payload := Encode(colors)
	id := len(bld.form)
	bld.form = append(bld.form, form == Bitmap)
	if form == Bitmap {
		bld.bs = append(bld.bs, uint64(len(bld.b)))
		bld.b = append(bld.b, payload...)
	} else {
		bld.ds = append(bld.ds, uint64(len(bld.d)))
		bld.d = append(bld.d, payload...)
	}
	return id
}

// Finalize appends the B/D sentinels, packs Bs/Ds/F into width-minimal
// structures, and builds F's rank support.
func (bld *Builder) Finalize() *Store {
	bs := append(append([]uint64{}, bld.bs...), uint64(len(bld.b)))
	ds := append(append([]uint64{}, bld.ds...), uint64(len(bld.d)))
	f := bitvec.New(len(bld.form))
	for _, isBitmap := range bld.form {
		f.Append(isBitmap)
	}
	f.Freeze()
	return &Store{
		b:  append([]byte{}, bld.b...),
		d:  append([]byte{}, bld.d...),
		bs: intvec.Build(bs),
		ds: intvec.Build(ds),
		f:  f,
		n:  len(bld.form),
	}
}

// Store is the immutable, serializable color-set store: concatenated
// bitmap payloads B, concatenated delta payloads D, their per-set start
// offsets Bs/Ds (sentinel-terminated), and a form bitvector F with rank
// support mapping a color-set id to its slot within B or D.
type Store struct {
	b, d   []byte
	bs, ds *intvec.IntVec
	f      *bitvec.BitVector
	n      int
}

// NumSets returns the number of distinct color sets stored.
func (s *Store) NumSets() int { return s.n }

// SizeBits reports the bit size of B, D and F: the "stats" command's
// per-structure breakdown of the color-set store.
func (s *Store) SizeBits() (b, d, f int64) {
	return int64(len(s.b)) * 8, int64(len(s.d)) * 8, int64(s.f.Len())
}

// Get returns a borrowed View for color-set id.
func (s *Store) Get(id int) View {
	if s.f.Get(id) {
		slot := s.f.Rank1(id)
		lo, hi := s.bs.Get(slot), s.bs.Get(slot+1)
		return View{Form: Bitmap, Payload: s.b[lo:hi]}
	}
	slot := id - s.f.Rank1(id)
	lo, hi := s.ds.Get(slot), s.ds.Get(slot+1)
	return View{Form: Delta, Payload: s.d[lo:hi]}
}

// WriteTo serializes the store.
func (s *Store) WriteTo(w io.Writer) (int64, error) {
	var hdr [24]byte
	binary.LittleEndian.PutUint64(hdr[0:8], uint64(len(s.b)))
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(len(s.d)))
	binary.LittleEndian.PutUint64(hdr[16:24], uint64(s.n))
	n, err := w.Write(hdr[:])
	total := int64(n)
	if err != nil {
		return total, errors.E(err, "colorset: write header")
	}
	n2, err := w.Write(s.b)
	total += int64(n2)
	if err != nil {
		return total, errors.E(err, "colorset: write B")
	}
	n3, err := w.Write(s.d)
	total += int64(n3)
	if err != nil {
		return total, errors.E(err, "colorset: write D")
	}
	n4, err := s.bs.WriteTo(w)
	total += n4
	if err != nil {
		return total, errors.E(err, "colorset: write Bs")
	}
	n5, err := s.ds.WriteTo(w)
	total += n5
	if err != nil {
		return total, errors.E(err, "colorset: write Ds")
	}
	n6, err := s.f.WriteTo(w)
	total += n6
	if err != nil {
		return total, errors.E(err, "colorset: write F")
	}
	return total, nil
}

// ReadFrom deserializes a Store written by WriteTo.
func ReadFrom(r io.Reader) (*Store, error) {
	var hdr [24]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, errors.E(err, "colorset: read header")
	}
	blen := int(binary.LittleEndian.Uint64(hdr[0:8]))
	dlen := int(binary.LittleEndian.Uint64(hdr[8:16]))
	n := int(binary.LittleEndian.Uint64(hdr[16:24]))
	b := make([]byte, blen)
	if blen > 0 {
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, errors.E(err, "colorset: read B")
		}
	}
	d := make([]byte, dlen)
	if dlen > 0 {
		if _, err := io.ReadFull(r, d); err != nil {
			return nil, errors.E(err, "colorset: read D")
		}
	}
	bs, err := intvec.ReadFrom(r)
	if err != nil {
		return nil, errors.E(err, "colorset: read Bs")
	}
	ds, err := intvec.ReadFrom(r)
	if err != nil {
		return nil, errors.E(err, "colorset: read Ds")
	}
	f, err := bitvec.ReadFrom(r)
	if err != nil {
		return nil, errors.E(err, "colorset: read F")
	}
	return &Store{b: b, d: d, bs: bs, ds: ds, f: f, n: n}, nil
}
