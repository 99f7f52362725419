package align

import (
	"bytes"
	"strconv"

	"github.com/themistobio/themisto/biosimd"
	"github.com/themistobio/themisto/boss"
	"github.com/themistobio/themisto/colormap"
	"github.com/themistobio/themisto/dispatch"
)

// outputBufferSize is the number of bytes an Aligner accumulates before
// flushing to its Writer, mirroring AlignerThread's output_buffer.
const outputBufferSize = 1 << 16

// Aligner is a dispatch.Callback that pseudoaligns each read it is handed
// against g/m and writes one formatted output line per read to out. Create
// one per worker thread via dispatch.Run's makeCallback; each owns its own
// scratch buffers so concurrent Aligners never share mutable state except
// through out, which is safe for concurrent Write.
type Aligner struct {
	g   *boss.BOSS
	m   *colormap.Map
	out *Writer
	aux *Writer
	opt Options

	ids    []int64
	rcIDs  []int64
	line   bytes.Buffer
	buf    bytes.Buffer
	auxBuf bytes.Buffer
}

// NewAligner returns an Aligner that pseudoaligns against g/m using opt and
// writes its output through out. If aux is non-nil, Process also appends a
// "<read id> <relevant k-mers> <total k-mers>" line to it per spec.md §6's
// auxiliary info file.
func NewAligner(g *boss.BOSS, m *colormap.Map, out, aux *Writer, opt Options) *Aligner {
	return &Aligner{g: g, m: m, out: out, aux: aux, opt: opt}
}

var _ dispatch.Callback = (*Aligner)(nil)

// Process pseudoaligns one read and appends its formatted line to the
// internal buffer, flushing to out once the buffer grows past
// outputBufferSize.
func (a *Aligner) Process(readID int64, read []byte, _ [8]byte) {
	k := a.g.K()
	n := len(read) - k + 1

	a.line.Reset()
	a.line.WriteString(strconv.FormatInt(readID, 10))

	if n > 0 {
		if cap(a.ids) < n {
			a.ids = make([]int64, n)
		}
		ids := a.ids[:n]
		ResolveColorSetIDs(a.g, a.m, read, ids)

		if a.aux != nil {
			relevant, total := RelevantTotal(ids, a.opt.IgnoreUnknownKmers)
			a.auxBuf.Reset()
			a.auxBuf.WriteString(strconv.FormatInt(readID, 10))
			a.auxBuf.WriteByte(' ')
			a.auxBuf.WriteString(strconv.Itoa(relevant))
			a.auxBuf.WriteByte(' ')
			a.auxBuf.WriteString(strconv.Itoa(total))
			a.auxBuf.WriteByte('\n')
			_, _ = a.aux.Write(a.auxBuf.Bytes())
		}

		switch {
		case a.opt.Threshold >= 1 && a.opt.ReverseComplement:
			rc := reverseComplement(read)
			if cap(a.rcIDs) < n {
				a.rcIDs = make([]int64, n)
			}
			rcIDs := a.rcIDs[:n]
			ResolveColorSetIDs(a.g, a.m, rc, rcIDs)
			// colorset.Decode always returns colors in ascending order, so
			// intersection mode's output is sorted regardless of SortHits.
			colors := CombineIntersectionRC(a.m.Store(), ids, rcIDs, len(read), k)
			writeColors(&a.line, colors)
		case a.opt.Threshold >= 1:
			colors := CombineIntersection(a.m.Store(), ids)
			writeColors(&a.line, colors)
		default:
			res := CombineThreshold(a.m.Store(), ids, a.opt)
			if float64(res.Relevant)/float64(res.Total) >= a.opt.RelevantKmersFraction {
				writeColors(&a.line, res.Colors)
			}
		}
	}
	a.line.WriteByte('\n')

	a.buf.Write(a.line.Bytes())
	if a.buf.Len() >= outputBufferSize {
		a.flush()
	}
}

// Finish flushes any buffered output. Called once per Aligner, after its
// dispatch.Queue has drained.
func (a *Aligner) Finish() {
	a.flush()
}

func (a *Aligner) flush() {
	if a.buf.Len() == 0 {
		return
	}
	_, _ = a.out.Write(a.buf.Bytes())
	a.buf.Reset()
}

func writeColors(b *bytes.Buffer, colors []uint64) {
	for _, c := range colors {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatUint(c, 10))
	}
}

// reverseComplement returns the reverse complement of an ASCII DNA
// sequence.
func reverseComplement(seq []byte) []byte {
	out := make([]byte, len(seq))
	biosimd.ReverseComp8(out, seq)
	return out
}
