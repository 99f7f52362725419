package index

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"

	"github.com/themistobio/themisto/biosimd"
	"github.com/themistobio/themisto/boss"
	"github.com/themistobio/themisto/colormap"
	"github.com/themistobio/themisto/emsort"
	"github.com/themistobio/themisto/kmer"
	"github.com/themistobio/themisto/seqio"
)

// BuildOptions configures Build. Exactly one of ColorFile/FileColors/
// NoColors may be set; buildConfig.validate (in cmd/themisto) enforces this
// before Build ever sees it.
type BuildOptions struct {
	K     int
	Files []string

	ColorFile          string
	FileColors         bool
	NoColors           bool
	ReverseComplements bool

	// LoadDBG, if non-empty, is an existing ".tdbg"-style prefix whose
	// graph is loaded instead of built from Files; only the coloring pass
	// (over Files) then runs. Mirrors transform_index.hh's separation of
	// graph-build from color-build.
	LoadDBG string

	RAMBudget        int64
	Threads          int
	MergeFanIn       int
	SamplingDistance int
	Temp             emsort.TempProvider
}

// Build constructs an Index from opts. It makes up to two passes over
// Files: the first streams every sequence's (k+1)-mers into boss.Build (or
// is skipped entirely when LoadDBG is set); the second (skipped when
// NoColors is set) walks each sequence against the finished graph to
// assign node colors, mirroring
// Themisto::construct_boss followed by Themisto::construct_colors.
func Build(ctx context.Context, opts BuildOptions) (*Index, error) {
	var g *boss.BOSS
	if opts.LoadDBG != "" {
		loaded, err := Load(ctx, opts.LoadDBG)
		if err != nil {
			return nil, errors.E(err, "index: load --load-dbg graph", opts.LoadDBG)
		}
		g = loaded.Graph
	} else {
		built, err := boss.Build(opts.K, &multiFileKmerSource{ctx: ctx, files: opts.Files, k: opts.K, rc: opts.ReverseComplements}, boss.BuildOptions{
			RAMBudget:  opts.RAMBudget,
			Threads:    opts.Threads,
			MergeFanIn: opts.MergeFanIn,
			Temp:       opts.Temp,
		})
		if err != nil {
			return nil, errors.E(err, "index: build graph")
		}
		g = built
	}

	idx := &Index{Graph: g}
	if opts.NoColors {
		return idx, nil
	}

	colors, err := colorAssignment(ctx, opts)
	if err != nil {
		return nil, err
	}

	m, err := colormap.Build(g, &sequenceColorSource{
		ctx: ctx, files: opts.Files, g: g, colors: colors, rc: opts.ReverseComplements,
	}, colormap.BuildOptions{
		SamplingDistance: opts.SamplingDistance,
		RAMBudget:        opts.RAMBudget,
		Threads:          opts.Threads,
		MergeFanIn:       opts.MergeFanIn,
		Temp:             opts.Temp,
	})
	if err != nil {
		return nil, errors.E(err, "index: build color map")
	}
	idx.Colors = m
	return idx, nil
}

// colorAssignment resolves the per-sequence-index color list: from
// ColorFile if given, else one color per file if FileColors is set, else
// the sequence's own 0-based index across all files (spec.md §6's "If
// absent, color i is assigned to sequence i").
func colorAssignment(ctx context.Context, opts BuildOptions) (colorFunc, error) {
	if opts.ColorFile != "" {
		cs, err := seqio.ReadColorFile(ctx, opts.ColorFile)
		if err != nil {
			return nil, err
		}
		return func(fileIdx, seqIdx int) int {
			if seqIdx >= len(cs) {
				log.Panicf("index: color file has fewer entries than input sequences (seq %d)", seqIdx)
			}
			return cs[seqIdx]
		}, nil
	}
	if opts.FileColors {
		return func(fileIdx, seqIdx int) int { return fileIdx }, nil
	}
	return func(fileIdx, seqIdx int) int { return seqIdx }, nil
}

// colorFunc maps a (file index, 0-based sequence index across all files)
// pair to the color that sequence contributes.
type colorFunc func(fileIdx, seqIdx int) int

// multiFileKmerSource streams every (k+1)-mer of every sequence across
// opts.Files (and, if rc is set, of each sequence's reverse complement
// too) into boss.Build.
type multiFileKmerSource struct {
	ctx   context.Context
	files []string
	k     int
	rc    bool

	fileIdx int
	cur     seqio.Reader
	pending []kmer.Kmer
	pi      int
	done    bool
	err     error
}

func (s *multiFileKmerSource) Next() (kmer.Kmer, bool) {
	for {
		if s.pi < len(s.pending) {
			km := s.pending[s.pi]
			s.pi++
			return km, true
		}
		if s.done {
			return kmer.Kmer{}, false
		}
		if !s.advance() {
			return kmer.Kmer{}, false
		}
	}
}

// advance loads the next sequence's edgemers into s.pending, opening the
// next file as needed. Returns false once every file is exhausted.
func (s *multiFileKmerSource) advance() bool {
	for {
		if s.cur == nil {
			if s.fileIdx >= len(s.files) {
				s.done = true
				return false
			}
			r, err := seqio.Open(s.ctx, s.files[s.fileIdx])
			if err != nil {
				log.Panicf("index: open %s: %v", s.files[s.fileIdx], err)
			}
			s.cur = r
		}
		rec, ok := s.cur.Read()
		if !ok {
			if err := s.cur.Err(); err != nil {
				log.Panicf("index: read %s: %v", s.files[s.fileIdx], err)
			}
			s.cur.Close() // nolint: errcheck
			s.cur = nil
			s.fileIdx++
			continue
		}
		s.pending = edgemers(rec.Seq, s.k)
		if s.rc {
			s.pending = append(s.pending, edgemers(reverseComplementBytes(rec.Seq), s.k)...)
		}
		s.pi = 0
		if len(s.pending) > 0 {
			return true
		}
		// Sequence shorter than k+1: no edgemers, try the next record.
	}
}

func edgemers(seq []byte, k int) []kmer.Kmer {
	var out []kmer.Kmer
	for i := 0; i+k+1 <= len(seq); i++ {
		out = append(out, kmer.FromString(string(seq[i:i+k+1]), k+1))
	}
	return out
}

func reverseComplementBytes(seq []byte) []byte {
	out := make([]byte, len(seq))
	biosimd.ReverseComp8(out, seq)
	return out
}

// sequenceColorSource re-reads Files a second time (the graph is already
// built) and, for every sequence, walks its k-mer windows through g to
// emit one colormap.NodeColor observation per window, marking the last
// window of each orientation. Mirrors Themisto::construct_colors walking
// each input read against the finished SBWT.
type sequenceColorSource struct {
	ctx    context.Context
	files  []string
	g      *boss.BOSS
	colors colorFunc
	rc     bool

	fileIdx int
	seqIdx  int
	cur     seqio.Reader
	pending []colormap.NodeColor
	pi      int
	done    bool
}

func (s *sequenceColorSource) Next() (colormap.NodeColor, bool) {
	for {
		if s.pi < len(s.pending) {
			nc := s.pending[s.pi]
			s.pi++
			return nc, true
		}
		if s.done {
			return colormap.NodeColor{}, false
		}
		if !s.advance() {
			return colormap.NodeColor{}, false
		}
	}
}

func (s *sequenceColorSource) advance() bool {
	for {
		if s.cur == nil {
			if s.fileIdx >= len(s.files) {
				s.done = true
				return false
			}
			r, err := seqio.Open(s.ctx, s.files[s.fileIdx])
			if err != nil {
				log.Panicf("index: open %s: %v", s.files[s.fileIdx], err)
			}
			s.cur = r
		}
		rec, ok := s.cur.Read()
		if !ok {
			if err := s.cur.Err(); err != nil {
				log.Panicf("index: read %s: %v", s.files[s.fileIdx], err)
			}
			s.cur.Close() // nolint: errcheck
			s.cur = nil
			s.fileIdx++
			continue
		}
		color := s.colors(s.fileIdx, s.seqIdx)
		s.seqIdx++

		s.pending = walkColors(s.g, rec.Seq, color)
		if s.rc {
			s.pending = append(s.pending, walkColors(s.g, reverseComplementBytes(rec.Seq), color)...)
		}
		s.pi = 0
		if len(s.pending) > 0 {
			return true
		}
		// Sequence shorter than k: no windows to color, try the next one.
	}
}

// walkColors returns one NodeColor per k-mer window of seq, in order,
// following FindKmer on the first window and Walk thereafter. Every
// window is guaranteed present in g because seq is exactly one of the
// sequences g.Build was shown (panics otherwise: an invariant violation,
// not a user-facing error).
func walkColors(g *boss.BOSS, seq []byte, color int) []colormap.NodeColor {
	k := g.K()
	if len(seq) < k {
		return nil
	}
	out := make([]colormap.NodeColor, 0, len(seq)-k+1)
	v, ok := g.FindKmer(string(seq[:k]))
	if !ok {
		log.Panicf("index: k-mer %q from a build input sequence is absent from its own graph", seq[:k])
	}
	out = append(out, colormap.NodeColor{NodeID: v, Color: color})
	for i := k; i < len(seq); i++ {
		w, ok := g.Walk(v, kmer.EncodeBase(seq[i]))
		if !ok {
			log.Panicf("index: edge %q->%q from a build input sequence is absent from its own graph", seq[i-k:i], seq[i-k+1:i+1])
		}
		out = append(out, colormap.NodeColor{NodeID: w, Color: color})
		v = w
	}
	out[len(out)-1].Last = true
	return out
}
