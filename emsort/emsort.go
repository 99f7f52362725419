// Package emsort implements the external-memory k-way merge sort used to
// sort binary records too large to fit in RAM: the
// (k+1)-mer stream feeding the edge-set builder (boss.Build) and the
// (node, color) stream feeding the node-to-color-set map (colormap.Build)
// both flow through a Sorter.
//
// The block/sort/merge pipeline and its concurrency shape are grounded on
// cmd/bio-bam-sort/sorter.Sorter: a bounded channel of in-memory blocks
// feeds a fixed pool of sorting goroutines, each of which spills a sorted
// run to a temp file; cmd/bio-bam-sort/sorter.internalMergeShards'
// llrb-tree-based k-way merge becomes mergeRuns below, generalized from
// sam.Record bytes to an arbitrary comparator over opaque byte records.
package emsort

import (
	"encoding/binary"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/biogo/store/llrb"
	"github.com/golang/snappy"
	"github.com/grailbio/base/errors"
)

// Comparator defines a strict weak order over record bodies.
type Comparator func(a, b []byte) int

// TempProvider yields fresh temp file path strings and is responsible for
// their eventual cleanup; it is the "temp-file provider" external
// collaborator.
type TempProvider interface {
	// New returns a path to a new, not-yet-existing temp file.
	New() (string, error)
}

// Kind distinguishes fixed-size records (size known up front) from
// variable-length, 8-byte-length-prefixed records.
type Kind int

const (
	// Fixed records all have the same byte length, RecordSize.
	Fixed Kind = iota
	// Variable records may differ in length; each is prefixed on disk by an
	// 8-byte big-endian length.
	Variable
)

// Options configures a Sorter.
type Options struct {
	Kind       Kind
	RecordSize int // required when Kind == Fixed
	Comparator Comparator
	// RAMBudget is M, the total memory budget in bytes; each block is capped
	// at RAMBudget/(Threads+2): one block per consumer, one
	// queued, one loading).
	RAMBudget int64
	// Threads is T, the number of concurrent sorting/spilling goroutines.
	Threads int
	// MergeFanIn is k, the number of runs merged together per merge pass.
	MergeFanIn int
	Temp       TempProvider
}

func (o *Options) setDefaults() {
	if o.Threads <= 0 {
		o.Threads = 1
	}
	if o.MergeFanIn <= 0 {
		o.MergeFanIn = 8
	}
	if o.RAMBudget <= 0 {
		o.RAMBudget = 64 << 20
	}
}

// block is an in-memory batch of records awaiting sort + spill: a flat byte
// buffer plus the start offset of each record within it.
type block struct {
	buf     []byte
	offsets []int // len(offsets) == nRecords+1; offsets[i]:offsets[i+1] is record i
}

func (b *block) rec(i int) []byte { return b.buf[b.offsets[i]:b.offsets[i+1]] }
func (b *block) nrecs() int       { return len(b.offsets) - 1 }

// Sorter accumulates records via Add, spills sorted runs to temp files as
// memory fills up, and produces one fully-sorted output stream on Finish.
type Sorter struct {
	opts        Options
	blockBudget int

	cur      block
	curBytes int

	blockCh chan block
	wg      sync.WaitGroup
	mu      sync.Mutex
	runs    []string
	errOnce errors.Once
}

// New creates a Sorter and starts its Threads sorting goroutines.
func New(opts Options) *Sorter {
	opts.setDefaults()
	s := &Sorter{
		opts:        opts,
		blockBudget: int(opts.RAMBudget) / (opts.Threads + 2),
		blockCh:     make(chan block, 1), // capacity 1: effectively one block in flight
	}
	if s.blockBudget <= 0 {
		s.blockBudget = 1 << 20
	}
	for i := 0; i < opts.Threads; i++ {
		s.wg.Add(1)
		go s.sortWorker()
	}
	return s
}

// Add appends one record. The caller must not retain rec after the call;
// Add copies it into the current block.
func (s *Sorter) Add(rec []byte) {
	if s.opts.Kind == Fixed && len(rec) != s.opts.RecordSize {
		s.errOnce.Set(errors.E("emsort: record size mismatch"))
		return
	}
	if len(s.cur.offsets) == 0 {
		s.cur.offsets = append(s.cur.offsets, 0)
	}
	s.cur.buf = append(s.cur.buf, rec...)
	s.cur.offsets = append(s.cur.offsets, len(s.cur.buf))
	s.curBytes += len(rec) + 8 // 8 bytes accounts for the offset entry itself

	if s.curBytes >= s.blockBudget {
		s.flushBlock()
	}
}

func (s *Sorter) flushBlock() {
	if s.cur.nrecs() == 0 {
		return
	}
	b := s.cur
	s.cur = block{}
	s.curBytes = 0
	s.blockCh <- b // blocks if a block is already queued
}

// sortWorker is one of the Threads consumer goroutines: it sorts each
// block's offset array under the comparator (the byte buffer itself is
// never permuted) and spills the result to a fresh run file.
func (s *Sorter) sortWorker() {
	defer s.wg.Done()
	for b := range s.blockCh {
		path, err := s.spill(b)
		if err != nil {
			s.errOnce.Set(err)
			continue
		}
		s.mu.Lock()
		s.runs = append(s.runs, path)
		s.mu.Unlock()
	}
}

func (s *Sorter) spill(b block) (string, error) {
	n := b.nrecs()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	// Ties broken by insertion order within the block: sort.Slice
	// is not stable, so a stable sort is used explicitly.
	sort.SliceStable(order, func(i, j int) bool {
		return s.opts.Comparator(b.rec(order[i]), b.rec(order[j])) < 0
	})

	path, err := s.opts.Temp.New()
	if err != nil {
		return "", errors.E(err, "emsort: allocate temp file")
	}
	f, err := newRunFile(path, true)
	if err != nil {
		return "", err
	}
	w := newRunWriter(f, s.opts.Kind)
	for _, idx := range order {
		if err := w.writeRecord(b.rec(idx)); err != nil {
			f.Close()
			return "", err
		}
	}
	if err := w.flush(); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", errors.E(err, "emsort: close run file", path)
	}
	return path, nil
}

// Finish flushes any pending partial block, waits for all spills to
// complete, and merges the resulting runs down to a single sorted run,
// returning its path. The caller owns cleanup of the returned file (and,
// of any run files left behind on error).
func (s *Sorter) Finish() (string, error) {
	s.flushBlock()
	close(s.blockCh)
	s.wg.Wait()
	if err := s.errOnce.Err(); err != nil {
		s.cleanupRuns()
		return "", err
	}
	if len(s.runs) == 0 {
		// Degenerate: no records at all. Produce an empty run so callers have
		// a uniform "open the output path" story.
		path, err := s.opts.Temp.New()
		if err != nil {
			return "", errors.E(err, "emsort: allocate temp file")
		}
		f, err := newRunFile(path, true)
		if err != nil {
			return "", err
		}
		if err := f.Close(); err != nil {
			return "", errors.E(err, "emsort: close empty run", path)
		}
		return path, nil
	}
	out, err := s.mergeDown(s.runs)
	if err != nil {
		s.cleanupRuns()
		return "", err
	}
	return out, nil
}

func (s *Sorter) cleanupRuns() {
	for _, p := range s.runs {
		removeTempFile(p)
	}
}

// mergeDown repeatedly merges MergeFanIn runs at a time until one remains
// (merge phase).
func (s *Sorter) mergeDown(runs []string) (string, error) {
	for len(runs) > 1 {
		var next []string
		for i := 0; i < len(runs); i += s.opts.MergeFanIn {
			end := i + s.opts.MergeFanIn
			if end > len(runs) {
				end = len(runs)
			}
			group := runs[i:end]
			if len(group) == 1 {
				next = append(next, group[0])
				continue
			}
			out, err := s.mergeGroup(group)
			if err != nil {
				return "", err
			}
			for _, p := range group {
				removeTempFile(p)
			}
			next = append(next, out)
		}
		runs = next
	}
	return runs[0], nil
}

// mergeLeaf is one input run participating in an llrb-ordered merge,
// mirroring cmd/bio-bam-sort/sorter.mergeLeaf.
type mergeLeaf struct {
	seq  int
	r    *runReader
	done bool
	cmp  Comparator
}

func (l *mergeLeaf) Compare(other llrb.Comparable) int {
	o := other.(*mergeLeaf)
	if c := l.cmp(l.r.cur, o.r.cur); c != 0 {
		return c
	}
	return l.seq - o.seq
}

func (s *Sorter) mergeGroup(paths []string) (string, error) {
	outPath, err := s.opts.Temp.New()
	if err != nil {
		return "", errors.E(err, "emsort: allocate temp file")
	}
	outFile, err := newRunFile(outPath, true)
	if err != nil {
		return "", err
	}
	w := newRunWriter(outFile, s.opts.Kind)

	readers := make([]*runReader, len(paths))
	for i, p := range paths {
		r, err := newRunReader(p, s.opts.Kind, s.opts.RecordSize)
		if err != nil {
			outFile.Close()
			return "", err
		}
		readers[i] = r
	}

	// N-way merge via a binary tree, the same shape as
	// sorter.internalMergeShards: peek the smallest leaf with Do, emit its
	// record, advance it, and reinsert unless it's drained.
	tree := llrb.Tree{}
	for i, r := range readers {
		if r.scan() {
			tree.Insert(&mergeLeaf{seq: i, r: r, cmp: s.opts.Comparator})
		}
	}
	for tree.Len() > 0 {
		var top *mergeLeaf
		tree.Do(func(item llrb.Comparable) bool {
			top = item.(*mergeLeaf)
			return false
		})
		if err := w.writeRecord(top.r.cur); err != nil {
			outFile.Close()
			return "", err
		}
		top.done = !top.r.scan()
		tree.DeleteMin()
		if !top.done {
			tree.Insert(top)
		}
	}
	for _, r := range readers {
		r.close()
	}
	if err := w.flush(); err != nil {
		outFile.Close()
		return "", err
	}
	if err := outFile.Close(); err != nil {
		return "", errors.E(err, "emsort: close merged run", outPath)
	}
	return outPath, nil
}

// --- run file I/O -----------------------------------------------------
//
// Records are snappy-framed on write/read, the same streaming
// snappy.NewBufferedWriter/snappy.NewReader pairing
// bampair/disk_mate_shard.go uses for its temp mate shards.

type runFileHandle struct {
	f *os.File
}

func newRunFile(path string, forWrite bool) (*runFileHandle, error) {
	var f *os.File
	var err error
	if forWrite {
		f, err = os.Create(path)
	} else {
		f, err = os.Open(path)
	}
	if err != nil {
		return nil, errors.E(err, "emsort: open run file", path)
	}
	return &runFileHandle{f: f}, nil
}

func (h *runFileHandle) Close() error { return h.f.Close() }

func newRunWriter(h *runFileHandle, kind Kind) *runWriter {
	return &runWriter{w: snappy.NewBufferedWriter(h.f), kind: kind}
}

type runWriter struct {
	w    *snappy.Writer
	kind Kind
}

func (rw *runWriter) writeRecord(rec []byte) error {
	if rw.kind == Variable {
		var hdr [8]byte
		binary.BigEndian.PutUint64(hdr[:], uint64(len(rec)))
		if _, err := rw.w.Write(hdr[:]); err != nil {
			return errors.E(err, "emsort: write record header")
		}
	}
	if _, err := rw.w.Write(rec); err != nil {
		return errors.E(err, "emsort: write record")
	}
	return nil
}

func (rw *runWriter) flush() error {
	if err := rw.w.Close(); err != nil {
		return errors.E(err, "emsort: flush run")
	}
	return nil
}

// runReader sequentially scans records out of a run file written by
// runWriter.
type runReader struct {
	r          *snappy.Reader
	f          *os.File
	kind       Kind
	recordSize int
	cur        []byte
}

func newRunReader(path string, kind Kind, recordSize int) (*runReader, error) {
	h, err := newRunFile(path, false)
	if err != nil {
		return nil, err
	}
	return &runReader{r: snappy.NewReader(h.f), f: h.f, kind: kind, recordSize: recordSize}, nil
}

func (r *runReader) scan() bool {
	if r.kind == Variable {
		var hdr [8]byte
		if _, err := io.ReadFull(r.r, hdr[:]); err != nil {
			return false
		}
		n := binary.BigEndian.Uint64(hdr[:])
		buf := make([]byte, n)
		if _, err := io.ReadFull(r.r, buf); err != nil {
			return false
		}
		r.cur = buf
		return true
	}
	buf := make([]byte, r.recordSize)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return false
	}
	r.cur = buf
	return true
}

func (r *runReader) close() { r.f.Close() }

func removeTempFile(path string) { os.Remove(path) }

// Reader sequentially reads back a sorted run produced by Finish, for
// callers (e.g. boss.Build's final collapse scan) that need the sorted
// records themselves rather than just a temp file path.
type Reader struct {
	r    *runReader
	path string
}

// OpenReader opens the run at path, written with the given Kind/record
// size (Variable ignores recordSize).
func OpenReader(path string, kind Kind, recordSize int) (*Reader, error) {
	r, err := newRunReader(path, kind, recordSize)
	if err != nil {
		return nil, err
	}
	return &Reader{r: r, path: path}, nil
}

// Next returns the next record, or ok=false at end of stream. The returned
// slice is only valid until the next call to Next.
func (rd *Reader) Next() ([]byte, bool) {
	if !rd.r.scan() {
		return nil, false
	}
	return rd.r.cur, true
}

// Close releases the reader and removes the underlying temp file.
func (rd *Reader) Close() error {
	rd.r.close()
	removeTempFile(rd.path)
	return nil
}
