package align

import (
	"bufio"
	"container/heap"
	"context"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
)

// idLine pairs an output line with the leading read id it was parsed from.
type idLine struct {
	id   int64
	line string
}

// idLineHeap is a min-heap on id, standing in for sort_parallel_output_file's
// std::set<pair<LL,string>> priority queue.
type idLineHeap []idLine

func (h idLineHeap) Len() int            { return len(h) }
func (h idLineHeap) Less(i, j int) bool  { return h[i].id < h[j].id }
func (h idLineHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *idLineHeap) Push(x interface{}) { *h = append(*h, x.(idLine)) }
func (h *idLineHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// SortOutputFile reorders path's lines into ascending read-id order and
// atomically replaces path with the result. Lines arrive out of order
// because worker threads interleave reads from different batches; each
// line still begins with its read id, so the pass streams the file through
// a min-heap, flushing every contiguous run starting at the next expected
// id as soon as it is available, the way Themisto.hh's
// sort_parallel_output_file does. gzipped must match the compression the
// file was written with.
func SortOutputFile(ctx context.Context, path string, gzipped bool) error {
	in, err := file.Open(ctx, path)
	if err != nil {
		return errors.E(err, "align: open output for sorting", path)
	}
	defer in.Close(ctx) // nolint: errcheck

	var r io.Reader = in.Reader(ctx)
	if gzipped {
		gr, err := gzip.NewReader(r)
		if err != nil {
			return errors.E(err, "align: read gzip header on output", path)
		}
		defer gr.Close() // nolint: errcheck
		r = gr
	}

	tmpPath := path + ".sorting.tmp"
	out, err := file.Create(ctx, tmpPath)
	if err != nil {
		return errors.E(err, "align: create sort temp file", tmpPath)
	}

	bw := bufio.NewWriter(out.Writer(ctx))
	var w io.Writer = bw
	var gw *gzip.Writer
	if gzipped {
		gw = gzip.NewWriter(bw)
		w = gw
	}

	h := &idLineHeap{}
	nextID := int64(0)
	flush := func() error {
		for h.Len() > 0 && (*h)[0].id == nextID {
			item := heap.Pop(h).(idLine)
			if _, err := io.WriteString(w, item.line); err != nil {
				return err
			}
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
			nextID++
		}
		return nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<24)
	for sc.Scan() {
		line := sc.Text()
		id, perr := leadingInt(line)
		if perr != nil {
			return errors.E(perr, "align: malformed output line during sort", path)
		}
		heap.Push(h, idLine{id: id, line: line})
		if err := flush(); err != nil {
			return errors.E(err, "align: write sorted output", tmpPath)
		}
	}
	if err := sc.Err(); err != nil {
		return errors.E(err, "align: read output for sorting", path)
	}
	if h.Len() != 0 {
		return errors.E("align: output has a gap or duplicate read id; cannot sort", path)
	}

	if gw != nil {
		if err := gw.Close(); err != nil {
			return errors.E(err, "align: close gzip sort output", tmpPath)
		}
	}
	if err := bw.Flush(); err != nil {
		return errors.E(err, "align: flush sort output", tmpPath)
	}
	if err := out.Close(ctx); err != nil {
		return errors.E(err, "align: close sort temp file", tmpPath)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return errors.E(err, "align: replace output with sorted result", path)
	}
	return nil
}

// leadingInt parses the integer prefix of an output line up to its first
// space (or its end, for a read with no reported colors).
func leadingInt(line string) (int64, error) {
	if sp := strings.IndexByte(line, ' '); sp >= 0 {
		line = line[:sp]
	}
	return strconv.ParseInt(line, 10, 64)
}
