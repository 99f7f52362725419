package align

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
)

// Writer is the mutex-free-at-the-caller, internally-synchronized output
// sink every Aligner writes its formatted lines to. It wraps one of three
// backends named in the on-disk output format (a raw file, a gzip stream,
// or standard output), matching create_writer's dispatch in
// pseudoalign.cpp, but unifies ParallelOutputWriter and ParallelGzipWriter
// behind a single mutex since both do nothing but serialize concurrent
// Write calls onto one underlying stream.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	bw  *bufio.Writer
	gz  *gzip.Writer
	f   file.File
	ctx context.Context
}

// NewWriter opens path (or, if path is "", standard output) for
// pseudoalignment output, optionally gzip-compressing the stream.
func NewWriter(ctx context.Context, path string, gzipped bool) (*Writer, error) {
	w := &Writer{ctx: ctx}

	var raw io.Writer
	if path == "" {
		w.bw = bufio.NewWriter(os.Stdout)
		raw = w.bw
	} else {
		f, err := file.Create(ctx, path)
		if err != nil {
			return nil, errors.E(err, "align: create output file", path)
		}
		w.f = f
		w.bw = bufio.NewWriter(f.Writer(ctx))
		raw = w.bw
	}

	if gzipped {
		w.gz = gzip.NewWriter(raw)
		w.w = w.gz
	} else {
		w.w = raw
	}
	return w, nil
}

// Write appends p to the output stream. Safe for concurrent use by
// multiple Aligners.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

// Close flushes and closes every layer of the writer (gzip footer, buffered
// writer, then the underlying file, if any).
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.gz != nil {
		if err := w.gz.Close(); err != nil {
			return errors.E(err, "align: close gzip output")
		}
	}
	if err := w.bw.Flush(); err != nil {
		return errors.E(err, "align: flush output")
	}
	if w.f != nil {
		if err := w.f.Close(w.ctx); err != nil {
			return errors.E(err, "align: close output file")
		}
	}
	return nil
}
