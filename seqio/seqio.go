// Package seqio implements the sequence source external collaborator:
// reading FASTA or FASTQ records, optionally gzip-compressed, from any
// backend github.com/grailbio/base/file knows how to open.
//
// Format and compression are both decided by the path's extension, the way
// fastq.fileHandle's caller picked a gzip reader from the file suffix in
// grailbio-bio's own sequence-reading call sites.
package seqio

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
)

// Record is one sequence read from a source: its name (FASTA header or
// FASTQ id line, sans the leading '>'/'@') and its bases. It carries no
// color; color assignment is left to the caller.
type Record struct {
	Name string
	Seq  []byte
}

// Reader yields Records one at a time until exhausted.
type Reader interface {
	// Read returns the next record, or ok=false at end of stream (check Err
	// to distinguish clean EOF from a read error).
	Read() (Record, bool)
	// Err returns the first error encountered, if any.
	Err() error
	// Close releases underlying file handles.
	Close() error
}

// Format enumerates the sequence file formats this package understands.
type Format int

const (
	FASTA Format = iota
	FASTQ
)

// DetectFormat infers Format from a path's extension, stripping a trailing
// ".gz" first.
func DetectFormat(path string) (Format, error) {
	p := strings.TrimSuffix(path, ".gz")
	switch {
	case strings.HasSuffix(p, ".fasta"), strings.HasSuffix(p, ".fa"), strings.HasSuffix(p, ".fna"):
		return FASTA, nil
	case strings.HasSuffix(p, ".fastq"), strings.HasSuffix(p, ".fq"):
		return FASTQ, nil
	default:
		return FASTA, errors.E("seqio: cannot infer format from path", path)
	}
}

// isGzip reports whether path carries a ".gz" suffix, the same
// extension-driven sniff grailbio-bio's fastq file handles use.
func isGzip(path string) bool { return strings.HasSuffix(path, ".gz") }

// Open opens path (local or any github.com/grailbio/base/file-registered
// backend) and returns a Reader appropriate to its detected format and
// compression.
func Open(ctx context.Context, path string) (Reader, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "seqio: open", path)
	}
	var rc io.Reader = f.Reader(ctx)
	var gz *gzip.Reader
	if isGzip(path) {
		gz, err = gzip.NewReader(rc)
		if err != nil {
			f.Close(ctx)
			return nil, errors.E(err, "seqio: gzip header", path)
		}
		rc = gz
	}
	closer := func() error {
		var gzErr error
		if gz != nil {
			gzErr = gz.Close()
		}
		if err := f.Close(ctx); err != nil {
			return errors.E(err, "seqio: close", path)
		}
		return gzErr
	}
	switch format {
	case FASTA:
		return newFastaReader(rc, closer), nil
	default:
		return newFastqReader(rc, closer), nil
	}
}

// bufioBufferSize mirrors fasta.go's 300MiB scan buffer: a single sequence
// line (FASTA) or a single read (FASTQ) must fit in one bufio.Scanner token.
const bufioBufferSize = 300 << 20

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), bufioBufferSize)
	return sc
}
