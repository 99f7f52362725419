package seqio

import (
	"bufio"
	"io"

	"github.com/grailbio/base/errors"

	"github.com/themistobio/themisto/biosimd"
)

// ErrShort is returned when a truncated FASTQ record (missing the '+' line
// or quality line) is encountered.
var ErrShort = errors.New("seqio: short FASTQ record")

// ErrInvalid is returned when a FASTQ id line doesn't start with '@' or a
// separator line doesn't start with '+'.
var ErrInvalid = errors.New("seqio: invalid FASTQ record")

// fastqReader streams FASTQ records, adapted from encoding/fastq.Scanner:
// same four-line validation (id starts with '@', separator starts with
// '+'), trimmed to the two fields (name, sequence) this index consumes —
// quality and the separator line's text are read past but discarded, since
// pseudoalignment and build never use base-call quality.
type fastqReader struct {
	sc    *bufio.Scanner
	close func() error
	err   error
}

func newFastqReader(r io.Reader, closer func() error) *fastqReader {
	return &fastqReader{sc: newScanner(r), close: closer}
}

func (f *fastqReader) Read() (Record, bool) {
	if f.err != nil {
		return Record{}, false
	}
	if !f.sc.Scan() {
		f.err = f.sc.Err()
		return Record{}, false
	}
	id := f.sc.Bytes()
	if len(id) == 0 || id[0] != '@' {
		f.err = ErrInvalid
		return Record{}, false
	}
	name := string(id[1:])

	if !f.scanLine() {
		return Record{}, false
	}
	seq := []byte(f.sc.Text())

	if !f.scanLine() {
		return Record{}, false
	}
	sep := f.sc.Bytes()
	if len(sep) == 0 || sep[0] != '+' {
		f.err = ErrInvalid
		return Record{}, false
	}

	if !f.scanLine() {
		return Record{}, false
	}
	// Quality line scanned and discarded.

	biosimd.CleanASCIISeqInplace(seq)
	return Record{Name: name, Seq: seq}, true
}

func (f *fastqReader) scanLine() bool {
	if !f.sc.Scan() {
		if f.err = f.sc.Err(); f.err == nil {
			f.err = ErrShort
		}
		return false
	}
	return true
}

func (f *fastqReader) Err() error   { return f.err }
func (f *fastqReader) Close() error { return f.close() }
