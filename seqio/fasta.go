package seqio

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/themistobio/themisto/biosimd"
)

// fastaReader streams one record at a time rather than loading the whole
// file, the way encoding/fasta.New's newEagerUnindexed does (line-by-line
// bufio.Scanner, '>' starts a new sequence, header text after the first
// space is dropped) — adapted here to emit records incrementally instead of
// accumulating a name->sequence map, since build/pseudoalign only need a
// single forward pass.
type fastaReader struct {
	sc          *bufio.Scanner
	close       func() error
	err         error
	done        bool
	name        string // name of the record currently being assembled
	seq         strings.Builder
	pendingName string // header text seen while assembling the previous record
}

func newFastaReader(r io.Reader, closer func() error) *fastaReader {
	return &fastaReader{sc: newScanner(r), close: closer}
}

func (f *fastaReader) Read() (Record, bool) {
	if f.err != nil || f.done {
		return Record{}, false
	}
	if f.pendingName != "" {
		f.name = f.pendingName
		f.pendingName = ""
	} else if !f.advanceToHeader() {
		return Record{}, false
	}
	f.seq.Reset()
	for f.sc.Scan() {
		line := f.sc.Text()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			f.pendingName = strings.Split(line[1:], " ")[0]
			return f.emit()
		}
		f.seq.WriteString(line)
	}
	if err := f.sc.Err(); err != nil {
		f.err = errors.Wrap(err, "seqio: read FASTA data")
		return Record{}, false
	}
	f.done = true
	return f.emit()
}

// advanceToHeader scans forward to the first '>' line, setting f.name.
func (f *fastaReader) advanceToHeader() bool {
	for f.sc.Scan() {
		line := f.sc.Text()
		if len(line) == 0 {
			continue
		}
		if line[0] != '>' {
			f.err = errors.Errorf("seqio: malformed FASTA file, expected '>'")
			return false
		}
		f.name = strings.Split(line[1:], " ")[0]
		return true
	}
	if err := f.sc.Err(); err != nil {
		f.err = errors.Wrap(err, "seqio: read FASTA data")
	} else {
		f.done = true
	}
	return false
}

func (f *fastaReader) emit() (Record, bool) {
	name := f.name
	seq := []byte(f.seq.String())
	f.seq.Reset()
	biosimd.CleanASCIISeqInplace(seq)
	return Record{Name: name, Seq: seq}, true
}

func (f *fastaReader) Err() error   { return f.err }
func (f *fastaReader) Close() error { return f.close() }
