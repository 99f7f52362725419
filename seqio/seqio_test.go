package seqio

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopClose() error { return nil }

func TestFastaReaderMultiLine(t *testing.T) {
	data := ">seq1 some description\nACGT\nACGT\n>seq2\nTTTT\n"
	r := newFastaReader(strings.NewReader(data), noopClose)

	rec, ok := r.Read()
	require.True(t, ok)
	assert.Equal(t, "seq1", rec.Name)
	assert.Equal(t, "ACGTACGT", string(rec.Seq))

	rec, ok = r.Read()
	require.True(t, ok)
	assert.Equal(t, "seq2", rec.Name)
	assert.Equal(t, "TTTT", string(rec.Seq))

	_, ok = r.Read()
	assert.False(t, ok)
	assert.NoError(t, r.Err())
}

func TestFastaReaderEmptyLines(t *testing.T) {
	data := ">seq1\nACGT\n\nACGT\n"
	r := newFastaReader(strings.NewReader(data), noopClose)
	rec, ok := r.Read()
	require.True(t, ok)
	assert.Equal(t, "ACGTACGT", string(rec.Seq))
}

func TestFastqReaderBasic(t *testing.T) {
	data := "@read1\nACGTACGT\n+\nIIIIIIII\n@read2\nTTTT\n+ignored\nIIII\n"
	r := newFastqReader(strings.NewReader(data), noopClose)

	rec, ok := r.Read()
	require.True(t, ok)
	assert.Equal(t, "read1", rec.Name)
	assert.Equal(t, "ACGTACGT", string(rec.Seq))

	rec, ok = r.Read()
	require.True(t, ok)
	assert.Equal(t, "read2", rec.Name)
	assert.Equal(t, "TTTT", string(rec.Seq))

	_, ok = r.Read()
	assert.False(t, ok)
}

func TestFastqReaderInvalidHeader(t *testing.T) {
	data := "not-a-header\n"
	r := newFastqReader(strings.NewReader(data), noopClose)
	_, ok := r.Read()
	assert.False(t, ok)
	assert.Equal(t, ErrInvalid, r.Err())
}

func TestDetectFormat(t *testing.T) {
	cases := map[string]Format{
		"reads.fasta":    FASTA,
		"reads.fa.gz":    FASTA,
		"reads.fastq":    FASTQ,
		"reads.fq.gz":    FASTQ,
	}
	for path, want := range cases {
		got, err := DetectFormat(path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := DetectFormat("reads.txt")
	assert.Error(t, err)
}

var _ io.Closer = (*fastaReader)(nil)
