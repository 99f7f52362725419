package main

import (
	"bufio"
	"context"
	"flag"
	"os"
	"runtime"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"

	"github.com/themistobio/themisto/align"
	"github.com/themistobio/themisto/dispatch"
	"github.com/themistobio/themisto/index"
	"github.com/themistobio/themisto/seqio"
)

type pseudoalignConfig struct {
	indexPrefix    string
	tempDir        string
	query          string
	queryFileList  string
	out            string
	outFileList    string
	rc             bool
	gzipOutput     bool
	sortLines      bool
	sortHits       bool
	threshold      float64
	includeUnknown bool
	relevantFrac   float64
	threads        int
	bufferMegas    int
	auxInfoFile    string
}

func (c *pseudoalignConfig) validate() error {
	if c.indexPrefix == "" {
		return errors.E("themisto: -i is required")
	}
	if (c.query == "") == (c.queryFileList == "") {
		return errors.E("themisto: exactly one of -q or --query-file-list is required")
	}
	if (c.out == "") == (c.outFileList == "") {
		return errors.E("themisto: exactly one of -o or --out-file-list is required")
	}
	if (c.query == "") != (c.out == "") {
		return errors.E("themisto: -q/-o and --query-file-list/--out-file-list must be used together")
	}
	if c.auxInfoFile != "" && c.queryFileList != "" {
		return errors.E("themisto: --auxiliary-info-file is only supported with -q/-o")
	}
	if c.threshold < 0 || c.threshold > 1 {
		return errors.E("themisto: --threshold must be in [0, 1]")
	}
	return nil
}

func runPseudoalign(args []string) error {
	cfg := &pseudoalignConfig{}
	fs := flag.NewFlagSet("pseudoalign", flag.ExitOnError)
	fs.StringVar(&cfg.indexPrefix, "i", "", "Index path prefix")
	// align.SortOutputFile streams its reorder pass through an in-memory
	// heap rather than spilling to disk, so tempDir has no current use;
	// the flag stays for CLI compatibility with the build subcommand's.
	fs.StringVar(&cfg.tempDir, "temp-dir", "", "Unused by the current heap-based --sort-output-lines pass")
	fs.StringVar(&cfg.query, "q", "", "Single query FASTA/FASTQ file")
	fs.StringVar(&cfg.queryFileList, "query-file-list", "", "File listing one query path per line")
	fs.StringVar(&cfg.out, "o", "", "Single output file")
	fs.StringVar(&cfg.outFileList, "out-file-list", "", "File listing one output path per line, paired with --query-file-list")
	fs.BoolVar(&cfg.rc, "rc", false, "Also align the reverse complement of each read and union colors before intersecting")
	fs.BoolVar(&cfg.gzipOutput, "gzip-output", false, "Gzip-compress output files")
	fs.BoolVar(&cfg.sortLines, "sort-output-lines", false, "Reorder output lines into ascending read-id order after alignment")
	fs.BoolVar(&cfg.sortHits, "sort-hits", false, "Sort each line's color ids ascending")
	fs.Float64Var(&cfg.threshold, "threshold", 1.0, "Fraction of a read's k-mers a color must cover to be reported")
	fs.BoolVar(&cfg.includeUnknown, "include-unknown-kmers", false, "Count k-mers absent from the index toward the relevant-k-mer denominator")
	fs.Float64Var(&cfg.relevantFrac, "relevant-kmers-fraction", 0, "Minimum fraction of a read's k-mers that must be relevant for it to be reported at all")
	fs.IntVar(&cfg.threads, "t", runtime.NumCPU(), "Number of worker threads")
	fs.IntVar(&cfg.bufferMegas, "buffer-size-megas", 100, "Approximate in-flight batch size, in megabytes")
	fs.StringVar(&cfg.auxInfoFile, "auxiliary-info-file", "", "Path to write one \"id relevant total\" line per read")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	ctx := vcontext.Background()
	idx, err := index.Load(ctx, cfg.indexPrefix)
	if err != nil {
		return errors.E(err, "themisto: pseudoalign: load index")
	}
	if idx.Colors == nil {
		return errors.E("themisto: pseudoalign: index has no color map (was it built with --no-colors?)")
	}

	queries, outs, err := cfg.filePairs()
	if err != nil {
		return err
	}

	opts := align.Options{
		Threshold:             cfg.threshold,
		ReverseComplement:     cfg.rc,
		IgnoreUnknownKmers:    !cfg.includeUnknown,
		RelevantKmersFraction: cfg.relevantFrac,
		SortHits:              cfg.sortHits,
	}
	batchBytes := int64(cfg.bufferMegas) << 20

	for i := range queries {
		if err := alignOneFile(ctx, idx, queries[i], outs[i], cfg, opts, batchBytes); err != nil {
			return err
		}
		if cfg.sortLines {
			if err := align.SortOutputFile(ctx, outs[i], cfg.gzipOutput); err != nil {
				return errors.E(err, "themisto: pseudoalign: sort output", outs[i])
			}
		}
	}
	return nil
}

func (c *pseudoalignConfig) filePairs() ([]string, []string, error) {
	if c.query != "" {
		return []string{c.query}, []string{c.out}, nil
	}
	queries, err := readLines(c.queryFileList)
	if err != nil {
		return nil, nil, err
	}
	outs, err := readLines(c.outFileList)
	if err != nil {
		return nil, nil, err
	}
	if len(queries) != len(outs) {
		return nil, nil, errors.E("themisto: --query-file-list and --out-file-list must list the same number of paths")
	}
	return queries, outs, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.E(err, "themisto: open file list", path)
	}
	defer f.Close() // nolint: errcheck
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

func alignOneFile(ctx context.Context, idx *index.Index, queryPath, outPath string, cfg *pseudoalignConfig, opts align.Options, batchBytes int64) error {
	out, err := align.NewWriter(ctx, outPath, cfg.gzipOutput)
	if err != nil {
		return errors.E(err, "themisto: pseudoalign: open output", outPath)
	}
	var aux *align.Writer
	if cfg.auxInfoFile != "" {
		aux, err = align.NewWriter(ctx, cfg.auxInfoFile, false)
		if err != nil {
			return errors.E(err, "themisto: pseudoalign: open auxiliary info file", cfg.auxInfoFile)
		}
	}

	src, err := newQuerySource(ctx, queryPath)
	if err != nil {
		return err
	}
	defer src.Close() // nolint: errcheck

	dispatch.Run(cfg.threads, batchBytes, src, batchBytes, func(int) dispatch.Callback {
		return align.NewAligner(idx.Graph, idx.Colors, out, aux, opts)
	})

	if err := out.Close(); err != nil {
		return errors.E(err, "themisto: pseudoalign: close output", outPath)
	}
	if aux != nil {
		if err := aux.Close(); err != nil {
			return errors.E(err, "themisto: pseudoalign: close auxiliary info file", cfg.auxInfoFile)
		}
	}
	return nil
}

// querySource adapts a seqio.Reader into a dispatch.Source, streaming one
// read's sequence bytes at a time with no per-read metadata.
type querySource struct {
	r seqio.Reader
}

func newQuerySource(ctx context.Context, path string) (*querySource, error) {
	r, err := seqio.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "themisto: open query file", path)
	}
	return &querySource{r: r}, nil
}

func (s *querySource) Next() ([]byte, [8]byte, bool) {
	rec, ok := s.r.Read()
	if !ok {
		return nil, [8]byte{}, false
	}
	return rec.Seq, [8]byte{}, true
}

func (s *querySource) Close() error { return s.r.Close() }

var _ dispatch.Source = (*querySource)(nil)
