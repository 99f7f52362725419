package main

import (
	"flag"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"

	"github.com/themistobio/themisto/index"
)

func runDumpColorMatrix(args []string) error {
	var indexPrefix, outPath string
	var sparse bool
	fs := flag.NewFlagSet("dump-color-matrix", flag.ExitOnError)
	fs.StringVar(&indexPrefix, "i", "", "Index path prefix")
	fs.StringVar(&outPath, "o", "", "Output path")
	fs.BoolVar(&sparse, "sparse", false, "Print \"kmer color_id*\" rows instead of dense 0/1 rows")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if indexPrefix == "" || outPath == "" {
		return errors.E("themisto: dump-color-matrix requires -i and -o")
	}

	ctx := vcontext.Background()
	idx, err := index.Load(ctx, indexPrefix)
	if err != nil {
		return errors.E(err, "themisto: dump-color-matrix: load index")
	}

	out, err := file.Create(ctx, outPath)
	if err != nil {
		return errors.E(err, "themisto: dump-color-matrix: create output", outPath)
	}
	if err := index.DumpColorMatrix(out.Writer(ctx), idx, sparse); err != nil {
		out.Close(ctx) // nolint: errcheck
		return errors.E(err, "themisto: dump-color-matrix: write", outPath)
	}
	return out.Close(ctx)
}
