package main

import (
	"flag"
	"os"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"

	"github.com/themistobio/themisto/index"
)

func runStats(args []string) error {
	var indexPrefix string
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.StringVar(&indexPrefix, "i", "", "Index path prefix")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if indexPrefix == "" {
		return errors.E("themisto: stats requires -i")
	}

	ctx := vcontext.Background()
	idx, err := index.Load(ctx, indexPrefix)
	if err != nil {
		return errors.E(err, "themisto: stats: load index")
	}
	return index.WriteStats(os.Stdout, idx)
}
