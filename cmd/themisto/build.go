package main

import (
	"flag"
	"runtime"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"

	"github.com/themistobio/themisto/index"
)

// buildConfig is assembled from build's flags and validated once, mirroring
// fusion.Opts's role in cmd/bio-fusion/main.go: flags populate plain
// fields, then one Validate call rejects incompatible combinations before
// any work starts.
type buildConfig struct {
	k                  int
	inputs             stringList
	outPrefix          string
	tempDir            string
	colorFile          string
	fileColors         bool
	reverseComplements bool
	noColors           bool
	loadDBG            string
	threads            int
	ramBudgetMB        int64
}

func (c *buildConfig) validate() error {
	if c.k <= 0 {
		return errors.E("themisto: -k is required and must be positive")
	}
	if len(c.inputs.values) == 0 && c.loadDBG == "" {
		return errors.E("themisto: -i is required")
	}
	if c.outPrefix == "" {
		return errors.E("themisto: -o is required")
	}
	n := 0
	if c.colorFile != "" {
		n++
	}
	if c.fileColors {
		n++
	}
	if c.noColors {
		n++
	}
	if n > 1 {
		return errors.E("themisto: -c/--color-file, --file-colors and --no-colors are mutually exclusive")
	}
	return nil
}

func runBuild(args []string) error {
	cfg := &buildConfig{}
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	fs.IntVar(&cfg.k, "k", 0, "k-mer length")
	fs.Var(&cfg.inputs, "i", "Comma-separated list of input FASTA/FASTQ files (may repeat)")
	fs.StringVar(&cfg.outPrefix, "o", "", "Output index path prefix")
	fs.StringVar(&cfg.tempDir, "temp-dir", "", "Directory for external-sort scratch files")
	fs.StringVar(&cfg.colorFile, "c", "", "Color file: one color per input sequence, in order")
	fs.StringVar(&cfg.colorFile, "color-file", "", "Same as -c")
	fs.BoolVar(&cfg.fileColors, "file-colors", false, "Assign one color per input file instead of per sequence")
	fs.BoolVar(&cfg.reverseComplements, "reverse-complements", false, "Also index the reverse complement of every input sequence")
	fs.BoolVar(&cfg.noColors, "no-colors", false, "Build the de Bruijn graph only, without a color map")
	fs.StringVar(&cfg.loadDBG, "load-dbg", "", "Load an existing index's graph instead of building one, then only build colors")
	fs.IntVar(&cfg.threads, "t", runtime.NumCPU(), "Number of worker threads")
	fs.Int64Var(&cfg.ramBudgetMB, "mem-megas", 4096, "RAM budget for external sorting, in megabytes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	ctx := vcontext.Background()
	idx, err := index.Build(ctx, index.BuildOptions{
		K:                  cfg.k,
		Files:              cfg.inputs.values,
		ColorFile:          cfg.colorFile,
		FileColors:         cfg.fileColors,
		NoColors:           cfg.noColors,
		ReverseComplements: cfg.reverseComplements,
		LoadDBG:            cfg.loadDBG,
		RAMBudget:          cfg.ramBudgetMB << 20,
		Threads:            cfg.threads,
		MergeFanIn:         8,
		Temp:               &fileTempProvider{dir: cfg.tempDir},
	})
	if err != nil {
		return errors.E(err, "themisto: build")
	}
	return idx.Save(ctx, cfg.outPrefix)
}
