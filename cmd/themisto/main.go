// Command themisto builds and queries a colored de Bruijn graph index:
// "themisto build" constructs a .tdbg/.tcolors pair from input sequences,
// "themisto pseudoalign" aligns reads against one, "themisto
// dump-color-matrix" and "themisto stats" inspect one. Dispatch mirrors
// cmd/bio-fusion and cmd/bio-pamtool's plain flag.FlagSet-per-command style:
// no cobra/urfave, just os.Args[1] naming the subcommand.
package main

import (
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
)

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: themisto <command> [flags]

Commands:
  build              Build a .tdbg/.tcolors index from input sequences
  pseudoalign        Pseudoalign reads against a built index
  dump-color-matrix  Print per-k-mer color rows
  stats              Print the bit size of each index structure`)
}

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	shutdown := grail.Init()
	defer shutdown()

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "build":
		err = runBuild(args)
	case "pseudoalign":
		err = runPseudoalign(args)
	case "dump-color-matrix":
		err = runDumpColorMatrix(args)
	case "stats":
		err = runStats(args)
	case "-h", "-help", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "themisto: unknown command %q\n\n", cmd)
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "themisto %s: %v\n", cmd, err)
		os.Exit(1)
	}
}
