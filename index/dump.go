package index

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/grailbio/base/errors"
)

// DumpColorMatrix writes one row per real (non-dummy, length-k) node of
// idx.Graph in colex order, skipping dummy source-side padding nodes.
// Sparse rows are "kmer color_id*" (spec.md §6); dense rows are the k-mer
// line followed by a "0"/"1" row of length LargestColor()+1, set at
// position c iff c is in that node's color set — mirroring dump_index.hh's
// two output modes.
func DumpColorMatrix(w io.Writer, idx *Index, sparse bool) error {
	if idx.Colors == nil {
		return errors.E("index: dump-color-matrix requires a colored index")
	}
	bw := bufio.NewWriter(w)
	g := idx.Graph
	k := g.K()
	width := idx.Colors.LargestColor() + 1

	var dense []byte
	if !sparse {
		dense = make([]byte, width)
	}

	for v := 0; v < g.NNodes(); v++ {
		if g.NodeLength(v) != k {
			continue
		}
		view, ok := idx.Colors.ColorSet(g, v)
		if !ok {
			return errors.E("index: node has no color set", v)
		}
		kmer := g.NodeLabel(v)

		if sparse {
			if _, err := bw.WriteString(kmer); err != nil {
				return err
			}
			for _, c := range view.ToVec() {
				if err := bw.WriteByte(' '); err != nil {
					return err
				}
				if _, err := bw.WriteString(strconv.FormatUint(c, 10)); err != nil {
					return err
				}
			}
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
			continue
		}

		if _, err := fmt.Fprintln(bw, kmer); err != nil {
			return err
		}
		for i := range dense {
			dense[i] = '0'
		}
		for _, c := range view.ToVec() {
			dense[c] = '1'
		}
		if _, err := bw.Write(dense); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
