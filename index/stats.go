package index

import (
	"fmt"
	"io"
)

// WriteStats prints, one "<structure-name> <bits>" pair per line, the bit
// size of every top-level structure in idx, followed by n_nodes, k and
// largest_color — mirroring Themisto.hh's size-reporting methods
// (get_number_of_bits_for_rows/columns/wheeler_graph, print_stats), flattened
// into the single `stats` subcommand spec.md §6 describes as "print sizes in
// bits of each structure". A graph-only index (idx.Colors == nil) reports
// 0 bits for every color-related structure and largest_color -1.
func WriteStats(w io.Writer, idx *Index) error {
	l, in, out, c := idx.Graph.SizeBits()
	var b, d, f, core, ids int64
	largestColor := -1
	if idx.Colors != nil {
		b, d, f = idx.Colors.Store().SizeBits()
		core, ids = idx.Colors.SizeBits()
		largestColor = idx.Colors.LargestColor()
	}

	rows := []struct {
		name string
		bits int64
	}{
		{"L", l},
		{"In", in},
		{"Out", out},
		{"C", c},
		{"B", b},
		{"D", d},
		{"F", f},
		{"Core", core},
		{"Ids", ids},
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%s %d\n", r.name, r.bits); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "n_nodes %d\n", idx.Graph.NNodes()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "k %d\n", idx.Graph.K()); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "largest_color %d\n", largestColor)
	return err
}
