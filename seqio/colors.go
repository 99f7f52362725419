package seqio

import (
	"bufio"
	"context"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// ReadColorFile parses a line-delimited integer color file (spec.md §6's
// "-c"/"--color-file": one color per input sequence, in sequence order).
func ReadColorFile(ctx context.Context, path string) ([]int, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "seqio: open color file", path)
	}
	defer f.Close(ctx) // nolint: errcheck

	var colors []int
	sc := bufio.NewScanner(f.Reader(ctx))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		c, err := strconv.Atoi(line)
		if err != nil {
			return nil, errors.E(err, "seqio: malformed color file line", path)
		}
		colors = append(colors, c)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.E(err, "seqio: read color file", path)
	}
	return colors, nil
}
