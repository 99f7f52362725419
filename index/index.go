// Package index ties boss, colorset and colormap together into the
// on-disk index format of spec.md §6: a ".tdbg" file holding the SBWT
// (boss.BOSS's own self-delimiting WriteTo/ReadFrom) and a ".tcolors" file
// holding the node-to-color-set map (colormap.Map's own WriteTo/ReadFrom,
// which embeds its colorset.Store). Grounded on
// original_source/include/Themisto.hh's Themisto::save/load, which writes
// the same two files at the same prefix.
package index

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"

	"github.com/themistobio/themisto/boss"
	"github.com/themistobio/themisto/colormap"
)

const (
	dbgSuffix    = ".tdbg"
	colorSuffix  = ".tcolors"
)

// Index is a built or loaded Themisto index: the de Bruijn graph and,
// unless the index was built with --no-colors, its node-to-color-set map.
type Index struct {
	Graph  *boss.BOSS
	Colors *colormap.Map
}

// Save writes Graph to prefix+".tdbg" and, if Colors is non-nil,
// Colors to prefix+".tcolors".
func (idx *Index) Save(ctx context.Context, prefix string) error {
	dbgFile, err := file.Create(ctx, prefix+dbgSuffix)
	if err != nil {
		return errors.E(err, "index: create", prefix+dbgSuffix)
	}
	if _, err := idx.Graph.WriteTo(dbgFile.Writer(ctx)); err != nil {
		dbgFile.Close(ctx) // nolint: errcheck
		return errors.E(err, "index: write", prefix+dbgSuffix)
	}
	if err := dbgFile.Close(ctx); err != nil {
		return errors.E(err, "index: close", prefix+dbgSuffix)
	}

	if idx.Colors == nil {
		return nil
	}
	colorFile, err := file.Create(ctx, prefix+colorSuffix)
	if err != nil {
		return errors.E(err, "index: create", prefix+colorSuffix)
	}
	if _, err := idx.Colors.WriteTo(colorFile.Writer(ctx)); err != nil {
		colorFile.Close(ctx) // nolint: errcheck
		return errors.E(err, "index: write", prefix+colorSuffix)
	}
	if err := colorFile.Close(ctx); err != nil {
		return errors.E(err, "index: close", prefix+colorSuffix)
	}
	return nil
}

// Load reads prefix+".tdbg" and, if present, prefix+".tcolors".
func Load(ctx context.Context, prefix string) (*Index, error) {
	dbgFile, err := file.Open(ctx, prefix+dbgSuffix)
	if err != nil {
		return nil, errors.E(err, "index: open", prefix+dbgSuffix)
	}
	defer dbgFile.Close(ctx) // nolint: errcheck
	g, err := boss.ReadFrom(dbgFile.Reader(ctx))
	if err != nil {
		return nil, errors.E(err, "index: read", prefix+dbgSuffix)
	}

	idx := &Index{Graph: g}

	colorFile, err := file.Open(ctx, prefix+colorSuffix)
	if err != nil {
		// A graph-only index (built with --no-colors, or via --load-dbg
		// before its coloring pass) has no .tcolors file; that's not an
		// error at load time.
		return idx, nil
	}
	defer colorFile.Close(ctx) // nolint: errcheck
	m, err := colormap.ReadFrom(colorFile.Reader(ctx))
	if err != nil {
		return nil, errors.E(err, "index: read", prefix+colorSuffix)
	}
	idx.Colors = m
	return idx, nil
}
