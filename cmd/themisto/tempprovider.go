package main

import (
	"io/ioutil"
	"os"

	"github.com/grailbio/base/errors"
)

// fileTempProvider hands out fresh temp file paths under dir, the
// production emsort.TempProvider backing build's external sorts. Grounded on encoding/bampair/distant_mate_table.go's
// ioutil.TempDir(scratchDir, "markdups") scratch-space pattern; New uses
// ioutil.TempFile rather than a hand-rolled counter so concurrent callers
// (boss.Build/colormap.Build run their sort passes from multiple threads)
// never race on the same path — the OS already guarantees uniqueness.
type fileTempProvider struct {
	dir string
}

func (p *fileTempProvider) New() (string, error) {
	f, err := ioutil.TempFile(p.dir, "themisto-")
	if err != nil {
		return "", errors.E(err, "themisto: create temp file", p.dir)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		return "", errors.E(err, "themisto: close temp file", path)
	}
	if err := os.Remove(path); err != nil {
		return "", errors.E(err, "themisto: remove temp file placeholder", path)
	}
	return path, nil
}
