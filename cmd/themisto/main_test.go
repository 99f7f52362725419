package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFasta(t *testing.T, dir, name, seq string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(">s0\n"+seq+"\n"), 0o644))
	return path
}

func TestEndToEndBuildPseudoalignDumpStats(t *testing.T) {
	dir := testutil.GetTmpDir()
	in := writeFasta(t, dir, "in.fasta", "AACCGGTTA")
	prefix := filepath.Join(dir, "idx")

	require.NoError(t, runBuild([]string{
		"-k", "3",
		"-i", in,
		"-o", prefix,
		"-temp-dir", dir,
	}))
	_, err := os.Stat(prefix + ".tdbg")
	require.NoError(t, err)
	_, err = os.Stat(prefix + ".tcolors")
	require.NoError(t, err)

	query := writeFasta(t, dir, "query.fasta", "AACCGGTTA")
	out := filepath.Join(dir, "out.txt")
	require.NoError(t, runPseudoalign([]string{
		"-i", prefix,
		"-q", query,
		"-o", out,
		"-sort-hits",
	}))
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "0 0\n", string(got))

	matrix := filepath.Join(dir, "matrix.txt")
	require.NoError(t, runDumpColorMatrix([]string{"-i", prefix, "-o", matrix, "-sparse"}))
	matrixData, err := os.ReadFile(matrix)
	require.NoError(t, err)
	assert.Contains(t, string(matrixData), "0\n")

	require.NoError(t, runStats([]string{"-i", prefix}))
}

func TestBuildConfigValidateRejectsConflictingColorFlags(t *testing.T) {
	cfg := &buildConfig{k: 3, outPrefix: "out", colorFile: "colors.txt", fileColors: true}
	cfg.inputs.values = []string{"a.fasta"}
	assert.Error(t, cfg.validate())
}

func TestPseudoalignConfigValidateRequiresExactlyOneQuerySource(t *testing.T) {
	cfg := &pseudoalignConfig{indexPrefix: "idx"}
	assert.Error(t, cfg.validate())

	cfg.query, cfg.out = "q.fasta", "out.txt"
	cfg.queryFileList = "list.txt"
	assert.Error(t, cfg.validate())
}
