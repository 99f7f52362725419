package biosimd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanASCIISeqInplace(t *testing.T) {
	buf := []byte("acgtNnRYacgt")
	CleanASCIISeqInplace(buf)
	assert.Equal(t, "ACGTAAAAACGT", string(buf))
}

func TestReverseComp8(t *testing.T) {
	src := []byte("ACGTT")
	dst := make([]byte, len(src))
	ReverseComp8(dst, src)
	assert.Equal(t, "AACGT", string(dst))
}
