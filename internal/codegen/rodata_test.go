package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kefirc/amd64cg/internal/asmfmt/asmfmttest"
	"github.com/kefirc/amd64cg/internal/isel"
)

func TestConstantPoolInternStringDedupesIdenticalLiterals(t *testing.T) {
	p := NewConstantPool()
	l1 := p.InternString([]byte("hi"), 1)
	l2 := p.InternString([]byte("hi"), 1)
	l3 := p.InternString([]byte("hi"), 2) // same bytes, different width: distinct entry

	assert.Equal(t, l1, l2, "interning the same literal twice must return the same label")
	assert.NotEqual(t, l1, l3, "the same bytes at a different element width are a distinct literal")
}

func TestConstantPoolEmitWritesSignMasksAndLiteralsInOrder(t *testing.T) {
	p := NewConstantPool()
	first := p.InternString([]byte{0x41, 0x00}, 2)
	second := p.InternString([]byte{0x01, 0x02, 0x03, 0x04}, 4)

	rec := &asmfmttest.Recorder{}
	p.Emit(rec)

	var labels []string
	for _, op := range rec.Ops {
		if op.IsLabel {
			labels = append(labels, op.Label)
		}
	}
	require.Equal(t, []string{isel.F32SignMask, isel.F64SignMask, string(first), string(second)}, labels,
		"the shared sign masks come first, then literals in interning order")
}

func TestEmitWidthChunksPacksLittleEndianByElementWidth(t *testing.T) {
	rec := &asmfmttest.Recorder{}
	emitWidthChunks(rec, []byte{0x01, 0x02, 0x03, 0x04}, 4)

	require.Len(t, rec.Ops, 1)
	assert.Equal(t, ".long 0x04030201", rec.Ops[0].Mnemonic)
}
