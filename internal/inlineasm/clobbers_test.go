package inlineasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kefirc/amd64cg/internal/asmfmt/asmfmttest"
	"github.com/kefirc/amd64cg/internal/frame"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/reg"
	"github.com/kefirc/amd64cg/internal/storage"
)

func newTestContext(t *testing.T, fragment *ir.InlineAssemblyFragment) (*Context, *asmfmttest.Recorder) {
	t.Helper()
	rec := &asmfmttest.Recorder{}
	ledger := storage.NewLedger(rec, nil)
	fm := frame.NewMap(0, 0, 0, false, false, false)
	alloc := ir.NewRegisterAllocation()
	fn := &ir.Function{Name: "f", Blocks: []*ir.Block{{ID: 1}}}
	c := NewContext(rec, ledger, fm, alloc, &ir.Module{}, fn, nil, fragment, 1, 1, 0)
	return c, rec
}

func TestMarkClobbersRecognizesRegistersAndFlags(t *testing.T) {
	c, _ := newTestContext(t, &ir.InlineAssemblyFragment{
		Clobbers: []string{"rax", "%ecx", "cc", "memory"},
	})
	require.NoError(t, MarkClobbers(c))

	assert.True(t, c.dirtyRegisters[reg.RAX], "rax clobber must mark RAX dirty")
	assert.True(t, c.dirtyRegisters[reg.RCX], "ecx clobber must resolve to the enclosing RCX identity")
	assert.True(t, c.dirtyCC, "cc clobber must set dirtyCC")
	assert.False(t, c.dirtyRegisters[reg.RDX], "unclobbered register must stay clean")
}

func TestMarkClobbersIgnoresUnrecognizedNames(t *testing.T) {
	c, _ := newTestContext(t, &ir.InlineAssemblyFragment{
		Clobbers: []string{"memory", "fpsr", "unknown_hint"},
	})
	require.NoError(t, MarkClobbers(c))

	assert.Empty(t, c.dirtyRegisters)
	assert.False(t, c.dirtyCC)
}

func TestMarkClobbersCaseAndPercentInsensitive(t *testing.T) {
	c, _ := newTestContext(t, &ir.InlineAssemblyFragment{
		Clobbers: []string{"%RAX", "  rbx  "},
	})
	require.NoError(t, MarkClobbers(c))

	assert.True(t, c.dirtyRegisters[reg.RAX])
	assert.True(t, c.dirtyRegisters[reg.RBX])
}
