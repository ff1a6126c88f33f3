package isel

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

// newTestFunc builds a one-block Function with Analysis covering that
// single block, sufficient for translators that don't branch.
func newTestFunc(name string, blocks ...ir.BlockID) *ir.Function {
	fnBlocks := make([]*ir.Block, len(blocks))
	for i, id := range blocks {
		fnBlocks[i] = &ir.Block{ID: id}
	}
	fn := &ir.Function{Name: name, Blocks: fnBlocks}
	fn.Analysis = ir.NewAnalysis(blocks, blocks)
	return fn
}

func newTestContext(fn *ir.Function, alloc *ir.RegisterAllocation, fm *frame.Map) (*Context, *asmfmttest.Recorder, *storage.Ledger) {
	rec := &asmfmttest.Recorder{}
	ledger := storage.NewLedger(rec, nil)
	c := &Context{
		Emit:   rec,
		Ledger: ledger,
		Frame:  fm,
		Alloc:  alloc,
		Module: &ir.Module{},
		Func:   fn,
	}
	return c, rec, ledger
}

// TestIntAddIntoSpillSlot exercises spec.md scenario A: %2 = add %0, %1
// where %0 is in rax, %1 in rcx, %2 lives in spill slot 3.
func TestIntAddIntoSpillSlot(t *testing.T) {
	fn := newTestFunc("f", 1)
	b := ir.NewBuilder()
	add := b.Build(ir.OpIntAdd, ir.NewScalarType(ir.TypeI64), 100, 101).WithBlock(1)

	alloc := ir.NewRegisterAllocation()
	alloc.Set(ir.Value(100), ir.GPR(reg.RAX))
	alloc.Set(ir.Value(101), ir.GPR(reg.RCX))
	alloc.Set(add.ID(), ir.Spill(3))

	fm := frame.NewMap(0, 4, 0, false, false, false)
	c, _, ledger := newTestContext(fn, alloc, fm)

	require.NoError(t, translateBinaryOp(c, add))
	assert.False(t, ledger.HasBorrowed())

	mnemonics := c.Emit.(*asmfmttest.Recorder).Mnemonics()
	require.Contains(t, mnemonics, "add")
	require.Contains(t, mnemonics, "mov", "the result must be stored back to its spill slot")
	assert.Equal(t, "mov", mnemonics[len(mnemonics)-1], "the spill store-back is the translator's final emission")
}

// TestInt8LoadSignedSignExtends exercises spec.md scenario B: %1 =
// int8_load_signed %0, %0 in rsi, %1 in rdi.
func TestInt8LoadSignedSignExtends(t *testing.T) {
	fn := newTestFunc("f", 1)
	b := ir.NewBuilder()
	load := b.Build(ir.OpInt8LoadSigned, ir.NewScalarType(ir.TypeI64), 100).WithBlock(1)

	alloc := ir.NewRegisterAllocation()
	alloc.Set(ir.Value(100), ir.GPR(reg.RSI))
	alloc.Set(load.ID(), ir.GPR(reg.RDI))

	fm := frame.NewMap(0, 0, 0, false, false, false)
	c, rec, _ := newTestContext(fn, alloc, fm)

	require.NoError(t, translateLoad(c, load))

	found := false
	for _, op := range rec.Ops {
		if op.Mnemonic == "movsx" {
			found = true
		}
	}
	assert.True(t, found, "a signed 8-bit load must use movsx")
}

// TestMemoryCopy64Bytes exercises spec.md scenario F: a 64-byte
// MemoryCopy lowers to the rsi/rdi/rcx setup plus rep movsb.
func TestMemoryCopy64Bytes(t *testing.T) {
	fn := newTestFunc("f", 1)
	b := ir.NewBuilder()
	cp := b.Build(ir.OpMemoryCopy, ir.Type{}, 100, 101).WithBlock(1).WithImm(64)

	alloc := ir.NewRegisterAllocation()
	alloc.Set(ir.Value(100), ir.GPR(reg.RBX))
	alloc.Set(ir.Value(101), ir.GPR(reg.R12))

	fm := frame.NewMap(0, 0, 0, false, false, false)
	c, rec, ledger := newTestContext(fn, alloc, fm)

	require.NoError(t, translateMemoryCopy(c, cp))
	assert.False(t, ledger.HasBorrowed())

	mnemonics := rec.Mnemonics()
	assert.Equal(t, "rep movsb", mnemonics[len(mnemonics)-1])

	var sawRSIMove, sawRCXImm bool
	for _, op := range rec.Ops {
		if op.Mnemonic == "mov" && len(op.Operands) == 2 && op.Operands[0] == "rsi:8" {
			sawRSIMove = true
		}
		if op.Mnemonic == "mov" && len(op.Operands) == 2 && op.Operands[0] == "rcx:8" && op.Operands[1] == "$64" {
			sawRCXImm = true
		}
	}
	assert.True(t, sawRSIMove, "the source pointer must land in rsi")
	assert.True(t, sawRCXImm, "the byte count must be loaded into rcx as an immediate")
}

// TestLongDoubleMultiplication exercises spec.md scenario E: both
// operands are loaded via fld from 10-byte memory, combined with fmulp,
// and the single remaining x87 stack entry is stored with fstp.
func TestLongDoubleMultiplication(t *testing.T) {
	fn := newTestFunc("f", 1)
	b := ir.NewBuilder()
	mul := b.Build(ir.OpLongDoubleMul, ir.Type{}, 100, 101, 102).WithBlock(1)

	alloc := ir.NewRegisterAllocation()
	alloc.Set(ir.Value(100), ir.GPR(reg.RDI)) // lhs pointer
	alloc.Set(ir.Value(101), ir.GPR(reg.RSI)) // rhs pointer
	alloc.Set(ir.Value(102), ir.GPR(reg.RDX)) // dest pointer

	fm := frame.NewMap(0, 0, 0, false, false, false)
	c, rec, ledger := newTestContext(fn, alloc, fm)

	require.NoError(t, translateLongDoubleBinary(c, mul))
	assert.False(t, ledger.HasBorrowed())

	mnemonics := rec.Mnemonics()
	assert.Equal(t, []string{"mov", "fld", "mov", "fld", "fmulp", "mov", "fstp"}, mnemonics,
		"rhs loads first, then lhs, each through a freshly-acquired pointer register, before the pop-form opcode and the single fstp store-back")
}
