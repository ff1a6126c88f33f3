package isel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kefirc/amd64cg/internal/frame"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/reg"
)

// TestTranslateJumpReconcilesPhiBeforeFallingThrough exercises testable
// property 9: a Jump into a block with a phi must move the phi's
// incoming value into the phi result's location before control reaches
// the target, and must elide the jmp itself when the target is laid out
// immediately afterward.
func TestTranslateJumpReconcilesPhiBeforeFallingThrough(t *testing.T) {
	phiResult, incoming := ir.Value(10), ir.Value(20)
	target := &ir.Block{
		ID:    2,
		Phis:  []ir.Phi{{Result: phiResult, Sources: map[ir.BlockID]ir.Value{1: incoming}}},
		Preds: []ir.BlockID{1},
	}
	fn := &ir.Function{
		Name:   "f",
		Blocks: []*ir.Block{{ID: 1}, target},
	}
	fn.Analysis = ir.NewAnalysis([]ir.BlockID{1, 2}, []ir.BlockID{1, 2})

	alloc := ir.NewRegisterAllocation()
	alloc.Set(phiResult, ir.GPR(reg.RAX))
	alloc.Set(incoming, ir.GPR(reg.RCX))

	fm := frame.NewMap(0, 0, 0, false, false, false)
	c, rec, ledger := newTestContext(fn, alloc, fm)

	jump := ir.NewBuilder().Build(ir.OpJump, ir.Type{}).WithBlock(1).WithTargets(2)
	require.NoError(t, translateJump(c, jump))
	assert.False(t, ledger.HasBorrowed())

	mnemonics := rec.Mnemonics()
	require.Equal(t, []string{"mov"}, mnemonics, "the phi move is the only emission; the fallthrough edge needs no jmp")

	op := rec.Ops[0]
	assert.Equal(t, []string{"rax:8", "rcx:8"}, op.Operands, "the phi result's register receives the incoming value's register")
}

// TestTranslateJumpEmitsJmpWhenNotFallthrough is the same setup but with
// block order reversed, so the jump target is no longer the immediately
// following block and an explicit jmp must be emitted after the phi move.
func TestTranslateJumpEmitsJmpWhenNotFallthrough(t *testing.T) {
	phiResult, incoming := ir.Value(10), ir.Value(20)
	target := &ir.Block{
		ID:    2,
		Phis:  []ir.Phi{{Result: phiResult, Sources: map[ir.BlockID]ir.Value{1: incoming}}},
		Preds: []ir.BlockID{1},
	}
	fn := &ir.Function{
		Name:   "f",
		Blocks: []*ir.Block{target, {ID: 1}},
	}
	fn.Analysis = ir.NewAnalysis([]ir.BlockID{2, 1}, []ir.BlockID{1, 2})

	alloc := ir.NewRegisterAllocation()
	alloc.Set(phiResult, ir.GPR(reg.RAX))
	alloc.Set(incoming, ir.GPR(reg.RCX))

	fm := frame.NewMap(0, 0, 0, false, false, false)
	c, rec, _ := newTestContext(fn, alloc, fm)

	jump := ir.NewBuilder().Build(ir.OpJump, ir.Type{}).WithBlock(1).WithTargets(2)
	require.NoError(t, translateJump(c, jump))

	mnemonics := rec.Mnemonics()
	assert.Equal(t, []string{"mov", "jmp"}, mnemonics)
}

// TestTranslateJumpToUnreachableTargetSkipsReconciliation covers
// storage.MapRegisters's short-circuit: a target the analysis marks
// unreachable gets no phi moves at all, even though the phi node exists.
func TestTranslateJumpToUnreachableTargetSkipsReconciliation(t *testing.T) {
	phiResult, incoming := ir.Value(10), ir.Value(20)
	target := &ir.Block{
		ID:    2,
		Phis:  []ir.Phi{{Result: phiResult, Sources: map[ir.BlockID]ir.Value{1: incoming}}},
		Preds: []ir.BlockID{1},
	}
	fn := &ir.Function{
		Name:   "f",
		Blocks: []*ir.Block{{ID: 1}, target},
	}
	fn.Analysis = ir.NewAnalysis([]ir.BlockID{2, 1}, []ir.BlockID{1})

	alloc := ir.NewRegisterAllocation()
	alloc.Set(phiResult, ir.GPR(reg.RAX))
	alloc.Set(incoming, ir.GPR(reg.RCX))

	fm := frame.NewMap(0, 0, 0, false, false, false)
	c, rec, _ := newTestContext(fn, alloc, fm)

	jump := ir.NewBuilder().Build(ir.OpJump, ir.Type{}).WithBlock(1).WithTargets(2)
	require.NoError(t, translateJump(c, jump))

	mnemonics := rec.Mnemonics()
	assert.Equal(t, []string{"jmp"}, mnemonics, "an unreachable target gets no phi reconciliation, only the control transfer itself")
}
