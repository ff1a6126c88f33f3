package abi

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

func TestLowerVarArgStartMaterializesFourFields(t *testing.T) {
	fm := frame.NewMap(0, 1, 0, true, false, false)
	rec := &asmfmttest.Recorder{}
	ledger := storage.NewLedger(rec, nil)

	argAlloc := ir.Allocation{Kind: ir.AllocSpillSlot, Index: 0}
	require.NoError(t, LowerVarArgStart(rec, ledger, fm, argAlloc, 3, 1, 0))

	mnemonics := rec.Mnemonics()
	assert.Contains(t, mnemonics, "lea")
	assert.Contains(t, mnemonics, "mov")
	assert.False(t, ledger.HasBorrowed())
}

func TestLowerVarArgCopyMovesThreeQwords(t *testing.T) {
	fm := frame.NewMap(0, 2, 0, true, false, false)
	rec := &asmfmttest.Recorder{}
	ledger := storage.NewLedger(rec, nil)

	src := ir.Allocation{Kind: ir.AllocSpillSlot, Index: 0}
	dst := ir.Allocation{Kind: ir.AllocSpillSlot, Index: 1}
	require.NoError(t, LowerVarArgCopy(rec, ledger, fm, src, dst))

	count := 0
	for _, m := range rec.Mnemonics() {
		if m == "mov" {
			count++
		}
	}
	// 3 qwords loaded into a scratch register plus 3 stored back, in
	// addition to the pointer loads for src/dst themselves.
	assert.GreaterOrEqual(t, count, 6)
	assert.False(t, ledger.HasBorrowed())
}

func TestLowerVarArgGetScalarCallsIntegerRuntimeHelper(t *testing.T) {
	fm := frame.NewMap(0, 1, 0, true, false, false)
	rec := &asmfmttest.Recorder{}
	ledger := storage.NewLedger(rec, nil)

	argAlloc := ir.Allocation{Kind: ir.AllocGPR, Reg: reg.RBX}
	require.NoError(t, LowerVarArgGetScalar(rec, ledger, fm, argAlloc, false))

	require.NotEmpty(t, rec.Ops)
	last := rec.Ops[len(rec.Ops)-1]
	assert.Equal(t, "call", last.Mnemonic)
	assert.False(t, ledger.HasBorrowed())
}

func TestLowerVarArgGetScalarCallsSSERuntimeHelper(t *testing.T) {
	fm := frame.NewMap(0, 1, 0, true, false, false)
	rec := &asmfmttest.Recorder{}
	ledger := storage.NewLedger(rec, nil)

	argAlloc := ir.Allocation{Kind: ir.AllocGPR, Reg: reg.RBX}
	require.NoError(t, LowerVarArgGetScalar(rec, ledger, fm, argAlloc, true))

	last := rec.Ops[len(rec.Ops)-1]
	assert.Equal(t, "call", last.Mnemonic)
}

func TestLowerVarArgGetMemoryAggregateAlignsAndAdvancesOverflowPointer(t *testing.T) {
	fm := frame.NewMap(0, 2, 0, true, false, false)
	rec := &asmfmttest.Recorder{}
	ledger := storage.NewLedger(rec, nil)

	argAlloc := ir.Allocation{Kind: ir.AllocSpillSlot, Index: 0}
	resultAlloc := ir.Allocation{Kind: ir.AllocSpillSlot, Index: 1}

	require.NoError(t, LowerVarArgGetMemoryAggregate(rec, ledger, fm, argAlloc, resultAlloc, 24, 16))

	mnemonics := rec.Mnemonics()
	assert.Contains(t, mnemonics, "and", "alignment > 8 must round the overflow pointer up to the type's alignment")
	assert.Contains(t, mnemonics, "lea")
	assert.False(t, ledger.HasBorrowed())
}

// Regression test for the fixed allocReg/reg.Invalid bug: every vararg
// entry point must still acquire a genuine scratch GPR when the va_list
// pointer itself is spilled to memory rather than already register-
// resident, instead of silently operating on an invalid register.
func TestAcquireForAllocationReturnsRealScratchRegisterForSpilledAllocation(t *testing.T) {
	rec := &asmfmttest.Recorder{}
	ledger := storage.NewLedger(rec, nil)

	h, err := acquireForAllocation(ledger, ir.Allocation{Kind: ir.AllocSpillSlot, Index: 0})
	require.NoError(t, err)
	assert.NotEqual(t, reg.Invalid, h.Reg())
	require.NoError(t, ledger.Release(h))
}

func TestAcquireForAllocationReusesOwnRegisterWhenAlreadyResident(t *testing.T) {
	rec := &asmfmttest.Recorder{}
	ledger := storage.NewLedger(rec, nil)

	h, err := acquireForAllocation(ledger, ir.Allocation{Kind: ir.AllocGPR, Reg: reg.R10})
	require.NoError(t, err)
	assert.Equal(t, reg.R10, h.Reg())
	require.NoError(t, ledger.Release(h))
}
