package isel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kefirc/amd64cg/internal/frame"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/reg"
)

// TestTranslateInvokeSavesLiveCallerSavedRegisterAroundCall exercises the
// wrapper translateInvoke layers on top of abi.LowerCall: a caller-saved
// register the ledger reports occupied must be pushed before the call
// sequence and popped back afterward, in that order relative to the
// "call" instruction itself.
func TestTranslateInvokeSavesLiveCallerSavedRegisterAroundCall(t *testing.T) {
	fn := &ir.Function{Name: "f", Blocks: []*ir.Block{{ID: 1}}}
	alloc := ir.NewRegisterAllocation()
	fm := frame.NewMap(0, 0, 0, false, false, false)
	c, rec, ledger := newTestContext(fn, alloc, fm)
	c.Module.Signatures = map[ir.SignatureID]ir.Signature{1: {}}

	require.NoError(t, ledger.MarkUsed(reg.RCX))

	inst := ir.NewBuilder().Build(ir.OpInvoke, ir.Type{}).WithBlock(1).WithCall(0, 1, nil).WithSymbol("callee")
	require.NoError(t, translateInvoke(c, inst))

	mnemonics := rec.Mnemonics()
	callIdx := indexOf(mnemonics, "call")
	require.NotEqual(t, -1, callIdx)
	assert.Equal(t, "push", mnemonics[0], "a live caller-saved register must be pushed before argument setup")
	assert.Equal(t, "pop", mnemonics[len(mnemonics)-1], "and popped back after the call completes")

	pushIdx := indexOf(mnemonics, "push")
	popIdx := lastIndexOf(mnemonics, "pop")
	assert.True(t, pushIdx < callIdx, "the save must happen before the call")
	assert.True(t, callIdx < popIdx, "the restore must happen after the call")
}

// TestTranslateInvokeSkipsSaveWhenNoCallerSavedRegisterIsLive covers the
// common case: with nothing occupying a caller-saved register, no
// push/pop wrapper is emitted at all.
func TestTranslateInvokeSkipsSaveWhenNoCallerSavedRegisterIsLive(t *testing.T) {
	fn := &ir.Function{Name: "f", Blocks: []*ir.Block{{ID: 1}}}
	alloc := ir.NewRegisterAllocation()
	fm := frame.NewMap(0, 0, 0, false, false, false)
	c, rec, _ := newTestContext(fn, alloc, fm)
	c.Module.Signatures = map[ir.SignatureID]ir.Signature{1: {}}

	inst := ir.NewBuilder().Build(ir.OpInvoke, ir.Type{}).WithBlock(1).WithCall(0, 1, nil).WithSymbol("callee")
	require.NoError(t, translateInvoke(c, inst))

	mnemonics := rec.Mnemonics()
	assert.NotContains(t, mnemonics, "push")
	assert.NotContains(t, mnemonics, "pop")
	assert.Equal(t, "call", mnemonics[len(mnemonics)-1])
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func lastIndexOf(s []string, v string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == v {
			return i
		}
	}
	return -1
}
