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

// TestTranslateReadModifyWriteAddition exercises the read-modify-write
// pattern `"addq %1, %0" : "=r"(a) : "r"(b), "0"(a)`: %0 ties an output
// register to input value a, %1 is a plain input holding b.
func TestTranslateReadModifyWriteAddition(t *testing.T) {
	a, b := ir.Value(1), ir.Value(2)
	fn := &ir.Function{
		Name:      "addinto",
		Signature: ir.Signature{Params: []ir.Type{ir.NewScalarType(ir.TypeI64), ir.NewScalarType(ir.TypeI64)}},
		Params:    []ir.Value{a, b},
		Blocks: []*ir.Block{
			{ID: 1},
			{ID: 2},
		},
	}

	alloc := ir.NewRegisterAllocation()
	alloc.Set(a, ir.GPR(reg.RBX))
	alloc.Set(b, ir.GPR(reg.RDX))

	frag := &ir.InlineAssemblyFragment{
		Template: "addq %1, %0",
		Parameters: []ir.AsmParam{
			{Name: "0", Constraint: ir.ConstraintRegister, IO: ir.ParamReadStore, Value: a, ReadValue: a},
			{Name: "1", Constraint: ir.ConstraintRegister, IO: ir.ParamRead, Value: b, ReadValue: b},
		},
	}

	rec := &asmfmttest.Recorder{}
	ledger := storage.NewLedger(rec, nil)
	fm := frame.NewMap(0, 0, 0, false, false, false)

	err := Translate(rec, ledger, fm, alloc, &ir.Module{}, fn, nil, frag, 1, 2, 0)
	require.NoError(t, err)

	mnemonics := rec.Mnemonics()
	require.Contains(t, mnemonics, "sub", "the scratch area must be reserved before loading inputs")
	require.Contains(t, mnemonics, "addq %rcx, %rax", "the template's own instruction must be emitted between input load and output store")
	require.Contains(t, mnemonics, "add", "the scratch area must be released before falling through")
	assert.Equal(t, "jmp", mnemonics[len(mnemonics)-1], "the default edge falls through via an explicit jmp since Analysis is absent")

	subIdx := indexOf(mnemonics, "sub")
	rawIdx := indexOf(mnemonics, "addq %rcx, %rax")
	addIdx := lastIndexOf(mnemonics, "add")
	require.True(t, subIdx < rawIdx, "scratch reservation must precede the template body")
	require.True(t, rawIdx < addIdx, "the template body must precede scratch release")

	movCount := 0
	for _, m := range mnemonics {
		if m == "mov" {
			movCount++
		}
	}
	assert.GreaterOrEqual(t, movCount, 5, "expect output-pointer preservation, two input loads, and two output-store moves")
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
