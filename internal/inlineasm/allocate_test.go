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

// scalarFunc builds a Function whose values 1..len(types) are typed per
// types, suitable for exercising AllocateParameters without a real
// instruction stream.
func scalarFunc(types ...ir.Type) *ir.Function {
	params := make([]ir.Value, len(types))
	for i := range types {
		params[i] = ir.Value(i + 1)
	}
	return &ir.Function{
		Name:      "f",
		Signature: ir.Signature{Params: types},
		Blocks:    []*ir.Block{{ID: 1}},
		Params:    params,
	}
}

func newAllocContext(t *testing.T, fn *ir.Function, fragment *ir.InlineAssemblyFragment) (*Context, *asmfmttest.Recorder) {
	t.Helper()
	rec := &asmfmttest.Recorder{}
	ledger := storage.NewLedger(rec, nil)
	fm := frame.NewMap(0, 0, 0, false, false, false)
	alloc := ir.NewRegisterAllocation()
	c := NewContext(rec, ledger, fm, alloc, &ir.Module{}, fn, nil, fragment, 1, 1, 0)
	return c, rec
}

func TestAllocateParametersRegisterConstraintScalar(t *testing.T) {
	fn := scalarFunc(ir.NewScalarType(ir.TypeI64))
	frag := &ir.InlineAssemblyFragment{
		Parameters: []ir.AsmParam{
			{Name: "0", Constraint: ir.ConstraintRegister, IO: ir.ParamReadStore, Value: 1, ReadValue: 1},
		},
	}
	c, _ := newAllocContext(t, fn, frag)
	require.NoError(t, MarkClobbers(c))
	require.NoError(t, AllocateParameters(c))

	entry := c.parameterAllocation[0]
	assert.Equal(t, AllocationRegister, entry.Allocation)
	assert.Equal(t, ParameterScalar, entry.Kind)
	assert.True(t, entry.DirectValue, "read-store parameters load straight into their allocated register")
}

func TestAllocateParametersMemoryConstraintReadOnlyGoesToStack(t *testing.T) {
	fn := scalarFunc(ir.NewScalarType(ir.TypeI64))
	frag := &ir.InlineAssemblyFragment{
		Parameters: []ir.AsmParam{
			{Name: "0", Constraint: ir.ConstraintMemory, IO: ir.ParamRead, Value: 1, ReadValue: 1},
		},
	}
	c, _ := newAllocContext(t, fn, frag)
	require.NoError(t, MarkClobbers(c))
	require.NoError(t, AllocateParameters(c))

	entry := c.parameterAllocation[0]
	assert.Equal(t, AllocationStack, entry.Allocation)
	assert.True(t, c.stackInput.initialized, "the first stack parameter must claim a base register")
}

func TestAllocateParametersMemoryConstraintStoreGoesRegisterIndirect(t *testing.T) {
	fn := scalarFunc(ir.NewScalarType(ir.TypeI64))
	frag := &ir.InlineAssemblyFragment{
		Parameters: []ir.AsmParam{
			{Name: "0", Constraint: ir.ConstraintMemory, IO: ir.ParamStore, Value: 1},
		},
	}
	c, _ := newAllocContext(t, fn, frag)
	require.NoError(t, MarkClobbers(c))
	require.NoError(t, AllocateParameters(c))

	entry := c.parameterAllocation[0]
	assert.Equal(t, AllocationRegisterIndirect, entry.Allocation)
	assert.False(t, entry.OutputPreserved, "register-indirect output parameters are already their own pointer")
}

func TestAllocateParametersStoreThroughRegisterIsOutputPreserved(t *testing.T) {
	fn := scalarFunc(ir.NewScalarType(ir.TypeI64))
	frag := &ir.InlineAssemblyFragment{
		Parameters: []ir.AsmParam{
			{Name: "0", Constraint: ir.ConstraintRegister, IO: ir.ParamStore, Value: 1},
		},
	}
	c, _ := newAllocContext(t, fn, frag)
	require.NoError(t, MarkClobbers(c))
	require.NoError(t, AllocateParameters(c))

	entry := c.parameterAllocation[0]
	assert.Equal(t, AllocationRegister, entry.Allocation)
	assert.True(t, entry.OutputPreserved)
	assert.Equal(t, 0, entry.OutputStackIndex)
	assert.Equal(t, 1, c.stackOutput.count)
}

func TestAllocateParametersImmediateSkipsAllocation(t *testing.T) {
	fn := scalarFunc(ir.NewScalarType(ir.TypeI32))
	frag := &ir.InlineAssemblyFragment{
		Parameters: []ir.AsmParam{
			{Name: "0", Constraint: ir.ConstraintImmediate, IO: ir.ParamRead, Value: 1},
		},
		Literals: map[string]string{"0": "42"},
	}
	c, _ := newAllocContext(t, fn, frag)
	require.NoError(t, MarkClobbers(c))
	require.NoError(t, AllocateParameters(c))

	entry := c.parameterAllocation[0]
	assert.Equal(t, reg.Invalid, entry.Reg, "an immediate parameter claims no register")
	assert.Zero(t, c.stackInput.count, "an immediate parameter claims no stack slot either")
}

func TestAllocateParametersRegisterConstraintRejectsOversizedAggregate(t *testing.T) {
	fn := scalarFunc(ir.NewAggregateType(16, 8, nil))
	frag := &ir.InlineAssemblyFragment{
		Parameters: []ir.AsmParam{
			{Name: "0", Constraint: ir.ConstraintRegister, IO: ir.ParamRead, Value: 1},
		},
	}
	c, _ := newAllocContext(t, fn, frag)
	require.NoError(t, MarkClobbers(c))
	err := AllocateParameters(c)
	assert.Error(t, err)
}
