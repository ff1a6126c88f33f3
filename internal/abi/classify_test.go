package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/reg"
)

func TestClassifyScalarIntArgsUseIntegerRegisterOrder(t *testing.T) {
	sig := ir.Signature{
		Params:  []ir.Type{ir.NewScalarType(ir.TypeI64), ir.NewScalarType(ir.TypeI32), ir.NewScalarType(ir.TypePtr)},
		Results: []ir.Type{ir.NewScalarType(ir.TypeI64)},
	}
	abi, err := Classify(sig)
	require.NoError(t, err)

	require.Len(t, abi.Params, 3)
	assert.Equal(t, ArgIntReg, abi.Params[0].Kind)
	assert.Equal(t, reg.RDI, abi.Params[0].IntRegs[0])
	assert.Equal(t, reg.RSI, abi.Params[1].IntRegs[0])
	assert.Equal(t, reg.RDX, abi.Params[2].IntRegs[0])
	assert.Equal(t, ArgIntReg, abi.Return.Kind)
	assert.Equal(t, reg.RAX, abi.Return.IntRegs[0])
}

func TestClassifyMixedIntAndFloatArgsUseIndependentCounters(t *testing.T) {
	sig := ir.Signature{
		Params: []ir.Type{
			ir.NewScalarType(ir.TypeI64),
			ir.NewScalarType(ir.TypeF64),
			ir.NewScalarType(ir.TypeI64),
			ir.NewScalarType(ir.TypeF64),
		},
	}
	abi, err := Classify(sig)
	require.NoError(t, err)

	assert.Equal(t, reg.RDI, abi.Params[0].IntRegs[0])
	assert.Equal(t, reg.XMM0, abi.Params[1].SSERegs[0])
	assert.Equal(t, reg.RSI, abi.Params[2].IntRegs[0])
	assert.Equal(t, reg.XMM1, abi.Params[3].SSERegs[0])
	assert.Equal(t, 2, abi.IntRegsUsed)
	assert.Equal(t, 2, abi.SSERegsUsed)
}

func TestClassifySeventhIntegerArgSpillsToStack(t *testing.T) {
	params := make([]ir.Type, 7)
	for i := range params {
		params[i] = ir.NewScalarType(ir.TypeI64)
	}
	abi, err := Classify(ir.Signature{Params: params})
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		assert.Equal(t, ArgIntReg, abi.Params[i].Kind)
	}
	assert.Equal(t, ArgStack, abi.Params[6].Kind)
	assert.Equal(t, int64(0), abi.Params[6].StackOffset)
	assert.Equal(t, int64(8), abi.StackArgsSize)
}

func TestClassifyLargeAggregateIsMemoryClass(t *testing.T) {
	big := ir.NewAggregateType(32, 8, []ir.EightbyteClass{
		ir.EightbyteInteger, ir.EightbyteInteger, ir.EightbyteInteger, ir.EightbyteInteger,
	})
	abi, err := Classify(ir.Signature{Params: []ir.Type{big}})
	require.NoError(t, err)
	assert.Equal(t, ArgStack, abi.Params[0].Kind)
}

func TestClassifyTwoEightbyteAggregateUsesTwoRegisters(t *testing.T) {
	pair := ir.NewAggregateType(16, 8, []ir.EightbyteClass{ir.EightbyteInteger, ir.EightbyteSSE})
	abi, err := Classify(ir.Signature{Params: []ir.Type{pair}})
	require.NoError(t, err)

	require.Equal(t, ArgRegisterAggregate, abi.Params[0].Kind)
	assert.Equal(t, []reg.Reg{reg.RDI}, abi.Params[0].IntRegs)
	assert.Equal(t, []reg.Reg{reg.XMM0}, abi.Params[0].SSERegs)
}

func TestClassifyMemoryClassReturnUsesImplicitPointer(t *testing.T) {
	big := ir.NewAggregateType(32, 8, []ir.EightbyteClass{
		ir.EightbyteInteger, ir.EightbyteInteger, ir.EightbyteInteger, ir.EightbyteInteger,
	})
	abi, err := Classify(ir.Signature{Results: []ir.Type{big}, Params: []ir.Type{ir.NewScalarType(ir.TypeI64)}})
	require.NoError(t, err)

	assert.True(t, abi.ImplicitPointerParam)
	assert.Equal(t, ArgImplicitPointer, abi.Return.Kind)
	// rdi is consumed by the hidden pointer, so the first real parameter
	// starts at rsi.
	assert.Equal(t, reg.RSI, abi.Params[0].IntRegs[0])
}

func TestClassifyVariadicALCountReflectsSSERegistersUsedByFixedArgs(t *testing.T) {
	abi, err := Classify(ir.Signature{
		Variadic: true,
		Params:   []ir.Type{ir.NewScalarType(ir.TypeF64), ir.NewScalarType(ir.TypeF64)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, abi.VariadicALCount)
}

func TestClassifyLongDoubleReturnUsesX87(t *testing.T) {
	abi, err := Classify(ir.Signature{Results: []ir.Type{ir.NewScalarType(ir.TypeLongDouble)}})
	require.NoError(t, err)
	assert.Equal(t, ArgX87, abi.Return.Kind)
}

func TestClassifyAggregateWithLongDoubleFieldArgumentForcesStack(t *testing.T) {
	ld := ir.NewAggregateType(16, 16, []ir.EightbyteClass{ir.EightbyteX87, ir.EightbyteX87Up})
	abi, err := Classify(ir.Signature{Params: []ir.Type{ld}})
	require.NoError(t, err)

	// x87 has no argument-register convention, so a two-eightbyte
	// aggregate that would otherwise fit in registers is still forced
	// onto the stack.
	assert.Equal(t, ArgStack, abi.Params[0].Kind)
}

func TestClassifyAggregateWithLongDoubleFieldReturnUsesImplicitPointer(t *testing.T) {
	ld := ir.NewAggregateType(16, 16, []ir.EightbyteClass{ir.EightbyteX87, ir.EightbyteX87Up})
	abi, err := Classify(ir.Signature{Results: []ir.Type{ld}})
	require.NoError(t, err)

	assert.Equal(t, ArgImplicitPointer, abi.Return.Kind)
}
