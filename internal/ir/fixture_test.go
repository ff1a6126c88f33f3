package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kefirc/amd64cg/internal/reg"
)

const addTwoFixture = `
signatures:
  1:
    params: [i64, i64]
    results: [i64]
functions:
  - name: add_two
    signature:
      params: [i64, i64]
      results: [i64]
    params: [100, 101]
    frame:
      locals_size: 0
      spill_slots: 0
    blocks:
      - id: 1
        instructions:
          - id: 10
            op: IntAdd
            type: i64
            args: [100, 101]
          - op: Return
            args: [10]
    analysis:
      order: [1]
      reachable: [1]
    allocation:
      100: {kind: gpr, reg: rdi}
      101: {kind: gpr, reg: rsi}
      10: {kind: gpr, reg: rax}
`

func TestLoadFixtureBuildsFunctionFromYAML(t *testing.T) {
	mod, err := LoadFixture([]byte(addTwoFixture))
	require.NoError(t, err)
	require.Len(t, mod.Functions, 1)

	fn := mod.Functions[0]
	assert.Equal(t, "add_two", fn.Name)
	require.Len(t, fn.Blocks, 1)
	require.Len(t, fn.Blocks[0].Instructions, 2)

	add := fn.Blocks[0].Instructions[0]
	assert.Equal(t, OpIntAdd, add.Opcode())
	assert.Equal(t, Value(10), add.ID())
	assert.Equal(t, Value(100), add.Arg0())
	assert.Equal(t, Value(101), add.Arg1())
	assert.Equal(t, TypeI64, add.Type().Kind())

	ret := fn.Blocks[0].Instructions[1]
	assert.Equal(t, OpReturn, ret.Opcode())
	assert.Equal(t, Value(10), ret.Arg0())

	require.NotNil(t, fn.Analysis)
	assert.True(t, fn.Analysis.Reachable(1))
	assert.True(t, fn.Analysis.IsFallthrough(1, 2) == false)

	require.NotNil(t, fn.Allocation)
	assert.Equal(t, GPR(reg.RDI), fn.Allocation.Lookup(100))
	assert.Equal(t, GPR(reg.RAX), fn.Allocation.Lookup(10))

	require.Len(t, mod.Signatures, 1)
	assert.Equal(t, TypeI64, mod.Signatures[1].Results[0].Kind())
}

func TestLoadFixtureRejectsUnknownOpcode(t *testing.T) {
	_, err := LoadFixture([]byte(`
functions:
  - name: bad
    blocks:
      - id: 1
        instructions:
          - op: NotARealOpcode
`))
	assert.Error(t, err)
}
