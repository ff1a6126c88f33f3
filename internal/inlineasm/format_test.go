package inlineasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kefirc/amd64cg/internal/ir"
)

func TestFormatLongestPrefixMatchPrefersLongerName(t *testing.T) {
	fn := scalarFunc(ir.NewScalarType(ir.TypeI32), ir.NewScalarType(ir.TypeI32))
	frag := &ir.InlineAssemblyFragment{
		Template: "%ab",
		Parameters: []ir.AsmParam{
			{Name: "a", Constraint: ir.ConstraintImmediate, IO: ir.ParamRead, Value: 1},
			{Name: "ab", Constraint: ir.ConstraintImmediate, IO: ir.ParamRead, Value: 2},
		},
		Literals: map[string]string{"a": "1", "ab": "2"},
	}
	c, _ := newAllocContext(t, fn, frag)
	require.NoError(t, MarkClobbers(c))
	require.NoError(t, AllocateParameters(c))

	out, err := Format(c)
	require.NoError(t, err)
	assert.Equal(t, "$2", out, "the longer candidate name must win over a shorter prefix")
}

func TestFormatInstanceIDUniquePerContext(t *testing.T) {
	fn := scalarFunc()
	frag := &ir.InlineAssemblyFragment{Template: "label_%=:"}

	c1, _ := newAllocContext(t, fn, frag)
	c1.instanceID = 7
	require.NoError(t, AllocateParameters(c1))
	out1, err := Format(c1)
	require.NoError(t, err)

	c2, _ := newAllocContext(t, fn, frag)
	c2.instanceID = 8
	require.NoError(t, AllocateParameters(c2))
	out2, err := Format(c2)
	require.NoError(t, err)

	assert.Equal(t, "label_7:", out1)
	assert.Equal(t, "label_8:", out2)
	assert.NotEqual(t, out1, out2, "distinct instances must expand %= to distinct integers")
}

func TestFormatEscapesAndLiteralPercent(t *testing.T) {
	fn := scalarFunc()
	frag := &ir.InlineAssemblyFragment{Template: "%{addq%| addl%} %%eax"}
	c, _ := newAllocContext(t, fn, frag)
	require.NoError(t, AllocateParameters(c))

	out, err := Format(c)
	require.NoError(t, err)
	assert.Equal(t, "{addq| addl} %eax", out)
}

func TestFormatJumpTargetCreatesTrampolineLabelOnce(t *testing.T) {
	fn := scalarFunc()
	frag := &ir.InlineAssemblyFragment{
		Template:    "jnz %l0\njmp %l0",
		JumpTargets: map[string]ir.BlockID{"0": 2},
	}
	c, _ := newAllocContext(t, fn, frag)
	require.NoError(t, AllocateParameters(c))

	out, err := Format(c)
	require.NoError(t, err)
	require.Len(t, c.trampolines, 1, "the same jump target must reuse one trampoline label")

	label := string(c.trampolines["0"])
	assert.Contains(t, out, label)
	assert.Equal(t, 2, countOccurrences(out, label))
}

func TestFormatUnknownIdentifierIsNotFound(t *testing.T) {
	fn := scalarFunc()
	frag := &ir.InlineAssemblyFragment{Template: "%bogus"}
	c, _ := newAllocContext(t, fn, frag)
	require.NoError(t, AllocateParameters(c))

	_, err := Format(c)
	assert.Error(t, err)
}

func countOccurrences(haystack, needle string) int {
	count := 0
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			count++
			i += len(needle) - 1
		}
	}
	return count
}
