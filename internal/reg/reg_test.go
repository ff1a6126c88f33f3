package reg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWidestRoundTrip(t *testing.T) {
	// Testable property 6: widest(width(r, w)) = r for any 64-bit GPR and
	// any width.
	for _, r := range AllocatableGP {
		for _, w := range []Width{Width8, Width16, Width32, Width64} {
			p, ok := Project(r, w)
			require.True(t, ok)
			assert.Equal(t, r, Widest(p.Reg))
		}
	}
}

func TestEligibleExcludesFramePointers(t *testing.T) {
	assert.False(t, Eligible(RSP))
	assert.False(t, Eligible(RBP))
	assert.False(t, Eligible(X87Top))
	assert.True(t, Eligible(RAX))
	assert.True(t, Eligible(XMM0))
}

func TestABIRoleClassification(t *testing.T) {
	tests := []struct {
		r    Reg
		role Role
	}{
		{RAX, RoleCallerSaved},
		{RBX, RoleCalleeSaved},
		{R12, RoleCalleeSaved},
		{XMM0, RoleCallerSaved},
		{XMM8, RoleCallerSaved},
		{RSP, RoleStackPointer},
		{RBP, RoleBasePointer},
	}
	for _, tt := range tests {
		t.Run(tt.r.String(), func(t *testing.T) {
			assert.Equal(t, tt.role, ABIRole(tt.r))
		})
	}
}

func TestSetOperations(t *testing.T) {
	s := NewSet(RAX, RCX)
	assert.True(t, s.Has(RAX))
	assert.True(t, s.Has(RCX))
	assert.False(t, s.Has(RDX))

	s2 := s.Remove(RAX)
	assert.False(t, s2.Has(RAX))
	assert.True(t, s2.Has(RCX))

	inter := CallerSaved.Intersect(CalleeSaved)
	assert.True(t, inter.Empty(), "caller-saved and callee-saved sets must be disjoint")
}

func TestRegNames(t *testing.T) {
	assert.Equal(t, "rax", RAX.String())
	assert.Equal(t, "xmm15", XMM15.String())
	assert.Equal(t, "st(0)", X87Top.String())
}
