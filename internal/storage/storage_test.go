package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kefirc/amd64cg/internal/asmfmt/asmfmttest"
	"github.com/kefirc/amd64cg/internal/kerr"
	"github.com/kefirc/amd64cg/internal/reg"
)

func TestBorrowReleaseLIFO(t *testing.T) {
	rec := &asmfmttest.Recorder{}
	l := NewLedger(rec, nil)

	h1, err := l.AcquireAnyGeneralPurpose(nil)
	require.NoError(t, err)
	h2, err := l.AcquireAnyGeneralPurpose(nil)
	require.NoError(t, err)

	// Releasing out of LIFO order is rejected.
	err = l.Release(h1)
	assert.True(t, kerr.Is(err, kerr.InvalidRequest))

	require.NoError(t, l.Release(h2))
	require.NoError(t, l.Release(h1))
}

func TestOccupiedAndBorrowedAreDisjoint(t *testing.T) {
	l := NewLedger(nil, nil)
	require.NoError(t, l.MarkUsed(reg.RBX))

	h, err := l.AcquireAnyGeneralPurpose(nil)
	require.NoError(t, err)

	assert.False(t, l.IsOccupied(h.Reg()) && l.IsBorrowed(h.Reg()))
	assert.True(t, l.IsOccupied(reg.RBX))
	assert.False(t, l.IsBorrowed(reg.RBX))

	// Marking a borrowed register used is rejected: the two states never
	// overlap for the same register.
	err = l.MarkUsed(h.Reg())
	assert.True(t, kerr.Is(err, kerr.InvalidRequest))

	require.NoError(t, l.Release(h))
}

func TestEvictionParityPushesAndPopsExactlyOnce(t *testing.T) {
	rec := &asmfmttest.Recorder{}
	l := NewLedger(rec, nil)

	// Occupy every allocatable GPR so the next acquisition must evict.
	for _, r := range reg.AllocatableGP {
		require.NoError(t, l.MarkUsed(r))
	}

	h, err := l.AcquireSpecific(reg.RAX, reg.Width64)
	require.NoError(t, err)
	require.NoError(t, l.Release(h))

	pushes, pops := 0, 0
	for _, op := range rec.Mnemonics() {
		switch op {
		case "push":
			pushes++
		case "pop":
			pops++
		}
	}
	assert.Equal(t, 1, pushes)
	assert.Equal(t, 1, pops)
	assert.True(t, l.IsOccupied(reg.RAX), "eviction restores occupancy on release")
}

func TestAcquireSharedAllocatedNoFallbackIsNoopRelease(t *testing.T) {
	l := NewLedger(nil, nil)
	h, err := l.AcquireSharedAllocated(reg.RCX, nil)
	require.NoError(t, err)
	assert.False(t, l.IsBorrowed(reg.RCX))
	require.NoError(t, l.Release(h))
}

func TestOutOfSpaceWhenEveryRegisterBorrowed(t *testing.T) {
	l := NewLedger(nil, nil)
	var handles []*Handle
	for range reg.AllocatableGP {
		h, err := l.AcquireAnyGeneralPurpose(nil)
		require.NoError(t, err)
		handles = append(handles, h)
	}
	_, err := l.AcquireAnyGeneralPurpose(nil)
	assert.True(t, kerr.Is(err, kerr.OutOfSpace))

	for i := len(handles) - 1; i >= 0; i-- {
		require.NoError(t, l.Release(handles[i]))
	}
}

func TestTransformNoopWhenSourceEqualsDestination(t *testing.T) {
	tr := NewTransform()
	require.NoError(t, tr.Insert(Register(reg.RAX), Register(reg.RAX)))
	assert.Equal(t, 0, tr.OperationCount())

	rec := &asmfmttest.Recorder{}
	l := NewLedger(rec, nil)
	require.NoError(t, tr.Perform(rec, l))
	assert.Empty(t, rec.Ops)
}

func TestTransformSimpleSwapBreaksCycleWithTemporary(t *testing.T) {
	tr := NewTransform()
	// rax <- rbx, rbx <- rax: a 2-cycle. One leg must be spilled to a
	// temporary to avoid clobbering a value before it is read.
	require.NoError(t, tr.Insert(Register(reg.RAX), Register(reg.RBX)))
	require.NoError(t, tr.Insert(Register(reg.RBX), Register(reg.RAX)))
	assert.Equal(t, 2, tr.OperationCount())

	rec := &asmfmttest.Recorder{}
	l := NewLedger(rec, nil)
	require.NoError(t, tr.Perform(rec, l))

	mnemonics := rec.Mnemonics()
	require.NotEmpty(t, mnemonics)
	// Exactly one side of the cycle is routed through the stack: one push,
	// one mov-from-stack, and the trailing rsp restore.
	pushCount := 0
	for _, m := range mnemonics {
		if m == "push" {
			pushCount++
		}
	}
	assert.Equal(t, 1, pushCount)
	assert.Equal(t, "add", mnemonics[len(mnemonics)-1])
}

func TestTransformIdempotentPlanning(t *testing.T) {
	tr := NewTransform()
	require.NoError(t, tr.Insert(Register(reg.RAX), Register(reg.RBX)))
	require.NoError(t, tr.Insert(Register(reg.RBX), Register(reg.RCX)))

	rec1 := &asmfmttest.Recorder{}
	l1 := NewLedger(rec1, nil)
	require.NoError(t, tr.Perform(rec1, l1))

	rec2 := &asmfmttest.Recorder{}
	l2 := NewLedger(rec2, nil)
	require.NoError(t, tr.Perform(rec2, l2))

	assert.Equal(t, rec1.String(), rec2.String())
}

func TestTransformRejectsDuplicateDestination(t *testing.T) {
	tr := NewTransform()
	require.NoError(t, tr.Insert(Register(reg.RAX), Register(reg.RBX)))
	err := tr.Insert(Register(reg.RAX), Register(reg.RCX))
	assert.True(t, kerr.Is(err, kerr.InvalidRequest))
}

func TestTransformChainThreeWayMove(t *testing.T) {
	// rax <- rbx, rbx <- rcx (no cycle): should emit two direct moves, no
	// temporary needed.
	tr := NewTransform()
	require.NoError(t, tr.Insert(Register(reg.RAX), Register(reg.RBX)))
	require.NoError(t, tr.Insert(Register(reg.RBX), Register(reg.RCX)))

	rec := &asmfmttest.Recorder{}
	l := NewLedger(rec, nil)
	require.NoError(t, tr.Perform(rec, l))

	for _, m := range rec.Mnemonics() {
		assert.NotEqual(t, "push", m)
	}
}

func TestTransformRegisterToRegisterBothFloatUsesMovdqu(t *testing.T) {
	tr := NewTransform()
	require.NoError(t, tr.Insert(Register(reg.XMM0), Register(reg.XMM1)))

	rec := &asmfmttest.Recorder{}
	l := NewLedger(rec, nil)
	require.NoError(t, tr.Perform(rec, l))

	assert.Equal(t, []string{"movdqu"}, rec.Mnemonics())
}

func TestTransformRegisterToRegisterOneSideFloatUsesMovq(t *testing.T) {
	tr := NewTransform()
	require.NoError(t, tr.Insert(Register(reg.XMM0), Register(reg.RAX)))

	rec := &asmfmttest.Recorder{}
	l := NewLedger(rec, nil)
	require.NoError(t, tr.Perform(rec, l))

	assert.Equal(t, []string{"movq"}, rec.Mnemonics())
}
