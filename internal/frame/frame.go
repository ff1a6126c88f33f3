// Package frame computes the per-function stack frame layout (spec.md
// §3 "Stack frame map", §4 component C): byte offsets from rbp to every
// area the backend addresses, populated once per function before any
// opcode translator runs.
//
//	       (high address)
//	    +-----------------+
//	    |  incoming args   |   (stack-passed parameters, positive rbp offsets)
//	    |  return address  |
//	    |   caller's rbp   |
//	    +-----------------+ <---- rbp
//	    |  locals area     |
//	    |  spill area      |
//	    |  register-       |
//	    |    aggregate area|
//	    |  register-save   |
//	    |    area (176B)   |
//	    |  implicit param  |   (8 bytes: memory-return pointer)
//	    |  dynamic-scope   |   (8 bytes: intrusive scope-stack head)
//	    |  temporary area  |   (scratch for storage transform spills)
//	    +-----------------+ <---- rsp (after prologue)
//	       (low address)
//
// Each area's size is fixed per function except the temporary area, whose
// high-water mark is tracked as storage.Ledger/Transform push scratch
// values onto it.
package frame

import (
	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/reg"
)

// RegisterSaveAreaSize is the System V AMD64 va_list register-save area:
// 6 integer argument registers * 8 bytes + 8 SSE argument registers * 16
// bytes (original_source vararg.c).
const RegisterSaveAreaSize = 6*8 + 8*16

// Map holds the byte offsets (from rbp, negative growing toward lower
// addresses except the stack-passed-argument area which is positive) for
// every area of one function's frame.
type Map struct {
	localsSize          int64
	spillSlotCount       int
	registerAggregateCount int
	usesRegisterSaveArea bool
	usesImplicitParam    bool
	usesDynamicScope     bool
	temporaryAreaSize    int64 // high-water mark, grows during translation

	// StackArgBase is the positive rbp offset of the first stack-passed
	// incoming parameter: 16 bytes (return address + saved rbp) past rbp.
	StackArgBase int64
}

// NewMap builds a Map for a function with localsSize bytes of locals,
// spillSlotCount 8-byte spill slots, and registerAggregateCount 8-byte
// register-aggregate slots. usesRegisterSaveArea/usesImplicitParam/
// usesDynamicScope are set once the function's GetArgument/Return/
// StackAlloc usage is known (spec.md: areas are only reserved when used).
func NewMap(localsSize int64, spillSlotCount, registerAggregateCount int, usesRegisterSaveArea, usesImplicitParam, usesDynamicScope bool) *Map {
	return &Map{
		localsSize:             align(localsSize, 8),
		spillSlotCount:         spillSlotCount,
		registerAggregateCount: registerAggregateCount,
		usesRegisterSaveArea:   usesRegisterSaveArea,
		usesImplicitParam:      usesImplicitParam,
		usesDynamicScope:       usesDynamicScope,
		StackArgBase:           16,
	}
}

func align(v, a int64) int64 { return (v + a - 1) &^ (a - 1) }

// LocalsAreaOffset is the (negative) rbp offset of the start of the
// locals area.
func (m *Map) LocalsAreaOffset() int64 { return -m.localsSize }

// LocalOffset returns the rbp offset of the local at byte offset
// relativeOffset within the locals area.
func (m *Map) LocalOffset(relativeOffset int64) int64 {
	return m.LocalsAreaOffset() + relativeOffset
}

// SpillAreaBase is the (negative) rbp offset of spill slot 0.
func (m *Map) SpillAreaBase() int64 { return m.LocalsAreaOffset() - int64(m.spillSlotCount)*8 }

// SpillSlotOffset returns the rbp offset of spill slot index.
func (m *Map) SpillSlotOffset(index int) int64 { return m.SpillAreaBase() + int64(index)*8 }

// RegisterAggregateAreaBase is the (negative) rbp offset of register
// aggregate slot 0.
func (m *Map) RegisterAggregateAreaBase() int64 {
	return m.SpillAreaBase() - int64(m.registerAggregateCount)*8
}

// RegisterAggregateOffset returns the rbp offset of register-aggregate
// slot index.
func (m *Map) RegisterAggregateOffset(index int) int64 {
	return m.RegisterAggregateAreaBase() + int64(index)*8
}

// RegisterSaveAreaOffset is the (negative) rbp offset of the va_list
// register-save area, reserved only when the function is variadic.
func (m *Map) RegisterSaveAreaOffset() int64 {
	base := m.RegisterAggregateAreaBase()
	if !m.usesRegisterSaveArea {
		return base
	}
	return base - RegisterSaveAreaSize
}

// ImplicitParameterOffset is the (negative) rbp offset of the 8-byte slot
// holding the caller-supplied memory-return pointer (rdi at entry),
// reserved only when the function returns a MEMORY-class aggregate.
func (m *Map) ImplicitParameterOffset() int64 {
	base := m.RegisterSaveAreaOffset()
	if !m.usesImplicitParam {
		return base
	}
	return base - 8
}

// DynamicScopeOffset is the (negative) rbp offset of the 8-byte
// intrusive-list head cell PushScope/PopScope maintain.
func (m *Map) DynamicScopeOffset() int64 {
	base := m.ImplicitParameterOffset()
	if !m.usesDynamicScope {
		return base
	}
	return base - 8
}

// TemporaryAreaBase is the (negative) rbp offset of the top of the
// temporary area storage.Transform spills into.
func (m *Map) TemporaryAreaBase() int64 { return m.DynamicScopeOffset() }

// GrowTemporaryArea records that size more bytes of temporary area are
// needed below TemporaryAreaBase, returning the offset of the newly
// reserved slot's low end. The high-water mark feeds FrameSize.
func (m *Map) GrowTemporaryArea(size int64) int64 {
	offset := m.TemporaryAreaBase() - m.temporaryAreaSize - size
	m.temporaryAreaSize += size
	return offset
}

// FrameSize is the total, 16-byte-aligned size of the frame below rbp
// (locals through temporary area), i.e. how much the prologue subtracts
// from rsp.
func (m *Map) FrameSize() int64 {
	raw := -(m.TemporaryAreaBase() - m.temporaryAreaSize)
	return align(raw, 16)
}

// StackArgOffset returns the (positive) rbp offset of the stack-passed
// incoming argument at byte offset argOffset within the argument area.
func (m *Map) StackArgOffset(argOffset int64) int64 { return m.StackArgBase + argOffset }

// Prologue emits the standard frame-establishment sequence: push rbp, mov
// rbp, rsp, push every callee-saved register the function body actually
// clobbers, then sub rsp by the frame size. FrameSize must already
// reflect the translated body's high-water mark (GrowTemporaryArea calls
// happen while translating instructions, before this is called), so the
// caller translates the function body into a buffer first and emits the
// prologue only once that pass completes. When calleeSaved has an odd
// length, an extra 8 bytes are folded into the subtraction to keep rsp
// 16-byte aligned at every call site in the body, since each push rbp
// lands on a 16-aligned boundary but an odd count of 8-byte
// callee-saved pushes would otherwise knock it off by one qword.
func (m *Map) Prologue(emit asmfmt.Emitter, calleeSaved []reg.Reg) (frameSize int64) {
	emit.Instr("push", asmfmt.Reg(reg.RBP, asmfmt.W64))
	emit.Instr("mov", asmfmt.Reg(reg.RBP, asmfmt.W64), asmfmt.Reg(reg.RSP, asmfmt.W64))
	for _, r := range calleeSaved {
		emit.Instr("push", asmfmt.Reg(r, asmfmt.W64))
	}

	size := m.FrameSize()
	if len(calleeSaved)%2 == 1 {
		size += 8
	}
	if size > 0 {
		emit.Instr("sub", asmfmt.Reg(reg.RSP, asmfmt.W64), asmfmt.Imm(size))
	}
	return size
}

// Epilogue emits the inverse of Prologue at the function's shared
// epilogue label: undo the frame subtraction, pop callee-saved registers
// in reverse order, restore the caller's rbp, and return. frameSize must
// be the exact value Prologue returned for this function.
func (m *Map) Epilogue(emit asmfmt.Emitter, calleeSaved []reg.Reg, frameSize int64) {
	if frameSize > 0 {
		emit.Instr("add", asmfmt.Reg(reg.RSP, asmfmt.W64), asmfmt.Imm(frameSize))
	}
	for i := len(calleeSaved) - 1; i >= 0; i-- {
		emit.Instr("pop", asmfmt.Reg(calleeSaved[i], asmfmt.W64))
	}
	emit.Instr("pop", asmfmt.Reg(reg.RBP, asmfmt.W64))
	emit.Instr("ret")
}
