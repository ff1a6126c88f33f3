// Package abi implements the System V AMD64 calling convention (spec.md
// §4.H, component H): eightbyte classification consumption, argument and
// return-value placement, call/return lowering sequences, and the
// varargs register-save-area bookkeeping GetArgument/VarArgStart/
// VarArgGet/VarArgCopy need.
//
// Field-level eightbyte merging (the INTEGER/SSE/MEMORY classification of
// individual struct fields) is the front-end's job and has already
// happened by the time a Type reaches this package — Type.Eightbytes()
// reports the already-merged per-eightbyte classes. This package only
// implements the argument-placement half of the algorithm: walking the
// eightbyte classes of each parameter/result in order and assigning them
// to integer/SSE registers or the stack per the ABI's register-exhaustion
// rule ("if there are not enough available registers, the whole argument
// is passed on the stack").
package abi

import (
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/kerr"
	"github.com/kefirc/amd64cg/internal/reg"
)

const (
	maxIntArgRegs = 6
	maxSSEArgRegs = 8
	qword         = 8
)

// ArgKind discriminates where one parameter or result ultimately lives.
type ArgKind uint8

const (
	ArgVoid ArgKind = iota
	ArgIntReg
	ArgSSEReg
	ArgX87
	ArgRegisterAggregate // 1-2 eightbytes, each in its own INTEGER/SSE register, materialised to a stack slot
	ArgStack
	ArgImplicitPointer // hidden rdi pointer argument for a MEMORY-class aggregate return
)

// Placement describes where one function parameter (or the return value)
// lives, plus everything the preamble/epilogue needs to materialise it.
type Placement struct {
	Kind ArgKind

	// IntRegs/SSERegs hold, in eightbyte order, the registers this value's
	// chunks were assigned to (len 1 for a scalar, up to 2 for an
	// aggregate spanning two eightbytes of the same or mixed classes).
	IntRegs []reg.Reg
	SSERegs []reg.Reg

	// StackOffset is valid for ArgStack: the byte offset within the
	// incoming stack-argument area (frame.Map.StackArgOffset(StackOffset)).
	StackOffset int64

	// AggregateSize is valid for ArgRegisterAggregate/ArgStack aggregates:
	// the number of bytes to materialise (always a multiple of 8 for
	// ArgRegisterAggregate).
	AggregateSize uint32

	Type ir.Type
}

// FunctionABI is the fully classified calling convention for one
// signature: every parameter's Placement plus the return value's.
type FunctionABI struct {
	Params []Placement
	Return Placement

	// ImplicitPointerParam is true when Return.Kind == ArgImplicitPointer:
	// the caller passes a hidden destination pointer in rdi and the
	// callee must echo it back in rax at return.
	ImplicitPointerParam bool

	IntRegsUsed int
	SSERegsUsed int

	// StackArgsSize is the total size of the stack-passed argument area:
	// the sum of each stack argument's 8-byte-aligned size, with no
	// padding to 16, so it is also the offset at which any further
	// (variadic) stack arguments begin.
	StackArgsSize int64

	// VariadicALCount is the number of SSE registers consumed by the fixed
	// arguments, the value %al must hold before a variadic call per the
	// System V AMD64 ABI.
	VariadicALCount int
	Variadic        bool
}

// Classify computes the full FunctionABI for sig.
func Classify(sig ir.Signature) (*FunctionABI, error) {
	if len(sig.Results) > 1 {
		return nil, kerr.New(kerr.NotSupported, "multiple return values are not representable in a single System V return slot")
	}

	abi := &FunctionABI{Variadic: sig.Variadic}

	intIdx, sseIdx := 0, 0
	if len(sig.Results) == 1 {
		ret, err := classifyReturn(sig.Results[0])
		if err != nil {
			return nil, err
		}
		abi.Return = ret
		if ret.Kind == ArgImplicitPointer {
			abi.ImplicitPointerParam = true
			intIdx = 1 // rdi is consumed by the hidden pointer
		}
	} else {
		abi.Return = Placement{Kind: ArgVoid}
	}

	var stackOffset int64
	for _, t := range sig.Params {
		p, err := classifyOne(t, &intIdx, &sseIdx, &stackOffset)
		if err != nil {
			return nil, err
		}
		abi.Params = append(abi.Params, p)
	}

	abi.IntRegsUsed = intIdx
	abi.SSERegsUsed = sseIdx
	abi.VariadicALCount = sseIdx
	abi.StackArgsSize = stackOffset
	return abi, nil
}

func classifyReturn(t ir.Type) (Placement, error) {
	if t.IsAggregate() {
		classes := t.Eightbytes()
		if isMemoryClass(classes) {
			return Placement{Kind: ArgImplicitPointer, IntRegs: []reg.Reg{reg.RDI}, Type: t}, nil
		}
		p := Placement{Kind: ArgRegisterAggregate, AggregateSize: t.Size(), Type: t}
		intN, sseN := 0, 0
		for _, c := range classes {
			if c == ir.EightbyteSSE {
				p.SSERegs = append(p.SSERegs, reg.SSEReturnRegs[sseN])
				sseN++
			} else {
				p.IntRegs = append(p.IntRegs, reg.IntReturnRegs[intN])
				intN++
			}
		}
		return p, nil
	}
	switch {
	case t.IsLongDouble():
		return Placement{Kind: ArgX87, Type: t}, nil
	case t.IsFloat():
		return Placement{Kind: ArgSSEReg, SSERegs: []reg.Reg{reg.XMM0}, Type: t}, nil
	default:
		return Placement{Kind: ArgIntReg, IntRegs: []reg.Reg{reg.RAX}, Type: t}, nil
	}
}

func classifyOne(t ir.Type, intIdx, sseIdx *int, stackOffset *int64) (Placement, error) {
	classes := t.Eightbytes()

	if t.IsAggregate() && isMemoryClass(classes) {
		p := Placement{Kind: ArgStack, StackOffset: *stackOffset, AggregateSize: t.Size(), Type: t}
		*stackOffset += int64(align(int64(t.Size()), 8))
		return p, nil
	}

	neededInt, neededSSE := 0, 0
	for _, c := range classes {
		if c == ir.EightbyteSSE {
			neededSSE++
		} else {
			neededInt++
		}
	}

	if *intIdx+neededInt > maxIntArgRegs || *sseIdx+neededSSE > maxSSEArgRegs {
		p := Placement{Kind: ArgStack, StackOffset: *stackOffset, AggregateSize: t.Size(), Type: t}
		*stackOffset += int64(align(int64(max32(t.Size(), qword)), 8))
		return p, nil
	}

	if t.IsAggregate() {
		p := Placement{Kind: ArgRegisterAggregate, AggregateSize: t.Size(), Type: t}
		for _, c := range classes {
			if c == ir.EightbyteSSE {
				p.SSERegs = append(p.SSERegs, reg.SSEArgRegs[*sseIdx])
				*sseIdx++
			} else {
				p.IntRegs = append(p.IntRegs, reg.IntArgRegs[*intIdx])
				*intIdx++
			}
		}
		return p, nil
	}

	if t.IsFloat() {
		p := Placement{Kind: ArgSSEReg, SSERegs: []reg.Reg{reg.SSEArgRegs[*sseIdx]}, Type: t}
		*sseIdx++
		return p, nil
	}
	p := Placement{Kind: ArgIntReg, IntRegs: []reg.Reg{reg.IntArgRegs[*intIdx]}, Type: t}
	*intIdx++
	return p, nil
}

// isMemoryClass reports whether an aggregate's eightbyte classification
// forces it entirely into memory: more than two eightbytes, any chunk
// already classified MEMORY, or any chunk classified X87/X87UP — x87 has
// no argument-register convention under System V, so a struct containing
// a long double can only be passed on the stack (classifyOne) or returned
// through the hidden pointer (classifyReturn).
func isMemoryClass(classes []ir.EightbyteClass) bool {
	if len(classes) > 2 {
		return true
	}
	for _, c := range classes {
		if c == ir.EightbyteMemory || c == ir.EightbyteX87 || c == ir.EightbyteX87Up {
			return true
		}
	}
	return false
}

func align(v, a int64) int64 { return (v + a - 1) &^ (a - 1) }
func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
