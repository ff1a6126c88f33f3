// Package inlineasm lowers one GNU-style inline-assembly fragment
// (spec.md §4.I, component I): clobber marking, parameter allocation,
// state preservation, template formatting, output store-back, state
// restore, and jump trampolines. It is invoked directly by
// internal/codegen's function driver for the OpInlineAssembly opcode,
// bypassing internal/isel's per-opcode dispatch table — template
// scanning and multi-register parameter allocation have no analogue
// among the other opcodes' fixed instruction sequences (original_source's
// codegen/opt-system-v-amd64/code/inline_assembly.c and its
// inline_assembly/ subdirectory).
package inlineasm

import (
	"github.com/sirupsen/logrus"

	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/frame"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/reg"
	"github.com/kefirc/amd64cg/internal/storage"
)

// ParameterKind classifies an allocated parameter's value shape.
type ParameterKind uint8

const (
	ParameterScalar ParameterKind = iota
	ParameterAggregate
)

// AllocationKind is where an allocated parameter's value (or, for
// register-indirect, its address) lives.
type AllocationKind uint8

const (
	// AllocationRegister means the parameter's value itself occupies Reg.
	AllocationRegister AllocationKind = iota
	// AllocationRegisterIndirect means Reg holds the address of the
	// parameter's value (used for memory constraints and aggregates).
	AllocationRegisterIndirect
	// AllocationStack means the parameter lives in the reserved
	// input-parameter stack area, at StackIndex.
	AllocationStack
)

// ParameterAllocation records how one declared AsmParam was allocated,
// mirroring kefir's parameter_allocation_entry_t.
type ParameterAllocation struct {
	Kind       ParameterKind
	Allocation AllocationKind
	Reg        reg.Reg
	StackIndex int

	// RegisterAggregate marks an AllocationRegister entry that holds an
	// aggregate value directly in a register rather than by address.
	RegisterAggregate bool
	// DirectValue marks a read or read-store parameter whose allocated
	// location already holds the value read.c's template formatting (and
	// the register-aggregate store-back path) consumes directly, as
	// opposed to one still requiring a dereference.
	DirectValue bool

	// OutputPreserved marks a store/load-store/read-store parameter whose
	// write-through pointer was preserved to a dedicated stack slot
	// because its own allocation isn't itself the pointer (i.e. it isn't
	// AllocationRegisterIndirect).
	OutputPreserved  bool
	OutputStackIndex int

	Size     uint32
	ReadKind ParameterKind
	ReadSize uint32
}

// stackInputParams tracks the shared base register used to address the
// input-parameter stack area, allocated lazily on first stack parameter.
type stackInputParams struct {
	initialized  bool
	baseRegister reg.Reg
	count        int
}

type stackOutputParams struct {
	count int
}

// stackLayout is the cumulative byte layout of the scratch area this
// inline-asm instance pushes below the stack pointer: preserved dirty
// registers (highest address, pushed first) above output-pointer slots
// above input-parameter slots (lowest address, addressed first).
type stackLayout struct {
	inputParameterOffset  int64
	outputParameterOffset int64
	preservedRegOffset    int64
	preservedRegSize      int64
	totalSize             int64
}

// Context bundles one inline-assembly instance's translation state. It is
// built fresh by Translate for every OpInlineAssembly instruction.
type Context struct {
	Emit   asmfmt.Emitter
	Ledger *storage.Ledger
	Frame  *frame.Map
	Alloc  *ir.RegisterAllocation
	Module *ir.Module
	Func   *ir.Function
	Log    *logrus.Entry

	Fragment *ir.InlineAssemblyFragment
	Block    ir.BlockID // block containing the OpInlineAssembly instruction
	Default  ir.BlockID // block to fall through to absent an explicit %l jump

	instanceID int

	dirtyRegisters     map[reg.Reg]bool
	dirtyCC            bool
	availableRegisters []reg.Reg

	parameterAllocation []ParameterAllocation

	stackInput  stackInputParams
	stackOutput stackOutputParams
	layout      stackLayout

	trampolines map[string]asmfmt.Label
}

// NewContext builds a fresh per-instance inline-assembly context.
// instanceID feeds %= substitutions and must be unique per emitted
// function (spec.md §4.I step 4, testable property 8).
func NewContext(emit asmfmt.Emitter, ledger *storage.Ledger, fm *frame.Map, alloc *ir.RegisterAllocation, mod *ir.Module, fn *ir.Function, log *logrus.Entry, fragment *ir.InlineAssemblyFragment, block, defaultTarget ir.BlockID, instanceID int) *Context {
	return &Context{
		Emit:           emit,
		Ledger:         ledger,
		Frame:          fm,
		Alloc:          alloc,
		Module:         mod,
		Func:           fn,
		Log:            log,
		Fragment:       fragment,
		Block:          block,
		Default:        defaultTarget,
		instanceID:     instanceID,
		dirtyRegisters: make(map[reg.Reg]bool),
		trampolines:    make(map[string]asmfmt.Label),
	}
}

func (c *Context) paramByName(name string) (int, *ir.AsmParam) {
	for i := range c.Fragment.Parameters {
		if c.Fragment.Parameters[i].Name == name {
			return i, &c.Fragment.Parameters[i]
		}
	}
	return -1, nil
}
