package ir

import "github.com/kefirc/amd64cg/internal/reg"

// AllocationKind discriminates the precomputed binding of an SSA value to
// a location (spec.md §3, Data Model — Register allocation). This
// allocation is computed by an external pass; component D only consumes
// it.
type AllocationKind uint8

const (
	// AllocNone means the instruction has no result needing a location.
	AllocNone AllocationKind = iota
	// AllocGPR means the value lives in a general-purpose register.
	AllocGPR
	// AllocFPR means the value lives in an XMM register.
	AllocFPR
	// AllocSpillSlot means the value lives at rbp + spill_area_base +
	// index*8.
	AllocSpillSlot
	// AllocRegisterAggregate means the value is a fixed-size stack slot
	// reserved for a register-passed aggregate, at rbp +
	// aggregate_area_base + index*8.
	AllocRegisterAggregate
	// AllocIndirect means the value lives at [base_reg + offset]
	// (pointer-indirect spill).
	AllocIndirect
)

// ParamClassRef points at a parameter's ABI classification qwords, so the
// preamble can materialise a spilled parameter from its integer/SSE
// argument registers. Opaque beyond Count/Class — the classification
// itself is produced by the ABI engine (component H) and handed back here
// once computed.
type ParamClassRef struct {
	Valid   bool
	Classes []EightbyteClass
}

// Allocation is the union described in spec.md §3: exactly one of the
// AllocationKind variants is meaningful per instance, selected by Kind.
type Allocation struct {
	Kind  AllocationKind
	Reg   reg.Reg // AllocGPR / AllocFPR
	Index int     // AllocSpillSlot / AllocRegisterAggregate
	Base  reg.Reg // AllocIndirect
	Offset int64  // AllocIndirect

	// Param is populated only for AllocSpillSlot allocations that
	// originate from a function parameter.
	Param ParamClassRef
}

// GPR constructs a register allocation in a general-purpose register.
func GPR(r reg.Reg) Allocation { return Allocation{Kind: AllocGPR, Reg: r} }

// FPR constructs a register allocation in an XMM register.
func FPR(r reg.Reg) Allocation { return Allocation{Kind: AllocFPR, Reg: r} }

// Spill constructs a spill-area allocation at the given qword index.
func Spill(index int) Allocation { return Allocation{Kind: AllocSpillSlot, Index: index} }

// SpillParam constructs a spill-area allocation originating from a
// parameter, carrying its ABI eightbyte classes.
func SpillParam(index int, classes []EightbyteClass) Allocation {
	return Allocation{Kind: AllocSpillSlot, Index: index, Param: ParamClassRef{Valid: true, Classes: classes}}
}

// RegAggregate constructs a register-aggregate-area allocation.
func RegAggregate(index int) Allocation { return Allocation{Kind: AllocRegisterAggregate, Index: index} }

// Indirect constructs a pointer-indirect allocation.
func Indirect(base reg.Reg, offset int64) Allocation {
	return Allocation{Kind: AllocIndirect, Base: base, Offset: offset}
}

// RegisterAllocation maps each SSA value that has a result to its
// Allocation, plus each phi result to its Allocation. It is the
// "externally-owned register allocation" component D reads; this backend
// never mutates it.
type RegisterAllocation struct {
	values map[Value]Allocation
}

// NewRegisterAllocation builds an empty allocation table; tests and the
// cmd/kefir-amd64-dump fixture loader populate it with Set.
func NewRegisterAllocation() *RegisterAllocation {
	return &RegisterAllocation{values: make(map[Value]Allocation)}
}

// Set records the allocation for value v.
func (ra *RegisterAllocation) Set(v Value, a Allocation) { ra.values[v] = a }

// Lookup returns the allocation for v, or AllocNone if v has none
// recorded (e.g. a void instruction).
func (ra *RegisterAllocation) Lookup(v Value) Allocation {
	if a, ok := ra.values[v]; ok {
		return a
	}
	return Allocation{Kind: AllocNone}
}

// Values returns every recorded (Value, Allocation) pair. internal/codegen
// uses this once per function, before translating any instruction, to
// determine which physical registers the allocation already commits to
// holding a live value for the function's whole body — the ledger has no
// other way to learn this, since no opcode translator ever calls
// Ledger.MarkUsed itself.
func (ra *RegisterAllocation) Values() map[Value]Allocation { return ra.values }
