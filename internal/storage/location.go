// Package storage implements the storage ledger and storage transform
// (spec.md §4.E, §4.F): the occupancy/borrow bookkeeping layered on top of
// the externally precomputed register allocation, and the batch
// location-to-location move planner used for calls, phi mappings, and
// inline-assembly parameter loading.
package storage

import (
	"github.com/kefirc/amd64cg/internal/frame"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/kerr"
	"github.com/kefirc/amd64cg/internal/reg"
)

// LocationKind discriminates Location's two variants (spec.md §3,
// "Storage location").
type LocationKind uint8

const (
	LocRegister LocationKind = iota
	LocMemory
)

// Location is a concrete place a value can be read from or written to at
// translation time: either a physical register or a [base+offset] memory
// reference. It differs from ir.Allocation in that it has already been
// resolved through the stack frame map — an ir.AllocSpillSlot allocation
// becomes a LocMemory(rbp, offset), for instance.
type Location struct {
	Kind LocationKind
	Reg  reg.Reg
	Base reg.Reg
	Offset int64
}

// Register builds a register Location.
func Register(r reg.Reg) Location { return Location{Kind: LocRegister, Reg: r} }

// Memory builds a [base+offset] Location.
func Memory(base reg.Reg, offset int64) Location {
	return Location{Kind: LocMemory, Base: base, Offset: offset}
}

// Equal reports whether two locations denote the same place.
func (l Location) Equal(o Location) bool {
	if l.Kind != o.Kind {
		return false
	}
	if l.Kind == LocRegister {
		return l.Reg == o.Reg
	}
	return l.Base == o.Base && l.Offset == o.Offset
}

// FromAllocation resolves a precomputed ir.Allocation to a concrete
// Location via the function's stack frame map (spec.md §3: "Constructible
// from a register allocation via the stack-frame map").
func FromAllocation(a ir.Allocation, fm *frame.Map) (Location, error) {
	switch a.Kind {
	case ir.AllocGPR, ir.AllocFPR:
		return Register(a.Reg), nil
	case ir.AllocSpillSlot:
		return Memory(reg.RBP, fm.SpillSlotOffset(a.Index)), nil
	case ir.AllocRegisterAggregate:
		return Memory(reg.RBP, fm.RegisterAggregateOffset(a.Index)), nil
	case ir.AllocIndirect:
		return Memory(a.Base, a.Offset), nil
	default:
		return Location{}, kerr.New(kerr.InvalidState, "allocation has no storage location (kind=%d)", a.Kind)
	}
}
