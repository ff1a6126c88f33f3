package storage

import (
	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/kerr"
	"github.com/kefirc/amd64cg/internal/reg"
)

// transformEntry pairs one planned move's destination and source, plus the
// bookkeeping Perform fills in once it has decided whether this move
// participates in a cycle.
type transformEntry struct {
	source, destination Location
	pushed              bool
	tempIndex           int
}

// Transform is a batch location-to-location move planner (spec.md §3
// "Storage transform", §4.F): it collects a set of moves that must all
// appear to happen simultaneously — as required by phi lowering, call
// argument shuffling, and inline-assembly parameter loading — and emits
// them as a sequence of ordinary instructions, breaking any cycles among
// the moves by spilling one leg of the cycle to a stack temporary first.
//
// Every destination in a Transform is unique: Insert reports InvalidRequest
// on a second move to the same destination, since two simultaneous writes
// to one location have no well-defined order.
type Transform struct {
	entries map[Location]*transformEntry
	order   []Location // insertion order, for deterministic emission
}

// NewTransform builds an empty Transform.
func NewTransform() *Transform {
	return &Transform{entries: make(map[Location]*transformEntry)}
}

// Insert records that destination must end up holding source's current
// value. Fails with InvalidRequest if destination already has a planned
// move (spec.md §4.F: "destinations unique per batch").
func (t *Transform) Insert(destination, source Location) error {
	if _, exists := t.entries[destination]; exists {
		return kerr.New(kerr.InvalidRequest, "transform already has a move into %+v", destination)
	}
	t.entries[destination] = &transformEntry{source: source, destination: destination}
	t.order = append(t.order, destination)
	return nil
}

// Reset discards every planned move, so the Transform can be reused for
// the next batch.
func (t *Transform) Reset() {
	t.entries = make(map[Location]*transformEntry)
	t.order = nil
}

// OperationCount returns the number of moves that will actually emit code:
// entries whose source already equals their destination are no-ops (spec.md
// §8 testable property: "transform correctness").
func (t *Transform) OperationCount() int {
	n := 0
	for _, dest := range t.order {
		e := t.entries[dest]
		if !e.source.Equal(e.destination) {
			n++
		}
	}
	return n
}

// locationLess provides an arbitrary but total and deterministic ordering
// over locations, used only to pick a consistent side of a move cycle to
// break (mirrors the original hash-based tie-break: whichever side sorts
// lower gets pushed to a temporary first).
func locationLess(a, b Location) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.Kind == LocRegister {
		return a.Reg < b.Reg
	}
	if a.Base != b.Base {
		return a.Base < b.Base
	}
	return a.Offset < b.Offset
}

// Perform emits the planned batch of moves through emit, acquiring scratch
// registers from ledger for memory-to-memory moves and cycle-breaking
// spills. It is idempotent in the sense that calling Perform twice on an
// unmodified Transform plans (and would emit) the same sequence of
// operations (spec.md §8 testable property: "transform idempotence") —
// Perform itself does not consume or mutate the Transform's entries, only
// annotate them with their already-deterministic push decision.
func (t *Transform) Perform(emit asmfmt.Emitter, ledger *Ledger) error {
	var pushed []Location
	for _, dest := range t.order {
		e := t.entries[dest]
		e.pushed = false
		if _, sourceIsAlsoDestination := t.entries[e.source]; sourceIsAlsoDestination && locationLess(e.source, e.destination) {
			e.tempIndex = len(pushed)
			pushed = append(pushed, e.source)
			if err := pushLocation(emit, ledger, e.source); err != nil {
				return err
			}
			e.pushed = true
		}
	}

	total := len(pushed)
	for _, dest := range t.order {
		e := t.entries[dest]
		switch {
		case e.pushed:
			if err := loadFromTemporary(emit, e.destination, e.tempIndex, total); err != nil {
				return err
			}
		case !e.source.Equal(e.destination):
			if err := moveLocation(emit, ledger, e.destination, e.source); err != nil {
				return err
			}
		}
	}

	if total > 0 {
		emit.Instr("add", asmfmt.Reg(reg.RSP, asmfmt.W64), asmfmt.Imm(int64(total)*8))
	}
	return nil
}

func pushLocation(emit asmfmt.Emitter, ledger *Ledger, loc Location) error {
	switch loc.Kind {
	case LocRegister:
		if loc.Reg.IsFloat() {
			emit.Instr("sub", asmfmt.Reg(reg.RSP, asmfmt.W64), asmfmt.Imm(8))
			emit.Instr("movq", asmfmt.Mem(reg.RSP, 0, asmfmt.W64), asmfmt.Reg(loc.Reg, asmfmt.W64))
			return nil
		}
		emit.Instr("push", asmfmt.Reg(loc.Reg, asmfmt.W64))
		return nil
	case LocMemory:
		h, err := ledger.AcquireAnyGeneralPurpose(nil)
		if err != nil {
			return err
		}
		emit.Instr("mov", asmfmt.Reg(h.Reg(), asmfmt.W64), asmfmt.Mem(loc.Base, loc.Offset, asmfmt.W64))
		emit.Instr("push", asmfmt.Reg(h.Reg(), asmfmt.W64))
		return ledger.Release(h)
	default:
		return kerr.New(kerr.InvalidState, "unknown location kind %d", loc.Kind)
	}
}

func loadFromTemporary(emit asmfmt.Emitter, dest Location, index, total int) error {
	offset := int64(total-index-1) * 8
	switch dest.Kind {
	case LocRegister:
		if dest.Reg.IsFloat() {
			emit.Instr("movq", asmfmt.Reg(dest.Reg, asmfmt.W64), asmfmt.Mem(reg.RSP, offset, asmfmt.W64))
			return nil
		}
		emit.Instr("mov", asmfmt.Reg(dest.Reg, asmfmt.W64), asmfmt.Mem(reg.RSP, offset, asmfmt.W64))
		return nil
	case LocMemory:
		emit.Instr("mov", asmfmt.Mem(dest.Base, dest.Offset, asmfmt.W64), asmfmt.Mem(reg.RSP, offset, asmfmt.W64))
		return nil
	default:
		return kerr.New(kerr.InvalidState, "unknown location kind %d", dest.Kind)
	}
}

func moveLocation(emit asmfmt.Emitter, ledger *Ledger, dest, source Location) error {
	destFloat := dest.Kind == LocRegister && dest.Reg.IsFloat()
	srcFloat := source.Kind == LocRegister && source.Reg.IsFloat()
	mnemonic := "mov"
	if destFloat || srcFloat {
		mnemonic = "movq"
	}

	switch {
	case dest.Kind == LocRegister && source.Kind == LocRegister:
		// Both sides XMM: move the full 128 bits (movdqu). movq only
		// covers the single-float-side case below, where one side is a
		// plain GPR and only 64 bits are meaningful.
		regMnemonic := mnemonic
		if destFloat && srcFloat {
			regMnemonic = "movdqu"
		}
		emit.Instr(regMnemonic, asmfmt.Reg(dest.Reg, asmfmt.W64), asmfmt.Reg(source.Reg, asmfmt.W64))
		return nil
	case dest.Kind == LocRegister && source.Kind == LocMemory:
		emit.Instr(mnemonic, asmfmt.Reg(dest.Reg, asmfmt.W64), asmfmt.Mem(source.Base, source.Offset, asmfmt.W64))
		return nil
	case dest.Kind == LocMemory && source.Kind == LocRegister:
		emit.Instr(mnemonic, asmfmt.Mem(dest.Base, dest.Offset, asmfmt.W64), asmfmt.Reg(source.Reg, asmfmt.W64))
		return nil
	default: // memory to memory: route through a scratch GPR
		h, err := ledger.AcquireAnyGeneralPurpose(nil)
		if err != nil {
			return err
		}
		emit.Instr("mov", asmfmt.Reg(h.Reg(), asmfmt.W64), asmfmt.Mem(source.Base, source.Offset, asmfmt.W64))
		emit.Instr("mov", asmfmt.Mem(dest.Base, dest.Offset, asmfmt.W64), asmfmt.Reg(h.Reg(), asmfmt.W64))
		return ledger.Release(h)
	}
}
