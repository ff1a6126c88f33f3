package storage

import (
	"github.com/sirupsen/logrus"

	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/kerr"
	"github.com/kefirc/amd64cg/internal/reg"
)

// Handle is the receipt returned by an acquisition policy. Release must be
// called through the owning Ledger exactly once, and releases must nest
// LIFO with respect to every other outstanding Handle (spec.md §4.E:
// "borrow LIFO").
type Handle struct {
	reg      reg.Reg
	borrowed bool // false for AcquireSharedAllocated's no-fallback case: nothing to release
	evicted  bool // true if acquiring this register required pushing its prior occupant
	width    reg.Width
}

// Reg returns the physical register the handle grants use of.
func (h *Handle) Reg() reg.Reg { return h.reg }

// Ledger is the per-function occupied/borrowed bookkeeping layered over the
// externally precomputed register allocation (spec.md §3 "Storage ledger",
// §4.E). occupied tracks registers currently holding a live SSA value's
// home location; borrowed tracks registers currently lent out as scratch
// for the duration of lowering one instruction. The two sets are always
// disjoint: a register is either somebody's home or a loan, never both at
// once from the ledger's point of view (eviction temporarily clears
// occupied before setting borrowed, restoring it on release).
type Ledger struct {
	occupied reg.Set
	borrowed reg.Set
	stack    []reg.Reg // borrow LIFO, most recent last

	emit asmfmt.Emitter
	log  *logrus.Entry
}

// NewLedger builds an empty ledger that emits eviction push/pop pairs
// through emit and logs acquire/release/evict activity at Trace level
// through log.
func NewLedger(emit asmfmt.Emitter, log *logrus.Entry) *Ledger {
	return &Ledger{emit: emit, log: log}
}

// IsOccupied reports whether r currently holds a live SSA value.
func (l *Ledger) IsOccupied(r reg.Reg) bool { return l.occupied.Has(r) }

// IsBorrowed reports whether r is currently lent out as scratch.
func (l *Ledger) IsBorrowed(r reg.Reg) bool { return l.borrowed.Has(r) }

// HasBorrowed reports whether any register is currently borrowed, used by
// callers that must assert a clean ledger at block boundaries.
func (l *Ledger) HasBorrowed() bool { return !l.borrowed.Empty() }

// MarkUsed records that r now holds a live SSA value. It is an error to
// mark a currently-borrowed register used: borrowing and occupancy are
// mutually exclusive uses of the same physical register.
func (l *Ledger) MarkUsed(r reg.Reg) error {
	if l.borrowed.Has(r) {
		return kerr.New(kerr.InvalidRequest, "cannot mark %s used: currently borrowed", r)
	}
	l.occupied = l.occupied.Add(r)
	l.trace(r, "mark_used")
	return nil
}

// MarkUnused records that r no longer holds a live SSA value.
func (l *Ledger) MarkUnused(r reg.Reg) error {
	if !l.occupied.Has(r) {
		return kerr.New(kerr.InvalidRequest, "cannot mark %s unused: not occupied", r)
	}
	l.occupied = l.occupied.Remove(r)
	l.trace(r, "mark_unused")
	return nil
}

// acquireRaw is the bookkeeping-only borrow primitive: it takes r onto the
// LIFO borrow stack without touching occupancy or emitting any eviction
// code. Acquisition policies call it once they've decided (and, if
// necessary, evicted) which register to hand out.
func (l *Ledger) acquireRaw(r reg.Reg, evicted bool) (*Handle, error) {
	if l.borrowed.Has(r) {
		return nil, kerr.New(kerr.InvalidRequest, "register %s already borrowed", r)
	}
	l.borrowed = l.borrowed.Add(r)
	l.stack = append(l.stack, r)
	l.trace(r, "acquire")
	return &Handle{reg: r, borrowed: true, evicted: evicted}, nil
}

// Release returns h's register to the ledger. Releases must nest LIFO: h
// must name the register most recently acquired and not yet released.
func (l *Ledger) Release(h *Handle) error {
	if !h.borrowed {
		// AcquireSharedAllocated without a fallback never took the borrow.
		return nil
	}
	if len(l.stack) == 0 || l.stack[len(l.stack)-1] != h.reg {
		return kerr.New(kerr.InvalidRequest, "release of %s violates LIFO borrow order", h.reg)
	}
	if h.evicted {
		l.emitRestore(h.reg, h.width)
		l.occupied = l.occupied.Add(h.reg)
	}
	l.stack = l.stack[:len(l.stack)-1]
	l.borrowed = l.borrowed.Remove(h.reg)
	h.borrowed = false
	l.trace(h.reg, "release")
	return nil
}

func (l *Ledger) evict(r reg.Reg, w reg.Width) {
	l.emitSave(r, w)
	l.occupied = l.occupied.Remove(r)
	l.trace(r, "evict")
}

func (l *Ledger) emitSave(r reg.Reg, w reg.Width) {
	if l.emit == nil {
		return
	}
	if r.IsFloat() {
		l.emit.Instr("sub", asmfmt.Reg(reg.RSP, asmfmt.W64), asmfmt.Imm(16))
		l.emit.Instr("movdqu", asmfmt.Mem(reg.RSP, 0, asmfmt.W64), asmfmt.Reg(r, asmfmt.W64))
		return
	}
	l.emit.Instr("push", asmfmt.Reg(r, toAsmWidth(w)))
}

func (l *Ledger) emitRestore(r reg.Reg, w reg.Width) {
	if l.emit == nil {
		return
	}
	if r.IsFloat() {
		l.emit.Instr("movdqu", asmfmt.Reg(r, asmfmt.W64), asmfmt.Mem(reg.RSP, 0, asmfmt.W64))
		l.emit.Instr("add", asmfmt.Reg(reg.RSP, asmfmt.W64), asmfmt.Imm(16))
		return
	}
	l.emit.Instr("pop", asmfmt.Reg(r, toAsmWidth(w)))
}

func toAsmWidth(w reg.Width) asmfmt.Width {
	switch w {
	case reg.Width8:
		return asmfmt.W8
	case reg.Width16:
		return asmfmt.W16
	case reg.Width32:
		return asmfmt.W32
	default:
		return asmfmt.W64
	}
}

func (l *Ledger) trace(r reg.Reg, op string) {
	if l.log == nil {
		return
	}
	l.log.WithField("reg", r.String()).Trace(op)
}

// --- Acquisition policies (spec.md §4.E) ---
// Each policy returns a Handle whose register is safe to read/write for the
// duration of one instruction's lowering and must be released (LIFO) once
// done.

// AcquireExclusiveAllocated grants exclusive read/write access to target
// (an SSA value's own allocated register), used when an instruction
// computes its result in place over one of its arguments. If target is not
// currently borrowed it is borrowed directly with no eviction (the value
// is already there and the translator is free to clobber it, since the
// allocator guarantees the value is dead after this use); otherwise this
// falls back to AcquireAny{GeneralPurpose,XMM}.
func (l *Ledger) AcquireExclusiveAllocated(target reg.Reg, filter func(reg.Reg) bool) (*Handle, error) {
	if !l.borrowed.Has(target) {
		return l.acquireRaw(target, false)
	}
	if target.IsFloat() {
		return l.AcquireAnyXMM(filter)
	}
	return l.AcquireAnyGeneralPurpose(filter)
}

// AcquireSharedAllocated is like AcquireExclusiveAllocated but, when no
// fallback is needed, does not take the borrow at all: it hands back a
// Handle whose Release is a no-op. Use this when the instruction only
// reads target's current value and some other live user may still depend
// on it afterward (the ledger must not claim exclusive ownership of a
// register it never actually took away from anyone).
func (l *Ledger) AcquireSharedAllocated(target reg.Reg, filter func(reg.Reg) bool) (*Handle, error) {
	if !l.borrowed.Has(target) {
		return &Handle{reg: target, borrowed: false}, nil
	}
	if target.IsFloat() {
		return l.AcquireAnyXMM(filter)
	}
	return l.AcquireAnyGeneralPurpose(filter)
}

// AcquireAnyGeneralPurpose grants a scratch GPR satisfying filter (nil
// means no constraint): an unoccupied, unborrowed register if one exists,
// else an occupied-but-unborrowed register, evicted (pushed) first. Fails
// with OutOfSpace if every eligible GPR is currently borrowed.
func (l *Ledger) AcquireAnyGeneralPurpose(filter func(reg.Reg) bool) (*Handle, error) {
	return l.acquireAny(reg.AllocatableGP, reg.Width64, filter)
}

// AcquireAnyXMM grants a scratch XMM register, same policy as
// AcquireAnyGeneralPurpose.
func (l *Ledger) AcquireAnyXMM(filter func(reg.Reg) bool) (*Handle, error) {
	return l.acquireAny(reg.AllocatableXMM, reg.Width64, filter)
}

func (l *Ledger) acquireAny(candidates []reg.Reg, w reg.Width, filter func(reg.Reg) bool) (*Handle, error) {
	pass := func(r reg.Reg) bool { return filter == nil || filter(r) }

	for _, r := range candidates {
		if pass(r) && !l.borrowed.Has(r) && !l.occupied.Has(r) {
			return l.acquireRaw(r, false)
		}
	}
	for _, r := range candidates {
		if pass(r) && !l.borrowed.Has(r) {
			l.evict(r, w)
			h, err := l.acquireRaw(r, true)
			if err != nil {
				return nil, err
			}
			h.width = w
			return h, nil
		}
	}
	return nil, kerr.New(kerr.OutOfSpace, "no eligible register available for scratch acquisition")
}

// AcquireSpecific grants exactly r, evicting its current occupant (if any)
// first. Fails with InvalidRequest if r is already borrowed.
func (l *Ledger) AcquireSpecific(r reg.Reg, w reg.Width) (*Handle, error) {
	if l.borrowed.Has(r) {
		return nil, kerr.New(kerr.InvalidRequest, "register %s already borrowed", r)
	}
	if l.occupied.Has(r) {
		l.evict(r, w)
		h, err := l.acquireRaw(r, true)
		if err != nil {
			return nil, err
		}
		h.width = w
		return h, nil
	}
	return l.acquireRaw(r, false)
}
