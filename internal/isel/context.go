// Package isel is the instruction selector (spec.md §4.G): a dispatch
// table mapping each SSA opcode to a translator function that lowers one
// ir.Instruction into assembly through an asmfmt.Emitter, using the
// storage ledger/transform (internal/storage) and System V calling
// convention helpers (internal/abi) the earlier components provide. One
// file per opcode family mirrors original_source's
// codegen/opt-system-v-amd64/code/*.c layout.
package isel

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/kefirc/amd64cg/internal/abi"
	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/config"
	"github.com/kefirc/amd64cg/internal/frame"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/kerr"
	"github.com/kefirc/amd64cg/internal/reg"
	"github.com/kefirc/amd64cg/internal/storage"
)

// Context bundles the per-function state every opcode translator needs.
// It is built once by internal/codegen for each Function and threaded
// through every Translate call.
type Context struct {
	Emit   asmfmt.Emitter
	Ledger *storage.Ledger
	Frame  *frame.Map
	Alloc  *ir.RegisterAllocation
	Module *ir.Module
	Func   *ir.Function
	Config config.Config
	Log    *logrus.Entry

	labelSeq int
}

// localLabel mints a fresh non-block label scoped to the current
// function, used by translators that need an internal branch target not
// corresponding to any IR block (e.g. the signed/unsigned split in
// UIntToFloat lowering; jump.c's "nonblock_labels" counter).
func (c *Context) localLabel(tag string) asmfmt.Label {
	c.labelSeq++
	return asmfmt.Label(fmt.Sprintf(".L%s_%s_%d", c.Func.Name, tag, c.labelSeq))
}

// blockLabel names the label marking block id's first instruction,
// mirroring jump.c's KEFIR_OPT_AMD64_SYSTEM_V_FUNCTION_BLOCK formatting.
func (c *Context) blockLabel(id ir.BlockID) asmfmt.Label {
	return BlockLabel(c.Func, id)
}

// BlockLabel names the label marking block id's first instruction within
// fn. Exported so internal/inlineasm's jump trampolines (which target the
// same blocks as ordinary control-flow edges, but run outside Context's
// per-opcode dispatch) name them identically.
func BlockLabel(fn *ir.Function, id ir.BlockID) asmfmt.Label {
	return asmfmt.Label(fmt.Sprintf(".L%s_block%d", fn.Name, id))
}

// epilogueLabel names the single shared epilogue every Return translates
// to a jump into, rather than re-emitting the callee-saved restore
// sequence at each return site; internal/codegen places the actual
// epilogue body at this label once per function.
func (c *Context) epilogueLabel() asmfmt.Label {
	return asmfmt.Label(fmt.Sprintf(".L%s_epilogue", c.Func.Name))
}

// locationOf resolves the already-computed Allocation for value v to a
// storage.Location.
func (c *Context) locationOf(v ir.Value) (storage.Location, error) {
	return storage.FromAllocation(c.Alloc.Lookup(v), c.Frame)
}

// allocationOf returns the raw Allocation backing v.
func (c *Context) allocationOf(v ir.Value) ir.Allocation {
	return c.Alloc.Lookup(v)
}

// obtainResult acquires the physical register v's result should end up
// in: v's own register if the allocator placed it in one (no eviction:
// the allocator never places two live values in conflicting registers at
// once), or any free GPR/XMM otherwise (the common case is then "result
// lives in a register borrowed from the ledger and must be stored back
// to its spill slot once the instruction is done" -- see storeResult).
// This is the same "temporary register obtain" shape every translator in
// code/*.c opens with.
func (c *Context) obtainResult(v ir.Value, float bool, filter func(reg.Reg) bool) (*storage.Handle, error) {
	a := c.allocationOf(v)
	switch a.Kind {
	case ir.AllocGPR, ir.AllocFPR:
		return c.Ledger.AcquireSharedAllocated(a.Reg, filter)
	default:
		if float {
			return c.Ledger.AcquireAnyXMM(filter)
		}
		return c.Ledger.AcquireAnyGeneralPurpose(filter)
	}
}

// storeResult writes h's register back to v's spill-area Allocation when
// v isn't itself register-resident (i.e. obtainResult had to borrow a
// scratch register to compute into), mirroring code/*.c's
// "if (result_reg.borrow) { store }" tail every translator ends with.
func (c *Context) storeResult(v ir.Value, h *storage.Handle) error {
	a := c.allocationOf(v)
	if a.Kind != ir.AllocGPR && a.Kind != ir.AllocFPR {
		loc, err := c.locationOf(v)
		if err != nil {
			return err
		}
		if loc.Kind == storage.LocMemory {
			width := asmfmt.W64
			if h.Reg().IsFloat() {
				c.Emit.Instr("movq", asmfmt.Mem(loc.Base, loc.Offset, width), asmfmt.Reg(h.Reg(), width))
			} else {
				c.Emit.Instr("mov", asmfmt.Mem(loc.Base, loc.Offset, width), asmfmt.Reg(h.Reg(), width))
			}
		}
	}
	return c.Ledger.Release(h)
}

// loadOperand loads value v's location into dest unless it is already
// resident there.
func (c *Context) loadOperand(v ir.Value, dest reg.Reg) error {
	loc, err := c.locationOf(v)
	if err != nil {
		return err
	}
	if loc.Kind == storage.LocRegister && loc.Reg == dest {
		return nil
	}
	width := asmfmt.W64
	mnemonic := "mov"
	if dest.IsFloat() {
		mnemonic = "movq"
	}
	switch loc.Kind {
	case storage.LocRegister:
		c.Emit.Instr(mnemonic, asmfmt.Reg(dest, width), asmfmt.Reg(loc.Reg, width))
	case storage.LocMemory:
		c.Emit.Instr(mnemonic, asmfmt.Reg(dest, width), asmfmt.Mem(loc.Base, loc.Offset, width))
	default:
		return kerr.New(kerr.InvalidState, "unknown location kind %d", loc.Kind)
	}
	return nil
}

// operand renders v's location directly as an Operand, for instructions
// that can take a register-or-memory second operand without needing it
// loaded into a specific register first (e.g. add reg, [rbp-8]).
func (c *Context) operand(v ir.Value, w asmfmt.Width) (asmfmt.Operand, error) {
	loc, err := c.locationOf(v)
	if err != nil {
		return asmfmt.Operand{}, err
	}
	switch loc.Kind {
	case storage.LocRegister:
		return asmfmt.Reg(loc.Reg, w), nil
	case storage.LocMemory:
		return asmfmt.Mem(loc.Base, loc.Offset, w), nil
	default:
		return asmfmt.Operand{}, kerr.New(kerr.InvalidState, "unknown location kind %d", loc.Kind)
	}
}

// acquireSpecificForResult grants exactly r for computing into on behalf
// of result value v. When v's own allocation already is r, this adopts it
// via AcquireExclusiveAllocated instead of AcquireSpecific: no eviction
// push/pop is emitted, so the later Release cannot pop a stale prior
// occupant back on top of the value this instruction is about to leave
// permanently resident in r. Any other live value currently occupying r
// (one that survives past this instruction) still goes through the normal
// evict-on-acquire/restore-on-release path (div_mod.c's
// acquire_specific_temporary_register, which is handed result_allocation
// for exactly this reason).
func (c *Context) acquireSpecificForResult(v ir.Value, r reg.Reg, w reg.Width) (*storage.Handle, error) {
	a := c.allocationOf(v)
	if (a.Kind == ir.AllocGPR || a.Kind == ir.AllocFPR) && a.Reg == r {
		return c.Ledger.AcquireExclusiveAllocated(r, nil)
	}
	return c.Ledger.AcquireSpecific(r, w)
}

// isF64 reports whether v's scalar type is double-precision, to pick
// between an opcode family's ss/sd (or ps/pd) mnemonic spellings.
func (c *Context) isF64(v ir.Value) bool {
	return c.Func.ValueType(v).Kind() == ir.TypeF64
}

// abiOf resolves a function's signature to a classified ABI,
// used by invoke/vararg translators.
func (c *Context) abiOf(sig ir.Signature) (*abi.FunctionABI, error) {
	return abi.Classify(sig)
}
