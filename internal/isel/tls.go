package isel

import (
	"fmt"

	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/reg"
	"github.com/kefirc/amd64cg/internal/storage"
)

// callerSavedSaveOrder lists the registers translateThreadLocalStorage's
// call-based paths save/restore around the TLS helper call, in the same
// order thread_local_storage.c's KefirCodegenOptSysvAmd64StackFrameCallerSavedRegs
// table iterates (save forward, restore in reverse).
var callerSavedSaveOrder = []reg.Reg{
	reg.RAX, reg.RCX, reg.RDX, reg.RSI, reg.RDI, reg.R8, reg.R9, reg.R10, reg.R11,
	reg.XMM0, reg.XMM1, reg.XMM2, reg.XMM3, reg.XMM4, reg.XMM5, reg.XMM6, reg.XMM7,
	reg.XMM8, reg.XMM9, reg.XMM10, reg.XMM11, reg.XMM12, reg.XMM13, reg.XMM14, reg.XMM15,
}

// translateThreadLocalStorage lowers ThreadLocalStorage, selecting one of
// three access models by internal/config.Config, mirroring
// thread_local_storage.c's own three-way dispatch:
//   - EmulatedTLS: calls __emutls_get_address with the variable's control
//     block address in rdi.
//   - PositionIndependentCode (and not EmulatedTLS): the general-dynamic
//     model, a data16/lea/rex.W/call __tls_get_addr sequence against the
//     symbol's TLS GOT entry.
//   - neither: initial-exec, a direct fs-segment-relative lea/add. Symbol
//     locality is not consulted, so this path never emits a GOT-relative
//     load.
//
// The two call-based models clobber every caller-saved register the
// platform ABI allows a callee to trash, so any such register currently
// holding a live value is saved around the call and restored after —
// except the result's own register, which the call is about to overwrite
// anyway.
func translateThreadLocalStorage(c *Context, inst *ir.Instruction) error {
	switch {
	case c.Config.EmulatedTLS:
		return translateEmulatedTLS(c, inst)
	case c.Config.PositionIndependentCode:
		return translateGeneralDynamicTLS(c, inst)
	default:
		return translateInitialExecTLS(c, inst)
	}
}

func translateInitialExecTLS(c *Context, inst *ir.Instruction) error {
	result, err := c.obtainResult(inst.ID(), false, nil)
	if err != nil {
		return err
	}

	symbol := inst.Symbol()
	if !c.Config.PositionIndependentCode {
		c.Emit.Instr("lea", asmfmt.Reg(result.Reg(), asmfmt.W64), asmfmt.MemRIP(symbol+"@tpoff", asmfmt.W64))
		c.Emit.Instr("add", asmfmt.Reg(result.Reg(), asmfmt.W64), asmfmt.MemSegment("fs", 0, asmfmt.W64))
	} else {
		c.Emit.Instr("mov", asmfmt.Reg(result.Reg(), asmfmt.W64), asmfmt.MemSegment("fs", 0, asmfmt.W64))
		c.Emit.Instr("add", asmfmt.Reg(result.Reg(), asmfmt.W64), asmfmt.MemRIP(symbol+"@gottpoff", asmfmt.W64))
	}

	return c.storeResult(inst.ID(), result)
}

func translateGeneralDynamicTLS(c *Context, inst *ir.Instruction) error {
	resultAlloc := c.allocationOf(inst.ID())
	saved, offset := saveCallerSavedRegisters(c, resultAlloc)

	c.Emit.Instr("data16")
	c.Emit.Instr("lea", asmfmt.Reg(reg.RDI, asmfmt.W64), asmfmt.MemRIP(inst.Symbol()+"@tlsgd", asmfmt.W64))
	c.Emit.Instr(".word", asmfmt.Imm(0x6666))
	c.Emit.Instr("rex.W")
	c.Emit.Instr("call", asmfmt.LabelRef("__tls_get_addr", 0))

	if err := storeCallResultToAllocation(c, inst.ID()); err != nil {
		return err
	}
	restoreCallerSavedRegisters(c, saved, offset)
	return nil
}

func translateEmulatedTLS(c *Context, inst *ir.Instruction) error {
	resultAlloc := c.allocationOf(inst.ID())
	saved, offset := saveCallerSavedRegisters(c, resultAlloc)

	symbol := inst.Symbol()
	controlSymbol := fmt.Sprintf("__emutls_v.%s", symbol)
	if !c.Config.PositionIndependentCode {
		c.Emit.Instr("lea", asmfmt.Reg(reg.RDI, asmfmt.W64), asmfmt.MemRIP(controlSymbol, asmfmt.W64))
	} else {
		c.Emit.Instr("mov", asmfmt.Reg(reg.RDI, asmfmt.W64), asmfmt.MemRIP(controlSymbol+"@GOTPCREL", asmfmt.W64))
	}
	c.Emit.Instr("call", asmfmt.LabelRef("__emutls_get_address", 0))

	if err := storeCallResultToAllocation(c, inst.ID()); err != nil {
		return err
	}
	restoreCallerSavedRegisters(c, saved, offset)
	return nil
}

// saveCallerSavedRegisters pushes every currently occupied caller-saved
// register (other than the result's own, which the call is about to
// overwrite) and pads to 16-byte alignment, returning the set saved (in
// save order) and the unaligned byte count, both needed to restore
// correctly afterward.
func saveCallerSavedRegisters(c *Context, resultAlloc ir.Allocation) ([]reg.Reg, int64) {
	var saved []reg.Reg
	var offset int64
	for _, r := range callerSavedSaveOrder {
		if resultAlloc.Kind == ir.AllocGPR || resultAlloc.Kind == ir.AllocFPR {
			if resultAlloc.Reg == r {
				continue
			}
		}
		if !c.Ledger.IsOccupied(r) {
			continue
		}
		if r.IsFloat() {
			c.Emit.Instr("sub", asmfmt.Reg(reg.RSP, asmfmt.W64), asmfmt.Imm(8))
			c.Emit.Instr("movq", asmfmt.Mem(reg.RSP, 0, asmfmt.W64), asmfmt.Reg(r, asmfmt.W64))
		} else {
			c.Emit.Instr("push", asmfmt.Reg(r, asmfmt.W64))
		}
		saved = append(saved, r)
		offset += 8
	}
	if aligned := alignUp(offset, 16); aligned > offset {
		c.Emit.Instr("sub", asmfmt.Reg(reg.RSP, asmfmt.W64), asmfmt.Imm(aligned-offset))
	}
	return saved, offset
}

func restoreCallerSavedRegisters(c *Context, saved []reg.Reg, offset int64) {
	if aligned := alignUp(offset, 16); aligned > offset {
		c.Emit.Instr("add", asmfmt.Reg(reg.RSP, asmfmt.W64), asmfmt.Imm(aligned-offset))
	}
	for i := len(saved) - 1; i >= 0; i-- {
		r := saved[i]
		if r.IsFloat() {
			c.Emit.Instr("movq", asmfmt.Reg(r, asmfmt.W64), asmfmt.Mem(reg.RSP, 0, asmfmt.W64))
			c.Emit.Instr("add", asmfmt.Reg(reg.RSP, asmfmt.W64), asmfmt.Imm(8))
		} else {
			c.Emit.Instr("pop", asmfmt.Reg(r, asmfmt.W64))
		}
	}
}

func alignUp(v, a int64) int64 { return (v + a - 1) &^ (a - 1) }

// storeCallResultToAllocation writes rax (the TLS helper's return value)
// into v's own allocation, register or spill slot.
func storeCallResultToAllocation(c *Context, v ir.Value) error {
	loc, err := c.locationOf(v)
	if err != nil {
		return err
	}
	switch loc.Kind {
	case storage.LocRegister:
		if loc.Reg != reg.RAX {
			c.Emit.Instr("mov", asmfmt.Reg(loc.Reg, asmfmt.W64), asmfmt.Reg(reg.RAX, asmfmt.W64))
		}
	case storage.LocMemory:
		c.Emit.Instr("mov", asmfmt.Mem(loc.Base, loc.Offset, asmfmt.W64), asmfmt.Reg(reg.RAX, asmfmt.W64))
	}
	return nil
}
