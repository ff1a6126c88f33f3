package isel

import (
	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/kerr"
	"github.com/kefirc/amd64cg/internal/reg"
	"github.com/kefirc/amd64cg/internal/storage"
)

// translateLoad lowers Int{8,16,32,64}Load{Signed,Unsigned}: the address
// operand (arg0) is loaded into a scratch GPR, then the sized value is
// fetched with movsx/movzx (or a plain mov for the 64-bit/unsigned-32
// cases, which already zero-extend the upper half for free) (load.c).
func translateLoad(c *Context, inst *ir.Instruction) error {
	addr, err := c.Ledger.AcquireAnyGeneralPurpose(nil)
	if err != nil {
		return err
	}
	if err := c.loadOperand(inst.Arg0(), addr.Reg()); err != nil {
		return err
	}

	result, err := c.obtainResult(inst.ID(), false, excludeReg(addr.Reg()))
	if err != nil {
		return err
	}

	mem := func(w asmfmt.Width) asmfmt.Operand { return asmfmt.Mem(addr.Reg(), 0, w) }
	switch inst.Opcode() {
	case ir.OpInt8LoadSigned:
		c.Emit.Instr("movsx", asmfmt.Reg(result.Reg(), asmfmt.W64), mem(asmfmt.W8))
	case ir.OpInt8LoadUnsigned:
		c.Emit.Instr("movzx", asmfmt.Reg(result.Reg(), asmfmt.W64), mem(asmfmt.W8))
	case ir.OpInt16LoadSigned:
		c.Emit.Instr("movsx", asmfmt.Reg(result.Reg(), asmfmt.W64), mem(asmfmt.W16))
	case ir.OpInt16LoadUnsigned:
		c.Emit.Instr("movzx", asmfmt.Reg(result.Reg(), asmfmt.W64), mem(asmfmt.W16))
	case ir.OpInt32LoadSigned:
		c.Emit.Instr("movsx", asmfmt.Reg(result.Reg(), asmfmt.W64), mem(asmfmt.W32))
	case ir.OpInt32LoadUnsigned:
		c.Emit.Instr("mov", asmfmt.Reg(result.Reg(), asmfmt.W32), mem(asmfmt.W32))
	case ir.OpInt64Load:
		c.Emit.Instr("mov", asmfmt.Reg(result.Reg(), asmfmt.W64), mem(asmfmt.W64))
	default:
		return kerr.New(kerr.InvalidState, "opcode %s is not a sized load", inst.Opcode())
	}

	if err := c.storeResult(inst.ID(), result); err != nil {
		return err
	}
	return c.Ledger.Release(addr)
}

// translateStore lowers Int{8,16,32,64}Store: the address (arg0) and
// value (arg1) are each loaded into a scratch register (general-purpose
// or XMM, mirroring whichever register class the value's own allocation
// uses) and written out at the sized width (store.c).
func translateStore(c *Context, inst *ir.Instruction) error {
	addrVal, srcVal := inst.Arg0(), inst.Arg1()

	addr, err := c.Ledger.AcquireAnyGeneralPurpose(excludeIfRegister(c.allocationOf(srcVal)))
	if err != nil {
		return err
	}
	if err := c.loadOperand(addrVal, addr.Reg()); err != nil {
		return err
	}

	w, err := storeWidth(inst.Opcode())
	if err != nil {
		return err
	}
	dest := asmfmt.Mem(addr.Reg(), 0, w)

	srcAlloc := c.allocationOf(srcVal)
	if srcAlloc.Kind == ir.AllocFPR {
		src, err := c.Ledger.AcquireSharedAllocated(srcAlloc.Reg, excludeReg(addr.Reg()))
		if err != nil {
			return err
		}
		if err := c.loadOperand(srcVal, src.Reg()); err != nil {
			return err
		}
		mnemonic := "movd"
		if w == asmfmt.W64 {
			mnemonic = "movq"
		}
		c.Emit.Instr(mnemonic, dest, asmfmt.Reg(src.Reg(), w))
		if err := c.Ledger.Release(src); err != nil {
			return err
		}
	} else {
		src, err := c.Ledger.AcquireAnyGeneralPurpose(excludeReg(addr.Reg()))
		if err != nil {
			return err
		}
		if err := c.loadOperand(srcVal, src.Reg()); err != nil {
			return err
		}
		c.Emit.Instr("mov", dest, asmfmt.Reg(src.Reg(), w))
		if err := c.Ledger.Release(src); err != nil {
			return err
		}
	}

	return c.Ledger.Release(addr)
}

func storeWidth(op ir.Opcode) (asmfmt.Width, error) {
	switch op {
	case ir.OpInt8Store:
		return asmfmt.W8, nil
	case ir.OpInt16Store:
		return asmfmt.W16, nil
	case ir.OpInt32Store:
		return asmfmt.W32, nil
	case ir.OpInt64Store:
		return asmfmt.W64, nil
	default:
		return 0, kerr.New(kerr.InvalidState, "opcode %s is not a sized store", op)
	}
}

// translateMemoryCopy lowers MemoryCopy: `rep movsb` copies inst.Imm()
// bytes from the source pointer (arg1, rsi) to the destination pointer
// (arg0, rdi) (memory.c). The byte count is computed by the external type
// layout pass and carried directly as an immediate here, since this
// backend has no type-layout engine of its own (spec.md's explicit
// boundary: type layout lives with the frontend/optimizer, not codegen).
func translateMemoryCopy(c *Context, inst *ir.Instruction) error {
	dst, src := inst.Arg0(), inst.Arg1()

	rsi, err := c.Ledger.AcquireSpecific(reg.RSI, reg.Width64)
	if err != nil {
		return err
	}
	rdi, err := c.Ledger.AcquireSpecific(reg.RDI, reg.Width64)
	if err != nil {
		return err
	}
	if err := c.loadOperand(src, reg.RSI); err != nil {
		return err
	}
	if err := c.loadOperand(dst, reg.RDI); err != nil {
		return err
	}

	rcx, err := c.Ledger.AcquireSpecific(reg.RCX, reg.Width64)
	if err != nil {
		return err
	}
	emitSizeImmediate(c, reg.RCX, inst.Imm())
	c.Emit.Instr("rep movsb")

	if err := c.Ledger.Release(rcx); err != nil {
		return err
	}
	if err := c.Ledger.Release(rdi); err != nil {
		return err
	}
	return c.Ledger.Release(rsi)
}

// translateZeroMemory lowers ZeroMemory: `rep stosb` writes inst.Imm()
// zero bytes starting at the destination pointer (arg0, rdi), with the
// fill byte taken from al (zero_memory.c).
func translateZeroMemory(c *Context, inst *ir.Instruction) error {
	dst := inst.Arg0()

	rax, err := c.Ledger.AcquireSpecific(reg.RAX, reg.Width64)
	if err != nil {
		return err
	}
	rdi, err := c.Ledger.AcquireSpecific(reg.RDI, reg.Width64)
	if err != nil {
		return err
	}
	if err := c.loadOperand(dst, reg.RDI); err != nil {
		return err
	}

	rcx, err := c.Ledger.AcquireSpecific(reg.RCX, reg.Width64)
	if err != nil {
		return err
	}
	c.Emit.Instr("xor", asmfmt.Reg(reg.RAX, asmfmt.W64), asmfmt.Reg(reg.RAX, asmfmt.W64))
	emitSizeImmediate(c, reg.RCX, inst.Imm())
	c.Emit.Instr("rep stosb")

	if err := c.Ledger.Release(rcx); err != nil {
		return err
	}
	if err := c.Ledger.Release(rdi); err != nil {
		return err
	}
	return c.Ledger.Release(rax)
}

func emitSizeImmediate(c *Context, r reg.Reg, size int64) {
	if size > 0x7fffffff {
		c.Emit.Instr("movabs", asmfmt.Reg(r, asmfmt.W64), asmfmt.Imm(size))
	} else {
		c.Emit.Instr("mov", asmfmt.Reg(r, asmfmt.W64), asmfmt.Imm(size))
	}
}

// translateStackAlloc lowers StackAlloc: rsp is decremented by the
// requested size (arg0), then realigned down to max(arg1, 16) bytes via a
// negate-and-mask trick (stack_alloc.c); the resulting rsp becomes the
// result's value. When the allocation isn't scoped to an enclosing
// PushScope/PopScope pair, the prior rsp is additionally recorded at the
// frame's dynamic-scope slot so PopScope can restore it directly.
func translateStackAlloc(c *Context, inst *ir.Instruction) error {
	sizeVal, alignVal := inst.Arg0(), inst.Arg1()
	withinScope := inst.Imm() != 0

	if !withinScope {
		tmp, err := c.Ledger.AcquireAnyGeneralPurpose(nil)
		if err != nil {
			return err
		}
		c.Emit.Instr("xor", asmfmt.Reg(tmp.Reg(), asmfmt.W64), asmfmt.Reg(tmp.Reg(), asmfmt.W64))
		c.Emit.Instr("mov", asmfmt.Reg(tmp.Reg(), asmfmt.W64), asmfmt.Reg(reg.RSP, asmfmt.W64))
		c.Emit.Instr("mov", asmfmt.Mem(reg.RBP, c.Frame.DynamicScopeOffset(), asmfmt.W64), asmfmt.Reg(tmp.Reg(), asmfmt.W64))
		if err := c.Ledger.Release(tmp); err != nil {
			return err
		}
	}

	sizeOperand, err := c.operand(sizeVal, asmfmt.W64)
	if err != nil {
		return err
	}
	c.Emit.Instr("sub", asmfmt.Reg(reg.RSP, asmfmt.W64), sizeOperand)

	align, err := c.Ledger.AcquireAnyGeneralPurpose(nil)
	if err != nil {
		return err
	}
	if err := c.loadOperand(alignVal, align.Reg()); err != nil {
		return err
	}
	minAlign, err := c.Ledger.AcquireAnyGeneralPurpose(excludeReg(align.Reg()))
	if err != nil {
		return err
	}
	c.Emit.Instr("mov", asmfmt.Reg(minAlign.Reg(), asmfmt.W64), asmfmt.Imm(16))
	c.Emit.Instr("cmp", asmfmt.Reg(align.Reg(), asmfmt.W64), asmfmt.Reg(minAlign.Reg(), asmfmt.W64))
	c.Emit.Instr("cmovl", asmfmt.Reg(align.Reg(), asmfmt.W64), asmfmt.Reg(minAlign.Reg(), asmfmt.W64))
	c.Emit.Instr("neg", asmfmt.Reg(align.Reg(), asmfmt.W64))
	c.Emit.Instr("and", asmfmt.Reg(reg.RSP, asmfmt.W64), asmfmt.Reg(align.Reg(), asmfmt.W64))
	if err := c.Ledger.Release(minAlign); err != nil {
		return err
	}
	if err := c.Ledger.Release(align); err != nil {
		return err
	}

	loc, err := c.locationOf(inst.ID())
	if err != nil {
		return err
	}
	switch loc.Kind {
	case storage.LocRegister:
		c.Emit.Instr("mov", asmfmt.Reg(loc.Reg, asmfmt.W64), asmfmt.Reg(reg.RSP, asmfmt.W64))
	case storage.LocMemory:
		c.Emit.Instr("mov", asmfmt.Mem(loc.Base, loc.Offset, asmfmt.W64), asmfmt.Reg(reg.RSP, asmfmt.W64))
	}
	return nil
}
