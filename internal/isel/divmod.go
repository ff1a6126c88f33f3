package isel

import (
	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/kerr"
	"github.com/kefirc/amd64cg/internal/reg"
	"github.com/kefirc/amd64cg/internal/storage"
)

// translateDivMod lowers IntDiv/IntUDiv/IntMod/IntUMod: the dividend
// always occupies rax and the high half rdx, per the one-operand idiv/div
// instruction's fixed operand convention; signed division sign-extends
// rax into rdx with cqo, unsigned division zeroes rdx, and the quotient
// (div/udiv) or remainder (mod/umod) is read back from rax/rdx
// respectively (div_mod.c).
func translateDivMod(c *Context, inst *ir.Instruction) error {
	arg0, arg1 := inst.Arg0(), inst.Arg1()

	// rax/rdx are acquired against the result's own allocation: if the
	// allocator already placed the result in one of them, acquisition
	// adopts it in place rather than evicting, so releasing afterward
	// can't restore a stale prior occupant over the computed result.
	quotient, err := c.acquireSpecificForResult(inst.ID(), reg.RAX, reg.Width64)
	if err != nil {
		return err
	}
	remainder, err := c.acquireSpecificForResult(inst.ID(), reg.RDX, reg.Width64)
	if err != nil {
		return err
	}

	if err := c.loadOperand(arg0, reg.RAX); err != nil {
		return err
	}

	divisor, err := c.operand(arg1, asmfmt.W64)
	if err != nil {
		return err
	}

	signed := inst.Opcode() == ir.OpIntDiv || inst.Opcode() == ir.OpIntMod
	if signed {
		c.Emit.Instr("cqo")
		c.Emit.Instr("idiv", divisor)
	} else {
		c.Emit.Instr("xor", asmfmt.Reg(reg.RDX, asmfmt.W64), asmfmt.Reg(reg.RDX, asmfmt.W64))
		c.Emit.Instr("div", divisor)
	}

	var resultReg reg.Reg
	switch inst.Opcode() {
	case ir.OpIntDiv, ir.OpIntUDiv:
		resultReg = reg.RAX
	case ir.OpIntMod, ir.OpIntUMod:
		resultReg = reg.RDX
	default:
		return kerr.New(kerr.InvalidState, "opcode %s is not a div/mod operator", inst.Opcode())
	}

	resultLoc, err := c.locationOf(inst.ID())
	if err != nil {
		return err
	}
	if resultLoc.Kind == storage.LocMemory {
		c.Emit.Instr("mov", asmfmt.Mem(resultLoc.Base, resultLoc.Offset, asmfmt.W64), asmfmt.Reg(resultReg, asmfmt.W64))
	} else if resultLoc.Reg != resultReg {
		c.Emit.Instr("mov", asmfmt.Reg(resultLoc.Reg, asmfmt.W64), asmfmt.Reg(resultReg, asmfmt.W64))
	}

	if err := c.Ledger.Release(remainder); err != nil {
		return err
	}
	return c.Ledger.Release(quotient)
}
