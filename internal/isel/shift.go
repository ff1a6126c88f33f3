package isel

import (
	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/kerr"
	"github.com/kefirc/amd64cg/internal/reg"
)

// translateShift lowers IntLShift/RShift/ARShift: the shift count must sit
// in cl, so the count operand is forced into rcx (evicting its prior
// occupant if needed) while the result register is obtained excluding
// rcx, loaded with arg0, then shifted in place by cl (bitshift.c).
func translateShift(c *Context, inst *ir.Instruction) error {
	arg0, arg1 := inst.Arg0(), inst.Arg1()

	shiftReg, err := c.Ledger.AcquireSpecific(reg.RCX, reg.Width64)
	if err != nil {
		return err
	}
	if err := c.loadOperand(arg1, reg.RCX); err != nil {
		return err
	}

	result, err := c.obtainResult(inst.ID(), false, excludeReg(reg.RCX))
	if err != nil {
		return err
	}
	if err := c.loadOperand(arg0, result.Reg()); err != nil {
		return err
	}

	mnemonic, err := shiftMnemonic(inst.Opcode())
	if err != nil {
		return err
	}
	c.Emit.Instr(mnemonic, asmfmt.Reg(result.Reg(), asmfmt.W64), asmfmt.Reg(reg.RCX, asmfmt.W8))

	if err := c.storeResult(inst.ID(), result); err != nil {
		return err
	}
	return c.Ledger.Release(shiftReg)
}

func shiftMnemonic(op ir.Opcode) (string, error) {
	switch op {
	case ir.OpIntLShift:
		return "shl", nil
	case ir.OpIntRShift:
		return "shr", nil
	case ir.OpIntARShift:
		return "sar", nil
	default:
		return "", kerr.New(kerr.InvalidState, "opcode %s is not a shift operator", op)
	}
}
