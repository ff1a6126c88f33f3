package isel

import (
	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/kerr"
)

// translateIntCompare lowers IntEq/Greater/Lesser/Above/Below: cmp arg0,
// arg1 then setCC into the result register's byte view, zero-extended
// (comparison.c).
func translateIntCompare(c *Context, inst *ir.Instruction) error {
	arg0, arg1 := inst.Arg0(), inst.Arg1()

	result, err := c.obtainResult(inst.ID(), false, excludeIfRegister(c.allocationOf(arg1)))
	if err != nil {
		return err
	}
	if err := c.loadOperand(arg0, result.Reg()); err != nil {
		return err
	}

	src, err := c.operand(arg1, asmfmt.W64)
	if err != nil {
		return err
	}
	c.Emit.Instr("cmp", asmfmt.Reg(result.Reg(), asmfmt.W64), src)

	mnemonic, err := setMnemonic(inst.Opcode())
	if err != nil {
		return err
	}
	b := byteView(result.Reg())
	c.Emit.Instr(mnemonic, asmfmt.Reg(b, asmfmt.W8))
	c.Emit.Instr("movzx", asmfmt.Reg(result.Reg(), asmfmt.W64), asmfmt.Reg(b, asmfmt.W8))

	return c.storeResult(inst.ID(), result)
}

func setMnemonic(op ir.Opcode) (string, error) {
	switch op {
	case ir.OpIntEq:
		return "sete", nil
	case ir.OpIntGreater:
		return "setg", nil
	case ir.OpIntLesser:
		return "setl", nil
	case ir.OpIntAbove:
		return "seta", nil
	case ir.OpIntBelow:
		return "setb", nil
	default:
		return "", kerr.New(kerr.InvalidState, "opcode %s is not an integer comparison", op)
	}
}
