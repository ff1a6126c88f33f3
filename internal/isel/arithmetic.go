package isel

import (
	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/kerr"
	"github.com/kefirc/amd64cg/internal/reg"
)

// translateBinaryOp lowers IntAdd/Sub/Mul/And/Or/Xor: a destructive
// two-operand instruction computed directly over the result register
// (binary_op.c). The result register is obtained honoring the result's
// own allocation, arg0 is loaded into it if not already resident there,
// then the opcode's mnemonic applies arg1 in place.
func translateBinaryOp(c *Context, inst *ir.Instruction) error {
	arg0, arg1 := inst.Arg0(), inst.Arg1()

	arg1Alloc := c.allocationOf(arg1)
	filter := excludeIfRegister(arg1Alloc)

	result, err := c.obtainResult(inst.ID(), false, filter)
	if err != nil {
		return err
	}
	if err := c.loadOperand(arg0, result.Reg()); err != nil {
		return err
	}

	mnemonic, err := binaryMnemonic(inst.Opcode())
	if err != nil {
		return err
	}
	src, err := c.operand(arg1, asmfmt.W64)
	if err != nil {
		return err
	}
	c.Emit.Instr(mnemonic, asmfmt.Reg(result.Reg(), asmfmt.W64), src)

	return c.storeResult(inst.ID(), result)
}

func binaryMnemonic(op ir.Opcode) (string, error) {
	switch op {
	case ir.OpIntAdd:
		return "add", nil
	case ir.OpIntSub:
		return "sub", nil
	case ir.OpIntMul:
		return "imul", nil
	case ir.OpIntAnd:
		return "and", nil
	case ir.OpIntOr:
		return "or", nil
	case ir.OpIntXor:
		return "xor", nil
	default:
		return "", kerr.New(kerr.InvalidState, "opcode %s is not a binary integer operator", op)
	}
}

// translateBoolAnd lowers BoolAnd: each operand is reduced to its
// truthiness via test+setne before being conjoined, since a C boolean
// logical-and operand may hold any nonzero representation (binary_op.c).
func translateBoolAnd(c *Context, inst *ir.Instruction) error {
	arg0, arg1 := inst.Arg0(), inst.Arg1()

	result, err := c.obtainResult(inst.ID(), false, excludeIfRegister(c.allocationOf(arg1)))
	if err != nil {
		return err
	}
	if err := c.loadOperand(arg0, result.Reg()); err != nil {
		return err
	}

	tmp, err := c.Ledger.AcquireAnyGeneralPurpose(excludeReg(result.Reg()))
	if err != nil {
		return err
	}

	resultByte := byteView(result.Reg())
	c.Emit.Instr("test", asmfmt.Reg(result.Reg(), asmfmt.W64), asmfmt.Reg(result.Reg(), asmfmt.W64))
	c.Emit.Instr("setne", asmfmt.Reg(resultByte, asmfmt.W8))

	if err := c.loadOperand(arg1, tmp.Reg()); err != nil {
		return err
	}
	c.Emit.Instr("test", asmfmt.Reg(tmp.Reg(), asmfmt.W64), asmfmt.Reg(tmp.Reg(), asmfmt.W64))
	tmpByte := byteView(tmp.Reg())
	c.Emit.Instr("setne", asmfmt.Reg(tmpByte, asmfmt.W8))

	c.Emit.Instr("and", asmfmt.Reg(resultByte, asmfmt.W8), asmfmt.Reg(tmpByte, asmfmt.W8))
	c.Emit.Instr("movzx", asmfmt.Reg(result.Reg(), asmfmt.W64), asmfmt.Reg(resultByte, asmfmt.W8))

	if err := c.Ledger.Release(tmp); err != nil {
		return err
	}
	return c.storeResult(inst.ID(), result)
}

// translateBoolOr lowers BoolOr: arg1 is or-ed directly into the result
// register (already holding arg0), then reduced to 0/1 (binary_op.c).
func translateBoolOr(c *Context, inst *ir.Instruction) error {
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
	c.Emit.Instr("or", asmfmt.Reg(result.Reg(), asmfmt.W64), src)

	resultByte := byteView(result.Reg())
	c.Emit.Instr("setne", asmfmt.Reg(resultByte, asmfmt.W8))
	c.Emit.Instr("movzx", asmfmt.Reg(result.Reg(), asmfmt.W64), asmfmt.Reg(resultByte, asmfmt.W8))

	return c.storeResult(inst.ID(), result)
}

// byteView returns the same physical register for use in an 8-bit
// operand context; the Emitter picks the al/bl/... spelling from the
// width, so the register identity is unchanged.
func byteView(r reg.Reg) reg.Reg { return r }

// excludeIfRegister returns a filter rejecting a's register when a is
// itself register-resident, so a scratch acquisition never collides with
// a live operand it must still read.
func excludeIfRegister(a ir.Allocation) func(reg.Reg) bool {
	if a.Kind != ir.AllocGPR && a.Kind != ir.AllocFPR {
		return nil
	}
	return excludeReg(a.Reg)
}

func excludeReg(r reg.Reg) func(reg.Reg) bool {
	return func(candidate reg.Reg) bool { return candidate != r }
}
