package isel

import (
	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/kerr"
)

// translateLongDoubleBinary lowers LongDoubleAdd/Sub/Mul/Div: long double
// values live in 10-byte (tbyte) memory, addressed by a pointer the
// allocator hands the instruction as a plain GPR value; both operands are
// pushed onto the x87 stack with fld, combined with the matching pop-form
// instruction, then the single remaining stack slot is popped into the
// destination pointer's pointee with fstp (long_double.c).
func translateLongDoubleBinary(c *Context, inst *ir.Instruction) error {
	lhsPtr, rhsPtr, destPtr := inst.Arg0(), inst.Arg1(), inst.Arg2()

	if err := fldFromPointer(c, rhsPtr); err != nil {
		return err
	}
	if err := fldFromPointer(c, lhsPtr); err != nil {
		return err
	}

	mnemonic, err := longDoubleBinaryMnemonic(inst.Opcode())
	if err != nil {
		return err
	}
	c.Emit.Instr(mnemonic)

	return fstpToPointer(c, destPtr)
}

func longDoubleBinaryMnemonic(op ir.Opcode) (string, error) {
	switch op {
	case ir.OpLongDoubleAdd:
		return "faddp", nil
	case ir.OpLongDoubleSub:
		return "fsubp", nil
	case ir.OpLongDoubleMul:
		return "fmulp", nil
	case ir.OpLongDoubleDiv:
		return "fdivp", nil
	default:
		return "", kerr.New(kerr.InvalidState, "opcode %s is not a long double binary operator", op)
	}
}

// translateLongDoubleNeg lowers LongDoubleNeg: fchs flips the sign of the
// x87 stack top in place (long_double.c).
func translateLongDoubleNeg(c *Context, inst *ir.Instruction) error {
	argPtr, destPtr := inst.Arg0(), inst.Arg1()

	if err := fldFromPointer(c, argPtr); err != nil {
		return err
	}
	c.Emit.Instr("fchs")
	return fstpToPointer(c, destPtr)
}

// translateLongDoubleStore lowers LongDoubleStore: copies one 10-byte
// long double from the source pointer's pointee to the target pointer's,
// round-tripping through the x87 stack since there's no direct
// memory-to-memory move of that width (long_double.c).
func translateLongDoubleStore(c *Context, inst *ir.Instruction) error {
	sourcePtr, targetPtr := inst.Arg0(), inst.Arg1()

	if err := fldFromPointer(c, sourcePtr); err != nil {
		return err
	}
	return fstpToPointer(c, targetPtr)
}

func fldFromPointer(c *Context, ptr ir.Value) error {
	base, err := c.Ledger.AcquireAnyGeneralPurpose(nil)
	if err != nil {
		return err
	}
	if err := c.loadOperand(ptr, base.Reg()); err != nil {
		return err
	}
	c.Emit.Instr("fld", asmfmt.Mem(base.Reg(), 0, asmfmt.WTByte))
	return c.Ledger.Release(base)
}

func fstpToPointer(c *Context, ptr ir.Value) error {
	base, err := c.Ledger.AcquireAnyGeneralPurpose(nil)
	if err != nil {
		return err
	}
	if err := c.loadOperand(ptr, base.Reg()); err != nil {
		return err
	}
	c.Emit.Instr("fstp", asmfmt.Mem(base.Reg(), 0, asmfmt.WTByte))
	return c.Ledger.Release(base)
}
