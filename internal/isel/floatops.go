package isel

import (
	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/kerr"
)

// F32SignMask and F64SignMask name the rodata symbols internal/codegen's
// constant pool emits once per module (a single shared sign-bit mask per
// width, rather than kefir's per-function-local constant, since nothing
// about the mask depends on which function negates with it). Exported so
// internal/codegen's constant pool and this package's own translator
// agree on the exact symbol name without either hardcoding the other's
// string.
const (
	F32SignMask = "kfcg_f32_sign_mask"
	F64SignMask = "kfcg_f64_sign_mask"
)

const (
	f32SignMask = F32SignMask
	f64SignMask = F64SignMask
)

// translateFloatBinary lowers Float32/64 Add/Sub/Mul/Div: a destructive
// two-operand SSE instruction computed directly over the result register
// (float_binary_op.c).
func translateFloatBinary(c *Context, inst *ir.Instruction) error {
	arg0, arg1 := inst.Arg0(), inst.Arg1()

	result, err := c.obtainResult(inst.ID(), true, excludeIfRegister(c.allocationOf(arg1)))
	if err != nil {
		return err
	}
	if err := c.loadOperand(arg0, result.Reg()); err != nil {
		return err
	}

	mnemonic, err := floatBinaryMnemonic(inst.Opcode())
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

func floatBinaryMnemonic(op ir.Opcode) (string, error) {
	switch op {
	case ir.OpFloat32Add:
		return "addss", nil
	case ir.OpFloat64Add:
		return "addsd", nil
	case ir.OpFloat32Sub:
		return "subss", nil
	case ir.OpFloat64Sub:
		return "subsd", nil
	case ir.OpFloat32Mul:
		return "mulss", nil
	case ir.OpFloat64Mul:
		return "mulsd", nil
	case ir.OpFloat32Div:
		return "divss", nil
	case ir.OpFloat64Div:
		return "divsd", nil
	default:
		return "", kerr.New(kerr.InvalidState, "opcode %s is not a float binary operator", op)
	}
}

// translateFloatCompare lowers FloatEq/Greater/Lesser. Greater/Lesser
// reduce to a single comisX+setCC (seta/setb). An unordered (NaN)
// comparison sets ZF, PF and CF together, so Greater's seta reports false
// for it while Lesser's setb reports true. Eq special-cases the unordered
// result: ucomisX's ZF==1 covers both "equal" and "unordered", so sete
// alone would report NaN==NaN as true; instead setnp yields 1 only for an
// ordered result and cmovne then zeroes the result whenever the operands
// compared unequal (float_comparison.c).
func translateFloatCompare(c *Context, inst *ir.Instruction) error {
	arg0, arg1 := inst.Arg0(), inst.Arg1()
	f64 := c.isF64(arg0)

	result, err := c.obtainResult(inst.ID(), false, excludeIfRegister(c.allocationOf(arg1)))
	if err != nil {
		return err
	}

	lhs, err := c.Ledger.AcquireAnyXMM(excludeIfRegister(c.allocationOf(arg1)))
	if err != nil {
		return err
	}
	if err := c.loadOperand(arg0, lhs.Reg()); err != nil {
		return err
	}
	rhs, err := c.operand(arg1, asmfmt.W64)
	if err != nil {
		return err
	}

	switch inst.Opcode() {
	case ir.OpFloatEq:
		tmp, err := c.Ledger.AcquireAnyGeneralPurpose(excludeReg(result.Reg()))
		if err != nil {
			return err
		}
		c.Emit.Instr("xor", asmfmt.Reg(result.Reg(), asmfmt.W64), asmfmt.Reg(result.Reg(), asmfmt.W64))
		c.Emit.Instr("xor", asmfmt.Reg(tmp.Reg(), asmfmt.W64), asmfmt.Reg(tmp.Reg(), asmfmt.W64))
		c.Emit.Instr(ucomiMnemonic(f64), asmfmt.Reg(lhs.Reg(), asmfmt.W64), rhs)
		c.Emit.Instr("setnp", asmfmt.Reg(byteView(result.Reg()), asmfmt.W8))
		c.Emit.Instr("cmovne", asmfmt.Reg(result.Reg(), asmfmt.W64), asmfmt.Reg(tmp.Reg(), asmfmt.W64))
		if err := c.Ledger.Release(tmp); err != nil {
			return err
		}
	case ir.OpFloatGreater:
		c.Emit.Instr("xor", asmfmt.Reg(result.Reg(), asmfmt.W64), asmfmt.Reg(result.Reg(), asmfmt.W64))
		c.Emit.Instr(comiMnemonic(f64), asmfmt.Reg(lhs.Reg(), asmfmt.W64), rhs)
		c.Emit.Instr("seta", asmfmt.Reg(byteView(result.Reg()), asmfmt.W8))
	case ir.OpFloatLesser:
		c.Emit.Instr("xor", asmfmt.Reg(result.Reg(), asmfmt.W64), asmfmt.Reg(result.Reg(), asmfmt.W64))
		c.Emit.Instr(comiMnemonic(f64), asmfmt.Reg(lhs.Reg(), asmfmt.W64), rhs)
		c.Emit.Instr("setb", asmfmt.Reg(byteView(result.Reg()), asmfmt.W8))
	default:
		return kerr.New(kerr.InvalidState, "opcode %s is not a float comparison", inst.Opcode())
	}

	if err := c.Ledger.Release(lhs); err != nil {
		return err
	}
	return c.storeResult(inst.ID(), result)
}

func ucomiMnemonic(f64 bool) string {
	if f64 {
		return "ucomisd"
	}
	return "ucomiss"
}

func comiMnemonic(f64 bool) string {
	if f64 {
		return "comisd"
	}
	return "comiss"
}

// translateFloatNeg lowers Float32/64Neg: the sign bit is flipped by
// xor-ing against a memory-resident all-but-sign-bit-clear mask, since SSE
// has no dedicated negate instruction (float_unary_op.c).
func translateFloatNeg(c *Context, inst *ir.Instruction) error {
	arg0 := inst.Arg0()

	result, err := c.obtainResult(inst.ID(), true, nil)
	if err != nil {
		return err
	}
	if err := c.loadOperand(arg0, result.Reg()); err != nil {
		return err
	}

	switch inst.Opcode() {
	case ir.OpFloat32Neg:
		c.Emit.Instr("xorps", asmfmt.Reg(result.Reg(), asmfmt.W64), asmfmt.MemRIP(f32SignMask, asmfmt.W64))
	case ir.OpFloat64Neg:
		c.Emit.Instr("xorpd", asmfmt.Reg(result.Reg(), asmfmt.W64), asmfmt.MemRIP(f64SignMask, asmfmt.W64))
	default:
		return kerr.New(kerr.InvalidState, "opcode %s is not a float negation", inst.Opcode())
	}

	return c.storeResult(inst.ID(), result)
}
