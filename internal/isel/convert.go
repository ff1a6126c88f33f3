package isel

import (
	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/ir"
)

// translateIntToFloat lowers IntToFloat: cvtsi2ss/sd reads a signed
// 64-bit integer operand directly, register or memory (float_conv.c).
func translateIntToFloat(c *Context, inst *ir.Instruction) error {
	arg0 := inst.Arg0()

	result, err := c.obtainResult(inst.ID(), true, nil)
	if err != nil {
		return err
	}

	src, err := c.operand(arg0, asmfmt.W64)
	if err != nil {
		return err
	}
	mnemonic := "cvtsi2ss"
	if c.isF64(inst.ID()) {
		mnemonic = "cvtsi2sd"
	}
	c.Emit.Instr(mnemonic, asmfmt.Reg(result.Reg(), asmfmt.W64), src)

	return c.storeResult(inst.ID(), result)
}

// translateFloatToInt lowers FloatToInt: cvttss/sd2si truncates toward
// zero, per C's float-to-integer conversion semantics (float_conv.c).
func translateFloatToInt(c *Context, inst *ir.Instruction) error {
	arg0 := inst.Arg0()

	result, err := c.obtainResult(inst.ID(), false, nil)
	if err != nil {
		return err
	}

	src, err := c.operand(arg0, asmfmt.W64)
	if err != nil {
		return err
	}
	mnemonic := "cvttss2si"
	if c.isF64(arg0) {
		mnemonic = "cvttsd2si"
	}
	c.Emit.Instr(mnemonic, asmfmt.Reg(result.Reg(), asmfmt.W64), src)

	return c.storeResult(inst.ID(), result)
}

// translateFloatToFloat lowers FloatToFloat: cvtss2sd widens, cvtsd2ss
// narrows, chosen by comparing arg0's and the result's own widths
// (float_conv.c).
func translateFloatToFloat(c *Context, inst *ir.Instruction) error {
	arg0 := inst.Arg0()

	result, err := c.obtainResult(inst.ID(), true, nil)
	if err != nil {
		return err
	}

	src, err := c.operand(arg0, asmfmt.W64)
	if err != nil {
		return err
	}
	mnemonic := "cvtss2sd"
	if c.isF64(arg0) {
		mnemonic = "cvtsd2ss"
	}
	c.Emit.Instr(mnemonic, asmfmt.Reg(result.Reg(), asmfmt.W64), src)

	return c.storeResult(inst.ID(), result)
}

// translateUIntToFloat lowers UIntToFloat: cvtsi2ss/sd treats its integer
// operand as signed, so an unsigned value with the high bit set is
// converted via a halve-then-double trick instead (float_conv.c): shift
// right by one bit, OR back in the low bit that fell out (to round rather
// than truncate it away), convert the halved value, then double the
// float result. Values without the high bit set take the direct path.
func translateUIntToFloat(c *Context, inst *ir.Instruction) error {
	arg0 := inst.Arg0()
	f64 := c.isF64(inst.ID())

	argReg, err := c.Ledger.AcquireAnyGeneralPurpose(nil)
	if err != nil {
		return err
	}
	if err := c.loadOperand(arg0, argReg.Reg()); err != nil {
		return err
	}

	result, err := c.obtainResult(inst.ID(), true, excludeIfRegister(ir.GPR(argReg.Reg())))
	if err != nil {
		return err
	}

	convMnemonic, addMnemonic := "cvtsi2ss", "addss"
	if f64 {
		convMnemonic, addMnemonic = "cvtsi2sd", "addsd"
	}

	c.Emit.Instr("pxor", asmfmt.Reg(result.Reg(), asmfmt.W64), asmfmt.Reg(result.Reg(), asmfmt.W64))
	c.Emit.Instr("test", asmfmt.Reg(argReg.Reg(), asmfmt.W64), asmfmt.Reg(argReg.Reg(), asmfmt.W64))

	signLabel := c.localLabel("uint2float_sign")
	doneLabel := c.localLabel("uint2float_done")

	c.Emit.Instr("js", asmfmt.LabelRef(string(signLabel), 0))
	c.Emit.Instr(convMnemonic, asmfmt.Reg(result.Reg(), asmfmt.W64), asmfmt.Reg(argReg.Reg(), asmfmt.W64))
	c.Emit.Instr("jmp", asmfmt.LabelRef(string(doneLabel), 0))

	c.Emit.Label(signLabel)
	tmp, err := c.Ledger.AcquireAnyGeneralPurpose(excludeReg(argReg.Reg()))
	if err != nil {
		return err
	}
	c.Emit.Instr("mov", asmfmt.Reg(tmp.Reg(), asmfmt.W64), asmfmt.Reg(argReg.Reg(), asmfmt.W64))
	c.Emit.Instr("and", asmfmt.Reg(argReg.Reg(), asmfmt.W64), asmfmt.Imm(1))
	c.Emit.Instr("shr", asmfmt.Reg(tmp.Reg(), asmfmt.W64), asmfmt.Imm(1))
	c.Emit.Instr("or", asmfmt.Reg(tmp.Reg(), asmfmt.W64), asmfmt.Reg(argReg.Reg(), asmfmt.W64))
	c.Emit.Instr(convMnemonic, asmfmt.Reg(result.Reg(), asmfmt.W64), asmfmt.Reg(tmp.Reg(), asmfmt.W64))
	c.Emit.Instr(addMnemonic, asmfmt.Reg(result.Reg(), asmfmt.W64), asmfmt.Reg(result.Reg(), asmfmt.W64))
	if err := c.Ledger.Release(tmp); err != nil {
		return err
	}

	c.Emit.Label(doneLabel)

	if err := c.Ledger.Release(argReg); err != nil {
		return err
	}
	return c.storeResult(inst.ID(), result)
}
