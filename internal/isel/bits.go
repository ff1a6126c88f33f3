package isel

import (
	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/kerr"
	"github.com/kefirc/amd64cg/internal/reg"
)

// translateBitsExtract lowers BitsExtractSigned/Unsigned: the field is
// first shifted up so its high bit sits at bit 63, then shifted back down
// (arithmetically for the signed variant, logically for the unsigned one)
// so the sign, if any, propagates through the vacated high bits
// (extract_bits.c).
func translateBitsExtract(c *Context, inst *ir.Instruction) error {
	base := inst.Arg0()
	offset, length := inst.BitfieldOffsetLength()

	result, err := c.obtainResult(inst.ID(), false, nil)
	if err != nil {
		return err
	}
	if err := c.loadOperand(base, result.Reg()); err != nil {
		return err
	}

	r64 := asmfmt.Reg(result.Reg(), asmfmt.W64)
	c.Emit.Instr("shl", r64, asmfmt.Imm(int64(64-(length+offset))))

	switch inst.Opcode() {
	case ir.OpBitsExtractSigned:
		c.Emit.Instr("sar", r64, asmfmt.Imm(int64(64-length)))
	case ir.OpBitsExtractUnsigned:
		c.Emit.Instr("shr", r64, asmfmt.Imm(int64(64-length)))
	default:
		return kerr.New(kerr.InvalidState, "opcode %s is not a bitfield extract", inst.Opcode())
	}

	return c.storeResult(inst.ID(), result)
}

// translateBitsInsert lowers BitsInsert: the base field is masked clear of
// the target bits with a movabs-materialized 64-bit mask (the target span
// doesn't necessarily fit an imm32), the incoming value is positioned via
// the same shift-up/shift-down trick as extract, and the two halves are
// or-ed together (insert_bits.c).
func translateBitsInsert(c *Context, inst *ir.Instruction) error {
	base, value := inst.Arg0(), inst.Arg1()
	offset, length := inst.BitfieldOffsetLength()

	result, err := c.obtainResult(inst.ID(), false, excludeIfRegister(c.allocationOf(base)))
	if err != nil {
		return err
	}
	if err := c.loadOperand(value, result.Reg()); err != nil {
		return err
	}

	field, err := c.Ledger.AcquireAnyGeneralPurpose(excludeReg(result.Reg()))
	if err != nil {
		return err
	}
	if err := c.loadOperand(base, field.Reg()); err != nil {
		return err
	}

	mask, err := c.Ledger.AcquireAnyGeneralPurpose(func(r reg.Reg) bool {
		return r != result.Reg() && r != field.Reg()
	})
	if err != nil {
		return err
	}

	clearMask := ^(((uint64(1) << length) - 1) << offset)
	c.Emit.Instr("movabs", asmfmt.Reg(mask.Reg(), asmfmt.W64), asmfmt.Imm(int64(clearMask)))
	c.Emit.Instr("and", asmfmt.Reg(field.Reg(), asmfmt.W64), asmfmt.Reg(mask.Reg(), asmfmt.W64))

	r64 := asmfmt.Reg(result.Reg(), asmfmt.W64)
	c.Emit.Instr("shl", r64, asmfmt.Imm(int64(64-length)))
	c.Emit.Instr("shr", r64, asmfmt.Imm(int64(64-(length+offset))))
	c.Emit.Instr("or", r64, asmfmt.Reg(field.Reg(), asmfmt.W64))

	if err := c.Ledger.Release(mask); err != nil {
		return err
	}
	if err := c.Ledger.Release(field); err != nil {
		return err
	}
	return c.storeResult(inst.ID(), result)
}
