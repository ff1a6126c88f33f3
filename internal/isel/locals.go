package isel

import (
	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/kerr"
	"github.com/kefirc/amd64cg/internal/reg"
)

// translateGetLocal and translateGetGlobal lower GetLocal/GetGlobal: both
// materialise an address into the result register with a single lea, the
// only difference being whether the addend is an rbp-relative offset or
// an rip-relative symbol (data_access.c switches on the opcode around an
// otherwise identical lea+store tail).
func translateGetLocal(c *Context, inst *ir.Instruction) error {
	result, err := c.obtainResult(inst.ID(), false, nil)
	if err != nil {
		return err
	}
	c.Emit.Instr("lea", asmfmt.Reg(result.Reg(), asmfmt.W64), asmfmt.Mem(reg.RBP, c.Frame.LocalOffset(inst.Imm()), asmfmt.W64))
	return c.storeResult(inst.ID(), result)
}

func translateGetGlobal(c *Context, inst *ir.Instruction) error {
	result, err := c.obtainResult(inst.ID(), false, nil)
	if err != nil {
		return err
	}
	if inst.Symbol() == "" {
		return kerr.New(kerr.InvalidState, "GetGlobal instruction %d has no symbol", inst.ID())
	}
	c.Emit.Instr("lea", asmfmt.Reg(result.Reg(), asmfmt.W64), asmfmt.MemRIP(inst.Symbol(), asmfmt.W64))
	return c.storeResult(inst.ID(), result)
}

// translateGetArgument lowers GetArgument: the parameter's precomputed
// allocation must be a spill-area slot carrying its ABI eightbyte
// classification (get_argument.c requires exactly this — a register
// allocation here would mean the allocator decided to keep the argument
// live in a register directly, in which case the ABI's own parameter
// preamble, not this instruction, is what materialises it). Each
// eightbyte is written from its assigned integer or SSE argument register
// into the next spill slot; a register passed in an SSE register targets
// the low 64 bits of a GPR-width memory slot via movq, mirroring
// pextrq against offset 0.
func translateGetArgument(c *Context, inst *ir.Instruction) error {
	a := c.allocationOf(inst.ID())
	if a.Kind != ir.AllocSpillSlot || !a.Param.Valid {
		return kerr.New(kerr.InvalidState, "GetArgument instruction %d is not bound to a parameter spill allocation", inst.ID())
	}

	paramIndex := int(inst.Imm())
	fnABI, err := c.abiOf(c.Func.Signature)
	if err != nil {
		return err
	}
	if paramIndex < 0 || paramIndex >= len(fnABI.Params) {
		return kerr.New(kerr.InvalidState, "GetArgument parameter index %d out of range", paramIndex)
	}
	placement := fnABI.Params[paramIndex]

	intI, sseI := 0, 0
	for i, class := range a.Param.Classes {
		offset := c.Frame.SpillSlotOffset(a.Index + i)
		switch class {
		case ir.EightbyteInteger:
			c.Emit.Instr("mov", asmfmt.Mem(reg.RBP, offset, asmfmt.W64), asmfmt.Reg(placement.IntRegs[intI], asmfmt.W64))
			intI++
		case ir.EightbyteSSE:
			c.Emit.Instr("movq", asmfmt.Mem(reg.RBP, offset, asmfmt.W64), asmfmt.Reg(placement.SSERegs[sseI], asmfmt.W64))
			sseI++
		case ir.EightbyteNone:
			// Intentionally left blank: padding eightbyte, nothing to store.
		default:
			return kerr.New(kerr.NotSupported, "eightbyte class %v is not supported for register arguments", class)
		}
	}
	return nil
}
