package isel

import (
	"github.com/kefirc/amd64cg/internal/abi"
	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/kerr"
	"github.com/kefirc/amd64cg/internal/reg"
	"github.com/kefirc/amd64cg/internal/storage"
)

// translateVarArgStart lowers VarArgStart: arg0 is the va_list pointer
// (typically a preceding GetLocal's result, not this instruction's own
// result — VarArgStart produces no value), materialised per the current
// function's own classified fixed-argument counts (vararg.c).
func translateVarArgStart(c *Context, inst *ir.Instruction) error {
	fnABI, err := c.abiOf(c.Func.Signature)
	if err != nil {
		return err
	}
	argAlloc := c.allocationOf(inst.Arg0())
	return abi.LowerVarArgStart(c.Emit, c.Ledger, c.Frame, argAlloc, fnABI.IntRegsUsed, fnABI.SSERegsUsed, fnABI.StackArgsSize)
}

// translateVarArgCopy lowers VarArgCopy: a straight va_list struct copy,
// arg0 the source pointer and arg1 the target pointer (vararg.c's
// vararg_copy).
func translateVarArgCopy(c *Context, inst *ir.Instruction) error {
	source := c.allocationOf(inst.Arg0())
	target := c.allocationOf(inst.Arg1())
	return abi.LowerVarArgCopy(c.Emit, c.Ledger, c.Frame, source, target)
}

// translateVarArgGet lowers VarArgGet: dispatches on the fetched value's
// own type the way vararg_get.c's IR type visitor does — scalar
// (integer/SSE) types go through the runtime gp_offset/fp_offset bump
// helpers, MEMORY-classed aggregates read and bump overflow_arg_area
// directly. Register-classed aggregates are not supported (vararg_get.c
// itself only implements the MEMORY path; its register-aggregate case is
// commented-out dead code there too).
func translateVarArgGet(c *Context, inst *ir.Instruction) error {
	argAlloc := c.allocationOf(inst.Arg0())
	resultType := inst.Type()

	switch {
	case resultType.IsAggregate():
		resultAlloc := c.allocationOf(inst.ID())
		if err := abi.LowerVarArgGetMemoryAggregate(c.Emit, c.Ledger, c.Frame, argAlloc, resultAlloc, resultType.Size(), resultType.Align()); err != nil {
			return err
		}
		return nil

	case resultType.IsLongDouble():
		return kerr.New(kerr.NotSupported, "va_arg of long double is not supported")

	default:
		isFloat := resultType.IsFloat()
		if err := abi.LowerVarArgGetScalar(c.Emit, c.Ledger, c.Frame, argAlloc, isFloat); err != nil {
			return err
		}
		return storeVarArgScalarResult(c, inst.ID(), isFloat)
	}
}

// storeVarArgScalarResult copies the runtime helper's fixed return
// register (rax or xmm0) into v's actual allocation, mirroring
// storeCallResultToAllocation in tls.go — LowerVarArgGetScalar leaves the
// fetched value there without assuming where v's allocator placed it.
func storeVarArgScalarResult(c *Context, v ir.Value, isFloat bool) error {
	src := reg.RAX
	mnemonic := "mov"
	if isFloat {
		src = reg.XMM0
		mnemonic = "movq"
	}
	loc, err := c.locationOf(v)
	if err != nil {
		return err
	}
	switch loc.Kind {
	case storage.LocRegister:
		if loc.Reg != src {
			c.Emit.Instr(mnemonic, asmfmt.Reg(loc.Reg, asmfmt.W64), asmfmt.Reg(src, asmfmt.W64))
		}
	case storage.LocMemory:
		c.Emit.Instr(mnemonic, asmfmt.Mem(loc.Base, loc.Offset, asmfmt.W64), asmfmt.Reg(src, asmfmt.W64))
	default:
		return kerr.New(kerr.InvalidState, "va_arg result has no addressable location")
	}
	return nil
}
