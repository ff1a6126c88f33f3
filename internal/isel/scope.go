package isel

import (
	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/reg"
)

// translatePushScope lowers PushScope: a 16-byte node is pushed below rsp
// holding the previous dynamic-scope pointer, the frame's dynamic-scope
// cell is updated to point at it, and the new rsp (the node's address) is
// the instruction's result — the handle a matching PopScope restores from
// (scope.c's push_scope).
func translatePushScope(c *Context, inst *ir.Instruction) error {
	tmp, err := c.Ledger.AcquireAnyGeneralPurpose(nil)
	if err != nil {
		return err
	}

	dynScope := asmfmt.Mem(reg.RBP, c.Frame.DynamicScopeOffset(), asmfmt.W64)
	c.Emit.Instr("sub", asmfmt.Reg(reg.RSP, asmfmt.W64), asmfmt.Imm(16))
	c.Emit.Instr("mov", asmfmt.Reg(tmp.Reg(), asmfmt.W64), dynScope)
	c.Emit.Instr("mov", asmfmt.Mem(reg.RSP, 0, asmfmt.W64), asmfmt.Reg(tmp.Reg(), asmfmt.W64))
	if err := c.Ledger.Release(tmp); err != nil {
		return err
	}
	c.Emit.Instr("mov", dynScope, asmfmt.Reg(reg.RSP, asmfmt.W64))

	result, err := c.obtainResult(inst.ID(), false, nil)
	if err != nil {
		return err
	}
	c.Emit.Instr("mov", asmfmt.Reg(result.Reg(), asmfmt.W64), asmfmt.Reg(reg.RSP, asmfmt.W64))
	return c.storeResult(inst.ID(), result)
}

// translatePopScope lowers PopScope: restores rsp to the scope handle
// (arg0, the value PushScope produced), restores the dynamic-scope cell
// from the node's saved previous pointer, and pops the 16-byte node —
// skipped entirely when the dynamic-scope cell is already clear, matching
// the live kefir behaviour (a historical alignment-register comment in
// scope.c's pop_scope is dead code there too and is not reproduced here;
// see the Open Question decision in DESIGN.md).
func translatePopScope(c *Context, inst *ir.Instruction) error {
	handle := inst.Arg0()
	dynScope := asmfmt.Mem(reg.RBP, c.Frame.DynamicScopeOffset(), asmfmt.W64)

	c.Emit.Instr("cmp", dynScope, asmfmt.Imm(0))
	doneLabel := c.localLabel("pop_scope_done")
	c.Emit.Instr("je", asmfmt.LabelRef(string(doneLabel), 0))

	scopeReg, err := c.Ledger.AcquireAnyGeneralPurpose(nil)
	if err != nil {
		return err
	}
	if err := c.loadOperand(handle, scopeReg.Reg()); err != nil {
		return err
	}
	c.Emit.Instr("mov", asmfmt.Reg(reg.RSP, asmfmt.W64), asmfmt.Reg(scopeReg.Reg(), asmfmt.W64))

	tmp, err := c.Ledger.AcquireAnyGeneralPurpose(excludeReg(scopeReg.Reg()))
	if err != nil {
		return err
	}
	c.Emit.Instr("mov", asmfmt.Reg(tmp.Reg(), asmfmt.W64), asmfmt.Mem(reg.RSP, 0, asmfmt.W64))
	c.Emit.Instr("mov", dynScope, asmfmt.Reg(tmp.Reg(), asmfmt.W64))
	if err := c.Ledger.Release(tmp); err != nil {
		return err
	}
	if err := c.Ledger.Release(scopeReg); err != nil {
		return err
	}

	c.Emit.Instr("add", asmfmt.Reg(reg.RSP, asmfmt.W64), asmfmt.Imm(16))
	c.Emit.Label(doneLabel)
	return nil
}
