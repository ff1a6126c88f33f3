package isel

import (
	"github.com/kefirc/amd64cg/internal/abi"
	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/kerr"
	"github.com/kefirc/amd64cg/internal/storage"
)

// mapRegisters builds the batch of phi-reconciliation moves a transfer of
// control from source to target must perform: one move per phi live in
// target whose value differs depending on the edge taken, destination
// first since that's what storage.Transform requires unique per batch
// (jump.c's map_registers, reimplemented over the general-purpose
// storage.Transform planner rather than a bespoke hashtree — the two do
// exactly the same job: plan simultaneous location-to-location moves and
// break any cycles with a stack temporary).
func mapRegisters(c *Context, source, target ir.BlockID) (*storage.Transform, error) {
	return storage.MapRegisters(c.Func, c.Alloc, c.Frame, source, target)
}

// translateJump lowers Jump: reconcile any phi values the target block
// expects, then jump unless the target is the immediately following block
// in layout order.
func translateJump(c *Context, inst *ir.Instruction) error {
	_, targets := inst.BranchData()
	target := targets[0]

	tr, err := mapRegisters(c, inst.Block(), target)
	if err != nil {
		return err
	}
	if err := tr.Perform(c.Emit, c.Ledger); err != nil {
		return err
	}

	if !c.Func.Analysis.IsFallthrough(inst.Block(), target) {
		c.Emit.Instr("jmp", asmfmt.LabelRef(string(c.blockLabel(target)), 0))
	}
	return nil
}

// translateBranch lowers Branch: test the condition, then reconcile phis
// and jump for whichever successor is taken. When the alternative
// successor has its own phi reconciliation to perform, it's given a
// separate label rather than folded into the conditional jump itself,
// since the fallthrough path's moves must run before the alternative's
// moves do (jump.c's has_mapped_registers / separate_alternative_jmp).
func translateBranch(c *Context, inst *ir.Instruction) error {
	cond, targets := inst.BranchData()
	target, alternative := targets[0], targets[1]

	condReg, err := c.Ledger.AcquireAnyGeneralPurpose(nil)
	if err != nil {
		return err
	}
	if err := c.loadOperand(cond, condReg.Reg()); err != nil {
		return err
	}
	c.Emit.Instr("test", asmfmt.Reg(condReg.Reg(), asmfmt.W64), asmfmt.Reg(condReg.Reg(), asmfmt.W64))

	altTransform, err := mapRegisters(c, inst.Block(), alternative)
	if err != nil {
		return err
	}
	separateAlternative := altTransform.OperationCount() > 0

	var altLabel asmfmt.Label
	if separateAlternative {
		altLabel = c.localLabel("branch_alt")
		c.Emit.Instr("jz", asmfmt.LabelRef(string(altLabel), 0))
		if err := c.Ledger.Release(condReg); err != nil {
			return err
		}
	} else {
		if err := c.Ledger.Release(condReg); err != nil {
			return err
		}
		c.Emit.Instr("jz", asmfmt.LabelRef(string(c.blockLabel(alternative)), 0))
	}

	tr, err := mapRegisters(c, inst.Block(), target)
	if err != nil {
		return err
	}
	if err := tr.Perform(c.Emit, c.Ledger); err != nil {
		return err
	}
	if separateAlternative || !c.Func.Analysis.IsFallthrough(inst.Block(), target) {
		c.Emit.Instr("jmp", asmfmt.LabelRef(string(c.blockLabel(target)), 0))
	}

	if separateAlternative {
		c.Emit.Label(altLabel)
		if err := altTransform.Perform(c.Emit, c.Ledger); err != nil {
			return err
		}
		if !c.Func.Analysis.IsFallthrough(inst.Block(), alternative) {
			c.Emit.Instr("jmp", asmfmt.LabelRef(string(c.blockLabel(alternative)), 0))
		}
	}
	return nil
}

// translateIJump lowers IJump: an indirect jump to a computed address,
// with no phi reconciliation since an indirect jump's destination block
// is unknown to this translation unit (ijump.c).
func translateIJump(c *Context, inst *ir.Instruction) error {
	target := inst.Arg0()
	loc, err := c.locationOf(target)
	if err != nil {
		return err
	}
	switch loc.Kind {
	case storage.LocRegister:
		c.Emit.Instr("jmp", asmfmt.Reg(loc.Reg, asmfmt.W64))
	case storage.LocMemory:
		c.Emit.Instr("jmp", asmfmt.Mem(loc.Base, loc.Offset, asmfmt.W64))
	default:
		return kerr.New(kerr.InvalidState, "IJump target has no addressable location")
	}
	return nil
}

// translateReturn lowers Return: place the returned value (if any) per
// the function's ABI return classification, then hand off to the shared
// epilogue rather than re-emitting the callee-saved restore sequence at
// every return site (return.c does the latter; internal/codegen's single
// epilogue per function is the Open Question #4 decision recorded in
// DESIGN.md).
func translateReturn(c *Context, inst *ir.Instruction) error {
	value := inst.Arg0()
	fnABI, err := c.abiOf(c.Func.Signature)
	if err != nil {
		return err
	}

	if value.Valid() {
		loc, err := c.locationOf(value)
		if err != nil {
			return err
		}
		if err := abi.LowerReturn(c.Emit, c.Frame, fnABI.Return, loc); err != nil {
			return err
		}
	}

	c.Emit.Instr("jmp", asmfmt.LabelRef(string(c.epilogueLabel()), 0))
	return nil
}
