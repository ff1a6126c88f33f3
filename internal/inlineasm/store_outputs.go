package inlineasm

import (
	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/kerr"
	"github.com/kefirc/amd64cg/internal/reg"
)

// scratchState tracks the one general-purpose register StoreOutputs
// borrows to dereference preserved output-address pointers, pushing it
// around the store sequence the first time it turns out to collide with
// a parameter's own allocated register (store_outputs.c's
// update_scratch_reg / pushed_scratch).
type scratchState struct {
	reg    reg.Reg
	pushed bool
}

func initialScratchReg(c *Context) reg.Reg {
	if len(c.availableRegisters) > 0 {
		return c.availableRegisters[0]
	}
	if c.stackInput.initialized {
		if c.stackInput.baseRegister == reg.RAX {
			return reg.RDX
		}
		return reg.RAX
	}
	return reg.RAX
}

// updateScratchReg swaps the scratch register out for a different one the
// instant it collides with entry's own allocated register — a store
// can't dereference through the very register it is about to overwrite —
// popping the old scratch register back if it had been pushed, then
// pushing the new one if it is occupied or clobbered.
func (c *Context) updateScratchReg(entry *ParameterAllocation, s *scratchState) {
	if s.reg != entry.Reg {
		return
	}
	if s.pushed {
		c.Emit.Instr("pop", asmfmt.Reg(s.reg, asmfmt.W64))
		s.pushed = false
	}
	if entry.Reg == reg.RAX {
		if c.stackInput.initialized && c.stackInput.baseRegister == reg.RCX {
			s.reg = reg.RDX
		} else {
			s.reg = reg.RCX
		}
	} else {
		if c.stackInput.initialized && c.stackInput.baseRegister == reg.RAX {
			s.reg = reg.RDX
		} else {
			s.reg = reg.RAX
		}
	}
	if c.Ledger.IsOccupied(s.reg) || c.dirtyRegisters[s.reg] {
		c.Emit.Instr("push", asmfmt.Reg(s.reg, asmfmt.W64))
		s.pushed = true
	}
}

func (c *Context) scratchAdjustedOutputOffset(entry *ParameterAllocation, s *scratchState) int64 {
	off := c.layout.outputParameterOffset + int64(entry.OutputStackIndex)*qword
	if s.pushed {
		off += qword
	}
	return off
}

// StoreOutputs writes every non-read parameter's computed value back
// through its preserved write-through pointer, mirroring PrepareState's
// input loading in reverse (spec.md §4.I step 5).
func StoreOutputs(c *Context) error {
	s := scratchState{reg: initialScratchReg(c)}

	for i := range c.Fragment.Parameters {
		param := &c.Fragment.Parameters[i]
		if param.IO == ir.ParamRead || param.IO == ir.ParamLoad || param.Constraint == ir.ConstraintImmediate {
			continue
		}
		entry := &c.parameterAllocation[i]
		if entry.RegisterAggregate {
			// Deferred to storeRegisterAggregateOutputs below: register
			// aggregates need their full width moved, not a scalar mov.
			continue
		}

		switch entry.Kind {
		case ParameterScalar:
			switch entry.Allocation {
			case AllocationRegister:
				c.updateScratchReg(entry, &s)
				w, err := MatchRegisterToSize(entry.Size)
				if err != nil {
					return err
				}
				off := c.scratchAdjustedOutputOffset(entry, &s)
				c.Emit.Instr("mov", asmfmt.Reg(s.reg, asmfmt.W64), asmfmt.Mem(reg.RSP, off, asmfmt.W64))
				c.Emit.Instr("mov", asmfmt.Mem(s.reg, 0, w), entry.registerOperand(w))
			case AllocationRegisterIndirect:
				if entry.DirectValue {
					return kerr.New(kerr.InvalidState, "unexpected inline assembly parameter properties")
				}
			case AllocationStack:
				inOff := c.layout.inputParameterOffset + int64(entry.StackIndex)*qword
				outOff := c.scratchAdjustedOutputOffset(entry, &s)
				if s.pushed {
					inOff += qword
				}
				c.Emit.Instr("mov", asmfmt.Reg(s.reg, asmfmt.W64), asmfmt.Mem(reg.RSP, outOff, asmfmt.W64))
				c.Emit.Instr("mov", asmfmt.Reg(c.stackInput.baseRegister, asmfmt.W64), asmfmt.Mem(reg.RSP, inOff, asmfmt.W64))
				c.Emit.Instr("mov", asmfmt.Mem(s.reg, 0, asmfmt.W64), asmfmt.Reg(c.stackInput.baseRegister, asmfmt.W64))
			}
		case ParameterAggregate:
			switch entry.Allocation {
			case AllocationRegister, AllocationRegisterIndirect:
				// Intentionally left blank here; handled below once the
				// pointer itself (not the aggregate value) is in play.
			case AllocationStack:
				return kerr.New(kerr.InvalidState, "on-stack aggregate parameters of inline assembly are not supported")
			}
		}
	}

	if err := storeRegisterAggregateOutputs(c, &s); err != nil {
		return err
	}
	if s.pushed {
		c.Emit.Instr("pop", asmfmt.Reg(s.reg, asmfmt.W64))
	}
	return nil
}

// storeRegisterAggregateOutputs writes back every output whose allocation
// itself held the aggregate value directly in a register (rather than its
// address), deferred to the end since it shares the one scratch register
// every other store path also borrows.
func storeRegisterAggregateOutputs(c *Context, s *scratchState) error {
	for i := range c.Fragment.Parameters {
		param := &c.Fragment.Parameters[i]
		entry := &c.parameterAllocation[i]
		if !entry.RegisterAggregate || param.IO == ir.ParamRead || param.IO == ir.ParamLoad ||
			param.Constraint == ir.ConstraintImmediate {
			continue
		}

		c.updateScratchReg(entry, s)
		off := c.scratchAdjustedOutputOffset(entry, s)
		c.Emit.Instr("mov", asmfmt.Reg(s.reg, asmfmt.W64), asmfmt.Mem(reg.RSP, off, asmfmt.W64))

		w, err := MatchRegisterToSize(entry.Size)
		if err != nil {
			return err
		}
		c.Emit.Instr("mov", asmfmt.Mem(s.reg, 0, w), entry.registerOperand(w))
	}
	return nil
}
