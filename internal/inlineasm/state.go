package inlineasm

import (
	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/kerr"
	"github.com/kefirc/amd64cg/internal/reg"
	"github.com/kefirc/amd64cg/internal/storage"
)

// MatchRegisterToSize returns the operand width prepared_state.c's
// match_register_to_size resolves a sub-register variant for. Our
// register identity is already width-independent (reg.Reg is always the
// 64-bit enclosing register; asmfmt.Width picks the rendered size), so
// this reduces to validating the byte size rather than picking a distinct
// register constant.
func MatchRegisterToSize(size uint32) (asmfmt.Width, error) {
	switch {
	case size <= 1:
		return asmfmt.W8, nil
	case size <= 2:
		return asmfmt.W16, nil
	case size <= 4:
		return asmfmt.W32, nil
	case size <= 8:
		return asmfmt.W64, nil
	default:
		return asmfmt.WNone, kerr.New(kerr.InvalidRequest, "unable to match a register variant wider than 8 bytes")
	}
}

func align(v, a int64) int64 { return (v + a - 1) &^ (a - 1) }

// preserveDirtyRegisters pushes every occupied clobbered register (XMMs
// via sub rsp,8; movq [rsp],xmm), then pushfq if the flags are dirty,
// returning the cumulative byte count (prepare_state.c's
// preserve_dirty_registers).
func preserveDirtyRegisters(c *Context) int64 {
	var size int64
	for _, r := range reg.AllocatableGP {
		if !c.dirtyRegisters[r] || !c.Ledger.IsOccupied(r) {
			continue
		}
		c.Emit.Instr("push", asmfmt.Reg(r, asmfmt.W64))
		size += qword
	}
	for _, r := range reg.AllocatableXMM {
		if !c.dirtyRegisters[r] || !c.Ledger.IsOccupied(r) {
			continue
		}
		c.Emit.Instr("sub", asmfmt.Reg(reg.RSP, asmfmt.W64), asmfmt.Imm(qword))
		c.Emit.Instr("movq", asmfmt.Mem(reg.RSP, 0, asmfmt.W64), asmfmt.Reg(r, asmfmt.W64))
		size += qword
	}
	if c.dirtyCC {
		c.Emit.Instr("pushfq")
		size += qword
	}
	return size
}

// restoreDirtyRegisters is preserveDirtyRegisters's mirror image: popfq
// first, then pop every preserved register in reverse order.
func restoreDirtyRegisters(c *Context) {
	if c.dirtyCC {
		c.Emit.Instr("popfq")
	}
	for i := len(reg.AllocatableXMM) - 1; i >= 0; i-- {
		r := reg.AllocatableXMM[i]
		if !c.dirtyRegisters[r] || !c.Ledger.IsOccupied(r) {
			continue
		}
		c.Emit.Instr("movq", asmfmt.Reg(r, asmfmt.W64), asmfmt.Mem(reg.RSP, 0, asmfmt.W64))
		c.Emit.Instr("add", asmfmt.Reg(reg.RSP, asmfmt.W64), asmfmt.Imm(qword))
	}
	for i := len(reg.AllocatableGP) - 1; i >= 0; i-- {
		r := reg.AllocatableGP[i]
		if !c.dirtyRegisters[r] || !c.Ledger.IsOccupied(r) {
			continue
		}
		c.Emit.Instr("pop", asmfmt.Reg(r, asmfmt.W64))
	}
}

// registerOperand resolves entry's own allocation (register or
// register-indirect address) to an asmfmt.Operand of width w.
func (entry *ParameterAllocation) registerOperand(w asmfmt.Width) asmfmt.Operand {
	return asmfmt.Reg(entry.Reg, w)
}

func (c *Context) parameterLocation(entry *ParameterAllocation) storage.Location {
	switch entry.Allocation {
	case AllocationRegister, AllocationRegisterIndirect:
		return storage.Register(entry.Reg)
	default:
		return storage.Memory(reg.RSP, c.layout.inputParameterOffset+int64(entry.StackIndex)*qword)
	}
}

// preserveOutputAddresses stores each store/load-store/read-store
// parameter's write-through pointer into its reserved output-address
// slot, for parameters whose own allocation isn't already the pointer
// (AllocationRegisterIndirect parameters double as their own pointer and
// need nothing preserved).
func preserveOutputAddresses(c *Context) error {
	tr := storage.NewTransform()
	for i := range c.Fragment.Parameters {
		param := &c.Fragment.Parameters[i]
		entry := &c.parameterAllocation[i]
		if !entry.OutputPreserved {
			continue
		}
		ptrLoc, err := storage.FromAllocation(c.Alloc.Lookup(param.Value), c.Frame)
		if err != nil {
			return err
		}
		target := storage.Memory(reg.RSP, c.layout.outputParameterOffset+int64(entry.OutputStackIndex)*qword)
		if err := tr.Insert(target, ptrLoc); err != nil {
			return err
		}
	}
	if err := tr.Perform(c.Emit, c.Ledger); err != nil {
		return err
	}
	return nil
}

// loadInputs loads every parameter's source SSA value into its allocated
// location via one batch storage transform. Immediate parameters are
// skipped, since they carry no runtime value; store-only parameters are
// skipped too unless register-indirect, in which case their register is
// loaded with the lvalue pointer the template writes through.
func loadInputs(c *Context) error {
	tr := storage.NewTransform()
	for i := range c.Fragment.Parameters {
		param := &c.Fragment.Parameters[i]
		entry := &c.parameterAllocation[i]
		if param.Constraint == ir.ConstraintImmediate {
			continue
		}
		if param.IO == ir.ParamStore && entry.Allocation != AllocationRegisterIndirect {
			continue
		}

		var source ir.Value
		switch param.IO {
		case ir.ParamRead, ir.ParamReadStore:
			source = param.ReadValue
		default:
			source = param.Value
		}
		srcLoc, err := storage.FromAllocation(c.Alloc.Lookup(source), c.Frame)
		if err != nil {
			return err
		}
		if err := tr.Insert(c.parameterLocation(entry), srcLoc); err != nil {
			return err
		}
	}
	return tr.Perform(c.Emit, c.Ledger)
}

// readInputs dereferences, once loadInputs has placed each pointer, the
// parameters whose location still holds an address rather than the value:
// a scalar in a plain register or stack slot that is not a direct value
// is replaced by its pointee (width-projected for a register, one extra
// load-through-pointer hop for a stack slot), and an aggregate in a plain
// register is loaded from its pointer at its size (read size when direct),
// capped at 8 bytes. Register-indirect parameters keep the address
// (prepare_state.c's read_inputs).
func readInputs(c *Context) error {
	for i := range c.Fragment.Parameters {
		param := &c.Fragment.Parameters[i]
		entry := &c.parameterAllocation[i]
		if param.IO == ir.ParamStore || param.Constraint == ir.ConstraintImmediate {
			continue
		}

		switch entry.Kind {
		case ParameterScalar:
			switch entry.Allocation {
			case AllocationRegister:
				if !entry.DirectValue {
					w, err := MatchRegisterToSize(entry.Size)
					if err != nil {
						return err
					}
					c.Emit.Instr("mov", entry.registerOperand(w), asmfmt.Mem(entry.Reg, 0, w))
				}
			case AllocationRegisterIndirect:
				// Value stays behind the pointer; the template references
				// it with a [reg] operand instead.
			case AllocationStack:
				if !entry.DirectValue {
					base := c.stackInput.baseRegister
					offset := c.layout.inputParameterOffset + int64(entry.StackIndex)*qword
					c.Emit.Instr("mov", asmfmt.Reg(base, asmfmt.W64), asmfmt.Mem(reg.RSP, offset, asmfmt.W64))
					c.Emit.Instr("mov", asmfmt.Reg(base, asmfmt.W64), asmfmt.Mem(base, 0, asmfmt.W64))
					c.Emit.Instr("mov", asmfmt.Mem(reg.RSP, offset, asmfmt.W64), asmfmt.Reg(base, asmfmt.W64))
				}
			}
		case ParameterAggregate:
			switch entry.Allocation {
			case AllocationRegister:
				size := entry.Size
				if entry.DirectValue {
					size = entry.ReadSize
				}
				if size > qword {
					size = qword
				}
				w, err := MatchRegisterToSize(size)
				if err != nil {
					return err
				}
				c.Emit.Instr("mov", entry.registerOperand(w), asmfmt.Mem(entry.Reg, 0, w))
			case AllocationRegisterIndirect:
				// Intentionally left blank: address stays in place.
			case AllocationStack:
				return kerr.New(kerr.InvalidState, "on-stack aggregate parameters of inline assembly are not supported")
			}
		}
	}
	return nil
}

// PrepareState runs spec.md §4.I step 3: preserve dirty registers and
// flags, compute the scratch-area layout, preserve output write-through
// pointers, load every input parameter into its allocated location, then
// dereference register-indirect inputs that need their pointee read
// eagerly.
func PrepareState(c *Context) error {
	preservedSize := preserveDirtyRegisters(c)

	outputSize := int64(c.stackOutput.count) * qword
	inputSize := int64(c.stackInput.count) * qword

	c.layout.totalSize = align(preservedSize+outputSize+inputSize, 2*qword)
	c.layout.inputParameterOffset = 0
	c.layout.outputParameterOffset = inputSize
	c.layout.preservedRegOffset = c.layout.totalSize - preservedSize
	c.layout.preservedRegSize = preservedSize

	if c.layout.preservedRegOffset > 0 {
		c.Emit.Instr("sub", asmfmt.Reg(reg.RSP, asmfmt.W64), asmfmt.Imm(c.layout.preservedRegOffset))
	}

	if err := preserveOutputAddresses(c); err != nil {
		return err
	}
	if err := loadInputs(c); err != nil {
		return err
	}
	if err := readInputs(c); err != nil {
		return err
	}

	if c.stackInput.initialized {
		c.Emit.Instr("mov", asmfmt.Reg(c.stackInput.baseRegister, asmfmt.W64), asmfmt.Reg(reg.RSP, asmfmt.W64))
	}
	return nil
}

// RestoreState undoes PrepareState's stack-pointer adjustment and restores
// every preserved register and the flags (spec.md §4.I step 6).
func RestoreState(c *Context) error {
	if c.layout.preservedRegOffset > 0 {
		c.Emit.Instr("add", asmfmt.Reg(reg.RSP, asmfmt.W64), asmfmt.Imm(c.layout.preservedRegOffset))
	}
	restoreDirtyRegisters(c)
	return nil
}
