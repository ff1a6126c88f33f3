package inlineasm

import (
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/kerr"
	"github.com/kefirc/amd64cg/internal/reg"
)

// qword is the System V AMD64 stack slot unit every preserved register,
// input parameter, and output-address slot occupies.
const qword = 8

func evaluateParameterType(t ir.Type) (ParameterKind, uint32) {
	if t.IsAggregate() || t.IsLongDouble() {
		return ParameterAggregate, t.Size()
	}
	return ParameterScalar, t.Size()
}

// initAvailableRegisters seeds the priority queue: unoccupied
// general-purpose registers first (in ABI caller-then-callee-preserved
// order), then occupied ones — so allocation prefers a register nothing
// needs saved and restored for, falling back to stealing an occupied one
// only once the free pool is exhausted (allocate_parameters.c's
// init_available_regs, two-pass for the same reason).
func initAvailableRegisters(c *Context) {
	for _, r := range reg.AllocatableGP {
		if c.dirtyRegisters[r] {
			continue
		}
		if !c.Ledger.IsOccupied(r) {
			c.availableRegisters = append(c.availableRegisters, r)
		}
	}
	for _, r := range reg.AllocatableGP {
		if c.dirtyRegisters[r] {
			continue
		}
		if c.Ledger.IsOccupied(r) {
			c.availableRegisters = append(c.availableRegisters, r)
		}
	}
}

func (c *Context) obtainAvailableRegister() (reg.Reg, error) {
	if len(c.availableRegisters) == 0 {
		return reg.Invalid, kerr.New(kerr.InvalidRequest, "unable to satisfy inline assembly register constraints")
	}
	r := c.availableRegisters[0]
	c.availableRegisters = c.availableRegisters[1:]
	c.dirtyRegisters[r] = true
	return r, nil
}

func (c *Context) allocateRegisterParameter(entry *ParameterAllocation, kind ParameterKind) error {
	r, err := c.obtainAvailableRegister()
	if err != nil {
		return err
	}
	entry.Allocation = AllocationRegister
	entry.Reg = r
	entry.Kind = kind
	if kind == ParameterAggregate {
		entry.RegisterAggregate = true
	}
	return nil
}

func (c *Context) allocateMemoryParameter(entry *ParameterAllocation, param *ir.AsmParam, kind ParameterKind) error {
	if kind == ParameterAggregate || param.IO != ir.ParamRead {
		r, err := c.obtainAvailableRegister()
		if err != nil {
			return err
		}
		entry.Allocation = AllocationRegisterIndirect
		entry.Reg = r
		entry.Kind = kind
		return nil
	}
	if !c.stackInput.initialized {
		r, err := c.obtainAvailableRegister()
		if err != nil {
			return err
		}
		c.stackInput.baseRegister = r
		c.stackInput.initialized = true
	}
	entry.Allocation = AllocationStack
	entry.Kind = kind
	entry.StackIndex = c.stackInput.count
	c.stackInput.count++
	return nil
}

// AllocateParameters walks the fragment's parameter list in declaration
// order, classifying each by (type, size) and constraint, and assigns it
// a register, register-indirect, or stack-slot allocation (spec.md §4.I
// step 2, allocate_parameters.c).
func AllocateParameters(c *Context) error {
	initAvailableRegisters(c)

	c.parameterAllocation = make([]ParameterAllocation, len(c.Fragment.Parameters))
	for i := range c.Fragment.Parameters {
		param := &c.Fragment.Parameters[i]
		entry := &c.parameterAllocation[i]

		var readKind ParameterKind
		var readSize uint32
		directValue := false

		paramType := c.Func.ValueType(param.Value)
		kind, size := evaluateParameterType(paramType)
		immediate := param.Constraint == ir.ConstraintImmediate

		if !immediate {
			switch param.IO {
			case ir.ParamReadStore:
				readType := c.Func.ValueType(param.ReadValue)
				readKind, readSize = evaluateParameterType(readType)
				directValue = true
			case ir.ParamRead:
				readKind, readSize = kind, size
				directValue = true
			}
		}

		if !immediate {
			switch param.Constraint {
			case ir.ConstraintRegister:
				if kind == ParameterAggregate && size > qword {
					return kerr.New(kerr.InvalidRequest, "inline assembly register constraint cannot hold an aggregate larger than a qword")
				}
				if err := c.allocateRegisterParameter(entry, kind); err != nil {
					return err
				}
			case ir.ConstraintRegisterMemory:
				if (kind == ParameterScalar || size <= qword) && len(c.availableRegisters) > 1 {
					if err := c.allocateRegisterParameter(entry, kind); err != nil {
						return err
					}
				} else if err := c.allocateMemoryParameter(entry, param, kind); err != nil {
					return err
				}
			case ir.ConstraintMemory:
				if err := c.allocateMemoryParameter(entry, param, kind); err != nil {
					return err
				}
			default:
				return kerr.New(kerr.InvalidRequest, "unexpected inline assembly parameter constraint")
			}
		}

		if (param.IO == ir.ParamStore || param.IO == ir.ParamLoadStore || param.IO == ir.ParamReadStore) &&
			entry.Allocation != AllocationRegisterIndirect {
			entry.OutputPreserved = true
			entry.OutputStackIndex = c.stackOutput.count
			c.stackOutput.count++
		}

		entry.Size = size
		entry.DirectValue = directValue
		if param.IO == ir.ParamReadStore || param.IO == ir.ParamRead {
			entry.ReadKind = readKind
			entry.ReadSize = readSize
		}
	}
	return nil
}
