package isel

import (
	"github.com/kefirc/amd64cg/internal/abi"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/storage"
)

// translateInvoke lowers Invoke: caller-saved registers holding live
// values are saved around the call (invoke.c's calculate_stack_increment
// / save_registers / restore_registers, reusing the same helpers
// tls.go's call-based TLS models use — both need exactly the same
// "preserve everything the callee may clobber, except the call's own
// result register" sequence), the argument shuffle/call/return-value
// capture itself is delegated to abi.LowerCall.
func translateInvoke(c *Context, inst *ir.Instruction) error {
	_, sigID, args := inst.CallData()
	sig := c.Module.ResolveSignature(sigID)

	fnABI, err := c.abiOf(sig)
	if err != nil {
		return err
	}

	sources := make([]storage.Location, len(args))
	for i, a := range args {
		loc, err := c.locationOf(a)
		if err != nil {
			return err
		}
		sources[i] = loc
	}

	resultAlloc := c.allocationOf(inst.ID())
	saved, offset := saveCallerSavedRegisters(c, resultAlloc)

	var resultLoc *storage.Location
	if inst.ID().Valid() {
		loc, err := c.locationOf(inst.ID())
		if err != nil {
			return err
		}
		resultLoc = &loc
	}

	callArgs := abi.CallArgs{
		ABI:      fnABI,
		Sources:  sources,
		Symbol:   inst.Symbol(),
		Variadic: fnABI.Variadic,
	}
	if err := abi.LowerCall(c.Emit, c.Ledger, callArgs, resultLoc); err != nil {
		return err
	}

	restoreCallerSavedRegisters(c, saved, offset)
	return nil
}
