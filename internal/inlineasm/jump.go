package inlineasm

import (
	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/isel"
	"github.com/kefirc/amd64cg/internal/storage"
)

// JumpTrampolines emits one trampoline per jump target the fragment
// declares, whether or not the template references it via %l: store
// outputs, restore state, reconcile phis for that specific edge,
// then jump to the target block (spec.md §4.I step 7, jump.c's
// kefir_codegen_opt_sysv_amd64_inline_assembly_jump_trampolines).
func JumpTrampolines(c *Context) error {
	for name, target := range c.Fragment.JumpTargets {
		c.Emit.Label(c.trampolineLabel(name))
		if err := StoreOutputs(c); err != nil {
			return err
		}
		if err := RestoreState(c); err != nil {
			return err
		}

		tr, err := storage.MapRegisters(c.Func, c.Alloc, c.Frame, c.Block, target)
		if err != nil {
			return err
		}
		if err := tr.Perform(c.Emit, c.Ledger); err != nil {
			return err
		}

		c.Emit.Instr("jmp", asmfmt.LabelRef(string(isel.BlockLabel(c.Func, target)), 0))
	}
	return nil
}
