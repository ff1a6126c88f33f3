package inlineasm

import (
	"github.com/sirupsen/logrus"

	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/frame"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/isel"
	"github.com/kefirc/amd64cg/internal/storage"
)

// Translate lowers one OpInlineAssembly instruction in full: mark
// clobbers, allocate parameters, preserve state and load inputs, format
// the template, store outputs and restore state for the default
// fall-through edge, then emit one trampoline per declared jump target
// (spec.md §4.I, inline_assembly.c's inline_assembly_impl
// followed by jump_trampolines). instanceID must be unique per emitted
// function and feeds %= substitutions (testable property 8).
func Translate(emit asmfmt.Emitter, ledger *storage.Ledger, fm *frame.Map, alloc *ir.RegisterAllocation, mod *ir.Module, fn *ir.Function, log *logrus.Entry, fragment *ir.InlineAssemblyFragment, block, defaultTarget ir.BlockID, instanceID int) error {
	c := NewContext(emit, ledger, fm, alloc, mod, fn, log, fragment, block, defaultTarget, instanceID)

	if err := MarkClobbers(c); err != nil {
		return err
	}
	if err := AllocateParameters(c); err != nil {
		return err
	}
	if err := PrepareState(c); err != nil {
		return err
	}

	formatted, err := Format(c)
	if err != nil {
		return err
	}
	if formatted != "" {
		c.Emit.Raw(formatted)
	}

	if err := StoreOutputs(c); err != nil {
		return err
	}
	if err := RestoreState(c); err != nil {
		return err
	}

	tr, err := storage.MapRegisters(c.Func, c.Alloc, c.Frame, c.Block, c.Default)
	if err != nil {
		return err
	}
	if err := tr.Perform(c.Emit, c.Ledger); err != nil {
		return err
	}
	if c.Func.Analysis == nil || !c.Func.Analysis.IsFallthrough(c.Block, c.Default) {
		c.Emit.Instr("jmp", asmfmt.LabelRef(string(isel.BlockLabel(c.Func, c.Default)), 0))
	}

	return JumpTrampolines(c)
}
