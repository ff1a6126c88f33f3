// Package codegen is the per-function translation driver: the glue the
// module-level driver (out of scope here — spec.md excludes the
// module-level object/text assembly pass) calls once per ir.Function to
// lower its whole body to assembly through internal/isel, internal/abi,
// and internal/inlineasm.
//
// The driver owns two things no single opcode translator can: establishing
// the frame.Map a function's translators all share, and deciding which
// callee-saved registers the prologue/epilogue must preserve. Both depend
// on facts that are only fully known after the whole body has been
// translated once (the storage temporary area's high-water mark) or must
// be known before any instruction is translated (the frame's fixed-area
// offsets) — see buffer.go for how the two are reconciled.
package codegen

import (
	"github.com/sirupsen/logrus"

	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/config"
	"github.com/kefirc/amd64cg/internal/frame"
	"github.com/kefirc/amd64cg/internal/inlineasm"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/isel"
	"github.com/kefirc/amd64cg/internal/reg"
	"github.com/kefirc/amd64cg/internal/storage"
)

// Translator lowers ir.Functions to assembly through a caller-supplied
// asmfmt.Emitter, one function at a time.
type Translator struct {
	Config config.Config
	Log    *logrus.Entry
}

// NewTranslator builds a Translator. log may be nil, in which case
// logrus's standard logger's entry is used (matching internal/storage and
// internal/inlineasm's own nil-log tolerance).
func NewTranslator(cfg config.Config, log *logrus.Entry) *Translator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Translator{Config: cfg, Log: log}
}

// TranslateFunction lowers fn's whole body — prologue, every block in
// layout order, and the shared epilogue every Return jumps to — onto emit.
func (t *Translator) TranslateFunction(emit asmfmt.Emitter, mod *ir.Module, fn *ir.Function) error {
	fm := frame.NewMap(
		fn.Frame.LocalsSize,
		fn.Frame.SpillSlotCount,
		fn.Frame.RegisterAggregateCount,
		fn.Frame.UsesRegisterSaveArea,
		fn.Frame.UsesImplicitParam,
		fn.Frame.UsesDynamicScope,
	)

	buf := &buffer{}
	ledger := storage.NewLedger(buf, t.Log)

	// The register allocation commits each of these to holding a live
	// value for the value's whole lifetime; since no opcode translator
	// ever calls Ledger.MarkUsed itself (none needs to — they only
	// consult Lookup), the driver is the only place that can tell the
	// ledger these registers aren't free to hand out as scratch.
	calleeSaved, err := markAllocatedRegisters(ledger, fn.Allocation)
	if err != nil {
		return err
	}

	c := &isel.Context{
		Emit:   buf,
		Ledger: ledger,
		Frame:  fm,
		Alloc:  fn.Allocation,
		Module: mod,
		Func:   fn,
		Config: t.Config,
		Log:    t.Log,
	}

	if err := t.translateBody(c, buf, ledger, mod, fn); err != nil {
		return err
	}

	frameSize := fm.Prologue(emit, calleeSaved)
	buf.replay(emit)
	emit.Label(asmfmt.Label(epilogueLabelName(fn)))
	fm.Epilogue(emit, calleeSaved, frameSize)
	return nil
}

// translateBody walks fn's blocks in layout order, dispatching each
// instruction to internal/isel.Translate except OpInlineAssembly, which
// the dispatch table deliberately excludes (see internal/isel/dispatch.go)
// and which this driver routes to internal/inlineasm.Translate directly.
func (t *Translator) translateBody(c *isel.Context, buf *buffer, ledger *storage.Ledger, mod *ir.Module, fn *ir.Function) error {
	order := blockOrder(fn)
	instanceID := 0

	for _, id := range order {
		if fn.Analysis != nil && !fn.Analysis.Reachable(id) {
			continue
		}
		block := fn.BlockByID(id)
		if block == nil {
			continue
		}
		buf.Label(isel.BlockLabel(fn, id))

		for _, inst := range block.Instructions {
			if inst.Opcode() == ir.OpInlineAssembly {
				instanceID++
				_, targets := inst.BranchData()
				var defaultTarget ir.BlockID
				if len(targets) > 0 {
					defaultTarget = targets[0]
				}
				if err := inlineasm.Translate(buf, ledger, c.Frame, c.Alloc, mod, fn, t.Log, inst.InlineAssembly(), inst.Block(), defaultTarget, instanceID); err != nil {
					return err
				}
				continue
			}
			if err := isel.Translate(c, inst); err != nil {
				return err
			}
		}
	}
	return nil
}

// blockOrder returns the function's blocks in the order they must be laid
// out in: the precomputed Analysis's Order when present (translateJump's
// and translateBranch's fallthrough elision reads positions from exactly
// this slice, so emission must match it), falling back to Blocks'
// declaration order for fixtures built without an Analysis.
func blockOrder(fn *ir.Function) []ir.BlockID {
	if fn.Analysis != nil && fn.Analysis.Order != nil {
		return fn.Analysis.Order
	}
	ids := make([]ir.BlockID, len(fn.Blocks))
	for i, b := range fn.Blocks {
		ids[i] = b.ID
	}
	return ids
}

// markAllocatedRegisters marks every physical register the allocation
// commits to a live value as occupied for the ledger's whole lifetime,
// and returns the subset of reg.CalleeSaved among them, in
// reg.CalleeSaved's fixed order, for the prologue/epilogue to save and
// restore.
func markAllocatedRegisters(ledger *storage.Ledger, alloc *ir.RegisterAllocation) ([]reg.Reg, error) {
	if alloc == nil {
		return nil, nil
	}
	used := make(map[reg.Reg]bool)
	for _, a := range alloc.Values() {
		switch a.Kind {
		case ir.AllocGPR, ir.AllocFPR:
			used[a.Reg] = true
		}
	}

	var calleeSaved []reg.Reg
	for _, r := range reg.AllocatableGP {
		if !used[r] {
			continue
		}
		if err := ledger.MarkUsed(r); err != nil {
			return nil, err
		}
		if reg.CalleeSaved.Has(r) {
			calleeSaved = append(calleeSaved, r)
		}
	}
	// Float registers (XMM) are all caller-saved under System V, so they
	// only need the occupancy mark, never a prologue/epilogue save slot.
	for r := range used {
		if r.IsFloat() {
			if err := ledger.MarkUsed(r); err != nil {
				return nil, err
			}
		}
	}
	return calleeSaved, nil
}

func epilogueLabelName(fn *ir.Function) string {
	return ".L" + fn.Name + "_epilogue"
}
