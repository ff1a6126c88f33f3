package storage

import (
	"github.com/kefirc/amd64cg/internal/frame"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/kerr"
)

// MapRegisters builds the batch of phi-reconciliation moves a transfer of
// control from source to target must perform: one move per phi live in
// target whose value differs depending on the edge taken (jump.c's
// map_registers, reimplemented over Transform rather than a bespoke
// hashtree scheme — both plan simultaneous location-to-location moves and
// break any cycles via a stack temporary). Shared by block-to-block
// control transfer (internal/isel) and inline-assembly jump trampolines
// (internal/inlineasm), which both reconcile the same phis on exit from a
// block.
func MapRegisters(fn *ir.Function, alloc *ir.RegisterAllocation, fm *frame.Map, source, target ir.BlockID) (*Transform, error) {
	tr := NewTransform()
	if fn.Analysis != nil && !fn.Analysis.Reachable(target) {
		return tr, nil
	}
	block := fn.BlockByID(target)
	if block == nil {
		return nil, kerr.New(kerr.InvalidState, "branch target block %d not found", target)
	}
	for _, phi := range block.Phis {
		src, ok := phi.Sources[source]
		if !ok {
			continue
		}
		destLoc, err := FromAllocation(alloc.Lookup(phi.Result), fm)
		if err != nil {
			return nil, err
		}
		srcLoc, err := FromAllocation(alloc.Lookup(src), fm)
		if err != nil {
			return nil, err
		}
		if err := tr.Insert(destLoc, srcLoc); err != nil {
			return nil, err
		}
	}
	return tr, nil
}
