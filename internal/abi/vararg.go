package abi

import (
	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/frame"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/kerr"
	"github.com/kefirc/amd64cg/internal/reg"
	"github.com/kefirc/amd64cg/internal/storage"
)

// Runtime helper labels: the finite state gp_offset/fp_offset bump logic
// for scalar vararg fetches is not inlined per call site — it lives once
// per module in a small hand-written runtime stub the translator calls
// into, the same split kefir's own codegen/opt-system-v-amd64 uses
// (vararg_get.c calls KEFIR_OPT_AMD64_SYSTEM_V_RUNTIME_LOAD_{INT,SSE}_VARARG
// rather than expanding the bump logic inline at every call site).
const (
	RuntimeLoadIntVararg = "__kefirrt_opt_amd64_sysv_vararg_load_int"
	RuntimeLoadSSEVararg = "__kefirrt_opt_amd64_sysv_vararg_load_sse"
)

// LowerVarArgStart emits the va_start sequence (spec.md SUPPLEMENTED
// FEATURE: exact va_list register-save-area sizing/clamping), grounded
// directly on vararg.c's vararg_start translator: it materialises the
// va_list struct (gp_offset, fp_offset, overflow_arg_area,
// reg_save_area) at the address argAlloc holds.
func LowerVarArgStart(emit asmfmt.Emitter, ledger *storage.Ledger, fm *frame.Map, argAlloc ir.Allocation, integerRegistersUsed, sseRegistersUsed int, stackArgOffset int64) error {
	h, err := acquireForAllocation(ledger, argAlloc)
	if err != nil {
		return err
	}
	if err := loadAllocationIntoRegister(emit, fm, argAlloc, h.Reg()); err != nil {
		return err
	}

	// gp_offset: dword at [h+0]
	emit.Instr("mov", asmfmt.Mem(h.Reg(), 0, asmfmt.W32), asmfmt.Imm(int64(integerRegistersUsed)*8))
	// fp_offset: dword at [h+4]
	emit.Instr("mov", asmfmt.Mem(h.Reg(), 4, asmfmt.W32),
		asmfmt.Imm(int64(6*8)+int64(sseRegistersUsed)*16))

	tmp, err := ledger.AcquireAnyGeneralPurpose(nil)
	if err != nil {
		return err
	}
	// overflow_arg_area: pointer at [h+8], computed from rbp + incoming
	// stack-argument base + this function's stack-passed argument count.
	emit.Instr("lea", asmfmt.Reg(tmp.Reg(), asmfmt.W64), asmfmt.Mem(reg.RBP, fm.StackArgOffset(stackArgOffset), asmfmt.W64))
	emit.Instr("mov", asmfmt.Mem(h.Reg(), 8, asmfmt.W64), asmfmt.Reg(tmp.Reg(), asmfmt.W64))

	// reg_save_area: pointer at [h+16].
	emit.Instr("lea", asmfmt.Reg(tmp.Reg(), asmfmt.W64), asmfmt.Mem(reg.RBP, fm.RegisterSaveAreaOffset(), asmfmt.W64))
	emit.Instr("mov", asmfmt.Mem(h.Reg(), 16, asmfmt.W64), asmfmt.Reg(tmp.Reg(), asmfmt.W64))

	if err := ledger.Release(tmp); err != nil {
		return err
	}
	return ledger.Release(h)
}

// LowerVarArgCopy emits va_copy: a straight 24-byte copy of the va_list
// struct from source to target (vararg.c's vararg_copy translator).
func LowerVarArgCopy(emit asmfmt.Emitter, ledger *storage.Ledger, fm *frame.Map, sourceAlloc, targetAlloc ir.Allocation) error {
	src, err := acquireForAllocation(ledger, sourceAlloc)
	if err != nil {
		return err
	}
	if err := loadAllocationIntoRegister(emit, fm, sourceAlloc, src.Reg()); err != nil {
		return err
	}
	dst, err := acquireForAllocation(ledger, targetAlloc)
	if err != nil {
		return err
	}
	if err := loadAllocationIntoRegister(emit, fm, targetAlloc, dst.Reg()); err != nil {
		return err
	}
	tmp, err := ledger.AcquireAnyGeneralPurpose(nil)
	if err != nil {
		return err
	}
	for _, off := range []int64{0, 8, 16} {
		emit.Instr("mov", asmfmt.Reg(tmp.Reg(), asmfmt.W64), asmfmt.Mem(src.Reg(), off, asmfmt.W64))
		emit.Instr("mov", asmfmt.Mem(dst.Reg(), off, asmfmt.W64), asmfmt.Reg(tmp.Reg(), asmfmt.W64))
	}
	if err := ledger.Release(tmp); err != nil {
		return err
	}
	if err := ledger.Release(dst); err != nil {
		return err
	}
	return ledger.Release(src)
}

// LowerVarArgGetScalar emits va_arg for an integer or SSE-classed type:
// the va_list pointer is loaded into rdi and a runtime helper performs the
// gp_offset/fp_offset bump-or-fall-back-to-overflow-area logic, returning
// the fetched value in rax or xmm0 (vararg_get.c's vararg_visit_integer /
// vararg_visit_sse).
func LowerVarArgGetScalar(emit asmfmt.Emitter, ledger *storage.Ledger, fm *frame.Map, argAlloc ir.Allocation, resultIsFloat bool) error {
	resultReg := reg.RAX
	if resultIsFloat {
		resultReg = reg.XMM0
	}
	result, err := ledger.AcquireSpecific(resultReg, reg.Width64)
	if err != nil {
		return err
	}
	param, err := ledger.AcquireSpecific(reg.RDI, reg.Width64)
	if err != nil {
		return err
	}
	if err := loadAllocationIntoRegister(emit, fm, argAlloc, param.Reg()); err != nil {
		return err
	}
	if resultIsFloat {
		emit.Instr("call", asmfmt.LabelRef(RuntimeLoadSSEVararg, 0))
	} else {
		emit.Instr("call", asmfmt.LabelRef(RuntimeLoadIntVararg, 0))
	}
	if err := ledger.Release(param); err != nil {
		return err
	}
	return ledger.Release(result)
}

// LowerVarArgGetMemoryAggregate emits va_arg for a MEMORY-classed
// aggregate type: the overflow_arg_area pointer is read, rounded up to
// the type's alignment if it exceeds 8, and bumped past the (8-aligned)
// size of the fetched value (vararg_get.c's vararg_visit_memory_aggregate).
func LowerVarArgGetMemoryAggregate(emit asmfmt.Emitter, ledger *storage.Ledger, fm *frame.Map, argAlloc, resultAlloc ir.Allocation, size, alignment uint32) error {
	result, err := acquireForAllocation(ledger, resultAlloc)
	if err != nil {
		return err
	}
	param, err := acquireForAllocation(ledger, argAlloc)
	if err != nil {
		return err
	}
	tmp, err := ledger.AcquireAnyGeneralPurpose(nil)
	if err != nil {
		return err
	}

	if err := loadAllocationIntoRegister(emit, fm, argAlloc, param.Reg()); err != nil {
		return err
	}

	emit.Instr("mov", asmfmt.Reg(result.Reg(), asmfmt.W64), asmfmt.Mem(param.Reg(), qword, asmfmt.W64))
	if alignment > qword {
		emit.Instr("add", asmfmt.Reg(result.Reg(), asmfmt.W64), asmfmt.Imm(int64(alignment)-1))
		emit.Instr("and", asmfmt.Reg(result.Reg(), asmfmt.W64), asmfmt.Imm(-int64(alignment)))
	}

	emit.Instr("lea", asmfmt.Reg(tmp.Reg(), asmfmt.W64), asmfmt.Mem(result.Reg(), align8(size), asmfmt.W64))
	emit.Instr("mov", asmfmt.Mem(param.Reg(), qword, asmfmt.W64), asmfmt.Reg(tmp.Reg(), asmfmt.W64))

	if err := ledger.Release(tmp); err != nil {
		return err
	}
	if err := ledger.Release(param); err != nil {
		return err
	}
	return ledger.Release(result)
}

// acquireForAllocation grants a register suitable for holding a's value:
// a's own register (exclusive-allocated, no eviction needed) if it is
// already in one, otherwise a fresh scratch GPR the caller must load a's
// value into.
func acquireForAllocation(ledger *storage.Ledger, a ir.Allocation) (*storage.Handle, error) {
	if a.Kind == ir.AllocGPR || a.Kind == ir.AllocFPR {
		return ledger.AcquireExclusiveAllocated(a.Reg, nil)
	}
	return ledger.AcquireAnyGeneralPurpose(nil)
}

func loadAllocationIntoRegister(emit asmfmt.Emitter, fm *frame.Map, a ir.Allocation, dest reg.Reg) error {
	loc, err := storage.FromAllocation(a, fm)
	if err != nil {
		return err
	}
	if loc.Kind == storage.LocRegister && loc.Reg == dest {
		return nil
	}
	return moveSingle(emit, storage.Register(dest), loc)
}
