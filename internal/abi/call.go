package abi

import (
	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/frame"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/kerr"
	"github.com/kefirc/amd64cg/internal/reg"
	"github.com/kefirc/amd64cg/internal/storage"
)

// CallArgs binds one evaluated call's argument source locations (one per
// parameter in FunctionABI.Params, already resolved via
// storage.FromAllocation) to the ABI's placement plan.
type CallArgs struct {
	ABI      *FunctionABI
	Sources  []storage.Location
	Symbol   string
	Variadic bool
}

// LowerCall emits the instruction sequence kefir's invoke.c translator
// produces for a direct call: register arguments are shuffled into place
// through a storage.Transform (so argument registers that also happen to
// be sources of other arguments are handled correctly even when they
// overlap), stack arguments are pushed in reverse order, %al is loaded
// for a variadic callee, and the call itself is emitted. result, if
// non-nil, receives the return value's location after the call returns.
func LowerCall(emit asmfmt.Emitter, ledger *storage.Ledger, call CallArgs, result *storage.Location) error {
	if len(call.Sources) != len(call.ABI.Params) {
		return kerr.New(kerr.InvalidParameter, "call has %d arguments, ABI expects %d", len(call.Sources), len(call.ABI.Params))
	}

	tr := storage.NewTransform()
	var stackArgs []struct {
		src  storage.Location
		size uint32
	}

	for i, p := range call.ABI.Params {
		src := call.Sources[i]
		switch p.Kind {
		case ArgIntReg:
			if err := tr.Insert(storage.Register(p.IntRegs[0]), src); err != nil {
				return err
			}
		case ArgSSEReg:
			if err := tr.Insert(storage.Register(p.SSERegs[0]), src); err != nil {
				return err
			}
		case ArgRegisterAggregate:
			if err := insertAggregateRegisterMoves(tr, p, src); err != nil {
				return err
			}
		case ArgStack:
			stackArgs = append(stackArgs, struct {
				src  storage.Location
				size uint32
			}{src, p.AggregateSize})
		default:
			return kerr.New(kerr.InvalidState, "parameter has unsupported placement kind %d", p.Kind)
		}
	}

	// Stack arguments are pushed right-to-left so the first stack argument
	// ends up at the lowest address, matching the incoming frame's
	// positive-offset layout the callee will read it with.
	for i := len(stackArgs) - 1; i >= 0; i-- {
		if err := pushArgument(emit, ledger, stackArgs[i].src, stackArgs[i].size); err != nil {
			return err
		}
	}

	if err := tr.Perform(emit, ledger); err != nil {
		return err
	}

	if call.Variadic {
		emit.Instr("mov", asmfmt.Reg(reg.RAX, asmfmt.W8), asmfmt.Imm(int64(call.ABI.VariadicALCount)))
	}

	emit.Instr("call", asmfmt.LabelRef(call.Symbol, 0))

	if len(stackArgs) > 0 {
		total := int64(0)
		for _, a := range stackArgs {
			total += align8(a.size)
		}
		emit.Instr("add", asmfmt.Reg(reg.RSP, asmfmt.W64), asmfmt.Imm(total))
	}

	if result != nil {
		if err := storeReturnValue(emit, ledger, call.ABI.Return, *result); err != nil {
			return err
		}
	}
	return nil
}

func insertAggregateRegisterMoves(tr *storage.Transform, p Placement, src storage.Location) error {
	if src.Kind != storage.LocMemory {
		return kerr.New(kerr.InvalidState, "register-aggregate argument source must be a memory location")
	}
	intI, sseI := 0, 0
	// Walk eightbytes in the same order classify.go assigned them: the
	// aggregate's Type carries the authoritative per-chunk class list.
	offset := int64(0)
	for _, c := range p.Type.Eightbytes() {
		chunk := storage.Memory(src.Base, src.Offset+offset)
		if c == ir.EightbyteSSE {
			if sseI >= len(p.SSERegs) {
				return kerr.New(kerr.InvalidState, "aggregate argument exhausted its assigned SSE registers")
			}
			if err := tr.Insert(storage.Register(p.SSERegs[sseI]), chunk); err != nil {
				return err
			}
			sseI++
		} else {
			if intI >= len(p.IntRegs) {
				return kerr.New(kerr.InvalidState, "aggregate argument exhausted its assigned integer registers")
			}
			if err := tr.Insert(storage.Register(p.IntRegs[intI]), chunk); err != nil {
				return err
			}
			intI++
		}
		offset += qword
	}
	return nil
}

func pushArgument(emit asmfmt.Emitter, ledger *storage.Ledger, src storage.Location, size uint32) error {
	n := align8(size) / qword
	if n == 0 {
		n = 1
	}
	for i := int64(0); i < n; i++ {
		chunkOffset := (n - 1 - i) * qword // push high chunk first so it ends up at the higher address
		switch src.Kind {
		case storage.LocRegister:
			emit.Instr("push", asmfmt.Reg(src.Reg, asmfmt.W64))
		case storage.LocMemory:
			h, err := ledger.AcquireAnyGeneralPurpose(nil)
			if err != nil {
				return err
			}
			emit.Instr("mov", asmfmt.Reg(h.Reg(), asmfmt.W64), asmfmt.Mem(src.Base, src.Offset+chunkOffset, asmfmt.W64))
			emit.Instr("push", asmfmt.Reg(h.Reg(), asmfmt.W64))
			if err := ledger.Release(h); err != nil {
				return err
			}
		}
	}
	return nil
}

func storeReturnValue(emit asmfmt.Emitter, ledger *storage.Ledger, ret Placement, dest storage.Location) error {
	switch ret.Kind {
	case ArgVoid:
		return nil
	case ArgIntReg:
		return moveSingle(emit, dest, storage.Register(ret.IntRegs[0]))
	case ArgSSEReg:
		return moveSingle(emit, dest, storage.Register(ret.SSERegs[0]))
	case ArgImplicitPointer:
		// The callee echoes the hidden destination pointer back in rax;
		// the aggregate itself was already written through that pointer,
		// so there is nothing further to copy.
		return nil
	case ArgRegisterAggregate:
		if dest.Kind != storage.LocMemory {
			return kerr.New(kerr.InvalidState, "register-aggregate return destination must be memory")
		}
		intI, sseI, offset := 0, 0, int64(0)
		for _, c := range ret.Type.Eightbytes() {
			if c == ir.EightbyteX87 || c == ir.EightbyteX87Up {
				// A long-double-shaped aggregate eightbyte pair is stored
				// once via fstp over both eightbytes; skip the second chunk
				// of the pair (Open Question #3), mirroring LowerReturn's
				// X87 handling in return.go.
				if c == ir.EightbyteX87 {
					emit.Instr("fstp", asmfmt.Mem(dest.Base, dest.Offset+offset, asmfmt.WTByte))
				}
				offset += qword
				continue
			}
			chunk := storage.Memory(dest.Base, dest.Offset+offset)
			if c == ir.EightbyteSSE {
				emit.Instr("movq", asmfmt.Mem(chunk.Base, chunk.Offset, asmfmt.W64), asmfmt.Reg(ret.SSERegs[sseI], asmfmt.W64))
				sseI++
			} else {
				emit.Instr("mov", asmfmt.Mem(chunk.Base, chunk.Offset, asmfmt.W64), asmfmt.Reg(ret.IntRegs[intI], asmfmt.W64))
				intI++
			}
			offset += qword
		}
		return nil
	case ArgX87:
		// Long double result: left on the x87 stack top by the call and
		// popped from there into dest as a 10-byte tbyte store.
		emit.Instr("fstp", asmfmt.Mem(dest.Base, dest.Offset, asmfmt.WTByte))
		return nil
	default:
		return kerr.New(kerr.InvalidState, "unsupported return placement kind %d", ret.Kind)
	}
}

func moveSingle(emit asmfmt.Emitter, dest, src storage.Location) error {
	mnemonic := "mov"
	if (dest.Kind == storage.LocRegister && dest.Reg.IsFloat()) || (src.Kind == storage.LocRegister && src.Reg.IsFloat()) {
		mnemonic = "movq"
	}
	destOperand, err := operandOf(dest)
	if err != nil {
		return err
	}
	srcOperand, err := operandOf(src)
	if err != nil {
		return err
	}
	emit.Instr(mnemonic, destOperand, srcOperand)
	return nil
}

func operandOf(l storage.Location) (asmfmt.Operand, error) {
	switch l.Kind {
	case storage.LocRegister:
		return asmfmt.Reg(l.Reg, asmfmt.W64), nil
	case storage.LocMemory:
		return asmfmt.Mem(l.Base, l.Offset, asmfmt.W64), nil
	default:
		return asmfmt.Operand{}, kerr.New(kerr.InvalidState, "unknown location kind %d", l.Kind)
	}
}

func align8(size uint32) int64 {
	return (int64(size) + 7) &^ 7
}

// stackArgBase exposes frame.Map's stack-argument base so call sites in
// internal/isel can compute where a stack-passed parameter already lives
// without importing frame directly for this one constant.
func stackArgBase(fm *frame.Map, offset int64) int64 { return fm.StackArgOffset(offset) }
