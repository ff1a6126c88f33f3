package abi

import (
	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/frame"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/kerr"
	"github.com/kefirc/amd64cg/internal/reg"
	"github.com/kefirc/amd64cg/internal/storage"
)

// LowerReturn emits the Return instruction's value-placement sequence
// (kefir's return.c translator): moving value (the returned SSA value's
// resolved Location, ir.ValueInvalid's zero Location for a void return)
// into the registers the caller expects, per the Open Question #3
// decision that an X87/X87UP aggregate return performs one fld per pair
// rather than separately loading each half.
func LowerReturn(emit asmfmt.Emitter, fm *frame.Map, ret Placement, value storage.Location) error {
	switch ret.Kind {
	case ArgVoid:
		return nil

	case ArgIntReg:
		return loadIntoRegister(emit, ret.IntRegs[0], value, false)

	case ArgSSEReg:
		return loadIntoRegister(emit, ret.SSERegs[0], value, true)

	case ArgX87:
		if value.Kind != storage.LocMemory {
			return kerr.New(kerr.InvalidState, "long double return value must be a memory location")
		}
		emit.Instr("fld", asmfmt.Mem(value.Base, value.Offset, asmfmt.WTByte))
		return nil

	case ArgRegisterAggregate:
		if value.Kind != storage.LocMemory {
			return kerr.New(kerr.InvalidState, "register-aggregate return value must be a memory location")
		}
		intI, sseI, offset := 0, 0, int64(0)
		for _, c := range ret.Type.Eightbytes() {
			src := asmfmt.Mem(value.Base, value.Offset+offset, asmfmt.W64)
			if c == ir.EightbyteX87 || c == ir.EightbyteX87Up {
				// A long-double-shaped aggregate eightbyte pair is loaded
				// once via fld over both eightbytes; skip the second
				// chunk of the pair (Open Question #3).
				if c == ir.EightbyteX87 {
					emit.Instr("fld", asmfmt.Mem(value.Base, value.Offset+offset, asmfmt.WTByte))
				}
				offset += qword
				continue
			}
			if c == ir.EightbyteSSE {
				emit.Instr("movq", asmfmt.Reg(ret.SSERegs[sseI], asmfmt.W64), src)
				sseI++
			} else {
				emit.Instr("mov", asmfmt.Reg(ret.IntRegs[intI], asmfmt.W64), src)
				intI++
			}
			offset += qword
		}
		return nil

	case ArgImplicitPointer:
		// The hidden destination pointer was saved at entry
		// (frame.Map.ImplicitParameterOffset); the function body already
		// wrote the aggregate result through it directly, so all that
		// remains is to echo the pointer back in rax.
		emit.Instr("mov", asmfmt.Reg(reg.RAX, asmfmt.W64), asmfmt.Mem(reg.RBP, fm.ImplicitParameterOffset(), asmfmt.W64))
		return nil

	default:
		return kerr.New(kerr.InvalidState, "unsupported return placement kind %d", ret.Kind)
	}
}

func loadIntoRegister(emit asmfmt.Emitter, dest reg.Reg, value storage.Location, float bool) error {
	mnemonic := "mov"
	if float {
		mnemonic = "movq"
	}
	switch value.Kind {
	case storage.LocRegister:
		if value.Reg == dest {
			return nil
		}
		emit.Instr(mnemonic, asmfmt.Reg(dest, asmfmt.W64), asmfmt.Reg(value.Reg, asmfmt.W64))
		return nil
	case storage.LocMemory:
		emit.Instr(mnemonic, asmfmt.Reg(dest, asmfmt.W64), asmfmt.Mem(value.Base, value.Offset, asmfmt.W64))
		return nil
	default:
		return kerr.New(kerr.InvalidState, "unknown location kind %d", value.Kind)
	}
}
