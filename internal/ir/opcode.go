// Package ir defines the externally-owned SSA container this backend
// consumes: opcodes, instruction references, functions, blocks, and the
// precomputed register allocation and code analysis that come with them
// (spec.md §3, Data Model; §6, External Interfaces — Input). The backend
// never constructs or mutates this IR; it only reads it, exactly as
// spec.md §1 places "the optimizer IR construction and analyses" out of
// scope for the core.
package ir

// Opcode enumerates the SSA instructions the instruction selector (G)
// dispatches over. The set matches spec.md §2's "~40 SSA opcodes" and
// §4.G's per-opcode contract table.
type Opcode uint32

const (
	OpInvalid Opcode = iota

	OpIntAdd
	OpIntSub
	OpIntMul
	OpIntAnd
	OpIntOr
	OpIntXor
	OpIntLShift
	OpIntRShift
	OpIntARShift
	OpIntEq
	OpIntGreater
	OpIntLesser
	OpIntAbove
	OpIntBelow
	OpBoolAnd
	OpBoolOr
	OpIntDiv
	OpIntUDiv
	OpIntMod
	OpIntUMod

	OpBitsExtractSigned
	OpBitsExtractUnsigned
	OpBitsInsert

	OpFloat32Add
	OpFloat32Sub
	OpFloat32Mul
	OpFloat32Div
	OpFloat64Add
	OpFloat64Sub
	OpFloat64Mul
	OpFloat64Div
	OpFloatEq
	OpFloatGreater
	OpFloatLesser
	OpFloat32Neg
	OpFloat64Neg

	OpIntToFloat
	OpFloatToFloat
	OpUIntToFloat
	OpFloatToInt

	OpLongDoubleAdd
	OpLongDoubleSub
	OpLongDoubleMul
	OpLongDoubleDiv
	OpLongDoubleNeg
	OpLongDoubleStore

	OpInt8LoadSigned
	OpInt8LoadUnsigned
	OpInt16LoadSigned
	OpInt16LoadUnsigned
	OpInt32LoadSigned
	OpInt32LoadUnsigned
	OpInt64Load
	OpInt8Store
	OpInt16Store
	OpInt32Store
	OpInt64Store

	OpGetLocal
	OpGetGlobal
	OpGetArgument

	OpMemoryCopy
	OpZeroMemory
	OpStackAlloc
	OpPushScope
	OpPopScope
	OpThreadLocalStorage

	OpInvoke
	OpJump
	OpBranch
	OpIJump
	OpReturn

	OpVarArgStart
	OpVarArgCopy
	OpVarArgGet

	OpInlineAssembly

	numOpcodes
)

var opcodeNames = [numOpcodes]string{
	OpInvalid: "<invalid>",

	OpIntAdd: "IntAdd", OpIntSub: "IntSub", OpIntMul: "IntMul",
	OpIntAnd: "IntAnd", OpIntOr: "IntOr", OpIntXor: "IntXor",
	OpIntLShift: "IntLShift", OpIntRShift: "IntRShift", OpIntARShift: "IntARShift",
	OpIntEq: "IntEq", OpIntGreater: "IntGreater", OpIntLesser: "IntLesser",
	OpIntAbove: "IntAbove", OpIntBelow: "IntBelow",
	OpBoolAnd: "BoolAnd", OpBoolOr: "BoolOr",
	OpIntDiv: "IntDiv", OpIntUDiv: "IntUDiv", OpIntMod: "IntMod", OpIntUMod: "IntUMod",

	OpBitsExtractSigned: "BitsExtractSigned", OpBitsExtractUnsigned: "BitsExtractUnsigned",
	OpBitsInsert: "BitsInsert",

	OpFloat32Add: "Float32Add", OpFloat32Sub: "Float32Sub", OpFloat32Mul: "Float32Mul", OpFloat32Div: "Float32Div",
	OpFloat64Add: "Float64Add", OpFloat64Sub: "Float64Sub", OpFloat64Mul: "Float64Mul", OpFloat64Div: "Float64Div",
	OpFloatEq: "FloatEq", OpFloatGreater: "FloatGreater", OpFloatLesser: "FloatLesser",
	OpFloat32Neg: "Float32Neg", OpFloat64Neg: "Float64Neg",

	OpIntToFloat: "IntToFloat", OpFloatToFloat: "FloatToFloat",
	OpUIntToFloat: "UIntToFloat", OpFloatToInt: "FloatToInt",

	OpLongDoubleAdd: "LongDoubleAdd", OpLongDoubleSub: "LongDoubleSub",
	OpLongDoubleMul: "LongDoubleMul", OpLongDoubleDiv: "LongDoubleDiv",
	OpLongDoubleNeg: "LongDoubleNeg", OpLongDoubleStore: "LongDoubleStore",

	OpInt8LoadSigned: "Int8LoadSigned", OpInt8LoadUnsigned: "Int8LoadUnsigned",
	OpInt16LoadSigned: "Int16LoadSigned", OpInt16LoadUnsigned: "Int16LoadUnsigned",
	OpInt32LoadSigned: "Int32LoadSigned", OpInt32LoadUnsigned: "Int32LoadUnsigned",
	OpInt64Load: "Int64Load",
	OpInt8Store:  "Int8Store", OpInt16Store: "Int16Store", OpInt32Store: "Int32Store", OpInt64Store: "Int64Store",

	OpGetLocal: "GetLocal", OpGetGlobal: "GetGlobal", OpGetArgument: "GetArgument",

	OpMemoryCopy: "MemoryCopy", OpZeroMemory: "ZeroMemory", OpStackAlloc: "StackAlloc",
	OpPushScope: "PushScope", OpPopScope: "PopScope", OpThreadLocalStorage: "ThreadLocalStorage",

	OpInvoke: "Invoke", OpJump: "Jump", OpBranch: "Branch", OpIJump: "IJump", OpReturn: "Return",

	OpVarArgStart: "VarArgStart", OpVarArgCopy: "VarArgCopy", OpVarArgGet: "VarArgGet",

	OpInlineAssembly: "InlineAssembly",
}

// String implements fmt.Stringer.
func (o Opcode) String() string {
	if int(o) < len(opcodeNames) && opcodeNames[o] != "" {
		return opcodeNames[o]
	}
	return "Opcode(?)"
}

// ParseOpcode looks up an opcode by its String name, for
// cmd/kefir-amd64-dump's textual fixture loader.
func ParseOpcode(name string) (Opcode, bool) {
	for o, n := range opcodeNames {
		if n == name {
			return Opcode(o), true
		}
	}
	return OpInvalid, false
}
