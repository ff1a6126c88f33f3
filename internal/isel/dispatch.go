package isel

import (
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/kerr"
)

// translatorFunc lowers one instruction into assembly via Context.Emit.
type translatorFunc func(*Context, *ir.Instruction) error

// translators maps each opcode to the function that lowers it. Several
// opcode families share one translator that switches internally on the
// exact opcode (binary_op.c, float_binary_op.c, load.c, and so on each
// cover a handful of opcodes this way in the original too).
//
// OpInlineAssembly has no entry: inline assembly lowering (component I)
// is structurally unlike register-to-register instruction selection — a
// textual template scan rather than a fixed per-opcode sequence — so
// internal/codegen's function driver special-cases that opcode and calls
// internal/inlineasm directly instead of routing it through Translate.
var translators = map[ir.Opcode]translatorFunc{
	ir.OpIntAdd: translateBinaryOp,
	ir.OpIntSub: translateBinaryOp,
	ir.OpIntMul: translateBinaryOp,
	ir.OpIntAnd: translateBinaryOp,
	ir.OpIntOr:  translateBinaryOp,
	ir.OpIntXor: translateBinaryOp,

	ir.OpIntLShift:  translateShift,
	ir.OpIntRShift:  translateShift,
	ir.OpIntARShift: translateShift,

	ir.OpIntEq:      translateIntCompare,
	ir.OpIntGreater: translateIntCompare,
	ir.OpIntLesser:  translateIntCompare,
	ir.OpIntAbove:   translateIntCompare,
	ir.OpIntBelow:   translateIntCompare,

	ir.OpBoolAnd: translateBoolAnd,
	ir.OpBoolOr:  translateBoolOr,

	ir.OpIntDiv:  translateDivMod,
	ir.OpIntUDiv: translateDivMod,
	ir.OpIntMod:  translateDivMod,
	ir.OpIntUMod: translateDivMod,

	ir.OpBitsExtractSigned:   translateBitsExtract,
	ir.OpBitsExtractUnsigned: translateBitsExtract,
	ir.OpBitsInsert:          translateBitsInsert,

	ir.OpFloat32Add: translateFloatBinary,
	ir.OpFloat32Sub: translateFloatBinary,
	ir.OpFloat32Mul: translateFloatBinary,
	ir.OpFloat32Div: translateFloatBinary,
	ir.OpFloat64Add: translateFloatBinary,
	ir.OpFloat64Sub: translateFloatBinary,
	ir.OpFloat64Mul: translateFloatBinary,
	ir.OpFloat64Div: translateFloatBinary,

	ir.OpFloatEq:      translateFloatCompare,
	ir.OpFloatGreater: translateFloatCompare,
	ir.OpFloatLesser:  translateFloatCompare,

	ir.OpFloat32Neg: translateFloatNeg,
	ir.OpFloat64Neg: translateFloatNeg,

	ir.OpIntToFloat:   translateIntToFloat,
	ir.OpFloatToFloat: translateFloatToFloat,
	ir.OpUIntToFloat:  translateUIntToFloat,
	ir.OpFloatToInt:   translateFloatToInt,

	ir.OpLongDoubleAdd:   translateLongDoubleBinary,
	ir.OpLongDoubleSub:   translateLongDoubleBinary,
	ir.OpLongDoubleMul:   translateLongDoubleBinary,
	ir.OpLongDoubleDiv:   translateLongDoubleBinary,
	ir.OpLongDoubleNeg:   translateLongDoubleNeg,
	ir.OpLongDoubleStore: translateLongDoubleStore,

	ir.OpInt8LoadSigned:    translateLoad,
	ir.OpInt8LoadUnsigned:  translateLoad,
	ir.OpInt16LoadSigned:   translateLoad,
	ir.OpInt16LoadUnsigned: translateLoad,
	ir.OpInt32LoadSigned:   translateLoad,
	ir.OpInt32LoadUnsigned: translateLoad,
	ir.OpInt64Load:         translateLoad,
	ir.OpInt8Store:         translateStore,
	ir.OpInt16Store:        translateStore,
	ir.OpInt32Store:        translateStore,
	ir.OpInt64Store:        translateStore,

	ir.OpGetLocal:    translateGetLocal,
	ir.OpGetGlobal:   translateGetGlobal,
	ir.OpGetArgument: translateGetArgument,

	ir.OpMemoryCopy:         translateMemoryCopy,
	ir.OpZeroMemory:         translateZeroMemory,
	ir.OpStackAlloc:         translateStackAlloc,
	ir.OpPushScope:          translatePushScope,
	ir.OpPopScope:           translatePopScope,
	ir.OpThreadLocalStorage: translateThreadLocalStorage,

	ir.OpInvoke: translateInvoke,
	ir.OpJump:   translateJump,
	ir.OpBranch: translateBranch,
	ir.OpIJump:  translateIJump,
	ir.OpReturn: translateReturn,

	ir.OpVarArgStart: translateVarArgStart,
	ir.OpVarArgCopy:  translateVarArgCopy,
	ir.OpVarArgGet:   translateVarArgGet,
}

// Translate lowers one instruction by dispatching on its opcode.
func Translate(c *Context, inst *ir.Instruction) error {
	fn, ok := translators[inst.Opcode()]
	if !ok {
		return kerr.New(kerr.NotSupported, "opcode %s has no registered translator", inst.Opcode())
	}
	return fn(c, inst)
}
