package ir

// Instruction is the flattened representation of one SSA instruction. As
// in the teacher's ssa.Instruction, a single struct backs every opcode and
// the meaning of each field is opcode-dependent; callers use the typed
// accessor methods below rather than reading fields directly, so the
// flattening stays an implementation detail of this package.
type Instruction struct {
	id     Value
	opcode Opcode
	typ    Type

	arg0, arg1, arg2 Value
	args             []Value // variable-length operand lists (Invoke, MemoryCopy sizes, etc)

	imm     int64
	bitOff  uint32
	bitLen  uint32

	block   BlockID
	targets []BlockID

	symbol string
	callee FuncRef
	sig    SignatureID

	asmFragment *InlineAssemblyFragment

	block_ *Block // owning block pointer; nothing in this module sets it, Block() reads block
}

// ID returns the SSA value this instruction defines (ValueInvalid if the
// instruction has no result, e.g. a bare Jump).
func (i *Instruction) ID() Value { return i.id }

// Opcode returns the instruction's opcode.
func (i *Instruction) Opcode() Opcode { return i.opcode }

// Type returns the result type (or, for void instructions, the type most
// relevant to selection — e.g. the stored type for a Store).
func (i *Instruction) Type() Type { return i.typ }

// Args returns the instruction's three fixed operand slots in order;
// slots the opcode does not use hold ValueInvalid.
func (i *Instruction) Args() [3]Value { return [3]Value{i.arg0, i.arg1, i.arg2} }

// Arg0/Arg1/Arg2 access individual fixed operands; most opcode
// translators only need these.
func (i *Instruction) Arg0() Value { return i.arg0 }
func (i *Instruction) Arg1() Value { return i.arg1 }
func (i *Instruction) Arg2() Value { return i.arg2 }

// VarArgs returns the variable-length operand list (call arguments, etc).
func (i *Instruction) VarArgs() []Value { return i.args }

// Imm returns the instruction's scalar immediate operand (local/parameter
// indices, MemoryCopy/ZeroMemory byte counts, StackAlloc's 0/1
// within-scope flag).
func (i *Instruction) Imm() int64 { return i.imm }

// BitfieldOffsetLength returns (offset, length) for BitsExtract*/BitsInsert.
func (i *Instruction) BitfieldOffsetLength() (uint32, uint32) { return i.bitOff, i.bitLen }

// BranchData returns the condition value (ValueInvalid for an
// unconditional Jump) and branch targets: for Jump, a single target; for
// Branch, (target, alt).
func (i *Instruction) BranchData() (cond Value, targets []BlockID) { return i.arg0, i.targets }

// Symbol returns the external symbol name for GetGlobal / TLS / runtime
// helper references.
func (i *Instruction) Symbol() string { return i.symbol }

// CallData returns the callee reference, signature, and argument values
// for a direct Invoke.
func (i *Instruction) CallData() (FuncRef, SignatureID, []Value) { return i.callee, i.sig, i.args }

// InlineAssembly returns the parsed inline-assembly fragment an
// OpInlineAssembly instruction refers to.
func (i *Instruction) InlineAssembly() *InlineAssemblyFragment { return i.asmFragment }

// Block returns the block this instruction belongs to.
func (i *Instruction) Block() BlockID { return i.block }

// Builder assembles Instructions for tests; the fixture loader in
// fixture.go builds Instruction literals directly. Production IR is constructed by the externally-owned
// optimizer, not by this package.
type Builder struct{ nextID uint32 }

// NewBuilder returns a fresh instruction Builder seeded past ValueInvalid.
func NewBuilder() *Builder { return &Builder{nextID: 1} }

func (b *Builder) newValue() Value {
	v := Value(b.nextID)
	b.nextID++
	return v
}

// Build constructs an Instruction with a fresh result value of type typ
// (ValueInvalid result if typ is the zero Type and op has no result).
func (b *Builder) Build(op Opcode, typ Type, args ...Value) *Instruction {
	inst := &Instruction{opcode: op, typ: typ}
	if typ.kind != TypeInvalid {
		inst.id = b.newValue()
	}
	switch len(args) {
	case 0:
	case 1:
		inst.arg0 = args[0]
	case 2:
		inst.arg0, inst.arg1 = args[0], args[1]
	case 3:
		inst.arg0, inst.arg1, inst.arg2 = args[0], args[1], args[2]
	default:
		inst.arg0, inst.arg1, inst.arg2 = args[0], args[1], args[2]
		inst.args = args[3:]
	}
	return inst
}

// WithImm sets the scalar immediate and returns inst for chaining.
func (inst *Instruction) WithImm(v int64) *Instruction { inst.imm = v; return inst }

// WithBitfield sets the bitfield offset/length and returns inst.
func (inst *Instruction) WithBitfield(off, length uint32) *Instruction {
	inst.bitOff, inst.bitLen = off, length
	return inst
}

// WithSymbol sets the external symbol name and returns inst.
func (inst *Instruction) WithSymbol(sym string) *Instruction { inst.symbol = sym; return inst }

// WithBlock sets the owning block id and returns inst. Production IR sets
// this when the optimizer appends an instruction to a block; tests and the
// fixture loader that build instructions standalone must set it explicitly
// since Block() (consulted by phi reconciliation) would otherwise report
// block 0 for every instruction.
func (inst *Instruction) WithBlock(id BlockID) *Instruction { inst.block = id; return inst }

// WithTargets sets the branch target list and returns inst.
func (inst *Instruction) WithTargets(targets ...BlockID) *Instruction {
	inst.targets = targets
	return inst
}

// WithCall sets the callee/signature/argument list and returns inst.
func (inst *Instruction) WithCall(callee FuncRef, sig SignatureID, args []Value) *Instruction {
	inst.callee, inst.sig, inst.args = callee, sig, args
	return inst
}

// WithInlineAssembly attaches a parsed fragment and returns inst.
func (inst *Instruction) WithInlineAssembly(f *InlineAssemblyFragment) *Instruction {
	inst.asmFragment = f
	return inst
}
