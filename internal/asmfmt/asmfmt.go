// Package asmfmt declares the assembly emitter boundary (spec.md §2,
// component A): a syntax-aware printer for instructions, operands,
// labels, directives, sections, alignment, and data blobs. Per spec.md
// §1, the emitter's implementation — the textual "xasmgen" formatter — is
// an external collaborator and explicitly out of scope; this package
// fixes only the operation vocabulary every other component calls
// through.
package asmfmt

import "github.com/kefirc/amd64cg/internal/reg"

// Width is the operand width in bytes, used by the Emitter to pick the
// correctly-sized register name or size-prefixed memory reference.
type Width int

const (
	W8  Width = 1
	W16 Width = 2
	W32 Width = 4
	W64 Width = 8
	// WTByte denotes an 80-bit (x87 "tbyte") operand, used only by long
	// double load/store.
	WTByte Width = 10
	// WNone denotes an operand with no natural width prefix (e.g. an
	// effective address used by lea).
	WNone Width = 0
)

// Operand is the sum type every Emitter method accepts: a register, a
// memory reference, an immediate, or a label/symbol reference.
type Operand struct {
	kind  operandKind
	reg   reg.Reg
	width Width

	base   reg.Reg
	index  reg.Reg
	hasIdx bool
	scale  int8
	disp   int64
	ripRel bool

	imm int64

	label string
	// labelOffset is added to the label's resolved address, used for
	// "label+offset" immediates (spec.md §4.I template formatting).
	labelOffset int64

	// segment names a segment-register override ("fs", "gs"), used only
	// by thread-local-storage addressing.
	segment string
}

type operandKind uint8

const (
	kindReg operandKind = iota
	kindMem
	kindImm
	kindLabel
)

// Reg builds a register operand of the given width.
func Reg(r reg.Reg, w Width) Operand { return Operand{kind: kindReg, reg: r, width: w} }

// Mem builds a [base + disp] memory operand.
func Mem(base reg.Reg, disp int64, w Width) Operand {
	return Operand{kind: kindMem, base: base, disp: disp, width: w}
}

// MemIndexed builds a [base + index*scale + disp] memory operand (scale
// in {1,2,4,8}).
func MemIndexed(base, index reg.Reg, scale int8, disp int64, w Width) Operand {
	return Operand{kind: kindMem, base: base, index: index, hasIdx: true, scale: scale, disp: disp, width: w}
}

// MemRIP builds a RIP-relative reference to a label (globals, string
// literals, rodata constants).
func MemRIP(label string, w Width) Operand {
	return Operand{kind: kindMem, label: label, ripRel: true, width: w}
}

// MemSegment builds a segment-override memory operand, seg:[disp] (e.g.
// fs:[0] for thread-local-storage base access).
func MemSegment(seg string, disp int64, w Width) Operand {
	return Operand{kind: kindMem, segment: seg, disp: disp, width: w}
}

// Imm builds an immediate operand.
func Imm(v int64) Operand { return Operand{kind: kindImm, imm: v} }

// LabelRef builds a code-address operand referring to a label (branch
// targets, lea of a function/local, jump table entries). offset is added
// to the resolved address (used by inline-asm "label+offset" immediates).
func LabelRef(label string, offset int64) Operand {
	return Operand{kind: kindLabel, label: label, labelOffset: offset}
}

func (o Operand) Kind() string {
	switch o.kind {
	case kindReg:
		return "reg"
	case kindMem:
		return "mem"
	case kindImm:
		return "imm"
	case kindLabel:
		return "label"
	default:
		return "?"
	}
}

func (o Operand) Reg() (reg.Reg, Width)      { return o.reg, o.width }
func (o Operand) MemParts() (base, index reg.Reg, hasIndex bool, scale int8, disp int64, rip bool, label string, w Width) {
	return o.base, o.index, o.hasIdx, o.scale, o.disp, o.ripRel, o.label, o.width
}
func (o Operand) ImmValue() int64              { return o.imm }
func (o Operand) LabelValue() (string, int64) { return o.label, o.labelOffset }
func (o Operand) Segment() string              { return o.segment }

// Label identifies an assembly label position, either a function/block
// label or a synthesized trampoline/constant label.
type Label string

// Emitter is the operation vocabulary every other component drives.
// Implementations are syntax-aware (AT&T vs Intel, prefixed vs
// unprefixed) and own the textual rendering entirely; this module never
// formats a mnemonic string itself.
type Emitter interface {
	// Instr emits one instruction: a mnemonic plus zero or more operands
	// in the order a reader of Intel-syntax assembly would expect
	// (destination first); an Intel-syntax Emitter reorders for AT&T
	// rendering internally if AT&T is selected.
	Instr(mnemonic string, operands ...Operand)

	// Label emits a label definition at the current position.
	Label(l Label)

	// Comment emits a non-semantic comment (debug builds only; safe to
	// no-op).
	Comment(format string, args ...any)

	// Raw emits pre-formatted text verbatim, one logical line. It exists
	// solely for GNU-style inline assembly template bodies (internal/
	// inlineasm): those arrive already written in the target's assembler
	// dialect by the C source's author and substituted operand-by-operand,
	// so they cannot be decomposed into Instr's mnemonic+operand
	// vocabulary the way every other component's output can.
	Raw(text string)
}
