package codegen

import (
	"fmt"

	"github.com/kefirc/amd64cg/internal/asmfmt"
)

// bufferedOp is one recorded asmfmt.Emitter call, tagged by which method
// produced it.
type bufferedOp struct {
	kind     opKind
	mnemonic string
	operands []asmfmt.Operand
	label    asmfmt.Label
	text     string
}

type opKind uint8

const (
	opInstr opKind = iota
	opLabel
	opComment
	opRaw
)

// buffer is an asmfmt.Emitter that records every call instead of handing
// it to a real formatter. Translator uses it to translate a whole
// function body once before Map.FrameSize is known (the temporary area's
// high-water mark only settles once storage.Transform has finished
// spilling cycle-breaking values for every instruction), then replays the
// recording onto the real Emitter once the frame size is fixed and the
// real prologue has been written.
//
// This plays the same role the teacher's internal/asm buffers a function
// body's machine code before the branch-relocation pass fixes up jump
// displacements — here the thing fixed up after the fact is the frame
// size the prologue's sub rsp depends on, not a jump offset, but the
// shape is the same: translate once, finalize a value only the whole
// body's translation determines, then commit.
type buffer struct {
	ops []bufferedOp
}

func (b *buffer) Instr(mnemonic string, operands ...asmfmt.Operand) {
	b.ops = append(b.ops, bufferedOp{kind: opInstr, mnemonic: mnemonic, operands: operands})
}

func (b *buffer) Label(l asmfmt.Label) {
	b.ops = append(b.ops, bufferedOp{kind: opLabel, label: l})
}

func (b *buffer) Comment(format string, args ...any) {
	b.ops = append(b.ops, bufferedOp{kind: opComment, text: fmt.Sprintf(format, args...)})
}

func (b *buffer) Raw(text string) {
	b.ops = append(b.ops, bufferedOp{kind: opRaw, text: text})
}

// replay re-issues every recorded call against dst, in order.
func (b *buffer) replay(dst asmfmt.Emitter) {
	for _, op := range b.ops {
		switch op.kind {
		case opInstr:
			dst.Instr(op.mnemonic, op.operands...)
		case opLabel:
			dst.Label(op.label)
		case opComment:
			dst.Comment("%s", op.text)
		case opRaw:
			dst.Raw(op.text)
		}
	}
}
