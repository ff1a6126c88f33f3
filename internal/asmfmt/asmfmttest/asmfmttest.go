// Package asmfmttest provides a recording fake of asmfmt.Emitter for unit
// tests, the same role the teacher's instruction.String()-based log plays
// in machine_test.go's table-driven assertions.
package asmfmttest

import (
	"fmt"
	"strings"

	"github.com/kefirc/amd64cg/internal/asmfmt"
)

// Op is one recorded emission.
type Op struct {
	Mnemonic string
	Operands []string
	Label    string
	IsLabel  bool
}

func (o Op) String() string {
	if o.IsLabel {
		return o.Label + ":"
	}
	if len(o.Operands) == 0 {
		return o.Mnemonic
	}
	return o.Mnemonic + " " + strings.Join(o.Operands, ", ")
}

// Recorder is a fake Emitter that appends every call to Ops, formatting
// operands with a fixed, syntax-agnostic rendering good enough for
// assertions (real syntax rendering is the out-of-scope Emitter
// implementation's job).
type Recorder struct {
	Ops []Op
}

func (r *Recorder) Instr(mnemonic string, operands ...asmfmt.Operand) {
	strs := make([]string, len(operands))
	for i, o := range operands {
		strs[i] = formatOperand(o)
	}
	r.Ops = append(r.Ops, Op{Mnemonic: mnemonic, Operands: strs})
}

func (r *Recorder) Label(l asmfmt.Label) {
	r.Ops = append(r.Ops, Op{IsLabel: true, Label: string(l)})
}

func (r *Recorder) Comment(format string, args ...any) {
	r.Ops = append(r.Ops, Op{Mnemonic: "; " + fmt.Sprintf(format, args...)})
}

func (r *Recorder) Raw(text string) {
	r.Ops = append(r.Ops, Op{Mnemonic: text})
}

// Mnemonics returns just the mnemonic sequence, ignoring labels/comments
// — handy for asserting instruction order without operand detail.
func (r *Recorder) Mnemonics() []string {
	var out []string
	for _, op := range r.Ops {
		if op.IsLabel || strings.HasPrefix(op.Mnemonic, ";") {
			continue
		}
		out = append(out, op.Mnemonic)
	}
	return out
}

// String renders the whole recording as one mnemonic-per-line string, for
// golden-style assertions.
func (r *Recorder) String() string {
	var sb strings.Builder
	for _, op := range r.Ops {
		sb.WriteString(op.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

func formatOperand(o asmfmt.Operand) string {
	switch o.Kind() {
	case "reg":
		r, w := o.Reg()
		return fmt.Sprintf("%s:%d", r, w)
	case "mem":
		base, index, hasIdx, scale, disp, rip, label, _ := o.MemParts()
		if rip {
			return fmt.Sprintf("[rip+%s]", label)
		}
		if hasIdx {
			return fmt.Sprintf("[%s+%s*%d%+d]", base, index, scale, disp)
		}
		return fmt.Sprintf("[%s%+d]", base, disp)
	case "imm":
		return fmt.Sprintf("$%d", o.ImmValue())
	case "label":
		label, off := o.LabelValue()
		if off != 0 {
			return fmt.Sprintf("%s%+d", label, off)
		}
		return label
	default:
		return "?"
	}
}
