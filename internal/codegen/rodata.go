package codegen

import (
	"fmt"

	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/isel"
)

// ConstantPool collects the module-level read-only data a function body's
// translation can only request by label, never emit inline: string
// literals (SUPPLEMENTED FEATURE #5) and the shared SSE sign-bit masks
// internal/isel/floatops.go's Float32/64Neg lowering references by name.
// The module-level driver (out of scope here) is responsible for calling
// Emit once, after every function has been translated and every label
// request has landed, and before closing the output.
type ConstantPool struct {
	order []pooledString
	index map[string]asmfmt.Label
	seq   int
}

type pooledString struct {
	label asmfmt.Label
	data  []byte
	width int
}

// NewConstantPool builds an empty pool.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{index: make(map[string]asmfmt.Label)}
}

// InternString records data (a string literal's raw encoded bytes) at
// the given per-element width (1 for multibyte, 2 for UTF-16, 4 for
// UTF-32 — SUPPLEMENTED FEATURE #5) and returns the label the literal
// will be emitted under. Interning the same (data, width) pair twice
// returns the same label rather than duplicating the data.
func (p *ConstantPool) InternString(data []byte, width int) asmfmt.Label {
	key := fmt.Sprintf("%d:%x", width, data)
	if l, ok := p.index[key]; ok {
		return l
	}
	p.seq++
	label := asmfmt.Label(fmt.Sprintf(".Lkfcg_str%d", p.seq))
	p.index[key] = label
	p.order = append(p.order, pooledString{label: label, data: append([]byte(nil), data...), width: width})
	return label
}

// Emit writes the shared float-negation sign masks followed by every
// interned string literal, in interning order, each aligned to its own
// element width rather than a single pool-wide alignment.
func (p *ConstantPool) Emit(emit asmfmt.Emitter) {
	emit.Comment("shared sign-bit masks for Float32/64Neg (xorps/xorpd)")
	emit.Label(asmfmt.Label(isel.F32SignMask))
	emit.Raw(".quad 0x8000000080000000")
	emit.Raw(".quad 0x8000000080000000")
	emit.Label(asmfmt.Label(isel.F64SignMask))
	emit.Raw(".quad 0x8000000000000000")
	emit.Raw(".quad 0x8000000000000000")

	for _, s := range p.order {
		emit.Raw(fmt.Sprintf(".align %d", s.width))
		emit.Label(s.label)
		emitWidthChunks(emit, s.data, s.width)
	}
}

// emitWidthChunks writes data as a sequence of pseudo-op lines sized to
// width bytes per element (.byte/.word/.long), the textual rodata
// equivalent of the per-element-width layout component A's real emitter
// owns formatting for; this package only decides what must be emitted,
// never how a directive is spelled in the target syntax, so it goes
// through Raw exactly as inline assembly template bodies do.
func emitWidthChunks(emit asmfmt.Emitter, data []byte, width int) {
	directive := map[int]string{1: ".byte", 2: ".word", 4: ".long"}[width]
	if directive == "" {
		directive = ".byte"
		width = 1
	}
	for i := 0; i < len(data); i += width {
		end := i + width
		if end > len(data) {
			end = len(data)
		}
		var v uint64
		for j := end - 1; j >= i; j-- {
			v = v<<8 | uint64(data[j])
		}
		emit.Raw(fmt.Sprintf("%s 0x%0*x", directive, width*2, v))
	}
}
