package codegen

import (
	"fmt"

	"github.com/kefirc/amd64cg/internal/asmfmt"
)

// CtorPool collects module-scope constructor/destructor function
// symbols in declaration order, for SUPPLEMENTED FEATURE #6:
// kefir_codegen_opt_amd64_sysv_storage keeps these as insertion-ordered
// lists rather than sets specifically so .init_array/.fini_array run in
// declaration order, unlike every other symbol table this backend
// touches (which tolerate arbitrary order). Like ConstantPool, a single
// pool is shared across every function translated into one module and
// emitted once by the module-level driver.
type CtorPool struct {
	ctors []string
	dtors []string
}

// NewCtorPool builds an empty pool.
func NewCtorPool() *CtorPool { return &CtorPool{} }

// AddConstructor records symbol as running at module load, after any
// constructor already recorded.
func (p *CtorPool) AddConstructor(symbol string) { p.ctors = append(p.ctors, symbol) }

// AddDestructor records symbol as running at module unload, after any
// destructor already recorded.
func (p *CtorPool) AddDestructor(symbol string) { p.dtors = append(p.dtors, symbol) }

// Emit writes the .init_array and .fini_array sections, one pointer per
// recorded symbol, each section in the exact order symbols were added.
func (p *CtorPool) Emit(emit asmfmt.Emitter) {
	emitPointerArray(emit, ".init_array", p.ctors)
	emitPointerArray(emit, ".fini_array", p.dtors)
}

func emitPointerArray(emit asmfmt.Emitter, section string, symbols []string) {
	if len(symbols) == 0 {
		return
	}
	emit.Raw(fmt.Sprintf(".section %s,\"aw\"", section))
	for _, sym := range symbols {
		emit.Raw(fmt.Sprintf(".quad %s", sym))
	}
}
