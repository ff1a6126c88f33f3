package inlineasm

import (
	"strings"

	"github.com/kefirc/amd64cg/internal/kerr"
	"github.com/kefirc/amd64cg/internal/reg"
)

// clobberAliases maps every sub-register spelling a clobber list can
// name to its 64-bit enclosing identity — reg.Reg already collapses
// width into a separate dimension (asmfmt.Width), so "eax", "ax", "al"
// and "rax" all resolve to the same reg.RAX.
var clobberAliases = map[string]reg.Reg{
	"rax": reg.RAX, "eax": reg.RAX, "ax": reg.RAX, "al": reg.RAX, "ah": reg.RAX,
	"rcx": reg.RCX, "ecx": reg.RCX, "cx": reg.RCX, "cl": reg.RCX, "ch": reg.RCX,
	"rdx": reg.RDX, "edx": reg.RDX, "dx": reg.RDX, "dl": reg.RDX, "dh": reg.RDX,
	"rbx": reg.RBX, "ebx": reg.RBX, "bx": reg.RBX, "bl": reg.RBX, "bh": reg.RBX,
	"rsi": reg.RSI, "esi": reg.RSI, "si": reg.RSI, "sil": reg.RSI,
	"rdi": reg.RDI, "edi": reg.RDI, "di": reg.RDI, "dil": reg.RDI,
	"r8": reg.R8, "r8d": reg.R8, "r8w": reg.R8, "r8b": reg.R8,
	"r9": reg.R9, "r9d": reg.R9, "r9w": reg.R9, "r9b": reg.R9,
	"r10": reg.R10, "r10d": reg.R10, "r10w": reg.R10, "r10b": reg.R10,
	"r11": reg.R11, "r11d": reg.R11, "r11w": reg.R11, "r11b": reg.R11,
	"r12": reg.R12, "r12d": reg.R12, "r12w": reg.R12, "r12b": reg.R12,
	"r13": reg.R13, "r13d": reg.R13, "r13w": reg.R13, "r13b": reg.R13,
	"r14": reg.R14, "r14d": reg.R14, "r14w": reg.R14, "r14b": reg.R14,
	"r15": reg.R15, "r15d": reg.R15, "r15w": reg.R15, "r15b": reg.R15,
	"xmm0": reg.XMM0, "xmm1": reg.XMM1, "xmm2": reg.XMM2, "xmm3": reg.XMM3,
	"xmm4": reg.XMM4, "xmm5": reg.XMM5, "xmm6": reg.XMM6, "xmm7": reg.XMM7,
	"xmm8": reg.XMM8, "xmm9": reg.XMM9, "xmm10": reg.XMM10, "xmm11": reg.XMM11,
	"xmm12": reg.XMM12, "xmm13": reg.XMM13, "xmm14": reg.XMM14, "xmm15": reg.XMM15,
}

// MarkClobbers populates the dirty-registers set and dirty_cc flag from
// the fragment's clobber list. "cc" sets dirty_cc; a clobber of the stack
// or frame pointer (any spelling of rsp/rbp) is rejected with
// InvalidRequest; unrecognised names (segment registers, "memory",
// scheduler hints and the like) are silently ignored rather than rejected
// (spec.md §4.I step 1).
func MarkClobbers(c *Context) error {
	for _, name := range c.Fragment.Clobbers {
		normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "%"))
		if normalized == "cc" {
			c.dirtyCC = true
			continue
		}
		switch normalized {
		case "rsp", "esp", "sp", "spl", "rbp", "ebp", "bp", "bpl":
			return kerr.New(kerr.InvalidRequest, "inline assembly cannot clobber %s", normalized)
		}
		if r, ok := clobberAliases[normalized]; ok {
			c.dirtyRegisters[r] = true
		}
	}
	return nil
}
