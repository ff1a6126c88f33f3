package inlineasm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kefirc/amd64cg/internal/asmfmt"
	"github.com/kefirc/amd64cg/internal/ir"
	"github.com/kefirc/amd64cg/internal/kerr"
	"github.com/kefirc/amd64cg/internal/reg"
)

// isIdentChar reports whether r can appear in a template identifier —
// the same character class a C-style lexer would accept.
func isIdentChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// scanIdentifierRun returns the end index of the maximal run of
// identifier characters starting at start.
func scanIdentifierRun(s string, start int) int {
	i := start
	for i < len(s) && isIdentChar(s[i]) {
		i++
	}
	return i
}

// longestMatch finds the longest prefix of s[start:runEnd] that is a key
// of any of the given candidate sets, trying the full run first and
// shortening one character at a time — spec.md §4.I testable property 7:
// given names {"a", "ab"}, input "ab..." matches "ab", not "a".
func longestMatch(s string, start, runEnd int, sets ...map[string]bool) (string, int, bool) {
	for length := runEnd - start; length > 0; length-- {
		candidate := s[start : start+length]
		for _, set := range sets {
			if set[candidate] {
				return candidate, start + length, true
			}
		}
	}
	return "", start, false
}

// Format scans the fragment's template string and renders it into a
// single textual assembly block, substituting each operand or jump-target
// reference per its allocation (spec.md §4.I step 4). It does not itself
// know the target syntax dialect (AT&T vs Intel) — like every other
// component it renders through the width/register vocabulary only, in a
// minimal canonical spelling, since the syntax-aware textual formatter is
// out of scope; a real deployment's Emitter.Raw implementation is
// expected to already receive text in its own dialect from a
// syntax-matched operand renderer upstream of this package in a fuller
// build.
func Format(c *Context) (string, error) {
	paramNames := make(map[string]bool, len(c.Fragment.Parameters))
	for _, p := range c.Fragment.Parameters {
		paramNames[p.Name] = true
	}
	jumpNames := make(map[string]bool, len(c.Fragment.JumpTargets))
	for name := range c.Fragment.JumpTargets {
		jumpNames[name] = true
	}
	literalNames := make(map[string]bool, len(c.Fragment.Literals))
	for name := range c.Fragment.Literals {
		literalNames[name] = true
	}

	template := c.Fragment.Template
	var sb strings.Builder
	i := 0
	for i < len(template) {
		if template[i] != '%' {
			sb.WriteByte(template[i])
			i++
			continue
		}
		i++
		if i >= len(template) {
			return "", kerr.New(kerr.InvalidState, "inline assembly template ends with a dangling %%")
		}
		switch template[i] {
		case '%', '{', '|', '}':
			sb.WriteByte(template[i])
			i++

		case '=':
			sb.WriteString(strconv.Itoa(c.instanceID))
			i++

		case 'l':
			i++
			runEnd := scanIdentifierRun(template, i)
			name, next, ok := longestMatch(template, i, runEnd, jumpNames)
			if !ok {
				return "", kerr.New(kerr.NotFound, "inline assembly template references unknown jump target at offset %d", i)
			}
			sb.WriteString(string(c.trampolineLabel(name)))
			i = next

		case 'b', 'w', 'd', 'q':
			widthChar := template[i]
			i++
			runEnd := scanIdentifierRun(template, i)
			name, next, ok := longestMatch(template, i, runEnd, paramNames)
			if !ok {
				return "", kerr.New(kerr.NotFound, "inline assembly template references unknown parameter at offset %d", i)
			}
			text, err := c.renderParameter(name, overrideWidth(widthChar))
			if err != nil {
				return "", err
			}
			sb.WriteString(text)
			i = next

		default:
			runEnd := scanIdentifierRun(template, i)
			name, next, ok := longestMatch(template, i, runEnd, paramNames, jumpNames, literalNames)
			if !ok {
				return "", kerr.New(kerr.NotFound, "inline assembly template references unknown identifier at offset %d", i)
			}
			switch {
			case literalNames[name]:
				sb.WriteString("$" + c.Fragment.Literals[name])
			case jumpNames[name]:
				sb.WriteString(string(c.trampolineLabel(name)))
			default:
				text, err := c.renderParameter(name, nil)
				if err != nil {
					return "", err
				}
				sb.WriteString(text)
			}
			i = next
		}
	}
	return sb.String(), nil
}

func overrideWidth(ch byte) *asmfmt.Width {
	var w asmfmt.Width
	switch ch {
	case 'b':
		w = asmfmt.W8
	case 'w':
		w = asmfmt.W16
	case 'd':
		w = asmfmt.W32
	case 'q':
		w = asmfmt.W64
	}
	return &w
}

// registerText renders r in the canonical substitution spelling. w is
// accepted for symmetry with sizePrefix's memory-operand rendering but
// unused here: this canonical rendering names registers by their 64-bit
// identity regardless of the requested width, since reg.Reg carries no
// distinct sub-register constants to project onto (see reg.Reg's doc).
func registerText(r reg.Reg, _ asmfmt.Width) string {
	return fmt.Sprintf("%%%s", r.String())
}

func sizePrefix(w asmfmt.Width) string {
	switch w {
	case asmfmt.W8:
		return "byte ptr "
	case asmfmt.W16:
		return "word ptr "
	case asmfmt.W32:
		return "dword ptr "
	case asmfmt.W64:
		return "qword ptr "
	case asmfmt.WTByte:
		return "tbyte ptr "
	default:
		return ""
	}
}

// renderParameter renders the already-allocated parameter name's
// substitution text, honouring an explicit %b/%w/%d/%q width override
// when present.
func (c *Context) renderParameter(name string, override *asmfmt.Width) (string, error) {
	idx, param := c.paramByName(name)
	if param == nil {
		return "", kerr.New(kerr.NotFound, "inline assembly parameter %q not found", name)
	}
	entry := &c.parameterAllocation[idx]

	if param.Constraint == ir.ConstraintImmediate {
		if text, ok := c.Fragment.Literals[name]; ok {
			return "$" + text, nil
		}
		return "", kerr.New(kerr.NotSupported, "inline assembly immediate parameter %q has no backing literal", name)
	}

	switch entry.Allocation {
	case AllocationRegister:
		w := asmfmt.W64
		if override != nil {
			w = *override
		} else if matched, err := MatchRegisterToSize(entry.Size); err == nil {
			w = matched
		}
		return registerText(entry.Reg, w), nil

	case AllocationRegisterIndirect:
		prefix := ""
		if override != nil {
			prefix = sizePrefix(*override)
		} else if entry.Kind == ParameterAggregate && paramIsLongDouble(entry) {
			prefix = sizePrefix(asmfmt.WTByte)
		}
		return fmt.Sprintf("%s[%s]", prefix, entry.Reg.String()), nil

	case AllocationStack:
		off := c.layout.inputParameterOffset + int64(entry.StackIndex)*qword
		return fmt.Sprintf("[rsp + %d]", off), nil

	default:
		return "", kerr.New(kerr.InvalidState, "inline assembly parameter %q has no allocation", name)
	}
}

func paramIsLongDouble(entry *ParameterAllocation) bool {
	return entry.Size == 16
}

// trampolineLabel returns the jump trampoline label for name, creating it
// on first reference — spec.md §4.I step 4/7: "%l<identifier> ... creates
// the trampoline label on first reference".
func (c *Context) trampolineLabel(name string) asmfmt.Label {
	if l, ok := c.trampolines[name]; ok {
		return l
	}
	l := asmfmt.Label(fmt.Sprintf(".L%s_asm%d_%s", c.Func.Name, c.instanceID, name))
	c.trampolines[name] = l
	return l
}
