// Package config holds the backend's external configuration object
// (spec.md §6, External Interfaces). It is an immutable value threaded
// into internal/codegen.NewTranslator and read-only from that point on.
package config

// Syntax selects the assembly text dialect the external Emitter renders
// operands in. The backend core never branches on Syntax itself — it is
// passed through so the Emitter implementation (out of scope here, per
// spec.md §1) can pick a rendering.
type Syntax int

const (
	SyntaxIntelPrefix Syntax = iota
	SyntaxIntelNoPrefix
	SyntaxATT
)

func (s Syntax) String() string {
	switch s {
	case SyntaxIntelPrefix:
		return "x86_64-intel_prefix"
	case SyntaxIntelNoPrefix:
		return "x86_64-intel_noprefix"
	case SyntaxATT:
		return "x86_64-att"
	default:
		return "unknown"
	}
}

// Config is the configuration object consumed by the backend (spec.md §6).
type Config struct {
	Syntax Syntax

	// EmulatedTLS selects the emulated-TLS thread-local access scheme
	// (__emutls_v/__emutls_t descriptors) over native TLS relocations.
	EmulatedTLS bool

	// PositionIndependentCode selects the general-dynamic TLS model and
	// PIC-safe addressing for globals where relevant.
	PositionIndependentCode bool

	// OmitFramePointer is carried for the module driver but not read by
	// the backend core: every function still gets the push/mov rbp
	// prologue and rbp-relative frame addressing whatever its value, and
	// setting it raises no error.
	OmitFramePointer bool

	// DebugInfo enables DWARF emission by the (out-of-scope) module
	// driver; the backend core only needs to know whether to retain
	// source-location annotations on emitted instructions for the driver
	// to consume later.
	DebugInfo bool

	// PipelineSpec is a comma-separated list of pass names understood by
	// the (out-of-scope) module driver. The backend core never interprets
	// it; it is carried through untouched for the driver's benefit.
	PipelineSpec string

	// RuntimeFunctionGeneratorMode, when true, suppresses the
	// __kefir_text_section_begin/_end wrapper labels the module driver
	// would otherwise emit around .text, because the function currently
	// being compiled *is* one of the runtime helper functions.
	RuntimeFunctionGeneratorMode bool
}

// Default returns the configuration used when none is supplied: Intel
// syntax with a prefix, native TLS, non-PIC, frame pointers retained, no
// debug info.
func Default() Config {
	return Config{Syntax: SyntaxIntelPrefix}
}
