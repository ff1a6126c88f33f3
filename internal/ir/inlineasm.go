package ir

// ConstraintClass is the GNU-style operand constraint class declared on
// an inline-assembly parameter (spec.md §1.3, §4.I).
type ConstraintClass uint8

const (
	ConstraintRegister ConstraintClass = iota
	ConstraintRegisterMemory
	ConstraintMemory
	ConstraintImmediate
)

// ParamIOClass is the read/write direction declared on an inline-assembly
// parameter.
type ParamIOClass uint8

const (
	ParamRead ParamIOClass = iota
	ParamReadStore
	ParamLoad
	ParamStore
	ParamLoadStore
)

// AsmParam is one declared inline-assembly parameter, as parsed from the
// IR's GNU-style constraint string — this is the externally-owned input
// to component I's allocation step (internal/inlineasm), not the
// allocation result itself.
type AsmParam struct {
	Name       string
	Constraint ConstraintClass
	IO         ParamIOClass
	Value      Value // argument SSA reference (input half, or the lvalue for store/load-store)
	ReadValue  Value // separate read-half reference for read-store parameters
	Type       Type
}

// InlineAssemblyFragment is the parsed GNU-style inline-assembly
// construct an OpInlineAssembly instruction refers to: a template string,
// a clobber list, declared parameters, and named jump targets reachable
// from the template via %l<name>.
type InlineAssemblyFragment struct {
	Template     string
	Clobbers     []string // register names, plus the literal "cc" for flags
	Parameters   []AsmParam
	JumpTargets  map[string]BlockID
	Literals     map[string]string // string-literal immediates referenced as %<identifier>, keyed by identifier
}
