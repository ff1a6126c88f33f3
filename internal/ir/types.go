package ir

// Type is an IR type identifier, opaque beyond the handful of predicates
// the backend needs (width, floatness, aggregate-ness). Full type
// definitions live in the externally-owned type table; the backend never
// constructs a Type.
type Type struct {
	id       uint32
	kind     TypeKind
	size     uint32
	align    uint32
	eightbytes []EightbyteClass // for aggregates, one class per 8-byte chunk
}

// TypeKind classifies a Type for selection/ABI purposes.
type TypeKind uint8

const (
	TypeInvalid TypeKind = iota
	TypeI8
	TypeI16
	TypeI32
	TypeI64
	TypePtr
	TypeF32
	TypeF64
	TypeLongDouble
	TypeAggregate
)

func (t Type) Kind() TypeKind { return t.kind }
func (t Type) Size() uint32   { return t.size }
func (t Type) Align() uint32  { return t.align }

func (t Type) IsFloat() bool { return t.kind == TypeF32 || t.kind == TypeF64 }
func (t Type) IsLongDouble() bool { return t.kind == TypeLongDouble }
func (t Type) IsAggregate() bool  { return t.kind == TypeAggregate }
func (t Type) IsInteger() bool {
	switch t.kind {
	case TypeI8, TypeI16, TypeI32, TypeI64, TypePtr:
		return true
	default:
		return false
	}
}

// Bits returns the scalar bit width, 0 for aggregates/long double.
func (t Type) Bits() uint32 {
	switch t.kind {
	case TypeI8:
		return 8
	case TypeI16:
		return 16
	case TypeI32, TypeF32:
		return 32
	case TypeI64, TypePtr, TypeF64:
		return 64
	default:
		return 0
	}
}

// Eightbytes returns the System V classification of each 8-byte chunk of
// an aggregate type. Scalars report a single chunk matching their class.
func (t Type) Eightbytes() []EightbyteClass {
	if len(t.eightbytes) > 0 {
		return t.eightbytes
	}
	switch t.kind {
	case TypeF32, TypeF64:
		return []EightbyteClass{EightbyteSSE}
	case TypeLongDouble:
		return []EightbyteClass{EightbyteX87, EightbyteX87Up}
	default:
		return []EightbyteClass{EightbyteInteger}
	}
}

// NewScalarType constructs a scalar Type. Exposed for tests and for the
// frontend fixture loader used by cmd/kefir-amd64-dump; production IR
// comes from the externally-owned type table.
func NewScalarType(kind TypeKind) Type {
	t := Type{kind: kind}
	t.size = t.Bits() / 8
	switch kind {
	case TypeLongDouble:
		t.size, t.align = 16, 16
	default:
		t.align = t.size
	}
	return t
}

// NewAggregateType constructs an aggregate Type from its System V
// eightbyte classification.
func NewAggregateType(size, align uint32, classes []EightbyteClass) Type {
	return Type{kind: TypeAggregate, size: size, align: align, eightbytes: classes}
}

// EightbyteClass is the System V AMD64 classification of one 8-byte
// aggregate chunk.
type EightbyteClass uint8

const (
	EightbyteInteger EightbyteClass = iota
	EightbyteSSE
	EightbyteX87
	EightbyteX87Up
	EightbyteMemory
	EightbyteNone
)

// Value is an opaque SSA value identifier (an operand or result of some
// Instruction). It carries no information on its own; dereference via
// Function.ValueType.
type Value uint32

// ValueInvalid denotes the absence of a value, e.g. a call with no result.
const ValueInvalid Value = 0

func (v Value) Valid() bool { return v != ValueInvalid }

// BlockID identifies a basic block within a Function.
type BlockID uint32

// FuncRef identifies a callee, resolved externally to a symbol name and
// Signature.
type FuncRef uint32

// SignatureID identifies a function signature in the externally-owned
// signature table.
type SignatureID uint32

// Signature describes a callee's argument/return types for the calling
// convention engine (component H).
type Signature struct {
	ID        SignatureID
	Params    []Type
	Results   []Type
	Variadic  bool
	// FixedArgCount is the count of named (non-variadic) parameters,
	// needed to compute va_list's initial gp_offset/fp_offset.
	FixedArgCount int
}
