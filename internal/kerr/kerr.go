// Package kerr defines the discriminated error result shared by every
// backend component, per the error handling design.
package kerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind discriminates the reason a component operation failed.
type Kind int

const (
	// InvalidParameter marks a nil argument or a shape-violating input
	// (wrong-width register, mismatched type, etc).
	InvalidParameter Kind = iota + 1
	// InvalidState marks an internal invariant violation: unexpected
	// opcode, missing IR symbol, wrong allocation class.
	InvalidState
	// InvalidRequest marks a legal API used illegally: release out of
	// order, double borrow, a register wider than 8 bytes.
	InvalidRequest
	// NotFound marks an optional lookup miss.
	NotFound
	// NotSupported marks a feature the backend does not implement.
	NotSupported
	// OutOfSpace marks scratch register or stack exhaustion.
	OutOfSpace
	// MemAllocFailure marks an allocator failure in the host environment.
	MemAllocFailure
	// IteratorEnd is a sentinel for iteration; it must never surface
	// outside the component that raised it.
	IteratorEnd
)

func (k Kind) String() string {
	switch k {
	case InvalidParameter:
		return "InvalidParameter"
	case InvalidState:
		return "InvalidState"
	case InvalidRequest:
		return "InvalidRequest"
	case NotFound:
		return "NotFound"
	case NotSupported:
		return "NotSupported"
	case OutOfSpace:
		return "OutOfSpace"
	case MemAllocFailure:
		return "MemAllocFailure"
	case IteratorEnd:
		return "IteratorEnd"
	default:
		return "UnknownKind"
	}
}

// Error is the diagnostic payload attached to every component failure: a
// kind plus a short formatted message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// New builds an Error of the given kind with a printf-style message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and message to an existing cause, preserving the
// causal chain the way errors.Wrap does for the rest of the module.
func Wrap(cause error, kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: errors.WithStack(cause)}
}

// Is reports whether err is a *Error of the given kind, looking through
// any wrapping applied by errors.Wrap along the way.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		err = errors.Unwrap(err)
	}
	return e != nil && e.Kind == kind
}
