package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the cell lifecycle the error occurred
type Phase string

const (
	PhaseAlloc     Phase = "alloc"     // block allocation
	PhaseConstruct Phase = "construct" // moving a value into a block
	PhaseCoerce    Phase = "coerce"    // shape reinterpretation
	PhaseMemory    Phase = "memory"    // raw memory access
)

// Kind categorizes the error
type Kind string

const (
	KindAllocation      Kind = "allocation"
	KindConstructFailed Kind = "construct_failed"
	KindShapeMismatch   Kind = "shape_mismatch"
	KindOverflow        Kind = "overflow"
	KindOutOfBounds     Kind = "out_of_bounds"
	KindInvalidInput    Kind = "invalid_input"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Shape  string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Shape != "" {
		b.WriteString(": shape ")
		b.WriteString(e.Shape)
	}

	if e.Detail != "" {
		if e.Shape != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the element path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Shape sets the shape description
func (b *Builder) Shape(s string) *Builder {
	b.err.Shape = s
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// AllocationFailed creates an allocation failure error
func AllocationFailed(size, align uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindAllocation,
		Cause:  cause,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// ConstructFailed creates a value construction failure error.
// Memory was reserved and has been released; nothing leaks.
func ConstructFailed(index uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseConstruct,
		Kind:   KindConstructFailed,
		Cause:  cause,
		Path:   []string{fmt.Sprintf("elem[%d]", index)},
		Detail: "value construction failed, block released",
		Value:  index,
	}
}

// ShapeMismatch creates a coercion layout mismatch error
func ShapeMismatch(want, got string) *Error {
	return &Error{
		Phase:  PhaseCoerce,
		Kind:   KindShapeMismatch,
		Shape:  got,
		Detail: fmt.Sprintf("block layout %s does not match requested shape", want),
	}
}

// CounterOverflow creates a counter overflow error. It is used as a
// panic value, never returned: wrapping a counter would destroy a live
// value while handles still reference it.
func CounterOverflow(counter string, addr uint32) *Error {
	return &Error{
		Phase:  PhaseMemory,
		Kind:   KindOverflow,
		Detail: fmt.Sprintf("%s counter overflow on block 0x%x", counter, addr),
		Value:  addr,
	}
}

// OutOfBounds creates an out of bounds memory access error
func OutOfBounds(offset, length uint32) *Error {
	return &Error{
		Phase:  PhaseMemory,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("access at offset %d (length %d) out of bounds", offset, length),
		Value:  offset,
	}
}

// InvalidInput creates an invalid argument error
func InvalidInput(what string) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindInvalidInput,
		Detail: what,
	}
}
