// Package errors provides structured error types for the rcheap module.
//
// Errors are categorized by Phase (where in the cell lifecycle the error
// occurred) and Kind (error category). The Error type includes context:
// element path, shape description, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseConstruct, errors.KindConstructFailed).
//		Path("elem[3]").
//		Shape("seq<u64, 5>").
//		Detail("element move failed").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.AllocationFailed(1024, 8, cause)
//	err := errors.ConstructFailed(3, cause)
//
// All errors implement the standard error interface and support errors.Is/As.
// Matching with errors.Is compares Phase and Kind, so callers can
// distinguish "the allocator refused" from "the value failed to move in"
// without string inspection.
package errors
