// Package errors provides structured error types for jlvalue.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the heap address involved, a field path, the Go and
// runtime type names, and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindOutOfBounds).
//		Path("array", "dims").
//		Value(addr).
//		Detail("ndims %d exceeds profile limit", n).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.OutOfBounds(errors.PhaseBarrier, path, 10, 5)
//	err := errors.MemoryFault(errors.PhaseDecode, addr, cause)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
