// Package manager provides the generic record manager: create, read, update,
// delete, flat equality lookups and filtered reads over any persistence port.
//
// A Manager[T] is built once per entity type. Construction asks the port for
// the entity descriptor and the catalog of related descriptors, and derives
// the join skeleton the planner compiles filters into. Each operation is
// synchronous, passes its context to the port, and commits immediately after
// a single mutation.
//
// Field assignment is entity-specific and supplied through a Binder[T].
// RecordBinder covers the generic ir.Record case.
//
// Failures are reported as *Error values carrying a Kind. Use errors.Is with
// ErrNotFound, ErrUnknownField, ErrInvalidDateRange or ErrInvalidDirective
// to classify them. Port errors pass through wrapped and are never retried.
package manager
