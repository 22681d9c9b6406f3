package storage

import "errors"

// Common storage errors
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSchemaViolation is returned when a row violates a persisted-schema
	// invariant. It indicates a defect in the caller, not bad external
	// input, and always aborts the enclosing transaction.
	ErrSchemaViolation = errors.New("schema violation")
)
