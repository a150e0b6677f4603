package graphom

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrConfigNotFound is returned when no .graphom.yaml is found.
	ErrConfigNotFound = errors.New("graphom: no .graphom.yaml found")

	// ErrConfiguration is returned when descriptors are invalid or a
	// filter/order references an alias the view does not declare.
	ErrConfiguration = errors.New("graphom: invalid configuration")

	// ErrQueryCompilation is returned when a condition tree cannot be
	// compiled: a nested filter targets a non-view fragment, or two
	// subtypes register the same composite label key.
	ErrQueryCompilation = errors.New("graphom: query compilation failed")

	// ErrNotFound is returned by Load when no node matches the identity.
	ErrNotFound = errors.New("graphom: not found")

	// ErrCardinality is returned when a single-object operation receives
	// more rows than it can represent.
	ErrCardinality = errors.New("graphom: unexpected row count")

	// ErrDeserialization is returned when a row cannot be materialized
	// into a typed object.
	ErrDeserialization = errors.New("graphom: cannot materialize row")
)

// ExecutionError wraps a failure reported by the statement executor,
// annotated with the statement and parameters that produced it.
type ExecutionError struct {
	Statement  string
	Parameters map[string]any
	Err        error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("graphom: statement execution failed: %v (statement: %q)", e.Err, e.Statement)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
