package convexgen

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors.
var (
	// ErrConfigNotFound is returned when no .convexgen.yaml is found.
	ErrConfigNotFound = errors.New("convexgen: no .convexgen.yaml found")

	// ErrInvalidName is returned for empty or reserved table, field and index names.
	ErrInvalidName = errors.New("convexgen: invalid name")

	// ErrSealed is returned when a table is modified after its schema was built.
	ErrSealed = errors.New("convexgen: schema already built")

	// ErrUnknownTable is returned when a table is not part of the schema.
	ErrUnknownTable = errors.New("convexgen: unknown table")

	// ErrUnknownFunction is returned when a function path is not registered.
	ErrUnknownFunction = errors.New("convexgen: unknown function")

	// ErrNoHandler is returned when a registered function has no handler bound.
	ErrNoHandler = errors.New("convexgen: function has no handler")

	// ErrUnknownValidator is returned for v.* calls outside the supported set.
	ErrUnknownValidator = errors.New("convexgen: unknown validator")

	// ErrMisplacedOptional is returned when v.optional is used anywhere but
	// directly on an object, table or argument field.
	ErrMisplacedOptional = errors.New("convexgen: v.optional is only allowed on fields")

	// ErrInvalidID is returned when a string is not a well-formed document ID.
	ErrInvalidID = errors.New("convexgen: invalid document id")

	// ErrNoSchema is returned when a file has no defineSchema export.
	ErrNoSchema = errors.New("convexgen: file does not export a schema")
)

// DuplicateTableError is returned when a table name is used twice in one schema.
type DuplicateTableError struct {
	Table string
}

func (e *DuplicateTableError) Error() string {
	return fmt.Sprintf("duplicate table %q", e.Table)
}

// DuplicateFieldError is returned when a field name repeats within one table,
// object or argument list. Path locates the repeated field.
type DuplicateFieldError struct {
	Path string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("duplicate field %q", e.Path)
}

// DuplicateIndexError is returned when an index name repeats within a table.
type DuplicateIndexError struct {
	Table string
	Index string
}

func (e *DuplicateIndexError) Error() string {
	return fmt.Sprintf("duplicate index %q on table %q", e.Index, e.Table)
}

// UnknownIndexFieldError is returned when an index covers a field its table lacks.
type UnknownIndexFieldError struct {
	Table string
	Index string
	Field string
}

func (e *UnknownIndexFieldError) Error() string {
	return fmt.Sprintf("index %q on table %q references unknown field %q", e.Index, e.Table, e.Field)
}

// UnresolvedReferenceError is returned when an id<T> names a table that is not
// in the schema.
type UnresolvedReferenceError struct {
	Path  string
	Table string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("%s references unknown table %q", e.Path, e.Table)
}

// DuplicateFunctionError is returned when two functions share a path.
type DuplicateFunctionError struct {
	Path string
}

func (e *DuplicateFunctionError) Error() string {
	return fmt.Sprintf("duplicate function %q", e.Path)
}

// DeclError attaches a source position to an error found in a declaration file.
type DeclError struct {
	Span Span
	Err  error
}

func (e *DeclError) Error() string {
	return e.Span.Start.String() + ": " + e.Err.Error()
}

func (e *DeclError) Unwrap() error {
	return e.Err
}

func declErrorf(node Node, err error) error {
	return &DeclError{Span: node.Span(), Err: err}
}

// Issue is a single problem found while validating a value.
type Issue struct {
	// Path is the dotted location of the value, with [i] for array elements.
	Path     string
	Expected string
	Actual   string
	Message  string
}

func (i Issue) String() string {
	var b strings.Builder

	if i.Path != "" {
		b.WriteString(i.Path)
		b.WriteString(": ")
	}

	b.WriteString(i.Message)

	if i.Expected != "" || i.Actual != "" {
		fmt.Fprintf(&b, " (expected %s, got %s)", i.Expected, i.Actual)
	}

	return b.String()
}

// ValidationError reports every issue found in the first offending top-level
// field of a document or argument record.
type ValidationError struct {
	// Table is the validated table, or the function path for arguments.
	Table  string
	Issues []Issue
}

func (e *ValidationError) Error() string {
	var b strings.Builder

	b.WriteString("validation failed")

	if e.Table != "" {
		fmt.Fprintf(&b, " for %s", e.Table)
	}

	for idx, issue := range e.Issues {
		if idx == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}

		b.WriteString(issue.String())
	}

	return b.String()
}

// Paths returns the path of every issue.
func (e *ValidationError) Paths() []string {
	out := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		out[i] = issue.Path
	}

	return out
}
