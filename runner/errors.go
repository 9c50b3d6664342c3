package runner

import "errors"

// Sentinel errors for the runner package.
var (
	// ErrMaxFailures is returned when the max failure limit is reached.
	ErrMaxFailures = errors.New("runner: max failures reached")

	// ErrNoInserter is returned when no inserter is configured.
	ErrNoInserter = errors.New("runner: no inserter configured")

	// ErrUnknownRef is returned when a document references an ID that no
	// earlier case saved.
	ErrUnknownRef = errors.New("runner: unknown $id reference")

	// ErrInvalidFixture is returned for malformed fixture files.
	ErrInvalidFixture = errors.New("runner: invalid fixture")

	// ErrInvalidFilter is returned for a case filter that is not a valid
	// regular expression.
	ErrInvalidFilter = errors.New("runner: invalid filter")

	// Test errors for use in unit tests.
	errTestStop = errors.New("test: stop")
)
