package module

import (
	"errors"
	"fmt"

	"github.com/rlch/convexgen"
)

// MergeWarning represents a non-fatal issue detected during merge.
type MergeWarning struct {
	Module  string
	Code    string // e.g., "empty-module"
	Message string
}

// MergeError represents a fatal error during merge.
type MergeError struct {
	Span    convexgen.Span
	Path    string
	Code    string // e.g., "duplicate-module"
	Message string
	Cause   error
}

func (e *MergeError) Error() string {
	if e.Span.Start.Line > 0 {
		return fmt.Sprintf("%s at %s:%d:%d: %s", e.Code, e.Path, e.Span.Start.Line, e.Span.Start.Column, e.Message)
	}

	return fmt.Sprintf("%s at %s: %s", e.Code, e.Path, e.Message)
}

func (e *MergeError) Unwrap() error {
	return e.Cause
}

// MergeModules registers the functions of every module in a new registry
// bound to schema. Two files resolving to the same module name (users.ts and
// users.js) are an error, as is any function the registry rejects. Modules
// without functions produce a warning.
func MergeModules(schema *convexgen.Schema, modules []*Module) (*convexgen.Registry, []MergeWarning, error) {
	registry := convexgen.NewRegistry(schema)

	var (
		warnings []MergeWarning
		errs     []error
	)

	byName := make(map[string]*Module, len(modules))

	for _, mod := range modules {
		if existing, ok := byName[mod.Name]; ok {
			errs = append(errs, &MergeError{
				Path:    mod.Path,
				Code:    "duplicate-module",
				Message: fmt.Sprintf("module %q is also defined by %s", mod.Name, existing.Path),
			})

			continue
		}

		byName[mod.Name] = mod

		if len(mod.Functions) == 0 {
			warnings = append(warnings, MergeWarning{
				Module:  mod.Name,
				Code:    "empty-module",
				Message: fmt.Sprintf("module %q exports no functions", mod.Name),
			})

			continue
		}

		for _, fn := range mod.Functions {
			if err := registry.Register(fn); err != nil {
				code := "invalid-function"

				var dup *convexgen.DuplicateFunctionError
				if errors.As(err, &dup) {
					code = "duplicate-function"
				}

				errs = append(errs, &MergeError{
					Span:    fn.Span,
					Path:    mod.Path,
					Code:    code,
					Message: err.Error(),
					Cause:   err,
				})
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, warnings, err
	}

	return registry, warnings, nil
}
