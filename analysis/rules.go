package analysis

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rlch/convexgen"
)

// Rule represents a semantic analysis check.
// Inspired by go/analysis.Analyzer pattern.
type Rule struct {
	// Name is a short identifier for the rule (used in diagnostic codes).
	Name string

	// Doc is a brief description of what the rule checks.
	Doc string

	// Severity is the default severity for diagnostics from this rule.
	Severity DiagnosticSeverity

	// Run executes the rule and appends any diagnostics to the file.
	Run func(f *AnalyzedFile)
}

// DefaultRules returns all built-in semantic analysis rules.
func DefaultRules() []*Rule {
	return []*Rule{
		// Error-level checks.
		duplicateTableRule,
		duplicateFieldRule,
		duplicateIndexRule,
		unknownIndexFieldRule,
		unresolvedReferenceRule,
		unknownValidatorRule,
		validatorArgumentsRule,
		misplacedOptionalRule,
		reservedNameRule,
		duplicateFunctionRule,
		unknownFunctionKindRule,

		// Warning-level checks.
		missingHandlerRule,
		emptyTableRule,

		// Hint-level checks.
		missingArgsValidatorRule,
		disabledFieldRule,
	}
}

// RuleByName returns the default rule with the given name.
func RuleByName(name string) (*Rule, bool) {
	for _, r := range DefaultRules() {
		if r.Name == name {
			return r, true
		}
	}

	return nil, false
}

// knownValidators are the v.* builders the declaration model understands.
var knownValidators = map[string]bool{
	"string": true, "number": true, "float64": true, "boolean": true, "null": true,
	"bytes": true, "id": true, "array": true, "object": true, "optional": true,
}

// ValidatorKinds returns the known v.* builder names, sorted.
func ValidatorKinds() []string {
	kinds := make([]string, 0, len(knownValidators))
	for k := range knownValidators {
		kinds = append(kinds, k)
	}

	slices.Sort(kinds)

	return kinds
}

// ----------------------------------------------------------------------------
// Rule: duplicate-table
// ----------------------------------------------------------------------------

var duplicateTableRule = &Rule{
	Name:     "duplicate-table",
	Doc:      "Reports tables declared more than once in defineSchema.",
	Severity: SeverityError,
}

func checkDuplicateTables(f *AnalyzedFile) {
	call := f.File.Schema()
	if call == nil {
		return
	}

	seen := make(map[string]bool)

	for _, decl := range call.Tables {
		if seen[decl.Name] {
			f.report(duplicateTableRule, decl, fmt.Sprintf("duplicate table %q", decl.Name))
		}

		seen[decl.Name] = true
	}
}

// ----------------------------------------------------------------------------
// Rule: duplicate-field
// ----------------------------------------------------------------------------

var duplicateFieldRule = &Rule{
	Name:     "duplicate-field",
	Doc:      "Reports repeated field names in a table, object or argument list.",
	Severity: SeverityError,
}

func checkDuplicateFields(f *AnalyzedFile) {
	walkObjects(f.File, func(obj *convexgen.ObjectLiteral, path string) {
		seen := make(map[string]bool)

		for _, p := range obj.Properties {
			if seen[p.Name] {
				f.report(duplicateFieldRule, p, fmt.Sprintf("duplicate field %q", joinPath(path, p.Name)))
			}

			seen[p.Name] = true
		}
	})
}

// ----------------------------------------------------------------------------
// Rule: duplicate-index
// ----------------------------------------------------------------------------

var duplicateIndexRule = &Rule{
	Name:     "duplicate-index",
	Doc:      "Reports index names used twice on one table.",
	Severity: SeverityError,
}

func checkDuplicateIndexes(f *AnalyzedFile) {
	forEachTable(f.File, func(decl *convexgen.TableDecl) {
		seen := make(map[string]bool)

		for _, idx := range decl.Indexes {
			if seen[idx.Name] {
				f.report(duplicateIndexRule, idx, fmt.Sprintf("duplicate index %q on table %q", idx.Name, decl.Name))
			}

			seen[idx.Name] = true
		}
	})
}

// ----------------------------------------------------------------------------
// Rule: unknown-index-field
// ----------------------------------------------------------------------------

var unknownIndexFieldRule = &Rule{
	Name:     "unknown-index-field",
	Doc:      "Reports index fields that the table does not declare.",
	Severity: SeverityError,
}

func checkUnknownIndexFields(f *AnalyzedFile) {
	forEachTable(f.File, func(decl *convexgen.TableDecl) {
		for _, idx := range decl.Indexes {
			if len(idx.Fields) == 0 {
				f.report(unknownIndexFieldRule, idx, fmt.Sprintf("index %q on table %q has no fields", idx.Name, decl.Name))
			}

			for _, field := range idx.Fields {
				if !resolveFieldPath(decl.Fields, field) {
					f.report(unknownIndexFieldRule, idx,
						fmt.Sprintf("index %q on table %q references unknown field %q", idx.Name, decl.Name, field))
				}
			}
		}
	})
}

// resolveFieldPath reports whether a dotted path names a declared field,
// descending through v.object and v.optional(v.object) validators.
func resolveFieldPath(obj *convexgen.ObjectLiteral, path string) bool {
	parts := strings.Split(path, ".")

	for i, part := range parts {
		if obj == nil {
			return false
		}

		var found *convexgen.Property

		for _, p := range obj.Properties {
			if p.Name == part {
				found = p

				break
			}
		}

		if found == nil {
			return false
		}

		if i == len(parts)-1 {
			return true
		}

		v := found.Value
		if v.Kind == "optional" && v.Elem != nil {
			v = v.Elem
		}

		obj = nil
		if v.Kind == "object" {
			obj = v.Object
		}
	}

	return false
}

// ----------------------------------------------------------------------------
// Rule: unresolved-reference
// ----------------------------------------------------------------------------

var unresolvedReferenceRule = &Rule{
	Name:     "unresolved-reference",
	Doc:      "Reports v.id references to tables that are not declared.",
	Severity: SeverityError,
}

func checkUnresolvedReferences(f *AnalyzedFile) {
	// A function module analyzed without a schema has nothing to resolve against.
	if f.File.Schema() == nil && len(f.KnownTables) == 0 {
		return
	}

	walkValidators(f.File, func(v *convexgen.Validator, path string, _ site) {
		if v.Kind == "id" && v.Table != nil && !f.TableDefined(*v.Table) {
			f.report(unresolvedReferenceRule, v, fmt.Sprintf("%s references unknown table %q", path, *v.Table))
		}
	})
}

// ----------------------------------------------------------------------------
// Rule: unknown-validator
// ----------------------------------------------------------------------------

var unknownValidatorRule = &Rule{
	Name:     "unknown-validator",
	Doc:      "Reports validator calls outside the supported v.* set.",
	Severity: SeverityError,
}

func checkUnknownValidators(f *AnalyzedFile) {
	walkValidators(f.File, func(v *convexgen.Validator, path string, _ site) {
		if v.Namespace != "v" || !knownValidators[v.Kind] {
			f.report(unknownValidatorRule, v, fmt.Sprintf("%s: unsupported validator %s.%s", path, v.Namespace, v.Kind))
		}
	})
}

// ----------------------------------------------------------------------------
// Rule: validator-arguments
// ----------------------------------------------------------------------------

var validatorArgumentsRule = &Rule{
	Name:     "validator-arguments",
	Doc:      "Reports validator calls with missing or unexpected arguments.",
	Severity: SeverityError,
}

func checkValidatorArguments(f *AnalyzedFile) {
	walkValidators(f.File, func(v *convexgen.Validator, path string, _ site) {
		if v.Namespace != "v" {
			return
		}

		var want string

		switch v.Kind {
		case "id":
			if v.Table == nil {
				want = "a table name"
			}
		case "array", "optional":
			if v.Elem == nil {
				want = "a validator"
			}
		case "object":
			if v.Object == nil {
				want = "a field map"
			}
		case "string", "number", "float64", "boolean", "null", "bytes":
			if v.Table != nil || v.Object != nil || v.Elem != nil {
				f.report(validatorArgumentsRule, v, fmt.Sprintf("%s: v.%s() takes no arguments", path, v.Kind))
			}
		}

		if want != "" {
			f.report(validatorArgumentsRule, v, fmt.Sprintf("%s: v.%s needs %s", path, v.Kind, want))
		}
	})
}

// ----------------------------------------------------------------------------
// Rule: misplaced-optional
// ----------------------------------------------------------------------------

var misplacedOptionalRule = &Rule{
	Name:     "misplaced-optional",
	Doc:      "Reports v.optional used anywhere but directly on a field.",
	Severity: SeverityError,
}

func checkMisplacedOptional(f *AnalyzedFile) {
	walkValidators(f.File, func(v *convexgen.Validator, path string, at site) {
		if v.Namespace == "v" && v.Kind == "optional" && at != siteField {
			f.report(misplacedOptionalRule, v, fmt.Sprintf("%s: v.optional is only allowed on fields", path))
		}
	})
}

// ----------------------------------------------------------------------------
// Rule: reserved-name
// ----------------------------------------------------------------------------

var reservedNameRule = &Rule{
	Name:     "reserved-name",
	Doc:      "Reports table, field and index names reserved for the system.",
	Severity: SeverityError,
}

func checkReservedNames(f *AnalyzedFile) {
	forEachTable(f.File, func(decl *convexgen.TableDecl) {
		if err := convexgen.CheckTableName(decl.Name); err != nil {
			f.report(reservedNameRule, decl, fmt.Sprintf("invalid table name %q", decl.Name))
		}

		for _, idx := range decl.Indexes {
			if err := convexgen.CheckIndexName(idx.Name); err != nil {
				f.report(reservedNameRule, idx, fmt.Sprintf("invalid index name %q", idx.Name))
			}
		}
	})

	walkObjects(f.File, func(obj *convexgen.ObjectLiteral, path string) {
		for _, p := range obj.Properties {
			if err := convexgen.CheckFieldName(p.Name); err != nil {
				f.report(reservedNameRule, p, fmt.Sprintf("invalid field name %q", joinPath(path, p.Name)))
			}
		}
	})
}

// ----------------------------------------------------------------------------
// Rule: duplicate-function
// ----------------------------------------------------------------------------

var duplicateFunctionRule = &Rule{
	Name:     "duplicate-function",
	Doc:      "Reports functions exported twice under the same name.",
	Severity: SeverityError,
}

func checkDuplicateFunctions(f *AnalyzedFile) {
	seen := make(map[string]bool)

	for _, reg := range f.File.Registrations() {
		if seen[reg.Name] {
			f.report(duplicateFunctionRule, reg.Registration, fmt.Sprintf("duplicate function %q", reg.Name))
		}

		seen[reg.Name] = true
	}
}

// ----------------------------------------------------------------------------
// Rule: unknown-function-kind
// ----------------------------------------------------------------------------

var unknownFunctionKindRule = &Rule{
	Name:     "unknown-function-kind",
	Doc:      "Reports registrations that are not query, mutation or action builders.",
	Severity: SeverityError,
}

func checkUnknownFunctionKinds(f *AnalyzedFile) {
	for _, reg := range f.File.Registrations() {
		if !convexgen.FunctionKind(reg.Registration.Kind).Valid() {
			f.report(unknownFunctionKindRule, reg.Registration,
				fmt.Sprintf("%s: unknown function kind %q", reg.Name, reg.Registration.Kind))
		}
	}
}

// ----------------------------------------------------------------------------
// Rule: missing-handler
// ----------------------------------------------------------------------------

var missingHandlerRule = &Rule{
	Name:     "missing-handler",
	Doc:      "Warns about registrations without a handler.",
	Severity: SeverityWarning,
}

func checkMissingHandlers(f *AnalyzedFile) {
	for _, reg := range f.File.Registrations() {
		if reg.Registration.Handler() == nil {
			f.report(missingHandlerRule, reg.Registration, fmt.Sprintf("function %q has no handler", reg.Name))
		}
	}
}

// ----------------------------------------------------------------------------
// Rule: empty-table
// ----------------------------------------------------------------------------

var emptyTableRule = &Rule{
	Name:     "empty-table",
	Doc:      "Warns about tables without fields.",
	Severity: SeverityWarning,
}

func checkEmptyTables(f *AnalyzedFile) {
	forEachTable(f.File, func(decl *convexgen.TableDecl) {
		if decl.Fields == nil || len(decl.Fields.Properties) == 0 {
			f.report(emptyTableRule, decl, fmt.Sprintf("table %q declares no fields", decl.Name))
		}
	})
}

// ----------------------------------------------------------------------------
// Rule: missing-args-validator
// ----------------------------------------------------------------------------

var missingArgsValidatorRule = &Rule{
	Name:     "missing-args-validator",
	Doc:      "Suggests declaring args on public functions.",
	Severity: SeverityHint,
}

func checkMissingArgsValidators(f *AnalyzedFile) {
	for _, reg := range f.File.Registrations() {
		kind := convexgen.FunctionKind(reg.Registration.Kind)
		if kind.Valid() && !kind.Internal() && reg.Registration.Args() == nil {
			f.report(missingArgsValidatorRule, reg.Registration,
				fmt.Sprintf("public function %q accepts unvalidated arguments", reg.Name))
		}
	}
}

// ----------------------------------------------------------------------------
// Rule: disabled-field
// ----------------------------------------------------------------------------

var disabledFieldRule = &Rule{
	Name:     "disabled-field",
	Doc:      "Points out field declarations that are commented out.",
	Severity: SeverityHint,
}

func checkDisabledFields(f *AnalyzedFile) {
	for _, d := range convexgen.DisabledFields(f.Comments) {
		f.Diagnostics = append(f.Diagnostics, Diagnostic{
			Span:     d.Span,
			Severity: disabledFieldRule.Severity,
			Message:  fmt.Sprintf("field %q (%s) is commented out", d.Name, d.Validator),
			Code:     disabledFieldRule.Name,
			Source:   diagnosticSource,
		})
	}
}

//nolint:gochecknoinits // Run funcs reference their rules, so they are bound after declaration.
func init() {
	duplicateTableRule.Run = checkDuplicateTables
	duplicateFieldRule.Run = checkDuplicateFields
	duplicateIndexRule.Run = checkDuplicateIndexes
	unknownIndexFieldRule.Run = checkUnknownIndexFields
	unresolvedReferenceRule.Run = checkUnresolvedReferences
	unknownValidatorRule.Run = checkUnknownValidators
	validatorArgumentsRule.Run = checkValidatorArguments
	misplacedOptionalRule.Run = checkMisplacedOptional
	reservedNameRule.Run = checkReservedNames
	duplicateFunctionRule.Run = checkDuplicateFunctions
	unknownFunctionKindRule.Run = checkUnknownFunctionKinds
	missingHandlerRule.Run = checkMissingHandlers
	emptyTableRule.Run = checkEmptyTables
	missingArgsValidatorRule.Run = checkMissingArgsValidators
	disabledFieldRule.Run = checkDisabledFields
}
