// Package analysis provides semantic analysis for schema and function module files.
package analysis

import (
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/rlch/convexgen"
)

// DiagnosticSeverity follows the LSP severity numbering.
type DiagnosticSeverity int

// Severity levels.
const (
	SeverityError DiagnosticSeverity = iota + 1
	SeverityWarning
	SeverityInformation
	SeverityHint
)

func (s DiagnosticSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformation:
		return "info"
	case SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

// Diagnostic is a problem found in a file.
type Diagnostic struct {
	Span     convexgen.Span
	Severity DiagnosticSeverity
	Message  string
	Code     string
	Source   string
}

// diagnosticSource is the Source of every diagnostic produced here.
const diagnosticSource = "convexgen"

// AnalyzedFile holds the result of analyzing a single file.
type AnalyzedFile struct {
	Path string

	// File is the parsed AST. It is nil when the file did not parse.
	File       *convexgen.File
	ParseError error

	// Comments are the comments of the file, used for hints on disabled fields.
	Comments []convexgen.Trivia

	Symbols     *SymbolTable
	Diagnostics []Diagnostic

	// KnownTables are tables declared elsewhere (the project schema) that
	// function modules may reference.
	KnownTables map[string]bool
}

// HasErrors reports whether any diagnostic has error severity.
func (f *AnalyzedFile) HasErrors() bool {
	for _, d := range f.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}

	return false
}

func (f *AnalyzedFile) report(rule *Rule, node convexgen.Node, msg string) {
	f.Diagnostics = append(f.Diagnostics, Diagnostic{
		Span:     node.Span(),
		Severity: rule.Severity,
		Message:  msg,
		Code:     rule.Name,
		Source:   diagnosticSource,
	})
}

// Analyzer performs semantic analysis on schema and function module files.
type Analyzer struct {
	// schema supplies the tables function modules may reference. Can be nil.
	schema *convexgen.Schema

	// rules is the set of semantic checks to run.
	rules []*Rule
}

// NewAnalyzer creates a new analyzer with default rules. schema may be nil when
// analyzing the schema file itself.
func NewAnalyzer(schema *convexgen.Schema) *Analyzer {
	return &Analyzer{
		schema: schema,
		rules:  DefaultRules(),
	}
}

// NewAnalyzerWithRules creates an analyzer with custom rules.
func NewAnalyzerWithRules(schema *convexgen.Schema, rules []*Rule) *Analyzer {
	return &Analyzer{
		schema: schema,
		rules:  rules,
	}
}

// SetSchema sets the project schema after initialization.
func (a *Analyzer) SetSchema(schema *convexgen.Schema) {
	a.schema = schema
}

// Analyze parses and analyzes a file. Parse errors become diagnostics; rules
// run on every file that parsed.
func (a *Analyzer) Analyze(path string, content []byte) *AnalyzedFile {
	result := &AnalyzedFile{
		Path:        path,
		Diagnostics: []Diagnostic{},
		Symbols:     NewSymbolTable(),
		KnownTables: make(map[string]bool),
	}

	if a.schema != nil {
		for _, name := range a.schema.TableNames() {
			result.KnownTables[name] = true
		}
	}

	comments, err := convexgen.CollectComments(path, content)
	if err == nil {
		result.Comments = comments
	}

	file, err := convexgen.ParseFile(path, content)
	if err != nil {
		result.ParseError = err
		result.Diagnostics = append(result.Diagnostics, parseErrorToDiagnostic(err))

		return result
	}

	result.File = file
	buildSymbols(result)

	for _, rule := range a.rules {
		rule.Run(result)
	}

	return result
}

// parseErrorToDiagnostic converts a parse or lex error to a diagnostic.
func parseErrorToDiagnostic(err error) Diagnostic {
	span := convexgen.Span{}
	msg := err.Error()

	type positioned interface {
		Position() lexer.Position
	}

	type participleError interface {
		positioned
		Message() string
	}

	switch pe := err.(type) {
	case participleError:
		pos := pe.Position()
		span = convexgen.Span{Start: pos, End: pos}
		msg = pe.Message()
	case positioned:
		pos := pe.Position()
		span = convexgen.Span{Start: pos, End: pos}
	}

	return Diagnostic{
		Span:     span,
		Severity: SeverityError,
		Message:  msg,
		Code:     "parse-error",
		Source:   diagnosticSource,
	}
}
