package analysis

import (
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/rlch/convexgen"
)

// PositionToLexer converts a 0-based LSP line and character to a 1-based
// lexer position.
func PositionToLexer(line, character uint32) lexer.Position {
	return lexer.Position{Line: int(line) + 1, Column: int(character) + 1}
}

// Location is the declaration context at a source position, from outermost to
// innermost. Fields that do not apply are nil.
type Location struct {
	Table    *convexgen.TableDecl
	Index    *convexgen.IndexDecl
	Function *FunctionSymbol

	// Property is the innermost field, argument or object property, and Path
	// its dotted path from the table or function.
	Property *convexgen.Property
	Path     string

	// Validator is the innermost v.* call.
	Validator *convexgen.Validator
}

// Locate returns the declaration context at pos, or nil when pos is outside
// every table and function.
func Locate(f *AnalyzedFile, pos lexer.Position) *Location {
	if f == nil || f.File == nil {
		return nil
	}

	var loc *Location

	forEachTable(f.File, func(decl *convexgen.TableDecl) {
		if loc != nil || !spanContains(decl.Span(), pos) {
			return
		}

		loc = &Location{Table: decl}

		for _, idx := range decl.Indexes {
			if spanContains(idx.Span(), pos) {
				loc.Index = idx
			}
		}

		locateObject(loc, decl.Fields, decl.Name, pos)
	})

	if loc != nil {
		return loc
	}

	for _, reg := range f.File.Registrations() {
		if !spanContains(reg.Registration.Span(), pos) {
			continue
		}

		loc = &Location{Function: f.Symbols.Functions[reg.Name]}

		locateObject(loc, reg.Registration.Args(), reg.Name, pos)

		if ret := reg.Registration.Returns(); ret != nil && spanContains(ret.Span(), pos) {
			loc.Path = reg.Name + ".returns"
			locateValidator(loc, ret, loc.Path, pos)
		}

		return loc
	}

	return nil
}

func locateObject(loc *Location, obj *convexgen.ObjectLiteral, base string, pos lexer.Position) {
	if obj == nil {
		return
	}

	for _, p := range obj.Properties {
		if !spanContains(p.Span(), pos) {
			continue
		}

		loc.Property = p
		loc.Path = joinPath(base, p.Name)
		locateValidator(loc, p.Value, loc.Path, pos)

		return
	}
}

func locateValidator(loc *Location, v *convexgen.Validator, path string, pos lexer.Position) {
	for v != nil && spanContains(v.Span(), pos) {
		loc.Validator = v

		if v.Object != nil {
			locateObject(loc, v.Object, path, pos)
			return
		}

		if v.Kind == "array" {
			path += "[]"
		}

		v = v.Elem
	}
}

// spanContains compares by line and column so positions built from editor
// coordinates, which carry no offset, can be tested.
func spanContains(span convexgen.Span, pos lexer.Position) bool {
	return !before(pos, span.Start) && before(pos, span.End)
}

func before(a, b lexer.Position) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}

	return a.Column < b.Column
}
