package analysis

import (
	"github.com/rlch/convexgen"
)

// SymbolKind identifies the type of symbol.
type SymbolKind int

// Symbol kinds.
const (
	SymbolKindTable SymbolKind = iota
	SymbolKindFunction
	SymbolKindImport
)

// Symbol is a named declaration in a file.
type Symbol struct {
	Name string
	Span convexgen.Span
	Kind SymbolKind
}

// TableSymbol is a table declared in a schema file.
type TableSymbol struct {
	Symbol

	Node *convexgen.TableDecl
}

// FunctionSymbol is an exported registration in a function module.
type FunctionSymbol struct {
	Symbol

	// Kind is the registration kind as written, e.g. "query".
	Kind string
	Node *convexgen.Registration
}

// ImportSymbol is a name brought in by an import statement.
type ImportSymbol struct {
	Symbol

	From string
}

// SymbolTable holds the declarations of a file. The first declaration wins
// when a name repeats; duplicates are reported by rules.
type SymbolTable struct {
	Tables    map[string]*TableSymbol
	Functions map[string]*FunctionSymbol
	Imports   map[string]*ImportSymbol
}

// NewSymbolTable creates an empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		Tables:    make(map[string]*TableSymbol),
		Functions: make(map[string]*FunctionSymbol),
		Imports:   make(map[string]*ImportSymbol),
	}
}

// TableDefined reports whether name is declared in the file or known from the
// project schema.
func (f *AnalyzedFile) TableDefined(name string) bool {
	if _, ok := f.Symbols.Tables[name]; ok {
		return true
	}

	return f.KnownTables[name]
}

// buildSymbols extracts all symbol definitions from the AST.
func buildSymbols(f *AnalyzedFile) {
	if f.File == nil {
		return
	}

	for _, st := range f.File.Statements {
		if st.Import == nil {
			continue
		}

		names := append([]string(nil), st.Import.Names...)
		if st.Import.Default != nil {
			names = append(names, *st.Import.Default)
		}

		for _, name := range names {
			if _, ok := f.Symbols.Imports[name]; ok {
				continue
			}

			f.Symbols.Imports[name] = &ImportSymbol{
				Symbol: Symbol{Name: name, Span: st.Import.Span(), Kind: SymbolKindImport},
				From:   st.Import.From,
			}
		}
	}

	if call := f.File.Schema(); call != nil {
		for _, decl := range call.Tables {
			if _, ok := f.Symbols.Tables[decl.Name]; ok {
				continue
			}

			f.Symbols.Tables[decl.Name] = &TableSymbol{
				Symbol: Symbol{Name: decl.Name, Span: decl.Span(), Kind: SymbolKindTable},
				Node:   decl,
			}
		}
	}

	for _, reg := range f.File.Registrations() {
		if _, ok := f.Symbols.Functions[reg.Name]; ok {
			continue
		}

		f.Symbols.Functions[reg.Name] = &FunctionSymbol{
			Symbol: Symbol{Name: reg.Name, Span: reg.Registration.Span(), Kind: SymbolKindFunction},
			Kind:   reg.Registration.Kind,
			Node:   reg.Registration,
		}
	}
}
