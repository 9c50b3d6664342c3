package lsp

import (
	"context"

	"go.lsp.dev/protocol"

	"github.com/rlch/convexgen"
)

// DocumentSymbols handles textDocument/documentSymbol requests. Tables list
// their fields and indexes; functions list their arguments.
func (s *Server) DocumentSymbols(_ context.Context, params *protocol.DocumentSymbolParams) ([]protocol.DocumentSymbol, error) {
	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	af := getSymbolsAnalysis(doc)
	if af == nil || af.File == nil {
		return nil, nil
	}

	var symbols []protocol.DocumentSymbol

	if call := af.File.Schema(); call != nil {
		for _, decl := range call.Tables {
			sym := newSymbol(decl.Name, "table", protocol.SymbolKindClass, decl)
			sym.Children = objectSymbols(decl.Fields, protocol.SymbolKindField)

			for _, idx := range decl.Indexes {
				sym.Children = append(sym.Children, newSymbol(idx.Name, "index", protocol.SymbolKindKey, idx))
			}

			symbols = append(symbols, sym)
		}
	}

	for _, reg := range af.File.Registrations() {
		sym := newSymbol(reg.Name, reg.Registration.Kind, protocol.SymbolKindFunction, reg.Registration)
		sym.Children = objectSymbols(reg.Registration.Args(), protocol.SymbolKindVariable)
		symbols = append(symbols, sym)
	}

	return symbols, nil
}

func objectSymbols(obj *convexgen.ObjectLiteral, kind protocol.SymbolKind) []protocol.DocumentSymbol {
	if obj == nil {
		return nil
	}

	symbols := make([]protocol.DocumentSymbol, 0, len(obj.Properties))

	for _, p := range obj.Properties {
		sym := newSymbol(p.Name, validatorType(p.Value), kind, p)

		for v := p.Value; v != nil; v = v.Elem {
			if v.Object != nil {
				sym.Children = objectSymbols(v.Object, protocol.SymbolKindField)
				break
			}
		}

		symbols = append(symbols, sym)
	}

	return symbols
}

func newSymbol(name, detail string, kind protocol.SymbolKind, n convexgen.Node) protocol.DocumentSymbol {
	rng := spanToRange(n.Span())

	return protocol.DocumentSymbol{
		Name:           name,
		Detail:         detail,
		Kind:           kind,
		Range:          rng,
		SelectionRange: rng,
	}
}
