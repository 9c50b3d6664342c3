package lsp

import (
	"context"
	"fmt"
	"strings"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/convexgen"
	"github.com/rlch/convexgen/analysis"
)

// Hover handles textDocument/hover requests.
func (s *Server) Hover(_ context.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	defer s.traceHandler("Hover")()
	s.logger.Debug("Hover",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Uint32("line", params.Position.Line),
		zap.Uint32("character", params.Position.Character))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok || doc.Analysis == nil || doc.Analysis.File == nil {
		return nil, nil //nolint:nilnil
	}

	pos := analysis.PositionToLexer(params.Position.Line, params.Position.Character)

	loc := analysis.Locate(doc.Analysis, pos)
	if loc == nil {
		return nil, nil //nolint:nilnil
	}

	content, rng := s.hoverContent(doc, loc)
	if content == "" {
		return nil, nil //nolint:nilnil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: content,
		},
		Range: rng,
	}, nil
}

// hoverContent picks the innermost declaration at the location.
func (s *Server) hoverContent(doc *Document, loc *analysis.Location) (string, *protocol.Range) {
	switch {
	case loc.Validator != nil && loc.Validator.Kind == "id" && loc.Validator.Table != nil && loc.Property == nil:
		return s.hoverReference(*loc.Validator.Table), rangePtr(spanToRange(loc.Validator.Span()))
	case loc.Property != nil:
		return s.hoverProperty(loc), rangePtr(spanToRange(loc.Property.Span()))
	case loc.Index != nil:
		return hoverIndex(loc.Table, loc.Index), rangePtr(spanToRange(loc.Index.Span()))
	case loc.Table != nil:
		return hoverTable(loc.Table), rangePtr(spanToRange(loc.Table.Span()))
	case loc.Function != nil:
		return s.hoverFunction(doc, loc.Function), rangePtr(spanToRange(loc.Function.Span))
	}

	return "", nil
}

func hoverTable(decl *convexgen.TableDecl) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**Table** `%s`\n\n", decl.Name)
	b.WriteString("```ts\n")
	fmt.Fprintf(&b, "%s: %s\n", convexgen.FieldID, "id<"+decl.Name+">")
	fmt.Fprintf(&b, "%s: number\n", convexgen.FieldCreationTime)

	if decl.Fields != nil {
		for _, p := range decl.Fields.Properties {
			b.WriteString(propertyString(p) + "\n")
		}
	}

	b.WriteString("```")

	if len(decl.Indexes) > 0 {
		b.WriteString("\n\nIndexes:")

		for _, idx := range decl.Indexes {
			fmt.Fprintf(&b, "\n- `%s` (%s)", idx.Name, strings.Join(idx.Fields, ", "))
		}
	}

	return b.String()
}

func hoverIndex(decl *convexgen.TableDecl, idx *convexgen.IndexDecl) string {
	fields := make([]string, len(idx.Fields))
	for i, f := range idx.Fields {
		fields[i] = "`" + f + "`"
	}

	return fmt.Sprintf("**Index** `%s` on `%s`\n\nFields: %s, then `%s`",
		idx.Name, decl.Name, strings.Join(fields, ", "), convexgen.FieldCreationTime)
}

func (s *Server) hoverProperty(loc *analysis.Location) string {
	kind := "Field"
	if loc.Function != nil {
		kind = "Argument"
	}

	out := fmt.Sprintf("**%s** `%s`\n\n```ts\n%s\n```", kind, loc.Path, propertyString(loc.Property))

	if ref := referencedTable(loc.Property.Value); ref != "" {
		out += "\n\n" + s.hoverReference(ref)
	}

	return out
}

// hoverReference describes the table an id validator points to.
func (s *Server) hoverReference(table string) string {
	schema := s.projectSchema()
	if schema == nil {
		return fmt.Sprintf("References table `%s`", table)
	}

	t, ok := schema.Table(table)
	if !ok {
		return fmt.Sprintf("References table `%s` (undefined)", table)
	}

	fields := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		fields[i] = f.String()
	}

	return fmt.Sprintf("References table `%s`\n\n```ts\n{ %s }\n```", table, strings.Join(fields, ", "))
}

func (s *Server) hoverFunction(doc *Document, fn *analysis.FunctionSymbol) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**%s** `%s:%s`", fn.Kind, s.moduleName(doc.Path), fn.Name)

	if convexgen.FunctionKind(fn.Kind).Internal() {
		b.WriteString(" (internal)")
	}

	if fn.Node == nil {
		return b.String()
	}

	if args := fn.Node.Args(); args != nil {
		b.WriteString("\n\n```ts\nargs: {")

		for i, p := range args.Properties {
			if i > 0 {
				b.WriteString(",")
			}

			b.WriteString(" " + propertyString(p))
		}

		b.WriteString(" }\n```")
	} else {
		b.WriteString("\n\nNo args validator: any arguments are accepted.")
	}

	if ret := fn.Node.Returns(); ret != nil {
		fmt.Fprintf(&b, "\n\nReturns `%s`", validatorType(ret))
	}

	return b.String()
}

func propertyString(p *convexgen.Property) string {
	if p.Value != nil && p.Value.Kind == "optional" {
		return p.Name + "?: " + validatorType(p.Value.Elem)
	}

	return p.Name + ": " + validatorType(p.Value)
}

// validatorType renders a validator in the same notation as convexgen.Type,
// without requiring the declaration to compile.
func validatorType(v *convexgen.Validator) string {
	if v == nil {
		return "unknown"
	}

	switch v.Kind {
	case "id":
		if v.Table == nil {
			return "id<?>"
		}

		return "id<" + *v.Table + ">"
	case "array":
		return "array<" + validatorType(v.Elem) + ">"
	case "optional":
		return validatorType(v.Elem) + "?"
	case "object":
		if v.Object == nil {
			return "object{}"
		}

		parts := make([]string, len(v.Object.Properties))
		for i, p := range v.Object.Properties {
			parts[i] = propertyString(p)
		}

		return "object{" + strings.Join(parts, ", ") + "}"
	case "float64":
		return "number"
	default:
		return v.Kind
	}
}

// referencedTable returns the table of the id validator inside v, looking
// through optional and array wrappers.
func referencedTable(v *convexgen.Validator) string {
	for v != nil {
		if v.Kind == "id" && v.Table != nil {
			return *v.Table
		}

		v = v.Elem
	}

	return ""
}
