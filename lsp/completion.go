package lsp

import (
	"context"
	"regexp"
	"slices"
	"strings"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/convexgen"
	"github.com/rlch/convexgen/analysis"
)

// Completion handles textDocument/completion requests.
func (s *Server) Completion(_ context.Context, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
	s.logger.Debug("Completion",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Uint32("line", params.Position.Line),
		zap.Uint32("character", params.Position.Character))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok {
		return nil, nil //nolint:nilnil
	}

	cc := buildCompletionContext(doc, params.Position)
	s.logger.Debug("Completion context",
		zap.String("kind", string(cc.Kind)),
		zap.String("prefix", cc.Prefix),
		zap.String("table", cc.Table))

	var items []protocol.CompletionItem

	switch cc.Kind {
	case CompletionKindNone:
	case CompletionKindValidator:
		items = completeValidators()
	case CompletionKindTable:
		items = s.completeTables(doc)
	case CompletionKindIndexField:
		items = s.completeIndexFields(doc, cc)
	case CompletionKindFunctionKind:
		items = completeFunctionKinds()
	}

	return &protocol.CompletionList{
		IsIncomplete: false,
		Items:        filterByPrefix(items, cc.Prefix),
	}, nil
}

// CompletionKind indicates what kind of completion is expected at a position.
type CompletionKind string

// Completion kinds.
const (
	CompletionKindNone         CompletionKind = "none"
	CompletionKindValidator    CompletionKind = "validator"
	CompletionKindTable        CompletionKind = "table"
	CompletionKindIndexField   CompletionKind = "index_field"
	CompletionKindFunctionKind CompletionKind = "function_kind"
)

// CompletionContext holds information about where completion was triggered.
type CompletionContext struct {
	Kind   CompletionKind
	Prefix string // Text being typed (for filtering)
	Table  string // Enclosing defineTable, for index fields
}

var (
	validatorRe    = regexp.MustCompile(`\bv\.(\w*)$`)
	tableRe        = regexp.MustCompile(`\bv\.id\(\s*["'](\w*)$`)
	indexFieldRe   = regexp.MustCompile(`\.index\(\s*["'][^"']*["']\s*,\s*\[[^\]]*["']([\w.]*)$`)
	functionKindRe = regexp.MustCompile(`export\s+(?:const\s+\w+\s*=|default)\s*(\w*)$`)
	tableDeclRe    = regexp.MustCompile(`["']?(\w+)["']?\s*:\s*defineTable\(`)
)

// buildCompletionContext matches the text before the cursor against the
// constructs that take completions. The source need not parse.
func buildCompletionContext(doc *Document, pos protocol.Position) *CompletionContext {
	cc := &CompletionContext{Kind: CompletionKindNone}
	line := linePrefix(doc.Content, pos)

	switch {
	case matchInto(tableRe, line, &cc.Prefix):
		cc.Kind = CompletionKindTable
	case matchInto(validatorRe, line, &cc.Prefix):
		cc.Kind = CompletionKindValidator
	case matchInto(indexFieldRe, line, &cc.Prefix):
		cc.Kind = CompletionKindIndexField
		cc.Table = enclosingTable(textBefore(doc.Content, pos))
	case matchInto(functionKindRe, line, &cc.Prefix):
		cc.Kind = CompletionKindFunctionKind
	}

	return cc
}

func matchInto(re *regexp.Regexp, text string, prefix *string) bool {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return false
	}

	*prefix = m[1]

	return true
}

// enclosingTable returns the last table declared before the cursor.
func enclosingTable(text string) string {
	matches := tableDeclRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return ""
	}

	return matches[len(matches)-1][1]
}

// textBefore returns the document content up to the cursor.
func textBefore(content string, pos protocol.Position) string {
	lines := strings.SplitAfter(content, "\n")
	if int(pos.Line) >= len(lines) {
		return content
	}

	return strings.Join(lines[:pos.Line], "") + linePrefix(content, pos)
}

func completeValidators() []protocol.CompletionItem {
	kinds := analysis.ValidatorKinds()
	items := make([]protocol.CompletionItem, 0, len(kinds))

	for _, kind := range kinds {
		items = append(items, protocol.CompletionItem{
			Label:      kind,
			Kind:       protocol.CompletionItemKindFunction,
			Detail:     "v." + kind + "()",
			InsertText: kind,
		})
	}

	return items
}

// completeTables offers the project's tables and those declared in the
// document itself.
func (s *Server) completeTables(doc *Document) []protocol.CompletionItem {
	var names []string

	if schema := s.projectSchema(); schema != nil {
		names = append(names, schema.TableNames()...)
	}

	// The document is usually mid-edit here, so scan its text rather than
	// relying on a parse.
	for _, m := range tableDeclRe.FindAllStringSubmatch(doc.Content, -1) {
		names = append(names, m[1])
	}

	slices.Sort(names)
	names = slices.Compact(names)

	items := make([]protocol.CompletionItem, 0, len(names))
	for _, name := range names {
		items = append(items, protocol.CompletionItem{
			Label:  name,
			Kind:   protocol.CompletionItemKindClass,
			Detail: "table",
		})
	}

	return items
}

// completeIndexFields offers the field paths of the enclosing table, preferring
// the declaration in the document over the project schema.
func (s *Server) completeIndexFields(doc *Document, cc *CompletionContext) []protocol.CompletionItem {
	if cc.Table == "" {
		return nil
	}

	var fields []*convexgen.Field

	if af := getSymbolsAnalysis(doc); af != nil && af.File != nil {
		if schema, err := convexgen.CompileSchema(af.File); err == nil {
			if t, ok := schema.Table(cc.Table); ok {
				fields = t.Fields
			}
		}
	}

	if fields == nil {
		if schema := s.projectSchema(); schema != nil {
			if t, ok := schema.Table(cc.Table); ok {
				fields = t.Fields
			}
		}
	}

	var items []protocol.CompletionItem

	var walk func(base string, fields []*convexgen.Field)
	walk = func(base string, fields []*convexgen.Field) {
		for _, f := range fields {
			path := f.Name
			if base != "" {
				path = base + "." + f.Name
			}

			items = append(items, protocol.CompletionItem{
				Label:  path,
				Kind:   protocol.CompletionItemKindField,
				Detail: f.Type.String(),
			})

			if f.Type != nil && f.Type.Kind == convexgen.KindObject {
				walk(path, f.Type.Fields)
			}
		}
	}
	walk("", fields)

	return items
}

func completeFunctionKinds() []protocol.CompletionItem {
	items := make([]protocol.CompletionItem, 0, len(convexgen.FunctionKinds))

	for _, kind := range convexgen.FunctionKinds {
		detail := "public"
		if kind.Internal() {
			detail = "internal"
		}

		items = append(items, protocol.CompletionItem{
			Label:  string(kind),
			Kind:   protocol.CompletionItemKindKeyword,
			Detail: detail,
		})
	}

	return items
}

// getSymbolsAnalysis returns the best analysis for symbol lookup.
func getSymbolsAnalysis(doc *Document) *analysis.AnalyzedFile {
	if doc.Analysis != nil && doc.Analysis.ParseError == nil {
		return doc.Analysis
	}

	if doc.LastValidAnalysis != nil {
		return doc.LastValidAnalysis
	}

	return doc.Analysis
}

// filterByPrefix filters completion items by prefix.
func filterByPrefix(items []protocol.CompletionItem, prefix string) []protocol.CompletionItem {
	if prefix == "" {
		return items
	}

	prefix = strings.ToLower(prefix)
	filtered := make([]protocol.CompletionItem, 0, len(items))

	for _, item := range items {
		if strings.HasPrefix(strings.ToLower(item.Label), prefix) {
			filtered = append(filtered, item)
		}
	}

	return filtered
}
