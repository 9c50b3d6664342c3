package lsp

import (
	"context"
	"strings"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/convexgen"
)

// FoldingRanges handles textDocument/foldingRange requests.
// Returns folding ranges for imports, the schema, tables, objects and function
// registrations.
func (s *Server) FoldingRanges(_ context.Context, params *protocol.FoldingRangeParams) ([]protocol.FoldingRange, error) {
	s.logger.Debug("FoldingRanges", zap.String("uri", string(params.TextDocument.URI)))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok || doc.Analysis == nil || doc.Analysis.File == nil {
		return nil, nil
	}

	f := &folder{lineCount: uint32(strings.Count(doc.Content, "\n") + 1)} //nolint:gosec // line counts fit

	var imports []*convexgen.Import

	for _, st := range doc.Analysis.File.Statements {
		if st.Import != nil {
			imports = append(imports, st.Import)
		}
	}

	if len(imports) > 1 {
		f.add(imports[0].Pos.Line, imports[len(imports)-1].EndPos.Line, protocol.ImportsFoldingRange)
	}

	if call := doc.Analysis.File.Schema(); call != nil {
		f.node(call)

		for _, decl := range call.Tables {
			f.node(decl)
			f.object(decl.Fields)
		}
	}

	for _, reg := range doc.Analysis.File.Registrations() {
		f.node(reg.Registration)
		f.object(reg.Registration.Args())

		if ret := reg.Registration.Returns(); ret != nil {
			f.validator(ret)
		}

		if h := reg.Registration.Handler(); h != nil {
			f.node(h)
		}
	}

	s.logger.Debug("FoldingRanges result", zap.Int("count", len(f.ranges)))

	return f.ranges, nil
}

type folder struct {
	lineCount uint32
	ranges    []protocol.FoldingRange
}

func (f *folder) node(n convexgen.Node) {
	span := n.Span()
	f.add(span.Start.Line, span.End.Line, protocol.RegionFoldingRange)
}

func (f *folder) object(obj *convexgen.ObjectLiteral) {
	if obj == nil {
		return
	}

	f.node(obj)

	for _, p := range obj.Properties {
		f.validator(p.Value)
	}
}

func (f *folder) validator(v *convexgen.Validator) {
	for ; v != nil; v = v.Elem {
		if v.Object != nil {
			f.object(v.Object)
			return
		}
	}
}

// add appends a range from 1-based source lines, skipping ranges that do not
// span at least two lines or fall outside the document (e.g. from a parse
// error with bad positions).
func (f *folder) add(startLine, endLine int, kind protocol.FoldingRangeKind) {
	if startLine < 1 || endLine < 1 {
		return
	}

	start, end := uint32(startLine-1), uint32(endLine-1) //nolint:gosec // checked above
	if start >= f.lineCount || end >= f.lineCount || end <= start {
		return
	}

	for _, r := range f.ranges {
		if r.StartLine == start && r.EndLine == end {
			return
		}
	}

	f.ranges = append(f.ranges, protocol.FoldingRange{
		StartLine: start,
		EndLine:   end,
		Kind:      kind,
	})
}
