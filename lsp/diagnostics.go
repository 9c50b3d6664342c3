package lsp

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/convexgen/analysis"
)

var severities = map[analysis.DiagnosticSeverity]protocol.DiagnosticSeverity{
	analysis.SeverityError:       protocol.DiagnosticSeverityError,
	analysis.SeverityWarning:     protocol.DiagnosticSeverityWarning,
	analysis.SeverityInformation: protocol.DiagnosticSeverityInformation,
	analysis.SeverityHint:        protocol.DiagnosticSeverityHint,
}

// fadedCodes are rendered as unnecessary code: commented out fields stay in
// the file but take no part in the schema.
var fadedCodes = map[string]bool{
	"disabled-field": true,
}

// publishDiagnostics sends the document's current diagnostics, an empty list
// included so that fixed problems clear. Callers must not hold mu.
func (s *Server) publishDiagnostics(ctx context.Context, doc *Document) {
	if doc.Analysis == nil {
		return
	}

	diagnostics := make([]protocol.Diagnostic, len(doc.Analysis.Diagnostics))
	for i, d := range doc.Analysis.Diagnostics {
		diagnostics[i] = toProtocolDiagnostic(d)
	}

	params := &protocol.PublishDiagnosticsParams{
		URI:         doc.URI,
		Version:     uint32(doc.Version), //nolint:gosec // LSP version numbers are always non-negative
		Diagnostics: diagnostics,
	}

	if err := s.client.PublishDiagnostics(ctx, params); err != nil {
		s.logger.Error("Failed to publish diagnostics", zap.String("uri", string(doc.URI)), zap.Error(err))
		return
	}

	s.logger.Debug("Published diagnostics",
		zap.String("uri", string(doc.URI)),
		zap.Bool("schema", s.isSchema(doc.Path)),
		zap.Int("count", len(diagnostics)))
}

func toProtocolDiagnostic(d analysis.Diagnostic) protocol.Diagnostic {
	sev, ok := severities[d.Severity]
	if !ok {
		sev = protocol.DiagnosticSeverityError
	}

	out := protocol.Diagnostic{
		Range:    spanToRange(d.Span),
		Severity: sev,
		Code:     d.Code,
		Source:   d.Source,
		Message:  d.Message,
	}

	if fadedCodes[d.Code] {
		out.Tags = []protocol.DiagnosticTag{protocol.DiagnosticTagUnnecessary}
	}

	return out
}
