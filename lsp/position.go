package lsp

import (
	"strings"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/rlch/convexgen"
)

// spanToRange converts a 1-based source span to a 0-based LSP range.
func spanToRange(span convexgen.Span) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{
			Line:      uint32(max(span.Start.Line-1, 0)),   //nolint:gosec // clamped above zero
			Character: uint32(max(span.Start.Column-1, 0)), //nolint:gosec // clamped above zero
		},
		End: protocol.Position{
			Line:      uint32(max(span.End.Line-1, 0)),   //nolint:gosec // clamped above zero
			Character: uint32(max(span.End.Column-1, 0)), //nolint:gosec // clamped above zero
		},
	}
}

func rangePtr(r protocol.Range) *protocol.Range {
	return &r
}

// URIToPath returns the filesystem path of a file:// URI. Other schemes are
// returned unchanged so untitled buffers still get a stable key.
func URIToPath(u protocol.DocumentURI) string {
	if !strings.HasPrefix(string(u), uri.FileScheme+"://") {
		return string(u)
	}

	return uri.URI(u).Filename()
}

// linePrefix returns the text of the line at pos up to the cursor.
func linePrefix(content string, pos protocol.Position) string {
	lines := strings.Split(content, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}

	line := strings.TrimSuffix(lines[pos.Line], "\r")
	if int(pos.Character) < len(line) {
		line = line[:pos.Character]
	}

	return line
}
