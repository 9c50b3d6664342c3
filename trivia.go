package convexgen

import (
	"regexp"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// Span represents a range in source code.
type Span struct {
	Start lexer.Position
	End   lexer.Position
}

// Contains reports whether pos lies within the span.
func (s Span) Contains(pos lexer.Position) bool {
	return pos.Offset >= s.Start.Offset && pos.Offset < s.End.Offset
}

// Trivia represents non-semantic tokens like comments.
type Trivia struct {
	Text string
	Span Span
	// HasNewlineBefore is true if there was a blank line before this trivia.
	HasNewlineBefore bool
}

// CollectComments lexes data and returns every comment in source order.
func CollectComments(filename string, data []byte) ([]Trivia, error) {
	lex, err := tsLexer.LexBytes(filename, data)
	if err != nil {
		return nil, err
	}

	var (
		out       []Trivia
		blankLine bool
	)

	for {
		tok, err := lex.Next()
		if err != nil {
			return out, err
		}

		if tok.EOF() {
			return out, nil
		}

		switch tok.Type {
		case tWhitespace:
			blankLine = strings.Count(tok.Value, "\n") > 1
		case tComment:
			end := tok.Pos
			end.Offset += len(tok.Value)
			end.Column += len(tok.Value)

			out = append(out, Trivia{
				Text:             tok.Value,
				Span:             Span{Start: tok.Pos, End: end},
				HasNewlineBefore: blankLine,
			})
			blankLine = false
		default:
			blankLine = false
		}
	}
}

// DisabledField is a field declaration that has been commented out, e.g.
// `// email: v.string(),`.
type DisabledField struct {
	Name      string
	Validator string
	Span      Span
}

var disabledFieldPattern = regexp.MustCompile(`^//\s*["']?([A-Za-z_$][\w$]*)["']?\s*:\s*(v\.[A-Za-z]+\(.*)$`)

// DisabledFields returns commented-out field declarations among comments.
func DisabledFields(comments []Trivia) []DisabledField {
	var out []DisabledField

	for _, c := range comments {
		m := disabledFieldPattern.FindStringSubmatch(strings.TrimSpace(c.Text))
		if m == nil {
			continue
		}

		out = append(out, DisabledField{
			Name:      m[1],
			Validator: strings.TrimSuffix(strings.TrimSpace(m[2]), ","),
			Span:      c.Span,
		})
	}

	return out
}
