package convexgen

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// tsLexer is the custom lexer for schema and function module files.
var tsLexer = newTSLexer()

var parser = participle.MustBuild[File](
	participle.Lexer(tsLexer),
	participle.Map(unquoteString, "String"),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(2),
)

// Parse parses a schema or function module file.
func Parse(data []byte) (*File, error) {
	return ParseFile("", data)
}

// ParseFile parses a file, using filename in positions and errors.
func ParseFile(filename string, data []byte) (*File, error) {
	file, err := parser.ParseBytes(filename, data)
	if err != nil {
		return file, err
	}

	captureHandlerText(file, data)

	return file, nil
}

// ExportedLexer returns the lexer definition for testing purposes.
func ExportedLexer() lexer.Definition {
	return tsLexer
}

// captureHandlerText fills Handler.Text with the handler's source.
func captureHandlerText(file *File, data []byte) {
	for _, reg := range file.Registrations() {
		h := reg.Registration.Handler()
		if h == nil {
			continue
		}

		start, end := h.Pos.Offset, h.EndPos.Offset
		if start >= 0 && end <= len(data) && start <= end {
			h.Text = strings.TrimSpace(string(data[start:end]))
		}
	}
}

// unquoteString strips the quotes of a single- or double-quoted string token and
// resolves escapes. Escapes Go does not know are kept as the escaped character.
func unquoteString(tok lexer.Token) (lexer.Token, error) {
	s := tok.Value
	if len(s) < 2 {
		return tok, nil
	}

	s = s[1 : len(s)-1]
	if !strings.ContainsRune(s, '\\') {
		tok.Value = s

		return tok, nil
	}

	var b strings.Builder

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)

			continue
		}

		i++

		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '0':
			b.WriteByte(0)
		case 'u':
			if i+4 < len(s) {
				if r, err := strconv.ParseUint(s[i+1:i+5], 16, 32); err == nil {
					b.WriteRune(rune(r))
					i += 4

					continue
				}
			}

			b.WriteByte('u')
		default:
			r, size := utf8.DecodeRuneInString(s[i:])
			b.WriteRune(r)
			i += size - 1
		}
	}

	tok.Value = b.String()

	return tok, nil
}
