package convexgen

import (
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/alecthomas/participle/v2/lexer"
)

// Token type constants - negative values as per participle convention.
const (
	tEOF        lexer.TokenType = lexer.EOF
	tComment    lexer.TokenType = -(iota + 2) //nolint:mnd // participle convention
	tTemplate                                 // backtick strings
	tString                                   // quoted strings
	tNumber                                   // all number formats
	tIdent                                    // identifiers including $-prefixed
	tOp                                       // operators
	tDot                                      // .
	tColon                                    // :
	tComma                                    // ,
	tSemi                                     // ;
	tLParen                                   // (
	tRParen                                   // )
	tLBracket                                 // [
	tRBracket                                 // ]
	tLBrace                                   // {
	tRBrace                                   // }
	tWhitespace                               // spaces, tabs, newlines
)

// Lexer errors.
var (
	ErrUnterminatedTemplate = &LexerError{msg: "unterminated template string"}
	ErrUnterminatedString   = &LexerError{msg: "unterminated string"}
	ErrUnterminatedComment  = &LexerError{msg: "unterminated block comment"}
	ErrUnexpectedCharacter  = &LexerError{msg: "unexpected character"}
)

// LexerError represents a lexer error with position.
type LexerError struct {
	msg string
	pos lexer.Position
	ch  rune
}

func (e *LexerError) Error() string {
	if e.ch != 0 {
		return e.pos.String() + ": " + e.msg + ": " + string(e.ch)
	}

	return e.pos.String() + ": " + e.msg
}

// Is reports whether target is the same kind of lexer error, ignoring position.
func (e *LexerError) Is(target error) bool {
	t, ok := target.(*LexerError)

	return ok && t.msg == e.msg
}

// Position returns where the error occurred.
func (e *LexerError) Position() lexer.Position {
	return e.pos
}

func (e *LexerError) withPos(pos lexer.Position) *LexerError {
	return &LexerError{msg: e.msg, pos: pos, ch: e.ch}
}

func (e *LexerError) withChar(ch rune) *LexerError {
	return &LexerError{msg: e.msg, pos: e.pos, ch: ch}
}

// tsDefinition implements lexer.Definition for the declaration subset of TypeScript
// used by schema and function module files.
type tsDefinition struct {
	symbols map[string]lexer.TokenType
}

func newTSLexer() *tsDefinition {
	return &tsDefinition{
		symbols: map[string]lexer.TokenType{
			"EOF":        tEOF,
			"Comment":    tComment,
			"Template":   tTemplate,
			"String":     tString,
			"Number":     tNumber,
			"Ident":      tIdent,
			"Op":         tOp,
			"Dot":        tDot,
			"Colon":      tColon,
			"Comma":      tComma,
			"Semi":       tSemi,
			"Whitespace": tWhitespace,
			"(":          tLParen,
			")":          tRParen,
			"[":          tLBracket,
			"]":          tRBracket,
			"{":          tLBrace,
			"}":          tRBrace,
		},
	}
}

// Symbols returns the mapping of symbol names to token types.
func (d *tsDefinition) Symbols() map[string]lexer.TokenType {
	return d.symbols
}

// Lex creates a new Lexer for the given reader.
//
//nolint:ireturn // Required by participle's lexer.Definition interface.
func (d *tsDefinition) Lex(filename string, r io.Reader) (lexer.Lexer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	return d.LexBytes(filename, data)
}

// LexBytes implements lexer.BytesDefinition.
//
//nolint:ireturn // Required by participle's lexer.BytesDefinition interface.
func (d *tsDefinition) LexBytes(filename string, data []byte) (lexer.Lexer, error) {
	return newLexerState(filename, string(data)), nil
}

// LexString implements lexer.StringDefinition.
//
//nolint:ireturn // Required by participle's lexer.StringDefinition interface.
func (d *tsDefinition) LexString(filename string, input string) (lexer.Lexer, error) {
	return newLexerState(filename, input), nil
}

// punctuation maps single-character tokens to their types.
var punctuation = map[rune]lexer.TokenType{
	'.': tDot,
	':': tColon,
	',': tComma,
	';': tSemi,
	'(': tLParen,
	')': tRParen,
	'[': tLBracket,
	']': tRBracket,
	'{': tLBrace,
	'}': tRBrace,
}

const opChars = "+-*/%^&|!<>=?#~@"

// multiCharOps is ordered longest first so that "===" wins over "==".
var multiCharOps = []string{
	"===", "!==", "...", "**=", "??=",
	"=>", "&&", "||", "??", "==", "!=", "<=", ">=", "?.", "++", "--", "+=", "-=", "*=", "/=", "**",
}

type lexerState struct {
	src string
	cur lexer.Position
}

func newLexerState(filename, src string) *lexerState {
	return &lexerState{
		src: src,
		cur: lexer.Position{Filename: filename, Line: 1, Column: 1},
	}
}

// Next returns the next token, whitespace and comments included.
func (l *lexerState) Next() (lexer.Token, error) {
	start := l.cur
	r := l.at(0)

	var (
		typ lexer.TokenType
		err *LexerError
	)

	switch {
	case l.done():
		return lexer.EOFToken(start), nil
	case isSpace(r):
		typ = tWhitespace
		l.skipWhile(isSpace)
	case l.has("//"):
		typ = tComment
		l.skipWhile(func(r rune) bool { return r != '\n' })
	case l.has("/*"):
		typ, err = tComment, l.blockComment()
	case r == '`':
		typ, err = tTemplate, l.quoted('`', true)
	case r == '"' || r == '\'':
		typ, err = tString, l.quoted(r, false)
	case isDigit(r):
		typ = tNumber
		l.number()
	case isIdentStart(r):
		typ = tIdent
		l.skipWhile(isIdentContinue)
	case l.operator():
		// Checked before punctuation so that "..." is not three dots.
		typ = tOp
	default:
		l.step()

		if t, ok := punctuation[r]; ok {
			typ = t
		} else if strings.ContainsRune(opChars, r) {
			typ = tOp
		} else {
			return lexer.Token{}, ErrUnexpectedCharacter.withPos(start).withChar(r)
		}
	}

	if err != nil {
		return lexer.Token{}, err.withPos(start)
	}

	return lexer.Token{Type: typ, Value: l.src[start.Offset:l.cur.Offset], Pos: start}, nil
}

func (l *lexerState) done() bool {
	return l.cur.Offset >= len(l.src)
}

// at decodes the rune n bytes ahead, or 0 past the end.
func (l *lexerState) at(n int) rune {
	off := l.cur.Offset + n
	if off >= len(l.src) {
		return 0
	}

	r, _ := utf8.DecodeRuneInString(l.src[off:])

	return r
}

func (l *lexerState) has(prefix string) bool {
	return strings.HasPrefix(l.src[l.cur.Offset:], prefix)
}

func (l *lexerState) step() {
	if l.done() {
		return
	}

	r, size := utf8.DecodeRuneInString(l.src[l.cur.Offset:])
	l.cur.Offset += size

	if r == '\n' {
		l.cur.Line++
		l.cur.Column = 1
	} else {
		l.cur.Column++
	}
}

func (l *lexerState) stepN(n int) {
	for range n {
		l.step()
	}
}

func (l *lexerState) skipWhile(pred func(rune) bool) {
	for !l.done() && pred(l.at(0)) {
		l.step()
	}
}

func (l *lexerState) blockComment() *LexerError {
	l.stepN(2)

	for !l.done() {
		if l.has("*/") {
			l.stepN(2)
			return nil
		}

		l.step()
	}

	return ErrUnterminatedComment
}

// quoted consumes a string delimited by quote. Only template strings may
// span lines.
func (l *lexerState) quoted(quote rune, multiline bool) *LexerError {
	unterminated := ErrUnterminatedString
	if multiline {
		unterminated = ErrUnterminatedTemplate
	}

	l.step()

	for !l.done() {
		switch c := l.at(0); {
		case c == '\\' && l.at(1) != 0:
			l.stepN(2)
		case c == quote:
			l.step()
			return nil
		case c == '\n' && !multiline:
			return unterminated
		default:
			l.step()
		}
	}

	return unterminated
}

func (l *lexerState) operator() bool {
	for _, op := range multiCharOps {
		if l.has(op) {
			l.stepN(len(op))
			return true
		}
	}

	return false
}

// number consumes decimal, hex and binary literals with _ separators,
// fractions, exponents and the BigInt n suffix.
func (l *lexerState) number() {
	if l.at(0) == '0' {
		switch l.at(1) {
		case 'x', 'X':
			l.stepN(2)
			l.skipWhile(func(r rune) bool { return isHexDigit(r) || r == '_' })

			return
		case 'b', 'B':
			l.stepN(2)
			l.skipWhile(func(r rune) bool { return r == '0' || r == '1' || r == '_' })

			return
		}
	}

	digits := func(r rune) bool { return isDigit(r) || r == '_' }

	l.skipWhile(digits)

	if l.at(0) == '.' && isDigit(l.at(1)) {
		l.step()
		l.skipWhile(digits)
	}

	if c := l.at(0); c == 'e' || c == 'E' {
		l.step()

		if c := l.at(0); c == '+' || c == '-' {
			l.step()
		}

		l.skipWhile(isDigit)
	}

	if l.at(0) == 'n' {
		l.step()
	}
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isIdentStart(r rune) bool {
	return r == '$' || r == '_' || unicode.IsLetter(r)
}

func isIdentContinue(r rune) bool {
	return r == '$' || r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
