package pbxproj

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tString tokenKind = iota
	tOpenDict
	tCloseDict
	tOpenArray
	tCloseArray
	tEquals
	tSemicolon
	tComma
	tEOF
)

var punctuation = map[byte]tokenKind{
	'{': tOpenDict,
	'}': tCloseDict,
	'(': tOpenArray,
	')': tCloseArray,
	'=': tEquals,
	';': tSemicolon,
	',': tComma,
}

// token is a lexeme plus the whitespace and comments that precede it.
// Writing lead+text for every token reproduces the source exactly.
type token struct {
	kind tokenKind
	lead string
	text string
	line int
	col  int
}

func (t token) write(b *strings.Builder) {
	b.WriteString(t.lead)
	b.WriteString(t.text)
}

// SyntaxError reports where a project file could not be parsed
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("pbxproj: %d:%d: %s", e.Line, e.Col, e.Msg)
}

type lexer struct {
	src  string
	pos  int
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

func (l *lexer) errorf(format string, args ...any) error {
	return &SyntaxError{Line: l.line, Col: l.col, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) advance(n int) {
	for _, c := range l.src[l.pos : l.pos+n] {
		if c == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
	}
	l.pos += n
}

func (l *lexer) skipTrivia() error {
	for l.pos < len(l.src) {
		rest := l.src[l.pos:]
		switch {
		case rest[0] == ' ' || rest[0] == '\t' || rest[0] == '\n' || rest[0] == '\r':
			l.advance(1)
		case strings.HasPrefix(rest, "/*"):
			end := strings.Index(rest[2:], "*/")
			if end < 0 {
				return l.errorf("unterminated comment")
			}
			l.advance(end + 4)
		case strings.HasPrefix(rest, "//"):
			end := strings.IndexByte(rest, '\n')
			if end < 0 {
				end = len(rest)
			}
			l.advance(end)
		default:
			return nil
		}
	}
	return nil
}

func isBare(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '{', '}', '(', ')', '=', ';', ',', '"', '\'':
		return false
	}
	return true
}

func (l *lexer) next() (token, error) {
	start := l.pos
	if err := l.skipTrivia(); err != nil {
		return token{}, err
	}
	tok := token{lead: l.src[start:l.pos], line: l.line, col: l.col}
	if l.pos >= len(l.src) {
		tok.kind = tEOF
		return tok, nil
	}
	c := l.src[l.pos]
	if kind, ok := punctuation[c]; ok {
		tok.kind = kind
		tok.text = l.src[l.pos : l.pos+1]
		l.advance(1)
		return tok, nil
	}
	tok.kind = tString
	switch c {
	case '"', '\'':
		i := l.pos + 1
		for i < len(l.src) && l.src[i] != c {
			if l.src[i] == '\\' {
				i++
			}
			i++
		}
		if i >= len(l.src) {
			return token{}, l.errorf("unterminated string")
		}
		tok.text = l.src[l.pos : i+1]
	default:
		i := l.pos
		for i < len(l.src) && isBare(l.src[i]) && !strings.HasPrefix(l.src[i:], "/*") && !strings.HasPrefix(l.src[i:], "//") {
			i++
		}
		if i == l.pos {
			return token{}, l.errorf("unexpected character %q", c)
		}
		tok.text = l.src[l.pos:i]
	}
	l.advance(len(tok.text))
	return tok, nil
}
