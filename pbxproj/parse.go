package pbxproj

import (
	"strconv"
	"strings"
)

type parser struct {
	lex *lexer
	tok token
}

// Parse parses a project file. Errors are *SyntaxError.
func Parse(src []byte) (*Document, error) {
	p := &parser{lex: newLexer(string(src))}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind != tOpenDict {
		return nil, p.errorf("expected '{' at start of document")
	}
	root, err := p.dict()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tEOF {
		return nil, p.errorf("unexpected %q after root dictionary", p.tok.text)
	}
	return &Document{Root: root, tail: p.tok}, nil
}

func (p *parser) errorf(format string, args ...any) error {
	e := p.lex.errorf(format, args...).(*SyntaxError)
	e.Line, e.Col = p.tok.line, p.tok.col
	return e
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	if p.tok.kind != kind {
		return token{}, p.errorf("expected %s, found %s", what, describe(p.tok))
	}
	tok := p.tok
	return tok, p.advance()
}

func describe(t token) string {
	if t.kind == tEOF {
		return "end of file"
	}
	return strconv.Quote(t.text)
}

func (p *parser) value() (Node, error) {
	switch p.tok.kind {
	case tOpenDict:
		return p.dict()
	case tOpenArray:
		return p.array()
	case tString:
		s := &String{tok: p.tok}
		return s, p.advance()
	default:
		return nil, p.errorf("expected value, found %s", describe(p.tok))
	}
}

func (p *parser) dict() (*Dict, error) {
	d := &Dict{open: p.tok}
	if err := p.advance(); err != nil {
		return nil, err
	}
	for p.tok.kind != tCloseDict {
		if p.tok.kind != tString {
			return nil, p.errorf("expected key or '}', found %s", describe(p.tok))
		}
		e := &Entry{key: &String{tok: p.tok}}
		if err := p.advance(); err != nil {
			return nil, err
		}
		var err error
		if e.eq, err = p.expect(tEquals, "'='"); err != nil {
			return nil, err
		}
		if e.value, err = p.value(); err != nil {
			return nil, err
		}
		if e.semi, err = p.expect(tSemicolon, "';'"); err != nil {
			return nil, err
		}
		d.entries = append(d.entries, e)
	}
	d.close = p.tok
	return d, p.advance()
}

func (p *parser) array() (*Array, error) {
	a := &Array{open: p.tok}
	if err := p.advance(); err != nil {
		return nil, err
	}
	for p.tok.kind != tCloseArray {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		item := &Item{value: v}
		switch p.tok.kind {
		case tComma:
			comma := p.tok
			item.comma = &comma
			if err := p.advance(); err != nil {
				return nil, err
			}
		case tCloseArray:
		default:
			return nil, p.errorf("expected ',' or ')', found %s", describe(p.tok))
		}
		a.items = append(a.items, item)
	}
	a.close = p.tok
	return a, p.advance()
}

func isBareSafe(c rune) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '.' || c == '/'
}

// Quote returns value as Xcode writes it: bare when it only holds letters, digits, '_', '.' and '/', quoted otherwise
func Quote(value string) string {
	bare := value != ""
	for _, c := range value {
		if !isBareSafe(c) {
			bare = false
			break
		}
	}
	if bare {
		return value
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, c := range value {
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Unquote returns the value of a raw string token
func Unquote(raw string) string {
	if len(raw) < 2 || (raw[0] != '"' && raw[0] != '\'') || raw[len(raw)-1] != raw[0] {
		return raw
	}
	body := raw[1 : len(raw)-1]
	if !strings.ContainsRune(body, '\\') {
		return body
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			b.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'U':
			if i+4 < len(body) {
				if r, err := strconv.ParseUint(body[i+1:i+5], 16, 32); err == nil {
					b.WriteRune(rune(r))
					i += 4
					continue
				}
			}
			b.WriteByte('U')
		default:
			b.WriteByte(body[i])
		}
	}
	return b.String()
}
