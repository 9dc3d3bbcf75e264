// Package locator resolves declarative, structure-tolerant element queries
// against a live page. A query names the elements a flow cares about; fields
// that cannot be matched resolve to absent rather than failing, so flows can
// branch on structural presence without exception handling.
//
// The query language is brace-delimited:
//
//	{
//	    login_form {
//	        username_input (name='username')
//	        password_input (name='password')
//	        login_btn (type='submit')
//	    }
//	    error_banner (text='Sorry, something went wrong' or role='alert')
//	}
//
// Each field optionally carries parenthesized predicates, combinable with
// "or", and may nest a block to express compound widgets.
package locator

import (
	"fmt"
	"strings"
	"unicode"
)

type Query struct {
	Fields []Field
}

type Field struct {
	Name string
	// Alternatives are the field's predicates; they are tried in order and
	// the first one that matches wins.
	Alternatives []Predicate
	Children     []Field
}

// Predicate matches an element by a single attribute or by visible text
// (Attr == "text").
type Predicate struct {
	Attr  string
	Value string
}

// MustParse parses a query and panics on a syntax error. Queries are
// package-level constants in practice, so a parse failure is a programming
// error.
func MustParse(input string) Query {
	q, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return q
}

func Parse(input string) (Query, error) {
	p := &parser{src: input}
	p.skipSpace()
	fields, err := p.block()
	if err != nil {
		return Query{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return Query{}, p.errorf("unexpected trailing input")
	}
	return Query{Fields: fields}, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("query syntax error at offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) expect(c byte) error {
	if p.peek() != c {
		return p.errorf("expected %q", string(c))
	}
	p.pos++
	return nil
}

func (p *parser) block() ([]Field, error) {
	if err := p.expect('{'); err != nil {
		return nil, err
	}

	var fields []Field
	for {
		p.skipSpace()
		if p.peek() == '}' {
			p.pos++
			return fields, nil
		}
		if p.pos >= len(p.src) {
			return nil, p.errorf("unterminated block")
		}

		field, err := p.field()
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
}

func (p *parser) field() (Field, error) {
	name, err := p.ident()
	if err != nil {
		return Field{}, err
	}
	field := Field{Name: name}

	p.skipSpace()
	if p.peek() == '(' {
		field.Alternatives, err = p.predicates()
		if err != nil {
			return Field{}, err
		}
		p.skipSpace()
	}

	if p.peek() == '{' {
		field.Children, err = p.block()
		if err != nil {
			return Field{}, err
		}
	}

	return field, nil
}

func (p *parser) predicates() ([]Predicate, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}

	var preds []Predicate
	for {
		p.skipSpace()
		attr, err := p.ident()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if err := p.expect('='); err != nil {
			return nil, err
		}
		p.skipSpace()
		value, err := p.quoted()
		if err != nil {
			return nil, err
		}
		preds = append(preds, Predicate{Attr: attr, Value: value})

		p.skipSpace()
		if p.peek() == ')' {
			p.pos++
			return preds, nil
		}
		if !p.keyword("or") {
			return nil, p.errorf("expected 'or' or ')'")
		}
	}
}

func (p *parser) keyword(kw string) bool {
	if strings.HasPrefix(p.src[p.pos:], kw) {
		next := p.pos + len(kw)
		if next >= len(p.src) || !isIdentByte(p.src[next]) {
			p.pos = next
			return true
		}
	}
	return false
}

func (p *parser) ident() (string, error) {
	start := p.pos
	for p.pos < len(p.src) && isIdentByte(p.src[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return "", p.errorf("expected identifier")
	}
	return p.src[start:p.pos], nil
}

func (p *parser) quoted() (string, error) {
	if err := p.expect('\''); err != nil {
		return "", err
	}

	var sb strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case '\\':
			if p.pos+1 >= len(p.src) {
				return "", p.errorf("unterminated escape")
			}
			sb.WriteByte(p.src[p.pos+1])
			p.pos += 2
		case '\'':
			p.pos++
			return sb.String(), nil
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errorf("unterminated string")
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
