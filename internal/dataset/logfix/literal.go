package logfix

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrBadLiteral = errors.New("bad literal")

// Literal is a parsed tuple payload: either an integer or a tuple of literals.
type Literal struct {
	Int     int
	Items   []Literal
	IsTuple bool
}

func IntLit(v int) Literal { return Literal{Int: v} }

func TupleLit(items ...Literal) Literal { return Literal{Items: items, IsTuple: true} }

// String renders the literal the way the recorder printed it: "(1, -2, 3)",
// with a trailing comma for one-element tuples.
func (l Literal) String() string {
	if !l.IsTuple {
		return strconv.Itoa(l.Int)
	}
	var b strings.Builder
	b.WriteByte('(')
	for i, it := range l.Items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(it.String())
	}
	if len(l.Items) == 1 {
		b.WriteByte(',')
	}
	b.WriteByte(')')
	return b.String()
}

// ParseLiteral accepts integers and parenthesized tuples of them, nested to any
// depth, with optional whitespace and trailing commas. Nothing else is accepted.
func ParseLiteral(s string) (Literal, error) {
	p := &litParser{src: s}
	p.skipSpace()
	v, err := p.value(0)
	if err != nil {
		return Literal{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return Literal{}, fmt.Errorf("%w: trailing input at %d", ErrBadLiteral, p.pos)
	}
	return v, nil
}

const maxLiteralDepth = 32

type litParser struct {
	src string
	pos int
}

func (p *litParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *litParser) value(depth int) (Literal, error) {
	if depth > maxLiteralDepth {
		return Literal{}, fmt.Errorf("%w: nested too deep", ErrBadLiteral)
	}
	if p.pos >= len(p.src) {
		return Literal{}, fmt.Errorf("%w: unexpected end", ErrBadLiteral)
	}
	if p.src[p.pos] == '(' {
		return p.tuple(depth)
	}
	return p.integer()
}

func (p *litParser) tuple(depth int) (Literal, error) {
	p.pos++ // '('
	out := Literal{IsTuple: true}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return Literal{}, fmt.Errorf("%w: unterminated tuple", ErrBadLiteral)
		}
		if p.src[p.pos] == ')' {
			p.pos++
			return out, nil
		}
		v, err := p.value(depth + 1)
		if err != nil {
			return Literal{}, err
		}
		out.Items = append(out.Items, v)
		p.skipSpace()
		if p.pos >= len(p.src) {
			return Literal{}, fmt.Errorf("%w: unterminated tuple", ErrBadLiteral)
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case ')':
			p.pos++
			// "(1)" is a parenthesized int, "(1,)" a tuple.
			if len(out.Items) == 1 {
				return out.Items[0], nil
			}
			return out, nil
		default:
			return Literal{}, fmt.Errorf("%w: unexpected %q at %d", ErrBadLiteral, p.src[p.pos], p.pos)
		}
	}
}

func (p *litParser) integer() (Literal, error) {
	start := p.pos
	if p.src[p.pos] == '-' || p.src[p.pos] == '+' {
		p.pos++
	}
	digits := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	if p.pos == digits {
		return Literal{}, fmt.Errorf("%w: expected integer at %d", ErrBadLiteral, start)
	}
	v, err := strconv.Atoi(p.src[start:p.pos])
	if err != nil {
		return Literal{}, fmt.Errorf("%w: %v", ErrBadLiteral, err)
	}
	return IntLit(v), nil
}
