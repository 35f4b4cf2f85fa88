// Package eval implements the small address-expression language used by
// the "eval" key of a function spec: a handful of operators over capture
// group bindings, letting a spec compute a function's real entry point
// from a address captured elsewhere (e.g. a vtable slot, or an indirect
// jump target) instead of using the match address directly.
//
// Grammar, in increasing precedence:
//
//	expr   := term (("+" | "-") term)*
//	term   := "*" term | atom
//	atom   := ident | integer | "(" expr ")"
//
// "+" and "-" share precedence and associate left to right. "*" is a
// prefix dereference: it reads a pointer-sized value from memory at the
// address its operand evaluates to.
package eval

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jac3km4/zoltan/internal/types"
	"github.com/jac3km4/zoltan/internal/zerr"
)

// ExprKind discriminates the variants of Expr.
type ExprKind int

const (
	ExprIdent ExprKind = iota
	ExprInt
	ExprDeref
	ExprAdd
	ExprSub
)

// Expr is a parsed address expression.
type Expr struct {
	Kind  ExprKind
	Ident string // ExprIdent
	Int   int64  // ExprInt, already scaled by pointer size
	Inner *Expr  // ExprDeref
	Left  *Expr  // ExprAdd, ExprSub
	Right *Expr  // ExprAdd, ExprSub
}

// Memory is the minimal read access eval needs from an executable image to
// resolve a dereference.
type Memory interface {
	ReadPointer(addr int64) (int64, error)
}

// Context binds capture-group names to resolved addresses and supplies the
// memory access a dereference needs.
type Context struct {
	Bindings map[string]int64
	Mem      Memory
}

// Eval evaluates expr under ctx, returning the resulting address.
func Eval(expr *Expr, ctx *Context) (int64, error) {
	switch expr.Kind {
	case ExprIdent:
		v, ok := ctx.Bindings[expr.Ident]
		if !ok {
			return 0, zerr.New(zerr.UnresolvedName, "unresolved identifier in eval expression", expr.Ident)
		}
		return v, nil
	case ExprInt:
		return expr.Int, nil
	case ExprDeref:
		addr, err := Eval(expr.Inner, ctx)
		if err != nil {
			return 0, err
		}
		return ctx.Mem.ReadPointer(addr)
	case ExprAdd:
		l, err := Eval(expr.Left, ctx)
		if err != nil {
			return 0, err
		}
		r, err := Eval(expr.Right, ctx)
		if err != nil {
			return 0, err
		}
		return l + r, nil
	case ExprSub:
		l, err := Eval(expr.Left, ctx)
		if err != nil {
			return 0, err
		}
		r, err := Eval(expr.Right, ctx)
		if err != nil {
			return 0, err
		}
		return l - r, nil
	default:
		return 0, zerr.New(zerr.ExprParse, "unknown expression kind")
	}
}

// Parse parses an eval expression string.
func Parse(s string) (*Expr, error) {
	p := &parser{input: s}
	p.skipSpace()
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, zerr.New(zerr.ExprParse, "trailing input in eval expression", s[p.pos:])
	}
	return expr, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) peek() (byte, bool) {
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

// parseExpr parses the "+"/"-" precedence level, left-associative.
func (p *parser) parseExpr() (*Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		c, ok := p.peek()
		if !ok || (c != '+' && c != '-') {
			return left, nil
		}
		p.pos++
		p.skipSpace()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		kind := ExprAdd
		if c == '-' {
			kind = ExprSub
		}
		left = &Expr{Kind: kind, Left: left, Right: right}
	}
}

// parseTerm parses a prefix dereference or an atom.
func (p *parser) parseTerm() (*Expr, error) {
	p.skipSpace()
	c, ok := p.peek()
	if ok && c == '*' {
		p.pos++
		p.skipSpace()
		inner, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return &Expr{Kind: ExprDeref, Inner: inner}, nil
	}
	return p.parseAtom()
}

func (p *parser) parseAtom() (*Expr, error) {
	p.skipSpace()
	c, ok := p.peek()
	if !ok {
		return nil, zerr.New(zerr.ExprParse, "unexpected end of expression")
	}
	switch {
	case c == '(':
		p.pos++
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		c, ok = p.peek()
		if !ok || c != ')' {
			return nil, zerr.New(zerr.ExprParse, "expected ')'")
		}
		p.pos++
		return expr, nil
	case c >= '0' && c <= '9':
		return p.parseInt()
	case isIdentStart(c):
		return p.parseIdent()
	default:
		return nil, zerr.New(zerr.ExprParse, fmt.Sprintf("unexpected character %q", c))
	}
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (p *parser) parseIdent() (*Expr, error) {
	start := p.pos
	for p.pos < len(p.input) && isIdentChar(p.input[p.pos]) {
		p.pos++
	}
	return &Expr{Kind: ExprIdent, Ident: p.input[start:p.pos]}, nil
}

func (p *parser) parseInt() (*Expr, error) {
	start := p.pos
	base := 10
	if strings.HasPrefix(p.input[p.pos:], "0x") || strings.HasPrefix(p.input[p.pos:], "0X") {
		p.pos += 2
		start = p.pos
		base = 16
	}
	for p.pos < len(p.input) && isHexOrDecDigit(p.input[p.pos], base) {
		p.pos++
	}
	if p.pos == start {
		return nil, zerr.New(zerr.ExprParse, "expected digits")
	}
	n, err := strconv.ParseInt(p.input[start:p.pos], base, 64)
	if err != nil {
		return nil, zerr.New(zerr.ExprParse, "invalid integer literal", p.input[start:p.pos])
	}
	return &Expr{Kind: ExprInt, Int: n * int64(types.PointerSize)}, nil
}

func isHexOrDecDigit(c byte, base int) bool {
	if base == 16 {
		return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
	}
	return c >= '0' && c <= '9'
}
