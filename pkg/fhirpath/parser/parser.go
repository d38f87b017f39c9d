// Package parser turns FHIRPath expression text into an ast.Node tree.
//
// No ANTLR grammar for this language shipped with the reference material
// this package was built from, so the implementation is a conventional
// hand-written lexer plus a Pratt (precedence-climbing) parser, in the
// style of Go's own text/template and go/parser packages rather than a
// generated one.
package parser

import (
	"fmt"

	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/ast"
)

// Parse compiles expr into an AST. Returns a descriptive error with the
// byte offset of the failure on malformed input.
func Parse(expr string) (ast.Node, error) {
	toks, err := newLexer(expr).tokenize()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, src: expr}
	node, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, p.errorf("unexpected trailing input %q", p.cur().text)
	}
	return node, nil
}

type parser struct {
	toks []token
	pos  int
	src  string
}

func (p *parser) cur() token { return p.toks[p.pos] }

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("fhirpath: parse error at offset %d: %s", p.cur().pos, fmt.Sprintf(format, args...))
}

// binary operator precedence, lowest to highest, per the FHIRPath grammar.
var precedence = map[string]int{
	"implies":  1,
	"or":       2,
	"xor":      2,
	"and":      3,
	"in":       4,
	"contains": 4,
	"=":        5,
	"!=":       5,
	"~":        5,
	"!~":       5,
	"<":        6,
	"<=":       6,
	">":        6,
	">=":       6,
	"|":        7,
	"+":        8,
	"-":        8,
	"&":        8,
	"*":        9,
	"/":        9,
	"div":      9,
	"mod":      9,
}

func (p *parser) isBinaryOp() (string, bool) {
	t := p.cur()
	switch t.kind {
	case tokPunct:
		if _, ok := precedence[t.text]; ok {
			return t.text, true
		}
	case tokIdent:
		switch t.text {
		case "implies", "or", "xor", "and", "in", "contains", "div", "mod":
			return t.text, true
		}
	}
	return "", false
}

// parseExpr implements precedence climbing. `is`/`as` are handled as a
// postfix suffix on each operand via parseTypeSuffix, since they bind
// tighter than any binary operator but looser than postfix member access.
func (p *parser) parseExpr(minPrec int) (ast.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	left, err = p.parseTypeSuffix(left)
	if err != nil {
		return nil, err
	}

	for {
		op, ok := p.isBinaryOp()
		if !ok {
			return left, nil
		}
		prec := precedence[op]
		if prec < minPrec {
			return left, nil
		}
		pos := p.cur().pos
		p.advance()
		right, err := p.parseExpr(prec + 1)
		if err != nil {
			return nil, err
		}
		right, err = p.parseTypeSuffix(right)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, Pos: ast.Pos(pos)}
	}
}

// parseTypeSuffix consumes trailing `is Type` / `as Type` suffixes, which can
// chain with further binary operators and with another is/as directly.
func (p *parser) parseTypeSuffix(operand ast.Node) (ast.Node, error) {
	for {
		t := p.cur()
		if t.kind != tokIdent || (t.text != "is" && t.text != "as") {
			return operand, nil
		}
		op := t.text
		pos := t.pos
		p.advance()
		typeName, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		operand = &ast.TypeExpr{Op: op, Operand: operand, TypeName: typeName, Pos: ast.Pos(pos)}
	}
}

func (p *parser) parseTypeName() (string, error) {
	t := p.cur()
	if t.kind != tokIdent {
		return "", p.errorf("expected type name, got %q", t.text)
	}
	name := t.text
	p.advance()
	if p.cur().kind == tokPunct && p.cur().text == "." {
		p.advance()
		next := p.cur()
		if next.kind != tokIdent {
			return "", p.errorf("expected qualified type name segment")
		}
		name = name + "." + next.text
		p.advance()
	}
	return name, nil
}

func (p *parser) parseUnary() (ast.Node, error) {
	t := p.cur()
	if t.kind == tokPunct && (t.text == "+" || t.text == "-") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: t.text, Operand: operand, Pos: ast.Pos(t.pos)}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (ast.Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.cur()
		switch {
		case t.kind == tokPunct && t.text == ".":
			p.advance()
			node, err = p.parseMemberOrCall(node)
			if err != nil {
				return nil, err
			}
		case t.kind == tokPunct && t.text == "[":
			p.advance()
			idx, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			node = &ast.Indexer{Target: node, Index: idx, Pos: ast.Pos(t.pos)}
		default:
			return node, nil
		}
	}
}

func (p *parser) parseMemberOrCall(target ast.Node) (ast.Node, error) {
	t := p.cur()
	var name string
	switch t.kind {
	case tokIdent, tokDelimitedIdent:
		name = t.text
	default:
		return nil, p.errorf("expected member name after '.', got %q", t.text)
	}
	pos := t.pos
	p.advance()
	if p.cur().kind == tokPunct && p.cur().text == "(" {
		args, err := p.parseArgList()
		if err != nil {
			return nil, err
		}
		return &ast.FunctionCall{Target: target, Name: name, Args: args, Pos: ast.Pos(pos)}, nil
	}
	return &ast.Invocation{Target: target, Member: name, Pos: ast.Pos(pos)}, nil
}

func (p *parser) parseArgList() ([]ast.Node, error) {
	p.advance() // '('
	var args []ast.Node
	if p.cur().kind == tokPunct && p.cur().text == ")" {
		p.advance()
		return args, nil
	}
	for {
		arg, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.cur().kind == tokPunct && p.cur().text == "," {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *parser) expectPunct(text string) error {
	t := p.cur()
	if t.kind != tokPunct || t.text != text {
		return p.errorf("expected %q, got %q", text, t.text)
	}
	p.advance()
	return nil
}

func (p *parser) parsePrimary() (ast.Node, error) {
	t := p.cur()
	switch t.kind {
	case tokNumber:
		p.advance()
		if unit, ok := p.tryConsumeQuantityUnit(); ok {
			return &ast.QuantityLiteral{Value: t.text, Unit: unit, Pos: ast.Pos(t.pos)}, nil
		}
		return &ast.NumberLiteral{Text: t.text, Decimal: containsDot(t.text), Pos: ast.Pos(t.pos)}, nil
	case tokString:
		p.advance()
		return &ast.StringLiteral{Value: t.text, Pos: ast.Pos(t.pos)}, nil
	case tokDate:
		p.advance()
		return &ast.DateLiteral{Text: t.text, Pos: ast.Pos(t.pos)}, nil
	case tokDateTime:
		p.advance()
		return &ast.DateTimeLiteral{Text: t.text, Pos: ast.Pos(t.pos)}, nil
	case tokTime:
		p.advance()
		return &ast.TimeLiteral{Text: t.text, Pos: ast.Pos(t.pos)}, nil
	case tokVariable:
		p.advance()
		if isEnvVarName(t.text) {
			return &ast.EnvVariable{Name: t.text, Pos: ast.Pos(t.pos)}, nil
		}
		return &ast.Variable{Name: t.text, Pos: ast.Pos(t.pos)}, nil
	case tokSysVar:
		p.advance()
		return &ast.Variable{Name: t.text, Pos: ast.Pos(t.pos)}, nil
	case tokDelimitedIdent:
		p.advance()
		return p.finishIdentifierOrCall(t)
	case tokIdent:
		switch t.text {
		case "true":
			p.advance()
			return &ast.BooleanLiteral{Value: true, Pos: ast.Pos(t.pos)}, nil
		case "false":
			p.advance()
			return &ast.BooleanLiteral{Value: false, Pos: ast.Pos(t.pos)}, nil
		}
		p.advance()
		return p.finishIdentifierOrCall(t)
	case tokPunct:
		switch t.text {
		case "(":
			p.advance()
			node, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return node, nil
		case "{":
			p.advance()
			if err := p.expectPunct("}"); err != nil {
				return nil, err
			}
			return &ast.NullLiteral{Pos: ast.Pos(t.pos)}, nil
		}
	}
	return nil, p.errorf("unexpected token %q", t.text)
}

func (p *parser) finishIdentifierOrCall(t token) (ast.Node, error) {
	if p.cur().kind == tokPunct && p.cur().text == "(" {
		args, err := p.parseArgList()
		if err != nil {
			return nil, err
		}
		return &ast.FunctionCall{Target: nil, Name: t.text, Args: args, Pos: ast.Pos(t.pos)}, nil
	}
	return &ast.Identifier{Name: t.text, Pos: ast.Pos(t.pos)}, nil
}

// tryConsumeQuantityUnit looks ahead for a quoted UCUM unit or a bareword
// calendar-duration keyword immediately following a number literal.
func (p *parser) tryConsumeQuantityUnit() (string, bool) {
	t := p.cur()
	if t.kind == tokString {
		p.advance()
		return t.text, true
	}
	if t.kind == tokIdent {
		switch t.text {
		case "year", "years", "month", "months", "week", "weeks", "day", "days",
			"hour", "hours", "minute", "minutes", "second", "seconds",
			"millisecond", "milliseconds":
			p.advance()
			return t.text, true
		}
	}
	return "", false
}

func isEnvVarName(name string) bool {
	switch name {
	case "resource", "context", "rootResource", "sct", "loinc", "ucum", "vs", "terminologies":
		return true
	}
	return false
}

func containsDot(s string) bool {
	for _, r := range s {
		if r == '.' {
			return true
		}
	}
	return false
}
