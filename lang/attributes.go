package lang

import (
	"fmt"

	"github.com/gogpu/nzsl/ast"
)

// knownAttributes lists every attribute key the language defines. Whether a
// key applies to a given declaration is checked by the declaration parser.
var knownAttributes = map[string]bool{
	"author":               true,
	"binding":              true,
	"builtin":              true,
	"cond":                 true,
	"depth_write":          true,
	"desc":                 true,
	"early_fragment_tests": true,
	"entry":                true,
	"export":               true,
	"layout":               true,
	"license":              true,
	"location":             true,
	"nzsl_version":         true,
	"set":                  true,
	"unroll":               true,
	"workgroup":            true,
}

type attribute struct {
	name  string
	span  ast.Span
	args  []ast.Expression
	str   string
	isStr bool
}

type attributeList []*attribute

// attributes parses zero or more `[key(value), key2]` lists.
func (p *Parser) attributes() (attributeList, error) {
	var attrs attributeList
	for p.check(TokenLeftBracket) {
		p.advance()
		for {
			name, err := p.consume(TokenIdentifier)
			if err != nil {
				return nil, err
			}
			if !knownAttributes[name.Lexeme] {
				return nil, p.errorAt(name.Span, "attribute", name.Lexeme, "unknown attribute %q", name.Lexeme)
			}
			for _, a := range attrs {
				if a.name == name.Lexeme {
					return nil, p.errorAt(name.Span, "attribute", name.Lexeme, "duplicate attribute %q", name.Lexeme)
				}
			}

			attr := &attribute{name: name.Lexeme, span: name.Span}
			if p.match(TokenLeftParen) {
				if p.check(TokenStringLiteral) {
					tok := p.advance()
					s, err := unquote(tok.Lexeme)
					if err != nil {
						return nil, p.errorAt(tok.Span, "string literal", tok.Lexeme, "malformed string literal: %v", err)
					}
					attr.str = s
					attr.isStr = true
				} else {
					for !p.check(TokenRightParen) && !p.isAtEnd() {
						arg, err := p.expression()
						if err != nil {
							return nil, err
						}
						attr.args = append(attr.args, arg)
						if !p.match(TokenComma) {
							break
						}
					}
				}
				if err := p.expectErr(TokenRightParen); err != nil {
					return nil, err
				}
				if !attr.isStr && len(attr.args) == 0 {
					return nil, p.errorAt(attr.span, "attribute argument", ")", "attribute %q has empty argument list", attr.name)
				}
			}
			attrs = append(attrs, attr)

			if !p.match(TokenComma) {
				break
			}
		}
		if err := p.expectErr(TokenRightBracket); err != nil {
			return nil, err
		}
	}
	return attrs, nil
}

// take removes and returns the named attribute.
func (l *attributeList) take(name string) *attribute {
	for i, a := range *l {
		if a.name == name {
			*l = append((*l)[:i:i], (*l)[i+1:]...)
			return a
		}
	}
	return nil
}

// rejectAll fails if attributes remain that the declaration does not accept.
func (l attributeList) rejectAll(what string) error {
	if len(l) == 0 {
		return nil
	}
	return l[0].notApplicable(what)
}

func (a *attribute) notApplicable(what string) error {
	e := ast.Errorf(ast.ErrParse, a.span, "attribute %q is not valid on %s", a.name, what)
	e.Found = a.name
	return e
}

func (a *attribute) stringArg() (string, error) {
	if !a.isStr {
		e := ast.Errorf(ast.ErrParse, a.span, "attribute %q expects a string argument", a.name)
		e.Expected = "string literal"
		return "", e
	}
	return a.str, nil
}

func (a *attribute) exprArg() (ast.Expression, error) {
	if a.isStr || len(a.args) != 1 {
		e := ast.Errorf(ast.ErrParse, a.span, "attribute %q expects exactly one argument", a.name)
		e.Expected = "1 argument"
		e.Found = fmt.Sprintf("%d arguments", len(a.args))
		return nil, e
	}
	return a.args[0], nil
}

// boolFlag handles attributes such as `export` that may be written with or
// without a boolean argument.
func (a *attribute) boolFlag() (ast.AttributeValue[bool], error) {
	if !a.isStr && len(a.args) == 0 {
		return ast.ResolvedAttribute(true), nil
	}
	e, err := a.exprArg()
	if err != nil {
		return ast.AttributeValue[bool]{}, err
	}
	return ast.AttributeValue[bool]{Expr: e}, nil
}

func unquote(lexeme string) (string, error) {
	if len(lexeme) < 2 {
		return "", fmt.Errorf("missing quotes")
	}
	var out []byte
	for i := 1; i < len(lexeme)-1; i++ {
		c := lexeme[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		i++
		if i >= len(lexeme)-1 {
			return "", fmt.Errorf("dangling escape")
		}
		switch lexeme[i] {
		case 'n':
			out = append(out, '\n')
		case 't':
			out = append(out, '\t')
		case '\\', '"':
			out = append(out, lexeme[i])
		default:
			return "", fmt.Errorf("unknown escape \\%c", lexeme[i])
		}
	}
	return string(out), nil
}
