package lang

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/gogpu/nzsl/ast"
)

var binaryPrecedence = map[TokenKind]int{
	TokenPipePipe:       1,
	TokenAmpAmp:         2,
	TokenPipe:           3,
	TokenCaret:          4,
	TokenAmpersand:      5,
	TokenEqualEqual:     6,
	TokenBangEqual:      6,
	TokenLess:           7,
	TokenLessEqual:      7,
	TokenGreater:        7,
	TokenGreaterEqual:   7,
	TokenLessLess:       8,
	TokenGreaterGreater: 8,
	TokenPlus:           9,
	TokenMinus:          9,
	TokenStar:           10,
	TokenSlash:          10,
	TokenPercent:        10,
}

var binaryOps = map[TokenKind]ast.BinaryType{
	TokenPipePipe:       ast.BinaryLogicalOr,
	TokenAmpAmp:         ast.BinaryLogicalAnd,
	TokenPipe:           ast.BinaryBitwiseOr,
	TokenCaret:          ast.BinaryBitwiseXor,
	TokenAmpersand:      ast.BinaryBitwiseAnd,
	TokenEqualEqual:     ast.BinaryCompEq,
	TokenBangEqual:      ast.BinaryCompNe,
	TokenLess:           ast.BinaryCompLt,
	TokenLessEqual:      ast.BinaryCompLe,
	TokenGreater:        ast.BinaryCompGt,
	TokenGreaterEqual:   ast.BinaryCompGe,
	TokenLessLess:       ast.BinaryShiftLeft,
	TokenGreaterGreater: ast.BinaryShiftRight,
	TokenPlus:           ast.BinaryAdd,
	TokenMinus:          ast.BinarySubtract,
	TokenStar:           ast.BinaryMultiply,
	TokenSlash:          ast.BinaryDivide,
	TokenPercent:        ast.BinaryModulo,
}

// genericTypeName matches the constructors that accept `<T>` arguments.
var genericTypeName = regexp.MustCompile(`^(vec[2-4]|mat[2-4](x[2-4])?)$`)

// expression parses an expression, including the ternary operator.
func (p *Parser) expression() (ast.Expression, error) {
	lhs, err := p.unary()
	if err != nil {
		return nil, err
	}
	cond, err := p.parseBinOpRHS(0, lhs)
	if err != nil {
		return nil, err
	}
	if !p.check(TokenQuestion) {
		return cond, nil
	}
	p.advance()
	truePath, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenColon); err != nil {
		return nil, err
	}
	falsePath, err := p.expression()
	if err != nil {
		return nil, err
	}
	return &ast.ConditionalExpression{
		ExpressionBase: ast.ExpressionBase{Span: cond.Pos()},
		Condition:      cond,
		TruePath:       truePath,
		FalsePath:      falsePath,
	}, nil
}

// parseBinOpRHS is a precedence-climbing loop: it folds operators binding
// tighter than exprPrec into lhs.
func (p *Parser) parseBinOpRHS(exprPrec int, lhs ast.Expression) (ast.Expression, error) {
	for {
		tok := p.peek()
		prec, ok := binaryPrecedence[tok.Kind]
		if !ok || prec <= exprPrec {
			return lhs, nil
		}
		p.advance()

		rhs, err := p.unary()
		if err != nil {
			return nil, err
		}
		if next, ok := binaryPrecedence[p.peek().Kind]; ok && next > prec {
			if rhs, err = p.parseBinOpRHS(prec, rhs); err != nil {
				return nil, err
			}
		}

		lhs = &ast.BinaryExpression{
			ExpressionBase: ast.ExpressionBase{Span: lhs.Pos()},
			Op:             binaryOps[tok.Kind],
			Left:           lhs,
			Right:          rhs,
		}
	}
}

func (p *Parser) unary() (ast.Expression, error) {
	var op ast.UnaryType
	switch p.peek().Kind {
	case TokenMinus:
		op = ast.UnaryMinus
	case TokenPlus:
		op = ast.UnaryPlus
	case TokenBang:
		op = ast.UnaryLogicalNot
	case TokenTilde:
		op = ast.UnaryBitwiseNot
	default:
		return p.postfix()
	}
	tok := p.advance()
	operand, err := p.unary()
	if err != nil {
		return nil, err
	}
	return &ast.UnaryExpression{
		ExpressionBase: ast.ExpressionBase{Span: tok.Span},
		Op:             op,
		Expression:     operand,
	}, nil
}

// typeExpression parses a type annotation. Types share the expression
// grammar: `vec3[f32]` is an index access on the identifier vec3.
func (p *Parser) typeExpression() (ast.Expression, error) {
	return p.postfix()
}

// postfix parses calls, index chains and member access chains.
func (p *Parser) postfix() (ast.Expression, error) {
	expr, err := p.primary()
	if err != nil {
		return nil, err
	}

	for {
		switch {
		case p.check(TokenLeftParen):
			args, err := p.arguments()
			if err != nil {
				return nil, err
			}
			expr = &ast.CallFunctionExpression{
				ExpressionBase: ast.ExpressionBase{Span: expr.Pos()},
				TargetFunction: expr,
				Parameters:     args,
			}

		case p.match(TokenLeftBracket):
			var indices []ast.Expression
			for {
				index, err := p.expression()
				if err != nil {
					return nil, err
				}
				indices = append(indices, index)
				if !p.match(TokenComma) {
					break
				}
			}
			if err := p.expectErr(TokenRightBracket); err != nil {
				return nil, err
			}
			if access, ok := expr.(*ast.AccessIndexExpression); ok {
				access.Indices = append(access.Indices, indices...)
			} else {
				expr = &ast.AccessIndexExpression{
					ExpressionBase: ast.ExpressionBase{Span: expr.Pos()},
					Expr:           expr,
					Indices:        indices,
				}
			}

		case p.match(TokenDot):
			member, err := p.consume(TokenIdentifier)
			if err != nil {
				return nil, err
			}
			if p.check(TokenLeftParen) {
				args, err := p.arguments()
				if err != nil {
					return nil, err
				}
				expr = &ast.CallMethodExpression{
					ExpressionBase: ast.ExpressionBase{Span: expr.Pos()},
					Object:         expr,
					MethodName:     member.Lexeme,
					Parameters:     args,
				}
				continue
			}
			ident := ast.Identifier{Name: member.Lexeme, Span: member.Span}
			if access, ok := expr.(*ast.AccessIdentifierExpression); ok {
				access.Identifiers = append(access.Identifiers, ident)
			} else {
				expr = &ast.AccessIdentifierExpression{
					ExpressionBase: ast.ExpressionBase{Span: expr.Pos()},
					Expr:           expr,
					Identifiers:    []ast.Identifier{ident},
				}
			}

		default:
			return expr, nil
		}
	}
}

func (p *Parser) arguments() ([]ast.Expression, error) {
	if err := p.expectErr(TokenLeftParen); err != nil {
		return nil, err
	}
	args := make([]ast.Expression, 0, 4)
	for !p.check(TokenRightParen) && !p.isAtEnd() {
		arg, err := p.expression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.match(TokenComma) {
			break
		}
	}
	if err := p.expectErr(TokenRightParen); err != nil {
		return nil, err
	}
	return args, nil
}

// primary parses literals, identifiers and parenthesized expressions.
func (p *Parser) primary() (ast.Expression, error) {
	tok := p.peek()

	switch tok.Kind {
	case TokenIntLiteral:
		p.advance()
		v, err := parseIntLiteral(tok.Lexeme)
		if err != nil {
			return nil, p.errorAt(tok.Span, "integer literal", tok.Lexeme, "%v", err)
		}
		return literal(tok.Span, v), nil

	case TokenFloatLiteral:
		p.advance()
		text := strings.ReplaceAll(strings.TrimSuffix(tok.Lexeme, "f"), "_", "")
		f, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return nil, p.errorAt(tok.Span, "float literal", tok.Lexeme, "malformed float literal %s", tok.Lexeme)
		}
		return literal(tok.Span, ast.Float32Value(float32(f))), nil

	case TokenTrue, TokenFalse:
		p.advance()
		return literal(tok.Span, ast.BoolValue(tok.Kind == TokenTrue)), nil

	case TokenIdentifier:
		p.advance()
		ident := &ast.IdentifierExpression{
			ExpressionBase: ast.ExpressionBase{Span: tok.Span},
			Identifier:     tok.Lexeme,
		}
		if p.check(TokenLess) && genericTypeName.MatchString(tok.Lexeme) {
			// vec3<f32> is sugar for vec3[f32]
			p.advance()
			arg, err := p.typeExpression()
			if err != nil {
				return nil, err
			}
			if err := p.expectErr(TokenGreater); err != nil {
				return nil, err
			}
			return &ast.AccessIndexExpression{
				ExpressionBase: ast.ExpressionBase{Span: tok.Span},
				Expr:           ident,
				Indices:        []ast.Expression{arg},
			}, nil
		}
		return ident, nil

	case TokenLeftParen:
		p.advance()
		expr, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.expectErr(TokenRightParen); err != nil {
			return nil, err
		}
		return expr, nil

	default:
		return nil, p.errorAt(tok.Span, "expression", tok.Kind.String(), "unexpected %s in expression", describe(tok))
	}
}

func literal(span ast.Span, v ast.ConstantValue) *ast.ConstantValueExpression {
	return &ast.ConstantValueExpression{ExpressionBase: ast.ExpressionBase{Span: span}, Value: v}
}

func parseIntLiteral(lexeme string) (ast.ConstantValue, error) {
	text := strings.ReplaceAll(lexeme, "_", "")
	unsigned := strings.HasSuffix(text, "u")
	text = strings.TrimSuffix(text, "u")

	base := 10
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		base = 16
		text = text[2:]
	}
	v, err := strconv.ParseUint(text, base, 64)
	if err != nil {
		return nil, &strconv.NumError{Func: "parse", Num: lexeme, Err: strconv.ErrSyntax}
	}
	if unsigned {
		if v > math.MaxUint32 {
			return nil, &strconv.NumError{Func: "parse", Num: lexeme, Err: strconv.ErrRange}
		}
		return ast.UInt32Value(uint32(v)), nil
	}
	if v > math.MaxInt32 {
		return nil, &strconv.NumError{Func: "parse", Num: lexeme, Err: strconv.ErrRange}
	}
	return ast.Int32Value(int32(v)), nil
}
