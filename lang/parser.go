package lang

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/nzsl/ast"
)

// Parser parses nzsl tokens into a module.
type Parser struct {
	tokens  []Token
	current int
}

// NewParser creates a new parser for the given tokens.
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse builds a module from tokens produced by Tokenize.
func Parse(tokens []Token) (*ast.Module, error) {
	return NewParser(tokens).Parse()
}

// ParseSource tokenizes and parses source text.
func ParseSource(source string) (*ast.Module, error) {
	tokens, err := Tokenize(source)
	if err != nil {
		return nil, err
	}
	return Parse(tokens)
}

// Parse parses the tokens and returns a module. Parsing stops at the first
// error.
func (p *Parser) Parse() (*ast.Module, error) {
	if len(p.tokens) == 0 || p.tokens[len(p.tokens)-1].Kind != TokenEOF {
		p.tokens = append(p.tokens, Token{Kind: TokenEOF})
	}

	module := &ast.Module{RootNode: &ast.MultiStatement{}}
	md, err := p.moduleHeader()
	if err != nil {
		return nil, err
	}
	module.Metadata = md
	module.RootNode.Span = p.peek().Span

	for !p.isAtEnd() {
		stmt, err := p.declaration()
		if err != nil {
			return nil, err
		}
		if imp, ok := unwrapConditional(stmt).(*ast.ImportStatement); ok {
			md.Imports = append(md.Imports, imp.ModuleName)
		}
		module.RootNode.Statements = append(module.RootNode.Statements, stmt)
	}

	return module, nil
}

func unwrapConditional(s ast.Statement) ast.Statement {
	for {
		c, ok := s.(*ast.ConditionalStatement)
		if !ok {
			return s
		}
		s = c.Statement
	}
}

// moduleHeader parses `[attributes] module Name;`.
func (p *Parser) moduleHeader() (*ast.Metadata, error) {
	attrs, err := p.attributes()
	if err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenModule); err != nil {
		return nil, err
	}

	md := &ast.Metadata{LangVersion: ast.LangVersion100}
	if p.check(TokenIdentifier) {
		name, err := p.dottedName()
		if err != nil {
			return nil, err
		}
		md.ModuleName = name
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}

	for _, a := range attrs {
		switch a.name {
		case "nzsl_version":
			s, err := a.stringArg()
			if err != nil {
				return nil, err
			}
			v, ok := parseLangVersion(s)
			if !ok {
				return nil, p.errorAt(a.span, "version string", s, "malformed language version %q", s)
			}
			md.LangVersion = v
		case "author":
			if md.Author, err = a.stringArg(); err != nil {
				return nil, err
			}
		case "desc":
			if md.Description, err = a.stringArg(); err != nil {
				return nil, err
			}
		case "license":
			if md.License, err = a.stringArg(); err != nil {
				return nil, err
			}
		default:
			return nil, a.notApplicable("module")
		}
	}
	return md, nil
}

func parseLangVersion(s string) (uint32, bool) {
	major, minor, found := strings.Cut(s, ".")
	if !found {
		minor = "0"
	}
	ma, err := strconv.ParseUint(major, 10, 16)
	if err != nil {
		return 0, false
	}
	mi, err := strconv.ParseUint(minor, 10, 8)
	if err != nil || mi >= 100 {
		return 0, false
	}
	return uint32(ma*100 + mi), true
}

// declaration parses a top-level declaration.
func (p *Parser) declaration() (ast.Statement, error) {
	attrs, err := p.attributes()
	if err != nil {
		return nil, err
	}

	var cond ast.Expression
	if a := attrs.take("cond"); a != nil {
		if cond, err = a.exprArg(); err != nil {
			return nil, err
		}
	}

	var stmt ast.Statement
	switch {
	case p.check(TokenImport):
		stmt, err = p.importDecl(attrs)
	case p.check(TokenOption):
		stmt, err = p.optionDecl(attrs)
	case p.check(TokenConst):
		stmt, err = p.constDecl(attrs)
	case p.check(TokenAlias):
		stmt, err = p.aliasDecl(attrs)
	case p.check(TokenStruct):
		stmt, err = p.structDecl(attrs)
	case p.check(TokenExternal):
		stmt, err = p.externalDecl(attrs)
	case p.check(TokenFn):
		stmt, err = p.functionDecl(attrs)
	default:
		tok := p.peek()
		return nil, p.errorAt(tok.Span, "declaration", tok.Kind.String(), "unexpected token %s, expected declaration", tok.Kind)
	}
	if err != nil {
		return nil, err
	}

	if cond != nil {
		return &ast.ConditionalStatement{
			StatementBase: ast.StatementBase{Span: stmt.Pos()},
			Condition:     cond,
			Statement:     stmt,
		}, nil
	}
	return stmt, nil
}

func (p *Parser) importDecl(attrs attributeList) (ast.Statement, error) {
	if err := attrs.rejectAll("import"); err != nil {
		return nil, err
	}
	start := p.advance().Span

	first, err := p.dottedName()
	if err != nil {
		return nil, err
	}
	if p.match(TokenSemicolon) {
		return &ast.ImportStatement{StatementBase: ast.StatementBase{Span: start}, ModuleName: first}, nil
	}
	if strings.Contains(first, ".") {
		return nil, p.errorAt(start, "identifier", first, "imported symbol %q cannot be a dotted name", first)
	}

	stmt := &ast.ImportStatement{StatementBase: ast.StatementBase{Span: start}}
	ident := ast.ImportIdentifier{Span: p.previous().Span, Identifier: first}
	for {
		if p.match(TokenAs) {
			tok, err := p.consume(TokenIdentifier)
			if err != nil {
				return nil, err
			}
			ident.RenamedIdentifier = tok.Lexeme
		}
		stmt.Identifiers = append(stmt.Identifiers, ident)
		if !p.match(TokenComma) {
			break
		}
		tok, err := p.consume(TokenIdentifier)
		if err != nil {
			return nil, err
		}
		ident = ast.ImportIdentifier{Span: tok.Span, Identifier: tok.Lexeme}
	}

	if err := p.expectErr(TokenFrom); err != nil {
		return nil, err
	}
	if stmt.ModuleName, err = p.dottedName(); err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) optionDecl(attrs attributeList) (ast.Statement, error) {
	if err := attrs.rejectAll("option"); err != nil {
		return nil, err
	}
	start := p.advance().Span
	name, err := p.consume(TokenIdentifier)
	if err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenColon); err != nil {
		return nil, err
	}
	typ, err := p.typeExpression()
	if err != nil {
		return nil, err
	}

	stmt := &ast.DeclareOptionStatement{
		StatementBase: ast.StatementBase{Span: start},
		OptName:       name.Lexeme,
		OptType:       typ,
	}
	if p.match(TokenEqual) {
		if stmt.DefaultValue, err = p.expression(); err != nil {
			return nil, err
		}
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) constDecl(attrs attributeList) (ast.Statement, error) {
	stmt := &ast.DeclareConstStatement{}
	if a := attrs.take("export"); a != nil {
		v, err := a.boolFlag()
		if err != nil {
			return nil, err
		}
		stmt.IsExported = v
	}
	if err := attrs.rejectAll("const"); err != nil {
		return nil, err
	}

	stmt.Span = p.advance().Span
	name, err := p.consume(TokenIdentifier)
	if err != nil {
		return nil, err
	}
	stmt.Name = name.Lexeme
	if p.match(TokenColon) {
		if stmt.Type, err = p.typeExpression(); err != nil {
			return nil, err
		}
	}
	if err := p.expectErr(TokenEqual); err != nil {
		return nil, err
	}
	if stmt.Expression, err = p.expression(); err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) aliasDecl(attrs attributeList) (ast.Statement, error) {
	stmt := &ast.DeclareAliasStatement{}
	if a := attrs.take("export"); a != nil {
		v, err := a.boolFlag()
		if err != nil {
			return nil, err
		}
		stmt.IsExported = v
	}
	if err := attrs.rejectAll("alias"); err != nil {
		return nil, err
	}

	stmt.Span = p.advance().Span
	name, err := p.consume(TokenIdentifier)
	if err != nil {
		return nil, err
	}
	stmt.Name = name.Lexeme
	if err := p.expectErr(TokenEqual); err != nil {
		return nil, err
	}
	if stmt.Expression, err = p.typeExpression(); err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) structDecl(attrs attributeList) (ast.Statement, error) {
	stmt := &ast.DeclareStructStatement{}
	if a := attrs.take("export"); a != nil {
		v, err := a.boolFlag()
		if err != nil {
			return nil, err
		}
		stmt.IsExported = v
	}
	if a := attrs.take("layout"); a != nil {
		e, err := a.exprArg()
		if err != nil {
			return nil, err
		}
		stmt.Description.Layout.Expr = e
	}
	if err := attrs.rejectAll("struct"); err != nil {
		return nil, err
	}

	stmt.Span = p.advance().Span
	name, err := p.consume(TokenIdentifier)
	if err != nil {
		return nil, err
	}
	stmt.Description.Name = name.Lexeme

	if err := p.expectErr(TokenLeftBrace); err != nil {
		return nil, err
	}
	for !p.check(TokenRightBrace) && !p.isAtEnd() {
		member, err := p.structMember()
		if err != nil {
			return nil, err
		}
		stmt.Description.Members = append(stmt.Description.Members, member)
		if !p.match(TokenComma) {
			break
		}
	}
	if err := p.expectErr(TokenRightBrace); err != nil {
		return nil, err
	}
	if len(stmt.Description.Members) == 0 {
		return nil, p.errorAt(stmt.Span, "struct member", "}", "struct %s has no members", stmt.Description.Name)
	}
	return stmt, nil
}

func (p *Parser) structMember() (ast.StructMember, error) {
	var member ast.StructMember
	attrs, err := p.attributes()
	if err != nil {
		return member, err
	}
	if a := attrs.take("builtin"); a != nil {
		if member.Builtin.Expr, err = a.exprArg(); err != nil {
			return member, err
		}
	}
	if a := attrs.take("location"); a != nil {
		if member.LocationIndex.Expr, err = a.exprArg(); err != nil {
			return member, err
		}
	}
	if a := attrs.take("cond"); a != nil {
		if member.Cond, err = a.exprArg(); err != nil {
			return member, err
		}
	}
	if err := attrs.rejectAll("struct member"); err != nil {
		return member, err
	}

	name, err := p.consume(TokenIdentifier)
	if err != nil {
		return member, err
	}
	member.Name = name.Lexeme
	member.Span = name.Span
	if err := p.expectErr(TokenColon); err != nil {
		return member, err
	}
	if member.Type, err = p.typeExpression(); err != nil {
		return member, err
	}
	return member, nil
}

func (p *Parser) externalDecl(attrs attributeList) (ast.Statement, error) {
	stmt := &ast.DeclareExternalStatement{}
	if a := attrs.take("set"); a != nil {
		e, err := a.exprArg()
		if err != nil {
			return nil, err
		}
		stmt.BindingSet.Expr = e
	}
	if err := attrs.rejectAll("external block"); err != nil {
		return nil, err
	}

	stmt.Span = p.advance().Span
	if err := p.expectErr(TokenLeftBrace); err != nil {
		return nil, err
	}
	for !p.check(TokenRightBrace) && !p.isAtEnd() {
		ext, err := p.externalVar()
		if err != nil {
			return nil, err
		}
		stmt.Externals = append(stmt.Externals, ext)
		if !p.match(TokenComma) {
			break
		}
	}
	if err := p.expectErr(TokenRightBrace); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) externalVar() (ast.ExternalVar, error) {
	var ext ast.ExternalVar
	attrs, err := p.attributes()
	if err != nil {
		return ext, err
	}
	if a := attrs.take("set"); a != nil {
		if ext.BindingSet.Expr, err = a.exprArg(); err != nil {
			return ext, err
		}
	}
	if a := attrs.take("binding"); a != nil {
		if ext.BindingIndex.Expr, err = a.exprArg(); err != nil {
			return ext, err
		}
	}
	if err := attrs.rejectAll("external variable"); err != nil {
		return ext, err
	}

	name, err := p.consume(TokenIdentifier)
	if err != nil {
		return ext, err
	}
	ext.Name = name.Lexeme
	ext.Span = name.Span
	if err := p.expectErr(TokenColon); err != nil {
		return ext, err
	}
	if ext.Type, err = p.typeExpression(); err != nil {
		return ext, err
	}
	return ext, nil
}

func (p *Parser) functionDecl(attrs attributeList) (ast.Statement, error) {
	stmt := &ast.DeclareFunctionStatement{}
	var err error
	if a := attrs.take("entry"); a != nil {
		if stmt.EntryStage.Expr, err = a.exprArg(); err != nil {
			return nil, err
		}
	}
	if a := attrs.take("early_fragment_tests"); a != nil {
		if stmt.EarlyFragmentTests, err = a.boolFlag(); err != nil {
			return nil, err
		}
	}
	if a := attrs.take("depth_write"); a != nil {
		if stmt.DepthWrite.Expr, err = a.exprArg(); err != nil {
			return nil, err
		}
	}
	if a := attrs.take("workgroup"); a != nil {
		if len(a.args) == 0 || len(a.args) > 3 {
			return nil, p.errorAt(a.span, "1 to 3 arguments", strconv.Itoa(len(a.args)), "workgroup expects 1 to 3 sizes")
		}
		args := append([]ast.Expression(nil), a.args...)
		for len(args) < 3 {
			args = append(args, &ast.ConstantValueExpression{ExpressionBase: ast.ExpressionBase{Span: a.span}, Value: ast.UInt32Value(1)})
		}
		stmt.Workgroup.Expr = &ast.CallFunctionExpression{
			ExpressionBase: ast.ExpressionBase{Span: a.span},
			TargetFunction: &ast.AccessIndexExpression{
				ExpressionBase: ast.ExpressionBase{Span: a.span},
				Expr:           &ast.IdentifierExpression{ExpressionBase: ast.ExpressionBase{Span: a.span}, Identifier: "vec3"},
				Indices:        []ast.Expression{&ast.IdentifierExpression{ExpressionBase: ast.ExpressionBase{Span: a.span}, Identifier: "u32"}},
			},
			Parameters: args,
		}
	}
	if a := attrs.take("export"); a != nil {
		if stmt.IsExported, err = a.boolFlag(); err != nil {
			return nil, err
		}
	}
	if err := attrs.rejectAll("function"); err != nil {
		return nil, err
	}

	stmt.Span = p.advance().Span
	name, err := p.consume(TokenIdentifier)
	if err != nil {
		return nil, err
	}
	stmt.Name = name.Lexeme

	if err := p.expectErr(TokenLeftParen); err != nil {
		return nil, err
	}
	for !p.check(TokenRightParen) && !p.isAtEnd() {
		pname, err := p.consume(TokenIdentifier)
		if err != nil {
			return nil, err
		}
		if err := p.expectErr(TokenColon); err != nil {
			return nil, err
		}
		ptype, err := p.typeExpression()
		if err != nil {
			return nil, err
		}
		stmt.Parameters = append(stmt.Parameters, ast.FunctionParameter{Span: pname.Span, Name: pname.Lexeme, Type: ptype})
		if !p.match(TokenComma) {
			break
		}
	}
	if err := p.expectErr(TokenRightParen); err != nil {
		return nil, err
	}

	if p.match(TokenArrow) {
		if stmt.ReturnType, err = p.typeExpression(); err != nil {
			return nil, err
		}
	}

	body, err := p.block()
	if err != nil {
		return nil, err
	}
	stmt.Statements = body
	return stmt, nil
}

// block parses `{ statements }`.
func (p *Parser) block() ([]ast.Statement, error) {
	if err := p.expectErr(TokenLeftBrace); err != nil {
		return nil, err
	}
	stmts := make([]ast.Statement, 0, 8)
	for !p.check(TokenRightBrace) && !p.isAtEnd() {
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	if err := p.expectErr(TokenRightBrace); err != nil {
		return nil, err
	}
	return stmts, nil
}

// statement parses a statement inside a function body.
func (p *Parser) statement() (ast.Statement, error) {
	attrs, err := p.attributes()
	if err != nil {
		return nil, err
	}

	var unroll ast.AttributeValue[ast.LoopUnroll]
	if a := attrs.take("unroll"); a != nil {
		if len(a.args) == 0 {
			unroll = ast.ResolvedAttribute(ast.UnrollAlways)
		} else if unroll.Expr, err = a.exprArg(); err != nil {
			return nil, err
		}
		if !p.check(TokenFor) && !p.check(TokenWhile) {
			return nil, p.errorAt(a.span, "loop", p.peek().Kind.String(), "unroll attribute only applies to loops")
		}
	}
	if err := attrs.rejectAll("statement"); err != nil {
		return nil, err
	}

	tok := p.peek()
	switch tok.Kind {
	case TokenLeftBrace:
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		return &ast.ScopedStatement{
			StatementBase: ast.StatementBase{Span: tok.Span},
			Statement:     &ast.MultiStatement{StatementBase: ast.StatementBase{Span: tok.Span}, Statements: body},
		}, nil
	case TokenLet:
		return p.letStmt()
	case TokenConst:
		if p.peekAt(1).Kind == TokenIf {
			p.advance()
			return p.ifStmt(true, tok.Span)
		}
		return p.constDecl(nil)
	case TokenIf:
		return p.ifStmt(false, tok.Span)
	case TokenWhile:
		return p.whileStmt(unroll)
	case TokenFor:
		return p.forStmt(unroll)
	case TokenReturn:
		return p.returnStmt()
	case TokenBreak:
		p.advance()
		return &ast.BreakStatement{StatementBase: ast.StatementBase{Span: tok.Span}}, p.expectErr(TokenSemicolon)
	case TokenContinue:
		p.advance()
		return &ast.ContinueStatement{StatementBase: ast.StatementBase{Span: tok.Span}}, p.expectErr(TokenSemicolon)
	case TokenDiscard:
		p.advance()
		return &ast.DiscardStatement{StatementBase: ast.StatementBase{Span: tok.Span}}, p.expectErr(TokenSemicolon)
	case TokenSemicolon:
		p.advance()
		return &ast.NoOpStatement{StatementBase: ast.StatementBase{Span: tok.Span}}, nil
	default:
		return p.expressionStmt()
	}
}

func (p *Parser) letStmt() (ast.Statement, error) {
	start := p.advance().Span
	name, err := p.consume(TokenIdentifier)
	if err != nil {
		return nil, err
	}
	stmt := &ast.DeclareVariableStatement{StatementBase: ast.StatementBase{Span: start}, VarName: name.Lexeme}
	if p.match(TokenColon) {
		if stmt.VarType, err = p.typeExpression(); err != nil {
			return nil, err
		}
	}
	if p.match(TokenEqual) {
		if stmt.InitialExpression, err = p.expression(); err != nil {
			return nil, err
		}
	}
	if stmt.VarType == nil && stmt.InitialExpression == nil {
		return nil, p.errorAt(p.peek().Span, "type or initializer", p.peek().Kind.String(),
			"variable %s needs a type or an initial value", stmt.VarName)
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) ifStmt(isConst bool, start ast.Span) (ast.Statement, error) {
	stmt := &ast.BranchStatement{StatementBase: ast.StatementBase{Span: start}, IsConst: isConst}
	for {
		if err := p.expectErr(TokenIf); err != nil {
			return nil, err
		}
		cond, err := p.parenExpression()
		if err != nil {
			return nil, err
		}
		body, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmt.CondStatements = append(stmt.CondStatements, ast.ConditionalBranch{Condition: cond, Statement: body})

		if !p.match(TokenElse) {
			return stmt, nil
		}
		if !p.check(TokenIf) {
			if stmt.ElseStatement, err = p.statement(); err != nil {
				return nil, err
			}
			return stmt, nil
		}
	}
}

func (p *Parser) whileStmt(unroll ast.AttributeValue[ast.LoopUnroll]) (ast.Statement, error) {
	start := p.advance().Span
	cond, err := p.parenExpression()
	if err != nil {
		return nil, err
	}
	body, err := p.statement()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStatement{StatementBase: ast.StatementBase{Span: start}, Condition: cond, Body: body, Unroll: unroll}, nil
}

// forStmt parses `for v in arr stmt` and `for v in from -> to [: step] stmt`.
func (p *Parser) forStmt(unroll ast.AttributeValue[ast.LoopUnroll]) (ast.Statement, error) {
	start := p.advance().Span
	name, err := p.consume(TokenIdentifier)
	if err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenIn); err != nil {
		return nil, err
	}
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}

	if !p.match(TokenArrow) {
		body, err := p.statement()
		if err != nil {
			return nil, err
		}
		return &ast.ForEachStatement{
			StatementBase: ast.StatementBase{Span: start},
			VarName:       name.Lexeme,
			Expression:    expr,
			Statement:     body,
			Unroll:        unroll,
		}, nil
	}

	stmt := &ast.ForStatement{
		StatementBase: ast.StatementBase{Span: start},
		VarName:       name.Lexeme,
		FromExpr:      expr,
		Unroll:        unroll,
	}
	if stmt.ToExpr, err = p.expression(); err != nil {
		return nil, err
	}
	if p.match(TokenColon) {
		if stmt.StepExpr, err = p.expression(); err != nil {
			return nil, err
		}
	}
	if stmt.Statement, err = p.statement(); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) returnStmt() (ast.Statement, error) {
	start := p.advance().Span
	stmt := &ast.ReturnStatement{StatementBase: ast.StatementBase{Span: start}}
	if !p.check(TokenSemicolon) {
		expr, err := p.expression()
		if err != nil {
			return nil, err
		}
		stmt.ReturnExpr = expr
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	return stmt, nil
}

var assignOps = map[TokenKind]ast.AssignType{
	TokenEqual:         ast.AssignSimple,
	TokenPlusEqual:     ast.AssignAdd,
	TokenMinusEqual:    ast.AssignSubtract,
	TokenStarEqual:     ast.AssignMultiply,
	TokenSlashEqual:    ast.AssignDivide,
	TokenPercentEqual:  ast.AssignModulo,
	TokenAmpAmpEqual:   ast.AssignLogicalAnd,
	TokenPipePipeEqual: ast.AssignLogicalOr,
}

func (p *Parser) expressionStmt() (ast.Statement, error) {
	start := p.peek().Span
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}
	if op, ok := assignOps[p.peek().Kind]; ok {
		p.advance()
		rhs, err := p.expression()
		if err != nil {
			return nil, err
		}
		expr = &ast.AssignExpression{
			ExpressionBase: ast.ExpressionBase{Span: start},
			Op:             op,
			Left:           expr,
			Right:          rhs,
		}
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	return &ast.ExpressionStatement{StatementBase: ast.StatementBase{Span: start}, Expression: expr}, nil
}

func (p *Parser) parenExpression() (ast.Expression, error) {
	if err := p.expectErr(TokenLeftParen); err != nil {
		return nil, err
	}
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenRightParen); err != nil {
		return nil, err
	}
	return expr, nil
}

// dottedName parses `A.B.C`.
func (p *Parser) dottedName() (string, error) {
	tok, err := p.consume(TokenIdentifier)
	if err != nil {
		return "", err
	}
	name := tok.Lexeme
	for p.check(TokenDot) && p.peekAt(1).Kind == TokenIdentifier {
		p.advance()
		name += "." + p.advance().Lexeme
	}
	return name, nil
}

// Helper methods

func (p *Parser) advance() Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) peek() Token {
	return p.tokens[p.current]
}

func (p *Parser) peekAt(n int) Token {
	if p.current+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.current+n]
}

func (p *Parser) previous() Token {
	if p.current == 0 {
		return p.tokens[0]
	}
	return p.tokens[p.current-1]
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Kind == TokenEOF
}

func (p *Parser) check(kind TokenKind) bool {
	return p.peek().Kind == kind
}

func (p *Parser) match(kind TokenKind) bool {
	if p.check(kind) && !p.isAtEnd() {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) consume(kind TokenKind) (Token, error) {
	if p.check(kind) {
		return p.advance(), nil
	}
	tok := p.peek()
	return tok, p.errorAt(tok.Span, kind.String(), tok.Kind.String(), "expected %s, got %s", kind, describe(tok))
}

func (p *Parser) expectErr(kind TokenKind) error {
	_, err := p.consume(kind)
	return err
}

func (p *Parser) errorAt(span ast.Span, expected, found, format string, args ...any) *ast.Error {
	e := ast.Errorf(ast.ErrParse, span, format, args...)
	e.Expected = expected
	e.Found = found
	return e
}

func describe(tok Token) string {
	if tok.Kind == TokenEOF || tok.Lexeme == "" {
		return tok.Kind.String()
	}
	return fmt.Sprintf("%s %q", tok.Kind, tok.Lexeme)
}
