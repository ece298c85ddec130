package serialize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/nzsl/ast"
)

// Operator precedence levels, matching the parser.
const (
	precTernary = 0
	precUnary   = 11
	precPostfix = 12
)

var binaryPrecedence = map[ast.BinaryType]int{
	ast.BinaryLogicalOr:  1,
	ast.BinaryLogicalAnd: 2,
	ast.BinaryBitwiseOr:  3,
	ast.BinaryBitwiseXor: 4,
	ast.BinaryBitwiseAnd: 5,
	ast.BinaryCompEq:     6,
	ast.BinaryCompNe:     6,
	ast.BinaryCompLt:     7,
	ast.BinaryCompLe:     7,
	ast.BinaryCompGt:     7,
	ast.BinaryCompGe:     7,
	ast.BinaryShiftLeft:  8,
	ast.BinaryShiftRight: 8,
	ast.BinaryAdd:        9,
	ast.BinarySubtract:   9,
	ast.BinaryMultiply:   10,
	ast.BinaryDivide:     10,
	ast.BinaryModulo:     10,
}

// WriteSource prints a module as canonical nzsl source: tab indentation,
// braces on their own line and attributes in a fixed order. Both parsed and
// sanitized modules are accepted; resolved references are printed with the
// names of their declarations.
func WriteSource(m *ast.Module) (string, error) {
	if m == nil || m.RootNode == nil {
		return "", fmt.Errorf("serialize: empty module")
	}
	p := newPrinter(m)
	p.module(m)
	if p.err != nil {
		return "", p.err
	}
	return p.out.String(), nil
}

// printer writes source text. The first error sticks and later output is
// discarded by WriteSource.
type printer struct {
	out    strings.Builder
	indent int
	err    error

	variables map[int]string
	constants map[int]string
	functions map[int]string
	structs   map[int]string
}

func newPrinter(m *ast.Module) *printer {
	p := &printer{
		variables: make(map[int]string),
		constants: make(map[int]string),
		functions: make(map[int]string),
		structs:   make(map[int]string),
	}
	for _, im := range m.ImportedModules {
		if im.Module != nil && im.Module.RootNode != nil {
			p.collectNames(im.Module.RootNode)
		}
	}
	p.collectNames(m.RootNode)
	return p
}

// collectNames records the declared name of every ID-based reference.
func (p *printer) collectNames(root ast.Node) {
	ast.Inspect(root, func(n ast.Node) bool {
		switch s := n.(type) {
		case *ast.DeclareVariableStatement:
			p.variables[s.VarID] = s.VarName
		case *ast.ForStatement:
			p.variables[s.VarID] = s.VarName
		case *ast.ForEachStatement:
			p.variables[s.VarID] = s.VarName
		case *ast.DeclareConstStatement:
			p.constants[s.ConstID] = s.Name
		case *ast.DeclareOptionStatement:
			p.constants[s.OptionID] = s.OptName
		case *ast.DeclareStructStatement:
			p.structs[s.StructID] = s.Description.Name
		case *ast.DeclareFunctionStatement:
			p.functions[s.FuncID] = s.Name
			for _, param := range s.Parameters {
				p.variables[param.VarID] = param.Name
			}
		case *ast.DeclareExternalStatement:
			for _, ext := range s.Externals {
				p.variables[ext.VarID] = ext.Name
			}
		}
		return true
	})
}

func (p *printer) fail(format string, args ...any) string {
	if p.err == nil {
		p.err = fmt.Errorf("serialize: "+format, args...)
	}
	return ""
}

func (p *printer) line(format string, args ...any) {
	for i := 0; i < p.indent; i++ {
		p.out.WriteByte('\t')
	}
	if len(args) == 0 {
		p.out.WriteString(format)
	} else {
		fmt.Fprintf(&p.out, format, args...)
	}
	p.out.WriteByte('\n')
}

func (p *printer) attributes(attrs []string) {
	if len(attrs) > 0 {
		p.line("[%s]", strings.Join(attrs, ", "))
	}
}

func (p *printer) module(m *ast.Module) {
	md := m.Metadata
	if md == nil {
		md = &ast.Metadata{LangVersion: ast.LangVersion100}
	}
	attrs := []string{fmt.Sprintf("nzsl_version(%s)", quote(fmt.Sprintf("%d.%d", md.LangVersion/100, md.LangVersion%100)))}
	if md.Author != "" {
		attrs = append(attrs, fmt.Sprintf("author(%s)", quote(md.Author)))
	}
	if md.Description != "" {
		attrs = append(attrs, fmt.Sprintf("desc(%s)", quote(md.Description)))
	}
	if md.License != "" {
		attrs = append(attrs, fmt.Sprintf("license(%s)", quote(md.License)))
	}
	p.attributes(attrs)
	if md.ModuleName != "" {
		p.line("module %s;", md.ModuleName)
	} else {
		p.line("module;")
	}

	var previous ast.Statement
	for _, st := range m.RootNode.Statements {
		if _, ok := st.(*ast.NoOpStatement); ok {
			continue
		}
		if previous == nil || !sameGroup(previous, st) {
			p.line("")
		}
		p.declaration(st, nil)
		previous = st
	}
}

// sameGroup reports whether two single-line declarations are printed
// without a blank line between them.
func sameGroup(a, b ast.Statement) bool {
	switch a.(type) {
	case *ast.ImportStatement:
		_, ok := b.(*ast.ImportStatement)
		return ok
	case *ast.DeclareOptionStatement:
		_, ok := b.(*ast.DeclareOptionStatement)
		return ok
	case *ast.DeclareConstStatement:
		_, ok := b.(*ast.DeclareConstStatement)
		return ok
	case *ast.DeclareAliasStatement:
		_, ok := b.(*ast.DeclareAliasStatement)
		return ok
	}
	return false
}

// declaration prints a top-level statement with extra leading attributes.
func (p *printer) declaration(st ast.Statement, attrs []string) {
	switch s := st.(type) {
	case *ast.ConditionalStatement:
		p.declaration(s.Statement, append(attrs, "cond("+p.expr(s.Condition, precTernary)+")"))
	case *ast.ImportStatement:
		p.attributes(attrs)
		p.importStatement(s)
	case *ast.DeclareOptionStatement:
		p.attributes(attrs)
		p.option(s)
	case *ast.DeclareConstStatement:
		p.attributes(append(attrs, p.flag("export", s.IsExported)...))
		p.constant(s)
	case *ast.DeclareAliasStatement:
		p.attributes(append(attrs, p.flag("export", s.IsExported)...))
		p.line("alias %s = %s;", s.Name, p.expr(s.Expression, precTernary))
	case *ast.DeclareStructStatement:
		p.structDecl(s, attrs)
	case *ast.DeclareExternalStatement:
		p.external(s, attrs)
	case *ast.DeclareFunctionStatement:
		p.function(s, attrs)
	case *ast.MultiStatement:
		for i, inner := range s.Statements {
			if i > 0 {
				p.line("")
			}
			p.declaration(inner, attrs)
		}
	default:
		p.fail("%T is not a top-level declaration", st)
	}
}

func (p *printer) importStatement(s *ast.ImportStatement) {
	if len(s.Identifiers) == 0 {
		p.line("import %s;", s.ModuleName)
		return
	}
	names := make([]string, len(s.Identifiers))
	for i, id := range s.Identifiers {
		names[i] = id.Identifier
		if id.RenamedIdentifier != "" {
			names[i] += " as " + id.RenamedIdentifier
		}
	}
	p.line("import %s from %s;", strings.Join(names, ", "), s.ModuleName)
}

func (p *printer) option(s *ast.DeclareOptionStatement) {
	decl := fmt.Sprintf("option %s: %s", s.OptName, p.expr(s.OptType, precTernary))
	if s.DefaultValue != nil {
		decl += " = " + p.expr(s.DefaultValue, precTernary)
	}
	p.line("%s;", decl)
}

func (p *printer) constant(s *ast.DeclareConstStatement) {
	decl := "const " + s.Name
	if s.Type != nil {
		decl += ": " + p.expr(s.Type, precTernary)
	}
	p.line("%s = %s;", decl, p.expr(s.Expression, precTernary))
}

func (p *printer) structDecl(s *ast.DeclareStructStatement, attrs []string) {
	attrs = append(attrs, p.flag("export", s.IsExported)...)
	attrs = append(attrs, attribute(p, "layout", s.Description.Layout, ast.MemoryLayout.String)...)
	p.attributes(attrs)
	p.line("struct %s", s.Description.Name)
	p.line("{")
	p.indent++
	for i, m := range s.Description.Members {
		var ma []string
		if m.Cond != nil {
			ma = append(ma, "cond("+p.expr(m.Cond, precTernary)+")")
		}
		ma = append(ma, attribute(p, "builtin", m.Builtin, ast.BuiltinEntry.String)...)
		ma = append(ma, attribute(p, "location", m.LocationIndex, formatUint)...)
		decl := fmt.Sprintf("%s: %s", m.Name, p.expr(m.Type, precTernary))
		if len(ma) > 0 {
			decl = "[" + strings.Join(ma, ", ") + "] " + decl
		}
		if i < len(s.Description.Members)-1 {
			decl += ","
		}
		p.line("%s", decl)
	}
	p.indent--
	p.line("}")
}

func (p *printer) external(s *ast.DeclareExternalStatement, attrs []string) {
	p.attributes(append(attrs, attribute(p, "set", s.BindingSet, formatUint)...))
	p.line("external")
	p.line("{")
	p.indent++
	for i, ext := range s.Externals {
		var ea []string
		ea = append(ea, attribute(p, "set", ext.BindingSet, formatUint)...)
		ea = append(ea, attribute(p, "binding", ext.BindingIndex, formatUint)...)
		decl := fmt.Sprintf("%s: %s", ext.Name, p.expr(ext.Type, precTernary))
		if len(ea) > 0 {
			decl = "[" + strings.Join(ea, ", ") + "] " + decl
		}
		if i < len(s.Externals)-1 {
			decl += ","
		}
		p.line("%s", decl)
	}
	p.indent--
	p.line("}")
}

func (p *printer) function(fn *ast.DeclareFunctionStatement, attrs []string) {
	attrs = append(attrs, attribute(p, "entry", fn.EntryStage, ast.ShaderStage.String)...)
	attrs = append(attrs, p.workgroup(fn.Workgroup)...)
	if fn.EarlyFragmentTests.HasValue() {
		attrs = append(attrs, p.flag("early_fragment_tests", fn.EarlyFragmentTests)...)
	}
	attrs = append(attrs, attribute(p, "depth_write", fn.DepthWrite, ast.DepthWriteMode.String)...)
	attrs = append(attrs, p.flag("export", fn.IsExported)...)
	p.attributes(attrs)

	params := make([]string, len(fn.Parameters))
	for i, param := range fn.Parameters {
		params[i] = fmt.Sprintf("%s: %s", param.Name, p.expr(param.Type, precTernary))
	}
	header := fmt.Sprintf("fn %s(%s)", fn.Name, strings.Join(params, ", "))
	if fn.ReturnType != nil && !isVoidType(fn.ReturnType) {
		header += " -> " + p.expr(fn.ReturnType, precTernary)
	}
	p.line("%s", header)
	p.block(&ast.MultiStatement{Statements: fn.Statements})
}

func isVoidType(e ast.Expression) bool {
	te, ok := e.(*ast.TypeExpression)
	return ok && ast.IsVoid(te.Value)
}

// workgroup prints the sizes without the vector constructor the parser
// wraps them in.
func (p *printer) workgroup(a ast.AttributeValue[[3]uint32]) []string {
	switch {
	case a.Expr != nil:
		sizes := []ast.Expression{a.Expr}
		if call, ok := a.Expr.(*ast.CallFunctionExpression); ok {
			sizes = call.Parameters
		}
		return []string{"workgroup(" + p.exprList(sizes) + ")"}
	case a.Resolved:
		return []string{fmt.Sprintf("workgroup(%d, %d, %d)", a.Value[0], a.Value[1], a.Value[2])}
	}
	return nil
}

// flag prints a boolean attribute, omitting the argument when it is true.
func (p *printer) flag(name string, a ast.AttributeValue[bool]) []string {
	switch {
	case a.Expr != nil:
		return []string{name + "(" + p.expr(a.Expr, precTernary) + ")"}
	case a.Resolved && a.Value:
		return []string{name}
	case a.Resolved:
		return []string{name + "(false)"}
	}
	return nil
}

func attribute[T comparable](p *printer, name string, a ast.AttributeValue[T], format func(T) string) []string {
	switch {
	case a.Expr != nil:
		return []string{name + "(" + p.expr(a.Expr, precTernary) + ")"}
	case a.Resolved:
		return []string{name + "(" + format(a.Value) + ")"}
	}
	return nil
}

func formatUint(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`)
	return `"` + r.Replace(s) + `"`
}

// block prints a statement between braces, unwrapping one scope.
func (p *printer) block(st ast.Statement) {
	p.line("{")
	p.indent++
	if scoped, ok := st.(*ast.ScopedStatement); ok {
		st = scoped.Statement
	}
	p.statement(st)
	p.indent--
	p.line("}")
}

func (p *printer) statement(st ast.Statement) {
	switch s := st.(type) {
	case *ast.ExpressionStatement:
		p.line("%s;", p.expr(s.Expression, precTernary))
	case *ast.DeclareVariableStatement:
		decl := "let " + s.VarName
		if s.VarType != nil {
			decl += ": " + p.expr(s.VarType, precTernary)
		}
		if s.InitialExpression != nil {
			decl += " = " + p.expr(s.InitialExpression, precTernary)
		}
		p.line("%s;", decl)
	case *ast.DeclareConstStatement:
		p.constant(s)
	case *ast.MultiStatement:
		for _, inner := range s.Statements {
			p.statement(inner)
		}
	case *ast.ScopedStatement:
		p.block(s)
	case *ast.BranchStatement:
		keyword := "if"
		if s.IsConst {
			keyword = "const if"
		}
		for i, cb := range s.CondStatements {
			if i == 0 {
				p.line("%s (%s)", keyword, p.expr(cb.Condition, precTernary))
			} else {
				p.line("else if (%s)", p.expr(cb.Condition, precTernary))
			}
			p.block(cb.Statement)
		}
		if s.ElseStatement != nil {
			p.line("else")
			p.block(s.ElseStatement)
		}
	case *ast.ForStatement:
		p.attributes(attribute(p, "unroll", s.Unroll, ast.LoopUnroll.String))
		header := fmt.Sprintf("for %s in %s -> %s", s.VarName, p.expr(s.FromExpr, precTernary), p.expr(s.ToExpr, precTernary))
		if s.StepExpr != nil {
			header += " : " + p.expr(s.StepExpr, precTernary)
		}
		p.line("%s", header)
		p.block(s.Statement)
	case *ast.ForEachStatement:
		p.attributes(attribute(p, "unroll", s.Unroll, ast.LoopUnroll.String))
		p.line("for %s in %s", s.VarName, p.expr(s.Expression, precTernary))
		p.block(s.Statement)
	case *ast.WhileStatement:
		p.attributes(attribute(p, "unroll", s.Unroll, ast.LoopUnroll.String))
		p.line("while (%s)", p.expr(s.Condition, precTernary))
		p.block(s.Body)
	case *ast.ReturnStatement:
		if s.ReturnExpr == nil {
			p.line("return;")
		} else {
			p.line("return %s;", p.expr(s.ReturnExpr, precTernary))
		}
	case *ast.DiscardStatement:
		p.line("discard;")
	case *ast.BreakStatement:
		p.line("break;")
	case *ast.ContinueStatement:
		p.line("continue;")
	case *ast.NoOpStatement:
		p.line(";")
	default:
		p.fail("%T cannot appear in a function body", st)
	}
}

func (p *printer) exprList(list []ast.Expression) string {
	parts := make([]string, len(list))
	for i, e := range list {
		parts[i] = p.expr(e, precTernary)
	}
	return strings.Join(parts, ", ")
}

// expr prints an expression in a context binding at least as tight as prec,
// adding parentheses where needed.
//
//nolint:gocyclo,cyclop // one case per expression kind
func (p *printer) expr(e ast.Expression, prec int) string {
	switch x := e.(type) {
	case *ast.IdentifierExpression:
		return x.Identifier
	case *ast.VariableValueExpression:
		return p.name(p.variables, x.VariableID, "variable")
	case *ast.ConstantExpression:
		return p.name(p.constants, x.ConstantID, "constant")
	case *ast.FunctionExpression:
		return p.name(p.functions, x.FunctionID, "function")
	case *ast.StructTypeExpression:
		return p.name(p.structs, x.StructID, "struct")
	case *ast.IntrinsicFunctionExpression:
		return x.Intrinsic.String()
	case *ast.TypeExpression:
		return p.typeName(x.Value)

	case *ast.ConstantValueExpression:
		s := x.Value.String()
		if strings.HasPrefix(s, "-") && prec >= precUnary {
			return "(" + s + ")"
		}
		return s

	case *ast.BinaryExpression:
		level, ok := binaryPrecedence[x.Op]
		if !ok {
			return p.fail("unknown binary operator %s", x.Op)
		}
		s := p.expr(x.Left, level) + " " + x.Op.String() + " " + p.expr(x.Right, level+1)
		if level < prec {
			return "(" + s + ")"
		}
		return s

	case *ast.UnaryExpression:
		operand := p.expr(x.Expression, precUnary)
		if _, nested := x.Expression.(*ast.UnaryExpression); nested {
			operand = "(" + operand + ")"
		}
		s := x.Op.String() + operand
		if prec > precUnary {
			return "(" + s + ")"
		}
		return s

	case *ast.AssignExpression:
		s := p.expr(x.Left, precUnary) + " " + x.Op.String() + " " + p.expr(x.Right, precTernary)
		if prec > precTernary {
			return "(" + s + ")"
		}
		return s

	case *ast.ConditionalExpression:
		s := p.expr(x.Condition, 1) + " ? " + p.expr(x.TruePath, precTernary) + " : " + p.expr(x.FalsePath, precTernary)
		if prec > precTernary {
			return "(" + s + ")"
		}
		return s

	case *ast.CastExpression:
		return p.expr(x.TargetType, precPostfix) + "(" + p.exprList(x.Expressions) + ")"

	case *ast.CallFunctionExpression:
		return p.expr(x.TargetFunction, precPostfix) + "(" + p.exprList(x.Parameters) + ")"

	case *ast.CallMethodExpression:
		return p.expr(x.Object, precPostfix) + "." + x.MethodName + "(" + p.exprList(x.Parameters) + ")"

	case *ast.IntrinsicExpression:
		switch x.Intrinsic {
		case ast.IntrinsicSampleTexture, ast.IntrinsicArraySize:
			if len(x.Parameters) == 0 {
				return p.fail("method %s has no object", x.Intrinsic)
			}
			return p.expr(x.Parameters[0], precPostfix) + "." + x.Intrinsic.String() + "(" + p.exprList(x.Parameters[1:]) + ")"
		}
		return x.Intrinsic.String() + "(" + p.exprList(x.Parameters) + ")"

	case *ast.SwizzleExpression:
		return p.expr(x.Expr, precPostfix) + "." + ast.SwizzleString(x.SwizzleComponents())

	case *ast.AccessIdentifierExpression:
		var b strings.Builder
		b.WriteString(p.expr(x.Expr, precPostfix))
		for _, id := range x.Identifiers {
			b.WriteString("." + id.Name)
		}
		return b.String()

	case *ast.AccessIndexExpression:
		return p.accessIndex(x)

	case nil:
		return p.fail("missing expression")
	}
	return p.fail("unsupported expression %T", e)
}

func (p *printer) name(names map[int]string, id int, what string) string {
	if n, ok := names[id]; ok {
		return n
	}
	return p.fail("%s #%d has no declaration", what, id)
}

// accessIndex prints member accesses of sanitized struct values as .name and
// other indices in brackets. Type constructors keep the comma form.
func (p *printer) accessIndex(x *ast.AccessIndexExpression) string {
	var b strings.Builder
	b.WriteString(p.expr(x.Expr, precPostfix))
	if _, isName := x.Expr.(*ast.IdentifierExpression); isName {
		b.WriteString("[" + p.exprList(x.Indices) + "]")
		return b.String()
	}

	t := x.Expr.ResolvedType()
	for _, idx := range x.Indices {
		if st, ok := containerOf(t); ok {
			v, isConst := idx.(*ast.ConstantValueExpression)
			n, isInt := int64(0), false
			if isConst {
				n, isInt = ast.ConstantInt(v.Value)
			}
			if !isInt || n < 0 || int(n) >= len(st.Members) {
				return p.fail("invalid member index of struct %s", st.Name)
			}
			b.WriteString("." + st.Members[n].Name)
			t = st.Members[n].Type
			continue
		}
		b.WriteString("[" + p.expr(idx, precTernary) + "]")
		switch c := t.(type) {
		case ast.ArrayType:
			t = c.ContainedType
		case ast.VectorType:
			t = c.Type
		case ast.MatrixType:
			t = c.ColumnType()
		default:
			t = nil
		}
	}
	return b.String()
}

func containerOf(t ast.ExpressionType) (ast.StructType, bool) {
	switch x := t.(type) {
	case ast.StructType:
		return x, true
	case ast.UniformType:
		return x.Container, true
	case ast.StorageType:
		return x.Container, true
	}
	return ast.StructType{}, false
}

// typeName prints a resolved type with the source type syntax.
func (p *printer) typeName(t ast.ExpressionType) string {
	switch x := t.(type) {
	case nil, ast.NoType:
		return p.fail("void has no source spelling")
	case ast.FunctionType, ast.IntrinsicFunctionType:
		return p.fail("function type %s has no source spelling", t)
	case ast.StructType:
		if name, ok := p.structs[x.StructID]; ok {
			return name
		}
		return x.Name
	}
	return t.String()
}
