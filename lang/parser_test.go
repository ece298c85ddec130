package lang

import (
	"testing"

	"github.com/gogpu/nzsl/ast"
)

func parseSource(t *testing.T, src string) *ast.Module {
	t.Helper()
	m, err := ParseSource(src)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return m
}

func parseExpr(t *testing.T, expr string) ast.Expression {
	t.Helper()
	m := parseSource(t, "module; fn f() { let x = "+expr+"; }")
	fn := m.RootNode.Statements[0].(*ast.DeclareFunctionStatement)
	return fn.Statements[0].(*ast.DeclareVariableStatement).InitialExpression
}

func TestParseModuleHeader(t *testing.T) {
	m := parseSource(t, `
[nzsl_version("1.1")]
[author("Lynix"), desc("test module"), license("MIT")]
module Engine.Lighting;

import Helpers;
import Foo, Bar as Baz from Lib.Common;
`)
	md := m.Metadata
	if md.ModuleName != "Engine.Lighting" {
		t.Errorf("module name = %q", md.ModuleName)
	}
	if md.LangVersion != 101 {
		t.Errorf("lang version = %d, want 101", md.LangVersion)
	}
	if md.Author != "Lynix" || md.Description != "test module" || md.License != "MIT" {
		t.Errorf("unexpected metadata %+v", md)
	}
	if len(md.Imports) != 2 || md.Imports[0] != "Helpers" || md.Imports[1] != "Lib.Common" {
		t.Errorf("imports = %v", md.Imports)
	}

	imp := m.RootNode.Statements[1].(*ast.ImportStatement)
	if len(imp.Identifiers) != 2 || imp.Identifiers[1].Identifier != "Bar" || imp.Identifiers[1].RenamedIdentifier != "Baz" {
		t.Errorf("unexpected import identifiers %+v", imp.Identifiers)
	}
}

func TestParseAnonymousModule(t *testing.T) {
	m := parseSource(t, "module;")
	if m.Metadata.ModuleName != "" || m.Metadata.LangVersion != ast.LangVersion100 {
		t.Errorf("unexpected metadata %+v", m.Metadata)
	}
}

func TestParseDeclarations(t *testing.T) {
	m := parseSource(t, `
module;

option UseFog: bool = false;
const Pi = 3.14159;
alias Color = vec4[f32];

[layout(std140)]
struct Data
{
	projection: mat4[f32],
	tint: vec4<f32>,
}

external
{
	[set(0), binding(0)] data: uniform[Data],
	[binding(1)] tex: sampler2D[f32]
}

[entry(frag), early_fragment_tests, depth_write(greater)]
fn main(input: FragIn) -> FragOut
{
	let x: f32 = 1.0;
	return x;
}
`)
	stmts := m.RootNode.Statements
	if len(stmts) != 6 {
		t.Fatalf("expected 6 declarations, got %d", len(stmts))
	}

	opt := stmts[0].(*ast.DeclareOptionStatement)
	if opt.OptName != "UseFog" || opt.DefaultValue == nil {
		t.Errorf("unexpected option %+v", opt)
	}

	st := stmts[3].(*ast.DeclareStructStatement)
	if st.Description.Name != "Data" || len(st.Description.Members) != 2 || st.Description.Layout.Expr == nil {
		t.Errorf("unexpected struct %+v", st.Description)
	}
	// vec4<f32> parses like vec4[f32]
	tint := st.Description.Members[1].Type.(*ast.AccessIndexExpression)
	if tint.Expr.(*ast.IdentifierExpression).Identifier != "vec4" {
		t.Errorf("unexpected member type %#v", tint)
	}

	ext := stmts[4].(*ast.DeclareExternalStatement)
	if len(ext.Externals) != 2 || ext.Externals[0].BindingSet.Expr == nil || ext.Externals[1].BindingSet.Expr != nil {
		t.Errorf("unexpected externals %+v", ext.Externals)
	}

	fn := stmts[5].(*ast.DeclareFunctionStatement)
	if !fn.IsEntryPoint() || fn.DepthWrite.Expr == nil || !fn.EarlyFragmentTests.Resolved || !fn.EarlyFragmentTests.Value {
		t.Errorf("unexpected function attributes %+v", fn)
	}
	if len(fn.Parameters) != 1 || fn.ReturnType == nil || len(fn.Statements) != 2 {
		t.Errorf("unexpected function signature %+v", fn)
	}
}

func TestParseCondAttribute(t *testing.T) {
	m := parseSource(t, `
module;
option Debug: bool;
[cond(Debug)]
fn helper() {}
`)
	cond, ok := m.RootNode.Statements[1].(*ast.ConditionalStatement)
	if !ok {
		t.Fatalf("expected ConditionalStatement, got %T", m.RootNode.Statements[1])
	}
	if _, ok := cond.Statement.(*ast.DeclareFunctionStatement); !ok {
		t.Errorf("expected wrapped function, got %T", cond.Statement)
	}
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		expr string
		root ast.BinaryType
	}{
		{"1 + 2 * 3", ast.BinaryAdd},
		{"1 * 2 + 3", ast.BinaryAdd},
		{"a || b && c", ast.BinaryLogicalOr},
		{"a == b < c", ast.BinaryCompEq},
		{"a | b ^ c & d", ast.BinaryBitwiseOr},
		{"a << 1 + 2", ast.BinaryShiftLeft},
		{"1 - 2 - 3", ast.BinarySubtract},
	}
	for _, tt := range tests {
		bin, ok := parseExpr(t, tt.expr).(*ast.BinaryExpression)
		if !ok {
			t.Errorf("%q: expected binary expression", tt.expr)
			continue
		}
		if bin.Op != tt.root {
			t.Errorf("%q: root op = %s, want %s", tt.expr, bin.Op, tt.root)
		}
	}

	// left associativity: (1 - 2) - 3
	bin := parseExpr(t, "1 - 2 - 3").(*ast.BinaryExpression)
	if _, ok := bin.Left.(*ast.BinaryExpression); !ok {
		t.Error("subtraction should be left-associative")
	}
}

func TestParseTernaryAndUnary(t *testing.T) {
	cond, ok := parseExpr(t, "a > 0.0 ? -b : !c").(*ast.ConditionalExpression)
	if !ok {
		t.Fatal("expected conditional expression")
	}
	if u, ok := cond.TruePath.(*ast.UnaryExpression); !ok || u.Op != ast.UnaryMinus {
		t.Errorf("unexpected true path %#v", cond.TruePath)
	}
	if u, ok := cond.FalsePath.(*ast.UnaryExpression); !ok || u.Op != ast.UnaryLogicalNot {
		t.Errorf("unexpected false path %#v", cond.FalsePath)
	}
}

func TestParseAccessChains(t *testing.T) {
	access, ok := parseExpr(t, "a.b.c.xyz").(*ast.AccessIdentifierExpression)
	if !ok {
		t.Fatal("expected member access")
	}
	if len(access.Identifiers) != 3 {
		t.Errorf("member chain should merge into one node, got %d identifiers", len(access.Identifiers))
	}

	index, ok := parseExpr(t, "m[0][1]").(*ast.AccessIndexExpression)
	if !ok || len(index.Indices) != 2 {
		t.Errorf("index chain should merge into one node: %#v", index)
	}

	mixed, ok := parseExpr(t, "a.b[2].c").(*ast.AccessIdentifierExpression)
	if !ok {
		t.Fatal("expected member access at the top")
	}
	if _, ok := mixed.Expr.(*ast.AccessIndexExpression); !ok {
		t.Errorf("expected index access below, got %T", mixed.Expr)
	}
}

func TestParseCalls(t *testing.T) {
	call, ok := parseExpr(t, "vec3[f32](1.0, 2.0, 3.0)").(*ast.CallFunctionExpression)
	if !ok || len(call.Parameters) != 3 {
		t.Fatalf("expected constructor call, got %#v", call)
	}
	if _, ok := call.TargetFunction.(*ast.AccessIndexExpression); !ok {
		t.Errorf("constructor target should be a type expression, got %T", call.TargetFunction)
	}

	method, ok := parseExpr(t, "tex.Sample(uv)").(*ast.CallMethodExpression)
	if !ok || method.MethodName != "Sample" || len(method.Parameters) != 1 {
		t.Errorf("unexpected method call %#v", method)
	}

	generic, ok := parseExpr(t, "vec2<f32>(0.0, 1.0)").(*ast.CallFunctionExpression)
	if !ok || len(generic.Parameters) != 2 {
		t.Errorf("unexpected generic constructor %#v", generic)
	}
}

func TestParseLiterals(t *testing.T) {
	tests := []struct {
		expr string
		want ast.ConstantValue
	}{
		{"42", ast.Int32Value(42)},
		{"7u", ast.UInt32Value(7)},
		{"0x1F", ast.Int32Value(31)},
		{"010", ast.Int32Value(10)},
		{"1.5", ast.Float32Value(1.5)},
		{"2.5f", ast.Float32Value(2.5)},
		{"1e2", ast.Float32Value(100)},
		{"true", ast.BoolValue(true)},
	}
	for _, tt := range tests {
		lit, ok := parseExpr(t, tt.expr).(*ast.ConstantValueExpression)
		if !ok {
			t.Errorf("%q: expected literal", tt.expr)
			continue
		}
		if !ast.ValuesEqual(lit.Value, tt.want) {
			t.Errorf("%q: got %s, want %s", tt.expr, lit.Value, tt.want)
		}
	}
}

func TestParseStatements(t *testing.T) {
	m := parseSource(t, `
module;
fn f()
{
	let i = 0;
	while (i < 10) { i += 1; }
	for v in values { continue; }
	[unroll]
	for j in 0 -> 10 : 2 { break; }
	if (a) { } else if (b) { } else if (c) { } else { discard; }
	const if (UseFog) { }
	{ ; }
	x = y;
	return;
}
`)
	fn := m.RootNode.Statements[0].(*ast.DeclareFunctionStatement)
	wantTypes := []string{
		"*ast.DeclareVariableStatement",
		"*ast.WhileStatement",
		"*ast.ForEachStatement",
		"*ast.ForStatement",
		"*ast.BranchStatement",
		"*ast.BranchStatement",
		"*ast.ScopedStatement",
		"*ast.ExpressionStatement",
		"*ast.ReturnStatement",
	}
	if len(fn.Statements) != len(wantTypes) {
		t.Fatalf("expected %d statements, got %d", len(wantTypes), len(fn.Statements))
	}
	for i, s := range fn.Statements {
		if got := typeName(s); got != wantTypes[i] {
			t.Errorf("statement %d: got %s, want %s", i, got, wantTypes[i])
		}
	}

	loop := fn.Statements[3].(*ast.ForStatement)
	if loop.StepExpr == nil || !loop.Unroll.Resolved || loop.Unroll.Value != ast.UnrollAlways {
		t.Errorf("unexpected for statement %+v", loop)
	}

	branch := fn.Statements[4].(*ast.BranchStatement)
	if len(branch.CondStatements) != 3 || branch.ElseStatement == nil {
		t.Errorf("else-if chain should be one branch with 3 conditions, got %d", len(branch.CondStatements))
	}
	if !fn.Statements[5].(*ast.BranchStatement).IsConst {
		t.Error("const if should be marked const")
	}

	assign := fn.Statements[7].(*ast.ExpressionStatement).Expression.(*ast.AssignExpression)
	if assign.Op != ast.AssignSimple {
		t.Errorf("unexpected assign op %s", assign.Op)
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *ast.DeclareVariableStatement:
		return "*ast.DeclareVariableStatement"
	case *ast.WhileStatement:
		return "*ast.WhileStatement"
	case *ast.ForEachStatement:
		return "*ast.ForEachStatement"
	case *ast.ForStatement:
		return "*ast.ForStatement"
	case *ast.BranchStatement:
		return "*ast.BranchStatement"
	case *ast.ScopedStatement:
		return "*ast.ScopedStatement"
	case *ast.ExpressionStatement:
		return "*ast.ExpressionStatement"
	case *ast.ReturnStatement:
		return "*ast.ReturnStatement"
	}
	return "other"
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		expected string
	}{
		{"missing module", "fn f() {}", "module"},
		{"missing semicolon", "module; fn f() { let a = 1 }", ";"},
		{"unknown attribute", "module; [magic] fn f() {}", "attribute"},
		{"misplaced attribute", "module; [location(0)] fn f() {}", ""},
		{"empty struct", "module; struct S {}", "struct member"},
		{"bad version", `[nzsl_version("one")] module;`, "version string"},
		{"unexpected token", "module; fn f() { let = 1; }", "identifier"},
		{"let without type or value", "module; fn f() { let a; }", "type or initializer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSource(tt.src)
			if err == nil {
				t.Fatal("expected a parse error")
			}
			e, ok := err.(*ast.Error)
			if !ok || e.Kind != ast.ErrParse {
				t.Fatalf("expected a parse error, got %T %v", err, err)
			}
			if tt.expected != "" && e.Expected != tt.expected {
				t.Errorf("expected = %q, want %q (%v)", e.Expected, tt.expected, err)
			}
			if !e.Span.IsValid() {
				t.Error("parse error should carry a location")
			}
		})
	}
}
