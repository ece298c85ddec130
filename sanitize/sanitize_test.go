package sanitize

import (
	"fmt"
	"strings"
	"testing"

	"github.com/gogpu/nzsl/ast"
	"github.com/gogpu/nzsl/lang"
)

func parseSource(t *testing.T, src string) *ast.Module {
	t.Helper()
	m, err := lang.ParseSource(src)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return m
}

func sanitizeSource(t *testing.T, src string, opts Options) *ast.Module {
	t.Helper()
	out, err := Sanitize(parseSource(t, src), opts)
	if err != nil {
		t.Fatalf("sanitize failed: %v", err)
	}
	return out
}

func findVariable(t *testing.T, m *ast.Module, name string) *ast.DeclareVariableStatement {
	t.Helper()
	var found *ast.DeclareVariableStatement
	ast.Inspect(m.RootNode, func(n ast.Node) bool {
		if v, ok := n.(*ast.DeclareVariableStatement); ok && v.VarName == name {
			found = v
		}
		return found == nil
	})
	if found == nil {
		t.Fatalf("variable %s not found", name)
	}
	return found
}

func findFunction(t *testing.T, m *ast.Module, name string) *ast.DeclareFunctionStatement {
	t.Helper()
	for _, fn := range m.Functions() {
		if fn.Name == name {
			return fn
		}
	}
	t.Fatalf("function %s not found", name)
	return nil
}

func returnExpr(t *testing.T, fn *ast.DeclareFunctionStatement) ast.Expression {
	t.Helper()
	for _, st := range fn.Statements {
		if r, ok := st.(*ast.ReturnStatement); ok {
			return r.ReturnExpr
		}
	}
	t.Fatalf("function %s has no return statement", fn.Name)
	return nil
}

func checkAllTyped(t *testing.T, m *ast.Module) {
	t.Helper()
	ast.Inspect(m.RootNode, func(n ast.Node) bool {
		e, ok := n.(ast.Expression)
		if !ok {
			return true
		}
		if e.ResolvedType() == nil {
			t.Errorf("expression %T at %s has no type", e, e.Pos())
		}
		return true
	})
}

func countNodes[T ast.Node](root ast.Node) int {
	count := 0
	ast.Inspect(root, func(n ast.Node) bool {
		if _, ok := n.(T); ok {
			count++
		}
		return true
	})
	return count
}

const shaderSource = `
[nzsl_version("1.0")]
module Test;

option UseTint: bool = true;

const Scale = 2.0 * 0.5;
alias Color = vec4[f32];

[layout(std140)]
struct Data
{
	viewProj: mat4[f32],
	tint: vec4[f32]
}

external
{
	[set(0), binding(0)] data: uniform[Data],
	[binding(1)] tex: sampler2D[f32]
}

struct VertIn
{
	[location(0)] pos: vec3[f32],
	[location(1)] uv: vec2[f32]
}

struct VertOut
{
	[builtin(position)] position: vec4[f32],
	[location(0)] uv: vec2[f32]
}

struct FragIn
{
	[location(0)] uv: vec2[f32]
}

struct FragOut
{
	[location(0)] color: Color
}

fn brighten(c: Color, amount: f32) -> Color
{
	return c * amount;
}

[entry(vert)]
fn main(input: VertIn) -> VertOut
{
	let output: VertOut;
	output.position = data.viewProj * vec4[f32](input.pos, 1.0);
	output.uv = input.uv;
	return output;
}

[entry(frag)]
fn fs(input: FragIn) -> FragOut
{
	let color = tex.Sample(input.uv);
	const if (UseTint)
	{
		color *= data.tint;
	}
	let output: FragOut;
	output.color = brighten(color, Scale);
	return output;
}
`

func TestSanitizeTypesEveryExpression(t *testing.T) {
	m := sanitizeSource(t, shaderSource, DefaultOptions())
	checkAllTyped(t, m)

	if got := len(m.EntryPoints()); got != 2 {
		t.Fatalf("entry points = %d, want 2", got)
	}
	main := findFunction(t, m, "main")
	if !main.EntryStage.Resolved || main.EntryStage.Value != ast.StageVertex {
		t.Errorf("main stage = %+v, want vertex", main.EntryStage)
	}
	if main.FuncID == 0 {
		t.Error("main has no function ID")
	}
}

func TestSanitizeAssignsUniqueIDs(t *testing.T) {
	m := sanitizeSource(t, shaderSource, DefaultOptions())
	seen := make(map[int]string)
	ast.Inspect(m.RootNode, func(n ast.Node) bool {
		var id int
		var name string
		switch d := n.(type) {
		case *ast.DeclareVariableStatement:
			id, name = d.VarID, d.VarName
		case *ast.DeclareExternalStatement:
			for _, e := range d.Externals {
				if other, dup := seen[e.VarID]; dup {
					t.Errorf("external %s reuses ID %d of %s", e.Name, e.VarID, other)
				}
				seen[e.VarID] = e.Name
			}
			return true
		case *ast.DeclareFunctionStatement:
			for _, p := range d.Parameters {
				if other, dup := seen[p.VarID]; dup && other != p.Name {
					t.Errorf("parameter %s reuses ID %d of %s", p.Name, p.VarID, other)
				}
				seen[p.VarID] = p.Name
			}
			return true
		default:
			return true
		}
		if id == 0 {
			t.Errorf("variable %s has no ID", name)
		}
		if other, dup := seen[id]; dup {
			t.Errorf("variable %s reuses ID %d of %s", name, id, other)
		}
		seen[id] = name
		return true
	})
}

func TestSanitizeDoesNotModifyInput(t *testing.T) {
	m := parseSource(t, shaderSource)
	before := ast.CloneModule(m)
	if _, err := Sanitize(m, Options{SplitMultipleBranches: true, ReduceLoopsToWhile: true, RemoveMatrixCast: true}); err != nil {
		t.Fatalf("sanitize failed: %v", err)
	}
	if !ast.ModulesEqual(m, before) {
		t.Error("Sanitize modified its input")
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	src := shaderSource + `
fn loops() -> i32
{
	let total = 0;
	for i in 0 -> 10
	{
		if (i == 5) { continue; }
		else if (i == 7) { break; }
		total += i;
	}
	let values = array[i32, 3](1, 2, 3);
	for v in values
	{
		total += v;
	}
	return total;
}
`
	opts := Options{SplitMultipleBranches: true, ReduceLoopsToWhile: true, RemoveMatrixCast: true}
	first := sanitizeSource(t, src, opts)
	second, err := Sanitize(first, opts)
	if err != nil {
		t.Fatalf("second sanitization failed: %v", err)
	}
	if !ast.ModulesEqual(first, second) {
		t.Error("sanitizing a sanitized module changed it")
	}
}

func TestSanitizeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "cross of vec2",
			src:  `module; fn f() { let a = vec2[f32](1.0, 2.0); let b = cross(a, a); }`,
			want: "3 components",
		},
		{
			name: "vec3 into vec2",
			src:  `module; fn f() { let a: vec2[f32] = vec3[f32](1.0, 2.0, 3.0); }`,
			want: "cannot initialize variable a",
		},
		{
			name: "unknown identifier",
			src:  `module; fn f() { let a = b; }`,
			want: "unknown identifier b",
		},
		{
			name: "recursion",
			src:  `module; fn f() { f(); }`,
			want: "recursion",
		},
		{
			name: "mutual recursion",
			src:  `module; fn f() { g(); } fn g() { f(); }`,
			want: "unknown identifier g",
		},
		{
			name: "break outside loop",
			src:  `module; fn f() { break; }`,
			want: "break outside of a loop",
		},
		{
			name: "constant array index out of range",
			src:  `module; fn f() { let a = array[f32, 3](1.0, 2.0, 3.0); let b = a[5]; }`,
			want: "index 5 is out of range for array[f32, 3]",
		},
		{
			name: "negative constant array index",
			src:  `module; fn f() { let a = array[f32, 3](1.0, 2.0, 3.0); let b = a[-1]; }`,
			want: "index -1 is out of range",
		},
		{
			name: "named constant index out of range",
			src:  `module; const N = 3; fn f() { let a = array[f32, 3](1.0, 2.0, 3.0); let b = a[N]; }`,
			want: "index 3 is out of range",
		},
		{
			name: "matrix column out of range",
			src:  `module; fn f(m: mat2[f32]) { let c = m[2]; }`,
			want: "index 2 is out of range for mat2[f32]",
		},
		{
			name: "scalar swizzle out of range",
			src:  `module; fn f() { let a = 1.0; let b = a.y; }`,
			want: "first component",
		},
		{
			name: "repeated swizzle write",
			src:  `module; fn f() { let v = vec3[f32](0.0, 0.0, 0.0); v.xx = vec2[f32](1.0, 2.0); }`,
			want: "repeats a component",
		},
		{
			name: "mixed operand types",
			src:  `module; fn f() { let a = 1 + 1.0; }`,
			want: "cannot be applied to i32 and f32",
		},
		{
			name: "non-constant const",
			src:  `module; fn f() { let a = 1; const b = a; }`,
			want: "not a compile-time constant",
		},
		{
			name: "unknown stage",
			src:  `module; [entry(geometry)] fn main() {}`,
			want: "unknown shader stage geometry",
		},
		{
			name: "compute without workgroup",
			src:  `module; [entry(compute)] fn main() {}`,
			want: "requires a workgroup size",
		},
		{
			name: "external without binding",
			src:  `module; struct Data { x: f32 } external { data: uniform[Data] }`,
			want: "requires a binding",
		},
		{
			name: "assign to uniform",
			src:  `module; struct Data { x: f32 } external { [binding(0)] data: uniform[Data] } fn f() { data.x = 1.0; }`,
			want: "cannot assign to external data",
		},
		{
			name: "entry input without location",
			src:  `module; struct In { pos: vec3[f32] } [entry(vert)] fn main(input: In) {}`,
			want: "needs a location or builtin",
		},
		{
			name: "builtin of another stage",
			src:  `module; struct In { [builtin(fragcoord)] pos: vec4[f32] } [entry(vert)] fn main(input: In) {}`,
			want: "not available in vert stage",
		},
		{
			name: "missing return value",
			src:  `module; fn f() -> f32 { return; }`,
			want: "must return a value",
		},
		{
			name: "unknown member",
			src:  `module; struct S { x: f32 } fn f(s: S) -> f32 { return s.y; }`,
			want: "struct S has no member y",
		},
		{
			name: "duplicate declaration",
			src:  `module; fn f() { let a = 1; let a = 2; }`,
			want: "already declared",
		},
		{
			name: "wrong argument count",
			src:  `module; fn g(a: f32) -> f32 { return a; } fn f() { let x = g(1.0, 2.0); }`,
			want: "expects 1 argument(s), got 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sanitize(parseSource(t, tt.src), DefaultOptions())
			if err == nil {
				t.Fatal("expected an error")
			}
			if !ast.IsKind(err, ast.ErrSemantic) {
				t.Errorf("error %v is not a semantic error", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestSanitizeCollapsesSwizzles(t *testing.T) {
	m := sanitizeSource(t, `
module;
fn f()
{
	let v = vec3[f32](1.0, 2.0, 3.0);
	let s = v.xyz.yz.y.x.xxxx;
	let b = max(2.0, 1.0).xxx;
}
`, DefaultOptions())

	sw, ok := findVariable(t, m, "s").InitialExpression.(*ast.SwizzleExpression)
	if !ok {
		t.Fatalf("s initializer is %T, want *ast.SwizzleExpression", findVariable(t, m, "s").InitialExpression)
	}
	if _, ok := sw.Expr.(*ast.VariableValueExpression); !ok {
		t.Errorf("swizzle source is %T, want the variable itself", sw.Expr)
	}
	if got := sw.SwizzleComponents(); len(got) != 4 || got[0] != 2 || got[1] != 2 || got[2] != 2 || got[3] != 2 {
		t.Errorf("components = %v, want [2 2 2 2]", got)
	}
	if want := (ast.VectorType{ComponentCount: 4, Type: ast.PrimitiveFloat32}); !ast.TypesEqual(sw.Type, want) {
		t.Errorf("type = %s, want %s", sw.Type, want)
	}

	broadcast, ok := findVariable(t, m, "b").InitialExpression.(*ast.SwizzleExpression)
	if !ok {
		t.Fatal("b initializer is not a swizzle")
	}
	if intr, ok := broadcast.Expr.(*ast.IntrinsicExpression); !ok || intr.Intrinsic != ast.IntrinsicMax {
		t.Errorf("broadcast source is %T, want max intrinsic", broadcast.Expr)
	}
	if broadcast.ComponentCount != 3 {
		t.Errorf("broadcast components = %d, want 3", broadcast.ComponentCount)
	}
}

func TestSanitizeMemberAccess(t *testing.T) {
	m := sanitizeSource(t, `
module;
struct Inner { v: vec3[f32] }
struct Outer { scale: f32, inner: Inner }
fn f(o: Outer) -> f32
{
	return o.inner.v.y;
}
`, DefaultOptions())

	sw, ok := returnExpr(t, findFunction(t, m, "f")).(*ast.SwizzleExpression)
	if !ok {
		t.Fatalf("return expression is not a swizzle")
	}
	access, ok := sw.Expr.(*ast.AccessIndexExpression)
	if !ok {
		t.Fatalf("swizzle source is %T, want *ast.AccessIndexExpression", sw.Expr)
	}
	if len(access.Indices) != 2 {
		t.Fatalf("indices = %d, want 2 merged indices", len(access.Indices))
	}
	for i, want := range []int32{1, 0} {
		c, ok := access.Indices[i].(*ast.ConstantValueExpression)
		if !ok || c.Value != ast.Int32Value(want) {
			t.Errorf("index %d = %v, want constant %d", i, access.Indices[i], want)
		}
	}
	if sw.Type != ast.PrimitiveFloat32 {
		t.Errorf("type = %s, want f32", sw.Type)
	}
}

func TestSanitizeCastsAndFolding(t *testing.T) {
	m := sanitizeSource(t, `
module;
const X = 2 * 3 + 1;
const V = vec2[f32](1.0, -2.0);
fn f(a: i32) -> f32
{
	return f32(a);
}
`, DefaultOptions())

	var consts []*ast.DeclareConstStatement
	for _, st := range m.TopLevel() {
		if c, ok := st.(*ast.DeclareConstStatement); ok {
			consts = append(consts, c)
		}
	}
	if len(consts) != 2 {
		t.Fatalf("constants = %d, want 2", len(consts))
	}
	x, ok := consts[0].Expression.(*ast.ConstantValueExpression)
	if !ok || x.Value != ast.Int32Value(7) {
		t.Errorf("X = %v, want folded 7", consts[0].Expression)
	}
	v, ok := consts[1].Expression.(*ast.ConstantValueExpression)
	want := ast.VectorValue{Components: []ast.ConstantValue{ast.Float32Value(1), ast.Float32Value(-2)}}
	if !ok || !ast.ValuesEqual(v.Value, want) {
		t.Errorf("V = %v, want %s", consts[1].Expression, want)
	}

	cast, ok := returnExpr(t, findFunction(t, m, "f")).(*ast.CastExpression)
	if !ok {
		t.Fatal("f32(a) is not a cast")
	}
	if cast.Type != ast.PrimitiveFloat32 || len(cast.Expressions) != 1 {
		t.Errorf("cast = %s with %d args", cast.Type, len(cast.Expressions))
	}
}

func TestSanitizeSplitBranches(t *testing.T) {
	src := `
module;
fn f(x: i32) -> i32
{
	let r = 0;
	if (x == 0) { r = 1; }
	else if (x == 1) { r = 2; }
	else if (x == 2) { r = 3; }
	else { r = 4; }
	return r;
}
`
	plain := sanitizeSource(t, src, DefaultOptions())
	br := findFunction(t, plain, "f").Statements[1].(*ast.BranchStatement)
	if len(br.CondStatements) != 3 {
		t.Fatalf("unsplit branch has %d conditions, want 3", len(br.CondStatements))
	}

	split := sanitizeSource(t, src, Options{SplitMultipleBranches: true})
	depth := 0
	var cur ast.Statement = findFunction(t, split, "f").Statements[1]
	for {
		b, ok := cur.(*ast.BranchStatement)
		if !ok {
			break
		}
		if len(b.CondStatements) != 1 {
			t.Fatalf("split branch has %d conditions", len(b.CondStatements))
		}
		depth++
		cur = b.ElseStatement
	}
	if depth != 3 {
		t.Errorf("nested branches = %d, want 3", depth)
	}
	if _, ok := cur.(*ast.ScopedStatement); !ok {
		t.Errorf("final else is %T, want the original block", cur)
	}
}

func TestSanitizeReduceLoops(t *testing.T) {
	src := `
module;
fn f() -> i32
{
	let total = 0;
	for i in 0 -> 10
	{
		if (i == 5) { continue; }
		total += i;
	}
	let values = array[i32, 3](1, 2, 3);
	for v in values
	{
		total += v;
	}
	return total;
}
`
	kept := sanitizeSource(t, src, DefaultOptions())
	if countNodes[*ast.ForStatement](kept.RootNode) != 1 || countNodes[*ast.ForEachStatement](kept.RootNode) != 1 {
		t.Fatal("loops were rewritten without ReduceLoopsToWhile")
	}

	m := sanitizeSource(t, src, Options{ReduceLoopsToWhile: true})
	checkAllTyped(t, m)
	if n := countNodes[*ast.ForStatement](m.RootNode) + countNodes[*ast.ForEachStatement](m.RootNode); n != 0 {
		t.Errorf("%d for loops remain", n)
	}
	if n := countNodes[*ast.WhileStatement](m.RootNode); n != 2 {
		t.Errorf("while loops = %d, want 2", n)
	}

	incremented := false
	ast.Inspect(m.RootNode, func(n ast.Node) bool {
		multi, ok := n.(*ast.MultiStatement)
		if !ok {
			return true
		}
		for i, st := range multi.Statements {
			if _, ok := st.(*ast.ContinueStatement); !ok || i == 0 {
				continue
			}
			prev, ok := multi.Statements[i-1].(*ast.ExpressionStatement)
			if !ok {
				continue
			}
			if assign, ok := prev.Expression.(*ast.AssignExpression); ok && assign.Op == ast.AssignAdd {
				incremented = true
			}
		}
		return true
	})
	if !incremented {
		t.Error("continue is not preceded by the counter increment")
	}
}

func TestSanitizeRemoveMatrixCast(t *testing.T) {
	src := `
module;
fn shrink(m: mat4[f32]) -> mat3[f32]
{
	return mat3[f32](m);
}
fn grow(m: mat2[f32]) -> mat3[f32]
{
	return mat3[f32](m);
}
`
	kept := sanitizeSource(t, src, DefaultOptions())
	if c := returnExpr(t, findFunction(t, kept, "shrink")).(*ast.CastExpression); len(c.Expressions) != 1 {
		t.Fatalf("cast has %d arguments without RemoveMatrixCast, want 1", len(c.Expressions))
	}

	m := sanitizeSource(t, src, Options{RemoveMatrixCast: true})
	checkAllTyped(t, m)

	shrink := returnExpr(t, findFunction(t, m, "shrink")).(*ast.CastExpression)
	if len(shrink.Expressions) != 3 {
		t.Fatalf("shrink columns = %d, want 3", len(shrink.Expressions))
	}
	for i, col := range shrink.Expressions {
		sw, ok := col.(*ast.SwizzleExpression)
		if !ok || sw.ComponentCount != 3 {
			t.Errorf("shrink column %d is %T, want a 3-component swizzle", i, col)
		}
	}

	grow := returnExpr(t, findFunction(t, m, "grow")).(*ast.CastExpression)
	if len(grow.Expressions) != 3 {
		t.Fatalf("grow columns = %d, want 3", len(grow.Expressions))
	}
	for i := 0; i < 2; i++ {
		if _, ok := grow.Expressions[i].(*ast.CastExpression); !ok {
			t.Errorf("grow column %d is %T, want a vector construction", i, grow.Expressions[i])
		}
	}
	last, ok := grow.Expressions[2].(*ast.ConstantValueExpression)
	want := ast.VectorValue{Components: []ast.ConstantValue{ast.Float32Value(0), ast.Float32Value(0), ast.Float32Value(1)}}
	if !ok || !ast.ValuesEqual(last.Value, want) {
		t.Errorf("grow column 2 = %v, want identity column %s", grow.Expressions[2], want)
	}
}

func TestSanitizeSplitBranchesKeepsOutcome(t *testing.T) {
	src := `
module;
fn pick(a: bool, b: bool, c: bool) -> i32
{
	let r = 0;
	if (a) { r = 1; }
	else if (b) { r = 2; }
	else if (c) { r = 3; }
	else { r = 4; }
	return r;
}
`
	plain := findFunction(t, sanitizeSource(t, src, DefaultOptions()), "pick")
	split := findFunction(t, sanitizeSource(t, src, Options{SplitMultipleBranches: true}), "pick")

	for mask := 0; mask < 8; mask++ {
		a, b, c := mask&1 != 0, mask&2 != 0, mask&4 != 0
		want := ast.Int32Value(4)
		switch {
		case a:
			want = 1
		case b:
			want = 2
		case c:
			want = 3
		}
		t.Run(fmt.Sprintf("a=%t,b=%t,c=%t", a, b, c), func(t *testing.T) {
			for name, fn := range map[string]*ast.DeclareFunctionStatement{"unsplit": plain, "split": split} {
				got, err := runFunction(fn, ast.BoolValue(a), ast.BoolValue(b), ast.BoolValue(c))
				if err != nil {
					t.Fatalf("%s: %v", name, err)
				}
				if got != ast.ConstantValue(want) {
					t.Errorf("%s = %v, want %s", name, got, want)
				}
			}
		})
	}
}

func TestSanitizeReduceLoopsKeepsIterations(t *testing.T) {
	tests := []struct {
		name string
		body string
		want ast.Int32Value
	}{
		{
			// Each iteration shifts the total by two digits, so the result
			// spells out the visited counter values in order.
			name: "range with step and continue",
			body: `
	let total = 0;
	for i in 0 -> 10 : 3
	{
		if (i == 6) { continue; }
		total = total * 100 + i;
	}
	return total;`,
			want: 309,
		},
		{
			name: "range with break",
			body: `
	let total = 0;
	for i in 1 -> 100
	{
		if (i > 4) { break; }
		total = total * 10 + i;
	}
	return total;`,
			want: 1234,
		},
		{
			name: "empty range",
			body: `
	let total = 7;
	for i in 5 -> 5
	{
		total = 0;
	}
	return total;`,
			want: 7,
		},
		{
			name: "array elements in order",
			body: `
	let total = 0;
	let values = array[i32, 4](4, 3, 2, 1);
	for v in values
	{
		total = total * 10 + v;
	}
	return total;`,
			want: 4321,
		},
		{
			name: "array with continue",
			body: `
	let total = 0;
	let count = 0;
	for v in array[i32, 5](1, 2, 3, 4, 5)
	{
		count += 1;
		if (v == 2) { continue; }
		total = total * 10 + v;
	}
	return total * 10 + count;`,
			want: 13455,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "module;\nfn f() -> i32\n{" + tt.body + "\n}\n"
			m := sanitizeSource(t, src, Options{ReduceLoopsToWhile: true})
			got, err := runFunction(findFunction(t, m, "f"))
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}
			if got != ast.ConstantValue(tt.want) {
				t.Errorf("f() = %v, want %s", got, tt.want)
			}
		})
	}
}

// matrixValue builds a cols x rows matrix whose entry (c, r) is c*10+r+1.
func matrixValue(cols, rows int) ast.MatrixValue {
	m := ast.MatrixValue{Columns: make([]ast.VectorValue, cols)}
	for c := range m.Columns {
		comps := make([]ast.ConstantValue, rows)
		for r := range comps {
			comps[r] = ast.Float32Value(float32(c*10 + r + 1))
		}
		m.Columns[c] = ast.VectorValue{Components: comps}
	}
	return m
}

func TestSanitizeRemoveMatrixCastValues(t *testing.T) {
	src := `
module;
fn shrink(m: mat4[f32]) -> mat2[f32]
{
	return mat2[f32](m);
}
fn grow(m: mat2[f32]) -> mat4[f32]
{
	return mat4[f32](m);
}
fn widen(m: mat2x3[f32]) -> mat3[f32]
{
	return mat3[f32](m);
}
`
	m := sanitizeSource(t, src, Options{RemoveMatrixCast: true})

	tests := []struct {
		fn   string
		arg  ast.MatrixValue
		cols int
		rows int
	}{
		{"shrink", matrixValue(4, 4), 2, 2},
		{"grow", matrixValue(2, 2), 4, 4},
		{"widen", matrixValue(2, 3), 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.fn, func(t *testing.T) {
			fn := findFunction(t, m, tt.fn)
			if _, ok := returnExpr(t, fn).(*ast.CastExpression); !ok {
				t.Fatalf("%s does not return a construction", tt.fn)
			}
			got, err := runFunction(fn, tt.arg)
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}
			mat, ok := got.(ast.MatrixValue)
			if !ok || len(mat.Columns) != tt.cols {
				t.Fatalf("%s = %v, want a matrix with %d columns", tt.fn, got, tt.cols)
			}
			for c := 0; c < tt.cols; c++ {
				if len(mat.Columns[c].Components) != tt.rows {
					t.Fatalf("column %d has %d rows, want %d", c, len(mat.Columns[c].Components), tt.rows)
				}
				for r := 0; r < tt.rows; r++ {
					var want ast.Float32Value
					switch {
					case c < len(tt.arg.Columns) && r < len(tt.arg.Columns[c].Components):
						want = tt.arg.Columns[c].Components[r].(ast.Float32Value)
					case c == r:
						want = 1
					}
					if got := mat.Columns[c].Components[r]; got != ast.ConstantValue(want) {
						t.Errorf("entry (%d, %d) = %v, want %s", c, r, got, want)
					}
				}
			}
		})
	}
}

func TestSanitizeOptions(t *testing.T) {
	src := `
module;
option UseFog: bool = false;
[cond(UseFog)]
fn fog() {}
fn f()
{
	const if (UseFog)
	{
		discard;
	}
}
`
	unknown := sanitizeSource(t, src, DefaultOptions())
	if n := countNodes[*ast.ConditionalStatement](unknown.RootNode); n != 1 {
		t.Errorf("conditional statements = %d, want 1 when the option is unknown", n)
	}
	if br, ok := findFunction(t, unknown, "f").Statements[0].(*ast.BranchStatement); !ok || !br.IsConst {
		t.Error("const if was folded without an option value")
	}

	on := ast.OptionValues{}
	on.Set("UseFog", ast.BoolValue(true))
	enabled := sanitizeSource(t, src, Options{OptionValues: on})
	findFunction(t, enabled, "fog")
	if countNodes[*ast.BranchStatement](enabled.RootNode) != 0 || countNodes[*ast.DiscardStatement](enabled.RootNode) != 1 {
		t.Error("const if was not folded to its body")
	}

	off := ast.OptionValues{}
	off.Set("UseFog", ast.BoolValue(false))
	disabled := sanitizeSource(t, src, Options{OptionValues: off})
	for _, fn := range disabled.Functions() {
		if fn.Name == "fog" {
			t.Error("fog was kept although its condition is false")
		}
	}
	if n := len(findFunction(t, disabled, "f").Statements); n != 0 {
		t.Errorf("f has %d statements, want 0", n)
	}

	wrong := ast.OptionValues{}
	wrong.Set("UseFog", ast.Int32Value(1))
	if _, err := Sanitize(parseSource(t, src), Options{OptionValues: wrong}); err == nil {
		t.Error("expected an error for an option value of the wrong type")
	}
}

func mapResolver(t *testing.T, sources map[string]string) ModuleResolver {
	return ModuleResolverFunc(func(name string) (*ast.Module, error) {
		src, ok := sources[name]
		if !ok {
			return nil, fmt.Errorf("module %s not found", name)
		}
		return parseSource(t, src), nil
	})
}

const helpersSource = `
module Helpers;

[export]
fn add(a: f32, b: f32) -> f32
{
	return a + b;
}

fn hidden() {}

[export]
struct Light
{
	color: vec3[f32]
}
`

func TestSanitizeImports(t *testing.T) {
	resolver := mapResolver(t, map[string]string{"Helpers": helpersSource})

	m := sanitizeSource(t, `
module Main;
import Helpers;
fn f() -> f32
{
	let l: Light;
	return add(1.0, 2.0);
}
`, Options{ModuleResolver: resolver})
	checkAllTyped(t, m)

	if len(m.ImportedModules) != 1 || m.ImportedModules[0].Identifier != "Helpers" {
		t.Fatalf("imported modules = %+v", m.ImportedModules)
	}
	ids := make(map[int]string)
	for _, fn := range m.Functions() {
		if other, dup := ids[fn.FuncID]; dup {
			t.Errorf("%s and %s share function ID %d", fn.Name, other, fn.FuncID)
		}
		ids[fn.FuncID] = fn.Name
	}
	if len(ids) != 3 {
		t.Errorf("functions = %d, want 3", len(ids))
	}

	renamed := sanitizeSource(t, `
module Main;
import add as plus from Helpers;
fn f() -> f32
{
	return plus(1.0, 2.0);
}
`, Options{ModuleResolver: resolver})
	call := returnExpr(t, findFunction(t, renamed, "f")).(*ast.CallFunctionExpression)
	if _, ok := call.TargetFunction.(*ast.FunctionExpression); !ok {
		t.Errorf("renamed call target is %T", call.TargetFunction)
	}
}

func TestSanitizeImportErrors(t *testing.T) {
	resolver := mapResolver(t, map[string]string{
		"Helpers": helpersSource,
		"A":       "module A; import B;",
		"B":       "module B; import A;",
	})
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"not exported", "module Main; import hidden from Helpers;", "does not export hidden"},
		{"cycle", "module A; import B;", "cyclic import"},
		{"missing module", "module Main; import Missing;", "cannot import module Missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sanitize(parseSource(t, tt.src), Options{ModuleResolver: resolver})
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestSanitizePartial(t *testing.T) {
	src := `
module Main;
import Helpers;
fn f() -> f32
{
	return add(1.0, 2.0);
}
`
	failing := ModuleResolverFunc(func(name string) (*ast.Module, error) {
		return nil, fmt.Errorf("module %s is not available yet", name)
	})

	if _, err := Sanitize(parseSource(t, src), Options{ModuleResolver: failing}); err == nil {
		t.Fatal("expected an error without partial sanitization")
	}

	partial, err := Sanitize(parseSource(t, src), Options{ModuleResolver: failing, PartialSanitization: true})
	if err != nil {
		t.Fatalf("partial sanitization failed: %v", err)
	}
	fn := findFunction(t, partial, "f")
	call := returnExpr(t, fn).(*ast.CallFunctionExpression)
	if _, ok := call.TargetFunction.(*ast.IdentifierExpression); !ok || call.Type != nil {
		t.Errorf("unresolved call = %T with type %v, want an untyped identifier call", call.TargetFunction, call.Type)
	}

	full, err := Sanitize(partial, Options{ModuleResolver: mapResolver(t, map[string]string{"Helpers": helpersSource})})
	if err != nil {
		t.Fatalf("second sanitization failed: %v", err)
	}
	checkAllTyped(t, full)
	if got := findFunction(t, full, "f").FuncID; got != fn.FuncID {
		t.Errorf("f changed ID from %d to %d", fn.FuncID, got)
	}

	_, err = Sanitize(parseSource(t, `
module Main;
import add from Helpers;
fn f() { missing(); }
`), Options{ModuleResolver: failing, PartialSanitization: true})
	if err == nil || !strings.Contains(err.Error(), "unknown identifier missing") {
		t.Errorf("local unknown symbol error = %v", err)
	}
}
