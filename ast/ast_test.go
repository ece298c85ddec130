package ast

import "testing"

func sampleFunction() *DeclareFunctionStatement {
	return &DeclareFunctionStatement{
		Name:       "main",
		EntryStage: AttributeValue[ShaderStage]{Expr: &IdentifierExpression{Identifier: "frag"}},
		Parameters: []FunctionParameter{{Name: "input", Type: &IdentifierExpression{Identifier: "In"}}},
		Statements: []Statement{
			&DeclareVariableStatement{
				VarName: "x",
				InitialExpression: &SwizzleExpression{
					Expr:           &IdentifierExpression{Identifier: "v"},
					Components:     [4]uint32{2, 1, 0},
					ComponentCount: 3,
				},
			},
			&BranchStatement{
				CondStatements: []ConditionalBranch{{
					Condition: lit(BoolValue(true)),
					Statement: &DiscardStatement{},
				}},
				ElseStatement: &ReturnStatement{},
			},
		},
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := sampleFunction()
	clone := CloneStatement(orig).(*DeclareFunctionStatement)

	if !StatementsEqual(orig, clone) {
		t.Fatal("clone should be structurally equal to the original")
	}

	clone.Statements[0].(*DeclareVariableStatement).VarName = "y"
	clone.Parameters[0].Name = "other"
	clone.EntryStage.Expr.(*IdentifierExpression).Identifier = "vert"

	if orig.Statements[0].(*DeclareVariableStatement).VarName != "x" {
		t.Error("mutating the clone changed the original statement list")
	}
	if orig.Parameters[0].Name != "input" {
		t.Error("mutating the clone changed the original parameters")
	}
	if orig.EntryStage.Expr.(*IdentifierExpression).Identifier != "frag" {
		t.Error("mutating the clone changed the original attribute")
	}
	if StatementsEqual(orig, clone) {
		t.Error("modified clone should no longer compare equal")
	}
}

func TestCloneModuleSharesImports(t *testing.T) {
	shared := NewModule("Shared")
	m := NewModule("Main")
	m.ImportedModules = []ImportedModule{{Identifier: "A", Module: shared}, {Identifier: "B", Module: shared}}

	c := CloneModule(m)
	if c.ImportedModules[0].Module != c.ImportedModules[1].Module {
		t.Error("shared imported module should stay shared in the clone")
	}
	if c.ImportedModules[0].Module == shared {
		t.Error("imported module should be copied")
	}
	if !ModulesEqual(m, c) {
		t.Error("cloned module should compare equal")
	}
}

func TestComparatorIgnoresSpans(t *testing.T) {
	a := &BinaryExpression{Op: BinaryAdd, Left: lit(Int32Value(1)), Right: lit(Int32Value(2))}
	b := CloneExpression(a).(*BinaryExpression)
	b.Span = Span{Start: Position{Line: 3, Column: 4}}

	if !ExpressionsEqual(a, b) {
		t.Error("spans should not affect equality")
	}

	b.Op = BinarySubtract
	if ExpressionsEqual(a, b) {
		t.Error("different operators should not compare equal")
	}
}

func TestComparatorOrderSensitive(t *testing.T) {
	a := &MultiStatement{Statements: []Statement{&BreakStatement{}, &ContinueStatement{}}}
	b := &MultiStatement{Statements: []Statement{&ContinueStatement{}, &BreakStatement{}}}
	if StatementsEqual(a, b) {
		t.Error("statement order must matter")
	}
}

type countingVisitor struct {
	identifiers int
	swizzles    int
}

func (c *countingVisitor) Visit(node Node) Visitor {
	switch node.(type) {
	case *IdentifierExpression:
		c.identifiers++
	case *SwizzleExpression:
		c.swizzles++
	}
	return c
}

func TestWalkVisitsAllChildren(t *testing.T) {
	v := &countingVisitor{}
	Walk(v, sampleFunction())

	// entry attribute, parameter type and swizzle source
	if v.identifiers != 3 {
		t.Errorf("identifiers = %d, want 3", v.identifiers)
	}
	if v.swizzles != 1 {
		t.Errorf("swizzles = %d, want 1", v.swizzles)
	}
}

func TestInspectPrune(t *testing.T) {
	var visited int
	Inspect(sampleFunction(), func(n Node) bool {
		if n == nil {
			return false
		}
		visited++
		_, isBranch := n.(*BranchStatement)
		return !isBranch
	})

	var all int
	Inspect(sampleFunction(), func(n Node) bool {
		if n != nil {
			all++
		}
		return true
	})

	// the branch has a condition, a discard and a return below it
	if all-visited != 3 {
		t.Errorf("pruning skipped %d nodes, want 3", all-visited)
	}
}

func TestTypesEqualStructural(t *testing.T) {
	a := StructType{StructID: 1, Name: "Data", Members: []StructMemberType{{Name: "v", Type: VectorType{ComponentCount: 3, Type: PrimitiveFloat32}}}}
	b := StructType{StructID: 9, Name: "Data", Members: []StructMemberType{{Name: "v", Type: VectorType{ComponentCount: 3, Type: PrimitiveFloat32}}}}

	if !TypesEqual(a, b) {
		t.Error("structs with the same name and members should be equal regardless of declaration")
	}

	b.Members[0].Type = VectorType{ComponentCount: 2, Type: PrimitiveFloat32}
	if TypesEqual(a, b) {
		t.Error("structs with different member types should differ")
	}

	if TypesEqual(PrimitiveFloat32, VectorType{ComponentCount: 1, Type: PrimitiveFloat32}) {
		t.Error("scalar and vector should differ")
	}
}

func TestTypeStrings(t *testing.T) {
	tests := []struct {
		typ  ExpressionType
		want string
	}{
		{PrimitiveUInt32, "u32"},
		{VectorType{ComponentCount: 3, Type: PrimitiveFloat32}, "vec3[f32]"},
		{MatrixType{ColumnCount: 4, RowCount: 4, Type: PrimitiveFloat32}, "mat4[f32]"},
		{MatrixType{ColumnCount: 2, RowCount: 3, Type: PrimitiveFloat32}, "mat2x3[f32]"},
		{ArrayType{ContainedType: PrimitiveInt32, Length: 4}, "array[i32, 4]"},
		{SamplerType{Dim: Image2D, SampledType: PrimitiveFloat32}, "sampler2D[f32]"},
		{SamplerType{Dim: Image2D, SampledType: PrimitiveFloat32, Depth: true}, "depth_sampler2D[f32]"},
		{NoType{}, "void"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestParseSwizzle(t *testing.T) {
	tests := []struct {
		in   string
		want []uint32
		ok   bool
	}{
		{"xyz", []uint32{0, 1, 2}, true},
		{"rgba", []uint32{0, 1, 2, 3}, true},
		{"wzyx", []uint32{3, 2, 1, 0}, true},
		{"xg", nil, false},
		{"xyzwx", nil, false},
		{"foo", nil, false},
	}
	for _, tt := range tests {
		got, ok := ParseSwizzle(tt.in)
		if ok != tt.ok {
			t.Errorf("ParseSwizzle(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && SwizzleString(got) != SwizzleString(tt.want) {
			t.Errorf("ParseSwizzle(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestErrorFormatWithContext(t *testing.T) {
	src := "let a = 1;\nlet b = c;\n"
	err := Errorf(ErrSemantic, Span{Start: Position{Line: 2, Column: 9}, End: Position{Line: 2, Column: 10}}, "unknown identifier %q", "c")

	got := err.FormatWithContext(src)
	want := "semantic error: unknown identifier \"c\"\n" +
		"  --> line 2:9\n" +
		"   |\n" +
		"  2| let b = c;\n" +
		"   |         ^\n"
	if got != want {
		t.Errorf("FormatWithContext() =\n%s\nwant\n%s", got, want)
	}

	if !IsKind(err, ErrSemantic) || IsKind(err, ErrParse) {
		t.Error("IsKind should match only the error's own kind")
	}
}
