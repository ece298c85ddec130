package ast

import (
	"errors"
	"testing"
)

func lit(v ConstantValue) Expression {
	return NewConstantValue(Span{}, v)
}

func vec(vals ...float32) VectorValue {
	comps := make([]ConstantValue, len(vals))
	for i, v := range vals {
		comps[i] = Float32Value(v)
	}
	return VectorValue{Components: comps}
}

func TestEvaluateBinaryScalars(t *testing.T) {
	tests := []struct {
		name string
		op   BinaryType
		l, r ConstantValue
		want ConstantValue
	}{
		{"i32 add", BinaryAdd, Int32Value(2), Int32Value(3), Int32Value(5)},
		{"u32 sub wraps", BinarySubtract, UInt32Value(0), UInt32Value(1), UInt32Value(0xFFFFFFFF)},
		{"f32 mul", BinaryMultiply, Float32Value(1.5), Float32Value(2), Float32Value(3)},
		{"i32 mod", BinaryModulo, Int32Value(7), Int32Value(3), Int32Value(1)},
		{"f32 lt", BinaryCompLt, Float32Value(1), Float32Value(2), BoolValue(true)},
		{"bool and", BinaryLogicalAnd, BoolValue(true), BoolValue(false), BoolValue(false)},
		{"bool eq", BinaryCompEq, BoolValue(true), BoolValue(true), BoolValue(true)},
		{"shift", BinaryShiftLeft, UInt32Value(1), UInt32Value(4), UInt32Value(16)},
		{"xor", BinaryBitwiseXor, Int32Value(6), Int32Value(3), Int32Value(5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateBinary(tt.op, tt.l, tt.r)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !ValuesEqual(got, tt.want) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEvaluateBinaryErrors(t *testing.T) {
	if _, err := EvaluateBinary(BinaryDivide, Int32Value(1), Int32Value(0)); err == nil {
		t.Error("expected division by zero error")
	}
	if _, err := EvaluateBinary(BinaryAdd, Int32Value(1), Float32Value(1)); err == nil {
		t.Error("expected mismatched operand error")
	}
	if _, err := EvaluateBinary(BinaryBitwiseAnd, Float32Value(1), Float32Value(1)); err == nil {
		t.Error("expected bitwise-on-float error")
	}
}

func TestEvaluateBinaryBroadcast(t *testing.T) {
	got, err := EvaluateBinary(BinaryMultiply, vec(1, 2, 3), Float32Value(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ValuesEqual(got, vec(2, 4, 6)) {
		t.Errorf("got %s, want vec3(2, 4, 6)", got)
	}

	got, err = EvaluateBinary(BinaryDivide, Float32Value(6), vec(1, 2, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ValuesEqual(got, vec(6, 3, 2)) {
		t.Errorf("got %s, want vec3(6, 3, 2)", got)
	}
}

func TestEvaluateConstantTree(t *testing.T) {
	// (2 + 3) * -4
	expr := &BinaryExpression{
		Op:    BinaryMultiply,
		Left:  &BinaryExpression{Op: BinaryAdd, Left: lit(Int32Value(2)), Right: lit(Int32Value(3))},
		Right: &UnaryExpression{Op: UnaryMinus, Expression: lit(Int32Value(4))},
	}
	got, err := EvaluateConstant(expr, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != Int32Value(-20) {
		t.Errorf("got %s, want -20", got)
	}
}

func TestEvaluateConstantLookup(t *testing.T) {
	values := map[int]ConstantValue{7: BoolValue(true)}
	lookup := func(id int) (ConstantValue, bool) {
		v, ok := values[id]
		return v, ok
	}

	expr := &ConditionalExpression{
		Condition: &ConstantExpression{ConstantID: 7},
		TruePath:  lit(Float32Value(1)),
		FalsePath: lit(Float32Value(0)),
	}
	got, err := EvaluateConstant(expr, lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != Float32Value(1) {
		t.Errorf("got %s, want 1.0", got)
	}

	_, err = EvaluateConstant(&ConstantExpression{ConstantID: 8}, lookup)
	if !errors.Is(err, ErrNotConstant) {
		t.Errorf("expected ErrNotConstant, got %v", err)
	}

	_, err = EvaluateConstant(&VariableValueExpression{VariableID: 1}, lookup)
	if !errors.Is(err, ErrNotConstant) {
		t.Errorf("expected ErrNotConstant for variable, got %v", err)
	}
}

func TestEvaluateCastVector(t *testing.T) {
	target := VectorType{ComponentCount: 4, Type: PrimitiveFloat32}

	got, err := EvaluateCast(target, []ConstantValue{Float32Value(1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ValuesEqual(got, vec(1, 1, 1, 1)) {
		t.Errorf("broadcast: got %s", got)
	}

	got, err = EvaluateCast(target, []ConstantValue{vec(1, 2), Int32Value(3), Float32Value(4)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ValuesEqual(got, vec(1, 2, 3, 4)) {
		t.Errorf("concat: got %s", got)
	}

	if _, err := EvaluateCast(target, []ConstantValue{vec(1, 2)}); err == nil {
		t.Error("expected component count error")
	}
}

func TestResizeMatrix(t *testing.T) {
	mat2 := MatrixValue{Columns: []VectorValue{vec(1, 2), vec(3, 4)}}

	widened, err := ResizeMatrix(mat2, MatrixType{ColumnCount: 3, RowCount: 3, Type: PrimitiveFloat32})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := MatrixValue{Columns: []VectorValue{vec(1, 2, 0), vec(3, 4, 0), vec(0, 0, 1)}}
	if !ValuesEqual(widened, want) {
		t.Errorf("widen: got %s, want %s", widened, want)
	}

	truncated, err := ResizeMatrix(want, MatrixType{ColumnCount: 2, RowCount: 2, Type: PrimitiveFloat32})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ValuesEqual(truncated, mat2) {
		t.Errorf("truncate: got %s, want %s", truncated, mat2)
	}
}

func TestEvaluateSwizzleChain(t *testing.T) {
	// vec4(0,1,2,3).xyz.yz.y.x.xxxx
	v := vec(0, 1, 2, 3)
	chain := [][]uint32{{0, 1, 2}, {1, 2}, {1}, {0}, {0, 0, 0, 0}}

	var cur ConstantValue = v
	for _, s := range chain {
		var err error
		if cur, err = EvaluateSwizzle(cur, s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if !ValuesEqual(cur, vec(2, 2, 2, 2)) {
		t.Errorf("got %s, want vec4(2,2,2,2)", cur)
	}

	flat := chain[0]
	for _, s := range chain[1:] {
		flat = ComposeSwizzle(flat, s)
	}
	direct, err := EvaluateSwizzle(v, flat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ValuesEqual(direct, cur) {
		t.Errorf("flattened swizzle %s gives %s, chain gives %s", SwizzleString(flat), direct, cur)
	}
}

func TestValueStrings(t *testing.T) {
	tests := []struct {
		v    ConstantValue
		want string
	}{
		{Float32Value(1), "1.0"},
		{Float32Value(0.5), "0.5"},
		{UInt32Value(5), "5u"},
		{Int32Value(-3), "-3"},
		{Float64Value(2), "f64(2.0)"},
		{vec(1, 2), "vec2[f32](1.0, 2.0)"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestHashOptionStable(t *testing.T) {
	if HashOption("UseFog") != HashOption("UseFog") {
		t.Fatal("hash is not deterministic")
	}
	if HashOption("UseFog") == HashOption("UseFOG") {
		t.Error("hash should be case sensitive")
	}

	values := OptionValues{}
	values.Set("LightCount", Int32Value(3))
	if v, ok := values.Lookup("LightCount"); !ok || v != Int32Value(3) {
		t.Errorf("Lookup() = %v, %v", v, ok)
	}
}
