package sanitize

import (
	"fmt"

	"github.com/gogpu/nzsl/ast"
)

// intrinsicType validates the parameters of an intrinsic call and returns
// its result type.
func intrinsicType(intr ast.IntrinsicType, params []ast.ExpressionType) (ast.ExpressionType, error) {
	count := func(n int) error {
		if len(params) != n {
			return fmt.Errorf("%s expects %d argument(s), got %d", intr, n, len(params))
		}
		return nil
	}
	sameTypes := func() error {
		for i := 1; i < len(params); i++ {
			if !ast.TypesEqual(params[i], params[0]) {
				return fmt.Errorf("%s arguments must have the same type, got %s", intr, typeList(params))
			}
		}
		return nil
	}
	floating := func(allowScalar bool) error {
		p, ok := isScalarOrVector(params[0])
		if !ok || !p.IsFloat() {
			return fmt.Errorf("%s expects a floating-point argument, got %s", intr, params[0])
		}
		if _, isScalar := params[0].(ast.PrimitiveType); isScalar && !allowScalar {
			return fmt.Errorf("%s expects a vector, got %s", intr, params[0])
		}
		return nil
	}
	numeric := func() error {
		p, ok := isScalarOrVector(params[0])
		if !ok || !p.IsNumeric() {
			return fmt.Errorf("%s expects a numeric argument, got %s", intr, params[0])
		}
		return nil
	}
	squareMatrix := func() (ast.MatrixType, error) {
		m, ok := params[0].(ast.MatrixType)
		if !ok || m.ColumnCount != m.RowCount {
			return m, fmt.Errorf("%s expects a square matrix, got %s", intr, params[0])
		}
		return m, nil
	}

	switch intr {
	case ast.IntrinsicAbs, ast.IntrinsicSign:
		if err := count(1); err != nil {
			return nil, err
		}
		if err := numeric(); err != nil {
			return nil, err
		}
		if p, _ := isScalarOrVector(params[0]); p == ast.PrimitiveUInt32 {
			return nil, fmt.Errorf("%s expects a signed argument, got %s", intr, params[0])
		}
		return params[0], nil

	case ast.IntrinsicCeil, ast.IntrinsicFloor, ast.IntrinsicFract, ast.IntrinsicRound,
		ast.IntrinsicTrunc, ast.IntrinsicSqrt, ast.IntrinsicInverseSqrt, ast.IntrinsicExp,
		ast.IntrinsicExp2, ast.IntrinsicLog, ast.IntrinsicLog2, ast.IntrinsicSin,
		ast.IntrinsicCos, ast.IntrinsicTan, ast.IntrinsicArcSin, ast.IntrinsicArcCos,
		ast.IntrinsicArcTan, ast.IntrinsicRadians, ast.IntrinsicDegrees:
		if err := count(1); err != nil {
			return nil, err
		}
		if err := floating(true); err != nil {
			return nil, err
		}
		return params[0], nil

	case ast.IntrinsicNormalize, ast.IntrinsicLength:
		if err := count(1); err != nil {
			return nil, err
		}
		if err := floating(false); err != nil {
			return nil, err
		}
		if intr == ast.IntrinsicLength {
			p, _ := ast.ScalarOf(params[0])
			return p, nil
		}
		return params[0], nil

	case ast.IntrinsicDistance, ast.IntrinsicDotProduct, ast.IntrinsicReflect, ast.IntrinsicCrossProduct:
		if err := count(2); err != nil {
			return nil, err
		}
		if err := sameTypes(); err != nil {
			return nil, err
		}
		if err := floating(false); err != nil {
			return nil, err
		}
		switch intr {
		case ast.IntrinsicCrossProduct:
			if n := ast.ComponentCount(params[0]); n != 3 {
				return nil, fmt.Errorf("cross expects vectors of 3 components, got %d components", n)
			}
			return params[0], nil
		case ast.IntrinsicReflect:
			return params[0], nil
		}
		p, _ := ast.ScalarOf(params[0])
		return p, nil

	case ast.IntrinsicMax, ast.IntrinsicMin, ast.IntrinsicClamp:
		n := 2
		if intr == ast.IntrinsicClamp {
			n = 3
		}
		if err := count(n); err != nil {
			return nil, err
		}
		if err := sameTypes(); err != nil {
			return nil, err
		}
		if err := numeric(); err != nil {
			return nil, err
		}
		return params[0], nil

	case ast.IntrinsicPow, ast.IntrinsicStep, ast.IntrinsicLerp, ast.IntrinsicSmoothStep:
		n := 2
		if intr == ast.IntrinsicLerp || intr == ast.IntrinsicSmoothStep {
			n = 3
		}
		if err := count(n); err != nil {
			return nil, err
		}
		if err := sameTypes(); err != nil {
			return nil, err
		}
		if err := floating(true); err != nil {
			return nil, err
		}
		return params[0], nil

	case ast.IntrinsicAll, ast.IntrinsicAny:
		if err := count(1); err != nil {
			return nil, err
		}
		if v, ok := params[0].(ast.VectorType); !ok || v.Type != ast.PrimitiveBool {
			return nil, fmt.Errorf("%s expects a boolean vector, got %s", intr, params[0])
		}
		return ast.PrimitiveBool, nil

	case ast.IntrinsicTranspose:
		if err := count(1); err != nil {
			return nil, err
		}
		m, ok := params[0].(ast.MatrixType)
		if !ok {
			return nil, fmt.Errorf("transpose expects a matrix, got %s", params[0])
		}
		return ast.MatrixType{ColumnCount: m.RowCount, RowCount: m.ColumnCount, Type: m.Type}, nil

	case ast.IntrinsicInverse, ast.IntrinsicDeterminant:
		if err := count(1); err != nil {
			return nil, err
		}
		m, err := squareMatrix()
		if err != nil {
			return nil, err
		}
		if intr == ast.IntrinsicDeterminant {
			return m.Type, nil
		}
		return m, nil

	case ast.IntrinsicSampleTexture:
		if err := count(2); err != nil {
			return nil, err
		}
		smp, ok := params[0].(ast.SamplerType)
		if !ok {
			return nil, fmt.Errorf("Sample expects a sampler, got %s", params[0])
		}
		want := ast.VectorOf(ast.PrimitiveFloat32, smp.CoordinateCount())
		if !ast.TypesEqual(params[1], want) {
			return nil, fmt.Errorf("%s coordinates must be %s, got %s", smp, want, params[1])
		}
		return ast.VectorType{ComponentCount: 4, Type: smp.SampledType}, nil

	case ast.IntrinsicArraySize:
		if err := count(1); err != nil {
			return nil, err
		}
		if _, ok := params[0].(ast.ArrayType); !ok {
			return nil, fmt.Errorf("Size expects an array, got %s", params[0])
		}
		return ast.PrimitiveUInt32, nil
	}
	return nil, fmt.Errorf("unknown intrinsic %s", intr)
}
