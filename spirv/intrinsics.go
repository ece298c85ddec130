package spirv

import (
	"github.com/gogpu/nzsl/ast"
)

// glslInstructions maps intrinsics to GLSL.std.450 instructions. Entries
// with integer variants are resolved by glslInstruction.
var glslInstructions = map[ast.IntrinsicType]uint32{
	ast.IntrinsicArcCos:       GLSLstd450Acos,
	ast.IntrinsicArcSin:       GLSLstd450Asin,
	ast.IntrinsicArcTan:       GLSLstd450Atan,
	ast.IntrinsicCeil:         GLSLstd450Ceil,
	ast.IntrinsicCos:          GLSLstd450Cos,
	ast.IntrinsicCrossProduct: GLSLstd450Cross,
	ast.IntrinsicDegrees:      GLSLstd450Degrees,
	ast.IntrinsicDeterminant:  GLSLstd450Determinant,
	ast.IntrinsicDistance:     GLSLstd450Distance,
	ast.IntrinsicExp:          GLSLstd450Exp,
	ast.IntrinsicExp2:         GLSLstd450Exp2,
	ast.IntrinsicFloor:        GLSLstd450Floor,
	ast.IntrinsicFract:        GLSLstd450Fract,
	ast.IntrinsicInverse:      GLSLstd450MatrixInverse,
	ast.IntrinsicInverseSqrt:  GLSLstd450InverseSqrt,
	ast.IntrinsicLength:       GLSLstd450Length,
	ast.IntrinsicLerp:         GLSLstd450FMix,
	ast.IntrinsicLog:          GLSLstd450Log,
	ast.IntrinsicLog2:         GLSLstd450Log2,
	ast.IntrinsicNormalize:    GLSLstd450Normalize,
	ast.IntrinsicPow:          GLSLstd450Pow,
	ast.IntrinsicRadians:      GLSLstd450Radians,
	ast.IntrinsicReflect:      GLSLstd450Reflect,
	ast.IntrinsicRound:        GLSLstd450Round,
	ast.IntrinsicSin:          GLSLstd450Sin,
	ast.IntrinsicSmoothStep:   GLSLstd450SmoothStep,
	ast.IntrinsicSqrt:         GLSLstd450Sqrt,
	ast.IntrinsicStep:         GLSLstd450Step,
	ast.IntrinsicTan:          GLSLstd450Tan,
	ast.IntrinsicTrunc:        GLSLstd450Trunc,
}

// glslInstruction picks the float, signed or unsigned variant of an
// intrinsic.
func glslInstruction(intr ast.IntrinsicType, p ast.PrimitiveType) (uint32, bool) {
	type variants struct{ f, s, u uint32 }
	var v variants
	switch intr {
	case ast.IntrinsicAbs:
		v = variants{GLSLstd450FAbs, GLSLstd450SAbs, 0}
	case ast.IntrinsicSign:
		v = variants{GLSLstd450FSign, GLSLstd450SSign, 0}
	case ast.IntrinsicMin:
		v = variants{GLSLstd450FMin, GLSLstd450SMin, GLSLstd450UMin}
	case ast.IntrinsicMax:
		v = variants{GLSLstd450FMax, GLSLstd450SMax, GLSLstd450UMax}
	case ast.IntrinsicClamp:
		v = variants{GLSLstd450FClamp, GLSLstd450SClamp, GLSLstd450UClamp}
	default:
		inst, ok := glslInstructions[intr]
		return inst, ok
	}
	var inst uint32
	switch {
	case p.IsFloat():
		inst = v.f
	case p == ast.PrimitiveInt32:
		inst = v.s
	case p == ast.PrimitiveUInt32:
		inst = v.u
	}
	return inst, inst != 0
}

// emitIntrinsic emits a built-in function call.
func (e *ExpressionEmitter) emitIntrinsic(x *ast.IntrinsicExpression) (uint32, error) {
	if x.Intrinsic == ast.IntrinsicArraySize {
		return e.emitArraySize(x)
	}

	args := make([]uint32, len(x.Parameters))
	for i, p := range x.Parameters {
		var err error
		if args[i], err = e.emitExpression(p); err != nil {
			return 0, err
		}
	}
	resultID, err := e.typeID(x.Type, x.Span)
	if err != nil {
		return 0, err
	}

	switch x.Intrinsic {
	case ast.IntrinsicDotProduct:
		return e.fb.AddBinaryOp(OpDot, resultID, args[0], args[1]), nil
	case ast.IntrinsicAll:
		return e.fb.AddUnaryOp(OpAll, resultID, args[0]), nil
	case ast.IntrinsicAny:
		return e.fb.AddUnaryOp(OpAny, resultID, args[0]), nil
	case ast.IntrinsicTranspose:
		return e.fb.AddUnaryOp(OpTranspose, resultID, args[0]), nil
	case ast.IntrinsicSampleTexture:
		// implicit derivatives only exist in fragment shaders
		if e.function.stages == ast.StageFlag(ast.StageFragment) {
			return e.fb.AddImageSampleImplicitLod(resultID, args[0], args[1]), nil
		}
		lod, err := e.constant(ast.Float32Value(0), x.Span)
		if err != nil {
			return 0, err
		}
		return e.fb.AddImageSampleExplicitLod(resultID, args[0], args[1], lod), nil
	}

	scalar, _ := ast.ScalarOf(x.Parameters[0].ResolvedType())
	inst, ok := glslInstruction(x.Intrinsic, scalar)
	if !ok {
		return 0, e.backend.errorf(x.Span, "intrinsic %s is not supported on %s", x.Intrinsic, x.Parameters[0].ResolvedType())
	}
	return e.fb.AddExtInst(resultID, e.backend.glslExtID, inst, args...), nil
}

// emitArraySize returns the length of a runtime array, the last member of a
// storage block.
func (e *ExpressionEmitter) emitArraySize(x *ast.IntrinsicExpression) (uint32, error) {
	access, ok := x.Parameters[0].(*ast.AccessIndexExpression)
	if !ok || len(access.Indices) == 0 {
		return 0, e.backend.errorf(x.Span, "Size can only be applied to a runtime array member of a storage buffer")
	}
	base, ok, err := e.place(access.Expr)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, e.backend.errorf(x.Span, "Size can only be applied to a runtime array member of a storage buffer")
	}
	last := len(access.Indices) - 1
	if last > 0 {
		if base, err = e.accessChain(base, access.Indices[:last], x.Span); err != nil {
			return 0, err
		}
	}
	st, ok := containerOf(base.typ)
	if !ok {
		return 0, e.backend.errorf(x.Span, "Size can only be applied to a runtime array member of a storage buffer")
	}
	member, err := e.memberIndex(st, access.Indices[last])
	if err != nil {
		return 0, err
	}
	resultID, err := e.typeID(x.Type, x.Span)
	if err != nil {
		return 0, err
	}
	return e.fb.AddArrayLength(resultID, base.pointer, uint32(member)), nil
}
