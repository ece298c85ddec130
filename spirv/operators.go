package spirv

import (
	"github.com/gogpu/nzsl/ast"
)

// emitBinary applies a binary operator to two emitted operands.
//
//nolint:gocyclo,cyclop // Operator selection depends on operand shapes
func (e *ExpressionEmitter) emitBinary(op ast.BinaryType, lt, rt, result ast.ExpressionType, left, right uint32, span ast.Span) (uint32, error) {
	resultID, err := e.typeID(result, span)
	if err != nil {
		return 0, err
	}
	scalar, _ := ast.ScalarOf(lt)

	switch {
	case op.IsLogical():
		opcode := OpLogicalAnd
		if op == ast.BinaryLogicalOr {
			opcode = OpLogicalOr
		}
		return e.fb.AddBinaryOp(opcode, resultID, left, right), nil

	case op.IsComparison():
		opcode, err := comparisonOp(op, scalar)
		if err != nil {
			return 0, e.backend.errorf(span, "%v", err)
		}
		return e.fb.AddBinaryOp(opcode, resultID, left, right), nil

	case op.IsBitwise():
		// shift amounts may be a scalar applied to a vector
		if _, isVec := lt.(ast.VectorType); isVec {
			if right, err = e.broadcast(right, rt, lt, span); err != nil {
				return 0, err
			}
		}
		return e.fb.AddBinaryOp(bitwiseOp(op, scalar), resultID, left, right), nil
	}

	lm, leftMatrix := lt.(ast.MatrixType)
	_, rightMatrix := rt.(ast.MatrixType)
	_, leftVector := lt.(ast.VectorType)
	_, rightVector := rt.(ast.VectorType)
	_, leftScalar := lt.(ast.PrimitiveType)
	_, rightScalar := rt.(ast.PrimitiveType)

	if op == ast.BinaryMultiply {
		switch {
		case leftMatrix && rightMatrix:
			return e.fb.AddBinaryOp(OpMatrixTimesMatrix, resultID, left, right), nil
		case leftMatrix && rightVector:
			return e.fb.AddBinaryOp(OpMatrixTimesVector, resultID, left, right), nil
		case leftVector && rightMatrix:
			return e.fb.AddBinaryOp(OpVectorTimesMatrix, resultID, left, right), nil
		case leftMatrix && rightScalar:
			return e.fb.AddBinaryOp(OpMatrixTimesScalar, resultID, left, right), nil
		case leftScalar && rightMatrix:
			return e.fb.AddBinaryOp(OpMatrixTimesScalar, resultID, right, left), nil
		case leftVector && rightScalar && scalar.IsFloat():
			return e.fb.AddBinaryOp(OpVectorTimesScalar, resultID, left, right), nil
		case leftScalar && rightVector && scalar.IsFloat():
			return e.fb.AddBinaryOp(OpVectorTimesScalar, resultID, right, left), nil
		}
	}

	if leftMatrix || rightMatrix {
		if !leftMatrix || !rightMatrix || (op != ast.BinaryAdd && op != ast.BinarySubtract) {
			return 0, e.backend.errorf(span, "operator %s is not supported between %s and %s", op, lt, rt)
		}
		return e.emitColumnwise(arithmeticOp(op, lm.Type), lm, resultID, span, left, right)
	}

	// mixed vector and scalar operands broadcast the scalar
	if leftVector && rightScalar {
		if right, err = e.broadcast(right, rt, lt, span); err != nil {
			return 0, err
		}
	} else if leftScalar && rightVector {
		if left, err = e.broadcast(left, lt, rt, span); err != nil {
			return 0, err
		}
	}
	return e.fb.AddBinaryOp(arithmeticOp(op, scalar), resultID, left, right), nil
}

// emitColumnwise applies an operator to each column of one or two matrices.
func (e *ExpressionEmitter) emitColumnwise(opcode OpCode, m ast.MatrixType, resultID uint32, span ast.Span, operands ...uint32) (uint32, error) {
	columnID, err := e.typeID(m.ColumnType(), span)
	if err != nil {
		return 0, err
	}
	columns := make([]uint32, m.ColumnCount)
	for c := range columns {
		args := make([]uint32, len(operands))
		for i, operand := range operands {
			args[i] = e.fb.AddCompositeExtract(columnID, operand, uint32(c))
		}
		if len(args) == 1 {
			columns[c] = e.fb.AddUnaryOp(opcode, columnID, args[0])
		} else {
			columns[c] = e.fb.AddBinaryOp(opcode, columnID, args[0], args[1])
		}
	}
	return e.fb.AddCompositeConstruct(resultID, columns...), nil
}

// broadcast builds a vector of type to with every component set to value.
func (e *ExpressionEmitter) broadcast(value uint32, from, to ast.ExpressionType, span ast.Span) (uint32, error) {
	vt, ok := to.(ast.VectorType)
	if !ok {
		return value, nil
	}
	if _, already := from.(ast.VectorType); already {
		return value, nil
	}
	vecID, err := e.typeID(vt, span)
	if err != nil {
		return 0, err
	}
	constituents := make([]uint32, vt.ComponentCount)
	for i := range constituents {
		constituents[i] = value
	}
	return e.fb.AddCompositeConstruct(vecID, constituents...), nil
}

func comparisonOp(op ast.BinaryType, p ast.PrimitiveType) (OpCode, error) {
	type ops struct{ b, f, s, u OpCode }
	var table ops
	switch op {
	case ast.BinaryCompEq:
		table = ops{OpLogicalEqual, OpFOrdEqual, OpIEqual, OpIEqual}
	case ast.BinaryCompNe:
		table = ops{OpLogicalNotEqual, OpFUnordNotEqual, OpINotEqual, OpINotEqual}
	case ast.BinaryCompLt:
		table = ops{0, OpFOrdLessThan, OpSLessThan, OpULessThan}
	case ast.BinaryCompLe:
		table = ops{0, OpFOrdLessThanEqual, OpSLessThanEqual, OpULessThanEqual}
	case ast.BinaryCompGt:
		table = ops{0, OpFOrdGreaterThan, OpSGreaterThan, OpUGreaterThan}
	case ast.BinaryCompGe:
		table = ops{0, OpFOrdGreaterThanEqual, OpSGreaterThanEqual, OpUGreaterThanEqual}
	}
	var opcode OpCode
	switch p {
	case ast.PrimitiveBool:
		opcode = table.b
	case ast.PrimitiveFloat32, ast.PrimitiveFloat64:
		opcode = table.f
	case ast.PrimitiveInt32:
		opcode = table.s
	case ast.PrimitiveUInt32:
		opcode = table.u
	}
	if opcode == 0 {
		return 0, ast.Errorf(ast.ErrBackend, ast.Span{}, "operator %s is not supported on %s", op, p)
	}
	return opcode, nil
}

func bitwiseOp(op ast.BinaryType, p ast.PrimitiveType) OpCode {
	switch op {
	case ast.BinaryBitwiseAnd:
		return OpBitwiseAnd
	case ast.BinaryBitwiseOr:
		return OpBitwiseOr
	case ast.BinaryBitwiseXor:
		return OpBitwiseXor
	case ast.BinaryShiftLeft:
		return OpShiftLeftLogical
	}
	if p == ast.PrimitiveInt32 {
		return OpShiftRightArithmetic
	}
	return OpShiftRightLogical
}

func arithmeticOp(op ast.BinaryType, p ast.PrimitiveType) OpCode {
	if p.IsFloat() {
		switch op {
		case ast.BinaryAdd:
			return OpFAdd
		case ast.BinarySubtract:
			return OpFSub
		case ast.BinaryMultiply:
			return OpFMul
		case ast.BinaryDivide:
			return OpFDiv
		default:
			return OpFMod
		}
	}
	signed := p == ast.PrimitiveInt32
	switch op {
	case ast.BinaryAdd:
		return OpIAdd
	case ast.BinarySubtract:
		return OpISub
	case ast.BinaryMultiply:
		return OpIMul
	case ast.BinaryDivide:
		if signed {
			return OpSDiv
		}
		return OpUDiv
	default:
		if signed {
			return OpSRem
		}
		return OpUMod
	}
}

func (e *ExpressionEmitter) emitUnary(x *ast.UnaryExpression) (uint32, error) {
	operand, err := e.emitExpression(x.Expression)
	if err != nil {
		return 0, err
	}
	if x.Op == ast.UnaryPlus {
		return operand, nil
	}
	resultID, err := e.typeID(x.Type, x.Span)
	if err != nil {
		return 0, err
	}
	switch x.Op {
	case ast.UnaryLogicalNot:
		return e.fb.AddUnaryOp(OpLogicalNot, resultID, operand), nil
	case ast.UnaryBitwiseNot:
		return e.fb.AddUnaryOp(OpNot, resultID, operand), nil
	}

	scalar, _ := ast.ScalarOf(x.Type)
	opcode := OpSNegate
	if scalar.IsFloat() {
		opcode = OpFNegate
	}
	if m, ok := x.Type.(ast.MatrixType); ok {
		return e.emitColumnwise(opcode, m, resultID, x.Span, operand)
	}
	return e.fb.AddUnaryOp(opcode, resultID, operand), nil
}

// emitCast emits a conversion or a composite construction.
//
//nolint:gocyclo,cyclop // One branch per target shape
func (e *ExpressionEmitter) emitCast(x *ast.CastExpression) (uint32, error) {
	target := resolvedType(x.TargetType)
	resultID, err := e.typeID(target, x.Span)
	if err != nil {
		return 0, err
	}
	args := make([]uint32, len(x.Expressions))
	argTypes := make([]ast.ExpressionType, len(x.Expressions))
	for i, arg := range x.Expressions {
		if args[i], err = e.emitExpression(arg); err != nil {
			return 0, err
		}
		argTypes[i] = arg.ResolvedType()
	}

	switch t := target.(type) {
	case ast.PrimitiveType:
		from, _ := argTypes[0].(ast.PrimitiveType)
		return e.convert(args[0], from, t, resultID), nil

	case ast.VectorType:
		if len(args) == 1 {
			switch from := argTypes[0].(type) {
			case ast.PrimitiveType:
				scalarID, err := e.typeID(t.Type, x.Span)
				if err != nil {
					return 0, err
				}
				return e.broadcast(e.convert(args[0], from, t.Type, scalarID), t.Type, t, x.Span)
			case ast.VectorType:
				return e.convert(args[0], from.Type, t.Type, resultID), nil
			}
		}
		return e.fb.AddCompositeConstruct(resultID, args...), nil

	case ast.MatrixType:
		if len(args) == 1 {
			if from, ok := argTypes[0].(ast.MatrixType); ok {
				if ast.TypesEqual(from, t) {
					return args[0], nil
				}
				return 0, e.backend.errorf(x.Span, "matrix cast from %s to %s must be rewritten before emission", from, t)
			}
		}
		if len(args) == int(t.ColumnCount*t.RowCount) && t.RowCount > 1 {
			columnID, err := e.typeID(t.ColumnType(), x.Span)
			if err != nil {
				return 0, err
			}
			columns := make([]uint32, t.ColumnCount)
			for c := range columns {
				columns[c] = e.fb.AddCompositeConstruct(columnID, args[c*int(t.RowCount):(c+1)*int(t.RowCount)]...)
			}
			return e.fb.AddCompositeConstruct(resultID, columns...), nil
		}
		return e.fb.AddCompositeConstruct(resultID, args...), nil

	case ast.ArrayType:
		return e.fb.AddCompositeConstruct(resultID, args...), nil
	}
	return 0, e.backend.errorf(x.Span, "cannot cast to %s", target)
}

// convert changes the scalar type of a scalar or vector value.
func (e *ExpressionEmitter) convert(value uint32, from, to ast.PrimitiveType, resultID uint32) uint32 {
	if from == to {
		return value
	}
	var opcode OpCode
	switch {
	case from.IsFloat() && to.IsFloat():
		opcode = OpFConvert
	case from.IsFloat() && to == ast.PrimitiveInt32:
		opcode = OpConvertFToS
	case from.IsFloat() && to == ast.PrimitiveUInt32:
		opcode = OpConvertFToU
	case from == ast.PrimitiveInt32 && to.IsFloat():
		opcode = OpConvertSToF
	case from == ast.PrimitiveUInt32 && to.IsFloat():
		opcode = OpConvertUToF
	default:
		opcode = OpBitcast
	}
	return e.fb.AddUnaryOp(opcode, resultID, value)
}
