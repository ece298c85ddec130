package ast

import (
	"errors"
	"fmt"
	"math"
)

// ErrNotConstant is returned by EvaluateConstant when an expression depends
// on runtime values.
var ErrNotConstant = errors.New("expression is not a compile-time constant")

// ConstantLookup returns the value of a constant or option by ID. It reports
// false when the value is not known, for example an option with no value in
// the current specialization context.
type ConstantLookup func(constantID int) (ConstantValue, bool)

// EvaluateConstant folds a sanitized expression into a value.
func EvaluateConstant(expr Expression, lookup ConstantLookup) (ConstantValue, error) {
	switch e := expr.(type) {
	case *ConstantValueExpression:
		return e.Value, nil
	case *ConstantExpression:
		if lookup != nil {
			if v, ok := lookup(e.ConstantID); ok {
				return v, nil
			}
		}
		return nil, fmt.Errorf("constant #%d has no value: %w", e.ConstantID, ErrNotConstant)
	case *UnaryExpression:
		v, err := EvaluateConstant(e.Expression, lookup)
		if err != nil {
			return nil, err
		}
		return EvaluateUnary(e.Op, v)
	case *BinaryExpression:
		l, err := EvaluateConstant(e.Left, lookup)
		if err != nil {
			return nil, err
		}
		r, err := EvaluateConstant(e.Right, lookup)
		if err != nil {
			return nil, err
		}
		return EvaluateBinary(e.Op, l, r)
	case *ConditionalExpression:
		c, err := EvaluateConstant(e.Condition, lookup)
		if err != nil {
			return nil, err
		}
		b, ok := c.(BoolValue)
		if !ok {
			return nil, fmt.Errorf("condition must be bool, got %s", c.Type())
		}
		if b {
			return EvaluateConstant(e.TruePath, lookup)
		}
		return EvaluateConstant(e.FalsePath, lookup)
	case *CastExpression:
		target, ok := e.TargetType.(*TypeExpression)
		if !ok {
			return nil, ErrNotConstant
		}
		args := make([]ConstantValue, len(e.Expressions))
		for i, a := range e.Expressions {
			v, err := EvaluateConstant(a, lookup)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return EvaluateCast(target.Value, args)
	case *SwizzleExpression:
		v, err := EvaluateConstant(e.Expr, lookup)
		if err != nil {
			return nil, err
		}
		return EvaluateSwizzle(v, e.SwizzleComponents())
	case *AccessIndexExpression:
		v, err := EvaluateConstant(e.Expr, lookup)
		if err != nil {
			return nil, err
		}
		for _, idx := range e.Indices {
			iv, err := EvaluateConstant(idx, lookup)
			if err != nil {
				return nil, err
			}
			i, ok := asInt(iv)
			if !ok {
				return nil, fmt.Errorf("index must be an integer, got %s", iv.Type())
			}
			if v, err = indexValue(v, i); err != nil {
				return nil, err
			}
		}
		return v, nil
	default:
		return nil, ErrNotConstant
	}
}

// EvaluateUnary applies a unary operator to a constant.
func EvaluateUnary(op UnaryType, v ConstantValue) (ConstantValue, error) {
	if vec, ok := v.(VectorValue); ok {
		out := make([]ConstantValue, len(vec.Components))
		for i, c := range vec.Components {
			r, err := EvaluateUnary(op, c)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return VectorValue{Components: out}, nil
	}
	switch x := v.(type) {
	case BoolValue:
		if op == UnaryLogicalNot {
			return !x, nil
		}
	case Int32Value:
		return unaryInt(op, x)
	case UInt32Value:
		return unaryInt(op, x)
	case Float32Value:
		return unaryFloat(op, x)
	case Float64Value:
		return unaryFloat(op, x)
	}
	return nil, fmt.Errorf("operator %s cannot be applied to %s", op, v.Type())
}

func unaryInt[T intValue](op UnaryType, x T) (ConstantValue, error) {
	switch op {
	case UnaryMinus:
		return -x, nil
	case UnaryPlus:
		return x, nil
	case UnaryBitwiseNot:
		return ^x, nil
	}
	return nil, fmt.Errorf("operator %s cannot be applied to %s", op, x.Type())
}

func unaryFloat[T floatValue](op UnaryType, x T) (ConstantValue, error) {
	switch op {
	case UnaryMinus:
		return -x, nil
	case UnaryPlus:
		return x, nil
	}
	return nil, fmt.Errorf("operator %s cannot be applied to %s", op, x.Type())
}

// EvaluateBinary applies a binary operator to two constants. Vectors are
// processed component-wise and a scalar operand is broadcast.
func EvaluateBinary(op BinaryType, l, r ConstantValue) (ConstantValue, error) {
	lv, lIsVec := l.(VectorValue)
	rv, rIsVec := r.(VectorValue)
	if lIsVec || rIsVec {
		if op == BinaryCompEq || op == BinaryCompNe {
			eq := ValuesEqual(l, r)
			return BoolValue(eq == (op == BinaryCompEq)), nil
		}
		n := len(lv.Components)
		if !lIsVec {
			n = len(rv.Components)
		}
		if lIsVec && rIsVec && len(lv.Components) != len(rv.Components) {
			return nil, fmt.Errorf("component count mismatch: %s %s %s", l.Type(), op, r.Type())
		}
		out := make([]ConstantValue, n)
		for i := range out {
			a, b := l, r
			if lIsVec {
				a = lv.Components[i]
			}
			if rIsVec {
				b = rv.Components[i]
			}
			c, err := EvaluateBinary(op, a, b)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return VectorValue{Components: out}, nil
	}

	switch x := l.(type) {
	case BoolValue:
		if y, ok := r.(BoolValue); ok {
			switch op {
			case BinaryCompEq:
				return BoolValue(x == y), nil
			case BinaryCompNe:
				return BoolValue(x != y), nil
			case BinaryLogicalAnd:
				return x && y, nil
			case BinaryLogicalOr:
				return x || y, nil
			}
		}
	case Int32Value:
		if y, ok := r.(Int32Value); ok {
			return binaryInt(op, x, y)
		}
	case UInt32Value:
		if y, ok := r.(UInt32Value); ok {
			return binaryInt(op, x, y)
		}
	case Float32Value:
		if y, ok := r.(Float32Value); ok {
			return binaryFloat(op, x, y)
		}
	case Float64Value:
		if y, ok := r.(Float64Value); ok {
			return binaryFloat(op, x, y)
		}
	}
	return nil, fmt.Errorf("operator %s cannot be applied to %s and %s", op, l.Type(), r.Type())
}

type numericValue interface {
	Int32Value | UInt32Value | Float32Value | Float64Value
	ConstantValue
}

type intValue interface {
	Int32Value | UInt32Value
	ConstantValue
}

type floatValue interface {
	Float32Value | Float64Value
	ConstantValue
}

func compareValues[T numericValue](op BinaryType, x, y T) (ConstantValue, bool) {
	switch op {
	case BinaryCompEq:
		return BoolValue(x == y), true
	case BinaryCompNe:
		return BoolValue(x != y), true
	case BinaryCompLt:
		return BoolValue(x < y), true
	case BinaryCompLe:
		return BoolValue(x <= y), true
	case BinaryCompGt:
		return BoolValue(x > y), true
	case BinaryCompGe:
		return BoolValue(x >= y), true
	}
	return nil, false
}

func binaryInt[T intValue](op BinaryType, x, y T) (ConstantValue, error) {
	if c, ok := compareValues(op, x, y); ok {
		return c, nil
	}
	switch op {
	case BinaryAdd:
		return x + y, nil
	case BinarySubtract:
		return x - y, nil
	case BinaryMultiply:
		return x * y, nil
	case BinaryDivide, BinaryModulo:
		if y == 0 {
			return nil, errors.New("integer division by zero")
		}
		if op == BinaryDivide {
			return x / y, nil
		}
		return x % y, nil
	case BinaryBitwiseAnd:
		return x & y, nil
	case BinaryBitwiseOr:
		return x | y, nil
	case BinaryBitwiseXor:
		return x ^ y, nil
	case BinaryShiftLeft, BinaryShiftRight:
		if y < 0 || y >= 32 {
			return nil, fmt.Errorf("shift count %v out of range", y)
		}
		if op == BinaryShiftLeft {
			return x << y, nil
		}
		return x >> y, nil
	}
	return nil, fmt.Errorf("operator %s cannot be applied to %s", op, x.Type())
}

func binaryFloat[T floatValue](op BinaryType, x, y T) (ConstantValue, error) {
	if c, ok := compareValues(op, x, y); ok {
		return c, nil
	}
	switch op {
	case BinaryAdd:
		return x + y, nil
	case BinarySubtract:
		return x - y, nil
	case BinaryMultiply:
		return x * y, nil
	case BinaryDivide:
		return x / y, nil
	case BinaryModulo:
		return T(math.Mod(float64(x), float64(y))), nil
	}
	return nil, fmt.Errorf("operator %s cannot be applied to %s", op, x.Type())
}

// EvaluateCast converts or constructs a constant of the target type.
func EvaluateCast(target ExpressionType, args []ConstantValue) (ConstantValue, error) {
	switch t := target.(type) {
	case PrimitiveType:
		if len(args) != 1 {
			return nil, fmt.Errorf("%s expects 1 argument, got %d", t, len(args))
		}
		return ConvertScalar(args[0], t)
	case VectorType:
		var comps []ConstantValue
		for _, a := range args {
			if v, ok := a.(VectorValue); ok {
				comps = append(comps, v.Components...)
			} else {
				comps = append(comps, a)
			}
		}
		if len(comps) == 1 {
			for len(comps) < int(t.ComponentCount) {
				comps = append(comps, comps[0])
			}
		}
		if len(comps) != int(t.ComponentCount) {
			return nil, fmt.Errorf("%s expects %d components, got %d", t, t.ComponentCount, len(comps))
		}
		for i, c := range comps {
			v, err := ConvertScalar(c, t.Type)
			if err != nil {
				return nil, err
			}
			comps[i] = v
		}
		return VectorValue{Components: comps}, nil
	case MatrixType:
		if len(args) == 1 {
			if m, ok := args[0].(MatrixValue); ok {
				return ResizeMatrix(m, t)
			}
		}
		var scalars []ConstantValue
		for _, a := range args {
			switch v := a.(type) {
			case VectorValue:
				scalars = append(scalars, v.Components...)
			case MatrixValue:
				return nil, fmt.Errorf("%s cannot be built from several matrices", t)
			default:
				scalars = append(scalars, v)
			}
		}
		if len(scalars) != int(t.ColumnCount*t.RowCount) {
			return nil, fmt.Errorf("%s expects %d components, got %d", t, t.ColumnCount*t.RowCount, len(scalars))
		}
		cols := make([]VectorValue, t.ColumnCount)
		for c := range cols {
			v, err := EvaluateCast(t.ColumnType(), scalars[c*int(t.RowCount):(c+1)*int(t.RowCount)])
			if err != nil {
				return nil, err
			}
			cols[c] = v.(VectorValue)
		}
		return MatrixValue{Columns: cols}, nil
	}
	return nil, ErrNotConstant
}

// ResizeMatrix truncates or widens m to the target shape. New entries follow
// the identity pattern: 1 on the diagonal, 0 elsewhere.
func ResizeMatrix(m MatrixValue, target MatrixType) (ConstantValue, error) {
	cols := make([]VectorValue, target.ColumnCount)
	for c := range cols {
		comps := make([]ConstantValue, target.RowCount)
		for r := range comps {
			var v ConstantValue
			if c < len(m.Columns) && r < len(m.Columns[c].Components) {
				v = m.Columns[c].Components[r]
			} else if c == r {
				v = ScalarFromFloat(target.Type, 1)
			} else {
				v = ScalarFromFloat(target.Type, 0)
			}
			cv, err := ConvertScalar(v, target.Type)
			if err != nil {
				return nil, err
			}
			comps[r] = cv
		}
		cols[c] = VectorValue{Components: comps}
	}
	return MatrixValue{Columns: cols}, nil
}

// ConvertScalar converts a scalar constant to another primitive type.
func ConvertScalar(v ConstantValue, p PrimitiveType) (ConstantValue, error) {
	if b, ok := v.(BoolValue); ok {
		if p == PrimitiveBool {
			return b, nil
		}
		return nil, fmt.Errorf("cannot convert bool to %s", p)
	}
	if p == PrimitiveBool {
		return nil, fmt.Errorf("cannot convert %s to bool", v.Type())
	}
	if f, ok := asFloat(v); ok {
		switch p {
		case PrimitiveFloat32:
			return Float32Value(float32(f)), nil
		case PrimitiveFloat64:
			return Float64Value(f), nil
		}
		if i, ok := asInt(v); ok {
			if p == PrimitiveInt32 {
				return Int32Value(int32(i)), nil
			}
			return UInt32Value(uint32(i)), nil
		}
		if p == PrimitiveInt32 {
			return Int32Value(int32(f)), nil
		}
		return UInt32Value(uint32(f)), nil
	}
	return nil, fmt.Errorf("cannot convert %s to %s", v.Type(), p)
}

// EvaluateSwizzle selects components of a vector or broadcasts a scalar.
func EvaluateSwizzle(v ConstantValue, components []uint32) (ConstantValue, error) {
	var src []ConstantValue
	switch x := v.(type) {
	case VectorValue:
		src = x.Components
	case BoolValue, Int32Value, UInt32Value, Float32Value, Float64Value:
		src = []ConstantValue{x}
	default:
		return nil, fmt.Errorf("cannot swizzle %s", v.Type())
	}
	out := make([]ConstantValue, len(components))
	for i, c := range components {
		if int(c) >= len(src) {
			return nil, fmt.Errorf("swizzle component %d out of range for %s", c, v.Type())
		}
		out[i] = src[c]
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return VectorValue{Components: out}, nil
}

func indexValue(v ConstantValue, i int64) (ConstantValue, error) {
	switch x := v.(type) {
	case VectorValue:
		if i >= 0 && i < int64(len(x.Components)) {
			return x.Components[i], nil
		}
	case MatrixValue:
		if i >= 0 && i < int64(len(x.Columns)) {
			return x.Columns[i], nil
		}
	default:
		return nil, fmt.Errorf("cannot index %s", v.Type())
	}
	return nil, fmt.Errorf("index %d out of range for %s", i, v.Type())
}

func asFloat(v ConstantValue) (float64, bool) {
	switch x := v.(type) {
	case Int32Value:
		return float64(x), true
	case UInt32Value:
		return float64(x), true
	case Float32Value:
		return float64(x), true
	case Float64Value:
		return float64(x), true
	}
	return 0, false
}

func asInt(v ConstantValue) (int64, bool) {
	switch x := v.(type) {
	case Int32Value:
		return int64(x), true
	case UInt32Value:
		return int64(x), true
	}
	return 0, false
}

// ConstantInt returns the value of an integer constant.
func ConstantInt(v ConstantValue) (int64, bool) {
	return asInt(v)
}
