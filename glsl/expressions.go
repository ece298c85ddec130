// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"
	"strings"

	"github.com/gogpu/nzsl/ast"
)

// intrinsicNames maps intrinsics to GLSL built-in functions.
var intrinsicNames = map[ast.IntrinsicType]string{
	ast.IntrinsicAbs:          "abs",
	ast.IntrinsicAll:          "all",
	ast.IntrinsicAny:          "any",
	ast.IntrinsicArcCos:       "acos",
	ast.IntrinsicArcSin:       "asin",
	ast.IntrinsicArcTan:       "atan",
	ast.IntrinsicCeil:         "ceil",
	ast.IntrinsicClamp:        "clamp",
	ast.IntrinsicCos:          "cos",
	ast.IntrinsicCrossProduct: "cross",
	ast.IntrinsicDegrees:      "degrees",
	ast.IntrinsicDeterminant:  "determinant",
	ast.IntrinsicDistance:     "distance",
	ast.IntrinsicDotProduct:   "dot",
	ast.IntrinsicExp:          "exp",
	ast.IntrinsicExp2:         "exp2",
	ast.IntrinsicFloor:        "floor",
	ast.IntrinsicFract:        "fract",
	ast.IntrinsicInverse:      "inverse",
	ast.IntrinsicInverseSqrt:  "inversesqrt",
	ast.IntrinsicLength:       "length",
	ast.IntrinsicLerp:         "mix",
	ast.IntrinsicLog:          "log",
	ast.IntrinsicLog2:         "log2",
	ast.IntrinsicMax:          "max",
	ast.IntrinsicMin:          "min",
	ast.IntrinsicNormalize:    "normalize",
	ast.IntrinsicPow:          "pow",
	ast.IntrinsicRadians:      "radians",
	ast.IntrinsicReflect:      "reflect",
	ast.IntrinsicRound:        "round",
	ast.IntrinsicSign:         "sign",
	ast.IntrinsicSin:          "sin",
	ast.IntrinsicSmoothStep:   "smoothstep",
	ast.IntrinsicSqrt:         "sqrt",
	ast.IntrinsicStep:         "step",
	ast.IntrinsicTan:          "tan",
	ast.IntrinsicTranspose:    "transpose",
	ast.IntrinsicTrunc:        "trunc",
}

// binaryOperators maps binary operators to their GLSL spelling.
var binaryOperators = map[ast.BinaryType]string{
	ast.BinaryAdd:        "+",
	ast.BinarySubtract:   "-",
	ast.BinaryMultiply:   "*",
	ast.BinaryDivide:     "/",
	ast.BinaryModulo:     "%",
	ast.BinaryCompEq:     "==",
	ast.BinaryCompNe:     "!=",
	ast.BinaryCompLt:     "<",
	ast.BinaryCompLe:     "<=",
	ast.BinaryCompGt:     ">",
	ast.BinaryCompGe:     ">=",
	ast.BinaryLogicalAnd: "&&",
	ast.BinaryLogicalOr:  "||",
	ast.BinaryBitwiseAnd: "&",
	ast.BinaryBitwiseOr:  "|",
	ast.BinaryBitwiseXor: "^",
	ast.BinaryShiftLeft:  "<<",
	ast.BinaryShiftRight: ">>",
}

// expression writes an expression and returns its GLSL representation.
// Cached results it depends on are queued in w.pending.
//
//nolint:gocyclo,cyclop // Expression handling requires many cases
func (w *Writer) expression(expr ast.Expression) (string, error) {
	switch x := expr.(type) {
	case *ast.ConstantValueExpression:
		return w.literal(x.Value)

	case *ast.ConstantExpression:
		if name, ok := w.constantNames[x.ConstantID]; ok {
			return name, nil
		}
		v, ok := w.constants[x.ConstantID]
		if !ok {
			return "", w.errorf(x.Span, "constant #%d has no value", x.ConstantID)
		}
		return w.literal(v)

	case *ast.VariableValueExpression:
		name, ok := w.variableNames[x.VariableID]
		if !ok {
			return "", w.errorf(x.Span, "variable #%d is not available", x.VariableID)
		}
		return name, nil

	case *ast.AccessIndexExpression:
		return w.writeAccessIndex(x)

	case *ast.SwizzleExpression:
		return w.writeSwizzle(x)

	case *ast.BinaryExpression:
		left, err := w.expression(x.Left)
		if err != nil {
			return "", err
		}
		right, err := w.expression(x.Right)
		if err != nil {
			return "", err
		}
		return w.writeBinary(x.Op, x.Left.ResolvedType(), left, right, x.Span)

	case *ast.UnaryExpression:
		return w.writeUnary(x)

	case *ast.AssignExpression:
		assign, err := w.writeAssign(x)
		if err != nil {
			return "", err
		}
		return "(" + assign + ")", nil

	case *ast.CastExpression:
		return w.writeCast(x)

	case *ast.ConditionalExpression:
		condition, err := w.expression(x.Condition)
		if err != nil {
			return "", err
		}
		accept, err := w.expression(x.TruePath)
		if err != nil {
			return "", err
		}
		reject, err := w.expression(x.FalsePath)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s ? %s : %s)", condition, accept, reject), nil

	case *ast.CallFunctionExpression:
		return w.writeCall(x)

	case *ast.IntrinsicExpression:
		return w.writeIntrinsic(x)

	default:
		return "", w.errorf(expr.Pos(), "unsupported expression %T", expr)
	}
}

// expressions writes a list of expressions.
func (w *Writer) expressions(list []ast.Expression) ([]string, error) {
	out := make([]string, len(list))
	for i, e := range list {
		var err error
		if out[i], err = w.expression(e); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// postfix wraps an operand that a member access or swizzle would otherwise
// bind to incorrectly.
func postfix(s string) string {
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "!") || strings.HasPrefix(s, "~") {
		return "(" + s + ")"
	}
	return s
}

// writeAccessIndex writes member accesses as .name and other indices as
// [index].
func (w *Writer) writeAccessIndex(x *ast.AccessIndexExpression) (string, error) {
	base, err := w.expression(x.Expr)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(postfix(base))

	t := x.Expr.ResolvedType()
	for _, idx := range x.Indices {
		if st, ok := containerOf(t); ok {
			member, err := w.memberIndex(st, idx)
			if err != nil {
				return "", err
			}
			b.WriteString(".")
			b.WriteString(escapeKeyword(st.Members[member].Name))
			t = st.Members[member].Type
			continue
		}

		index, err := w.expression(idx)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "[%s]", index)
		switch c := t.(type) {
		case ast.ArrayType:
			t = c.ContainedType
		case ast.VectorType:
			t = c.Type
		case ast.MatrixType:
			t = c.ColumnType()
		default:
			return "", w.errorf(x.Span, "type %s cannot be indexed", t)
		}
	}
	return b.String(), nil
}

// containerOf returns the struct accessed through a struct, uniform or
// storage value.
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

func (w *Writer) memberIndex(st ast.StructType, idx ast.Expression) (int, error) {
	v, err := ast.EvaluateConstant(idx, w.constantLookup)
	if err != nil {
		return 0, w.errorf(idx.Pos(), "member index of %s must be constant", st.Name)
	}
	n, ok := ast.ConstantInt(v)
	if !ok || n < 0 || int(n) >= len(st.Members) {
		return 0, w.errorf(idx.Pos(), "invalid member index %s for struct %s", v, st.Name)
	}
	return int(n), nil
}

// writeSwizzle writes a vector swizzle as a suffix. A scalar swizzle
// broadcasts the value into a vector constructor, reading a cached result
// when the value is not a plain name.
func (w *Writer) writeSwizzle(x *ast.SwizzleExpression) (string, error) {
	base, err := w.expression(x.Expr)
	if err != nil {
		return "", err
	}
	srcType := x.Expr.ResolvedType()
	if _, isVector := srcType.(ast.VectorType); isVector {
		return postfix(base) + "." + ast.SwizzleString(x.SwizzleComponents()), nil
	}

	if x.ComponentCount == 1 {
		return base, nil
	}
	if !isTrivial(x.Expr) {
		if base, err = w.cacheResult(srcType, base); err != nil {
			return "", err
		}
	}
	typeName, err := w.typeName(x.Type)
	if err != nil {
		return "", w.errorf(x.Span, "%v", err)
	}
	parts := make([]string, x.ComponentCount)
	for i := range parts {
		parts[i] = base
	}
	return fmt.Sprintf("%s(%s)", typeName, strings.Join(parts, ", ")), nil
}

// isTrivial reports whether reading an expression several times costs
// nothing.
func isTrivial(e ast.Expression) bool {
	switch e.(type) {
	case *ast.VariableValueExpression, *ast.ConstantExpression, *ast.ConstantValueExpression:
		return true
	}
	return false
}

// cacheResult queues a temporary holding value and returns its name.
func (w *Writer) cacheResult(t ast.ExpressionType, value string) (string, error) {
	name := w.namer.call("cachedResult")
	decl, err := w.declaration(t, name)
	if err != nil {
		return "", err
	}
	w.pending = append(w.pending, fmt.Sprintf("%s = %s;", decl, value))
	return name, nil
}

// writeBinary writes a binary operation. Floating-point remainders use mod.
func (w *Writer) writeBinary(op ast.BinaryType, leftType ast.ExpressionType, left, right string, span ast.Span) (string, error) {
	if op == ast.BinaryModulo {
		if p, _ := ast.ScalarOf(leftType); p.IsFloat() {
			return fmt.Sprintf("mod(%s, %s)", left, right), nil
		}
	}
	symbol, ok := binaryOperators[op]
	if !ok {
		return "", w.errorf(span, "unsupported binary operator %s", op)
	}
	return fmt.Sprintf("(%s %s %s)", left, symbol, right), nil
}

// writeUnary writes a unary expression.
func (w *Writer) writeUnary(x *ast.UnaryExpression) (string, error) {
	operand, err := w.expression(x.Expression)
	if err != nil {
		return "", err
	}

	switch x.Op {
	case ast.UnaryPlus:
		return operand, nil
	case ast.UnaryMinus:
		return fmt.Sprintf("-(%s)", operand), nil
	case ast.UnaryLogicalNot:
		return fmt.Sprintf("!(%s)", operand), nil
	case ast.UnaryBitwiseNot:
		return fmt.Sprintf("~(%s)", operand), nil
	default:
		return "", w.errorf(x.Span, "unsupported unary operator %s", x.Op)
	}
}

// writeAssign writes an assignment without enclosing parentheses. Compound
// operators GLSL lacks are expanded.
func (w *Writer) writeAssign(x *ast.AssignExpression) (string, error) {
	right, err := w.expression(x.Right)
	if err != nil {
		return "", err
	}
	left, err := w.expression(x.Left)
	if err != nil {
		return "", err
	}
	op, compound := x.Op.BinaryOp()
	if !compound {
		return fmt.Sprintf("%s = %s", left, right), nil
	}

	p, _ := ast.ScalarOf(x.Left.ResolvedType())
	if op.IsLogical() || (op == ast.BinaryModulo && p.IsFloat()) {
		value, err := w.writeBinary(op, x.Left.ResolvedType(), left, right, x.Span)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s = %s", left, value), nil
	}
	return fmt.Sprintf("%s %s= %s", left, binaryOperators[op], right), nil
}

// writeCast writes a type constructor.
func (w *Writer) writeCast(x *ast.CastExpression) (string, error) {
	args, err := w.expressions(x.Expressions)
	if err != nil {
		return "", err
	}
	typeName, err := w.typeName(x.Type)
	if err != nil {
		return "", w.errorf(x.Span, "%v", err)
	}
	return fmt.Sprintf("%s(%s)", typeName, strings.Join(args, ", ")), nil
}

// writeCall writes a user function call.
func (w *Writer) writeCall(x *ast.CallFunctionExpression) (string, error) {
	target, ok := x.TargetFunction.(*ast.FunctionExpression)
	if !ok {
		return "", w.errorf(x.Span, "unsupported call target %T", x.TargetFunction)
	}
	name, ok := w.functionNames[target.FunctionID]
	if !ok {
		return "", w.errorf(x.Span, "function #%d is not available with the current options", target.FunctionID)
	}
	args, err := w.expressions(x.Parameters)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(args, ", ")), nil
}

// writeIntrinsic writes a built-in function call.
func (w *Writer) writeIntrinsic(x *ast.IntrinsicExpression) (string, error) {
	args, err := w.expressions(x.Parameters)
	if err != nil {
		return "", err
	}

	switch x.Intrinsic {
	case ast.IntrinsicSampleTexture:
		// implicit derivatives only exist in fragment shaders
		if w.env.Stage == ast.StageFragment {
			return fmt.Sprintf("texture(%s, %s)", args[0], args[1]), nil
		}
		return fmt.Sprintf("textureLod(%s, %s, 0.0)", args[0], args[1]), nil
	case ast.IntrinsicArraySize:
		return fmt.Sprintf("uint(%s.length())", postfix(args[0])), nil
	}

	name, ok := intrinsicNames[x.Intrinsic]
	if !ok {
		return "", w.errorf(x.Span, "intrinsic %s is not supported", x.Intrinsic)
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(args, ", ")), nil
}
