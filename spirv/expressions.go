package spirv

import (
	"github.com/gogpu/nzsl/ast"
)

// place is a pointer to a variable or to a component of one.
type place struct {
	pointer uint32
	class   StorageClass
	typ     ast.ExpressionType
}

func (e *ExpressionEmitter) typeID(t ast.ExpressionType, span ast.Span) (uint32, error) {
	id, err := e.backend.types.typeID(t)
	if err != nil {
		return 0, e.backend.errorf(span, "%v", err)
	}
	return id, nil
}

func (e *ExpressionEmitter) constant(v ast.ConstantValue, span ast.Span) (uint32, error) {
	id, err := e.backend.types.constantID(v)
	if err != nil {
		return 0, e.backend.errorf(span, "%v", err)
	}
	return id, nil
}

// emitExpression emits an expression and returns its SPIR-V ID.
//
//nolint:gocyclo,cyclop // Expression dispatch requires high cyclomatic complexity
func (e *ExpressionEmitter) emitExpression(expr ast.Expression) (uint32, error) {
	switch x := expr.(type) {
	case *ast.ConstantValueExpression:
		return e.constant(x.Value, x.Span)

	case *ast.ConstantExpression:
		v, ok := e.backend.constants[x.ConstantID]
		if !ok {
			return 0, e.backend.errorf(x.Span, "constant #%d has no value", x.ConstantID)
		}
		return e.constant(v, x.Span)

	case *ast.VariableValueExpression:
		p, _, err := e.place(x)
		if err != nil {
			return 0, err
		}
		return e.load(p, x.Span)

	case *ast.AccessIndexExpression:
		p, ok, err := e.place(x)
		if err != nil {
			return 0, err
		}
		if ok {
			return e.load(p, x.Span)
		}
		return e.emitAccessValue(x)

	case *ast.SwizzleExpression:
		return e.emitSwizzle(x)

	case *ast.BinaryExpression:
		left, err := e.emitExpression(x.Left)
		if err != nil {
			return 0, err
		}
		right, err := e.emitExpression(x.Right)
		if err != nil {
			return 0, err
		}
		return e.emitBinary(x.Op, x.Left.ResolvedType(), x.Right.ResolvedType(), x.Type, left, right, x.Span)

	case *ast.UnaryExpression:
		return e.emitUnary(x)

	case *ast.AssignExpression:
		return e.emitAssign(x)

	case *ast.CastExpression:
		return e.emitCast(x)

	case *ast.ConditionalExpression:
		return e.emitTernary(x)

	case *ast.CallFunctionExpression:
		return e.emitCall(x)

	case *ast.IntrinsicExpression:
		return e.emitIntrinsic(x)

	default:
		return 0, e.backend.errorf(expr.Pos(), "unsupported expression %T", expr)
	}
}

func (e *ExpressionEmitter) load(p place, span ast.Span) (uint32, error) {
	typeID, err := e.typeID(p.typ, span)
	if err != nil {
		return 0, err
	}
	return e.fb.AddLoad(typeID, p.pointer), nil
}

// place returns the pointer an expression designates. ok is false for
// expressions that are values rather than locations.
func (e *ExpressionEmitter) place(expr ast.Expression) (p place, ok bool, err error) {
	switch x := expr.(type) {
	case *ast.VariableValueExpression:
		v, found := e.variable(x.VariableID)
		if !found {
			return place{}, false, e.backend.errorf(x.Span, "variable #%d is not available", x.VariableID)
		}
		return place{pointer: v.id, class: v.class, typ: v.typ}, true, nil

	case *ast.AccessIndexExpression:
		base, ok, err := e.place(x.Expr)
		if err != nil || !ok {
			return place{}, false, err
		}
		p, err := e.accessChain(base, x.Indices, x.Span)
		return p, err == nil, err

	case *ast.SwizzleExpression:
		if x.ComponentCount != 1 {
			return place{}, false, nil
		}
		base, ok, err := e.place(x.Expr)
		if err != nil || !ok {
			return place{}, false, err
		}
		vt, isVector := base.typ.(ast.VectorType)
		if !isVector {
			return base, true, nil
		}
		index, err := e.constant(ast.Int32Value(x.Components[0]), x.Span)
		if err != nil {
			return place{}, false, err
		}
		ptr, err := e.backend.types.pointerTo(base.class, vt.Type)
		if err != nil {
			return place{}, false, e.backend.errorf(x.Span, "%v", err)
		}
		id := e.fb.AddAccessChain(ptr, base.pointer, index)
		return place{pointer: id, class: base.class, typ: vt.Type}, true, nil
	}
	return place{}, false, nil
}

// accessChain indexes into a place. Struct members are selected with
// constant indices, other indices are evaluated.
func (e *ExpressionEmitter) accessChain(base place, indices []ast.Expression, span ast.Span) (place, error) {
	t := base.typ
	ids := make([]uint32, len(indices))
	for i, idx := range indices {
		if st, ok := containerOf(t); ok {
			member, err := e.memberIndex(st, idx)
			if err != nil {
				return place{}, err
			}
			if ids[i], err = e.constant(ast.Int32Value(member), idx.Pos()); err != nil {
				return place{}, err
			}
			t = st.Members[member].Type
			continue
		}
		id, err := e.emitExpression(idx)
		if err != nil {
			return place{}, err
		}
		ids[i] = id
		if t, err = e.elementType(t, span); err != nil {
			return place{}, err
		}
	}
	ptr, err := e.backend.types.pointerTo(base.class, t)
	if err != nil {
		return place{}, e.backend.errorf(span, "%v", err)
	}
	id := e.fb.AddAccessChain(ptr, base.pointer, ids...)
	return place{pointer: id, class: base.class, typ: t}, nil
}

func (e *ExpressionEmitter) memberIndex(st ast.StructType, idx ast.Expression) (int, error) {
	v, err := ast.EvaluateConstant(idx, e.backend.constantLookup)
	if err != nil {
		return 0, e.backend.errorf(idx.Pos(), "member index of %s must be constant", st.Name)
	}
	n, ok := ast.ConstantInt(v)
	if !ok || n < 0 || int(n) >= len(st.Members) {
		return 0, e.backend.errorf(idx.Pos(), "invalid member index %s for struct %s", v, st.Name)
	}
	return int(n), nil
}

func (e *ExpressionEmitter) elementType(t ast.ExpressionType, span ast.Span) (ast.ExpressionType, error) {
	switch x := t.(type) {
	case ast.ArrayType:
		return x.ContainedType, nil
	case ast.VectorType:
		return x.Type, nil
	case ast.MatrixType:
		return x.ColumnType(), nil
	}
	return nil, e.backend.errorf(span, "type %s cannot be indexed", t)
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

// emitAccessValue indexes a value that is not stored in a variable. Constant
// indices extract directly; otherwise the value is spilled to a temporary.
func (e *ExpressionEmitter) emitAccessValue(x *ast.AccessIndexExpression) (uint32, error) {
	base, err := e.emitExpression(x.Expr)
	if err != nil {
		return 0, err
	}
	resultID, err := e.typeID(x.Type, x.Span)
	if err != nil {
		return 0, err
	}

	literals := make([]uint32, 0, len(x.Indices))
	for _, idx := range x.Indices {
		v, err := ast.EvaluateConstant(idx, e.backend.constantLookup)
		if err != nil {
			break
		}
		n, ok := ast.ConstantInt(v)
		if !ok || n < 0 {
			break
		}
		literals = append(literals, uint32(n))
	}
	if len(literals) == len(x.Indices) {
		return e.fb.AddCompositeExtract(resultID, base, literals...), nil
	}

	t := x.Expr.ResolvedType()
	ptr, err := e.backend.types.pointerTo(StorageClassFunction, t)
	if err != nil {
		return 0, e.backend.errorf(x.Span, "%v", err)
	}
	tmp := e.fb.AddVariable(ptr)
	e.fb.AddStore(tmp, base)
	p, err := e.accessChain(place{pointer: tmp, class: StorageClassFunction, typ: t}, x.Indices, x.Span)
	if err != nil {
		return 0, err
	}
	return e.fb.AddLoad(resultID, p.pointer), nil
}

// emitSwizzle reads components of a vector. A scalar source is broadcast
// with one composite construct; a vector source uses a single shuffle.
func (e *ExpressionEmitter) emitSwizzle(x *ast.SwizzleExpression) (uint32, error) {
	src, err := e.emitExpression(x.Expr)
	if err != nil {
		return 0, err
	}
	resultID, err := e.typeID(x.Type, x.Span)
	if err != nil {
		return 0, err
	}
	comps := x.SwizzleComponents()
	switch x.Expr.ResolvedType().(type) {
	case ast.PrimitiveType:
		if len(comps) == 1 {
			return src, nil
		}
		constituents := make([]uint32, len(comps))
		for i := range constituents {
			constituents[i] = src
		}
		return e.fb.AddCompositeConstruct(resultID, constituents...), nil
	case ast.VectorType:
		if len(comps) == 1 {
			return e.fb.AddCompositeExtract(resultID, src, comps[0]), nil
		}
		return e.fb.AddVectorShuffle(resultID, src, src, comps), nil
	}
	return 0, e.backend.errorf(x.Span, "cannot swizzle a value of type %s", x.Expr.ResolvedType())
}

// emitAssign stores the right operand into the location named by the left
// one and returns the stored value.
func (e *ExpressionEmitter) emitAssign(x *ast.AssignExpression) (uint32, error) {
	value, err := e.emitExpression(x.Right)
	if err != nil {
		return 0, err
	}
	if op, compound := x.Op.BinaryOp(); compound {
		current, err := e.emitExpression(x.Left)
		if err != nil {
			return 0, err
		}
		lt := x.Left.ResolvedType()
		value, err = e.emitBinary(op, lt, x.Right.ResolvedType(), lt, current, value, x.Span)
		if err != nil {
			return 0, err
		}
	}
	return value, e.store(x.Left, value)
}

// store writes value to target. Writing through a multi-component swizzle
// loads the vector, shuffles the new components in and stores it back.
func (e *ExpressionEmitter) store(target ast.Expression, value uint32) error {
	if sw, ok := target.(*ast.SwizzleExpression); ok && sw.ComponentCount > 1 {
		base, ok, err := e.place(sw.Expr)
		if err != nil {
			return err
		}
		vt, isVector := base.typ.(ast.VectorType)
		if !ok || !isVector {
			return e.backend.errorf(sw.Span, "swizzle cannot be assigned to")
		}
		old, err := e.load(base, sw.Span)
		if err != nil {
			return err
		}
		shuffle := make([]uint32, vt.ComponentCount)
		for i := range shuffle {
			shuffle[i] = uint32(i)
		}
		for i, c := range sw.SwizzleComponents() {
			shuffle[c] = vt.ComponentCount + uint32(i)
		}
		vecID, err := e.typeID(vt, sw.Span)
		if err != nil {
			return err
		}
		e.fb.AddStore(base.pointer, e.fb.AddVectorShuffle(vecID, old, value, shuffle))
		return nil
	}

	p, ok, err := e.place(target)
	if err != nil {
		return err
	}
	if !ok {
		return e.backend.errorf(target.Pos(), "expression cannot be assigned to")
	}
	e.fb.AddStore(p.pointer, value)
	return nil
}

// emitTernary evaluates only the selected operand, through a temporary.
func (e *ExpressionEmitter) emitTernary(x *ast.ConditionalExpression) (uint32, error) {
	conditionID, err := e.emitExpression(x.Condition)
	if err != nil {
		return 0, err
	}
	ptr, err := e.backend.types.pointerTo(StorageClassFunction, x.Type)
	if err != nil {
		return 0, e.backend.errorf(x.Span, "%v", err)
	}
	tmp := e.fb.AddVariable(ptr)

	acceptLabel := e.backend.builder.AllocID()
	rejectLabel := e.backend.builder.AllocID()
	mergeLabel := e.backend.builder.AllocID()
	e.fb.AddSelectionMerge(mergeLabel, SelectionControlNone)
	e.fb.AddBranchConditional(conditionID, acceptLabel, rejectLabel)

	for _, path := range []struct {
		label uint32
		expr  ast.Expression
	}{{acceptLabel, x.TruePath}, {rejectLabel, x.FalsePath}} {
		e.fb.AddLabel(path.label)
		value, err := e.emitExpression(path.expr)
		if err != nil {
			return 0, err
		}
		e.fb.AddStore(tmp, value)
		e.fb.AddBranch(mergeLabel)
	}

	e.fb.AddLabel(mergeLabel)
	return e.load(place{pointer: tmp, class: StorageClassFunction, typ: x.Type}, x.Span)
}

func (e *ExpressionEmitter) emitCall(x *ast.CallFunctionExpression) (uint32, error) {
	target, ok := x.TargetFunction.(*ast.FunctionExpression)
	if !ok {
		return 0, e.backend.errorf(x.Span, "unsupported call target %T", x.TargetFunction)
	}
	fn, ok := e.backend.functions[target.FunctionID]
	if !ok {
		return 0, e.backend.errorf(x.Span, "function #%d is not available with the current options", target.FunctionID)
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
	return e.fb.AddFunctionCall(resultID, fn.id, args...), nil
}
