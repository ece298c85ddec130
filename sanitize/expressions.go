package sanitize

import (
	"github.com/gogpu/nzsl/ast"
)

// expression resolves and types e. The returned node replaces e in its
// parent: identifiers become references, casts and member accesses take
// their sanitized form.
func (s *sanitizer) expression(e ast.Expression) (ast.Expression, error) {
	switch x := e.(type) {
	case *ast.IdentifierExpression:
		return s.identifier(x)
	case *ast.ConstantValueExpression:
		x.Type = x.Value.Type()
		return x, nil
	case *ast.VariableValueExpression:
		info, ok := s.ctx.variables[x.VariableID]
		if !ok {
			return nil, s.errorf(x.Span, "unknown variable #%d", x.VariableID)
		}
		x.Type = info.typ
		return x, nil
	case *ast.ConstantExpression:
		info, ok := s.ctx.constants[x.ConstantID]
		if !ok {
			return nil, s.errorf(x.Span, "unknown constant #%d", x.ConstantID)
		}
		x.Type = info.typ
		return x, nil
	case *ast.FunctionExpression:
		info, ok := s.ctx.functions[x.FunctionID]
		if !ok {
			return nil, s.errorf(x.Span, "unknown function #%d", x.FunctionID)
		}
		x.Type = info.typ
		return x, nil
	case *ast.StructTypeExpression:
		info, ok := s.ctx.structs[x.StructID]
		if !ok {
			return nil, s.errorf(x.Span, "unknown struct #%d", x.StructID)
		}
		x.Type = info.typ
		return x, nil
	case *ast.TypeExpression:
		x.Type = x.Value
		return x, nil
	case *ast.IntrinsicFunctionExpression:
		x.Type = ast.IntrinsicFunctionType{Intrinsic: x.Intrinsic}
		return x, nil
	case *ast.BinaryExpression:
		return s.binary(x)
	case *ast.UnaryExpression:
		return s.unary(x)
	case *ast.AssignExpression:
		return s.assign(x)
	case *ast.CastExpression:
		return s.cast(x)
	case *ast.ConditionalExpression:
		return s.ternary(x)
	case *ast.AccessIndexExpression:
		return s.accessIndex(x)
	case *ast.AccessIdentifierExpression:
		return s.accessIdentifier(x)
	case *ast.SwizzleExpression:
		inner, err := s.expression(x.Expr)
		if err != nil {
			return nil, err
		}
		if inner.ResolvedType() == nil {
			x.Expr = inner
			return x, nil
		}
		return s.swizzle(inner, x.SwizzleComponents(), x.Span)
	case *ast.CallFunctionExpression:
		return s.callFunction(x)
	case *ast.CallMethodExpression:
		return s.callMethod(x)
	case *ast.IntrinsicExpression:
		params, err := s.expressions(x.Parameters)
		if err != nil {
			return nil, err
		}
		x.Parameters = params
		return s.intrinsic(x)
	default:
		return nil, s.errorf(e.Pos(), "unexpected expression %T", e)
	}
}

func (s *sanitizer) expressions(list []ast.Expression) ([]ast.Expression, error) {
	for i, e := range list {
		out, err := s.expression(e)
		if err != nil {
			return nil, err
		}
		list[i] = out
	}
	return list, nil
}

func resolvedTypes(list []ast.Expression) ([]ast.ExpressionType, bool) {
	types := make([]ast.ExpressionType, len(list))
	for i, e := range list {
		if types[i] = e.ResolvedType(); types[i] == nil {
			return nil, false
		}
	}
	return types, true
}

func (s *sanitizer) identifier(x *ast.IdentifierExpression) (ast.Expression, error) {
	ident, ok := s.scopes.lookup(x.Identifier)
	if !ok {
		if p, found := ast.LookupPrimitive(x.Identifier); found {
			return ast.NewTypeExpression(x.Span, p), nil
		}
		if intr, found := ast.LookupIntrinsic(x.Identifier); found {
			return &ast.IntrinsicFunctionExpression{
				ExpressionBase: ast.ExpressionBase{Span: x.Span, Type: ast.IntrinsicFunctionType{Intrinsic: intr}},
				Intrinsic:      intr,
			}, nil
		}
		if s.wildcard {
			return x, nil
		}
		return nil, s.errorf(x.Span, "unknown identifier %s", x.Identifier)
	}

	base := ast.ExpressionBase{Span: x.Span}
	switch ident.category {
	case categoryFunction:
		base.Type = s.ctx.functions[ident.id].typ
		return &ast.FunctionExpression{ExpressionBase: base, FunctionID: ident.id}, nil
	case categoryVariable, categoryExternal:
		return ast.NewVariableValue(x.Span, ident.id, s.ctx.variables[ident.id].typ), nil
	case categoryStruct:
		base.Type = s.ctx.structs[ident.id].typ
		return &ast.StructTypeExpression{ExpressionBase: base, StructID: ident.id}, nil
	case categoryConstant:
		base.Type = s.ctx.constants[ident.id].typ
		return &ast.ConstantExpression{ExpressionBase: base, ConstantID: ident.id}, nil
	case categoryAlias:
		out := ast.CloneExpression(ident.alias)
		if _, unresolved := out.(*ast.IdentifierExpression); unresolved {
			return out, nil
		}
		return s.expression(out)
	default:
		return x, nil
	}
}

func (s *sanitizer) binary(x *ast.BinaryExpression) (ast.Expression, error) {
	l, err := s.expression(x.Left)
	if err != nil {
		return nil, err
	}
	r, err := s.expression(x.Right)
	if err != nil {
		return nil, err
	}
	x.Left, x.Right = l, r
	lt, rt := l.ResolvedType(), r.ResolvedType()
	if lt == nil || rt == nil {
		return x, nil
	}
	t, err := binaryType(x.Op, lt, rt)
	if err != nil {
		return nil, s.errorf(x.Span, "%v", err)
	}
	x.Type = t
	return x, nil
}

func (s *sanitizer) unary(x *ast.UnaryExpression) (ast.Expression, error) {
	operand, err := s.expression(x.Expression)
	if err != nil {
		return nil, err
	}
	x.Expression = operand
	ot := operand.ResolvedType()
	if ot == nil {
		return x, nil
	}
	t, err := unaryType(x.Op, ot)
	if err != nil {
		return nil, s.errorf(x.Span, "%v", err)
	}
	x.Type = t

	if lit, ok := operand.(*ast.ConstantValueExpression); ok && (x.Op == ast.UnaryMinus || x.Op == ast.UnaryPlus) {
		v, err := ast.EvaluateUnary(x.Op, lit.Value)
		if err != nil {
			return nil, s.errorf(x.Span, "%v", err)
		}
		return ast.NewConstantValue(x.Span, v), nil
	}
	return x, nil
}

func (s *sanitizer) assign(x *ast.AssignExpression) (ast.Expression, error) {
	l, err := s.expression(x.Left)
	if err != nil {
		return nil, err
	}
	r, err := s.expression(x.Right)
	if err != nil {
		return nil, err
	}
	x.Left, x.Right = l, r
	if err := s.checkAssignable(l); err != nil {
		return nil, err
	}

	lt, rt := l.ResolvedType(), r.ResolvedType()
	if lt == nil || rt == nil {
		return x, nil
	}
	if op, compound := x.Op.BinaryOp(); compound {
		t, err := binaryType(op, lt, rt)
		if err != nil {
			return nil, s.errorf(x.Span, "%v", err)
		}
		if !ast.TypesEqual(t, lt) {
			return nil, s.errorf(x.Span, "operator %s produces %s, which cannot be stored in %s", x.Op, t, lt)
		}
	} else if !ast.TypesEqual(lt, rt) {
		return nil, s.errorf(x.Span, "cannot assign a value of type %s to %s", rt, lt)
	}
	x.Type = lt
	return x, nil
}

// checkAssignable verifies that e names a writable location.
func (s *sanitizer) checkAssignable(e ast.Expression) error {
	switch x := e.(type) {
	case *ast.VariableValueExpression:
		info := s.ctx.variables[x.VariableID]
		if info.external {
			if _, storage := info.typ.(ast.StorageType); !storage {
				return s.errorf(x.Span, "cannot assign to external %s of type %s", info.name, info.typ)
			}
		}
		return nil
	case *ast.AccessIndexExpression:
		return s.checkAssignable(x.Expr)
	case *ast.SwizzleExpression:
		seen := [4]bool{}
		for _, c := range x.SwizzleComponents() {
			if seen[c] {
				return s.errorf(x.Span, "swizzle %s cannot be assigned: it repeats a component", ast.SwizzleString(x.SwizzleComponents()))
			}
			seen[c] = true
		}
		return s.checkAssignable(x.Expr)
	case *ast.AccessIdentifierExpression:
		if x.Type == nil {
			return nil
		}
	case *ast.IdentifierExpression:
		if x.Type == nil {
			return nil
		}
	case *ast.ConstantExpression:
		return s.errorf(x.Span, "cannot assign to constant %s", s.ctx.constants[x.ConstantID].name)
	}
	return s.errorf(e.Pos(), "expression cannot be assigned to")
}

func (s *sanitizer) cast(x *ast.CastExpression) (ast.Expression, error) {
	target, err := s.resolveType(x.TargetType)
	if err != nil {
		return nil, err
	}
	args, err := s.expressions(x.Expressions)
	if err != nil {
		return nil, err
	}
	x.Expressions = args
	if target == nil {
		return x, nil
	}
	x.TargetType = ast.NewTypeExpression(x.TargetType.Pos(), target)
	x.Type = target

	argTypes, ok := resolvedTypes(args)
	if !ok {
		return x, nil
	}
	if v, folded, err := s.foldCast(target, args); err != nil {
		return nil, s.errorf(x.Span, "%v", err)
	} else if folded {
		return ast.NewConstantValue(x.Span, v), nil
	}
	if err := castError(target, argTypes); err != nil {
		return nil, s.errorf(x.Span, "%v", err)
	}

	if m, isMatrix := target.(ast.MatrixType); isMatrix && s.ctx.opts.RemoveMatrixCast && len(args) == 1 {
		if src, ok := argTypes[0].(ast.MatrixType); ok {
			return s.expandMatrixCast(x, m, src), nil
		}
	}
	return x, nil
}

// foldCast evaluates a cast whose arguments are all known constants.
func (s *sanitizer) foldCast(target ast.ExpressionType, args []ast.Expression) (ast.ConstantValue, bool, error) {
	switch target.(type) {
	case ast.PrimitiveType, ast.VectorType, ast.MatrixType:
	default:
		return nil, false, nil
	}
	values := make([]ast.ConstantValue, len(args))
	for i, a := range args {
		v, err := ast.EvaluateConstant(a, s.ctx.constantLookup)
		if err != nil {
			return nil, false, nil
		}
		values[i] = v
	}
	v, err := ast.EvaluateCast(target, values)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *sanitizer) ternary(x *ast.ConditionalExpression) (ast.Expression, error) {
	cond, err := s.condition(x.Condition, "ternary")
	if err != nil {
		return nil, err
	}
	t, err := s.expression(x.TruePath)
	if err != nil {
		return nil, err
	}
	f, err := s.expression(x.FalsePath)
	if err != nil {
		return nil, err
	}
	x.Condition, x.TruePath, x.FalsePath = cond, t, f
	tt, ft := t.ResolvedType(), f.ResolvedType()
	if tt == nil || ft == nil {
		return x, nil
	}
	if !ast.TypesEqual(tt, ft) {
		return nil, s.errorf(x.Span, "ternary branches have different types %s and %s", tt, ft)
	}
	x.Type = tt
	return x, nil
}

func (s *sanitizer) accessIndex(x *ast.AccessIndexExpression) (ast.Expression, error) {
	if t, ok, err := s.tryType(x); err != nil {
		return nil, err
	} else if ok {
		return ast.NewTypeExpression(x.Span, t), nil
	}

	base, err := s.expression(x.Expr)
	if err != nil {
		return nil, err
	}
	indices, err := s.expressions(x.Indices)
	if err != nil {
		return nil, err
	}
	x.Expr, x.Indices = base, indices

	t := base.ResolvedType()
	for _, idx := range indices {
		it := idx.ResolvedType()
		if t == nil || it == nil {
			return x, nil
		}
		if p, ok := it.(ast.PrimitiveType); !ok || !p.IsInteger() {
			return nil, s.errorf(idx.Pos(), "index must be an integer, got %s", it)
		}
		switch tt := t.(type) {
		case ast.ArrayType:
			if tt.Length > 0 {
				if err := s.checkIndexRange(idx, tt.Length, t); err != nil {
					return nil, err
				}
			}
			t = tt.ContainedType
		case ast.VectorType:
			if err := s.checkIndexRange(idx, tt.ComponentCount, t); err != nil {
				return nil, err
			}
			t = tt.Type
		case ast.MatrixType:
			if err := s.checkIndexRange(idx, tt.ColumnCount, t); err != nil {
				return nil, err
			}
			t = tt.ColumnType()
		default:
			st, ok := containerOf(t)
			if !ok {
				return nil, s.errorf(x.Span, "type %s cannot be indexed", t)
			}
			v, err := ast.EvaluateConstant(idx, s.ctx.constantLookup)
			i, isInt := ast.ConstantInt(v)
			if err != nil || !isInt {
				return nil, s.errorf(idx.Pos(), "struct %s can only be indexed by a constant", st.Name)
			}
			if i < 0 || int(i) >= len(st.Members) {
				return nil, s.errorf(idx.Pos(), "member index %d out of range for struct %s", i, st.Name)
			}
			t = st.Members[i].Type
		}
	}
	x.Type = t
	return x, nil
}

// checkIndexRange rejects a constant index outside [0, length) of a value of
// type t. Indices only known at run time are not checked.
func (s *sanitizer) checkIndexRange(idx ast.Expression, length uint32, t ast.ExpressionType) error {
	v, err := ast.EvaluateConstant(idx, s.ctx.constantLookup)
	if err != nil {
		return nil
	}
	if i, ok := ast.ConstantInt(v); ok && (i < 0 || i >= int64(length)) {
		return s.errorf(idx.Pos(), "index %d is out of range for %s", i, t)
	}
	return nil
}

// accessIdentifier turns member accesses into constant-index accesses and
// swizzles.
func (s *sanitizer) accessIdentifier(x *ast.AccessIdentifierExpression) (ast.Expression, error) {
	cur, err := s.expression(x.Expr)
	if err != nil {
		return nil, err
	}

	for i, id := range x.Identifiers {
		t := cur.ResolvedType()
		if t == nil {
			x.Expr = cur
			x.Identifiers = x.Identifiers[i:]
			return x, nil
		}

		if st, ok := containerOf(t); ok {
			idx, found := st.MemberIndex(id.Name)
			if !found {
				return nil, s.errorf(id.Span, "struct %s has no member %s", st.Name, id.Name)
			}
			mt := st.Members[idx].Type
			idxExpr := ast.NewConstantValue(id.Span, ast.Int32Value(idx))
			if ai, merge := cur.(*ast.AccessIndexExpression); merge {
				ai.Indices = append(ai.Indices, idxExpr)
				ai.Type = mt
			} else {
				cur = &ast.AccessIndexExpression{
					ExpressionBase: ast.ExpressionBase{Span: x.Span, Type: mt},
					Expr:           cur,
					Indices:        []ast.Expression{idxExpr},
				}
			}
			continue
		}

		if _, ok := isScalarOrVector(t); ok {
			comps, valid := ast.ParseSwizzle(id.Name)
			if !valid {
				return nil, s.errorf(id.Span, "invalid swizzle %s", id.Name)
			}
			if cur, err = s.swizzle(cur, comps, x.Span); err != nil {
				return nil, err
			}
			continue
		}
		return nil, s.errorf(id.Span, "type %s has no member %s", t, id.Name)
	}
	return cur, nil
}

// swizzle selects components of a vector or broadcasts a scalar. A swizzle
// of a swizzle is collapsed into one node.
func (s *sanitizer) swizzle(src ast.Expression, comps []uint32, span ast.Span) (ast.Expression, error) {
	t := src.ResolvedType()
	p, _ := isScalarOrVector(t)
	n := ast.ComponentCount(t)
	for _, c := range comps {
		if c >= n {
			if n == 1 {
				return nil, s.errorf(span, "scalar swizzle can only use the first component, got %s", ast.SwizzleString(comps))
			}
			return nil, s.errorf(span, "swizzle %s out of range for %s", ast.SwizzleString(comps), t)
		}
	}
	if len(comps) == 0 || len(comps) > 4 {
		return nil, s.errorf(span, "swizzle must select 1 to 4 components")
	}

	if inner, ok := src.(*ast.SwizzleExpression); ok {
		comps = ast.ComposeSwizzle(inner.SwizzleComponents(), comps)
		src = inner.Expr
		n = ast.ComponentCount(src.ResolvedType())
	}
	if n == 1 && len(comps) == 1 {
		return src, nil
	}
	if vt, ok := src.ResolvedType().(ast.VectorType); ok && int(vt.ComponentCount) == len(comps) && isIdentity(comps) {
		return src, nil
	}

	out := &ast.SwizzleExpression{
		ExpressionBase: ast.ExpressionBase{Span: span, Type: ast.VectorOf(p, uint32(len(comps)))},
		Expr:           src,
		ComponentCount: uint32(len(comps)),
	}
	copy(out.Components[:], comps)
	return out, nil
}

func isIdentity(comps []uint32) bool {
	for i, c := range comps {
		if c != uint32(i) {
			return false
		}
	}
	return true
}

func (s *sanitizer) callFunction(x *ast.CallFunctionExpression) (ast.Expression, error) {
	if t, ok, err := s.tryType(x.TargetFunction); err != nil {
		return nil, err
	} else if ok {
		return s.cast(&ast.CastExpression{
			ExpressionBase: ast.ExpressionBase{Span: x.Span},
			TargetType:     ast.NewTypeExpression(x.TargetFunction.Pos(), t),
			Expressions:    x.Parameters,
		})
	}

	target, err := s.expression(x.TargetFunction)
	if err != nil {
		return nil, err
	}
	params, err := s.expressions(x.Parameters)
	if err != nil {
		return nil, err
	}
	x.TargetFunction, x.Parameters = target, params

	switch f := target.(type) {
	case *ast.FunctionExpression:
		info := s.ctx.functions[f.FunctionID]
		if info == s.fn {
			return nil, s.errorf(x.Span, "function %s cannot call itself: recursion is not supported", info.decl.Name)
		}
		if info.decl.IsEntryPoint() {
			return nil, s.errorf(x.Span, "entry point %s cannot be called", info.decl.Name)
		}
		if len(params) != len(info.typ.Parameters) {
			return nil, s.errorf(x.Span, "function %s expects %d argument(s), got %d", info.decl.Name, len(info.typ.Parameters), len(params))
		}
		for i, p := range params {
			pt, want := p.ResolvedType(), info.typ.Parameters[i]
			if pt != nil && want != nil && !ast.TypesEqual(pt, want) {
				return nil, s.errorf(p.Pos(), "argument %d of %s has type %s, expected %s", i+1, info.decl.Name, pt, want)
			}
		}
		x.Type = info.typ.Return
		return x, nil
	case *ast.IntrinsicFunctionExpression:
		return s.intrinsic(&ast.IntrinsicExpression{
			ExpressionBase: ast.ExpressionBase{Span: x.Span},
			Intrinsic:      f.Intrinsic,
			Parameters:     params,
		})
	case *ast.IdentifierExpression:
		return x, nil
	}
	return nil, s.errorf(x.Span, "expression of type %s cannot be called", target.ResolvedType())
}

func (s *sanitizer) intrinsic(x *ast.IntrinsicExpression) (ast.Expression, error) {
	types, ok := resolvedTypes(x.Parameters)
	if !ok {
		return x, nil
	}
	t, err := intrinsicType(x.Intrinsic, types)
	if err != nil {
		return nil, s.errorf(x.Span, "%v", err)
	}
	x.Type = t
	return x, nil
}

func (s *sanitizer) callMethod(x *ast.CallMethodExpression) (ast.Expression, error) {
	obj, err := s.expression(x.Object)
	if err != nil {
		return nil, err
	}
	params, err := s.expressions(x.Parameters)
	if err != nil {
		return nil, err
	}
	x.Object, x.Parameters = obj, params

	switch t := obj.ResolvedType().(type) {
	case nil:
		return x, nil
	case ast.SamplerType:
		if x.MethodName == "Sample" {
			return s.intrinsic(&ast.IntrinsicExpression{
				ExpressionBase: ast.ExpressionBase{Span: x.Span},
				Intrinsic:      ast.IntrinsicSampleTexture,
				Parameters:     append([]ast.Expression{obj}, params...),
			})
		}
	case ast.ArrayType:
		if x.MethodName == "Size" {
			if len(params) != 0 {
				return nil, s.errorf(x.Span, "Size takes no arguments")
			}
			if t.Length > 0 {
				return ast.NewConstantValue(x.Span, ast.UInt32Value(t.Length)), nil
			}
			return s.intrinsic(&ast.IntrinsicExpression{
				ExpressionBase: ast.ExpressionBase{Span: x.Span},
				Intrinsic:      ast.IntrinsicArraySize,
				Parameters:     []ast.Expression{obj},
			})
		}
	}
	return nil, s.errorf(x.Span, "type %s has no method %s", obj.ResolvedType(), x.MethodName)
}
