package sanitize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/nzsl/ast"
)

var samplerDims = map[string]struct {
	dim   ast.ImageDimension
	depth bool
}{
	"sampler1D":         {ast.Image1D, false},
	"sampler2D":         {ast.Image2D, false},
	"sampler3D":         {ast.Image3D, false},
	"samplerCube":       {ast.ImageCube, false},
	"depth_sampler2D":   {ast.Image2D, true},
	"depth_samplerCube": {ast.ImageCube, true},
}

// isTypeConstructor reports whether name takes type arguments, as in
// vec3[f32] or array[i32, 4].
func isTypeConstructor(name string) bool {
	if _, _, ok := vectorOrMatrixShape(name); ok {
		return true
	}
	if _, ok := samplerDims[name]; ok {
		return true
	}
	switch name {
	case "array", "dyn_array", "uniform", "storage":
		return true
	}
	return false
}

// vectorOrMatrixShape decodes vecN, matN and matCxR. Vectors report zero
// rows.
func vectorOrMatrixShape(name string) (cols, rows uint32, ok bool) {
	digit := func(s string) (uint32, bool) {
		if len(s) != 1 || s[0] < '2' || s[0] > '4' {
			return 0, false
		}
		return uint32(s[0] - '0'), true
	}
	switch {
	case strings.HasPrefix(name, "vec"):
		n, ok := digit(name[3:])
		return n, 0, ok
	case strings.HasPrefix(name, "mat"):
		rest := name[3:]
		if c, r, found := strings.Cut(rest, "x"); found {
			cn, ok1 := digit(c)
			rn, ok2 := digit(r)
			return cn, rn, ok1 && ok2
		}
		n, ok := digit(rest)
		return n, n, ok
	}
	return 0, 0, false
}

// tryType resolves e when it denotes a type. ok is false for expressions
// that are values.
func (s *sanitizer) tryType(e ast.Expression) (t ast.ExpressionType, ok bool, err error) {
	switch x := e.(type) {
	case *ast.TypeExpression:
		return x.Value, true, nil
	case *ast.StructTypeExpression:
		info, found := s.ctx.structs[x.StructID]
		if !found {
			return nil, false, s.errorf(x.Span, "unknown struct #%d", x.StructID)
		}
		return info.typ, true, nil
	case *ast.IdentifierExpression:
		if ident, found := s.scopes.lookup(x.Identifier); found {
			switch ident.category {
			case categoryStruct:
				return s.ctx.structs[ident.id].typ, true, nil
			case categoryAlias:
				return s.tryType(ident.alias)
			}
			return nil, false, nil
		}
		if p, found := ast.LookupPrimitive(x.Identifier); found {
			return p, true, nil
		}
		if isTypeConstructor(x.Identifier) {
			return nil, true, s.errorf(x.Span, "type %s requires type arguments", x.Identifier)
		}
	case *ast.AccessIndexExpression:
		id, isIdent := x.Expr.(*ast.IdentifierExpression)
		if !isIdent || !isTypeConstructor(id.Identifier) {
			return nil, false, nil
		}
		if _, shadowed := s.scopes.lookup(id.Identifier); shadowed {
			return nil, false, nil
		}
		t, err := s.typeConstructor(id.Identifier, x.Indices, x.Span)
		return t, true, err
	}
	return nil, false, nil
}

// resolveType resolves a type annotation. A nil type without error means the
// annotation names a symbol of an unresolved import.
func (s *sanitizer) resolveType(e ast.Expression) (ast.ExpressionType, error) {
	t, ok, err := s.tryType(e)
	if err != nil {
		return nil, err
	}
	if ok {
		return t, nil
	}
	if s.isUnresolved(e) {
		return nil, nil
	}
	return nil, s.errorf(e.Pos(), "expected a type")
}

// resolveTypeField resolves the annotation in *field and replaces it with a
// TypeExpression.
func (s *sanitizer) resolveTypeField(field *ast.Expression) (ast.ExpressionType, error) {
	t, err := s.resolveType(*field)
	if err != nil || t == nil {
		return nil, err
	}
	*field = ast.NewTypeExpression((*field).Pos(), t)
	return t, nil
}

// isUnresolved reports whether e names a symbol of an import that could not
// be resolved in partial mode.
func (s *sanitizer) isUnresolved(e ast.Expression) bool {
	id, ok := e.(*ast.IdentifierExpression)
	if !ok {
		return false
	}
	ident, found := s.scopes.lookup(id.Identifier)
	if found {
		return ident.category == categoryUnresolved
	}
	return s.wildcard
}

func (s *sanitizer) typeConstructor(name string, args []ast.Expression, span ast.Span) (ast.ExpressionType, error) {
	want := func(n int) error {
		if len(args) != n {
			return s.errorf(span, "%s expects %d type argument(s), got %d", name, n, len(args))
		}
		return nil
	}
	primitiveArg := func() (ast.PrimitiveType, error) {
		if err := want(1); err != nil {
			return 0, err
		}
		t, err := s.resolveType(args[0])
		if err != nil {
			return 0, err
		}
		p, ok := t.(ast.PrimitiveType)
		if !ok {
			return 0, s.errorf(args[0].Pos(), "%s expects a primitive type, got %s", name, t)
		}
		return p, nil
	}

	if cols, rows, ok := vectorOrMatrixShape(name); ok {
		p, err := primitiveArg()
		if err != nil {
			return nil, err
		}
		if rows == 0 {
			return ast.VectorType{ComponentCount: cols, Type: p}, nil
		}
		if !p.IsFloat() {
			return nil, s.errorf(span, "matrices must have a floating-point component type, got %s", p)
		}
		return ast.MatrixType{ColumnCount: cols, RowCount: rows, Type: p}, nil
	}

	if dims, ok := samplerDims[name]; ok {
		p, err := primitiveArg()
		if err != nil {
			return nil, err
		}
		if p != ast.PrimitiveFloat32 {
			return nil, s.errorf(span, "samplers only support f32, got %s", p)
		}
		return ast.SamplerType{Dim: dims.dim, SampledType: p, Depth: dims.depth}, nil
	}

	switch name {
	case "array", "dyn_array":
		if len(args) == 0 || len(args) > 2 || (name == "dyn_array" && len(args) != 1) {
			return nil, s.errorf(span, "%s expects an element type and an optional size", name)
		}
		elem, err := s.resolveType(args[0])
		if err != nil || elem == nil {
			return nil, err
		}
		var length uint32
		if len(args) == 2 {
			if length, err = s.constantUint(args[1], "array size"); err != nil {
				return nil, err
			}
			if length == 0 {
				return nil, s.errorf(args[1].Pos(), "array size must be positive")
			}
		}
		return ast.ArrayType{ContainedType: elem, Length: length}, nil
	case "uniform", "storage":
		if err := want(1); err != nil {
			return nil, err
		}
		t, err := s.resolveType(args[0])
		if err != nil || t == nil {
			return nil, err
		}
		st, ok := t.(ast.StructType)
		if !ok {
			return nil, s.errorf(args[0].Pos(), "%s expects a struct, got %s", name, t)
		}
		if name == "uniform" {
			return ast.UniformType{Container: st}, nil
		}
		return ast.StorageType{Container: st}, nil
	}
	return nil, s.errorf(span, "unknown type %s", name)
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

func isScalarOrVector(t ast.ExpressionType) (ast.PrimitiveType, bool) {
	switch x := t.(type) {
	case ast.PrimitiveType:
		return x, true
	case ast.VectorType:
		return x.Type, true
	}
	return 0, false
}

// binaryType returns the result type of l op r.
func binaryType(op ast.BinaryType, l, r ast.ExpressionType) (ast.ExpressionType, error) {
	mismatch := fmt.Errorf("operator %s cannot be applied to %s and %s", op, l, r)

	switch {
	case op.IsLogical():
		if l == ast.PrimitiveBool && r == ast.PrimitiveBool {
			return ast.PrimitiveBool, nil
		}
		return nil, mismatch

	case op.IsComparison():
		lp, ok := l.(ast.PrimitiveType)
		if !ok || !ast.TypesEqual(l, r) {
			return nil, mismatch
		}
		if lp == ast.PrimitiveBool && op != ast.BinaryCompEq && op != ast.BinaryCompNe {
			return nil, mismatch
		}
		return ast.PrimitiveBool, nil

	case op.IsBitwise():
		p, ok := isScalarOrVector(l)
		if !ok || !p.IsInteger() || !ast.TypesEqual(l, r) {
			return nil, mismatch
		}
		return l, nil
	}

	lp, lok := ast.ScalarOf(l)
	rp, rok := ast.ScalarOf(r)
	if !lok || !rok || lp != rp || !lp.IsNumeric() {
		return nil, mismatch
	}

	switch op {
	case ast.BinaryAdd, ast.BinarySubtract:
		if ast.TypesEqual(l, r) {
			return l, nil
		}
	case ast.BinaryModulo:
		if _, isMat := l.(ast.MatrixType); !isMat && ast.TypesEqual(l, r) {
			return l, nil
		}
	case ast.BinaryMultiply:
		return multiplyType(l, r, mismatch)
	case ast.BinaryDivide:
		_, lmat := l.(ast.MatrixType)
		_, rmat := r.(ast.MatrixType)
		if lmat || rmat {
			return nil, mismatch
		}
		if ast.TypesEqual(l, r) {
			return l, nil
		}
		if _, ok := l.(ast.VectorType); ok && r == ast.PrimitiveType(rp) {
			return l, nil
		}
		if _, ok := r.(ast.VectorType); ok && l == ast.PrimitiveType(lp) {
			return r, nil
		}
	}
	return nil, mismatch
}

func multiplyType(l, r ast.ExpressionType, mismatch error) (ast.ExpressionType, error) {
	switch lt := l.(type) {
	case ast.PrimitiveType:
		return r, nil
	case ast.VectorType:
		switch rt := r.(type) {
		case ast.PrimitiveType:
			return l, nil
		case ast.VectorType:
			if lt == rt {
				return l, nil
			}
		case ast.MatrixType:
			if lt.ComponentCount == rt.RowCount {
				return ast.VectorType{ComponentCount: rt.ColumnCount, Type: lt.Type}, nil
			}
		}
	case ast.MatrixType:
		switch rt := r.(type) {
		case ast.PrimitiveType:
			return l, nil
		case ast.VectorType:
			if rt.ComponentCount == lt.ColumnCount {
				return ast.VectorType{ComponentCount: lt.RowCount, Type: lt.Type}, nil
			}
		case ast.MatrixType:
			if lt.ColumnCount == rt.RowCount {
				return ast.MatrixType{ColumnCount: rt.ColumnCount, RowCount: lt.RowCount, Type: lt.Type}, nil
			}
		}
	}
	return nil, mismatch
}

// unaryType returns the result type of op applied to t.
func unaryType(op ast.UnaryType, t ast.ExpressionType) (ast.ExpressionType, error) {
	p, ok := ast.ScalarOf(t)
	valid := false
	switch op {
	case ast.UnaryMinus:
		valid = ok && p != ast.PrimitiveBool && p != ast.PrimitiveUInt32
	case ast.UnaryPlus:
		valid = ok && p.IsNumeric()
	case ast.UnaryLogicalNot:
		valid = t == ast.PrimitiveBool
	case ast.UnaryBitwiseNot:
		_, scalarOrVector := isScalarOrVector(t)
		valid = scalarOrVector && p.IsInteger()
	}
	if !valid {
		return nil, fmt.Errorf("operator %s cannot be applied to %s", op, t)
	}
	return t, nil
}

// castError validates the arguments of a construction of target.
func castError(target ast.ExpressionType, args []ast.ExpressionType) error {
	switch t := target.(type) {
	case ast.PrimitiveType:
		if len(args) != 1 {
			return fmt.Errorf("%s expects 1 argument, got %d", t, len(args))
		}
		p, ok := args[0].(ast.PrimitiveType)
		if !ok || (p == ast.PrimitiveBool) != (t == ast.PrimitiveBool) {
			return fmt.Errorf("cannot convert %s to %s", args[0], t)
		}
		return nil

	case ast.VectorType:
		if len(args) == 1 {
			switch a := args[0].(type) {
			case ast.PrimitiveType:
				if a == t.Type {
					return nil
				}
			case ast.VectorType:
				if a.ComponentCount == t.ComponentCount && (a.Type == ast.PrimitiveBool) == (t.Type == ast.PrimitiveBool) {
					return nil
				}
			}
			return fmt.Errorf("cannot convert %s to %s", args[0], t)
		}
		total := uint32(0)
		for _, a := range args {
			p, ok := isScalarOrVector(a)
			if !ok || p != t.Type {
				return fmt.Errorf("%s cannot be built from %s", t, a)
			}
			total += ast.ComponentCount(a)
		}
		if total != t.ComponentCount {
			return fmt.Errorf("%s expects %d components, got %d", t, t.ComponentCount, total)
		}
		return nil

	case ast.MatrixType:
		if len(args) == 1 {
			if m, ok := args[0].(ast.MatrixType); ok && m.Type == t.Type {
				return nil
			}
		}
		if len(args) == int(t.ColumnCount) {
			ok := true
			for _, a := range args {
				ok = ok && ast.TypesEqual(a, t.ColumnType())
			}
			if ok {
				return nil
			}
		}
		if len(args) == int(t.ColumnCount*t.RowCount) {
			ok := true
			for _, a := range args {
				ok = ok && a == ast.ExpressionType(t.Type)
			}
			if ok {
				return nil
			}
		}
		return fmt.Errorf("%s cannot be built from %s", t, typeList(args))

	case ast.ArrayType:
		if t.Length == 0 || len(args) != int(t.Length) {
			return fmt.Errorf("%s expects %d elements, got %d", t, t.Length, len(args))
		}
		for i, a := range args {
			if !ast.TypesEqual(a, t.ContainedType) {
				return fmt.Errorf("element %d of %s has type %s", i, t, a)
			}
		}
		return nil
	}
	return fmt.Errorf("cannot construct a value of type %s", target)
}

func typeList(types []ast.ExpressionType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// tempName returns the name of a generated variable.
func tempName(what string, n int) string {
	return "nzsl_" + what + strconv.Itoa(n)
}
