package sanitize

import (
	"github.com/gogpu/nzsl/ast"
)

// attributeName returns the identifier written as an attribute value, as in
// entry(frag) or layout(std140). These names are not looked up in scope.
func (s *sanitizer) attributeName(e ast.Expression) (string, error) {
	id, ok := e.(*ast.IdentifierExpression)
	if !ok {
		return "", s.errorf(e.Pos(), "expected an identifier")
	}
	return id.Identifier, nil
}

// constantValue sanitizes an attribute argument and evaluates it. Option
// defaults apply since attribute values shape the module interface.
func (s *sanitizer) constantValue(e ast.Expression, what string) (ast.ConstantValue, error) {
	sanitized, err := s.expression(e)
	if err != nil {
		return nil, err
	}
	v, err := ast.EvaluateConstant(sanitized, s.ctx.defaultLookup)
	if err != nil {
		return nil, s.errorf(e.Pos(), "%s must be a constant expression", what)
	}
	return v, nil
}

func (s *sanitizer) constantUint(e ast.Expression, what string) (uint32, error) {
	v, err := s.constantValue(e, what)
	if err != nil {
		return 0, err
	}
	i, ok := ast.ConstantInt(v)
	if !ok || i < 0 || i > 1<<32-1 {
		return 0, s.errorf(e.Pos(), "%s must be a non-negative integer, got %s", what, v)
	}
	return uint32(i), nil
}

func (s *sanitizer) resolveBool(attr *ast.AttributeValue[bool]) error {
	if attr.Expr == nil {
		return nil
	}
	v, err := s.constantValue(attr.Expr, "attribute value")
	if err != nil {
		return err
	}
	b, ok := v.(ast.BoolValue)
	if !ok {
		return s.errorf(attr.Expr.Pos(), "expected a boolean, got %s", v.Type())
	}
	attr.Resolve(bool(b))
	return nil
}

func (s *sanitizer) resolveUnroll(attr *ast.AttributeValue[ast.LoopUnroll]) error {
	if attr.Expr == nil {
		return nil
	}
	name, err := s.attributeName(attr.Expr)
	if err != nil {
		return err
	}
	u, ok := ast.ParseLoopUnroll(name)
	if !ok {
		return s.errorf(attr.Expr.Pos(), "unknown unroll mode %s", name)
	}
	attr.Resolve(u)
	return nil
}

// workgroup resolves the workgroup attribute, written as a vec3[u32]
// construction of up to three constant sizes.
func (s *sanitizer) workgroup(attr *ast.AttributeValue[[3]uint32]) error {
	if attr.Expr == nil {
		return nil
	}
	var sizes []ast.Expression
	if call, ok := attr.Expr.(*ast.CallFunctionExpression); ok {
		sizes = call.Parameters
	} else {
		sizes = []ast.Expression{attr.Expr}
	}

	var out [3]uint32
	n := 0
	for _, e := range sizes {
		v, err := s.constantValue(e, "workgroup size")
		if err != nil {
			return err
		}
		comps := []ast.ConstantValue{v}
		if vec, ok := v.(ast.VectorValue); ok {
			comps = vec.Components
		}
		for _, c := range comps {
			i, ok := ast.ConstantInt(c)
			if !ok || i <= 0 {
				return s.errorf(e.Pos(), "workgroup size must be a positive integer, got %s", c)
			}
			if n >= 3 {
				return s.errorf(e.Pos(), "workgroup takes at most 3 sizes")
			}
			out[n] = uint32(i)
			n++
		}
	}
	for ; n < 3; n++ {
		out[n] = 1
	}
	attr.Resolve(out)
	return nil
}

func (s *sanitizer) functionAttributes(fn *ast.DeclareFunctionStatement) error {
	if fn.EntryStage.Expr != nil {
		name, err := s.attributeName(fn.EntryStage.Expr)
		if err != nil {
			return err
		}
		stage, ok := ast.ParseShaderStage(name)
		if !ok {
			return s.errorf(fn.EntryStage.Expr.Pos(), "unknown shader stage %s", name)
		}
		fn.EntryStage.Resolve(stage)
	}
	if err := s.resolveBool(&fn.EarlyFragmentTests); err != nil {
		return err
	}
	if fn.DepthWrite.Expr != nil {
		name, err := s.attributeName(fn.DepthWrite.Expr)
		if err != nil {
			return err
		}
		mode, ok := ast.ParseDepthWriteMode(name)
		if !ok {
			return s.errorf(fn.DepthWrite.Expr.Pos(), "unknown depth write mode %s", name)
		}
		fn.DepthWrite.Resolve(mode)
	}
	if err := s.workgroup(&fn.Workgroup); err != nil {
		return err
	}
	if err := s.resolveBool(&fn.IsExported); err != nil {
		return err
	}

	stage, isEntry := fn.EntryStage.Value, fn.EntryStage.Resolved
	if fn.EarlyFragmentTests.Resolved && (!isEntry || stage != ast.StageFragment) {
		return s.errorf(fn.Span, "early_fragment_tests is only valid on fragment entry points")
	}
	if fn.DepthWrite.Resolved && (!isEntry || stage != ast.StageFragment) {
		return s.errorf(fn.Span, "depth_write is only valid on fragment entry points")
	}
	if fn.Workgroup.Resolved && (!isEntry || stage != ast.StageCompute) {
		return s.errorf(fn.Span, "workgroup is only valid on compute entry points")
	}
	if isEntry && stage == ast.StageCompute && !fn.Workgroup.Resolved {
		return s.errorf(fn.Span, "compute entry point %s requires a workgroup size", fn.Name)
	}
	return nil
}
