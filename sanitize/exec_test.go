package sanitize

import (
	"errors"
	"fmt"

	"github.com/gogpu/nzsl/ast"
)

// runValue is what a variable holds while a function runs: an
// ast.ConstantValue, or a []runValue for arrays.
type runValue any

type flow int

const (
	flowNext flow = iota
	flowBreak
	flowContinue
	flowReturn
)

// runner executes the statements of a sanitized function over constant
// values. It covers the statements the loop and branch rewrites produce.
type runner struct {
	vars   map[int]runValue
	result runValue
	steps  int
}

var errStepLimit = errors.New("step limit exceeded")

// runFunction calls fn with args and returns its result.
func runFunction(fn *ast.DeclareFunctionStatement, args ...runValue) (runValue, error) {
	if len(args) != len(fn.Parameters) {
		return nil, fmt.Errorf("%s expects %d arguments, got %d", fn.Name, len(fn.Parameters), len(args))
	}
	r := &runner{vars: make(map[int]runValue)}
	for i, p := range fn.Parameters {
		r.vars[p.VarID] = args[i]
	}
	for _, st := range fn.Statements {
		f, err := r.exec(st)
		if err != nil {
			return nil, err
		}
		if f == flowReturn {
			return r.result, nil
		}
	}
	return nil, nil
}

func (r *runner) exec(st ast.Statement) (flow, error) {
	if r.steps++; r.steps > 10000 {
		return flowNext, errStepLimit
	}
	switch x := st.(type) {
	case *ast.MultiStatement:
		for _, c := range x.Statements {
			f, err := r.exec(c)
			if err != nil || f != flowNext {
				return f, err
			}
		}
		return flowNext, nil
	case *ast.ScopedStatement:
		return r.exec(x.Statement)
	case *ast.NoOpStatement:
		return flowNext, nil
	case *ast.DeclareVariableStatement:
		if x.InitialExpression == nil {
			return flowNext, fmt.Errorf("variable %s has no initial value", x.VarName)
		}
		v, err := r.eval(x.InitialExpression)
		if err != nil {
			return flowNext, err
		}
		r.vars[x.VarID] = v
		return flowNext, nil
	case *ast.ExpressionStatement:
		_, err := r.eval(x.Expression)
		return flowNext, err
	case *ast.BranchStatement:
		for _, cond := range x.CondStatements {
			ok, err := r.condition(cond.Condition)
			if err != nil {
				return flowNext, err
			}
			if ok {
				return r.exec(cond.Statement)
			}
		}
		if x.ElseStatement != nil {
			return r.exec(x.ElseStatement)
		}
		return flowNext, nil
	case *ast.WhileStatement:
		for {
			ok, err := r.condition(x.Condition)
			if err != nil || !ok {
				return flowNext, err
			}
			f, err := r.exec(x.Body)
			if err != nil {
				return flowNext, err
			}
			switch f {
			case flowBreak:
				return flowNext, nil
			case flowReturn:
				return f, nil
			}
		}
	case *ast.BreakStatement:
		return flowBreak, nil
	case *ast.ContinueStatement:
		return flowContinue, nil
	case *ast.ReturnStatement:
		if x.ReturnExpr != nil {
			v, err := r.eval(x.ReturnExpr)
			if err != nil {
				return flowNext, err
			}
			r.result = v
		}
		return flowReturn, nil
	}
	return flowNext, fmt.Errorf("cannot run %T", st)
}

func (r *runner) condition(e ast.Expression) (bool, error) {
	v, err := r.eval(e)
	if err != nil {
		return false, err
	}
	b, ok := v.(ast.BoolValue)
	if !ok {
		return false, fmt.Errorf("condition is %T, want bool", v)
	}
	return bool(b), nil
}

func (r *runner) scalar(e ast.Expression) (ast.ConstantValue, error) {
	v, err := r.eval(e)
	if err != nil {
		return nil, err
	}
	c, ok := v.(ast.ConstantValue)
	if !ok {
		return nil, fmt.Errorf("%T is not a constant value", v)
	}
	return c, nil
}

func (r *runner) eval(e ast.Expression) (runValue, error) {
	switch x := e.(type) {
	case *ast.ConstantValueExpression:
		return x.Value, nil
	case *ast.VariableValueExpression:
		v, ok := r.vars[x.VariableID]
		if !ok {
			return nil, fmt.Errorf("variable #%d is not set", x.VariableID)
		}
		return v, nil
	case *ast.UnaryExpression:
		v, err := r.scalar(x.Expression)
		if err != nil {
			return nil, err
		}
		return ast.EvaluateUnary(x.Op, v)
	case *ast.BinaryExpression:
		l, err := r.scalar(x.Left)
		if err != nil {
			return nil, err
		}
		rv, err := r.scalar(x.Right)
		if err != nil {
			return nil, err
		}
		return ast.EvaluateBinary(x.Op, l, rv)
	case *ast.AssignExpression:
		target, ok := x.Left.(*ast.VariableValueExpression)
		if !ok {
			return nil, fmt.Errorf("cannot assign to %T", x.Left)
		}
		v, err := r.eval(x.Right)
		if err != nil {
			return nil, err
		}
		if op, ok := x.Op.BinaryOp(); ok {
			cur, err := r.scalar(target)
			if err != nil {
				return nil, err
			}
			if v, err = ast.EvaluateBinary(op, cur, v.(ast.ConstantValue)); err != nil {
				return nil, err
			}
		}
		r.vars[target.VariableID] = v
		return v, nil
	case *ast.CastExpression:
		tt, ok := x.TargetType.(*ast.TypeExpression)
		if !ok {
			return nil, fmt.Errorf("cast target is %T", x.TargetType)
		}
		args := make([]runValue, len(x.Expressions))
		for i, a := range x.Expressions {
			v, err := r.eval(a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		if _, ok := tt.Value.(ast.ArrayType); ok {
			return args, nil
		}
		consts := make([]ast.ConstantValue, len(args))
		for i, a := range args {
			consts[i] = a.(ast.ConstantValue)
		}
		return ast.EvaluateCast(tt.Value, consts)
	case *ast.SwizzleExpression:
		v, err := r.scalar(x.Expr)
		if err != nil {
			return nil, err
		}
		return ast.EvaluateSwizzle(v, x.SwizzleComponents())
	case *ast.AccessIndexExpression:
		v, err := r.eval(x.Expr)
		if err != nil {
			return nil, err
		}
		for _, idx := range x.Indices {
			iv, err := r.scalar(idx)
			if err != nil {
				return nil, err
			}
			i, ok := ast.ConstantInt(iv)
			if !ok {
				return nil, fmt.Errorf("index is %s", iv.Type())
			}
			switch c := v.(type) {
			case []runValue:
				if i < 0 || i >= int64(len(c)) {
					return nil, fmt.Errorf("index %d out of range", i)
				}
				v = c[i]
			case ast.VectorValue:
				v = c.Components[i]
			case ast.MatrixValue:
				v = c.Columns[i]
			default:
				return nil, fmt.Errorf("cannot index %T", v)
			}
		}
		return v, nil
	}
	return nil, fmt.Errorf("cannot evaluate %T", e)
}
