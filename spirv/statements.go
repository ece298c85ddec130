package spirv

import (
	"github.com/gogpu/nzsl/ast"
)

// ExpressionEmitter handles expression and statement emission within a
// function context.
type ExpressionEmitter struct {
	backend    *Backend
	fb         *FunctionBuilder
	function   *functionInfo
	returnType ast.ExpressionType

	// Local variables and parameters (VarID → variable)
	locals map[int]variable

	// Loop context stack for break/continue
	loopStack []loopContext
}

// loopContext tracks merge and continue labels for loop statements.
type loopContext struct {
	mergeLabel    uint32 // Label to branch to on break
	continueLabel uint32 // Label to branch to on continue
}

func (e *ExpressionEmitter) variable(id int) (variable, bool) {
	if v, ok := e.locals[id]; ok {
		return v, true
	}
	v, ok := e.backend.globals[id]
	return v, ok
}

// emitStatement emits a statement.
//
//nolint:gocyclo,cyclop // Statement dispatch covers every statement variant
func (e *ExpressionEmitter) emitStatement(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		_, err := e.emitExpression(s.Expression)
		return err

	case *ast.DeclareVariableStatement:
		return e.emitDeclareVariable(s)

	case *ast.DeclareConstStatement, *ast.DeclareAliasStatement, *ast.DeclareOptionStatement,
		*ast.ImportStatement, *ast.NoOpStatement:
		return nil

	case *ast.BranchStatement:
		if s.IsConst {
			selected, err := e.backend.selectConstBranch(s)
			if err != nil || selected == nil {
				return err
			}
			return e.emitStatement(selected)
		}
		return e.emitIf(s.CondStatements, s.ElseStatement)

	case *ast.ConditionalStatement:
		enabled, err := e.backend.evaluateCondition(s.Condition)
		if err != nil || !enabled {
			return err
		}
		return e.emitStatement(s.Statement)

	case *ast.WhileStatement:
		return e.emitWhile(s)

	case *ast.ReturnStatement:
		if s.ReturnExpr == nil {
			e.fb.AddReturn()
			return nil
		}
		value, err := e.emitExpression(s.ReturnExpr)
		if err != nil {
			return err
		}
		e.fb.AddReturnValue(value)
		return nil

	case *ast.DiscardStatement:
		if e.function.stages != ast.StageFlag(ast.StageFragment) {
			return e.backend.errorf(s.Span, "discard can only be used in fragment shaders, %s is called from another stage", e.function.decl.Name)
		}
		e.fb.AddKill()
		return nil

	case *ast.BreakStatement:
		if len(e.loopStack) == 0 {
			return e.backend.errorf(s.Span, "break outside of a loop")
		}
		e.fb.AddBranch(e.loopStack[len(e.loopStack)-1].mergeLabel)
		return nil

	case *ast.ContinueStatement:
		if len(e.loopStack) == 0 {
			return e.backend.errorf(s.Span, "continue outside of a loop")
		}
		e.fb.AddBranch(e.loopStack[len(e.loopStack)-1].continueLabel)
		return nil

	case *ast.MultiStatement:
		for _, inner := range s.Statements {
			if err := e.emitStatement(inner); err != nil {
				return err
			}
		}
		return nil

	case *ast.ScopedStatement:
		return e.emitStatement(s.Statement)

	default:
		return e.backend.errorf(stmt.Pos(), "unsupported statement %T", stmt)
	}
}

// emitDeclareVariable allocates a function variable and stores its initial
// value.
func (e *ExpressionEmitter) emitDeclareVariable(s *ast.DeclareVariableStatement) error {
	var t ast.ExpressionType
	if s.VarType != nil {
		t = resolvedType(s.VarType)
	} else {
		t = s.InitialExpression.ResolvedType()
	}
	ptr, err := e.backend.types.pointerTo(StorageClassFunction, t)
	if err != nil {
		return e.backend.errorf(s.Span, "variable %s: %v", s.VarName, err)
	}
	id := e.fb.AddVariable(ptr)
	if e.backend.env.Debug {
		e.backend.builder.AddName(id, s.VarName)
	}
	if s.InitialExpression != nil {
		value, err := e.emitExpression(s.InitialExpression)
		if err != nil {
			return err
		}
		e.fb.AddStore(id, value)
	}
	e.locals[s.VarID] = variable{id: id, class: StorageClassFunction, typ: t}
	return nil
}

// emitIf emits an if / else if / else chain as nested selections.
func (e *ExpressionEmitter) emitIf(conds []ast.ConditionalBranch, elseStmt ast.Statement) error {
	conditionID, err := e.emitExpression(conds[0].Condition)
	if err != nil {
		return err
	}

	// Allocate labels
	acceptLabel := e.backend.builder.AllocID()
	mergeLabel := e.backend.builder.AllocID()
	rejectLabel := mergeLabel
	hasReject := len(conds) > 1 || elseStmt != nil
	if hasReject {
		rejectLabel = e.backend.builder.AllocID()
	}

	e.fb.AddSelectionMerge(mergeLabel, SelectionControlNone)
	e.fb.AddBranchConditional(conditionID, acceptLabel, rejectLabel)

	// Accept block
	e.fb.AddLabel(acceptLabel)
	if err := e.emitStatement(conds[0].Statement); err != nil {
		return err
	}
	if !e.fb.Terminated() {
		e.fb.AddBranch(mergeLabel)
	}

	// Reject block
	if hasReject {
		e.fb.AddLabel(rejectLabel)
		if len(conds) > 1 {
			err = e.emitIf(conds[1:], elseStmt)
		} else {
			err = e.emitStatement(elseStmt)
		}
		if err != nil {
			return err
		}
		if !e.fb.Terminated() {
			e.fb.AddBranch(mergeLabel)
		}
	}

	e.fb.AddLabel(mergeLabel)
	return nil
}

// emitWhile emits a while loop. The condition is evaluated in its own block
// after the loop header.
func (e *ExpressionEmitter) emitWhile(s *ast.WhileStatement) error {
	headerLabel := e.backend.builder.AllocID()
	conditionLabel := e.backend.builder.AllocID()
	bodyLabel := e.backend.builder.AllocID()
	continueLabel := e.backend.builder.AllocID()
	mergeLabel := e.backend.builder.AllocID()

	control := LoopControlNone
	if s.Unroll.Resolved {
		switch s.Unroll.Value {
		case ast.UnrollAlways:
			control = LoopControlUnroll
		case ast.UnrollNever:
			control = LoopControlDontUnroll
		}
	}

	e.fb.AddBranch(headerLabel)

	// Header: OpLoopMerge declares merge and continue targets
	e.fb.AddLabel(headerLabel)
	e.fb.AddLoopMerge(mergeLabel, continueLabel, control)
	e.fb.AddBranch(conditionLabel)

	e.fb.AddLabel(conditionLabel)
	conditionID, err := e.emitExpression(s.Condition)
	if err != nil {
		return err
	}
	e.fb.AddBranchConditional(conditionID, bodyLabel, mergeLabel)

	e.loopStack = append(e.loopStack, loopContext{
		mergeLabel:    mergeLabel,
		continueLabel: continueLabel,
	})
	e.fb.AddLabel(bodyLabel)
	err = e.emitStatement(s.Body)
	e.loopStack = e.loopStack[:len(e.loopStack)-1]
	if err != nil {
		return err
	}
	if !e.fb.Terminated() {
		e.fb.AddBranch(continueLabel)
	}

	// Continue block: unconditional back-edge to header
	e.fb.AddLabel(continueLabel)
	e.fb.AddBranch(headerLabel)

	e.fb.AddLabel(mergeLabel)
	return nil
}
