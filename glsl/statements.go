// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"github.com/gogpu/nzsl/ast"
)

// writeStatements writes a list of statements.
func (w *Writer) writeStatements(list []ast.Statement) error {
	for _, st := range list {
		if err := w.writeStatement(st); err != nil {
			return err
		}
	}
	return nil
}

// flushPending writes the cached results the next line depends on.
func (w *Writer) flushPending() {
	for _, line := range w.pending {
		w.writeLine("%s", line)
	}
	w.pending = w.pending[:0]
}

// writeStatement writes a single statement.
//
//nolint:gocyclo,cyclop // Statement dispatch requires many cases
func (w *Writer) writeStatement(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		var expr string
		var err error
		if assign, ok := s.Expression.(*ast.AssignExpression); ok {
			expr, err = w.writeAssign(assign)
		} else {
			expr, err = w.expression(s.Expression)
		}
		if err != nil {
			return err
		}
		w.flushPending()
		w.writeLine("%s;", expr)
		return nil

	case *ast.DeclareVariableStatement:
		return w.writeDeclareVariable(s)

	case *ast.DeclareConstStatement:
		v, ok := w.constants[s.ConstID]
		if !ok {
			return w.errorf(s.Span, "constant %s has no value", s.Name)
		}
		name := w.namer.call(s.Name)
		w.constantNames[s.ConstID] = name
		return w.writeConstant(name, v)

	case *ast.MultiStatement:
		return w.writeStatements(s.Statements)

	case *ast.ScopedStatement:
		w.writeLine("{")
		w.pushIndent()
		if err := w.writeStatement(s.Statement); err != nil {
			return err
		}
		w.popIndent()
		w.writeLine("}")
		return nil

	case *ast.BranchStatement:
		if s.IsConst {
			selected, err := w.selectConstBranch(s)
			if err != nil || selected == nil {
				return err
			}
			return w.writeStatement(selected)
		}
		return w.writeIf(s.CondStatements, s.ElseStatement)

	case *ast.ConditionalStatement:
		enabled, err := w.evaluateCondition(s.Condition)
		if err != nil || !enabled {
			return err
		}
		return w.writeStatement(s.Statement)

	case *ast.WhileStatement:
		return w.writeWhile(s)

	case *ast.ReturnStatement:
		if s.ReturnExpr == nil {
			w.writeLine("return;")
			return nil
		}
		expr, err := w.expression(s.ReturnExpr)
		if err != nil {
			return err
		}
		w.flushPending()
		w.writeLine("return %s;", expr)
		return nil

	case *ast.DiscardStatement:
		if w.env.Stage != ast.StageFragment {
			return w.errorf(s.Span, "discard can only be used in fragment shaders, the function is used by a %s entry point", w.env.Stage)
		}
		w.writeLine("discard;")
		return nil

	case *ast.BreakStatement:
		w.writeLine("break;")
		return nil

	case *ast.ContinueStatement:
		w.writeLine("continue;")
		return nil

	case *ast.NoOpStatement, *ast.ImportStatement, *ast.DeclareAliasStatement,
		*ast.DeclareOptionStatement, *ast.DeclareStructStatement,
		*ast.DeclareFunctionStatement, *ast.DeclareExternalStatement:
		return nil

	default:
		return w.errorf(stmt.Pos(), "unsupported statement %T", stmt)
	}
}

// writeDeclareVariable writes a local variable, with its initializer if
// present.
func (w *Writer) writeDeclareVariable(s *ast.DeclareVariableStatement) error {
	var t ast.ExpressionType
	switch {
	case s.VarType != nil:
		t = resolvedType(s.VarType)
	case s.InitialExpression != nil:
		t = s.InitialExpression.ResolvedType()
	default:
		return w.errorf(s.Span, "variable %s has no type", s.VarName)
	}

	var init string
	if s.InitialExpression != nil {
		var err error
		if init, err = w.expression(s.InitialExpression); err != nil {
			return err
		}
	}

	name := w.namer.call(s.VarName)
	w.variableNames[s.VarID] = name
	decl, err := w.declaration(t, name)
	if err != nil {
		return w.errorf(s.Span, "variable %s: %v", s.VarName, err)
	}
	w.flushPending()
	if s.InitialExpression != nil {
		w.writeLine("%s = %s;", decl, init)
	} else {
		w.writeLine("%s;", decl)
	}
	return nil
}

// writeIf writes an if / else if / else chain. A condition that needs cached
// results opens a nested block so it is only evaluated when reached.
func (w *Writer) writeIf(conds []ast.ConditionalBranch, elseStatement ast.Statement) error {
	condition, err := w.condition(conds[0].Condition)
	if err != nil {
		return err
	}
	w.flushPending()
	w.writeLine("if (%s) {", condition)
	if err := w.writeBody(conds[0].Statement); err != nil {
		return err
	}

	nested := 0
	for _, cb := range conds[1:] {
		condition, err := w.condition(cb.Condition)
		if err != nil {
			return err
		}
		if len(w.pending) > 0 {
			w.writeLine("} else {")
			w.pushIndent()
			nested++
			w.flushPending()
			w.writeLine("if (%s) {", condition)
		} else {
			w.writeLine("} else if (%s) {", condition)
		}
		if err := w.writeBody(cb.Statement); err != nil {
			return err
		}
	}

	if elseStatement != nil {
		w.writeLine("} else {")
		if err := w.writeBody(elseStatement); err != nil {
			return err
		}
	}
	w.writeLine("}")
	for ; nested > 0; nested-- {
		w.popIndent()
		w.writeLine("}")
	}
	return nil
}

// condition writes the condition of an if or while statement without the
// parentheses of its outermost operator.
func (w *Writer) condition(e ast.Expression) (string, error) {
	s, err := w.expression(e)
	if err != nil {
		return "", err
	}
	return stripParens(s), nil
}

// stripParens removes one pair of parentheses enclosing all of s.
func stripParens(s string) string {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return s
	}
	depth := 0
	for i := 0; i < len(s)-1; i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 {
			return s
		}
	}
	return s[1 : len(s)-1]
}

// writeBody writes the indented statements of a block, unwrapping one level
// of scope.
func (w *Writer) writeBody(st ast.Statement) error {
	w.pushIndent()
	defer w.popIndent()
	if scoped, ok := st.(*ast.ScopedStatement); ok {
		st = scoped.Statement
	}
	return w.writeStatement(st)
}

// writeWhile writes a while loop. When the condition needs cached results
// it is evaluated at the top of the body on every iteration.
func (w *Writer) writeWhile(s *ast.WhileStatement) error {
	condition, err := w.condition(s.Condition)
	if err != nil {
		return err
	}
	if len(w.pending) == 0 {
		w.writeLine("while (%s) {", condition)
		if err := w.writeBody(s.Body); err != nil {
			return err
		}
		w.writeLine("}")
		return nil
	}

	w.writeLine("while (true) {")
	w.pushIndent()
	w.flushPending()
	w.writeLine("if (!(%s)) {", condition)
	w.writeLine("    break;")
	w.writeLine("}")
	w.popIndent()
	if err := w.writeBody(s.Body); err != nil {
		return err
	}
	w.writeLine("}")
	return nil
}
