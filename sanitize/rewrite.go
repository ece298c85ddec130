package sanitize

import (
	"github.com/gogpu/nzsl/ast"
)

// splitBranch turns `if a {} else if b {} else {}` into
// `if a {} else { if b {} else {} }`.
func splitBranch(st *ast.BranchStatement) *ast.BranchStatement {
	if len(st.CondStatements) <= 1 {
		return st
	}
	rest := &ast.BranchStatement{
		StatementBase:  ast.StatementBase{Span: st.CondStatements[1].Condition.Pos()},
		CondStatements: st.CondStatements[1:],
		ElseStatement:  st.ElseStatement,
	}
	return &ast.BranchStatement{
		StatementBase:  st.StatementBase,
		CondStatements: st.CondStatements[:1],
		ElseStatement:  splitBranch(rest),
	}
}

// temp declares a generated variable initialized with init.
func (s *sanitizer) temp(what string, t ast.ExpressionType, init ast.Expression) (*ast.DeclareVariableStatement, *ast.VariableValueExpression) {
	span := init.Pos()
	id := s.ctx.nextVar
	s.ctx.nextVar++
	name := tempName(what, s.temps)
	s.temps++
	s.ctx.variables[id] = &variableInfo{name: name, typ: t}

	decl := &ast.DeclareVariableStatement{
		StatementBase:     ast.StatementBase{Span: span},
		VarName:           name,
		VarType:           ast.NewTypeExpression(span, t),
		InitialExpression: init,
		VarID:             id,
	}
	return decl, ast.NewVariableValue(span, id, t)
}

// isPlace reports whether e reads a variable, possibly through indexing and
// swizzles, so that it can be evaluated again without side effects.
func isPlace(e ast.Expression) bool {
	switch x := e.(type) {
	case *ast.VariableValueExpression, *ast.ConstantExpression, *ast.ConstantValueExpression:
		return true
	case *ast.AccessIndexExpression:
		for _, idx := range x.Indices {
			if !isPlace(idx) {
				return false
			}
		}
		return isPlace(x.Expr)
	case *ast.SwizzleExpression:
		return isPlace(x.Expr)
	}
	return false
}

func block(span ast.Span, stmts ...ast.Statement) *ast.ScopedStatement {
	return &ast.ScopedStatement{
		StatementBase: ast.StatementBase{Span: span},
		Statement:     &ast.MultiStatement{StatementBase: ast.StatementBase{Span: span}, Statements: stmts},
	}
}

func increment(span ast.Span, counter *ast.VariableValueExpression, step ast.Expression) *ast.ExpressionStatement {
	return &ast.ExpressionStatement{
		StatementBase: ast.StatementBase{Span: span},
		Expression: &ast.AssignExpression{
			ExpressionBase: ast.ExpressionBase{Span: span, Type: counter.Type},
			Op:             ast.AssignAdd,
			Left:           ast.NewVariableValue(span, counter.VariableID, counter.Type),
			Right:          ast.CloneExpression(step),
		},
	}
}

func lessThan(span ast.Span, l, r ast.Expression) *ast.BinaryExpression {
	return &ast.BinaryExpression{
		ExpressionBase: ast.ExpressionBase{Span: span, Type: ast.PrimitiveBool},
		Op:             ast.BinaryCompLt,
		Left:           l,
		Right:          r,
	}
}

// reduceFor rewrites a numeric for loop:
//
//	{
//		let i = from;
//		let nzsl_to = to;
//		while (i < nzsl_to) { body; i += step; }
//	}
func (s *sanitizer) reduceFor(st *ast.ForStatement, counterType ast.PrimitiveType) ast.Statement {
	span := st.Span
	var stmts []ast.Statement

	stmts = append(stmts, &ast.DeclareVariableStatement{
		StatementBase:     ast.StatementBase{Span: span},
		VarName:           st.VarName,
		InitialExpression: st.FromExpr,
		VarID:             st.VarID,
	})

	to := st.ToExpr
	if _, literal := to.(*ast.ConstantValueExpression); !literal {
		decl, v := s.temp("to", counterType, to)
		stmts = append(stmts, decl)
		to = v
	}
	var step ast.Expression = ast.NewConstantValue(span, ast.ScalarFromFloat(counterType, 1))
	if st.StepExpr != nil {
		step = st.StepExpr
		if _, literal := step.(*ast.ConstantValueExpression); !literal {
			decl, v := s.temp("step", counterType, step)
			stmts = append(stmts, decl)
			step = v
		}
	}

	counter := ast.NewVariableValue(span, st.VarID, counterType)
	inc := increment(span, counter, step)
	body := rewriteContinue(st.Statement, inc)
	stmts = append(stmts, &ast.WhileStatement{
		StatementBase: ast.StatementBase{Span: span},
		Condition:     lessThan(span, counter, to),
		Body:          block(span, body, inc),
		Unroll:        st.Unroll,
	})
	return block(span, stmts...)
}

// reduceForEach rewrites a for-each loop into a while loop over an index.
func (s *sanitizer) reduceForEach(st *ast.ForEachStatement, arrType ast.ArrayType) ast.Statement {
	span := st.Span
	var stmts []ast.Statement

	arr := st.Expression
	if !isPlace(arr) {
		decl, v := s.temp("array", arrType, arr)
		stmts = append(stmts, decl)
		arr = v
	}

	zero := ast.NewConstantValue(span, ast.UInt32Value(0))
	counterDecl, counter := s.temp("index", ast.PrimitiveUInt32, zero)
	stmts = append(stmts, counterDecl)

	var length ast.Expression
	if arrType.Length > 0 {
		length = ast.NewConstantValue(span, ast.UInt32Value(arrType.Length))
	} else {
		length = &ast.IntrinsicExpression{
			ExpressionBase: ast.ExpressionBase{Span: span, Type: ast.PrimitiveUInt32},
			Intrinsic:      ast.IntrinsicArraySize,
			Parameters:     []ast.Expression{ast.CloneExpression(arr)},
		}
	}

	elem := &ast.DeclareVariableStatement{
		StatementBase: ast.StatementBase{Span: span},
		VarName:       st.VarName,
		InitialExpression: &ast.AccessIndexExpression{
			ExpressionBase: ast.ExpressionBase{Span: span, Type: arrType.ContainedType},
			Expr:           ast.CloneExpression(arr),
			Indices:        []ast.Expression{ast.NewVariableValue(span, counter.VariableID, counter.Type)},
		},
		VarID: st.VarID,
	}
	inc := increment(span, counter, ast.NewConstantValue(span, ast.UInt32Value(1)))
	body := rewriteContinue(st.Statement, inc)
	stmts = append(stmts, &ast.WhileStatement{
		StatementBase: ast.StatementBase{Span: span},
		Condition:     lessThan(span, ast.NewVariableValue(span, counter.VariableID, counter.Type), length),
		Body:          block(span, elem, body, inc),
		Unroll:        st.Unroll,
	})
	return block(span, stmts...)
}

// rewriteContinue makes every continue of the loop body run inc first.
// Nested loops keep their own continue statements.
func rewriteContinue(st ast.Statement, inc *ast.ExpressionStatement) ast.Statement {
	switch x := st.(type) {
	case *ast.ContinueStatement:
		return block(x.Span, ast.CloneStatement(inc), x)
	case *ast.MultiStatement:
		for i, c := range x.Statements {
			x.Statements[i] = rewriteContinue(c, inc)
		}
	case *ast.ScopedStatement:
		x.Statement = rewriteContinue(x.Statement, inc)
	case *ast.BranchStatement:
		for i := range x.CondStatements {
			x.CondStatements[i].Statement = rewriteContinue(x.CondStatements[i].Statement, inc)
		}
		if x.ElseStatement != nil {
			x.ElseStatement = rewriteContinue(x.ElseStatement, inc)
		}
	case *ast.ConditionalStatement:
		x.Statement = rewriteContinue(x.Statement, inc)
	}
	return st
}

// expandMatrixCast builds a matrix of another shape column by column. Rows
// and columns missing from the source follow the identity matrix.
func (s *sanitizer) expandMatrixCast(x *ast.CastExpression, target, src ast.MatrixType) ast.Expression {
	span := x.Span
	arg := x.Expressions[0]
	read := func() ast.Expression { return ast.CloneExpression(arg) }
	if !isPlace(arg) && s.noHoist == 0 && s.fn != nil {
		decl, v := s.temp("matrix", src, arg)
		s.pending = append(s.pending, decl)
		read = func() ast.Expression { return ast.CloneExpression(v) }
	}

	colType := target.ColumnType()
	cols := make([]ast.Expression, target.ColumnCount)
	for c := range cols {
		if uint32(c) >= src.ColumnCount {
			comps := make([]ast.ConstantValue, target.RowCount)
			for r := range comps {
				comps[r] = identityEntry(target.Type, r, c)
			}
			cols[c] = ast.NewConstantValue(span, ast.VectorValue{Components: comps})
			continue
		}

		srcCol := &ast.AccessIndexExpression{
			ExpressionBase: ast.ExpressionBase{Span: span, Type: src.ColumnType()},
			Expr:           read(),
			Indices:        []ast.Expression{ast.NewConstantValue(span, ast.Int32Value(c))},
		}
		switch {
		case target.RowCount == src.RowCount:
			cols[c] = srcCol
		case target.RowCount < src.RowCount:
			sw := &ast.SwizzleExpression{
				ExpressionBase: ast.ExpressionBase{Span: span, Type: colType},
				Expr:           srcCol,
				ComponentCount: target.RowCount,
			}
			for r := uint32(0); r < target.RowCount; r++ {
				sw.Components[r] = r
			}
			cols[c] = sw
		default:
			args := []ast.Expression{srcCol}
			for r := int(src.RowCount); r < int(target.RowCount); r++ {
				args = append(args, ast.NewConstantValue(span, identityEntry(target.Type, r, c)))
			}
			cols[c] = &ast.CastExpression{
				ExpressionBase: ast.ExpressionBase{Span: span, Type: colType},
				TargetType:     ast.NewTypeExpression(span, colType),
				Expressions:    args,
			}
		}
	}

	return &ast.CastExpression{
		ExpressionBase: ast.ExpressionBase{Span: span, Type: target},
		TargetType:     ast.NewTypeExpression(span, target),
		Expressions:    cols,
	}
}

func identityEntry(p ast.PrimitiveType, row, col int) ast.ConstantValue {
	if row == col {
		return ast.ScalarFromFloat(p, 1)
	}
	return ast.ScalarFromFloat(p, 0)
}
