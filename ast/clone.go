package ast

import "fmt"

// CloneModule returns a deep copy of m. Imported modules shared by pointer
// stay shared in the copy.
func CloneModule(m *Module) *Module {
	return cloneModule(m, make(map[*Module]*Module))
}

func cloneModule(m *Module, seen map[*Module]*Module) *Module {
	if m == nil {
		return nil
	}
	if c, ok := seen[m]; ok {
		return c
	}
	out := &Module{}
	seen[m] = out
	if m.Metadata != nil {
		md := *m.Metadata
		md.Imports = append([]string(nil), m.Metadata.Imports...)
		out.Metadata = &md
	}
	for _, im := range m.ImportedModules {
		out.ImportedModules = append(out.ImportedModules, ImportedModule{
			Identifier: im.Identifier,
			Module:     cloneModule(im.Module, seen),
		})
	}
	if m.RootNode != nil {
		out.RootNode = CloneStatement(m.RootNode).(*MultiStatement)
	}
	return out
}

// CloneExpression returns a deep copy of e. Types and constant values are
// immutable and shared.
func CloneExpression(e Expression) Expression {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case *IdentifierExpression:
		c := *n
		return &c
	case *VariableValueExpression:
		c := *n
		return &c
	case *ConstantExpression:
		c := *n
		return &c
	case *ConstantValueExpression:
		c := *n
		return &c
	case *FunctionExpression:
		c := *n
		return &c
	case *IntrinsicFunctionExpression:
		c := *n
		return &c
	case *StructTypeExpression:
		c := *n
		return &c
	case *TypeExpression:
		c := *n
		return &c
	case *BinaryExpression:
		c := *n
		c.Left = CloneExpression(n.Left)
		c.Right = CloneExpression(n.Right)
		return &c
	case *UnaryExpression:
		c := *n
		c.Expression = CloneExpression(n.Expression)
		return &c
	case *AssignExpression:
		c := *n
		c.Left = CloneExpression(n.Left)
		c.Right = CloneExpression(n.Right)
		return &c
	case *CastExpression:
		c := *n
		c.TargetType = CloneExpression(n.TargetType)
		c.Expressions = cloneExprList(n.Expressions)
		return &c
	case *ConditionalExpression:
		c := *n
		c.Condition = CloneExpression(n.Condition)
		c.TruePath = CloneExpression(n.TruePath)
		c.FalsePath = CloneExpression(n.FalsePath)
		return &c
	case *AccessIndexExpression:
		c := *n
		c.Expr = CloneExpression(n.Expr)
		c.Indices = cloneExprList(n.Indices)
		return &c
	case *AccessIdentifierExpression:
		c := *n
		c.Expr = CloneExpression(n.Expr)
		c.Identifiers = append([]Identifier(nil), n.Identifiers...)
		return &c
	case *SwizzleExpression:
		c := *n
		c.Expr = CloneExpression(n.Expr)
		return &c
	case *CallFunctionExpression:
		c := *n
		c.TargetFunction = CloneExpression(n.TargetFunction)
		c.Parameters = cloneExprList(n.Parameters)
		return &c
	case *CallMethodExpression:
		c := *n
		c.Object = CloneExpression(n.Object)
		c.Parameters = cloneExprList(n.Parameters)
		return &c
	case *IntrinsicExpression:
		c := *n
		c.Parameters = cloneExprList(n.Parameters)
		return &c
	default:
		panic(fmt.Sprintf("ast.CloneExpression: unexpected expression %T", e))
	}
}

// CloneStatement returns a deep copy of s.
func CloneStatement(s Statement) Statement {
	if s == nil {
		return nil
	}
	switch n := s.(type) {
	case *ExpressionStatement:
		c := *n
		c.Expression = CloneExpression(n.Expression)
		return &c
	case *DeclareVariableStatement:
		c := *n
		c.VarType = CloneExpression(n.VarType)
		c.InitialExpression = CloneExpression(n.InitialExpression)
		return &c
	case *DeclareConstStatement:
		c := *n
		c.Type = CloneExpression(n.Type)
		c.Expression = CloneExpression(n.Expression)
		c.IsExported = cloneAttribute(n.IsExported)
		return &c
	case *DeclareAliasStatement:
		c := *n
		c.Expression = CloneExpression(n.Expression)
		c.IsExported = cloneAttribute(n.IsExported)
		return &c
	case *DeclareOptionStatement:
		c := *n
		c.OptType = CloneExpression(n.OptType)
		c.DefaultValue = CloneExpression(n.DefaultValue)
		return &c
	case *DeclareStructStatement:
		c := *n
		c.IsExported = cloneAttribute(n.IsExported)
		c.Description.Layout = cloneAttribute(n.Description.Layout)
		c.Description.Members = make([]StructMember, len(n.Description.Members))
		for i, m := range n.Description.Members {
			m.Type = CloneExpression(m.Type)
			m.Builtin = cloneAttribute(m.Builtin)
			m.LocationIndex = cloneAttribute(m.LocationIndex)
			m.Cond = CloneExpression(m.Cond)
			c.Description.Members[i] = m
		}
		return &c
	case *DeclareFunctionStatement:
		c := *n
		c.EntryStage = cloneAttribute(n.EntryStage)
		c.EarlyFragmentTests = cloneAttribute(n.EarlyFragmentTests)
		c.DepthWrite = cloneAttribute(n.DepthWrite)
		c.Workgroup = cloneAttribute(n.Workgroup)
		c.IsExported = cloneAttribute(n.IsExported)
		c.Parameters = make([]FunctionParameter, len(n.Parameters))
		for i, p := range n.Parameters {
			p.Type = CloneExpression(p.Type)
			c.Parameters[i] = p
		}
		c.ReturnType = CloneExpression(n.ReturnType)
		c.Statements = cloneStmtList(n.Statements)
		return &c
	case *DeclareExternalStatement:
		c := *n
		c.BindingSet = cloneAttribute(n.BindingSet)
		c.Externals = make([]ExternalVar, len(n.Externals))
		for i, e := range n.Externals {
			e.Type = CloneExpression(e.Type)
			e.BindingSet = cloneAttribute(e.BindingSet)
			e.BindingIndex = cloneAttribute(e.BindingIndex)
			c.Externals[i] = e
		}
		return &c
	case *BranchStatement:
		c := *n
		c.CondStatements = make([]ConditionalBranch, len(n.CondStatements))
		for i, cs := range n.CondStatements {
			c.CondStatements[i] = ConditionalBranch{
				Condition: CloneExpression(cs.Condition),
				Statement: CloneStatement(cs.Statement),
			}
		}
		c.ElseStatement = CloneStatement(n.ElseStatement)
		return &c
	case *ConditionalStatement:
		c := *n
		c.Condition = CloneExpression(n.Condition)
		c.Statement = CloneStatement(n.Statement)
		return &c
	case *ForStatement:
		c := *n
		c.FromExpr = CloneExpression(n.FromExpr)
		c.ToExpr = CloneExpression(n.ToExpr)
		c.StepExpr = CloneExpression(n.StepExpr)
		c.Statement = CloneStatement(n.Statement)
		c.Unroll = cloneAttribute(n.Unroll)
		return &c
	case *ForEachStatement:
		c := *n
		c.Expression = CloneExpression(n.Expression)
		c.Statement = CloneStatement(n.Statement)
		c.Unroll = cloneAttribute(n.Unroll)
		return &c
	case *WhileStatement:
		c := *n
		c.Condition = CloneExpression(n.Condition)
		c.Body = CloneStatement(n.Body)
		c.Unroll = cloneAttribute(n.Unroll)
		return &c
	case *ReturnStatement:
		c := *n
		c.ReturnExpr = CloneExpression(n.ReturnExpr)
		return &c
	case *DiscardStatement:
		c := *n
		return &c
	case *BreakStatement:
		c := *n
		return &c
	case *ContinueStatement:
		c := *n
		return &c
	case *ImportStatement:
		c := *n
		c.Identifiers = append([]ImportIdentifier(nil), n.Identifiers...)
		return &c
	case *MultiStatement:
		c := *n
		c.Statements = cloneStmtList(n.Statements)
		return &c
	case *ScopedStatement:
		c := *n
		c.Statement = CloneStatement(n.Statement)
		return &c
	case *NoOpStatement:
		c := *n
		return &c
	default:
		panic(fmt.Sprintf("ast.CloneStatement: unexpected statement %T", s))
	}
}

func cloneAttribute[T comparable](a AttributeValue[T]) AttributeValue[T] {
	a.Expr = CloneExpression(a.Expr)
	return a
}

func cloneExprList(list []Expression) []Expression {
	if list == nil {
		return nil
	}
	out := make([]Expression, len(list))
	for i, e := range list {
		out[i] = CloneExpression(e)
	}
	return out
}

func cloneStmtList(list []Statement) []Statement {
	if list == nil {
		return nil
	}
	out := make([]Statement, len(list))
	for i, s := range list {
		out[i] = CloneStatement(s)
	}
	return out
}
