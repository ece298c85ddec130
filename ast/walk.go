package ast

import "fmt"

// A Visitor's Visit method is invoked for each node encountered by Walk.
// If the result visitor w is not nil, Walk visits each of the children
// of node with the visitor w, followed by a call of w.Visit(nil).
type Visitor interface {
	Visit(node Node) (w Visitor)
}

// Walk traverses a syntax tree in depth-first order. Passes that only care
// about some node kinds implement Visit for those and get traversal of the
// remaining kinds for free.
func Walk(v Visitor, node Node) {
	if node == nil || isNilNode(node) {
		return
	}
	if v = v.Visit(node); v == nil {
		return
	}

	switch n := node.(type) {
	// Expressions
	case *IdentifierExpression, *VariableValueExpression, *ConstantExpression,
		*ConstantValueExpression, *FunctionExpression, *IntrinsicFunctionExpression,
		*StructTypeExpression, *TypeExpression:
		// leaves

	case *BinaryExpression:
		Walk(v, n.Left)
		Walk(v, n.Right)
	case *UnaryExpression:
		Walk(v, n.Expression)
	case *AssignExpression:
		Walk(v, n.Left)
		Walk(v, n.Right)
	case *CastExpression:
		walkExpr(v, n.TargetType)
		walkExprList(v, n.Expressions)
	case *ConditionalExpression:
		Walk(v, n.Condition)
		Walk(v, n.TruePath)
		Walk(v, n.FalsePath)
	case *AccessIndexExpression:
		Walk(v, n.Expr)
		walkExprList(v, n.Indices)
	case *AccessIdentifierExpression:
		Walk(v, n.Expr)
	case *SwizzleExpression:
		Walk(v, n.Expr)
	case *CallFunctionExpression:
		Walk(v, n.TargetFunction)
		walkExprList(v, n.Parameters)
	case *CallMethodExpression:
		Walk(v, n.Object)
		walkExprList(v, n.Parameters)
	case *IntrinsicExpression:
		walkExprList(v, n.Parameters)

	// Statements
	case *ExpressionStatement:
		Walk(v, n.Expression)
	case *DeclareVariableStatement:
		walkExpr(v, n.VarType)
		walkExpr(v, n.InitialExpression)
	case *DeclareConstStatement:
		walkExpr(v, n.Type)
		walkExpr(v, n.Expression)
		walkExpr(v, n.IsExported.Expr)
	case *DeclareAliasStatement:
		walkExpr(v, n.Expression)
		walkExpr(v, n.IsExported.Expr)
	case *DeclareOptionStatement:
		walkExpr(v, n.OptType)
		walkExpr(v, n.DefaultValue)
	case *DeclareStructStatement:
		walkExpr(v, n.IsExported.Expr)
		walkExpr(v, n.Description.Layout.Expr)
		for i := range n.Description.Members {
			m := &n.Description.Members[i]
			walkExpr(v, m.Type)
			walkExpr(v, m.Builtin.Expr)
			walkExpr(v, m.LocationIndex.Expr)
			walkExpr(v, m.Cond)
		}
	case *DeclareFunctionStatement:
		walkExpr(v, n.EntryStage.Expr)
		walkExpr(v, n.EarlyFragmentTests.Expr)
		walkExpr(v, n.DepthWrite.Expr)
		walkExpr(v, n.Workgroup.Expr)
		walkExpr(v, n.IsExported.Expr)
		for i := range n.Parameters {
			walkExpr(v, n.Parameters[i].Type)
		}
		walkExpr(v, n.ReturnType)
		walkStmtList(v, n.Statements)
	case *DeclareExternalStatement:
		walkExpr(v, n.BindingSet.Expr)
		for i := range n.Externals {
			e := &n.Externals[i]
			walkExpr(v, e.Type)
			walkExpr(v, e.BindingSet.Expr)
			walkExpr(v, e.BindingIndex.Expr)
		}
	case *BranchStatement:
		for _, c := range n.CondStatements {
			Walk(v, c.Condition)
			Walk(v, c.Statement)
		}
		walkStmt(v, n.ElseStatement)
	case *ConditionalStatement:
		Walk(v, n.Condition)
		Walk(v, n.Statement)
	case *ForStatement:
		walkExpr(v, n.Unroll.Expr)
		Walk(v, n.FromExpr)
		Walk(v, n.ToExpr)
		walkExpr(v, n.StepExpr)
		Walk(v, n.Statement)
	case *ForEachStatement:
		walkExpr(v, n.Unroll.Expr)
		Walk(v, n.Expression)
		Walk(v, n.Statement)
	case *WhileStatement:
		walkExpr(v, n.Unroll.Expr)
		Walk(v, n.Condition)
		Walk(v, n.Body)
	case *ReturnStatement:
		walkExpr(v, n.ReturnExpr)
	case *DiscardStatement, *BreakStatement, *ContinueStatement, *ImportStatement, *NoOpStatement:
		// leaves
	case *MultiStatement:
		walkStmtList(v, n.Statements)
	case *ScopedStatement:
		Walk(v, n.Statement)

	default:
		panic(fmt.Sprintf("ast.Walk: unexpected node type %T", n))
	}

	v.Visit(nil)
}

// WalkModule walks the root statements of m. Imported modules are not
// visited.
func WalkModule(v Visitor, m *Module) {
	if m == nil || m.RootNode == nil {
		return
	}
	Walk(v, m.RootNode)
}

func walkExpr(v Visitor, e Expression) {
	if e != nil {
		Walk(v, e)
	}
}

func walkStmt(v Visitor, s Statement) {
	if s != nil {
		Walk(v, s)
	}
}

func walkExprList(v Visitor, list []Expression) {
	for _, e := range list {
		Walk(v, e)
	}
}

func walkStmtList(v Visitor, list []Statement) {
	for _, s := range list {
		Walk(v, s)
	}
}

// isNilNode catches typed nil pointers stored in a Node interface.
func isNilNode(node Node) bool {
	switch n := node.(type) {
	case *MultiStatement:
		return n == nil
	case *ScopedStatement:
		return n == nil
	}
	return false
}

type inspector func(Node) bool

func (f inspector) Visit(node Node) Visitor {
	if f(node) {
		return f
	}
	return nil
}

// Inspect traverses a syntax tree in depth-first order: It starts by
// calling f(node); node must not be nil. If f returns true, Inspect invokes f
// recursively for each of the non-nil children of node, followed by a
// call of f(nil).
func Inspect(node Node, f func(Node) bool) {
	Walk(inspector(f), node)
}
