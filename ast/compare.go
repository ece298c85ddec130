package ast

// ModulesEqual reports whether two modules have the same logical content.
// Source spans are ignored; sequences are compared in order.
func ModulesEqual(a, b *Module) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if !metadataEqual(a.Metadata, b.Metadata) || len(a.ImportedModules) != len(b.ImportedModules) {
		return false
	}
	for i := range a.ImportedModules {
		if a.ImportedModules[i].Identifier != b.ImportedModules[i].Identifier ||
			!ModulesEqual(a.ImportedModules[i].Module, b.ImportedModules[i].Module) {
			return false
		}
	}
	return StatementsEqual(a.RootNode, b.RootNode)
}

func metadataEqual(a, b *Metadata) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.ModuleName != b.ModuleName || a.LangVersion != b.LangVersion || a.Author != b.Author ||
		a.Description != b.Description || a.License != b.License || len(a.Imports) != len(b.Imports) {
		return false
	}
	for i := range a.Imports {
		if a.Imports[i] != b.Imports[i] {
			return false
		}
	}
	return true
}

// ExpressionsEqual reports whether two expressions are structurally equal,
// including their resolved types.
func ExpressionsEqual(a, b Expression) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if !TypesEqual(a.ResolvedType(), b.ResolvedType()) {
		return false
	}
	switch x := a.(type) {
	case *IdentifierExpression:
		y, ok := b.(*IdentifierExpression)
		return ok && x.Identifier == y.Identifier
	case *VariableValueExpression:
		y, ok := b.(*VariableValueExpression)
		return ok && x.VariableID == y.VariableID
	case *ConstantExpression:
		y, ok := b.(*ConstantExpression)
		return ok && x.ConstantID == y.ConstantID
	case *ConstantValueExpression:
		y, ok := b.(*ConstantValueExpression)
		return ok && ValuesEqual(x.Value, y.Value)
	case *FunctionExpression:
		y, ok := b.(*FunctionExpression)
		return ok && x.FunctionID == y.FunctionID
	case *IntrinsicFunctionExpression:
		y, ok := b.(*IntrinsicFunctionExpression)
		return ok && x.Intrinsic == y.Intrinsic
	case *StructTypeExpression:
		y, ok := b.(*StructTypeExpression)
		return ok && x.StructID == y.StructID
	case *TypeExpression:
		y, ok := b.(*TypeExpression)
		return ok && TypesEqual(x.Value, y.Value)
	case *BinaryExpression:
		y, ok := b.(*BinaryExpression)
		return ok && x.Op == y.Op && ExpressionsEqual(x.Left, y.Left) && ExpressionsEqual(x.Right, y.Right)
	case *UnaryExpression:
		y, ok := b.(*UnaryExpression)
		return ok && x.Op == y.Op && ExpressionsEqual(x.Expression, y.Expression)
	case *AssignExpression:
		y, ok := b.(*AssignExpression)
		return ok && x.Op == y.Op && ExpressionsEqual(x.Left, y.Left) && ExpressionsEqual(x.Right, y.Right)
	case *CastExpression:
		y, ok := b.(*CastExpression)
		return ok && ExpressionsEqual(x.TargetType, y.TargetType) && exprListsEqual(x.Expressions, y.Expressions)
	case *ConditionalExpression:
		y, ok := b.(*ConditionalExpression)
		return ok && ExpressionsEqual(x.Condition, y.Condition) &&
			ExpressionsEqual(x.TruePath, y.TruePath) && ExpressionsEqual(x.FalsePath, y.FalsePath)
	case *AccessIndexExpression:
		y, ok := b.(*AccessIndexExpression)
		return ok && ExpressionsEqual(x.Expr, y.Expr) && exprListsEqual(x.Indices, y.Indices)
	case *AccessIdentifierExpression:
		y, ok := b.(*AccessIdentifierExpression)
		if !ok || len(x.Identifiers) != len(y.Identifiers) || !ExpressionsEqual(x.Expr, y.Expr) {
			return false
		}
		for i := range x.Identifiers {
			if x.Identifiers[i].Name != y.Identifiers[i].Name {
				return false
			}
		}
		return true
	case *SwizzleExpression:
		y, ok := b.(*SwizzleExpression)
		return ok && x.ComponentCount == y.ComponentCount && x.Components == y.Components &&
			ExpressionsEqual(x.Expr, y.Expr)
	case *CallFunctionExpression:
		y, ok := b.(*CallFunctionExpression)
		return ok && ExpressionsEqual(x.TargetFunction, y.TargetFunction) && exprListsEqual(x.Parameters, y.Parameters)
	case *CallMethodExpression:
		y, ok := b.(*CallMethodExpression)
		return ok && x.MethodName == y.MethodName && ExpressionsEqual(x.Object, y.Object) &&
			exprListsEqual(x.Parameters, y.Parameters)
	case *IntrinsicExpression:
		y, ok := b.(*IntrinsicExpression)
		return ok && x.Intrinsic == y.Intrinsic && exprListsEqual(x.Parameters, y.Parameters)
	}
	return false
}

// StatementsEqual reports whether two statements are structurally equal.
func StatementsEqual(a, b Statement) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case *ExpressionStatement:
		y, ok := b.(*ExpressionStatement)
		return ok && ExpressionsEqual(x.Expression, y.Expression)
	case *DeclareVariableStatement:
		y, ok := b.(*DeclareVariableStatement)
		return ok && x.VarName == y.VarName && x.VarID == y.VarID &&
			ExpressionsEqual(x.VarType, y.VarType) && ExpressionsEqual(x.InitialExpression, y.InitialExpression)
	case *DeclareConstStatement:
		y, ok := b.(*DeclareConstStatement)
		return ok && x.Name == y.Name && x.ConstID == y.ConstID && attributesEqual(x.IsExported, y.IsExported) &&
			ExpressionsEqual(x.Type, y.Type) && ExpressionsEqual(x.Expression, y.Expression)
	case *DeclareAliasStatement:
		y, ok := b.(*DeclareAliasStatement)
		return ok && x.Name == y.Name && x.AliasID == y.AliasID && attributesEqual(x.IsExported, y.IsExported) &&
			ExpressionsEqual(x.Expression, y.Expression)
	case *DeclareOptionStatement:
		y, ok := b.(*DeclareOptionStatement)
		return ok && x.OptName == y.OptName && x.OptionID == y.OptionID &&
			ExpressionsEqual(x.OptType, y.OptType) && ExpressionsEqual(x.DefaultValue, y.DefaultValue)
	case *DeclareStructStatement:
		y, ok := b.(*DeclareStructStatement)
		if !ok || x.StructID != y.StructID || !attributesEqual(x.IsExported, y.IsExported) ||
			x.Description.Name != y.Description.Name || !attributesEqual(x.Description.Layout, y.Description.Layout) ||
			len(x.Description.Members) != len(y.Description.Members) {
			return false
		}
		for i := range x.Description.Members {
			mx, my := &x.Description.Members[i], &y.Description.Members[i]
			if mx.Name != my.Name || !ExpressionsEqual(mx.Type, my.Type) || !attributesEqual(mx.Builtin, my.Builtin) ||
				!attributesEqual(mx.LocationIndex, my.LocationIndex) || !ExpressionsEqual(mx.Cond, my.Cond) {
				return false
			}
		}
		return true
	case *DeclareFunctionStatement:
		y, ok := b.(*DeclareFunctionStatement)
		if !ok || x.Name != y.Name || x.FuncID != y.FuncID || len(x.Parameters) != len(y.Parameters) ||
			!attributesEqual(x.EntryStage, y.EntryStage) || !attributesEqual(x.EarlyFragmentTests, y.EarlyFragmentTests) ||
			!attributesEqual(x.DepthWrite, y.DepthWrite) || !attributesEqual(x.Workgroup, y.Workgroup) ||
			!attributesEqual(x.IsExported, y.IsExported) || !ExpressionsEqual(x.ReturnType, y.ReturnType) {
			return false
		}
		for i := range x.Parameters {
			px, py := &x.Parameters[i], &y.Parameters[i]
			if px.Name != py.Name || px.VarID != py.VarID || !ExpressionsEqual(px.Type, py.Type) {
				return false
			}
		}
		return stmtListsEqual(x.Statements, y.Statements)
	case *DeclareExternalStatement:
		y, ok := b.(*DeclareExternalStatement)
		if !ok || !attributesEqual(x.BindingSet, y.BindingSet) || len(x.Externals) != len(y.Externals) {
			return false
		}
		for i := range x.Externals {
			ex, ey := &x.Externals[i], &y.Externals[i]
			if ex.Name != ey.Name || ex.VarID != ey.VarID || !ExpressionsEqual(ex.Type, ey.Type) ||
				!attributesEqual(ex.BindingSet, ey.BindingSet) || !attributesEqual(ex.BindingIndex, ey.BindingIndex) {
				return false
			}
		}
		return true
	case *BranchStatement:
		y, ok := b.(*BranchStatement)
		if !ok || x.IsConst != y.IsConst || len(x.CondStatements) != len(y.CondStatements) {
			return false
		}
		for i := range x.CondStatements {
			if !ExpressionsEqual(x.CondStatements[i].Condition, y.CondStatements[i].Condition) ||
				!StatementsEqual(x.CondStatements[i].Statement, y.CondStatements[i].Statement) {
				return false
			}
		}
		return StatementsEqual(x.ElseStatement, y.ElseStatement)
	case *ConditionalStatement:
		y, ok := b.(*ConditionalStatement)
		return ok && ExpressionsEqual(x.Condition, y.Condition) && StatementsEqual(x.Statement, y.Statement)
	case *ForStatement:
		y, ok := b.(*ForStatement)
		return ok && x.VarName == y.VarName && x.VarID == y.VarID && attributesEqual(x.Unroll, y.Unroll) &&
			ExpressionsEqual(x.FromExpr, y.FromExpr) && ExpressionsEqual(x.ToExpr, y.ToExpr) &&
			ExpressionsEqual(x.StepExpr, y.StepExpr) && StatementsEqual(x.Statement, y.Statement)
	case *ForEachStatement:
		y, ok := b.(*ForEachStatement)
		return ok && x.VarName == y.VarName && x.VarID == y.VarID && attributesEqual(x.Unroll, y.Unroll) &&
			ExpressionsEqual(x.Expression, y.Expression) && StatementsEqual(x.Statement, y.Statement)
	case *WhileStatement:
		y, ok := b.(*WhileStatement)
		return ok && attributesEqual(x.Unroll, y.Unroll) && ExpressionsEqual(x.Condition, y.Condition) &&
			StatementsEqual(x.Body, y.Body)
	case *ReturnStatement:
		y, ok := b.(*ReturnStatement)
		return ok && ExpressionsEqual(x.ReturnExpr, y.ReturnExpr)
	case *DiscardStatement:
		_, ok := b.(*DiscardStatement)
		return ok
	case *BreakStatement:
		_, ok := b.(*BreakStatement)
		return ok
	case *ContinueStatement:
		_, ok := b.(*ContinueStatement)
		return ok
	case *NoOpStatement:
		_, ok := b.(*NoOpStatement)
		return ok
	case *ImportStatement:
		y, ok := b.(*ImportStatement)
		if !ok || x.ModuleName != y.ModuleName || len(x.Identifiers) != len(y.Identifiers) {
			return false
		}
		for i := range x.Identifiers {
			if x.Identifiers[i].Identifier != y.Identifiers[i].Identifier ||
				x.Identifiers[i].RenamedIdentifier != y.Identifiers[i].RenamedIdentifier {
				return false
			}
		}
		return true
	case *MultiStatement:
		y, ok := b.(*MultiStatement)
		return ok && stmtListsEqual(x.Statements, y.Statements)
	case *ScopedStatement:
		y, ok := b.(*ScopedStatement)
		return ok && StatementsEqual(x.Statement, y.Statement)
	}
	return false
}

func attributesEqual[T comparable](a, b AttributeValue[T]) bool {
	if a.Resolved != b.Resolved {
		return false
	}
	if a.Resolved && a.Value != b.Value {
		return false
	}
	return ExpressionsEqual(a.Expr, b.Expr)
}

func exprListsEqual(a, b []Expression) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !ExpressionsEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func stmtListsEqual(a, b []Statement) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !StatementsEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
