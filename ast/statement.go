package ast

// Statement is a closed set of statement variants.
type Statement interface {
	Node
	statementNode()
}

// StatementBase holds the fields shared by every statement.
type StatementBase struct {
	Span Span
}

// Pos returns the location of the statement's first token.
func (b *StatementBase) Pos() Span { return b.Span }

// AttributeValue is an attribute argument: the expression written in source
// and, once sanitized, its resolved value.
type AttributeValue[T comparable] struct {
	Expr     Expression
	Value    T
	Resolved bool
}

// HasValue reports whether the attribute was written or resolved.
func (a AttributeValue[T]) HasValue() bool {
	return a.Expr != nil || a.Resolved
}

// Resolve records the resolved value and drops the source expression.
func (a *AttributeValue[T]) Resolve(v T) {
	a.Value = v
	a.Resolved = true
	a.Expr = nil
}

// ResolvedAttribute returns an attribute holding v.
func ResolvedAttribute[T comparable](v T) AttributeValue[T] {
	return AttributeValue[T]{Value: v, Resolved: true}
}

// ExpressionStatement evaluates an expression for its side effects.
type ExpressionStatement struct {
	StatementBase
	Expression Expression
}

// DeclareVariableStatement is a `let` declaration. VarType or
// InitialExpression may be nil, not both.
type DeclareVariableStatement struct {
	StatementBase
	VarName           string
	VarType           Expression
	InitialExpression Expression
	VarID             int // zero until sanitized
}

// DeclareConstStatement declares a compile-time constant.
type DeclareConstStatement struct {
	StatementBase
	Name       string
	Type       Expression
	Expression Expression
	IsExported AttributeValue[bool]
	ConstID    int
}

// DeclareAliasStatement gives another name to a type, struct or function.
type DeclareAliasStatement struct {
	StatementBase
	Name       string
	Expression Expression
	IsExported AttributeValue[bool]
	AliasID    int
}

// DeclareOptionStatement declares a specialization option. Options share the
// constant ID space so they are read through ConstantExpression.
type DeclareOptionStatement struct {
	StatementBase
	OptName      string
	OptType      Expression
	DefaultValue Expression
	OptionID     int
}

// StructMember is one member of a struct declaration.
type StructMember struct {
	Span          Span
	Name          string
	Type          Expression
	Builtin       AttributeValue[BuiltinEntry]
	LocationIndex AttributeValue[uint32]
	Cond          Expression // nil when unconditional
}

// StructDescription is the body of a struct declaration.
type StructDescription struct {
	Name    string
	Layout  AttributeValue[MemoryLayout]
	Members []StructMember
}

// DeclareStructStatement declares a struct.
type DeclareStructStatement struct {
	StatementBase
	Description StructDescription
	IsExported  AttributeValue[bool]
	StructID    int
}

// FunctionParameter is a parameter of a function declaration.
type FunctionParameter struct {
	Span  Span
	Name  string
	Type  Expression
	VarID int
}

// DeclareFunctionStatement declares a function, possibly an entry point.
type DeclareFunctionStatement struct {
	StatementBase
	Name               string
	Parameters         []FunctionParameter
	ReturnType         Expression // nil for void
	Statements         []Statement
	EntryStage         AttributeValue[ShaderStage]
	EarlyFragmentTests AttributeValue[bool]
	DepthWrite         AttributeValue[DepthWriteMode]
	Workgroup          AttributeValue[[3]uint32]
	IsExported         AttributeValue[bool]
	FuncID             int
}

// IsEntryPoint reports whether the function has an entry attribute.
func (f *DeclareFunctionStatement) IsEntryPoint() bool {
	return f.EntryStage.HasValue()
}

// ExternalVar is one resource of an external block.
type ExternalVar struct {
	Span         Span
	Name         string
	Type         Expression
	BindingSet   AttributeValue[uint32]
	BindingIndex AttributeValue[uint32]
	VarID        int
}

// DeclareExternalStatement declares a block of bound resources.
type DeclareExternalStatement struct {
	StatementBase
	BindingSet AttributeValue[uint32] // default set for members
	Externals  []ExternalVar
}

// ConditionalBranch is one condition/statement pair of a branch.
type ConditionalBranch struct {
	Condition Expression
	Statement Statement
}

// BranchStatement is an if / else if / else chain.
type BranchStatement struct {
	StatementBase
	CondStatements []ConditionalBranch
	ElseStatement  Statement // nil when absent
	IsConst        bool
}

// ConditionalStatement includes Statement only when the constant Condition
// holds for the current option values.
type ConditionalStatement struct {
	StatementBase
	Condition Expression
	Statement Statement
}

// ForStatement iterates a counter from FromExpr (inclusive) to ToExpr
// (exclusive) by StepExpr, which defaults to 1.
type ForStatement struct {
	StatementBase
	VarName   string
	FromExpr  Expression
	ToExpr    Expression
	StepExpr  Expression
	Statement Statement
	Unroll    AttributeValue[LoopUnroll]
	VarID     int
}

// ForEachStatement iterates the elements of an array.
type ForEachStatement struct {
	StatementBase
	VarName    string
	Expression Expression
	Statement  Statement
	Unroll     AttributeValue[LoopUnroll]
	VarID      int
}

// WhileStatement loops while Condition holds.
type WhileStatement struct {
	StatementBase
	Condition Expression
	Body      Statement
	Unroll    AttributeValue[LoopUnroll]
}

// ReturnStatement returns from the current function.
type ReturnStatement struct {
	StatementBase
	ReturnExpr Expression // nil for void
}

// DiscardStatement discards the current fragment.
type DiscardStatement struct {
	StatementBase
}

// BreakStatement leaves the innermost loop.
type BreakStatement struct {
	StatementBase
}

// ContinueStatement jumps to the next iteration of the innermost loop.
type ContinueStatement struct {
	StatementBase
}

// ImportIdentifier is one selected symbol of an import.
type ImportIdentifier struct {
	Span              Span
	Identifier        string
	RenamedIdentifier string // empty when not renamed
}

// ImportStatement imports exported symbols of another module. An empty
// Identifiers list imports every exported symbol.
type ImportStatement struct {
	StatementBase
	ModuleName  string
	Identifiers []ImportIdentifier
}

// MultiStatement is a sequence of statements sharing the enclosing scope.
type MultiStatement struct {
	StatementBase
	Statements []Statement
}

// ScopedStatement opens a lexical scope.
type ScopedStatement struct {
	StatementBase
	Statement Statement
}

// NoOpStatement does nothing.
type NoOpStatement struct {
	StatementBase
}

func (*ExpressionStatement) statementNode()      {}
func (*DeclareVariableStatement) statementNode() {}
func (*DeclareConstStatement) statementNode()    {}
func (*DeclareAliasStatement) statementNode()    {}
func (*DeclareOptionStatement) statementNode()   {}
func (*DeclareStructStatement) statementNode()   {}
func (*DeclareFunctionStatement) statementNode() {}
func (*DeclareExternalStatement) statementNode() {}
func (*BranchStatement) statementNode()          {}
func (*ConditionalStatement) statementNode()     {}
func (*ForStatement) statementNode()             {}
func (*ForEachStatement) statementNode()         {}
func (*WhileStatement) statementNode()           {}
func (*ReturnStatement) statementNode()          {}
func (*DiscardStatement) statementNode()         {}
func (*BreakStatement) statementNode()           {}
func (*ContinueStatement) statementNode()        {}
func (*ImportStatement) statementNode()          {}
func (*MultiStatement) statementNode()           {}
func (*ScopedStatement) statementNode()          {}
func (*NoOpStatement) statementNode()            {}
