package ast

// Node is any syntax tree node.
type Node interface {
	Pos() Span
}

// Expression is a closed set of expression variants.
type Expression interface {
	Node
	ResolvedType() ExpressionType
	SetResolvedType(t ExpressionType)
	expressionNode()
}

// ExpressionBase holds the fields shared by every expression.
type ExpressionBase struct {
	Span Span
	Type ExpressionType // nil until sanitized
}

// Pos returns the location of the expression's first token.
func (b *ExpressionBase) Pos() Span { return b.Span }

// ResolvedType returns the type computed by the sanitizer.
func (b *ExpressionBase) ResolvedType() ExpressionType { return b.Type }

// SetResolvedType records the type computed by the sanitizer.
func (b *ExpressionBase) SetResolvedType(t ExpressionType) { b.Type = t }

// IdentifierExpression is an unresolved name.
type IdentifierExpression struct {
	ExpressionBase
	Identifier string
}

// VariableValueExpression reads a resolved variable, parameter or external.
type VariableValueExpression struct {
	ExpressionBase
	VariableID int
}

// ConstantExpression reads a resolved constant or option.
type ConstantExpression struct {
	ExpressionBase
	ConstantID int
}

// ConstantValueExpression is a literal or folded value.
type ConstantValueExpression struct {
	ExpressionBase
	Value ConstantValue
}

// BinaryExpression applies a binary operator.
type BinaryExpression struct {
	ExpressionBase
	Op    BinaryType
	Left  Expression
	Right Expression
}

// UnaryExpression applies a unary operator.
type UnaryExpression struct {
	ExpressionBase
	Op         UnaryType
	Expression Expression
}

// AssignExpression stores Right into the location named by Left.
type AssignExpression struct {
	ExpressionBase
	Op    AssignType
	Left  Expression
	Right Expression
}

// CastExpression constructs a value of TargetType from its arguments.
// It covers scalar conversions and vector/matrix/struct/array construction.
type CastExpression struct {
	ExpressionBase
	TargetType  Expression
	Expressions []Expression
}

// ConditionalExpression is the ternary operator.
type ConditionalExpression struct {
	ExpressionBase
	Condition Expression
	TruePath  Expression
	FalsePath Expression
}

// AccessIndexExpression indexes Expr by each of Indices in turn. After
// sanitization struct member access is also represented here, with i32
// constant indices.
type AccessIndexExpression struct {
	ExpressionBase
	Expr    Expression
	Indices []Expression
}

// Identifier is a name with its location.
type Identifier struct {
	Name string
	Span Span
}

// AccessIdentifierExpression is a chain of member accesses.
type AccessIdentifierExpression struct {
	ExpressionBase
	Expr        Expression
	Identifiers []Identifier
}

// SwizzleExpression selects vector components. A chain of swizzles is always
// collapsed into one node.
type SwizzleExpression struct {
	ExpressionBase
	Expr           Expression
	Components     [4]uint32
	ComponentCount uint32
}

// CallFunctionExpression calls a user function.
type CallFunctionExpression struct {
	ExpressionBase
	TargetFunction Expression
	Parameters     []Expression
}

// CallMethodExpression calls a method on a value, such as tex.Sample(uv).
type CallMethodExpression struct {
	ExpressionBase
	Object     Expression
	MethodName string
	Parameters []Expression
}

// IntrinsicExpression calls a built-in function.
type IntrinsicExpression struct {
	ExpressionBase
	Intrinsic  IntrinsicType
	Parameters []Expression
}

// FunctionExpression references a resolved function.
type FunctionExpression struct {
	ExpressionBase
	FunctionID int
}

// IntrinsicFunctionExpression references an intrinsic by name before it is
// called.
type IntrinsicFunctionExpression struct {
	ExpressionBase
	Intrinsic IntrinsicType
}

// StructTypeExpression references a resolved struct declaration.
type StructTypeExpression struct {
	ExpressionBase
	StructID int
}

// TypeExpression references a resolved type. Type annotations are rewritten
// to TypeExpression by the sanitizer.
type TypeExpression struct {
	ExpressionBase
	Value ExpressionType
}

func (*IdentifierExpression) expressionNode()        {}
func (*VariableValueExpression) expressionNode()     {}
func (*ConstantExpression) expressionNode()          {}
func (*ConstantValueExpression) expressionNode()     {}
func (*BinaryExpression) expressionNode()            {}
func (*UnaryExpression) expressionNode()             {}
func (*AssignExpression) expressionNode()            {}
func (*CastExpression) expressionNode()              {}
func (*ConditionalExpression) expressionNode()       {}
func (*AccessIndexExpression) expressionNode()       {}
func (*AccessIdentifierExpression) expressionNode()  {}
func (*SwizzleExpression) expressionNode()           {}
func (*CallFunctionExpression) expressionNode()      {}
func (*CallMethodExpression) expressionNode()        {}
func (*IntrinsicExpression) expressionNode()         {}
func (*FunctionExpression) expressionNode()          {}
func (*IntrinsicFunctionExpression) expressionNode() {}
func (*StructTypeExpression) expressionNode()        {}
func (*TypeExpression) expressionNode()              {}

// SwizzleComponents returns the selected component indices.
func (s *SwizzleExpression) SwizzleComponents() []uint32 {
	return s.Components[:s.ComponentCount]
}

// NewConstantValue returns a typed literal expression.
func NewConstantValue(span Span, v ConstantValue) *ConstantValueExpression {
	return &ConstantValueExpression{
		ExpressionBase: ExpressionBase{Span: span, Type: v.Type()},
		Value:          v,
	}
}

// NewTypeExpression returns a resolved type reference.
func NewTypeExpression(span Span, t ExpressionType) *TypeExpression {
	return &TypeExpression{ExpressionBase: ExpressionBase{Span: span, Type: t}, Value: t}
}

// NewVariableValue returns a typed variable read.
func NewVariableValue(span Span, id int, t ExpressionType) *VariableValueExpression {
	return &VariableValueExpression{ExpressionBase: ExpressionBase{Span: span, Type: t}, VariableID: id}
}
