// Package ast defines the syntax tree of the nzsl shading language.
//
// The tree is produced by package lang, resolved and type-checked by package
// sanitize, and consumed read-only by the backends (glsl, spirv, serialize).
//
// Expressions and statements are closed sets: every variant implements an
// unexported marker method, so passes dispatch with exhaustive type switches.
// After sanitization every expression carries its resolved ExpressionType and
// identifiers are replaced by ID-based references (VariableValueExpression,
// ConstantExpression, FunctionExpression, StructTypeExpression).
//
// The package also provides the cross-cutting utilities used by every pass:
//
//   - CloneModule / CloneStatement / CloneExpression: deep copies
//   - ModulesEqual / StatementsEqual / ExpressionsEqual: structural equality
//   - Walk / Inspect: default recursive traversal
//   - EvaluateConstant: compile-time constant folding
package ast
