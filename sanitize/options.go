package sanitize

import "github.com/gogpu/nzsl/ast"

// ModuleResolver returns the parsed source of an imported module.
type ModuleResolver interface {
	Resolve(name string) (*ast.Module, error)
}

// ModuleResolverFunc adapts a function to ModuleResolver.
type ModuleResolverFunc func(name string) (*ast.Module, error)

// Resolve calls f(name).
func (f ModuleResolverFunc) Resolve(name string) (*ast.Module, error) {
	return f(name)
}

// Options configures sanitization.
type Options struct {
	// ModuleResolver resolves imports. A nil resolver fails every import
	// unless PartialSanitization is set.
	ModuleResolver ModuleResolver

	// PartialSanitization tolerates symbols of imports that cannot be
	// resolved. They are left as identifiers without a type, and the module
	// can be sanitized again once the import is available.
	PartialSanitization bool

	// SplitMultipleBranches rewrites if / else if chains into nested
	// single-condition branches.
	SplitMultipleBranches bool

	// ReduceLoopsToWhile rewrites for and for-each loops into while loops
	// with an explicit counter.
	ReduceLoopsToWhile bool

	// RemoveMatrixCast rewrites matrix-to-matrix casts into per-column
	// construction.
	RemoveMatrixCast bool

	// OptionValues are option values known at sanitization time. Constant
	// branches and conditional statements depending only on them are folded.
	OptionValues ast.OptionValues
}

// DefaultOptions returns options with every rewrite disabled.
func DefaultOptions() Options {
	return Options{}
}
