package sanitize

import (
	"errors"
	"fmt"

	"github.com/gogpu/nzsl/ast"
)

type constantInfo struct {
	name     string
	typ      ast.ExpressionType
	value    ast.ConstantValue // nil for options without a known value
	fallback ast.ConstantValue // option default
	isOption bool
}

type functionInfo struct {
	decl *ast.DeclareFunctionStatement
	typ  ast.FunctionType
}

type structInfo struct {
	decl *ast.DeclareStructStatement
	typ  ast.StructType
}

type variableInfo struct {
	name     string
	typ      ast.ExpressionType
	external bool
}

// exportedModule is a sanitized module and the symbols it exports.
type exportedModule struct {
	module  *ast.Module
	exports map[string][]identifier
}

// context is shared by every module sanitized in one session so that IDs are
// unique across a module and its imports.
type context struct {
	opts Options

	nextVar, nextConst, nextFunc, nextStruct, nextAlias int

	variables map[int]*variableInfo
	constants map[int]*constantInfo
	functions map[int]*functionInfo
	structs   map[int]*structInfo

	modules    map[string]*exportedModule
	inProgress map[string]bool
	previous   map[string]*ast.Module // imports of a module sanitized earlier
	imported   []ast.ImportedModule   // dependency order
	unresolved map[string]bool        // imports that failed in partial mode
}

func newContext(opts Options) *context {
	return &context{
		opts:       opts,
		nextVar:    1,
		nextConst:  1,
		nextFunc:   1,
		nextStruct: 1,
		nextAlias:  1,
		variables:  make(map[int]*variableInfo),
		constants:  make(map[int]*constantInfo),
		functions:  make(map[int]*functionInfo),
		structs:    make(map[int]*structInfo),
		modules:    make(map[string]*exportedModule),
		inProgress: make(map[string]bool),
		previous:   make(map[string]*ast.Module),
		unresolved: make(map[string]bool),
	}
}

// reserveIDs moves the allocators past every ID already present in m, so a
// module sanitized earlier keeps its IDs when it is sanitized again.
func (c *context) reserveIDs(m *ast.Module) {
	bump := func(next *int, id int) {
		if id >= *next {
			*next = id + 1
		}
	}
	visit := func(n ast.Node) bool {
		switch s := n.(type) {
		case *ast.DeclareVariableStatement:
			bump(&c.nextVar, s.VarID)
		case *ast.DeclareConstStatement:
			bump(&c.nextConst, s.ConstID)
		case *ast.DeclareOptionStatement:
			bump(&c.nextConst, s.OptionID)
		case *ast.DeclareAliasStatement:
			bump(&c.nextAlias, s.AliasID)
		case *ast.DeclareStructStatement:
			bump(&c.nextStruct, s.StructID)
		case *ast.DeclareFunctionStatement:
			bump(&c.nextFunc, s.FuncID)
			for _, p := range s.Parameters {
				bump(&c.nextVar, p.VarID)
			}
		case *ast.DeclareExternalStatement:
			for _, e := range s.Externals {
				bump(&c.nextVar, e.VarID)
			}
		case *ast.ForStatement:
			bump(&c.nextVar, s.VarID)
		case *ast.ForEachStatement:
			bump(&c.nextVar, s.VarID)
		}
		return true
	}
	ast.Inspect(m.RootNode, visit)
	for _, im := range m.ImportedModules {
		c.previous[im.Identifier] = im.Module
		ast.Inspect(im.Module.RootNode, visit)
	}
}

func pick(next *int, existing int) int {
	if existing != 0 {
		return existing
	}
	id := *next
	*next++
	return id
}

// constantLookup reads constants and the options given in Options.
func (c *context) constantLookup(id int) (ast.ConstantValue, bool) {
	info, ok := c.constants[id]
	if !ok || info.value == nil {
		return nil, false
	}
	return info.value, true
}

// defaultLookup also falls back to option defaults. It serves declarations
// whose shape must be fixed at sanitization, such as array sizes.
func (c *context) defaultLookup(id int) (ast.ConstantValue, bool) {
	info, ok := c.constants[id]
	if !ok {
		return nil, false
	}
	if info.value != nil {
		return info.value, true
	}
	return info.fallback, info.fallback != nil
}

// importModule sanitizes the named module once per session. In partial mode
// a module the resolver cannot provide yields a nil module and no error.
func (c *context) importModule(name string, span ast.Span) (*exportedModule, error) {
	if c.unresolved[name] {
		return nil, nil
	}
	if em, ok := c.modules[name]; ok {
		return em, nil
	}
	if c.inProgress[name] {
		return nil, ast.Errorf(ast.ErrSemantic, span, "cyclic import of module %s", name)
	}

	raw, ok := c.previous[name]
	if !ok {
		var err error
		raw, err = c.resolve(name)
		if err != nil {
			if c.opts.PartialSanitization {
				c.unresolved[name] = true
				return nil, nil
			}
			return nil, ast.Errorf(ast.ErrSemantic, span, "cannot import module %s: %v", name, err)
		}
	}

	c.inProgress[name] = true
	defer delete(c.inProgress, name)

	s := newSanitizer(c)
	module, err := s.module(raw)
	if err != nil {
		return nil, fmt.Errorf("in module %s: %w", name, err)
	}

	em := &exportedModule{module: module, exports: s.exports}
	c.modules[name] = em
	c.imported = append(c.imported, ast.ImportedModule{Identifier: name, Module: module})
	return em, nil
}

func (c *context) resolve(name string) (*ast.Module, error) {
	if c.opts.ModuleResolver == nil {
		return nil, errors.New("no module resolver")
	}
	m, err := c.opts.ModuleResolver.Resolve(name)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.New("module not found")
	}
	return m, nil
}
