package ast

import "fmt"

// Metadata is the module header.
type Metadata struct {
	ModuleName  string
	LangVersion uint32 // major*100 + minor
	Author      string
	Description string
	License     string
	Imports     []string // imported module names, in source order
}

// ImportedModule is a sanitized dependency of a module.
type ImportedModule struct {
	Identifier string
	Module     *Module
}

// Module is a compilation unit.
type Module struct {
	Metadata        *Metadata
	ImportedModules []ImportedModule
	RootNode        *MultiStatement
}

// LangVersion100 is the only language version currently defined.
const LangVersion100 = 100

// NewModule returns an empty module with the given name.
func NewModule(name string) *Module {
	return &Module{
		Metadata: &Metadata{ModuleName: name, LangVersion: LangVersion100},
		RootNode: &MultiStatement{},
	}
}

// FindImportedModule returns the imported module registered under name.
func (m *Module) FindImportedModule(name string) (*Module, bool) {
	for _, im := range m.ImportedModules {
		if im.Identifier == name {
			return im.Module, true
		}
	}
	return nil, false
}

// EntryPoints returns the top-level entry functions declared by the module
// itself. Entry points of imported modules are not included.
func (m *Module) EntryPoints() []*DeclareFunctionStatement {
	var out []*DeclareFunctionStatement
	for _, fn := range m.localFunctions() {
		if fn.IsEntryPoint() {
			out = append(out, fn)
		}
	}
	return out
}

// Functions returns every top-level function declaration, imported modules
// first.
func (m *Module) Functions() []*DeclareFunctionStatement {
	var out []*DeclareFunctionStatement
	for _, im := range m.ImportedModules {
		out = append(out, im.Module.localFunctions()...)
	}
	return append(out, m.localFunctions()...)
}

func (m *Module) localFunctions() []*DeclareFunctionStatement {
	var out []*DeclareFunctionStatement
	for _, s := range flattenTopLevel(m.RootNode) {
		if fn, ok := s.(*DeclareFunctionStatement); ok {
			out = append(out, fn)
		}
	}
	return out
}

// TopLevel returns the top-level statements of the module with multi
// statements flattened. Conditional statements are returned as-is.
func (m *Module) TopLevel() []Statement {
	return flattenTopLevel(m.RootNode)
}

func flattenTopLevel(s Statement) []Statement {
	var out []Statement
	switch x := s.(type) {
	case *MultiStatement:
		if x == nil {
			return nil
		}
		for _, c := range x.Statements {
			out = append(out, flattenTopLevel(c)...)
		}
	case nil:
	default:
		out = append(out, s)
	}
	return out
}

// ResolveConstants returns the value of every constant and option declared by
// m and its imported modules, keyed by ID. Options take their value from
// opts and fall back to their declared default.
func ResolveConstants(m *Module, opts OptionValues) (map[int]ConstantValue, error) {
	values := make(map[int]ConstantValue)
	lookup := func(id int) (ConstantValue, bool) {
		v, ok := values[id]
		return v, ok
	}
	var firstErr error
	visit := func(n Node) bool {
		if firstErr != nil {
			return false
		}
		switch s := n.(type) {
		case *DeclareConstStatement:
			v, err := EvaluateConstant(s.Expression, lookup)
			if err != nil {
				firstErr = fmt.Errorf("constant %s: %w", s.Name, err)
				return false
			}
			values[s.ConstID] = v
		case *DeclareOptionStatement:
			if v, ok := opts.Lookup(s.OptName); ok {
				values[s.OptionID] = v
				return false
			}
			if s.DefaultValue == nil {
				firstErr = fmt.Errorf("option %s has no value", s.OptName)
				return false
			}
			v, err := EvaluateConstant(s.DefaultValue, lookup)
			if err != nil {
				firstErr = fmt.Errorf("option %s: %w", s.OptName, err)
				return false
			}
			values[s.OptionID] = v
			return false
		}
		return true
	}
	for _, im := range m.ImportedModules {
		Inspect(im.Module.RootNode, visit)
	}
	Inspect(m.RootNode, visit)
	return values, firstErr
}
