package sanitize

import (
	"github.com/gogpu/nzsl/ast"
)

// identifierCategory orders same-name declarations of one scope: a lower
// value wins the lookup.
type identifierCategory uint8

const (
	categoryFunction identifierCategory = iota
	categoryVariable
	categoryStruct
	categoryConstant
	categoryExternal
	categoryAlias
	categoryUnresolved
)

func (c identifierCategory) String() string {
	switch c {
	case categoryFunction:
		return "function"
	case categoryVariable:
		return "variable"
	case categoryStruct:
		return "struct"
	case categoryConstant:
		return "constant"
	case categoryExternal:
		return "external"
	case categoryAlias:
		return "alias"
	default:
		return "symbol"
	}
}

// identifier is a declaration visible in a scope.
type identifier struct {
	category identifierCategory
	id       int
	alias    ast.Expression // resolved target for aliases
}

type scope struct {
	names map[string][]identifier
}

func newScope() *scope {
	return &scope{names: make(map[string][]identifier)}
}

// scopeStack is the lexical scope chain of the module being sanitized.
type scopeStack struct {
	scopes []*scope
}

func (s *scopeStack) push() {
	s.scopes = append(s.scopes, newScope())
}

func (s *scopeStack) pop() {
	s.scopes = s.scopes[:len(s.scopes)-1]
}

// declare registers name in the innermost scope. It reports false when the
// scope already holds a declaration of the same category.
func (s *scopeStack) declare(name string, ident identifier) bool {
	sc := s.scopes[len(s.scopes)-1]
	for _, existing := range sc.names[name] {
		if existing.category == ident.category {
			return false
		}
	}
	sc.names[name] = append(sc.names[name], ident)
	return true
}

// replace registers name in the innermost scope, overriding a declaration
// of the same category.
func (s *scopeStack) replace(name string, ident identifier) {
	sc := s.scopes[len(s.scopes)-1]
	for i, existing := range sc.names[name] {
		if existing.category == ident.category {
			sc.names[name][i] = ident
			return
		}
	}
	sc.names[name] = append(sc.names[name], ident)
}

// lookup resolves name against the innermost scope declaring it, choosing
// between categories by precedence.
func (s *scopeStack) lookup(name string) (identifier, bool) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		entries := s.scopes[i].names[name]
		if len(entries) == 0 {
			continue
		}
		best := entries[0]
		for _, e := range entries[1:] {
			if e.category < best.category {
				best = e
			}
		}
		return best, true
	}
	return identifier{}, false
}

// lookupCategory resolves name restricted to one category.
func (s *scopeStack) lookupCategory(name string, category identifierCategory) (identifier, bool) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		for _, e := range s.scopes[i].names[name] {
			if e.category == category {
				return e, true
			}
		}
	}
	return identifier{}, false
}
