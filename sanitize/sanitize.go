package sanitize

import (
	"sort"

	"github.com/gogpu/nzsl/ast"
)

// Sanitize resolves identifiers, computes the type of every expression,
// validates the module and applies the rewrites enabled in opts. The input
// module is not modified.
//
// Imported modules are sanitized in the same session, so IDs are unique
// across the result and its ImportedModules.
func Sanitize(module *ast.Module, opts Options) (*ast.Module, error) {
	ctx := newContext(opts)
	ctx.reserveIDs(module)
	if module.Metadata != nil && module.Metadata.ModuleName != "" {
		ctx.inProgress[module.Metadata.ModuleName] = true
	}

	s := newSanitizer(ctx)
	out, err := s.module(module)
	if err != nil {
		return nil, err
	}
	out.ImportedModules = ctx.imported
	return out, nil
}

// sanitizer holds the state of one module being sanitized.
type sanitizer struct {
	ctx     *context
	scopes  scopeStack
	exports map[string][]identifier
	direct  []ast.ImportedModule

	// wildcard is set by an `import M;` of a module that could not be
	// resolved in partial mode: unknown names may come from it.
	wildcard bool

	fn        *functionInfo
	loopDepth int
	condDepth int // depth of unresolved conditional statements
	noHoist   int // temporaries cannot be hoisted before the statement
	pending   []ast.Statement
	temps     int
	bindings  map[[2]uint32]string
}

func newSanitizer(ctx *context) *sanitizer {
	return &sanitizer{
		ctx:      ctx,
		exports:  make(map[string][]identifier),
		bindings: make(map[[2]uint32]string),
	}
}

func (s *sanitizer) errorf(span ast.Span, format string, args ...any) error {
	return ast.Errorf(ast.ErrSemantic, span, format, args...)
}

func (s *sanitizer) module(m *ast.Module) (*ast.Module, error) {
	out := ast.CloneModule(m)
	out.ImportedModules = nil
	if out.Metadata == nil {
		out.Metadata = &ast.Metadata{}
	}
	if out.Metadata.LangVersion == 0 {
		out.Metadata.LangVersion = ast.LangVersion100
	}
	if out.Metadata.LangVersion > ast.LangVersion100 {
		v := out.Metadata.LangVersion
		return nil, s.errorf(ast.Span{}, "unsupported language version %d.%d", v/100, v%100)
	}
	if out.RootNode == nil {
		out.RootNode = &ast.MultiStatement{}
	}

	s.scopes.push()
	defer s.scopes.pop()

	stmts, err := s.statementList(out.RootNode.Statements)
	if err != nil {
		return nil, err
	}
	out.RootNode.Statements = stmts
	out.ImportedModules = s.direct
	return out, nil
}

// declare registers a symbol in the innermost scope.
func (s *sanitizer) declare(name string, span ast.Span, ident identifier) error {
	if s.condDepth > 0 {
		s.scopes.replace(name, ident)
		return nil
	}
	if !s.scopes.declare(name, ident) {
		return s.errorf(span, "%s %s is already declared in this scope", ident.category, name)
	}
	return nil
}

// export records a top-level symbol for importers.
func (s *sanitizer) export(name string, exported ast.AttributeValue[bool], ident identifier, span ast.Span) error {
	if !exported.Value {
		return nil
	}
	if s.fn != nil {
		return s.errorf(span, "%s cannot be exported from a function", name)
	}
	s.exports[name] = append(s.exports[name], ident)
	return nil
}

// statementList sanitizes a sequence of statements, inserting temporaries
// hoisted by the rewrites before the statement that needs them.
func (s *sanitizer) statementList(list []ast.Statement) ([]ast.Statement, error) {
	out := make([]ast.Statement, 0, len(list))
	for _, st := range list {
		saved := s.pending
		s.pending = nil
		res, err := s.statement(st)
		if err != nil {
			return nil, err
		}
		out = append(out, s.pending...)
		s.pending = saved
		if res != nil {
			out = append(out, res)
		}
	}
	return out, nil
}

// nested sanitizes a statement used as the body of another one.
func (s *sanitizer) nested(st ast.Statement) (ast.Statement, error) {
	saved := s.pending
	s.pending = nil
	defer func() { s.pending = saved }()

	res, err := s.statement(st)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = &ast.NoOpStatement{StatementBase: ast.StatementBase{Span: st.Pos()}}
	}
	if len(s.pending) > 0 {
		res = &ast.ScopedStatement{
			StatementBase: ast.StatementBase{Span: st.Pos()},
			Statement: &ast.MultiStatement{
				StatementBase: ast.StatementBase{Span: st.Pos()},
				Statements:    append(s.pending, res),
			},
		}
	}
	return res, nil
}

func (s *sanitizer) nestedScoped(st ast.Statement) (ast.Statement, error) {
	s.scopes.push()
	defer s.scopes.pop()
	return s.nested(st)
}

// statement sanitizes one statement. A nil result removes the statement.
func (s *sanitizer) statement(st ast.Statement) (ast.Statement, error) {
	switch x := st.(type) {
	case *ast.ImportStatement:
		return x, s.importStatement(x)
	case *ast.DeclareOptionStatement:
		return s.declareOption(x)
	case *ast.DeclareConstStatement:
		return s.declareConst(x)
	case *ast.DeclareAliasStatement:
		return s.declareAlias(x)
	case *ast.DeclareStructStatement:
		return s.declareStruct(x)
	case *ast.DeclareExternalStatement:
		return s.declareExternal(x)
	case *ast.DeclareFunctionStatement:
		return s.declareFunction(x)
	case *ast.ConditionalStatement:
		return s.conditional(x)
	case *ast.MultiStatement:
		stmts, err := s.statementList(x.Statements)
		if err != nil {
			return nil, err
		}
		x.Statements = stmts
		return x, nil
	case *ast.NoOpStatement:
		return x, nil
	}

	if s.fn == nil {
		return nil, s.errorf(st.Pos(), "statement is only allowed inside a function")
	}

	switch x := st.(type) {
	case *ast.ScopedStatement:
		s.scopes.push()
		defer s.scopes.pop()
		inner, err := s.nested(x.Statement)
		if err != nil {
			return nil, err
		}
		x.Statement = inner
		return x, nil
	case *ast.ExpressionStatement:
		e, err := s.expression(x.Expression)
		if err != nil {
			return nil, err
		}
		x.Expression = e
		return x, nil
	case *ast.DeclareVariableStatement:
		return s.declareVariable(x)
	case *ast.BranchStatement:
		return s.branch(x)
	case *ast.WhileStatement:
		return s.while(x)
	case *ast.ForStatement:
		return s.forLoop(x)
	case *ast.ForEachStatement:
		return s.forEach(x)
	case *ast.ReturnStatement:
		return s.returnStatement(x)
	case *ast.DiscardStatement:
		return x, nil
	case *ast.BreakStatement:
		if s.loopDepth == 0 {
			return nil, s.errorf(x.Span, "break outside of a loop")
		}
		return x, nil
	case *ast.ContinueStatement:
		if s.loopDepth == 0 {
			return nil, s.errorf(x.Span, "continue outside of a loop")
		}
		return x, nil
	default:
		return nil, s.errorf(st.Pos(), "unexpected statement %T", st)
	}
}

func (s *sanitizer) requireModuleScope(span ast.Span, what string) error {
	if s.fn != nil {
		return s.errorf(span, "%s must be declared at module scope", what)
	}
	return nil
}

func (s *sanitizer) importStatement(st *ast.ImportStatement) error {
	if err := s.requireModuleScope(st.Span, "imports"); err != nil {
		return err
	}
	em, err := s.ctx.importModule(st.ModuleName, st.Span)
	if err != nil {
		return err
	}

	if em == nil {
		if len(st.Identifiers) == 0 {
			s.wildcard = true
		}
		for _, id := range st.Identifiers {
			if err := s.declare(importedName(id), id.Span, identifier{category: categoryUnresolved}); err != nil {
				return err
			}
		}
		return nil
	}

	s.addDirect(st.ModuleName, em.module)
	if len(st.Identifiers) == 0 {
		names := make([]string, 0, len(em.exports))
		for name := range em.exports {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			for _, ident := range em.exports[name] {
				if err := s.declare(name, st.Span, ident); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, id := range st.Identifiers {
		idents, ok := em.exports[id.Identifier]
		if !ok {
			return s.errorf(id.Span, "module %s does not export %s", st.ModuleName, id.Identifier)
		}
		for _, ident := range idents {
			if err := s.declare(importedName(id), id.Span, ident); err != nil {
				return err
			}
		}
	}
	return nil
}

func importedName(id ast.ImportIdentifier) string {
	if id.RenamedIdentifier != "" {
		return id.RenamedIdentifier
	}
	return id.Identifier
}

func (s *sanitizer) addDirect(name string, m *ast.Module) {
	for _, im := range s.direct {
		if im.Identifier == name {
			return
		}
	}
	s.direct = append(s.direct, ast.ImportedModule{Identifier: name, Module: m})
}

func (s *sanitizer) declareOption(st *ast.DeclareOptionStatement) (ast.Statement, error) {
	if err := s.requireModuleScope(st.Span, "options"); err != nil {
		return nil, err
	}
	typ, err := s.resolveTypeField(&st.OptType)
	if err != nil {
		return nil, err
	}
	switch typ.(type) {
	case ast.PrimitiveType, ast.VectorType, nil:
	default:
		return nil, s.errorf(st.Span, "option %s must have a scalar or vector type, got %s", st.OptName, typ)
	}

	info := &constantInfo{name: st.OptName, typ: typ, isOption: true}
	if st.DefaultValue != nil {
		e, err := s.expression(st.DefaultValue)
		if err != nil {
			return nil, err
		}
		v, err := ast.EvaluateConstant(e, s.ctx.defaultLookup)
		if err != nil {
			return nil, s.errorf(e.Pos(), "default value of option %s must be constant: %v", st.OptName, err)
		}
		if typ != nil && !ast.TypesEqual(v.Type(), typ) {
			return nil, s.errorf(e.Pos(), "default value of option %s has type %s, expected %s", st.OptName, v.Type(), typ)
		}
		st.DefaultValue = ast.NewConstantValue(e.Pos(), v)
		info.fallback = v
	}
	if v, ok := s.ctx.opts.OptionValues.Lookup(st.OptName); ok {
		if typ != nil && !ast.TypesEqual(v.Type(), typ) {
			return nil, s.errorf(st.Span, "value given for option %s has type %s, expected %s", st.OptName, v.Type(), typ)
		}
		info.value = v
	}

	st.OptionID = pick(&s.ctx.nextConst, st.OptionID)
	s.ctx.constants[st.OptionID] = info
	return st, s.declare(st.OptName, st.Span, identifier{category: categoryConstant, id: st.OptionID})
}

func (s *sanitizer) declareConst(st *ast.DeclareConstStatement) (ast.Statement, error) {
	var declared ast.ExpressionType
	if st.Type != nil {
		var err error
		if declared, err = s.resolveTypeField(&st.Type); err != nil {
			return nil, err
		}
	}
	e, err := s.expression(st.Expression)
	if err != nil {
		return nil, err
	}
	if err := s.resolveBool(&st.IsExported); err != nil {
		return nil, err
	}

	info := &constantInfo{name: st.Name, typ: declared}
	if et := e.ResolvedType(); et != nil {
		if declared != nil && !ast.TypesEqual(declared, et) {
			return nil, s.errorf(e.Pos(), "cannot initialize constant %s of type %s with a value of type %s", st.Name, declared, et)
		}
		info.typ = et

		fallback, err := ast.EvaluateConstant(e, s.ctx.defaultLookup)
		if err != nil {
			return nil, s.errorf(e.Pos(), "initializer of constant %s is not a compile-time constant", st.Name)
		}
		info.fallback = fallback
		if v, err := ast.EvaluateConstant(e, s.ctx.constantLookup); err == nil {
			info.value = v
			e = ast.NewConstantValue(e.Pos(), v)
		}
	}
	st.Expression = e

	st.ConstID = pick(&s.ctx.nextConst, st.ConstID)
	s.ctx.constants[st.ConstID] = info
	ident := identifier{category: categoryConstant, id: st.ConstID}
	if err := s.export(st.Name, st.IsExported, ident, st.Span); err != nil {
		return nil, err
	}
	return st, s.declare(st.Name, st.Span, ident)
}

func (s *sanitizer) declareAlias(st *ast.DeclareAliasStatement) (ast.Statement, error) {
	target, err := s.aliasTarget(st.Expression)
	if err != nil {
		return nil, err
	}
	if err := s.resolveBool(&st.IsExported); err != nil {
		return nil, err
	}
	st.Expression = target
	st.AliasID = pick(&s.ctx.nextAlias, st.AliasID)

	ident := identifier{category: categoryAlias, id: st.AliasID, alias: target}
	if err := s.export(st.Name, st.IsExported, ident, st.Span); err != nil {
		return nil, err
	}
	return st, s.declare(st.Name, st.Span, ident)
}

func (s *sanitizer) aliasTarget(e ast.Expression) (ast.Expression, error) {
	if t, ok, err := s.tryType(e); err != nil {
		return nil, err
	} else if ok {
		if st, isStruct := t.(ast.StructType); isStruct {
			return &ast.StructTypeExpression{ExpressionBase: ast.ExpressionBase{Span: e.Pos(), Type: st}, StructID: st.StructID}, nil
		}
		return ast.NewTypeExpression(e.Pos(), t), nil
	}

	target, err := s.expression(e)
	if err != nil {
		return nil, err
	}
	switch target.(type) {
	case *ast.FunctionExpression, *ast.StructTypeExpression, *ast.TypeExpression,
		*ast.IntrinsicFunctionExpression:
		return target, nil
	case *ast.IdentifierExpression:
		// unresolved import in partial mode
		return target, nil
	}
	return nil, s.errorf(e.Pos(), "alias target must be a type, struct or function")
}

func (s *sanitizer) declareStruct(st *ast.DeclareStructStatement) (ast.Statement, error) {
	if err := s.requireModuleScope(st.Span, "structs"); err != nil {
		return nil, err
	}
	desc := &st.Description
	if desc.Layout.Expr != nil {
		name, err := s.attributeName(desc.Layout.Expr)
		if err != nil {
			return nil, err
		}
		layout, ok := ast.ParseMemoryLayout(name)
		if !ok {
			return nil, s.errorf(desc.Layout.Expr.Pos(), "unknown memory layout %s", name)
		}
		desc.Layout.Resolve(layout)
	}
	if err := s.resolveBool(&st.IsExported); err != nil {
		return nil, err
	}

	typ := ast.StructType{Name: desc.Name}
	seen := make(map[string]bool, len(desc.Members))
	members := desc.Members[:0]
	for _, m := range desc.Members {
		if m.Cond != nil {
			include, err := s.memberCondition(m)
			if err != nil {
				return nil, err
			}
			if !include {
				continue
			}
			m.Cond = nil
		}
		if seen[m.Name] {
			return nil, s.errorf(m.Span, "duplicate member %s in struct %s", m.Name, desc.Name)
		}
		seen[m.Name] = true

		mt, err := s.resolveTypeField(&m.Type)
		if err != nil {
			return nil, err
		}
		if err := s.memberAttributes(&m, mt); err != nil {
			return nil, err
		}
		members = append(members, m)
		typ.Members = append(typ.Members, ast.StructMemberType{Name: m.Name, Type: mt})
	}
	desc.Members = members

	st.StructID = pick(&s.ctx.nextStruct, st.StructID)
	typ.StructID = st.StructID
	s.ctx.structs[st.StructID] = &structInfo{decl: st, typ: typ}

	ident := identifier{category: categoryStruct, id: st.StructID}
	if err := s.export(desc.Name, st.IsExported, ident, st.Span); err != nil {
		return nil, err
	}
	return st, s.declare(desc.Name, st.Span, ident)
}

// memberCondition evaluates the cond attribute of a struct member. The
// layout of a struct cannot depend on options with unknown values, so option
// defaults apply.
func (s *sanitizer) memberCondition(m ast.StructMember) (bool, error) {
	cond, err := s.expression(m.Cond)
	if err != nil {
		return false, err
	}
	v, err := ast.EvaluateConstant(cond, s.ctx.defaultLookup)
	if err != nil {
		return false, s.errorf(cond.Pos(), "condition of member %s must be a constant expression", m.Name)
	}
	b, ok := v.(ast.BoolValue)
	if !ok {
		return false, s.errorf(cond.Pos(), "condition of member %s must be a boolean, got %s", m.Name, v.Type())
	}
	return bool(b), nil
}

func (s *sanitizer) memberAttributes(m *ast.StructMember, mt ast.ExpressionType) error {
	if m.Builtin.Expr != nil {
		name, err := s.attributeName(m.Builtin.Expr)
		if err != nil {
			return err
		}
		b, ok := ast.ParseBuiltin(name)
		if !ok {
			return s.errorf(m.Builtin.Expr.Pos(), "unknown builtin %s", name)
		}
		m.Builtin.Resolve(b)
	}
	if m.Builtin.Resolved && mt != nil {
		if want := m.Builtin.Value.Info().Type; !ast.TypesEqual(want, mt) {
			return s.errorf(m.Span, "builtin %s must have type %s, got %s", m.Builtin.Value, want, mt)
		}
	}
	if m.LocationIndex.Expr != nil {
		v, err := s.constantUint(m.LocationIndex.Expr, "location")
		if err != nil {
			return err
		}
		m.LocationIndex.Resolve(v)
	}
	if m.Builtin.Resolved && m.LocationIndex.Resolved {
		return s.errorf(m.Span, "member %s cannot have both a builtin and a location", m.Name)
	}
	return nil
}

func (s *sanitizer) declareExternal(st *ast.DeclareExternalStatement) (ast.Statement, error) {
	if err := s.requireModuleScope(st.Span, "externals"); err != nil {
		return nil, err
	}
	if st.BindingSet.Expr != nil {
		v, err := s.constantUint(st.BindingSet.Expr, "set")
		if err != nil {
			return nil, err
		}
		st.BindingSet.Resolve(v)
	}

	for i := range st.Externals {
		ext := &st.Externals[i]
		t, err := s.resolveTypeField(&ext.Type)
		if err != nil {
			return nil, err
		}
		switch t.(type) {
		case ast.UniformType, ast.StorageType, ast.SamplerType, nil:
		default:
			return nil, s.errorf(ext.Span, "external %s must be a uniform, storage or sampler, got %s", ext.Name, t)
		}

		if ext.BindingSet.Expr != nil {
			v, err := s.constantUint(ext.BindingSet.Expr, "set")
			if err != nil {
				return nil, err
			}
			ext.BindingSet.Resolve(v)
		} else if !ext.BindingSet.Resolved {
			ext.BindingSet.Resolve(st.BindingSet.Value)
		}
		if ext.BindingIndex.Expr != nil {
			v, err := s.constantUint(ext.BindingIndex.Expr, "binding")
			if err != nil {
				return nil, err
			}
			ext.BindingIndex.Resolve(v)
		} else if !ext.BindingIndex.Resolved {
			return nil, s.errorf(ext.Span, "external %s requires a binding", ext.Name)
		}

		key := [2]uint32{ext.BindingSet.Value, ext.BindingIndex.Value}
		if other, ok := s.bindings[key]; ok && s.condDepth == 0 {
			return nil, s.errorf(ext.Span, "external %s uses set %d binding %d already used by %s", ext.Name, key[0], key[1], other)
		}
		s.bindings[key] = ext.Name

		ext.VarID = pick(&s.ctx.nextVar, ext.VarID)
		s.ctx.variables[ext.VarID] = &variableInfo{name: ext.Name, typ: t, external: true}
		if err := s.declare(ext.Name, ext.Span, identifier{category: categoryExternal, id: ext.VarID}); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func (s *sanitizer) declareFunction(st *ast.DeclareFunctionStatement) (ast.Statement, error) {
	if err := s.requireModuleScope(st.Span, "functions"); err != nil {
		return nil, err
	}
	if err := s.functionAttributes(st); err != nil {
		return nil, err
	}

	ftype := ast.FunctionType{Name: st.Name, Return: ast.NoType{}}
	for i := range st.Parameters {
		pt, err := s.resolveTypeField(&st.Parameters[i].Type)
		if err != nil {
			return nil, err
		}
		ftype.Parameters = append(ftype.Parameters, pt)
	}
	if st.ReturnType != nil {
		rt, err := s.resolveTypeField(&st.ReturnType)
		if err != nil {
			return nil, err
		}
		ftype.Return = rt
	}

	st.FuncID = pick(&s.ctx.nextFunc, st.FuncID)
	ftype.FunctionID = st.FuncID
	info := &functionInfo{decl: st, typ: ftype}
	s.ctx.functions[st.FuncID] = info

	ident := identifier{category: categoryFunction, id: st.FuncID}
	if err := s.export(st.Name, st.IsExported, ident, st.Span); err != nil {
		return nil, err
	}
	if err := s.declare(st.Name, st.Span, ident); err != nil {
		return nil, err
	}

	s.fn = info
	s.scopes.push()
	defer func() {
		s.scopes.pop()
		s.fn = nil
	}()

	for i := range st.Parameters {
		p := &st.Parameters[i]
		p.VarID = pick(&s.ctx.nextVar, p.VarID)
		s.ctx.variables[p.VarID] = &variableInfo{name: p.Name, typ: ftype.Parameters[i]}
		if !s.scopes.declare(p.Name, identifier{category: categoryVariable, id: p.VarID}) {
			return nil, s.errorf(p.Span, "duplicate parameter %s", p.Name)
		}
	}

	stmts, err := s.statementList(st.Statements)
	if err != nil {
		return nil, err
	}
	st.Statements = stmts

	if st.IsEntryPoint() {
		if err := s.validateEntryPoint(st, info); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// conditional folds a [cond] statement when its condition is known and keeps
// it for the backends otherwise.
func (s *sanitizer) conditional(st *ast.ConditionalStatement) (ast.Statement, error) {
	known, value, cond, err := s.constantCondition(st.Condition)
	if err != nil {
		return nil, err
	}
	st.Condition = cond
	if known {
		if !value {
			return nil, nil
		}
		return s.statement(st.Statement)
	}

	s.condDepth++
	inner, err := s.statement(st.Statement)
	s.condDepth--
	if err != nil {
		return nil, err
	}
	if inner == nil {
		return nil, nil
	}
	st.Statement = inner
	return st, nil
}

// constantCondition sanitizes a condition that must be constant once
// options are specialized. It reports whether the value is already known.
func (s *sanitizer) constantCondition(e ast.Expression) (known, value bool, cond ast.Expression, err error) {
	cond, err = s.expression(e)
	if err != nil {
		return false, false, nil, err
	}
	ct := cond.ResolvedType()
	if ct == nil {
		return false, false, cond, nil
	}
	if ct != ast.PrimitiveBool {
		return false, false, nil, s.errorf(cond.Pos(), "condition must be a boolean, got %s", ct)
	}
	if _, derr := ast.EvaluateConstant(cond, s.ctx.defaultLookup); derr != nil {
		return false, false, nil, s.errorf(cond.Pos(), "condition must be a constant expression")
	}
	v, verr := ast.EvaluateConstant(cond, s.ctx.constantLookup)
	if verr != nil {
		return false, false, cond, nil
	}
	return true, bool(v.(ast.BoolValue)), cond, nil
}

func (s *sanitizer) declareVariable(st *ast.DeclareVariableStatement) (ast.Statement, error) {
	var declared ast.ExpressionType
	if st.VarType != nil {
		var err error
		if declared, err = s.resolveTypeField(&st.VarType); err != nil {
			return nil, err
		}
	}
	if st.InitialExpression != nil {
		init, err := s.expression(st.InitialExpression)
		if err != nil {
			return nil, err
		}
		st.InitialExpression = init
		if it := init.ResolvedType(); it != nil {
			if ast.IsVoid(it) {
				return nil, s.errorf(init.Pos(), "variable %s is initialized with an expression that has no value", st.VarName)
			}
			if declared != nil && !ast.TypesEqual(declared, it) {
				return nil, s.errorf(init.Pos(), "cannot initialize variable %s of type %s with a value of type %s", st.VarName, declared, it)
			}
			if declared == nil {
				declared = it
			}
		}
	}
	switch declared.(type) {
	case ast.FunctionType, ast.IntrinsicFunctionType, ast.SamplerType, ast.UniformType, ast.StorageType:
		return nil, s.errorf(st.Span, "variable %s cannot hold a value of type %s", st.VarName, declared)
	}

	st.VarID = pick(&s.ctx.nextVar, st.VarID)
	s.ctx.variables[st.VarID] = &variableInfo{name: st.VarName, typ: declared}
	return st, s.declare(st.VarName, st.Span, identifier{category: categoryVariable, id: st.VarID})
}

func (s *sanitizer) condition(e ast.Expression, what string) (ast.Expression, error) {
	cond, err := s.expression(e)
	if err != nil {
		return nil, err
	}
	if ct := cond.ResolvedType(); ct != nil && ct != ast.PrimitiveBool {
		return nil, s.errorf(cond.Pos(), "%s condition must be a boolean, got %s", what, ct)
	}
	return cond, nil
}

func (s *sanitizer) branch(st *ast.BranchStatement) (ast.Statement, error) {
	if st.IsConst {
		return s.constBranch(st)
	}
	for i := range st.CondStatements {
		cb := &st.CondStatements[i]
		cond, err := s.condition(cb.Condition, "if")
		if err != nil {
			return nil, err
		}
		cb.Condition = cond
		if cb.Statement, err = s.nestedScoped(cb.Statement); err != nil {
			return nil, err
		}
	}
	if st.ElseStatement != nil {
		var err error
		if st.ElseStatement, err = s.nestedScoped(st.ElseStatement); err != nil {
			return nil, err
		}
	}
	if s.ctx.opts.SplitMultipleBranches {
		return splitBranch(st), nil
	}
	return st, nil
}

// constBranch selects the branch of a `const if` whose condition holds. When
// a condition depends on an option without a known value, every branch is
// kept for the backends.
func (s *sanitizer) constBranch(st *ast.BranchStatement) (ast.Statement, error) {
	allKnown := true
	selected := -1
	for i := range st.CondStatements {
		cb := &st.CondStatements[i]
		known, value, cond, err := s.constantCondition(cb.Condition)
		if err != nil {
			return nil, err
		}
		cb.Condition = cond
		if !known {
			allKnown = false
		}
		if allKnown && value && selected < 0 {
			selected = i
		}
	}

	if allKnown {
		switch {
		case selected >= 0:
			return s.nestedScoped(st.CondStatements[selected].Statement)
		case st.ElseStatement != nil:
			return s.nestedScoped(st.ElseStatement)
		default:
			return nil, nil
		}
	}

	s.condDepth++
	defer func() { s.condDepth-- }()
	for i := range st.CondStatements {
		cb := &st.CondStatements[i]
		var err error
		if cb.Statement, err = s.nestedScoped(cb.Statement); err != nil {
			return nil, err
		}
	}
	if st.ElseStatement != nil {
		var err error
		if st.ElseStatement, err = s.nestedScoped(st.ElseStatement); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func (s *sanitizer) while(st *ast.WhileStatement) (ast.Statement, error) {
	s.noHoist++
	cond, err := s.condition(st.Condition, "while")
	s.noHoist--
	if err != nil {
		return nil, err
	}
	st.Condition = cond
	if err := s.resolveUnroll(&st.Unroll); err != nil {
		return nil, err
	}

	s.loopDepth++
	body, err := s.nestedScoped(st.Body)
	s.loopDepth--
	if err != nil {
		return nil, err
	}
	st.Body = body
	return st, nil
}

func (s *sanitizer) forLoop(st *ast.ForStatement) (ast.Statement, error) {
	from, err := s.expression(st.FromExpr)
	if err != nil {
		return nil, err
	}
	to, err := s.expression(st.ToExpr)
	if err != nil {
		return nil, err
	}
	st.FromExpr, st.ToExpr = from, to
	if st.StepExpr != nil {
		if st.StepExpr, err = s.expression(st.StepExpr); err != nil {
			return nil, err
		}
	}
	if err := s.resolveUnroll(&st.Unroll); err != nil {
		return nil, err
	}

	counterType := from.ResolvedType()
	if counterType != nil {
		if p, ok := counterType.(ast.PrimitiveType); !ok || !p.IsInteger() {
			return nil, s.errorf(from.Pos(), "for loop bounds must be i32 or u32, got %s", counterType)
		}
		bounds := []ast.Expression{to}
		if st.StepExpr != nil {
			bounds = append(bounds, st.StepExpr)
		}
		for _, b := range bounds {
			if bt := b.ResolvedType(); bt != nil && !ast.TypesEqual(bt, counterType) {
				return nil, s.errorf(b.Pos(), "for loop bound has type %s, expected %s", bt, counterType)
			}
		}
	}

	s.scopes.push()
	st.VarID = pick(&s.ctx.nextVar, st.VarID)
	s.ctx.variables[st.VarID] = &variableInfo{name: st.VarName, typ: counterType}
	s.scopes.declare(st.VarName, identifier{category: categoryVariable, id: st.VarID})
	s.loopDepth++
	body, err := s.nested(st.Statement)
	s.loopDepth--
	s.scopes.pop()
	if err != nil {
		return nil, err
	}
	st.Statement = body

	if s.ctx.opts.ReduceLoopsToWhile && counterType != nil {
		return s.reduceFor(st, counterType.(ast.PrimitiveType)), nil
	}
	return st, nil
}

func (s *sanitizer) forEach(st *ast.ForEachStatement) (ast.Statement, error) {
	arr, err := s.expression(st.Expression)
	if err != nil {
		return nil, err
	}
	st.Expression = arr
	if err := s.resolveUnroll(&st.Unroll); err != nil {
		return nil, err
	}

	var elem ast.ExpressionType
	arrType, isArray := arr.ResolvedType().(ast.ArrayType)
	if arr.ResolvedType() != nil {
		if !isArray {
			return nil, s.errorf(arr.Pos(), "for-each requires an array, got %s", arr.ResolvedType())
		}
		elem = arrType.ContainedType
	}

	s.scopes.push()
	st.VarID = pick(&s.ctx.nextVar, st.VarID)
	s.ctx.variables[st.VarID] = &variableInfo{name: st.VarName, typ: elem}
	s.scopes.declare(st.VarName, identifier{category: categoryVariable, id: st.VarID})
	s.loopDepth++
	body, err := s.nested(st.Statement)
	s.loopDepth--
	s.scopes.pop()
	if err != nil {
		return nil, err
	}
	st.Statement = body

	if s.ctx.opts.ReduceLoopsToWhile && isArray {
		return s.reduceForEach(st, arrType), nil
	}
	return st, nil
}

func (s *sanitizer) returnStatement(st *ast.ReturnStatement) (ast.Statement, error) {
	want := s.fn.typ.Return
	name := s.fn.decl.Name
	if want == nil {
		// return type comes from an unresolved import
		if st.ReturnExpr != nil {
			e, err := s.expression(st.ReturnExpr)
			if err != nil {
				return nil, err
			}
			st.ReturnExpr = e
		}
		return st, nil
	}
	if st.ReturnExpr == nil {
		if !ast.IsVoid(want) {
			return nil, s.errorf(st.Span, "function %s must return a value of type %s", name, want)
		}
		return st, nil
	}
	e, err := s.expression(st.ReturnExpr)
	if err != nil {
		return nil, err
	}
	st.ReturnExpr = e
	if ast.IsVoid(want) {
		return nil, s.errorf(e.Pos(), "function %s does not return a value", name)
	}
	if et := e.ResolvedType(); et != nil && !ast.TypesEqual(et, want) {
		return nil, s.errorf(e.Pos(), "function %s returns %s, got %s", name, want, et)
	}
	return st, nil
}
