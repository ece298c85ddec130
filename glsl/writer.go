// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gogpu/nzsl/ast"
	"github.com/gogpu/nzsl/sanitize"
)

// Writer generates GLSL source code from a sanitized module.
type Writer struct {
	env     Environment
	version Version
	module  *ast.Module

	// Output buffer
	out strings.Builder

	// Current indentation level
	indent int

	// Values of every constant and option (ID → value)
	constants map[int]ast.ConstantValue

	// Name management
	namer         *namer
	structNames   map[int]string
	constantNames map[int]string
	variableNames map[int]string
	functionNames map[int]string

	// Declarations enabled by the option values, in source order
	structs       map[int]*ast.DeclareStructStatement
	structOrder   []*ast.DeclareStructStatement
	functions     map[int]*ast.DeclareFunctionStatement
	functionOrder []*ast.DeclareFunctionStatement
	globals       []globalConstant
	externals     []*ast.ExternalVar

	// Entry point and the functions it reaches, callees first
	entry     *ast.DeclareFunctionStatement
	reachable []*ast.DeclareFunctionStatement

	// Declarations of cached results, written before the current statement
	pending []string

	usesDouble bool
}

// globalConstant is a module-level constant or option.
type globalConstant struct {
	id   int
	name string
}

// namer generates unique identifiers.
type namer struct {
	usedNames map[string]struct{}
	counter   uint32
}

func newNamer() *namer {
	return &namer{
		usedNames: make(map[string]struct{}),
	}
}

// reserve marks a name as taken.
func (n *namer) reserve(name string) {
	n.usedNames[name] = struct{}{}
}

// call generates a unique name based on the given source identifier.
func (n *namer) call(base string) string {
	return n.unique(escapeKeyword(base))
}

// unique returns escaped, or escaped with a numeric suffix when taken.
func (n *namer) unique(escaped string) string {
	// First try the base name directly
	if _, used := n.usedNames[escaped]; !used {
		n.usedNames[escaped] = struct{}{}
		return escaped
	}

	// Add numeric suffix
	for {
		n.counter++
		candidate := fmt.Sprintf("%s_%d", escaped, n.counter)
		if _, used := n.usedNames[candidate]; !used {
			n.usedNames[candidate] = struct{}{}
			return candidate
		}
	}
}

// newWriter creates a new GLSL writer.
func newWriter(env Environment) *Writer {
	return &Writer{
		env:           env,
		version:       env.version(),
		namer:         newNamer(),
		structNames:   make(map[int]string),
		constantNames: make(map[int]string),
		variableNames: make(map[int]string),
		functionNames: make(map[int]string),
		structs:       make(map[int]*ast.DeclareStructStatement),
		functions:     make(map[int]*ast.DeclareFunctionStatement),
	}
}

// String returns the generated GLSL source code.
func (w *Writer) String() string {
	return w.out.String()
}

func (w *Writer) errorf(span ast.Span, format string, args ...any) error {
	return ast.Errorf(ast.ErrBackend, span, format, args...)
}

// writeModule generates GLSL code for the selected entry point.
func (w *Writer) writeModule(module *ast.Module) error {
	if err := checkSanitized(module); err != nil {
		return err
	}

	// for loops are lowered to while loops, GLSL has no range iteration
	lowered, err := sanitize.Sanitize(module, sanitize.Options{
		ReduceLoopsToWhile: true,
		OptionValues:       w.env.OptionValues,
	})
	if err != nil {
		return err
	}
	constants, err := ast.ResolveConstants(lowered, w.env.OptionValues)
	if err != nil {
		return w.errorf(ast.Span{}, "%v", err)
	}
	w.module = lowered
	w.constants = constants

	// 1. Declarations enabled by the option values
	for _, im := range lowered.ImportedModules {
		if err := w.collect(im.Module.RootNode); err != nil {
			return err
		}
	}
	if err := w.collect(lowered.RootNode); err != nil {
		return err
	}

	// 2. Entry point and the functions it calls
	if err := w.selectEntryPoint(); err != nil {
		return err
	}
	w.markReachable(w.entry, make(map[int]bool))

	// 3. Register all names
	w.registerNames()

	// 4. Write version directive
	w.writeVersionDirective()

	// 5. Write precision qualifiers (ES only)
	w.writePrecisionQualifiers()

	// 6. Write type definitions (structs)
	if err := w.writeTypes(); err != nil {
		return err
	}

	// 7. Write constants and options
	if err := w.writeConstants(); err != nil {
		return err
	}

	// 8. Write externals
	if err := w.writeExternals(); err != nil {
		return err
	}

	// 9. Write inputs, outputs and stage layouts
	if err := w.writeInterface(); err != nil {
		return err
	}

	// 10. Write functions
	for _, fn := range w.reachable {
		if err := w.writeFunction(fn); err != nil {
			return err
		}
	}

	// 11. Write the generated main
	if err := w.writeMain(); err != nil {
		return err
	}

	if w.usesDouble && !w.version.supportsDouble() {
		return w.errorf(ast.Span{}, "64-bit floats require GLSL 4.00, target is %s", w.version)
	}
	return nil
}

// checkSanitized rejects modules that did not go through the sanitizer.
func checkSanitized(m *ast.Module) error {
	if m == nil || m.RootNode == nil {
		return ast.Errorf(ast.ErrBackend, ast.Span{}, "empty module")
	}
	var err error
	check := func(n ast.Node) bool {
		if fn, ok := n.(*ast.DeclareFunctionStatement); ok && fn.FuncID == 0 && err == nil {
			err = ast.Errorf(ast.ErrBackend, fn.Span, "function %s is not sanitized", fn.Name)
		}
		return err == nil
	}
	for _, im := range m.ImportedModules {
		ast.Inspect(im.Module.RootNode, check)
	}
	ast.Inspect(m.RootNode, check)
	return err
}

// constantLookup reads resolved constants and options.
func (w *Writer) constantLookup(id int) (ast.ConstantValue, bool) {
	v, ok := w.constants[id]
	return v, ok
}

// evaluateCondition evaluates a compile-time condition.
func (w *Writer) evaluateCondition(e ast.Expression) (bool, error) {
	v, err := ast.EvaluateConstant(e, w.constantLookup)
	if err != nil {
		return false, w.errorf(e.Pos(), "cannot evaluate condition: %v", err)
	}
	value, ok := v.(ast.BoolValue)
	if !ok {
		return false, w.errorf(e.Pos(), "condition must be a boolean, got %s", v.Type())
	}
	return bool(value), nil
}

// selectConstBranch returns the statement a const branch selects, or nil.
func (w *Writer) selectConstBranch(st *ast.BranchStatement) (ast.Statement, error) {
	for _, cb := range st.CondStatements {
		ok, err := w.evaluateCondition(cb.Condition)
		if err != nil {
			return nil, err
		}
		if ok {
			return cb.Statement, nil
		}
	}
	return st.ElseStatement, nil
}

// collect registers the top-level declarations enabled by the option values.
func (w *Writer) collect(st ast.Statement) error {
	switch s := st.(type) {
	case *ast.MultiStatement:
		for _, inner := range s.Statements {
			if err := w.collect(inner); err != nil {
				return err
			}
		}
	case *ast.ScopedStatement:
		return w.collect(s.Statement)
	case *ast.ConditionalStatement:
		enabled, err := w.evaluateCondition(s.Condition)
		if err != nil || !enabled {
			return err
		}
		return w.collect(s.Statement)
	case *ast.BranchStatement:
		if !s.IsConst {
			return w.errorf(s.Span, "branch outside of a function")
		}
		selected, err := w.selectConstBranch(s)
		if err != nil || selected == nil {
			return err
		}
		return w.collect(selected)
	case *ast.DeclareStructStatement:
		w.structs[s.StructID] = s
		w.structOrder = append(w.structOrder, s)
	case *ast.DeclareFunctionStatement:
		w.functions[s.FuncID] = s
		w.functionOrder = append(w.functionOrder, s)
	case *ast.DeclareExternalStatement:
		for i := range s.Externals {
			w.externals = append(w.externals, &s.Externals[i])
		}
	case *ast.DeclareOptionStatement:
		w.globals = append(w.globals, globalConstant{id: s.OptionID, name: s.OptName})
	case *ast.DeclareConstStatement:
		w.globals = append(w.globals, globalConstant{id: s.ConstID, name: s.Name})
	}
	return nil
}

// selectEntryPoint finds the entry function of the requested stage.
func (w *Writer) selectEntryPoint() error {
	local := make(map[*ast.DeclareFunctionStatement]bool)
	for _, fn := range w.module.EntryPoints() {
		local[fn] = true
	}
	for _, fn := range w.functionOrder {
		if !local[fn] || fn.EntryStage.Value != w.env.Stage {
			continue
		}
		if w.env.EntryPoint == "" || fn.Name == w.env.EntryPoint {
			w.entry = fn
			return nil
		}
	}
	if w.env.EntryPoint != "" {
		return w.errorf(ast.Span{}, "module has no %s entry point named %s", w.env.Stage, w.env.EntryPoint)
	}
	return w.errorf(ast.Span{}, "module has no %s entry point", w.env.Stage)
}

// markReachable appends fn and the functions it calls to w.reachable,
// callees first.
func (w *Writer) markReachable(fn *ast.DeclareFunctionStatement, visited map[int]bool) {
	if visited[fn.FuncID] {
		return
	}
	visited[fn.FuncID] = true
	body := &ast.MultiStatement{Statements: fn.Statements}
	ast.Inspect(body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallFunctionExpression)
		if !ok {
			return true
		}
		if target, ok := call.TargetFunction.(*ast.FunctionExpression); ok {
			if callee, ok := w.functions[target.FunctionID]; ok {
				w.markReachable(callee, visited)
			}
		}
		return true
	})
	w.reachable = append(w.reachable, fn)
}

// registerNames assigns unique GLSL names to the declarations.
func (w *Writer) registerNames() {
	w.namer.reserve("main")

	for _, st := range w.structOrder {
		w.structNames[st.StructID] = w.namer.call(st.Description.Name)
	}
	for _, c := range w.globals {
		w.constantNames[c.id] = w.namer.call(c.name)
	}
	for _, ext := range w.externals {
		w.variableNames[ext.VarID] = w.namer.call(ext.Name)
	}
	for _, fn := range w.reachable {
		w.functionNames[fn.FuncID] = w.namer.call(fn.Name)
	}
}

// writeVersionDirective writes the #version directive.
func (w *Writer) writeVersionDirective() {
	w.writeLine("#version %s", w.version)
	w.writeLine("")
}

// writePrecisionQualifiers writes precision qualifiers for ES.
func (w *Writer) writePrecisionQualifiers() {
	if !w.version.ES {
		return
	}

	// ES requires precision qualifiers
	w.writeLine("precision highp float;")
	w.writeLine("precision highp int;")
	w.writeLine("precision highp sampler2D;")
	w.writeLine("precision highp sampler3D;")
	w.writeLine("precision highp samplerCube;")
	w.writeLine("")
}

// structType rebuilds the type of a struct declaration.
func structType(st *ast.DeclareStructStatement) ast.StructType {
	t := ast.StructType{StructID: st.StructID, Name: st.Description.Name}
	for _, m := range st.Description.Members {
		t.Members = append(t.Members, ast.StructMemberType{Name: m.Name, Type: resolvedType(m.Type)})
	}
	return t
}

// writeTypes writes struct definitions, dependencies first. Structs holding
// a runtime array only exist as buffer blocks.
func (w *Writer) writeTypes() error {
	written := make(map[int]bool)
	var write func(st *ast.DeclareStructStatement) error
	write = func(st *ast.DeclareStructStatement) error {
		if written[st.StructID] {
			return nil
		}
		written[st.StructID] = true
		t := structType(st)
		for _, m := range t.Members {
			if dep, ok := innermostElement(m.Type).(ast.StructType); ok {
				if decl, ok := w.structs[dep.StructID]; ok {
					if err := write(decl); err != nil {
						return err
					}
				}
			}
		}
		if containsRuntimeArray(t) {
			return nil
		}

		w.writeLine("struct %s {", w.structNames[st.StructID])
		w.pushIndent()
		if err := w.writeMembers(t); err != nil {
			return err
		}
		w.popIndent()
		w.writeLine("};")
		w.writeLine("")
		return nil
	}
	for _, st := range w.structOrder {
		if err := write(st); err != nil {
			return err
		}
	}
	return nil
}

// writeMembers writes the member declarations of a struct or block.
func (w *Writer) writeMembers(t ast.StructType) error {
	for _, m := range t.Members {
		decl, err := w.declaration(m.Type, escapeKeyword(m.Name))
		if err != nil {
			return fmt.Errorf("struct %s member %s: %w", t.Name, m.Name, err)
		}
		w.writeLine("%s;", decl)
	}
	return nil
}

// writeConstants writes constants and options with their resolved values.
func (w *Writer) writeConstants() error {
	for _, c := range w.globals {
		v, ok := w.constants[c.id]
		if !ok {
			return w.errorf(ast.Span{}, "constant %s has no value", c.name)
		}
		if err := w.writeConstant(w.constantNames[c.id], v); err != nil {
			return err
		}
	}
	if len(w.globals) > 0 {
		w.writeLine("")
	}
	return nil
}

func (w *Writer) writeConstant(name string, v ast.ConstantValue) error {
	decl, err := w.declaration(v.Type(), name)
	if err != nil {
		return err
	}
	value, err := w.literal(v)
	if err != nil {
		return err
	}
	w.writeLine("const %s = %s;", decl, value)
	return nil
}

// usedExternals returns the externals read by the reachable functions,
// ordered by set and binding.
func (w *Writer) usedExternals() []*ast.ExternalVar {
	used := make(map[int]bool)
	for _, fn := range w.reachable {
		ast.Inspect(&ast.MultiStatement{Statements: fn.Statements}, func(n ast.Node) bool {
			if v, ok := n.(*ast.VariableValueExpression); ok {
				used[v.VariableID] = true
			}
			return true
		})
	}
	var out []*ast.ExternalVar
	for _, ext := range w.externals {
		if used[ext.VarID] {
			out = append(out, ext)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.BindingSet.Value != b.BindingSet.Value {
			return a.BindingSet.Value < b.BindingSet.Value
		}
		return a.BindingIndex.Value < b.BindingIndex.Value
	})
	return out
}

// binding returns the GLSL binding point of an external.
func (w *Writer) binding(ext *ast.ExternalVar) uint32 {
	key := Binding{Set: ext.BindingSet.Value, Binding: ext.BindingIndex.Value}
	if b, ok := w.env.BindingMapping[key]; ok {
		return b
	}
	return key.Binding
}

// layoutQualifier joins layout arguments, adding the binding point when the
// version supports it.
func (w *Writer) layoutQualifier(ext *ast.ExternalVar, args ...string) string {
	if w.version.SupportsExplicitBinding() {
		args = append(args, fmt.Sprintf("binding = %d", w.binding(ext)))
	}
	if len(args) == 0 {
		return ""
	}
	return fmt.Sprintf("layout(%s) ", strings.Join(args, ", "))
}

// writeExternals writes uniform blocks, storage blocks and samplers.
func (w *Writer) writeExternals() error {
	externals := w.usedExternals()
	for _, ext := range externals {
		name := w.variableNames[ext.VarID]
		switch t := resolvedType(ext.Type).(type) {
		case ast.UniformType:
			w.writeLine("%suniform _nzslBinding_%s {", w.layoutQualifier(ext, "std140"), name)
			if err := w.writeBlockMembers(t.Container); err != nil {
				return err
			}
			w.writeLine("} %s;", name)
		case ast.StorageType:
			if !w.version.SupportsStorageBuffers() {
				return w.errorf(ext.Span, "storage buffer %s requires GLSL 4.30 or GLSL ES 3.10, target is %s", ext.Name, w.version)
			}
			layout := "std430"
			if decl, ok := w.structs[t.Container.StructID]; ok && decl.Description.Layout.Resolved && decl.Description.Layout.Value == ast.LayoutStd140 {
				layout = "std140"
			}
			w.writeLine("%sbuffer _nzslBinding_%s {", w.layoutQualifier(ext, layout), name)
			if err := w.writeBlockMembers(t.Container); err != nil {
				return err
			}
			w.writeLine("} %s;", name)
		case ast.SamplerType:
			w.writeLine("%suniform %s %s;", w.layoutQualifier(ext), samplerName(t), name)
		default:
			return w.errorf(ext.Span, "external %s has unsupported type %s", ext.Name, t)
		}
	}
	if len(externals) > 0 {
		w.writeLine("")
	}
	return nil
}

func (w *Writer) writeBlockMembers(t ast.StructType) error {
	w.pushIndent()
	defer w.popIndent()
	return w.writeMembers(t)
}

// resolvedType returns the type a sanitized type annotation denotes.
func resolvedType(e ast.Expression) ast.ExpressionType {
	if e == nil {
		return ast.NoType{}
	}
	if te, ok := e.(*ast.TypeExpression); ok {
		return te.Value
	}
	return e.ResolvedType()
}

// writeFunction writes a single function definition.
func (w *Writer) writeFunction(fn *ast.DeclareFunctionStatement) error {
	returnType, err := w.typeName(resolvedType(fn.ReturnType))
	if err != nil {
		return w.errorf(fn.Span, "function %s: %v", fn.Name, err)
	}

	// Arguments
	args := make([]string, 0, len(fn.Parameters))
	for _, p := range fn.Parameters {
		name := w.namer.call(p.Name)
		w.variableNames[p.VarID] = name
		decl, err := w.declaration(resolvedType(p.Type), name)
		if err != nil {
			return w.errorf(p.Span, "parameter %s: %v", p.Name, err)
		}
		args = append(args, decl)
	}

	w.writeLine("%s %s(%s) {", returnType, w.functionNames[fn.FuncID], strings.Join(args, ", "))
	w.pushIndent()
	if err := w.writeStatements(fn.Statements); err != nil {
		return err
	}
	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
	return nil
}

// Output helpers

// writeLine writes a line with indentation and newline.
//
//nolint:goprintffuncname
func (w *Writer) writeLine(format string, args ...any) {
	w.writeIndent()
	if len(args) == 0 {
		w.out.WriteString(format)
	} else {
		fmt.Fprintf(&w.out, format, args...)
	}
	w.out.WriteByte('\n')
}

// writeIndent writes the current indentation.
func (w *Writer) writeIndent() {
	for i := 0; i < w.indent; i++ {
		w.out.WriteString("    ")
	}
}

// pushIndent increases indentation.
func (w *Writer) pushIndent() {
	w.indent++
}

// popIndent decreases indentation.
func (w *Writer) popIndent() {
	if w.indent > 0 {
		w.indent--
	}
}
