package spirv

import (
	"fmt"

	"github.com/gogpu/nzsl/ast"
	"github.com/gogpu/nzsl/sanitize"
)

// Backend translates sanitized nzsl modules to SPIR-V.
type Backend struct {
	module  *ast.Module
	builder *ModuleBuilder
	types   *typeRegistry
	env     Environment

	// Values of every constant and option (ID → value)
	constants map[int]ast.ConstantValue

	// Declarations selected by the option values
	structs   map[int]*ast.DeclareStructStatement
	functions map[int]*functionInfo
	order     []*functionInfo
	externals []*ast.ExternalVar

	// Global variable cache (VarID → variable)
	globals   map[int]variable
	globalIDs []uint32

	// Type IDs already carrying Block or layout decorations
	blocks  map[uint32]bool
	laidOut map[uint32]bool

	// GLSL.std.450 import ID (for math functions)
	glslExtID uint32
}

// functionInfo is a function selected for emission.
type functionInfo struct {
	decl   *ast.DeclareFunctionStatement
	id     uint32
	local  bool           // declared by the compiled module rather than an import
	stages ast.StageFlags // stages whose entry points reach the function
}

// variable is a pointer to a global or function-local value.
type variable struct {
	id    uint32
	class StorageClass
	typ   ast.ExpressionType
}

// NewBackend creates a new SPIR-V backend.
func NewBackend(env Environment) *Backend {
	return &Backend{env: env}
}

func (b *Backend) reset(module *ast.Module, constants map[int]ast.ConstantValue) {
	b.module = module
	b.builder = NewModuleBuilder(b.env.Version)
	b.types = newTypeRegistry(b.builder)
	b.types.debug = b.env.Debug
	b.constants = constants
	b.structs = make(map[int]*ast.DeclareStructStatement)
	b.functions = make(map[int]*functionInfo)
	b.order = nil
	b.externals = nil
	b.globals = make(map[int]variable)
	b.globalIDs = nil
	b.blocks = make(map[uint32]bool)
	b.laidOut = make(map[uint32]bool)
}

func (b *Backend) errorf(span ast.Span, format string, args ...any) error {
	return ast.Errorf(ast.ErrBackend, span, format, args...)
}

// Compile translates a sanitized module to a SPIR-V word stream. The module
// is not modified.
func (b *Backend) Compile(module *ast.Module) ([]uint32, error) {
	if b.env.Version.Major != 1 || b.env.Version.Minor > 6 {
		return nil, b.errorf(ast.Span{}, "unsupported SPIR-V version %d.%d", b.env.Version.Major, b.env.Version.Minor)
	}
	if err := checkSanitized(module); err != nil {
		return nil, err
	}

	// Control flow and matrix casts must be in the form the writer expects.
	lowered, err := sanitize.Sanitize(module, sanitize.Options{
		SplitMultipleBranches: true,
		ReduceLoopsToWhile:    true,
		RemoveMatrixCast:      true,
		OptionValues:          b.env.OptionValues,
	})
	if err != nil {
		return nil, err
	}
	constants, err := ast.ResolveConstants(lowered, b.env.OptionValues)
	if err != nil {
		return nil, b.errorf(ast.Span{}, "%v", err)
	}
	b.reset(lowered, constants)

	// 1. Capabilities
	b.builder.AddCapability(CapabilityShader)
	for _, c := range b.env.Capabilities {
		b.builder.AddCapability(c)
	}

	// 2. Extended instruction sets
	b.glslExtID = b.builder.AddExtInstImport("GLSL.std.450")

	// 3. Memory model
	b.builder.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)

	if b.env.Debug {
		b.emitSource(lowered)
	}

	// 4. Declarations enabled by the option values
	for _, im := range lowered.ImportedModules {
		if err := b.collect(im.Module.RootNode, false); err != nil {
			return nil, err
		}
	}
	if err := b.collect(lowered.RootNode, true); err != nil {
		return nil, err
	}

	// 5. Entry points and the functions they reach
	entries, err := b.selectEntryPoints()
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		b.markReachable(entry, entry.decl.EntryStage.Value)
	}

	// 6. Global variables
	if err := b.emitGlobals(); err != nil {
		return nil, err
	}

	// 7. Functions
	for _, fn := range b.order {
		if fn.stages == 0 {
			continue
		}
		if err := b.emitFunction(fn); err != nil {
			return nil, err
		}
	}

	// 8. Entry point wrappers
	for _, entry := range entries {
		if err := b.emitEntryPoint(entry); err != nil {
			return nil, err
		}
	}

	return b.builder.Build(), nil
}

// emitSource names the source language version and the file the module was
// parsed from.
func (b *Backend) emitSource(m *ast.Module) {
	var file uint32
	if name := sourceFile(m); name != "" {
		file = b.builder.AddString(name)
	}
	version := uint32(ast.LangVersion100)
	if m.Metadata != nil && m.Metadata.LangVersion != 0 {
		version = m.Metadata.LangVersion
	}
	b.builder.AddSource(SourceLanguageUnknown, version, file)
}

func sourceFile(m *ast.Module) string {
	if m.RootNode.Span.File != "" {
		return m.RootNode.Span.File
	}
	for _, st := range m.RootNode.Statements {
		if f := st.Pos().File; f != "" {
			return f
		}
	}
	return ""
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
func (b *Backend) constantLookup(id int) (ast.ConstantValue, bool) {
	v, ok := b.constants[id]
	return v, ok
}

// evaluateCondition evaluates a compile-time condition.
func (b *Backend) evaluateCondition(e ast.Expression) (bool, error) {
	v, err := ast.EvaluateConstant(e, b.constantLookup)
	if err != nil {
		return false, b.errorf(e.Pos(), "cannot evaluate condition: %v", err)
	}
	value, ok := v.(ast.BoolValue)
	if !ok {
		return false, b.errorf(e.Pos(), "condition must be a boolean, got %s", v.Type())
	}
	return bool(value), nil
}

// selectConstBranch returns the statement a const branch selects, or nil.
func (b *Backend) selectConstBranch(st *ast.BranchStatement) (ast.Statement, error) {
	for _, cb := range st.CondStatements {
		ok, err := b.evaluateCondition(cb.Condition)
		if err != nil {
			return nil, err
		}
		if ok {
			return cb.Statement, nil
		}
	}
	return st.ElseStatement, nil
}

// collect registers the top-level declarations of a module that are enabled
// by the option values.
func (b *Backend) collect(st ast.Statement, local bool) error {
	switch s := st.(type) {
	case *ast.MultiStatement:
		for _, inner := range s.Statements {
			if err := b.collect(inner, local); err != nil {
				return err
			}
		}
	case *ast.ScopedStatement:
		return b.collect(s.Statement, local)
	case *ast.ConditionalStatement:
		enabled, err := b.evaluateCondition(s.Condition)
		if err != nil || !enabled {
			return err
		}
		return b.collect(s.Statement, local)
	case *ast.BranchStatement:
		if !s.IsConst {
			return b.errorf(s.Span, "branch outside of a function")
		}
		selected, err := b.selectConstBranch(s)
		if err != nil || selected == nil {
			return err
		}
		return b.collect(selected, local)
	case *ast.DeclareStructStatement:
		b.structs[s.StructID] = s
	case *ast.DeclareFunctionStatement:
		info := &functionInfo{decl: s, id: b.builder.AllocID(), local: local}
		b.functions[s.FuncID] = info
		b.order = append(b.order, info)
	case *ast.DeclareExternalStatement:
		for i := range s.Externals {
			b.externals = append(b.externals, &s.Externals[i])
		}
	}
	return nil
}

// selectEntryPoints returns the entry points of the compiled module for the
// requested stages.
func (b *Backend) selectEntryPoints() ([]*functionInfo, error) {
	var wanted ast.StageFlags
	for _, s := range b.env.Stages {
		wanted |= ast.StageFlag(s)
	}
	if wanted == 0 {
		wanted = ast.AllStages
	}

	var entries []*functionInfo
	var found ast.StageFlags
	for _, fn := range b.order {
		if !fn.local || !fn.decl.IsEntryPoint() {
			continue
		}
		stage := fn.decl.EntryStage.Value
		if wanted.Has(stage) {
			entries = append(entries, fn)
			found |= ast.StageFlag(stage)
		}
	}
	for _, s := range b.env.Stages {
		if !found.Has(s) {
			return nil, b.errorf(ast.Span{}, "module has no %s entry point", s)
		}
	}
	if len(entries) == 0 {
		return nil, b.errorf(ast.Span{}, "module has no entry point")
	}
	return entries, nil
}

// markReachable records that fn runs in the given stage, as do the
// functions it calls.
func (b *Backend) markReachable(fn *functionInfo, stage ast.ShaderStage) {
	if fn.stages.Has(stage) {
		return
	}
	fn.stages |= ast.StageFlag(stage)
	body := &ast.MultiStatement{Statements: fn.decl.Statements}
	ast.Inspect(body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallFunctionExpression)
		if !ok {
			return true
		}
		if target, ok := call.TargetFunction.(*ast.FunctionExpression); ok {
			if callee, ok := b.functions[target.FunctionID]; ok {
				b.markReachable(callee, stage)
			}
		}
		return true
	})
}

// structLayout returns the declared memory layout of a struct, or fallback.
func (b *Backend) structLayout(st ast.StructType, fallback ast.MemoryLayout) ast.MemoryLayout {
	if decl, ok := b.structs[st.StructID]; ok && decl.Description.Layout.Resolved {
		return decl.Description.Layout.Value
	}
	return fallback
}

// emitGlobals declares the externals as global variables.
func (b *Backend) emitGlobals() error {
	for _, ext := range b.externals {
		t := resolvedType(ext.Type)
		var class StorageClass
		switch x := t.(type) {
		case ast.UniformType:
			class = StorageClassUniform
			if err := b.declareBlock(x.Container, DecorationBlock, ast.LayoutStd140); err != nil {
				return b.errorf(ext.Span, "external %s: %v", ext.Name, err)
			}
		case ast.StorageType:
			class = StorageClassStorageBuffer
			decoration := DecorationBlock
			if !b.env.Version.AtLeast(Version1_3) {
				class = StorageClassUniform
				decoration = DecorationBufferBlock
			}
			if err := b.declareBlock(x.Container, decoration, ast.LayoutStd430); err != nil {
				return b.errorf(ext.Span, "external %s: %v", ext.Name, err)
			}
		case ast.SamplerType:
			class = StorageClassUniformConstant
		default:
			return b.errorf(ext.Span, "external %s has unsupported type %s", ext.Name, t)
		}

		ptr, err := b.types.pointerTo(class, t)
		if err != nil {
			return b.errorf(ext.Span, "external %s: %v", ext.Name, err)
		}
		id := b.builder.AddVariable(ptr, class)
		b.builder.AddDecorate(id, DecorationDescriptorSet, ext.BindingSet.Value)
		b.builder.AddDecorate(id, DecorationBinding, ext.BindingIndex.Value)
		if b.env.Debug {
			b.builder.AddName(id, ext.Name)
		}
		b.globals[ext.VarID] = variable{id: id, class: class, typ: t}
		b.globalIDs = append(b.globalIDs, id)
	}
	return nil
}

// declareBlock decorates the container struct of a buffer.
func (b *Backend) declareBlock(st ast.StructType, decoration Decoration, fallback ast.MemoryLayout) error {
	id, err := b.types.typeID(st)
	if err != nil {
		return err
	}
	if !b.blocks[id] {
		b.blocks[id] = true
		b.builder.AddDecorate(id, decoration)
	}
	return b.decorateLayout(st, b.structLayout(st, fallback))
}

// decorateLayout emits the offset and stride decorations of a type stored
// in a buffer. Each type is decorated once, with the first layout it is
// used with.
func (b *Backend) decorateLayout(t ast.ExpressionType, layout ast.MemoryLayout) error {
	switch x := t.(type) {
	case ast.StructType:
		id, err := b.types.typeID(x)
		if err != nil {
			return err
		}
		if b.laidOut[id] {
			return nil
		}
		b.laidOut[id] = true
		offsets, _, _, err := structLayout(x, layout)
		if err != nil {
			return err
		}
		for i, m := range x.Members {
			b.builder.AddMemberDecorate(id, uint32(i), DecorationOffset, offsets[i])
			if mat, ok := innermostElement(m.Type).(ast.MatrixType); ok {
				stride, err := matrixStride(mat, layout)
				if err != nil {
					return err
				}
				b.builder.AddMemberDecorate(id, uint32(i), DecorationColMajor)
				b.builder.AddMemberDecorate(id, uint32(i), DecorationMatrixStride, stride)
			}
			if err := b.decorateLayout(m.Type, layout); err != nil {
				return err
			}
		}
	case ast.ArrayType:
		id, err := b.types.typeID(x)
		if err != nil {
			return err
		}
		if b.laidOut[id] {
			return nil
		}
		b.laidOut[id] = true
		stride, _, err := arrayStride(x, layout)
		if err != nil {
			return err
		}
		b.builder.AddDecorate(id, DecorationArrayStride, stride)
		return b.decorateLayout(x.ContainedType, layout)
	}
	return nil
}

// innermostElement strips array types.
func innermostElement(t ast.ExpressionType) ast.ExpressionType {
	for {
		a, ok := t.(ast.ArrayType)
		if !ok {
			return t
		}
		t = a.ContainedType
	}
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

// emitFunction emits a user function. Parameters are copied into function
// variables so they can be assigned to.
func (b *Backend) emitFunction(fn *functionInfo) error {
	decl := fn.decl
	returnType := resolvedType(decl.ReturnType)
	returnTypeID, err := b.types.typeID(returnType)
	if err != nil {
		return b.errorf(decl.Span, "function %s: %v", decl.Name, err)
	}
	paramTypes := make([]ast.ExpressionType, len(decl.Parameters))
	paramTypeIDs := make([]uint32, len(decl.Parameters))
	for i, p := range decl.Parameters {
		paramTypes[i] = resolvedType(p.Type)
		if paramTypeIDs[i], err = b.types.typeID(paramTypes[i]); err != nil {
			return b.errorf(p.Span, "parameter %s: %v", p.Name, err)
		}
	}
	funcTypeID := b.types.functionType(returnTypeID, paramTypeIDs...)

	fb := b.builder.NewFunction(fn.id, returnTypeID, funcTypeID)
	if b.env.Debug {
		b.builder.AddName(fn.id, decl.Name)
	}

	emitter := &ExpressionEmitter{
		backend:    b,
		fb:         fb,
		function:   fn,
		returnType: returnType,
		locals:     make(map[int]variable),
	}
	for i, p := range decl.Parameters {
		paramID := fb.AddParameter(paramTypeIDs[i])
		ptr := b.types.pointerType(StorageClassFunction, paramTypeIDs[i])
		varID := fb.AddVariable(ptr)
		fb.AddStore(varID, paramID)
		emitter.locals[p.VarID] = variable{id: varID, class: StorageClassFunction, typ: paramTypes[i]}
		if b.env.Debug {
			b.builder.AddName(varID, p.Name)
		}
	}

	for _, st := range decl.Statements {
		if err := emitter.emitStatement(st); err != nil {
			return err
		}
	}
	if !fb.Terminated() {
		if ast.IsVoid(returnType) {
			fb.AddReturn()
		} else {
			fb.AddUnreachable()
		}
	}
	b.builder.AddFunction(fb)
	return nil
}

// emitEntryPoint generates the void function the pipeline calls. It loads
// every input into the input struct, calls the entry function and stores
// each member of the returned struct into an output variable.
func (b *Backend) emitEntryPoint(fn *functionInfo) error {
	decl := fn.decl
	stage := decl.EntryStage.Value

	voidID, err := b.types.typeID(ast.NoType{})
	if err != nil {
		return err
	}
	wrapperID := b.builder.AllocID()
	wrapper := b.builder.NewFunction(wrapperID, voidID, b.types.functionType(voidID))

	var interfaces []uint32
	var args []uint32
	if len(decl.Parameters) == 1 {
		input, ok := resolvedType(decl.Parameters[0].Type).(ast.StructType)
		if !ok {
			return b.errorf(decl.Span, "entry point %s input must be a struct", decl.Name)
		}
		inputTypeID, err := b.types.typeID(input)
		if err != nil {
			return err
		}
		values := make([]uint32, len(input.Members))
		for i, m := range input.Members {
			id, err := b.interfaceVariable(input, i, StorageClassInput, stage)
			if err != nil {
				return err
			}
			interfaces = append(interfaces, id)
			memberTypeID, err := b.types.typeID(m.Type)
			if err != nil {
				return err
			}
			values[i] = wrapper.AddLoad(memberTypeID, id)
		}
		args = append(args, wrapper.AddCompositeConstruct(inputTypeID, values...))
	}

	returnType := resolvedType(decl.ReturnType)
	returnTypeID, err := b.types.typeID(returnType)
	if err != nil {
		return err
	}
	result := wrapper.AddFunctionCall(returnTypeID, fn.id, args...)

	writesDepth := false
	if output, ok := returnType.(ast.StructType); ok {
		for i, m := range output.Members {
			id, err := b.interfaceVariable(output, i, StorageClassOutput, stage)
			if err != nil {
				return err
			}
			interfaces = append(interfaces, id)
			memberTypeID, err := b.types.typeID(m.Type)
			if err != nil {
				return err
			}
			wrapper.AddStore(id, wrapper.AddCompositeExtract(memberTypeID, result, uint32(i)))
			if member := b.structMember(output, i); member != nil && member.Builtin.Resolved && member.Builtin.Value == ast.BuiltinFragDepth {
				writesDepth = true
			}
		}
	}
	wrapper.AddReturn()
	b.builder.AddFunction(wrapper)

	// Since SPIR-V 1.4 the interface lists every global the entry point uses.
	if b.env.Version.AtLeast(Version1_4) {
		interfaces = append(interfaces, b.globalIDs...)
	}

	switch stage {
	case ast.StageVertex:
		b.builder.AddEntryPoint(ExecutionModelVertex, wrapperID, decl.Name, interfaces)
	case ast.StageFragment:
		b.builder.AddEntryPoint(ExecutionModelFragment, wrapperID, decl.Name, interfaces)
		b.builder.AddExecutionMode(wrapperID, ExecutionModeOriginUpperLeft)
		if decl.EarlyFragmentTests.Value {
			b.builder.AddExecutionMode(wrapperID, ExecutionModeEarlyFragmentTests)
		}
		if writesDepth {
			b.builder.AddExecutionMode(wrapperID, ExecutionModeDepthReplacing)
			if decl.DepthWrite.Resolved {
				switch decl.DepthWrite.Value {
				case ast.DepthWriteGreater:
					b.builder.AddExecutionMode(wrapperID, ExecutionModeDepthGreater)
				case ast.DepthWriteLess:
					b.builder.AddExecutionMode(wrapperID, ExecutionModeDepthLess)
				case ast.DepthWriteUnchanged:
					b.builder.AddExecutionMode(wrapperID, ExecutionModeDepthUnchanged)
				}
			}
		}
	case ast.StageCompute:
		b.builder.AddEntryPoint(ExecutionModelGLCompute, wrapperID, decl.Name, interfaces)
		size := [3]uint32{1, 1, 1}
		if decl.Workgroup.Resolved {
			size = decl.Workgroup.Value
		}
		b.builder.AddExecutionMode(wrapperID, ExecutionModeLocalSize, size[0], size[1], size[2])
	default:
		return b.errorf(decl.Span, "unsupported shader stage %s", stage)
	}
	return nil
}

// structMember returns the declaration of member i of st.
func (b *Backend) structMember(st ast.StructType, i int) *ast.StructMember {
	decl, ok := b.structs[st.StructID]
	if !ok || i >= len(decl.Description.Members) {
		return nil
	}
	return &decl.Description.Members[i]
}

// interfaceVariable declares the input or output variable of member i of an
// entry point struct.
func (b *Backend) interfaceVariable(st ast.StructType, i int, class StorageClass, stage ast.ShaderStage) (uint32, error) {
	m := st.Members[i]
	member := b.structMember(st, i)
	if member == nil {
		return 0, b.errorf(ast.Span{}, "unknown struct %s", st.Name)
	}
	ptr, err := b.types.pointerTo(class, m.Type)
	if err != nil {
		return 0, b.errorf(member.Span, "member %s: %v", m.Name, err)
	}
	id := b.builder.AddVariable(ptr, class)
	switch {
	case member.Builtin.Resolved:
		builtin, err := builtinDecoration(member.Builtin.Value)
		if err != nil {
			return 0, b.errorf(member.Span, "%v", err)
		}
		b.builder.AddDecorate(id, DecorationBuiltIn, uint32(builtin))
	case member.LocationIndex.Resolved:
		b.builder.AddDecorate(id, DecorationLocation, member.LocationIndex.Value)
		if p, _ := ast.ScalarOf(m.Type); class == StorageClassInput && stage == ast.StageFragment && p.IsInteger() {
			b.builder.AddDecorate(id, DecorationFlat)
		}
	default:
		return 0, b.errorf(member.Span, "member %s needs a location or builtin attribute", m.Name)
	}
	if b.env.Debug {
		b.builder.AddName(id, st.Name+"_"+m.Name)
	}
	return id, nil
}

func builtinDecoration(e ast.BuiltinEntry) (BuiltIn, error) {
	switch e {
	case ast.BuiltinFragCoord:
		return BuiltInFragCoord, nil
	case ast.BuiltinFragDepth:
		return BuiltInFragDepth, nil
	case ast.BuiltinFrontFacing:
		return BuiltInFrontFacing, nil
	case ast.BuiltinVertexPosition:
		return BuiltInPosition, nil
	case ast.BuiltinVertexIndex:
		return BuiltInVertexIndex, nil
	case ast.BuiltinInstanceIndex:
		return BuiltInInstanceIndex, nil
	case ast.BuiltinGlobalInvocationIndices:
		return BuiltInGlobalInvocationID, nil
	case ast.BuiltinLocalInvocationIndices:
		return BuiltInLocalInvocationID, nil
	case ast.BuiltinLocalInvocationIndex:
		return BuiltInLocalInvocationIndex, nil
	case ast.BuiltinWorkgroupIndices:
		return BuiltInWorkgroupID, nil
	case ast.BuiltinWorkgroupCount:
		return BuiltInNumWorkgroups, nil
	}
	return 0, fmt.Errorf("unsupported builtin %s", e)
}
