package spirv

import (
	"math"
)

// Instruction represents a SPIR-V instruction.
type Instruction struct {
	Opcode OpCode
	Words  []uint32 // result type ID, result ID, operands
}

// InstructionBuilder builds SPIR-V instructions.
type InstructionBuilder struct {
	words []uint32
}

// NewInstructionBuilder creates a new instruction builder.
func NewInstructionBuilder() *InstructionBuilder {
	return &InstructionBuilder{
		words: make([]uint32, 0, 8),
	}
}

// AddWord adds a word to the instruction.
func (b *InstructionBuilder) AddWord(word uint32) {
	b.words = append(b.words, word)
}

// AddWords adds several words to the instruction.
func (b *InstructionBuilder) AddWords(words ...uint32) {
	b.words = append(b.words, words...)
}

// AddString adds a null-terminated UTF-8 string.
func (b *InstructionBuilder) AddString(s string) {
	b.words = append(b.words, stringWords(s)...)
}

// Build builds the instruction with the given opcode.
func (b *InstructionBuilder) Build(opcode OpCode) Instruction {
	return Instruction{
		Opcode: opcode,
		Words:  b.words,
	}
}

// Encode encodes the instruction to binary.
func (i Instruction) Encode() []uint32 {
	wordCount := uint32(len(i.Words) + 1) // +1 for opcode word
	result := make([]uint32, 0, wordCount)
	result = append(result, (wordCount<<16)|uint32(i.Opcode))
	result = append(result, i.Words...)
	return result
}

// stringWords packs s into null-terminated, zero-padded little-endian words.
func stringWords(s string) []uint32 {
	bytes := []byte(s)
	bytes = append(bytes, 0)
	for len(bytes)%4 != 0 {
		bytes = append(bytes, 0)
	}
	words := make([]uint32, 0, len(bytes)/4)
	for i := 0; i < len(bytes); i += 4 {
		words = append(words, uint32(bytes[i])|
			uint32(bytes[i+1])<<8|
			uint32(bytes[i+2])<<16|
			uint32(bytes[i+3])<<24)
	}
	return words
}

// ModuleBuilder builds complete SPIR-V modules.
type ModuleBuilder struct {
	// Header
	version   Version
	generator uint32
	bound     uint32 // max ID + 1
	schema    uint32

	// Sections (ordered per SPIR-V spec)
	capabilities   []Instruction
	extInstImports []Instruction
	memoryModel    *Instruction
	entryPoints    []Instruction
	executionModes []Instruction
	debugStrings   []Instruction // OpString, OpSource
	debugNames     []Instruction // OpName, OpMemberName
	annotations    []Instruction // OpDecorate, OpMemberDecorate
	types          []Instruction // OpType*, OpConstant*
	globalVars     []Instruction // OpVariable (global)
	functions      []Instruction // OpFunction...OpFunctionEnd

	declared map[Capability]bool

	// ID allocation
	nextID uint32
}

// NewModuleBuilder creates a new SPIR-V module builder.
func NewModuleBuilder(version Version) *ModuleBuilder {
	return &ModuleBuilder{
		version:   version,
		generator: GeneratorID,
		declared:  make(map[Capability]bool),
		nextID:    1,
	}
}

// AllocID allocates a new SPIR-V ID.
func (b *ModuleBuilder) AllocID() uint32 {
	id := b.nextID
	b.nextID++
	return id
}

// Bound returns the ID bound of the module built so far.
func (b *ModuleBuilder) Bound() uint32 {
	return b.nextID
}

// AddCapability adds a capability. Repeated capabilities are declared once.
func (b *ModuleBuilder) AddCapability(capability Capability) {
	if b.declared[capability] {
		return
	}
	b.declared[capability] = true
	builder := NewInstructionBuilder()
	builder.AddWord(uint32(capability))
	b.capabilities = append(b.capabilities, builder.Build(OpCapability))
}

// AddExtInstImport imports an extended instruction set.
func (b *ModuleBuilder) AddExtInstImport(name string) uint32 {
	id := b.AllocID()
	builder := NewInstructionBuilder()
	builder.AddWord(id)
	builder.AddString(name)
	b.extInstImports = append(b.extInstImports, builder.Build(OpExtInstImport))
	return id
}

// SetMemoryModel sets the memory model.
func (b *ModuleBuilder) SetMemoryModel(addressing AddressingModel, memory MemoryModel) {
	inst := Instruction{Opcode: OpMemoryModel, Words: []uint32{uint32(addressing), uint32(memory)}}
	b.memoryModel = &inst
}

// AddEntryPoint adds an entry point.
func (b *ModuleBuilder) AddEntryPoint(execModel ExecutionModel, funcID uint32, name string, interfaces []uint32) {
	builder := NewInstructionBuilder()
	builder.AddWord(uint32(execModel))
	builder.AddWord(funcID)
	builder.AddString(name)
	builder.AddWords(interfaces...)
	b.entryPoints = append(b.entryPoints, builder.Build(OpEntryPoint))
}

// AddExecutionMode adds an execution mode.
func (b *ModuleBuilder) AddExecutionMode(entryPoint uint32, mode ExecutionMode, params ...uint32) {
	builder := NewInstructionBuilder()
	builder.AddWord(entryPoint)
	builder.AddWord(uint32(mode))
	builder.AddWords(params...)
	b.executionModes = append(b.executionModes, builder.Build(OpExecutionMode))
}

// AddString adds a debug string.
func (b *ModuleBuilder) AddString(text string) uint32 {
	id := b.AllocID()
	builder := NewInstructionBuilder()
	builder.AddWord(id)
	builder.AddString(text)
	b.debugStrings = append(b.debugStrings, builder.Build(OpString))
	return id
}

// AddSource records the source language of the module. file is the ID of
// an OpString naming the source file, or 0 when unknown.
func (b *ModuleBuilder) AddSource(language SourceLanguage, version, file uint32) {
	builder := NewInstructionBuilder()
	builder.AddWord(uint32(language))
	builder.AddWord(version)
	if file != 0 {
		builder.AddWord(file)
	}
	b.debugStrings = append(b.debugStrings, builder.Build(OpSource))
}

// AddName adds a debug name.
func (b *ModuleBuilder) AddName(id uint32, name string) {
	builder := NewInstructionBuilder()
	builder.AddWord(id)
	builder.AddString(name)
	b.debugNames = append(b.debugNames, builder.Build(OpName))
}

// AddMemberName adds a debug member name.
func (b *ModuleBuilder) AddMemberName(structID, member uint32, name string) {
	builder := NewInstructionBuilder()
	builder.AddWord(structID)
	builder.AddWord(member)
	builder.AddString(name)
	b.debugNames = append(b.debugNames, builder.Build(OpMemberName))
}

// AddDecorate adds a decoration.
func (b *ModuleBuilder) AddDecorate(id uint32, decoration Decoration, params ...uint32) {
	words := append([]uint32{id, uint32(decoration)}, params...)
	b.annotations = append(b.annotations, Instruction{Opcode: OpDecorate, Words: words})
}

// AddMemberDecorate adds a member decoration.
func (b *ModuleBuilder) AddMemberDecorate(structID, member uint32, decoration Decoration, params ...uint32) {
	words := append([]uint32{structID, member, uint32(decoration)}, params...)
	b.annotations = append(b.annotations, Instruction{Opcode: OpMemberDecorate, Words: words})
}

// declareType appends a type declaration whose first operand is its result ID.
func (b *ModuleBuilder) declareType(op OpCode, operands ...uint32) uint32 {
	id := b.AllocID()
	b.types = append(b.types, Instruction{Opcode: op, Words: append([]uint32{id}, operands...)})
	return id
}

// declareConstant appends a constant declaration of the given type.
func (b *ModuleBuilder) declareConstant(op OpCode, typeID uint32, operands ...uint32) uint32 {
	id := b.AllocID()
	b.types = append(b.types, Instruction{Opcode: op, Words: append([]uint32{typeID, id}, operands...)})
	return id
}

// AddTypeVoid adds OpTypeVoid.
func (b *ModuleBuilder) AddTypeVoid() uint32 { return b.declareType(OpTypeVoid) }

// AddTypeBool adds OpTypeBool.
func (b *ModuleBuilder) AddTypeBool() uint32 { return b.declareType(OpTypeBool) }

// AddTypeFloat adds OpTypeFloat.
func (b *ModuleBuilder) AddTypeFloat(width uint32) uint32 { return b.declareType(OpTypeFloat, width) }

// AddTypeInt adds OpTypeInt.
func (b *ModuleBuilder) AddTypeInt(width uint32, signed bool) uint32 {
	var signedness uint32
	if signed {
		signedness = 1
	}
	return b.declareType(OpTypeInt, width, signedness)
}

// AddTypeVector adds OpTypeVector.
func (b *ModuleBuilder) AddTypeVector(componentType uint32, count uint32) uint32 {
	return b.declareType(OpTypeVector, componentType, count)
}

// AddTypeMatrix adds OpTypeMatrix.
func (b *ModuleBuilder) AddTypeMatrix(columnType uint32, columnCount uint32) uint32 {
	return b.declareType(OpTypeMatrix, columnType, columnCount)
}

// AddTypeArray adds OpTypeArray. length is the ID of a constant.
func (b *ModuleBuilder) AddTypeArray(elementType uint32, length uint32) uint32 {
	return b.declareType(OpTypeArray, elementType, length)
}

// AddTypeRuntimeArray adds OpTypeRuntimeArray.
func (b *ModuleBuilder) AddTypeRuntimeArray(elementType uint32) uint32 {
	return b.declareType(OpTypeRuntimeArray, elementType)
}

// AddTypeImage adds a sampled OpTypeImage with an unknown format.
func (b *ModuleBuilder) AddTypeImage(sampledType uint32, dim Dim, depth bool) uint32 {
	var depthWord uint32
	if depth {
		depthWord = 1
	}
	// arrayed 0, multisampled 0, sampled 1, format Unknown
	return b.declareType(OpTypeImage, sampledType, uint32(dim), depthWord, 0, 0, 1, 0)
}

// AddTypeSampledImage adds OpTypeSampledImage.
func (b *ModuleBuilder) AddTypeSampledImage(imageType uint32) uint32 {
	return b.declareType(OpTypeSampledImage, imageType)
}

// AddTypePointer adds OpTypePointer.
func (b *ModuleBuilder) AddTypePointer(storageClass StorageClass, baseType uint32) uint32 {
	return b.declareType(OpTypePointer, uint32(storageClass), baseType)
}

// AddTypeFunction adds OpTypeFunction.
func (b *ModuleBuilder) AddTypeFunction(returnType uint32, paramTypes ...uint32) uint32 {
	return b.declareType(OpTypeFunction, append([]uint32{returnType}, paramTypes...)...)
}

// AddTypeStruct adds OpTypeStruct.
func (b *ModuleBuilder) AddTypeStruct(memberTypes ...uint32) uint32 {
	return b.declareType(OpTypeStruct, memberTypes...)
}

// AddConstant adds OpConstant.
func (b *ModuleBuilder) AddConstant(typeID uint32, values ...uint32) uint32 {
	return b.declareConstant(OpConstant, typeID, values...)
}

// AddConstantBool adds OpConstantTrue or OpConstantFalse.
func (b *ModuleBuilder) AddConstantBool(typeID uint32, value bool) uint32 {
	if value {
		return b.declareConstant(OpConstantTrue, typeID)
	}
	return b.declareConstant(OpConstantFalse, typeID)
}

// AddConstantFloat32 adds a 32-bit float constant.
func (b *ModuleBuilder) AddConstantFloat32(typeID uint32, value float32) uint32 {
	return b.AddConstant(typeID, math.Float32bits(value))
}

// AddConstantFloat64 adds a 64-bit float constant.
func (b *ModuleBuilder) AddConstantFloat64(typeID uint32, value float64) uint32 {
	bits := math.Float64bits(value)
	return b.AddConstant(typeID, uint32(bits&0xFFFFFFFF), uint32(bits>>32))
}

// AddConstantComposite adds OpConstantComposite.
func (b *ModuleBuilder) AddConstantComposite(typeID uint32, constituents ...uint32) uint32 {
	return b.declareConstant(OpConstantComposite, typeID, constituents...)
}

// AddVariable adds a global OpVariable.
func (b *ModuleBuilder) AddVariable(pointerType uint32, storageClass StorageClass) uint32 {
	id := b.AllocID()
	b.globalVars = append(b.globalVars, Instruction{
		Opcode: OpVariable,
		Words:  []uint32{pointerType, id, uint32(storageClass)},
	})
	return id
}

// Build generates the final SPIR-V word stream.
func (b *ModuleBuilder) Build() []uint32 {
	b.bound = b.nextID

	sections := [][]Instruction{
		b.capabilities,
		b.extInstImports,
	}
	if b.memoryModel != nil {
		sections = append(sections, []Instruction{*b.memoryModel})
	}
	sections = append(sections,
		b.entryPoints,
		b.executionModes,
		b.debugStrings,
		b.debugNames,
		b.annotations,
		b.types,
		b.globalVars,
		b.functions,
	)

	totalWords := 5 // header
	for _, section := range sections {
		totalWords += countWords(section)
	}

	words := make([]uint32, 0, totalWords)
	words = append(words, MagicNumber, versionToWord(b.version), b.generator, b.bound, b.schema)
	for _, section := range sections {
		for _, inst := range section {
			words = append(words, inst.Encode()...)
		}
	}
	return words
}

// countWords counts total words in instructions.
func countWords(instructions []Instruction) int {
	count := 0
	for _, inst := range instructions {
		count += len(inst.Words) + 1
	}
	return count
}

// versionToWord converts Version to SPIR-V word format.
func versionToWord(v Version) uint32 {
	return (uint32(v.Major) << 16) | (uint32(v.Minor) << 8)
}

// FunctionBuilder builds the body of one function. Function-local variables
// are hoisted into the entry block when the function is added to its module.
type FunctionBuilder struct {
	module *ModuleBuilder

	// ID is the result ID of the function.
	ID uint32

	header     []Instruction // OpFunction, OpFunctionParameter
	entry      uint32
	variables  []Instruction
	body       []Instruction
	terminated bool
}

// NewFunction starts a function with a preallocated result ID.
func (b *ModuleBuilder) NewFunction(id, returnType, funcType uint32) *FunctionBuilder {
	return &FunctionBuilder{
		module: b,
		ID:     id,
		header: []Instruction{{
			Opcode: OpFunction,
			Words:  []uint32{returnType, id, uint32(FunctionControlNone), funcType},
		}},
		entry: b.AllocID(),
	}
}

// AddFunction appends a finished function to the module.
func (b *ModuleBuilder) AddFunction(f *FunctionBuilder) {
	b.functions = append(b.functions, f.header...)
	b.functions = append(b.functions, Instruction{Opcode: OpLabel, Words: []uint32{f.entry}})
	b.functions = append(b.functions, f.variables...)
	b.functions = append(b.functions, f.body...)
	b.functions = append(b.functions, Instruction{Opcode: OpFunctionEnd})
}

// AddParameter adds a function parameter.
func (f *FunctionBuilder) AddParameter(typeID uint32) uint32 {
	id := f.module.AllocID()
	f.header = append(f.header, Instruction{Opcode: OpFunctionParameter, Words: []uint32{typeID, id}})
	return id
}

// AddVariable declares a Function storage class variable in the entry block.
func (f *FunctionBuilder) AddVariable(pointerType uint32) uint32 {
	id := f.module.AllocID()
	f.variables = append(f.variables, Instruction{
		Opcode: OpVariable,
		Words:  []uint32{pointerType, id, uint32(StorageClassFunction)},
	})
	return id
}

// Terminated reports whether the current block ended with a terminator.
func (f *FunctionBuilder) Terminated() bool {
	return f.terminated
}

// AddLabel starts the block with the given label ID.
func (f *FunctionBuilder) AddLabel(id uint32) {
	f.body = append(f.body, Instruction{Opcode: OpLabel, Words: []uint32{id}})
	f.terminated = false
}

// emit appends an instruction. Code following a terminator is placed in a
// fresh unreachable block.
func (f *FunctionBuilder) emit(op OpCode, words ...uint32) {
	if f.terminated {
		f.AddLabel(f.module.AllocID())
	}
	f.body = append(f.body, Instruction{Opcode: op, Words: words})
	switch op {
	case OpBranch, OpBranchConditional, OpKill, OpReturn, OpReturnValue, OpUnreachable:
		f.terminated = true
	}
}

// result emits an instruction producing a value of resultType.
func (f *FunctionBuilder) result(op OpCode, resultType uint32, operands ...uint32) uint32 {
	id := f.module.AllocID()
	f.emit(op, append([]uint32{resultType, id}, operands...)...)
	return id
}

// AddBinaryOp adds a binary operation instruction.
func (f *FunctionBuilder) AddBinaryOp(opcode OpCode, resultType, left, right uint32) uint32 {
	return f.result(opcode, resultType, left, right)
}

// AddUnaryOp adds a unary operation instruction.
func (f *FunctionBuilder) AddUnaryOp(opcode OpCode, resultType, operand uint32) uint32 {
	return f.result(opcode, resultType, operand)
}

// AddLoad adds OpLoad.
func (f *FunctionBuilder) AddLoad(resultType, pointer uint32) uint32 {
	return f.result(OpLoad, resultType, pointer)
}

// AddStore adds OpStore.
func (f *FunctionBuilder) AddStore(pointer, value uint32) {
	f.emit(OpStore, pointer, value)
}

// AddAccessChain adds OpAccessChain.
func (f *FunctionBuilder) AddAccessChain(resultType, base uint32, indices ...uint32) uint32 {
	return f.result(OpAccessChain, resultType, append([]uint32{base}, indices...)...)
}

// AddCompositeConstruct adds OpCompositeConstruct.
func (f *FunctionBuilder) AddCompositeConstruct(resultType uint32, constituents ...uint32) uint32 {
	return f.result(OpCompositeConstruct, resultType, constituents...)
}

// AddCompositeExtract adds OpCompositeExtract with literal indices.
func (f *FunctionBuilder) AddCompositeExtract(resultType, composite uint32, indices ...uint32) uint32 {
	return f.result(OpCompositeExtract, resultType, append([]uint32{composite}, indices...)...)
}

// AddVectorShuffle adds OpVectorShuffle for vector swizzle operations.
func (f *FunctionBuilder) AddVectorShuffle(resultType, vec1, vec2 uint32, components []uint32) uint32 {
	return f.result(OpVectorShuffle, resultType, append([]uint32{vec1, vec2}, components...)...)
}

// AddArrayLength adds OpArrayLength for the runtime array member of a
// buffer block.
func (f *FunctionBuilder) AddArrayLength(resultType, structure, member uint32) uint32 {
	return f.result(OpArrayLength, resultType, structure, member)
}

// AddImageSampleImplicitLod samples an image with implicit level of detail.
func (f *FunctionBuilder) AddImageSampleImplicitLod(resultType, sampledImage, coordinate uint32) uint32 {
	return f.result(OpImageSampleImplicitLod, resultType, sampledImage, coordinate)
}

// AddImageSampleExplicitLod samples an image at an explicit level of detail.
func (f *FunctionBuilder) AddImageSampleExplicitLod(resultType, sampledImage, coordinate, lod uint32) uint32 {
	return f.result(OpImageSampleExplicitLod, resultType, sampledImage, coordinate, ImageOperandsLod, lod)
}

// AddSelect adds OpSelect.
func (f *FunctionBuilder) AddSelect(resultType, condition, accept, reject uint32) uint32 {
	return f.result(OpSelect, resultType, condition, accept, reject)
}

// AddExtInst adds OpExtInst (extended instruction).
func (f *FunctionBuilder) AddExtInst(resultType, extSet, instruction uint32, operands ...uint32) uint32 {
	return f.result(OpExtInst, resultType, append([]uint32{extSet, instruction}, operands...)...)
}

// AddFunctionCall adds OpFunctionCall.
func (f *FunctionBuilder) AddFunctionCall(resultType, function uint32, args ...uint32) uint32 {
	return f.result(OpFunctionCall, resultType, append([]uint32{function}, args...)...)
}

// AddSelectionMerge adds OpSelectionMerge.
func (f *FunctionBuilder) AddSelectionMerge(mergeLabel uint32, control SelectionControl) {
	f.emit(OpSelectionMerge, mergeLabel, uint32(control))
}

// AddLoopMerge adds OpLoopMerge.
func (f *FunctionBuilder) AddLoopMerge(mergeLabel, continueLabel uint32, control LoopControl) {
	f.emit(OpLoopMerge, mergeLabel, continueLabel, uint32(control))
}

// AddBranch adds OpBranch.
func (f *FunctionBuilder) AddBranch(target uint32) {
	f.emit(OpBranch, target)
}

// AddBranchConditional adds OpBranchConditional.
func (f *FunctionBuilder) AddBranchConditional(condition, trueLabel, falseLabel uint32) {
	f.emit(OpBranchConditional, condition, trueLabel, falseLabel)
}

// AddKill adds OpKill (fragment shader discard).
func (f *FunctionBuilder) AddKill() {
	f.emit(OpKill)
}

// AddReturn adds OpReturn.
func (f *FunctionBuilder) AddReturn() {
	f.emit(OpReturn)
}

// AddReturnValue adds OpReturnValue.
func (f *FunctionBuilder) AddReturnValue(value uint32) {
	f.emit(OpReturnValue, value)
}

// AddUnreachable adds OpUnreachable.
func (f *FunctionBuilder) AddUnreachable() {
	f.emit(OpUnreachable)
}
