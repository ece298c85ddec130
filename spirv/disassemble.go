package spirv

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// opInfo describes how an instruction lays out its leading operands.
type opInfo struct {
	name       string
	resultType bool
	result     bool
}

var opcodeInfo = map[OpCode]opInfo{
	OpNop:                    {"OpNop", false, false},
	OpUndef:                  {"OpUndef", true, true},
	OpSource:                 {"OpSource", false, false},
	OpName:                   {"OpName", false, false},
	OpMemberName:             {"OpMemberName", false, false},
	OpString:                 {"OpString", false, true},
	OpExtension:              {"OpExtension", false, false},
	OpExtInstImport:          {"OpExtInstImport", false, true},
	OpExtInst:                {"OpExtInst", true, true},
	OpMemoryModel:            {"OpMemoryModel", false, false},
	OpEntryPoint:             {"OpEntryPoint", false, false},
	OpExecutionMode:          {"OpExecutionMode", false, false},
	OpCapability:             {"OpCapability", false, false},
	OpTypeVoid:               {"OpTypeVoid", false, true},
	OpTypeBool:               {"OpTypeBool", false, true},
	OpTypeInt:                {"OpTypeInt", false, true},
	OpTypeFloat:              {"OpTypeFloat", false, true},
	OpTypeVector:             {"OpTypeVector", false, true},
	OpTypeMatrix:             {"OpTypeMatrix", false, true},
	OpTypeImage:              {"OpTypeImage", false, true},
	OpTypeSampler:            {"OpTypeSampler", false, true},
	OpTypeSampledImage:       {"OpTypeSampledImage", false, true},
	OpTypeArray:              {"OpTypeArray", false, true},
	OpTypeRuntimeArray:       {"OpTypeRuntimeArray", false, true},
	OpTypeStruct:             {"OpTypeStruct", false, true},
	OpTypePointer:            {"OpTypePointer", false, true},
	OpTypeFunction:           {"OpTypeFunction", false, true},
	OpConstantTrue:           {"OpConstantTrue", true, true},
	OpConstantFalse:          {"OpConstantFalse", true, true},
	OpConstant:               {"OpConstant", true, true},
	OpConstantComposite:      {"OpConstantComposite", true, true},
	OpConstantNull:           {"OpConstantNull", true, true},
	OpFunction:               {"OpFunction", true, true},
	OpFunctionParameter:      {"OpFunctionParameter", true, true},
	OpFunctionEnd:            {"OpFunctionEnd", false, false},
	OpFunctionCall:           {"OpFunctionCall", true, true},
	OpVariable:               {"OpVariable", true, true},
	OpLoad:                   {"OpLoad", true, true},
	OpStore:                  {"OpStore", false, false},
	OpAccessChain:            {"OpAccessChain", true, true},
	OpArrayLength:            {"OpArrayLength", true, true},
	OpDecorate:               {"OpDecorate", false, false},
	OpMemberDecorate:         {"OpMemberDecorate", false, false},
	OpVectorExtractDynamic:   {"OpVectorExtractDynamic", true, true},
	OpVectorShuffle:          {"OpVectorShuffle", true, true},
	OpCompositeConstruct:     {"OpCompositeConstruct", true, true},
	OpCompositeExtract:       {"OpCompositeExtract", true, true},
	OpCompositeInsert:        {"OpCompositeInsert", true, true},
	OpCopyObject:             {"OpCopyObject", true, true},
	OpTranspose:              {"OpTranspose", true, true},
	OpImageSampleImplicitLod: {"OpImageSampleImplicitLod", true, true},
	OpImageSampleExplicitLod: {"OpImageSampleExplicitLod", true, true},
	OpConvertFToU:            {"OpConvertFToU", true, true},
	OpConvertFToS:            {"OpConvertFToS", true, true},
	OpConvertSToF:            {"OpConvertSToF", true, true},
	OpConvertUToF:            {"OpConvertUToF", true, true},
	OpFConvert:               {"OpFConvert", true, true},
	OpBitcast:                {"OpBitcast", true, true},
	OpSNegate:                {"OpSNegate", true, true},
	OpFNegate:                {"OpFNegate", true, true},
	OpIAdd:                   {"OpIAdd", true, true},
	OpFAdd:                   {"OpFAdd", true, true},
	OpISub:                   {"OpISub", true, true},
	OpFSub:                   {"OpFSub", true, true},
	OpIMul:                   {"OpIMul", true, true},
	OpFMul:                   {"OpFMul", true, true},
	OpUDiv:                   {"OpUDiv", true, true},
	OpSDiv:                   {"OpSDiv", true, true},
	OpFDiv:                   {"OpFDiv", true, true},
	OpUMod:                   {"OpUMod", true, true},
	OpSRem:                   {"OpSRem", true, true},
	OpSMod:                   {"OpSMod", true, true},
	OpFRem:                   {"OpFRem", true, true},
	OpFMod:                   {"OpFMod", true, true},
	OpVectorTimesScalar:      {"OpVectorTimesScalar", true, true},
	OpMatrixTimesScalar:      {"OpMatrixTimesScalar", true, true},
	OpVectorTimesMatrix:      {"OpVectorTimesMatrix", true, true},
	OpMatrixTimesVector:      {"OpMatrixTimesVector", true, true},
	OpMatrixTimesMatrix:      {"OpMatrixTimesMatrix", true, true},
	OpDot:                    {"OpDot", true, true},
	OpAny:                    {"OpAny", true, true},
	OpAll:                    {"OpAll", true, true},
	OpLogicalEqual:           {"OpLogicalEqual", true, true},
	OpLogicalNotEqual:        {"OpLogicalNotEqual", true, true},
	OpLogicalOr:              {"OpLogicalOr", true, true},
	OpLogicalAnd:             {"OpLogicalAnd", true, true},
	OpLogicalNot:             {"OpLogicalNot", true, true},
	OpSelect:                 {"OpSelect", true, true},
	OpIEqual:                 {"OpIEqual", true, true},
	OpINotEqual:              {"OpINotEqual", true, true},
	OpUGreaterThan:           {"OpUGreaterThan", true, true},
	OpSGreaterThan:           {"OpSGreaterThan", true, true},
	OpUGreaterThanEqual:      {"OpUGreaterThanEqual", true, true},
	OpSGreaterThanEqual:      {"OpSGreaterThanEqual", true, true},
	OpULessThan:              {"OpULessThan", true, true},
	OpSLessThan:              {"OpSLessThan", true, true},
	OpULessThanEqual:         {"OpULessThanEqual", true, true},
	OpSLessThanEqual:         {"OpSLessThanEqual", true, true},
	OpFOrdEqual:              {"OpFOrdEqual", true, true},
	OpFOrdNotEqual:           {"OpFOrdNotEqual", true, true},
	OpFUnordNotEqual:         {"OpFUnordNotEqual", true, true},
	OpFOrdLessThan:           {"OpFOrdLessThan", true, true},
	OpFOrdGreaterThan:        {"OpFOrdGreaterThan", true, true},
	OpFOrdLessThanEqual:      {"OpFOrdLessThanEqual", true, true},
	OpFOrdGreaterThanEqual:   {"OpFOrdGreaterThanEqual", true, true},
	OpShiftRightLogical:      {"OpShiftRightLogical", true, true},
	OpShiftRightArithmetic:   {"OpShiftRightArithmetic", true, true},
	OpShiftLeftLogical:       {"OpShiftLeftLogical", true, true},
	OpBitwiseOr:              {"OpBitwiseOr", true, true},
	OpBitwiseXor:             {"OpBitwiseXor", true, true},
	OpBitwiseAnd:             {"OpBitwiseAnd", true, true},
	OpNot:                    {"OpNot", true, true},
	OpLoopMerge:              {"OpLoopMerge", false, false},
	OpSelectionMerge:         {"OpSelectionMerge", false, false},
	OpLabel:                  {"OpLabel", false, true},
	OpBranch:                 {"OpBranch", false, false},
	OpBranchConditional:      {"OpBranchConditional", false, false},
	OpKill:                   {"OpKill", false, false},
	OpReturn:                 {"OpReturn", false, false},
	OpReturnValue:            {"OpReturnValue", false, false},
	OpUnreachable:            {"OpUnreachable", false, false},
}

var capabilityNames = map[uint32]string{
	0: "Matrix", 1: "Shader", 9: "Float16", 10: "Float64", 11: "Int64",
	22: "Int16", 39: "Int8", 43: "Sampled1D", 44: "Image1D",
}

var storageClassNames = map[uint32]string{
	0: "UniformConstant", 1: "Input", 2: "Uniform", 3: "Output",
	4: "Workgroup", 5: "CrossWorkgroup", 6: "Private", 7: "Function",
	8: "Generic", 9: "PushConstant", 12: "StorageBuffer",
}

var decorationNames = map[uint32]string{
	0: "RelaxedPrecision", 1: "SpecId", 2: "Block", 3: "BufferBlock",
	4: "RowMajor", 5: "ColMajor", 6: "ArrayStride", 7: "MatrixStride",
	11: "BuiltIn", 13: "NoPerspective", 14: "Flat", 16: "Centroid",
	17: "Sample", 18: "Invariant", 24: "NonWritable", 25: "NonReadable",
	30: "Location", 31: "Component", 33: "Binding", 34: "DescriptorSet",
	35: "Offset",
}

var builtinNames = map[uint32]string{
	0: "Position", 1: "PointSize", 3: "CullDistance", 15: "FragCoord",
	16: "PointCoord", 17: "FrontFacing", 22: "FragDepth",
	24: "NumWorkgroups", 25: "WorkgroupSize", 26: "WorkgroupId",
	27: "LocalInvocationId", 28: "GlobalInvocationId",
	29: "LocalInvocationIndex", 42: "VertexIndex", 43: "InstanceIndex",
}

var executionModeNames = map[uint32]string{
	7: "OriginUpperLeft", 8: "OriginLowerLeft", 9: "EarlyFragmentTests",
	12: "DepthReplacing", 14: "DepthGreater", 15: "DepthLess",
	16: "DepthUnchanged", 17: "LocalSize",
}

var executionModelNames = map[uint32]string{
	0: "Vertex", 1: "TessellationControl", 2: "TessellationEvaluation",
	3: "Geometry", 4: "Fragment", 5: "GLCompute", 6: "Kernel",
}

var dimNames = map[uint32]string{
	0: "1D", 1: "2D", 2: "3D", 3: "Cube", 4: "Rect", 5: "Buffer", 6: "SubpassData",
}

var loopControlNames = map[uint32]string{0: "None", 1: "Unroll", 2: "DontUnroll"}

// ErrInvalidModule is returned when a word stream is not a SPIR-V module.
var ErrInvalidModule = errors.New("spirv: invalid module")

// DecodedInstruction is an instruction read back from a word stream.
type DecodedInstruction struct {
	Opcode   OpCode
	Operands []uint32
}

// Name returns the opcode mnemonic.
func (d DecodedInstruction) Name() string {
	if info, ok := opcodeInfo[d.Opcode]; ok {
		return info.name
	}
	return "Op" + strconv.Itoa(int(d.Opcode))
}

// Decode splits a module into its instructions, skipping the header.
func Decode(words []uint32) ([]DecodedInstruction, error) {
	if len(words) < 5 {
		return nil, fmt.Errorf("%w: %d words is shorter than the header", ErrInvalidModule, len(words))
	}
	if words[0] != MagicNumber {
		return nil, fmt.Errorf("%w: magic number 0x%08x", ErrInvalidModule, words[0])
	}
	var out []DecodedInstruction
	for offset := 5; offset < len(words); {
		count := int(words[offset] >> 16)
		if count == 0 || offset+count > len(words) {
			return nil, fmt.Errorf("%w: bad word count %d at word %d", ErrInvalidModule, count, offset)
		}
		out = append(out, DecodedInstruction{
			Opcode:   OpCode(words[offset] & 0xFFFF),
			Operands: words[offset+1 : offset+count],
		})
		offset += count
	}
	return out, nil
}

// Disassemble renders a module as SPIR-V assembly text, one instruction per
// line.
func Disassemble(words []uint32) (string, error) {
	instructions, err := Decode(words)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	version := words[1]
	fmt.Fprintf(&sb, "; SPIR-V\n; Version: %d.%d\n; Generator: 0x%08X\n; Bound: %d\n; Schema: %d\n",
		(version>>16)&0xFF, (version>>8)&0xFF, words[2], words[3], words[4])
	for _, inst := range instructions {
		writeInstruction(&sb, inst)
	}
	return sb.String(), nil
}

func id(n uint32) string { return "%" + strconv.FormatUint(uint64(n), 10) }

func enumName(m map[uint32]string, v uint32) string {
	if s, ok := m[v]; ok {
		return s
	}
	return strconv.FormatUint(uint64(v), 10)
}

// decodeString reads a null-terminated literal string and returns the
// number of words it occupies.
func decodeString(words []uint32) (string, int) {
	var sb strings.Builder
	for i, w := range words {
		for shift := 0; shift < 32; shift += 8 {
			b := byte(w >> shift)
			if b == 0 {
				return sb.String(), i + 1
			}
			sb.WriteByte(b)
		}
	}
	return sb.String(), len(words)
}

func literals(words []uint32) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strconv.FormatUint(uint64(w), 10)
	}
	return out
}

func ids(words []uint32) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = id(w)
	}
	return out
}

//nolint:gocyclo,cyclop,funlen // One case per operand layout
func writeInstruction(sb *strings.Builder, inst DecodedInstruction) {
	info, known := opcodeInfo[inst.Opcode]
	ops := inst.Operands
	var prefix string
	var args []string
	if known && info.resultType && len(ops) >= 2 {
		prefix = id(ops[1]) + " = "
		args = append(args, id(ops[0]))
		ops = ops[2:]
	} else if known && info.result && len(ops) >= 1 {
		prefix = id(ops[0]) + " = "
		ops = ops[1:]
	}

	switch inst.Opcode {
	case OpCapability:
		args = append(args, enumName(capabilityNames, ops[0]))
	case OpExtension, OpExtInstImport, OpString:
		s, _ := decodeString(ops)
		args = append(args, strconv.Quote(s))
	case OpSource:
		if len(ops) >= 2 {
			args = append(args, enumName(map[uint32]string{0: "Unknown", 2: "GLSL"}, ops[0]), strconv.FormatUint(uint64(ops[1]), 10))
			args = append(args, ids(ops[2:])...)
		}
	case OpExtInst:
		args = append(args, id(ops[0]), strconv.FormatUint(uint64(ops[1]), 10))
		args = append(args, ids(ops[2:])...)
	case OpMemoryModel:
		args = append(args, enumName(map[uint32]string{0: "Logical"}, ops[0]), enumName(map[uint32]string{1: "GLSL450", 3: "Vulkan"}, ops[1]))
	case OpEntryPoint:
		s, n := decodeString(ops[2:])
		args = append(args, enumName(executionModelNames, ops[0]), id(ops[1]), strconv.Quote(s))
		args = append(args, ids(ops[2+n:])...)
	case OpExecutionMode:
		args = append(args, id(ops[0]), enumName(executionModeNames, ops[1]))
		args = append(args, literals(ops[2:])...)
	case OpName:
		s, _ := decodeString(ops[1:])
		args = append(args, id(ops[0]), strconv.Quote(s))
	case OpMemberName:
		s, _ := decodeString(ops[2:])
		args = append(args, id(ops[0]), strconv.FormatUint(uint64(ops[1]), 10), strconv.Quote(s))
	case OpDecorate:
		args = append(args, id(ops[0]))
		args = append(args, decoration(ops[1:])...)
	case OpMemberDecorate:
		args = append(args, id(ops[0]), strconv.FormatUint(uint64(ops[1]), 10))
		args = append(args, decoration(ops[2:])...)
	case OpTypeInt, OpTypeFloat, OpConstant:
		args = append(args, literals(ops)...)
	case OpTypeVector, OpTypeMatrix:
		args = append(args, id(ops[0]), strconv.FormatUint(uint64(ops[1]), 10))
	case OpTypeImage:
		args = append(args, id(ops[0]), enumName(dimNames, ops[1]))
		args = append(args, literals(ops[2:6])...)
		args = append(args, "Unknown")
	case OpTypePointer:
		args = append(args, enumName(storageClassNames, ops[0]), id(ops[1]))
	case OpVariable:
		args = append(args, enumName(storageClassNames, ops[0]))
		args = append(args, ids(ops[1:])...)
	case OpFunction:
		args = append(args, "None", id(ops[1]))
	case OpCompositeExtract:
		args = append(args, id(ops[0]))
		args = append(args, literals(ops[1:])...)
	case OpVectorShuffle:
		args = append(args, id(ops[0]), id(ops[1]))
		args = append(args, literals(ops[2:])...)
	case OpArrayLength:
		args = append(args, id(ops[0]), strconv.FormatUint(uint64(ops[1]), 10))
	case OpImageSampleExplicitLod:
		args = append(args, id(ops[0]), id(ops[1]), "Lod")
		args = append(args, ids(ops[3:])...)
	case OpSelectionMerge:
		args = append(args, id(ops[0]), "None")
	case OpLoopMerge:
		args = append(args, id(ops[0]), id(ops[1]), enumName(loopControlNames, ops[2]))
	default:
		args = append(args, ids(ops)...)
	}

	name := inst.Name()
	sb.WriteString(prefix)
	sb.WriteString(name)
	for _, a := range args {
		sb.WriteByte(' ')
		sb.WriteString(a)
	}
	sb.WriteByte('\n')
}

func decoration(ops []uint32) []string {
	out := []string{enumName(decorationNames, ops[0])}
	if Decoration(ops[0]) == DecorationBuiltIn && len(ops) > 1 {
		return append(out, enumName(builtinNames, ops[1]))
	}
	return append(out, literals(ops[1:])...)
}
