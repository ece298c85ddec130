package spirv

// OpCode represents a SPIR-V opcode.
type OpCode uint16

// Opcodes emitted by the backend or recognized by the disassembler.
const (
	OpNop                    OpCode = 0
	OpUndef                  OpCode = 1
	OpSource                 OpCode = 3
	OpName                   OpCode = 5
	OpMemberName             OpCode = 6
	OpString                 OpCode = 7
	OpExtension              OpCode = 10
	OpExtInstImport          OpCode = 11
	OpExtInst                OpCode = 12
	OpMemoryModel            OpCode = 14
	OpEntryPoint             OpCode = 15
	OpExecutionMode          OpCode = 16
	OpCapability             OpCode = 17
	OpTypeVoid               OpCode = 19
	OpTypeBool               OpCode = 20
	OpTypeInt                OpCode = 21
	OpTypeFloat              OpCode = 22
	OpTypeVector             OpCode = 23
	OpTypeMatrix             OpCode = 24
	OpTypeImage              OpCode = 25
	OpTypeSampler            OpCode = 26
	OpTypeSampledImage       OpCode = 27
	OpTypeArray              OpCode = 28
	OpTypeRuntimeArray       OpCode = 29
	OpTypeStruct             OpCode = 30
	OpTypePointer            OpCode = 32
	OpTypeFunction           OpCode = 33
	OpConstantTrue           OpCode = 41
	OpConstantFalse          OpCode = 42
	OpConstant               OpCode = 43
	OpConstantComposite      OpCode = 44
	OpConstantNull           OpCode = 46
	OpFunction               OpCode = 54
	OpFunctionParameter      OpCode = 55
	OpFunctionEnd            OpCode = 56
	OpFunctionCall           OpCode = 57
	OpVariable               OpCode = 59
	OpLoad                   OpCode = 61
	OpStore                  OpCode = 62
	OpAccessChain            OpCode = 65
	OpArrayLength            OpCode = 68
	OpDecorate               OpCode = 71
	OpMemberDecorate         OpCode = 72
	OpVectorExtractDynamic   OpCode = 77
	OpVectorShuffle          OpCode = 79
	OpCompositeConstruct     OpCode = 80
	OpCompositeExtract       OpCode = 81
	OpCompositeInsert        OpCode = 82
	OpCopyObject             OpCode = 83
	OpTranspose              OpCode = 84
	OpImageSampleImplicitLod OpCode = 87
	OpImageSampleExplicitLod OpCode = 88
	OpConvertFToU            OpCode = 109
	OpConvertFToS            OpCode = 110
	OpConvertSToF            OpCode = 111
	OpConvertUToF            OpCode = 112
	OpFConvert               OpCode = 115
	OpBitcast                OpCode = 124
	OpSNegate                OpCode = 126
	OpFNegate                OpCode = 127
	OpIAdd                   OpCode = 128
	OpFAdd                   OpCode = 129
	OpISub                   OpCode = 130
	OpFSub                   OpCode = 131
	OpIMul                   OpCode = 132
	OpFMul                   OpCode = 133
	OpUDiv                   OpCode = 134
	OpSDiv                   OpCode = 135
	OpFDiv                   OpCode = 136
	OpUMod                   OpCode = 137
	OpSRem                   OpCode = 138
	OpSMod                   OpCode = 139
	OpFRem                   OpCode = 140
	OpFMod                   OpCode = 141
	OpVectorTimesScalar      OpCode = 142
	OpMatrixTimesScalar      OpCode = 143
	OpVectorTimesMatrix      OpCode = 144
	OpMatrixTimesVector      OpCode = 145
	OpMatrixTimesMatrix      OpCode = 146
	OpDot                    OpCode = 148
	OpAny                    OpCode = 154
	OpAll                    OpCode = 155
	OpLogicalEqual           OpCode = 164
	OpLogicalNotEqual        OpCode = 165
	OpLogicalOr              OpCode = 166
	OpLogicalAnd             OpCode = 167
	OpLogicalNot             OpCode = 168
	OpSelect                 OpCode = 169
	OpIEqual                 OpCode = 170
	OpINotEqual              OpCode = 171
	OpUGreaterThan           OpCode = 172
	OpSGreaterThan           OpCode = 173
	OpUGreaterThanEqual      OpCode = 174
	OpSGreaterThanEqual      OpCode = 175
	OpULessThan              OpCode = 176
	OpSLessThan              OpCode = 177
	OpULessThanEqual         OpCode = 178
	OpSLessThanEqual         OpCode = 179
	OpFOrdEqual              OpCode = 180
	OpFOrdNotEqual           OpCode = 182
	OpFUnordNotEqual         OpCode = 183
	OpFOrdLessThan           OpCode = 184
	OpFOrdGreaterThan        OpCode = 186
	OpFOrdLessThanEqual      OpCode = 188
	OpFOrdGreaterThanEqual   OpCode = 190
	OpShiftRightLogical      OpCode = 194
	OpShiftRightArithmetic   OpCode = 195
	OpShiftLeftLogical       OpCode = 196
	OpBitwiseOr              OpCode = 197
	OpBitwiseXor             OpCode = 198
	OpBitwiseAnd             OpCode = 199
	OpNot                    OpCode = 200
	OpLoopMerge              OpCode = 246
	OpSelectionMerge         OpCode = 247
	OpLabel                  OpCode = 248
	OpBranch                 OpCode = 249
	OpBranchConditional      OpCode = 250
	OpKill                   OpCode = 252
	OpReturn                 OpCode = 253
	OpReturnValue            OpCode = 254
	OpUnreachable            OpCode = 255
)

// Capability represents a SPIR-V capability.
type Capability uint32

// Capabilities the backend may declare.
const (
	CapabilityMatrix    Capability = 0
	CapabilityShader    Capability = 1
	CapabilityFloat64   Capability = 10
	CapabilitySampled1D Capability = 43
)

// AddressingModel represents a SPIR-V addressing model.
type AddressingModel uint32

// AddressingModelLogical is the only addressing model shaders use.
const AddressingModelLogical AddressingModel = 0

// MemoryModel represents a SPIR-V memory model.
type MemoryModel uint32

// MemoryModelGLSL450 is the memory model of Vulkan shaders.
const MemoryModelGLSL450 MemoryModel = 1

// ExecutionModel is the pipeline stage of an entry point.
type ExecutionModel uint32

const (
	ExecutionModelVertex    ExecutionModel = 0
	ExecutionModelFragment  ExecutionModel = 4
	ExecutionModelGLCompute ExecutionModel = 5
)

// ExecutionMode is a mode declared for an entry point.
type ExecutionMode uint32

const (
	ExecutionModeOriginUpperLeft    ExecutionMode = 7
	ExecutionModeEarlyFragmentTests ExecutionMode = 9
	ExecutionModeDepthReplacing     ExecutionMode = 12
	ExecutionModeDepthGreater       ExecutionMode = 14
	ExecutionModeDepthLess          ExecutionMode = 15
	ExecutionModeDepthUnchanged     ExecutionMode = 16
	ExecutionModeLocalSize          ExecutionMode = 17
)

// SourceLanguage is the language named by OpSource. nzsl has no registered
// value.
type SourceLanguage uint32

const SourceLanguageUnknown SourceLanguage = 0

// StorageClass is the storage class of a pointer or variable.
type StorageClass uint32

const (
	StorageClassUniformConstant StorageClass = 0
	StorageClassInput           StorageClass = 1
	StorageClassUniform         StorageClass = 2
	StorageClassOutput          StorageClass = 3
	StorageClassWorkgroup       StorageClass = 4
	StorageClassPrivate         StorageClass = 6
	StorageClassFunction        StorageClass = 7
	StorageClassStorageBuffer   StorageClass = 12
)

// Decoration represents a SPIR-V decoration.
type Decoration uint32

const (
	DecorationBlock         Decoration = 2
	DecorationBufferBlock   Decoration = 3
	DecorationRowMajor      Decoration = 4
	DecorationColMajor      Decoration = 5
	DecorationArrayStride   Decoration = 6
	DecorationMatrixStride  Decoration = 7
	DecorationBuiltIn       Decoration = 11
	DecorationFlat          Decoration = 14
	DecorationNonWritable   Decoration = 24
	DecorationLocation      Decoration = 30
	DecorationBinding       Decoration = 33
	DecorationDescriptorSet Decoration = 34
	DecorationOffset        Decoration = 35
)

// BuiltIn identifies a pipeline-provided variable.
type BuiltIn uint32

const (
	BuiltInPosition             BuiltIn = 0
	BuiltInFragCoord            BuiltIn = 15
	BuiltInFrontFacing          BuiltIn = 17
	BuiltInFragDepth            BuiltIn = 22
	BuiltInNumWorkgroups        BuiltIn = 24
	BuiltInWorkgroupID          BuiltIn = 26
	BuiltInLocalInvocationID    BuiltIn = 27
	BuiltInGlobalInvocationID   BuiltIn = 28
	BuiltInLocalInvocationIndex BuiltIn = 29
	BuiltInVertexIndex          BuiltIn = 42
	BuiltInInstanceIndex        BuiltIn = 43
)

// Dim is the dimensionality of an image type.
type Dim uint32

const (
	Dim1D   Dim = 0
	Dim2D   Dim = 1
	Dim3D   Dim = 2
	DimCube Dim = 3
)

// FunctionControl is the control mask of OpFunction.
type FunctionControl uint32

// FunctionControlNone requests no particular function handling.
const FunctionControlNone FunctionControl = 0

// SelectionControl is the control mask of OpSelectionMerge.
type SelectionControl uint32

// SelectionControlNone requests no particular selection handling.
const SelectionControlNone SelectionControl = 0

// LoopControl is the control mask of OpLoopMerge.
type LoopControl uint32

const (
	LoopControlNone       LoopControl = 0
	LoopControlUnroll     LoopControl = 1
	LoopControlDontUnroll LoopControl = 2
)

// ImageOperandsLod selects an explicit level of detail.
const ImageOperandsLod uint32 = 0x2

// GLSL.std.450 extended instructions.
const (
	GLSLstd450Round         uint32 = 1
	GLSLstd450Trunc         uint32 = 3
	GLSLstd450FAbs          uint32 = 4
	GLSLstd450SAbs          uint32 = 5
	GLSLstd450FSign         uint32 = 6
	GLSLstd450SSign         uint32 = 7
	GLSLstd450Floor         uint32 = 8
	GLSLstd450Ceil          uint32 = 9
	GLSLstd450Fract         uint32 = 10
	GLSLstd450Radians       uint32 = 11
	GLSLstd450Degrees       uint32 = 12
	GLSLstd450Sin           uint32 = 13
	GLSLstd450Cos           uint32 = 14
	GLSLstd450Tan           uint32 = 15
	GLSLstd450Asin          uint32 = 16
	GLSLstd450Acos          uint32 = 17
	GLSLstd450Atan          uint32 = 18
	GLSLstd450Pow           uint32 = 26
	GLSLstd450Exp           uint32 = 27
	GLSLstd450Log           uint32 = 28
	GLSLstd450Exp2          uint32 = 29
	GLSLstd450Log2          uint32 = 30
	GLSLstd450Sqrt          uint32 = 31
	GLSLstd450InverseSqrt   uint32 = 32
	GLSLstd450Determinant   uint32 = 33
	GLSLstd450MatrixInverse uint32 = 34
	GLSLstd450FMin          uint32 = 37
	GLSLstd450UMin          uint32 = 38
	GLSLstd450SMin          uint32 = 39
	GLSLstd450FMax          uint32 = 40
	GLSLstd450UMax          uint32 = 41
	GLSLstd450SMax          uint32 = 42
	GLSLstd450FClamp        uint32 = 43
	GLSLstd450UClamp        uint32 = 44
	GLSLstd450SClamp        uint32 = 45
	GLSLstd450FMix          uint32 = 46
	GLSLstd450Step          uint32 = 48
	GLSLstd450SmoothStep    uint32 = 49
	GLSLstd450Length        uint32 = 66
	GLSLstd450Distance      uint32 = 67
	GLSLstd450Cross         uint32 = 68
	GLSLstd450Normalize     uint32 = 69
	GLSLstd450Reflect       uint32 = 71
)
