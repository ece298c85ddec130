package ast

import "fmt"

// BinaryType is a binary operator.
type BinaryType uint8

const (
	BinaryAdd BinaryType = iota
	BinarySubtract
	BinaryMultiply
	BinaryDivide
	BinaryModulo
	BinaryCompEq
	BinaryCompNe
	BinaryCompLt
	BinaryCompLe
	BinaryCompGt
	BinaryCompGe
	BinaryLogicalAnd
	BinaryLogicalOr
	BinaryBitwiseAnd
	BinaryBitwiseOr
	BinaryBitwiseXor
	BinaryShiftLeft
	BinaryShiftRight
)

var binaryOperators = [...]string{
	BinaryAdd:        "+",
	BinarySubtract:   "-",
	BinaryMultiply:   "*",
	BinaryDivide:     "/",
	BinaryModulo:     "%",
	BinaryCompEq:     "==",
	BinaryCompNe:     "!=",
	BinaryCompLt:     "<",
	BinaryCompLe:     "<=",
	BinaryCompGt:     ">",
	BinaryCompGe:     ">=",
	BinaryLogicalAnd: "&&",
	BinaryLogicalOr:  "||",
	BinaryBitwiseAnd: "&",
	BinaryBitwiseOr:  "|",
	BinaryBitwiseXor: "^",
	BinaryShiftLeft:  "<<",
	BinaryShiftRight: ">>",
}

// String returns the operator as written in source.
func (b BinaryType) String() string {
	if int(b) < len(binaryOperators) {
		return binaryOperators[b]
	}
	return fmt.Sprintf("BinaryType(%d)", b)
}

// IsComparison reports whether the operator yields a boolean from two
// operands of the same type.
func (b BinaryType) IsComparison() bool {
	return b >= BinaryCompEq && b <= BinaryCompGe
}

// IsLogical reports whether the operator is && or ||.
func (b BinaryType) IsLogical() bool {
	return b == BinaryLogicalAnd || b == BinaryLogicalOr
}

// IsBitwise reports whether the operator only applies to integers.
func (b BinaryType) IsBitwise() bool {
	return b >= BinaryBitwiseAnd && b <= BinaryShiftRight
}

// UnaryType is a unary operator.
type UnaryType uint8

const (
	UnaryMinus UnaryType = iota
	UnaryPlus
	UnaryLogicalNot
	UnaryBitwiseNot
)

// String returns the operator as written in source.
func (u UnaryType) String() string {
	switch u {
	case UnaryMinus:
		return "-"
	case UnaryPlus:
		return "+"
	case UnaryLogicalNot:
		return "!"
	case UnaryBitwiseNot:
		return "~"
	default:
		return fmt.Sprintf("UnaryType(%d)", u)
	}
}

// AssignType is an assignment operator.
type AssignType uint8

const (
	AssignSimple AssignType = iota
	AssignAdd
	AssignSubtract
	AssignMultiply
	AssignDivide
	AssignModulo
	AssignLogicalAnd
	AssignLogicalOr
)

// String returns the operator as written in source.
func (a AssignType) String() string {
	if a == AssignSimple {
		return "="
	}
	if op, ok := a.BinaryOp(); ok {
		return op.String() + "="
	}
	return fmt.Sprintf("AssignType(%d)", a)
}

// BinaryOp returns the binary operator a compound assignment applies.
func (a AssignType) BinaryOp() (BinaryType, bool) {
	switch a {
	case AssignAdd:
		return BinaryAdd, true
	case AssignSubtract:
		return BinarySubtract, true
	case AssignMultiply:
		return BinaryMultiply, true
	case AssignDivide:
		return BinaryDivide, true
	case AssignModulo:
		return BinaryModulo, true
	case AssignLogicalAnd:
		return BinaryLogicalAnd, true
	case AssignLogicalOr:
		return BinaryLogicalOr, true
	default:
		return 0, false
	}
}

// IntrinsicType identifies a built-in function.
type IntrinsicType uint8

const (
	IntrinsicAbs IntrinsicType = iota
	IntrinsicAll
	IntrinsicAny
	IntrinsicArcCos
	IntrinsicArcSin
	IntrinsicArcTan
	IntrinsicArraySize
	IntrinsicCeil
	IntrinsicClamp
	IntrinsicCos
	IntrinsicCrossProduct
	IntrinsicDegrees
	IntrinsicDeterminant
	IntrinsicDistance
	IntrinsicDotProduct
	IntrinsicExp
	IntrinsicExp2
	IntrinsicFloor
	IntrinsicFract
	IntrinsicInverse
	IntrinsicInverseSqrt
	IntrinsicLength
	IntrinsicLerp
	IntrinsicLog
	IntrinsicLog2
	IntrinsicMax
	IntrinsicMin
	IntrinsicNormalize
	IntrinsicPow
	IntrinsicRadians
	IntrinsicReflect
	IntrinsicRound
	IntrinsicSampleTexture
	IntrinsicSign
	IntrinsicSin
	IntrinsicSmoothStep
	IntrinsicSqrt
	IntrinsicStep
	IntrinsicTan
	IntrinsicTranspose
	IntrinsicTrunc
)

var intrinsicNames = map[IntrinsicType]string{
	IntrinsicAbs:           "abs",
	IntrinsicAll:           "all",
	IntrinsicAny:           "any",
	IntrinsicArcCos:        "acos",
	IntrinsicArcSin:        "asin",
	IntrinsicArcTan:        "atan",
	IntrinsicArraySize:     "Size",
	IntrinsicCeil:          "ceil",
	IntrinsicClamp:         "clamp",
	IntrinsicCos:           "cos",
	IntrinsicCrossProduct:  "cross",
	IntrinsicDegrees:       "degrees",
	IntrinsicDeterminant:   "determinant",
	IntrinsicDistance:      "distance",
	IntrinsicDotProduct:    "dot",
	IntrinsicExp:           "exp",
	IntrinsicExp2:          "exp2",
	IntrinsicFloor:         "floor",
	IntrinsicFract:         "fract",
	IntrinsicInverse:       "inverse",
	IntrinsicInverseSqrt:   "inversesqrt",
	IntrinsicLength:        "length",
	IntrinsicLerp:          "lerp",
	IntrinsicLog:           "log",
	IntrinsicLog2:          "log2",
	IntrinsicMax:           "max",
	IntrinsicMin:           "min",
	IntrinsicNormalize:     "normalize",
	IntrinsicPow:           "pow",
	IntrinsicRadians:       "radians",
	IntrinsicReflect:       "reflect",
	IntrinsicRound:         "round",
	IntrinsicSampleTexture: "Sample",
	IntrinsicSign:          "sign",
	IntrinsicSin:           "sin",
	IntrinsicSmoothStep:    "smoothstep",
	IntrinsicSqrt:          "sqrt",
	IntrinsicStep:          "step",
	IntrinsicTan:           "tan",
	IntrinsicTranspose:     "transpose",
	IntrinsicTrunc:         "trunc",
}

var intrinsicsByName = func() map[string]IntrinsicType {
	m := make(map[string]IntrinsicType, len(intrinsicNames))
	for k, v := range intrinsicNames {
		if k == IntrinsicArraySize || k == IntrinsicSampleTexture {
			continue // methods, not free functions
		}
		m[v] = k
	}
	return m
}()

// String returns the source-level name of the intrinsic.
func (i IntrinsicType) String() string {
	if name, ok := intrinsicNames[i]; ok {
		return name
	}
	return fmt.Sprintf("IntrinsicType(%d)", i)
}

// LookupIntrinsic returns the free-function intrinsic with the given name.
func LookupIntrinsic(name string) (IntrinsicType, bool) {
	i, ok := intrinsicsByName[name]
	return i, ok
}

// ShaderStage is a pipeline stage an entry point can implement.
type ShaderStage uint8

const (
	StageVertex ShaderStage = iota
	StageFragment
	StageCompute
)

// String returns the attribute value naming the stage.
func (s ShaderStage) String() string {
	switch s {
	case StageVertex:
		return "vert"
	case StageFragment:
		return "frag"
	case StageCompute:
		return "compute"
	default:
		return fmt.Sprintf("ShaderStage(%d)", s)
	}
}

// ParseShaderStage maps an entry attribute value to a stage.
func ParseShaderStage(name string) (ShaderStage, bool) {
	switch name {
	case "vert", "vertex":
		return StageVertex, true
	case "frag", "fragment":
		return StageFragment, true
	case "compute", "comp":
		return StageCompute, true
	}
	return 0, false
}

// StageFlags is a set of shader stages.
type StageFlags uint8

// StageFlag returns the flag for a single stage.
func StageFlag(s ShaderStage) StageFlags {
	return 1 << s
}

// AllStages contains every stage.
const AllStages = StageFlags(1<<StageVertex | 1<<StageFragment | 1<<StageCompute)

// Has reports whether the set contains s.
func (f StageFlags) Has(s ShaderStage) bool {
	return f&StageFlag(s) != 0
}

// Stages lists the stages in the set in pipeline order.
func (f StageFlags) Stages() []ShaderStage {
	var out []ShaderStage
	for _, s := range []ShaderStage{StageVertex, StageFragment, StageCompute} {
		if f.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

// BuiltinEntry is a pipeline-provided input or output value.
type BuiltinEntry uint8

const (
	BuiltinFragCoord BuiltinEntry = iota
	BuiltinFragDepth
	BuiltinFrontFacing
	BuiltinVertexPosition
	BuiltinVertexIndex
	BuiltinInstanceIndex
	BuiltinGlobalInvocationIndices
	BuiltinLocalInvocationIndices
	BuiltinLocalInvocationIndex
	BuiltinWorkgroupIndices
	BuiltinWorkgroupCount
)

// BuiltinInfo describes where a builtin may appear and its value type.
type BuiltinInfo struct {
	Name   string
	Stage  ShaderStage
	Output bool // written by the entry point rather than read
	Type   ExpressionType
}

var builtinInfos = map[BuiltinEntry]BuiltinInfo{
	BuiltinFragCoord:               {"fragcoord", StageFragment, false, VectorType{ComponentCount: 4, Type: PrimitiveFloat32}},
	BuiltinFragDepth:               {"fragdepth", StageFragment, true, PrimitiveFloat32},
	BuiltinFrontFacing:             {"front_facing", StageFragment, false, PrimitiveBool},
	BuiltinVertexPosition:          {"position", StageVertex, true, VectorType{ComponentCount: 4, Type: PrimitiveFloat32}},
	BuiltinVertexIndex:             {"vertex_index", StageVertex, false, PrimitiveInt32},
	BuiltinInstanceIndex:           {"instance_index", StageVertex, false, PrimitiveInt32},
	BuiltinGlobalInvocationIndices: {"global_invocation_indices", StageCompute, false, VectorType{ComponentCount: 3, Type: PrimitiveUInt32}},
	BuiltinLocalInvocationIndices:  {"local_invocation_indices", StageCompute, false, VectorType{ComponentCount: 3, Type: PrimitiveUInt32}},
	BuiltinLocalInvocationIndex:    {"local_invocation_index", StageCompute, false, PrimitiveUInt32},
	BuiltinWorkgroupIndices:        {"workgroup_indices", StageCompute, false, VectorType{ComponentCount: 3, Type: PrimitiveUInt32}},
	BuiltinWorkgroupCount:          {"workgroup_count", StageCompute, false, VectorType{ComponentCount: 3, Type: PrimitiveUInt32}},
}

// Info returns the builtin's metadata.
func (b BuiltinEntry) Info() BuiltinInfo {
	return builtinInfos[b]
}

// String returns the attribute value naming the builtin.
func (b BuiltinEntry) String() string {
	if info, ok := builtinInfos[b]; ok {
		return info.Name
	}
	return fmt.Sprintf("BuiltinEntry(%d)", b)
}

// ParseBuiltin maps a builtin attribute value to a builtin.
func ParseBuiltin(name string) (BuiltinEntry, bool) {
	for b, info := range builtinInfos {
		if info.Name == name {
			return b, true
		}
	}
	return 0, false
}

// DepthWriteMode is the fragment depth_write attribute value.
type DepthWriteMode uint8

const (
	DepthWriteReplace DepthWriteMode = iota
	DepthWriteGreater
	DepthWriteLess
	DepthWriteUnchanged
)

var depthWriteNames = [...]string{
	DepthWriteReplace:   "replace",
	DepthWriteGreater:   "greater",
	DepthWriteLess:      "less",
	DepthWriteUnchanged: "unchanged",
}

// String returns the attribute value.
func (d DepthWriteMode) String() string {
	if int(d) < len(depthWriteNames) {
		return depthWriteNames[d]
	}
	return fmt.Sprintf("DepthWriteMode(%d)", d)
}

// ParseDepthWriteMode maps a depth_write attribute value to a mode.
func ParseDepthWriteMode(name string) (DepthWriteMode, bool) {
	for i, n := range depthWriteNames {
		if n == name {
			return DepthWriteMode(i), true
		}
	}
	return 0, false
}

// MemoryLayout is a struct layout rule for buffer-backed data.
type MemoryLayout uint8

const (
	LayoutStd140 MemoryLayout = iota
	LayoutStd430
)

// String returns the attribute value.
func (l MemoryLayout) String() string {
	switch l {
	case LayoutStd140:
		return "std140"
	case LayoutStd430:
		return "std430"
	default:
		return fmt.Sprintf("MemoryLayout(%d)", l)
	}
}

// ParseMemoryLayout maps a layout attribute value to a layout.
func ParseMemoryLayout(name string) (MemoryLayout, bool) {
	switch name {
	case "std140":
		return LayoutStd140, true
	case "std430":
		return LayoutStd430, true
	}
	return 0, false
}

// LoopUnroll is the unroll attribute value of a loop.
type LoopUnroll uint8

const (
	UnrollHint LoopUnroll = iota
	UnrollAlways
	UnrollNever
)

// String returns the attribute value.
func (u LoopUnroll) String() string {
	switch u {
	case UnrollHint:
		return "hint"
	case UnrollAlways:
		return "always"
	case UnrollNever:
		return "never"
	default:
		return fmt.Sprintf("LoopUnroll(%d)", u)
	}
}

// ParseLoopUnroll maps an unroll attribute value to a mode.
func ParseLoopUnroll(name string) (LoopUnroll, bool) {
	switch name {
	case "hint":
		return UnrollHint, true
	case "always":
		return UnrollAlways, true
	case "never":
		return UnrollNever, true
	}
	return 0, false
}
