package ast

import (
	"fmt"
	"strings"
)

// ExpressionType is the resolved type of an expression or declaration.
type ExpressionType interface {
	expressionType()
	String() string
}

// PrimitiveType is a scalar type.
type PrimitiveType uint8

const (
	PrimitiveBool PrimitiveType = iota
	PrimitiveInt32
	PrimitiveUInt32
	PrimitiveFloat32
	PrimitiveFloat64
)

func (PrimitiveType) expressionType() {}

func (p PrimitiveType) String() string {
	switch p {
	case PrimitiveBool:
		return "bool"
	case PrimitiveInt32:
		return "i32"
	case PrimitiveUInt32:
		return "u32"
	case PrimitiveFloat32:
		return "f32"
	case PrimitiveFloat64:
		return "f64"
	default:
		return fmt.Sprintf("PrimitiveType(%d)", uint8(p))
	}
}

// IsFloat reports whether p is a floating-point type.
func (p PrimitiveType) IsFloat() bool { return p == PrimitiveFloat32 || p == PrimitiveFloat64 }

// IsInteger reports whether p is a signed or unsigned integer type.
func (p PrimitiveType) IsInteger() bool { return p == PrimitiveInt32 || p == PrimitiveUInt32 }

// IsNumeric reports whether p supports arithmetic.
func (p PrimitiveType) IsNumeric() bool { return p != PrimitiveBool }

// LookupPrimitive maps a type keyword to a primitive.
func LookupPrimitive(name string) (PrimitiveType, bool) {
	switch name {
	case "bool":
		return PrimitiveBool, true
	case "i32":
		return PrimitiveInt32, true
	case "u32":
		return PrimitiveUInt32, true
	case "f32":
		return PrimitiveFloat32, true
	case "f64":
		return PrimitiveFloat64, true
	}
	return 0, false
}

// VectorType is a vector of 2 to 4 primitives.
type VectorType struct {
	ComponentCount uint32
	Type           PrimitiveType
}

func (VectorType) expressionType() {}

func (v VectorType) String() string {
	return fmt.Sprintf("vec%d[%s]", v.ComponentCount, v.Type)
}

// MatrixType is a column-major matrix of floating-point values.
type MatrixType struct {
	ColumnCount uint32
	RowCount    uint32
	Type        PrimitiveType
}

func (MatrixType) expressionType() {}

func (m MatrixType) String() string {
	if m.ColumnCount == m.RowCount {
		return fmt.Sprintf("mat%d[%s]", m.ColumnCount, m.Type)
	}
	return fmt.Sprintf("mat%dx%d[%s]", m.ColumnCount, m.RowCount, m.Type)
}

// ColumnType returns the vector type of a single column.
func (m MatrixType) ColumnType() VectorType {
	return VectorType{ComponentCount: m.RowCount, Type: m.Type}
}

// ArrayType is a fixed-size array. Length 0 denotes a runtime-sized array,
// only valid as the last member of a storage struct.
type ArrayType struct {
	ContainedType ExpressionType
	Length        uint32
}

func (ArrayType) expressionType() {}

func (a ArrayType) String() string {
	if a.Length == 0 {
		return fmt.Sprintf("dyn_array[%s]", a.ContainedType)
	}
	return fmt.Sprintf("array[%s, %d]", a.ContainedType, a.Length)
}

// StructMemberType is a member of a StructType.
type StructMemberType struct {
	Name string
	Type ExpressionType
}

// StructType is a named struct. StructID references the declaration it was
// resolved from and is ignored by equality.
type StructType struct {
	StructID int
	Name     string
	Members  []StructMemberType
}

func (StructType) expressionType() {}

func (s StructType) String() string { return s.Name }

// MemberIndex returns the index of the named member.
func (s StructType) MemberIndex(name string) (int, bool) {
	for i, m := range s.Members {
		if m.Name == name {
			return i, true
		}
	}
	return -1, false
}

// ImageDimension is the dimensionality of a sampled image.
type ImageDimension uint8

const (
	Image1D ImageDimension = iota
	Image2D
	Image3D
	ImageCube
)

// SamplerType is a combined image/sampler.
type SamplerType struct {
	Dim         ImageDimension
	SampledType PrimitiveType
	Depth       bool
}

func (SamplerType) expressionType() {}

func (s SamplerType) String() string {
	prefix := "sampler"
	if s.Depth {
		prefix = "depth_sampler"
	}
	var dim string
	switch s.Dim {
	case Image1D:
		dim = "1D"
	case Image2D:
		dim = "2D"
	case Image3D:
		dim = "3D"
	case ImageCube:
		dim = "Cube"
	}
	return fmt.Sprintf("%s%s[%s]", prefix, dim, s.SampledType)
}

// CoordinateCount returns the number of components a sample coordinate has.
func (s SamplerType) CoordinateCount() uint32 {
	switch s.Dim {
	case Image1D:
		return 1
	case Image2D:
		return 2
	default:
		return 3
	}
}

// UniformType is a uniform buffer block.
type UniformType struct {
	Container StructType
}

func (UniformType) expressionType() {}

func (u UniformType) String() string { return fmt.Sprintf("uniform[%s]", u.Container.Name) }

// StorageType is a storage buffer block.
type StorageType struct {
	Container StructType
}

func (StorageType) expressionType() {}

func (s StorageType) String() string { return fmt.Sprintf("storage[%s]", s.Container.Name) }

// FunctionType is the type of a function reference.
type FunctionType struct {
	FunctionID int
	Name       string
	Parameters []ExpressionType
	Return     ExpressionType
}

func (FunctionType) expressionType() {}

func (f FunctionType) String() string {
	params := make([]string, len(f.Parameters))
	for i, p := range f.Parameters {
		params[i] = p.String()
	}
	return fmt.Sprintf("fn(%s) -> %s", strings.Join(params, ", "), f.Return)
}

// IntrinsicFunctionType is the type of an intrinsic referenced by name.
type IntrinsicFunctionType struct {
	Intrinsic IntrinsicType
}

func (IntrinsicFunctionType) expressionType() {}

func (i IntrinsicFunctionType) String() string { return "intrinsic " + i.Intrinsic.String() }

// NoType is the void type.
type NoType struct{}

func (NoType) expressionType() {}

func (NoType) String() string { return "void" }

// TypesEqual reports structural equality. Two structs are equal when they
// have the same name and the same ordered member list.
func TypesEqual(a, b ExpressionType) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case PrimitiveType, VectorType, MatrixType, SamplerType, NoType, IntrinsicFunctionType:
		return a == b
	case ArrayType:
		y, ok := b.(ArrayType)
		return ok && x.Length == y.Length && TypesEqual(x.ContainedType, y.ContainedType)
	case StructType:
		y, ok := b.(StructType)
		return ok && structsEqual(x, y)
	case UniformType:
		y, ok := b.(UniformType)
		return ok && structsEqual(x.Container, y.Container)
	case StorageType:
		y, ok := b.(StorageType)
		return ok && structsEqual(x.Container, y.Container)
	case FunctionType:
		y, ok := b.(FunctionType)
		if !ok || len(x.Parameters) != len(y.Parameters) || !TypesEqual(x.Return, y.Return) {
			return false
		}
		for i := range x.Parameters {
			if !TypesEqual(x.Parameters[i], y.Parameters[i]) {
				return false
			}
		}
		return x.Name == y.Name
	default:
		return false
	}
}

func structsEqual(a, b StructType) bool {
	if a.Name != b.Name || len(a.Members) != len(b.Members) {
		return false
	}
	for i := range a.Members {
		if a.Members[i].Name != b.Members[i].Name || !TypesEqual(a.Members[i].Type, b.Members[i].Type) {
			return false
		}
	}
	return true
}

// IsVoid reports whether t is nil or NoType.
func IsVoid(t ExpressionType) bool {
	if t == nil {
		return true
	}
	_, ok := t.(NoType)
	return ok
}

// ScalarOf returns the primitive component type of a primitive, vector or
// matrix type.
func ScalarOf(t ExpressionType) (PrimitiveType, bool) {
	switch x := t.(type) {
	case PrimitiveType:
		return x, true
	case VectorType:
		return x.Type, true
	case MatrixType:
		return x.Type, true
	}
	return 0, false
}

// ComponentCount returns 1 for primitives and the size for vectors.
func ComponentCount(t ExpressionType) uint32 {
	switch x := t.(type) {
	case PrimitiveType:
		return 1
	case VectorType:
		return x.ComponentCount
	}
	return 0
}

// VectorOf returns a primitive when count is 1 and a vector otherwise.
func VectorOf(p PrimitiveType, count uint32) ExpressionType {
	if count == 1 {
		return p
	}
	return VectorType{ComponentCount: count, Type: p}
}
