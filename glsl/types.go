// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"
	"strings"

	"github.com/gogpu/nzsl/ast"
)

// GLSL type name constants for repeated use.
const (
	glslTypeBool   = "bool"
	glslTypeInt    = "int"
	glslTypeUint   = "uint"
	glslTypeFloat  = "float"
	glslTypeDouble = "double"
)

// typeName returns the GLSL name of a type. Arrays include their size, as
// in "vec2[3]"; use declaration for variables.
func (w *Writer) typeName(t ast.ExpressionType) (string, error) {
	switch x := t.(type) {
	case nil, ast.NoType:
		return "void", nil
	case ast.PrimitiveType:
		return w.scalarName(x), nil
	case ast.VectorType:
		return w.vectorName(x), nil
	case ast.MatrixType:
		return w.matrixName(x), nil
	case ast.ArrayType:
		base, err := w.typeName(innermostElement(x))
		if err != nil {
			return "", err
		}
		return base + arraySuffix(x), nil
	case ast.StructType:
		name, ok := w.structNames[x.StructID]
		if !ok {
			return "", fmt.Errorf("struct %s is not declared", x.Name)
		}
		return name, nil
	case ast.SamplerType:
		return samplerName(x), nil
	default:
		return "", fmt.Errorf("type %s has no GLSL equivalent", t)
	}
}

// declaration returns "type name" with array sizes after the name.
func (w *Writer) declaration(t ast.ExpressionType, name string) (string, error) {
	base, err := w.typeName(innermostElement(t))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s%s", base, name, arraySuffix(t)), nil
}

// scalarName returns the GLSL name of a primitive type.
func (w *Writer) scalarName(p ast.PrimitiveType) string {
	switch p {
	case ast.PrimitiveBool:
		return glslTypeBool
	case ast.PrimitiveInt32:
		return glslTypeInt
	case ast.PrimitiveUInt32:
		return glslTypeUint
	case ast.PrimitiveFloat64:
		w.usesDouble = true
		return glslTypeDouble
	default:
		return glslTypeFloat
	}
}

// scalarPrefix returns the vector and sampler prefix of a primitive type.
func scalarPrefix(p ast.PrimitiveType) string {
	switch p {
	case ast.PrimitiveBool:
		return "b"
	case ast.PrimitiveInt32:
		return "i"
	case ast.PrimitiveUInt32:
		return "u"
	case ast.PrimitiveFloat64:
		return "d"
	default:
		return ""
	}
}

func (w *Writer) vectorName(t ast.VectorType) string {
	if t.Type == ast.PrimitiveFloat64 {
		w.usesDouble = true
	}
	return fmt.Sprintf("%svec%d", scalarPrefix(t.Type), t.ComponentCount)
}

func (w *Writer) matrixName(t ast.MatrixType) string {
	prefix := ""
	if t.Type == ast.PrimitiveFloat64 {
		w.usesDouble = true
		prefix = "d"
	}
	if t.ColumnCount == t.RowCount {
		return fmt.Sprintf("%smat%d", prefix, t.ColumnCount)
	}
	return fmt.Sprintf("%smat%dx%d", prefix, t.ColumnCount, t.RowCount)
}

// samplerName returns the combined image/sampler type. Depth samplers are
// read as regular samplers since sampling returns a vector.
func samplerName(t ast.SamplerType) string {
	var dim string
	switch t.Dim {
	case ast.Image1D:
		dim = "1D"
	case ast.Image2D:
		dim = "2D"
	case ast.Image3D:
		dim = "3D"
	default:
		dim = "Cube"
	}
	prefix := scalarPrefix(t.SampledType)
	if prefix == "d" || prefix == "b" {
		prefix = ""
	}
	return prefix + "sampler" + dim
}

// arraySuffix returns the array size suffix(es) of a type: "[3]" for
// array[T, 3], "[3][4]" for nested arrays, "[]" for runtime arrays and ""
// otherwise.
func arraySuffix(t ast.ExpressionType) string {
	var b strings.Builder
	for {
		arr, ok := t.(ast.ArrayType)
		if !ok {
			return b.String()
		}
		if arr.Length == 0 {
			b.WriteString("[]")
		} else {
			fmt.Fprintf(&b, "[%d]", arr.Length)
		}
		t = arr.ContainedType
	}
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

// containsRuntimeArray reports whether a struct has a runtime-sized member,
// which GLSL only allows inside a buffer block.
func containsRuntimeArray(st ast.StructType) bool {
	for _, m := range st.Members {
		if arr, ok := m.Type.(ast.ArrayType); ok && arr.Length == 0 {
			return true
		}
	}
	return false
}

// literal returns the GLSL representation of a constant value.
func (w *Writer) literal(v ast.ConstantValue) (string, error) {
	switch x := v.(type) {
	case ast.BoolValue:
		if x {
			return "true", nil
		}
		return "false", nil
	case ast.Int32Value:
		return fmt.Sprintf("%d", int32(x)), nil
	case ast.UInt32Value:
		return fmt.Sprintf("%du", uint32(x)), nil
	case ast.Float32Value:
		return formatFloat(float32(x)), nil
	case ast.Float64Value:
		w.usesDouble = true
		return formatFloat64(float64(x)), nil
	case ast.VectorValue:
		return w.compositeLiteral(x.Type(), len(x.Components), func(i int) ast.ConstantValue { return x.Components[i] })
	case ast.MatrixValue:
		return w.compositeLiteral(x.Type(), len(x.Columns), func(i int) ast.ConstantValue { return x.Columns[i] })
	default:
		return "", fmt.Errorf("unsupported constant %T", v)
	}
}

func (w *Writer) compositeLiteral(t ast.ExpressionType, n int, at func(int) ast.ConstantValue) (string, error) {
	name, err := w.typeName(t)
	if err != nil {
		return "", err
	}
	parts := make([]string, n)
	for i := range parts {
		if parts[i], err = w.literal(at(i)); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ", ")), nil
}

// formatFloat formats a float32 for GLSL output.
func formatFloat(f float32) string {
	s := fmt.Sprintf("%g", f)
	// Ensure it has a decimal point or exponent
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// formatFloat64 formats a float64 for GLSL output.
func formatFloat64(f float64) string {
	s := fmt.Sprintf("%g", f)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s + "lf" // double literal suffix
}
