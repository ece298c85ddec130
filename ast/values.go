package ast

import (
	"fmt"
	"hash/crc32"
	"math"
	"strconv"
	"strings"
)

// ConstantValue is a compile-time value: a literal, a folded constant or a
// specialization option value.
type ConstantValue interface {
	constantValue()
	Type() ExpressionType
	String() string
}

// BoolValue is a boolean constant.
type BoolValue bool

// Int32Value is a signed integer constant.
type Int32Value int32

// UInt32Value is an unsigned integer constant.
type UInt32Value uint32

// Float32Value is a single-precision constant.
type Float32Value float32

// Float64Value is a double-precision constant.
type Float64Value float64

// VectorValue is a vector constant. All components share one scalar type.
type VectorValue struct {
	Components []ConstantValue
}

// MatrixValue is a column-major matrix constant.
type MatrixValue struct {
	Columns []VectorValue
}

func (BoolValue) constantValue()    {}
func (Int32Value) constantValue()   {}
func (UInt32Value) constantValue()  {}
func (Float32Value) constantValue() {}
func (Float64Value) constantValue() {}
func (VectorValue) constantValue()  {}
func (MatrixValue) constantValue()  {}

func (BoolValue) Type() ExpressionType    { return PrimitiveBool }
func (Int32Value) Type() ExpressionType   { return PrimitiveInt32 }
func (UInt32Value) Type() ExpressionType  { return PrimitiveUInt32 }
func (Float32Value) Type() ExpressionType { return PrimitiveFloat32 }
func (Float64Value) Type() ExpressionType { return PrimitiveFloat64 }

func (v VectorValue) Type() ExpressionType {
	var p PrimitiveType
	if len(v.Components) > 0 {
		p, _ = ScalarOf(v.Components[0].Type())
	}
	return VectorType{ComponentCount: uint32(len(v.Components)), Type: p}
}

func (m MatrixValue) Type() ExpressionType {
	if len(m.Columns) == 0 {
		return MatrixType{}
	}
	col := m.Columns[0].Type().(VectorType)
	return MatrixType{ColumnCount: uint32(len(m.Columns)), RowCount: col.ComponentCount, Type: col.Type}
}

func (b BoolValue) String() string   { return strconv.FormatBool(bool(b)) }
func (i Int32Value) String() string  { return strconv.FormatInt(int64(i), 10) }
func (u UInt32Value) String() string { return strconv.FormatUint(uint64(u), 10) + "u" }

func (f Float32Value) String() string { return formatFloat(float64(f), 32) }

func (f Float64Value) String() string { return "f64(" + formatFloat(float64(f), 64) + ")" }

func (v VectorValue) String() string {
	parts := make([]string, len(v.Components))
	for i, c := range v.Components {
		parts[i] = c.String()
	}
	return fmt.Sprintf("%s(%s)", v.Type(), strings.Join(parts, ", "))
}

func (m MatrixValue) String() string {
	parts := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		parts[i] = c.String()
	}
	return fmt.Sprintf("%s(%s)", m.Type(), strings.Join(parts, ", "))
}

// formatFloat always keeps a decimal point so the literal re-lexes as a float.
func formatFloat(f float64, bits int) string {
	s := strconv.FormatFloat(f, 'g', -1, bits)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// ValuesEqual compares two constant values. Floats are compared by bit
// pattern so NaN equals itself.
func ValuesEqual(a, b ConstantValue) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case BoolValue, Int32Value, UInt32Value:
		return a == b
	case Float32Value:
		y, ok := b.(Float32Value)
		return ok && math.Float32bits(float32(x)) == math.Float32bits(float32(y))
	case Float64Value:
		y, ok := b.(Float64Value)
		return ok && math.Float64bits(float64(x)) == math.Float64bits(float64(y))
	case VectorValue:
		y, ok := b.(VectorValue)
		if !ok || len(x.Components) != len(y.Components) {
			return false
		}
		for i := range x.Components {
			if !ValuesEqual(x.Components[i], y.Components[i]) {
				return false
			}
		}
		return true
	case MatrixValue:
		y, ok := b.(MatrixValue)
		if !ok || len(x.Columns) != len(y.Columns) {
			return false
		}
		for i := range x.Columns {
			if !ValuesEqual(x.Columns[i], y.Columns[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// HashOption returns the stable key of an option in a specialization
// context.
func HashOption(name string) uint32 {
	return crc32.ChecksumIEEE([]byte(name))
}

// OptionValues is a specialization context: option values keyed by
// HashOption of the option name.
type OptionValues map[uint32]ConstantValue

// Set stores the value of the named option.
func (o OptionValues) Set(name string, v ConstantValue) {
	o[HashOption(name)] = v
}

// Lookup returns the value of the named option.
func (o OptionValues) Lookup(name string) (ConstantValue, bool) {
	v, ok := o[HashOption(name)]
	return v, ok
}

// ZeroValue returns the zero constant of a primitive, vector or matrix type.
func ZeroValue(t ExpressionType) (ConstantValue, bool) {
	switch x := t.(type) {
	case PrimitiveType:
		return ScalarFromFloat(x, 0), true
	case VectorType:
		comps := make([]ConstantValue, x.ComponentCount)
		for i := range comps {
			comps[i] = ScalarFromFloat(x.Type, 0)
		}
		return VectorValue{Components: comps}, true
	case MatrixType:
		cols := make([]VectorValue, x.ColumnCount)
		for i := range cols {
			v, _ := ZeroValue(x.ColumnType())
			cols[i] = v.(VectorValue)
		}
		return MatrixValue{Columns: cols}, true
	}
	return nil, false
}

// ScalarFromFloat returns f converted to a scalar constant of type p.
func ScalarFromFloat(p PrimitiveType, f float64) ConstantValue {
	switch p {
	case PrimitiveBool:
		return BoolValue(f != 0)
	case PrimitiveInt32:
		return Int32Value(int32(f))
	case PrimitiveUInt32:
		return UInt32Value(uint32(f))
	case PrimitiveFloat64:
		return Float64Value(f)
	default:
		return Float32Value(float32(f))
	}
}
