package spirv

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gogpu/nzsl/ast"
)

// pointerKey identifies a pointer type by storage class and pointee.
type pointerKey struct {
	class StorageClass
	base  uint32
}

// typeRegistry deduplicates types, pointers and constants by shape so that
// structurally identical declarations are emitted once.
type typeRegistry struct {
	builder *ModuleBuilder

	types     map[string]uint32
	pointers  map[pointerKey]uint32
	constants map[string]uint32
	funcTypes map[string]uint32

	// debug emits OpName and OpMemberName for structs.
	debug bool

	// keyBuf is reused by normalizeType for scalar keys.
	keyBuf []byte
}

func newTypeRegistry(builder *ModuleBuilder) *typeRegistry {
	return &typeRegistry{
		builder:   builder,
		types:     make(map[string]uint32),
		pointers:  make(map[pointerKey]uint32),
		constants: make(map[string]uint32),
		funcTypes: make(map[string]uint32),
	}
}

// normalizeType creates a unique key for a type based on its structure.
// Two structurally identical types will produce the same key.
func (r *typeRegistry) normalizeType(t ast.ExpressionType) string {
	switch x := t.(type) {
	case ast.PrimitiveType:
		b := r.keyBuf[:0]
		b = append(b, "scalar:"...)
		b = strconv.AppendUint(b, uint64(x), 10)
		r.keyBuf = b
		return string(b)
	case ast.VectorType:
		return "vec:" + strconv.FormatUint(uint64(x.ComponentCount), 10) + ":" + r.normalizeType(x.Type)
	case ast.MatrixType:
		return "mat:" + strconv.FormatUint(uint64(x.ColumnCount), 10) + "x" +
			strconv.FormatUint(uint64(x.RowCount), 10) + ":" + r.normalizeType(x.Type)
	case ast.ArrayType:
		size := "runtime"
		if x.Length > 0 {
			size = strconv.FormatUint(uint64(x.Length), 10)
		}
		return "array:" + size + ":" + r.normalizeType(x.ContainedType)
	case ast.StructType:
		var sb strings.Builder
		sb.WriteString("struct:")
		sb.WriteString(x.Name)
		for _, m := range x.Members {
			fmt.Fprintf(&sb, ":m(%s,%s)", m.Name, r.normalizeType(m.Type))
		}
		return sb.String()
	case ast.SamplerType:
		return fmt.Sprintf("sampler:%d:%d:%v", x.Dim, x.SampledType, x.Depth)
	case ast.NoType, nil:
		return "void"
	default:
		return fmt.Sprintf("unknown:%T", t)
	}
}

// typeID returns the ID of t, declaring it and its dependencies on first use.
//
//nolint:gocyclo,cyclop // Type dispatch covers every type variant
func (r *typeRegistry) typeID(t ast.ExpressionType) (uint32, error) {
	switch x := t.(type) {
	case ast.UniformType:
		return r.typeID(x.Container)
	case ast.StorageType:
		return r.typeID(x.Container)
	case ast.FunctionType, ast.IntrinsicFunctionType:
		return 0, fmt.Errorf("%s is not a value type", t)
	}

	key := r.normalizeType(t)
	if id, ok := r.types[key]; ok {
		return id, nil
	}

	var id uint32
	switch x := t.(type) {
	case ast.NoType, nil:
		id = r.builder.AddTypeVoid()
	case ast.PrimitiveType:
		switch x {
		case ast.PrimitiveBool:
			id = r.builder.AddTypeBool()
		case ast.PrimitiveInt32:
			id = r.builder.AddTypeInt(32, true)
		case ast.PrimitiveUInt32:
			id = r.builder.AddTypeInt(32, false)
		case ast.PrimitiveFloat32:
			id = r.builder.AddTypeFloat(32)
		case ast.PrimitiveFloat64:
			r.builder.AddCapability(CapabilityFloat64)
			id = r.builder.AddTypeFloat(64)
		default:
			return 0, fmt.Errorf("unsupported primitive type %s", x)
		}
	case ast.VectorType:
		elem, err := r.typeID(x.Type)
		if err != nil {
			return 0, err
		}
		id = r.builder.AddTypeVector(elem, x.ComponentCount)
	case ast.MatrixType:
		column, err := r.typeID(x.ColumnType())
		if err != nil {
			return 0, err
		}
		id = r.builder.AddTypeMatrix(column, x.ColumnCount)
	case ast.ArrayType:
		elem, err := r.typeID(x.ContainedType)
		if err != nil {
			return 0, err
		}
		if x.Length == 0 {
			id = r.builder.AddTypeRuntimeArray(elem)
		} else {
			length, err := r.constantID(ast.UInt32Value(x.Length))
			if err != nil {
				return 0, err
			}
			id = r.builder.AddTypeArray(elem, length)
		}
	case ast.StructType:
		members := make([]uint32, len(x.Members))
		for i, m := range x.Members {
			mt, err := r.typeID(m.Type)
			if err != nil {
				return 0, fmt.Errorf("struct %s member %s: %w", x.Name, m.Name, err)
			}
			members[i] = mt
		}
		id = r.builder.AddTypeStruct(members...)
		if r.debug {
			r.builder.AddName(id, x.Name)
			for i, m := range x.Members {
				r.builder.AddMemberName(id, uint32(i), m.Name)
			}
		}
	case ast.SamplerType:
		sampled, err := r.typeID(x.SampledType)
		if err != nil {
			return 0, err
		}
		var dim Dim
		switch x.Dim {
		case ast.Image1D:
			r.builder.AddCapability(CapabilitySampled1D)
			dim = Dim1D
		case ast.Image2D:
			dim = Dim2D
		case ast.Image3D:
			dim = Dim3D
		case ast.ImageCube:
			dim = DimCube
		}
		image := r.builder.AddTypeImage(sampled, dim, x.Depth)
		id = r.builder.AddTypeSampledImage(image)
	default:
		return 0, fmt.Errorf("unsupported type %s", t)
	}
	r.types[key] = id
	return id, nil
}

// pointerType returns the ID of a pointer to base in the given storage class.
func (r *typeRegistry) pointerType(class StorageClass, base uint32) uint32 {
	key := pointerKey{class: class, base: base}
	if id, ok := r.pointers[key]; ok {
		return id
	}
	id := r.builder.AddTypePointer(class, base)
	r.pointers[key] = id
	return id
}

// pointerTo returns the ID of a pointer to t in the given storage class.
func (r *typeRegistry) pointerTo(class StorageClass, t ast.ExpressionType) (uint32, error) {
	base, err := r.typeID(t)
	if err != nil {
		return 0, err
	}
	return r.pointerType(class, base), nil
}

// functionType returns the ID of a function type.
func (r *typeRegistry) functionType(ret uint32, params ...uint32) uint32 {
	key := strconv.FormatUint(uint64(ret), 10)
	for _, p := range params {
		key += "," + strconv.FormatUint(uint64(p), 10)
	}
	if id, ok := r.funcTypes[key]; ok {
		return id
	}
	id := r.builder.AddTypeFunction(ret, params...)
	r.funcTypes[key] = id
	return id
}

// constantID returns the ID of a constant value, declaring it on first use.
// Floats are keyed by bit pattern so -0.0 and 0.0 stay distinct.
func (r *typeRegistry) constantID(v ast.ConstantValue) (uint32, error) {
	key := r.constantKey(v)
	if id, ok := r.constants[key]; ok {
		return id, nil
	}
	typeID, err := r.typeID(v.Type())
	if err != nil {
		return 0, err
	}

	var id uint32
	switch x := v.(type) {
	case ast.BoolValue:
		id = r.builder.AddConstantBool(typeID, bool(x))
	case ast.Int32Value:
		id = r.builder.AddConstant(typeID, uint32(int32(x)))
	case ast.UInt32Value:
		id = r.builder.AddConstant(typeID, uint32(x))
	case ast.Float32Value:
		id = r.builder.AddConstantFloat32(typeID, float32(x))
	case ast.Float64Value:
		id = r.builder.AddConstantFloat64(typeID, float64(x))
	case ast.VectorValue:
		comps := make([]uint32, len(x.Components))
		for i, c := range x.Components {
			if comps[i], err = r.constantID(c); err != nil {
				return 0, err
			}
		}
		id = r.builder.AddConstantComposite(typeID, comps...)
	case ast.MatrixValue:
		cols := make([]uint32, len(x.Columns))
		for i, c := range x.Columns {
			if cols[i], err = r.constantID(c); err != nil {
				return 0, err
			}
		}
		id = r.builder.AddConstantComposite(typeID, cols...)
	default:
		return 0, fmt.Errorf("unsupported constant %T", v)
	}
	r.constants[key] = id
	return id, nil
}

func (r *typeRegistry) constantKey(v ast.ConstantValue) string {
	switch x := v.(type) {
	case ast.Float32Value:
		return "f32:" + strconv.FormatUint(uint64(math.Float32bits(float32(x))), 16)
	case ast.Float64Value:
		return "f64:" + strconv.FormatUint(math.Float64bits(float64(x)), 16)
	case ast.VectorValue:
		parts := make([]string, len(x.Components))
		for i, c := range x.Components {
			parts[i] = r.constantKey(c)
		}
		return "vec(" + strings.Join(parts, ",") + ")"
	case ast.MatrixValue:
		parts := make([]string, len(x.Columns))
		for i, c := range x.Columns {
			parts[i] = r.constantKey(c)
		}
		return "mat(" + strings.Join(parts, ",") + ")"
	default:
		return r.normalizeType(v.Type()) + "=" + v.String()
	}
}
