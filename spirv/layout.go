package spirv

import (
	"fmt"

	"github.com/gogpu/nzsl/ast"
)

// alignUp rounds offset up to a multiple of align.
func alignUp(offset, align uint32) uint32 {
	return (offset + align - 1) / align * align
}

// scalarSize returns the byte size of a primitive stored in a buffer.
func scalarSize(p ast.PrimitiveType) (uint32, error) {
	switch p {
	case ast.PrimitiveInt32, ast.PrimitiveUInt32, ast.PrimitiveFloat32:
		return 4, nil
	case ast.PrimitiveFloat64:
		return 8, nil
	default:
		return 0, fmt.Errorf("%s cannot be stored in a buffer", p)
	}
}

// vectorAlignmentAndSize returns alignment and size for a vector of given
// component count. Three-component vectors align like four-component ones.
func vectorAlignmentAndSize(p ast.PrimitiveType, components uint32) (align, size uint32, err error) {
	scalar, err := scalarSize(p)
	if err != nil {
		return 0, 0, err
	}
	switch components {
	case 2:
		return scalar * 2, scalar * 2, nil
	case 3:
		return scalar * 4, scalar * 3, nil
	default:
		return scalar * 4, scalar * 4, nil
	}
}

// typeAlignmentAndSize returns the alignment and size of a type under the
// std140 or std430 rules. Arrays, matrix columns and structs are rounded to
// 16 bytes under std140 only. Runtime arrays report the size of one element.
func typeAlignmentAndSize(t ast.ExpressionType, layout ast.MemoryLayout) (align, size uint32, err error) {
	switch x := t.(type) {
	case ast.PrimitiveType:
		s, err := scalarSize(x)
		return s, s, err

	case ast.VectorType:
		return vectorAlignmentAndSize(x.Type, x.ComponentCount)

	case ast.MatrixType:
		stride, err := matrixStride(x, layout)
		if err != nil {
			return 0, 0, err
		}
		return stride, stride * x.ColumnCount, nil

	case ast.ArrayType:
		stride, elemAlign, err := arrayStride(x, layout)
		if err != nil {
			return 0, 0, err
		}
		if x.Length == 0 {
			return elemAlign, stride, nil
		}
		return elemAlign, stride * x.Length, nil

	case ast.StructType:
		_, size, align, err := structLayout(x, layout)
		return align, size, err
	}
	return 0, 0, fmt.Errorf("%s cannot be stored in a buffer", t)
}

// matrixStride returns the distance between two columns of m.
func matrixStride(m ast.MatrixType, layout ast.MemoryLayout) (uint32, error) {
	align, _, err := vectorAlignmentAndSize(m.Type, m.RowCount)
	if err != nil {
		return 0, err
	}
	if layout == ast.LayoutStd140 {
		align = alignUp(align, 16)
	}
	return align, nil
}

// arrayStride returns the distance between two elements of a and the
// alignment of the array.
func arrayStride(a ast.ArrayType, layout ast.MemoryLayout) (stride, align uint32, err error) {
	elemAlign, elemSize, err := typeAlignmentAndSize(a.ContainedType, layout)
	if err != nil {
		return 0, 0, err
	}
	if layout == ast.LayoutStd140 {
		elemAlign = alignUp(elemAlign, 16)
	}
	return alignUp(elemSize, elemAlign), elemAlign, nil
}

// structLayout returns the offset of each member of st, the size of st and
// its alignment.
func structLayout(st ast.StructType, layout ast.MemoryLayout) (offsets []uint32, size, align uint32, err error) {
	var offset uint32
	maxAlign := uint32(1)
	offsets = make([]uint32, len(st.Members))
	for i, m := range st.Members {
		memberAlign, memberSize, err := typeAlignmentAndSize(m.Type, layout)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("struct %s member %s: %w", st.Name, m.Name, err)
		}
		if memberAlign > maxAlign {
			maxAlign = memberAlign
		}

		// Align offset to the type's alignment requirement
		offset = alignUp(offset, memberAlign)
		offsets[i] = offset
		offset += memberSize
	}
	if layout == ast.LayoutStd140 {
		maxAlign = alignUp(maxAlign, 16)
	}
	// Round struct size up to alignment of largest member
	return offsets, alignUp(offset, maxAlign), maxAlign, nil
}
