package serialize

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/nzsl/ast"
)

// Magic starts every encoded module.
const Magic = "NZSB"

// FormatVersion is the version of the binary layout written by Encode.
const FormatVersion = 1

// ErrInvalidEncoding is returned by Decode for truncated or malformed input.
var ErrInvalidEncoding = errors.New("serialize: invalid encoding")

// Statement tags.
const (
	stmtNil byte = iota
	stmtExpression
	stmtDeclareVariable
	stmtDeclareConst
	stmtDeclareAlias
	stmtDeclareOption
	stmtDeclareStruct
	stmtDeclareFunction
	stmtDeclareExternal
	stmtBranch
	stmtConditional
	stmtFor
	stmtForEach
	stmtWhile
	stmtReturn
	stmtDiscard
	stmtBreak
	stmtContinue
	stmtImport
	stmtMulti
	stmtScoped
	stmtNoOp
)

// Expression tags.
const (
	exprNil byte = iota
	exprIdentifier
	exprVariableValue
	exprConstant
	exprConstantValue
	exprBinary
	exprUnary
	exprAssign
	exprCast
	exprConditional
	exprAccessIndex
	exprAccessIdentifier
	exprSwizzle
	exprCallFunction
	exprCallMethod
	exprIntrinsic
	exprFunction
	exprIntrinsicFunction
	exprStructType
	exprType
)

// Type tags.
const (
	typeNil byte = iota
	typePrimitive
	typeVector
	typeMatrix
	typeArray
	typeStruct
	typeSampler
	typeUniform
	typeStorage
	typeFunction
	typeIntrinsicFunction
	typeVoid
)

// Constant value tags.
const (
	valueNil byte = iota
	valueBool
	valueInt32
	valueUInt32
	valueFloat32
	valueFloat64
	valueVector
	valueMatrix
)

// Encode writes a module in the compact binary form: the magic, the format
// version, a string table and the tagged tree. Integers are uvarints, signed
// integers zigzag varints. Resolved types, IDs and spans are preserved, so
// Decode(Encode(m)) is equal to m under ast.ModulesEqual.
func Encode(m *ast.Module) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("serialize: nil module")
	}
	e := &encoder{strings: make(map[string]uint64)}
	if err := e.module(m); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(Magic)+len(e.buf)+16*len(e.table))
	out = append(out, Magic...)
	out = binary.AppendUvarint(out, FormatVersion)
	out = binary.AppendUvarint(out, uint64(len(e.table)))
	for _, s := range e.table {
		out = binary.AppendUvarint(out, uint64(len(s)))
		out = append(out, s...)
	}
	return append(out, e.buf...), nil
}

type encoder struct {
	buf     []byte
	strings map[string]uint64
	table   []string
}

func (e *encoder) byte(b byte)      { e.buf = append(e.buf, b) }
func (e *encoder) uvarint(v uint64) { e.buf = binary.AppendUvarint(e.buf, v) }
func (e *encoder) varint(v int64)   { e.buf = binary.AppendVarint(e.buf, v) }
func (e *encoder) int(v int)        { e.varint(int64(v)) }
func (e *encoder) uint32(v uint32)  { e.uvarint(uint64(v)) }
func (e *encoder) length(n int)     { e.uvarint(uint64(n)) }
func (e *encoder) tagged(tag byte)  { e.byte(tag) }
func (e *encoder) boolean(v bool)   { e.byte(boolByte(v)) }
func (e *encoder) uint32s(v [3]uint32) {
	for _, x := range v {
		e.uint32(x)
	}
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// str writes the string table index of s.
func (e *encoder) str(s string) {
	idx, ok := e.strings[s]
	if !ok {
		idx = uint64(len(e.table))
		e.strings[s] = idx
		e.table = append(e.table, s)
	}
	e.uvarint(idx)
}

func (e *encoder) span(s ast.Span) {
	e.int(s.Start.Line)
	e.int(s.Start.Column)
	e.int(s.Start.Offset)
	e.int(s.End.Line)
	e.int(s.End.Column)
	e.int(s.End.Offset)
	e.str(s.File)
}

func (e *encoder) module(m *ast.Module) error {
	md := m.Metadata
	e.boolean(md != nil)
	if md != nil {
		e.str(md.ModuleName)
		e.uint32(md.LangVersion)
		e.str(md.Author)
		e.str(md.Description)
		e.str(md.License)
		e.length(len(md.Imports))
		for _, name := range md.Imports {
			e.str(name)
		}
	}

	e.length(len(m.ImportedModules))
	for _, im := range m.ImportedModules {
		e.str(im.Identifier)
		if im.Module == nil {
			return fmt.Errorf("serialize: imported module %s is nil", im.Identifier)
		}
		if err := e.module(im.Module); err != nil {
			return err
		}
	}

	var root ast.Statement
	if m.RootNode != nil {
		root = m.RootNode
	}
	return e.statement(root)
}

func encodeAttribute[T comparable](e *encoder, a ast.AttributeValue[T], put func(T)) error {
	e.boolean(a.Resolved)
	if a.Resolved {
		put(a.Value)
	}
	return e.expression(a.Expr)
}

func (e *encoder) statements(list []ast.Statement) error {
	e.length(len(list))
	for _, s := range list {
		if err := e.statement(s); err != nil {
			return err
		}
	}
	return nil
}

//nolint:gocyclo,cyclop,funlen // one case per statement kind
func (e *encoder) statement(st ast.Statement) error {
	if st == nil || isNilStatement(st) {
		e.tagged(stmtNil)
		return nil
	}
	putBool := func(v bool) { e.boolean(v) }
	putUint := func(v uint32) { e.uint32(v) }

	switch s := st.(type) {
	case *ast.ExpressionStatement:
		e.tagged(stmtExpression)
		e.span(s.Span)
		return e.expression(s.Expression)

	case *ast.DeclareVariableStatement:
		e.tagged(stmtDeclareVariable)
		e.span(s.Span)
		e.str(s.VarName)
		e.int(s.VarID)
		return e.expressions(s.VarType, s.InitialExpression)

	case *ast.DeclareConstStatement:
		e.tagged(stmtDeclareConst)
		e.span(s.Span)
		e.str(s.Name)
		e.int(s.ConstID)
		if err := encodeAttribute(e, s.IsExported, putBool); err != nil {
			return err
		}
		return e.expressions(s.Type, s.Expression)

	case *ast.DeclareAliasStatement:
		e.tagged(stmtDeclareAlias)
		e.span(s.Span)
		e.str(s.Name)
		e.int(s.AliasID)
		if err := encodeAttribute(e, s.IsExported, putBool); err != nil {
			return err
		}
		return e.expression(s.Expression)

	case *ast.DeclareOptionStatement:
		e.tagged(stmtDeclareOption)
		e.span(s.Span)
		e.str(s.OptName)
		e.int(s.OptionID)
		return e.expressions(s.OptType, s.DefaultValue)

	case *ast.DeclareStructStatement:
		e.tagged(stmtDeclareStruct)
		e.span(s.Span)
		e.str(s.Description.Name)
		e.int(s.StructID)
		if err := encodeAttribute(e, s.IsExported, putBool); err != nil {
			return err
		}
		if err := encodeAttribute(e, s.Description.Layout, func(v ast.MemoryLayout) { e.byte(byte(v)) }); err != nil {
			return err
		}
		e.length(len(s.Description.Members))
		for _, m := range s.Description.Members {
			e.span(m.Span)
			e.str(m.Name)
			if err := e.expression(m.Type); err != nil {
				return err
			}
			if err := encodeAttribute(e, m.Builtin, func(v ast.BuiltinEntry) { e.byte(byte(v)) }); err != nil {
				return err
			}
			if err := encodeAttribute(e, m.LocationIndex, putUint); err != nil {
				return err
			}
			if err := e.expression(m.Cond); err != nil {
				return err
			}
		}
		return nil

	case *ast.DeclareFunctionStatement:
		e.tagged(stmtDeclareFunction)
		e.span(s.Span)
		e.str(s.Name)
		e.int(s.FuncID)
		e.length(len(s.Parameters))
		for _, p := range s.Parameters {
			e.span(p.Span)
			e.str(p.Name)
			e.int(p.VarID)
			if err := e.expression(p.Type); err != nil {
				return err
			}
		}
		if err := e.expression(s.ReturnType); err != nil {
			return err
		}
		if err := encodeAttribute(e, s.EntryStage, func(v ast.ShaderStage) { e.byte(byte(v)) }); err != nil {
			return err
		}
		if err := encodeAttribute(e, s.EarlyFragmentTests, putBool); err != nil {
			return err
		}
		if err := encodeAttribute(e, s.DepthWrite, func(v ast.DepthWriteMode) { e.byte(byte(v)) }); err != nil {
			return err
		}
		if err := encodeAttribute(e, s.Workgroup, e.uint32s); err != nil {
			return err
		}
		if err := encodeAttribute(e, s.IsExported, putBool); err != nil {
			return err
		}
		return e.statements(s.Statements)

	case *ast.DeclareExternalStatement:
		e.tagged(stmtDeclareExternal)
		e.span(s.Span)
		if err := encodeAttribute(e, s.BindingSet, putUint); err != nil {
			return err
		}
		e.length(len(s.Externals))
		for _, ext := range s.Externals {
			e.span(ext.Span)
			e.str(ext.Name)
			e.int(ext.VarID)
			if err := e.expression(ext.Type); err != nil {
				return err
			}
			if err := encodeAttribute(e, ext.BindingSet, putUint); err != nil {
				return err
			}
			if err := encodeAttribute(e, ext.BindingIndex, putUint); err != nil {
				return err
			}
		}
		return nil

	case *ast.BranchStatement:
		e.tagged(stmtBranch)
		e.span(s.Span)
		e.boolean(s.IsConst)
		e.length(len(s.CondStatements))
		for _, cb := range s.CondStatements {
			if err := e.expression(cb.Condition); err != nil {
				return err
			}
			if err := e.statement(cb.Statement); err != nil {
				return err
			}
		}
		return e.statement(s.ElseStatement)

	case *ast.ConditionalStatement:
		e.tagged(stmtConditional)
		e.span(s.Span)
		if err := e.expression(s.Condition); err != nil {
			return err
		}
		return e.statement(s.Statement)

	case *ast.ForStatement:
		e.tagged(stmtFor)
		e.span(s.Span)
		e.str(s.VarName)
		e.int(s.VarID)
		if err := encodeAttribute(e, s.Unroll, func(v ast.LoopUnroll) { e.byte(byte(v)) }); err != nil {
			return err
		}
		if err := e.expressions(s.FromExpr, s.ToExpr, s.StepExpr); err != nil {
			return err
		}
		return e.statement(s.Statement)

	case *ast.ForEachStatement:
		e.tagged(stmtForEach)
		e.span(s.Span)
		e.str(s.VarName)
		e.int(s.VarID)
		if err := encodeAttribute(e, s.Unroll, func(v ast.LoopUnroll) { e.byte(byte(v)) }); err != nil {
			return err
		}
		if err := e.expression(s.Expression); err != nil {
			return err
		}
		return e.statement(s.Statement)

	case *ast.WhileStatement:
		e.tagged(stmtWhile)
		e.span(s.Span)
		if err := encodeAttribute(e, s.Unroll, func(v ast.LoopUnroll) { e.byte(byte(v)) }); err != nil {
			return err
		}
		if err := e.expression(s.Condition); err != nil {
			return err
		}
		return e.statement(s.Body)

	case *ast.ReturnStatement:
		e.tagged(stmtReturn)
		e.span(s.Span)
		return e.expression(s.ReturnExpr)

	case *ast.DiscardStatement:
		e.tagged(stmtDiscard)
		e.span(s.Span)
	case *ast.BreakStatement:
		e.tagged(stmtBreak)
		e.span(s.Span)
	case *ast.ContinueStatement:
		e.tagged(stmtContinue)
		e.span(s.Span)
	case *ast.NoOpStatement:
		e.tagged(stmtNoOp)
		e.span(s.Span)

	case *ast.ImportStatement:
		e.tagged(stmtImport)
		e.span(s.Span)
		e.str(s.ModuleName)
		e.length(len(s.Identifiers))
		for _, id := range s.Identifiers {
			e.span(id.Span)
			e.str(id.Identifier)
			e.str(id.RenamedIdentifier)
		}

	case *ast.MultiStatement:
		e.tagged(stmtMulti)
		e.span(s.Span)
		return e.statements(s.Statements)

	case *ast.ScopedStatement:
		e.tagged(stmtScoped)
		e.span(s.Span)
		return e.statement(s.Statement)

	default:
		return fmt.Errorf("serialize: unsupported statement %T", st)
	}
	return nil
}

// isNilStatement reports a typed nil, as stored in a nil *MultiStatement.
func isNilStatement(st ast.Statement) bool {
	m, ok := st.(*ast.MultiStatement)
	return ok && m == nil
}

func (e *encoder) expressions(list ...ast.Expression) error {
	for _, x := range list {
		if err := e.expression(x); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) expressionList(list []ast.Expression) error {
	e.length(len(list))
	return e.expressions(list...)
}

//nolint:gocyclo,cyclop // one case per expression kind
func (e *encoder) expression(x ast.Expression) error {
	if x == nil {
		e.tagged(exprNil)
		return nil
	}

	var tag byte
	switch x.(type) {
	case *ast.IdentifierExpression:
		tag = exprIdentifier
	case *ast.VariableValueExpression:
		tag = exprVariableValue
	case *ast.ConstantExpression:
		tag = exprConstant
	case *ast.ConstantValueExpression:
		tag = exprConstantValue
	case *ast.BinaryExpression:
		tag = exprBinary
	case *ast.UnaryExpression:
		tag = exprUnary
	case *ast.AssignExpression:
		tag = exprAssign
	case *ast.CastExpression:
		tag = exprCast
	case *ast.ConditionalExpression:
		tag = exprConditional
	case *ast.AccessIndexExpression:
		tag = exprAccessIndex
	case *ast.AccessIdentifierExpression:
		tag = exprAccessIdentifier
	case *ast.SwizzleExpression:
		tag = exprSwizzle
	case *ast.CallFunctionExpression:
		tag = exprCallFunction
	case *ast.CallMethodExpression:
		tag = exprCallMethod
	case *ast.IntrinsicExpression:
		tag = exprIntrinsic
	case *ast.FunctionExpression:
		tag = exprFunction
	case *ast.IntrinsicFunctionExpression:
		tag = exprIntrinsicFunction
	case *ast.StructTypeExpression:
		tag = exprStructType
	case *ast.TypeExpression:
		tag = exprType
	default:
		return fmt.Errorf("serialize: unsupported expression %T", x)
	}
	e.tagged(tag)
	e.span(x.Pos())
	if err := e.typ(x.ResolvedType()); err != nil {
		return err
	}

	switch n := x.(type) {
	case *ast.IdentifierExpression:
		e.str(n.Identifier)
	case *ast.VariableValueExpression:
		e.int(n.VariableID)
	case *ast.ConstantExpression:
		e.int(n.ConstantID)
	case *ast.ConstantValueExpression:
		return e.value(n.Value)
	case *ast.BinaryExpression:
		e.byte(byte(n.Op))
		return e.expressions(n.Left, n.Right)
	case *ast.UnaryExpression:
		e.byte(byte(n.Op))
		return e.expression(n.Expression)
	case *ast.AssignExpression:
		e.byte(byte(n.Op))
		return e.expressions(n.Left, n.Right)
	case *ast.CastExpression:
		if err := e.expression(n.TargetType); err != nil {
			return err
		}
		return e.expressionList(n.Expressions)
	case *ast.ConditionalExpression:
		return e.expressions(n.Condition, n.TruePath, n.FalsePath)
	case *ast.AccessIndexExpression:
		if err := e.expression(n.Expr); err != nil {
			return err
		}
		return e.expressionList(n.Indices)
	case *ast.AccessIdentifierExpression:
		if err := e.expression(n.Expr); err != nil {
			return err
		}
		e.length(len(n.Identifiers))
		for _, id := range n.Identifiers {
			e.str(id.Name)
			e.span(id.Span)
		}
	case *ast.SwizzleExpression:
		e.uint32(n.ComponentCount)
		for _, c := range n.Components {
			e.uint32(c)
		}
		return e.expression(n.Expr)
	case *ast.CallFunctionExpression:
		if err := e.expression(n.TargetFunction); err != nil {
			return err
		}
		return e.expressionList(n.Parameters)
	case *ast.CallMethodExpression:
		e.str(n.MethodName)
		if err := e.expression(n.Object); err != nil {
			return err
		}
		return e.expressionList(n.Parameters)
	case *ast.IntrinsicExpression:
		e.byte(byte(n.Intrinsic))
		return e.expressionList(n.Parameters)
	case *ast.FunctionExpression:
		e.int(n.FunctionID)
	case *ast.IntrinsicFunctionExpression:
		e.byte(byte(n.Intrinsic))
	case *ast.StructTypeExpression:
		e.int(n.StructID)
	case *ast.TypeExpression:
		return e.typ(n.Value)
	}
	return nil
}

func (e *encoder) typ(t ast.ExpressionType) error {
	switch x := t.(type) {
	case nil:
		e.tagged(typeNil)
	case ast.PrimitiveType:
		e.tagged(typePrimitive)
		e.byte(byte(x))
	case ast.VectorType:
		e.tagged(typeVector)
		e.uint32(x.ComponentCount)
		e.byte(byte(x.Type))
	case ast.MatrixType:
		e.tagged(typeMatrix)
		e.uint32(x.ColumnCount)
		e.uint32(x.RowCount)
		e.byte(byte(x.Type))
	case ast.ArrayType:
		e.tagged(typeArray)
		e.uint32(x.Length)
		return e.typ(x.ContainedType)
	case ast.StructType:
		e.tagged(typeStruct)
		return e.structType(x)
	case ast.SamplerType:
		e.tagged(typeSampler)
		e.byte(byte(x.Dim))
		e.byte(byte(x.SampledType))
		e.boolean(x.Depth)
	case ast.UniformType:
		e.tagged(typeUniform)
		return e.structType(x.Container)
	case ast.StorageType:
		e.tagged(typeStorage)
		return e.structType(x.Container)
	case ast.FunctionType:
		e.tagged(typeFunction)
		e.int(x.FunctionID)
		e.str(x.Name)
		e.length(len(x.Parameters))
		for _, p := range x.Parameters {
			if err := e.typ(p); err != nil {
				return err
			}
		}
		return e.typ(x.Return)
	case ast.IntrinsicFunctionType:
		e.tagged(typeIntrinsicFunction)
		e.byte(byte(x.Intrinsic))
	case ast.NoType:
		e.tagged(typeVoid)
	default:
		return fmt.Errorf("serialize: unsupported type %T", t)
	}
	return nil
}

func (e *encoder) structType(s ast.StructType) error {
	e.int(s.StructID)
	e.str(s.Name)
	e.length(len(s.Members))
	for _, m := range s.Members {
		e.str(m.Name)
		if err := e.typ(m.Type); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) value(v ast.ConstantValue) error {
	switch x := v.(type) {
	case nil:
		e.tagged(valueNil)
	case ast.BoolValue:
		e.tagged(valueBool)
		e.boolean(bool(x))
	case ast.Int32Value:
		e.tagged(valueInt32)
		e.varint(int64(x))
	case ast.UInt32Value:
		e.tagged(valueUInt32)
		e.uint32(uint32(x))
	case ast.Float32Value:
		e.tagged(valueFloat32)
		e.uint32(math.Float32bits(float32(x)))
	case ast.Float64Value:
		e.tagged(valueFloat64)
		e.uvarint(math.Float64bits(float64(x)))
	case ast.VectorValue:
		e.tagged(valueVector)
		e.length(len(x.Components))
		for _, c := range x.Components {
			if err := e.value(c); err != nil {
				return err
			}
		}
	case ast.MatrixValue:
		e.tagged(valueMatrix)
		e.length(len(x.Columns))
		for _, c := range x.Columns {
			if err := e.value(c); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("serialize: unsupported constant %T", v)
	}
	return nil
}

// Decode reads a module written by Encode.
func Decode(data []byte) (*ast.Module, error) {
	if !bytes.HasPrefix(data, []byte(Magic)) {
		return nil, fmt.Errorf("%w: missing %s magic", ErrInvalidEncoding, Magic)
	}
	d := &decoder{data: data, pos: len(Magic)}
	if v := d.uvarint(); d.err == nil && v != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrInvalidEncoding, v)
	}
	n := d.length()
	d.table = make([]string, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		size := d.length()
		if d.err == nil {
			d.table = append(d.table, string(d.data[d.pos:d.pos+size]))
			d.pos += size
		}
	}

	m := d.module()
	if d.err != nil {
		return nil, d.err
	}
	if d.pos != len(d.data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidEncoding, len(d.data)-d.pos)
	}
	return m, nil
}

// decoder reads the encoded tree. The first error sticks and every later
// read returns a zero value.
type decoder struct {
	data  []byte
	pos   int
	table []string
	err   error
	depth int
}

// maxDepth bounds the nesting of decoded nodes.
const maxDepth = 1 << 12

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %s at byte %d", ErrInvalidEncoding, fmt.Sprintf(format, args...), d.pos)
	}
}

func (d *decoder) byte() byte {
	if d.err != nil {
		return 0
	}
	if d.pos >= len(d.data) {
		d.fail("unexpected end of data")
		return 0
	}
	b := d.data[d.pos]
	d.pos++
	return b
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.data[d.pos:])
	if n <= 0 {
		d.fail("malformed uvarint")
		return 0
	}
	d.pos += n
	return v
}

func (d *decoder) varint() int64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Varint(d.data[d.pos:])
	if n <= 0 {
		d.fail("malformed varint")
		return 0
	}
	d.pos += n
	return v
}

func (d *decoder) int() int { return int(d.varint()) }

func (d *decoder) uint32() uint32 {
	v := d.uvarint()
	if v > math.MaxUint32 {
		d.fail("value %d overflows uint32", v)
		return 0
	}
	return uint32(v)
}

// length reads a count, which can never exceed the remaining input.
func (d *decoder) length() int {
	v := d.uvarint()
	if v > uint64(len(d.data)-d.pos) {
		d.fail("length %d exceeds input", v)
		return 0
	}
	return int(v)
}

func (d *decoder) boolean() bool {
	switch d.byte() {
	case 0:
		return false
	case 1:
		return true
	}
	d.fail("malformed bool")
	return false
}

func (d *decoder) str() string {
	idx := d.uvarint()
	if d.err != nil {
		return ""
	}
	if idx >= uint64(len(d.table)) {
		d.fail("string index %d out of range", idx)
		return ""
	}
	return d.table[idx]
}

func (d *decoder) span() ast.Span {
	var s ast.Span
	s.Start.Line = d.int()
	s.Start.Column = d.int()
	s.Start.Offset = d.int()
	s.End.Line = d.int()
	s.End.Column = d.int()
	s.End.Offset = d.int()
	s.File = d.str()
	return s
}

func (d *decoder) enter() bool {
	d.depth++
	if d.depth > maxDepth {
		d.fail("nesting deeper than %d", maxDepth)
	}
	return d.err == nil
}

func (d *decoder) leave() { d.depth-- }

func (d *decoder) module() *ast.Module {
	if !d.enter() {
		return nil
	}
	defer d.leave()

	m := &ast.Module{}
	if d.boolean() {
		md := &ast.Metadata{
			ModuleName:  d.str(),
			LangVersion: d.uint32(),
			Author:      d.str(),
			Description: d.str(),
			License:     d.str(),
		}
		if n := d.length(); n > 0 {
			md.Imports = make([]string, n)
			for i := range md.Imports {
				md.Imports[i] = d.str()
			}
		}
		m.Metadata = md
	}

	if n := d.length(); n > 0 {
		m.ImportedModules = make([]ast.ImportedModule, 0, n)
		for i := 0; i < n && d.err == nil; i++ {
			id := d.str()
			m.ImportedModules = append(m.ImportedModules, ast.ImportedModule{Identifier: id, Module: d.module()})
		}
	}

	switch root := d.statement().(type) {
	case nil:
	case *ast.MultiStatement:
		m.RootNode = root
	default:
		d.fail("module root is %T", root)
	}
	return m
}

func decodeAttribute[T comparable](d *decoder, get func() T) ast.AttributeValue[T] {
	var a ast.AttributeValue[T]
	if d.boolean() {
		a.Value = get()
		a.Resolved = true
	}
	a.Expr = d.expression()
	return a
}

func (d *decoder) statements() []ast.Statement {
	n := d.length()
	if n == 0 {
		return nil
	}
	list := make([]ast.Statement, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		list = append(list, d.statement())
	}
	return list
}

//nolint:gocyclo,cyclop,funlen // one case per statement kind
func (d *decoder) statement() ast.Statement {
	if !d.enter() {
		return nil
	}
	defer d.leave()

	tag := d.byte()
	if tag == stmtNil || d.err != nil {
		return nil
	}
	base := ast.StatementBase{Span: d.span()}
	getBool := d.boolean
	getUint := d.uint32

	switch tag {
	case stmtExpression:
		return &ast.ExpressionStatement{StatementBase: base, Expression: d.expression()}

	case stmtDeclareVariable:
		s := &ast.DeclareVariableStatement{StatementBase: base, VarName: d.str(), VarID: d.int()}
		s.VarType = d.expression()
		s.InitialExpression = d.expression()
		return s

	case stmtDeclareConst:
		s := &ast.DeclareConstStatement{StatementBase: base, Name: d.str(), ConstID: d.int()}
		s.IsExported = decodeAttribute(d, getBool)
		s.Type = d.expression()
		s.Expression = d.expression()
		return s

	case stmtDeclareAlias:
		s := &ast.DeclareAliasStatement{StatementBase: base, Name: d.str(), AliasID: d.int()}
		s.IsExported = decodeAttribute(d, getBool)
		s.Expression = d.expression()
		return s

	case stmtDeclareOption:
		s := &ast.DeclareOptionStatement{StatementBase: base, OptName: d.str(), OptionID: d.int()}
		s.OptType = d.expression()
		s.DefaultValue = d.expression()
		return s

	case stmtDeclareStruct:
		s := &ast.DeclareStructStatement{StatementBase: base}
		s.Description.Name = d.str()
		s.StructID = d.int()
		s.IsExported = decodeAttribute(d, getBool)
		s.Description.Layout = decodeAttribute(d, func() ast.MemoryLayout { return ast.MemoryLayout(d.byte()) })
		n := d.length()
		for i := 0; i < n && d.err == nil; i++ {
			m := ast.StructMember{Span: d.span(), Name: d.str()}
			m.Type = d.expression()
			m.Builtin = decodeAttribute(d, func() ast.BuiltinEntry { return ast.BuiltinEntry(d.byte()) })
			m.LocationIndex = decodeAttribute(d, getUint)
			m.Cond = d.expression()
			s.Description.Members = append(s.Description.Members, m)
		}
		return s

	case stmtDeclareFunction:
		s := &ast.DeclareFunctionStatement{StatementBase: base, Name: d.str(), FuncID: d.int()}
		n := d.length()
		for i := 0; i < n && d.err == nil; i++ {
			p := ast.FunctionParameter{Span: d.span(), Name: d.str(), VarID: d.int()}
			p.Type = d.expression()
			s.Parameters = append(s.Parameters, p)
		}
		s.ReturnType = d.expression()
		s.EntryStage = decodeAttribute(d, func() ast.ShaderStage { return ast.ShaderStage(d.byte()) })
		s.EarlyFragmentTests = decodeAttribute(d, getBool)
		s.DepthWrite = decodeAttribute(d, func() ast.DepthWriteMode { return ast.DepthWriteMode(d.byte()) })
		s.Workgroup = decodeAttribute(d, func() [3]uint32 { return [3]uint32{d.uint32(), d.uint32(), d.uint32()} })
		s.IsExported = decodeAttribute(d, getBool)
		s.Statements = d.statements()
		return s

	case stmtDeclareExternal:
		s := &ast.DeclareExternalStatement{StatementBase: base}
		s.BindingSet = decodeAttribute(d, getUint)
		n := d.length()
		for i := 0; i < n && d.err == nil; i++ {
			ext := ast.ExternalVar{Span: d.span(), Name: d.str(), VarID: d.int()}
			ext.Type = d.expression()
			ext.BindingSet = decodeAttribute(d, getUint)
			ext.BindingIndex = decodeAttribute(d, getUint)
			s.Externals = append(s.Externals, ext)
		}
		return s

	case stmtBranch:
		s := &ast.BranchStatement{StatementBase: base, IsConst: d.boolean()}
		n := d.length()
		for i := 0; i < n && d.err == nil; i++ {
			cb := ast.ConditionalBranch{Condition: d.expression()}
			cb.Statement = d.statement()
			s.CondStatements = append(s.CondStatements, cb)
		}
		s.ElseStatement = d.statement()
		return s

	case stmtConditional:
		s := &ast.ConditionalStatement{StatementBase: base, Condition: d.expression()}
		s.Statement = d.statement()
		return s

	case stmtFor:
		s := &ast.ForStatement{StatementBase: base, VarName: d.str(), VarID: d.int()}
		s.Unroll = decodeAttribute(d, func() ast.LoopUnroll { return ast.LoopUnroll(d.byte()) })
		s.FromExpr = d.expression()
		s.ToExpr = d.expression()
		s.StepExpr = d.expression()
		s.Statement = d.statement()
		return s

	case stmtForEach:
		s := &ast.ForEachStatement{StatementBase: base, VarName: d.str(), VarID: d.int()}
		s.Unroll = decodeAttribute(d, func() ast.LoopUnroll { return ast.LoopUnroll(d.byte()) })
		s.Expression = d.expression()
		s.Statement = d.statement()
		return s

	case stmtWhile:
		s := &ast.WhileStatement{StatementBase: base}
		s.Unroll = decodeAttribute(d, func() ast.LoopUnroll { return ast.LoopUnroll(d.byte()) })
		s.Condition = d.expression()
		s.Body = d.statement()
		return s

	case stmtReturn:
		return &ast.ReturnStatement{StatementBase: base, ReturnExpr: d.expression()}
	case stmtDiscard:
		return &ast.DiscardStatement{StatementBase: base}
	case stmtBreak:
		return &ast.BreakStatement{StatementBase: base}
	case stmtContinue:
		return &ast.ContinueStatement{StatementBase: base}
	case stmtNoOp:
		return &ast.NoOpStatement{StatementBase: base}

	case stmtImport:
		s := &ast.ImportStatement{StatementBase: base, ModuleName: d.str()}
		n := d.length()
		for i := 0; i < n && d.err == nil; i++ {
			s.Identifiers = append(s.Identifiers, ast.ImportIdentifier{Span: d.span(), Identifier: d.str(), RenamedIdentifier: d.str()})
		}
		return s

	case stmtMulti:
		return &ast.MultiStatement{StatementBase: base, Statements: d.statements()}
	case stmtScoped:
		return &ast.ScopedStatement{StatementBase: base, Statement: d.statement()}
	}
	d.fail("unknown statement tag %d", tag)
	return nil
}

func (d *decoder) expressionList() []ast.Expression {
	n := d.length()
	if n == 0 {
		return nil
	}
	list := make([]ast.Expression, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		list = append(list, d.expression())
	}
	return list
}

//nolint:gocyclo,cyclop,funlen // one case per expression kind
func (d *decoder) expression() ast.Expression {
	if !d.enter() {
		return nil
	}
	defer d.leave()

	tag := d.byte()
	if tag == exprNil || d.err != nil {
		return nil
	}
	base := ast.ExpressionBase{Span: d.span()}
	base.Type = d.typ()

	var x ast.Expression
	switch tag {
	case exprIdentifier:
		x = &ast.IdentifierExpression{ExpressionBase: base, Identifier: d.str()}
	case exprVariableValue:
		x = &ast.VariableValueExpression{ExpressionBase: base, VariableID: d.int()}
	case exprConstant:
		x = &ast.ConstantExpression{ExpressionBase: base, ConstantID: d.int()}
	case exprConstantValue:
		x = &ast.ConstantValueExpression{ExpressionBase: base, Value: d.value()}
	case exprBinary:
		n := &ast.BinaryExpression{ExpressionBase: base, Op: ast.BinaryType(d.byte())}
		n.Left = d.expression()
		n.Right = d.expression()
		x = n
	case exprUnary:
		n := &ast.UnaryExpression{ExpressionBase: base, Op: ast.UnaryType(d.byte())}
		n.Expression = d.expression()
		x = n
	case exprAssign:
		n := &ast.AssignExpression{ExpressionBase: base, Op: ast.AssignType(d.byte())}
		n.Left = d.expression()
		n.Right = d.expression()
		x = n
	case exprCast:
		n := &ast.CastExpression{ExpressionBase: base, TargetType: d.expression()}
		n.Expressions = d.expressionList()
		x = n
	case exprConditional:
		n := &ast.ConditionalExpression{ExpressionBase: base, Condition: d.expression()}
		n.TruePath = d.expression()
		n.FalsePath = d.expression()
		x = n
	case exprAccessIndex:
		n := &ast.AccessIndexExpression{ExpressionBase: base, Expr: d.expression()}
		n.Indices = d.expressionList()
		x = n
	case exprAccessIdentifier:
		n := &ast.AccessIdentifierExpression{ExpressionBase: base, Expr: d.expression()}
		count := d.length()
		for i := 0; i < count && d.err == nil; i++ {
			n.Identifiers = append(n.Identifiers, ast.Identifier{Name: d.str(), Span: d.span()})
		}
		x = n
	case exprSwizzle:
		n := &ast.SwizzleExpression{ExpressionBase: base, ComponentCount: d.uint32()}
		for i := range n.Components {
			n.Components[i] = d.uint32()
		}
		if n.ComponentCount > 4 {
			d.fail("swizzle of %d components", n.ComponentCount)
		}
		n.Expr = d.expression()
		x = n
	case exprCallFunction:
		n := &ast.CallFunctionExpression{ExpressionBase: base, TargetFunction: d.expression()}
		n.Parameters = d.expressionList()
		x = n
	case exprCallMethod:
		n := &ast.CallMethodExpression{ExpressionBase: base, MethodName: d.str()}
		n.Object = d.expression()
		n.Parameters = d.expressionList()
		x = n
	case exprIntrinsic:
		n := &ast.IntrinsicExpression{ExpressionBase: base, Intrinsic: ast.IntrinsicType(d.byte())}
		n.Parameters = d.expressionList()
		x = n
	case exprFunction:
		x = &ast.FunctionExpression{ExpressionBase: base, FunctionID: d.int()}
	case exprIntrinsicFunction:
		x = &ast.IntrinsicFunctionExpression{ExpressionBase: base, Intrinsic: ast.IntrinsicType(d.byte())}
	case exprStructType:
		x = &ast.StructTypeExpression{ExpressionBase: base, StructID: d.int()}
	case exprType:
		x = &ast.TypeExpression{ExpressionBase: base, Value: d.typ()}
	default:
		d.fail("unknown expression tag %d", tag)
		return nil
	}
	return x
}

func (d *decoder) typ() ast.ExpressionType {
	if !d.enter() {
		return nil
	}
	defer d.leave()

	switch tag := d.byte(); tag {
	case typeNil:
		return nil
	case typePrimitive:
		return ast.PrimitiveType(d.byte())
	case typeVector:
		return ast.VectorType{ComponentCount: d.uint32(), Type: ast.PrimitiveType(d.byte())}
	case typeMatrix:
		return ast.MatrixType{ColumnCount: d.uint32(), RowCount: d.uint32(), Type: ast.PrimitiveType(d.byte())}
	case typeArray:
		length := d.uint32()
		return ast.ArrayType{Length: length, ContainedType: d.typ()}
	case typeStruct:
		return d.structType()
	case typeSampler:
		return ast.SamplerType{Dim: ast.ImageDimension(d.byte()), SampledType: ast.PrimitiveType(d.byte()), Depth: d.boolean()}
	case typeUniform:
		return ast.UniformType{Container: d.structType()}
	case typeStorage:
		return ast.StorageType{Container: d.structType()}
	case typeFunction:
		f := ast.FunctionType{FunctionID: d.int(), Name: d.str()}
		n := d.length()
		for i := 0; i < n && d.err == nil; i++ {
			f.Parameters = append(f.Parameters, d.typ())
		}
		f.Return = d.typ()
		return f
	case typeIntrinsicFunction:
		return ast.IntrinsicFunctionType{Intrinsic: ast.IntrinsicType(d.byte())}
	case typeVoid:
		return ast.NoType{}
	default:
		d.fail("unknown type tag %d", tag)
		return nil
	}
}

func (d *decoder) structType() ast.StructType {
	s := ast.StructType{StructID: d.int(), Name: d.str()}
	n := d.length()
	for i := 0; i < n && d.err == nil; i++ {
		s.Members = append(s.Members, ast.StructMemberType{Name: d.str(), Type: d.typ()})
	}
	return s
}

func (d *decoder) value() ast.ConstantValue {
	if !d.enter() {
		return nil
	}
	defer d.leave()

	switch tag := d.byte(); tag {
	case valueNil:
		return nil
	case valueBool:
		return ast.BoolValue(d.boolean())
	case valueInt32:
		v := d.varint()
		if v < math.MinInt32 || v > math.MaxInt32 {
			d.fail("value %d overflows int32", v)
		}
		return ast.Int32Value(int32(v))
	case valueUInt32:
		return ast.UInt32Value(d.uint32())
	case valueFloat32:
		return ast.Float32Value(math.Float32frombits(d.uint32()))
	case valueFloat64:
		return ast.Float64Value(math.Float64frombits(d.uvarint()))
	case valueVector:
		n := d.length()
		v := ast.VectorValue{Components: make([]ast.ConstantValue, 0, n)}
		for i := 0; i < n && d.err == nil; i++ {
			v.Components = append(v.Components, d.value())
		}
		return v
	case valueMatrix:
		n := d.length()
		m := ast.MatrixValue{Columns: make([]ast.VectorValue, 0, n)}
		for i := 0; i < n && d.err == nil; i++ {
			col, ok := d.value().(ast.VectorValue)
			if !ok {
				d.fail("matrix column is not a vector")
				return nil
			}
			m.Columns = append(m.Columns, col)
		}
		return m
	default:
		d.fail("unknown constant tag %d", tag)
		return nil
	}
}
