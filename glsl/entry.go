// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"

	"github.com/gogpu/nzsl/ast"
)

// ioMember is an entry point struct member bound to a pipeline variable.
type ioMember struct {
	name     string // struct member
	variable string // GLSL input, output or built-in variable
}

// entryStructs returns the input and output structs of the entry point.
func (w *Writer) entryStructs() (input, output *ast.DeclareStructStatement, err error) {
	fn := w.entry
	if len(fn.Parameters) == 1 {
		st, ok := resolvedType(fn.Parameters[0].Type).(ast.StructType)
		if !ok {
			return nil, nil, w.errorf(fn.Span, "entry point %s input must be a struct", fn.Name)
		}
		if input, ok = w.structs[st.StructID]; !ok {
			return nil, nil, w.errorf(fn.Span, "unknown struct %s", st.Name)
		}
	}
	if st, ok := resolvedType(fn.ReturnType).(ast.StructType); ok {
		if output, ok = w.structs[st.StructID]; !ok {
			return nil, nil, w.errorf(fn.Span, "unknown struct %s", st.Name)
		}
	}
	return input, output, nil
}

// writeInterface writes the stage layout and the input and output variables
// of the entry point.
func (w *Writer) writeInterface() error {
	fn := w.entry
	switch w.env.Stage {
	case ast.StageCompute:
		if !w.version.SupportsCompute() {
			return w.errorf(fn.Span, "compute shaders require GLSL 4.30 or GLSL ES 3.10, target is %s", w.version)
		}
		size := [3]uint32{1, 1, 1}
		if fn.Workgroup.Resolved {
			size = fn.Workgroup.Value
		}
		w.writeLine("layout(local_size_x = %d, local_size_y = %d, local_size_z = %d) in;", size[0], size[1], size[2])
		w.writeLine("")
	case ast.StageFragment:
		if !w.version.supportsFragmentLayouts() {
			break
		}
		if fn.EarlyFragmentTests.Value {
			w.writeLine("layout(early_fragment_tests) in;")
		}
		if fn.DepthWrite.Resolved {
			switch fn.DepthWrite.Value {
			case ast.DepthWriteGreater:
				w.writeLine("layout(depth_greater) out float gl_FragDepth;")
			case ast.DepthWriteLess:
				w.writeLine("layout(depth_less) out float gl_FragDepth;")
			case ast.DepthWriteUnchanged:
				w.writeLine("layout(depth_unchanged) out float gl_FragDepth;")
			}
		}
	}

	input, output, err := w.entryStructs()
	if err != nil {
		return err
	}
	declared := false
	if input != nil {
		for _, m := range input.Description.Members {
			if !m.LocationIndex.Resolved {
				continue
			}
			if err := w.writeInterfaceVariable(m, "in"); err != nil {
				return err
			}
			declared = true
		}
	}
	if output != nil {
		for _, m := range output.Description.Members {
			if !m.LocationIndex.Resolved {
				continue
			}
			if err := w.writeInterfaceVariable(m, "out"); err != nil {
				return err
			}
			declared = true
		}
	}
	if declared {
		w.writeLine("")
	}
	return nil
}

// isVarying reports whether a direction of the current stage passes values
// between stages rather than to vertex fetch or the framebuffer.
func (w *Writer) isVarying(direction string) bool {
	return (w.env.Stage == ast.StageVertex && direction == "out") ||
		(w.env.Stage == ast.StageFragment && direction == "in")
}

// interfaceName returns the GLSL variable of a location-bound member.
// Varyings are named by location so stages link by name on versions without
// varying locations.
func (w *Writer) interfaceName(m ast.StructMember, direction string) string {
	if w.isVarying(direction) {
		return fmt.Sprintf("_nzslVarying%d", m.LocationIndex.Value)
	}
	if direction == "in" {
		return "_nzslIn_" + m.Name
	}
	return "_nzslOut_" + m.Name
}

func (w *Writer) writeInterfaceVariable(m ast.StructMember, direction string) error {
	t := resolvedType(m.Type)
	decl, err := w.declaration(t, w.interfaceName(m, direction))
	if err != nil {
		return w.errorf(m.Span, "member %s: %v", m.Name, err)
	}
	qualifier := direction
	if w.isVarying(direction) {
		if p, _ := ast.ScalarOf(t); p.IsInteger() {
			qualifier = "flat " + qualifier
		}
		if !w.version.SupportsVaryingLocations() {
			w.writeLine("%s %s;", qualifier, decl)
			return nil
		}
	}
	w.writeLine("layout(location = %d) %s %s;", m.LocationIndex.Value, qualifier, decl)
	return nil
}

// builtinVariable returns the GLSL built-in variable of a builtin.
func builtinVariable(b ast.BuiltinEntry) (string, error) {
	switch b {
	case ast.BuiltinFragCoord:
		return "gl_FragCoord", nil
	case ast.BuiltinFragDepth:
		return "gl_FragDepth", nil
	case ast.BuiltinFrontFacing:
		return "gl_FrontFacing", nil
	case ast.BuiltinVertexPosition:
		return "gl_Position", nil
	case ast.BuiltinVertexIndex:
		return "gl_VertexID", nil
	case ast.BuiltinInstanceIndex:
		return "gl_InstanceID", nil
	case ast.BuiltinGlobalInvocationIndices:
		return "gl_GlobalInvocationID", nil
	case ast.BuiltinLocalInvocationIndices:
		return "gl_LocalInvocationID", nil
	case ast.BuiltinLocalInvocationIndex:
		return "gl_LocalInvocationIndex", nil
	case ast.BuiltinWorkgroupIndices:
		return "gl_WorkGroupID", nil
	case ast.BuiltinWorkgroupCount:
		return "gl_NumWorkGroups", nil
	}
	return "", fmt.Errorf("unsupported builtin %s", b)
}

// ioMembers pairs the members of an entry struct with their variables.
func (w *Writer) ioMembers(st *ast.DeclareStructStatement, direction string) ([]ioMember, error) {
	members := make([]ioMember, 0, len(st.Description.Members))
	for _, m := range st.Description.Members {
		var variable string
		switch {
		case m.Builtin.Resolved:
			var err error
			if variable, err = builtinVariable(m.Builtin.Value); err != nil {
				return nil, w.errorf(m.Span, "%v", err)
			}
		case m.LocationIndex.Resolved:
			variable = w.interfaceName(m, direction)
		default:
			return nil, w.errorf(m.Span, "member %s needs a location or builtin attribute", m.Name)
		}
		members = append(members, ioMember{name: escapeKeyword(m.Name), variable: variable})
	}
	return members, nil
}

// writeMain writes the void main() the pipeline calls. It fills the input
// struct from the input variables, calls the entry function and copies
// each member of the returned struct to its output variable.
func (w *Writer) writeMain() error {
	input, output, err := w.entryStructs()
	if err != nil {
		return err
	}

	w.writeLine("void main() {")
	w.pushIndent()

	var args string
	if input != nil {
		members, err := w.ioMembers(input, "in")
		if err != nil {
			return err
		}
		args = w.namer.unique("_nzslInput")
		w.writeLine("%s %s;", w.structNames[input.StructID], args)
		for _, m := range members {
			w.writeLine("%s.%s = %s;", args, m.name, m.variable)
		}
	}

	call := fmt.Sprintf("%s(%s)", w.functionNames[w.entry.FuncID], args)
	if output == nil {
		w.writeLine("%s;", call)
	} else {
		members, err := w.ioMembers(output, "out")
		if err != nil {
			return err
		}
		result := w.namer.unique("_nzslOutput")
		w.writeLine("%s %s = %s;", w.structNames[output.StructID], result, call)
		for _, m := range members {
			w.writeLine("%s = %s.%s;", m.variable, result, m.name)
		}
		if w.env.Stage == ast.StageVertex && writesPosition(output) {
			if w.env.FlipYPosition {
				w.writeLine("gl_Position.y = -gl_Position.y;")
			}
			if w.env.RemapZPosition {
				w.writeLine("gl_Position.z = gl_Position.z * 2.0 - gl_Position.w;")
			}
		}
	}

	w.popIndent()
	w.writeLine("}")
	return nil
}

func writesPosition(st *ast.DeclareStructStatement) bool {
	for _, m := range st.Description.Members {
		if m.Builtin.Resolved && m.Builtin.Value == ast.BuiltinVertexPosition {
			return true
		}
	}
	return false
}
