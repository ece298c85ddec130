package sanitize

import (
	"github.com/gogpu/nzsl/ast"
)

// validateEntryPoint checks the input and output structs of an entry point.
func (s *sanitizer) validateEntryPoint(fn *ast.DeclareFunctionStatement, info *functionInfo) error {
	stage := fn.EntryStage.Value
	if len(fn.Parameters) > 1 {
		return s.errorf(fn.Span, "entry point %s takes at most one parameter", fn.Name)
	}
	if len(fn.Parameters) == 1 {
		pt := info.typ.Parameters[0]
		st, ok := pt.(ast.StructType)
		if pt != nil && !ok {
			return s.errorf(fn.Parameters[0].Span, "entry point %s parameter must be a struct, got %s", fn.Name, pt)
		}
		if ok {
			if err := s.checkStageStruct(st, stage, false, fn.Parameters[0].Span); err != nil {
				return err
			}
		}
	}

	switch rt := info.typ.Return.(type) {
	case ast.NoType, nil:
	case ast.StructType:
		if stage == ast.StageCompute {
			return s.errorf(fn.Span, "compute entry point %s cannot return a value", fn.Name)
		}
		if err := s.checkStageStruct(rt, stage, true, fn.Span); err != nil {
			return err
		}
	default:
		return s.errorf(fn.Span, "entry point %s must return a struct or nothing, got %s", fn.Name, rt)
	}
	return nil
}

// checkStageStruct validates that every member of an entry point input or
// output is a builtin of the stage or has a location.
func (s *sanitizer) checkStageStruct(st ast.StructType, stage ast.ShaderStage, output bool, span ast.Span) error {
	info, ok := s.ctx.structs[st.StructID]
	if !ok {
		return s.errorf(span, "unknown struct %s", st.Name)
	}
	direction := "input"
	if output {
		direction = "output"
	}

	locations := make(map[uint32]string)
	for _, m := range info.decl.Description.Members {
		switch {
		case m.Builtin.Resolved:
			b := m.Builtin.Value.Info()
			if b.Stage != stage {
				return s.errorf(m.Span, "builtin %s is not available in %s stage", b.Name, stage)
			}
			if b.Output != output {
				return s.errorf(m.Span, "builtin %s cannot be used as %s %s", b.Name, stage, direction)
			}
		case m.LocationIndex.Resolved:
			if stage == ast.StageCompute {
				return s.errorf(m.Span, "compute entry point inputs can only be builtins, %s has a location", m.Name)
			}
			loc := m.LocationIndex.Value
			if other, dup := locations[loc]; dup {
				return s.errorf(m.Span, "location %d of %s is already used by %s", loc, m.Name, other)
			}
			locations[loc] = m.Name
			mt, _ := m.Type.(*ast.TypeExpression)
			if mt != nil {
				if _, scalar := ast.ScalarOf(mt.Value); !scalar {
					return s.errorf(m.Span, "%s %s of type %s cannot have a location", direction, m.Name, mt.Value)
				}
			}
		default:
			return s.errorf(m.Span, "member %s of %s %s needs a location or builtin attribute", m.Name, direction, st.Name)
		}
	}
	return nil
}
