// Package nzsl provides a Pure Go compiler for the nzsl shading language.
//
// nzsl compiles shader modules to multiple output formats:
//   - SPIR-V: binary format for Vulkan
//   - GLSL: OpenGL Shading Language for OpenGL 3.3+, ES 3.0+
//
// The package provides a simple, high-level API for shader compilation as well as
// lower-level access to individual compilation stages.
//
// Example usage (SPIR-V):
//
//	source := `
//	module;
//
//	struct Output
//	{
//		[builtin(position)] position: vec4[f32]
//	}
//
//	[entry(vert)]
//	fn main() -> Output
//	{
//		let output: Output;
//		output.position = vec4[f32](0.0, 0.0, 0.0, 1.0);
//		return output;
//	}
//	`
//	artifact, err := nzsl.Compile(source, nzsl.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	words := artifact.SPIRV()
//
// For GLSL output, select the target and read one stage:
//
//	opts := nzsl.DefaultOptions()
//	opts.Target = nzsl.TargetGLSL
//	artifact, err := nzsl.Compile(source, opts)
//	code, ok := artifact.GLSL(ast.StageVertex)
//
// Modules importing other modules are compiled with a ModuleResolver, and
// repeated compilations can share an ArtifactCache.
package nzsl

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/nzsl/ast"
	"github.com/gogpu/nzsl/glsl"
	"github.com/gogpu/nzsl/lang"
	"github.com/gogpu/nzsl/sanitize"
	"github.com/gogpu/nzsl/spirv"
)

// Target selects the output format of Compile.
type Target uint8

const (
	TargetSPIRV Target = iota
	TargetGLSL
)

// String returns the target name used on the command line.
func (t Target) String() string {
	switch t {
	case TargetSPIRV:
		return "spirv"
	case TargetGLSL:
		return "glsl"
	default:
		return fmt.Sprintf("Target(%d)", t)
	}
}

// ParseTarget maps a target name to a Target.
func ParseTarget(name string) (Target, error) {
	switch name {
	case "spirv", "spv":
		return TargetSPIRV, nil
	case "glsl":
		return TargetGLSL, nil
	}
	return 0, fmt.Errorf("unknown target %q", name)
}

// CompileOptions configures shader compilation.
type CompileOptions struct {
	// Target is the output format (default: SPIR-V)
	Target Target

	// Stages lists the shader stages to compile. Every entry point of the
	// module is compiled when empty.
	Stages []ast.ShaderStage

	// OptionValues specializes the options of the module.
	OptionValues ast.OptionValues

	// Resolver resolves imported modules.
	Resolver sanitize.ModuleResolver

	// Sanitize holds the rewrites applied before generation. Its resolver
	// and option values are taken from the fields above.
	Sanitize sanitize.Options

	// SPIRV configures the SPIR-V target. Stages and option values are
	// taken from the fields above.
	SPIRV spirv.Environment

	// GLSL configures the GLSL target. Stage and option values are taken
	// from the fields above.
	GLSL glsl.Environment
}

// DefaultOptions returns sensible default options.
func DefaultOptions() CompileOptions {
	return CompileOptions{
		Target:   TargetSPIRV,
		Sanitize: sanitize.DefaultOptions(),
		SPIRV:    spirv.DefaultEnvironment(),
		GLSL:     glsl.DefaultEnvironment(),
	}
}

// Phase is the step of the pipeline a CompileError comes from.
type Phase uint8

const (
	PhaseParse Phase = iota
	PhaseSanitize
	PhaseGenerate
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseParse:
		return "parse"
	case PhaseSanitize:
		return "sanitize"
	case PhaseGenerate:
		return "generate"
	default:
		return fmt.Sprintf("Phase(%d)", p)
	}
}

// CompileError is returned by Compile and CompileModule. Err is the error of
// the failing phase, usually an *ast.Error.
type CompileError struct {
	Stage Phase
	Err   error
}

func (e *CompileError) Error() string {
	return "nzsl: " + e.Err.Error()
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// FormatWithContext renders the error with the offending source line when
// the underlying error is located.
func (e *CompileError) FormatWithContext(source string) string {
	var located *ast.Error
	if errors.As(e.Err, &located) {
		return "nzsl: " + located.FormatWithContext(source)
	}
	return e.Error()
}

// Artifact is the result of a compilation. It is immutable and safe for
// concurrent use.
type Artifact struct {
	target Target
	stages ast.StageFlags
	module *ast.Module
	glsl   map[ast.ShaderStage]string
	spirv  []uint32
}

// Target returns the output format of the artifact.
func (a *Artifact) Target() Target { return a.target }

// HasStage reports whether the artifact implements stage.
func (a *Artifact) HasStage(stage ast.ShaderStage) bool {
	return a.stages.Has(stage)
}

// Stages lists the implemented stages in pipeline order.
func (a *Artifact) Stages() []ast.ShaderStage {
	return a.stages.Stages()
}

// Module returns the sanitized module the artifact was generated from.
// It must not be modified.
func (a *Artifact) Module() *ast.Module { return a.module }

// GLSL returns the source generated for stage. It reports false for SPIR-V
// artifacts and stages the artifact does not implement.
func (a *Artifact) GLSL(stage ast.ShaderStage) (string, bool) {
	code, ok := a.glsl[stage]
	return code, ok
}

// SPIRV returns the generated word stream, or nil for GLSL artifacts.
func (a *Artifact) SPIRV() []uint32 {
	return slices.Clone(a.spirv)
}

// SPIRVBytes returns the word stream in little-endian byte order.
func (a *Artifact) SPIRVBytes() []byte {
	if a.spirv == nil {
		return nil
	}
	return spirv.ToBytes(a.spirv)
}

// Compile compiles nzsl source code to the target selected by opts.
//
// The compilation pipeline is:
//  1. Parse source to a module
//  2. Sanitize the module (resolve names, types and imports)
//  3. Generate the requested stages
func Compile(source string, opts CompileOptions) (*Artifact, error) {
	module, err := Parse(source)
	if err != nil {
		return nil, &CompileError{Stage: PhaseParse, Err: err}
	}
	return CompileModule(module, opts)
}

// CompileModule compiles a parsed module. The module is not modified.
func CompileModule(module *ast.Module, opts CompileOptions) (*Artifact, error) {
	sanitized, err := Sanitize(module, sanitizeOptions(opts))
	if err != nil {
		return nil, &CompileError{Stage: PhaseSanitize, Err: err}
	}

	stages, err := selectStages(sanitized, opts.Stages)
	if err != nil {
		return nil, &CompileError{Stage: PhaseGenerate, Err: err}
	}

	artifact := &Artifact{target: opts.Target, stages: stages, module: sanitized}
	switch opts.Target {
	case TargetSPIRV:
		env := opts.SPIRV
		env.OptionValues = opts.OptionValues
		env.Stages = stages.Stages()
		words, err := spirv.Generate(sanitized, env)
		if err != nil {
			return nil, &CompileError{Stage: PhaseGenerate, Err: err}
		}
		artifact.spirv = words

	case TargetGLSL:
		artifact.glsl = make(map[ast.ShaderStage]string)
		for _, stage := range stages.Stages() {
			env := opts.GLSL
			env.Stage = stage
			env.OptionValues = opts.OptionValues
			code, err := glsl.Generate(sanitized, env)
			if err != nil {
				return nil, &CompileError{Stage: PhaseGenerate, Err: fmt.Errorf("%s stage: %w", stage, err)}
			}
			artifact.glsl[stage] = code
		}

	default:
		return nil, &CompileError{Stage: PhaseGenerate, Err: fmt.Errorf("unknown target %s", opts.Target)}
	}
	return artifact, nil
}

func sanitizeOptions(opts CompileOptions) sanitize.Options {
	sopts := opts.Sanitize
	sopts.ModuleResolver = opts.Resolver
	sopts.OptionValues = opts.OptionValues
	sopts.PartialSanitization = false
	return sopts
}

// selectStages checks the requested stages against the entry points of the
// module. No request selects every entry point.
func selectStages(module *ast.Module, requested []ast.ShaderStage) (ast.StageFlags, error) {
	var available ast.StageFlags
	for _, fn := range module.EntryPoints() {
		if fn.EntryStage.Resolved {
			available |= ast.StageFlag(fn.EntryStage.Value)
		}
	}
	if len(requested) == 0 {
		if available == 0 {
			return 0, ast.Errorf(ast.ErrBackend, ast.Span{}, "module has no entry point")
		}
		return available, nil
	}

	var stages ast.StageFlags
	for _, s := range requested {
		if !available.Has(s) {
			return 0, ast.Errorf(ast.ErrBackend, ast.Span{}, "module has no %s entry point", s)
		}
		stages |= ast.StageFlag(s)
	}
	return stages, nil
}

// Parse parses nzsl source code to a module.
//
// This is the first stage of compilation. The module represents the syntactic
// structure of the shader but does not include semantic information like types.
// Errors are *ast.Error values of kind ast.ErrLex or ast.ErrParse.
func Parse(source string) (*ast.Module, error) {
	tokens, err := lang.NewLexer(source).Tokenize()
	if err != nil {
		return nil, err
	}
	return lang.Parse(tokens)
}

// Sanitize resolves identifiers, types and imports of a parsed module and
// applies the rewrites selected by opts. The input module is not modified.
func Sanitize(module *ast.Module, opts sanitize.Options) (*ast.Module, error) {
	return sanitize.Sanitize(module, opts)
}
