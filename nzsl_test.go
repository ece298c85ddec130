package nzsl

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/gogpu/nzsl/ast"
	"github.com/gogpu/nzsl/spirv"
)

const testShader = `
[nzsl_version("1.0")]
module Test;

option UseTint: bool = true;

[layout(std140)]
struct Data
{
	viewProj: mat4[f32],
	tint: vec4[f32]
}

external
{
	[set(0), binding(0)] data: uniform[Data],
	[set(0), binding(1)] tex: sampler2D[f32]
}

struct VertIn
{
	[location(0)] pos: vec3[f32],
	[location(1)] uv: vec2[f32]
}

struct VertOut
{
	[builtin(position)] position: vec4[f32],
	[location(0)] uv: vec2[f32]
}

struct FragIn
{
	[location(0)] uv: vec2[f32]
}

struct FragOut
{
	[location(0)] color: vec4[f32]
}

fn brighten(c: vec4[f32], amount: f32) -> vec4[f32]
{
	return c * amount;
}

[entry(vert)]
fn main(input: VertIn) -> VertOut
{
	let output: VertOut;
	output.position = data.viewProj * vec4[f32](input.pos, 1.0);
	output.uv = input.uv;
	return output;
}

[entry(frag)]
fn fs(input: FragIn) -> FragOut
{
	let color = tex.Sample(input.uv);
	const if (UseTint)
	{
		color *= data.tint;
	}
	let output: FragOut;
	output.color = brighten(color, 2.0);
	return output;
}
`

const helpersSource = `
module Helpers;

[export]
fn add(a: f32, b: f32) -> f32
{
	return a + b;
}
`

const importingShader = `
module Main;

import Helpers;

struct FragOut
{
	[location(0)] color: vec4[f32]
}

[entry(frag)]
fn main() -> FragOut
{
	let output: FragOut;
	output.color = vec4[f32](add(0.25, 0.25), 0.0, 0.0, 1.0);
	return output;
}
`

func compile(t *testing.T, src string, opts CompileOptions) *Artifact {
	t.Helper()
	artifact, err := Compile(src, opts)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return artifact
}

func countOps(t *testing.T, words []uint32, op spirv.OpCode) int {
	t.Helper()
	instructions, err := spirv.Decode(words)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	n := 0
	for _, inst := range instructions {
		if inst.Opcode == op {
			n++
		}
	}
	return n
}

// TestCompileSPIRV tests compilation of every entry point to one SPIR-V module.
func TestCompileSPIRV(t *testing.T) {
	artifact := compile(t, testShader, DefaultOptions())

	if artifact.Target() != TargetSPIRV {
		t.Errorf("target = %s, want spirv", artifact.Target())
	}
	want := []ast.ShaderStage{ast.StageVertex, ast.StageFragment}
	if got := artifact.Stages(); !slices.Equal(got, want) {
		t.Errorf("stages = %v, want %v", got, want)
	}
	if !artifact.HasStage(ast.StageVertex) || !artifact.HasStage(ast.StageFragment) {
		t.Error("artifact is missing a compiled stage")
	}
	if artifact.HasStage(ast.StageCompute) {
		t.Error("artifact reports a compute stage")
	}

	words := artifact.SPIRV()
	if len(words) < 5 || words[0] != spirv.MagicNumber {
		t.Fatalf("invalid SPIR-V header: %v", words[:min(len(words), 5)])
	}
	if n := countOps(t, words, spirv.OpEntryPoint); n != 2 {
		t.Errorf("OpEntryPoint count = %d, want 2", n)
	}
	if got := len(artifact.SPIRVBytes()); got != 4*len(words) {
		t.Errorf("SPIRVBytes length = %d, want %d", got, 4*len(words))
	}
	if _, ok := artifact.GLSL(ast.StageVertex); ok {
		t.Error("SPIR-V artifact returned GLSL code")
	}
	if artifact.Module() == nil {
		t.Error("artifact has no sanitized module")
	}
}

// TestCompileGLSL tests that the GLSL target generates one source per stage.
func TestCompileGLSL(t *testing.T) {
	opts := DefaultOptions()
	opts.Target = TargetGLSL
	artifact := compile(t, testShader, opts)

	for _, stage := range []ast.ShaderStage{ast.StageVertex, ast.StageFragment} {
		code, ok := artifact.GLSL(stage)
		if !ok {
			t.Fatalf("no GLSL for %s", stage)
		}
		if !strings.HasPrefix(code, "#version 330") {
			t.Errorf("%s code does not start with the version directive:\n%s", stage, code)
		}
		if !strings.Contains(code, "void main()") {
			t.Errorf("%s code has no main function", stage)
		}
	}
	if _, ok := artifact.GLSL(ast.StageCompute); ok {
		t.Error("GLSL returned code for a missing stage")
	}
	if artifact.SPIRV() != nil || artifact.SPIRVBytes() != nil {
		t.Error("GLSL artifact returned SPIR-V words")
	}
}

func TestCompileStageSelection(t *testing.T) {
	tests := []struct {
		name   string
		stages []ast.ShaderStage
		want   []ast.ShaderStage
	}{
		{"all", nil, []ast.ShaderStage{ast.StageVertex, ast.StageFragment}},
		{"vertex", []ast.ShaderStage{ast.StageVertex}, []ast.ShaderStage{ast.StageVertex}},
		{"fragment", []ast.ShaderStage{ast.StageFragment}, []ast.ShaderStage{ast.StageFragment}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Stages = tt.stages
			artifact := compile(t, testShader, opts)
			if got := artifact.Stages(); !slices.Equal(got, tt.want) {
				t.Errorf("stages = %v, want %v", got, tt.want)
			}
			if n := countOps(t, artifact.SPIRV(), spirv.OpEntryPoint); n != len(tt.want) {
				t.Errorf("OpEntryPoint count = %d, want %d", n, len(tt.want))
			}
		})
	}
}

func TestCompileOptionValues(t *testing.T) {
	tests := []struct {
		name    string
		useTint bool
		fmul    int
	}{
		{"enabled", true, 1},
		{"disabled", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Stages = []ast.ShaderStage{ast.StageFragment}
			opts.OptionValues = ast.OptionValues{}
			opts.OptionValues.Set("UseTint", ast.BoolValue(tt.useTint))
			artifact := compile(t, testShader, opts)
			if n := countOps(t, artifact.SPIRV(), spirv.OpFMul); n != tt.fmul {
				t.Errorf("OpFMul count = %d, want %d", n, tt.fmul)
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		opts   func(*CompileOptions)
		phase  Phase
		kind   ast.ErrorKind
	}{
		{
			name:   "parse",
			source: "module;\nfn f(\n",
			phase:  PhaseParse,
			kind:   ast.ErrParse,
		},
		{
			name:   "unknown identifier",
			source: "module;\nfn f()\n{\n\tlet x = missing;\n}\n",
			phase:  PhaseSanitize,
			kind:   ast.ErrSemantic,
		},
		{
			name:   "missing stage",
			source: testShader,
			opts:   func(o *CompileOptions) { o.Stages = []ast.ShaderStage{ast.StageCompute} },
			phase:  PhaseGenerate,
			kind:   ast.ErrBackend,
		},
		{
			name:   "no entry point",
			source: helpersSource,
			phase:  PhaseGenerate,
			kind:   ast.ErrBackend,
		},
		{
			name:   "import without resolver",
			source: importingShader,
			phase:  PhaseSanitize,
			kind:   ast.ErrSemantic,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			if tt.opts != nil {
				tt.opts(&opts)
			}
			_, err := Compile(tt.source, opts)
			var ce *CompileError
			if !errors.As(err, &ce) {
				t.Fatalf("error = %v, want a *CompileError", err)
			}
			if ce.Stage != tt.phase {
				t.Errorf("phase = %s, want %s", ce.Stage, tt.phase)
			}
			if !ast.IsKind(err, tt.kind) {
				t.Errorf("error %v is not a %s error", err, tt.kind)
			}
		})
	}
}

func TestCompileErrorFormatWithContext(t *testing.T) {
	source := "module;\nfn f()\n{\n\tlet x = missing;\n}\n"
	_, err := Compile(source, DefaultOptions())
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want a *CompileError", err)
	}
	formatted := ce.FormatWithContext(source)
	if !strings.Contains(formatted, "let x = missing;") || !strings.Contains(formatted, "^") {
		t.Errorf("formatted error has no source context:\n%s", formatted)
	}
}

func TestCompileWithResolver(t *testing.T) {
	resolver := NewMemoryResolver()
	resolver.Register("Helpers", helpersSource)

	for _, target := range []Target{TargetSPIRV, TargetGLSL} {
		t.Run(target.String(), func(t *testing.T) {
			opts := DefaultOptions()
			opts.Target = target
			opts.Resolver = resolver
			artifact := compile(t, importingShader, opts)
			if !artifact.HasStage(ast.StageFragment) {
				t.Fatal("fragment stage was not compiled")
			}
			if len(artifact.Module().ImportedModules) != 1 {
				t.Errorf("imported modules = %d, want 1", len(artifact.Module().ImportedModules))
			}
		})
	}
}

func TestCompileModuleDoesNotModifyInput(t *testing.T) {
	module, err := Parse(testShader)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	before := ast.CloneModule(module)
	if _, err := CompileModule(module, DefaultOptions()); err != nil {
		t.Fatalf("CompileModule failed: %v", err)
	}
	if !ast.ModulesEqual(before, module) {
		t.Error("CompileModule modified its input")
	}
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name    string
		want    Target
		wantErr bool
	}{
		{"spirv", TargetSPIRV, false},
		{"spv", TargetSPIRV, false},
		{"glsl", TargetGLSL, false},
		{"msl", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTarget(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTarget(%q) error = %v", tt.name, err)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseTarget(%q) = %s, want %s", tt.name, got, tt.want)
			}
		})
	}
}
