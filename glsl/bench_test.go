package glsl

import (
	"runtime"
	"testing"

	"github.com/gogpu/nzsl/ast"
	"github.com/gogpu/nzsl/lang"
	"github.com/gogpu/nzsl/sanitize"
)

// ---------------------------------------------------------------------------
// Test shader sources for GLSL backend benchmarks
// ---------------------------------------------------------------------------

const glslBenchSmall = `
module;

struct VertOut
{
	[builtin(position)] position: vec4[f32]
}

[entry(vert)]
fn main() -> VertOut
{
	let output: VertOut;
	output.position = vec4[f32](0.0, 0.0, 0.0, 1.0);
	return output;
}
`

const glslBenchLarge = `
module;

[layout(std140)]
struct Camera
{
	viewProj: mat4[f32],
	eye: vec3[f32]
}

external
{
	[binding(0)] camera: uniform[Camera]
}

struct FragIn
{
	[location(0)] worldPos: vec3[f32],
	[location(1)] normal: vec3[f32]
}

struct FragOut
{
	[location(0)] color: vec4[f32]
}

fn shade(n: vec3[f32], l: vec3[f32], v: vec3[f32]) -> vec3[f32]
{
	let diffuse = max(dot(n, l), 0.0);
	let halfDir = normalize(l + v);
	let specular = pow(max(dot(n, halfDir), 0.0), 32.0);
	return vec3[f32](0.8, 0.2, 0.2) * diffuse + specular.xxx * 0.5;
}

[entry(frag)]
fn main(input: FragIn) -> FragOut
{
	let n = normalize(input.normal);
	let total = vec3[f32](0.05, 0.05, 0.05);
	for i in 0 -> 4
	{
		let lightPos = vec3[f32](f32(i) * 10.0, 10.0, 10.0);
		let l = normalize(lightPos - input.worldPos);
		total += shade(n, l, normalize(camera.eye - input.worldPos));
	}
	let output: FragOut;
	output.color = vec4[f32](total, 1.0);
	return output;
}
`

var glslBenchShaders = []struct {
	name   string
	source string
	stage  ast.ShaderStage
}{
	{"small", glslBenchSmall, ast.StageVertex},
	{"medium", testShader, ast.StageFragment},
	{"large", glslBenchLarge, ast.StageFragment},
}

// sanitizeBench parses and sanitizes a benchmark shader.
func sanitizeBench(b *testing.B, source string) *ast.Module {
	b.Helper()
	m, err := lang.ParseSource(source)
	if err != nil {
		b.Fatalf("parse failed: %v", err)
	}
	out, err := sanitize.Sanitize(m, sanitize.DefaultOptions())
	if err != nil {
		b.Fatalf("sanitize failed: %v", err)
	}
	return out
}

// BenchmarkGLSLGenerate benchmarks GLSL code generation for shaders of
// different complexity.
func BenchmarkGLSLGenerate(b *testing.B) {
	for _, bc := range glslBenchShaders {
		b.Run(bc.name, func(b *testing.B) {
			module := sanitizeBench(b, bc.source)
			env := DefaultEnvironment()
			env.Stage = bc.stage

			b.ReportAllocs()
			b.SetBytes(int64(len(bc.source)))
			b.ResetTimer()

			var result string
			for i := 0; i < b.N; i++ {
				var err error
				result, err = Generate(module, env)
				if err != nil {
					b.Fatalf("glsl generate failed: %v", err)
				}
			}
			runtime.KeepAlive(result)
		})
	}
}

// BenchmarkGLSLGenerateES benchmarks GLSL ES generation to compare the
// overhead of precision qualifiers.
func BenchmarkGLSLGenerateES(b *testing.B) {
	for _, bc := range glslBenchShaders {
		b.Run(bc.name, func(b *testing.B) {
			module := sanitizeBench(b, bc.source)
			env := Environment{Stage: bc.stage, Version: VersionES300}

			b.ReportAllocs()
			b.SetBytes(int64(len(bc.source)))
			b.ResetTimer()

			var result string
			for i := 0; i < b.N; i++ {
				var err error
				result, err = Generate(module, env)
				if err != nil {
					b.Fatalf("glsl es generate failed: %v", err)
				}
			}
			runtime.KeepAlive(result)
		})
	}
}
