package spirv

import (
	"runtime"
	"testing"

	"github.com/gogpu/nzsl/ast"
	"github.com/gogpu/nzsl/lang"
	"github.com/gogpu/nzsl/sanitize"
)

// ---------------------------------------------------------------------------
// Test shader sources for SPIR-V backend benchmarks
// ---------------------------------------------------------------------------

const spirvBenchSmall = `
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

const spirvBenchLarge = `
module;

[layout(std140)]
struct Camera
{
	viewProj: mat4[f32]
}

external
{
	[binding(0)] camera: uniform[Camera]
}

struct VertIn
{
	[location(0)] pos: vec3[f32],
	[location(1)] normal: vec3[f32],
	[location(2)] uv: vec2[f32]
}

struct VertOut
{
	[builtin(position)] position: vec4[f32],
	[location(0)] worldPos: vec3[f32],
	[location(1)] normal: vec3[f32],
	[location(2)] uv: vec2[f32]
}

struct FragIn
{
	[location(0)] worldPos: vec3[f32],
	[location(1)] normal: vec3[f32],
	[location(2)] uv: vec2[f32]
}

struct FragOut
{
	[location(0)] color: vec4[f32]
}

[entry(vert)]
fn vsMain(input: VertIn) -> VertOut
{
	let output: VertOut;
	output.position = camera.viewProj * vec4[f32](input.pos, 1.0);
	output.worldPos = input.pos;
	output.normal = input.normal;
	output.uv = input.uv;
	return output;
}

[entry(frag)]
fn fsMain(input: FragIn) -> FragOut
{
	let n = normalize(input.normal);
	let lightPos = vec3[f32](10.0, 10.0, 10.0);
	let lightColor = vec3[f32](1.0, 1.0, 1.0);
	let l = normalize(lightPos - input.worldPos);
	let diffuse = lightColor * max(dot(n, l), 0.0);
	let viewDir = normalize(vec3[f32](0.0, 0.0, 5.0) - input.worldPos);
	let halfDir = normalize(l + viewDir);
	let specular = lightColor * pow(max(dot(n, halfDir), 0.0), 32.0);
	let ambient = vec3[f32](0.05, 0.05, 0.05);
	let baseColor = vec3[f32](0.8, 0.2, 0.2);
	let finalColor = ambient + baseColor * diffuse + specular * 0.5;
	let output: FragOut;
	output.color = vec4[f32](finalColor, 1.0);
	return output;
}
`

var spirvBenchShaders = []struct {
	name   string
	source string
}{
	{"small", spirvBenchSmall},
	{"medium", testShader},
	{"large", spirvBenchLarge},
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

// BenchmarkSPIRVEmit measures backend compilation of sanitized modules.
func BenchmarkSPIRVEmit(b *testing.B) {
	for _, shader := range spirvBenchShaders {
		b.Run(shader.name, func(b *testing.B) {
			module := sanitizeBench(b, shader.source)
			env := DefaultEnvironment()

			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				words, err := NewBackend(env).Compile(module)
				if err != nil {
					b.Fatal(err)
				}
				runtime.KeepAlive(words)
			}
		})
	}
}

// BenchmarkSPIRVEmitWithDebug measures compilation with debug names.
func BenchmarkSPIRVEmitWithDebug(b *testing.B) {
	module := sanitizeBench(b, spirvBenchLarge)
	env := DefaultEnvironment()
	env.Debug = true

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		words, err := NewBackend(env).Compile(module)
		if err != nil {
			b.Fatal(err)
		}
		runtime.KeepAlive(words)
	}
}

// BenchmarkModuleBuilderBuild benchmarks the ModuleBuilder.Build() method
// which serializes all accumulated instructions into the final SPIR-V binary.
func BenchmarkModuleBuilderBuild(b *testing.B) {
	// Build a representative module builder with types, constants, and functions
	setupBuilder := func() *ModuleBuilder {
		mb := NewModuleBuilder(Version1_3)

		mb.AddCapability(CapabilityShader)
		mb.AddExtInstImport("GLSL.std.450")
		mb.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)

		// Types
		voidTy := mb.AddTypeVoid()
		f32Ty := mb.AddTypeFloat(32)
		vec4Ty := mb.AddTypeVector(f32Ty, 4)
		funcTy := mb.AddTypeFunction(voidTy)

		// Constants
		c0 := mb.AddConstantFloat32(f32Ty, 0.0)
		c1 := mb.AddConstantFloat32(f32Ty, 1.0)
		_ = mb.AddConstantComposite(vec4Ty, c0, c0, c0, c1)

		// Function
		fb := mb.NewFunction(mb.AllocID(), voidTy, funcTy)
		fb.AddReturn()
		mb.AddFunction(fb)

		// Entry point
		mb.AddEntryPoint(ExecutionModelVertex, fb.ID, "main", nil)

		return mb
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		mb := setupBuilder()
		result := mb.Build()
		runtime.KeepAlive(result)
	}
}

// BenchmarkInstructionBuild benchmarks individual SPIR-V instruction
// building and encoding.
func BenchmarkInstructionBuild(b *testing.B) {
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		ib := NewInstructionBuilder()
		ib.AddWord(1) // result type
		ib.AddWord(2) // result id
		ib.AddWord(3) // operand 1
		ib.AddWord(4) // operand 2
		inst := ib.Build(OpFAdd)
		encoded := inst.Encode()
		runtime.KeepAlive(encoded)
	}
}

// BenchmarkDisassemble measures rendering a compiled module as text.
func BenchmarkDisassemble(b *testing.B) {
	words, err := Generate(sanitizeBench(b, spirvBenchLarge), DefaultEnvironment())
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		text, err := Disassemble(words)
		if err != nil {
			b.Fatal(err)
		}
		runtime.KeepAlive(text)
	}
}
