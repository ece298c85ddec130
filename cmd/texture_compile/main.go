package main

import (
	"fmt"
	"os"

	"github.com/gogpu/nzsl"
	"github.com/gogpu/nzsl/ast"
)

const textureShader = `
[nzsl_version("1.0")]
module Texture;

external
{
	[set(0), binding(0)] tex: sampler2D[f32]
}

struct VertIn
{
	[builtin(vertex_index)] vertexIndex: i32
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

[entry(vert)]
fn vs_main(input: VertIn) -> VertOut
{
	let positions = array[vec2[f32], 6](
		vec2[f32](-1.0,  1.0),
		vec2[f32](-1.0, -1.0),
		vec2[f32]( 1.0, -1.0),
		vec2[f32](-1.0,  1.0),
		vec2[f32]( 1.0, -1.0),
		vec2[f32]( 1.0,  1.0)
	);
	let position = positions[input.vertexIndex];
	let output: VertOut;
	output.position = vec4[f32](position, 0.0, 1.0);
	output.uv = position * 0.5 + vec2[f32](0.5, 0.5);
	return output;
}

[entry(frag)]
fn fs_main(input: FragIn) -> FragOut
{
	let output: FragOut;
	output.color = tex.Sample(input.uv);
	return output;
}
`

func main() {
	module, err := nzsl.Parse(textureShader)
	if err != nil {
		fmt.Println("Parse error:", err)
		os.Exit(1)
	}

	sanitized, err := nzsl.Sanitize(module, nzsl.DefaultOptions().Sanitize)
	if err != nil {
		fmt.Println("Sanitize error:", err)
		os.Exit(1)
	}

	fmt.Println("=== Module ===")
	fmt.Printf("Name: %s\n", sanitized.Metadata.ModuleName)
	fmt.Printf("Functions: %d\n", len(sanitized.Functions()))
	fmt.Printf("EntryPoints: %d\n", len(sanitized.EntryPoints()))

	for _, st := range sanitized.TopLevel() {
		ext, ok := st.(*ast.DeclareExternalStatement)
		if !ok {
			continue
		}
		for i, v := range ext.Externals {
			fmt.Printf("  External[%d]: name=%s, set=%d, binding=%d\n",
				i, v.Name, v.BindingSet.Value, v.BindingIndex.Value)
		}
	}

	artifact, err := nzsl.CompileModule(sanitized, nzsl.DefaultOptions())
	if err != nil {
		fmt.Println("Compile error:", err)
		os.Exit(1)
	}
	spv := artifact.SPIRVBytes()

	fmt.Printf("\n=== SPIR-V ===\n")
	fmt.Printf("Stages: %v\n", artifact.Stages())
	fmt.Printf("Size: %d bytes\n", len(spv))

	err = os.WriteFile("test_texture.spv", spv, 0600)
	if err != nil {
		fmt.Println("Write error:", err)
		os.Exit(1)
	}
	fmt.Println("Saved to test_texture.spv")
}
