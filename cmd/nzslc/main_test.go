package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/nzsl/ast"
	"github.com/gogpu/nzsl/serialize"
	"github.com/gogpu/nzsl/spirv"
)

const shader = `
module Test;

option UseTint: bool = true;

struct FragOut
{
	[location(0)] color: vec4[f32]
}

[entry(vert)]
fn vs() -> FragOut
{
	let output: FragOut;
	output.color = vec4[f32](0.0, 0.0, 0.0, 1.0);
	return output;
}

[entry(frag)]
fn fs() -> FragOut
{
	let output: FragOut;
	output.color = vec4[f32](1.0, 1.0, 1.0, 1.0);
	const if (UseTint)
	{
		output.color = output.color * 0.5;
	}
	return output;
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

const helpersSource = `
module Helpers;

[export]
fn add(a: f32, b: f32) -> f32
{
	return a + b;
}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRunSPIRV(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "shader.nzsl", shader)
	output := filepath.Join(dir, "shader.spv")

	code, stdout, stderr := runCLI(t, "-o", output, input)
	if code != 0 {
		t.Fatalf("exit code %d, stderr:\n%s", code, stderr)
	}
	if !strings.Contains(stdout, "Successfully compiled") {
		t.Errorf("stdout = %q", stdout)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	words := spirv.FromBytes(data)
	if len(words) < 5 || words[0] != spirv.MagicNumber {
		t.Fatal("output is not a SPIR-V module")
	}
}

func TestRunAssembly(t *testing.T) {
	input := writeFile(t, t.TempDir(), "shader.nzsl", shader)

	code, stdout, stderr := runCLI(t, "-target", "spvasm", "-stage", "frag", "-D", "UseTint=false", input)
	if code != 0 {
		t.Fatalf("exit code %d, stderr:\n%s", code, stderr)
	}
	for _, want := range []string{"; SPIR-V", "OpEntryPoint Fragment"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output does not contain %q:\n%s", want, stdout)
		}
	}
	if strings.Contains(stdout, "OpEntryPoint Vertex") {
		t.Error("output contains the vertex entry point")
	}
	if strings.Contains(stdout, "OpVectorTimesScalar") {
		t.Error("disabled option branch was compiled")
	}
}

func TestRunGLSL(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "shader.nzsl", shader)
	output := filepath.Join(dir, "out.glsl")

	code, _, stderr := runCLI(t, "-target", "glsl", "-es", "-o", output, input)
	if code != 0 {
		t.Fatalf("exit code %d, stderr:\n%s", code, stderr)
	}
	for _, name := range []string{"out.vert.glsl", "out.frag.glsl"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("missing stage output: %v", err)
		}
		if !strings.HasPrefix(string(data), "#version 300 es") {
			t.Errorf("%s does not start with the ES version directive", name)
		}
	}
}

func TestRunGLSLStdout(t *testing.T) {
	input := writeFile(t, t.TempDir(), "shader.nzsl", shader)

	code, stdout, stderr := runCLI(t, "-target", "glsl", "-v", input)
	if code != 0 {
		t.Fatalf("exit code %d, stderr:\n%s", code, stderr)
	}
	if strings.Count(stdout, "#version 330 core") != 2 {
		t.Errorf("expected two stage sources:\n%s", stdout)
	}
	if !strings.Contains(stdout, "// vert\n") || !strings.Contains(stdout, "// frag\n") {
		t.Errorf("stage sources are not labelled:\n%s", stdout)
	}
	if !strings.Contains(stderr, "compiled frag stage") {
		t.Errorf("verbose output = %q", stderr)
	}
}

func TestRunImports(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "modules/helpers.nzsl", helpersSource)
	input := writeFile(t, dir, "main.nzsl", importingShader)

	code, _, stderr := runCLI(t, "-I", filepath.Join(dir, "modules"), "-o", filepath.Join(dir, "main.spv"), input)
	if code != 0 {
		t.Fatalf("exit code %d, stderr:\n%s", code, stderr)
	}

	code, _, stderr = runCLI(t, "-o", filepath.Join(dir, "main.spv"), input)
	if code != 1 {
		t.Errorf("exit code without -I = %d, want 1", code)
	}
	if !strings.Contains(stderr, "Helpers") {
		t.Errorf("stderr does not name the missing module:\n%s", stderr)
	}
}

func TestRunSerialize(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "shader.nzsl", shader)

	code, source, stderr := runCLI(t, "-target", "nzsl", input)
	if code != 0 {
		t.Fatalf("exit code %d, stderr:\n%s", code, stderr)
	}
	if !strings.Contains(source, "module Test;") {
		t.Errorf("source output:\n%s", source)
	}

	encoded := filepath.Join(dir, "shader.nzslb")
	if code, _, stderr := runCLI(t, "-target", "nzslb", "-o", encoded, input); code != 0 {
		t.Fatalf("exit code %d, stderr:\n%s", code, stderr)
	}
	data, err := os.ReadFile(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := serialize.Decode(data); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	code, stdout, stderr := runCLI(t, "-target", "spvasm", encoded)
	if code != 0 {
		t.Fatalf("compiling the encoded module: exit code %d, stderr:\n%s", code, stderr)
	}
	if !strings.Contains(stdout, "OpEntryPoint") {
		t.Errorf("encoded module did not compile:\n%s", stdout)
	}
}

func TestRunPartial(t *testing.T) {
	input := writeFile(t, t.TempDir(), "main.nzsl", `
module Main;

import Helpers;

fn f() -> f32
{
	return add(1.0, 2.0);
}
`)

	if code, _, _ := runCLI(t, "-target", "nzsl", input); code != 1 {
		t.Errorf("exit code without -partial = %d, want 1", code)
	}
	code, stdout, stderr := runCLI(t, "-target", "nzsl", "-partial", input)
	if code != 0 {
		t.Fatalf("exit code %d, stderr:\n%s", code, stderr)
	}
	if !strings.Contains(stdout, "import Helpers;") || !strings.Contains(stdout, "add(1.0, 2.0)") {
		t.Errorf("partial output lost the unresolved import:\n%s", stdout)
	}
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "shader.nzsl", shader)
	broken := writeFile(t, dir, "broken.nzsl", "module;\nfn f()\n{\n\tlet x = missing;\n}\n")

	tests := []struct {
		name string
		args []string
		code int
		want string
	}{
		{"no input", nil, 1, "no input file"},
		{"missing file", []string{filepath.Join(dir, "none.nzsl")}, 1, "Error reading file"},
		{"unknown target", []string{"-target", "msl", input}, 1, "unknown target"},
		{"unknown stage", []string{"-stage", "geom", input}, 1, "unknown stage"},
		{"bad define", []string{"-D", "=1", input}, 1, "missing name"},
		{"bad glsl version", []string{"-target", "glsl", "-glsl-version", "120", input}, 1, "not supported"},
		{"semantic error", []string{broken}, 1, "let x = missing;"},
		{"unknown flag", []string{"-bogus", input}, 2, "flag provided but not defined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tt.args...)
			if code != tt.code {
				t.Errorf("exit code = %d, want %d", code, tt.code)
			}
			if !strings.Contains(stderr, tt.want) {
				t.Errorf("stderr does not contain %q:\n%s", tt.want, stderr)
			}
		})
	}
}

func TestRunVersion(t *testing.T) {
	code, stdout, _ := runCLI(t, "-version")
	if code != 0 || !strings.HasPrefix(stdout, "nzslc version ") {
		t.Errorf("-version = %d, %q", code, stdout)
	}
}

func TestParseDefine(t *testing.T) {
	tests := []struct {
		def     string
		name    string
		value   ast.ConstantValue
		wantErr bool
	}{
		{"UseTint", "UseTint", ast.BoolValue(true), false},
		{"UseTint=false", "UseTint", ast.BoolValue(false), false},
		{"Count=3", "Count", ast.Int32Value(3), false},
		{"Count=-3", "Count", ast.Int32Value(-3), false},
		{"Mask=0x10u", "Mask", ast.UInt32Value(16), false},
		{"Scale=0.5", "Scale", ast.Float32Value(0.5), false},
		{"Scale=1e2", "Scale", ast.Float32Value(100), false},
		{" Size = 4 ", "Size", ast.Int32Value(4), false},
		{"=1", "", nil, true},
		{"Count=", "", nil, true},
		{"Count=abc", "", nil, true},
		{"Count=99999999999", "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.def, func(t *testing.T) {
			name, value, err := parseDefine(tt.def)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDefine(%q) error = %v", tt.def, err)
			}
			if tt.wantErr {
				return
			}
			if name != tt.name || value != tt.value {
				t.Errorf("parseDefine(%q) = %s, %v; want %s, %v", tt.def, name, value, tt.name, tt.value)
			}
		})
	}
}

func TestStagePath(t *testing.T) {
	tests := []struct {
		path  string
		stage ast.ShaderStage
		want  string
	}{
		{"out.glsl", ast.StageVertex, "out.vert.glsl"},
		{"dir/shader.frag.glsl", ast.StageFragment, "dir/shader.frag.frag.glsl"},
		{"out", ast.StageCompute, "out.compute"},
	}
	for _, tt := range tests {
		if got := stagePath(tt.path, tt.stage); got != tt.want {
			t.Errorf("stagePath(%q, %s) = %q, want %q", tt.path, tt.stage, got, tt.want)
		}
	}
}
