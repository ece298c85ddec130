package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/nzsl"
)

const shader = `
module Test;

struct FragOut
{
	[location(0)] color: vec4[f32]
}

[entry(frag)]
fn main() -> FragOut
{
	let output: FragOut;
	output.color = vec4[f32](1.0, 0.5, 0.25, 1.0);
	return output;
}
`

func writeModule(t *testing.T) string {
	t.Helper()
	opts := nzsl.DefaultOptions()
	opts.SPIRV.Debug = true
	artifact, err := nzsl.Compile(shader, opts)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "shader.spv")
	if err := os.WriteFile(path, artifact.SPIRVBytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunListing(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{writeModule(t)}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code %d, stderr:\n%s", code, stderr.String())
	}
	for _, want := range []string{"; SPIR-V", "OpCapability Shader", "OpEntryPoint Fragment", "OpFunctionEnd"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("listing does not contain %q:\n%s", want, stdout.String())
		}
	}
}

func TestRunStats(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-stats", writeModule(t)}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code %d, stderr:\n%s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), " OpEntryPoint\n") || !strings.HasPrefix(stdout.String(), "; ") {
		t.Errorf("stats output:\n%s", stdout.String())
	}
}

func TestRunOutputFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "shader.spvasm")
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-o", out, writeModule(t)}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code %d, stderr:\n%s", code, stderr.String())
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "; SPIR-V") {
		t.Errorf("output file:\n%s", data)
	}
	if stdout.Len() != 0 {
		t.Errorf("unexpected stdout: %q", stdout.String())
	}
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	odd := filepath.Join(dir, "odd.spv")
	if err := os.WriteFile(odd, []byte{1, 2, 3}, 0o600); err != nil {
		t.Fatal(err)
	}
	garbage := filepath.Join(dir, "garbage.spv")
	if err := os.WriteFile(garbage, bytes.Repeat([]byte{0xAB}, 40), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no input", nil, "Usage"},
		{"missing file", []string{filepath.Join(dir, "none.spv")}, "Error"},
		{"partial word", []string{odd}, "multiple of 4"},
		{"bad magic", []string{garbage}, "invalid module"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(tt.args, &stdout, &stderr); code != 1 {
				t.Errorf("exit code = %d, want 1", code)
			}
			if !strings.Contains(stderr.String(), tt.want) {
				t.Errorf("stderr does not contain %q:\n%s", tt.want, stderr.String())
			}
		})
	}
}
