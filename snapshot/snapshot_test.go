// Package snapshot_test provides golden snapshot tests for every output of
// the compiler.
//
// Each nzsl shader in testdata/in/ is compiled to SPIR-V (disassembled), to
// GLSL for every entry point, and back to canonical nzsl source. Outputs are
// compared to golden files stored in testdata/golden/{spv,glsl,nzsl}/. Every
// input must have an nzsl golden; spv and glsl goldens are compared when they
// exist.
//
// To regenerate golden files after intentional changes:
//
//	UPDATE_GOLDEN=1 go test ./snapshot/...
package snapshot_test

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/gogpu/nzsl"
	"github.com/gogpu/nzsl/ast"
	"github.com/gogpu/nzsl/glsl"
	"github.com/gogpu/nzsl/serialize"
	"github.com/gogpu/nzsl/spirv"
)

// ---------------------------------------------------------------------------
// Test Runner
// ---------------------------------------------------------------------------

// shaderFile represents an input shader loaded from disk.
type shaderFile struct {
	name   string // base name without extension (e.g., "triangle")
	source string // nzsl source code
}

// TestSnapshots is the main golden snapshot test. It loads all inputs,
// compiles each through every output, and compares with golden files.
func TestSnapshots(t *testing.T) {
	shaders := loadInputShaders(t, "testdata/in")
	if len(shaders) == 0 {
		t.Fatal("no input shaders found in testdata/in/")
	}

	for i := range shaders {
		shader := &shaders[i]
		t.Run(shader.name, func(t *testing.T) {
			module := sanitizeShader(t, shader.name, shader.source)

			t.Run("spv", func(t *testing.T) {
				disasm := compileSPIRV(t, module)
				if again := compileSPIRV(t, module); again != disasm {
					t.Error("SPIR-V output is not deterministic")
				}
				compareGolden(t, filepath.Join("testdata", "golden", "spv", shader.name+".spvasm"), disasm)
			})

			t.Run("glsl", func(t *testing.T) {
				code := compileGLSL(t, module)
				if again := compileGLSL(t, module); again != code {
					t.Error("GLSL output is not deterministic")
				}
				compareGolden(t, filepath.Join("testdata", "golden", "glsl", shader.name+".glsl"), code)
			})

			t.Run("nzsl", func(t *testing.T) {
				text := writeSource(t, module)
				// canonical text sanitizes back to the same text
				if again := writeSource(t, sanitizeShader(t, shader.name, text)); again != text {
					t.Errorf("canonical source is not a fixpoint:\n%s", diffStrings(text, again))
				}
				compareGolden(t, filepath.Join("testdata", "golden", "nzsl", shader.name+".nzsl"), text)
			})

			t.Run("nzslb", func(t *testing.T) {
				data, err := serialize.Encode(module)
				if err != nil {
					t.Fatalf("Encode failed: %v", err)
				}
				decoded, err := serialize.Decode(data)
				if err != nil {
					t.Fatalf("Decode failed: %v", err)
				}
				if !ast.ModulesEqual(module, decoded) {
					t.Error("decoded module differs from the encoded one")
				}
				if got, want := compileSPIRV(t, decoded), compileSPIRV(t, module); got != want {
					t.Errorf("decoded module compiles differently:\n%s", diffStrings(want, got))
				}
			})
		})
	}
}

func TestSnapshotSourceGoldens(t *testing.T) {
	for _, shader := range loadInputShaders(t, "testdata/in") {
		path := filepath.Join("testdata", "golden", "nzsl", shader.name+".nzsl")
		if _, err := os.Stat(path); err != nil {
			t.Errorf("input %s has no canonical source golden: %v", shader.name, err)
		}
	}
}

// ---------------------------------------------------------------------------
// Shader Loading
// ---------------------------------------------------------------------------

// loadInputShaders reads all .nzsl files from the given directory.
func loadInputShaders(t *testing.T, dir string) []shaderFile {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read input directory %q: %v", dir, err)
	}

	var shaders []shaderFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), nzsl.SourceExtension) {
			continue
		}
		data, readErr := os.ReadFile(filepath.Join(dir, entry.Name()))
		if readErr != nil {
			t.Fatalf("read shader %q: %v", entry.Name(), readErr)
		}
		name := strings.TrimSuffix(entry.Name(), nzsl.SourceExtension)
		shaders = append(shaders, shaderFile{name: name, source: string(data)})
	}

	// Sort for deterministic test order
	sort.Slice(shaders, func(i, j int) bool {
		return shaders[i].name < shaders[j].name
	})

	return shaders
}

// ---------------------------------------------------------------------------
// Compilation Helpers
// ---------------------------------------------------------------------------

// sanitizeShader parses and sanitizes a shader source.
func sanitizeShader(t *testing.T, name, source string) *ast.Module {
	t.Helper()

	module, err := nzsl.Parse(source)
	if err != nil {
		t.Fatalf("[%s] parse failed: %v", name, err)
	}
	sanitized, err := nzsl.Sanitize(module, nzsl.DefaultOptions().Sanitize)
	if err != nil {
		t.Fatalf("[%s] sanitize failed: %v", name, err)
	}
	return sanitized
}

// compileSPIRV compiles the module to SPIR-V with debug names and returns
// its disassembly.
func compileSPIRV(t *testing.T, module *ast.Module) string {
	t.Helper()

	env := spirv.DefaultEnvironment()
	env.Debug = true
	words, err := spirv.Generate(module, env)
	if err != nil {
		t.Fatalf("SPIR-V compile failed: %v", err)
	}
	disasm, err := spirv.Disassemble(words)
	if err != nil {
		t.Fatalf("disassemble failed: %v", err)
	}
	return disasm
}

// compileGLSL compiles every entry point of the module to GLSL.
// The output is concatenated with separators.
func compileGLSL(t *testing.T, module *ast.Module) string {
	t.Helper()

	entryPoints := module.EntryPoints()
	if len(entryPoints) == 0 {
		t.Skip("no entry points for GLSL")
	}

	var parts []string
	for _, ep := range entryPoints {
		env := glsl.DefaultEnvironment()
		env.Stage = ep.EntryStage.Value
		env.EntryPoint = ep.Name

		// Compute shaders need GLSL 430+
		if env.Stage == ast.StageCompute {
			env.Version = glsl.Version430
		}

		code, err := glsl.Generate(module, env)
		if err != nil {
			t.Fatalf("GLSL compile for entry point %q failed: %v", ep.Name, err)
		}

		header := fmt.Sprintf("// === Entry Point: %s (%s) ===\n", ep.Name, env.Stage)
		parts = append(parts, header+code)
	}

	return strings.Join(parts, "\n")
}

// writeSource prints the module as canonical nzsl source.
func writeSource(t *testing.T, module *ast.Module) string {
	t.Helper()

	text, err := serialize.WriteSource(module)
	if err != nil {
		t.Fatalf("WriteSource failed: %v", err)
	}
	return text
}

// ---------------------------------------------------------------------------
// Golden File Comparison
// ---------------------------------------------------------------------------

// compareGolden compares actual output against a golden file. Inputs without
// a golden file yet are skipped.
func compareGolden(t *testing.T, path, actual string) {
	t.Helper()

	if os.Getenv("UPDATE_GOLDEN") != "" {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			t.Fatalf("create golden dir: %v", mkErr)
		}
		if wErr := os.WriteFile(path, []byte(actual), 0o644); wErr != nil { //nolint:gosec // G306: golden files are checked in
			t.Fatalf("write golden file: %v", wErr)
		}
		t.Logf("updated golden file: %s", path)
		return
	}

	expected, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		t.Skipf("golden file missing: %s\nRun with UPDATE_GOLDEN=1 to create.\n\nActual output:\n%s", path, truncate(actual, 500))
	}
	if err != nil {
		t.Fatalf("read golden file %s: %v", path, err)
	}

	// Normalize line endings for cross-platform comparison.
	// Git may convert \n to \r\n on Windows checkout.
	expectedStr := strings.ReplaceAll(string(expected), "\r\n", "\n")
	actualStr := strings.ReplaceAll(actual, "\r\n", "\n")

	if expectedStr != actualStr {
		diff := diffStrings(expectedStr, actualStr)
		t.Errorf("output differs from golden %s:\n%s", path, diff)
	}
}

// diffStrings produces a simple line-by-line diff showing the first difference
// and surrounding context.
func diffStrings(expected, actual string) string {
	expectedLines := strings.Split(expected, "\n")
	actualLines := strings.Split(actual, "\n")

	var sb strings.Builder
	maxLines := len(expectedLines)
	if len(actualLines) > maxLines {
		maxLines = len(actualLines)
	}

	const contextLines = 3
	firstDiff := -1
	for i := 0; i < maxLines; i++ {
		var eLine, aLine string
		if i < len(expectedLines) {
			eLine = expectedLines[i]
		}
		if i < len(actualLines) {
			aLine = actualLines[i]
		}
		if eLine != aLine {
			firstDiff = i
			break
		}
	}

	if firstDiff < 0 {
		return "(no difference found)"
	}

	fmt.Fprintf(&sb, "first difference at line %d:\n", firstDiff+1)
	fmt.Fprintf(&sb, "  expected lines: %d\n", len(expectedLines))
	fmt.Fprintf(&sb, "  actual lines:   %d\n\n", len(actualLines))

	// Show context around the first difference
	start := firstDiff - contextLines
	if start < 0 {
		start = 0
	}
	end := firstDiff + contextLines + 1
	if end > maxLines {
		end = maxLines
	}

	for i := start; i < end; i++ {
		prefix := " "
		var eLine, aLine string
		if i < len(expectedLines) {
			eLine = expectedLines[i]
		}
		if i < len(actualLines) {
			aLine = actualLines[i]
		}
		if eLine != aLine {
			prefix = "!"
		}
		fmt.Fprintf(&sb, "%s %4d expected: %s\n", prefix, i+1, truncate(eLine, 120))
		if eLine != aLine {
			fmt.Fprintf(&sb, "%s %4d actual:   %s\n", prefix, i+1, truncate(aLine, 120))
		}
	}

	return sb.String()
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
