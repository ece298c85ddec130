// Package spirv generates SPIR-V modules from sanitized nzsl modules.
//
// SPIR-V is the standard intermediate language for GPU shaders,
// used by Vulkan, OpenCL, and other APIs.
//
// # Backend
//
// The Backend translates a sanitized module to a SPIR-V word stream:
//
//	env := spirv.DefaultEnvironment()
//	env.Stages = []ast.ShaderStage{ast.StageFragment}
//	words, err := spirv.NewBackend(env).Compile(module)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// The backend re-sanitizes its input with the rewrites SPIR-V needs
// (branch splitting, loop reduction, matrix cast removal) and resolves
// options and constant branches with the environment's option values.
// Only functions reachable from the selected entry points are emitted.
//
// Entry points take and return structs. The backend wraps each one in a
// parameterless function that loads every input member from an Input
// variable and stores every output member to an Output variable.
//
// # Binary Writer
//
// The package also provides a low-level binary writer for constructing
// SPIR-V modules programmatically using ModuleBuilder:
//
//	builder := spirv.NewModuleBuilder(spirv.Version1_3)
//	builder.AddCapability(spirv.CapabilityShader)
//	builder.SetMemoryModel(spirv.AddressingModelLogical, spirv.MemoryModelGLSL450)
//
//	// Add types
//	floatType := builder.AddTypeFloat(32)
//	vec4Type := builder.AddTypeVector(floatType, 4)
//
//	// Build binary
//	words := builder.Build()
//
// # SPIR-V Structure
//
// SPIR-V modules consist of:
//   - Header (magic, version, generator, bound, schema)
//   - Capabilities (required features)
//   - Extensions (optional extensions)
//   - Extended instruction imports (GLSL.std.450, etc.)
//   - Memory model (addressing and memory model)
//   - Entry points (shader entry functions)
//   - Execution modes (shader configuration)
//   - Debug information (source file, names)
//   - Annotations (decorations)
//   - Types and constants
//   - Global variables
//   - Functions (code)
//
// Disassemble renders a word stream back to assembly text.
//
// # References
//
// SPIR-V Specification: https://registry.khronos.org/SPIR-V/specs/unified1/SPIRV.html
package spirv
