// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package glsl provides a GLSL (OpenGL Shading Language) backend for nzsl.
//
// The backend generates the source of one shader stage from a sanitized
// module. It supports desktop and ES targets:
//
//   - GLSL ES 3.00: WebGL 2.0, Mobile OpenGL ES 3.0
//   - GLSL 3.30 Core: Desktop OpenGL 3.3+
//   - GLSL ES 3.10: Android 5.0+ with compute shaders and storage buffers
//   - GLSL 4.30 Core: Desktop OpenGL 4.3+ with compute shaders and storage buffers
//
// # Basic Usage
//
//	source, err := glsl.Generate(module, glsl.Environment{
//	    Stage:   ast.StageFragment,
//	    Version: glsl.Version330,
//	})
//
// # Entry Points
//
// The entry function is written as a regular function. A generated main
// fills its input struct from the stage inputs and copies the members of
// the returned struct to the stage outputs. Vertex outputs and fragment
// inputs are named after their location so both stages link by name.
//
// # Options
//
// Options are written as constants holding their specialized value, and
// option-gated declarations and branches are resolved before writing.
//
// # Reserved Words
//
// GLSL has over 500 reserved words (including future reserved).
// The backend automatically escapes conflicting identifier names
// by prefixing them with an underscore. Names starting with _nzsl, the
// prefix of generated names, are prefixed with a u instead.
package glsl
