// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"

	"github.com/gogpu/nzsl/ast"
)

// Version represents a GLSL version.
type Version struct {
	Major uint8
	Minor uint8
	ES    bool // true for GLSL ES (OpenGL ES / WebGL)
}

// Common GLSL versions.
var (
	// Desktop OpenGL versions
	Version330 = Version{Major: 3, Minor: 30, ES: false} // OpenGL 3.3 Core
	Version400 = Version{Major: 4, Minor: 0, ES: false}  // OpenGL 4.0
	Version410 = Version{Major: 4, Minor: 10, ES: false} // OpenGL 4.1
	Version420 = Version{Major: 4, Minor: 20, ES: false} // OpenGL 4.2
	Version430 = Version{Major: 4, Minor: 30, ES: false} // OpenGL 4.3 (compute shaders)
	Version450 = Version{Major: 4, Minor: 50, ES: false} // OpenGL 4.5
	Version460 = Version{Major: 4, Minor: 60, ES: false} // OpenGL 4.6

	// OpenGL ES / WebGL versions
	VersionES300 = Version{Major: 3, Minor: 0, ES: true}  // ES 3.0 / WebGL 2.0
	VersionES310 = Version{Major: 3, Minor: 10, ES: true} // ES 3.1 (compute shaders)
	VersionES320 = Version{Major: 3, Minor: 20, ES: true} // ES 3.2
)

// String returns the version as a GLSL version directive value.
func (v Version) String() string {
	if v.ES {
		return fmt.Sprintf("%d%02d es", v.Major, v.Minor)
	}
	return fmt.Sprintf("%d%02d core", v.Major, v.Minor)
}

// Number returns the numeric version (e.g. 330, 300).
func (v Version) Number() int {
	return int(v.Major)*100 + int(v.Minor)
}

// ParseVersion parses a numeric version such as 330 or 300.
func ParseVersion(number int, es bool) (Version, error) {
	if number < 100 || number >= 1000 {
		return Version{}, fmt.Errorf("invalid GLSL version %d", number)
	}
	v := Version{Major: uint8(number / 100), Minor: uint8(number % 100), ES: es} //nolint:gosec // G115: bounded above
	if es && v.Number() < 300 {
		return Version{}, fmt.Errorf("GLSL ES %d is not supported, the minimum is 300", number)
	}
	if !es && v.Number() < 330 {
		return Version{}, fmt.Errorf("GLSL %d is not supported, the minimum is 330", number)
	}
	return v, nil
}

func (v Version) atLeast(desktop, es int) bool {
	if v.ES {
		return v.Number() >= es
	}
	return v.Number() >= desktop
}

// SupportsCompute returns true if this version supports compute shaders.
func (v Version) SupportsCompute() bool {
	return v.atLeast(430, 310)
}

// SupportsStorageBuffers returns true if this version supports storage buffers.
func (v Version) SupportsStorageBuffers() bool {
	return v.atLeast(430, 310)
}

// SupportsExplicitBinding reports whether layout(binding = N) is available.
func (v Version) SupportsExplicitBinding() bool {
	return v.atLeast(420, 310)
}

// SupportsVaryingLocations reports whether vertex outputs and fragment
// inputs may carry layout(location = N).
func (v Version) SupportsVaryingLocations() bool {
	return v.atLeast(410, 310)
}

func (v Version) supportsFragmentLayouts() bool {
	return v.atLeast(420, 310)
}

func (v Version) supportsDouble() bool {
	return !v.ES && v.Number() >= 400
}

// Binding identifies an external by its descriptor set and binding index.
type Binding struct {
	Set     uint32
	Binding uint32
}

// Environment configures GLSL generation.
type Environment struct {
	// Stage is the shader stage to generate.
	Stage ast.ShaderStage

	// EntryPoint selects the entry function by name. The first entry point
	// of Stage is used when empty.
	EntryPoint string

	// OptionValues specializes the options of the module. Options without
	// a value use their declared default.
	OptionValues ast.OptionValues

	// Version is the target GLSL version. Defaults to 330 core, or 300 es
	// when ES is set.
	Version Version

	// ES selects GLSL ES when Version is zero.
	ES bool

	// FlipYPosition negates the y component of the vertex position.
	FlipYPosition bool

	// RemapZPosition maps the vertex depth range from [0, 1] to [-1, 1].
	RemapZPosition bool

	// BindingMapping maps externals to GLSL binding points. Unmapped
	// externals use their binding index.
	BindingMapping map[Binding]uint32
}

// DefaultEnvironment returns sensible default options for GLSL generation.
func DefaultEnvironment() Environment {
	return Environment{
		Stage:   ast.StageFragment,
		Version: Version330,
	}
}

func (env *Environment) version() Version {
	if env.Version.Major != 0 {
		return env.Version
	}
	if env.ES {
		return VersionES300
	}
	return Version330
}

// Generate translates the entry point of a sanitized module to GLSL source.
// The module is not modified.
func Generate(module *ast.Module, env Environment) (string, error) {
	w := newWriter(env)
	if err := w.writeModule(module); err != nil {
		return "", err
	}
	return w.String(), nil
}
