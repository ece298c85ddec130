package spirv

import (
	"encoding/binary"

	"github.com/gogpu/nzsl/ast"
)

// Version represents a SPIR-V version.
type Version struct {
	Major uint8
	Minor uint8
}

// Common SPIR-V versions
var (
	Version1_0 = Version{1, 0}
	Version1_3 = Version{1, 3}
	Version1_4 = Version{1, 4}
	Version1_5 = Version{1, 5}
	Version1_6 = Version{1, 6}
)

// AtLeast reports whether v is the same as or newer than other.
func (v Version) AtLeast(other Version) bool {
	if v.Major != other.Major {
		return v.Major > other.Major
	}
	return v.Minor >= other.Minor
}

// Environment configures SPIR-V generation.
type Environment struct {
	// Version is the SPIR-V version to target
	Version Version

	// OptionValues specializes the options of the module. Options without
	// a value use their declared default.
	OptionValues ast.OptionValues

	// Stages selects the entry points to emit. All entry points are
	// emitted when empty.
	Stages []ast.ShaderStage

	// Capabilities are additional capabilities to declare
	Capabilities []Capability

	// Debug emits OpSource with the source file name, and OpName and
	// OpMemberName for declarations
	Debug bool
}

// DefaultEnvironment returns sensible default options.
func DefaultEnvironment() Environment {
	return Environment{
		Version: Version1_3,
		Debug:   false,
	}
}

// SPIR-V magic number and constants
const (
	MagicNumber = 0x07230203
	GeneratorID = 0x00000000 // Unregistered generator
)

// Generate translates a sanitized module to a SPIR-V word stream.
func Generate(module *ast.Module, env Environment) ([]uint32, error) {
	return NewBackend(env).Compile(module)
}

// ToBytes encodes a word stream in little-endian byte order.
func ToBytes(words []uint32) []byte {
	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

// FromBytes decodes a little-endian byte stream into words. Trailing bytes
// that do not form a whole word are ignored.
func FromBytes(data []byte) []uint32 {
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return words
}
