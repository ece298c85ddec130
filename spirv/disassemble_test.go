package spirv

import (
	"errors"
	"strings"
	"testing"
)

func TestDisassemble(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)
	builder.AddCapability(CapabilityShader)
	glsl := builder.AddExtInstImport("GLSL.std.450")
	builder.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)

	voidType := builder.AddTypeVoid()
	floatType := builder.AddTypeFloat(32)
	vec4Type := builder.AddTypeVector(floatType, 4)
	outPtr := builder.AddTypePointer(StorageClassOutput, vec4Type)
	funcType := builder.AddTypeFunction(voidType)
	one := builder.AddConstantFloat32(floatType, 1)
	color := builder.AddVariable(outPtr, StorageClassOutput)
	builder.AddDecorate(color, DecorationLocation, 0)

	fb := builder.NewFunction(builder.AllocID(), voidType, funcType)
	x := fb.AddExtInst(floatType, glsl, GLSLstd450Sqrt, one)
	v := fb.AddCompositeConstruct(vec4Type, x, x, x, one)
	fb.AddStore(color, v)
	fb.AddReturn()
	builder.AddFunction(fb)
	builder.AddEntryPoint(ExecutionModelFragment, fb.ID, "main", []uint32{color})
	builder.AddExecutionMode(fb.ID, ExecutionModeOriginUpperLeft)
	builder.AddName(fb.ID, "main")

	text, err := Disassemble(builder.Build())
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		"; Version: 1.3",
		"OpCapability Shader",
		`%1 = OpExtInstImport "GLSL.std.450"`,
		"OpMemoryModel Logical GLSL450",
		`OpEntryPoint Fragment %9 "main" %8`,
		"OpExecutionMode %9 OriginUpperLeft",
		`OpName %9 "main"`,
		"OpDecorate %8 Location 0",
		"%3 = OpTypeFloat 32",
		"%4 = OpTypeVector %3 4",
		"%5 = OpTypePointer Output %4",
		"%7 = OpConstant %3 1065353216",
		"%8 = OpVariable %5 Output",
		"%9 = OpFunction %2 None %6",
		"%11 = OpExtInst %3 %1 31 %7",
		"%12 = OpCompositeConstruct %4 %11 %11 %11 %7",
		"OpStore %8 %12",
		"OpReturn",
		"OpFunctionEnd",
	}
	for _, line := range want {
		if !strings.Contains(text, line+"\n") {
			t.Errorf("disassembly is missing %q\n%s", line, text)
		}
	}
}

func TestDisassembleBuiltIn(t *testing.T) {
	builder := NewModuleBuilder(Version1_0)
	floatType := builder.AddTypeFloat(32)
	vec4Type := builder.AddTypeVector(floatType, 4)
	ptr := builder.AddTypePointer(StorageClassOutput, vec4Type)
	pos := builder.AddVariable(ptr, StorageClassOutput)
	builder.AddDecorate(pos, DecorationBuiltIn, uint32(BuiltInPosition))

	text, err := Disassemble(builder.Build())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "OpDecorate %4 BuiltIn Position\n") {
		t.Errorf("BuiltIn decoration not rendered:\n%s", text)
	}
	if !strings.Contains(text, "; Version: 1.0\n") {
		t.Errorf("version not rendered:\n%s", text)
	}
}

func TestDecodeInvalid(t *testing.T) {
	valid := NewModuleBuilder(Version1_3).Build()
	tests := []struct {
		name  string
		words []uint32
	}{
		{"empty", nil},
		{"short header", []uint32{MagicNumber, 0x10300}},
		{"bad magic", []uint32{0xDEADBEEF, 0x10300, 0, 1, 0}},
		{"truncated instruction", append(append([]uint32(nil), valid...), 3<<16|uint32(OpTypeInt), 1)},
		{"zero word count", append(append([]uint32(nil), valid...), uint32(OpNop))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.words); !errors.Is(err, ErrInvalidModule) {
				t.Errorf("Decode error = %v, want ErrInvalidModule", err)
			}
			if _, err := Disassemble(tt.words); err == nil {
				t.Error("Disassemble succeeded on an invalid module")
			}
		})
	}
}

func TestBytesRoundTrip(t *testing.T) {
	words := NewModuleBuilder(Version1_5).Build()
	back := FromBytes(ToBytes(words))
	if len(back) != len(words) {
		t.Fatalf("got %d words, want %d", len(back), len(words))
	}
	for i := range words {
		if back[i] != words[i] {
			t.Errorf("word %d = 0x%08X, want 0x%08X", i, back[i], words[i])
		}
	}
	if b := ToBytes(words); b[0] != 0x03 || b[3] != 0x07 {
		t.Errorf("magic bytes = % x, want little-endian", b[:4])
	}
}
