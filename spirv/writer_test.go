package spirv

import (
	"testing"
)

func TestModuleBuilder_MinimalModule(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)

	// Add basic capability
	builder.AddCapability(CapabilityShader)

	// Set memory model (required)
	builder.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)

	// Build the module
	words := builder.Build()

	// Verify header (5 words)
	if len(words) < 5 {
		t.Fatalf("Module too small: got %d words, want at least 5", len(words))
	}

	if words[0] != MagicNumber {
		t.Errorf("Invalid magic number: got 0x%08X, want 0x%08X", words[0], MagicNumber)
	}

	expectedVersion := uint32(1<<16 | 3<<8) // Version 1.3
	if words[1] != expectedVersion {
		t.Errorf("Invalid version: got 0x%08X, want 0x%08X", words[1], expectedVersion)
	}

	if words[2] != GeneratorID {
		t.Errorf("Invalid generator: got 0x%08X, want 0x%08X", words[2], GeneratorID)
	}

	// Bound is max ID + 1, so at least 1
	if words[3] == 0 {
		t.Error("Bound should be > 0")
	}

	// Schema (reserved, must be 0)
	if words[4] != 0 {
		t.Errorf("Schema should be 0, got %d", words[4])
	}

	// OpCapability Shader, OpMemoryModel Logical GLSL450
	want := []uint32{2<<16 | uint32(OpCapability), uint32(CapabilityShader), 3<<16 | uint32(OpMemoryModel), 0, 1}
	if len(words) != 5+len(want) {
		t.Fatalf("Module has %d words, want %d", len(words), 5+len(want))
	}
	for i, w := range want {
		if words[5+i] != w {
			t.Errorf("word %d = 0x%08X, want 0x%08X", 5+i, words[5+i], w)
		}
	}
}

func TestModuleBuilder_CapabilityDeduplication(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)
	builder.AddCapability(CapabilityShader)
	builder.AddCapability(CapabilityFloat64)
	builder.AddCapability(CapabilityShader)

	instructions, err := Decode(builder.Build())
	if err != nil {
		t.Fatal(err)
	}
	if n := countOps(instructions, OpCapability); n != 2 {
		t.Errorf("OpCapability count = %d, want 2", n)
	}
}

func TestModuleBuilder_WithTypes(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)

	builder.AddCapability(CapabilityShader)
	builder.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)

	// Add some types
	voidType := builder.AddTypeVoid()
	floatType := builder.AddTypeFloat(32)
	intType := builder.AddTypeInt(32, true)
	vec4Type := builder.AddTypeVector(floatType, 4)

	words := builder.Build()

	ids := []uint32{voidType, floatType, intType, vec4Type}
	seen := make(map[uint32]bool)
	for _, id := range ids {
		if seen[id] {
			t.Errorf("Type ID %d is not unique", id)
		}
		seen[id] = true
	}
	if words[3] <= vec4Type {
		t.Errorf("Bound %d does not exceed the last ID %d", words[3], vec4Type)
	}
}

func TestModuleBuilder_WithEntryPoint(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)

	builder.AddCapability(CapabilityShader)
	builder.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)

	// Create function types
	voidType := builder.AddTypeVoid()
	funcType := builder.AddTypeFunction(voidType)

	// Create function
	funcID := builder.AllocID()
	fb := builder.NewFunction(funcID, voidType, funcType)
	fb.AddReturn()
	builder.AddFunction(fb)

	// Add entry point
	builder.AddEntryPoint(ExecutionModelFragment, funcID, "main", nil)
	builder.AddExecutionMode(funcID, ExecutionModeOriginUpperLeft)

	instructions, err := Decode(builder.Build())
	if err != nil {
		t.Fatal(err)
	}

	wantOrder := []OpCode{
		OpCapability, OpMemoryModel, OpEntryPoint, OpExecutionMode,
		OpTypeVoid, OpTypeFunction, OpFunction, OpLabel, OpReturn, OpFunctionEnd,
	}
	if len(instructions) != len(wantOrder) {
		t.Fatalf("got %d instructions, want %d", len(instructions), len(wantOrder))
	}
	for i, op := range wantOrder {
		if instructions[i].Opcode != op {
			t.Errorf("instruction %d = %s, want %s", i, instructions[i].Name(), DecodedInstruction{Opcode: op}.Name())
		}
	}
}

func TestFunctionBuilder_HoistsVariables(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)
	voidType := builder.AddTypeVoid()
	floatType := builder.AddTypeFloat(32)
	ptrType := builder.AddTypePointer(StorageClassFunction, floatType)
	funcType := builder.AddTypeFunction(voidType)
	one := builder.AddConstantFloat32(floatType, 1)

	fb := builder.NewFunction(builder.AllocID(), voidType, funcType)
	next := builder.AllocID()
	fb.AddBranch(next)
	fb.AddLabel(next)
	v := fb.AddVariable(ptrType)
	fb.AddStore(v, one)
	fb.AddReturn()
	builder.AddFunction(fb)

	instructions, err := Decode(builder.Build())
	if err != nil {
		t.Fatal(err)
	}
	var ops []OpCode
	for _, inst := range instructions {
		if inst.Opcode == OpFunction || len(ops) > 0 {
			ops = append(ops, inst.Opcode)
		}
	}
	want := []OpCode{OpFunction, OpLabel, OpVariable, OpBranch, OpLabel, OpStore, OpReturn, OpFunctionEnd}
	if len(ops) != len(want) {
		t.Fatalf("function body = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("instruction %d = %d, want %d", i, ops[i], want[i])
		}
	}
}

func TestFunctionBuilder_CodeAfterTerminator(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)
	voidType := builder.AddTypeVoid()
	funcType := builder.AddTypeFunction(voidType)

	fb := builder.NewFunction(builder.AllocID(), voidType, funcType)
	fb.AddReturn()
	if !fb.Terminated() {
		t.Fatal("block is not terminated after OpReturn")
	}
	fb.AddReturn()
	builder.AddFunction(fb)

	instructions, err := Decode(builder.Build())
	if err != nil {
		t.Fatal(err)
	}
	if n := countOps(instructions, OpLabel); n != 2 {
		t.Errorf("OpLabel count = %d, want 2", n)
	}
}

func TestInstructionBuilder_String(t *testing.T) {
	tests := []struct {
		text  string
		words int
	}{
		{"", 1},
		{"abc", 1},
		{"main", 2},
		{"hello", 2},
		{"GLSL.std.450", 4},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			builder := NewInstructionBuilder()
			builder.AddString(tt.text)

			encoded := builder.Build(OpName).Encode()
			opcode := OpCode(encoded[0] & 0xFFFF)
			if opcode != OpName {
				t.Errorf("Wrong opcode: got %d, want %d", opcode, OpName)
			}
			// Word count includes opcode word
			if got := int(encoded[0] >> 16); got != tt.words+1 {
				t.Errorf("word count = %d, want %d", got, tt.words+1)
			}
			if s, n := decodeString(encoded[1:]); s != tt.text || n != tt.words {
				t.Errorf("decoded %q in %d words", s, n)
			}
		})
	}
}

func TestModuleBuilder_Float32Constant(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)

	floatType := builder.AddTypeFloat(32)
	constID := builder.AddConstantFloat32(floatType, 1.5)

	instructions, err := Decode(builder.Build())
	if err != nil {
		t.Fatal(err)
	}
	c := instructions[len(instructions)-1]
	if c.Opcode != OpConstant || c.Operands[1] != constID {
		t.Fatalf("last instruction = %s %v, want the constant", c.Name(), c.Operands)
	}
	if c.Operands[2] != 0x3FC00000 {
		t.Errorf("constant bits = 0x%08X, want 0x3FC00000", c.Operands[2])
	}
}

func TestModuleBuilder_IDAllocation(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)

	id1 := builder.AllocID()
	id2 := builder.AllocID()
	id3 := builder.AllocID()

	if id1 >= id2 || id2 >= id3 {
		t.Error("IDs should be strictly increasing")
	}

	if id1 == 0 || id2 == 0 || id3 == 0 {
		t.Error("IDs should never be 0")
	}

	if builder.Bound() != id3+1 {
		t.Errorf("Bound = %d, want %d", builder.Bound(), id3+1)
	}
}

func countOps(instructions []DecodedInstruction, op OpCode) int {
	n := 0
	for _, inst := range instructions {
		if inst.Opcode == op {
			n++
		}
	}
	return n
}
