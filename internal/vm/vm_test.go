package vm

import (
	"encoding/binary"
	"testing"

	"github.com/libertaine/battle2/internal/agent"
	"github.com/libertaine/battle2/internal/arena"
)

func imm32(op byte, v uint32) []byte {
	b := make([]byte, 5)
	b[0] = op
	binary.LittleEndian.PutUint32(b[1:], v)
	return b
}

func newTestArena(t *testing.T, size int) *arena.Arena {
	t.Helper()
	a, err := arena.New(size)
	if err != nil {
		t.Fatalf("arena.New: %v", err)
	}
	return a
}

func TestStepNOP(t *testing.T) {
	ar := newTestArena(t, 256)
	a := agent.New("A", 0, [2]int{0, 0})
	ar.WriteByte(0, OpNOP, "A")
	Step(a, ar)
	if a.PC != 1 {
		t.Fatalf("PC = %d, want 1", a.PC)
	}
}

func TestStepMOV(t *testing.T) {
	ar := newTestArena(t, 256)
	a := agent.New("A", 0, [2]int{0, 4})
	code := imm32(OpMOV, 0xDEADBEEF)
	for i, b := range code {
		ar.WriteByte(i, b, "A")
	}
	Step(a, ar)
	if a.Regs.A != 0xDEADBEEF {
		t.Fatalf("A = %#x, want 0xDEADBEEF", a.Regs.A)
	}
	if a.PC != 5 {
		t.Fatalf("PC = %d, want 5", a.PC)
	}
}

func TestStepADDWrapsAndSetsZero(t *testing.T) {
	ar := newTestArena(t, 256)
	a := agent.New("A", 0, [2]int{0, 4})
	a.Regs.A = 0xFFFFFFFF
	code := imm32(OpADD, 1)
	for i, b := range code {
		ar.WriteByte(i, b, "A")
	}
	Step(a, ar)
	if a.Regs.A != 0 {
		t.Fatalf("A = %#x, want 0 (wrapped)", a.Regs.A)
	}
	if a.Regs.Z != 1 {
		t.Fatalf("Z = %d, want 1", a.Regs.Z)
	}
}

func TestStepADDPDoesNotSetZ(t *testing.T) {
	ar := newTestArena(t, 256)
	a := agent.New("A", 0, [2]int{0, 4})
	a.Regs.P = 0xFFFFFFFF
	a.Regs.Z = 1
	code := imm32(OpADDP, 1)
	for i, b := range code {
		ar.WriteByte(i, b, "A")
	}
	Step(a, ar)
	if a.Regs.P != 0 {
		t.Fatalf("P = %#x, want 0 (wrapped)", a.Regs.P)
	}
	if a.Regs.Z != 1 {
		t.Fatalf("Z must be left untouched by ADDP, got %d", a.Regs.Z)
	}
}

func TestStepSTOREWritesLowByteAndTagsWriter(t *testing.T) {
	ar := newTestArena(t, 256)
	a := agent.New("A", 0, [2]int{0, 4})
	a.Regs.A = 0x1FF // low byte 0xFF
	code := imm32(OpSTORE, 200)
	for i, b := range code {
		ar.WriteByte(i, b, "A")
	}
	Step(a, ar)
	if ar.ReadByte(200) != 0xFF {
		t.Fatalf("arena[200] = %#x, want 0xFF", ar.ReadByte(200))
	}
	if ar.WriterAt(200) != "A" {
		t.Fatalf("writer[200] = %q, want A", ar.WriterAt(200))
	}
	if a.MemWrites != 1 {
		t.Fatalf("MemWrites = %d, want 1", a.MemWrites)
	}
}

func TestStepJZTakenOnlyWhenZeroSet(t *testing.T) {
	ar := newTestArena(t, 256)
	a := agent.New("A", 0, [2]int{0, 4})
	a.Regs.Z = 0
	code := imm32(OpJZ, 99)
	for i, b := range code {
		ar.WriteByte(i, b, "A")
	}
	Step(a, ar)
	if a.PC != 5 {
		t.Fatalf("PC = %d, want 5 (not taken)", a.PC)
	}

	a.PC = 0
	a.Regs.Z = 1
	Step(a, ar)
	if a.PC != 99 {
		t.Fatalf("PC = %d, want 99 (taken)", a.PC)
	}
}

func TestStepHALTKillsAgent(t *testing.T) {
	ar := newTestArena(t, 256)
	a := agent.New("A", 0, [2]int{0, 0})
	ar.WriteByte(0, OpHALT, "A")
	Step(a, ar)
	if a.Alive {
		t.Fatalf("agent must be dead after HALT")
	}
}

func TestStepInvalidOpcodeKillsSilently(t *testing.T) {
	ar := newTestArena(t, 256)
	a := agent.New("A", 0, [2]int{0, 0})
	ar.WriteByte(0, 0xFF, "A")
	Step(a, ar)
	if a.Alive {
		t.Fatalf("agent must be dead after invalid opcode")
	}
}

func TestStepDeadAgentIsNoOp(t *testing.T) {
	ar := newTestArena(t, 256)
	a := agent.New("A", 0, [2]int{0, 0})
	a.Alive = false
	ar.WriteByte(0, OpMOV, "A")
	Step(a, ar)
	if a.PC != 0 {
		t.Fatalf("dead agent must not advance PC")
	}
}

func TestStepLOADISTOREIUseP(t *testing.T) {
	ar := newTestArena(t, 256)
	a := agent.New("A", 0, [2]int{0, 0})
	a.Regs.P = 50
	a.Regs.A = 7
	ar.WriteByte(0, OpSTOREI, "A")
	Step(a, ar)
	if ar.ReadByte(50) != 7 {
		t.Fatalf("arena[50] = %d, want 7", ar.ReadByte(50))
	}
	if a.PC != 1 {
		t.Fatalf("PC = %d, want 1", a.PC)
	}

	ar.WriteByte(50, 42, "B")
	a.PC = 1
	ar.WriteByte(1, OpLOADI, "A")
	Step(a, ar)
	if a.Regs.A != 42 {
		t.Fatalf("A = %d, want 42", a.Regs.A)
	}
	if a.Regs.Z != 0 {
		t.Fatalf("Z = %d, want 0", a.Regs.Z)
	}
}

func TestImmediateBytesWrapIndividually(t *testing.T) {
	ar := newTestArena(t, 8)
	a := agent.New("A", 6, [2]int{6, 10})
	// opcode at 6, immediate bytes at 7,0,1,2 (wrapping around an 8-byte arena)
	ar.WriteByte(6, OpMOV, "A")
	ar.WriteByte(7, 0x11, "A")
	ar.WriteByte(0, 0x22, "A")
	ar.WriteByte(1, 0x33, "A")
	ar.WriteByte(2, 0x44, "A")
	Step(a, ar)
	want := uint32(0x11) | uint32(0x22)<<8 | uint32(0x33)<<16 | uint32(0x44)<<24
	if a.Regs.A != want {
		t.Fatalf("A = %#x, want %#x", a.Regs.A, want)
	}
}
