// Package vm implements the decode/execute half of the engine: a single
// VM.Step call decodes one instruction out of the arena at the agent's
// program counter and executes it against the agent's registers and the
// shared arena.
//
// The opcode table is a dense array indexed by opcode byte, in the same
// spirit as the teacher's CPU opcode table (nes.CPU.createInstructions):
// constant-time dispatch, trivial to extend or fuzz.
package vm

import "github.com/libertaine/battle2/internal/agent"

// Opcode values, per the instruction set table in spec.md §4.1.
const (
	OpNOP    = 0
	OpMOV    = 1
	OpADD    = 2
	OpLOAD   = 3
	OpSTORE  = 4
	OpJMP    = 5
	OpJZ     = 6
	OpHALT   = 7
	OpMOVP   = 8
	OpADDP   = 9
	OpLOADI  = 10
	OpSTOREI = 11

	// NumOpcodes is the count of valid opcodes; any byte >= this value is
	// invalid and kills the executing agent.
	NumOpcodes = 12
)

// Arena is the subset of *arena.Arena the VM needs. Declared here (rather
// than importing the concrete type everywhere) keeps vm's dependency on
// arena narrow and testable against a fake.
type Arena interface {
	Index(addr uint32) int
	ReadByte(addr int) byte
	WriteByte(addr int, val byte, writer string)
}

// exec is one opcode handler. It receives the agent, the arena, and the
// already-fetched 32-bit immediate (zero for opcodes without one).
type exec func(a *agent.Agent, ar Arena, imm uint32)

var table [NumOpcodes]exec

func init() {
	table[OpNOP] = execNOP
	table[OpMOV] = execMOV
	table[OpADD] = execADD
	table[OpLOAD] = execLOAD
	table[OpSTORE] = execSTORE
	table[OpJMP] = execJMP
	table[OpJZ] = execJZ
	table[OpHALT] = execHALT
	table[OpMOVP] = execMOVP
	table[OpADDP] = execADDP
	table[OpLOADI] = execLOADI
	table[OpSTOREI] = execSTOREI
}

// hasImmediate reports whether opcode op carries a 4-byte little-endian
// immediate following it.
func hasImmediate(op byte) bool {
	switch op {
	case OpMOV, OpADD, OpLOAD, OpSTORE, OpJMP, OpJZ, OpMOVP, OpADDP:
		return true
	default:
		return false
	}
}

// Step decodes and executes exactly one instruction for a. It is a no-op if
// a is already dead. The only failure mode is an invalid opcode, which kills
// the agent silently — no error is returned, matching spec.md §4.1 ("no
// trap, no exception surfaced").
func Step(a *agent.Agent, ar Arena) {
	if !a.Alive {
		return
	}

	pc := ar.Index(a.PC)
	op := ar.ReadByte(pc)

	if op >= NumOpcodes {
		a.Alive = false
		return
	}

	var imm uint32
	if hasImmediate(op) {
		imm = readImm32(ar, a.PC)
	}

	table[op](a, ar, imm)
}

// readImm32 reads the 4 little-endian bytes following pc, each individually
// wrapped modulo the arena size during decode.
func readImm32(ar Arena, pc uint32) uint32 {
	var b [4]byte
	for i := 0; i < 4; i++ {
		b[i] = ar.ReadByte(ar.Index(pc + 1 + uint32(i)))
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func setZ(a *agent.Agent) {
	if a.Regs.A == 0 {
		a.Regs.Z = 1
	} else {
		a.Regs.Z = 0
	}
}

func execNOP(a *agent.Agent, _ Arena, _ uint32) {
	a.PC++
}

func execMOV(a *agent.Agent, _ Arena, imm uint32) {
	a.Regs.A = imm
	a.PC += 5
}

func execADD(a *agent.Agent, _ Arena, imm uint32) {
	a.Regs.A += imm // uint32 arithmetic wraps mod 2^32 automatically
	setZ(a)
	a.PC += 5
}

func execLOAD(a *agent.Agent, ar Arena, imm uint32) {
	addr := ar.Index(imm)
	a.Regs.A = uint32(ar.ReadByte(addr))
	setZ(a)
	a.PC += 5
}

func execSTORE(a *agent.Agent, ar Arena, imm uint32) {
	addr := ar.Index(imm)
	ar.WriteByte(addr, byte(a.Regs.A), a.ID)
	a.MemWrites++
	a.PC += 5
}

func execJMP(a *agent.Agent, ar Arena, imm uint32) {
	a.PC = uint32(ar.Index(imm))
}

func execJZ(a *agent.Agent, ar Arena, imm uint32) {
	if a.Regs.Z == 1 {
		a.PC = uint32(ar.Index(imm))
	} else {
		a.PC += 5
	}
}

func execHALT(a *agent.Agent, _ Arena, _ uint32) {
	a.Alive = false
}

func execMOVP(a *agent.Agent, _ Arena, imm uint32) {
	a.Regs.P = imm
	a.PC += 5
}

func execADDP(a *agent.Agent, _ Arena, imm uint32) {
	a.Regs.P += imm // no Z update, per spec.md §4.1
	a.PC += 5
}

func execLOADI(a *agent.Agent, ar Arena, _ uint32) {
	addr := ar.Index(a.Regs.P)
	a.Regs.A = uint32(ar.ReadByte(addr))
	setZ(a)
	a.PC++
}

func execSTOREI(a *agent.Agent, ar Arena, _ uint32) {
	addr := ar.Index(a.Regs.P)
	ar.WriteByte(addr, byte(a.Regs.A), a.ID)
	a.MemWrites++
	a.PC++
}
