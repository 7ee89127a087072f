// Package agent models the execution context of a single bytecode agent
// competing in the arena: its id, program counter, registers, and the
// per-tick/cumulative counters the kernel uses for scoring.
package agent

// Regs holds the three 32-bit registers every agent has: the accumulator,
// the zero flag (0 or 1), and the pointer register used by the indirect
// LOADI/STOREI instructions.
type Regs struct {
	A uint32
	Z uint32
	P uint32
}

// Agent is the execution context the kernel steps once per tick, up to the
// configured instruction quota, for as long as it is alive.
type Agent struct {
	ID   string
	PC   uint32
	Regs Regs

	Alive bool

	// CPUUsed counts instructions executed in the current tick; reset to 0
	// at the start of every tick the agent is still alive for.
	CPUUsed int
	// MemWrites is the cumulative count of successful byte writes.
	MemWrites int

	// Region records where this agent's code was initially loaded.
	Region [2]int
}

// New creates an agent at the given program counter, alive, with zeroed
// registers and counters. pc and region are supplied by the caller (arena's
// LoadCode performs the modular reduction and wraparound).
func New(id string, pc int, region [2]int) *Agent {
	return &Agent{
		ID:     id,
		PC:     uint32(pc),
		Alive:  true,
		Region: region,
	}
}
