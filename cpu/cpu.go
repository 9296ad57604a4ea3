// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"errors"
	"fmt"
	"iter"
	"log"
	"maps"
	"os"

	"github.com/ezrec/ls8/io"
)

// Channel is the output channel written by PRN.
type Channel io.Channel

var _cpu_defines = map[string]string{
	"RAM_SIZE":   fmt.Sprintf("%d", RAM_SIZE),
	"SP_INIT":    fmt.Sprintf("%#x", SP_INIT),
	"FL_EQUAL":   fmt.Sprintf("%#x", FL_EQUAL),
	"FL_GREATER": fmt.Sprintf("%#x", FL_GREATER),
	"FL_LESS":    fmt.Sprintf("%#x", FL_LESS),
}

// handler executes one instruction with its two pre-fetched operand bytes.
type handler func(cpu *Cpu, operand_a, operand_b uint8) error

// branchTable dispatches on the full opcode byte. Undefined entries are nil.
var branchTable = [256]handler{
	OP_HLT:  (*Cpu).opHlt,
	OP_LDI:  (*Cpu).opLdi,
	OP_PRN:  (*Cpu).opPrn,
	OP_ADD:  (*Cpu).opAdd,
	OP_MUL:  (*Cpu).opMul,
	OP_PUSH: (*Cpu).opPush,
	OP_POP:  (*Cpu).opPop,
	OP_CALL: (*Cpu).opCall,
	OP_RET:  (*Cpu).opRet,
	OP_CMP:  (*Cpu).opCmp,
	OP_JMP:  (*Cpu).opJmp,
	OP_JEQ:  (*Cpu).opJeq,
	OP_JNE:  (*Cpu).opJne,
}

// Cpu is the simulation context for an LS-8 machine.
type Cpu struct {
	Verbose bool    // Set to enable per-tick trace logging.
	Output  Channel // Destination of PRN.

	Register [REGISTER_COUNT]uint8 // Register bank. R7 is seeded with SP_INIT.
	Ram      [RAM_SIZE]uint8       // Unified code, data and stack memory.
	Pc       uint8                 // Program counter.
	Ir       Code                  // Most recently fetched instruction.
	Sp       uint8                 // Stack pointer. Not an alias of R7.
	Fl       uint8                 // Flags, written only by CMP.
	Running  bool                  // Cleared by HLT.

	Ticks int // Instructions executed since reset.
}

// NewCpu creates a new CPU in its power-on state, printing to stdout.
func NewCpu() (cpu *Cpu) {
	cpu = &Cpu{
		Output: &io.Tape{Output: os.Stdout},
	}

	cpu.Reset()

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// Reset the CPU to its power-on state.
// - Clears the registers, memory and flags.
// - Seeds R7 and SP with SP_INIT.
// - Sets PC to 0 and marks the CPU running.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		log.Printf("cpu: reset")
	}

	clear(cpu.Register[:])
	clear(cpu.Ram[:])

	cpu.Register[REG_SP] = SP_INIT
	cpu.Sp = cpu.Register[REG_SP]
	cpu.Pc = 0
	cpu.Ir = 0
	cpu.Fl = 0
	cpu.Running = true
	cpu.Ticks = 0
}

// Load copies a program image into memory, starting at address 0.
func (cpu *Cpu) Load(image []byte) (err error) {
	if len(image) > len(cpu.Ram) {
		err = io.ErrImageTooLarge
		return
	}

	copy(cpu.Ram[:], image)

	if cpu.Verbose {
		log.Printf("cpu: loaded %d bytes", len(image))
	}

	return
}

// RamRead returns the byte at the memory address register.
func (cpu *Cpu) RamRead(mar uint8) uint8 {
	return cpu.Ram[mar]
}

// RamWrite stores the memory data register at the memory address register.
func (cpu *Cpu) RamWrite(mar uint8, mdr uint8) {
	cpu.Ram[mar] = mdr
}

// reg returns a reference to a register, by operand index.
func (cpu *Cpu) reg(index uint8) (reg *uint8, err error) {
	if int(index) >= len(cpu.Register) {
		err = ErrRegisterInvalid
		return
	}

	reg = &cpu.Register[index]
	return
}

// Tick fetches, decodes and executes a single instruction.
//
// An opcode with no handler is not an error: the PC still advances over
// its operands. ErrHalted is returned once HLT has executed.
func (cpu *Cpu) Tick() (err error) {
	if !cpu.Running {
		err = ErrHalted
		return
	}

	pc := cpu.Pc
	cpu.Ir = Code(cpu.RamRead(pc))

	// Operands are always pre-fetched; addresses wrap at the end of memory.
	operand_a := cpu.RamRead(pc + 1)
	operand_b := cpu.RamRead(pc + 2)

	if cpu.Verbose {
		log.Print(cpu.Trace())
	}

	cpu.Ticks += 1

	op := branchTable[cpu.Ir]
	if op != nil {
		err = op(cpu, operand_a, operand_b)
		if errors.Is(err, ErrHalted) {
			return
		}
		if err != nil {
			err = errors.Join(ErrOpcode{Pc: pc, Code: cpu.Ir}, err)
			return
		}
	}

	if !cpu.Ir.SetsPc() {
		cpu.Pc += uint8(cpu.Ir.Size())
	}

	return
}

// Run ticks the CPU until it halts or an instruction fails.
// A halt is a normal return, and returns nil.
func (cpu *Cpu) Run() (err error) {
	for cpu.Running {
		err = cpu.Tick()
		if errors.Is(err, ErrHalted) {
			return nil
		}
		if err != nil {
			return
		}
	}

	return
}

// Trace returns a one line summary of the machine state at the PC.
func (cpu *Cpu) Trace() (text string) {
	text = fmt.Sprintf("TRACE: %02X | %02X %02X %02X |",
		cpu.Pc,
		cpu.RamRead(cpu.Pc),
		cpu.RamRead(cpu.Pc+1),
		cpu.RamRead(cpu.Pc+2),
	)

	for _, reg := range cpu.Register {
		text += fmt.Sprintf(" %02X", reg)
	}

	return
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	regs := []string{
		"pc", "ir", "fl", "sp",
		"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7",
	}
	for _, reg := range regs {
		var strval string
		switch reg {
		case "pc":
			strval = fmt.Sprintf("%02X", cpu.Pc)
		case "ir":
			code := Code(cpu.RamRead(cpu.Pc))
			strval = fmt.Sprintf("%02X %v", uint8(code),
				code.Disassemble(cpu.RamRead(cpu.Pc+1), cpu.RamRead(cpu.Pc+2)))
		case "fl":
			strval = fmt.Sprintf("%08b", cpu.Fl)
		case "sp":
			strval = fmt.Sprintf("%02X", cpu.Sp)
		default:
			val := cpu.Register[byte(reg[1]-'0')]
			strval = fmt.Sprintf("%02X (%d)", val, val)
		}
		text += fmt.Sprintf("% 5s: %v\n", reg, strval)
	}

	return
}

func (cpu *Cpu) opHlt(operand_a, operand_b uint8) (err error) {
	cpu.Running = false
	if cpu.Verbose {
		log.Printf("cpu: halt at %02X after %d ticks", cpu.Pc, cpu.Ticks)
	}
	return ErrHalted
}

func (cpu *Cpu) opLdi(operand_a, operand_b uint8) (err error) {
	reg, err := cpu.reg(operand_a)
	if err != nil {
		return
	}

	*reg = operand_b
	return
}

func (cpu *Cpu) opPrn(operand_a, operand_b uint8) (err error) {
	reg, err := cpu.reg(operand_a)
	if err != nil {
		return
	}

	if cpu.Output == nil {
		err = ErrOutputMissing
		return
	}

	return cpu.Output.Send(*reg)
}

func (cpu *Cpu) opAdd(operand_a, operand_b uint8) error {
	return cpu.alu(OP_ADD, operand_a, operand_b)
}

func (cpu *Cpu) opMul(operand_a, operand_b uint8) error {
	return cpu.alu(OP_MUL, operand_a, operand_b)
}

func (cpu *Cpu) opCmp(operand_a, operand_b uint8) error {
	return cpu.alu(OP_CMP, operand_a, operand_b)
}

// alu performs the requested ALU operation on two registers.
// Results are truncated to 8 bits.
func (cpu *Cpu) alu(op Code, reg_a, reg_b uint8) (err error) {
	a, err := cpu.reg(reg_a)
	if err != nil {
		return
	}
	b, err := cpu.reg(reg_b)
	if err != nil {
		return
	}

	switch op {
	case OP_ADD:
		*a += *b
	case OP_MUL:
		*a *= *b
	case OP_CMP:
		switch {
		case *a == *b:
			cpu.Fl = FL_EQUAL
		case *a > *b:
			cpu.Fl = FL_GREATER
		default:
			cpu.Fl = FL_LESS
		}
	default:
		err = ErrAluUnsupported
	}

	return
}

func (cpu *Cpu) opPush(operand_a, operand_b uint8) (err error) {
	reg, err := cpu.reg(operand_a)
	if err != nil {
		return
	}

	cpu.push(*reg)
	return
}

func (cpu *Cpu) opPop(operand_a, operand_b uint8) (err error) {
	reg, err := cpu.reg(operand_a)
	if err != nil {
		return
	}

	*reg = cpu.pop()
	return
}

func (cpu *Cpu) opCall(operand_a, operand_b uint8) (err error) {
	reg, err := cpu.reg(operand_a)
	if err != nil {
		return
	}

	// Return past the 2 byte CALL.
	cpu.push(cpu.Pc + 2)
	cpu.Pc = *reg
	return
}

func (cpu *Cpu) opRet(operand_a, operand_b uint8) (err error) {
	cpu.Pc = cpu.pop()
	return
}

func (cpu *Cpu) opJmp(operand_a, operand_b uint8) (err error) {
	reg, err := cpu.reg(operand_a)
	if err != nil {
		return
	}

	cpu.Pc = *reg
	return
}

// opJeq jumps only when FL is exactly FL_EQUAL.
func (cpu *Cpu) opJeq(operand_a, operand_b uint8) (err error) {
	if cpu.Fl == FL_EQUAL {
		return cpu.opJmp(operand_a, operand_b)
	}

	cpu.Pc += 2
	return
}

// opJne jumps unless FL is exactly FL_EQUAL.
func (cpu *Cpu) opJne(operand_a, operand_b uint8) (err error) {
	if cpu.Fl != FL_EQUAL {
		return cpu.opJmp(operand_a, operand_b)
	}

	cpu.Pc += 2
	return
}
