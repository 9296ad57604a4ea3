package cpu

// The stack lives in Ram, growing down from SP_INIT. There are no bounds
// checks: SP wraps at the ends of memory and may overwrite program text.

// push decrements SP, then writes the value at SP.
func (cpu *Cpu) push(value uint8) {
	cpu.Sp--
	cpu.RamWrite(cpu.Sp, value)
}

// pop reads the value at SP, then increments SP.
func (cpu *Cpu) pop() (value uint8) {
	value = cpu.RamRead(cpu.Sp)
	cpu.Sp++
	return
}

// Peek returns the value on top of the stack without popping it.
func (cpu *Cpu) Peek() uint8 {
	return cpu.RamRead(cpu.Sp)
}

// StackDepth returns the number of bytes pushed below SP_INIT.
func (cpu *Cpu) StackDepth() int {
	return int(uint8(SP_INIT - cpu.Sp))
}
