// Package cpu implements the microprocessor and assembler for the LS-8 system.
//
// The CPU consists of a program counter (PC), eight 8-bit general-purpose
// registers (R0-R7), 256 bytes of memory shared by code, data and a
// descending stack, a stack pointer (SP) and a flags register (FL) written
// by CMP. Each tick fetches an opcode and two operand bytes at the PC and
// dispatches on the opcode through a fixed branch table.
//
// The assembler provides a small assembly language for the LS-8 instruction
// set, supporting labels, equates, data directives and compile-time
// expression evaluation.
package cpu
