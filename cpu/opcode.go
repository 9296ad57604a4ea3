package cpu

import (
	"fmt"
	"strings"
)

// Code is a single LS-8 instruction byte.
//
// Bits 7-6 hold the operand count, and bit 4 is set when the instruction
// updates the PC itself. The remaining bits only distinguish instructions,
// dispatch is by exact match on the whole byte.
type Code uint8

const (
	OP_HLT  = Code(0b0000_0001) // HLT
	OP_LDI  = Code(0b1000_0010) // LDI reg, imm
	OP_PRN  = Code(0b0100_0111) // PRN reg
	OP_ADD  = Code(0b1010_0000) // ADD reg, reg
	OP_MUL  = Code(0b1010_0010) // MUL reg, reg
	OP_PUSH = Code(0b0100_0101) // PUSH reg
	OP_POP  = Code(0b0100_0110) // POP reg
	OP_CALL = Code(0b0101_0000) // CALL reg
	OP_RET  = Code(0b0001_0001) // RET
	OP_CMP  = Code(0b1010_0111) // CMP reg, reg
	OP_JMP  = Code(0b0101_0100) // JMP reg
	OP_JEQ  = Code(0b0101_0101) // JEQ reg
	OP_JNE  = Code(0b0101_0110) // JNE reg
)

const (
	CODE_OPERANDS_SHIFT = 6
	CODE_SETS_PC        = Code(1 << 4)
)

// codeName maps the defined opcodes to their mnemonics.
var codeName = map[Code]string{
	OP_HLT:  "HLT",
	OP_LDI:  "LDI",
	OP_PRN:  "PRN",
	OP_ADD:  "ADD",
	OP_MUL:  "MUL",
	OP_PUSH: "PUSH",
	OP_POP:  "POP",
	OP_CALL: "CALL",
	OP_RET:  "RET",
	OP_CMP:  "CMP",
	OP_JMP:  "JMP",
	OP_JEQ:  "JEQ",
	OP_JNE:  "JNE",
}

// CodeByName returns the opcode for a mnemonic, in any letter case.
func CodeByName(name string) (code Code, ok bool) {
	name = strings.ToUpper(name)
	for code, mnemonic := range codeName {
		if mnemonic == name {
			return code, true
		}
	}

	return
}

// Defined returns true if the opcode has a handler.
func (code Code) Defined() bool {
	_, ok := codeName[code]
	return ok
}

// Operands returns the operand count encoded in bits 7-6.
func (code Code) Operands() int {
	return int(code >> CODE_OPERANDS_SHIFT)
}

// Size is the number of bytes the instruction occupies, including operands.
func (code Code) Size() int {
	return 1 + code.Operands()
}

// SetsPc returns true if the handler is responsible for the PC.
func (code Code) SetsPc() bool {
	return (code & CODE_SETS_PC) != 0
}

// String returns the mnemonic, or the raw bits of an undefined opcode.
func (code Code) String() string {
	name, ok := codeName[code]
	if !ok {
		return fmt.Sprintf("???(%08b)", uint8(code))
	}
	return name
}

// Disassemble renders an instruction and its operands as assembly text.
func (code Code) Disassemble(operand_a, operand_b uint8) (text string) {
	if !code.Defined() {
		return fmt.Sprintf("DB %#02x", uint8(code))
	}

	switch code.Operands() {
	case 0:
		text = code.String()
	case 1:
		text = fmt.Sprintf("%v R%d", code, operand_a)
	default:
		if code == OP_LDI {
			text = fmt.Sprintf("%v R%d,%d", code, operand_a, operand_b)
		} else {
			text = fmt.Sprintf("%v R%d,R%d", code, operand_a, operand_b)
		}
	}

	return
}
