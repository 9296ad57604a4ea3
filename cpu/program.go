package cpu

import (
	"iter"
	stdio "io"
	"strings"

	"github.com/ezrec/ls8/io"
)

// Link is a reference to a label, resolved once all labels are known.
type Link struct {
	Index int // Offset into Opcode.Codes.
	Label string
}

// Opcode represents a line of assembled code with its source location and generated bytes.
type Opcode struct {
	LineNo int
	Ip     int
	Words  []string
	Codes  []byte
	Links  []Link
}

type Program struct {
	Opcodes []Opcode
}

type Debug struct {
	*Opcode
	Index int
}

// Debug finds the statement that generated the byte at an address.
func (prog *Program) Debug(ip uint8) (dbg Debug) {
	for n, op := range prog.Opcodes {
		if int(ip) >= op.Ip && int(ip) < op.Ip+len(op.Codes) {
			dbg = Debug{
				Opcode: &prog.Opcodes[n],
				Index:  int(ip) - op.Ip,
			}
			break
		}
	}

	return
}

// Binary returns the memory image of the program.
func (prog *Program) Binary() (bins []byte) {
	for _, code := range prog.Codes() {
		bins = append(bins, code)
	}

	return
}

// Codes iterates over every address and byte of the program.
func (prog *Program) Codes() iter.Seq2[int, byte] {
	return func(yield func(ip int, code byte) bool) {
		for _, op := range prog.Opcodes {
			for n, code := range op.Codes {
				if !yield(op.Ip+n, code) {
					return
				}
			}
		}
	}
}

// WriteImage writes the program in the .ls8 image format, annotating the
// first byte of each statement with its source text.
func (prog *Program) WriteImage(output stdio.Writer) (err error) {
	comments := make(map[int]string, len(prog.Opcodes))
	for _, op := range prog.Opcodes {
		comments[op.Ip] = strings.Join(op.Words, " ")
	}

	return io.WriteImage(output, prog.Binary(), comments)
}
