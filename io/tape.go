package io

import (
	"fmt"
	"io"
)

// Tape provides sequential output, one decimal value per line.
type Tape struct {
	Output io.Writer

	Lines int // Values written since the last rewind.
}

var _ Channel = (*Tape)(nil)

// Rewind is not possible on a tape, only the line counter is reset.
func (tc *Tape) Rewind() {
	tc.Lines = 0
}

// Send writes the decimal value and a newline to the output stream.
func (tc *Tape) Send(value uint8) (err error) {
	if tc.Output == nil {
		err = ErrChannelInvalid
		return
	}

	_, err = fmt.Fprintf(tc.Output, "%d\n", value)
	if err != nil {
		return
	}

	tc.Lines++

	return
}
