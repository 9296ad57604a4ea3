// Package io provides the program image and output channels for the LS-8
// emulator: the text image format read by the loader (Rom), and the
// sequential decimal output written by PRN (Tape).
package io

// Channel defines the interface for output channels attached to the CPU.
type Channel interface {
	// Rewind resets the channel to its initial state.
	Rewind()
	// Send writes a single byte value to the channel.
	Send(value uint8) error
}
