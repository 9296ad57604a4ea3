package cpu

// LS-8 memory map and register conventions.
const (
	RAM_SIZE       = 256  // Bytes of addressable memory.
	REGISTER_COUNT = 8    // General purpose registers R0-R7.
	REG_SP         = 7    // Register seeded with the initial stack pointer.
	SP_INIT        = 0xf4 // Top of the stack; the stack grows toward 0x00.
)

// Flag register bit patterns. CMP writes exactly one of these.
const (
	FL_EQUAL   = uint8(0b0000_0001)
	FL_GREATER = uint8(0b0000_0010)
	FL_LESS    = uint8(0b0000_0100)
)
