package cpu

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/ls8/io"
)

func newTestCpu(image ...byte) (cpu *Cpu, output *bytes.Buffer) {
	output = &bytes.Buffer{}

	cpu = NewCpu()
	cpu.Output = &io.Tape{Output: output}
	err := cpu.Load(image)
	if err != nil {
		panic(err)
	}

	return
}

func TestCpu(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()

	assert.True(cpu.Running)
	assert.False(cpu.Verbose)
	assert.NotNil(cpu.Output)
	assert.Equal(uint8(0), cpu.Pc)
	assert.Equal(uint8(0), cpu.Fl)
	assert.Equal(uint8(SP_INIT), cpu.Sp)
	assert.Equal(uint8(SP_INIT), cpu.Register[REG_SP])
	assert.Equal([7]uint8{}, [7]uint8(cpu.Register[:7]))
	assert.Equal(0, cpu.StackDepth())
}

func TestCpuLdiHlt(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		reg   uint8
		value uint8
	}){
		{0, 0},
		{0, 8},
		{3, 0x7f},
		{6, 0xff},
		{7, 0x10},
	}

	for _, entry := range table {
		cpu, _ := newTestCpu(byte(OP_LDI), entry.reg, entry.value, byte(OP_HLT))

		err := cpu.Run()
		assert.NoError(err)
		assert.False(cpu.Running)
		assert.Equal(entry.value, cpu.Register[entry.reg])
		assert.Equal(uint8(3), cpu.Pc, "pc stays on HLT")
		assert.Equal(2, cpu.Ticks)
	}
}

func TestCpuPrint8(t *testing.T) {
	assert := assert.New(t)

	cpu, output := newTestCpu(
		0b10000010, 0b00000000, 0b00001000, // LDI R0,8
		0b01000111, 0b00000000, // PRN R0
		0b00000001, // HLT
	)

	assert.NoError(cpu.Run())
	assert.Equal("8\n", output.String())
}

func TestCpuMult(t *testing.T) {
	assert := assert.New(t)

	cpu, output := newTestCpu(
		byte(OP_LDI), 0, 2,
		byte(OP_LDI), 1, 3,
		byte(OP_MUL), 0, 1,
		byte(OP_PRN), 0,
		byte(OP_HLT),
	)

	assert.NoError(cpu.Run())
	assert.Equal("6\n", output.String())
	assert.Equal(uint8(6), cpu.Register[0])
	assert.Equal(uint8(3), cpu.Register[1])
}

func TestCpuCountdown(t *testing.T) {
	assert := assert.New(t)

	cpu, output := newTestCpu(
		byte(OP_LDI), 1, 0xff, // 00: LDI R1,-1
		byte(OP_LDI), 2, 0, // 03: LDI R2,0
		byte(OP_LDI), 3, 21, // 06: LDI R3,21
		byte(OP_PRN), 0, // 09: PRN R0
		byte(OP_ADD), 0, 1, // 11: ADD R0,R1
		byte(OP_CMP), 0, 2, // 14: CMP R0,R2
		byte(OP_JEQ), 3, // 17: JEQ R3
		byte(OP_JMP), 2, // 19: JMP R2
		byte(OP_PRN), 0, // 21: PRN R0
		byte(OP_HLT), // 23: HLT
	)
	cpu.Register[0] = 3

	assert.NoError(cpu.Run())
	assert.Equal("3\n2\n1\n0\n", output.String())
	assert.Equal(25, cpu.Ticks)
	assert.Equal(FL_EQUAL, cpu.Fl)
}

func TestCpuAluWrap(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name   string
		op     Code
		a, b   uint8
		result uint8
	}){
		{"add", OP_ADD, 2, 3, 5},
		{"add_wrap", OP_ADD, 200, 100, 44},
		{"add_neg", OP_ADD, 10, 0xff, 9},
		{"mul", OP_MUL, 2, 3, 6},
		{"mul_wrap", OP_MUL, 16, 16, 0},
		{"mul_wrap_odd", OP_MUL, 17, 17, 33},
	}

	for _, entry := range table {
		cpu, _ := newTestCpu(byte(entry.op), 0, 1, byte(OP_HLT))
		cpu.Register[0] = entry.a
		cpu.Register[1] = entry.b

		assert.NoError(cpu.Run(), entry.name)
		assert.Equal(entry.result, cpu.Register[0], entry.name)
		assert.Equal(entry.b, cpu.Register[1], entry.name)
	}
}

func TestCpuCmp(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name string
		a, b uint8
		fl   uint8
	}){
		{"eq", 5, 5, FL_EQUAL},
		{"eq_zero", 0, 0, FL_EQUAL},
		{"gt", 6, 5, FL_GREATER},
		{"gt_unsigned", 0xff, 1, FL_GREATER},
		{"lt", 4, 5, FL_LESS},
		{"lt_unsigned", 1, 0x80, FL_LESS},
	}

	for _, entry := range table {
		cpu, _ := newTestCpu(byte(OP_CMP), 0, 1, byte(OP_HLT))
		cpu.Register[0] = entry.a
		cpu.Register[1] = entry.b
		cpu.Fl = 0xff

		assert.NoError(cpu.Run(), entry.name)
		assert.Equal(entry.fl, cpu.Fl, entry.name)
		assert.Equal(entry.a, cpu.Register[0], entry.name)
	}
}

func TestCpuJeqJne(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name  string
		op    Code
		a, b  uint8
		taken bool
	}){
		{"jeq_eq", OP_JEQ, 1, 1, true},
		{"jeq_gt", OP_JEQ, 2, 1, false},
		{"jeq_lt", OP_JEQ, 1, 2, false},
		{"jne_eq", OP_JNE, 1, 1, false},
		{"jne_gt", OP_JNE, 2, 1, true},
		{"jne_lt", OP_JNE, 1, 2, true},
	}

	for _, entry := range table {
		cpu, output := newTestCpu(
			byte(OP_LDI), 2, 10, // 00: LDI R2,10
			byte(OP_CMP), 0, 1, // 03: CMP R0,R1
			byte(entry.op), 2, // 06: Jxx R2
			byte(OP_PRN), 0, // 08: PRN R0
			byte(OP_HLT), // 10: HLT
		)
		cpu.Register[0] = entry.a
		cpu.Register[1] = entry.b

		assert.NoError(cpu.Run(), entry.name)
		if entry.taken {
			assert.Equal("", output.String(), entry.name)
			assert.Equal(uint8(10), cpu.Pc, entry.name)
		} else {
			assert.Equal(string(rune('0'+entry.a))+"\n", output.String(), entry.name)
		}
	}
}

func TestCpuJeqStrictFlag(t *testing.T) {
	assert := assert.New(t)

	// Only an exact FL_EQUAL takes JEQ, extra bits do not.
	cpu, _ := newTestCpu(byte(OP_JEQ), 0, byte(OP_HLT))
	cpu.Register[0] = 0x40
	cpu.Fl = FL_EQUAL | FL_LESS

	assert.NoError(cpu.Tick())
	assert.Equal(uint8(2), cpu.Pc)

	cpu.Reset()
	assert.NoError(cpu.Load([]byte{byte(OP_JNE), 0}))
	cpu.Register[0] = 0x40
	cpu.Fl = FL_EQUAL | FL_LESS

	assert.NoError(cpu.Tick())
	assert.Equal(uint8(0x40), cpu.Pc)
}

func TestCpuJmp(t *testing.T) {
	assert := assert.New(t)

	cpu, _ := newTestCpu(byte(OP_JMP), 3)
	cpu.Register[3] = 0x80

	assert.NoError(cpu.Tick())
	assert.Equal(uint8(0x80), cpu.Pc)
}

func TestCpuPushPop(t *testing.T) {
	assert := assert.New(t)

	cpu, _ := newTestCpu(
		byte(OP_PUSH), 0,
		byte(OP_LDI), 0, 0x99,
		byte(OP_POP), 0,
		byte(OP_HLT),
	)
	cpu.Register[0] = 0x42

	assert.NoError(cpu.Tick())
	assert.Equal(uint8(SP_INIT-1), cpu.Sp)
	assert.Equal(uint8(0x42), cpu.Ram[SP_INIT-1])
	assert.Equal(uint8(0x42), cpu.Peek())
	assert.Equal(1, cpu.StackDepth())

	assert.NoError(cpu.Tick())
	assert.Equal(uint8(0x99), cpu.Register[0])

	assert.NoError(cpu.Tick())
	assert.Equal(uint8(0x42), cpu.Register[0])
	assert.Equal(uint8(SP_INIT), cpu.Sp)
	assert.Equal(0, cpu.StackDepth())
}

func TestCpuPushPopOrder(t *testing.T) {
	assert := assert.New(t)

	cpu, _ := newTestCpu(
		byte(OP_PUSH), 0,
		byte(OP_PUSH), 1,
		byte(OP_POP), 0,
		byte(OP_POP), 1,
		byte(OP_HLT),
	)
	cpu.Register[0] = 1
	cpu.Register[1] = 2

	assert.NoError(cpu.Run())
	assert.Equal(uint8(2), cpu.Register[0])
	assert.Equal(uint8(1), cpu.Register[1])
	assert.Equal(uint8(SP_INIT), cpu.Sp)
}

func TestCpuSpIndependentOfR7(t *testing.T) {
	assert := assert.New(t)

	cpu, _ := newTestCpu(
		byte(OP_LDI), REG_SP, 0x10,
		byte(OP_PUSH), 0,
		byte(OP_HLT),
	)

	assert.NoError(cpu.Run())
	assert.Equal(uint8(0x10), cpu.Register[REG_SP])
	assert.Equal(uint8(SP_INIT-1), cpu.Sp)
}

func TestCpuStackWrap(t *testing.T) {
	assert := assert.New(t)

	cpu, _ := newTestCpu(byte(OP_PUSH), 0, byte(OP_POP), 1)
	cpu.Sp = 0
	cpu.Register[0] = 0x5a

	assert.NoError(cpu.Tick())
	assert.Equal(uint8(0xff), cpu.Sp)
	assert.Equal(uint8(0x5a), cpu.Ram[0xff])

	assert.NoError(cpu.Tick())
	assert.Equal(uint8(0), cpu.Sp)
	assert.Equal(uint8(0x5a), cpu.Register[1])
}

func TestCpuCallRet(t *testing.T) {
	assert := assert.New(t)

	cpu, output := newTestCpu(
		byte(OP_LDI), 1, 10, // 00: LDI R1,10
		byte(OP_CALL), 1, // 03: CALL R1
		byte(OP_PRN), 0, // 05: PRN R0
		byte(OP_HLT), // 07: HLT
		0, 0, // 08: padding
		byte(OP_LDI), 0, 99, // 10: LDI R0,99
		byte(OP_LDI), 2, 20, // 13: LDI R2,20
		byte(OP_CALL), 2, // 16: CALL R2
		byte(OP_RET), // 18: RET
		0,                  // 19: padding
		byte(OP_ADD), 0, 0, // 20: ADD R0,R0
		byte(OP_RET), // 23: RET
	)

	assert.NoError(cpu.Tick())
	assert.NoError(cpu.Tick())
	assert.Equal(uint8(10), cpu.Pc)
	assert.Equal(uint8(SP_INIT-1), cpu.Sp)
	assert.Equal(uint8(5), cpu.Peek())

	assert.NoError(cpu.Run())
	assert.Equal("198\n", output.String())
	assert.Equal(uint8(SP_INIT), cpu.Sp)
}

// callChain builds a program that nests CALLs depth deep, then returns.
func callChain(depth int) (image []byte) {
	// main: LDI R1,<level 1>; CALL R1; HLT
	image = append(image, byte(OP_LDI), 1, 6, byte(OP_CALL), 1, byte(OP_HLT))

	for level := 1; level <= depth; level++ {
		if level == depth {
			image = append(image, byte(OP_RET))
			break
		}
		next := byte(6 + 6*level)
		image = append(image, byte(OP_LDI), 1, next, byte(OP_CALL), 1, byte(OP_RET))
	}

	return
}

func TestCpuCallDepth(t *testing.T) {
	assert := assert.New(t)

	for depth := 1; depth <= 20; depth++ {
		cpu, _ := newTestCpu(callChain(depth)...)

		var expected []uint8
		var calls, rets int
		for cpu.Running {
			ir := Code(cpu.Ram[cpu.Pc])
			if ir == OP_CALL {
				expected = append(expected, cpu.Pc+2)
				calls++
			}
			err := cpu.Tick()
			if errors.Is(err, ErrHalted) {
				break
			}
			assert.NoError(err)
			if ir == OP_RET {
				rets++
				top := expected[len(expected)-1]
				expected = expected[:len(expected)-1]
				assert.Equal(top, cpu.Pc, "depth %d", depth)
			}
		}

		assert.Equal(depth, calls)
		assert.Equal(depth, rets)
		assert.Empty(expected)
		assert.Equal(uint8(SP_INIT), cpu.Sp)
	}
}

func TestCpuUnknownOpcode(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name string
		code uint8
		pc   uint8
	}){
		{"zero", 0b0000_0000, 1},
		{"one_operand", 0b0100_0000, 2},
		{"two_operands", 0b1000_0000, 3},
		{"three_operands", 0b1100_0000, 4},
		{"sets_pc", 0b0001_0000, 0},
		{"sets_pc_operands", 0b1011_1111, 0},
	}

	for _, entry := range table {
		cpu, output := newTestCpu(entry.code, 1, 2, 3, 4)
		regs := cpu.Register

		assert.False(Code(entry.code).Defined(), entry.name)
		assert.NoError(cpu.Tick(), entry.name)
		assert.Equal(entry.pc, cpu.Pc, entry.name)
		assert.Equal(regs, cpu.Register, entry.name)
		assert.True(cpu.Running, entry.name)
		assert.Equal(0, output.Len(), entry.name)
	}
}

func TestCpuZeroMemory(t *testing.T) {
	assert := assert.New(t)

	cpu, _ := newTestCpu()

	for range RAM_SIZE {
		assert.NoError(cpu.Tick())
	}
	assert.Equal(uint8(0), cpu.Pc)
	assert.Equal(RAM_SIZE, cpu.Ticks)
}

func TestCpuOperandWrap(t *testing.T) {
	assert := assert.New(t)

	cpu, output := newTestCpu()
	cpu.Ram[0xff] = byte(OP_PRN)
	cpu.Ram[0x00] = 2
	cpu.Register[2] = 42
	cpu.Pc = 0xff

	assert.NoError(cpu.Tick())
	assert.Equal("42\n", output.String())
	assert.Equal(uint8(1), cpu.Pc)
}

func TestCpuRegisterInvalid(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name  string
		image []byte
	}){
		{"ldi", []byte{byte(OP_LDI), 8, 1}},
		{"prn", []byte{byte(OP_PRN), 0xff}},
		{"add_a", []byte{byte(OP_ADD), 8, 0}},
		{"mul_b", []byte{byte(OP_MUL), 0, 9}},
		{"cmp", []byte{byte(OP_CMP), 10, 10}},
		{"push", []byte{byte(OP_PUSH), 8}},
		{"pop", []byte{byte(OP_POP), 8}},
		{"call", []byte{byte(OP_CALL), 8}},
		{"jmp", []byte{byte(OP_JMP), 8}},
	}

	for _, entry := range table {
		cpu, _ := newTestCpu(entry.image...)

		err := cpu.Run()
		assert.ErrorIs(err, ErrRegisterInvalid, entry.name)
		assert.ErrorIs(err, ErrOpcode{}, entry.name)
		assert.Equal(uint8(0), cpu.Pc, entry.name)
		assert.Equal(uint8(SP_INIT), cpu.Sp, entry.name)
	}
}

func TestCpuAluUnsupported(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	cpu.Register[0] = 3

	err := cpu.alu(OP_HLT, 0, 1)
	assert.ErrorIs(err, ErrAluUnsupported)
	assert.Equal(uint8(3), cpu.Register[0])
}

func TestCpuHalted(t *testing.T) {
	assert := assert.New(t)

	cpu, _ := newTestCpu(byte(OP_HLT), byte(OP_LDI), 0, 1)

	err := cpu.Tick()
	assert.ErrorIs(err, ErrHalted)
	assert.False(cpu.Running)

	err = cpu.Tick()
	assert.ErrorIs(err, ErrHalted)
	assert.Equal(uint8(0), cpu.Register[0])
	assert.Equal(1, cpu.Ticks)

	assert.NoError(cpu.Run())
}

func TestCpuOutputMissing(t *testing.T) {
	assert := assert.New(t)

	cpu, _ := newTestCpu(byte(OP_PRN), 0)
	cpu.Output = nil

	assert.ErrorIs(cpu.Tick(), ErrOutputMissing)
}

func TestCpuLoad(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()

	assert.NoError(cpu.Load(make([]byte, RAM_SIZE)))
	assert.ErrorIs(cpu.Load(make([]byte, RAM_SIZE+1)), io.ErrImageTooLarge)

	assert.NoError(cpu.Load([]byte{1, 2, 3}))
	assert.Equal(uint8(1), cpu.RamRead(0))
	assert.Equal(uint8(3), cpu.RamRead(2))
	assert.Equal(uint8(0), cpu.RamRead(3))

	cpu.RamWrite(0x80, 0x55)
	assert.Equal(uint8(0x55), cpu.Ram[0x80])
}

func TestCpuReset(t *testing.T) {
	assert := assert.New(t)

	cpu, _ := newTestCpu(byte(OP_PUSH), 0, byte(OP_CMP), 0, 1, byte(OP_HLT))
	cpu.Register[0] = 5
	assert.NoError(cpu.Run())

	cpu.Reset()

	assert.True(cpu.Running)
	assert.Equal(uint8(0), cpu.Pc)
	assert.Equal(uint8(0), cpu.Fl)
	assert.Equal(uint8(SP_INIT), cpu.Sp)
	assert.Equal(uint8(0), cpu.Register[0])
	assert.Equal(uint8(SP_INIT), cpu.Register[REG_SP])
	assert.Equal([RAM_SIZE]uint8{}, cpu.Ram)
	assert.Equal(0, cpu.Ticks)
}

func TestCpuTrace(t *testing.T) {
	assert := assert.New(t)

	cpu, _ := newTestCpu(byte(OP_LDI), 0, 8)

	assert.Equal("TRACE: 00 | 82 00 08 | 00 00 00 00 00 00 00 F4", cpu.Trace())

	assert.NoError(cpu.Tick())
	assert.Equal("TRACE: 03 | 00 00 00 | 08 00 00 00 00 00 00 F4", cpu.Trace())
}

func TestCpuString(t *testing.T) {
	assert := assert.New(t)

	cpu, _ := newTestCpu(byte(OP_LDI), 0, 8)

	text := cpu.String()
	assert.Contains(text, "   pc: 00\n")
	assert.Contains(text, "   ir: 82 LDI R0,8\n")
	assert.Contains(text, "   sp: F4\n")
	assert.Contains(text, "   r7: F4 (244)\n")
}

func TestCpuDefines(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()

	defines := map[string]string{}
	for key, value := range cpu.Defines() {
		defines[key] = value
	}

	assert.Equal("0xf4", defines["SP_INIT"])
	assert.Equal("256", defines["RAM_SIZE"])
	assert.Equal("0x1", defines["FL_EQUAL"])
}
