package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/ezrec/ls8/cpu"
	"github.com/ezrec/ls8/emulator"
	"github.com/ezrec/ls8/internal"
	"github.com/ezrec/ls8/translate"
)

var f = translate.From

var (
	ErrMonitorCommand  = errors.New(f("unknown command, try 'help'"))
	ErrMonitorArgument = errors.New(f("invalid argument"))
)

const MONITOR_HELP = `step [N]         execute N instructions (default 1)
run              execute until halt
regs             show registers
stack            show the stack
mem ADDR [LEN]   dump memory
dis [ADDR] [N]   disassemble N instructions (default at PC)
defines          list assembler defines
reset            reload the program
quit             leave the monitor
`

// Monitor is an interactive debugger for an emulator.
type Monitor struct {
	*emulator.Emulator
	Output io.Writer
}

// Exec runs a single monitor command line.
func (mon *Monitor) Exec(line string) (quit bool, err error) {
	words := strings.Fields(line)
	if len(words) == 0 {
		return
	}

	out := mon.Output
	args := words[1:]

	switch strings.ToLower(words[0]) {
	case "help", "?":
		fmt.Fprint(out, MONITOR_HELP)
	case "q", "quit", "exit":
		quit = true
	case "s", "step":
		count := uint64(1)
		if len(args) > 0 {
			count, err = strconv.ParseUint(args[0], 0, 16)
			if err != nil {
				err = ErrMonitorArgument
				return
			}
		}
		for range count {
			if !mon.Cpu.Running {
				fmt.Fprintln(out, f("halted"))
				return
			}
			fmt.Fprintln(out, mon.Cpu.Trace())
			_, err = mon.Tick()
			if err != nil {
				return
			}
		}
	case "r", "run":
		if !mon.Cpu.Running {
			fmt.Fprintln(out, f("halted"))
			return
		}
		err = mon.Run()
		if err != nil {
			return
		}
		fmt.Fprintln(out, f("halted after %d ticks", mon.Cpu.Ticks))
	case "regs":
		fmt.Fprint(out, mon.Cpu.String())
	case "stack":
		depth := mon.Cpu.StackDepth()
		fmt.Fprintln(out, f("sp %02X depth %d", mon.Cpu.Sp, depth))
		for n := range min(depth, 8) {
			addr := mon.Cpu.Sp + uint8(n)
			fmt.Fprintf(out, "  %02X: %02X\n", addr, mon.Cpu.RamRead(addr))
		}
	case "mem":
		if len(args) < 1 {
			err = ErrMonitorArgument
			return
		}
		var addr, length uint64
		length = 16
		addr, err = strconv.ParseUint(args[0], 0, 8)
		if err == nil && len(args) > 1 {
			length, err = strconv.ParseUint(args[1], 0, 9)
		}
		if err != nil {
			err = ErrMonitorArgument
			return
		}
		mon.dump(uint8(addr), int(length))
	case "dis":
		addr := mon.Cpu.Pc
		count := uint64(8)
		if len(args) > 0 {
			var v uint64
			v, err = strconv.ParseUint(args[0], 0, 8)
			if err != nil {
				err = ErrMonitorArgument
				return
			}
			addr = uint8(v)
		}
		if len(args) > 1 {
			count, err = strconv.ParseUint(args[1], 0, 8)
			if err != nil {
				err = ErrMonitorArgument
				return
			}
		}
		mon.disassemble(addr, int(count))
	case "defines":
		for equ, value := range internal.IterSeq2Sorted(mon.Defines()) {
			fmt.Fprintf(out, "%-12s %v\n", equ, value)
		}
	case "reset":
		err = mon.Reset()
	default:
		err = ErrMonitorCommand
	}

	return
}

// dump writes a hex dump of memory, 16 bytes per line.
func (mon *Monitor) dump(addr uint8, length int) {
	for n := 0; n < length; n += 16 {
		line := fmt.Sprintf("%02X:", addr+uint8(n))
		for i := n; i < min(n+16, length); i++ {
			line += fmt.Sprintf(" %02X", mon.Cpu.RamRead(addr+uint8(i)))
		}
		fmt.Fprintln(mon.Output, line)
	}
}

// disassemble lists instructions starting at an address.
func (mon *Monitor) disassemble(addr uint8, count int) {
	for range count {
		code := cpu.Code(mon.Cpu.RamRead(addr))
		text := code.Disassemble(mon.Cpu.RamRead(addr+1), mon.Cpu.RamRead(addr+2))
		marker := " "
		if addr == mon.Cpu.Pc {
			marker = ">"
		}
		fmt.Fprintf(mon.Output, "%v%02X: %v\n", marker, addr, text)
		addr += uint8(code.Size())
	}
}

func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}

	return filepath.Join(dir, "ls8_history")
}

func newMonitorCommand(opts *runOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor FILE",
		Short: "Step through a program interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			rl, err := readline.NewEx(&readline.Config{
				Prompt:      "ls8> ",
				HistoryFile: historyFile(),
				AutoComplete: readline.NewPrefixCompleter(
					readline.PcItem("step"),
					readline.PcItem("run"),
					readline.PcItem("regs"),
					readline.PcItem("stack"),
					readline.PcItem("mem"),
					readline.PcItem("dis"),
					readline.PcItem("defines"),
					readline.PcItem("reset"),
					readline.PcItem("help"),
					readline.PcItem("quit"),
				),
			})
			if err != nil {
				return
			}
			defer rl.Close()

			emu, err := opts.emulator(args[0], rl.Stdout())
			if err != nil {
				return
			}

			mon := &Monitor{Emulator: emu, Output: rl.Stdout()}
			fmt.Fprintln(mon.Output, f("%v: %d bytes, type 'help' for commands", emu.Rom.Name, len(emu.Rom.Data)))

			for {
				line, rerr := rl.Readline()
				if errors.Is(rerr, readline.ErrInterrupt) {
					continue
				}
				if rerr != nil {
					// EOF
					return
				}

				quit, xerr := mon.Exec(line)
				if xerr != nil {
					fmt.Fprintln(mon.Output, f("error: %v", xerr))
				}
				if quit {
					return
				}
			}
		},
	}
}
