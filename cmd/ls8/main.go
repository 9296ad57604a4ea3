// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ezrec/ls8/cpu"
	"github.com/ezrec/ls8/emulator"
)

// Exit statuses. A halted program always exits non-zero.
const (
	EXIT_USAGE   = 0
	EXIT_HALT    = 1
	EXIT_FAILURE = 1
)

const USAGE_ERROR = "Error: Missing filename to execute instructions"

// runOptions are the flags shared by every command that runs a program.
type runOptions struct {
	verbose  bool
	maxTicks int
	source   bool
}

func (opts *runOptions) bind(flags *pflag.FlagSet) {
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Trace every instruction")
	flags.IntVar(&opts.maxTicks, "max-ticks", 0, "Fail after this many instructions (0 = no limit)")
	flags.BoolVar(&opts.source, "asm", false, "FILE is assembly source, not an .ls8 image")
}

// emulator builds an emulator for a program, ready to run.
func (opts *runOptions) emulator(path string, stdout io.Writer) (emu *emulator.Emulator, err error) {
	emu = emulator.NewEmulator()
	emu.Verbose = opts.verbose
	emu.MaxTicks = opts.maxTicks
	emu.Tape.Output = stdout

	if opts.source {
		emu.Program, err = assemble(path, emu, opts.verbose)
		if err != nil {
			err = fmt.Errorf("%v: %w", path, err)
			return
		}
		emu.Rom.Name = path
	} else {
		var abs string
		abs, err = filepath.Abs(path)
		if err != nil {
			return
		}
		err = emu.Rom.Open(os.DirFS(filepath.Dir(abs)), filepath.Base(abs))
		if err != nil {
			err = fmt.Errorf("%v: %w", path, err)
			return
		}
	}

	err = emu.Reset()
	return
}

// assemble parses an assembly source file, with the emulator's defines
// available as equates.
func assemble(path string, emu *emulator.Emulator, verbose bool) (prog *cpu.Program, err error) {
	inf, err := os.Open(path)
	if err != nil {
		return
	}
	defer inf.Close()

	asm := &cpu.Assembler{Verbose: verbose}
	if emu != nil {
		for equ, value := range emu.Defines() {
			asm.Predefine(equ, value)
		}
	}

	prog, err = asm.Parse(inf)
	return
}

func newRootCommand(stdout io.Writer, status *int) *cobra.Command {
	opts := &runOptions{}

	root := &cobra.Command{
		Use:           "ls8 FILE",
		Short:         "LS-8 emulator",
		Long:          "Run an LS-8 program image until it halts. A halted program exits with status 1.",
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if len(args) != 1 {
				fmt.Fprintln(stdout, USAGE_ERROR)
				*status = EXIT_USAGE
				return
			}

			emu, err := opts.emulator(args[0], stdout)
			if err != nil {
				return
			}

			err = emu.Run()
			if err != nil {
				return
			}

			*status = EXIT_HALT
			return
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	opts.bind(root.PersistentFlags())

	root.AddCommand(
		newAsmCommand(stdout),
		newMonitorCommand(opts),
	)

	return root
}

func newAsmCommand(stdout io.Writer) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "asm SRC",
		Short: "Assemble a source file into an .ls8 image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			verbose, _ := cmd.Flags().GetBool("verbose")

			prog, err := assemble(args[0], emulator.NewEmulator(), verbose)
			if err != nil {
				err = fmt.Errorf("%v: %w", args[0], err)
				return
			}

			if output == "" || output == "-" {
				return prog.WriteImage(stdout)
			}

			ouf, err := os.Create(output)
			if err != nil {
				return
			}
			defer ouf.Close()

			return prog.WriteImage(ouf)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "Image output")

	return cmd
}

// execute runs the command line, and returns the process exit status.
func execute(args []string, stdout io.Writer) (status int) {
	root := newRootCommand(stdout, &status)
	root.SetArgs(args)
	root.SetOut(stdout)

	err := root.Execute()
	if err != nil {
		log.Printf("%v: %v", root.Name(), err)
		status = EXIT_FAILURE
	}

	return
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout))
}
