// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"golang.org/x/term"

	"github.com/ezrec/ibm1130/challenge"
	"github.com/ezrec/ibm1130/cpu"
	"github.com/ezrec/ibm1130/emulator"
	"github.com/ezrec/ibm1130/memory"
	"github.com/ezrec/ibm1130/translate"
)

func main() {
	var compile string
	var start int
	var max_cycles int
	var listing bool
	var verbose bool
	var interactive bool
	var check string
	var list bool
	var lang string

	flag.StringVar(&compile, "c", "", ".asm file to assemble ('-' for stdin)")
	flag.IntVar(&start, "s", memory.PROGRAM_START, "Assembly start address")
	flag.IntVar(&max_cycles, "m", emulator.DEFAULT_MAX_CYCLES, "Maximum instructions to run")
	flag.BoolVar(&listing, "l", false, "Print the assembly listing")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")
	flag.BoolVar(&interactive, "i", false, "Interactive monitor")
	flag.StringVar(&check, "challenge", "", "Check the program against a challenge")
	flag.BoolVar(&list, "challenges", false, "List the challenges")
	flag.StringVar(&lang, "lang", "", "Message language (default from locale)")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	if len(lang) != 0 {
		translate.SetLanguage(lang)
	}

	if list {
		for _, ch := range challenge.All() {
			fmt.Printf("%-8s %-12v %s\n", ch.Id, ch.Difficulty, ch.Title)
		}
		return
	}

	emu := emulator.NewEmulator()
	emu.Verbose = verbose

	// Assemble the program.
	if len(compile) != 0 {
		var inf io.Reader = os.Stdin
		if compile != "-" {
			file, err := os.Open(compile)
			if err != nil {
				log.Fatalf("%v: %v", compile, err)
			}
			defer file.Close()
			inf = file
		}

		prog, err := emu.Assemble(inf, start)
		if err != nil {
			var diags cpu.ErrDiagnostics
			if errors.As(err, &diags) {
				for _, diag := range diags {
					fmt.Fprintf(os.Stderr, "%v:%v\n", compile, diag)
				}
				os.Exit(1)
			}
			log.Fatalf("%v: %v", compile, err)
		}

		if listing {
			err = prog.Listing(os.Stdout)
			if err != nil {
				log.Fatal(err)
			}
		}
	}

	switch {
	case len(check) != 0:
		result, err := emu.Check(check)
		if err != nil {
			log.Fatalf("%v: %v", check, err)
		}
		printResult(os.Stdout, result)
		if !result.Passed {
			os.Exit(1)
		}
	case interactive:
		err := interact(emu, max_cycles)
		if err != nil {
			log.Fatal(err)
		}
	case len(compile) != 0:
		err := emu.Run(max_cycles)
		fmt.Print(emu.Cpu.String())
		if err != nil {
			log.Fatal(err)
		}
	}
}

// interact runs the monitor on stdin, in raw mode on a terminal.
func interact(emu *emulator.Emulator, maxCycles int) (err error) {
	mon := &Monitor{
		Emulator:  emu,
		MaxCycles: maxCycles,
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		mon.Output = os.Stdout
		err = mon.Serve(&scanLines{input: os.Stdin})
		return
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return
	}
	defer term.Restore(fd, state)

	screen := struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}
	tty := term.NewTerminal(screen, "1130> ")
	mon.Output = tty

	err = mon.Serve(tty)
	return
}
