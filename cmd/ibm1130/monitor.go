package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ezrec/ibm1130/challenge"
	"github.com/ezrec/ibm1130/cpu"
	"github.com/ezrec/ibm1130/emulator"
	"github.com/ezrec/ibm1130/translate"
)

var f = translate.From

var (
	ErrCommandUnknown = errors.New(f("unknown command"))
	ErrCommandUsage   = errors.New(f("command usage"))
)

// LineReader is a source of monitor command lines.
type LineReader interface {
	ReadLine() (line string, err error)
}

// scanLines reads lines from a plain stream.
type scanLines struct {
	input   io.Reader
	scanner *bufio.Scanner
}

func (sl *scanLines) ReadLine() (line string, err error) {
	if sl.scanner == nil {
		sl.scanner = bufio.NewScanner(sl.input)
	}

	if !sl.scanner.Scan() {
		err = sl.scanner.Err()
		if err == nil {
			err = io.EOF
		}
		return
	}

	line = sl.scanner.Text()
	return
}

// Monitor is the interactive console of the emulator.
type Monitor struct {
	*emulator.Emulator
	MaxCycles int       // Limit of a 'run' without a count.
	Output    io.Writer // Command output.
}

var monitorHelp = []string{
	"step [n]          execute n instructions",
	"run [n]           run until WAIT, or n instructions",
	"regs              show the registers",
	"mem addr [count]  show core words",
	"set addr value    write a core word",
	"reset             reset the registers",
	"hard              clear core and reset",
	"list              show the assembly listing",
	"check id          check the program against a challenge",
	"quit              leave the monitor",
}

// Serve executes command lines until 'quit' or the end of input.
func (mon *Monitor) Serve(lines LineReader) (err error) {
	for {
		var line string
		line, err = lines.ReadLine()
		if errors.Is(err, io.EOF) {
			err = nil
			return
		}
		if err != nil {
			return
		}

		var quit bool
		quit, err = mon.Exec(line)
		if err != nil {
			fmt.Fprintln(mon.Output, err)
		}
		if quit {
			err = nil
			return
		}
	}
}

// Exec executes a single command line.
func (mon *Monitor) Exec(line string) (quit bool, err error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return
	}

	nums := make([]int, 0, len(args)-1)
	if args[0] != "check" {
		for _, arg := range args[1:] {
			var value int
			value, err = cpu.ParseNumber(arg)
			if err != nil {
				return
			}
			nums = append(nums, value)
		}
	}

	w := mon.Output

	switch args[0] {
	case "help", "?":
		for _, text := range monitorHelp {
			fmt.Fprintln(w, text)
		}
	case "quit", "q":
		quit = true
	case "step", "s":
		count := 1
		if len(nums) > 0 {
			count = nums[0]
		}
		for range count {
			err = mon.Step()
			if err != nil {
				break
			}
			mon.where()
		}
	case "run", "r":
		count := mon.MaxCycles
		if len(nums) > 0 {
			count = nums[0]
		}
		err = mon.Run(count)
		mon.where()
	case "regs":
		fmt.Fprint(w, mon.Cpu.String())
	case "mem", "m":
		if len(nums) < 1 || len(nums) > 2 {
			err = ErrCommandUsage
			return
		}
		count := 8
		if len(nums) == 2 {
			count = nums[1]
		}
		var data []uint16
		data, err = mon.Cpu.Memory.Slice(nums[0], count)
		if err != nil {
			return
		}
		for n, value := range data {
			fmt.Fprintf(w, "%03X: %04X\n", nums[0]+n, value)
		}
	case "set":
		if len(nums) != 2 {
			err = ErrCommandUsage
			return
		}
		err = mon.WriteMemory(nums[0], nums[1])
	case "reset":
		mon.Reset()
		mon.where()
	case "hard":
		mon.HardReset()
		mon.where()
	case "list":
		err = mon.Program.Listing(w)
	case "check":
		if len(args) != 2 {
			err = ErrCommandUsage
			return
		}
		var result *challenge.Result
		result, err = mon.Check(args[1])
		if err != nil {
			return
		}
		printResult(w, result)
	default:
		err = ErrCommandUnknown
	}

	return
}

// where prints the next instruction and its source line.
func (mon *Monitor) where() {
	w := mon.Output

	text := "?"
	inst, err := mon.Instruction()
	if err == nil {
		text = inst.String()
	}

	fmt.Fprintf(w, "%03X  %-20s", mon.Iar, text)
	dbg := mon.Program.Debug(int(mon.Iar))
	if dbg.Opcode != nil && dbg.LineNo != 0 {
		fmt.Fprintf(w, "  %4d  %s", dbg.LineNo, dbg.Source)
	}
	if mon.Halted {
		fmt.Fprint(w, "  (halted)")
	}
	fmt.Fprintln(w)
}

// printResult writes a challenge result, one line per test case.
func printResult(w io.Writer, result *challenge.Result) {
	for _, tr := range result.Tests {
		status := "PASS"
		if !tr.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%s  %s (%d instructions, %d cycles)\n", status, tr.Name, tr.Instructions, tr.Cycles)
		if tr.Fault != nil {
			fmt.Fprintf(w, "      %v\n", tr.Fault)
		}
		for _, line := range tr.Diff {
			fmt.Fprintf(w, "      %s\n", line)
		}
	}

	status := "PASS"
	if !result.Passed {
		status = "FAIL"
	}
	fmt.Fprintf(w, "%s  %s\n", status, result.Id)
}
