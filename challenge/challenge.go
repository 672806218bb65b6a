// Package challenge checks assembled programs against puzzles: each test
// case seeds core, runs the program on a fresh machine, and compares the
// final state with the expected registers, core cells and check expression.
package challenge

import (
	"errors"
	"fmt"
	"log"
	"maps"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ezrec/ibm1130/cpu"
	"github.com/ezrec/ibm1130/internal"
	"github.com/ezrec/ibm1130/memory"
)

//go:generate go tool stringer -type=Difficulty -linecomment

// Difficulty of a challenge.
type Difficulty int

const (
	DIFFICULTY_BEGINNER     = Difficulty(iota) // beginner
	DIFFICULTY_INTERMEDIATE                    // intermediate
	DIFFICULTY_ADVANCED                        // advanced
)

// DEFAULT_MAX_CYCLES bounds a run when a challenge sets no limit.
const DEFAULT_MAX_CYCLES = 10000

// Cell is a core address and its content.
type Cell struct {
	Addr  int
	Value int // Truncated to 16 bits.
}

// TestCase is one run of a challenge.
type TestCase struct {
	Name      string
	Memory    []Cell         // Core overlay applied before loading the program.
	Registers map[string]int // Expected acc, ext, xr1, xr2 or xr3.
	Expect    []Cell         // Expected core cells.
	Check     string         // Starlark expression that must be true.
}

// TestResult is the outcome of a test case.
type TestResult struct {
	Name         string
	Passed       bool
	Diff         []string // One line per mismatch.
	Fault        error    // Run error, if the program did not halt.
	Instructions int
	Cycles       int
}

// Result is the outcome of all test cases of a challenge.
type Result struct {
	Id     string
	Passed bool
	Tests  []TestResult
}

// Challenge is a puzzle.
type Challenge struct {
	Verbose bool // Set to log each test case.

	Id              string
	Title           string
	Description     string
	Difficulty      Difficulty
	Tests           []TestCase
	MaxCycles       int // Run limit; zero for DEFAULT_MAX_CYCLES.
	MaxInstructions int // Zero for no limit.
	Hints           []string
	Objectives      []string
}

// Check runs every test case against an assembled program.
func (ch *Challenge) Check(prog *cpu.Program) (result *Result) {
	result = &Result{
		Id:     ch.Id,
		Passed: true,
	}

	for _, tc := range ch.Tests {
		tr := ch.run(&tc, prog)
		if ch.Verbose {
			log.Printf("challenge: %v: %v: passed %v", ch.Id, tc.Name, tr.Passed)
		}
		result.Passed = result.Passed && tr.Passed
		result.Tests = append(result.Tests, tr)
	}

	return
}

// run a single test case on a fresh machine.
func (ch *Challenge) run(tc *TestCase, prog *cpu.Program) (tr TestResult) {
	tr.Name = tc.Name

	mc := cpu.NewCpu()
	mc.HardReset()

	for _, cell := range tc.Memory {
		err := mc.Memory.Write(cell.Addr, cell.Value)
		if err != nil {
			tr.Fault = err
			return
		}
	}

	err := mc.Load(prog)
	if err != nil {
		tr.Fault = err
		return
	}

	max_cycles := ch.MaxCycles
	if max_cycles <= 0 {
		max_cycles = DEFAULT_MAX_CYCLES
	}

	tr.Fault = mc.Run(max_cycles)
	tr.Instructions = mc.Instructions
	tr.Cycles = mc.Cycles
	tr.Diff = ch.diff(tc, mc)
	tr.Passed = tr.Fault == nil && len(tr.Diff) == 0

	return
}

// diff compares the final machine state with the test case.
func (ch *Challenge) diff(tc *TestCase, mc *cpu.Cpu) (diff []string) {
	registers := map[string]uint16{
		"acc": mc.Acc,
		"ext": mc.Ext,
		"xr1": mc.Index(cpu.TAG_XR1),
		"xr2": mc.Index(cpu.TAG_XR2),
		"xr3": mc.Index(cpu.TAG_XR3),
	}

	for name, value := range internal.Sorted2(maps.All(tc.Registers)) {
		got, ok := registers[name]
		if !ok {
			diff = append(diff, f("%v: no such register", name))
			continue
		}
		if got != uint16(value) {
			diff = append(diff, f("%v: expected 0x%04x, got 0x%04x", name, uint16(value), got))
		}
	}

	for _, cell := range tc.Expect {
		got, err := mc.Memory.Read(cell.Addr)
		if err != nil {
			diff = append(diff, err.Error())
			continue
		}
		if got != uint16(cell.Value) {
			diff = append(diff, f("mem[0x%03x]: expected 0x%04x, got 0x%04x", cell.Addr, uint16(cell.Value), got))
		}
	}

	if ch.MaxInstructions > 0 && mc.Instructions > ch.MaxInstructions {
		diff = append(diff, f("instructions: %v over the limit of %v", mc.Instructions, ch.MaxInstructions))
	}

	if len(tc.Check) != 0 {
		ok, err := Eval(tc.Check, mc)
		switch {
		case err != nil:
			diff = append(diff, err.Error())
		case !ok:
			diff = append(diff, f("check failed: %v", tc.Check))
		}
	}

	return
}

// Eval evaluates a Starlark check expression over the state of a machine.
//
// The expression sees acc, ext, iar, xr1, xr2 and xr3 as integers, the
// carry, overflow, sign, zero and halted flags as booleans, the
// instructions and cycles counters, and core as mem[addr].
func Eval(expr string, mc *cpu.Cpu) (ok bool, err error) {
	pred := starlark.StringDict{
		"acc":          starlark.MakeInt(int(mc.Acc)),
		"ext":          starlark.MakeInt(int(mc.Ext)),
		"iar":          starlark.MakeInt(int(mc.Iar)),
		"xr1":          starlark.MakeInt(int(mc.Index(cpu.TAG_XR1))),
		"xr2":          starlark.MakeInt(int(mc.Index(cpu.TAG_XR2))),
		"xr3":          starlark.MakeInt(int(mc.Index(cpu.TAG_XR3))),
		"carry":        starlark.Bool(mc.Carry),
		"overflow":     starlark.Bool(mc.Overflow),
		"sign":         starlark.Bool(mc.Sign),
		"zero":         starlark.Bool(mc.Zero),
		"halted":       starlark.Bool(mc.Halted),
		"instructions": starlark.MakeInt(mc.Instructions),
		"cycles":       starlark.MakeInt(mc.Cycles),
		"mem":          coreValue{mem: mc.Memory},
	}

	opts := syntax.FileOptions{}
	thread := starlark.Thread{Name: "check"}
	dict, err := starlark.ExecFileOptions(&opts, &thread, "check", "rc="+expr+"\n", pred)
	if err != nil {
		err = &ErrCheck{Expr: expr, Err: err}
		return
	}

	rc, found := dict["rc"]
	if !found {
		err = &ErrCheck{Expr: expr, Err: errors.New(f("no result"))}
		return
	}

	ok = bool(rc.Truth())
	return
}

// coreValue exposes core to check expressions as a read-only sequence.
type coreValue struct {
	mem *memory.Memory
}

var _ starlark.Indexable = coreValue{}

func (cv coreValue) String() string        { return "<core>" }
func (cv coreValue) Type() string          { return "core" }
func (cv coreValue) Freeze()               {}
func (cv coreValue) Truth() starlark.Bool  { return starlark.True }
func (cv coreValue) Len() int              { return memory.SIZE }
func (cv coreValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: %s", cv.Type()) }

func (cv coreValue) Index(i int) starlark.Value {
	return starlark.MakeInt(int(cv.mem.Word[i]))
}
