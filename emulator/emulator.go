// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"io"
	"iter"
	"log"
	"maps"
	"slices"

	"github.com/ezrec/ibm1130/challenge"
	"github.com/ezrec/ibm1130/cpu"
	"github.com/ezrec/ibm1130/internal"
	"github.com/ezrec/ibm1130/memory"
)

// DEFAULT_MAX_CYCLES is the run limit when none is given.
const DEFAULT_MAX_CYCLES = 100000

var _emulator_defines = map[string]int{
	"WORD_NOP":  cpu.WORD_NOP,
	"WORD_WAIT": cpu.WORD_WAIT,
}

// Emulator state. CPU + core + the assembled program.
type Emulator struct {
	Verbose  bool         // If set, enables verbose logging.
	*cpu.Cpu              // Reference to the CPU simulation.
	Program  *cpu.Program // Reference to the currently loaded program listing.
}

// NewEmulator creates a new emulator.
func NewEmulator() (emu *Emulator) {
	emu = &Emulator{
		Cpu:     cpu.NewCpu(),
		Program: &cpu.Program{Entry: memory.PROGRAM_START},
	}

	return
}

// Defines returns an iterator over all of the predefined symbols.
func (emu *Emulator) Defines() iter.Seq2[string, int] {
	return internal.Concat2(maps.All(_emulator_defines),
		emu.Cpu.Defines(),
	)
}

// Assemble source at start, and load the program.
func (emu *Emulator) Assemble(source io.Reader, start int) (prog *cpu.Program, err error) {
	asm := &cpu.Assembler{Verbose: emu.Verbose}
	for name, value := range emu.Defines() {
		asm.Predefine(name, value)
	}

	prog, err = asm.Parse(source, start)
	if err != nil {
		return
	}

	err = emu.Load(prog)
	return
}

// Load an assembled program into core, and reset to its entry.
func (emu *Emulator) Load(prog *cpu.Program) (err error) {
	emu.Cpu.Verbose = emu.Verbose

	err = emu.Cpu.Load(prog)
	if err != nil {
		return
	}

	emu.Program = prog

	if emu.Verbose {
		log.Printf("emulator: loaded %d words, entry 0x%03x", prog.Len(), prog.Entry)
	}

	return
}

// LoadProgram loads raw words at start, and resets to start.
func (emu *Emulator) LoadProgram(start int, words []uint16) (err error) {
	emu.Cpu.Verbose = emu.Verbose

	err = emu.Cpu.LoadProgram(start, words)
	if err != nil {
		return
	}
	emu.Cpu.Reset()

	emu.Program = &cpu.Program{
		Entry: start,
		Opcodes: []cpu.Opcode{
			{Address: start, Words: slices.Clone(words)},
		},
	}

	return
}

// HardReset clears core, forgets the program, and resets the CPU.
func (emu *Emulator) HardReset() {
	emu.Cpu.HardReset()
	emu.Program = &cpu.Program{Entry: int(emu.Cpu.Entry)}
}

// ReadMemory reads a core word.
func (emu *Emulator) ReadMemory(addr int) (value uint16, err error) {
	return emu.Cpu.Memory.Read(addr)
}

// WriteMemory writes a core word, truncated to 16 bits.
func (emu *Emulator) WriteMemory(addr int, value int) (err error) {
	return emu.Cpu.Memory.Write(addr, value)
}

// Instruction returns the decoded instruction at IAR.
func (emu *Emulator) Instruction() (inst cpu.Instruction, err error) {
	code, err := emu.Cpu.FetchCode(int(emu.Cpu.Iar))
	if err != nil {
		return
	}

	inst, err = code.Decode()
	return
}

// LineNo returns the source line number of the instruction at IAR, or
// zero if it has none.
func (emu *Emulator) LineNo() int {
	dbg := emu.Program.Debug(int(emu.Cpu.Iar))
	if dbg.Opcode == nil {
		return 0
	}

	return dbg.LineNo
}

// Step executes a single instruction.
func (emu *Emulator) Step() (err error) {
	emu.Cpu.Verbose = emu.Verbose

	defer func() {
		if err != nil {
			err = &ErrRuntime{LineNo: emu.LineNo(), Err: err}
		}
	}()

	err = emu.Cpu.Step()
	return
}

// Run executes until WAIT, a fault, or maxCycles instructions.
func (emu *Emulator) Run(maxCycles int) (err error) {
	emu.Cpu.Verbose = emu.Verbose

	defer func() {
		if err != nil {
			err = &ErrRuntime{LineNo: emu.LineNo(), Err: err}
		}
	}()

	err = emu.Cpu.Run(maxCycles)
	return
}

// Challenges returns the built-in challenges.
func (emu *Emulator) Challenges() []challenge.Challenge {
	return challenge.All()
}

// Check the loaded program against a built-in challenge.
func (emu *Emulator) Check(id string) (result *challenge.Result, err error) {
	ch, err := challenge.Lookup(id)
	if err != nil {
		return
	}

	ch.Verbose = emu.Verbose
	result = ch.Check(emu.Program)
	return
}
