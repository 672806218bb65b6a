package cpu

import (
	"errors"
	"fmt"
	"iter"
	"log"
	"maps"

	"github.com/ezrec/ibm1130/internal"
	"github.com/ezrec/ibm1130/memory"
)

var _cpu_defines = map[string]int{
	"COND_Z": int(COND_ZERO),
	"COND_M": int(COND_MINUS),
	"COND_P": int(COND_PLUS),
	"COND_E": int(COND_EVEN),
	"COND_C": int(COND_CARRY),
	"COND_O": int(COND_OVERFLOW),
}

// Flags are the condition indicators.
type Flags struct {
	Carry    bool // Carry out of an add, or borrow of a subtract.
	Overflow bool // Signed overflow of an add or subtract.
	Sign     bool // Sign bit of the last result.
	Zero     bool // Last result was zero.
}

// Positive returns true if the last result was greater than zero.
func (fl Flags) Positive() bool {
	return !fl.Sign && !fl.Zero
}

func (fl *Flags) result(value uint16) {
	fl.Sign = (value & 0x8000) != 0
	fl.Zero = value == 0
}

// Cpu is the simulation context of the IBM 1130 processor.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	Memory *memory.Memory // Core storage, including the index registers.

	Acc   uint16 // Accumulator.
	Ext   uint16 // Accumulator extension.
	Iar   uint16 // Instruction address register.
	Entry uint16 // Instruction address after a reset.
	Flags        // Condition indicators.

	Halted bool // Set by WAIT.

	Instructions int // Instructions executed.
	Cycles       int // Memory cycles used.
}

// NewCpu creates a new CPU with cleared core.
func NewCpu() (cpu *Cpu) {
	cpu = &Cpu{
		Memory: &memory.Memory{},
		Entry:  memory.PROGRAM_START,
		Iar:    memory.PROGRAM_START,
	}

	return
}

// Defines for the cpu.
func (cpu *Cpu) Defines() iter.Seq2[string, int] {
	return internal.Concat2(maps.All(_cpu_defines), cpu.Memory.Defines())
}

// Index returns the content of an index register (1-3).
// It panics on TAG_NONE.
func (cpu *Cpu) Index(tag CodeTag) uint16 {
	return cpu.Memory.Index(int(tag))
}

// SetIndex sets the content of an index register (1-3).
// It panics on TAG_NONE.
func (cpu *Cpu) SetIndex(tag CodeTag, value uint16) {
	cpu.Memory.SetIndex(int(tag), value)
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	regs := []string{
		"iar",
		"acc", "ext",
		"xr1", "xr2", "xr3",
		"flags",
		"halt",
	}
	for _, reg := range regs {
		var strval string
		switch reg {
		case "iar":
			strval = fmt.Sprintf("%04X", cpu.Iar)
		case "acc":
			strval = fmt.Sprintf("%04X", cpu.Acc)
		case "ext":
			strval = fmt.Sprintf("%04X", cpu.Ext)
		case "xr1", "xr2", "xr3":
			strval = fmt.Sprintf("%04X", cpu.Index(CodeTag(reg[2]-'0')))
		case "flags":
			strval = ""
			for _, fl := range []struct {
				set    bool
				letter string
			}{
				{cpu.Carry, "C"},
				{cpu.Overflow, "O"},
				{cpu.Sign, "-"},
				{cpu.Zero, "Z"},
			} {
				if fl.set {
					strval += fl.letter
				} else {
					strval += "."
				}
			}
		case "halt":
			strval = "false"
			if cpu.Halted {
				strval = "true"
			}
		}
		text += fmt.Sprintf("% 5s: %v\n", reg, strval)
	}

	return
}

// Reset the CPU state.
// - Clears the registers and flags.
// - Zeros statistics counters.
// - Sets IAR to the entry address.
// Core, and so the index registers, is preserved.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		log.Printf("cpu: reset, entry 0x%03x", cpu.Entry)
	}

	cpu.Acc = 0
	cpu.Ext = 0
	cpu.Flags = Flags{}
	cpu.Halted = false
	cpu.Instructions = 0
	cpu.Cycles = 0
	cpu.Iar = cpu.Entry
}

// HardReset resets the CPU and clears core.
func (cpu *Cpu) HardReset() {
	cpu.Memory.Clear()
	cpu.Reset()
}

// LoadProgram copies words into core at start, and sets the entry address.
func (cpu *Cpu) LoadProgram(start int, words []uint16) (err error) {
	err = cpu.Memory.Load(start, words)
	if err != nil {
		return
	}

	cpu.Entry = uint16(start)
	cpu.Iar = cpu.Entry

	if cpu.Verbose {
		log.Printf("cpu: loaded %d words at 0x%03x", len(words), start)
	}

	return
}

// Load writes an assembled program into core and resets the CPU to its entry.
func (cpu *Cpu) Load(prog *Program) (err error) {
	err = prog.Load(cpu.Memory)
	if err != nil {
		return
	}

	cpu.Entry = uint16(prog.Entry)
	cpu.Reset()

	return
}

// Test returns true if any condition of the mask holds.
func (cpu *Cpu) Test(cond CodeCond) bool {
	acc := int16(cpu.Acc)
	return ((cond&COND_ZERO) != 0 && acc == 0) ||
		((cond&COND_MINUS) != 0 && acc < 0) ||
		((cond&COND_PLUS) != 0 && acc > 0) ||
		((cond&COND_EVEN) != 0 && (acc&1) == 0) ||
		((cond&COND_CARRY) != 0 && cpu.Carry) ||
		((cond&COND_OVERFLOW) != 0 && cpu.Overflow)
}

// FetchCode fetches the instruction at an address.
func (cpu *Cpu) FetchCode(addr int) (code Code, err error) {
	code.Word, err = cpu.Memory.Read(addr)
	if err != nil {
		return
	}

	for n := range code.ImmediateNeed() {
		var imm uint16
		imm, err = cpu.Memory.Read(addr + 1 + n)
		if err != nil {
			return
		}
		code.Immediates = append(code.Immediates, imm)
	}

	return
}

// Step executes a single instruction at IAR.
// On any error the CPU state is unchanged.
func (cpu *Cpu) Step() (err error) {
	if cpu.Halted {
		err = ErrAlreadyHalted
		return
	}

	iar := cpu.Iar
	defer func() {
		if err != nil {
			err = &ErrFault{Iar: iar, Err: err}
		}
	}()

	code, err := cpu.FetchCode(int(iar))
	if err != nil {
		return
	}

	inst, err := code.Decode()
	if err != nil {
		return
	}

	err = cpu.Execute(inst)
	return
}

// Run executes instructions until WAIT, a fault, or maxCycles instructions.
// The cycle limit belongs to the host, not the machine: a run stopped by it
// leaves the instruction and cycle counters as they were before the call.
func (cpu *Cpu) Run(maxCycles int) (err error) {
	if maxCycles < 1 {
		err = ErrCycleLimitInvalid
		return
	}

	instructions, cycles := cpu.Instructions, cpu.Cycles

	for range maxCycles {
		err = cpu.Step()
		if err != nil || cpu.Halted {
			return
		}
	}

	cpu.Instructions = instructions
	cpu.Cycles = cycles

	err = ErrCycleLimit(maxCycles)
	return
}

// effectiveAddress computes the address a memory reference operates on.
func (cpu *Cpu) effectiveAddress(inst Instruction) (ea int, err error) {
	ea = inst.Displacement

	switch inst.Mode() {
	case MODE_INDEXED, MODE_INDEXED_INDIRECT:
		ea = int(uint16(ea + int(int16(cpu.Index(inst.Tag)))))
	}

	if inst.Indirect {
		var ptr uint16
		ptr, err = cpu.Memory.Read(ea)
		if err != nil {
			return
		}
		ea = int(ptr)
	}

	if !memory.Valid(ea) {
		err = memory.ErrAddress(ea)
		return
	}

	return
}

// Execute executes a single decoded instruction at IAR.
// Nothing is committed unless the whole instruction succeeds.
func (cpu *Cpu) Execute(inst Instruction) (err error) {
	if cpu.Halted {
		err = ErrAlreadyHalted
		return
	}

	if cpu.Verbose {
		log.Printf("%03x: %v", cpu.Iar, inst)
	}

	next_iar := int(cpu.Iar) + inst.Length()
	cycles := inst.Length()
	if inst.Indirect {
		cycles++
	}

	acc := cpu.Acc
	flags := cpu.Flags
	halt := false

	// Pending core write.
	store := -1
	var stored uint16

	// Pending index register load.
	xr := TAG_NONE
	var xr_value uint16

	var ea int
	var operand uint16

	switch inst.Op {
	case OP_NOP:
		// pass
	case OP_WAIT:
		halt = true
		next_iar = int(cpu.Iar)
	case OP_LD, OP_A, OP_S, OP_AND, OP_OR:
		ea, err = cpu.effectiveAddress(inst)
		if err != nil {
			return
		}
		operand, err = cpu.Memory.Read(ea)
		if err != nil {
			return
		}
		switch inst.Op {
		case OP_LD:
			acc = operand
		case OP_A:
			acc, flags.Carry, flags.Overflow = add(acc, operand)
		case OP_S:
			acc, flags.Carry, flags.Overflow = sub(acc, operand)
		case OP_AND:
			acc &= operand
		case OP_OR:
			acc |= operand
		}
		flags.result(acc)
	case OP_STO:
		ea, err = cpu.effectiveAddress(inst)
		if err != nil {
			return
		}
		store = ea
		stored = acc
	case OP_LDX:
		ea, err = cpu.effectiveAddress(inst)
		if err != nil {
			return
		}
		operand, err = cpu.Memory.Read(ea)
		if err != nil {
			return
		}
		if inst.Tag == TAG_NONE {
			next_iar = int(operand)
		} else {
			xr = inst.Tag
			xr_value = operand
		}
		flags.result(operand)
	case OP_STX:
		ea, err = cpu.effectiveAddress(inst)
		if err != nil {
			return
		}
		store = ea
		if inst.Tag == TAG_NONE {
			stored = uint16(next_iar)
		} else {
			stored = cpu.Index(inst.Tag)
		}
	case OP_SLA, OP_SRA:
		count := inst.Count & WORD_COUNT_MASK
		if inst.Tag != TAG_NONE {
			count = int(cpu.Index(inst.Tag) & WORD_COUNT_MASK)
		}
		if inst.Op == OP_SLA {
			acc, flags.Carry = shiftLeft(acc, count)
		} else {
			acc = uint16(int16(acc) >> count)
		}
		flags.result(acc)
	case OP_BSC:
		taken := cpu.Test(inst.Conditions)
		switch {
		case inst.Long && (inst.Conditions == 0 || taken):
			ea, err = cpu.effectiveAddress(inst)
			if err != nil {
				return
			}
			next_iar = ea
		case !inst.Long && taken:
			var skip Code
			skip, err = cpu.FetchCode(next_iar)
			if err != nil {
				return
			}
			next_iar += 1 + len(skip.Immediates)
		}
	case OP_BSI:
		if inst.Long && inst.Conditions != 0 && !cpu.Test(inst.Conditions) {
			break
		}
		ea, err = cpu.effectiveAddress(inst)
		if err != nil {
			return
		}
		store = ea
		stored = uint16(next_iar)
		next_iar = ea + 1
	default:
		err = errors.Join(ErrInvalidOpcode, ErrOpcode(inst.Code()))
		return
	}

	if !memory.Valid(next_iar) {
		err = memory.ErrAddress(next_iar)
		return
	}

	// Commit.
	if store >= 0 {
		err = cpu.Memory.Write(store, int(stored))
		if err != nil {
			return
		}
	}
	if xr != TAG_NONE {
		cpu.SetIndex(xr, xr_value)
	}

	cpu.Acc = acc
	cpu.Flags = flags
	cpu.Iar = uint16(next_iar)
	cpu.Halted = halt
	cpu.Instructions++
	cpu.Cycles += cycles

	if cpu.Verbose && halt {
		log.Printf("cpu: halted at 0x%03x", cpu.Iar)
	}

	return
}

// add returns a+b, the carry out, and signed overflow.
func add(a, b uint16) (result uint16, carry bool, overflow bool) {
	sum := uint32(a) + uint32(b)
	result = uint16(sum)
	carry = sum > 0xffff
	overflow = ((a ^ result) & (b ^ result) & 0x8000) != 0
	return
}

// sub returns a-b, the borrow, and signed overflow.
func sub(a, b uint16) (result uint16, carry bool, overflow bool) {
	result = a - b
	carry = a < b
	overflow = ((a ^ b) & (a ^ result) & 0x8000) != 0
	return
}

// shiftLeft returns value shifted left by count, and the last bit shifted out.
func shiftLeft(value uint16, count int) (result uint16, carry bool) {
	wide := uint32(value) << count
	result = uint16(wide)
	carry = count > 0 && (wide&0x10000) != 0
	return
}

// State is a snapshot of the machine.
type State struct {
	Acc          uint16
	Ext          uint16
	Iar          uint16
	Index        [3]uint16
	Flags        Flags
	Halted       bool
	Instructions int
	Cycles       int
	Memory       []uint16
}

// Snapshot returns a copy of the machine state.
func (cpu *Cpu) Snapshot() (state State) {
	state = State{
		Acc:          cpu.Acc,
		Ext:          cpu.Ext,
		Iar:          cpu.Iar,
		Flags:        cpu.Flags,
		Halted:       cpu.Halted,
		Instructions: cpu.Instructions,
		Cycles:       cpu.Cycles,
		Memory:       make([]uint16, memory.SIZE),
	}
	for n := range state.Index {
		state.Index[n] = cpu.Index(CodeTag(n + 1))
	}
	copy(state.Memory, cpu.Memory.Word[:])

	return
}
