package cpu

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezrec/ibm1130/memory"
)

// words flattens instructions into memory words.
func words(insts ...Instruction) (data []uint16) {
	for _, inst := range insts {
		code := inst.Code()
		data = append(data, code.Word)
		data = append(data, code.Immediates...)
	}
	return
}

// assemble assembles source, and loads it into a fresh cpu.
func assemble(t *testing.T, source string, start int) (cpu *Cpu) {
	asm := &Assembler{}
	prog, err := asm.Parse(strings.NewReader(source), start)
	require.NoError(t, err)

	cpu = NewCpu()
	require.NoError(t, cpu.Load(prog))
	return
}

func TestCpu_ScenarioA(t *testing.T) {
	assert := assert.New(t)

	cpu := assemble(t, "LD 0 100\nWAIT\n", 0)
	assert.NoError(cpu.Memory.Write(100, 7))

	err := cpu.Run(10)
	assert.NoError(err)
	assert.True(cpu.Halted)
	assert.Equal(uint16(7), cpu.Acc)
	assert.Equal(uint16(1), cpu.Iar)
	assert.Equal(2, cpu.Instructions)
	assert.Equal(2, cpu.Cycles)
}

func TestCpu_ScenarioB(t *testing.T) {
	assert := assert.New(t)

	cpu := assemble(t, "ORG 100\nDATA 42\nORG 0\nLD 0 100\nWAIT\n", 0)

	err := cpu.Run(10)
	assert.NoError(err)
	assert.True(cpu.Halted)
	assert.Equal(uint16(42), cpu.Acc)
}

func TestCpu_ScenarioC(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	assert.NoError(cpu.Memory.Write(memory.ADDR_XR1, 5))
	assert.NoError(cpu.Memory.Write(15, 99))
	assert.NoError(cpu.LoadProgram(memory.PROGRAM_START, words(
		Instruction{Op: OP_LD, Tag: TAG_XR1, Displacement: 10},
		Instruction{Op: OP_WAIT},
	)))

	err := cpu.Run(10)
	assert.NoError(err)
	assert.Equal(uint16(99), cpu.Acc)
}

func TestCpu_ScenarioD(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	assert.NoError(cpu.Memory.Write(0x100, 1))
	assert.NoError(cpu.LoadProgram(memory.PROGRAM_START, words(
		Instruction{Op: OP_A, Long: true, Displacement: 0x100},
	)))
	cpu.Acc = 0x7fff

	err := cpu.Step()
	assert.NoError(err)
	assert.Equal(uint16(0x8000), cpu.Acc)
	assert.True(cpu.Overflow)
	assert.False(cpu.Carry)
	assert.True(cpu.Sign)
	assert.False(cpu.Positive())
}

func TestCpu_ScenarioE(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	assert.NoError(cpu.LoadProgram(memory.PROGRAM_START, words(
		Instruction{Op: OP_BSC, Conditions: COND_ZERO},
		Instruction{Op: OP_LD, Long: true, Displacement: 0x100},
		Instruction{Op: OP_WAIT},
	)))

	err := cpu.Step()
	assert.NoError(err)
	assert.Equal(uint16(memory.PROGRAM_START+3), cpu.Iar)

	// Not taken: falls through to the next instruction.
	cpu.Reset()
	cpu.Acc = 1
	err = cpu.Step()
	assert.NoError(err)
	assert.Equal(uint16(memory.PROGRAM_START+1), cpu.Iar)
}

func TestCpu_ScenarioF(t *testing.T) {
	assert := assert.New(t)

	cpu := assemble(t, "LOOP: B LOOP\n", memory.PROGRAM_START)
	cpu.Acc = 0x1234
	before := cpu.Snapshot()

	err := cpu.Run(1)
	assert.ErrorIs(err, ErrCycleLimitExceeded)
	assert.Equal(ErrCycleLimit(1), err)

	assert.Equal(before, cpu.Snapshot())
	assert.False(cpu.Halted)

	// A stopped run can be resumed.
	err = cpu.Run(3)
	assert.ErrorIs(err, ErrCycleLimitExceeded)
	assert.Equal(before, cpu.Snapshot())
}

func TestCpu_CycleLimitCounters(t *testing.T) {
	assert := assert.New(t)

	source := "        LD   L ONE\n" +
		"LOOP:   A    L ONE\n" +
		"        B    LOOP\n" +
		"ONE:    DATA 1\n"
	cpu := assemble(t, source, memory.PROGRAM_START)
	assert.NoError(cpu.Step())
	assert.Equal(1, cpu.Instructions)
	assert.Equal(2, cpu.Cycles)

	// Executed instructions stand; only the counters are not charged.
	err := cpu.Run(4)
	assert.ErrorIs(err, ErrCycleLimitExceeded)
	assert.Equal(uint16(3), cpu.Acc)
	assert.Equal(1, cpu.Instructions)
	assert.Equal(2, cpu.Cycles)
}

func TestCpu_Run(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	assert.NoError(cpu.LoadProgram(memory.PROGRAM_START, words(Instruction{Op: OP_WAIT})))

	assert.ErrorIs(cpu.Run(0), ErrCycleLimitInvalid)
	assert.ErrorIs(cpu.Run(-5), ErrCycleLimitInvalid)

	assert.NoError(cpu.Run(1))
	assert.True(cpu.Halted)
	assert.Equal(uint16(memory.PROGRAM_START), cpu.Iar)

	assert.ErrorIs(cpu.Run(1), ErrAlreadyHalted)
	assert.ErrorIs(cpu.Step(), ErrAlreadyHalted)
	assert.ErrorIs(cpu.Execute(Instruction{Op: OP_NOP}), ErrAlreadyHalted)
}

func TestCpu_Flags(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name     string
		op       CodeOp
		acc      uint16
		operand  uint16
		result   uint16
		carry    bool
		overflow bool
	}){
		{"add", OP_A, 5, 3, 8, false, false},
		{"add_carry", OP_A, 0xffff, 1, 0, true, false},
		{"add_overflow", OP_A, 0x7fff, 1, 0x8000, false, true},
		{"add_both", OP_A, 0x8000, 0x8000, 0, true, true},
		{"sub", OP_S, 5, 3, 2, false, false},
		{"sub_borrow", OP_S, 0, 1, 0xffff, true, false},
		{"sub_overflow", OP_S, 0x8000, 1, 0x7fff, false, true},
		{"and", OP_AND, 0xff0f, 0x0ff0, 0x0f00, false, false},
		{"or", OP_OR, 0xf000, 0x000f, 0xf00f, false, false},
		{"ld", OP_LD, 0x1234, 0x8000, 0x8000, false, false},
	}

	for _, entry := range table {
		cpu := NewCpu()
		assert.NoError(cpu.Memory.Write(0x100, int(entry.operand)), entry.name)
		assert.NoError(cpu.LoadProgram(memory.PROGRAM_START, words(
			Instruction{Op: entry.op, Long: true, Displacement: 0x100},
		)), entry.name)
		cpu.Acc = entry.acc

		err := cpu.Step()
		assert.NoError(err, entry.name)
		assert.Equal(entry.result, cpu.Acc, entry.name)
		assert.Equal(entry.carry, cpu.Carry, entry.name)
		assert.Equal(entry.overflow, cpu.Overflow, entry.name)
		assert.Equal(entry.result == 0, cpu.Zero, entry.name)
		assert.Equal(entry.result&0x8000 != 0, cpu.Sign, entry.name)
		assert.Equal(1, cpu.Instructions, entry.name)
		assert.Equal(2, cpu.Cycles, entry.name)
	}
}

func TestCpu_Shift(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name   string
		op     CodeOp
		acc    uint16
		count  int
		result uint16
		carry  bool
	}){
		{"sla_1", OP_SLA, 0x8001, 1, 0x0002, true},
		{"sla_sign", OP_SLA, 0x4000, 1, 0x8000, false},
		{"sla_16", OP_SLA, 0x0001, 16, 0x0000, true},
		{"sla_17", OP_SLA, 0x0001, 17, 0x0000, false},
		{"sla_63", OP_SLA, 0xffff, 63, 0x0000, false},
		{"sra_sign", OP_SRA, 0x8000, 3, 0xf000, false},
		{"sra", OP_SRA, 0x4000, 2, 0x1000, false},
		{"sra_all", OP_SRA, 0x8000, 63, 0xffff, false},
	}

	for _, entry := range table {
		cpu := NewCpu()
		assert.NoError(cpu.LoadProgram(memory.PROGRAM_START, words(
			Instruction{Op: entry.op, Count: entry.count},
		)), entry.name)
		cpu.Acc = entry.acc

		err := cpu.Step()
		assert.NoError(err, entry.name)
		assert.Equal(entry.result, cpu.Acc, entry.name)
		assert.Equal(entry.carry, cpu.Carry, entry.name)
	}

	// Out of range counts use the low 6 bits.
	cpu := NewCpu()
	cpu.Acc = 1
	assert.NoError(cpu.Execute(Instruction{Op: OP_SLA, Count: -1}))
	assert.Equal(uint16(0), cpu.Acc)
	cpu.Acc = 1
	assert.NoError(cpu.Execute(Instruction{Op: OP_SLA, Count: 0x42}))
	assert.Equal(uint16(4), cpu.Acc)

	// Count from the low 6 bits of an index register.
	cpu = NewCpu()
	cpu.SetIndex(TAG_XR2, 0x0143)
	assert.NoError(cpu.LoadProgram(memory.PROGRAM_START, words(
		Instruction{Op: OP_SLA, Tag: TAG_XR2, Count: 9},
	)))
	cpu.Acc = 1
	assert.NoError(cpu.Step())
	assert.Equal(uint16(8), cpu.Acc)
}

func TestCpu_ShiftZero(t *testing.T) {
	assert := assert.New(t)

	// SLA 0 is the NOP word.
	cpu := assemble(t, "SLA 0\nSLA 1 0\nWAIT\n", memory.PROGRAM_START)
	assert.Equal(uint16(WORD_NOP), cpu.Memory.Word[memory.PROGRAM_START])

	code, err := cpu.FetchCode(memory.PROGRAM_START)
	require.NoError(t, err)
	inst, err := code.Decode()
	assert.NoError(err)
	assert.Equal(OP_NOP, inst.Op)

	cpu.Acc = 0
	assert.NoError(cpu.Step())
	assert.False(cpu.Zero)

	// A zero count from an index register refreshes the indicators.
	cpu.SetIndex(TAG_XR1, 0)
	assert.NoError(cpu.Step())
	assert.True(cpu.Zero)
	assert.Equal(uint16(0), cpu.Acc)
}

func TestCpu_Test(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name     string
		acc      uint16
		carry    bool
		overflow bool
		cond     CodeCond
		expected bool
	}){
		{"zero", 0, false, false, COND_ZERO, true},
		{"zero_even", 0, false, false, COND_EVEN, true},
		{"zero_plus", 0, false, false, COND_PLUS, false},
		{"zero_minus", 0, false, false, COND_MINUS, false},
		{"minus", 0x8000, false, false, COND_MINUS, true},
		{"minus_even", 0x8000, false, false, COND_EVEN, true},
		{"plus", 3, false, false, COND_PLUS, true},
		{"plus_odd", 3, false, false, COND_EVEN | COND_ZERO, false},
		{"carry", 3, true, false, COND_CARRY, true},
		{"no_carry", 3, false, true, COND_CARRY, false},
		{"overflow", 3, false, true, COND_OVERFLOW, true},
		{"empty", 0, true, true, 0, false},
	}

	for _, entry := range table {
		cpu := NewCpu()
		cpu.Acc = entry.acc
		cpu.Carry = entry.carry
		cpu.Overflow = entry.overflow
		assert.Equal(entry.expected, cpu.Test(entry.cond), entry.name)
	}
}

func TestCpu_Branch(t *testing.T) {
	assert := assert.New(t)

	// Long BSC, taken and not taken.
	cpu := NewCpu()
	assert.NoError(cpu.LoadProgram(memory.PROGRAM_START, words(
		Instruction{Op: OP_BSC, Long: true, Conditions: COND_MINUS, Displacement: 0x80},
	)))
	cpu.Acc = 0xffff
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x80), cpu.Iar)

	cpu.Reset()
	cpu.Acc = 1
	assert.NoError(cpu.Step())
	assert.Equal(uint16(memory.PROGRAM_START+2), cpu.Iar)

	// Unconditional, indexed.
	cpu = NewCpu()
	cpu.SetIndex(TAG_XR3, 0x10)
	assert.NoError(cpu.LoadProgram(memory.PROGRAM_START, words(
		Instruction{Op: OP_BSC, Long: true, Tag: TAG_XR3, Displacement: 0x80},
	)))
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x90), cpu.Iar)

	// Short skip over a one word instruction.
	cpu = NewCpu()
	assert.NoError(cpu.LoadProgram(memory.PROGRAM_START, words(
		Instruction{Op: OP_BSC, Conditions: COND_CARRY},
		Instruction{Op: OP_NOP},
	)))
	cpu.Carry = true
	assert.NoError(cpu.Step())
	assert.Equal(uint16(memory.PROGRAM_START+2), cpu.Iar)
	assert.Equal(1, cpu.Cycles)
}

func TestCpu_Subroutine(t *testing.T) {
	assert := assert.New(t)

	source := `
        ORG  0x10
START:  LD   L VAL
        BSI  L DOUBLE
        STO  L RES
        WAIT
DOUBLE: DATA 0          ; return address
        A    L VAL
        B    I DOUBLE
VAL:    DATA 21
RES:    DATA 0
`
	cpu := assemble(t, source, 0x10)
	assert.Equal(uint16(0x10), cpu.Iar)

	err := cpu.Run(100)
	assert.NoError(err)
	assert.True(cpu.Halted)
	assert.Equal(uint16(42), cpu.Acc)
	assert.Equal(uint16(42), cpu.Memory.Word[0x1d])
	assert.Equal(uint16(0x14), cpu.Memory.Word[0x17])
	assert.Equal(6, cpu.Instructions)
	assert.Equal(12, cpu.Cycles)
}

func TestCpu_ConditionalCall(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	assert.NoError(cpu.LoadProgram(memory.PROGRAM_START, words(
		Instruction{Op: OP_BSI, Long: true, Conditions: COND_ZERO, Displacement: 0x40},
	)))

	cpu.Acc = 5
	assert.NoError(cpu.Step())
	assert.Equal(uint16(memory.PROGRAM_START+2), cpu.Iar)
	assert.Equal(uint16(0), cpu.Memory.Word[0x40])

	cpu.Reset()
	cpu.Acc = 0
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x41), cpu.Iar)
	assert.Equal(uint16(memory.PROGRAM_START+2), cpu.Memory.Word[0x40])
}

func TestCpu_IndexRegisters(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	assert.NoError(cpu.Memory.Write(0x40, 7))
	assert.NoError(cpu.Memory.Write(0x41, 0x30))
	assert.NoError(cpu.LoadProgram(memory.PROGRAM_START, words(
		Instruction{Op: OP_LDX, Tag: TAG_XR1, Displacement: 0x40},  // 0x10
		Instruction{Op: OP_STX, Tag: TAG_XR1, Displacement: 0x50},  // 0x11
		Instruction{Op: OP_STX, Tag: TAG_NONE, Displacement: 0x51}, // 0x12
		Instruction{Op: OP_LDX, Tag: TAG_NONE, Displacement: 0x41}, // 0x13
	)))

	assert.NoError(cpu.Step())
	assert.Equal(uint16(7), cpu.Index(TAG_XR1))
	assert.Equal(uint16(7), cpu.Memory.Word[memory.ADDR_XR1])
	assert.False(cpu.Zero)

	assert.NoError(cpu.Step())
	assert.Equal(uint16(7), cpu.Memory.Word[0x50])

	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x13), cpu.Memory.Word[0x51])

	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x30), cpu.Iar)

	// Register and memory views are one store.
	for xr := TAG_XR1; xr <= TAG_XR3; xr++ {
		assert.NoError(cpu.Memory.Write(int(xr), 0x100+int(xr)))
		assert.Equal(uint16(0x100+int(xr)), cpu.Index(xr))
		cpu.SetIndex(xr, 0x200)
		value, err := cpu.Memory.Read(int(xr))
		assert.NoError(err)
		assert.Equal(uint16(0x200), value)
	}
}

func TestCpu_Indirect(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	cpu.SetIndex(TAG_XR1, 2)
	assert.NoError(cpu.Memory.Write(0x102, 0x200))
	assert.NoError(cpu.Memory.Write(0x200, 0x5555))
	assert.NoError(cpu.LoadProgram(memory.PROGRAM_START, words(
		Instruction{Op: OP_LD, Long: true, Indirect: true, Tag: TAG_XR1, Displacement: 0x100},
	)))

	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x5555), cpu.Acc)
	assert.Equal(3, cpu.Cycles)
}

func TestCpu_Fault(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name  string
		setup func(cpu *Cpu)
		err   error
	}){
		{"invalid_opcode", func(cpu *Cpu) {
			assert.NoError(cpu.LoadProgram(memory.PROGRAM_START, []uint16{0x0000}))
		}, ErrInvalidOpcode},
		{"indexed_wrap", func(cpu *Cpu) {
			cpu.SetIndex(TAG_XR1, 0x200)
			assert.NoError(cpu.LoadProgram(memory.PROGRAM_START, words(
				Instruction{Op: OP_LD, Long: true, Tag: TAG_XR1, Displacement: 0xf00},
			)))
		}, ErrAddressOutOfRange},
		{"indirect_store", func(cpu *Cpu) {
			assert.NoError(cpu.Memory.Write(0x100, 0x2000))
			assert.NoError(cpu.LoadProgram(memory.PROGRAM_START, words(
				Instruction{Op: OP_STO, Long: true, Indirect: true, Displacement: 0x100},
			)))
		}, ErrAddressOutOfRange},
		{"branch_out", func(cpu *Cpu) {
			assert.NoError(cpu.LoadProgram(memory.PROGRAM_START, words(
				Instruction{Op: OP_BSC, Long: true, Displacement: 0x1000},
			)))
		}, ErrAddressOutOfRange},
		{"call_out", func(cpu *Cpu) {
			assert.NoError(cpu.LoadProgram(memory.PROGRAM_START, words(
				Instruction{Op: OP_BSI, Long: true, Displacement: memory.SIZE - 1},
			)))
		}, ErrAddressOutOfRange},
		{"fetch_end", func(cpu *Cpu) {
			assert.NoError(cpu.LoadProgram(memory.SIZE-1, []uint16{0xC400}))
		}, ErrAddressOutOfRange},
		{"short_negative", func(cpu *Cpu) {
			assert.NoError(cpu.LoadProgram(memory.PROGRAM_START, words(
				Instruction{Op: OP_LD, Displacement: -4},
			)))
		}, ErrAddressOutOfRange},
	}

	for _, entry := range table {
		cpu := NewCpu()
		entry.setup(cpu)
		cpu.Acc = 0xabcd
		cpu.Carry = true
		before := cpu.Snapshot()

		err := cpu.Step()
		assert.ErrorIs(err, entry.err, entry.name)

		var fault *ErrFault
		if assert.True(errors.As(err, &fault), entry.name) {
			assert.Equal(before.Iar, fault.Iar, entry.name)
		}

		assert.Equal(before, cpu.Snapshot(), entry.name)
	}
}

func TestCpu_Reset(t *testing.T) {
	assert := assert.New(t)

	cpu := assemble(t, "LD L 0x100\nA L 0x100\nWAIT\n", 0x20)
	assert.NoError(cpu.Memory.Write(0x100, 0x8000))

	assert.NoError(cpu.Run(10))
	assert.True(cpu.Halted)
	assert.True(cpu.Carry)

	cpu.Ext = 0x55
	cpu.Reset()
	assert.Equal(uint16(0), cpu.Acc)
	assert.Equal(uint16(0), cpu.Ext)
	assert.Equal(Flags{}, cpu.Flags)
	assert.Equal(0, cpu.Instructions)
	assert.Equal(0, cpu.Cycles)
	assert.False(cpu.Halted)
	assert.Equal(uint16(0x20), cpu.Iar)
	assert.Equal(uint16(0x8000), cpu.Memory.Word[0x100])
	assert.Equal(uint16(0xC400), cpu.Memory.Word[0x20])

	// Same program, same result.
	assert.NoError(cpu.Run(10))
	assert.Equal(uint16(0), cpu.Acc)

	cpu.HardReset()
	assert.Equal([memory.SIZE]uint16{}, cpu.Memory.Word)
	assert.Equal(uint16(0x20), cpu.Iar)
}

func TestCpu_Determinism(t *testing.T) {
	assert := assert.New(t)

	run := func() State {
		cpu := assemble(t, "LD L 0x100\nSLA 2\nS L 0x101\nSTO L 0x102\nWAIT\n", memory.PROGRAM_START)
		assert.NoError(cpu.Memory.Write(0x100, 0x1234))
		assert.NoError(cpu.Memory.Write(0x101, 0x4321))
		assert.NoError(cpu.Run(100))
		return cpu.Snapshot()
	}

	assert.Equal(run(), run())
}

func TestCpu_String(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	cpu.Acc = 0xbeef
	cpu.SetIndex(TAG_XR2, 0x12)
	cpu.Carry = true

	text := cpu.String()
	assert.Contains(text, "acc: BEEF")
	assert.Contains(text, "xr2: 0012")
	assert.Contains(text, "flags: C...")
	assert.Contains(text, "iar: 0010")
}
