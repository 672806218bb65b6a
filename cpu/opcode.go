package cpu

import (
	"fmt"
	"strings"
)

// CodeOp is a decoded operation.
type CodeOp int

//go:generate go tool stringer -linecomment -type=CodeOp
const (
	OP_NOP  = CodeOp(0)  // NOP
	OP_LD   = CodeOp(1)  // LD
	OP_STO  = CodeOp(2)  // STO
	OP_LDX  = CodeOp(3)  // LDX
	OP_STX  = CodeOp(4)  // STX
	OP_A    = CodeOp(5)  // A
	OP_S    = CodeOp(6)  // S
	OP_AND  = CodeOp(7)  // AND
	OP_OR   = CodeOp(8)  // OR
	OP_SLA  = CodeOp(9)  // SLA
	OP_SRA  = CodeOp(10) // SRA
	OP_BSC  = CodeOp(11) // BSC
	OP_BSI  = CodeOp(12) // BSI
	OP_WAIT = CodeOp(13) // WAIT
)

// Reference returns true if the operation addresses memory.
func (op CodeOp) Reference() bool {
	switch op {
	case OP_LD, OP_STO, OP_LDX, OP_STX, OP_A, OP_S, OP_AND, OP_OR, OP_BSC, OP_BSI:
		return true
	}
	return false
}

// Operation field (bits 0-4) values.
const (
	FIELD_SLA  = 0b00010
	FIELD_SRA  = 0b00011
	FIELD_WAIT = 0b00110
	FIELD_BSI  = 0b01000
	FIELD_BSC  = 0b01001
	FIELD_LDX  = 0b01100
	FIELD_STX  = 0b01101
	FIELD_A    = 0b10000
	FIELD_S    = 0b10010
	FIELD_LD   = 0b11000
	FIELD_STO  = 0b11010
	FIELD_AND  = 0b11100
	FIELD_OR   = 0b11101
)

// Instruction word bits. Bit 0 of the 1130 is the MSB.
const (
	WORD_FIELD_SHIFT = 11
	WORD_LONG        = 0x0400 // F: two word format.
	WORD_TAG_SHIFT   = 8
	WORD_TAG_MASK    = 0x0300 // T: index register.
	WORD_DISP_MASK   = 0x00ff // Short format displacement.
	WORD_INDIRECT    = 0x0080 // IA: long format indirect.
	WORD_BOSC        = 0x0040 // Unused by this machine; must be zero.
	WORD_COND_MASK   = 0x003f // BSC/BSI condition modifiers.
	WORD_SHIFT_MASK  = 0x00c0 // Shift sub-operation.
	WORD_COUNT_MASK  = 0x003f // Shift count.

	WORD_NOP  = FIELD_SLA << WORD_FIELD_SHIFT // SLA 0
	WORD_WAIT = FIELD_WAIT << WORD_FIELD_SHIFT
)

// fieldOp maps the memory reference operation fields.
var fieldOp = map[uint16]CodeOp{
	FIELD_LD:  OP_LD,
	FIELD_STO: OP_STO,
	FIELD_LDX: OP_LDX,
	FIELD_STX: OP_STX,
	FIELD_A:   OP_A,
	FIELD_S:   OP_S,
	FIELD_AND: OP_AND,
	FIELD_OR:  OP_OR,
	FIELD_BSC: OP_BSC,
	FIELD_BSI: OP_BSI,
}

var opField = map[CodeOp]uint16{
	OP_NOP:  FIELD_SLA,
	OP_LD:   FIELD_LD,
	OP_STO:  FIELD_STO,
	OP_LDX:  FIELD_LDX,
	OP_STX:  FIELD_STX,
	OP_A:    FIELD_A,
	OP_S:    FIELD_S,
	OP_AND:  FIELD_AND,
	OP_OR:   FIELD_OR,
	OP_SLA:  FIELD_SLA,
	OP_SRA:  FIELD_SRA,
	OP_BSC:  FIELD_BSC,
	OP_BSI:  FIELD_BSI,
	OP_WAIT: FIELD_WAIT,
}

// CodeTag is the tag field. For LDX and STX it names the register,
// otherwise the index register added to the address.
type CodeTag int

const (
	TAG_NONE = CodeTag(0)
	TAG_XR1  = CodeTag(1)
	TAG_XR2  = CodeTag(2)
	TAG_XR3  = CodeTag(3)
)

// CodeMode is an addressing mode.
type CodeMode int

const (
	MODE_DIRECT           = CodeMode(0)
	MODE_INDEXED          = CodeMode(1)
	MODE_INDIRECT         = CodeMode(2)
	MODE_INDEXED_INDIRECT = CodeMode(3)
)

var modeName = [...]string{"direct", "indexed", "indirect", "indexed-indirect"}

func (mode CodeMode) String() string {
	if mode < 0 || int(mode) >= len(modeName) {
		return fmt.Sprintf("CodeMode(%d)", int(mode))
	}
	return modeName[mode]
}

// CodeCond is a BSC/BSI condition mask.
type CodeCond uint16

const (
	COND_OVERFLOW = CodeCond(0x01) // O
	COND_CARRY    = CodeCond(0x02) // C
	COND_EVEN     = CodeCond(0x04) // E
	COND_PLUS     = CodeCond(0x08) // +
	COND_MINUS    = CodeCond(0x10) // -
	COND_ZERO     = CodeCond(0x20) // Z
)

var condLetter = []struct {
	cond   CodeCond
	letter byte
}{
	{COND_ZERO, 'Z'},
	{COND_MINUS, '-'},
	{COND_PLUS, '+'},
	{COND_EVEN, 'E'},
	{COND_CARRY, 'C'},
	{COND_OVERFLOW, 'O'},
}

// String returns the assembler spelling of the mask.
func (cond CodeCond) String() string {
	var sb strings.Builder
	for _, cl := range condLetter {
		if cond&cl.cond != 0 {
			sb.WriteByte(cl.letter)
		}
	}
	return sb.String()
}

// Code is a fetched instruction word and its address word, if any.
type Code struct {
	Word       uint16
	Immediates []uint16
}

// ImmediateNeed returns the number of words following Word.
func (code Code) ImmediateNeed() int {
	if code.Word&WORD_LONG == 0 {
		return 0
	}

	_, ok := fieldOp[code.Word>>WORD_FIELD_SHIFT]
	if !ok {
		return 0
	}

	return 1
}

// Decode the words into an instruction.
func (code Code) Decode() (inst Instruction, err error) {
	word := code.Word
	field := word >> WORD_FIELD_SHIFT
	long := (word & WORD_LONG) != 0
	tag := CodeTag((word & WORD_TAG_MASK) >> WORD_TAG_SHIFT)

	invalid := func() {
		err = ErrOpcode(code)
	}

	switch field {
	case FIELD_SLA, FIELD_SRA:
		if long || (word&WORD_SHIFT_MASK) != 0 {
			invalid()
			return
		}
		if word == WORD_NOP {
			inst = Instruction{Op: OP_NOP}
			return
		}
		op := OP_SLA
		if field == FIELD_SRA {
			op = OP_SRA
		}
		inst = Instruction{Op: op, Tag: tag, Count: int(word & WORD_COUNT_MASK)}
	case FIELD_WAIT:
		if word != WORD_WAIT {
			invalid()
			return
		}
		inst = Instruction{Op: OP_WAIT}
	default:
		op, ok := fieldOp[field]
		if !ok {
			invalid()
			return
		}
		inst = Instruction{Op: op, Tag: tag, Long: long}
		switch {
		case !long && op == OP_BSC:
			if (word & (WORD_TAG_MASK | WORD_INDIRECT | WORD_BOSC)) != 0 {
				invalid()
				return
			}
			inst.Conditions = CodeCond(word & WORD_COND_MASK)
		case !long:
			inst.Displacement = int(int8(word & WORD_DISP_MASK))
		default:
			if len(code.Immediates) < 1 {
				err = ErrOpcodeImm
				return
			}
			conds := CodeCond(word & WORD_COND_MASK)
			if (word&WORD_BOSC) != 0 || (conds != 0 && op != OP_BSC && op != OP_BSI) {
				invalid()
				return
			}
			inst.Indirect = (word & WORD_INDIRECT) != 0
			inst.Conditions = conds
			inst.Displacement = int(code.Immediates[0])
		}
	}

	return
}

// Instruction is a decoded instruction.
type Instruction struct {
	Op           CodeOp   // Operation.
	Long         bool     // Two word format.
	Tag          CodeTag  // Index register, or the register of LDX/STX.
	Indirect     bool     // One level of indirection (long format only).
	Displacement int      // Short: signed displacement. Long: address word.
	Conditions   CodeCond // BSC/BSI condition mask.
	Count        int      // Shift count.
}

// Length returns the number of words of the instruction.
func (inst Instruction) Length() int {
	if inst.Long {
		return 2
	}
	return 1
}

// Mode returns the addressing mode of a memory reference.
func (inst Instruction) Mode() CodeMode {
	indexed := inst.Tag != TAG_NONE && inst.Op != OP_LDX && inst.Op != OP_STX
	switch {
	case indexed && inst.Indirect:
		return MODE_INDEXED_INDIRECT
	case inst.Indirect:
		return MODE_INDIRECT
	case indexed:
		return MODE_INDEXED
	}
	return MODE_DIRECT
}

// Code encodes the instruction.
func (inst Instruction) Code() (code Code) {
	word := opField[inst.Op] << WORD_FIELD_SHIFT

	switch inst.Op {
	case OP_NOP, OP_WAIT:
		// no operands
	case OP_SLA, OP_SRA:
		word |= uint16(inst.Tag) << WORD_TAG_SHIFT
		word |= uint16(inst.Count) & WORD_COUNT_MASK
	default:
		switch {
		case !inst.Long && inst.Op == OP_BSC:
			word |= uint16(inst.Conditions) & WORD_COND_MASK
		case !inst.Long:
			word |= uint16(inst.Tag) << WORD_TAG_SHIFT
			word |= uint16(inst.Displacement) & WORD_DISP_MASK
		default:
			word |= WORD_LONG
			word |= uint16(inst.Tag) << WORD_TAG_SHIFT
			if inst.Indirect {
				word |= WORD_INDIRECT
			}
			word |= uint16(inst.Conditions) & WORD_COND_MASK
			code.Immediates = []uint16{uint16(inst.Displacement)}
		}
	}

	code.Word = word
	return
}

// String returns the assembler spelling of the instruction.
func (inst Instruction) String() string {
	words := []string{inst.Op.String()}

	switch inst.Op {
	case OP_NOP, OP_WAIT:
	case OP_SLA, OP_SRA:
		if inst.Tag != TAG_NONE {
			words = append(words, fmt.Sprint(int(inst.Tag)))
		}
		words = append(words, fmt.Sprint(inst.Count))
	default:
		if !inst.Long && inst.Op == OP_BSC {
			if inst.Conditions != 0 {
				words = append(words, inst.Conditions.String())
			}
			break
		}
		if inst.Long {
			ft := "L"
			if inst.Indirect {
				ft = "I"
			}
			if inst.Tag != TAG_NONE {
				ft += fmt.Sprint(int(inst.Tag))
			}
			operand := fmt.Sprintf("0x%04x", uint16(inst.Displacement))
			if inst.Conditions != 0 {
				operand += "," + inst.Conditions.String()
			}
			words = append(words, ft, operand)
		} else {
			words = append(words, fmt.Sprint(int(inst.Tag)), fmt.Sprint(inst.Displacement))
		}
	}

	return strings.Join(words, " ")
}
