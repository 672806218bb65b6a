package cpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode_Encode(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name string
		inst Instruction
		code Code
		text string
	}){
		{"ld_short", Instruction{Op: OP_LD, Displacement: 0x20}, Code{Word: 0xC020}, "LD 0 32"},
		{"ld_indexed", Instruction{Op: OP_LD, Tag: TAG_XR1, Displacement: -1}, Code{Word: 0xC1FF}, "LD 1 -1"},
		{"ld_long", Instruction{Op: OP_LD, Long: true, Displacement: 0x100}, Code{Word: 0xC400, Immediates: []uint16{0x0100}}, "LD L 0x0100"},
		{"ld_indirect", Instruction{Op: OP_LD, Long: true, Indirect: true, Tag: TAG_XR2, Displacement: 0x300}, Code{Word: 0xC680, Immediates: []uint16{0x0300}}, "LD I2 0x0300"},
		{"sto", Instruction{Op: OP_STO, Displacement: 0x30}, Code{Word: 0xD030}, "STO 0 48"},
		{"a_long", Instruction{Op: OP_A, Long: true, Displacement: 0x101}, Code{Word: 0x8400, Immediates: []uint16{0x0101}}, "A L 0x0101"},
		{"s", Instruction{Op: OP_S, Displacement: 5}, Code{Word: 0x9005}, "S 0 5"},
		{"and", Instruction{Op: OP_AND, Displacement: 0x10}, Code{Word: 0xE010}, "AND 0 16"},
		{"or_long", Instruction{Op: OP_OR, Long: true, Displacement: 0x200}, Code{Word: 0xEC00, Immediates: []uint16{0x0200}}, "OR L 0x0200"},
		{"ldx", Instruction{Op: OP_LDX, Tag: TAG_XR1, Displacement: 0x40}, Code{Word: 0x6140}, "LDX 1 64"},
		{"stx_long", Instruction{Op: OP_STX, Long: true, Tag: TAG_XR3, Displacement: 0x120}, Code{Word: 0x6F00, Immediates: []uint16{0x0120}}, "STX L3 0x0120"},
		{"sla", Instruction{Op: OP_SLA, Count: 3}, Code{Word: 0x1003}, "SLA 3"},
		{"sla_xr1", Instruction{Op: OP_SLA, Tag: TAG_XR1}, Code{Word: 0x1100}, "SLA 1 0"},
		{"sra", Instruction{Op: OP_SRA, Count: 4}, Code{Word: 0x1804}, "SRA 4"},
		{"nop", Instruction{Op: OP_NOP}, Code{Word: 0x1000}, "NOP"},
		{"wait", Instruction{Op: OP_WAIT}, Code{Word: 0x3000}, "WAIT"},
		{"bsc_skip", Instruction{Op: OP_BSC, Conditions: COND_ZERO}, Code{Word: 0x4820}, "BSC Z"},
		{"bsc_long", Instruction{Op: OP_BSC, Long: true, Conditions: COND_ZERO | COND_PLUS, Displacement: 0x20}, Code{Word: 0x4C28, Immediates: []uint16{0x0020}}, "BSC L 0x0020,Z+"},
		{"bsi_long", Instruction{Op: OP_BSI, Long: true, Displacement: 0x40}, Code{Word: 0x4400, Immediates: []uint16{0x0040}}, "BSI L 0x0040"},
		{"bsi_short", Instruction{Op: OP_BSI, Displacement: 0x40}, Code{Word: 0x4040}, "BSI 0 64"},
	}

	for _, entry := range table {
		code := entry.inst.Code()
		assert.Equal(entry.code, code, entry.name)
		assert.Equal(entry.inst.Length(), 1+code.ImmediateNeed(), entry.name)
		assert.Equal(entry.text, entry.inst.String(), entry.name)

		inst, err := code.Decode()
		if assert.NoError(err, entry.name) {
			assert.Equal(entry.inst, inst, entry.name)
		}
	}
}

func TestCode_DecodeInvalid(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name string
		code Code
	}){
		{"zero", Code{Word: 0x0000}},
		{"field_00100", Code{Word: 0x2000}},
		{"field_11111", Code{Word: 0xF800}},
		{"shift_long", Code{Word: 0x1400}},
		{"shift_subop", Code{Word: 0x1040}},
		{"wait_bits", Code{Word: 0x3001}},
		{"wait_long", Code{Word: 0x3400}},
		{"bsc_short_bosc", Code{Word: 0x4840}},
		{"bsc_short_tag", Code{Word: 0x4900}},
		{"ld_long_bosc", Code{Word: 0xC440, Immediates: []uint16{0x100}}},
		{"ld_long_cond", Code{Word: 0xC401, Immediates: []uint16{0x100}}},
	}

	for _, entry := range table {
		_, err := entry.code.Decode()
		assert.ErrorIs(err, ErrInvalidOpcode, entry.name)
		assert.True(errors.Is(err, ErrOpcode{}), entry.name)
	}

	_, err := Code{Word: 0xC400}.Decode()
	assert.ErrorIs(err, ErrOpcodeImm)
}

func TestCode_ImmediateNeed(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(1, Code{Word: 0xC400}.ImmediateNeed())
	assert.Equal(1, Code{Word: 0x4C00}.ImmediateNeed())
	assert.Equal(0, Code{Word: 0xC000}.ImmediateNeed())
	assert.Equal(0, Code{Word: 0x1400}.ImmediateNeed())
	assert.Equal(0, Code{Word: 0x3400}.ImmediateNeed())
	assert.Equal(0, Code{Word: 0xFC00}.ImmediateNeed())
}

func TestInstruction_Mode(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(MODE_DIRECT, Instruction{Op: OP_LD}.Mode())
	assert.Equal(MODE_INDEXED, Instruction{Op: OP_LD, Tag: TAG_XR3}.Mode())
	assert.Equal(MODE_INDIRECT, Instruction{Op: OP_LD, Long: true, Indirect: true}.Mode())
	assert.Equal(MODE_INDEXED_INDIRECT, Instruction{Op: OP_STO, Long: true, Indirect: true, Tag: TAG_XR1}.Mode())

	// The LDX/STX tag names the register, not an index.
	assert.Equal(MODE_DIRECT, Instruction{Op: OP_LDX, Tag: TAG_XR2}.Mode())
	assert.Equal(MODE_INDIRECT, Instruction{Op: OP_STX, Long: true, Indirect: true, Tag: TAG_XR2}.Mode())

	assert.Equal("indexed-indirect", MODE_INDEXED_INDIRECT.String())
}

func TestCodeCond_String(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("", CodeCond(0).String())
	assert.Equal("ZC", (COND_ZERO | COND_CARRY).String())
	assert.Equal("Z-+ECO", CodeCond(0x3f).String())
}

func TestCodeOp_String(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("NOP", OP_NOP.String())
	assert.Equal("STX", OP_STX.String())
	assert.Equal("WAIT", OP_WAIT.String())
	assert.Equal("CodeOp(99)", CodeOp(99).String())

	assert.True(OP_BSI.Reference())
	assert.False(OP_SLA.Reference())
	assert.False(OP_WAIT.Reference())
}
