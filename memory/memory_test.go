package memory

import (
	"errors"
	"maps"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemory_ReadWrite(t *testing.T) {
	assert := assert.New(t)

	mem := &Memory{}

	table := [](struct {
		addr     int
		value    int
		expected uint16
	}){
		{0, 0x1234, 0x1234},
		{0x10, -1, 0xffff},
		{0x7ff, 0x12345, 0x2345},
		{SIZE - 1, 0x8000, 0x8000},
		{100, -32768, 0x8000},
	}

	for _, entry := range table {
		err := mem.Write(entry.addr, entry.value)
		assert.NoError(err)
		value, err := mem.Read(entry.addr)
		assert.NoError(err)
		assert.Equal(entry.expected, value, "addr 0x%03x", entry.addr)
	}
}

func TestMemory_OutOfRange(t *testing.T) {
	assert := assert.New(t)

	mem := &Memory{}

	for _, addr := range []int{-1, SIZE, SIZE + 100, 0x10000} {
		_, err := mem.Read(addr)
		assert.ErrorIs(err, ErrAddressOutOfRange)
		assert.Equal(ErrAddress(addr), err)

		err = mem.Write(addr, 1)
		assert.ErrorIs(err, ErrAddressOutOfRange)
	}
}

func TestMemory_Load(t *testing.T) {
	assert := assert.New(t)

	mem := &Memory{}

	err := mem.Load(PROGRAM_START, []uint16{0x1234, 0x5678, 0x9abc})
	assert.NoError(err)
	assert.Equal(uint16(0x1234), mem.Word[PROGRAM_START])
	assert.Equal(uint16(0x5678), mem.Word[PROGRAM_START+1])
	assert.Equal(uint16(0x9abc), mem.Word[PROGRAM_START+2])

	// Exactly fills the end of core.
	err = mem.Load(SIZE-2, []uint16{1, 2})
	assert.NoError(err)
	assert.Equal(uint16(2), mem.Word[SIZE-1])

	// Overflows: nothing written.
	err = mem.Load(SIZE-2, []uint16{7, 8, 9})
	assert.ErrorIs(err, ErrAddressOutOfRange)
	assert.Equal(uint16(1), mem.Word[SIZE-2])

	err = mem.Load(0, make([]uint16, SIZE+1))
	assert.ErrorIs(err, ErrAddressOutOfRange)

	err = mem.Load(-1, []uint16{1})
	assert.ErrorIs(err, ErrAddressOutOfRange)

	// Empty load at a valid address is fine.
	err = mem.Load(0x20, nil)
	assert.NoError(err)
}

func TestMemory_IndexAlias(t *testing.T) {
	assert := assert.New(t)

	mem := &Memory{}

	for xr := 1; xr <= 3; xr++ {
		err := mem.Write(xr, 0x100+xr)
		assert.NoError(err)
		assert.Equal(uint16(0x100+xr), mem.Index(xr))

		mem.SetIndex(xr, uint16(0xf00+xr))
		value, err := mem.Read(xr)
		assert.NoError(err)
		assert.Equal(uint16(0xf00+xr), value)
	}

	assert.Panics(func() { mem.Index(0) })
	assert.Panics(func() { mem.SetIndex(4, 0) })
}

func TestMemory_Vector(t *testing.T) {
	assert := assert.New(t)

	mem := &Memory{}

	for level := range VECTORS {
		err := mem.SetVector(level, uint16(0x200+level))
		assert.NoError(err)
		assert.Equal(uint16(0x200+level), mem.Word[ADDR_VECTOR+level])
		value, err := mem.Vector(level)
		assert.NoError(err)
		assert.Equal(uint16(0x200+level), value)
	}

	_, err := mem.Vector(VECTORS)
	assert.True(errors.Is(err, ErrLevelInvalid))
	err = mem.SetVector(-1, 0)
	assert.True(errors.Is(err, ErrLevelInvalid))
}

func TestMemory_SliceClear(t *testing.T) {
	assert := assert.New(t)

	mem := &Memory{}
	assert.NoError(mem.Load(0x40, []uint16{1, 2, 3}))

	data, err := mem.Slice(0x40, 3)
	assert.NoError(err)
	assert.Equal([]uint16{1, 2, 3}, data)

	// Copy, not a view.
	data[0] = 99
	assert.Equal(uint16(1), mem.Word[0x40])

	_, err = mem.Slice(SIZE-1, 2)
	assert.ErrorIs(err, ErrAddressOutOfRange)

	mem.Clear()
	assert.Equal([SIZE]uint16{}, mem.Word)
}

func TestMemory_Defines(t *testing.T) {
	assert := assert.New(t)

	mem := &Memory{}
	defines := maps.Collect(mem.Defines())

	assert.Equal(ADDR_XR1, defines["XR1"])
	assert.Equal(ADDR_XR3, defines["XR3"])
	assert.Equal(PROGRAM_START, defines["PROGRAM_START"])
	assert.Equal(ADDR_VECTOR+5, defines["VECTOR5"])
}
