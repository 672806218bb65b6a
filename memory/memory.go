// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package memory is the core storage of the IBM 1130: a flat array of
// 16-bit words. The index registers and the interrupt vectors are not
// separate storage, they are fixed cells of the same array.
package memory

import (
	"fmt"
	"iter"
	"log"
	"maps"
)

// Memory layout.
const (
	SIZE          = 4096 // Number of 16-bit words of core.
	ADDR_TRAP     = 0    // Trap (safety) cell.
	ADDR_XR1      = 1    // Index register 1.
	ADDR_XR2      = 2    // Index register 2.
	ADDR_XR3      = 3    // Index register 3.
	ADDR_VECTOR   = 8    // Interrupt level 0 vector; levels 1-5 follow.
	VECTORS       = 6    // Number of interrupt levels.
	PROGRAM_START = 0x10 // First cell after the reserved area.
)

var _memory_defines = map[string]int{
	"CORE_SIZE":     SIZE,
	"TRAP":          ADDR_TRAP,
	"XR1":           ADDR_XR1,
	"XR2":           ADDR_XR2,
	"XR3":           ADDR_XR3,
	"VECTOR0":       ADDR_VECTOR + 0,
	"VECTOR1":       ADDR_VECTOR + 1,
	"VECTOR2":       ADDR_VECTOR + 2,
	"VECTOR3":       ADDR_VECTOR + 3,
	"VECTOR4":       ADDR_VECTOR + 4,
	"VECTOR5":       ADDR_VECTOR + 5,
	"PROGRAM_START": PROGRAM_START,
}

// Memory is the core storage.
type Memory struct {
	Verbose bool         // Set to log every write.
	Word    [SIZE]uint16 // Core words.
}

// Valid returns true if addr names a core word.
func Valid(addr int) bool {
	return addr >= 0 && addr < SIZE
}

// Defines returns the symbolic names of the reserved cells.
func (mem *Memory) Defines() iter.Seq2[string, int] {
	return maps.All(_memory_defines)
}

// Read a word.
func (mem *Memory) Read(addr int) (value uint16, err error) {
	if !Valid(addr) {
		err = ErrAddress(addr)
		return
	}

	value = mem.Word[addr]
	return
}

// Write a word, truncating value to 16 bits.
func (mem *Memory) Write(addr int, value int) (err error) {
	if !Valid(addr) {
		err = ErrAddress(addr)
		return
	}

	if mem.Verbose {
		log.Printf("memory: 0x%03x: 0x%04x -> 0x%04x", addr, mem.Word[addr], uint16(value))
	}

	mem.Word[addr] = uint16(value)
	return
}

// Load copies data into core starting at start.
// Nothing is written if any word would land outside of core.
func (mem *Memory) Load(start int, data []uint16) (err error) {
	if !Valid(start) {
		err = ErrAddress(start)
		return
	}
	if end := start + len(data); end > SIZE {
		err = ErrAddress(end - 1)
		return
	}

	if mem.Verbose {
		log.Printf("memory: load 0x%03x..0x%03x", start, start+len(data))
	}

	copy(mem.Word[start:], data)
	return
}

// Slice returns a copy of count words starting at start.
func (mem *Memory) Slice(start int, count int) (data []uint16, err error) {
	if !Valid(start) || count < 0 || start+count > SIZE {
		err = ErrAddress(start)
		return
	}

	data = make([]uint16, count)
	copy(data, mem.Word[start:start+count])
	return
}

// Clear zeroes all of core.
func (mem *Memory) Clear() {
	if mem.Verbose {
		log.Printf("memory: clear")
	}

	clear(mem.Word[:])
}

// Index reads index register xr, which must be 1-3.
// Any other xr is a programming error, and panics.
func (mem *Memory) Index(xr int) uint16 {
	return mem.Word[indexAddress(xr)]
}

// SetIndex writes index register xr, which must be 1-3.
// Any other xr panics.
func (mem *Memory) SetIndex(xr int, value uint16) {
	mem.Word[indexAddress(xr)] = value
}

func indexAddress(xr int) int {
	if xr < 1 || xr > 3 {
		panic(fmt.Sprintf("memory: no index register %d", xr))
	}
	return ADDR_XR1 + xr - 1
}

// Vector reads the interrupt vector cell of a level (0-5).
func (mem *Memory) Vector(level int) (value uint16, err error) {
	if level < 0 || level >= VECTORS {
		err = ErrLevel(level)
		return
	}

	value = mem.Word[ADDR_VECTOR+level]
	return
}

// SetVector writes the interrupt vector cell of a level (0-5).
func (mem *Memory) SetVector(level int, value uint16) (err error) {
	if level < 0 || level >= VECTORS {
		err = ErrLevel(level)
		return
	}

	mem.Word[ADDR_VECTOR+level] = value
	return
}
