package cpu

import (
	"fmt"
	"io"
	"iter"
	"maps"

	"github.com/ezrec/ibm1130/internal"
	"github.com/ezrec/ibm1130/memory"
)

// Opcode is an assembled source line.
type Opcode struct {
	LineNo  int      // Source line number.
	Address int      // Address of the first word.
	Source  string   // Source text.
	Words   []uint16 // Emitted words.
}

// Program is an assembled program.
type Program struct {
	Entry   int            // Start address given to the assembler.
	Opcodes []Opcode       // Emitting lines, in source order.
	Symbols map[string]int // Labels and equates.
}

// Debug is the source of an address.
type Debug struct {
	*Opcode
	Index int // Word index within the opcode.
}

// Debug returns the source line that emitted addr, if any.
func (prog *Program) Debug(addr int) (dbg Debug) {
	for n, op := range prog.Opcodes {
		if addr >= op.Address && addr < op.Address+len(op.Words) {
			dbg = Debug{
				Opcode: &prog.Opcodes[n],
				Index:  addr - op.Address,
			}
			break
		}
	}

	return
}

// Words iterates the (address, word) pairs of the program.
func (prog *Program) Words() iter.Seq2[int, uint16] {
	return func(yield func(addr int, word uint16) bool) {
		for _, op := range prog.Opcodes {
			for n, word := range op.Words {
				if !yield(op.Address+n, word) {
					return
				}
			}
		}
	}
}

// Segments iterates the runs of contiguous words of the program.
func (prog *Program) Segments() iter.Seq2[int, []uint16] {
	return func(yield func(start int, words []uint16) bool) {
		start := -1
		var words []uint16
		for addr, word := range prog.Words() {
			if start >= 0 && addr != start+len(words) {
				if !yield(start, words) {
					return
				}
				start = -1
				words = nil
			}
			if start < 0 {
				start = addr
			}
			words = append(words, word)
		}
		if start >= 0 {
			yield(start, words)
		}
	}
}

// Len returns the number of words of the program.
func (prog *Program) Len() (count int) {
	for _, op := range prog.Opcodes {
		count += len(op.Words)
	}
	return
}

// Load writes the program into core.
func (prog *Program) Load(mem *memory.Memory) (err error) {
	for start, words := range prog.Segments() {
		err = mem.Load(start, words)
		if err != nil {
			return
		}
	}
	return
}

// Listing writes the assembly listing: address, words, line and source,
// followed by the symbol table.
func (prog *Program) Listing(w io.Writer) (err error) {
	for _, op := range prog.Opcodes {
		for n := 0; n < len(op.Words); n += 2 {
			words := fmt.Sprintf("%04X     ", op.Words[n])
			if n+1 < len(op.Words) {
				words = fmt.Sprintf("%04X %04X", op.Words[n], op.Words[n+1])
			}
			text := op.Source
			if n > 0 {
				text = ""
			}
			_, err = fmt.Fprintf(w, "%03X  %s  %4d  %s\n", op.Address+n, words, op.LineNo, text)
			if err != nil {
				return
			}
		}
	}

	if len(prog.Symbols) == 0 {
		return
	}

	_, err = fmt.Fprintln(w)
	if err != nil {
		return
	}
	for name, value := range internal.Sorted2(maps.All(prog.Symbols)) {
		_, err = fmt.Fprintf(w, "%-12s %04X\n", name, uint16(value))
		if err != nil {
			return
		}
	}

	return
}
