// Package cpu implements the processor and assembler of the IBM 1130.
//
// The CPU consists of the instruction address register (IAR), the
// accumulator (ACC) and its extension (EXT), the carry and overflow
// indicators, and three index registers (XR1-XR3) which live in core
// words 1-3. Instructions are one word (short format, with an 8-bit
// signed displacement) or two words (long format, with an address word),
// and may be indexed, indirect, or both.
//
// The word 0x1000 (SLA with a zero count and no tag) is the NOP. It
// decodes as OP_NOP, and so leaves the indicators alone; a shift of zero
// that must refresh them needs an index register tag.
//
// The assembler is a two pass assembler with labels, equates, ORG, DATA
// and BSS directives, and compile-time $(...) expressions.
package cpu
