package challenge

import (
	"slices"
)

var catalog = []Challenge{
	{
		Id:    "load",
		Title: "Load a Value",
		Description: "Load the value at address 0x100 into the accumulator, then halt.\n" +
			"The value 25 is already stored there.",
		Difficulty: DIFFICULTY_BEGINNER,
		Tests: []TestCase{
			{
				Name:      "acc is 25",
				Memory:    []Cell{{0x100, 25}},
				Registers: map[string]int{"acc": 25},
				Check:     "halted",
			},
		},
		MaxCycles:       100,
		MaxInstructions: 10,
		Hints: []string{
			"LD copies a core word into the accumulator.",
			"0x100 is beyond a short displacement: use the long form, LD L 0x100.",
			"End with WAIT.",
		},
		Objectives: []string{
			"Use the LD instruction.",
			"Use long direct addressing.",
		},
	},
	{
		Id:    "add",
		Title: "Add Two Numbers",
		Description: "Add the words at 0x100 and 0x101 and store the sum at 0x102.\n" +
			"They hold 15 and 27.",
		Difficulty: DIFFICULTY_BEGINNER,
		Tests: []TestCase{
			{
				Name:   "15 + 27",
				Memory: []Cell{{0x100, 15}, {0x101, 27}},
				Expect: []Cell{{0x102, 42}},
			},
			{
				Name:   "-1 + 1",
				Memory: []Cell{{0x100, -1}, {0x101, 1}},
				Expect: []Cell{{0x102, 0}},
				Check:  "carry",
			},
		},
		MaxCycles:       200,
		MaxInstructions: 20,
		Hints: []string{
			"Load the first value with LD.",
			"Add the second with A.",
			"Store the accumulator with STO.",
		},
		Objectives: []string{
			"Chain instructions.",
			"Add with A and store with STO.",
		},
	},
	{
		Id:    "index",
		Title: "Use an Index Register",
		Description: "Set XR1 to 5, then load the word at 0x100 + XR1 into the accumulator.\n" +
			"Address 0x105 holds 100.",
		Difficulty: DIFFICULTY_BEGINNER,
		Tests: []TestCase{
			{
				Name:      "indexed load",
				Memory:    []Cell{{0x105, 100}},
				Registers: map[string]int{"acc": 100, "xr1": 5},
			},
		},
		MaxCycles:       200,
		MaxInstructions: 15,
		Hints: []string{
			"LDX loads an index register from core: keep a DATA 5 word in your program.",
			"LD L1 0x100 adds XR1 to 0x100.",
			"XR1 is also core word 1.",
		},
		Objectives: []string{
			"Use the index registers.",
			"Use indexed addressing.",
		},
	},
	{
		Id:    "abs",
		Title: "Absolute Value",
		Description: "Store the absolute value of the signed word at 0x100 into 0x101.",
		Difficulty:  DIFFICULTY_INTERMEDIATE,
		Tests: []TestCase{
			{
				Name:   "negative",
				Memory: []Cell{{0x100, -7}},
				Expect: []Cell{{0x101, 7}},
			},
			{
				Name:   "positive",
				Memory: []Cell{{0x100, 9}},
				Expect: []Cell{{0x101, 9}},
			},
			{
				Name:   "zero",
				Memory: []Cell{{0x100, 0}},
				Expect: []Cell{{0x101, 0}},
			},
		},
		MaxCycles:       200,
		MaxInstructions: 10,
		Hints: []string{
			"BSC L addr,Z+ branches when the accumulator is zero or positive.",
			"Negate by subtracting the value from a zero word.",
		},
		Objectives: []string{
			"Test the accumulator with conditions.",
			"Branch with BSC.",
		},
	},
	{
		Id:    "sum",
		Title: "Sum a Table",
		Description: "Address 0x100 holds a count N, followed by N signed words.\n" +
			"Store their sum at 0x120.",
		Difficulty: DIFFICULTY_ADVANCED,
		Tests: []TestCase{
			{
				Name:   "four values",
				Memory: []Cell{{0x100, 4}, {0x101, 1}, {0x102, 2}, {0x103, 3}, {0x104, 4}},
				Expect: []Cell{{0x120, 10}},
			},
			{
				Name:   "empty",
				Memory: []Cell{{0x100, 0}, {0x120, 99}},
				Expect: []Cell{{0x120, 0}},
			},
			{
				Name:   "signed",
				Memory: []Cell{{0x100, 3}, {0x101, -1}, {0x102, 5}, {0x103, 7}},
				Expect: []Cell{{0x120, 11}},
				Check:  "mem[0x120] == mem[0x101] + mem[0x102] + mem[0x103] - 0x10000",
			},
		},
		MaxCycles:       2000,
		MaxInstructions: 200,
		Hints: []string{
			"Keep the count in XR1 and add the word at 0x100 + XR1.",
			"STX and LDX move XR1 through core, so it can be decremented with S.",
			"Test the count with BSC before adding.",
		},
		Objectives: []string{
			"Write a loop.",
			"Combine index registers and branches.",
		},
	},
}

// All returns the built-in challenges.
func All() (list []Challenge) {
	list = slices.Clone(catalog)
	return
}

// Lookup returns the built-in challenge with the identifier id.
func Lookup(id string) (ch *Challenge, err error) {
	n := slices.IndexFunc(catalog, func(entry Challenge) bool {
		return entry.Id == id
	})
	if n < 0 {
		err = ErrChallenge(id)
		return
	}

	entry := catalog[n]
	ch = &entry
	return
}
