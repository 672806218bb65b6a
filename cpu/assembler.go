// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bufio"
	"errors"
	"io"
	"log"
	"maps"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ezrec/ibm1130/memory"
)

// Short format displacement ranges.
const (
	SHORT_DIRECT_MIN  = 0
	SHORT_DIRECT_MAX  = 127
	SHORT_INDEXED_MIN = -128
	SHORT_INDEXED_MAX = 127
	SHIFT_COUNT_MAX   = 63
	DATA_MIN          = -32768
	DATA_MAX          = 0xffff
)

// Memory reference mnemonics.
var referenceMap = map[string]CodeOp{
	"LD":  OP_LD,
	"STO": OP_STO,
	"A":   OP_A,
	"S":   OP_S,
	"AND": OP_AND,
	"OR":  OP_OR,
	"LDX": OP_LDX,
	"STX": OP_STX,
	"BSI": OP_BSI,
}

// Extended branch mnemonics, all long format BSC.
var branchMap = map[string]CodeCond{
	"B":   0,
	"BZ":  COND_ZERO,
	"BNZ": COND_MINUS | COND_PLUS,
	"BP":  COND_PLUS,
	"BNP": COND_ZERO | COND_MINUS,
	"BN":  COND_MINUS,
	"BNN": COND_ZERO | COND_PLUS,
	"BC":  COND_CARRY,
	"BO":  COND_OVERFLOW,
}

var shiftMap = map[string]CodeOp{
	"SLA": OP_SLA,
	"SRA": OP_SRA,
}

// Condition aliases, as whole words.
var condAlias = map[string]CodeCond{
	"P":  COND_PLUS,
	"N":  COND_MINUS,
	"V":  COND_OVERFLOW,
	"NZ": COND_MINUS | COND_PLUS,
}

type stmtKind int

const (
	STMT_INSTRUCTION = stmtKind(iota)
	STMT_DATA
)

type source struct {
	lineNo int
	line   string
}

// statement is an emitting source line, as laid out by the first pass.
type statement struct {
	source
	kind    stmtKind
	address int
	inst    Instruction // Operation and format; the operand is filled in later.
	operand *Token      // Address, displacement or shift count.
	values  []Token     // DATA values.
}

// Assembler is a two pass assembler for the IBM 1130.
type Assembler struct {
	Verbose bool           // If set, verbosely logs the assembler actions.
	Label   map[string]int // Labels and equates of the last source.

	predefine map[string]int
	diags     ErrDiagnostics
}

// Predefine defines a symbol visible to every source.
func (asm *Assembler) Predefine(name string, value int) {
	if asm.predefine == nil {
		asm.predefine = map[string]int{name: value}
	} else {
		asm.predefine[name] = value
	}
}

// lookup returns the value of a symbol.
func (asm *Assembler) lookup(name string) (value int, ok bool) {
	value, ok = asm.Label[name]
	if ok {
		return
	}
	value, ok = asm.predefine[name]
	return
}

// diag records a diagnostic.
func (asm *Assembler) diag(src source, column int, err error) {
	if asm.Verbose {
		log.Printf("asm: %v:%v: %v", src.lineNo, column, err)
	}
	asm.diags = append(asm.diags, &ErrSyntax{LineNo: src.lineNo, Column: column, Line: src.line, Err: err})
}

// parenEval does $(...) evaluations. Until final, an expression naming an
// undefined symbol is reported as unknown rather than as an error.
func (asm *Assembler) parenEval(expr string, lineno int, here int, final bool) (value int, known bool, err error) {
	opts := syntax.FileOptions{}

	pred := starlark.StringDict{}
	for key, val := range asm.predefine {
		pred[key] = starlark.MakeInt(val)
	}
	for key, val := range asm.Label {
		pred[key] = starlark.MakeInt(val)
	}
	pred["LINENO"] = starlark.MakeInt(lineno)
	pred["HERE"] = starlark.MakeInt(here)

	parsed, err := opts.ParseExpr("expr", expr, 0)
	if err != nil {
		err = ErrParseExpression(expr)
		return
	}

	var undefined string
	syntax.Walk(parsed, func(node syntax.Node) bool {
		ident, ok := node.(*syntax.Ident)
		if ok && len(undefined) == 0 && !pred.Has(ident.Name) && !starlark.Universe.Has(ident.Name) {
			undefined = ident.Name
		}
		return true
	})
	if len(undefined) != 0 {
		if final {
			err = ErrSymbolUndefined(undefined)
		}
		return
	}

	thread := starlark.Thread{Name: "expr"}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		err = errors.Join(ErrParseExpression(expr), err)
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}

	value = int(st_int64)
	known = true
	return
}

// value returns the value of an operand token: a number, an optionally
// negated symbol, or an expression.
func (asm *Assembler) value(tok Token, lineno int, here int, final bool) (value int, known bool, err error) {
	switch tok.Kind {
	case TOKEN_EXPR:
		return asm.parenEval(tok.Text, lineno, here, final)
	case TOKEN_WORD:
		// pass
	default:
		err = ErrParseNumber(tok.Text)
		return
	}

	value, nerr := ParseNumber(tok.Text)
	if nerr == nil {
		known = true
		return
	}

	name, negative := strings.CutPrefix(tok.Text, "-")
	if !IsSymbol(name) {
		err = nerr
		return
	}

	value, known = asm.lookup(name)
	if !known {
		if final {
			err = ErrSymbolUndefined(name)
		}
		return
	}
	if negative {
		value = -value
	}

	return
}

// ParseConditions parses a condition mask: letters from 'Z+-ECO', or one
// of the aliases P, N, V, NZ.
func ParseConditions(text string) (cond CodeCond, err error) {
	cond, ok := condAlias[text]
	if ok {
		return
	}

	if len(text) == 0 {
		err = ErrParseCondition(text)
		return
	}

	for _, r := range text {
		var bit CodeCond
		for _, cl := range condLetter {
			if rune(cl.letter) == r {
				bit = cl.cond
			}
		}
		if bit == 0 {
			cond = 0
			err = ErrParseCondition(text)
			return
		}
		cond |= bit
	}

	return
}

// parseField parses an '[L|I][0-3]' format and tag field.
func parseField(text string) (long bool, indirect bool, tag CodeTag, err error) {
	word := strings.ToUpper(text)
	switch {
	case strings.HasPrefix(word, "L"):
		long = true
		word = word[1:]
	case strings.HasPrefix(word, "I"):
		long = true
		indirect = true
		word = word[1:]
	}

	switch word {
	case "":
		if !long {
			err = ErrParseField(text)
		}
	case "0", "1", "2", "3":
		tag = CodeTag(word[0] - '0')
	default:
		err = ErrParseField(text)
	}

	return
}

// splitOperands splits the operand tokens on commas.
func splitOperands(tokens []Token) (groups [][]Token) {
	if len(tokens) == 0 {
		return
	}

	group := []Token{}
	for _, tok := range tokens {
		if tok.Kind == TOKEN_COMMA {
			groups = append(groups, group)
			group = []Token{}
			continue
		}
		group = append(group, tok)
	}
	groups = append(groups, group)

	return
}

// fitsShort returns true if value fits the short displacement of inst.
func fitsShort(inst Instruction, value int) bool {
	if inst.Mode() == MODE_INDEXED {
		return value >= SHORT_INDEXED_MIN && value <= SHORT_INDEXED_MAX
	}
	return value >= SHORT_DIRECT_MIN && value <= SHORT_DIRECT_MAX
}

// after returns the column just past a token.
func after(tok Token) int {
	return tok.Column + len(tok.Text)
}

// single returns the one operand of a directive.
func (asm *Assembler) single(src source, mnemonic Token, groups [][]Token) (tok *Token, ok bool) {
	switch {
	case len(groups) == 0 || len(groups[0]) == 0:
		asm.diag(src, after(mnemonic), errors.Join(ErrMalformedDirective, ErrOperandMissing))
	case len(groups) > 1 || len(groups[0]) > 1:
		column := after(mnemonic)
		if len(groups[0]) > 1 {
			column = groups[0][1].Column
		}
		asm.diag(src, column, errors.Join(ErrMalformedDirective, ErrOperandExtra))
	default:
		tok = &groups[0][0]
		ok = true
	}
	return
}

// known evaluates a directive operand that must be defined by now.
func (asm *Assembler) known(src source, tok *Token, here int) (value int, ok bool) {
	value, _, err := asm.value(*tok, src.lineNo, here, true)
	if err != nil {
		asm.diag(src, tok.Column, err)
		return
	}
	ok = true
	return
}

// reference parses '[FT] operand[,conditions]'.
func (asm *Assembler) reference(src source, mnemonic Token, groups [][]Token, conds bool) (inst Instruction, operand *Token, ok bool) {
	if len(groups) == 0 || len(groups[0]) == 0 {
		asm.diag(src, after(mnemonic), ErrOperandMissing)
		return
	}

	fields := groups[0]
	switch len(fields) {
	case 1:
		operand = &fields[0]
	case 2:
		var err error
		inst.Long, inst.Indirect, inst.Tag, err = parseField(fields[0].Text)
		if err != nil {
			asm.diag(src, fields[0].Column, err)
			return
		}
		operand = &fields[1]
	default:
		asm.diag(src, fields[2].Column, ErrOperandExtra)
		return
	}

	if len(groups) > 1 {
		group := groups[1]
		switch {
		case !conds || len(groups) > 2:
			asm.diag(src, after(*operand), ErrOperandExtra)
			return
		case len(group) == 0:
			asm.diag(src, after(*operand), ErrOperandMissing)
			return
		case len(group) > 1:
			asm.diag(src, group[1].Column, ErrOperandExtra)
			return
		}
		cond, err := ParseConditions(group[0].Text)
		if err != nil {
			asm.diag(src, group[0].Column, err)
			return
		}
		inst.Conditions = cond
		inst.Long = true
	}

	ok = true
	return
}

// branch parses the operands of BSC.
func (asm *Assembler) branch(src source, mnemonic Token, groups [][]Token) (inst Instruction, operand *Token, ok bool) {
	inst.Op = OP_BSC

	// BSC
	if len(groups) == 0 {
		ok = true
		return
	}

	// BSC conds
	fields := groups[0]
	if len(groups) == 1 && len(fields) == 1 && fields[0].Kind == TOKEN_WORD {
		cond, err := ParseConditions(fields[0].Text)
		if err == nil {
			inst.Conditions = cond
			ok = true
			return
		}
	}

	// BSC conds addr
	if len(fields) == 2 && fields[0].Kind == TOKEN_WORD {
		cond, err := ParseConditions(fields[0].Text)
		if err == nil {
			if len(groups) > 1 {
				asm.diag(src, after(fields[1]), ErrOperandExtra)
				return
			}
			inst.Long = true
			inst.Conditions = cond
			operand = &fields[1]
			ok = true
			return
		}
	}

	// BSC [FT] addr[,conds]
	inst, operand, ok = asm.reference(src, mnemonic, groups, true)
	inst.Op = OP_BSC
	inst.Long = true
	return
}

// pass1 lays out one source line, defining its labels.
func (asm *Assembler) pass1(src source, here *int) (stmt *statement) {
	tokens, err := Lex(src.line)
	if err != nil {
		var et *ErrToken
		if errors.As(err, &et) {
			asm.diag(src, et.Column, et.Err)
		} else {
			asm.diag(src, 1, err)
		}
		return
	}

	if len(tokens) == 0 {
		return
	}

	var label *Token
	if tokens[0].Kind == TOKEN_LABEL {
		label = &tokens[0]
		tokens = tokens[1:]
		if !IsSymbol(label.Text) {
			asm.diag(src, label.Column, ErrLabelInvalid)
			label = nil
		}
	}

	define := func(value int) {
		if label == nil {
			return
		}
		_, dup := asm.Label[label.Text]
		if dup {
			asm.diag(src, label.Column, ErrLabelDuplicated(label.Text))
			return
		}
		asm.Label[label.Text] = value
	}

	if len(tokens) == 0 {
		define(*here)
		return
	}

	mnemonic := tokens[0]
	name := strings.ToUpper(mnemonic.Text)
	groups := splitOperands(tokens[1:])

	var inst Instruction
	var operand *Token
	ok := false

	switch name {
	case "EQU":
		if label == nil {
			asm.diag(src, mnemonic.Column, errors.Join(ErrMalformedDirective, ErrLabelInvalid))
			return
		}
		tok, ok := asm.single(src, mnemonic, groups)
		if !ok {
			return
		}
		value, ok := asm.known(src, tok, *here)
		if ok {
			define(value)
		}
		return
	case "ORG":
		tok, ok := asm.single(src, mnemonic, groups)
		if ok {
			value, ok := asm.known(src, tok, *here)
			switch {
			case !ok:
			case !memory.Valid(value):
				asm.diag(src, tok.Column, ErrRange{Value: value, Min: 0, Max: memory.SIZE - 1})
			default:
				*here = value
			}
		}
		define(*here)
		return
	case "BSS":
		define(*here)
		tok, ok := asm.single(src, mnemonic, groups)
		if !ok {
			return
		}
		value, ok := asm.known(src, tok, *here)
		if !ok {
			return
		}
		if value < 0 || *here+value > memory.SIZE {
			asm.diag(src, tok.Column, ErrRange{Value: value, Min: 0, Max: memory.SIZE - *here})
			return
		}
		*here += value
		return
	case "DATA":
		define(*here)
		stmt = &statement{source: src, kind: STMT_DATA, address: *here}
		if len(groups) == 0 {
			asm.diag(src, after(mnemonic), errors.Join(ErrMalformedDirective, ErrOperandMissing))
			return nil
		}
		for _, group := range groups {
			switch len(group) {
			case 0:
				asm.diag(src, after(mnemonic), errors.Join(ErrMalformedDirective, ErrOperandMissing))
				return nil
			case 1:
				stmt.values = append(stmt.values, group[0])
			default:
				asm.diag(src, group[1].Column, errors.Join(ErrMalformedDirective, ErrOperandExtra))
				return nil
			}
		}
		return asm.place(src, mnemonic, stmt, len(stmt.values), here)
	}

	define(*here)

	if mnemonic.Kind != TOKEN_WORD {
		asm.diag(src, mnemonic.Column, ErrMnemonic(mnemonic.Text))
		return
	}

	if op, found := referenceMap[name]; found {
		inst, operand, ok = asm.reference(src, mnemonic, groups, op == OP_BSI)
		inst.Op = op
	} else if cond, found := branchMap[name]; found {
		inst, operand, ok = asm.reference(src, mnemonic, groups, false)
		inst.Op = OP_BSC
		inst.Long = true
		inst.Conditions = cond
	} else if op, found := shiftMap[name]; found {
		inst.Op = op
		switch {
		case len(groups) == 0 || len(groups[0]) == 0:
			asm.diag(src, after(mnemonic), ErrOperandMissing)
		case len(groups) > 1:
			asm.diag(src, after(groups[0][len(groups[0])-1]), ErrOperandExtra)
		case len(groups[0]) > 2:
			asm.diag(src, groups[0][2].Column, ErrOperandExtra)
		case len(groups[0]) == 2:
			var err error
			var long bool
			long, _, inst.Tag, err = parseField(groups[0][0].Text)
			if err != nil || long {
				asm.diag(src, groups[0][0].Column, ErrParseField(groups[0][0].Text))
				break
			}
			operand = &groups[0][1]
			ok = true
		default:
			operand = &groups[0][0]
			ok = true
		}
	} else {
		switch name {
		case "BSC":
			inst, operand, ok = asm.branch(src, mnemonic, groups)
		case "SKP":
			switch {
			case len(groups) == 0 || len(groups[0]) == 0:
				asm.diag(src, after(mnemonic), ErrOperandMissing)
			case len(groups) > 1 || len(groups[0]) > 1:
				asm.diag(src, after(groups[0][0]), ErrOperandExtra)
			default:
				cond, err := ParseConditions(groups[0][0].Text)
				if err != nil {
					asm.diag(src, groups[0][0].Column, err)
					break
				}
				inst = Instruction{Op: OP_BSC, Conditions: cond}
				ok = true
			}
		case "WAIT", "NOP":
			inst.Op = OP_WAIT
			if name == "NOP" {
				inst.Op = OP_NOP
			}
			if len(groups) > 0 {
				asm.diag(src, after(mnemonic), ErrOperandExtra)
				break
			}
			ok = true
		default:
			asm.diag(src, mnemonic.Column, ErrMnemonic(mnemonic.Text))
		}
	}

	if !ok {
		return
	}

	// The format is fixed here, so that addresses do not move in pass 2.
	if inst.Op.Reference() && !inst.Long && inst.Op != OP_BSC {
		value, known, err := asm.value(*operand, src.lineNo, *here, false)
		inst.Long = err != nil || !known || !fitsShort(inst, value)
	}

	stmt = &statement{source: src, kind: STMT_INSTRUCTION, address: *here, inst: inst, operand: operand}
	return asm.place(src, mnemonic, stmt, inst.Length(), here)
}

// place advances the location counter past a statement of length words.
func (asm *Assembler) place(src source, mnemonic Token, stmt *statement, length int, here *int) *statement {
	start := *here
	*here += length
	if start+length > memory.SIZE {
		asm.diag(src, mnemonic.Column, ErrRange{Value: start + length - 1, Min: 0, Max: memory.SIZE - 1})
		return nil
	}
	return stmt
}

// pass2 resolves and encodes a statement.
func (asm *Assembler) pass2(stmt *statement) (opcode Opcode, ok bool) {
	src := stmt.source

	resolve := func(tok Token, min, max int) (value int, ok bool) {
		value, _, err := asm.value(tok, src.lineNo, stmt.address, true)
		if err != nil {
			asm.diag(src, tok.Column, err)
			return
		}
		if value < min || value > max {
			asm.diag(src, tok.Column, ErrRange{Value: value, Min: min, Max: max})
			return
		}
		ok = true
		return
	}

	var words []uint16
	switch stmt.kind {
	case STMT_DATA:
		failed := false
		for _, tok := range stmt.values {
			value, ok := resolve(tok, DATA_MIN, DATA_MAX)
			if !ok {
				failed = true
				continue
			}
			words = append(words, uint16(value))
		}
		if failed {
			return
		}
	case STMT_INSTRUCTION:
		inst := stmt.inst
		if stmt.operand != nil {
			var value int
			var resolved bool
			switch {
			case inst.Op == OP_SLA || inst.Op == OP_SRA:
				value, resolved = resolve(*stmt.operand, 0, SHIFT_COUNT_MAX)
				inst.Count = value
			case !inst.Long && inst.Mode() == MODE_INDEXED:
				value, resolved = resolve(*stmt.operand, SHORT_INDEXED_MIN, SHORT_INDEXED_MAX)
				inst.Displacement = value
			case !inst.Long:
				value, resolved = resolve(*stmt.operand, SHORT_DIRECT_MIN, SHORT_DIRECT_MAX)
				inst.Displacement = value
			case inst.Mode() == MODE_DIRECT:
				value, resolved = resolve(*stmt.operand, 0, memory.SIZE-1)
				inst.Displacement = value
			default:
				value, resolved = resolve(*stmt.operand, DATA_MIN, DATA_MAX)
				inst.Displacement = int(uint16(value))
			}
			if !resolved {
				return
			}
		}
		code := inst.Code()
		words = append([]uint16{code.Word}, code.Immediates...)
	}

	opcode = Opcode{
		LineNo:  src.lineNo,
		Address: stmt.address,
		Source:  strings.TrimSpace(src.line),
		Words:   words,
	}
	ok = true
	return
}

// Parse assembles a source stream into a Program, placed at start unless
// the source sets the location with ORG. Every diagnostic found is
// returned, ordered by line and column, as ErrDiagnostics.
func (asm *Assembler) Parse(input io.Reader, start int) (prog *Program, err error) {
	asm.diags = nil
	asm.Label = make(map[string]int)

	if !memory.Valid(start) {
		asm.diag(source{}, 0, ErrRange{Value: start, Min: 0, Max: memory.SIZE - 1})
		err = asm.diags
		return
	}

	var stmts []*statement
	here := start

	scanner := bufio.NewScanner(input)
	lineno := 0
	for scanner.Scan() {
		lineno++
		src := source{lineNo: lineno, line: scanner.Text()}

		if asm.Verbose {
			log.Printf("asm: %v: %v", src.lineNo, src.line)
		}

		stmt := asm.pass1(src, &here)
		if stmt == nil {
			continue
		}
		stmts = append(stmts, stmt)
	}
	err = scanner.Err()
	if err != nil {
		return
	}

	prog = &Program{
		Entry:   start,
		Symbols: maps.Clone(asm.Label),
	}

	for _, stmt := range stmts {
		opcode, ok := asm.pass2(stmt)
		if ok {
			prog.Opcodes = append(prog.Opcodes, opcode)
		}
	}

	if len(asm.diags) != 0 {
		asm.diags.sort()
		prog = nil
		err = asm.diags
		return
	}

	return
}
