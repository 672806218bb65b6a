package cpu

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ezrec/ibm1130/memory"
	"github.com/ezrec/ibm1130/translate"
)

var f = translate.From

var (
	// Cpu errors
	ErrAddressOutOfRange  = memory.ErrAddressOutOfRange
	ErrAlreadyHalted      = errors.New(f("cpu already halted"))
	ErrCycleLimitExceeded = errors.New(f("cycle limit exceeded"))
	ErrCycleLimitInvalid  = errors.New(f("cycle limit must be at least 1"))

	// Instruction decode errors
	ErrInvalidOpcode = errors.New(f("invalid opcode"))
	ErrOpcodeImm     = errors.New(f("address word missing"))

	// Assembler errors
	ErrUnknownMnemonic    = errors.New(f("unknown mnemonic"))
	ErrDuplicateLabel     = errors.New(f("label duplicated"))
	ErrUndefinedSymbol    = errors.New(f("symbol undefined"))
	ErrOperandOutOfRange  = errors.New(f("operand out of range"))
	ErrMalformedDirective = errors.New(f("malformed directive"))
	ErrOperandMissing     = errors.New(f("operand missing"))
	ErrOperandExtra       = errors.New(f("excessive operands"))
	ErrOperandInvalid     = errors.New(f("operand invalid"))
	ErrConditionInvalid   = errors.New(f("condition invalid"))
	ErrLabelInvalid       = errors.New(f("label invalid"))
)

// ErrOpcode is an instruction word that does not decode.
type ErrOpcode Code

func (eo ErrOpcode) Error() string {
	return f("bad opcode 0x%04x", eo.Word)
}

func (eo ErrOpcode) Is(err error) (ok bool) {
	if err == ErrInvalidOpcode {
		return true
	}
	_, ok = err.(ErrOpcode)
	return
}

// ErrFault is an execution fault, at the address of the faulting instruction.
type ErrFault struct {
	Iar uint16
	Err error
}

func (err *ErrFault) Error() string {
	return f("fault at 0x%03x: %v", err.Iar, err.Err)
}

func (err *ErrFault) Unwrap() error {
	return err.Err
}

// ErrCycleLimit is the instruction limit a run exhausted.
type ErrCycleLimit int

func (el ErrCycleLimit) Error() string {
	return f("cycle limit %v exceeded", fmt.Sprint(int(el)))
}

func (el ErrCycleLimit) Is(err error) bool {
	return err == ErrCycleLimitExceeded
}

// ErrMnemonic is an unknown mnemonic or directive.
type ErrMnemonic string

func (em ErrMnemonic) Error() string {
	return f("unknown mnemonic '%v'", string(em))
}

func (em ErrMnemonic) Is(err error) bool {
	return err == ErrUnknownMnemonic
}

// ErrLabelDuplicated is a label defined more than once.
type ErrLabelDuplicated string

func (el ErrLabelDuplicated) Error() string {
	return f("label %v duplicated", string(el))
}

func (el ErrLabelDuplicated) Is(err error) bool {
	return err == ErrDuplicateLabel
}

// ErrSymbolUndefined is a symbol that is never defined.
type ErrSymbolUndefined string

func (es ErrSymbolUndefined) Error() string {
	return f("symbol %v undefined", string(es))
}

func (es ErrSymbolUndefined) Is(err error) bool {
	return err == ErrUndefinedSymbol
}

// ErrRange is a value outside of what its field can hold.
type ErrRange struct {
	Value int
	Min   int
	Max   int
}

func (er ErrRange) Error() string {
	return f("value %v not in %v..%v", fmt.Sprint(er.Value), fmt.Sprint(er.Min), fmt.Sprint(er.Max))
}

func (er ErrRange) Is(err error) bool {
	return err == ErrOperandOutOfRange
}

// ErrParseNumber is an operand that is neither a number nor a symbol.
type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

func (err ErrParseNumber) Is(target error) bool {
	return target == ErrOperandInvalid
}

// ErrParseField is an invalid format and tag field.
type ErrParseField string

func (err ErrParseField) Error() string {
	return f("'%v' is not a format or tag", string(err))
}

func (err ErrParseField) Is(target error) bool {
	return target == ErrOperandInvalid
}

// ErrParseCondition is an unknown condition letter.
type ErrParseCondition string

func (err ErrParseCondition) Error() string {
	return f("'%v' is not a condition", string(err))
}

func (err ErrParseCondition) Is(target error) bool {
	return target == ErrConditionInvalid
}

// ErrParseExpression is a $(...) expression that does not evaluate.
type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}

func (err ErrParseExpression) Is(target error) bool {
	return target == ErrOperandInvalid
}

// ErrSyntax is a diagnostic at a source position.
type ErrSyntax struct {
	LineNo int    // 1-based line number.
	Column int    // 1-based column.
	Line   string // Source line text.
	Err    error
}

func (err *ErrSyntax) Error() string {
	return f("line %d:%d '%v' %v", err.LineNo, err.Column, err.Line, err.Err)
}

func (err *ErrSyntax) Unwrap() error {
	return err.Err
}

// ErrDiagnostics is every diagnostic of an assembly, in source order.
type ErrDiagnostics []*ErrSyntax

func (ed ErrDiagnostics) Error() string {
	lines := make([]string, len(ed))
	for n, diag := range ed {
		lines[n] = diag.Error()
	}
	return strings.Join(lines, "\n")
}

func (ed ErrDiagnostics) Unwrap() []error {
	errs := make([]error, len(ed))
	for n, diag := range ed {
		errs[n] = diag
	}
	return errs
}

// sort orders the diagnostics by line, then column.
func (ed ErrDiagnostics) sort() {
	slices.SortStableFunc(ed, func(a, b *ErrSyntax) int {
		if a.LineNo != b.LineNo {
			return a.LineNo - b.LineNo
		}
		return a.Column - b.Column
	})
}
