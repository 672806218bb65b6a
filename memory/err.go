package memory

import (
	"errors"

	"github.com/ezrec/ibm1130/translate"
)

var f = translate.From

var (
	ErrAddressOutOfRange = errors.New(f("address out of range"))
	ErrLevelInvalid      = errors.New(f("interrupt level invalid"))
)

// ErrAddress is the offending address of an out of range access.
type ErrAddress int

func (ea ErrAddress) Error() string {
	return f("address 0x%04x out of range", int(ea))
}

func (ea ErrAddress) Is(err error) bool {
	return err == ErrAddressOutOfRange
}

// ErrLevel is an interrupt level outside of 0-5.
type ErrLevel int

func (el ErrLevel) Error() string {
	return f("interrupt level %v invalid", int(el))
}

func (el ErrLevel) Is(err error) bool {
	return err == ErrLevelInvalid
}
