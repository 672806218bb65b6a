package challenge

import (
	"errors"

	"github.com/ezrec/ibm1130/translate"
)

var f = translate.From

var (
	ErrUnknownChallenge = errors.New(f("unknown challenge"))
	ErrCheckInvalid     = errors.New(f("challenge check invalid"))
)

// ErrChallenge is the identifier of a challenge not in the catalog.
type ErrChallenge string

func (ec ErrChallenge) Error() string {
	return f("challenge %q unknown", string(ec))
}

func (ec ErrChallenge) Is(err error) bool {
	return err == ErrUnknownChallenge
}

// ErrCheck is a check expression that could not be evaluated.
type ErrCheck struct {
	Expr string // Check expression.
	Err  error  // Evaluation error.
}

func (ec *ErrCheck) Error() string {
	return f("check %q: %v", ec.Expr, ec.Err)
}

func (ec *ErrCheck) Is(err error) bool {
	return err == ErrCheckInvalid
}

func (ec *ErrCheck) Unwrap() error {
	return ec.Err
}
