package lotrcTypes

import (
	"fmt"

	"github.com/pkg/errors"
)

// FormatError marks input that cannot be decoded or a layout that cannot be encoded:
// bad byte order marker, an offset outside its block, a table that does not fit.
type FormatError struct {
	Msg string
}

func (e *FormatError) Error() string { return "format error: " + e.Msg }

// UnsupportedVariant is an unknown texture/shape/animation type code. The payload
// it belongs to is kept as opaque bytes.
type UnsupportedVariant struct {
	What string
	Code uint32
}

func (e *UnsupportedVariant) Error() string {
	return fmt.Sprintf("unsupported %s type %d", e.What, e.Code)
}

// InvariantViolation is a missing sentinel or a failed equality the format always holds.
type InvariantViolation struct {
	Msg string
}

func (e *InvariantViolation) Error() string { return "invariant violation: " + e.Msg }

// SizeMismatch is a re-emitted region whose size differs from the size declared for it.
type SizeMismatch struct {
	What string
	Got  int
	Want int
}

func (e *SizeMismatch) Error() string {
	return fmt.Sprintf("size mismatch for %s, is %d but should be %d", e.What, e.Got, e.Want)
}

func FormatErrorf(format string, args ...interface{}) error {
	return errors.WithStack(&FormatError{Msg: fmt.Sprintf(format, args...)})
}

func Unsupported(what string, code uint32) error {
	return errors.WithStack(&UnsupportedVariant{What: what, Code: code})
}

func Invariantf(format string, args ...interface{}) error {
	return errors.WithStack(&InvariantViolation{Msg: fmt.Sprintf(format, args...)})
}

func Mismatch(what string, got, want int) error {
	return errors.WithStack(&SizeMismatch{What: what, Got: got, Want: want})
}

func IsFormatError(err error) bool {
	_, ok := errors.Cause(err).(*FormatError)
	return ok
}

func IsUnsupported(err error) bool {
	_, ok := errors.Cause(err).(*UnsupportedVariant)
	return ok
}

func IsInvariantViolation(err error) bool {
	_, ok := errors.Cause(err).(*InvariantViolation)
	return ok
}

func IsSizeMismatch(err error) bool {
	_, ok := errors.Cause(err).(*SizeMismatch)
	return ok
}
