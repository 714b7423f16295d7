package sqlq

import (
	"errors"
	"fmt"
)

/*
Error codes. You probably shouldn't use this directly; instead, use the `Err`
variables with `errors.Is`.
*/
type ErrCode string

const (
	ErrCodeUnknown                         ErrCode = ""
	ErrCodeInvalidInput                    ErrCode = "InvalidInput"
	ErrCodeInvalidQuery                    ErrCode = "InvalidQuery"
	ErrCodeInvalidRawComposition           ErrCode = "InvalidRawComposition"
	ErrCodeUnsupportedParameterizedExecute ErrCode = "UnsupportedParameterizedExecute"
	ErrCodeUnsupportedValue                ErrCode = "UnsupportedValue"
	ErrCodeArityMismatch                   ErrCode = "ArityMismatch"
	ErrCodeUnexpectedParameter             ErrCode = "UnexpectedParameter"
	ErrCodeUnexpectedEOF                   ErrCode = "UnexpectedEOF"
	ErrCodeClosed                          ErrCode = "Closed"
	ErrCodeInternal                        ErrCode = "Internal"
)

/*
Use blank error variables to detect error types:

	if errors.Is(err, sqlq.ErrInvalidRawComposition) {
		// Handle specific error.
	}

Note that errors returned by this package can't be compared via `==` because
they may include additional details about the circumstances. When compared by
`errors.Is`, they compare `.Cause` and fall back on `.Code`.

Errors reported by SQLite itself are never wrapped into `Err`. Use `errors.As`
with `sqlite3.Error` to inspect them.
*/
var (
	ErrInvalidInput                    = Err{Code: ErrCodeInvalidInput, Cause: ErrStr(`invalid input`)}
	ErrInvalidQuery                    = Err{Code: ErrCodeInvalidQuery, Cause: ErrStr(`invalid query`)}
	ErrInvalidRawComposition           = Err{Code: ErrCodeInvalidRawComposition, Cause: ErrStr(`invalid raw composition`)}
	ErrUnsupportedParameterizedExecute = Err{Code: ErrCodeUnsupportedParameterizedExecute, Cause: ErrStr(`parameterized execute`)}
	ErrUnsupportedValue                = Err{Code: ErrCodeUnsupportedValue, Cause: ErrStr(`unsupported value`)}
	ErrArityMismatch                   = Err{Code: ErrCodeArityMismatch, Cause: ErrStr(`arity mismatch`)}
	ErrUnexpectedParameter             = Err{Code: ErrCodeUnexpectedParameter, Cause: ErrStr(`unexpected parameter`)}
	ErrUnexpectedEOF                   = Err{Code: ErrCodeUnexpectedEOF, Cause: ErrStr(`unexpected EOF`)}
	ErrClosed                          = Err{Code: ErrCodeClosed, Cause: ErrStr(`database is closed`)}
	ErrInternal                        = Err{Code: ErrCodeInternal, Cause: ErrStr(`internal error`)}
)

// Type of errors returned by this package.
type Err struct {
	Code  ErrCode
	While string
	Cause error
}

// Implement `error`.
func (self Err) Error() string {
	if self.isZero() {
		return ``
	}
	msg := `[sqlq]`
	if self.Code != ErrCodeUnknown {
		msg += ` ` + string(self.Code)
	} else {
		msg += ` error`
	}
	if self.While != `` {
		msg += ` while ` + self.While
	}
	if self.Cause != nil {
		msg += `: ` + self.Cause.Error()
	}
	return msg
}

// Implement a hidden interface in "errors".
func (self Err) Is(other error) bool {
	if self.Cause != nil && errors.Is(self.Cause, other) {
		return true
	}
	err, ok := other.(Err)
	return ok && err.Code != ErrCodeUnknown && err.Code == self.Code
}

// Implement a hidden interface in "errors".
func (self Err) Unwrap() error {
	return self.Cause
}

/*
Implement `fmt.Formatter`. The `%+v` verb is forwarded to the cause, which
allows causes with stack traces to print them.
*/
func (self Err) Format(out fmt.State, verb rune) {
	if verb == 'v' && out.Flag('+') && self.Cause != nil {
		msg := self.Error()
		_, _ = fmt.Fprint(out, msg[:len(msg)-len(self.Cause.Error())])
		_, _ = fmt.Fprintf(out, `%+v`, self.Cause)
		return
	}
	_, _ = fmt.Fprint(out, self.Error())
}

// Compares fields individually since the cause may not be comparable.
func (self Err) isZero() bool {
	return self.Code == ErrCodeUnknown && self.While == `` && self.Cause == nil
}

func (self Err) while(while string) Err {
	self.While = while
	return self
}

func (self Err) because(cause error) Err {
	self.Cause = cause
	return self
}

// String typedef that implements `error`. Errors of this type can be defined as
// constants.
type ErrStr string

// Implement `error`.
func (self ErrStr) Error() string { return string(self) }

func errf(pat string, args ...any) error { return fmt.Errorf(pat, args...) }

func errClosed(while string) Err { return ErrClosed.while(while) }
