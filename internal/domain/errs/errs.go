// Package errs defines the error kinds every domain operation fails with.
//
// Each failure carries exactly one kind. Callers branch with errors.Is
// against the sentinels below; the HTTP layer maps kinds to status codes.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel kinds.
var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrBusinessRule  = errors.New("business rule violation")
)

// Error is a domain failure with the operation that produced it.
type Error struct {
	Op      string // e.g. "person.create"
	Kind    error  // one of the sentinels, nil for infrastructure failures
	Message string
	Err     error // underlying cause, optional
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Kind != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return e.Op
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// New builds a kinded error with a formatted message.
func New(op string, kind error, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validationf reports malformed or out-of-range input.
func Validationf(op, format string, args ...any) error {
	return New(op, ErrValidation, format, args...)
}

// NotFoundf reports a missing person, action or assignment.
func NotFoundf(op, format string, args ...any) error {
	return New(op, ErrNotFound, format, args...)
}

// AlreadyExistsf reports a duplicate name.
func AlreadyExistsf(op, format string, args ...any) error {
	return New(op, ErrAlreadyExists, format, args...)
}

// BusinessRulef reports an operation that would break an invariant.
func BusinessRulef(op, format string, args ...any) error {
	return New(op, ErrBusinessRule, format, args...)
}

// Wrap attaches op to an infrastructure error. Kinded errors pass through.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != nil {
		return err
	}
	return &Error{Op: op, Err: err}
}

// KindOf returns the sentinel kind carried by err, or nil.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrAlreadyExists, ErrBusinessRule} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsAlreadyExists reports whether err is a duplicate failure.
func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }

// IsBusinessRule reports whether err is an invariant violation.
func IsBusinessRule(err error) bool { return errors.Is(err, ErrBusinessRule) }
