// Package domainerrors provides the error vocabulary shared by every service
// in the module. Errors carry a Code so transport layers can map them to
// responses and tests can assert on the class of failure instead of message
// text.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeValidation marks client-correctable input problems, e.g. a text
	// item submitted without a value.
	CodeValidation Code = "validation"
	// CodeInvalidInput marks malformed identifiers or payloads rejected at a
	// trust boundary before any domain rule runs.
	CodeInvalidInput Code = "invalid_input"
	// CodeInvalidState marks operations attempted from a state machine state
	// that does not permit them, e.g. reviewing a not_started item.
	CodeInvalidState Code = "invalid_state"
	// CodeForbidden marks role-based refusals, e.g. a clinician submitting an
	// admin-only item.
	CodeForbidden Code = "forbidden"
	// CodeInvariantViolation marks refusals protecting a hard domain
	// invariant, e.g. setting an override while a blocking license is expired.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeNotFound marks missing or tenant-invisible entities.
	CodeNotFound Code = "not_found"
	// CodeConflict marks concurrent-modification and duplicate-create
	// failures surfaced by stores.
	CodeConflict Code = "conflict"
	// CodeBadRequest marks malformed requests at the transport boundary.
	CodeBadRequest Code = "bad_request"
	// CodeUnauthorized marks missing or invalid credentials.
	CodeUnauthorized Code = "unauthorized"
	// CodeInternal marks infrastructure failures the caller cannot correct.
	CodeInternal Code = "internal"
)

// Error is a code-carrying domain error. It wraps an optional cause so
// errors.Is/As keep working through the domain layer.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates a cause with a domain code and message. A nil cause yields a
// plain domain error so call sites don't need to branch.
func Wrap(cause error, code Code, message string) error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Wrapf annotates a cause with a domain code and formatted message.
func Wrapf(cause error, code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

// HasCode reports whether err or anything it wraps is a domain error with the
// given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost domain error in err's chain, or
// CodeInternal when err carries no domain code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Is lets errors.Is treat two domain errors with the same code as equal.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Code == te.Code
	}
	return false
}
