package apperr

import (
	"errors"
	"fmt"
)

// Code classifies a failure so the route layer can translate it without
// inspecting messages.
type Code string

const (
	CodeInvalidTransition    Code = "invalid_transition"
	CodeUnauthorized         Code = "unauthorized"
	CodeObjectionsPending    Code = "objections_pending"
	CodeNotFound             Code = "not_found"
	CodeConcurrencyConflict  Code = "concurrency_conflict"
	CodeIntegrityMismatch    Code = "integrity_mismatch"
	CodeInvalidSelectionSize Code = "invalid_selection_size"
	CodeInvalidArgument      Code = "invalid_argument"
	CodeInternal             Code = "internal"
)

// Sentinel errors for storage facts. Repositories return these (wrapped) and
// services translate them into coded errors.
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("conflicting update")
)

// Error is the typed error surfaced to the route layer.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Err     error
}

// New creates a coded error.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// WithDetail returns the error with an extra detail field set.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code, so errors.Is(err, apperr.New(CodeNotFound, ""))
// works regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// CodeOf extracts the code of err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if errors.Is(err, ErrNotFound) {
		return CodeNotFound
	}
	if errors.Is(err, ErrConflict) {
		return CodeConcurrencyConflict
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// DetailsOf returns the details attached to err, if any.
func DetailsOf(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}
