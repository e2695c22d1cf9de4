// Package errors provides structured error types shared across the dropper
// pipeline and CLI.
//
// Error codes let the CLI classify failures without string matching:
//   - EXTRACT_*: upstream document extraction failures
//   - RESOLVE_*: constraint resolution failures (fatal before any disk write)
//   - INSTALL_*: per-action install failures (isolated, aggregated)
//   - NETWORK_*: transport failures
//
// Usage:
//
//	err := errors.New(errors.ErrCodeUnsatisfiable, "no version of %s matches %s", name, c)
//	if errors.Is(err, errors.ErrCodeUnsatisfiable) {
//	    // abort the run before touching disk
//	}
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for the failure taxonomy.
const (
	// Extraction: upstream document problems, recovered locally.
	ErrCodeMalformedDocument   Code = "EXTRACT_MALFORMED"
	ErrCodeUnsupportedDocument Code = "EXTRACT_UNSUPPORTED"
	ErrCodeEmptyDocument       Code = "EXTRACT_EMPTY"

	// Resolution: fatal to the run, nothing written yet.
	ErrCodeUnknownPackage Code = "RESOLVE_UNKNOWN_PACKAGE"
	ErrCodeUnsatisfiable  Code = "RESOLVE_UNSATISFIABLE"
	ErrCodeConflict       Code = "RESOLVE_CONFLICT"

	// Install: localized to one plan action.
	ErrCodeFetch        Code = "INSTALL_FETCH"
	ErrCodeVerification Code = "INSTALL_VERIFICATION"
	ErrCodeWrite        Code = "INSTALL_WRITE"

	// Transport and input.
	ErrCodeNetwork       Code = "NETWORK_ERROR"
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInternal      Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err carries the given error code anywhere in its chain.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error chain holds no *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error: the message
// without the code prefix for *Error, the error string otherwise.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
