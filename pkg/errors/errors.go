// Package errors defines the coded error type shared across the ledger,
// gateway, and admin layers. Services return these so transports can map
// failures to responses and callers can branch on a machine-readable code
// instead of matching message strings.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a failure. Codes are stable and part of the API surface.
type Code string

const (
	// CodeValidation marks malformed or missing input. Non-retryable.
	CodeValidation Code = "VALIDATION_ERROR"
	// CodeNotFound marks an unknown asset or record id.
	CodeNotFound Code = "NOT_FOUND"
	// CodeConflict marks duplicate mints, already-revoked assets, and version
	// mismatches. Callers must re-read current state before retrying.
	CodeConflict Code = "CONFLICT"
	// CodeUnauthorized marks a failed signature, issuer, or admin check.
	// Non-retryable.
	CodeUnauthorized Code = "AUTHORIZATION_ERROR"
	// CodeExpired marks an expired credential. A verification outcome, not a
	// fault.
	CodeExpired Code = "EXPIRED"
	// CodeUnavailable marks an unreachable ledger or a timed-out call.
	// Retryable with backoff.
	CodeUnavailable Code = "CONNECTIVITY_ERROR"
	// CodeConfiguration marks missing or weak key material. Fatal at startup.
	CodeConfiguration Code = "CONFIGURATION_ERROR"
	// CodeInternal is the fallback for unexpected failures.
	CodeInternal Code = "INTERNAL"
)

// Error is a coded error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. A nil cause
// returns nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf extracts the code from err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code == code
	}
	return false
}

// Retryable reports whether the failure class is worth retrying with backoff.
// Only connectivity-style failures qualify; definitive rejections such as
// CONFLICT or AUTHORIZATION_ERROR must surface to the caller unchanged.
func Retryable(err error) bool {
	return HasCode(err, CodeUnavailable)
}

// ToHTTPStatus maps a code to its transport status. Kept here so every
// handler produces the same envelope for the same failure class.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeExpired:
		return http.StatusGone
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeConfiguration:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
