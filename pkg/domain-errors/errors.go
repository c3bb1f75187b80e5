// Package domainerrors carries the typed error codes the registrar surfaces
// to callers. Services translate infrastructure sentinels into these; the
// HTTP layer translates them into status codes and JSON envelopes.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a failure class. Codes are stable API: indexers and
// clients branch on them.
type Code string

const (
	CodeUnauthorized        Code = "unauthorized"
	CodeNotListed           Code = "not_listed"
	CodeAlreadyRegistered   Code = "already_registered"
	CodeInsufficientPayment Code = "insufficient_payment"
	CodeMigrationTargetSet  Code = "migration_target_set"
	CodeNoMigrationTarget   Code = "no_migration_target"
	CodeNotSuperseded       Code = "registrar_not_superseded"
	CodeMigrated            Code = "migrated"
	CodeRentNotSupported    Code = "rent_not_supported"
	CodeNotFound            Code = "not_found"
	CodeBadRequest          Code = "bad_request"
	CodeBusy                Code = "busy"
	CodeInternal            Code = "internal"
)

// Error is a domain failure with a stable code and a human-readable message.
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

// New builds a domain error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is a readability alias for HasCode at call sites.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the HTTP status the transport layer writes.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeNotListed, CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyRegistered, CodeMigrationTargetSet:
		return http.StatusConflict
	case CodeInsufficientPayment:
		return http.StatusPaymentRequired
	case CodeNoMigrationTarget, CodeNotSuperseded:
		return http.StatusPreconditionFailed
	case CodeMigrated:
		return http.StatusGone
	case CodeRentNotSupported:
		return http.StatusNotImplemented
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeBusy:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
