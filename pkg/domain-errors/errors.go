// Package domainerrors carries coded errors across service boundaries so
// transport layers can translate failures without string matching.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeBadRequest    Code = "bad_request"
	CodeNotFound      Code = "not_found"
	CodeConflict      Code = "conflict"
	CodeUnprocessable Code = "unprocessable"
	CodeInternal      Code = "internal_error"
)

// Error pairs a machine-readable code with a caller-facing message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. If err already
// carries a code, that code wins so the original classification survives
// layered wrapping.
func Wrap(err error, code Code, message string) *Error {
	var domErr *Error
	if errors.As(err, &domErr) {
		code = domErr.Code
	}
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the code from an error chain, defaulting to internal.
func CodeOf(err error) Code {
	var domErr *Error
	if errors.As(err, &domErr) {
		return domErr.Code
	}
	return CodeInternal
}

// MessageOf extracts the caller-facing message from an error chain.
func MessageOf(err error) string {
	var domErr *Error
	if errors.As(err, &domErr) {
		return domErr.Message
	}
	return ""
}

// ToHTTPStatus maps domain codes onto HTTP status codes.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnprocessable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
