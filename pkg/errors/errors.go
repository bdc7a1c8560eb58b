// Package errors defines the typed errors services return and how each code
// is presented over HTTP.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Class is the client-facing behaviour of a code.
type Class struct {
	Status    int
	Retryable bool
	// Fallback is sent instead of the error's own message unless Expose is set.
	Fallback string
	// Expose lets the message and details reach the client.
	Expose bool
}

var classes = map[Code]Class{
	CodeValidation:    {Status: http.StatusBadRequest, Fallback: "validation failed", Expose: true},
	CodeNotFound:      {Status: http.StatusNotFound, Fallback: "resource not found", Expose: true},
	CodeConflict:      {Status: http.StatusConflict, Retryable: true, Fallback: "conflict detected", Expose: true},
	CodeStateConflict: {Status: http.StatusUnprocessableEntity, Fallback: "state transition disallowed", Expose: true},
	CodeIdempotency:   {Status: http.StatusConflict, Fallback: "idempotency key reused", Expose: true},
	CodeInternal:      {Status: http.StatusInternalServerError, Retryable: true, Fallback: "internal server error"},
	CodeDependency:    {Status: http.StatusServiceUnavailable, Retryable: true, Fallback: "dependency unavailable"},
}

// ClassOf looks up code, treating unknown codes as internal.
func ClassOf(code Code) Class {
	if c, ok := classes[code]; ok {
		return c
	}
	return classes[CodeInternal]
}

// Error is a coded error with an optional cause and client-visible details.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code carried by err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	return As(err).Code()
}

func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// IsRetryable reports whether the caller may retry the failed operation from
// fresh state.
func IsRetryable(err error) bool {
	return err != nil && ClassOf(CodeOf(err)).Retryable
}
