// Package apierr defines the typed errors the HTTP surface answers with: a
// stable machine code, the status to respond with, and an optional wrapped
// cause that reaches logs but never the client.
package apierr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Error carries everything a handler needs to answer a failed request.
type Error struct {
	code    Code
	message string
	status  int
	cause   error
}

func New(code Code, status int, message string) *Error {
	return &Error{code: code, status: status, message: message}
}

// Wrap attaches a cause for logging and errors.Is chaining. The cause is
// never serialized.
func Wrap(code Code, status int, message string, cause error) *Error {
	e := New(code, status, message)
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.code, e.message)
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Code() Code      { return e.code }
func (e *Error) Message() string { return e.message }
func (e *Error) Status() int     { return e.status }

// ErrorResponse is the wire envelope: code and message under an "error"
// key, nothing else.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Response() ErrorResponse {
	return ErrorResponse{Error: ErrorBody{Code: e.code, Message: e.message}}
}

// IsNotFound reports whether err is the ledger's no-rows result, however
// deeply wrapped.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
