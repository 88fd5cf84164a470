// Package apperr defines the error taxonomy shared by services and
// handlers. Services return *Error values; the HTTP layer maps the Kind to
// a status code and renders the error envelope.
package apperr

import (
	"errors"
	"net/http"
	"runtime/debug"
)

// Kind classifies an error for the request boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidArgument
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindUnavailable
)

// Status returns the HTTP status code for k.
func (k Kind) Status() int {
	switch k {
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindUnauthenticated:
		return "Unauthenticated"
	case KindForbidden:
		return "Forbidden"
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindUnavailable:
		return "Unavailable"
	default:
		return "Internal"
	}
}

// Error is a classified, user-facing error. Message is safe to show to
// clients; Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Errors  []string
	Err     error

	// Stack is captured where an Internal error is built.
	Stack []byte
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetails returns a copy of e carrying extra detail strings.
func (e *Error) WithDetails(details ...string) *Error {
	cp := *e
	cp.Errors = append(append([]string(nil), e.Errors...), details...)
	return &cp
}

func InvalidArgument(msg string) *Error { return &Error{Kind: KindInvalidArgument, Message: msg} }
func Unauthenticated(msg string) *Error { return &Error{Kind: KindUnauthenticated, Message: msg} }
func Forbidden(msg string) *Error       { return &Error{Kind: KindForbidden, Message: msg} }
func NotFound(msg string) *Error        { return &Error{Kind: KindNotFound, Message: msg} }
func Conflict(msg string) *Error        { return &Error{Kind: KindConflict, Message: msg} }
func Unavailable(msg string) *Error     { return &Error{Kind: KindUnavailable, Message: msg} }

// Internal wraps an unexpected failure.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err, Stack: debug.Stack()}
}

// Wrap classifies err under kind, keeping it as the cause.
func Wrap(kind Kind, msg string, err error) *Error {
	e := &Error{Kind: kind, Message: msg, Err: err}
	if kind == KindInternal {
		e.Stack = debug.Stack()
	}
	return e
}

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
