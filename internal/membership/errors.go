package membership

import (
	"errors"
	"fmt"
)

// Kind classifies service errors. Every error returned by Service that is
// not an infrastructure failure is an *Error with one of these kinds.
type Kind string

const (
	KindValidation   Kind = "VALIDATION_ERROR"
	KindNotFound     Kind = "NOT_FOUND"
	KindExpired      Kind = "EXPIRED"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindConflict     Kind = "CONFLICT"
	KindDependency   Kind = "DEPENDENCY_FAILURE"
)

// Error is a classified service error with a message fit for display.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels below, so errors.Is(err, ErrConflict)
// works for any conflict.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrExpired      = &Error{Kind: KindExpired}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrDependency   = &Error{Kind: KindDependency}
)

// KindOf returns the kind of err, or "" for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func validationf(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

func notFoundf(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

func conflictf(format string, args ...any) *Error {
	return newError(KindConflict, format, args...)
}

func unauthorizedf(format string, args ...any) *Error {
	return newError(KindUnauthorized, format, args...)
}

func expired() *Error {
	return newError(KindExpired, "This invitation has expired. Ask your administrator to send a new one.")
}
