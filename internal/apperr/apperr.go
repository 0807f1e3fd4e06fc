// Package apperr defines the structured errors returned by the order core.
// Every error carries a Kind that transports map to a status code, a message
// that is safe to show to the caller and optional identifying details.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and retry decisions.
type Kind string

const (
	KindNotFound           Kind = "NOT_FOUND"
	KindBadRequest         Kind = "BAD_REQUEST"
	KindConflict           Kind = "CONFLICT"
	KindForbidden          Kind = "FORBIDDEN"
	KindTooManyRequests    Kind = "TOO_MANY_REQUESTS"
	KindPreconditionFailed Kind = "PRECONDITION_FAILED"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches a message-less *Error of the same kind, so
// errors.Is(err, &apperr.Error{Kind: apperr.KindConflict}) works regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// With returns a copy of e with the detail key set.
func (e *Error) With(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{Kind: e.Kind, Message: e.Message, Details: details}
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error { return New(KindNotFound, format, args...) }

func BadRequest(format string, args ...any) *Error { return New(KindBadRequest, format, args...) }

func Conflict(format string, args ...any) *Error { return New(KindConflict, format, args...) }

func Forbidden(format string, args ...any) *Error { return New(KindForbidden, format, args...) }

func TooManyRequests(format string, args ...any) *Error {
	return New(KindTooManyRequests, format, args...)
}

func PreconditionFailed(format string, args ...any) *Error {
	return New(KindPreconditionFailed, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Retryable reports whether a client may retry the same request unchanged.
func Retryable(kind Kind) bool {
	return kind == KindConflict || kind == KindTooManyRequests
}
