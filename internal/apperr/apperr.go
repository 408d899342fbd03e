// Package apperr defines the error taxonomy shared by every retrieval
// component. Components return a *Error so callers can branch on Kind
// without string matching, and so outer layers (tool adapters, the
// orchestrator) can decide what is safe to surface to an end user.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for propagation and user-messaging decisions.
type Kind string

const (
	NotFound        Kind = "not_found"
	Denied          Kind = "denied"
	InvalidArgument Kind = "invalid_argument"
	BackendFailed   Kind = "backend_failed"
	Timeout         Kind = "timeout"
	Conflict        Kind = "conflict"
	Internal        Kind = "internal"
)

// Error is the concrete error type returned by component operations.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "vector_search"
	Message string // short, non-sensitive, user-safe description
	Err     error  // wrapped cause, if any; never exposed to end users
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, apperr.NotFound) style checks against Kind by
// wrapping a sentinel of the same kind with no op/message set.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) && t.Op == "" && t.Message == "" && t.Err == nil {
		return e.Kind == t.Kind
	}
	return false
}

func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

func Wrap(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, else Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// MessageOf returns the user-safe Message of err if it is (or wraps) an
// *Error, else err's own Error() string.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// sentinel returns a bare *Error usable only as an errors.Is target for Kind.
func sentinel(k Kind) error { return &Error{Kind: k} }

var (
	ErrNotFound        = sentinel(NotFound)
	ErrDenied          = sentinel(Denied)
	ErrInvalidArgument = sentinel(InvalidArgument)
	ErrBackendFailed   = sentinel(BackendFailed)
	ErrTimeout         = sentinel(Timeout)
	ErrConflict        = sentinel(Conflict)
	ErrInternal        = sentinel(Internal)
)
