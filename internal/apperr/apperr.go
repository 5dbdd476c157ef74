// Package apperr defines the shared error taxonomy every core operation returns instead
// of raising ad-hoc errors. Packages still keep their own per-package sentinel values
// (`var Err... = ...`); those sentinels wrap an *Error here so a single adapter at the
// transport boundary can map any failure to a status class.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a coarse error classification, not a concrete type name.
type Kind string

const (
	KindValidation        Kind = "VALIDATION"
	KindNotFound          Kind = "NOT_FOUND"
	KindPrecondition      Kind = "PRECONDITION"
	KindConflict          Kind = "CONFLICT"
	KindImbalanced        Kind = "IMBALANCED"
	KindSignMismatch      Kind = "SIGN_MISMATCH"
	KindMissingConfig     Kind = "MISSING_CONFIG"
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	KindPermissionDenied  Kind = "PERMISSION_DENIED"
	KindUpstreamFailure   Kind = "UPSTREAM_FAILURE"
)

// Error is a structured application error carrying a Kind plus an optional
// detail bag for conflict-class errors (e.g. 3-way-match hold_details).
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a new Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds a new Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithDetails attaches a structured detail bag, used for CONFLICT-class holds.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Wrap tags an underlying error with a Kind while preserving it for errors.Is/As.
func Wrap(kind Kind, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: cause.Error(), cause: cause}
}

// KindOf extracts the Kind from err, if it (or something it wraps) is an *Error.
func KindOf(err error) (Kind, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
