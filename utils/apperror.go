package utils

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of the booking core so transports can map them.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindMinimumStay       ErrorKind = "minimum_stay"
	KindCalendarMissing   ErrorKind = "calendar_missing"
	KindDataInconsistency ErrorKind = "data_inconsistency"
	KindConflict          ErrorKind = "concurrency_conflict"
	KindTransient         ErrorKind = "transient_store"
	KindNotFound          ErrorKind = "not_found"
	KindInvalidTransition ErrorKind = "invalid_transition"
)

// AppError carries a kind, a caller-facing message and the underlying cause.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(kind ErrorKind, msg string, err error) error {
	return &AppError{Kind: kind, Message: msg, Err: err}
}

func ValidationError(format string, args ...any) error {
	return &AppError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFoundError(format string, args ...any) error {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func ConflictError(msg string, err error) error {
	return &AppError{Kind: KindConflict, Message: msg, Err: err}
}

func TransientError(msg string, err error) error {
	return &AppError{Kind: KindTransient, Message: msg, Err: err}
}

// KindOf returns the kind of the first AppError in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// MessageOf returns the caller-facing message of err, falling back to fallback.
func MessageOf(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}
