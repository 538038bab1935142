// Package apperror defines the typed failures surfaced by application services.
// Callers branch on the kind with errors.Is against the exported sentinels.
package apperror

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks malformed or inconsistent input, illegal state
	// transitions and concurrent-modification conflicts.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an unknown invoice, task or reference record.
	ErrNotFound = errors.New("not found")

	// ErrForbidden marks an operation the invoice's current status disallows.
	ErrForbidden = errors.New("forbidden")
)

// Kind identifies the category of an application error
type Kind string

const (
	KindValidation Kind = "VALIDATION"
	KindNotFound   Kind = "NOT_FOUND"
	KindForbidden  Kind = "FORBIDDEN"
)

// Error is a typed application failure. Details carries one entry per
// individual violation when several were collected before failing.
type Error struct {
	Kind    Kind
	Message string
	Details []string
}

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Details, "; "))
}

// Unwrap maps the kind onto its sentinel so errors.Is works through wrapping.
func (e *Error) Unwrap() error {
	switch e.Kind {
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	case KindForbidden:
		return ErrForbidden
	default:
		return nil
	}
}

// Validation builds a validation error with optional per-item details.
func Validation(message string, details ...string) *Error {
	return &Error{Kind: KindValidation, Message: message, Details: details}
}

// Validationf builds a validation error from a format string.
func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a not-found error.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Forbidden builds a forbidden error.
func Forbidden(format string, args ...interface{}) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a validation failure
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound reports whether err is a not-found failure
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsForbidden reports whether err is a forbidden failure
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }

// As extracts the typed error from a chain, or nil.
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
