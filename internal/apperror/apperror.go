// Package apperror defines the failure kinds returned by the volume service.
// Every error crossing the service boundary is an *Error; anything else is
// reported by KindOf as KindInternal.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers that map errors to their own representation.
type Kind int

const (
	// KindInternal is an unclassified fault.
	KindInternal Kind = iota
	// KindValidation is a malformed or incomplete input document.
	KindValidation
	// KindNotFound is a missing volume or attachment.
	KindNotFound
	// KindConflict would violate a uniqueness or ownership invariant.
	KindConflict
	// KindBackend is an unavailable or failing store, index or blob backend.
	KindBackend
	// KindRequestTooLarge is a page size above the configured ceiling.
	KindRequestTooLarge
	// KindPartial is an operation whose durable half succeeded while the index update did not.
	KindPartial
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindBackend:
		return "backend"
	case KindRequestTooLarge:
		return "request_too_large"
	case KindPartial:
		return "partial_failure"
	default:
		return "internal"
	}
}

// Error carries a stable kind, a human-readable message and optional details.
type Error struct {
	Kind    Kind
	Message string
	Details string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	switch {
	case e.Details != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Message, e.Details, e.Err)
	case e.Details != "":
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	default:
		return e.Message
	}
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports malformed input.
func Validation(message, details string) error {
	return &Error{Kind: KindValidation, Message: message, Details: details}
}

// NotFound reports a missing volume or attachment.
func NotFound(message, details string) error {
	return &Error{Kind: KindNotFound, Message: message, Details: details}
}

// Conflict reports a uniqueness or ownership violation.
func Conflict(message string, err error) error {
	return &Error{Kind: KindConflict, Message: message, Err: err}
}

// Backend wraps a store, index or blob failure.
func Backend(message string, err error) error {
	return &Error{Kind: KindBackend, Message: message, Err: err}
}

// TooLarge reports a page size above the configured maximum.
func TooLarge(message, details string) error {
	return &Error{Kind: KindRequestTooLarge, Message: message, Details: details}
}

// Partial reports a mutation that was stored but could not be indexed.
func Partial(message string, err error) error {
	return &Error{Kind: KindPartial, Message: message, Err: err}
}

// Internal labels an unclassified fault.
func Internal(err error) error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of kind k.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// IsRetryable reports whether the caller may safely retry the operation.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindBackend, KindPartial:
		return true
	default:
		return false
	}
}

// Details returns the details of err, if any.
func Details(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return ""
}
