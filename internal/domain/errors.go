package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a domain error for transport mapping and logging.
type ErrorCode string

const (
	CodeInvalidRequest  ErrorCode = "INVALID_REQUEST"
	CodeOutOfWindow     ErrorCode = "OUT_OF_WINDOW"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeConflict        ErrorCode = "CONFLICT"
	CodeInvalidState    ErrorCode = "INVALID_STATE"
	CodeForbidden       ErrorCode = "FORBIDDEN"
	CodeSlotUnavailable ErrorCode = "SLOT_NO_LONGER_AVAILABLE"
	CodeAmbiguousRule   ErrorCode = "AMBIGUOUS_PRICING_RULE"
	CodePersistence     ErrorCode = "PERSISTENCE_FAILURE"
)

// Error is the typed error returned by the booking core. Retryable marks
// outcomes the caller may resolve by re-querying and trying again.
type Error struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	cause     error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// NewValidationError reports malformed caller input.
func NewValidationError(msg string) *Error {
	return &Error{Code: CodeInvalidRequest, Message: msg}
}

// NewOutOfWindowError reports a date outside the configured booking horizon.
func NewOutOfWindowError(msg string) *Error {
	return &Error{Code: CodeOutOfWindow, Message: msg}
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(entity, id string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// NewConflictError reports a concurrent-modification conflict.
func NewConflictError(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg, Retryable: true}
}

// NewInvalidStateError reports an illegal status transition.
func NewInvalidStateError(from, to string) *Error {
	return &Error{Code: CodeInvalidState, Message: fmt.Sprintf("cannot transition from %s to %s", from, to)}
}

// NewForbiddenError reports an operation the caller may not perform.
func NewForbiddenError(msg string) *Error {
	return &Error{Code: CodeForbidden, Message: msg}
}

// NewSlotUnavailableError reports that the requested slot was taken between
// query and commit. Expected under contention; always retryable.
func NewSlotUnavailableError(msg string) *Error {
	return &Error{Code: CodeSlotUnavailable, Message: msg, Retryable: true}
}

// NewAmbiguousRuleError reports a rule-store configuration defect: two
// pricing rules tied on priority and specificity. Evaluation fails closed.
func NewAmbiguousRuleError(msg string) *Error {
	return &Error{Code: CodeAmbiguousRule, Message: msg}
}

// NewPersistenceError wraps an infrastructure failure during commit. The
// transaction is guaranteed rolled back before this is returned.
func NewPersistenceError(err error) *Error {
	return &Error{Code: CodePersistence, Message: "persistence failure", cause: err}
}

// CodeOf extracts the domain error code, or empty for foreign errors.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsRetryable reports whether the caller may retry after re-querying.
func IsRetryable(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Retryable
}
