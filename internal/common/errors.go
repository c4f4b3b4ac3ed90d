package common

import (
	"errors"
	"fmt"
)

// Kind classifies a matching-engine error for callers and transport mapping,
// following the taxonomy of error *kinds* (not sentinel values) the spec
// requires: callers branch on Kind, not on pointer identity.
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindInvalidState
	KindInsufficientLiquidity
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindNotFound:
		return "NOT_FOUND"
	case KindInvalidState:
		return "INVALID_STATE"
	case KindInsufficientLiquidity:
		return "INSUFFICIENT_LIQUIDITY"
	case KindInternal:
		return "INTERNAL_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Error is the structured error surfaced to every external caller, carrying
// a machine-readable Kind, a human Message, and optional Details for the
// {code, message, details?} wire shape.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func newErr(kind Kind, msg string, details map[string]string) *Error {
	return &Error{Kind: kind, Message: msg, Details: details}
}

func NewValidationError(msg string, details map[string]string) *Error {
	return newErr(KindValidation, msg, details)
}

func NewNotFoundError(msg string, details map[string]string) *Error {
	return newErr(KindNotFound, msg, details)
}

func NewInvalidStateError(msg string, details map[string]string) *Error {
	return newErr(KindInvalidState, msg, details)
}

func NewInsufficientLiquidityError(msg string, details map[string]string) *Error {
	return newErr(KindInsufficientLiquidity, msg, details)
}

// NewInternalError wraps an invariant violation. Callers in debug builds
// should treat this as fatal; production callers surface it and log it
// with context. It is never silently recovered.
func NewInternalError(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, cause: cause}
}

// Is reports whether err carries the given Kind, unwrapping through
// standard error wrapping.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// As extracts the *Error from err, unwrapping through standard error
// wrapping, for callers (such as the transport layer) that need the full
// Kind/Message/Details triple rather than a single Kind comparison.
func As(err error, target **Error) bool {
	return errors.As(err, target)
}
