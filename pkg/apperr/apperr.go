// Package apperr defines the closed set of tagged error kinds used across
// ArtStore (§4.17) and their translation to HTTP status codes at the process
// boundary (§7). Internal code never does string matching on error text —
// callers compare with errors.Is or apperr.KindOf.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a closed enumeration of the error kinds named in spec §4.17.
type Kind string

const (
	ModeDenied           Kind = "mode_denied"
	InsufficientStorage  Kind = "insufficient_storage"
	AttrTooLarge         Kind = "attr_too_large"
	NotFound             Kind = "not_found"
	GoneArchived         Kind = "gone_archived"
	ConflictWALInFlight  Kind = "conflict_wal_in_flight"
	ChecksumMismatch     Kind = "checksum_mismatch"
	BackendUnavailable   Kind = "backend_unavailable"
	RebuildInProgress    Kind = "rebuild_in_progress"
	InvalidTransition    Kind = "invalid_transition"
	TokenInvalid         Kind = "token_invalid"
	TokenExpired         Kind = "token_expired"
	Forbidden            Kind = "forbidden"
	RateLimited          Kind = "rate_limited"
	AccountLocked        Kind = "account_locked"
	RangeNotSatisfiable  Kind = "range_not_satisfiable"
	Validation           Kind = "validation_error"
	Internal             Kind = "internal"
)

// Error is a tagged error carrying a Kind and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Msg     string
	Cause   error
	Details any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates a new tagged error.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap creates a new tagged error wrapping cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// WithDetails attaches structured details (e.g. field-level validation
// errors) to the error.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// KindOf returns the Kind carried by err, or "" if err is not (or does not
// wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Message returns a user-safe message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "an internal error occurred"
}

// DetailsOf returns the structured details attached to err, if any.
func DetailsOf(err error) any {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// HTTPStatus maps err to an HTTP status code and a stable error code string
// for the response envelope (§6.1, §6.2, §7).
func HTTPStatus(err error) (int, string) {
	kind := KindOf(err)
	switch kind {
	case ModeDenied, Forbidden:
		return http.StatusForbidden, string(kind)
	case InsufficientStorage:
		return http.StatusInsufficientStorage, string(kind)
	case AttrTooLarge:
		return http.StatusRequestEntityTooLarge, string(kind)
	case NotFound:
		return http.StatusNotFound, string(kind)
	case GoneArchived:
		return http.StatusGone, string(kind)
	case ConflictWALInFlight:
		return http.StatusConflict, string(kind)
	case ChecksumMismatch:
		return http.StatusUnprocessableEntity, string(kind)
	case BackendUnavailable:
		return http.StatusServiceUnavailable, string(kind)
	case RebuildInProgress:
		return http.StatusConflict, string(kind)
	case InvalidTransition:
		return http.StatusBadRequest, string(kind)
	case TokenInvalid, TokenExpired:
		return http.StatusUnauthorized, string(kind)
	case RateLimited:
		return http.StatusTooManyRequests, string(kind)
	case AccountLocked:
		return http.StatusLocked, string(kind)
	case RangeNotSatisfiable:
		return http.StatusRequestedRangeNotSatisfiable, string(kind)
	case Validation:
		return http.StatusUnprocessableEntity, string(kind)
	default:
		return http.StatusInternalServerError, "internal"
	}
}
