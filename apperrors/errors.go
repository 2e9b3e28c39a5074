package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping. The distinction between
// kinds is load-bearing: NotFound vs Suspended aids support diagnosis, and
// demo-vs-failure is itself a security control, so kinds must never be
// collapsed into a generic internal error.
type Kind int

const (
	// KindUnknown is the zero value; treated as an internal error.
	KindUnknown Kind = iota
	// KindNotFound: unknown subdomain or tenant.
	KindNotFound
	// KindSuspended: the tenant exists but has been deactivated.
	KindSuspended
	// KindCrossTenantViolation: token claims do not match the resolved
	// tenant. Always a hard rejection, logged at elevated severity.
	KindCrossTenantViolation
	// KindAlreadyUsed: single-use token replayed.
	KindAlreadyUsed
	// KindExpired: token past its expiry.
	KindExpired
	// KindAuthFailed: bad credentials or no matching membership.
	KindAuthFailed
	// KindConflict: uniqueness violation (duplicate subdomain).
	KindConflict
	// KindRateLimited: request throttled.
	KindRateLimited
	// KindDecryption: ciphertext failed authentication.
	KindDecryption
	// KindUnavailable: infrastructure fault or timeout.
	KindUnavailable
	// KindInvalid: malformed input.
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindSuspended:
		return "suspended"
	case KindCrossTenantViolation:
		return "cross_tenant_violation"
	case KindAlreadyUsed:
		return "already_used"
	case KindExpired:
		return "expired"
	case KindAuthFailed:
		return "auth_failed"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindDecryption:
		return "decryption_error"
	case KindUnavailable:
		return "service_unavailable"
	case KindInvalid:
		return "invalid"
	}
	return "unknown"
}

// Error carries a kind alongside a user-safe message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a new kinded error.
func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a kinded error around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from an error chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
