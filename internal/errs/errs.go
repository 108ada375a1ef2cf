// Package errs defines the domain error taxonomy shared by all services.
//
// Every error returned to a caller carries a Kind so the transport layer
// can map it to a status code without string matching. Infrastructure
// failures (store unreachable, driver errors) use Unavailable and are safe
// for the caller to retry; everything else means the request itself was
// invalid in some way.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the caller.
type Kind int

const (
	// NotFound means the referenced entity does not exist.
	NotFound Kind = iota + 1
	// Forbidden means the caller is authenticated but not authorized
	// (not a member, not the owner, invite addressed to someone else).
	Forbidden
	// InvalidArgument means a request field is malformed (bad amount,
	// empty name, unknown vote choice).
	InvalidArgument
	// Conflict means a concurrent modification won, or a uniqueness rule
	// was violated (duplicate membership, duplicate pending invite,
	// compare-and-swap retries exhausted).
	Conflict
	// AlreadyVoted means the voter already has an immutable vote recorded.
	AlreadyVoted
	// InvalidState means the entity is not in the right status for the
	// requested transition (executing a pending transaction, accepting a
	// declined invite).
	InvalidState
	// InsufficientFunds means a balance is too small to cover an amount.
	InsufficientFunds
	// Unauthenticated means the caller presented no or invalid credentials.
	Unauthenticated
	// Unavailable means an infrastructure failure; the request may be retried.
	Unavailable
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	case InvalidArgument:
		return "invalid_argument"
	case Conflict:
		return "conflict"
	case AlreadyVoted:
		return "already_voted"
	case InvalidState:
		return "invalid_state"
	case InsufficientFunds:
		return "insufficient_funds"
	case Unauthenticated:
		return "unauthenticated"
	case Unavailable:
		return "unavailable"
	}
	return "unknown"
}

// Error is a classified error. Use New/Newf/Wrap to construct one.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error of the given kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf returns a formatted error of the given kind.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a kind and message. The wrapped error stays
// reachable through errors.Unwrap.
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the kind of err, or 0 if err carries none.
// If err wraps a classified error, the outermost classification wins.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
