package protocol

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the error classification surfaced across the directory and
// storage-node HTTP boundary — never a Go type name, only one of the
// five kinds below.
type Kind int

const (
	// Internal covers any propagated store/IO error.
	Internal Kind = iota
	// NotFound covers an absent blob id, unknown user, or unset
	// routing key.
	NotFound
	// Forbidden covers auth failure, wrong storage-node identity, or
	// a non-admin calling an admin route.
	Forbidden
	// BadRequest covers a malformed header, unparseable query, or bad
	// JSON body.
	BadRequest
	// Conflict is reserved; not currently emitted.
	Conflict
)

// String renders k for logging.
func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	case BadRequest:
		return "bad_request"
	case Conflict:
		return "conflict"
	default:
		return "internal"
	}
}

// StatusCode maps k to the HTTP status table in spec.md §7.
func (k Kind) StatusCode() int {
	switch k {
	case NotFound:
		return http.StatusNotFound
	case Forbidden:
		return http.StatusForbidden
	case BadRequest:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error pairs a Kind with the underlying cause, so callers can
// classify an error with errors.As without the cause's concrete type
// leaking across the HTTP boundary.
type Error struct {
	Kind  Kind
	Msg   string
	cause error
}

// NewError wraps cause as an Error of the given kind and message.
func NewError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, cause: cause}
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Msg, e.cause)
}

// Unwrap exposes the cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf classifies err, returning Internal for any error not
// produced via NewError.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return Internal
}
