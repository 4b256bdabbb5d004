package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the client-facing layer.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindAlreadyExists
	KindInvalidCredentials
	KindInvalidOrExpiredSession
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindAlreadyExists:
		return "already_exists"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindInvalidOrExpiredSession:
		return "invalid_or_expired_session"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Sentinels for errors.Is matching on kind.
var (
	ErrInternal                = &Error{Kind: KindInternal, Message: "Internal server error."}
	ErrInvalidInput            = &Error{Kind: KindInvalidInput, Message: "Invalid input."}
	ErrAlreadyExists           = &Error{Kind: KindAlreadyExists, Message: "Already exists."}
	ErrInvalidCredentials      = &Error{Kind: KindInvalidCredentials, Message: "Invalid username or password."}
	ErrInvalidOrExpiredSession = &Error{Kind: KindInvalidOrExpiredSession, Message: "Invalid or expired session."}
	ErrNotFound                = &Error{Kind: KindNotFound, Message: "Not found."}
)

// Error carries a Kind, a message safe to show to clients and an optional cause.
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

// Is reports a match when target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New returns an error of the given kind with a client-facing message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure. The cause is never shown to clients.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: ErrInternal.Message, Err: cause}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the client-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ErrInternal.Message
}
