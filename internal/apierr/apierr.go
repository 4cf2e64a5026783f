// Package apierr classifies failures observed by the client core.
package apierr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindValidation covers bad credentials and malformed requests.
	KindValidation Kind = "validation"
	// KindAuthorizationLost means the backend rejected the credential; fatal to the session.
	KindAuthorizationLost Kind = "authorization_lost"
	// KindTransport covers network failures and unreachable backends.
	KindTransport Kind = "transport"
	KindNotFound  Kind = "not_found"
	KindInternal  Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	Status  int
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by kind so callers can use sentinel values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Status == 0 && t.Cause == nil
}

var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrAuthorizationLost = &Error{Kind: KindAuthorizationLost}
	ErrTransport         = &Error{Kind: KindTransport}
	ErrNotFound          = &Error{Kind: KindNotFound}
)

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func AuthorizationLost(status int, message string) *Error {
	return &Error{Kind: KindAuthorizationLost, Status: status, Message: message}
}

func Transport(message string, cause error) *Error {
	return &Error{Kind: KindTransport, Message: message, Cause: cause}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// Message returns the user-facing message of err, falling back to err.Error().
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
