package relay

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindUnauthenticated Kind = "UNAUTHENTICATED"
	KindUnauthorized    Kind = "UNAUTHORIZED"
	KindInvalidInput    Kind = "INVALID_INPUT"
	KindNotFound        Kind = "NOT_FOUND"
	KindUpstreamFailure Kind = "UPSTREAM_FAILURE"
	KindRateLimited     Kind = "RATE_LIMITED"
)

// Error is the failure of a single event or request. Message is safe to
// show to the client; Err is only logged.
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

func (e *Error) Unwrap() error {
	return e.Err
}

func Unauthenticated(msg string) error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

func Unauthorized(msg string) error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func InvalidInput(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func NotFound(msg string, err error) error {
	return &Error{Kind: KindNotFound, Message: msg, Err: err}
}

// Upstream wraps a store or identity provider failure. The client only sees
// msg.
func Upstream(msg string, err error) error {
	return &Error{Kind: KindUpstreamFailure, Message: msg, Err: err}
}

// KindOf classifies err. Anything that is not an *Error is an upstream
// failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstreamFailure
}

// PublicMessage returns the client facing text of err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindUnauthorized:
		return http.StatusForbidden
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
