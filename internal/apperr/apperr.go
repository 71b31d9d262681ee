// Package apperr defines the caller-facing error taxonomy of the service.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindInvalidInput         Kind = "invalid_input"
	KindRateLimitExceeded    Kind = "rate_limit_exceeded"
	KindServerBusy           Kind = "server_busy"
	KindJobNotFound          Kind = "job_not_found"
	KindConversationNotFound Kind = "conversation_not_found"
	KindJobFailed            Kind = "job_failed"
	KindCodeAnalysis         Kind = "code_analysis_error"
	KindAnalysisTimeout      Kind = "analysis_timeout"
	KindUnauthorized         Kind = "unauthorized"
	KindInternal             Kind = "internal_error"
)

// Error is returned by service operations whose failure must reach the client.
type Error struct {
	Kind       Kind
	Message    string
	Details    map[string]any
	RetryAfter int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Status maps the error kind to an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindInvalidInput:
		return http.StatusUnprocessableEntity
	case KindRateLimitExceeded:
		return http.StatusTooManyRequests
	case KindServerBusy:
		return http.StatusServiceUnavailable
	case KindJobNotFound, KindConversationNotFound:
		return http.StatusNotFound
	case KindCodeAnalysis:
		return http.StatusBadGateway
	case KindAnalysisTimeout:
		return http.StatusGatewayTimeout
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func InvalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

func RateLimitExceeded(retryAfter int) *Error {
	return &Error{
		Kind:       KindRateLimitExceeded,
		Message:    fmt.Sprintf("Too many requests. Try again in %d seconds.", retryAfter),
		RetryAfter: retryAfter,
	}
}

func ServerBusy(active, max int) *Error {
	return &Error{
		Kind:    KindServerBusy,
		Message: "Server is busy. Please try again shortly.",
		Details: map[string]any{"active_jobs": active, "max_concurrent": max},
	}
}

func JobNotFound(id string) *Error {
	return &Error{Kind: KindJobNotFound, Message: fmt.Sprintf("Job '%s' not found.", id)}
}

func ConversationNotFound(id string) *Error {
	return &Error{
		Kind:    KindConversationNotFound,
		Message: "Conversation not found",
		Details: map[string]any{"conversation_id": id},
	}
}

func JobFailed(id, msg string) *Error {
	return &Error{Kind: KindJobFailed, Message: msg, Details: map[string]any{"job_id": id}}
}

func CodeAnalysis(err error) *Error {
	return &Error{Kind: KindCodeAnalysis, Message: "Code analysis failed.", Err: err}
}

func AnalysisTimeout(err error) *Error {
	return &Error{Kind: KindAnalysisTimeout, Message: "Code analysis timed out.", Err: err}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Internal server error.", Err: err}
}

// As extracts an *Error from err, wrapping unknown errors as internal ones.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
