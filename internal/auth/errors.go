package auth

import (
	"net/http"

	"github.com/samber/oops"
)

// Error codes shared by the access-control flows. Handlers map them to HTTP
// status codes with StatusCode.
const (
	CodeValidation   = "VALIDATION"
	CodeConflict     = "CONFLICT"
	CodeRateLimited  = "RATE_LIMITED"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeInternal     = "INTERNAL"
)

// InternalMessage is the sanitized message returned for unexpected failures.
const InternalMessage = "Internal server error. Please try again later."

// ErrValidation reports missing or malformed input.
func ErrValidation(message string) error {
	return oops.Code(CodeValidation).Errorf("%s", message)
}

// ErrConflict reports a uniqueness violation.
func ErrConflict(message string) error {
	return oops.Code(CodeConflict).Errorf("%s", message)
}

// ErrRateLimited reports a throttled identifier and how long to wait.
func ErrRateLimited(retryAfter int) error {
	return oops.Code(CodeRateLimited).
		With("retry_after", retryAfter).
		Errorf("Too many login attempts. Please try again later.")
}

// ErrUnauthorized reports failed authentication. The message must not reveal
// whether the account exists.
func ErrUnauthorized(message string) error {
	return oops.Code(CodeUnauthorized).Errorf("%s", message)
}

// ErrForbidden reports an identified caller that may not proceed.
func ErrForbidden(message string) error {
	return oops.Code(CodeForbidden).Errorf("%s", message)
}

// ErrNotFound reports a missing subject.
func ErrNotFound(message string) error {
	return oops.Code(CodeNotFound).Errorf("%s", message)
}

// Internal wraps an unexpected collaborator failure.
func Internal(operation string, err error) error {
	return oops.Code(CodeInternal).With("operation", operation).Wrap(err)
}

// Code returns the error code attached to err, or CodeInternal when err
// carries none.
func Code(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, ok := oopsErr.Code().(string); ok && code != "" {
			return code
		}
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return err != nil && Code(err) == code
}

// StatusCode maps an error to its HTTP status.
func StatusCode(err error) int {
	switch Code(err) {
	case CodeValidation, CodeConflict:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeTokenExpired, CodeTokenInvalid:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the client-facing message for err. Anything that maps
// to a 500 is sanitized unless debug is set.
func PublicMessage(err error, debug bool) string {
	if err == nil {
		return ""
	}
	if StatusCode(err) == http.StatusInternalServerError {
		if debug {
			return err.Error()
		}
		return InternalMessage
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		return oopsErr.Error()
	}
	return err.Error()
}

// RetryAfter returns the retry_after seconds attached to a rate-limit error.
func RetryAfter(err error) (int, bool) {
	oopsErr, ok := oops.AsOops(err)
	if !ok || Code(err) != CodeRateLimited {
		return 0, false
	}
	seconds, ok := oopsErr.Context()["retry_after"].(int)
	return seconds, ok
}
