package pipeline

import "net/http"

// Code is the outward error taxonomy. Every internal stage failure is
// translated to exactly one of these; nothing else reaches the caller.
type Code string

// Outward error codes.
const (
	CodeInvalidURL         Code = "invalid_url"
	CodeUnsupportedContent Code = "unsupported_content"
	CodeUnauthorized       Code = "unauthorized"
	CodeNotFound           Code = "not_found"
	CodeFetchTimeout       Code = "fetch_timeout"
	CodeContentTooLarge    Code = "content_too_large"
	CodeParseFailed        Code = "parse_failed"
	CodeRateLimited        Code = "rate_limited"
	CodeServerError        Code = "server_error"
)

// HTTPStatus returns the HTTP status for the code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidURL, CodeUnsupportedContent:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeFetchTimeout:
		return http.StatusRequestTimeout
	case CodeContentTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeParseFailed:
		return http.StatusUnprocessableEntity
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is an ingestion failure with its outward code. Message is safe
// to echo to the caller; the wrapped error holds internal detail for
// logs only.
type Error struct {
	Code    Code
	Message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.Message + ": " + e.err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.err
}

func newError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, err: err}
}
