package llm

import (
	"fmt"
	"net/http"
)

// Kind classifies extraction-service failures so the pipeline can map
// them to outward error codes without inspecting provider details.
type Kind int

// Failure kinds for extraction-service calls.
const (
	KindUnknown Kind = iota
	KindAuth
	KindRateLimited
	KindTimeout
	KindBadRequest
	KindUnavailable
)

// APIError is a failed call to the extraction service.
type APIError struct {
	Kind       Kind
	StatusCode int
	msg        string
}

func (e *APIError) Error() string {
	return e.msg
}

// classifyHTTPError maps a non-200 provider response to an APIError.
// The body is truncated so provider prose never floods the logs.
func classifyHTTPError(statusCode int, body []byte) *APIError {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}
	msg := fmt.Sprintf("extraction service error (status %d): %s", statusCode, bodyStr)

	kind := KindUnknown
	switch {
	case statusCode == http.StatusTooManyRequests:
		kind = KindRateLimited
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		kind = KindAuth
	case statusCode == http.StatusBadRequest:
		kind = KindBadRequest
	case statusCode == http.StatusGatewayTimeout:
		kind = KindTimeout
	case statusCode >= 500:
		kind = KindUnavailable
	}

	return &APIError{Kind: kind, StatusCode: statusCode, msg: msg}
}
