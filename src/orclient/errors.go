package orclient

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrNoAPIKey is returned when a client is constructed without a key.
	ErrNoAPIKey = errors.New("openrouter: API key is required")

	// ErrEmptyResponse is returned when the API answers with no choices.
	ErrEmptyResponse = errors.New("openrouter: empty response")

	// ErrStreamClosed is returned when reading from a closed stream.
	ErrStreamClosed = errors.New("openrouter: stream closed")

	// ErrModelNotFound is returned when a model ID is unknown to the API.
	ErrModelNotFound = errors.New("openrouter: model not found")
)

// errorResponse is the wire shape of an OpenRouter error body:
// {"error":{"message":"...","code":...}}. It also appears as a data event
// when a stream fails mid-flight.
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
		Param   string `json:"param"`
	} `json:"error"`
}

// APIError is an error response from the OpenRouter API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
	Code       string
	Param      string
	RetryAfter time.Duration
	RequestID  string
}

func (e *APIError) Error() string {
	switch {
	case e.StatusCode == 0 && e.Code != "":
		return fmt.Sprintf("API error (%s): %s", e.Code, e.Message)
	case e.StatusCode == 0:
		return "API error: " + e.Message
	case e.Code != "":
		return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	default:
		return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
	}
}

// Retryable reports whether the request may succeed on another attempt.
func (e *APIError) Retryable() bool {
	if e.StatusCode >= 500 && e.StatusCode < 600 {
		return true
	}
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	switch e.Code {
	case "timeout", "connection_error", "server_error":
		return true
	}
	return false
}

// IsRateLimit reports whether the error is a rate limit rejection.
func (e *APIError) IsRateLimit() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Code == "rate_limit_exceeded"
}

// IsAuthError reports whether the error is an authentication failure.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.Code == "invalid_api_key"
}

// IsRetryable reports whether an error from this client is worth retrying.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return false
}

// retryDelayFor picks the wait before the given attempt (1-based). A server
// supplied Retry-After wins; otherwise the base delay grows linearly.
func retryDelayFor(err error, attempt int, base time.Duration) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter
	}
	if base <= 0 {
		base = time.Second
	}
	return base * time.Duration(attempt)
}
