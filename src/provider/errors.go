package provider

import (
	"errors"
	"fmt"
	"strings"
)

// FailoverReason classifies why a provider request failed. The engine uses it
// to decide between retrying, failing the turn, or surfacing a configuration
// problem.
type FailoverReason string

const (
	FailoverBilling          FailoverReason = "billing"
	FailoverRateLimit        FailoverReason = "rate_limit"
	FailoverAuth             FailoverReason = "auth"
	FailoverTimeout          FailoverReason = "timeout"
	FailoverServerError      FailoverReason = "server_error"
	FailoverInvalidRequest   FailoverReason = "invalid_request"
	FailoverModelUnavailable FailoverReason = "model_unavailable"
	FailoverContentFilter    FailoverReason = "content_filter"
	FailoverUnknown          FailoverReason = "unknown"
)

// IsRetryable reports whether requests failing for this reason are worth
// retrying with backoff.
func (r FailoverReason) IsRetryable() bool {
	switch r {
	case FailoverRateLimit, FailoverTimeout, FailoverServerError:
		return true
	default:
		return false
	}
}

// ShouldFailover reports whether the failure is permanent for this provider
// and model pairing.
func (r FailoverReason) ShouldFailover() bool {
	switch r {
	case FailoverBilling, FailoverAuth, FailoverModelUnavailable:
		return true
	default:
		return false
	}
}

// Error is a classified provider failure.
type Error struct {
	Reason    FailoverReason
	Provider  string
	Model     string
	Status    int
	Code      string
	Message   string
	RequestID string
	Cause     error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Reason, e.Provider)
	if e.Model != "" {
		fmt.Fprintf(&b, " model=%s", e.Model)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " status=%d", e.Status)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " code=%s", e.Code)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	} else if e.Cause != nil {
		fmt.Fprintf(&b, ": %s", e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError wraps a cause into a classified provider error.
func NewError(providerName, model string, cause error) *Error {
	e := &Error{
		Provider: providerName,
		Model:    model,
		Cause:    cause,
		Reason:   FailoverUnknown,
	}
	if cause != nil {
		e.Reason = ClassifyError(cause)
		e.Message = cause.Error()
	}
	return e
}

// WithStatus records the HTTP status and reclassifies from it when the status
// is more specific than the message.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	if reason := classifyStatusCode(status); reason != FailoverUnknown {
		e.Reason = reason
	}
	return e
}

// WithReason overrides the classified reason.
func (e *Error) WithReason(reason FailoverReason) *Error {
	e.Reason = reason
	return e
}

// WithCode records the provider's error code.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithMessage replaces the human-readable message.
func (e *Error) WithMessage(message string) *Error {
	e.Message = message
	return e
}

// WithRequestID records the provider's request ID for support escalation.
func (e *Error) WithRequestID(id string) *Error {
	e.RequestID = id
	return e
}

// ClassifyError maps an arbitrary error to a failover reason by message
// inspection. Status-code classification, when available, takes precedence
// via WithStatus.
func ClassifyError(err error) FailoverReason {
	if err == nil {
		return FailoverUnknown
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadline exceeded"),
		strings.Contains(msg, "context canceled"):
		return FailoverTimeout
	case strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "rate_limit"),
		strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "429"):
		return FailoverRateLimit
	case strings.Contains(msg, "quota"),
		strings.Contains(msg, "billing"),
		strings.Contains(msg, "insufficient funds"),
		strings.Contains(msg, "payment"):
		return FailoverBilling
	case strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "invalid api key"),
		strings.Contains(msg, "invalid x-api-key"),
		strings.Contains(msg, "authentication"),
		strings.Contains(msg, "401"),
		strings.Contains(msg, "403"):
		return FailoverAuth
	case strings.Contains(msg, "content filter"),
		strings.Contains(msg, "content_filter"),
		strings.Contains(msg, "safety"):
		return FailoverContentFilter
	case strings.Contains(msg, "model not found"),
		strings.Contains(msg, "model_not_found"),
		strings.Contains(msg, "does not exist"),
		strings.Contains(msg, "unknown model"):
		return FailoverModelUnavailable
	case strings.Contains(msg, "500"),
		strings.Contains(msg, "502"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "504"),
		strings.Contains(msg, "internal server error"),
		strings.Contains(msg, "bad gateway"),
		strings.Contains(msg, "service unavailable"),
		strings.Contains(msg, "overloaded"):
		return FailoverServerError
	default:
		return FailoverUnknown
	}
}

func classifyStatusCode(status int) FailoverReason {
	switch {
	case status == 402:
		return FailoverBilling
	case status == 429:
		return FailoverRateLimit
	case status == 401 || status == 403:
		return FailoverAuth
	case status == 404:
		return FailoverModelUnavailable
	case status == 408:
		return FailoverTimeout
	case status == 400 || status == 422:
		return FailoverInvalidRequest
	case status >= 500:
		return FailoverServerError
	default:
		return FailoverUnknown
	}
}

// IsProviderError reports whether err is (or wraps) a classified provider
// error.
func IsProviderError(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}

// GetProviderError extracts the classified provider error from err.
func GetProviderError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsRetryable reports whether err is a retryable provider failure.
func IsRetryable(err error) bool {
	if pe, ok := GetProviderError(err); ok {
		return pe.Reason.IsRetryable()
	}
	return ClassifyError(err).IsRetryable()
}
