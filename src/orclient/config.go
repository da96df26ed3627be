package orclient

import (
	"log/slog"
	"net/http"
	"time"
)

// Config holds the settings for an OpenRouter client.
type Config struct {
	// APIKey is the OpenRouter API key. Required.
	APIKey string

	// BaseURL overrides the API endpoint. Defaults to the public API.
	BaseURL string

	// HTTPClient overrides the underlying HTTP client. When nil a client
	// with Timeout is used.
	HTTPClient *http.Client

	// Logger receives request and retry diagnostics. Defaults to
	// slog.Default.
	Logger *slog.Logger

	// Timeout bounds each non-streaming HTTP request. Defaults to 30s.
	// Streaming requests are bounded by the caller's context instead.
	Timeout time.Duration

	// RetryCount is how many times a failed request is retried.
	RetryCount int

	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration

	// SiteURL and SiteName populate OpenRouter's optional ranking headers
	// (HTTP-Referer and X-Title).
	SiteURL  string
	SiteName string
}
